// Package webhook defines the external collaborator contract: the JSON DTO
// an Orchestrator.Run call returns for delivery to an external job system,
// plus the status-callback signature used to report progress while a run
// is in flight. Field names and shapes mirror original_source's
// to_webhook_result, following the teacher's WebhookPayload DTO style in
// service/webhook_service.go.
package webhook

import "github.com/Zemacs/openpaper/internal/webextract/document"

// Attempt is one strategy's recorded outcome in the extraction trace.
type Attempt struct {
	StrategyName string   `json:"strategy_name"`
	Success      bool     `json:"success"`
	DurationMs   int64    `json:"duration_ms"`
	Score        *float64 `json:"score,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

// Result is the successful extraction payload embedded in the webhook DTO.
type Result struct {
	Success           bool              `json:"success"`
	URL               string            `json:"url"`
	CanonicalURL      string            `json:"canonical_url"`
	Title             *string           `json:"title"`
	ContentFormat     string            `json:"content_format"`
	RawContent        string            `json:"raw_content"`
	Blocks            []document.Block  `json:"blocks"`
	QualityScore      float64           `json:"quality_score"`
	QualityConfidence float64           `json:"quality_confidence"`
	StrategyUsed      string            `json:"strategy_used"`
	ExtractionTrace   []Attempt         `json:"extraction_trace"`
	ExtractionMeta    map[string]any    `json:"extraction_meta"`
	Duration          float64           `json:"duration"`
	ProjectID         string            `json:"project_id,omitempty"`
}

// Payload is the top-level webhook DTO: status "completed" carries a
// non-nil Result and a nil Error; status "failed" carries a nil Result and
// a populated Error.
type Payload struct {
	TaskID string  `json:"task_id"`
	Status string  `json:"status"`
	Result *Result `json:"result"`
	Error  *string `json:"error"`
}

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Completed builds a "completed" Payload from a successful extraction.
func Completed(taskID string, result Result) Payload {
	return Payload{TaskID: taskID, Status: StatusCompleted, Result: &result}
}

// Failed builds a "failed" Payload carrying the error message.
func Failed(taskID string, reason string) Payload {
	return Payload{TaskID: taskID, Status: StatusFailed, Error: &reason}
}

// AttemptFromDocument converts the document package's internal attempt
// record into the webhook DTO's trace entry shape.
func AttemptFromDocument(a document.ExtractionAttempt) Attempt {
	return Attempt{
		StrategyName: a.StrategyName,
		Success:      a.Success,
		DurationMs:   a.DurationMs,
		Score:        a.Score,
		Confidence:   a.Confidence,
		Reason:       a.Reason,
	}
}
