package webhook

import (
	"testing"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

func TestCompleted_SetsStatusAndResult(t *testing.T) {
	result := Result{Success: true, URL: "https://example.com", StrategyUsed: "json_ld"}
	payload := Completed("task-1", result)

	if payload.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", payload.Status, StatusCompleted)
	}
	if payload.Error != nil {
		t.Errorf("Error = %v, want nil", *payload.Error)
	}
	if payload.Result == nil || payload.Result.StrategyUsed != "json_ld" {
		t.Fatalf("Result not carried through: %+v", payload.Result)
	}
}

func TestFailed_SetsStatusAndError(t *testing.T) {
	payload := Failed("task-2", "quality below threshold")

	if payload.Status != StatusFailed {
		t.Errorf("Status = %q, want %q", payload.Status, StatusFailed)
	}
	if payload.Result != nil {
		t.Errorf("Result = %+v, want nil", payload.Result)
	}
	if payload.Error == nil || *payload.Error != "quality below threshold" {
		t.Fatalf("Error not carried through: %v", payload.Error)
	}
}

func TestAttemptFromDocument_CopiesAllFields(t *testing.T) {
	score := 0.81
	confidence := 0.9
	a := document.ExtractionAttempt{
		StrategyName: "http_readability",
		Success:      true,
		DurationMs:   42,
		Score:        &score,
		Confidence:   &confidence,
		Reason:       "",
	}

	got := AttemptFromDocument(a)

	if got.StrategyName != a.StrategyName || got.Success != a.Success || got.DurationMs != a.DurationMs {
		t.Fatalf("scalar fields not copied: %+v", got)
	}
	if got.Score == nil || *got.Score != score {
		t.Fatalf("Score not copied: %+v", got.Score)
	}
	if got.Confidence == nil || *got.Confidence != confidence {
		t.Fatalf("Confidence not copied: %+v", got.Confidence)
	}
}
