// Package document defines the shared data model for the web document
// extraction pipeline: the fetched page, the per-request extraction
// context, candidates produced by strategies, the tagged Block/InlineRun
// content model, and the final extraction decision.
package document

import "time"

// FetchedPage is the single network fetch shared by every strategy within
// one ExtractionContext (invariant: fetched at most once per context).
type FetchedPage struct {
	RequestedURL string
	FinalURL     string
	ContentType  string
	// Payload holds the text body. Empty when the content is binary.
	Payload    string
	StatusCode int
	// Headers holds response headers with lower-cased keys.
	Headers map[string]string
	// BlockSignal is set when the protection detector finds evidence of
	// bot protection or an anti-scraping challenge. Nil means clean.
	BlockSignal *BlockSignal
}

// BlockSignal describes one detected bot-protection or anti-scraping signal.
type BlockSignal struct {
	// Kind is one of: "cloudflare", "captcha", "access_denied",
	// "rate_limited", "empty_content", "javascript_required".
	Kind string
	// Confidence is a score from 0-100.
	Confidence int
	// Message is a human-readable explanation, suitable for an attempt
	// trace reason.
	Message string
	// Retryable is true when a dynamic/browser-rendered fetch would
	// likely succeed where the static fetch did not.
	Retryable bool
}

// ExtractionContext is constructed once per orchestration and shared by
// every strategy.
type ExtractionContext struct {
	URL       string
	TaskID    string
	ProjectID string
	Timeout   time.Duration
	MaxChars  int
	Page      *FetchedPage
}

// InlineRun is a tagged union over a block's rich inline text.
//
// Type is one of: "text", "em", "strong", "code", "sub", "sup",
// "underline", "strike", "smallcaps", "math", "link".
type InlineRun struct {
	Type string `json:"type"`
	// Text holds the leaf text for "text" and "math" runs.
	Text string `json:"text,omitempty"`
	// Href holds the link target for "link" runs.
	Href string `json:"href,omitempty"`
	// Children holds nested runs for wrapper and "link" types.
	Children []InlineRun `json:"children,omitempty"`
}

// TextRun constructs a leaf text run.
func TextRun(text string) InlineRun {
	return InlineRun{Type: "text", Text: text}
}

// Block is a tagged union over the typed content blocks the parsers emit.
//
// Type is one of: "h1", "h2", "h3", "paragraph", "list", "table",
// "equation", "code", "blockquote", "image", "reference".
type Block struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// heading / paragraph / blockquote / code / reference
	Text           string      `json:"text,omitempty"`
	InlineMarkdown string      `json:"inline_markdown,omitempty"`
	InlineRuns     []InlineRun `json:"inline_runs,omitempty"`

	// reference
	AnchorID string           `json:"anchor_id,omitempty"`
	Links    []ReferenceLink  `json:"links,omitempty"`

	// list
	Ordered bool     `json:"ordered,omitempty"`
	Items   []string `json:"items,omitempty"`

	// table
	Columns    []string    `json:"columns,omitempty"`
	Rows       [][]string  `json:"rows,omitempty"`
	HeaderRows []TableRow  `json:"header_rows,omitempty"`
	BodyRows   []TableRow  `json:"body_rows,omitempty"`
	Caption    string      `json:"caption,omitempty"`
	Notes      []string    `json:"notes,omitempty"`

	// equation
	EquationTex    string `json:"equation_tex,omitempty"`
	EquationNumber string `json:"equation_number,omitempty"`

	// image
	ImageURL string `json:"image_url,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Source   string `json:"source,omitempty"`
}

// TableRow is one row of table cells.
type TableRow []TableCell

// TableCell is one table cell with optional inline structure.
type TableCell struct {
	Text           string      `json:"text"`
	IsHeader       bool        `json:"is_header"`
	InlineMarkdown string      `json:"inline_markdown,omitempty"`
	InlineRuns     []InlineRun `json:"inline_runs,omitempty"`
	Colspan        int         `json:"colspan,omitempty"`
	Rowspan        int         `json:"rowspan,omitempty"`
	Scope          string      `json:"scope,omitempty"`
}

// ReferenceLink is one auto-detected outbound link on a bibliography item.
type ReferenceLink struct {
	Kind string `json:"kind"` // "arxiv" | "doi" | "url" | "scholar"
	Href string `json:"href"`
}

// ArxivStructuredContent is the output of the arXiv structural parser.
type ArxivStructuredContent struct {
	RawContent  string
	Blocks      []Block
	BlockCounts map[string]int
}

// ScoreFeatures holds the Quality Scorer's seven clamped [0,1] features.
type ScoreFeatures struct {
	Length             float64 `json:"length"`
	ParagraphDensity    float64 `json:"paragraph_density"`
	NoiseRatio          float64 `json:"noise_ratio"`
	TitleCoherence      float64 `json:"title_coherence"`
	LanguageContinuity  float64 `json:"language_continuity"`
	Deduplication       float64 `json:"deduplication"`
	StructureDiversity  float64 `json:"structure_diversity"`
}

// ScoreResult is the Quality Scorer's output.
type ScoreResult struct {
	Score      float64
	Confidence float64
	Features   ScoreFeatures
}

// ExtractionCandidate is one strategy's produced document, before or after
// scoring.
type ExtractionCandidate struct {
	StrategyName      string
	URL               string
	CanonicalURL      string
	Title             *string
	ContentFormat     string // always "text"
	RawContent        string
	ExtractionMeta    map[string]any
	Blocks            []Block
	QualityScore      float64
	QualityConfidence float64
}

// ExtractionAttempt records one strategy's outcome for the trace.
type ExtractionAttempt struct {
	StrategyName string
	Success      bool
	DurationMs   int64
	Score        *float64
	Confidence   *float64
	Reason       string
}

// ExtractionDecision is the orchestrator's final result, built once per
// orchestration.
type ExtractionDecision struct {
	Candidate  *ExtractionCandidate
	Attempts   []ExtractionAttempt
	DurationMs int64
	RunID      string
}

// AdaptiveRule is an LLM-synthesized, per-host extraction recipe.
type AdaptiveRule struct {
	Host             string
	ContainerRegexes []string
	DropTextPatterns []string
	Confidence       float64
	Model            string
	GeneratedAt      time.Time
}

// ReplaySample is a captured payload used to evaluate a learned rule before
// promotion.
type ReplaySample struct {
	URL         string
	ContentType string
	Payload     string
	CapturedAt  time.Time
}

// PromotedAdapter is a learned rule certified as a first-class adapter.
type PromotedAdapter struct {
	Name             string
	HostSuffixes     []string
	ContainerRegexes []string
	DropTextPatterns []string
	SourceModel      string
	SourceConfidence float64
	GeneratedAt      time.Time
	Evaluation       PromotionEvaluation
}

// PromotionEvaluation is the outcome of replaying a rule against samples.
type PromotionEvaluation struct {
	SamplesEvaluated int     `json:"samples_evaluated"`
	SuccessCount     int     `json:"success_count"`
	SuccessRate      float64 `json:"success_rate"`
	AverageScore     float64 `json:"average_score"`
	Promoted         bool    `json:"promoted"`
}
