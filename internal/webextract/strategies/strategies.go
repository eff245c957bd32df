// Package strategies implements five of the six Extraction Strategies the
// orchestrator runs in order: X-status API, Domain Adapter, ArXiv HTML,
// JSON-LD, and HTTP Readability. The sixth, LLM Adaptive, lives in package
// adaptive.
package strategies

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

// Sentinel error kinds a strategy can report via Error.Kind.
var (
	ErrNoMatch          = errors.New("strategy: no match")
	ErrContentTooShort  = errors.New("strategy: content too short")
	ErrBinaryPayload    = errors.New("strategy: binary payload")
	ErrBlockedPage      = errors.New("strategy: blocked page")
)

// Error reports why a strategy declined to produce a candidate.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, reason string) error {
	return &Error{Kind: kind, Reason: reason}
}

// Strategy is one extraction technique. Extract may assume ectx.Page is
// already populated when it needs the fetched page (everything but
// x_status_api, which talks to its own providers); the orchestrator fetches
// the page once per run and shares it across every strategy that needs it.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, ectx *document.ExtractionContext) (document.ExtractionCandidate, error)
}

const minContentChars = 120
