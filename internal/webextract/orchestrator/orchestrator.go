// Package orchestrator implements the Orchestrator: it validates the
// target URL, constructs one shared ExtractionContext, runs the
// Extraction Strategies in declared order, scores each successful
// candidate, and returns the best one once it clears the minimum bar.
// Grounded on original_source/web_extract/orchestrator.py.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Zemacs/openpaper/internal/webextract/document"
	"github.com/Zemacs/openpaper/internal/webextract/fetch"
	"github.com/Zemacs/openpaper/internal/webextract/safety"
	"github.com/Zemacs/openpaper/internal/webextract/scoring"
	"github.com/Zemacs/openpaper/internal/webextract/strategies"
	"github.com/Zemacs/openpaper/internal/webextract/webhook"
)

// Sentinel error kinds returned by Run.
var (
	ErrExtractionFailed      = errors.New("extraction failed")
	ErrQualityBelowThreshold = errors.New("quality below threshold")
)

// StatusCallback is invoked with short human-readable progress strings,
// e.g. "Preparing extraction pipeline", "Extracting content (domain_adapter)".
type StatusCallback func(message string)

// Config mirrors spec.md §6's orchestrator-level configuration options.
type Config struct {
	AcceptanceThreshold    float64
	MinimumAcceptableScore float64
	Timeout                time.Duration
	MaxChars               int
}

// DefaultConfig mirrors spec.md §6's defaults.
func DefaultConfig() Config {
	return Config{
		AcceptanceThreshold:    0.78,
		MinimumAcceptableScore: 0.55,
		Timeout:                30 * time.Second,
		MaxChars:               120_000,
	}
}

// RunOptions carries the per-call inputs Run needs beyond the URL itself.
type RunOptions struct {
	TaskID         string
	ProjectID      string
	StatusCallback StatusCallback
}

// Orchestrator runs the declared strategy pipeline over one fetched page.
type Orchestrator struct {
	Guard      *safety.Guard
	Fetcher    fetch.Fetcher
	Strategies []strategies.Strategy
	Config     Config
}

// New builds an Orchestrator. strategyList should already be in the order
// declared by spec.md §4.10: X-status, Domain Adapter, ArXiv HTML, JSON-LD,
// HTTP Readability, LLM Adaptive.
func New(guard *safety.Guard, fetcher fetch.Fetcher, strategyList []strategies.Strategy, cfg Config) *Orchestrator {
	return &Orchestrator{Guard: guard, Fetcher: fetcher, Strategies: strategyList, Config: cfg}
}

func (o *Orchestrator) emit(cb StatusCallback, message string) {
	if cb != nil {
		cb(message)
	}
}

// Run validates the URL, fetches the page once, runs every configured
// strategy against the shared context, and returns the highest-scoring
// candidate that clears MinimumAcceptableScore.
func (o *Orchestrator) Run(ctx context.Context, rawURL string, opts RunOptions) (*webhook.Result, error) {
	start := time.Now()
	o.emit(opts.StatusCallback, "Preparing extraction pipeline")

	timeout := o.Config.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	maxChars := o.Config.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultConfig().MaxChars
	}

	if _, err := o.Guard.ValidatePublicHTTPURL(ctx, rawURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	ectx := &document.ExtractionContext{
		URL:       rawURL,
		TaskID:    opts.TaskID,
		ProjectID: opts.ProjectID,
		Timeout:   timeout,
		MaxChars:  maxChars,
	}

	runID := ulid.Make().String()

	var attempts []document.ExtractionAttempt
	var best *document.ExtractionCandidate
	var bestScore float64
	var fetchErr error

	for _, strategy := range o.Strategies {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, document.ExtractionAttempt{
				StrategyName: strategy.Name(),
				Success:      false,
				Reason:       err.Error(),
			})
			break
		}

		if needsPage(strategy) && ectx.Page == nil {
			if fetchErr == nil {
				callCtx, cancel := context.WithTimeout(ctx, timeout)
				page, err := o.Fetcher.Fetch(callCtx, rawURL, timeout)
				cancel()
				if err != nil {
					fetchErr = err
				} else {
					ectx.Page = page
				}
			}
			if fetchErr != nil {
				attempts = append(attempts, document.ExtractionAttempt{
					StrategyName: strategy.Name(),
					Success:      false,
					Reason:       "fetch failed: " + fetchErr.Error(),
				})
				continue
			}
		}

		o.emit(opts.StatusCallback, fmt.Sprintf("Extracting content (%s)", strategy.Name()))

		attemptStart := time.Now()
		candidate, err := strategy.Extract(ctx, ectx)
		durationMs := time.Since(attemptStart).Milliseconds()

		if err != nil {
			attempts = append(attempts, document.ExtractionAttempt{
				StrategyName: strategy.Name(),
				Success:      false,
				DurationMs:   durationMs,
				Reason:       err.Error(),
			})
			continue
		}

		result := scoring.Score(&candidate)
		candidate.QualityScore = result.Score
		candidate.QualityConfidence = result.Confidence
		if candidate.ExtractionMeta == nil {
			candidate.ExtractionMeta = map[string]any{}
		}
		candidate.ExtractionMeta["quality_score"] = result.Score
		candidate.ExtractionMeta["quality_confidence"] = result.Confidence
		candidate.ExtractionMeta["quality_features"] = result.Features

		score := result.Score
		confidence := result.Confidence
		attempts = append(attempts, document.ExtractionAttempt{
			StrategyName: strategy.Name(),
			Success:      true,
			DurationMs:   durationMs,
			Score:        &score,
			Confidence:   &confidence,
		})

		if best == nil || result.Score > bestScore {
			c := candidate
			best = &c
			bestScore = result.Score
		}

		if result.Score >= o.Config.AcceptanceThreshold {
			break
		}
	}

	if best == nil {
		var reasons []string
		for _, a := range attempts {
			if !a.Success {
				reasons = append(reasons, fmt.Sprintf("%s: %s", a.StrategyName, a.Reason))
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrExtractionFailed, strings.Join(reasons, "; "))
	}
	if bestScore < o.Config.MinimumAcceptableScore {
		return nil, fmt.Errorf("%w: best score %.2f below minimum %.2f", ErrQualityBelowThreshold, bestScore, o.Config.MinimumAcceptableScore)
	}

	o.emit(opts.StatusCallback, "Content extracted")

	decision := &document.ExtractionDecision{
		Candidate:  best,
		Attempts:   attempts,
		DurationMs: time.Since(start).Milliseconds(),
		RunID:      runID,
	}

	return toWebhookResult(decision, opts.ProjectID), nil
}

// needsPage reports whether strategy requires ectx.Page to be populated
// before Extract is called. x_status_api talks to its own providers and
// never touches the fetched page.
func needsPage(strategy strategies.Strategy) bool {
	return strategy.Name() != "x_status_api"
}

func toWebhookResult(decision *document.ExtractionDecision, projectID string) *webhook.Result {
	candidate := decision.Candidate

	trace := make([]webhook.Attempt, 0, len(decision.Attempts))
	for _, a := range decision.Attempts {
		trace = append(trace, webhook.AttemptFromDocument(a))
	}

	return &webhook.Result{
		Success:           true,
		URL:               candidate.URL,
		CanonicalURL:      candidate.CanonicalURL,
		Title:             candidate.Title,
		ContentFormat:     candidate.ContentFormat,
		RawContent:        candidate.RawContent,
		Blocks:            candidate.Blocks,
		QualityScore:      candidate.QualityScore,
		QualityConfidence: candidate.QualityConfidence,
		StrategyUsed:      candidate.StrategyName,
		ExtractionTrace:   trace,
		ExtractionMeta:    candidate.ExtractionMeta,
		Duration:          float64(decision.DurationMs) / 1000.0,
		ProjectID:         projectID,
	}
}
