// Package llmoracle provides the narrow LLM client the adaptive strategy
// depends on: given a host, URL, and an HTML sample, synthesize a set of
// extraction rules. Three concrete implementations sit behind the
// interface, selected by configured provider name.
package llmoracle

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"context"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

// ErrLLMUnavailable is returned when no provider is configured or reachable.
var ErrLLMUnavailable = errors.New("llmoracle: provider unavailable")

// ErrLLMRejected is returned when the model responded but the synthesized
// rule fails validation (no usable container regexes, or confidence below
// the configured minimum).
var ErrLLMRejected = errors.New("llmoracle: rule rejected")

const (
	maxContainerRegexes = 5
	maxDropTextPatterns = 10
)

// Synthesizer synthesizes a per-host AdaptiveRule from a sample of a page's
// HTML. Implementations must treat ctx cancellation/timeout as
// ErrLLMUnavailable rather than a hard failure: rule synthesis is a
// best-effort enhancement, never required for extraction to proceed.
type Synthesizer interface {
	Synthesize(ctx context.Context, host, url, htmlSample string) (*document.AdaptiveRule, error)
}

// Config configures whichever Synthesizer New builds.
type Config struct {
	// Provider selects the implementation: "openai", "anthropic", or
	// anything else (including "", "ollama", "openrouter") falls back to
	// the generic OpenAI-compatible HTTP client.
	Provider string
	Model    string
	APIKey   string
	// BaseURL overrides the provider's API host (e.g. a local Ollama
	// instance or OpenRouter for the HTTP provider). When set, the OpenAI
	// and Anthropic SDK-backed implementations also pass it to their
	// clients as the base URL; when empty they use their default hosts.
	BaseURL       string
	Timeout       time.Duration
	MinConfidence float64
}

// DefaultConfig mirrors original_source's WEB_EXTRACTION_RULE_* defaults.
func DefaultConfig() Config {
	return Config{
		Provider:      "openai",
		Model:         "gpt-4o-mini",
		Timeout:       20 * time.Second,
		MinConfidence: 0.45,
	}
}

// New builds the Synthesizer named by cfg.Provider.
func New(cfg Config) Synthesizer {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "anthropic":
		return newAnthropicSynthesizer(cfg)
	case "openai":
		return newOpenAISynthesizer(cfg)
	default:
		return newHTTPSynthesizer(cfg)
	}
}

func rulePrompt(url, host, htmlSample string) string {
	var sb strings.Builder
	sb.WriteString("You are an expert web content extraction engineer.\n")
	sb.WriteString("You need to create robust parsing rules for the host: " + host + "\n")
	sb.WriteString("URL: " + url + "\n\n")
	sb.WriteString("Return ONLY valid JSON with this exact schema:\n")
	sb.WriteString(`{"container_regexes": ["..."], "drop_text_patterns": ["..."], "confidence": 0.0}` + "\n\n")
	sb.WriteString("Constraints:\n")
	sb.WriteString("- container_regexes: 1-5 regex patterns. Prefer non-greedy patterns. Include a capture group for main content.\n")
	sb.WriteString("- drop_text_patterns: 0-10 regex patterns to remove boilerplate.\n")
	sb.WriteString("- confidence: 0-1 float indicating reliability.\n")
	sb.WriteString("- Do NOT include explanation text.\n\n")
	sb.WriteString("The HTML sample is truncated:\n")
	sb.WriteString(htmlSample)
	return sb.String()
}

type rulePayload struct {
	ContainerRegexes []string `json:"container_regexes"`
	DropTextPatterns []string `json:"drop_text_patterns"`
	Confidence       float64  `json:"confidence"`
}

var fencedJSONRegex = regexp.MustCompile("(?is)```(?:json)?\\s*([\\s\\S]*?)```")

// extractJSONBlock parses raw as a rulePayload, trying a direct unmarshal
// first and falling back to the first parseable fenced code block — models
// sometimes wrap their JSON response in markdown even when told not to.
func extractJSONBlock(raw string) (rulePayload, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return rulePayload{}, errors.New("llmoracle: empty model output")
	}

	var payload rulePayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
		return payload, nil
	}

	for _, m := range fencedJSONRegex.FindAllStringSubmatch(trimmed, -1) {
		candidate := strings.TrimSpace(m[1])
		if err := json.Unmarshal([]byte(candidate), &payload); err == nil {
			return payload, nil
		}
	}
	return rulePayload{}, errors.New("llmoracle: model did not return valid JSON")
}

// ruleFromPayload validates and caps a parsed rulePayload into an
// AdaptiveRule, rejecting it outright when no usable container regex
// survives or confidence falls below minConfidence.
func ruleFromPayload(host, model string, payload rulePayload, minConfidence float64) (*document.AdaptiveRule, error) {
	containers := nonEmptyStrings(payload.ContainerRegexes, maxContainerRegexes)
	if len(containers) == 0 {
		return nil, ErrLLMRejected
	}
	if payload.Confidence < minConfidence {
		return nil, ErrLLMRejected
	}
	return &document.AdaptiveRule{
		Host:             host,
		ContainerRegexes: containers,
		DropTextPatterns: nonEmptyStrings(payload.DropTextPatterns, maxDropTextPatterns),
		Confidence:       payload.Confidence,
		Model:            model,
		GeneratedAt:      time.Now().UTC(),
	}, nil
}

func nonEmptyStrings(values []string, max int) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
		if len(out) >= max {
			break
		}
	}
	return out
}
