// Package adaptive implements the LLM Adaptive strategy: an in-memory TTL
// cache of synthesized per-host rules backed by the rule store, a
// synthesis path that calls out to an llmoracle.Synthesizer, regex-based
// rule application, and the replay-sample promotion loop that certifies a
// rule into a first-class domain adapter after enough successful runs.
package adaptive

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Zemacs/openpaper/internal/llmoracle"
	"github.com/Zemacs/openpaper/internal/webextract/document"
	"github.com/Zemacs/openpaper/internal/webextract/htmlutil"
	"github.com/Zemacs/openpaper/internal/webextract/scoring"
)

// Config mirrors original_source's WEB_EXTRACTION_RULE_*/WEB_EXTRACTION_PROMOTION_*
// env-driven tunables.
type Config struct {
	Enabled             bool
	MaxHTMLChars        int
	CacheSize           int
	CacheTTL            time.Duration
	PromotionEnabled    bool
	PromotionMinSamples int
	PromotionMaxSamples int
	MinSuccessRate      float64
	MinAvgScore         float64
	MinSampleScore      float64
}

// DefaultConfig mirrors llm_adaptive.py's module-level defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		MaxHTMLChars:        80_000,
		CacheSize:           200,
		CacheTTL:            86_400 * time.Second,
		PromotionEnabled:    true,
		PromotionMinSamples: 3,
		PromotionMaxSamples: 6,
		MinSuccessRate:      0.80,
		MinAvgScore:         0.72,
		MinSampleScore:      0.60,
	}
}

// Store is the subset of rulestore.Store the adaptive strategy depends on.
type Store interface {
	GetGeneratedRule(host string) (*document.AdaptiveRule, bool)
	SaveGeneratedRule(host string, rule document.AdaptiveRule) error
	PromotedAdapterForHost(host string) (*document.PromotedAdapter, bool)
	SavePromotedAdapter(host string, adapter document.PromotedAdapter) error
	RecordReplaySample(host string, sample document.ReplaySample) error
	ReplaySamples(host string, limit int) []document.ReplaySample
}

// Strategy implements the adaptive LLM rule lifecycle: cache, synthesize,
// apply, record replay samples, and evaluate promotion.
type Strategy struct {
	cfg   Config
	store Store
	oracle llmoracle.Synthesizer

	mu    sync.Mutex
	cache map[string]document.AdaptiveRule
}

// New builds a Strategy. oracle may be nil, in which case synthesis of new
// rules is skipped but cached/promoted rules still apply.
func New(cfg Config, store Store, oracle llmoracle.Synthesizer) *Strategy {
	return &Strategy{cfg: cfg, store: store, oracle: oracle, cache: map[string]document.AdaptiveRule{}}
}

func normalizeHost(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}

func (s *Strategy) cacheGet(host string) (document.AdaptiveRule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.cache[host]
	if !ok {
		return document.AdaptiveRule{}, false
	}
	if time.Since(rule.GeneratedAt) > s.cfg.CacheTTL {
		delete(s.cache, host)
		return document.AdaptiveRule{}, false
	}
	return rule, true
}

// cachePut stores rule and, once the cache exceeds CacheSize, evicts the
// single oldest entry — mirrors llm_adaptive.py's _cache_put exactly
// (oldest-by-generated_at eviction, not LRU-by-access).
func (s *Strategy) cachePut(rule document.AdaptiveRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[rule.Host] = rule
	if len(s.cache) <= s.cfg.CacheSize {
		return
	}
	var oldestHost string
	var oldestAt time.Time
	for host, r := range s.cache {
		if oldestHost == "" || r.GeneratedAt.Before(oldestAt) {
			oldestHost = host
			oldestAt = r.GeneratedAt
		}
	}
	delete(s.cache, oldestHost)
}

// GetCachedRule resolves a rule for host: the in-memory TTL cache first,
// then the persisted generated-rule store, populating the cache on a
// store hit.
func (s *Strategy) GetCachedRule(host string) (*document.AdaptiveRule, bool) {
	host = normalizeHost(host)
	if host == "" {
		return nil, false
	}
	if rule, ok := s.cacheGet(host); ok {
		r := rule
		return &r, true
	}
	if s.store == nil {
		return nil, false
	}
	stored, ok := s.store.GetGeneratedRule(host)
	if !ok {
		return nil, false
	}
	s.cachePut(*stored)
	return stored, true
}

// SynthesizeRule resolves a rule for host, synthesizing a new one via the
// configured oracle when nothing is cached or stored. Returns
// (rule, generated, error) where generated reports whether the rule was
// freshly synthesized this call (used to tag the resulting candidate's
// strategy name llm_adaptive_generated vs llm_adaptive_cached).
func (s *Strategy) SynthesizeRule(ctx context.Context, host, pageURL, htmlPayload string) (*document.AdaptiveRule, bool, error) {
	if !s.cfg.Enabled {
		return nil, false, llmoracle.ErrLLMUnavailable
	}
	host = normalizeHost(host)
	if host == "" {
		return nil, false, llmoracle.ErrLLMUnavailable
	}

	if cached, ok := s.GetCachedRule(host); ok {
		return cached, false, nil
	}
	rule, err := s.synthesizeNew(ctx, host, pageURL, htmlPayload)
	if err != nil {
		return nil, false, err
	}
	return rule, true, nil
}

// synthesizeNew asks the oracle for a fresh rule for host without consulting
// the cache, then stores the result in the cache and the rule store.
func (s *Strategy) synthesizeNew(ctx context.Context, host, pageURL, htmlPayload string) (*document.AdaptiveRule, error) {
	if strings.TrimSpace(htmlPayload) == "" || s.oracle == nil {
		return nil, llmoracle.ErrLLMUnavailable
	}

	sample := htmlPayload
	if len(sample) > s.cfg.MaxHTMLChars {
		sample = sample[:s.cfg.MaxHTMLChars]
	}

	rule, err := s.oracle.Synthesize(ctx, host, pageURL, sample)
	if err != nil {
		return nil, err
	}
	rule.Host = host
	if rule.GeneratedAt.IsZero() {
		rule.GeneratedAt = time.Now().UTC()
	}

	s.cachePut(*rule)
	if s.store != nil {
		_ = s.store.SaveGeneratedRule(host, *rule)
	}
	return rule, nil
}

// RecordReplaySample stores payload as a replay sample for host,
// unconditionally, ahead of whatever cache lookup or synthesis the caller
// goes on to perform.
func (s *Strategy) RecordReplaySample(host, pageURL, contentType, payload string) {
	host = normalizeHost(host)
	if host == "" || s.store == nil {
		return
	}
	_ = s.store.RecordReplaySample(host, document.ReplaySample{
		URL:         pageURL,
		ContentType: contentType,
		Payload:     payload,
		CapturedAt:  time.Now().UTC(),
	})
}

// ApplyRule runs rule's container regexes over payload, picks the longest
// stripped-to-text fragment, strips drop-text patterns, and normalizes the
// result. Returns an error when no fragment matched or the resulting text
// is too short to be useful (spec's 120-char floor).
func ApplyRule(pageURL, payload, contentType string, rule document.AdaptiveRule, generated bool, maxChars int) (document.ExtractionCandidate, error) {
	var fragments []string
	for _, pattern := range rule.ContainerRegexes {
		re, err := regexp.Compile("(?is)" + pattern)
		if err != nil {
			continue
		}
		for _, match := range re.FindAllStringSubmatch(payload, -1) {
			fragment := match[0]
			if len(match) > 1 && match[1] != "" {
				fragment = match[1]
			}
			fragment = strings.TrimSpace(fragment)
			if fragment != "" {
				fragments = append(fragments, fragment)
			}
		}
	}
	if len(fragments) == 0 {
		return document.ExtractionCandidate{}, fmt.Errorf("adaptive: rule produced no matching content fragments")
	}

	var rawContent string
	for _, fragment := range fragments {
		text := strings.TrimSpace(htmlutil.StripHTMLToText(fragment))
		if len(text) > len(rawContent) {
			rawContent = text
		}
	}

	for _, pattern := range rule.DropTextPatterns {
		re, err := regexp.Compile("(?is)" + pattern)
		if err != nil {
			continue
		}
		rawContent = re.ReplaceAllString(rawContent, "")
	}

	rawContent = htmlutil.NormalizeTextPreserveParagraphs(rawContent)
	if len(rawContent) < 120 {
		return document.ExtractionCandidate{}, fmt.Errorf("adaptive: rule content too short")
	}
	if len(rawContent) > maxChars {
		rawContent = rawContent[:maxChars]
	}

	canonicalURL := htmlutil.ExtractCanonicalURL(payload, pageURL)
	title := htmlutil.ExtractTitle(payload)

	host := ""
	if u, err := url.Parse(canonicalURL); err == nil {
		host = u.Host
	}

	strategyName := "llm_adaptive_cached"
	if generated {
		strategyName = "llm_adaptive_generated"
	}

	var titlePtr *string
	if title != "" {
		titlePtr = &title
	}

	return document.ExtractionCandidate{
		StrategyName:  strategyName,
		URL:           pageURL,
		CanonicalURL:  canonicalURL,
		Title:         titlePtr,
		ContentFormat: "text",
		RawContent:    rawContent,
		ExtractionMeta: map[string]any{
			"method":          "llm_adaptive",
			"host":            host,
			"content_type":    contentType,
			"rule_confidence": rule.Confidence,
			"rule_model":      rule.Model,
			"rule_generated":  generated,
		},
		Blocks: htmlutil.ToDocumentBlocks(htmlutil.BuildReaderBlocks(rawContent)),
	}, nil
}

// EvaluateAndPromote replays rule against host's stored replay samples and,
// when enough samples pass both thresholds, certifies it as a promoted
// adapter. Promotion is write-once per host: a host that already has a
// promoted adapter is never re-evaluated.
func (s *Strategy) EvaluateAndPromote(host string, rule document.AdaptiveRule, maxChars int) document.PromotionEvaluation {
	host = normalizeHost(host)
	if host == "" || s.store == nil || !s.cfg.PromotionEnabled {
		return document.PromotionEvaluation{}
	}
	if _, ok := s.store.PromotedAdapterForHost(host); ok {
		return document.PromotionEvaluation{}
	}

	samples := s.store.ReplaySamples(host, s.cfg.PromotionMaxSamples)
	if len(samples) < s.cfg.PromotionMinSamples {
		return document.PromotionEvaluation{SamplesEvaluated: len(samples)}
	}

	var successful int
	var scores []float64
	for _, sample := range samples {
		candidate, err := ApplyRule(sample.URL, sample.Payload, sample.ContentType, rule, false, maxChars)
		if err != nil {
			continue
		}
		result := scoring.Score(&candidate)
		scores = append(scores, result.Score)
		if result.Score >= s.cfg.MinSampleScore {
			successful++
		}
	}

	sampleCount := len(samples)
	successRate := float64(successful) / float64(maxInt(1, sampleCount))
	var avgScore float64
	if len(scores) > 0 {
		var sum float64
		for _, sc := range scores {
			sum += sc
		}
		avgScore = sum / float64(len(scores))
	}

	promoted := successRate >= s.cfg.MinSuccessRate && avgScore >= s.cfg.MinAvgScore

	evaluation := document.PromotionEvaluation{
		SamplesEvaluated: sampleCount,
		SuccessCount:     successful,
		SuccessRate:      successRate,
		AverageScore:     avgScore,
		Promoted:         promoted,
	}

	if promoted {
		_ = s.store.SavePromotedAdapter(host, document.PromotedAdapter{
			Name:             "llm-promoted:" + host,
			HostSuffixes:     []string{host},
			ContainerRegexes: rule.ContainerRegexes,
			DropTextPatterns: rule.DropTextPatterns,
			SourceModel:      rule.Model,
			SourceConfidence: rule.Confidence,
			GeneratedAt:      rule.GeneratedAt,
			Evaluation:       evaluation,
		})
	}
	return evaluation
}

// Name satisfies the strategies.Strategy interface.
func (s *Strategy) Name() string { return "llm_adaptive" }

// Extract implements the LLM Adaptive strategy end to end: it records a
// replay sample for the host unconditionally (ahead of any cache check, so
// the promotion loop accumulates samples regardless of whether this run
// hits the cache), then tries a cached rule before falling through to
// synthesis. A cache-hit rule that fails to apply falls through to
// synthesis rather than failing the strategy outright.
func (s *Strategy) Extract(ctx context.Context, ectx *document.ExtractionContext) (document.ExtractionCandidate, error) {
	if !s.cfg.Enabled {
		return document.ExtractionCandidate{}, fmt.Errorf("adaptive: strategy disabled")
	}

	page := ectx.Page
	var payload, contentType, finalURL string
	finalURL = ectx.URL
	if page != nil {
		payload = page.Payload
		contentType = page.ContentType
		if page.FinalURL != "" {
			finalURL = page.FinalURL
		}
	}

	host := ""
	if u, err := url.Parse(finalURL); err == nil {
		host = u.Host
	}
	host = normalizeHost(host)
	if host == "" {
		return document.ExtractionCandidate{}, fmt.Errorf("adaptive: could not resolve host from URL")
	}

	s.RecordReplaySample(host, finalURL, contentType, payload)

	if cached, ok := s.GetCachedRule(host); ok {
		if candidate, err := ApplyRule(finalURL, payload, contentType, *cached, false, ectx.MaxChars); err == nil {
			evaluation := s.EvaluateAndPromote(host, *cached, ectx.MaxChars)
			candidate.ExtractionMeta["promotion"] = evaluation
			return candidate, nil
		}
	}

	rule, err := s.synthesizeNew(ctx, host, finalURL, payload)
	if err != nil {
		return document.ExtractionCandidate{}, err
	}

	candidate, err := ApplyRule(finalURL, payload, contentType, *rule, true, ectx.MaxChars)
	if err != nil {
		return document.ExtractionCandidate{}, err
	}

	evaluation := s.EvaluateAndPromote(host, *rule, ectx.MaxChars)
	candidate.ExtractionMeta["promotion"] = evaluation
	return candidate, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
