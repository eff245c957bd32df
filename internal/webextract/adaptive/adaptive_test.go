package adaptive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Zemacs/openpaper/internal/llmoracle"
	"github.com/Zemacs/openpaper/internal/webextract/document"
)

type fakeStore struct {
	mu        sync.Mutex
	generated map[string]document.AdaptiveRule
	promoted  map[string]document.PromotedAdapter
	replay    map[string][]document.ReplaySample
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		generated: map[string]document.AdaptiveRule{},
		promoted:  map[string]document.PromotedAdapter{},
		replay:    map[string][]document.ReplaySample{},
	}
}

func (f *fakeStore) GetGeneratedRule(host string) (*document.AdaptiveRule, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.generated[host]
	if !ok {
		return nil, false
	}
	return &r, true
}

func (f *fakeStore) SaveGeneratedRule(host string, rule document.AdaptiveRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generated[host] = rule
	return nil
}

func (f *fakeStore) PromotedAdapterForHost(host string) (*document.PromotedAdapter, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.promoted[host]
	if !ok {
		return nil, false
	}
	return &a, true
}

func (f *fakeStore) SavePromotedAdapter(host string, adapter document.PromotedAdapter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.promoted[host]; exists {
		return nil
	}
	f.promoted[host] = adapter
	return nil
}

func (f *fakeStore) RecordReplaySample(host string, sample document.ReplaySample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replay[host] = append(f.replay[host], sample)
	return nil
}

func (f *fakeStore) ReplaySamples(host string, limit int) []document.ReplaySample {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.replay[host]
	if limit <= 0 || limit >= len(all) {
		out := make([]document.ReplaySample, len(all))
		copy(out, all)
		return out
	}
	out := make([]document.ReplaySample, limit)
	copy(out, all[len(all)-limit:])
	return out
}

type fakeSynthesizer struct {
	rule *document.AdaptiveRule
	err  error
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, host, _, _ string) (*document.AdaptiveRule, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := *f.rule
	r.Host = host
	return &r, nil
}

const samplePage = `<html><head><title>Example Post</title></head><body>` +
	`<article><p>` + `Lorem ipsum dolor sit amet consectetur adipiscing elit sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. ` +
	`Ut enim ad minim veniam quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat.` +
	`</p></article></body></html>`

func sampleRule() document.AdaptiveRule {
	return document.AdaptiveRule{
		ContainerRegexes: []string{`(?is)<article[^>]*>(.*?)</article>`},
		Confidence:       0.8,
		Model:            "test-model",
	}
}

func TestApplyRule_ExtractsFromContainerRegex(t *testing.T) {
	candidate, err := ApplyRule("https://example.com/post", samplePage, "text/html", sampleRule(), true, 8000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.StrategyName != "llm_adaptive_generated" {
		t.Fatalf("unexpected strategy name: %s", candidate.StrategyName)
	}
	if len(candidate.RawContent) < 120 {
		t.Fatalf("expected content over 120 chars, got %d", len(candidate.RawContent))
	}
	if candidate.Title == nil || *candidate.Title != "Example Post" {
		t.Fatalf("unexpected title: %v", candidate.Title)
	}
}

func TestApplyRule_RejectsNoMatch(t *testing.T) {
	rule := document.AdaptiveRule{ContainerRegexes: []string{`(?is)<nonexistent[^>]*>(.*?)</nonexistent>`}}
	if _, err := ApplyRule("https://example.com", samplePage, "text/html", rule, false, 8000); err == nil {
		t.Fatal("expected error for no matching fragments")
	}
}

func TestApplyRule_RejectsTooShort(t *testing.T) {
	rule := document.AdaptiveRule{ContainerRegexes: []string{`(?is)<article[^>]*>(.*?)</article>`}}
	short := `<html><article><p>too short</p></article></html>`
	if _, err := ApplyRule("https://example.com", short, "text/html", rule, false, 8000); err == nil {
		t.Fatal("expected error for too-short content")
	}
}

func TestStrategy_GetCachedRule_HitsStoreThenCache(t *testing.T) {
	store := newFakeStore()
	rule := sampleRule()
	rule.Host = "example.com"
	rule.GeneratedAt = time.Now().UTC()
	_ = store.SaveGeneratedRule("example.com", rule)

	strategy := New(DefaultConfig(), store, nil)
	got, ok := strategy.GetCachedRule("example.com")
	if !ok || got.Model != "test-model" {
		t.Fatalf("expected store-backed cache hit, got %+v ok=%v", got, ok)
	}

	if _, ok := strategy.cacheGet("example.com"); !ok {
		t.Fatal("expected GetCachedRule to have warmed the in-memory cache")
	}
}

func TestStrategy_GetCachedRule_TTLExpiry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheTTL = time.Millisecond
	strategy := New(cfg, newFakeStore(), nil)

	rule := sampleRule()
	rule.Host = "example.com"
	rule.GeneratedAt = time.Now().UTC().Add(-time.Hour)
	strategy.cachePut(rule)

	if _, ok := strategy.GetCachedRule("example.com"); ok {
		t.Fatal("expected expired cache entry to miss")
	}
}

func TestStrategy_SynthesizeRule_GeneratesAndCaches(t *testing.T) {
	store := newFakeStore()
	rule := sampleRule()
	strategy := New(DefaultConfig(), store, &fakeSynthesizer{rule: &rule})

	got, generated, err := strategy.SynthesizeRule(context.Background(), "Example.com", "https://example.com/post", samplePage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !generated {
		t.Fatal("expected generated=true on first synthesis")
	}
	if got.Host != "example.com" {
		t.Fatalf("expected lowercased host, got %q", got.Host)
	}

	if _, ok := store.GetGeneratedRule("example.com"); !ok {
		t.Fatal("expected rule to be persisted to the store")
	}

	got2, generated2, err := strategy.SynthesizeRule(context.Background(), "example.com", "https://example.com/post", samplePage)
	if err != nil {
		t.Fatalf("unexpected error on cached path: %v", err)
	}
	if generated2 {
		t.Fatal("expected generated=false on cached hit")
	}
	if got2.Host != got.Host {
		t.Fatalf("unexpected cached rule: %+v", got2)
	}
}

func TestStrategy_SynthesizeRule_PropagatesOracleError(t *testing.T) {
	strategy := New(DefaultConfig(), newFakeStore(), &fakeSynthesizer{err: llmoracle.ErrLLMRejected})
	_, _, err := strategy.SynthesizeRule(context.Background(), "example.com", "https://example.com", samplePage)
	if !errors.Is(err, llmoracle.ErrLLMRejected) {
		t.Fatalf("expected ErrLLMRejected, got %v", err)
	}
}

func TestStrategy_EvaluateAndPromote_PromotesOnSuccess(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 4; i++ {
		_ = store.RecordReplaySample("example.com", document.ReplaySample{
			URL:     "https://example.com/post",
			Payload: samplePage,
		})
	}

	cfg := DefaultConfig()
	cfg.MinSuccessRate = 0.5
	cfg.MinAvgScore = 0.4
	cfg.MinSampleScore = 0.4
	strategy := New(cfg, store, nil)
	evaluation := strategy.EvaluateAndPromote("example.com", sampleRule(), 8000)
	if !evaluation.Promoted {
		t.Fatalf("expected promotion, got %+v", evaluation)
	}
	if _, ok := store.PromotedAdapterForHost("example.com"); !ok {
		t.Fatal("expected promoted adapter to be persisted")
	}
}

func TestStrategy_EvaluateAndPromote_InsufficientSamples(t *testing.T) {
	store := newFakeStore()
	_ = store.RecordReplaySample("example.com", document.ReplaySample{URL: "https://example.com", Payload: samplePage})

	strategy := New(DefaultConfig(), store, nil)
	evaluation := strategy.EvaluateAndPromote("example.com", sampleRule(), 8000)
	if evaluation.Promoted {
		t.Fatal("expected no promotion with too few samples")
	}
}

func TestStrategy_Extract_SynthesizesAndRecordsReplaySample(t *testing.T) {
	store := newFakeStore()
	rule := sampleRule()
	strategy := New(DefaultConfig(), store, &fakeSynthesizer{rule: &rule})

	ectx := &document.ExtractionContext{
		URL:      "https://example.com/post",
		MaxChars: 8000,
		Page: &document.FetchedPage{
			RequestedURL: "https://example.com/post",
			FinalURL:     "https://example.com/post",
			ContentType:  "text/html",
			Payload:      samplePage,
		},
	}

	candidate, err := strategy.Extract(context.Background(), ectx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.StrategyName != "llm_adaptive_generated" {
		t.Fatalf("unexpected strategy name: %s", candidate.StrategyName)
	}
	if _, ok := candidate.ExtractionMeta["promotion"]; !ok {
		t.Fatal("expected promotion evaluation to be attached to extraction meta")
	}

	samples := store.ReplaySamples("example.com", 0)
	if len(samples) != 1 {
		t.Fatalf("expected replay sample recorded unconditionally, got %d", len(samples))
	}
}

func TestStrategy_Extract_UsesCachedRuleWithoutResynthesizing(t *testing.T) {
	store := newFakeStore()
	rule := sampleRule()
	rule.Host = "example.com"
	rule.GeneratedAt = time.Now().UTC()
	_ = store.SaveGeneratedRule("example.com", rule)

	strategy := New(DefaultConfig(), store, &fakeSynthesizer{err: errors.New("synthesis should not be called")})

	ectx := &document.ExtractionContext{
		URL:      "https://example.com/post",
		MaxChars: 8000,
		Page: &document.FetchedPage{
			FinalURL:    "https://example.com/post",
			ContentType: "text/html",
			Payload:     samplePage,
		},
	}

	candidate, err := strategy.Extract(context.Background(), ectx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.StrategyName != "llm_adaptive_cached" {
		t.Fatalf("expected cached strategy name, got %s", candidate.StrategyName)
	}
}

func TestStrategy_EvaluateAndPromote_WriteOncePerHost(t *testing.T) {
	store := newFakeStore()
	_ = store.SavePromotedAdapter("example.com", document.PromotedAdapter{Name: "existing"})
	for i := 0; i < 4; i++ {
		_ = store.RecordReplaySample("example.com", document.ReplaySample{URL: "https://example.com", Payload: samplePage})
	}

	strategy := New(DefaultConfig(), store, nil)
	evaluation := strategy.EvaluateAndPromote("example.com", sampleRule(), 8000)
	if evaluation.Promoted {
		t.Fatal("expected no re-evaluation once a host is already promoted")
	}
	got, _ := store.PromotedAdapterForHost("example.com")
	if got.Name != "existing" {
		t.Fatalf("expected existing promotion to survive untouched, got %+v", got)
	}
}
