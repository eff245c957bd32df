package rulestore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "rules.json"))
}

func TestSaveAndGetGeneratedRule(t *testing.T) {
	s := newTestStore(t)
	rule := document.AdaptiveRule{
		ContainerRegexes: []string{`(?is)<article>(.*?)</article>`},
		Confidence:       0.8,
		Model:            "test-model",
	}
	if err := s.SaveGeneratedRule("Example.COM", rule); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok := s.GetGeneratedRule("example.com")
	if !ok {
		t.Fatal("expected rule to be found")
	}
	if got.Host != "example.com" || got.Confidence != 0.8 {
		t.Fatalf("unexpected rule: %+v", got)
	}
}

func TestPromotedAdapterForHost_SuffixMatch(t *testing.T) {
	s := newTestStore(t)
	if err := s.SavePromotedAdapter("example.com", document.PromotedAdapter{
		Name:             "llm-promoted:example.com",
		ContainerRegexes: []string{`(?is)<main>(.*?)</main>`},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	a, ok := s.PromotedAdapterForHost("blog.example.com")
	if !ok || a.Name != "llm-promoted:example.com" {
		t.Fatalf("expected suffix match, got %+v ok=%v", a, ok)
	}
}

func TestSavePromotedAdapter_WriteOnce(t *testing.T) {
	s := newTestStore(t)
	first := document.PromotedAdapter{Name: "first"}
	second := document.PromotedAdapter{Name: "second"}
	if err := s.SavePromotedAdapter("example.com", first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := s.SavePromotedAdapter("example.com", second); err != nil {
		t.Fatalf("save second: %v", err)
	}
	a, _ := s.PromotedAdapterForHost("example.com")
	if a.Name != "first" {
		t.Fatalf("expected write-once to keep first promotion, got %+v", a)
	}
}

func TestRecordReplaySample_BoundedFIFO(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < ReplayMaxSamplesPerHost+5; i++ {
		if err := s.RecordReplaySample("example.com", document.ReplaySample{
			URL:        "https://example.com/a",
			Payload:    "x",
			CapturedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	samples := s.ReplaySamples("example.com", 0)
	if len(samples) != ReplayMaxSamplesPerHost {
		t.Fatalf("expected %d samples, got %d", ReplayMaxSamplesPerHost, len(samples))
	}
}

func TestRecordReplaySample_TruncatesPayload(t *testing.T) {
	s := newTestStore(t)
	big := make([]byte, ReplayMaxPayloadChars+1000)
	for i := range big {
		big[i] = 'a'
	}
	if err := s.RecordReplaySample("example.com", document.ReplaySample{Payload: string(big)}); err != nil {
		t.Fatalf("record: %v", err)
	}
	samples := s.ReplaySamples("example.com", 0)
	if len(samples) != 1 || len(samples[0].Payload) != ReplayMaxPayloadChars {
		t.Fatalf("expected truncated payload, got len %d", len(samples[0].Payload))
	}
}

func TestGetGeneratedRule_MissingHost(t *testing.T) {
	s := newTestStore(t)
	if _, ok := s.GetGeneratedRule("nowhere.example"); ok {
		t.Fatal("expected no rule")
	}
}
