package adapters

import (
	"testing"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

type fakePromoted struct {
	byHost map[string]*document.PromotedAdapter
}

func (f *fakePromoted) PromotedAdapterForHost(host string) (*document.PromotedAdapter, bool) {
	a, ok := f.byHost[host]
	return a, ok
}

func TestGetAdapterForHost_StaticSuffixMatch(t *testing.T) {
	r := NewRegistry(nil)
	a, ok := r.GetAdapterForHost("blog.medium.com")
	if !ok || a.Name != "medium" {
		t.Fatalf("expected medium adapter, got %+v ok=%v", a, ok)
	}
}

func TestGetAdapterForHost_NoMatch(t *testing.T) {
	r := NewRegistry(nil)
	_, ok := r.GetAdapterForHost("unknown-blog.example.com")
	if ok {
		t.Fatal("expected no adapter match")
	}
}

func TestGetAdapterForHost_PromotedWins(t *testing.T) {
	promoted := &fakePromoted{byHost: map[string]*document.PromotedAdapter{
		"medium.com": {
			Name:             "llm-promoted:medium.com",
			HostSuffixes:     []string{"medium.com"},
			ContainerRegexes: []string{`(?is)<section[^>]*>(.*?)</section>`},
		},
	}}
	r := NewRegistry(promoted)
	a, ok := r.GetAdapterForHost("medium.com")
	if !ok || a.Name != "llm-promoted:medium.com" {
		t.Fatalf("expected promoted adapter to win, got %+v ok=%v", a, ok)
	}
}

func TestGetAdapterForHost_PromotedWithNoPatternsFallsBackToStatic(t *testing.T) {
	promoted := &fakePromoted{byHost: map[string]*document.PromotedAdapter{
		"medium.com": {Name: "llm-promoted:medium.com"},
	}}
	r := NewRegistry(promoted)
	a, ok := r.GetAdapterForHost("medium.com")
	if !ok || a.Name != "medium" {
		t.Fatalf("expected static fallback, got %+v ok=%v", a, ok)
	}
}
