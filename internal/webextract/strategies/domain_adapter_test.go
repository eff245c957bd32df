package strategies

import (
	"context"
	"testing"

	"github.com/Zemacs/openpaper/internal/webextract/adapters"
	"github.com/Zemacs/openpaper/internal/webextract/document"
)

const mediumPage = `<html><head><title>Great Post</title></head><body>` +
	`<article><p>` +
	`Lorem ipsum dolor sit amet consectetur adipiscing elit sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. ` +
	`Ut enim ad minim veniam quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat. Follow Me on Twitter.` +
	`</p></article></body></html>`

func TestDomainAdapterStrategy_ExtractsMediumArticle(t *testing.T) {
	strategy := &DomainAdapterStrategy{Registry: adapters.NewRegistry(nil)}
	ectx := &document.ExtractionContext{
		URL:      "https://medium.com/@someone/great-post",
		MaxChars: 8000,
		Page: &document.FetchedPage{
			FinalURL:    "https://medium.com/@someone/great-post",
			ContentType: "text/html",
			Payload:     mediumPage,
		},
	}

	candidate, err := strategy.Extract(context.Background(), ectx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.StrategyName != "domain_adapter" {
		t.Fatalf("unexpected strategy name: %s", candidate.StrategyName)
	}
	if candidate.Title == nil || *candidate.Title != "Great Post" {
		t.Fatalf("unexpected title: %v", candidate.Title)
	}
	if containsFollowMe(candidate.RawContent) {
		t.Fatal("expected drop-text pattern to strip Follow Me")
	}
}

func containsFollowMe(s string) bool {
	for i := 0; i+9 <= len(s); i++ {
		if s[i:i+9] == "Follow Me" {
			return true
		}
	}
	return false
}

func TestDomainAdapterStrategy_NoAdapterForUnknownHost(t *testing.T) {
	strategy := &DomainAdapterStrategy{Registry: adapters.NewRegistry(nil)}
	ectx := &document.ExtractionContext{
		URL:      "https://example.com/post",
		MaxChars: 8000,
		Page: &document.FetchedPage{
			FinalURL:    "https://example.com/post",
			ContentType: "text/html",
			Payload:     mediumPage,
		},
	}

	if _, err := strategy.Extract(context.Background(), ectx); err == nil {
		t.Fatal("expected error for host without a configured adapter")
	}
}
