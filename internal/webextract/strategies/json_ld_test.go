package strategies

import (
	"context"
	"testing"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

const jsonLDPage = `<html><head><title>Fallback Title</title>` +
	`<script type="application/ld+json">` +
	`{"@context":"https://schema.org","@type":"Article","headline":"JSON-LD Headline",` +
	`"articleBody":"Lorem ipsum dolor sit amet consectetur adipiscing elit sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam."}` +
	`</script></head><body><p>unused body</p></body></html>`

func TestJsonLdStrategy_ExtractsArticleBody(t *testing.T) {
	strategy := &JsonLdStrategy{}
	ectx := &document.ExtractionContext{
		URL:      "https://example.com/post",
		MaxChars: 8000,
		Page: &document.FetchedPage{
			FinalURL:    "https://example.com/post",
			ContentType: "text/html",
			Payload:     jsonLDPage,
		},
	}

	candidate, err := strategy.Extract(context.Background(), ectx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Title == nil || *candidate.Title != "JSON-LD Headline" {
		t.Fatalf("unexpected title: %v", candidate.Title)
	}
	if len(candidate.RawContent) < 120 {
		t.Fatalf("expected article body content, got %q", candidate.RawContent)
	}
}

func TestJsonLdStrategy_NoBlocksFound(t *testing.T) {
	strategy := &JsonLdStrategy{}
	ectx := &document.ExtractionContext{
		URL:      "https://example.com/post",
		MaxChars: 8000,
		Page: &document.FetchedPage{
			FinalURL:    "https://example.com/post",
			ContentType: "text/html",
			Payload:     `<html><body><p>no json-ld here</p></body></html>`,
		},
	}

	if _, err := strategy.Extract(context.Background(), ectx); err == nil {
		t.Fatal("expected error when no JSON-LD blocks are present")
	}
}

func TestJsonLdStrategy_ArrayPayload(t *testing.T) {
	strategy := &JsonLdStrategy{}
	payload := `<html><head><script type="application/ld+json">` +
		`[{"@type":"BreadcrumbList"},{"@type":"Article","name":"Second Item Title",` +
		`"text":"Lorem ipsum dolor sit amet consectetur adipiscing elit sed do eiusmod tempor incididunt ut labore et dolore magna aliqua ut enim."}]` +
		`</script></head><body></body></html>`
	ectx := &document.ExtractionContext{
		URL:      "https://example.com/post",
		MaxChars: 8000,
		Page: &document.FetchedPage{
			FinalURL:    "https://example.com/post",
			ContentType: "text/html",
			Payload:     payload,
		},
	}

	candidate, err := strategy.Extract(context.Background(), ectx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Title == nil || *candidate.Title != "Second Item Title" {
		t.Fatalf("unexpected title: %v", candidate.Title)
	}
}
