package strategies

import (
	"context"
	"strings"
	"testing"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

const arxivSamplePage = `<html><head><title>A Paper About Things</title></head><body>` +
	`<article class="ltx_document">` +
	`<h1 class="ltx_title">A Paper About Things</h1>` +
	`<div class="ltx_para"><p class="ltx_p">` +
	`This paper studies a broad class of problems that arise when combining several independent subsystems ` +
	`into a single coherent pipeline, and proposes a general framework for reasoning about their interactions.` +
	`</p></div>` +
	`</article></body></html>`

func TestArxivHtmlStrategy_ExtractsFromHTMLPath(t *testing.T) {
	strategy := &ArxivHtmlStrategy{}
	ectx := &document.ExtractionContext{
		URL:      "https://arxiv.org/html/2401.00001",
		MaxChars: 8000,
		Page: &document.FetchedPage{
			FinalURL:    "https://arxiv.org/html/2401.00001",
			ContentType: "text/html",
			Payload:     arxivSamplePage,
		},
	}

	candidate, err := strategy.Extract(context.Background(), ectx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.StrategyName != "arxiv_html" {
		t.Fatalf("unexpected strategy name: %s", candidate.StrategyName)
	}
	if !strings.Contains(candidate.RawContent, "coherent pipeline") {
		t.Fatalf("expected paper body in extracted content, got: %s", candidate.RawContent)
	}
}

func TestArxivHtmlStrategy_RejectsNonArxivHost(t *testing.T) {
	strategy := &ArxivHtmlStrategy{}
	ectx := &document.ExtractionContext{
		URL:      "https://example.com/html/2401.00001",
		MaxChars: 8000,
		Page: &document.FetchedPage{
			FinalURL:    "https://example.com/html/2401.00001",
			ContentType: "text/html",
			Payload:     arxivSamplePage,
		},
	}

	if _, err := strategy.Extract(context.Background(), ectx); err == nil {
		t.Fatal("expected error for non-arXiv host")
	}
}

func TestArxivHtmlStrategy_RejectsNonHTMLPath(t *testing.T) {
	strategy := &ArxivHtmlStrategy{}
	ectx := &document.ExtractionContext{
		URL:      "https://arxiv.org/abs/2401.00001",
		MaxChars: 8000,
		Page: &document.FetchedPage{
			FinalURL:    "https://arxiv.org/abs/2401.00001",
			ContentType: "text/html",
			Payload:     arxivSamplePage,
		},
	}

	if _, err := strategy.Extract(context.Background(), ectx); err == nil {
		t.Fatal("expected error for non /html/ path")
	}
}
