package strategies

import (
	"context"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	trafilatura "github.com/markusmobius/go-trafilatura"

	"github.com/Zemacs/openpaper/internal/webextract/document"
	"github.com/Zemacs/openpaper/internal/webextract/fetch"
	"github.com/Zemacs/openpaper/internal/webextract/htmlutil"
)

// minReadabilityChars is the floor below which go-readability's output is
// considered too thin to trust, triggering the go-trafilatura fallback pass.
const minReadabilityChars = 200

// HttpReadabilityStrategy is the generic HTML/text fallback: go-readability
// first, go-trafilatura as a second independent extractor when readability's
// output is too short, and the longest stripped-to-text primary HTML
// candidate (article/main, body, paragraphs) as the last resort. Non-HTML
// payloads are used whole after normalization.
type HttpReadabilityStrategy struct{}

func (s *HttpReadabilityStrategy) Name() string { return "http_readability" }

func (s *HttpReadabilityStrategy) Extract(_ context.Context, ectx *document.ExtractionContext) (document.ExtractionCandidate, error) {
	page := ectx.Page
	var payload, contentType string
	if page != nil {
		payload = page.Payload
		contentType = page.ContentType
	}

	if fetch.IsBinaryContentType(contentType) {
		return document.ExtractionCandidate{}, newError(ErrBinaryPayload, "binary payload cannot be extracted as readable article text")
	}
	if page != nil && page.BlockSignal != nil {
		return document.ExtractionCandidate{}, newError(ErrBlockedPage, page.BlockSignal.Message)
	}
	if fetch.LooksBlocked(payload, contentType) {
		return document.ExtractionCandidate{}, newError(ErrBlockedPage, "page appears to be blocked by anti-bot protections")
	}

	finalURL := ectx.URL
	if page != nil && page.FinalURL != "" {
		finalURL = page.FinalURL
	}

	var rawContent, title, canonicalURL, contentFormat string
	contentFormat = "text"

	looksLikeHTML := strings.Contains(contentType, "text/html") || strings.Contains(strings.ToLower(payload), "<html")
	if looksLikeHTML {
		rawContent = s.extractHTML(payload, finalURL)
		title = htmlutil.ExtractTitle(payload)
		canonicalURL = htmlutil.ExtractCanonicalURL(payload, finalURL)
	} else {
		rawContent = htmlutil.NormalizeTextPreserveParagraphs(payload)
		canonicalURL = finalURL
	}

	if len(rawContent) < minContentChars {
		return document.ExtractionCandidate{}, newError(ErrContentTooShort, "could not extract enough readable article content from URL")
	}
	if len(rawContent) > ectx.MaxChars {
		rawContent = rawContent[:ectx.MaxChars]
	}

	var titlePtr *string
	if title != "" {
		titlePtr = &title
	}

	return document.ExtractionCandidate{
		StrategyName:  s.Name(),
		URL:           ectx.URL,
		CanonicalURL:  canonicalURL,
		Title:         titlePtr,
		ContentFormat: contentFormat,
		RawContent:    rawContent,
		ExtractionMeta: map[string]any{
			"method":       "http_readability",
			"host":         hostOf(finalURL),
			"content_type": contentType,
		},
		Blocks: htmlutil.ToDocumentBlocks(htmlutil.BuildReaderBlocks(rawContent)),
	}, nil
}

// extractHTML runs go-readability first, falling back to go-trafilatura
// when readability's text is too thin, and finally to the
// primary-HTML-candidate scan when both libraries come up short.
func (s *HttpReadabilityStrategy) extractHTML(payload, pageURL string) string {
	parsedURL, _ := url.Parse(pageURL)

	if article, err := readability.FromReader(strings.NewReader(payload), parsedURL); err == nil {
		if text := strings.TrimSpace(article.TextContent); len(text) >= minReadabilityChars {
			return text
		}
	}

	if result, err := trafilatura.Extract(strings.NewReader(payload), trafilatura.Options{
		OriginalURL: parsedURL,
	}); err == nil && result != nil {
		if text := strings.TrimSpace(result.ContentText); len(text) >= minReadabilityChars {
			return text
		}
	}

	fragments := htmlutil.ExtractPrimaryHTMLCandidates(payload)
	var best string
	for _, fragment := range fragments {
		text := strings.TrimSpace(htmlutil.StripHTMLToText(fragment))
		if len(text) > len(best) {
			best = text
		}
	}
	return best
}
