package strategies

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/Zemacs/openpaper/internal/webextract/arxivblocks"
	"github.com/Zemacs/openpaper/internal/webextract/document"
	"github.com/Zemacs/openpaper/internal/webextract/fetch"
	"github.com/Zemacs/openpaper/internal/webextract/htmlutil"
)

const arxivHostSuffix = "arxiv.org"

var arxivHTMLPathRegex = regexp.MustCompile(`(?i)/html/`)

func isArxivURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(strings.TrimSpace(u.Host))
	return host == arxivHostSuffix || strings.HasSuffix(host, "."+arxivHostSuffix)
}

// ArxivHtmlStrategy runs the arXiv structural parser against LaTeXML-derived
// HTML pages served under /html/<id>.
type ArxivHtmlStrategy struct{}

func (s *ArxivHtmlStrategy) Name() string { return "arxiv_html" }

func (s *ArxivHtmlStrategy) Extract(_ context.Context, ectx *document.ExtractionContext) (document.ExtractionCandidate, error) {
	if !isArxivURL(ectx.URL) {
		return document.ExtractionCandidate{}, newError(ErrNoMatch, "url is not an arXiv host")
	}

	page := ectx.Page
	if page == nil {
		return document.ExtractionCandidate{}, newError(ErrNoMatch, "page not fetched")
	}
	finalURL := page.FinalURL
	if finalURL == "" {
		finalURL = ectx.URL
	}
	if !isArxivURL(finalURL) {
		return document.ExtractionCandidate{}, newError(ErrNoMatch, "url is not an arXiv host")
	}

	u, err := url.Parse(finalURL)
	if err != nil || !arxivHTMLPathRegex.MatchString(u.Path) {
		return document.ExtractionCandidate{}, newError(ErrNoMatch, "url is not an arXiv HTML document path")
	}
	if fetch.IsBinaryContentType(page.ContentType) {
		return document.ExtractionCandidate{}, newError(ErrBinaryPayload, "arXiv URL returned binary content instead of HTML")
	}

	payload := page.Payload
	if !strings.Contains(strings.ToLower(payload), "<html") {
		return document.ExtractionCandidate{}, newError(ErrNoMatch, "arXiv HTML payload is empty or malformed")
	}

	structured, err := arxivblocks.Extract(payload, finalURL, ectx.MaxChars)
	if err != nil {
		return document.ExtractionCandidate{}, newError(ErrNoMatch, err.Error())
	}

	rawContent := structured.RawContent
	if len(rawContent) < minContentChars {
		return document.ExtractionCandidate{}, newError(ErrContentTooShort, "arXiv HTML extraction produced insufficient readable content")
	}
	if len(rawContent) > ectx.MaxChars {
		rawContent = rawContent[:ectx.MaxChars]
	}

	title := htmlutil.ExtractTitle(payload)
	canonicalURL := htmlutil.ExtractCanonicalURL(payload, finalURL)

	blocks := structured.Blocks
	if len(blocks) == 0 {
		blocks = htmlutil.ToDocumentBlocks(htmlutil.BuildReaderBlocks(rawContent))
	}

	var titlePtr *string
	if title != "" {
		titlePtr = &title
	}

	return document.ExtractionCandidate{
		StrategyName:  s.Name(),
		URL:           canonicalURL,
		CanonicalURL:  canonicalURL,
		Title:         titlePtr,
		ContentFormat: "text",
		RawContent:    rawContent,
		ExtractionMeta: map[string]any{
			"method":       "arxiv_html",
			"host":         strings.ToLower(u.Host),
			"content_type": page.ContentType,
			"block_counts": structured.BlockCounts,
		},
		Blocks: blocks,
	}, nil
}
