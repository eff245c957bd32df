package strategies

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/Zemacs/openpaper/internal/webextract/adapters"
	"github.com/Zemacs/openpaper/internal/webextract/document"
	"github.com/Zemacs/openpaper/internal/webextract/htmlutil"
)

// DomainAdapterStrategy applies the static/promoted adapter registry's
// container and drop-text regexes against the fetched page.
type DomainAdapterStrategy struct {
	Registry *adapters.Registry
}

func (s *DomainAdapterStrategy) Name() string { return "domain_adapter" }

func (s *DomainAdapterStrategy) Extract(_ context.Context, ectx *document.ExtractionContext) (document.ExtractionCandidate, error) {
	page := ectx.Page
	finalURL := ectx.URL
	if page != nil && page.FinalURL != "" {
		finalURL = page.FinalURL
	}
	host := strings.ToLower(hostOf(finalURL))

	adapter, ok := s.Registry.GetAdapterForHost(host)
	if !ok {
		return document.ExtractionCandidate{}, newError(ErrNoMatch, "no domain adapter configured for host")
	}

	var payload string
	if page != nil {
		payload = page.Payload
	}

	var fragments []string
	for _, pattern := range adapter.HTMLContainerPatterns {
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
		return document.ExtractionCandidate{}, newError(ErrNoMatch, adapter.Name+" found no matching containers")
	}

	var rawContent string
	for _, fragment := range fragments {
		text := strings.TrimSpace(htmlutil.StripHTMLToText(fragment))
		if len(text) > len(rawContent) {
			rawContent = text
		}
	}
	if rawContent == "" {
		return document.ExtractionCandidate{}, newError(ErrNoMatch, adapter.Name+" produced empty content")
	}

	for _, pattern := range adapter.DropTextPatterns {
		re, err := regexp.Compile("(?is)" + pattern)
		if err != nil {
			continue
		}
		rawContent = re.ReplaceAllString(rawContent, "")
	}

	rawContent = htmlutil.NormalizeTextPreserveParagraphs(rawContent)
	if len(rawContent) < minContentChars {
		return document.ExtractionCandidate{}, newError(ErrContentTooShort, adapter.Name+" content too short")
	}
	if len(rawContent) > ectx.MaxChars {
		rawContent = rawContent[:ectx.MaxChars]
	}

	title := htmlutil.ExtractTitle(payload)
	canonicalURL := htmlutil.ExtractCanonicalURL(payload, finalURL)

	var titlePtr *string
	if title != "" {
		titlePtr = &title
	}

	contentType := ""
	if page != nil {
		contentType = page.ContentType
	}

	return document.ExtractionCandidate{
		StrategyName:  s.Name(),
		URL:           canonicalURL,
		CanonicalURL:  canonicalURL,
		Title:         titlePtr,
		ContentFormat: "text",
		RawContent:    rawContent,
		ExtractionMeta: map[string]any{
			"method":       "domain_adapter",
			"adapter_name": adapter.Name,
			"host":         host,
			"content_type": contentType,
		},
		Blocks: htmlutil.ToDocumentBlocks(htmlutil.BuildReaderBlocks(rawContent)),
	}, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
