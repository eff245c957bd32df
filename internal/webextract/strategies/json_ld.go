package strategies

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Zemacs/openpaper/internal/webextract/document"
	"github.com/Zemacs/openpaper/internal/webextract/htmlutil"
)

var jsonLDTitleKeys = []string{"headline", "name", "title"}
var jsonLDTextKeys = []string{"articleBody", "text", "description"}

// findLongTextField walks a gjson.Result depth-first looking for the first
// string field named articleBody/text/description that is at least
// minContentChars long, matching _find_long_text_field's traversal order
// (named keys checked before descending into children).
func findLongTextField(node gjson.Result) string {
	if node.IsObject() {
		for _, key := range jsonLDTextKeys {
			value := node.Get(key)
			if value.Type == gjson.String && len(strings.TrimSpace(value.String())) >= minContentChars {
				return value.String()
			}
		}
		var found string
		node.ForEach(func(_, value gjson.Result) bool {
			if nested := findLongTextField(value); nested != "" {
				found = nested
				return false
			}
			return true
		})
		return found
	}
	if node.IsArray() {
		var found string
		node.ForEach(func(_, value gjson.Result) bool {
			if nested := findLongTextField(value); nested != "" {
				found = nested
				return false
			}
			return true
		})
		return found
	}
	return ""
}

func firstJSONLDTitle(node gjson.Result) string {
	for _, key := range jsonLDTitleKeys {
		if value := node.Get(key); value.Type == gjson.String {
			return value.String()
		}
	}
	return ""
}

// JsonLdStrategy extracts article content from <script type="application/ld+json">
// blobs without declaring a struct for every publisher's schema.org shape.
type JsonLdStrategy struct{}

func (s *JsonLdStrategy) Name() string { return "json_ld" }

func (s *JsonLdStrategy) Extract(_ context.Context, ectx *document.ExtractionContext) (document.ExtractionCandidate, error) {
	page := ectx.Page
	var payload string
	if page != nil {
		payload = page.Payload
	}

	blocks := htmlutil.ExtractJSONLDBlocks(payload)
	if len(blocks) == 0 {
		return document.ExtractionCandidate{}, newError(ErrNoMatch, "no JSON-LD payload found")
	}

	var candidates []gjson.Result
	for _, block := range blocks {
		if !gjson.Valid(block) {
			continue
		}
		parsed := gjson.Parse(block)
		if parsed.IsArray() {
			parsed.ForEach(func(_, item gjson.Result) bool {
				if item.IsObject() {
					candidates = append(candidates, item)
				}
				return true
			})
		} else if parsed.IsObject() {
			candidates = append(candidates, parsed)
		}
	}
	if len(candidates) == 0 {
		return document.ExtractionCandidate{}, newError(ErrNoMatch, "no JSON-LD payload found")
	}

	var title, bestText string
	for _, candidate := range candidates {
		if title == "" {
			title = firstJSONLDTitle(candidate)
		}
		if text := findLongTextField(candidate); text != "" && len(text) > len(bestText) {
			bestText = text
		}
	}
	if bestText == "" {
		return document.ExtractionCandidate{}, newError(ErrNoMatch, "JSON-LD did not contain a usable article body")
	}

	rawContent := htmlutil.NormalizeTextPreserveParagraphs(bestText)
	if len(rawContent) < minContentChars {
		return document.ExtractionCandidate{}, newError(ErrContentTooShort, "JSON-LD content too short")
	}
	if len(rawContent) > ectx.MaxChars {
		rawContent = rawContent[:ectx.MaxChars]
	}

	finalURL := ectx.URL
	if page != nil && page.FinalURL != "" {
		finalURL = page.FinalURL
	}
	if title == "" {
		title = htmlutil.ExtractTitle(payload)
	}

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
		URL:           ectx.URL,
		CanonicalURL:  htmlutil.ExtractCanonicalURL(payload, finalURL),
		Title:         titlePtr,
		ContentFormat: "text",
		RawContent:    rawContent,
		ExtractionMeta: map[string]any{
			"method":       "json_ld",
			"host":         hostOf(finalURL),
			"content_type": contentType,
		},
		Blocks: htmlutil.ToDocumentBlocks(htmlutil.BuildReaderBlocks(rawContent)),
	}, nil
}
