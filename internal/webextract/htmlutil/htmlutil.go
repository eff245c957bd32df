// Package htmlutil implements the small HTML text utilities shared by the
// strategies: title/canonical extraction, tag stripping, and primary
// content candidate selection.
package htmlutil

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

var (
	titleRegex      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	canonicalRegex  = regexp.MustCompile(`(?is)<link[^>]+rel=["']canonical["'][^>]*href=["']([^"']+)["']`)
	scriptLikeRegex = regexp.MustCompile(`(?is)<(script|style|svg|noscript)\b[^>]*>.*?</(script|style|svg|noscript)>`)
	commentRegex    = regexp.MustCompile(`(?s)<!--.*?-->`)
	breakTagRegex   = regexp.MustCompile(`(?i)</(p|div|li|h\d|br|tr|section|article|main|blockquote|pre)>`)
	anyTagRegex     = regexp.MustCompile(`<[^>]+>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)

	arxivHTMLPathRegex      = regexp.MustCompile(`(?i)^/html/([^/?#]+)$`)
	arxivHTMLReferenceRegex = regexp.MustCompile(`(?i)/html/([^"'\s<>?#]+)`)
	arxivVersionSuffixRegex = regexp.MustCompile(`(?i)v\d+$`)

	// JSONLDScriptRegex matches <script type="application/ld+json"> bodies.
	JSONLDScriptRegex = regexp.MustCompile(`(?is)<script[^>]+type=["']application/ld\+json["'][^>]*>(.*?)</script>`)
)

// ExtractJSONLDBlocks returns the trimmed inner text of every JSON-LD
// script tag in pageHTML, in document order.
func ExtractJSONLDBlocks(pageHTML string) []string {
	var out []string
	for _, m := range JSONLDScriptRegex.FindAllStringSubmatch(pageHTML, -1) {
		if body := strings.TrimSpace(m[1]); body != "" {
			out = append(out, body)
		}
	}
	return out
}

// NormalizeWhitespace collapses runs of whitespace to a single space and
// trims the ends.
func NormalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " "))
}

// NormalizeTextPreserveParagraphs collapses intra-line whitespace while
// keeping at most one blank line between paragraphs, and trims leading and
// trailing blank lines.
func NormalizeTextPreserveParagraphs(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")

	var normalized []string
	for _, line := range lines {
		cleaned := NormalizeWhitespace(html.UnescapeString(line))
		if cleaned != "" {
			normalized = append(normalized, cleaned)
		} else if len(normalized) > 0 && normalized[len(normalized)-1] != "" {
			normalized = append(normalized, "")
		}
	}
	for len(normalized) > 0 && normalized[0] == "" {
		normalized = normalized[1:]
	}
	for len(normalized) > 0 && normalized[len(normalized)-1] == "" {
		normalized = normalized[:len(normalized)-1]
	}
	return strings.Join(normalized, "\n")
}

// ExtractTitle pulls the <title> element's decoded, whitespace-normalized
// text, or "" when absent. The XPath lookup via htmlquery is tried first;
// the hand-written regex only fires when the document doesn't parse well
// enough for htmlquery to find a <title> node at all.
func ExtractTitle(pageHTML string) string {
	if doc, err := htmlquery.Parse(strings.NewReader(pageHTML)); err == nil {
		if node := htmlquery.FindOne(doc, "//title"); node != nil {
			if text := NormalizeWhitespace(htmlquery.InnerText(node)); text != "" {
				return text
			}
		}
	}

	m := titleRegex.FindStringSubmatch(pageHTML)
	if m == nil {
		return ""
	}
	return NormalizeWhitespace(html.UnescapeString(m[1]))
}

// ExtractCanonicalURL resolves the page's canonical URL: the <link
// rel="canonical"> href if present, else fallbackURL, with the fragment
// stripped, and with the arXiv /html/<id> version-upgrade scan applied
// (spec §4.3's arXiv canonicalization). The htmlquery XPath lookup is the
// structured path; the regex is only a fallback for malformed documents.
func ExtractCanonicalURL(pageHTML, fallbackURL string) string {
	resolved := fallbackURL
	if value := canonicalHrefViaXPath(pageHTML); value != "" {
		resolved = resolveURLWithoutFragment(value, fallbackURL)
	} else if m := canonicalRegex.FindStringSubmatch(pageHTML); m != nil {
		if value := strings.TrimSpace(m[1]); value != "" {
			resolved = resolveURLWithoutFragment(value, fallbackURL)
		}
	} else {
		resolved = resolveURLWithoutFragment(fallbackURL, fallbackURL)
	}
	return normalizeArxivCanonicalURL(pageHTML, resolved)
}

func canonicalHrefViaXPath(pageHTML string) string {
	doc, err := htmlquery.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return ""
	}
	node := htmlquery.FindOne(doc, "//link[@rel='canonical']")
	if node == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.SelectAttr(node, "href"))
}

func resolveURLWithoutFragment(candidate, fallback string) string {
	resolved := resolveURL(fallback, candidate)
	return stripFragment(resolved)
}

// StripHTMLToText removes script/style/svg/noscript blocks and comments,
// converts known block-closing tags to newlines, strips the remaining
// tags, and normalizes the result.
func StripHTMLToText(pageHTML string) string {
	withoutScript := scriptLikeRegex.ReplaceAllString(pageHTML, " ")
	withoutComments := commentRegex.ReplaceAllString(withoutScript, " ")
	withLineBreaks := breakTagRegex.ReplaceAllString(withoutComments, "\n")
	text := anyTagRegex.ReplaceAllString(withLineBreaks, " ")
	return NormalizeTextPreserveParagraphs(text)
}

// ExtractPrimaryHTMLCandidates returns HTML fragments ordered by decreasing
// confidence of being the primary content: <article>/<main> containers,
// then <body>, then the concatenation of all <p> elements, falling back to
// the whole page when nothing else matched.
func ExtractPrimaryHTMLCandidates(pageHTML string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return []string{pageHTML}
	}

	var candidates []string
	doc.Find("article, main").Each(func(_ int, s *goquery.Selection) {
		if fragment, err := s.Html(); err == nil {
			if trimmed := strings.TrimSpace(fragment); trimmed != "" {
				candidates = append(candidates, trimmed)
			}
		}
	})

	if body := doc.Find("body").First(); body.Length() > 0 {
		if fragment, err := body.Html(); err == nil && strings.TrimSpace(fragment) != "" {
			candidates = append(candidates, fragment)
		}
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if fragment, err := goquery.OuterHtml(s); err == nil {
			paragraphs = append(paragraphs, fragment)
		}
	})
	if len(paragraphs) > 0 {
		candidates = append(candidates, strings.Join(paragraphs, "\n"))
	}

	if len(candidates) == 0 {
		candidates = append(candidates, pageHTML)
	}
	return candidates
}

// ReaderBlock is the flattened paragraph/heading split produced from plain
// text, used by the HTTP Readability strategy.
type ReaderBlock struct {
	ID   string
	Type string
	Text string
}

// BuildReaderBlocks splits normalized text on blank lines into a sequence
// of heading-like and paragraph blocks. A chunk is heading-like when it is
// short (<=90 runes) and does not end in sentence punctuation.
func BuildReaderBlocks(rawContent string) []ReaderBlock {
	normalized := NormalizeTextPreserveParagraphs(rawContent)
	if normalized == "" {
		return nil
	}

	var chunks []string
	for _, chunk := range regexp.MustCompile(`\n{2,}`).Split(normalized, -1) {
		trimmed := strings.TrimSpace(chunk)
		if trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}

	blocks := make([]ReaderBlock, 0, len(chunks))
	for i, chunk := range chunks {
		isHeadingLike := len([]rune(chunk)) <= 90 &&
			!strings.HasSuffix(chunk, ".") &&
			!strings.HasSuffix(chunk, "!") &&
			!strings.HasSuffix(chunk, "?")
		blockType := "paragraph"
		if isHeadingLike {
			blockType = "heading"
		}
		blocks = append(blocks, ReaderBlock{
			ID:   idFor(i + 1),
			Type: blockType,
			Text: chunk,
		})
	}
	return blocks
}

func idFor(n int) string {
	return "b" + itoa(n)
}

// ToDocumentBlocks projects ReaderBlocks into the shared document.Block
// model: "heading" becomes an "h2" block (reader blocks carry no level
// signal), "paragraph" stays "paragraph".
func ToDocumentBlocks(blocks []ReaderBlock) []document.Block {
	out := make([]document.Block, 0, len(blocks))
	for _, b := range blocks {
		blockType := "paragraph"
		if b.Type == "heading" {
			blockType = "h2"
		}
		out = append(out, document.Block{
			ID:   b.ID,
			Type: blockType,
			Text: b.Text,
		})
	}
	return out
}
