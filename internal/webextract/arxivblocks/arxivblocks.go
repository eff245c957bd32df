package arxivblocks

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

var arxivRootSelectors = []func(*html.Node) *html.Node{
	func(n *html.Node) *html.Node {
		for _, c := range findAllDescendants(n, "article") {
			if hasClass(c, "ltx_document") {
				return c
			}
		}
		return nil
	},
	func(n *html.Node) *html.Node { return findFirstDescendant(n, "article") },
	func(n *html.Node) *html.Node { return findFirstDescendant(n, "main") },
	func(n *html.Node) *html.Node { return findFirstDescendant(n, "body") },
}

func selectRoot(doc *html.Node) *html.Node {
	for _, selector := range arxivRootSelectors {
		if node := selector(doc); node != nil {
			return node
		}
	}
	return doc
}

func rowToLine(row document.TableRow) string {
	var values []string
	for _, cell := range row {
		if t := strings.TrimSpace(cell.Text); t != "" {
			values = append(values, t)
		}
	}
	return strings.Join(values, " | ")
}

func legacyRowToLine(row []string) string {
	var values []string
	for _, v := range row {
		if t := strings.TrimSpace(v); t != "" {
			values = append(values, t)
		}
	}
	return strings.Join(values, " | ")
}

func blockToText(block document.Block) string {
	switch block.Type {
	case "h1", "h2", "h3", "paragraph", "blockquote", "code", "reference":
		return normalizeMultilineText(block.Text)
	case "equation":
		return normalizeMultilineText(block.EquationTex)
	case "list":
		var lines []string
		for _, item := range block.Items {
			if t := strings.TrimSpace(item); t != "" {
				lines = append(lines, "- "+t)
			}
		}
		return normalizeMultilineText(strings.Join(lines, "\n"))
	case "table":
		var tableLines []string
		if len(block.HeaderRows) > 0 {
			rows := block.HeaderRows
			if len(rows) > 3 {
				rows = rows[:3]
			}
			for _, row := range rows {
				if line := rowToLine(row); line != "" {
					tableLines = append(tableLines, line)
				}
			}
		} else if len(block.Columns) > 0 {
			if line := legacyRowToLine(block.Columns); line != "" {
				tableLines = append(tableLines, line)
			}
		}
		if len(block.BodyRows) > 0 {
			rows := block.BodyRows
			if len(rows) > 8 {
				rows = rows[:8]
			}
			for _, row := range rows {
				if line := rowToLine(row); line != "" {
					tableLines = append(tableLines, line)
				}
			}
		} else {
			rows := block.Rows
			if len(rows) > 8 {
				rows = rows[:8]
			}
			for _, row := range rows {
				if line := legacyRowToLine(row); line != "" {
					tableLines = append(tableLines, line)
				}
			}
		}
		var parts []string
		if caption := strings.TrimSpace(block.Caption); caption != "" {
			parts = append(parts, caption)
		}
		parts = append(parts, tableLines...)
		if len(block.Notes) > 0 {
			notes := block.Notes
			if len(notes) > maxTableNotes {
				notes = notes[:maxTableNotes]
			}
			parts = append(parts, notes...)
		}
		return normalizeMultilineText(strings.Join(parts, "\n"))
	case "image":
		return normalizeMultilineText(block.Caption)
	default:
		return ""
	}
}

func appendUniqueSegment(segments []string, text string) []string {
	normalized := normalizeMultilineText(text)
	if normalized == "" {
		return segments
	}
	lowered := strings.ToLower(normalized)
	for _, existing := range segments {
		existingLowered := strings.ToLower(existing)
		if lowered == existingLowered {
			return segments
		}
		if len([]rune(lowered)) >= 64 && strings.Contains(existingLowered, lowered) {
			return segments
		}
		if len([]rune(existingLowered)) >= 64 && strings.Contains(lowered, existingLowered) {
			return segments
		}
	}
	return append(segments, normalized)
}

// Extract walks pageHTML's arXiv LaTeXML-derived DOM in document order,
// dispatching each element to the first matching block extractor by tag
// type priority, and projects the resulting blocks into deduplicated
// plain-text segments capped at maxChars.
func Extract(pageHTML, baseURL string, maxChars int) (*document.ArxivStructuredContent, error) {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil, err
	}
	root := selectRoot(doc)

	selected := map[*html.Node]struct{}{}
	var blocks []document.Block
	index := 1

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !isElement(c) {
				continue
			}
			if !isStructuredAncestorSelected(c, selected) {
				block, ok := dispatchBlock(c, baseURL, index)
				if ok {
					isNonExclusiveParagraphDiv := block.Type == "paragraph" && c.Data == "div"
					if !isNonExclusiveParagraphDiv {
						selected[c] = struct{}{}
					}
					blocks = append(blocks, block)
					index++
				}
			}
			walk(c)
		}
	}
	walk(root)

	var segments []string
	for _, block := range blocks {
		if text := blockToText(block); text != "" {
			segments = appendUniqueSegment(segments, text)
		}
	}

	rawContent := normalizeMultilineText(strings.Join(segments, "\n\n"))
	if maxChars > 0 {
		runes := []rune(rawContent)
		if len(runes) > maxChars {
			rawContent = strings.TrimRight(string(runes[:maxChars]), " \t\n")
		}
	}

	blockCounts := map[string]int{}
	for _, block := range blocks {
		key := block.Type
		if key == "" {
			key = "unknown"
		}
		blockCounts[key]++
	}

	return &document.ArxivStructuredContent{
		RawContent:  rawContent,
		Blocks:      blocks,
		BlockCounts: blockCounts,
	}, nil
}

func dispatchBlock(n *html.Node, baseURL string, index int) (document.Block, bool) {
	switch {
	case headingLevelByTag[n.Data] != "":
		return extractHeadingBlock(n, index)
	case isReferenceItemTag(n):
		return extractReferenceBlock(n, index)
	case isEquationTag(n):
		return extractEquationBlock(n, index)
	case isDataTableTag(n):
		return extractTableBlock(n, index)
	case isSpanDataTableFigure(n):
		return extractSpanTableFigureBlock(n, index)
	case n.Data == "figure":
		return extractFigureBlock(n, baseURL, index)
	case n.Data == "ul" || n.Data == "ol":
		return extractListBlock(n, index)
	case n.Data == "pre":
		return extractCodeBlock(n, index)
	case n.Data == "blockquote":
		return extractBlockquoteBlock(n, baseURL, index)
	case isParagraphTag(n):
		return extractParagraphBlock(n, baseURL, index)
	default:
		return document.Block{}, false
	}
}
