package arxivblocks

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/Zemacs/openpaper/internal/webextract/document"
	"github.com/Zemacs/openpaper/internal/webextract/htmlutil"
)

func normalizeMultilineText(v string) string {
	return htmlutil.NormalizeTextPreserveParagraphs(v)
}

const (
	maxTableRows      = 24
	maxTableCols      = 10
	maxListItems      = 20
	maxCodeChars      = 3000
	maxEquationChars  = 1200
	maxTableCellChars = 280
	maxTableNotes     = 8
	maxReferenceChars = 1400
)

var headingLevelByTag = map[string]string{
	"h1": "h1", "h2": "h2", "h3": "h3", "h4": "h3", "h5": "h3", "h6": "h3",
}

var paragraphContainerClasses = []string{"ltx_para"}
var equationClasses = []string{"ltx_equation", "MathJax_Display", "math-display", "equation"}
var referenceItemClasses = []string{"ltx_bibitem"}

func isParagraphTag(n *html.Node) bool {
	if n.Data == "p" {
		return true
	}
	if n.Data != "div" {
		return false
	}
	return hasClass(n, paragraphContainerClasses...)
}

func isEquationTag(n *html.Node) bool {
	if n.Data == "math" && strings.ToLower(attr(n, "display")) == "block" {
		return true
	}
	return hasClass(n, equationClasses...)
}

func isDataTableTag(n *html.Node) bool {
	return n.Data == "table" && !hasClass(n, "ltx_equation")
}

func isSpanDataTableFigure(n *html.Node) bool {
	return n.Data == "figure" && hasClass(n, "ltx_table")
}

func isReferenceItemTag(n *html.Node) bool {
	if n.Data != "li" && n.Data != "div" {
		return false
	}
	return hasClass(n, referenceItemClasses...)
}

func isStructuredAncestorSelected(n *html.Node, selected map[*html.Node]struct{}) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if _, ok := selected[p]; ok {
			return true
		}
	}
	return false
}

func blockID(index int) string { return fmt.Sprintf("arxiv-%d", index) }

func extractHeadingBlock(n *html.Node, index int) (document.Block, bool) {
	runs := extractInlineRuns(n, "")
	text := normalizeInlineSpacing(inlineRunsToText(runs))
	if len([]rune(text)) < 2 {
		return document.Block{}, false
	}
	level := headingLevelByTag[n.Data]
	if level == "" {
		level = "h3"
	}
	block := document.Block{ID: blockID(index), Type: level, Text: text}
	if md := normalizeInlineSpacing(inlineRunsToMarkdown(runs)); md != "" && md != text {
		block.InlineMarkdown = md
	}
	if inlineRunsHaveStructure(runs) {
		block.InlineRuns = runs
	}
	return block, true
}

// extractParagraphBlock mirrors the original's div-container special case:
// a <div class="ltx_para"> that itself contains nested paragraph
// containers produces no block (its children will be walked instead), and
// structured descendants (figures, lists, tables, equations) are excluded
// from the text projection so they surface as their own blocks.
func extractParagraphBlock(n *html.Node, baseURL string, index int) (document.Block, bool) {
	textSource := n
	if n.Data == "div" {
		for _, child := range directElementChildren(n, "p", "div") {
			if isParagraphTag(child) {
				return document.Block{}, false
			}
		}
		textSource = cloneExcludingStructural(n)
	}

	runs := extractInlineRuns(textSource, baseURL)
	text := normalizeInlineSpacing(inlineRunsToText(runs))
	if len([]rune(text)) < 20 {
		return document.Block{}, false
	}
	block := document.Block{ID: blockID(index), Type: "paragraph", Text: text}
	if md := normalizeInlineSpacing(inlineRunsToMarkdown(runs)); md != "" && md != text {
		block.InlineMarkdown = md
	}
	if inlineRunsHaveStructure(runs) {
		block.InlineRuns = runs
	}
	return block, true
}

// cloneExcludingStructural returns a shallow copy of n's subtree with
// figure/ul/ol/pre/blockquote/table/equation descendants removed, so their
// content doesn't leak into the paragraph's text projection.
func cloneExcludingStructural(n *html.Node) *html.Node {
	clone := shallowCloneTree(n)
	var strip []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if isElement(c) {
				if c.Data == "figure" || c.Data == "ul" || c.Data == "ol" || c.Data == "pre" ||
					c.Data == "blockquote" || c.Data == "table" || isEquationTag(c) {
					strip = append(strip, c)
					continue
				}
				walk(c)
			}
		}
	}
	walk(clone)
	for _, s := range strip {
		s.Parent.RemoveChild(s)
	}
	return clone
}

func shallowCloneTree(n *html.Node) *html.Node {
	clone := &html.Node{Type: n.Type, Data: n.Data, Attr: append([]html.Attribute{}, n.Attr...)}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		clone.AppendChild(shallowCloneTree(c))
	}
	return clone
}

func extractListBlock(n *html.Node, index int) (document.Block, bool) {
	for _, child := range directElementChildren(n, "li", "div") {
		if isReferenceItemTag(child) {
			return document.Block{}, false
		}
	}
	var items []string
	for _, item := range directElementChildren(n, "li") {
		text := extractInlineText(item, "")
		if text == "" {
			continue
		}
		items = append(items, text)
		if len(items) >= maxListItems {
			break
		}
	}
	if len(items) == 0 {
		return document.Block{}, false
	}
	return document.Block{
		ID: blockID(index), Type: "list",
		Ordered: n.Data == "ol", Items: items,
	}, true
}

var decorativeImageMarkers = []string{"logo", "icon", "badge", "favicon", "orcid"}

func extractFigureBlock(n *html.Node, baseURL string, index int) (document.Block, bool) {
	img := findFirstDescendant(n, "img")
	if img == nil {
		return document.Block{}, false
	}
	src := strings.TrimSpace(attr(img, "src"))
	if src == "" {
		return document.Block{}, false
	}
	imageURL := resolveAssetURL(baseURL, src)
	if imageURL == "" {
		return document.Block{}, false
	}
	lowered := strings.ToLower(imageURL)
	for _, marker := range decorativeImageMarkers {
		if strings.Contains(lowered, marker) {
			return document.Block{}, false
		}
	}
	block := document.Block{ID: blockID(index), Type: "image", ImageURL: imageURL, Source: "arxiv_html_figure"}
	if caption := findFirstDescendant(n, "figcaption"); caption != nil {
		if c := normalizeWhitespaceText(getText(caption, " ", true)); c != "" {
			block.Caption = c
		}
	}
	return block, true
}

func resolveAssetURL(baseURL, relative string) string {
	relative = strings.TrimSpace(relative)
	if relative == "" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	dirPath := strings.TrimSuffix(base.Path, "/") + "/"
	assetBase := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: dirPath}
	ref, err := url.Parse(relative)
	if err != nil {
		return ""
	}
	return assetBase.ResolveReference(ref).String()
}

var (
	referenceArxivRegex = regexp.MustCompile(`(?i)\barXiv:([A-Za-z\-]+/\d{7}|\d{4}\.\d{4,5})(?:v\d+)?\b`)
	referenceDOIRegex   = regexp.MustCompile(`(?i)\b(10\.\d{4,9}/[-._;()/:A-Z0-9]+)\b`)
	referenceURLRegex   = regexp.MustCompile(`(?i)https?://[^\s)>\]]+`)
)

func detectReferenceLinks(text string) []document.ReferenceLink {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var links []document.ReferenceLink
	seen := map[string]struct{}{}
	add := func(href, kind string) {
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		if _, ok := seen[href]; ok {
			return
		}
		seen[href] = struct{}{}
		links = append(links, document.ReferenceLink{Kind: kind, Href: href})
	}

	if m := referenceArxivRegex.FindStringSubmatch(text); m != nil {
		add("https://arxiv.org/abs/"+m[1], "arxiv")
	}
	if m := referenceDOIRegex.FindStringSubmatch(text); m != nil {
		add("https://doi.org/"+strings.TrimRight(m[1], ".,;)"), "doi")
	}
	for _, m := range referenceURLRegex.FindAllString(text, -1) {
		add(strings.TrimRight(m, ".,;)"), "url")
	}

	if len(links) == 0 {
		q := text
		if len(q) > 320 {
			q = q[:320]
		}
		add("https://scholar.google.com/scholar?q="+url.QueryEscape(q), "search")
	}
	return links
}

func extractReferenceBlock(n *html.Node, index int) (document.Block, bool) {
	text := normalizeWhitespaceText(getText(n, " ", true))
	if text == "" {
		return document.Block{}, false
	}
	if len([]rune(text)) > maxReferenceChars {
		text = strings.TrimRight(string([]rune(text)[:maxReferenceChars]), " \t\n")
	}
	block := document.Block{ID: blockID(index), Type: "reference", Text: text}
	if rawID := strings.TrimSpace(attr(n, "id")); rawID != "" {
		block.AnchorID = buildReferenceAnchorID(rawID)
	}
	block.Links = detectReferenceLinks(text)
	return block, true
}

func normalizeWhitespaceText(v string) string {
	return collapseWhitespaceRegex.ReplaceAllString(strings.TrimSpace(v), " ")
}

func extractEquationNumber(n *html.Node) string {
	for _, class := range []string{"ltx_tag_equation", "ltx_eqn_tag", "ltx_tag"} {
		if m := findFirstByClass(n, class); m != nil {
			if v := normalizeWhitespaceText(getText(m, " ", true)); v != "" {
				return v
			}
		}
	}
	return ""
}

func extractEquationText(n *html.Node) string {
	var candidates []string
	seen := map[string]struct{}{}
	for _, m := range findAllDescendants(n, "math") {
		for _, a := range findAllDescendants(m, "annotation") {
			encoding := strings.ToLower(strings.TrimSpace(attr(a, "encoding")))
			if encoding != "application/x-tex" && encoding != "application/tex" && encoding != "latex" {
				continue
			}
			if tex := cleanEquationTex(getText(a, " ", true)); tex != "" {
				if _, ok := seen[tex]; !ok {
					seen[tex] = struct{}{}
					candidates = append(candidates, tex)
				}
			}
		}
		if alt := strings.TrimSpace(attr(m, "alttext")); alt != "" {
			if tex := cleanEquationTex(alt); tex != "" {
				if _, ok := seen[tex]; !ok {
					seen[tex] = struct{}{}
					candidates = append(candidates, tex)
				}
			}
		}
	}
	if len(candidates) > 0 {
		if len(candidates) == 1 {
			return candidates[0]
		}
		return strings.Join(candidates, ` \\ `)
	}

	for _, at := range []string{"data-tex", "latex", "tex"} {
		if v := cleanEquationTex(strings.TrimSpace(attr(n, at))); v != "" {
			return v
		}
	}

	fallback := normalizeWhitespaceText(getText(n, " ", true))
	number := extractEquationNumber(n)
	if number != "" && strings.HasSuffix(fallback, number) {
		fallback = strings.TrimSpace(strings.TrimSuffix(fallback, number))
	}
	return cleanEquationTex(fallback)
}

func extractEquationBlock(n *html.Node, index int) (document.Block, bool) {
	eq := strings.TrimSpace(extractEquationText(n))
	if eq == "" {
		return document.Block{}, false
	}
	if len([]rune(eq)) > maxEquationChars {
		eq = strings.TrimRight(string([]rune(eq)[:maxEquationChars]), " \t\n")
	}
	block := document.Block{ID: blockID(index), Type: "equation", EquationTex: eq}
	if num := extractEquationNumber(n); num != "" {
		block.EquationNumber = num
	}
	return block, true
}

func extractCodeBlock(n *html.Node, index int) (document.Block, bool) {
	text := normalizeMultilineText(getText(n, "\n", true))
	if text == "" {
		return document.Block{}, false
	}
	if len([]rune(text)) > maxCodeChars {
		text = strings.TrimRight(string([]rune(text)[:maxCodeChars]), " \t\n")
	}
	return document.Block{ID: blockID(index), Type: "code", Text: text}, true
}

func extractBlockquoteBlock(n *html.Node, baseURL string, index int) (document.Block, bool) {
	runs := extractInlineRuns(n, baseURL)
	text := normalizeInlineSpacing(inlineRunsToText(runs))
	if len([]rune(text)) < 10 {
		return document.Block{}, false
	}
	block := document.Block{ID: blockID(index), Type: "blockquote", Text: text}
	if md := normalizeInlineSpacing(inlineRunsToMarkdown(runs)); md != "" && md != text {
		block.InlineMarkdown = md
	}
	if inlineRunsHaveStructure(runs) {
		block.InlineRuns = runs
	}
	return block, true
}
