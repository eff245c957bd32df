package arxivblocks

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

var (
	collapseWhitespaceRegex  = regexp.MustCompile(`\s+`)
	beforeClosePunctRegex    = regexp.MustCompile(`\s+([,.;:!?%)\]}])`)
	afterOpenPunctRegex      = regexp.MustCompile(`([(\[{])\s+`)
	beforeClosingQuoteRegex  = regexp.MustCompile(`\s+([’”])`)
	afterOpeningQuoteRegex   = regexp.MustCompile(`([‘“])\s+`)
	anchorIDSanitizeRegex    = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
)

func sanitizeInlineText(v string) string {
	r := strings.NewReplacer("\u00a0", " ", "\u200b", "", "\ufeff", "")
	return r.Replace(v)
}

func normalizeInlineSpacing(v string) string {
	normalized := sanitizeInlineText(v)
	normalized = collapseWhitespaceRegex.ReplaceAllString(normalized, " ")
	normalized = beforeClosePunctRegex.ReplaceAllString(normalized, "$1")
	normalized = afterOpenPunctRegex.ReplaceAllString(normalized, "$1")
	normalized = beforeClosingQuoteRegex.ReplaceAllString(normalized, "$1")
	normalized = afterOpeningQuoteRegex.ReplaceAllString(normalized, "$1")
	return strings.TrimSpace(normalized)
}

func escapeMarkdownLinkLabel(v string) string {
	r := strings.NewReplacer(`\`, `\\`, "[", `\[`, "]", `\]`)
	return r.Replace(v)
}

func escapeMarkdownText(v string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		"`", "\\`",
		"*", `\*`,
		"_", `\_`,
		"[", `\[`,
		"]", `\]`,
		"<", `\<`,
		">", `\>`,
		"$", `\$`,
	)
	return r.Replace(v)
}

func buildReferenceAnchorID(v string) string {
	normalized := strings.ToLower(strings.Trim(anchorIDSanitizeRegex.ReplaceAllString(strings.TrimSpace(v), "-"), "-"))
	if normalized == "" {
		normalized = "item"
	}
	return "article-ref-" + normalized
}

func normalizeInlineHref(baseURL, rawHref string) string {
	href := strings.TrimSpace(rawHref)
	if href == "" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		base = &url.URL{}
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Fragment != "" {
		samePage := strings.HasPrefix(href, "#") ||
			(base.Scheme == resolved.Scheme && base.Host == resolved.Host && base.Path == resolved.Path)
		if samePage {
			return "#" + buildReferenceAnchorID(resolved.Fragment)
		}
	}
	return resolved.String()
}

func textRun(v string) (document.InlineRun, bool) {
	text := sanitizeInlineText(v)
	if text == "" {
		return document.InlineRun{}, false
	}
	return document.InlineRun{Type: "text", Text: text}, true
}

var wrapperRunTypes = map[string]struct{}{
	"em": {}, "strong": {}, "code": {}, "sub": {}, "sup": {},
	"underline": {}, "strike": {}, "smallcaps": {},
}

// normalizeInlineRunList merges adjacent text runs, elides empty wrappers,
// and guarantees link children default to a single text run.
func normalizeInlineRunList(runs []document.InlineRun) []document.InlineRun {
	var out []document.InlineRun
	for _, run := range runs {
		runType := strings.ToLower(strings.TrimSpace(run.Type))
		switch {
		case runType == "text":
			text := sanitizeInlineText(run.Text)
			if text == "" {
				continue
			}
			if n := len(out); n > 0 && out[n-1].Type == "text" {
				out[n-1].Text += text
				continue
			}
			out = append(out, document.InlineRun{Type: "text", Text: text})

		case runType == "math":
			text := cleanEquationTex(run.Text)
			if text == "" {
				continue
			}
			out = append(out, document.InlineRun{Type: "math", Text: text})

		case runType == "link":
			children := normalizeInlineRunList(run.Children)
			href := strings.TrimSpace(run.Href)
			if href == "" {
				out = append(out, children...)
				continue
			}
			if len(children) == 0 {
				label := normalizeInlineSpacing(run.Text)
				if label == "" {
					continue
				}
				children = []document.InlineRun{{Type: "text", Text: label}}
			}
			out = append(out, document.InlineRun{Type: "link", Href: href, Children: children})

		default:
			if _, ok := wrapperRunTypes[runType]; ok {
				children := normalizeInlineRunList(run.Children)
				if len(children) == 0 {
					if text := sanitizeInlineText(run.Text); text != "" {
						children = []document.InlineRun{{Type: "text", Text: text}}
					}
				}
				if len(children) == 0 {
					continue
				}
				out = append(out, document.InlineRun{Type: runType, Children: children})
				continue
			}

			text := sanitizeInlineText(run.Text)
			if text != "" {
				if n := len(out); n > 0 && out[n-1].Type == "text" {
					out[n-1].Text += text
				} else {
					out = append(out, document.InlineRun{Type: "text", Text: text})
				}
			} else if children := normalizeInlineRunList(run.Children); len(children) > 0 {
				out = append(out, children...)
			}
		}
	}
	return out
}

// extractInlineRunsFromChildren walks n's children and builds a normalized
// inline-run list, resolving hrefs against baseURL.
func extractInlineRunsFromChildren(n *html.Node, baseURL string) []document.InlineRun {
	var runs []document.InlineRun
	if n == nil {
		return runs
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		runs = append(runs, extractInlineRunsNode(c, baseURL)...)
	}
	return normalizeInlineRunList(runs)
}

func extractInlineRunsNode(n *html.Node, baseURL string) []document.InlineRun {
	if n == nil {
		return nil
	}
	if n.Type == html.TextNode {
		if r, ok := textRun(n.Data); ok {
			return []document.InlineRun{r}
		}
		return nil
	}
	if n.Type != html.ElementNode {
		return nil
	}

	switch n.Data {
	case "script", "style", "annotation":
		return nil
	case "br":
		if r, ok := textRun(" "); ok {
			return []document.InlineRun{r}
		}
		return nil
	case "cite":
		return extractCiteRuns(n, baseURL)
	case "math":
		if strings.ToLower(attr(n, "display")) != "block" {
			text := extractInlineMathText(n)
			if text == "" {
				return nil
			}
			return []document.InlineRun{{Type: "math", Text: text}}
		}
	case "a":
		href := normalizeInlineHref(baseURL, attr(n, "href"))
		children := extractInlineRunsFromChildren(n, baseURL)
		if href == "" {
			return children
		}
		if len(children) == 0 {
			label := normalizeInlineSpacing(getText(n, " ", false))
			if label == "" {
				return nil
			}
			children = []document.InlineRun{{Type: "text", Text: label}}
		}
		return []document.InlineRun{{Type: "link", Href: href, Children: children}}
	}

	children := extractInlineRunsFromChildren(n, baseURL)
	if len(children) == 0 {
		return nil
	}

	isItalic := n.Data == "em" || n.Data == "i" || hasClass(n, "ltx_font_italic")
	isBold := n.Data == "strong" || n.Data == "b" || hasClass(n, "ltx_font_bold")
	isCode := n.Data == "code" || n.Data == "tt" || hasClass(n, "ltx_font_typewriter")
	isSub := n.Data == "sub" || hasClass(n, "ltx_font_subscript")
	isSup := n.Data == "sup" || hasClass(n, "ltx_font_superscript")
	isUnderline := n.Data == "u" || n.Data == "ins" || hasClass(n, "ltx_font_underline")
	isStrike := n.Data == "s" || n.Data == "strike" || n.Data == "del" ||
		hasClass(n, "ltx_font_strike", "ltx_font_strikethrough")
	isSmallcaps := hasClass(n, "ltx_font_smallcaps", "ltx_font_smallcap")

	wrapped := children
	wrap := func(t string) {
		wrapped = []document.InlineRun{{Type: t, Children: wrapped}}
	}
	if isItalic {
		wrap("em")
	}
	if isBold {
		wrap("strong")
	}
	if isCode {
		wrap("code")
	}
	if isUnderline {
		wrap("underline")
	}
	if isStrike {
		wrap("strike")
	}
	if isSmallcaps {
		wrap("smallcaps")
	}
	if isSub {
		wrap("sub")
	}
	if isSup {
		wrap("sup")
	}
	return wrapped
}

var citationSplitRegex = regexp.MustCompile(`^(\s*[(\[]?\s*)(.*?)(\s*[)\]]?\s*)$`)

func wrapCitationPartWithLink(part, href string) []document.InlineRun {
	if strings.TrimSpace(part) == "" {
		if r, ok := textRun(part); ok {
			return []document.InlineRun{r}
		}
		return nil
	}
	prefix, label, suffix := "", strings.TrimSpace(part), ""
	if m := citationSplitRegex.FindStringSubmatch(part); m != nil {
		prefix, label, suffix = m[1], m[2], m[3]
	}
	normalizedLabel := normalizeInlineSpacing(label)
	if normalizedLabel == "" {
		if r, ok := textRun(part); ok {
			return []document.InlineRun{r}
		}
		return nil
	}
	var runs []document.InlineRun
	if r, ok := textRun(prefix); ok {
		runs = append(runs, r)
	}
	runs = append(runs, document.InlineRun{
		Type: "link", Href: href,
		Children: []document.InlineRun{{Type: "text", Text: normalizedLabel}},
	})
	if r, ok := textRun(suffix); ok {
		runs = append(runs, r)
	}
	return runs
}

// extractCiteRuns renders a <cite> as link-wrapped text: a single link
// spans the whole citation, or semicolon-delimited parts each get their
// own link when the anchor count matches the part count.
func extractCiteRuns(n *html.Node, baseURL string) []document.InlineRun {
	plainText := normalizeInlineSpacing(getText(n, " ", false))
	if plainText == "" {
		return nil
	}

	var links []string
	for _, a := range findAllDescendants(n, "a") {
		if href := normalizeInlineHref(baseURL, attr(a, "href")); href != "" {
			links = append(links, href)
		}
	}

	if len(links) == 0 {
		if r, ok := textRun(plainText); ok {
			return []document.InlineRun{r}
		}
		return nil
	}
	if len(links) == 1 {
		return wrapCitationPartWithLink(plainText, links[0])
	}

	parts := strings.Split(plainText, ";")
	if len(parts) != len(links) {
		if r, ok := textRun(plainText); ok {
			return []document.InlineRun{r}
		}
		return nil
	}

	var rendered []document.InlineRun
	for i, part := range parts {
		rendered = append(rendered, wrapCitationPartWithLink(part, links[i])...)
		if i < len(parts)-1 {
			if r, ok := textRun("; "); ok {
				rendered = append(rendered, r)
			}
		}
	}
	return normalizeInlineRunList(rendered)
}

func extractInlineMathText(n *html.Node) string {
	for _, a := range findAllDescendants(n, "annotation") {
		encoding := strings.ToLower(strings.TrimSpace(attr(a, "encoding")))
		if encoding != "application/x-tex" && encoding != "application/tex" && encoding != "latex" {
			continue
		}
		if tex := cleanEquationTex(getText(a, " ", true)); tex != "" {
			return tex
		}
	}
	if alt := cleanEquationTex(strings.TrimSpace(attr(n, "alttext"))); alt != "" {
		return alt
	}
	return normalizeInlineSpacing(getText(n, "", false))
}

func cleanEquationTex(v string) string {
	cleaned := strings.TrimSpace(sanitizeInlineText(v))
	if strings.HasPrefix(cleaned, "$$") && strings.HasSuffix(cleaned, "$$") && len(cleaned) > 4 {
		cleaned = strings.TrimSpace(cleaned[2 : len(cleaned)-2])
	}
	if strings.HasPrefix(cleaned, `\[`) && strings.HasSuffix(cleaned, `\]`) && len(cleaned) > 4 {
		cleaned = strings.TrimSpace(cleaned[2 : len(cleaned)-2])
	}
	return cleaned
}

func extractInlineRuns(n *html.Node, baseURL string) []document.InlineRun {
	return normalizeInlineRunList(extractInlineRunsFromChildren(n, baseURL))
}

func inlineRunsToText(runs []document.InlineRun) string {
	var sb strings.Builder
	for _, run := range runs {
		switch strings.ToLower(run.Type) {
		case "text":
			sb.WriteString(sanitizeInlineText(run.Text))
		case "math":
			sb.WriteString(cleanEquationTex(run.Text))
		default:
			if len(run.Children) > 0 {
				sb.WriteString(inlineRunsToText(run.Children))
			}
		}
	}
	return sb.String()
}

func inlineRunsToMarkdown(runs []document.InlineRun) string {
	var sb strings.Builder
	for _, run := range runs {
		t := strings.ToLower(run.Type)
		switch t {
		case "text":
			sb.WriteString(escapeMarkdownText(run.Text))
		case "math":
			if v := cleanEquationTex(run.Text); v != "" {
				sb.WriteString("$" + v + "$")
			}
		case "link":
			label := normalizeInlineSpacing(inlineRunsToText(run.Children))
			if run.Href != "" && label != "" {
				sb.WriteString("[" + escapeMarkdownLinkLabel(label) + "](<" + run.Href + ">)")
			} else if label != "" {
				sb.WriteString(escapeMarkdownText(label))
			}
		default:
			content := inlineRunsToMarkdown(run.Children)
			if content == "" {
				continue
			}
			switch t {
			case "em":
				sb.WriteString("*" + content + "*")
			case "strong":
				sb.WriteString("**" + content + "**")
			case "code":
				sb.WriteString("`" + strings.ReplaceAll(content, "`", "\\`") + "`")
			case "strike":
				sb.WriteString("~~" + content + "~~")
			default:
				sb.WriteString(content)
			}
		}
	}
	return sb.String()
}

func extractInlineText(n *html.Node, baseURL string) string {
	return normalizeInlineSpacing(inlineRunsToText(extractInlineRuns(n, baseURL)))
}

func extractInlineMarkdown(n *html.Node, baseURL string) string {
	return normalizeInlineSpacing(inlineRunsToMarkdown(extractInlineRuns(n, baseURL)))
}

func inlineRunsHaveStructure(runs []document.InlineRun) bool {
	for _, r := range runs {
		if strings.ToLower(r.Type) != "text" {
			return true
		}
	}
	return false
}
