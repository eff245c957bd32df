// Package arxivblocks implements the ArXiv Structural Parser (spec §4.4):
// a DOM walk over arXiv's LaTeXML-derived HTML that emits typed content
// blocks (headings, paragraphs, lists, tables, equations, code,
// blockquotes, figures, references) with a normalized inline-run model.
package arxivblocks

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

func isElement(n *html.Node) bool { return n != nil && n.Type == html.ElementNode }

func tagName(n *html.Node) string {
	if n == nil {
		return ""
	}
	return n.Data
}

func attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func classSet(n *html.Node) map[string]struct{} {
	out := map[string]struct{}{}
	for _, c := range strings.Fields(attr(n, "class")) {
		c = strings.TrimSpace(c)
		if c != "" {
			out[c] = struct{}{}
		}
	}
	return out
}

func hasClass(n *html.Node, candidates ...string) bool {
	classes := classSet(n)
	for _, c := range candidates {
		if _, ok := classes[c]; ok {
			return true
		}
	}
	return false
}

var (
	spanClassRegexMu sync.Mutex
	spanClassRegex   = map[string]*regexp.Regexp{}
)

func classSpanValue(n *html.Node, prefix string, def int) int {
	spanClassRegexMu.Lock()
	re, ok := spanClassRegex[prefix]
	if !ok {
		re = regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `_(\d+)$`)
		spanClassRegex[prefix] = re
	}
	spanClassRegexMu.Unlock()
	for c := range classSet(n) {
		if m := re.FindStringSubmatch(c); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
				return v
			}
		}
	}
	return def
}

func parsePositiveInt(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// directElementChildren returns n's direct children that are elements.
func directElementChildren(n *html.Node, tagNames ...string) []*html.Node {
	var out []*html.Node
	if n == nil {
		return out
	}
	want := map[string]struct{}{}
	for _, t := range tagNames {
		want[t] = struct{}{}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !isElement(c) {
			continue
		}
		if len(want) == 0 {
			out = append(out, c)
			continue
		}
		if _, ok := want[c.Data]; ok {
			out = append(out, c)
		}
	}
	return out
}

// findAllDescendants returns all descendant elements matching tagNames, in
// document order, regardless of depth (mirrors bs4's find_all).
func findAllDescendants(n *html.Node, tagNames ...string) []*html.Node {
	var out []*html.Node
	want := map[string]struct{}{}
	for _, t := range tagNames {
		want[t] = struct{}{}
	}
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if isElement(c) {
				if _, ok := want[c.Data]; ok || len(tagNames) == 0 {
					out = append(out, c)
				}
				walk(c)
			}
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// findAllByClass returns all descendant elements (any tag) carrying any of
// the given classes, in document order.
func findAllByClass(n *html.Node, classNames ...string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if isElement(c) {
				if hasClass(c, classNames...) {
					out = append(out, c)
				}
				walk(c)
			}
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

func directElementChildrenByClass(n *html.Node, classNames ...string) []*html.Node {
	var out []*html.Node
	if n == nil {
		return out
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c) && hasClass(c, classNames...) {
			out = append(out, c)
		}
	}
	return out
}

func findFirstDescendant(n *html.Node, tagNames ...string) *html.Node {
	matches := findAllDescendants(n, tagNames...)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

func findFirstByClass(n *html.Node, classNames ...string) *html.Node {
	matches := findAllByClass(n, classNames...)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

func findParentByTagOrClass(n *html.Node, tagName string) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if isElement(p) && p.Data == tagName {
			return p
		}
	}
	return nil
}

// getText concatenates all descendant text nodes, joined by sep, mirroring
// bs4's Tag.get_text(sep, strip=...).
func getText(n *html.Node, sep string, strip bool) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				text := c.Data
				if strip {
					text = strings.TrimSpace(text)
				}
				if text != "" {
					parts = append(parts, text)
				}
			case html.ElementNode:
				walk(c)
			}
		}
	}
	if n != nil {
		walk(n)
	}
	return strings.Join(parts, sep)
}
