package strategies

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Zemacs/openpaper/internal/webextract/document"
	"github.com/Zemacs/openpaper/internal/webextract/htmlutil"
)

var xStatusHosts = map[string]struct{}{
	"x.com":              {},
	"www.x.com":          {},
	"twitter.com":        {},
	"www.twitter.com":    {},
	"mobile.x.com":       {},
	"mobile.twitter.com": {},
}

// parseXStatusURL extracts the (user, statusID) pair from an X/Twitter
// status URL across its several path shapes: /i/status/{id},
// /i/web/status/{id}, /status/{id}, and /{user}/status/{id}.
func parseXStatusURL(rawURL string) (user, statusID string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false
	}
	host := strings.ToLower(u.Host)
	if _, known := xStatusHosts[host]; !known {
		return "", "", false
	}

	var segments []string
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	isDigits := func(s string) bool {
		if s == "" {
			return false
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	}

	switch {
	case len(segments) >= 3 && segments[0] == "i" && segments[1] == "status" && isDigits(segments[2]):
		return "", segments[2], true
	case len(segments) >= 4 && segments[0] == "i" && segments[1] == "web" && segments[2] == "status" && isDigits(segments[3]):
		return "", segments[3], true
	case len(segments) >= 2 && segments[0] == "status" && isDigits(segments[1]):
		return "", segments[1], true
	case len(segments) >= 3 && segments[1] == "status" && isDigits(segments[2]):
		return segments[0], segments[2], true
	default:
		return "", "", false
	}
}

// XStatusApiStrategy resolves an X/Twitter status link via the fxtwitter,
// then vxtwitter, JSON mirror APIs, which return the tweet body without
// needing an authenticated X API client.
type XStatusApiStrategy struct {
	Client *http.Client
}

func (s *XStatusApiStrategy) Name() string { return "x_status_api" }

func (s *XStatusApiStrategy) httpClient() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

type xStatusProvider struct {
	name    string
	urlFunc func(pathPrefix string) string
	build   func(sourceURL string, payload gjson.Result) (document.ExtractionCandidate, bool)
}

func (s *XStatusApiStrategy) Extract(ctx context.Context, ectx *document.ExtractionContext) (document.ExtractionCandidate, error) {
	user, statusID, ok := parseXStatusURL(ectx.URL)
	if !ok {
		return document.ExtractionCandidate{}, newError(ErrNoMatch, "URL is not an X/Twitter status link")
	}

	pathPrefix := "/status/" + statusID
	if user != "" {
		pathPrefix = "/" + user + "/status/" + statusID
	}

	providers := []xStatusProvider{
		{
			name:    "api.fxtwitter.com",
			urlFunc: func(p string) string { return "https://api.fxtwitter.com" + p },
			build:   buildCandidateFromFxtwitter,
		},
		{
			name:    "api.vxtwitter.com",
			urlFunc: func(p string) string { return "https://api.vxtwitter.com" + p },
			build:   buildCandidateFromVxtwitter,
		},
	}

	timeout := ectx.Timeout
	if timeout < 6*time.Second {
		timeout = 6 * time.Second
	}
	if timeout > 20*time.Second {
		timeout = 20 * time.Second
	}

	var lastErr string
	for _, provider := range providers {
		providerURL := provider.urlFunc(pathPrefix)
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		body, err := s.fetchJSON(reqCtx, providerURL)
		cancel()
		if err != nil {
			lastErr = fmt.Sprintf("%s failed: %v", provider.name, err)
			continue
		}
		if !gjson.ValidBytes(body) {
			lastErr = fmt.Sprintf("%s returned invalid JSON", provider.name)
			continue
		}
		payload := gjson.ParseBytes(body)
		candidate, ok := provider.build(ectx.URL, payload)
		if !ok {
			lastErr = fmt.Sprintf("%s returned no usable content", provider.name)
			continue
		}
		if len(candidate.RawContent) > ectx.MaxChars {
			candidate.RawContent = candidate.RawContent[:ectx.MaxChars]
		}
		candidate.ExtractionMeta["provider_url"] = providerURL
		return candidate, nil
	}

	if lastErr == "" {
		lastErr = "X status API extraction failed"
	}
	return document.ExtractionCandidate{}, newError(ErrNoMatch, lastErr)
}

func (s *XStatusApiStrategy) fetchJSON(ctx context.Context, providerURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, providerURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func appendUniqueText(texts []string, text string) []string {
	normalized := htmlutil.NormalizeTextPreserveParagraphs(text)
	if normalized == "" {
		return texts
	}
	lowered := strings.ToLower(normalized)
	for _, existing := range texts {
		existingLowered := strings.ToLower(existing)
		if lowered == existingLowered {
			return texts
		}
		if len(lowered) >= 32 && strings.Contains(existingLowered, lowered) {
			return texts
		}
		if len(existingLowered) >= 32 && strings.Contains(lowered, existingLowered) {
			return texts
		}
	}
	return append(texts, normalized)
}

// buildCandidateFromFxtwitter builds a candidate from fxtwitter's richer
// tweet.article Draft.js-like block structure, falling back to
// preview_text then raw tweet text when no article body is present.
func buildCandidateFromFxtwitter(sourceURL string, payload gjson.Result) (document.ExtractionCandidate, bool) {
	tweet := payload.Get("tweet")
	if !tweet.Exists() {
		return document.ExtractionCandidate{}, false
	}

	article := tweet.Get("article")
	var title string
	var texts []string
	var blocks []document.Block

	if article.Exists() {
		title = strings.TrimSpace(article.Get("title").String())

		blockEntries := article.Get("content.blocks")
		if blockEntries.IsArray() {
			idx := 0
			blockEntries.ForEach(func(_, entry gjson.Result) bool {
				idx++
				blockType := strings.ToLower(entry.Get("type").String())
				if blockType == "atomic" {
					return true
				}
				text := entry.Get("text").String()
				before := len(texts)
				texts = appendUniqueText(texts, text)
				if len(texts) == before {
					return true
				}
				blockID := entry.Get("key").String()
				if blockID == "" {
					blockID = fmt.Sprintf("fx-%d", idx)
				}
				blocks = append(blocks, document.Block{ID: blockID, Type: "paragraph", Text: texts[len(texts)-1]})
				return true
			})
		}

		if len(texts) == 0 {
			texts = appendUniqueText(texts, article.Get("preview_text").String())
		}
	}

	if len(texts) == 0 {
		text := tweet.Get("text").String()
		if text == "" {
			text = tweet.Get("raw_text.text").String()
		}
		texts = appendUniqueText(texts, text)
	}

	rawContent := strings.TrimSpace(strings.Join(texts, "\n\n"))
	if len(rawContent) < minContentChars {
		return document.ExtractionCandidate{}, false
	}

	canonicalURL := tweet.Get("url").String()
	if canonicalURL == "" {
		canonicalURL = sourceURL
	}
	authorName := strings.TrimSpace(tweet.Get("author.screen_name").String())
	if authorName == "" {
		authorName = strings.TrimSpace(tweet.Get("author.name").String())
	}
	if title == "" {
		if authorName != "" {
			title = "X post by @" + authorName
		} else {
			title = "X post"
		}
	}

	if len(blocks) == 0 {
		blocks = htmlutil.ToDocumentBlocks(htmlutil.BuildReaderBlocks(rawContent))
	}

	return document.ExtractionCandidate{
		StrategyName:  "x_status_api",
		URL:           sourceURL,
		CanonicalURL:  canonicalURL,
		Title:         &title,
		ContentFormat: "text",
		RawContent:    rawContent,
		ExtractionMeta: map[string]any{
			"method":   "x_status_api",
			"provider": "api.fxtwitter.com",
			"tweet_id": tweet.Get("id").String(),
			"author":   authorName,
		},
		Blocks: blocks,
	}, true
}

// buildCandidateFromVxtwitter builds a candidate from vxtwitter's flatter
// article.title/article.preview_text/text shape.
func buildCandidateFromVxtwitter(sourceURL string, payload gjson.Result) (document.ExtractionCandidate, bool) {
	text := htmlutil.NormalizeTextPreserveParagraphs(payload.Get("text").String())
	article := payload.Get("article")

	userName := payload.Get("user_name").String()
	if userName == "" {
		userName = payload.Get("user_screen_name").String()
	}
	if userName == "" {
		userName = "unknown"
	}
	defaultTitle := "X post by @" + userName
	tweetID := payload.Get("tweetID").String()

	if !article.Exists() {
		if len(text) < minContentChars {
			return document.ExtractionCandidate{}, false
		}
		title := defaultTitle
		return document.ExtractionCandidate{
			StrategyName:  "x_status_api",
			URL:           sourceURL,
			CanonicalURL:  sourceURL,
			Title:         &title,
			ContentFormat: "text",
			RawContent:    text,
			ExtractionMeta: map[string]any{
				"method":   "x_status_api",
				"provider": "api.vxtwitter.com",
				"tweet_id": tweetID,
			},
			Blocks: htmlutil.ToDocumentBlocks(htmlutil.BuildReaderBlocks(text)),
		}, true
	}

	preview := htmlutil.NormalizeTextPreserveParagraphs(article.Get("preview_text").String())
	title := htmlutil.NormalizeTextPreserveParagraphs(article.Get("title").String())

	var parts []string
	for _, p := range []string{title, preview, text} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	rawContent := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if len(rawContent) < minContentChars {
		return document.ExtractionCandidate{}, false
	}

	blocks := htmlutil.ToDocumentBlocks(htmlutil.BuildReaderBlocks(rawContent))
	imageURL := htmlutil.NormalizeTextPreserveParagraphs(article.Get("image").String())
	if imageURL != "" {
		blocks = append([]document.Block{{ID: "vx-cover", Type: "image", ImageURL: imageURL, Source: "article.image"}}, blocks...)
	}

	finalTitle := title
	if finalTitle == "" {
		finalTitle = defaultTitle
	}

	return document.ExtractionCandidate{
		StrategyName:  "x_status_api",
		URL:           sourceURL,
		CanonicalURL:  sourceURL,
		Title:         &finalTitle,
		ContentFormat: "text",
		RawContent:    rawContent,
		ExtractionMeta: map[string]any{
			"method":   "x_status_api",
			"provider": "api.vxtwitter.com",
			"tweet_id": tweetID,
		},
		Blocks: blocks,
	}, true
}
