package strategies

import (
	"context"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

func TestParseXStatusURL(t *testing.T) {
	cases := []struct {
		url      string
		wantUser string
		wantID   string
		wantOK   bool
	}{
		{"https://x.com/someuser/status/1234567890", "someuser", "1234567890", true},
		{"https://twitter.com/i/status/1234567890", "", "1234567890", true},
		{"https://twitter.com/i/web/status/1234567890", "", "1234567890", true},
		{"https://x.com/status/1234567890", "", "1234567890", true},
		{"https://example.com/someuser/status/1234567890", "", "", false},
		{"https://x.com/someuser", "", "", false},
	}
	for _, c := range cases {
		user, id, ok := parseXStatusURL(c.url)
		if ok != c.wantOK || user != c.wantUser || id != c.wantID {
			t.Fatalf("parseXStatusURL(%q) = (%q, %q, %v), want (%q, %q, %v)",
				c.url, user, id, ok, c.wantUser, c.wantID, c.wantOK)
		}
	}
}

func TestXStatusApiStrategy_RejectsNonStatusURL(t *testing.T) {
	strategy := &XStatusApiStrategy{}
	ectx := &document.ExtractionContext{URL: "https://example.com/post"}
	if _, err := strategy.Extract(context.Background(), ectx); err == nil {
		t.Fatal("expected error for non X-status URL")
	}
}

func TestBuildCandidateFromVxtwitter_FlatArticle(t *testing.T) {
	body := `{
		"user_name": "someuser",
		"tweetID": "1234567890",
		"text": "short tweet text",
		"article": {
			"title": "A Thread Worth Reading",
			"preview_text": "This thread goes into considerable depth about a topic that matters, covering background, tradeoffs, and a worked example from start to finish.",
			"image": "https://pbs.twimg.com/cover.jpg"
		}
	}`
	candidate, ok := buildCandidateFromVxtwitter("https://x.com/someuser/status/1234567890", gjson.Parse(body))
	if !ok {
		t.Fatal("expected candidate to be built")
	}
	if candidate.Title == nil || *candidate.Title != "A Thread Worth Reading" {
		t.Fatalf("unexpected title: %v", candidate.Title)
	}
	if len(candidate.Blocks) == 0 || candidate.Blocks[0].Type != "image" {
		t.Fatalf("expected leading image block, got %+v", candidate.Blocks)
	}
}

func TestBuildCandidateFromVxtwitter_NoArticleTooShort(t *testing.T) {
	body := `{"user_name": "someuser", "tweetID": "1", "text": "short"}`
	if _, ok := buildCandidateFromVxtwitter("https://x.com/someuser/status/1", gjson.Parse(body)); ok {
		t.Fatal("expected short flat tweet without article to be rejected")
	}
}

func TestBuildCandidateFromFxtwitter_PrefersArticleBlocks(t *testing.T) {
	body := `{
		"tweet": {
			"id": "1234567890",
			"url": "https://x.com/someuser/status/1234567890",
			"author": {"screen_name": "someuser"},
			"article": {
				"title": "Deep Dive",
				"content": {
					"blocks": [
						{"key": "a", "type": "unstyled", "text": "This block walks through the first part of the argument in careful detail, laying out the premises before moving on."},
						{"key": "b", "type": "atomic", "text": "ignored media block"},
						{"key": "c", "type": "unstyled", "text": "This second block builds on the first and draws out the broader implications for readers who care about the topic."}
					]
				}
			}
		}
	}`
	candidate, ok := buildCandidateFromFxtwitter("https://x.com/someuser/status/1234567890", gjson.Parse(body))
	if !ok {
		t.Fatal("expected candidate to be built")
	}
	if candidate.Title == nil || *candidate.Title != "Deep Dive" {
		t.Fatalf("unexpected title: %v", candidate.Title)
	}
	if strings.Contains(candidate.RawContent, "ignored media block") {
		t.Fatal("expected atomic blocks to be skipped")
	}
	if len(candidate.Blocks) != 2 {
		t.Fatalf("expected two text blocks, got %d", len(candidate.Blocks))
	}
}

func TestAppendUniqueText_DedupesContainedText(t *testing.T) {
	longText := strings.Repeat("a", 40)
	texts := appendUniqueText(nil, longText)
	texts = appendUniqueText(texts, longText+" extra words appended")
	if len(texts) != 1 {
		t.Fatalf("expected containment dedup to keep one entry, got %d: %v", len(texts), texts)
	}

	texts = appendUniqueText(texts, "totally distinct short text")
	if len(texts) != 2 {
		t.Fatalf("expected distinct short text to be appended, got %d: %v", len(texts), texts)
	}
}
