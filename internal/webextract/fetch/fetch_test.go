package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

func TestIsBinaryContentType(t *testing.T) {
	cases := map[string]bool{
		"application/pdf; charset=binary": true,
		"image/png":                       true,
		"text/html; charset=utf-8":        false,
		"application/json":                false,
	}
	for ct, want := range cases {
		if got := IsBinaryContentType(ct); got != want {
			t.Errorf("IsBinaryContentType(%q) = %v, want %v", ct, got, want)
		}
	}
}

func TestLooksBlocked(t *testing.T) {
	cases := map[string]bool{
		"Please complete the CAPTCHA to continue":     true,
		"Access Denied by administrator":              true,
		"checking your browser, cloudflare":            true,
		"<html><body>Welcome to our blog</body></html>": false,
	}
	for payload, want := range cases {
		if got := LooksBlocked(payload, "text/html"); got != want {
			t.Errorf("LooksBlocked(%q) = %v, want %v", payload, got, want)
		}
	}
}

// fakeFetcher is a test double for Fetcher; TestFakeFetcherSatisfiesInterface
// checks that it satisfies the interface.
type fakeFetcher struct {
	page *document.FetchedPage
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (*document.FetchedPage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func TestFakeFetcherSatisfiesInterface(t *testing.T) {
	var _ Fetcher = (*fakeFetcher)(nil)
	f := &fakeFetcher{page: &document.FetchedPage{RequestedURL: "https://example.com"}}
	page, err := f.Fetch(context.Background(), "https://example.com", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.RequestedURL != "https://example.com" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestErrorUnwrap(t *testing.T) {
	e := &Error{Attempts: []string{"attempt 1: timeout", "attempt 2: refused"}}
	if e.Error() == "" {
		t.Fatal("expected non-empty error string")
	}
	if !errors.Is(e, ErrFetchFailure) {
		t.Fatalf("expected %v to unwrap to ErrFetchFailure", e)
	}
}
