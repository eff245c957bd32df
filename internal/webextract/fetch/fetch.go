// Package fetch implements the Fetcher: a GET with a primary and fallback
// UA profile, small retries, and a FetchedPage result carrying the final
// URL, content type, payload, status, and headers.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gocolly/colly/v2"

	"github.com/Zemacs/openpaper/internal/webextract/document"
	"github.com/Zemacs/openpaper/internal/webextract/protection"
)

// ErrFetchFailure is the sentinel error kind for exhausted fetch attempts.
var ErrFetchFailure = errors.New("fetch failure")

// Error carries the per-attempt error trail alongside the sentinel kind.
type Error struct {
	Attempts []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", ErrFetchFailure, strings.Join(e.Attempts, "; "))
}

func (e *Error) Unwrap() error { return ErrFetchFailure }

// userAgentProfiles mirrors original_source's DEFAULT_HEADERS/FALLBACK_HEADERS:
// a recent macOS Chrome UA tried first, a Linux Chrome UA as fallback.
var userAgentProfiles = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// binaryContentTypeMarkers mirrors original_source's BINARY_CONTENT_TYPE_MARKERS.
var binaryContentTypeMarkers = []string{
	"application/pdf",
	"application/octet-stream",
	"application/zip",
	"image/",
	"audio/",
	"video/",
	"font/",
}

// blockedMarkers mirrors spec.md §4.2's looks_blocked anti-bot markers.
var blockedMarkers = []string{
	"captcha",
	"verify you are human",
	"access denied",
	"request blocked",
	"cloudflare",
	"robot check",
}

// IsBinaryContentType reports whether contentType names a binary payload.
func IsBinaryContentType(contentType string) bool {
	lower := strings.ToLower(contentType)
	for _, marker := range binaryContentTypeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// LooksBlocked matches payload against the anti-bot marker set from
// spec.md §4.2. It is a case-insensitive substring match against the
// payload only; contentType is accepted but not inspected, so the content
// type never rejects a page on its own.
func LooksBlocked(payload, contentType string) bool {
	_ = contentType
	lower := strings.ToLower(payload)
	for _, marker := range blockedMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Fetcher performs the safe, retried GET described in spec.md §4.2.
// Modeled as an interface (DESIGN NOTES §9) so tests can inject a fake.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (*document.FetchedPage, error)
}

// CollyFetcher is the production Fetcher, backed by colly for GET/header
// control and response capture (grounded on the teacher's
// service/protection_fetcher.go).
type CollyFetcher struct {
	MaxAttempts    int
	AttemptBackoff time.Duration
	// Detector flags bot-protection/anti-scraping signals on the fetched
	// page. Nil disables detection.
	Detector *protection.Detector
}

// NewCollyFetcher builds a CollyFetcher with spec defaults (2 attempts,
// ~150ms*attempt backoff) and the protection detector enabled.
func NewCollyFetcher() *CollyFetcher {
	return &CollyFetcher{
		MaxAttempts:    2,
		AttemptBackoff: 150 * time.Millisecond,
		Detector:       protection.NewDetector(),
	}
}

// Fetch performs up to MaxAttempts GETs with distinct UA profiles.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*document.FetchedPage, error) {
	maxAttempts := f.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	backoff := f.AttemptBackoff
	if backoff <= 0 {
		backoff = 150 * time.Millisecond
	}

	var trail []string
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				trail = append(trail, ctx.Err().Error())
				return nil, &Error{Attempts: trail}
			case <-time.After(time.Duration(attempt) * backoff):
			}
		}

		ua := userAgentProfiles[attempt%len(userAgentProfiles)]
		page, err := f.doAttempt(ctx, rawURL, ua, timeout)
		if err == nil {
			return page, nil
		}
		trail = append(trail, fmt.Sprintf("attempt %d (%s): %v", attempt+1, ua, err))
	}
	return nil, &Error{Attempts: trail}
}

func (f *CollyFetcher) doAttempt(ctx context.Context, rawURL, userAgent string, timeout time.Duration) (*document.FetchedPage, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.UserAgent(userAgent))
	c.SetRequestTimeout(timeout)

	var (
		finalURL    string
		contentType string
		statusCode  int
		body        []byte
		headers     = map[string]string{}
		respErr     error
	)

	c.OnResponse(func(r *colly.Response) {
		finalURL = r.Request.URL.String()
		statusCode = r.StatusCode
		contentType = r.Headers.Get("Content-Type")
		body = r.Body
		for k := range *r.Headers {
			headers[strings.ToLower(k)] = r.Headers.Get(k)
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		respErr = err
		if r != nil {
			statusCode = r.StatusCode
			body = r.Body
		}
	})

	if err := c.Visit(rawURL); err != nil && respErr == nil {
		respErr = err
	}
	if respErr != nil {
		return nil, respErr
	}
	if statusCode != 0 && (statusCode < 200 || statusCode > 299) {
		return nil, fmt.Errorf("unexpected status %d", statusCode)
	}

	if contentType == "" && len(body) > 0 {
		contentType = mimetype.Detect(body).String()
	}

	// %PDF- magic byte override, per spec.md §4.2.
	payload := string(body)
	if strings.HasPrefix(payload, "%PDF-") {
		contentType = "application/pdf"
		payload = ""
	} else if IsBinaryContentType(contentType) {
		payload = ""
	}

	if finalURL == "" {
		finalURL = rawURL
	}

	var blockSignal *document.BlockSignal
	if f.Detector != nil && payload != "" {
		blockSignal = f.Detector.Detect(statusCode, headers, payload)
	}

	return &document.FetchedPage{
		RequestedURL: rawURL,
		FinalURL:     finalURL,
		ContentType:  contentType,
		Payload:      payload,
		StatusCode:   statusCode,
		Headers:      headers,
		BlockSignal:  blockSignal,
	}, nil
}

// ReadAllString is a small helper kept for callers that need to drain an
// io.Reader into a string (e.g. test fakes building a FetchedPage body).
func ReadAllString(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
