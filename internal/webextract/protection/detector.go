// Package protection implements the richer anti-bot signal detection that
// spec.md §4.2's literal looks_blocked predicate only gestures at: status
// code checks, Cloudflare challenge headers, and a battery of body-content
// heuristics (captcha widgets, SPA root elements, visible-text ratio) that
// flag a JS-rendered or challenge page even when none of the narrow marker
// strings match. Detector.Detect runs after a fetch and annotates the
// FetchedPage with a document.BlockSignal the strategies can surface in
// their failure reasons.
package protection

import (
	"regexp"
	"strings"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

// Detector analyzes a fetched page for bot protection signals.
type Detector struct {
	// MinContentLength is the minimum expected visible content length for
	// a real page. Responses shorter than this may indicate a challenge.
	MinContentLength int
}

// NewDetector builds a Detector with the teacher's defaults.
func NewDetector() *Detector {
	return &Detector{MinContentLength: 500}
}

// Detect inspects the status code, lower-cased response headers, and body
// for protection signals, returning nil when the page looks clean.
func (d *Detector) Detect(statusCode int, headers map[string]string, body string) *document.BlockSignal {
	if signal := d.checkStatusCode(statusCode); signal != nil {
		return signal
	}
	if signal := d.checkHeaders(headers); signal != nil {
		return signal
	}
	return d.checkBodyContent(body)
}

func (d *Detector) checkStatusCode(statusCode int) *document.BlockSignal {
	switch statusCode {
	case 403:
		return &document.BlockSignal{
			Kind:       "access_denied",
			Confidence: 90,
			Message:    "access denied (HTTP 403): site may be blocking automated requests",
			Retryable:  true,
		}
	case 503:
		return &document.BlockSignal{
			Kind:       "cloudflare",
			Confidence: 70,
			Message:    "service unavailable (HTTP 503): may indicate a Cloudflare or similar challenge",
			Retryable:  true,
		}
	case 429:
		return &document.BlockSignal{
			Kind:       "rate_limited",
			Confidence: 95,
			Message:    "rate limited (HTTP 429): too many requests",
			Retryable:  false,
		}
	}
	return nil
}

func (d *Detector) checkHeaders(headers map[string]string) *document.BlockSignal {
	if headers == nil {
		return nil
	}
	if headers["cf-ray"] != "" && strings.EqualFold(headers["cf-mitigated"], "challenge") {
		return &document.BlockSignal{
			Kind:       "cloudflare",
			Confidence: 95,
			Message:    "Cloudflare challenge header detected",
			Retryable:  true,
		}
	}
	return nil
}

var (
	cloudflarePatterns = []string{
		"cf-browser-verification",
		"challenge-platform",
		"cf_chl_opt",
		"_cf_chl",
		"checking your browser",
		"please wait... | cloudflare",
		"just a moment...",
		"attention required! | cloudflare",
	}

	captchaPatterns = []string{
		"g-recaptcha",
		"grecaptcha",
		"h-captcha",
		"hcaptcha",
		"data-sitekey",
		"captcha-container",
		"turnstile",
		"cf-turnstile",
	}

	accessDeniedPatterns = []string{
		"access denied",
		"access to this page has been denied",
		"you don't have permission",
		"request blocked",
		"bot detected",
		"automated access",
		"please verify you are human",
		"are you a robot",
		"prove you're not a robot",
	}

	jsRequiredPatterns = []string{
		"enable javascript",
		"javascript is required",
		"requires javascript",
		"please enable javascript",
		"this site requires javascript",
	}

	contentIndicatorRegex = regexp.MustCompile(`(?i)<(article|main|section|div[^>]*class[^>]*content)[^>]*>`)

	spaRootPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<div\s+id=["'](?:root|app|__next|__nuxt)["'][^>]*>\s*</div>`),
		regexp.MustCompile(`(?i)<app-root[^>]*>\s*</app-root>`),
		regexp.MustCompile(`(?i)<div\s+id=["']react-root["'][^>]*>\s*</div>`),
	}

	htmlTagRegex    = regexp.MustCompile(`<[^>]+>`)
	scriptRegex     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRegex      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptRegex   = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

func (d *Detector) checkBodyContent(body string) *document.BlockSignal {
	if len(body) == 0 {
		return &document.BlockSignal{
			Kind:       "empty_content",
			Confidence: 80,
			Message:    "empty response body: may indicate a blocked request",
			Retryable:  true,
		}
	}

	lower := strings.ToLower(body)

	for _, pattern := range cloudflarePatterns {
		if strings.Contains(lower, pattern) {
			return &document.BlockSignal{
				Kind:       "cloudflare",
				Confidence: 90,
				Message:    "Cloudflare challenge page detected",
				Retryable:  true,
			}
		}
	}
	for _, pattern := range captchaPatterns {
		if strings.Contains(lower, pattern) {
			return &document.BlockSignal{
				Kind:       "captcha",
				Confidence: 95,
				Message:    "captcha challenge detected",
				Retryable:  true,
			}
		}
	}
	for _, pattern := range accessDeniedPatterns {
		if strings.Contains(lower, pattern) {
			return &document.BlockSignal{
				Kind:       "access_denied",
				Confidence: 85,
				Message:    "access denied message detected in body",
				Retryable:  true,
			}
		}
	}
	for _, pattern := range jsRequiredPatterns {
		if strings.Contains(lower, pattern) {
			return &document.BlockSignal{
				Kind:       "javascript_required",
				Confidence: 80,
				Message:    "page requires JavaScript to render content",
				Retryable:  true,
			}
		}
	}
	if strings.Contains(lower, "<noscript") {
		return &document.BlockSignal{
			Kind:       "javascript_required",
			Confidence: 75,
			Message:    "page requires JavaScript to render content",
			Retryable:  true,
		}
	}
	for _, pattern := range spaRootPatterns {
		if pattern.MatchString(body) {
			return &document.BlockSignal{
				Kind:       "javascript_required",
				Confidence: 90,
				Message:    "SPA framework root detected empty: content is JavaScript-rendered",
				Retryable:  true,
			}
		}
	}

	if signal := d.checkTextContentRatio(body); signal != nil {
		return signal
	}

	if len(body) < d.MinContentLength && !contentIndicatorRegex.MatchString(body) {
		return &document.BlockSignal{
			Kind:       "empty_content",
			Confidence: 60,
			Message:    "response too small: may be a challenge or error page",
			Retryable:  true,
		}
	}

	return nil
}

// checkTextContentRatio flags pages whose visible text is dwarfed by markup
// or navigation boilerplate, a signature of content rendered client-side.
func (d *Detector) checkTextContentRatio(body string) *document.BlockSignal {
	cleaned := scriptRegex.ReplaceAllString(body, "")
	cleaned = styleRegex.ReplaceAllString(cleaned, "")
	cleaned = noscriptRegex.ReplaceAllString(cleaned, "")

	visibleText := htmlTagRegex.ReplaceAllString(cleaned, " ")
	visibleText = whitespaceRegex.ReplaceAllString(visibleText, " ")
	visibleText = strings.TrimSpace(visibleText)

	textLength := len(visibleText)
	htmlLength := len(body)

	const minVisibleText = 500
	const minTextRatio = 0.02

	if textLength < minVisibleText {
		linkCount := strings.Count(strings.ToLower(body), "<a ")
		if linkCount > 5 && textLength < 300 {
			return &document.BlockSignal{
				Kind:       "javascript_required",
				Confidence: 75,
				Message:    "page appears to hold only navigation/footer content: main content likely requires JavaScript",
				Retryable:  true,
			}
		}
	}

	if htmlLength > 1000 && float64(textLength)/float64(htmlLength) < minTextRatio {
		return &document.BlockSignal{
			Kind:       "javascript_required",
			Confidence: 70,
			Message:    "very low text-to-HTML ratio: page likely renders content via JavaScript",
			Retryable:  true,
		}
	}

	return nil
}
