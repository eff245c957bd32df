package htmlutil

import (
	"net/url"
	"strconv"
	"strings"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

func resolveURL(base, ref string) string {
	baseURL, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return strings.TrimSpace(ref)
	}
	refTrimmed := strings.TrimSpace(ref)
	if refTrimmed == "" {
		refTrimmed = strings.TrimSpace(base)
	}
	refURL, err := url.Parse(refTrimmed)
	if err != nil {
		return refTrimmed
	}
	return baseURL.ResolveReference(refURL).String()
}

func stripFragment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	return u.String()
}

// normalizeArxivCanonicalURL implements spec §4.3's arXiv version-upgrade
// scan: when fallbackURL is an unversioned arxiv.org /html/<id> path, scan
// the page for a versioned reference to the same base identifier and
// upgrade to it; when fallbackURL is already versioned, strip query and
// fragment only.
func normalizeArxivCanonicalURL(pageHTML, fallbackURL string) string {
	u, err := url.Parse(fallbackURL)
	if err != nil {
		return fallbackURL
	}
	host := strings.ToLower(strings.TrimSpace(u.Host))
	if host != "arxiv.org" && !strings.HasSuffix(host, ".arxiv.org") {
		return fallbackURL
	}

	m := arxivHTMLPathRegex.FindStringSubmatch(u.Path)
	if m == nil {
		return fallbackURL
	}
	currentIdentifier := strings.TrimSpace(m[1])
	if currentIdentifier == "" {
		return fallbackURL
	}

	if arxivVersionSuffixRegex.MatchString(currentIdentifier) {
		return u.Scheme + "://" + u.Host + u.Path
	}

	currentBaseIdentifier := arxivVersionSuffixRegex.ReplaceAllString(currentIdentifier, "")
	for _, ref := range arxivHTMLReferenceRegex.FindAllStringSubmatch(pageHTML, -1) {
		candidateIdentifier := strings.TrimSpace(ref[1])
		if candidateIdentifier == "" {
			continue
		}
		if arxivVersionSuffixRegex.ReplaceAllString(candidateIdentifier, "") != currentBaseIdentifier {
			continue
		}
		if !arxivVersionSuffixRegex.MatchString(candidateIdentifier) {
			continue
		}
		return u.Scheme + "://" + u.Host + "/html/" + candidateIdentifier
	}

	return fallbackURL
}
