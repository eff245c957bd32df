// Package adapters implements the Adapter Registry: a static, ordered
// table of per-domain container/drop regex sets, overridable by promoted
// adapters read from the rule store.
package adapters

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

// DomainAdapter is one entry in the registry: a name, the host suffixes it
// applies to, and the regex patterns used to isolate and clean content.
type DomainAdapter struct {
	Name                  string
	HostSuffixes          []string
	HTMLContainerPatterns []string
	DropTextPatterns      []string
}

// Static is the ordered tuple of built-in adapters, grounded on
// original_source's adapter_registry.py.
var Static = []DomainAdapter{
	{
		Name:         "medium",
		HostSuffixes: []string{"medium.com"},
		HTMLContainerPatterns: []string{
			`(?is)<article[^>]*>(.*?)</article>`,
			`(?is)<div[^>]+class=["'][^"']*section-content[^"']*["'][^>]*>(.*?)</div>`,
		},
		DropTextPatterns: []string{
			`(?i)Follow\s+Me`,
			`(?i)Sign up`,
			`(?i)Get unlimited access`,
		},
	},
	{
		Name:         "substack",
		HostSuffixes: []string{"substack.com"},
		HTMLContainerPatterns: []string{
			`(?is)<article[^>]*>(.*?)</article>`,
			`(?is)<div[^>]+class=["'][^"']*body[^"']*["'][^>]*>(.*?)</div>`,
		},
	},
	{
		Name:         "arxiv",
		HostSuffixes: []string{"arxiv.org"},
		HTMLContainerPatterns: []string{
			`(?is)<main[^>]*>(.*?)</main>`,
			`(?is)<div[^>]+id=["']abs["'][^>]*>(.*?)</div>`,
		},
		DropTextPatterns: []string{
			`(?im)^Submitters?:.*$`,
			`(?im)^Subjects?:.*$`,
		},
	},
}

// PromotedLookup resolves a promoted adapter for a host, if one exists.
// Implemented by internal/webextract/rulestore; declared here as a narrow
// interface so this package has no dependency on the store's persistence
// concerns.
type PromotedLookup interface {
	PromotedAdapterForHost(host string) (*document.PromotedAdapter, bool)
}

// Registry resolves a host to the adapter that should handle it.
type Registry struct {
	Promoted PromotedLookup
}

// NewRegistry builds a Registry backed by the given promoted-adapter
// lookup (typically the rule store). A nil lookup disables promoted
// adapters, falling back to the static table only.
func NewRegistry(promoted PromotedLookup) *Registry {
	return &Registry{Promoted: promoted}
}

// hostSuffixGlobCache memoizes the compiled glob for a host suffix: either
// the bare suffix itself or any subdomain of it.
var (
	hostSuffixGlobMu    sync.Mutex
	hostSuffixGlobCache = map[string]glob.Glob{}
)

func matchesHostSuffix(lowered, suffix string) bool {
	suffix = strings.ToLower(strings.TrimSpace(suffix))
	if suffix == "" {
		return false
	}
	hostSuffixGlobMu.Lock()
	g, ok := hostSuffixGlobCache[suffix]
	if !ok {
		g = glob.MustCompile(fmt.Sprintf("{%s,*.%s}", suffix, suffix))
		hostSuffixGlobCache[suffix] = g
	}
	hostSuffixGlobMu.Unlock()
	return g.Match(lowered)
}

// GetAdapterForHost implements spec §4.5: a promoted adapter wins when it
// has container patterns; otherwise the first static adapter whose suffix
// the host matches; otherwise none.
func (r *Registry) GetAdapterForHost(host string) (DomainAdapter, bool) {
	lowered := strings.ToLower(host)

	if r.Promoted != nil {
		if promoted, ok := r.Promoted.PromotedAdapterForHost(lowered); ok && len(promoted.ContainerRegexes) > 0 {
			suffixes := promoted.HostSuffixes
			if len(suffixes) == 0 {
				suffixes = []string{lowered}
			}
			name := promoted.Name
			if name == "" {
				name = "llm-promoted:" + lowered
			}
			return DomainAdapter{
				Name:                  name,
				HostSuffixes:          suffixes,
				HTMLContainerPatterns: promoted.ContainerRegexes,
				DropTextPatterns:      promoted.DropTextPatterns,
			}, true
		}
	}

	for _, adapter := range Static {
		for _, suffix := range adapter.HostSuffixes {
			if matchesHostSuffix(lowered, suffix) {
				return adapter, true
			}
		}
	}
	return DomainAdapter{}, false
}
