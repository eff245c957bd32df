// Package rulestore implements the JSON-on-disk Rule Store: generated
// rules, promoted adapters, and bounded replay samples per host, guarded
// by an advisory exclusive file lock so concurrent orchestrator
// goroutines never interleave a read-modify-write.
package rulestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

const (
	// ReplayMaxSamplesPerHost mirrors original_source's
	// REPLAY_MAX_SAMPLES_PER_HOST default.
	ReplayMaxSamplesPerHost = 20
	// ReplayMaxPayloadChars mirrors original_source's
	// REPLAY_MAX_HTML_CHARS default.
	ReplayMaxPayloadChars = 120_000

	storeVersion = 1
)

// state is the on-disk schema: version, generated_rules, promoted_adapters,
// replay_samples, all keyed by host.
type state struct {
	Version          int                                 `json:"version"`
	GeneratedRules   map[string]document.AdaptiveRule     `json:"generated_rules"`
	PromotedAdapters map[string]document.PromotedAdapter  `json:"promoted_adapters"`
	ReplaySamples    map[string][]document.ReplaySample   `json:"replay_samples"`
}

func defaultState() state {
	return state{
		Version:          storeVersion,
		GeneratedRules:   map[string]document.AdaptiveRule{},
		PromotedAdapters: map[string]document.PromotedAdapter{},
		ReplaySamples:    map[string][]document.ReplaySample{},
	}
}

// Store is a single JSON file guarded by an OS-level exclusive lock.
// A process-local mutex additionally serializes same-process callers so
// the lock/unlock pair around a single *os.File is never raced within
// this process (flock is per open-file-description, not per goroutine).
type Store struct {
	Path string
	mu   sync.Mutex
}

// New builds a Store at path. The parent directory is created lazily on
// first use.
func New(path string) *Store {
	return &Store{Path: path}
}

func (s *Store) ensureFile() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create rule store directory: %w", err)
	}
	f, err := os.OpenFile(s.Path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open rule store: %w", err)
	}
	return f, nil
}

// withLockedState opens the store file, takes an exclusive advisory file
// lock, loads (or reinitializes, tolerating empty/corrupt content) the
// state, runs mutate, and — when mutate returns true — rewrites the file
// before releasing the lock.
func (s *Store) withLockedState(mutate func(*state) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.ensureFile()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock rule store: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	st, err := loadState(f)
	if err != nil {
		return err
	}

	dirty := mutate(&st)
	if !dirty {
		return nil
	}

	return writeState(f, st)
}

func loadState(f *os.File) (state, error) {
	raw, err := os.ReadFile(f.Name())
	if err != nil {
		return state{}, err
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return defaultState(), nil
	}

	var st state
	if err := json.Unmarshal([]byte(trimmed), &st); err != nil {
		return defaultState(), nil
	}
	if st.GeneratedRules == nil {
		st.GeneratedRules = map[string]document.AdaptiveRule{}
	}
	if st.PromotedAdapters == nil {
		st.PromotedAdapters = map[string]document.PromotedAdapter{}
	}
	if st.ReplaySamples == nil {
		st.ReplaySamples = map[string][]document.ReplaySample{}
	}
	if st.Version == 0 {
		st.Version = storeVersion
	}
	return st, nil
}

func writeState(f *os.File, st state) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode rule store state: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt(payload, 0); err != nil {
		return err
	}
	return f.Sync()
}

// GetGeneratedRule returns the cached rule for host, if any.
func (s *Store) GetGeneratedRule(host string) (*document.AdaptiveRule, bool) {
	host = normalizeHost(host)
	if host == "" {
		return nil, false
	}
	var found *document.AdaptiveRule
	_ = s.withLockedState(func(st *state) bool {
		if rule, ok := st.GeneratedRules[host]; ok {
			r := rule
			found = &r
		}
		return false
	})
	return found, found != nil
}

// SaveGeneratedRule persists a synthesized rule for host.
func (s *Store) SaveGeneratedRule(host string, rule document.AdaptiveRule) error {
	host = normalizeHost(host)
	if host == "" {
		return nil
	}
	rule.Host = host
	if rule.GeneratedAt.IsZero() {
		rule.GeneratedAt = time.Now().UTC()
	}
	return s.withLockedState(func(st *state) bool {
		st.GeneratedRules[host] = rule
		return true
	})
}

// PromotedAdapterForHost implements adapters.PromotedLookup: exact match
// first, then suffix match across promoted keys (so subdomains inherit a
// parent domain's promotion).
func (s *Store) PromotedAdapterForHost(host string) (*document.PromotedAdapter, bool) {
	host = normalizeHost(host)
	if host == "" {
		return nil, false
	}
	var found *document.PromotedAdapter
	_ = s.withLockedState(func(st *state) bool {
		if direct, ok := st.PromotedAdapters[host]; ok {
			a := direct
			found = &a
			return false
		}
		for key, value := range st.PromotedAdapters {
			if host == key || strings.HasSuffix(host, "."+key) {
				a := value
				found = &a
				return false
			}
		}
		return false
	})
	return found, found != nil
}

// IsPromoted reports whether host already has a promoted adapter (used to
// enforce write-once-per-host promotion).
func (s *Store) IsPromoted(host string) bool {
	_, ok := s.PromotedAdapterForHost(host)
	return ok
}

// SavePromotedAdapter persists a newly promoted adapter for host. It does
// not overwrite an existing promotion (promotion is write-once per host).
func (s *Store) SavePromotedAdapter(host string, adapter document.PromotedAdapter) error {
	host = normalizeHost(host)
	if host == "" {
		return nil
	}
	return s.withLockedState(func(st *state) bool {
		if _, exists := st.PromotedAdapters[host]; exists {
			return false
		}
		if adapter.GeneratedAt.IsZero() {
			adapter.GeneratedAt = time.Now().UTC()
		}
		st.PromotedAdapters[host] = adapter
		return true
	})
}

// RecordReplaySample appends a bounded FIFO replay sample for host,
// truncating the payload to ReplayMaxPayloadChars and keeping only the
// newest ReplayMaxSamplesPerHost entries.
func (s *Store) RecordReplaySample(host string, sample document.ReplaySample) error {
	host = normalizeHost(host)
	if host == "" {
		return nil
	}
	if len(sample.Payload) > ReplayMaxPayloadChars {
		sample.Payload = sample.Payload[:ReplayMaxPayloadChars]
	}
	if sample.CapturedAt.IsZero() {
		sample.CapturedAt = time.Now().UTC()
	}
	return s.withLockedState(func(st *state) bool {
		samples := append(st.ReplaySamples[host], sample)
		if len(samples) > ReplayMaxSamplesPerHost {
			samples = samples[len(samples)-ReplayMaxSamplesPerHost:]
		}
		st.ReplaySamples[host] = samples
		return true
	})
}

// ReplaySamples returns up to limit of the newest replay samples for host
// (all of them when limit <= 0).
func (s *Store) ReplaySamples(host string, limit int) []document.ReplaySample {
	host = normalizeHost(host)
	if host == "" {
		return nil
	}
	var samples []document.ReplaySample
	_ = s.withLockedState(func(st *state) bool {
		all := st.ReplaySamples[host]
		if limit <= 0 || limit >= len(all) {
			samples = append(samples, all...)
			return false
		}
		samples = append(samples, all[len(all)-limit:]...)
		return false
	})
	return samples
}

func normalizeHost(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}
