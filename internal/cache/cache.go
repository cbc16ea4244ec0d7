// Package cache provides a small JSON file cache for widget payloads.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one cached payload with its expiry.
type Entry struct {
	Key       string          `json:"key"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Value     json.RawMessage `json:"value"`
}

// Expired reports whether the entry is stale at now.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

type fileData struct {
	Entries map[string]Entry `json:"entries"`
}

// Store is a TTL cache persisted as a single JSON file.
// An empty path keeps entries in memory only.
type Store struct {
	mu      sync.Mutex
	path    string
	now     func() time.Time
	entries map[string]Entry
	loaded  bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a cache backed by path.
func New(path string, opts ...Option) *Store {
	s := &Store{path: path, now: time.Now, entries: make(map[string]Entry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the cache file location.
func (s *Store) Path() string { return s.path }

// Get decodes a fresh entry into v. It reports false on miss or expiry.
func (s *Store) Get(key string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return false, err
	}
	e, ok := s.entries[key]
	if !ok || e.Expired(s.now()) {
		return false, nil
	}
	if err := json.Unmarshal(e.Value, v); err != nil {
		return false, fmt.Errorf("decode cache entry %q: %w", key, err)
	}
	return true, nil
}

// Put stores v under key for ttl and flushes the file.
func (s *Store) Put(key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	now := s.now()
	s.entries[key] = Entry{Key: key, CreatedAt: now, ExpiresAt: now.Add(ttl), Value: raw}
	s.pruneLocked(now)
	return s.flushLocked()
}

// Invalidate removes key.
func (s *Store) Invalidate(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	delete(s.entries, key)
	return s.flushLocked()
}

func (s *Store) pruneLocked(now time.Time) {
	for k, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, k)
		}
	}
}

func (s *Store) loadLocked() error {
	if s.loaded || s.path == "" {
		s.loaded = true
		return nil
	}
	s.loaded = true
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cache: %w", err)
	}
	var fd fileData
	if err := json.Unmarshal(data, &fd); err != nil {
		// A corrupt cache is discarded rather than failing the caller.
		return nil
	}
	for k, e := range fd.Entries {
		s.entries[k] = e
	}
	return nil
}

func (s *Store) flushLocked() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(fileData{Entries: s.entries}, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return os.Rename(tmp, s.path)
}
