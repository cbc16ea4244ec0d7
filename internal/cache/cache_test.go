package cache_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"kairon/internal/cache"
)

type quote struct {
	Content string `json:"content"`
	Author  string `json:"author"`
}

// TestCachePutGet verifies a stored value is returned while fresh
func TestCachePutGet(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := cache.New(filepath.Join(t.TempDir(), "widgets.json"), cache.WithClock(func() time.Time { return now }))

	if err := c.Put("quote:2026-03-01", quote{"Be kind", "Anon"}, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var got quote
	ok, err := c.Get("quote:2026-03-01", &got)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.Author != "Anon" {
		t.Errorf("got %+v", got)
	}
}

// TestCacheExpiry verifies entries vanish once their TTL passes
func TestCacheExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := cache.New("", cache.WithClock(func() time.Time { return now }))
	_ = c.Put("weather:Oslo", 3.5, 10*time.Minute)

	now = now.Add(10 * time.Minute)
	var v float64
	if ok, _ := c.Get("weather:Oslo", &v); ok {
		t.Error("entry should be expired at its deadline")
	}
}

// TestCachePersistsAcrossInstances verifies the file is reloaded
func TestCachePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "widgets.json")
	_ = cache.New(path).Put("k", "v", time.Hour)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("cache file missing: %v", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("perm = %o, want 0644", info.Mode().Perm())
	}

	var s string
	ok, err := cache.New(path).Get("k", &s)
	if err != nil || !ok || s != "v" {
		t.Errorf("reload = %q, %v, %v", s, ok, err)
	}
}

// TestCacheCorruptFile verifies a garbled file is treated as empty
func TestCacheCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widgets.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	c := cache.New(path)
	var s string
	if ok, err := c.Get("k", &s); ok || err != nil {
		t.Errorf("Get = %v, %v", ok, err)
	}
	if err := c.Put("k", "v", time.Minute); err != nil {
		t.Errorf("Put after corrupt file: %v", err)
	}
}

// TestCacheInvalidate verifies removal
func TestCacheInvalidate(t *testing.T) {
	c := cache.New("")
	_ = c.Put("k", 1, time.Hour)
	_ = c.Invalidate("k")
	var n int
	if ok, _ := c.Get("k", &n); ok {
		t.Error("invalidated key still present")
	}
}
