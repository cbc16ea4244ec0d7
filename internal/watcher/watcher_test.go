package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func startWatcher(t *testing.T, path string, calls *atomic.Int32) *Watcher {
	t.Helper()
	w, err := New(Config{
		Path:     path,
		Debounce: 50 * time.Millisecond,
		OnChange: func() { calls.Add(1) },
	})
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	t.Cleanup(w.Stop)
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	return w
}

// TestWatcherDetectsDatabaseWrite verifies a write to the database triggers a reload.
func TestWatcherDetectsDatabaseWrite(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kairon.db")
	if err := os.WriteFile(db, []byte("initial"), 0600); err != nil {
		t.Fatalf("failed to create db file: %v", err)
	}
	var calls atomic.Int32
	startWatcher(t, db, &calls)

	if err := os.WriteFile(db, []byte("modified"), 0600); err != nil {
		t.Fatalf("failed to modify file: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if calls.Load() == 0 {
		t.Error("expected watcher to detect database change")
	}
}

// TestWatcherDetectsJournal verifies WAL files count as database changes.
func TestWatcherDetectsJournal(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kairon.db")
	var calls atomic.Int32
	startWatcher(t, db, &calls)

	if err := os.WriteFile(db+"-wal", []byte("frame"), 0600); err != nil {
		t.Fatalf("failed to write wal: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if calls.Load() == 0 {
		t.Error("expected WAL write to trigger reload")
	}
}

// TestWatcherIgnoresUnrelatedFiles verifies other files in the directory are ignored.
func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	startWatcher(t, filepath.Join(dir, "kairon.db"), &calls)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if n := calls.Load(); n != 0 {
		t.Errorf("expected no reloads, got %d", n)
	}
}

// TestWatcherDebounce verifies a burst of writes produces one callback.
func TestWatcherDebounce(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kairon.db")
	var calls atomic.Int32
	startWatcher(t, db, &calls)

	for i := 0; i < 10; i++ {
		if err := os.WriteFile(db, []byte{byte(i)}, 0600); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(250 * time.Millisecond)

	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 debounced reload, got %d", n)
	}
}

// TestWatcherRejectsMemoryDatabase verifies in-memory databases cannot be watched.
func TestWatcherRejectsMemoryDatabase(t *testing.T) {
	if _, err := New(Config{Path: ":memory:"}); err == nil {
		t.Error("expected error for in-memory database")
	}
}

// TestWatcherStopIdempotent verifies Stop may be called twice and Start then fails.
func TestWatcherStopIdempotent(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kairon.db")
	w, err := New(Config{Path: db})
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	w.Stop()
	w.Stop()
	if err := w.Start(); err == nil {
		t.Error("expected restart after stop to fail")
	}
}
