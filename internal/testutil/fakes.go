// Package testutil provides shared test helpers: a controllable clock, a
// recording notifier, an in-memory app and a CLI harness.
package testutil

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"kairon/backend"
	"kairon/backend/sqlite"
	"kairon/internal/app"
	"kairon/internal/config"
	"kairon/internal/notification"
	"kairon/internal/reminder"
)

// Reference is the instant most tests start from: a Tuesday morning.
var Reference = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// FakeClock fires timers synchronously when Advance passes their deadline.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// NewFakeClock starts at now.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run once Advance reaches now+d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) reminder.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs due timers in deadline order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}

// RecordingNotifier captures sent notifications.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Notification
}

func (r *RecordingNotifier) Send(n notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *RecordingNotifier) SendAsync(n notification.Notification) { _ = r.Send(n) }
func (r *RecordingNotifier) Close() error                          { return nil }
func (r *RecordingNotifier) ChannelCount() int                     { return 1 }

// Sent returns a copy of what was sent.
func (r *RecordingNotifier) Sent() []notification.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification.Notification(nil), r.sent...)
}

// Granting is a permission requester that always grants.
func Granting(context.Context) (backend.Permission, error) {
	return backend.PermissionGranted, nil
}

// TestApp bundles an App with its fakes.
type TestApp struct {
	*app.App
	Clock    *FakeClock
	Notifier *RecordingNotifier
	Store    backend.Store
}

// NewApp opens an App over an in-memory SQLite database. Widgets point at
// an unroutable address so they always fall back unless replaced.
func NewApp(t *testing.T) *TestApp {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return NewAppWithStore(t, db)
}

// NewAppWithStore opens an App over db.
func NewAppWithStore(t *testing.T, db backend.Store) *TestApp {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = db.Path()
	cfg.Reminder.Enabled = true

	clock := NewFakeClock(Reference)
	notifier := &RecordingNotifier{}
	a, err := app.Open(context.Background(), app.Options{
		Config:    cfg,
		Store:     db,
		Clock:     clock,
		Notifier:  notifier,
		Requester: Granting,
		Widgets:   OfflineWidgets(),
	})
	if err != nil {
		t.Fatalf("open app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return &TestApp{App: a, Clock: clock, Notifier: notifier, Store: db}
}
