// Package reminder schedules one-shot, in-session task reminders.
//
// Reminders live only as long as the process: nothing is persisted, so a
// reminder that has not fired when the session ends is lost.
package reminder

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"kairon/backend"
	"kairon/internal/notification"
	"kairon/internal/utils"
)

// Config holds the reminder configuration
type Config struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// DefaultLead is applied when a task is created without an explicit lead, e.g. "15m".
	DefaultLead string `yaml:"default_lead" json:"default_lead"`
}

// Timer is a pending callback that can be stopped.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so tests can fire reminders deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemClock returns the wall clock.
func SystemClock() Clock { return realClock{} }

// TaskLookup returns the current state of a task.
type TaskLookup func(id int64) (backend.Task, bool)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithNotifier sets the platform notification manager.
func WithNotifier(n notification.NotificationManager) Option {
	return func(s *Scheduler) { s.notifier = n }
}

// WithInbox sets where in-app notifications are delivered.
func WithInbox(in *notification.Inbox) Option {
	return func(s *Scheduler) { s.inbox = in }
}

// WithGate sets the permission gate consulted before platform notifications.
func WithGate(g *notification.Gate) Option {
	return func(s *Scheduler) { s.gate = g }
}

// WithPolicy sets a source for the user's notification policy.
func WithPolicy(policy func() backend.NotificationPolicy) Option {
	return func(s *Scheduler) { s.policy = policy }
}

// Scheduler arranges reminders ahead of task due times. At most one
// reminder is pending per task.
type Scheduler struct {
	mu       sync.Mutex
	pending  map[int64]*Handle
	clock    Clock
	lookup   TaskLookup
	notifier notification.NotificationManager
	inbox    *notification.Inbox
	gate     *notification.Gate
	policy   func() backend.NotificationPolicy
}

// NewScheduler creates a scheduler. lookup is consulted when a reminder
// fires so that completed or deleted tasks stay silent.
func NewScheduler(lookup TaskLookup, opts ...Option) *Scheduler {
	s := &Scheduler{
		pending: make(map[int64]*Handle),
		clock:   realClock{},
		lookup:  lookup,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle is a scheduled reminder.
type Handle struct {
	s      *Scheduler
	taskID int64
	fireAt time.Time
	timer  Timer
	done   bool
}

// TaskID returns the task the reminder belongs to.
func (h *Handle) TaskID() int64 { return h.taskID }

// FireAt returns when the reminder fires.
func (h *Handle) FireAt() time.Time { return h.fireAt }

// Cancel stops the reminder. It reports whether the reminder was still
// pending; calling it again is harmless.
func (h *Handle) Cancel() bool {
	if h == nil {
		return false
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.s.cancelLocked(h)
}

// Schedule arranges a reminder leadMinutes before task's due instant. It
// returns a nil handle when nothing was scheduled: the lead is not
// positive, the fire instant is not in the future, the task is no longer
// active, or the notification policy excludes it. Scheduling replaces any
// pending reminder for the same task.
func (s *Scheduler) Schedule(ctx context.Context, task backend.Task, leadMinutes int) (*Handle, error) {
	s.Cancel(task.ID)
	if leadMinutes <= 0 || !task.IsActive() {
		return nil, nil
	}
	if !s.allowed(task) {
		utils.Debugf("reminder for task %d skipped by notification policy", task.ID)
		return nil, nil
	}

	now := s.clock.Now()
	fireAt := task.Due.Add(-time.Duration(leadMinutes) * time.Minute)
	if !fireAt.After(now) {
		return nil, nil
	}

	if s.gate != nil {
		if _, err := s.gate.Request(ctx); err != nil {
			utils.Warnf("Notification permission request failed: %v", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.pending[task.ID]; ok {
		s.cancelLocked(prev)
	}
	h := &Handle{s: s, taskID: task.ID, fireAt: fireAt}
	h.timer = s.clock.AfterFunc(fireAt.Sub(now), func() { s.fire(h) })
	s.pending[task.ID] = h

	utils.Debugf("reminder for task %d scheduled at %s", task.ID, fireAt.Format(time.RFC3339))
	return h, nil
}

// Cancel stops the pending reminder of a task, if any.
func (s *Scheduler) Cancel(taskID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.pending[taskID]
	if !ok {
		return false
	}
	return s.cancelLocked(h)
}

// CancelAll stops every pending reminder.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.pending {
		s.cancelLocked(h)
	}
}

// Pending returns the scheduled reminders ordered by fire time.
func (s *Scheduler) Pending() []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Handle, 0, len(s.pending))
	for _, h := range s.pending {
		out = append(out, h)
	}
	slices.SortFunc(out, func(a, b *Handle) int { return a.fireAt.Compare(b.fireAt) })
	return out
}

// Get returns the pending reminder of a task.
func (s *Scheduler) Get(taskID int64) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.pending[taskID]
	return h, ok
}

func (s *Scheduler) cancelLocked(h *Handle) bool {
	if h.done {
		return false
	}
	h.done = true
	if h.timer != nil {
		h.timer.Stop()
	}
	if s.pending[h.taskID] == h {
		delete(s.pending, h.taskID)
	}
	return true
}

func (s *Scheduler) allowed(task backend.Task) bool {
	if s.policy == nil {
		return true
	}
	switch s.policy() {
	case backend.NotifyNone:
		return false
	case backend.NotifyHigh:
		return task.Priority == backend.PriorityHigh
	default:
		return true
	}
}

// fire runs on the timer goroutine.
func (s *Scheduler) fire(h *Handle) {
	s.mu.Lock()
	if h.done {
		s.mu.Unlock()
		return
	}
	h.done = true
	if s.pending[h.taskID] == h {
		delete(s.pending, h.taskID)
	}
	s.mu.Unlock()

	// The task may have been completed or deleted since scheduling.
	task, ok := s.lookup(h.taskID)
	if !ok || !task.IsActive() {
		utils.Debugf("reminder for task %d dropped: task no longer active", h.taskID)
		return
	}
	// The policy may have changed since scheduling.
	if !s.allowed(task) {
		utils.Debugf("reminder for task %d dropped by notification policy", h.taskID)
		return
	}

	n := notification.Notification{
		Type:      notification.NotifyReminder,
		Title:     "Task Reminder",
		Message:   fmt.Sprintf("Your task %q is due soon.", task.Title),
		Timestamp: s.clock.Now(),
		Metadata: map[string]string{
			"task_id": strconv.FormatInt(task.ID, 10),
			"due":     task.Due.Format(time.RFC3339),
		},
	}

	if s.inbox != nil {
		s.inbox.Push(n)
	}
	if s.notifier != nil && (s.gate == nil || s.gate.Granted()) {
		if err := s.notifier.Send(n); err != nil {
			utils.Warnf("Failed to send reminder for task %d: %v", task.ID, err)
		}
	}
}

var leadPattern = regexp.MustCompile(`^(\d+)\s*(d|day|days|h|hour|hours|m|min|mins|minute|minutes|w|week|weeks)?$`)

// ParseLead parses a reminder lead such as "15", "15m", "1 hour" or "2d"
// into minutes. A bare number is minutes; empty or "none" is zero.
func ParseLead(lead string) (int, error) {
	lead = strings.TrimSpace(strings.ToLower(lead))
	if lead == "" || lead == "none" || lead == "0" {
		return 0, nil
	}

	matches := leadPattern.FindStringSubmatch(lead)
	if matches == nil {
		return 0, fmt.Errorf("invalid reminder lead: %s", lead)
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("invalid reminder lead: %s", lead)
	}

	switch matches[2] {
	case "d", "day", "days":
		return num * 24 * 60, nil
	case "h", "hour", "hours":
		return num * 60, nil
	case "w", "week", "weeks":
		return num * 7 * 24 * 60, nil
	default:
		return num, nil
	}
}
