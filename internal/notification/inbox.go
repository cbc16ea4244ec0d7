package notification

import (
	"slices"
	"sync"
)

// DefaultInboxSize is the number of in-app notifications kept.
const DefaultInboxSize = 50

// Inbox keeps the most recent in-app notifications and fans them out to
// subscribers such as the TUI.
type Inbox struct {
	mu     sync.Mutex
	items  []Notification
	size   int
	nextID int
	subs   map[int]func(Notification)
}

// NewInbox creates an inbox holding up to size notifications.
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{size: size, subs: map[int]func(Notification){}}
}

// Push records n and notifies subscribers outside the lock.
func (i *Inbox) Push(n Notification) {
	i.mu.Lock()
	i.items = append(i.items, n)
	if over := len(i.items) - i.size; over > 0 {
		i.items = slices.Delete(i.items, 0, over)
	}
	subs := make([]func(Notification), 0, len(i.subs))
	for _, fn := range i.subs {
		subs = append(subs, fn)
	}
	i.mu.Unlock()

	for _, fn := range subs {
		fn(n)
	}
}

// List returns the kept notifications, newest first.
func (i *Inbox) List() []Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := slices.Clone(i.items)
	slices.Reverse(out)
	return out
}

// Len returns how many notifications are kept.
func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.items)
}

// Clear drops every kept notification.
func (i *Inbox) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = nil
}

// Subscribe registers fn for future notifications and returns a function
// that removes it.
func (i *Inbox) Subscribe(fn func(Notification)) func() {
	i.mu.Lock()
	defer i.mu.Unlock()
	id := i.nextID
	i.nextID++
	i.subs[id] = fn
	return func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		delete(i.subs, id)
	}
}
