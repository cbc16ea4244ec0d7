package backend

import (
	"context"
)

// Snapshot is everything a Store holds, as read at startup or on reload.
type Snapshot struct {
	Tasks     []Task
	Interests []Interest
	Settings  *Settings // nil when no settings record was ever saved
}

// Store defines the persistence adapter behind the in-memory stores.
// A mutation is durable once its call returns nil.
type Store interface {
	// LoadAll reads every record. Tasks come back ordered by Position, then ID.
	LoadAll(ctx context.Context) (*Snapshot, error)

	// PutTask inserts or replaces a task. A zero ID is assigned by storage.
	PutTask(ctx context.Context, task Task) (Task, error)
	// PutTasks replaces several tasks atomically.
	PutTasks(ctx context.Context, tasks []Task) error
	DeleteTask(ctx context.Context, id int64) error

	PutInterest(ctx context.Context, interest Interest) (Interest, error)
	DeleteInterest(ctx context.Context, id int64) error

	PutSettings(ctx context.Context, settings Settings) error

	// Path identifies the underlying storage for change watching.
	Path() string
	Close() error
}
