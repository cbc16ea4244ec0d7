// Package store holds the in-memory task, interest and settings collections.
// Each store is the session's source of truth and writes through to a
// backend.Store before committing a change to memory, so a failed write
// leaves memory exactly as it was.
package store

import (
	"time"

	"kairon/backend"
)

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used for createdAt and completedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func persistErr(op string, err error) error {
	return &backend.PersistenceError{Op: op, Err: err}
}
