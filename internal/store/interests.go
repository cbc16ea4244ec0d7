package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"kairon/backend"
)

// InterestStore owns the interest collection. Interests are created and
// deleted only.
type InterestStore struct {
	mu        sync.RWMutex
	interests []backend.Interest
	db        backend.Store
}

// NewInterestStore builds a store over already-loaded interests.
func NewInterestStore(db backend.Store, interests []backend.Interest) *InterestStore {
	s := &InterestStore{db: db}
	s.Replace(interests)
	return s
}

// Replace swaps the whole collection.
func (s *InterestStore) Replace(interests []backend.Interest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interests = slices.Clone(interests)
}

// All returns a copy of every interest.
func (s *InterestStore) All() []backend.Interest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.interests)
}

// Create stores a new interest.
func (s *InterestStore) Create(ctx context.Context, title, description string) (backend.Interest, error) {
	in := backend.Interest{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
	}
	if err := in.Validate(); err != nil {
		return backend.Interest{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.db.PutInterest(ctx, in)
	if err != nil {
		return backend.Interest{}, persistErr("create interest", err)
	}
	s.interests = append(s.interests, stored)
	return stored, nil
}

// Delete removes an interest. A missing id returns backend.ErrNotFound.
func (s *InterestStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.interests, func(in backend.Interest) bool { return in.ID == id })
	if i < 0 {
		return fmt.Errorf("interest %d: %w", id, backend.ErrNotFound)
	}
	if err := s.db.DeleteInterest(ctx, id); err != nil {
		return persistErr("delete interest", err)
	}
	s.interests = slices.Delete(s.interests, i, i+1)
	return nil
}
