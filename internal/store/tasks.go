package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"kairon/backend"
)

// Draft holds the user-supplied fields of a new task.
type Draft struct {
	Title      string
	Category   string
	Priority   backend.Priority
	Due        time.Time
	Recurrence backend.Recurrence
	Tags       []string
	Notes      string
	Subtasks   []backend.Subtask
}

// Patch holds the fields to replace on an existing task. Nil fields are kept.
type Patch struct {
	Title      *string
	Category   *string
	Priority   *backend.Priority
	Due        *time.Time
	Recurrence *backend.Recurrence
	Tags       *[]string
	Notes      *string
	Subtasks   *[]backend.Subtask
}

// TaskStore owns the task collection for one application instance.
type TaskStore struct {
	mu    sync.RWMutex
	tasks []backend.Task
	db    backend.Store
	opts  options
}

// NewTaskStore builds a store over already-loaded tasks.
func NewTaskStore(db backend.Store, tasks []backend.Task, opts ...Option) *TaskStore {
	s := &TaskStore{db: db, opts: buildOptions(opts)}
	s.Replace(tasks)
	return s
}

// Replace swaps the whole collection, e.g. after reloading from storage.
func (s *TaskStore) Replace(tasks []backend.Task) {
	cloned := make([]backend.Task, 0, len(tasks))
	for _, t := range tasks {
		cloned = append(cloned, t.Clone())
	}
	slices.SortStableFunc(cloned, func(a, b backend.Task) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return int(a.ID - b.ID)
	})

	s.mu.Lock()
	s.tasks = cloned
	s.mu.Unlock()
}

// All returns a copy of every task in display order.
func (s *TaskStore) All() []backend.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.tasks, nil)
}

// Active returns active tasks in display order.
func (s *TaskStore) Active() []backend.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.tasks, backend.Task.IsActive)
}

// Completed returns completed tasks in display order.
func (s *TaskStore) Completed() []backend.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.tasks, func(t backend.Task) bool { return !t.IsActive() })
}

// Get returns the task with id.
func (s *TaskStore) Get(id int64) (backend.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(id); i >= 0 {
		return s.tasks[i].Clone(), true
	}
	return backend.Task{}, false
}

// Create validates and stores a new active task.
func (s *TaskStore) Create(ctx context.Context, d Draft) (backend.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := backend.Task{
		Title:      strings.TrimSpace(d.Title),
		Category:   strings.TrimSpace(d.Category),
		Priority:   d.Priority,
		Due:        d.Due,
		Recurrence: d.Recurrence,
		Tags:       normalizeTags(d.Tags),
		Notes:      d.Notes,
		Subtasks:   slices.Clone(d.Subtasks),
		Status:     backend.StatusActive,
		CreatedAt:  s.opts.now(),
		Position:   s.nextPosition(),
	}
	if task.Category == "" {
		task.Category = "Other"
	}
	if task.Priority == "" {
		task.Priority = backend.PriorityLow
	}
	if task.Recurrence == "" {
		task.Recurrence = backend.RecurrenceNone
	}
	if task.Subtasks == nil {
		task.Subtasks = []backend.Subtask{}
	}
	if err := task.Validate(); err != nil {
		return backend.Task{}, err
	}

	stored, err := s.db.PutTask(ctx, task)
	if err != nil {
		return backend.Task{}, persistErr("create task", err)
	}
	s.tasks = append(s.tasks, stored)
	return stored.Clone(), nil
}

// Update replaces the patched fields of an active task.
// Completed tasks are terminal and reject edits.
func (s *TaskStore) Update(ctx context.Context, id int64, p Patch) (backend.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return backend.Task{}, fmt.Errorf("task %d: %w", id, backend.ErrNotFound)
	}
	task := s.tasks[i].Clone()
	if !task.IsActive() {
		return backend.Task{}, &backend.ValidationError{Field: "status", Message: "completed tasks cannot be edited"}
	}

	if p.Title != nil {
		task.Title = strings.TrimSpace(*p.Title)
	}
	if p.Category != nil {
		task.Category = strings.TrimSpace(*p.Category)
	}
	if p.Priority != nil {
		task.Priority = *p.Priority
	}
	if p.Due != nil {
		task.Due = *p.Due
	}
	if p.Recurrence != nil {
		task.Recurrence = *p.Recurrence
	}
	if p.Tags != nil {
		task.Tags = normalizeTags(*p.Tags)
	}
	if p.Notes != nil {
		task.Notes = *p.Notes
	}
	if p.Subtasks != nil {
		task.Subtasks = slices.Clone(*p.Subtasks)
	}
	if err := task.Validate(); err != nil {
		return backend.Task{}, err
	}

	if _, err := s.db.PutTask(ctx, task); err != nil {
		return backend.Task{}, persistErr("update task", err)
	}
	s.tasks[i] = task
	return task.Clone(), nil
}

// Complete marks a task completed. Completing an already completed task
// returns it unchanged, keeping the first completion time.
func (s *TaskStore) Complete(ctx context.Context, id int64) (backend.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return backend.Task{}, fmt.Errorf("task %d: %w", id, backend.ErrNotFound)
	}
	if !s.tasks[i].IsActive() {
		return s.tasks[i].Clone(), nil
	}

	task := s.tasks[i].Clone()
	now := s.opts.now()
	if now.Before(task.CreatedAt) {
		now = task.CreatedAt
	}
	task.Status = backend.StatusCompleted
	task.CompletedAt = &now

	if _, err := s.db.PutTask(ctx, task); err != nil {
		return backend.Task{}, persistErr("complete task", err)
	}
	s.tasks[i] = task
	return task.Clone(), nil
}

// ToggleSubtask flips the completion flag of one checklist item.
func (s *TaskStore) ToggleSubtask(ctx context.Context, id int64, index int) (backend.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return backend.Task{}, fmt.Errorf("task %d: %w", id, backend.ErrNotFound)
	}
	task := s.tasks[i].Clone()
	if index < 0 || index >= len(task.Subtasks) {
		return backend.Task{}, &backend.ValidationError{Field: "subtasks", Message: fmt.Sprintf("no item %d", index+1)}
	}
	task.Subtasks[index].Completed = !task.Subtasks[index].Completed

	if _, err := s.db.PutTask(ctx, task); err != nil {
		return backend.Task{}, persistErr("toggle subtask", err)
	}
	s.tasks[i] = task
	return task.Clone(), nil
}

// Delete removes a task. A missing id returns backend.ErrNotFound without
// touching storage; callers may treat it as a no-op.
func (s *TaskStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("task %d: %w", id, backend.ErrNotFound)
	}
	if err := s.db.DeleteTask(ctx, id); err != nil {
		return persistErr("delete task", err)
	}
	s.tasks = slices.Delete(s.tasks, i, i+1)
	return nil
}

// Reorder re-sequences active tasks. The slots currently held by the
// mentioned active tasks are refilled in the requested order; unknown,
// duplicate and completed ids are ignored and every other task keeps its
// slot. The new order is persisted through Position.
func (s *TaskStore) Reorder(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var wanted []int64
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		i := s.index(id)
		if i < 0 || seen[id] || !s.tasks[i].IsActive() {
			continue
		}
		seen[id] = true
		wanted = append(wanted, id)
	}
	if len(wanted) == 0 {
		return nil
	}

	next := cloneTasks(s.tasks, nil)
	byID := make(map[int64]backend.Task, len(wanted))
	for _, t := range next {
		if seen[t.ID] {
			byID[t.ID] = t
		}
	}
	k := 0
	for i := range next {
		if seen[next[i].ID] {
			next[i] = byID[wanted[k]]
			k++
		}
	}

	var changed []backend.Task
	for i := range next {
		if next[i].Position != i+1 {
			next[i].Position = i + 1
			changed = append(changed, next[i])
		}
	}
	if len(changed) > 0 {
		if err := s.db.PutTasks(ctx, changed); err != nil {
			return persistErr("reorder tasks", err)
		}
	}
	s.tasks = next
	return nil
}

func (s *TaskStore) index(id int64) int {
	return slices.IndexFunc(s.tasks, func(t backend.Task) bool { return t.ID == id })
}

func (s *TaskStore) nextPosition() int {
	last := 0
	for _, t := range s.tasks {
		last = max(last, t.Position)
	}
	return last + 1
}

func cloneTasks(tasks []backend.Task, keep func(backend.Task) bool) []backend.Task {
	out := make([]backend.Task, 0, len(tasks))
	for _, t := range tasks {
		if keep == nil || keep(t) {
			out = append(out, t.Clone())
		}
	}
	return out
}

// normalizeTags trims tags and drops empties and repeats, keeping order.
func normalizeTags(tags []string) []string {
	out := []string{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}
