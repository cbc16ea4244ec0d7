package sqlite

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"kairon/backend"
)

// mustNewBackend creates an in-memory backend and registers cleanup
func mustNewBackend(t *testing.T) (*Backend, context.Context) {
	t.Helper()
	b, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:) error: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b, context.Background()
}

// mustPutTask stores a task and fails the test on error
func mustPutTask(t *testing.T, b *Backend, ctx context.Context, task backend.Task) backend.Task {
	t.Helper()
	stored, err := b.PutTask(ctx, task)
	if err != nil {
		t.Fatalf("PutTask error: %v", err)
	}
	return stored
}

func sampleTask(title string, position int) backend.Task {
	return backend.Task{
		Title:      title,
		Category:   "Work",
		Priority:   backend.PriorityHigh,
		Due:        time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
		Recurrence: backend.RecurrenceWeekly,
		Tags:       []string{"deep", "q2"},
		Notes:      "bring slides",
		Subtasks:   []backend.Subtask{{Text: "draft", Completed: true}, {Text: "review"}},
		Status:     backend.StatusActive,
		CreatedAt:  time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		Position:   position,
	}
}

// TestBackendImplementsInterface verifies the Backend type implements Store.
func TestBackendImplementsInterface(t *testing.T) {
	var _ backend.Store = (*Backend)(nil)
}

// TestTaskRoundTrip verifies a stored task reloads field-for-field.
func TestTaskRoundTrip(t *testing.T) {
	b, ctx := mustNewBackend(t)

	stored := mustPutTask(t, b, ctx, sampleTask("Quarterly review", 1))
	if stored.ID == 0 {
		t.Fatal("PutTask did not assign an id")
	}

	snap, err := b.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	if len(snap.Tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(snap.Tasks))
	}
	if !reflect.DeepEqual(snap.Tasks[0], stored) {
		t.Errorf("reloaded task = %+v\nwant %+v", snap.Tasks[0], stored)
	}
}

// TestCompletedTaskRoundTrip verifies completedAt survives storage.
func TestCompletedTaskRoundTrip(t *testing.T) {
	b, ctx := mustNewBackend(t)

	task := sampleTask("Done thing", 1)
	done := time.Date(2026, 5, 3, 17, 0, 0, 0, time.UTC)
	task.Status = backend.StatusCompleted
	task.CompletedAt = &done
	stored := mustPutTask(t, b, ctx, task)

	snap, err := b.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	got := snap.Tasks[0]
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, done)
	}
	if got.ID != stored.ID || got.Status != backend.StatusCompleted {
		t.Errorf("got %+v", got)
	}
}

// TestPutTaskUpdatesExisting verifies a non-zero id replaces the row.
func TestPutTaskUpdatesExisting(t *testing.T) {
	b, ctx := mustNewBackend(t)

	stored := mustPutTask(t, b, ctx, sampleTask("Old title", 1))
	stored.Title = "New title"
	stored.Tags = nil
	mustPutTask(t, b, ctx, stored)

	snap, err := b.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	if len(snap.Tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(snap.Tasks))
	}
	if snap.Tasks[0].Title != "New title" {
		t.Errorf("Title = %q, want %q", snap.Tasks[0].Title, "New title")
	}
	if len(snap.Tasks[0].Tags) != 0 {
		t.Errorf("Tags = %v, want empty", snap.Tasks[0].Tags)
	}
}

// TestLoadOrdersByPosition verifies tasks come back in position order.
func TestLoadOrdersByPosition(t *testing.T) {
	b, ctx := mustNewBackend(t)

	a := mustPutTask(t, b, ctx, sampleTask("A", 1))
	c := mustPutTask(t, b, ctx, sampleTask("B", 2))
	a.Position, c.Position = 2, 1
	if err := b.PutTasks(ctx, []backend.Task{a, c}); err != nil {
		t.Fatalf("PutTasks error: %v", err)
	}

	snap, err := b.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	if snap.Tasks[0].Title != "B" || snap.Tasks[1].Title != "A" {
		t.Errorf("order = %q, %q; want B, A", snap.Tasks[0].Title, snap.Tasks[1].Title)
	}
}

// TestPutTasksIsAtomic verifies a failing batch leaves no partial writes.
func TestPutTasksIsAtomic(t *testing.T) {
	b, ctx := mustNewBackend(t)

	a := mustPutTask(t, b, ctx, sampleTask("A", 1))
	a.Title = "changed"
	if err := b.PutTasks(ctx, []backend.Task{a, sampleTask("no id", 2)}); err == nil {
		t.Fatal("PutTasks with a zero id should fail")
	}

	snap, err := b.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	if snap.Tasks[0].Title != "A" {
		t.Errorf("Title = %q, batch was partially applied", snap.Tasks[0].Title)
	}
}

// TestDeleteTask verifies deletion, including a missing id.
func TestDeleteTask(t *testing.T) {
	b, ctx := mustNewBackend(t)

	stored := mustPutTask(t, b, ctx, sampleTask("Gone", 1))
	if err := b.DeleteTask(ctx, stored.ID); err != nil {
		t.Fatalf("DeleteTask error: %v", err)
	}
	if err := b.DeleteTask(ctx, 999); err != nil {
		t.Errorf("DeleteTask(missing) error: %v", err)
	}

	snap, err := b.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	if len(snap.Tasks) != 0 {
		t.Errorf("got %d tasks after delete, want 0", len(snap.Tasks))
	}
}

// TestInterests verifies interest create, update and delete.
func TestInterests(t *testing.T) {
	b, ctx := mustNewBackend(t)

	in, err := b.PutInterest(ctx, backend.Interest{Title: "Go", Description: "generics"})
	if err != nil {
		t.Fatalf("PutInterest error: %v", err)
	}
	if in.ID == 0 {
		t.Fatal("PutInterest did not assign an id")
	}
	in.Description = "iterators"
	if _, err := b.PutInterest(ctx, in); err != nil {
		t.Fatalf("PutInterest update error: %v", err)
	}

	snap, err := b.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	if len(snap.Interests) != 1 || snap.Interests[0] != in {
		t.Errorf("interests = %+v, want [%+v]", snap.Interests, in)
	}

	if err := b.DeleteInterest(ctx, in.ID); err != nil {
		t.Fatalf("DeleteInterest error: %v", err)
	}
	snap, _ = b.LoadAll(ctx)
	if len(snap.Interests) != 0 {
		t.Errorf("interests after delete = %+v", snap.Interests)
	}
}

// TestSettingsRecord verifies the absent record and wholesale replacement.
func TestSettingsRecord(t *testing.T) {
	b, ctx := mustNewBackend(t)

	snap, err := b.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	if snap.Settings != nil {
		t.Fatalf("Settings = %+v, want nil before first save", snap.Settings)
	}

	s := backend.DefaultSettings()
	s.Theme = "dark"
	s.Location = "Lagos"
	if err := b.PutSettings(ctx, s); err != nil {
		t.Fatalf("PutSettings error: %v", err)
	}

	snap, _ = b.LoadAll(ctx)
	if snap.Settings == nil || *snap.Settings != s {
		t.Errorf("Settings = %+v, want %+v", snap.Settings, s)
	}
}

// TestSettingsPartialRecordKeepsDefaults verifies older records are merged over defaults.
func TestSettingsPartialRecordKeepsDefaults(t *testing.T) {
	b, ctx := mustNewBackend(t)

	_, err := b.db.ExecContext(ctx, "INSERT INTO settings (key, value) VALUES (?, ?)",
		backend.SettingsKey, `{"theme":"dark"}`)
	if err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	snap, err := b.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	want := backend.DefaultSettings()
	want.Theme = "dark"
	if *snap.Settings != want {
		t.Errorf("Settings = %+v, want %+v", *snap.Settings, want)
	}
}

// TestFileDatabasePersists verifies data survives reopening a file database.
func TestFileDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kairon.db")
	ctx := context.Background()

	b, err := New(path)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	stored := mustPutTask(t, b, ctx, sampleTask("Persist me", 1))
	_ = b.Close()

	b2, err := New(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer func() { _ = b2.Close() }()

	snap, err := b2.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].ID != stored.ID {
		t.Errorf("tasks after reopen = %+v", snap.Tasks)
	}
	if b2.Path() != path {
		t.Errorf("Path() = %q, want %q", b2.Path(), path)
	}
}
