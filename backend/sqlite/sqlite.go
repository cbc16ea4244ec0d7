package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kairon/backend"

	_ "modernc.org/sqlite"
)

// Backend implements backend.Store using SQLite
type Backend struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the database at path and initializes the schema.
// ":memory:" gives a private in-memory database.
func New(path string) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	b := &Backend{db: db, path: path}
	if err := b.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return b, nil
}

// initSchema creates the database tables if they don't exist
func (b *Backend) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT 'low',
			due TEXT NOT NULL,
			recurrence TEXT NOT NULL DEFAULT 'none',
			tags TEXT NOT NULL DEFAULT '[]',
			notes TEXT NOT NULL DEFAULT '',
			subtasks TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'active',
			created TEXT NOT NULL,
			completed TEXT,
			position INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
		CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due);

		CREATE TABLE IF NOT EXISTS interests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`

	if _, err := b.db.Exec("PRAGMA journal_mode = WAL"); err != nil && b.path != ":memory:" {
		return err
	}

	_, err := b.db.Exec(schema)
	return err
}

// LoadAll reads tasks, interests and the settings record.
func (b *Backend) LoadAll(ctx context.Context) (*backend.Snapshot, error) {
	tasks, err := b.loadTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	interests, err := b.loadInterests(ctx)
	if err != nil {
		return nil, fmt.Errorf("load interests: %w", err)
	}
	settings, err := b.loadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return &backend.Snapshot{Tasks: tasks, Interests: interests, Settings: settings}, nil
}

const taskColumns = `id, title, category, priority, due, recurrence, tags, notes, subtasks, status, created, completed, position`

func (b *Backend) loadTasks(ctx context.Context) ([]backend.Task, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT "+taskColumns+" FROM tasks ORDER BY position, id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tasks := []backend.Task{}
	for rows.Next() {
		t, err := scanTaskFrom(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (b *Backend) loadInterests(ctx context.Context) ([]backend.Interest, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT id, title, description FROM interests ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	interests := []backend.Interest{}
	for rows.Next() {
		var i backend.Interest
		if err := rows.Scan(&i.ID, &i.Title, &i.Description); err != nil {
			return nil, err
		}
		interests = append(interests, i)
	}
	return interests, rows.Err()
}

func (b *Backend) loadSettings(ctx context.Context) (*backend.Settings, error) {
	var raw string
	err := b.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", backend.SettingsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s, err := backend.DecodeSettings([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("decode settings record: %w", err)
	}
	return &s, nil
}

// timeToNullString converts a *time.Time to sql.NullString for database storage.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

// parseOptionalDate parses a nullable date string and returns a pointer to time.Time.
func parseOptionalDate(str sql.NullString) *time.Time {
	if str.Valid && str.String != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, str.String); err == nil {
			return &parsed
		}
	}
	return nil
}

// scanner is an interface satisfied by both *sql.Rows and *sql.Row
type scanner interface {
	Scan(dest ...any) error
}

// scanTaskFrom scans a task from any scanner (Rows or Row)
func scanTaskFrom(s scanner) (*backend.Task, error) {
	var t backend.Task
	var dueStr, createdStr, tagsStr, subtasksStr string
	var completedStr sql.NullString

	err := s.Scan(
		&t.ID, &t.Title, &t.Category, &t.Priority, &dueStr, &t.Recurrence,
		&tagsStr, &t.Notes, &subtasksStr, &t.Status, &createdStr, &completedStr, &t.Position,
	)
	if err != nil {
		return nil, err
	}

	if t.Due, err = time.Parse(time.RFC3339Nano, dueStr); err != nil {
		return nil, fmt.Errorf("task %d: bad due time: %w", t.ID, err)
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
		return nil, fmt.Errorf("task %d: bad created time: %w", t.ID, err)
	}
	t.CompletedAt = parseOptionalDate(completedStr)

	if err := json.Unmarshal([]byte(tagsStr), &t.Tags); err != nil {
		return nil, fmt.Errorf("task %d: bad tags: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(subtasksStr), &t.Subtasks); err != nil {
		return nil, fmt.Errorf("task %d: bad subtasks: %w", t.ID, err)
	}
	return &t, nil
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func taskArgs(task backend.Task) ([]any, error) {
	tags := task.Tags
	if tags == nil {
		tags = []string{}
	}
	subtasks := task.Subtasks
	if subtasks == nil {
		subtasks = []backend.Subtask{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	subtasksJSON, err := json.Marshal(subtasks)
	if err != nil {
		return nil, err
	}
	return []any{
		task.Title, task.Category, string(task.Priority), task.Due.Format(time.RFC3339Nano),
		string(task.Recurrence), string(tagsJSON), task.Notes, string(subtasksJSON),
		string(task.Status), task.CreatedAt.Format(time.RFC3339Nano),
		timeToNullString(task.CompletedAt), task.Position,
	}, nil
}

func upsertTask(ctx context.Context, ex execer, task backend.Task) (int64, error) {
	args, err := taskArgs(task)
	if err != nil {
		return 0, err
	}

	if task.ID == 0 {
		res, err := ex.ExecContext(ctx,
			`INSERT INTO tasks (title, category, priority, due, recurrence, tags, notes, subtasks, status, created, completed, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}

	_, err = ex.ExecContext(ctx,
		`INSERT INTO tasks (id, title, category, priority, due, recurrence, tags, notes, subtasks, status, created, completed, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, category = excluded.category, priority = excluded.priority,
			due = excluded.due, recurrence = excluded.recurrence, tags = excluded.tags,
			notes = excluded.notes, subtasks = excluded.subtasks, status = excluded.status,
			created = excluded.created, completed = excluded.completed, position = excluded.position`,
		append([]any{task.ID}, args...)...)
	return task.ID, err
}

// PutTask inserts or replaces a task, assigning an id when task.ID is zero.
func (b *Backend) PutTask(ctx context.Context, task backend.Task) (backend.Task, error) {
	id, err := upsertTask(ctx, b.db, task)
	if err != nil {
		return backend.Task{}, err
	}
	task.ID = id
	return task, nil
}

// PutTasks writes all tasks in a single transaction.
func (b *Backend) PutTasks(ctx context.Context, tasks []backend.Task) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, task := range tasks {
		if task.ID == 0 {
			return fmt.Errorf("batch write requires existing task ids")
		}
		if _, err := upsertTask(ctx, tx, task); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteTask removes a task. Deleting a missing id is not an error.
func (b *Backend) DeleteTask(ctx context.Context, id int64) error {
	_, err := b.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	return err
}

// PutInterest inserts or replaces an interest, assigning an id when zero.
func (b *Backend) PutInterest(ctx context.Context, interest backend.Interest) (backend.Interest, error) {
	if interest.ID == 0 {
		res, err := b.db.ExecContext(ctx,
			"INSERT INTO interests (title, description) VALUES (?, ?)",
			interest.Title, interest.Description)
		if err != nil {
			return backend.Interest{}, err
		}
		if interest.ID, err = res.LastInsertId(); err != nil {
			return backend.Interest{}, err
		}
		return interest, nil
	}

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO interests (id, title, description) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, description = excluded.description`,
		interest.ID, interest.Title, interest.Description)
	return interest, err
}

// DeleteInterest removes an interest. Deleting a missing id is not an error.
func (b *Backend) DeleteInterest(ctx context.Context, id int64) error {
	_, err := b.db.ExecContext(ctx, "DELETE FROM interests WHERE id = ?", id)
	return err
}

// PutSettings replaces the settings record wholesale.
func (b *Backend) PutSettings(ctx context.Context, settings backend.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = b.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		backend.SettingsKey, string(raw))
	return err
}

// Path returns the database file path.
func (b *Backend) Path() string {
	return b.path
}

// Close closes the database connection
func (b *Backend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// Verify interface compliance at compile time
var _ backend.Store = (*Backend)(nil)
