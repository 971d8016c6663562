// Package persist is the durable storage layer: structured records
// (file comments, activity logs) and the best-effort state snapshot, all
// isolated by project key.
//
// Every query takes a project key; there is deliberately no
// "all projects" shape at this layer. The dispatch store linearizes all
// writes, so the layer itself only relies on sqlite's own locking.
package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/grovetools/studio/errors"
	"github.com/grovetools/studio/internal/state"
)

// snapshotID is the fixed top-level identifier the app snapshot is stored
// under.
const snapshotID = "app"

// Comment is a persisted file comment.
type Comment struct {
	ProjectKey string    `json:"project_key"`
	Path       string    `json:"path"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Activity is a persisted activity log entry.
type Activity struct {
	ProjectKey string    `json:"project_key"`
	Scope      string    `json:"scope"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AppendComment durably records a file comment.
func (s *Store) AppendComment(ctx context.Context, c Comment) error {
	if c.ProjectKey == "" {
		return errors.New(errors.ErrCodeInvalidInput, "comment requires a project key")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO file_comments(project_key, path, content, created_at)
VALUES (?, ?, ?, ?)
`, c.ProjectKey, c.Path, c.Content, ts(c.CreatedAt))
	if err != nil {
		return errors.PersistenceFailure("append comment", err)
	}
	return nil
}

// QueryComments returns comments for one path within one project, oldest
// first. An empty project key is a programming error, not a broad query.
func (s *Store) QueryComments(ctx context.Context, projectKey, path string) ([]Comment, error) {
	if projectKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "comment query requires a project key")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT project_key, path, content, created_at
FROM file_comments
WHERE project_key = ? AND path = ?
ORDER BY created_at ASC, rowid ASC
`, projectKey, path)
	if err != nil {
		return nil, errors.PersistenceFailure("query comments", err)
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		var created string
		if err := rows.Scan(&c.ProjectKey, &c.Path, &c.Content, &created); err != nil {
			return nil, errors.PersistenceFailure("scan comment", err)
		}
		c.CreatedAt = parseTS(created)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.PersistenceFailure("iterate comments", err)
	}
	return out, nil
}

// AppendActivity durably records an activity log entry.
func (s *Store) AppendActivity(ctx context.Context, a Activity) error {
	if a.ProjectKey == "" {
		return errors.New(errors.ErrCodeInvalidInput, "activity requires a project key")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO activity_logs(project_key, scope, content, created_at)
VALUES (?, ?, ?, ?)
`, a.ProjectKey, a.Scope, a.Content, ts(a.CreatedAt))
	if err != nil {
		return errors.PersistenceFailure("append activity", err)
	}
	return nil
}

// QueryActivity returns activity entries for one scope within one project,
// oldest first.
func (s *Store) QueryActivity(ctx context.Context, projectKey, scope string) ([]Activity, error) {
	if projectKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "activity query requires a project key")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT project_key, scope, content, created_at
FROM activity_logs
WHERE project_key = ? AND scope = ?
ORDER BY created_at ASC, rowid ASC
`, projectKey, scope)
	if err != nil {
		return nil, errors.PersistenceFailure("query activity", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		var created string
		if err := rows.Scan(&a.ProjectKey, &a.Scope, &a.Content, &created); err != nil {
			return nil, errors.PersistenceFailure("scan activity", err)
		}
		a.CreatedAt = parseTS(created)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.PersistenceFailure("iterate activity", err)
	}
	return out, nil
}

// SaveSnapshot upserts the serialized state tree. Memory stays
// authoritative; this is a recovery aid only, so callers log failures
// instead of rolling anything back.
func (s *Store) SaveSnapshot(ctx context.Context, app *state.App) error {
	data, err := json.Marshal(app)
	if err != nil {
		return errors.PersistenceFailure("marshal snapshot", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO snapshots(id, state, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	state=excluded.state,
	updated_at=excluded.updated_at
`, snapshotID, string(data), ts(time.Now().UTC()))
	if err != nil {
		return errors.PersistenceFailure("save snapshot", err)
	}
	return nil
}

// LoadSnapshot returns the recovered state tree, or nil if no snapshot has
// been written yet. Absence is not an error.
func (s *Store) LoadSnapshot(ctx context.Context) (*state.App, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM snapshots WHERE id = ?`, snapshotID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.PersistenceFailure("load snapshot", err)
	}
	var app state.App
	if err := json.Unmarshal([]byte(data), &app); err != nil {
		return nil, errors.PersistenceFailure("unmarshal snapshot", err)
	}
	return &app, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
