package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no analysis has the requested id.
var ErrNotFound = errors.New("history: analysis not found")

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id          TEXT PRIMARY KEY,
	repo_url    TEXT NOT NULL,
	repo_name   TEXT NOT NULL,
	analyzed_at INTEGER NOT NULL,
	status      TEXT NOT NULL,
	score       REAL NOT NULL,
	file_count  INTEGER NOT NULL,
	record      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_analyzed_at ON analyses(analyzed_at);
`

// Store keeps analyses in a SQLite database. Each row carries the summary
// columns used for listing plus the full record as JSON.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the store at path. ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create history directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	// A ":memory:" database lives and dies with its connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Save inserts rec, replacing any record with the same id.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal analysis %s: %w", rec.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO analyses (id, repo_url, repo_name, analyzed_at, status, score, file_count, record)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RepoURL, rec.RepoName, rec.AnalyzedAt.UnixMilli(), rec.Status, rec.Score, len(rec.Files), string(data))
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", rec.ID, err)
	}
	return nil
}

// List returns every stored analysis, newest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, repo_url, repo_name, analyzed_at, status, score, file_count
		 FROM analyses ORDER BY analyzed_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		var millis int64
		if err := rows.Scan(&sum.ID, &sum.RepoURL, &sum.RepoName, &millis, &sum.Status, &sum.Score, &sum.FileCount); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		sum.AnalyzedAt = time.UnixMilli(millis).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Get loads one record.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM analyses WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", id, err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", id, err)
	}
	return &rec, nil
}

// Delete removes one record.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete analysis %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete analysis %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Latest returns the newest record for repoName, or ErrNotFound.
func (s *Store) Latest(ctx context.Context, repoName string) (*Record, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM analyses WHERE repo_name = ? ORDER BY analyzed_at DESC LIMIT 1`, repoName).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no analysis of %s", ErrNotFound, repoName)
	}
	if err != nil {
		return nil, fmt.Errorf("latest analysis of %s: %w", repoName, err)
	}
	return s.Get(ctx, id)
}

// Ping checks the database handle is usable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error { return s.db.Close() }
