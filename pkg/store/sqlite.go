package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/matzehuels/depscout/pkg/errors"
	"github.com/matzehuels/depscout/pkg/export"
)

// SQLiteStore keeps manifests in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS scans (
	id TEXT PRIMARY KEY,
	root TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	components INTEGER NOT NULL,
	edges INTEGER NOT NULL,
	failures INTEGER NOT NULL,
	manifest BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scans_started_at ON scans(started_at);
`

// NewSQLiteStore opens or creates the database at path. The path
// ":memory:" opens a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorage, err, "create store directory")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "open %s", path)
	}
	// One connection keeps an in-memory database alive and serializes
	// writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrap(errors.ErrCodeStorage, err, "set pragma")
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "init schema")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, m *export.Manifest) error {
	if err := validate(m); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.WriteJSON(m, &buf); err != nil {
		return err
	}
	sum := Summarize(m)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scans (id, root, started_at, duration_ns, components, edges, failures, manifest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			root = excluded.root,
			started_at = excluded.started_at,
			duration_ns = excluded.duration_ns,
			components = excluded.components,
			edges = excluded.edges,
			failures = excluded.failures,
			manifest = excluded.manifest
	`, sum.ID, sum.Root, sum.StartedAt.UnixNano(), int64(sum.Duration),
		sum.Components, sum.Edges, sum.Failures, buf.Bytes())
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "save scan %s", m.ScanID)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*export.Manifest, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT manifest FROM scans WHERE id = ?`, id).Scan(&data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "get scan %s", id)
	}
	var m export.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "decode scan %s", id)
	}
	return &m, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, root, started_at, duration_ns, components, edges, failures
		FROM scans ORDER BY started_at DESC, id LIMIT ?
	`, limitOrDefault(limit))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "list scans")
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		var started, duration int64
		if err := rows.Scan(&sum.ID, &sum.Root, &started, &duration, &sum.Components, &sum.Edges, &sum.Failures); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorage, err, "scan row")
		}
		sum.StartedAt = time.Unix(0, started).UTC()
		sum.Duration = time.Duration(duration)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "delete scan %s", id)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
