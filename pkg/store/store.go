// Package store persists scan manifests so past scans can be listed and
// fetched again, from the CLI or through the HTTP API.
//
// Two backends are provided: [SQLiteStore] for a single machine and
// [MongoStore] for a shared deployment. [Open] picks one from a DSN.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/matzehuels/depscout/pkg/errors"
	"github.com/matzehuels/depscout/pkg/export"
)

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 50

// Store holds scan manifests keyed by scan id.
type Store interface {
	// Save stores m, replacing any scan with the same id.
	Save(ctx context.Context, m *export.Manifest) error
	// Get returns the manifest for id or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*export.Manifest, error)
	// List returns summaries, newest first.
	List(ctx context.Context, limit int) ([]Summary, error)
	// Delete removes a scan. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
	Close() error
}

// Summary describes a stored scan without its graph.
type Summary struct {
	ID         string        `json:"id"`
	Root       string        `json:"root"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
	Components int           `json:"components"`
	Edges      int           `json:"edges"`
	Failures   int           `json:"failures"`
}

// Summarize derives the summary of m.
func Summarize(m *export.Manifest) Summary {
	return Summary{
		ID:         m.ScanID,
		Root:       m.Root,
		StartedAt:  m.StartedAt.UTC(),
		Duration:   m.Duration,
		Components: len(m.Components),
		Edges:      len(m.Edges),
		Failures:   len(m.Failures),
	}
}

// Open connects to the store a DSN names. "mongodb://" and
// "mongodb+srv://" URIs select MongoDB; "sqlite://path" or a bare path
// selects SQLite.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "":
		return nil, errors.New(errors.ErrCodeInvalidConfig, "store DSN cannot be empty")
	case strings.HasPrefix(dsn, "mongodb://"), strings.HasPrefix(dsn, "mongodb+srv://"):
		s, err := NewMongoStore(ctx, dsn, "", "")
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := NewSQLiteStore(strings.TrimPrefix(dsn, "sqlite://"))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func validate(m *export.Manifest) error {
	if m == nil || m.ScanID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "manifest has no scan id")
	}
	return nil
}

func notFound(id string) error {
	return errors.New(errors.ErrCodeNotFound, "scan %q not found", id)
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
