// Package store persists the content log and cycle stats. Three backends
// share one interface: flat JSON files, SQLite and Postgres.
package store

import (
	"context"
	"fmt"
	"os"

	"spiritual-shorts-pipeline/config"
	"spiritual-shorts-pipeline/types"
)

// Store is the persistence the engine records each cycle into
type Store interface {
	// AppendContent records a piece; recording the same ID again replaces it
	AppendContent(ctx context.Context, piece *types.ContentPiece) error
	// ListContent returns up to limit pieces, newest first; limit <= 0 means all
	ListContent(ctx context.Context, limit int) ([]types.ContentPiece, error)
	SaveStats(ctx context.Context, stats types.CycleStats) error
	// LoadStats returns zero stats when nothing was saved yet
	LoadStats(ctx context.Context) (types.CycleStats, error)
	Close() error
}

// DefaultSQLitePath is used when store.dsn is empty for the sqlite driver
const DefaultSQLitePath = "data/pipeline.db"

// Open returns the backend selected by store.driver
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Store.Driver {
	case "", "file":
		return NewFileStore(cfg.Paths.ContentLog, cfg.Paths.Stats), nil
	case "sqlite":
		dsn := cfg.Store.DSN
		if dsn == "" {
			dsn = DefaultSQLitePath
		}
		return NewSQLiteStore(dsn)
	case "postgres":
		dsn := cfg.Store.DSN
		if dsn == "" {
			dsn = os.Getenv("DATABASE_URL")
		}
		return NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Summary aggregates the content log
type Summary struct {
	TotalContent    int     `json:"total_content"`
	Published       int     `json:"published"`
	Fallbacks       int     `json:"fallbacks"`
	AverageScore    float64 `json:"average_authenticity"`
	LatestContentID string  `json:"latest_content_id,omitempty"`
}

// Summarize computes a Summary over pieces ordered newest first
func Summarize(pieces []types.ContentPiece) Summary {
	var s Summary
	var total float64
	for _, p := range pieces {
		s.TotalContent++
		total += p.AuthenticityScore
		if p.Status == types.StatusPublished {
			s.Published++
		}
		if p.Source == types.SourceFallback {
			s.Fallbacks++
		}
	}
	if s.TotalContent > 0 {
		s.AverageScore = total / float64(s.TotalContent)
		s.LatestContentID = pieces[0].ID
	}
	return s
}
