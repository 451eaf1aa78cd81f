package store

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

	"spiritual-shorts-pipeline/types"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS content (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		theme        TEXT NOT NULL,
		content_type TEXT NOT NULL,
		source       TEXT NOT NULL,
		status       TEXT NOT NULL,
		score        REAL NOT NULL,
		external_id  TEXT,
		created_at   TEXT NOT NULL,
		data         TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_content_status ON content(status);

	CREATE TABLE IF NOT EXISTS cycle_stats (
		id         INTEGER PRIMARY KEY CHECK (id = 1),
		data       TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) AppendContent(ctx context.Context, piece *types.ContentPiece) error {
	data, err := json.Marshal(piece)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO content (id, title, theme, content_type, source, status, score, external_id, created_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			score = excluded.score,
			external_id = excluded.external_id,
			data = excluded.data`,
		piece.ID, piece.Title, piece.Theme, string(piece.ContentType), string(piece.Source),
		string(piece.Status), piece.AuthenticityScore, piece.ExternalID,
		piece.CreatedAt.UTC().Format(time.RFC3339Nano), string(data),
	)
	if err != nil {
		return fmt.Errorf("insert content: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListContent(ctx context.Context, limit int) ([]types.ContentPiece, error) {
	query := `SELECT data FROM content ORDER BY rowid DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query content: %w", err)
	}
	defer rows.Close()

	var pieces []types.ContentPiece
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var p types.ContentPiece
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("decode content: %w", err)
		}
		pieces = append(pieces, p)
	}
	return pieces, rows.Err()
}

func (s *SQLiteStore) SaveStats(ctx context.Context, stats types.CycleStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cycle_stats (id, data, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(data), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadStats(ctx context.Context) (types.CycleStats, error) {
	var stats types.CycleStats
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM cycle_stats WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("load stats: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return stats, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
