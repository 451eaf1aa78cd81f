package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"spiritual-shorts-pipeline/types"
)

// FileStore keeps the content log as a JSON array and stats as a JSON
// object. Writes go through a temp file and rename.
type FileStore struct {
	mu          sync.Mutex
	contentPath string
	statsPath   string
}

// NewFileStore creates a FileStore; files are created on first write
func NewFileStore(contentPath, statsPath string) *FileStore {
	return &FileStore{contentPath: contentPath, statsPath: statsPath}
}

func (f *FileStore) AppendContent(_ context.Context, piece *types.ContentPiece) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	pieces, err := f.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range pieces {
		if pieces[i].ID == piece.ID {
			pieces[i] = *piece
			replaced = true
			break
		}
	}
	if !replaced {
		pieces = append(pieces, *piece)
	}
	return writeJSON(f.contentPath, pieces)
}

func (f *FileStore) ListContent(_ context.Context, limit int) ([]types.ContentPiece, error) {
	f.mu.Lock()
	pieces, err := f.load()
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]types.ContentPiece, 0, len(pieces))
	for i := len(pieces) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, pieces[i])
	}
	return out, nil
}

func (f *FileStore) SaveStats(_ context.Context, stats types.CycleStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeJSON(f.statsPath, stats)
}

func (f *FileStore) LoadStats(_ context.Context) (types.CycleStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var stats types.CycleStats
	data, err := os.ReadFile(f.statsPath)
	if errors.Is(err, os.ErrNotExist) {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("read stats: %w", err)
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return stats, fmt.Errorf("parse stats %s: %w", f.statsPath, err)
	}
	return stats, nil
}

func (f *FileStore) Close() error { return nil }

// load reads the content log in insertion order; caller holds mu
func (f *FileStore) load() ([]types.ContentPiece, error) {
	data, err := os.ReadFile(f.contentPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read content log: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var pieces []types.ContentPiece
	if err := json.Unmarshal(data, &pieces); err != nil {
		return nil, fmt.Errorf("parse content log %s: %w", f.contentPath, err)
	}
	return pieces, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
