package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jonathan/transcript-pipeline/internal/fsutil"
	"github.com/jonathan/transcript-pipeline/internal/types"
)

// FileStore keeps the index in a single JSON document on disk.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore creates a FileStore backed by path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the snapshot location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the snapshot. A missing or unreadable snapshot yields an empty index.
func (s *FileStore) Load(ctx context.Context) (types.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("index unreadable, starting empty", "path", s.path, "error", err)
		}
		return types.NewIndex(), nil
	}

	var idx types.Index
	if err := json.Unmarshal(data, &idx); err != nil {
		s.logger.Warn("index corrupt, starting empty", "path", s.path, "error", err)
		return types.NewIndex(), nil
	}
	if idx == nil {
		return types.NewIndex(), nil
	}

	for key, rec := range idx {
		if rec == nil {
			delete(idx, key)
			continue
		}
		// the map key is authoritative
		rec.Key = key
		if !rec.Status.IsValid() {
			s.logger.Warn("unknown status, resetting record", "key", key, "status", rec.Status)
			rec.Status = types.StatusNew
		}
	}
	return idx, nil
}

// Persist replaces the snapshot atomically.
func (s *FileStore) Persist(ctx context.Context, idx types.Index) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if idx == nil {
		idx = types.NewIndex()
	}
	if err := fsutil.WriteJSONAtomic(s.path, idx); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}
	return nil
}
