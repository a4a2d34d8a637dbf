// Package file stores snapshots as a JSON document on disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/snapshot"
)

// Store keeps the latest snapshot in a single file.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a file store writing to path. Parent directories are
// created on Save.
func NewStore(path string, log *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("snapshot file path is required")
	}
	return &Store{path: path, logger: logger.OrNop(log)}, nil
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// Save replaces the file atomically.
func (s *Store) Save(_ context.Context, snap *memory.Snapshot) error {
	if snap == nil {
		return errors.New("nil snapshot")
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved",
		"path", s.path,
		"messages", len(snap.Messages),
		"summaries", len(snap.Summaries),
	)
	return nil
}

func (s *Store) Load(_ context.Context) (*memory.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, snapshot.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap memory.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", s.path, err)
	}
	return &snap, nil
}

func (s *Store) Close() error {
	return nil
}
