// Package snapshot saves and loads memory engine snapshots.
package snapshot

import (
	"context"
	"errors"

	"github.com/papercomputeco/recall/pkg/memory"
)

// ErrNotFound is returned by Load when no snapshot has been saved yet.
var ErrNotFound = errors.New("snapshot not found")

// Store persists engine snapshots outside the process.
type Store interface {
	// Save writes snap as the latest snapshot.
	Save(ctx context.Context, snap *memory.Snapshot) error

	// Load returns the latest snapshot, or ErrNotFound.
	Load(ctx context.Context) (*memory.Snapshot, error)

	Close() error
}
