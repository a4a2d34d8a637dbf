// Package snapshotutils builds snapshot stores from configuration.
package snapshotutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/recall/pkg/dotdir"
	"github.com/papercomputeco/recall/pkg/snapshot"
	"github.com/papercomputeco/recall/pkg/snapshot/file"
	"github.com/papercomputeco/recall/pkg/snapshot/sqlstore"
)

// DefaultFileName is the snapshot file inside the .recall directory.
const DefaultFileName = "snapshot.json"

type NewStoreOpts struct {
	// ProviderType is "file", "sqlite", "libsql", "postgres" or "none".
	ProviderType string

	// Target is a file path or DSN. Empty selects .recall/snapshot.json
	// for "file" and .recall/snapshots.db for "sqlite".
	Target string

	// ConfigDir overrides the .recall directory lookup.
	ConfigDir string

	Logger *slog.Logger
}

// NewStore returns the configured store, or nil for "none".
func NewStore(ctx context.Context, o *NewStoreOpts) (snapshot.Store, error) {
	switch o.ProviderType {
	case "none":
		return nil, nil

	case "file", "":
		path := o.Target
		if path == "" {
			var err error
			if path, err = dotdir.NewManager().File(o.ConfigDir, DefaultFileName); err != nil {
				return nil, fmt.Errorf("resolving snapshot path: %w", err)
			}
		}
		return file.NewStore(path, o.Logger)

	case "sqlite", "sqlite3", "libsql":
		dsn := o.Target
		if dsn == "" {
			var err error
			if dsn, err = dotdir.NewManager().File(o.ConfigDir, "snapshots.db"); err != nil {
				return nil, fmt.Errorf("resolving snapshot database: %w", err)
			}
		}
		return sqlstore.NewStore(ctx, sqlstore.Config{Dialect: sqlstore.DialectSQLite, DSN: dsn}, o.Logger)

	case "postgres", "pgx":
		if o.Target == "" {
			return nil, fmt.Errorf("postgres snapshot store requires a target DSN")
		}
		return sqlstore.NewStore(ctx, sqlstore.Config{Dialect: sqlstore.DialectPostgres, DSN: o.Target}, o.Logger)

	default:
		return nil, fmt.Errorf("unsupported snapshot provider: %s", o.ProviderType)
	}
}
