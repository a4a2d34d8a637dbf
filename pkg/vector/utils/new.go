// Package vectorutils builds vector drivers from configuration.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/papercomputeco/recall/pkg/vector"
	"github.com/papercomputeco/recall/pkg/vector/chromem"
	"github.com/papercomputeco/recall/pkg/vector/qdrant"
)

type NewVectorDriverOpts struct {
	ProviderType string

	// TargetURL addresses remote stores (qdrant).
	TargetURL string

	// Path is a directory (chromem) or database file (sqlitevec) for
	// embedded stores. Empty keeps chromem in memory.
	Path string

	// Collection names the index, e.g. "messages" or "summaries".
	Collection string

	Dimensions uint
	Logger     *slog.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "chromem", "":
		path := o.Path
		if path != "" {
			path = filepath.Join(path, o.Collection)
		}
		return chromem.NewDriver(chromem.Config{
			CollectionName: o.Collection,
			Path:           path,
		}, o.Logger)

	case "sqlitevec", "sqlite":
		return newSQLiteVec(o)

	case "qdrant":
		return qdrant.NewDriver(ctx, qdrant.Config{
			Target:     o.TargetURL,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
		}, o.Logger)

	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
