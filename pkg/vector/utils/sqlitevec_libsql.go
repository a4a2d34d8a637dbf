//go:build libsql

package vectorutils

import (
	"errors"

	"github.com/papercomputeco/recall/pkg/vector"
)

// libsql bundles its own SQLite, which cannot be linked next to the
// go-sqlite3 build sqlite-vec needs.
func newSQLiteVec(*NewVectorDriverOpts) (vector.Driver, error) {
	return nil, errors.New("sqlitevec vector store is not available in libsql builds")
}
