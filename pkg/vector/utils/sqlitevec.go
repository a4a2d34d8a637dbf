//go:build !libsql

package vectorutils

import (
	"github.com/papercomputeco/recall/pkg/vector"
	"github.com/papercomputeco/recall/pkg/vector/sqlitevec"
)

func newSQLiteVec(o *NewVectorDriverOpts) (vector.Driver, error) {
	dbPath := o.Path
	if dbPath == "" {
		dbPath = ":memory:"
	}
	return sqlitevec.NewDriver(sqlitevec.Config{
		DBPath:     dbPath,
		Dimensions: o.Dimensions,
		Table:      o.Collection,
	}, o.Logger)
}
