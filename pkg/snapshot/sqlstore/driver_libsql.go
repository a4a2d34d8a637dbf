//go:build libsql

package sqlstore

import (
	"strings"

	_ "github.com/tursodatabase/go-libsql"
)

const sqliteDriverName = "libsql"

// sqliteDSN turns plain paths into the file: URLs go-libsql expects.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, ":") && !strings.HasPrefix(dsn, ":memory:") {
		return dsn
	}
	return "file:" + dsn
}
