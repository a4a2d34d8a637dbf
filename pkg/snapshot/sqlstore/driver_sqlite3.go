//go:build !libsql

package sqlstore

import _ "github.com/mattn/go-sqlite3"

const sqliteDriverName = "sqlite3"

func sqliteDSN(dsn string) string {
	return dsn
}
