// Package sqlstore keeps snapshot history in a SQL database. SQLite
// (go-sqlite3, or go-libsql with the libsql build tag) and PostgreSQL (pgx)
// are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"

	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/snapshot"
)

// Dialect selects SQL flavor and database/sql driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DefaultKeep is how many snapshots are retained after each Save.
const DefaultKeep = 10

// Config configures the SQL store.
type Config struct {
	Dialect Dialect

	// DSN is a file path (":memory:" allowed) for SQLite and a connection
	// string for PostgreSQL.
	DSN string

	// Keep bounds the snapshot history.
	Keep int
}

// Store implements snapshot.Store on database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	keep    int
	logger  *slog.Logger
}

// NewStore opens the database and creates the snapshot table.
func NewStore(ctx context.Context, c Config, log *slog.Logger) (*Store, error) {
	driverName, schema, err := driverFor(c.Dialect)
	if err != nil {
		return nil, err
	}

	dsn := c.DSN
	if c.Dialect == DialectSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if c.Dialect == DialectSQLite {
		// :memory: databases are per connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	keep := c.Keep
	if keep <= 0 {
		keep = DefaultKeep
	}

	return &Store{
		db:      db,
		dialect: c.Dialect,
		keep:    keep,
		logger:  logger.OrNop(log),
	}, nil
}

func driverFor(d Dialect) (driverName, schema string, err error) {
	switch d {
	case DialectSQLite:
		return sqliteDriverName, `CREATE TABLE IF NOT EXISTS recall_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL,
			created_at BIGINT NOT NULL,
			messages INTEGER NOT NULL,
			summaries INTEGER NOT NULL,
			document TEXT NOT NULL
		)`, nil
	case DialectPostgres:
		return "pgx", `CREATE TABLE IF NOT EXISTS recall_snapshots (
			id BIGSERIAL PRIMARY KEY,
			version INTEGER NOT NULL,
			created_at BIGINT NOT NULL,
			messages INTEGER NOT NULL,
			summaries INTEGER NOT NULL,
			document TEXT NOT NULL
		)`, nil
	default:
		return "", "", fmt.Errorf("unsupported snapshot dialect: %q", d)
	}
}

// bind rewrites ? placeholders for PostgreSQL.
func (s *Store) bind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = fmt.Appendf(out, "$%d", n)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

// Save inserts snap and prunes history beyond Keep.
func (s *Store) Save(ctx context.Context, snap *memory.Snapshot) error {
	if snap == nil {
		return errors.New("nil snapshot")
	}

	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		s.bind(`INSERT INTO recall_snapshots (version, created_at, messages, summaries, document) VALUES (?, ?, ?, ?, ?)`),
		snap.Version, snap.CreatedAt.UnixNano(), len(snap.Messages), len(snap.Summaries), string(doc),
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		s.bind(`DELETE FROM recall_snapshots WHERE id NOT IN (SELECT id FROM recall_snapshots ORDER BY id DESC LIMIT ?)`),
		s.keep,
	)
	if err != nil {
		return fmt.Errorf("pruning snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved",
		"dialect", string(s.dialect),
		"messages", len(snap.Messages),
		"summaries", len(snap.Summaries),
	)
	return nil
}

func (s *Store) Load(ctx context.Context) (*memory.Snapshot, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM recall_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, snapshot.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}

	var snap memory.Snapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snap, nil
}

// Count reports how many snapshots are retained.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recall_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting snapshots: %w", err)
	}
	return n, nil
}

// Purge deletes every stored snapshot.
func (s *Store) Purge(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recall_snapshots`); err != nil {
		return fmt.Errorf("purging snapshots: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
