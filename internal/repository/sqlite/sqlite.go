// Package sqlite implements the repository interfaces on a single SQLite file.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without a C toolchain. The driver registers itself as "sqlite" with
// database/sql through the blank import below.
//
// Two tables live in the file:
//   - kv:    the durable key-value store (session record, shelf, reviews)
//   - users: the identity store, queried through sqlx
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/juju/clock"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

func init() {
	// sqlx only knows "sqlite3" out of the box; tell it modernc's driver also
	// uses ? placeholders so Rebind and named queries work.
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// DB wraps the connection pool. It implements repository.KVStore directly;
// Users() returns the repository.UserRepository view over the same pool.
type DB struct {
	conn  *sql.DB
	x     *sqlx.DB
	clock clock.Clock // stamps created_at / updated_at
}

// New opens (or creates) the database at dbPath and runs migrations.
// Row timestamps are read from clk.
//
// dbPath examples:
//   - "data/bookburst.db" → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests)
func New(dbPath string, clk clock.Clock) (*DB, error) {
	conn, err := sql.Open(driverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database exists per connection. Pinning the pool to one
	// connection keeps every query on the same database; for a file it also
	// serializes writers, which SQLite does anyway.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{
		conn:  conn,
		x:     sqlx.NewDb(conn, driverName),
		clock: clk,
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating kv table: %w", err)
	}

	// email and username keep the spelling the user chose. The *_key columns
	// hold model.IdentityKey of each and carry the uniqueness; every lookup
	// goes through them. COLLATE NOCASE is not enough: it folds ASCII only.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL,
			email_key     TEXT NOT NULL UNIQUE,
			username      TEXT NOT NULL,
			username_key  TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL,
			updated_at    DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	return nil
}
