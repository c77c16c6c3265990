// Package relstore owns the relational side of committed state: schema
// bring-up and the SQL the writer pool and brief generator run against.
// The driver is modernc.org/sqlite, used purely in-process so the writer
// pool's "each worker owns its own session" rule needs no external
// connection broker.
package relstore

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/meridianchain/stateindexer/pkg/errs"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaDDL string

// Open opens (creating if absent) the sqlite database at dsn, applies the
// schema, and configures it for a single-process multi-connection workload:
// WAL so readers don't block writers, and a busy timeout so concurrent
// writer-pool sessions retry instead of failing immediately on SQLITE_BUSY.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrDataStoreConnection, "relstore.Open", err)
	}
	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.ErrDataSchema, "relstore.Open", err)
	}
	return db, nil
}

// OpenSession opens an additional connection to the same database file,
// for a writer-pool worker that must not share a *sql.DB (and therefore a
// connection pool) with its siblings. The schema is assumed already
// applied by an earlier Open call.
func OpenSession(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrDataStoreConnection, "relstore.OpenSession", err)
	}
	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func configure(db *sql.DB) error {
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return errs.Wrap(errs.ErrDataStoreConnection, fmt.Sprintf("relstore.configure(%s)", p), err)
		}
	}
	return nil
}
