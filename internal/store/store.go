// Package store owns the embedded SQLite database. The engine never sees
// an ORM: every read goes through Query and every mutation through
// Execute, and multi-row mutations run inside WithTx so no half-applied
// state survives an interruption.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Querier is the narrow storage interface the engine is written against.
// Both DB and Tx satisfy it, so engine code runs transparently inside or
// outside a transaction.
type Querier interface {
	Execute(ctx context.Context, stmt string, args ...any) (sql.Result, error)
	Query(ctx context.Context, stmt string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, stmt string, args ...any) *sql.Row
}

// DB wraps the SQLite handle.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if needed) the database at dsn. The app is
// single-user and single-process; one connection avoids SQLITE_BUSY
// entirely.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Enable foreign keys explicitly — required for SQLite.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	return &DB{sql: db}, nil
}

// OpenMemory opens a throwaway in-memory database, used by tests. Each
// call gets its own database; the shared cache only spans the single
// pooled connection.
func OpenMemory() (*DB, error) {
	name := uuid.New().String()
	return Open("file:" + name + "?mode=memory&cache=shared")
}

func (d *DB) Close() error { return d.sql.Close() }

// Execute runs a mutating statement.
func (d *DB) Execute(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	return d.sql.ExecContext(ctx, stmt, args...)
}

// Query runs a read statement.
func (d *DB) Query(ctx context.Context, stmt string, args ...any) (*sql.Rows, error) {
	return d.sql.QueryContext(ctx, stmt, args...)
}

// QueryRow runs a single-row read.
func (d *DB) QueryRow(ctx context.Context, stmt string, args ...any) *sql.Row {
	return d.sql.QueryRowContext(ctx, stmt, args...)
}

// Tx is an open transaction satisfying Querier.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Execute(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, stmt, args...)
}

func (t *Tx) Query(ctx context.Context, stmt string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, stmt, args...)
}

func (t *Tx) QueryRow(ctx context.Context, stmt string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, stmt, args...)
}

// WithTx runs fn inside a transaction, committing on nil and rolling
// back on error or panic.
func (d *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(&Tx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
