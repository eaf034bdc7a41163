// Package export implements full-table JSON snapshots: export for
// backup, import as insert-or-replace by primary key. Tables are
// processed in dependency order — parents before children — so a
// restore into an empty database never violates foreign keys.
package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/vuquang/nhatro/internal/store"
)

// tables in dependency order: apartments before rooms before leases, etc.
var tables = []string{
	"apartments",
	"tenants",
	"rooms",
	"charge_types",
	"leases",
	"recurring_charges",
	"meter_readings",
	"invoices",
	"invoice_items",
	"cycles",
	"payments",
	"lease_settlements",
	"settings",
	"events",
}

// Snapshot is the full database content keyed by table name.
type Snapshot map[string][]map[string]any

// Export reads every table into a snapshot.
func Export(ctx context.Context, db *store.DB) (Snapshot, error) {
	snap := make(Snapshot, len(tables))
	for _, table := range tables {
		rows, err := db.Query(ctx, "SELECT * FROM "+table)
		if err != nil {
			return nil, fmt.Errorf("exporting %s: %w", table, err)
		}
		records, err := collect(rows)
		if err != nil {
			return nil, fmt.Errorf("exporting %s: %w", table, err)
		}
		snap[table] = records
	}
	return snap, nil
}

// Write exports the database as JSON to w.
func Write(ctx context.Context, db *store.DB, w io.Writer) error {
	snap, err := Export(ctx, db)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// Import restores a snapshot with insert-or-replace semantics, one
// transaction for the whole restore. Callers own ordering correctness
// for data created outside Export; Export itself always writes tables
// in a safe order.
func Import(ctx context.Context, db *store.DB, snap Snapshot) error {
	return db.WithTx(ctx, func(tx *store.Tx) error {
		for _, table := range tables {
			for _, record := range snap[table] {
				if err := upsert(ctx, tx, table, record); err != nil {
					return fmt.Errorf("importing %s: %w", table, err)
				}
			}
		}
		return nil
	})
}

// Read restores a JSON snapshot from r.
func Read(ctx context.Context, db *store.DB, r io.Reader) error {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}
	return Import(ctx, db, snap)
}

// collect drains rows into generic records keyed by column name.
func collect(rows *sql.Rows) ([]map[string]any, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		record := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			// Byte slices are column text; keep the snapshot readable.
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			record[col] = v
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// upsert writes one record with INSERT OR REPLACE. Column order is made
// deterministic so repeated exports import identically.
func upsert(ctx context.Context, tx *store.Tx, table string, record map[string]any) error {
	cols := make([]string, 0, len(record))
	for col := range record {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	args := make([]any, 0, len(cols))
	marks := make([]string, 0, len(cols))
	for _, col := range cols {
		args = append(args, record[col])
		marks = append(marks, "?")
	}
	stmt := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	_, err := tx.Execute(ctx, stmt, args...)
	return err
}
