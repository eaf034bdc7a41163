package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// A migration step brings the schema from version-1 to version. Steps are
// idempotent (create-if-not-exists, add-column-if-absent) but are still
// keyed by the stored schema version so no step ever runs twice.
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, q Querier) error
}

var migrations = []migration{
	{1, "core tables", func(ctx context.Context, q Querier) error {
		return executeAll(ctx, q,
			`CREATE TABLE IF NOT EXISTS apartments (
				id         TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				address    TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS rooms (
				id           TEXT PRIMARY KEY,
				apartment_id TEXT NOT NULL REFERENCES apartments(id),
				code         TEXT NOT NULL,
				floor        INTEGER NOT NULL DEFAULT 0,
				area         REAL NOT NULL DEFAULT 0,
				status       TEXT NOT NULL DEFAULT 'available',
				UNIQUE (apartment_id, code)
			)`,
			`CREATE TABLE IF NOT EXISTS charge_types (
				id           TEXT PRIMARY KEY,
				apartment_id TEXT REFERENCES apartments(id),
				name         TEXT NOT NULL,
				unit         TEXT NOT NULL DEFAULT '',
				pricing      TEXT NOT NULL DEFAULT 'flat',
				unit_price   INTEGER NOT NULL DEFAULT 0,
				is_variable  INTEGER NOT NULL DEFAULT 0,
				meta         TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS leases (
				id                TEXT PRIMARY KEY,
				room_id           TEXT NOT NULL REFERENCES rooms(id),
				lease_type        TEXT NOT NULL DEFAULT 'long_term',
				start_date        TEXT NOT NULL,
				end_date          TEXT,
				billing_cycle     TEXT NOT NULL DEFAULT 'monthly',
				base_rent         INTEGER NOT NULL DEFAULT 0,
				deposit_amount    INTEGER NOT NULL DEFAULT 0,
				status            TEXT NOT NULL DEFAULT 'active',
				late_fee_override TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS recurring_charges (
				id             TEXT PRIMARY KEY,
				lease_id       TEXT NOT NULL REFERENCES leases(id),
				charge_type_id TEXT NOT NULL REFERENCES charge_types(id),
				unit_price     INTEGER,
				config         TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS meter_readings (
				id             TEXT PRIMARY KEY,
				lease_id       TEXT NOT NULL REFERENCES leases(id),
				charge_type_id TEXT NOT NULL REFERENCES charge_types(id),
				period_start   TEXT NOT NULL,
				period_end     TEXT NOT NULL,
				start_reading  REAL NOT NULL DEFAULT 0,
				end_reading    REAL NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS invoices (
				id           TEXT PRIMARY KEY,
				lease_id     TEXT NOT NULL REFERENCES leases(id),
				period_start TEXT NOT NULL,
				period_end   TEXT NOT NULL,
				issue_date   TEXT NOT NULL,
				subtotal     INTEGER NOT NULL DEFAULT 0,
				total        INTEGER NOT NULL DEFAULT 0,
				status       TEXT NOT NULL DEFAULT 'draft'
			)`,
			`CREATE TABLE IF NOT EXISTS invoice_items (
				id             TEXT PRIMARY KEY,
				invoice_id     TEXT NOT NULL REFERENCES invoices(id),
				position       INTEGER NOT NULL DEFAULT 0,
				description    TEXT NOT NULL,
				quantity       REAL NOT NULL DEFAULT 1,
				unit           TEXT NOT NULL DEFAULT '',
				unit_price     INTEGER NOT NULL DEFAULT 0,
				amount         INTEGER NOT NULL DEFAULT 0,
				charge_type_id TEXT,
				meta           TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS payments (
				id           TEXT PRIMARY KEY,
				invoice_id   TEXT NOT NULL REFERENCES invoices(id),
				payment_date TEXT NOT NULL,
				amount       INTEGER NOT NULL DEFAULT 0,
				method       TEXT NOT NULL DEFAULT 'cash',
				reference    TEXT
			)`,
		)
	}},
	{2, "billing cycles", func(ctx context.Context, q Querier) error {
		return executeAll(ctx, q,
			`CREATE TABLE IF NOT EXISTS cycles (
				id           TEXT PRIMARY KEY,
				lease_id     TEXT NOT NULL REFERENCES leases(id),
				period_start TEXT NOT NULL,
				period_end   TEXT NOT NULL,
				status       TEXT NOT NULL DEFAULT 'open',
				invoice_id   TEXT REFERENCES invoices(id)
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_cycles_lease_period
				ON cycles (lease_id, period_start)`,
		)
	}},
	{3, "settings store", func(ctx context.Context, q Querier) error {
		return executeAll(ctx, q,
			`CREATE TABLE IF NOT EXISTS settings (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`,
		)
	}},
	{4, "tenants", func(ctx context.Context, q Querier) error {
		if err := executeAll(ctx, q,
			`CREATE TABLE IF NOT EXISTS tenants (
				id          TEXT PRIMARY KEY,
				name        TEXT NOT NULL,
				phone       TEXT NOT NULL DEFAULT '',
				email       TEXT NOT NULL DEFAULT '',
				national_id TEXT NOT NULL DEFAULT '',
				note        TEXT NOT NULL DEFAULT ''
			)`,
		); err != nil {
			return err
		}
		return addColumnIfAbsent(ctx, q, "leases", "tenant_id", "TEXT REFERENCES tenants(id)")
	}},
	{5, "lease settlements", func(ctx context.Context, q Querier) error {
		return executeAll(ctx, q,
			`CREATE TABLE IF NOT EXISTS lease_settlements (
				id                TEXT PRIMARY KEY,
				lease_id          TEXT NOT NULL REFERENCES leases(id),
				deposit           INTEGER NOT NULL DEFAULT 0,
				adjustments       TEXT NOT NULL DEFAULT '[]',
				adjustments_total INTEGER NOT NULL DEFAULT 0,
				final_balance     INTEGER NOT NULL DEFAULT 0,
				settled_at        TEXT NOT NULL
			)`,
		)
	}},
	{6, "domain event log", func(ctx context.Context, q Querier) error {
		return executeAll(ctx, q,
			`CREATE TABLE IF NOT EXISTS events (
				id          TEXT PRIMARY KEY,
				event_type  TEXT NOT NULL,
				occurred_at TEXT NOT NULL,
				entity_type TEXT NOT NULL,
				entity_id   TEXT NOT NULL,
				summary     TEXT NOT NULL,
				payload     TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_events_entity
				ON events (entity_type, entity_id, occurred_at)`,
		)
	}},
	{7, "lookup indexes", func(ctx context.Context, q Querier) error {
		return executeAll(ctx, q,
			`CREATE INDEX IF NOT EXISTS idx_invoices_lease ON invoices (lease_id)`,
			`CREATE INDEX IF NOT EXISTS idx_payments_invoice ON payments (invoice_id)`,
			`CREATE INDEX IF NOT EXISTS idx_readings_lease_period
				ON meter_readings (lease_id, period_start)`,
		)
	}},
	{8, "short-term leases", func(ctx context.Context, q Querier) error {
		return addColumnIfAbsent(ctx, q, "leases", "duration_days", "INTEGER")
	}},
}

// Migrate applies all pending migration steps in order, advancing the
// stored schema version after each one.
func (d *DB) Migrate(ctx context.Context) error {
	current, err := d.schemaVersion(ctx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := d.WithTx(ctx, func(tx *Tx) error {
			return m.apply(ctx, tx)
		}); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := d.Execute(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			return fmt.Errorf("recording schema version %d: %w", m.version, err)
		}
		log.Printf("applied migration %d: %s", m.version, m.name)
	}
	return nil
}

// SchemaVersion returns the currently applied schema version.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	return d.schemaVersion(ctx)
}

func (d *DB) schemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := d.QueryRow(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

func executeAll(ctx context.Context, q Querier, stmts ...string) error {
	for _, s := range stmts {
		if _, err := q.Execute(ctx, s); err != nil {
			return fmt.Errorf("%w (statement: %.60s...)", err, s)
		}
	}
	return nil
}

// addColumnIfAbsent adds a column only when the table does not already
// have it. SQLite has no ADD COLUMN IF NOT EXISTS, so the table info
// pragma is consulted first.
func addColumnIfAbsent(ctx context.Context, q Querier, table, column, decl string) error {
	rows, err := q.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	_, err = q.Execute(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
	return err
}
