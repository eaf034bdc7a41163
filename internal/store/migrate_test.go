package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrate_AppliesAllSteps(t *testing.T) {
	db, err := OpenMemory()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.Migrate(ctx))

	v, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, len(migrations), v)

	for _, table := range []string{
		"apartments", "rooms", "tenants", "charge_types", "leases",
		"recurring_charges", "meter_readings", "cycles", "invoices",
		"invoice_items", "payments", "lease_settlements", "settings", "events",
	} {
		var n int
		err := db.QueryRow(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
		require.NoError(t, err)
		require.Equal(t, 1, n, "table %s missing", table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := OpenMemory()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.Migrate(ctx))
	first, err := db.SchemaVersion(ctx)
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx))
	second, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db, err := OpenMemory()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))

	sentinel := &testError{}
	err = db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.Execute(ctx, `
			INSERT INTO apartments (id, name, address, created_at, updated_at)
			VALUES ('a1', 'A', '', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`)
		require.NoError(t, err)
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var n int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM apartments`).Scan(&n))
	require.Zero(t, n, "insert must roll back with the failed transaction")
}

func TestWithTx_Commits(t *testing.T) {
	db, err := OpenMemory()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))

	err = db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.Execute(ctx, `
			INSERT INTO apartments (id, name, address, created_at, updated_at)
			VALUES ('a1', 'A', '', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`)
		return err
	})
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM apartments`).Scan(&n))
	require.Equal(t, 1, n)
}

type testError struct{}

func (*testError) Error() string { return "boom" }
