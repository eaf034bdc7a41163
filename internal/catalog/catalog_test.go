package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vuquang/nhatro/internal/fault"
	"github.com/vuquang/nhatro/internal/store"
	"github.com/vuquang/nhatro/internal/types"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestCreate_Defaults(t *testing.T) {
	svc := NewService(newTestDB(t))
	ctx := context.Background()

	metered, err := svc.Create(ctx, types.ChargeType{Name: "Điện", Unit: "kWh", UnitPrice: 3500, IsVariable: true})
	require.NoError(t, err)
	require.Equal(t, types.PricingPerUnit, metered.Pricing)

	fixed, err := svc.Create(ctx, types.ChargeType{Name: "Internet", UnitPrice: 100_000})
	require.NoError(t, err)
	require.Equal(t, types.PricingFlat, fixed.Pricing)

	got, err := svc.Get(ctx, metered.ID)
	require.NoError(t, err)
	require.True(t, got.IsVariable)
	require.NotNil(t, got.Kind(nil).Metered)
	require.Nil(t, got.Kind(nil).Fixed)
}

func TestKind_PriceOverride(t *testing.T) {
	ct := types.ChargeType{Name: "Điện", UnitPrice: 3500, IsVariable: true, Pricing: types.PricingPerUnit}

	override := int64(4000)
	kind := ct.Kind(&override)
	require.NotNil(t, kind.Metered)
	require.Equal(t, int64(4000), kind.Metered.UnitPrice)

	kind = ct.Kind(nil)
	require.Equal(t, int64(3500), kind.Metered.UnitPrice)
}

func TestList_ApartmentScope(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	// An apartment row to scope against.
	_, err := db.Execute(ctx, `
		INSERT INTO apartments (id, name, address, created_at, updated_at)
		VALUES ('apt-1', 'A', '', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)

	_, err = svc.Create(ctx, types.ChargeType{Name: "Rác", UnitPrice: 20_000})
	require.NoError(t, err)
	scoped, err := svc.Create(ctx, types.ChargeType{ApartmentID: "apt-1", Name: "Giữ xe", UnitPrice: 50_000})
	require.NoError(t, err)

	globalOnly, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, globalOnly, 1)

	visible, err := svc.List(ctx, "apt-1")
	require.NoError(t, err)
	require.Len(t, visible, 2)

	other, err := svc.List(ctx, "apt-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	require.NotEqual(t, scoped.ID, other[0].ID)
}

func TestUpdate_KindImmutable(t *testing.T) {
	svc := NewService(newTestDB(t))
	ctx := context.Background()

	ct, err := svc.Create(ctx, types.ChargeType{Name: "Nước", Unit: "m³", UnitPrice: 15_000, IsVariable: true})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, ct.ID, "Nước sạch", "m³", 17_000)
	require.NoError(t, err)
	require.Equal(t, "Nước sạch", updated.Name)
	require.Equal(t, int64(17_000), updated.UnitPrice)
	require.True(t, updated.IsVariable, "variable flag must survive updates")
}

func TestDelete_BlockedWhileAttached(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	ct, err := svc.Create(ctx, types.ChargeType{Name: "Điện", UnitPrice: 3500, IsVariable: true})
	require.NoError(t, err)

	_, err = db.Execute(ctx, `
		INSERT INTO apartments (id, name, address, created_at, updated_at)
		VALUES ('apt-1', 'A', '', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)
	_, err = db.Execute(ctx, `
		INSERT INTO rooms (id, apartment_id, code, floor, area, status)
		VALUES ('room-1', 'apt-1', 'P101', 1, 18, 'occupied')`)
	require.NoError(t, err)
	_, err = db.Execute(ctx, `
		INSERT INTO leases (id, room_id, lease_type, start_date, billing_cycle, base_rent, deposit_amount, status)
		VALUES ('lease-1', 'room-1', 'long_term', '2025-01-01', 'monthly', 3000000, 0, 'active')`)
	require.NoError(t, err)
	_, err = db.Execute(ctx, `
		INSERT INTO recurring_charges (id, lease_id, charge_type_id)
		VALUES ('rc-1', 'lease-1', ?)`, ct.ID)
	require.NoError(t, err)

	err = svc.Delete(ctx, ct.ID)
	require.True(t, fault.IsKind(err, fault.KindConflict), "got %v", err)

	_, err = db.Execute(ctx, `DELETE FROM recurring_charges WHERE id = 'rc-1'`)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, ct.ID))
}
