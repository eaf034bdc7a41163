// Package seed provides default data seeding for a fresh database.
package seed

import (
	"context"
	"fmt"
	"log"

	"github.com/vuquang/nhatro/internal/billing"
	"github.com/vuquang/nhatro/internal/catalog"
	"github.com/vuquang/nhatro/internal/settings"
	"github.com/vuquang/nhatro/internal/store"
	"github.com/vuquang/nhatro/internal/types"
)

// defaultCatalog is the global price list a fresh install starts with.
// Prices are whole đồng and editable afterwards.
var defaultCatalog = []types.ChargeType{
	{Name: "Điện", Unit: "kWh", Pricing: types.PricingPerUnit, UnitPrice: 3500, IsVariable: true},
	{Name: "Nước", Unit: "m³", Pricing: types.PricingPerUnit, UnitPrice: 15000, IsVariable: true},
	{Name: "Rác", Unit: "tháng", Pricing: types.PricingFlat, UnitPrice: 20000},
	{Name: "Internet", Unit: "tháng", Pricing: types.PricingFlat, UnitPrice: 100000},
	{Name: "Giữ xe", Unit: "tháng", Pricing: types.PricingFlat, UnitPrice: 50000},
}

// Catalog creates the default global charge catalog. If any global
// entries already exist (idempotent check), it skips seeding.
func Catalog(ctx context.Context, db *store.DB) error {
	var n int
	if err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM charge_types WHERE apartment_id IS NULL`).Scan(&n); err != nil {
		return fmt.Errorf("checking charge catalog: %w", err)
	}
	if n > 0 {
		log.Printf("charge catalog already seeded (%d entries), skipping", n)
		return nil
	}

	svc := catalog.NewService(db)
	for _, ct := range defaultCatalog {
		if _, err := svc.Create(ctx, ct); err != nil {
			return fmt.Errorf("seeding charge type %q: %w", ct.Name, err)
		}
	}
	log.Printf("seeded %d charge types", len(defaultCatalog))
	return nil
}

// LateFee writes the default global late fee config unless one exists.
func LateFee(ctx context.Context, db *store.DB) error {
	repo := settings.NewRepository(db)
	existing, err := settings.Get[types.LateFeeConfig](ctx, repo, billing.KeyLateFee)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return repo.Set(ctx, billing.KeyLateFee, types.LateFeeConfig{
		Enabled:   false,
		AfterDays: 3,
		Mode:      types.LateFeePercent,
		Percent:   2,
		Repeat:    types.RepeatNone,
	})
}
