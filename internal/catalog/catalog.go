// Package catalog manages the charge-type price list: entries scoped
// globally or to one apartment, each either fixed per period or metered
// against per-period consumption.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vuquang/nhatro/internal/fault"
	"github.com/vuquang/nhatro/internal/store"
	"github.com/vuquang/nhatro/internal/types"
)

// Service executes catalog operations against the store.
type Service struct {
	db *store.DB
}

// NewService creates a catalog Service.
func NewService(db *store.DB) *Service {
	return &Service{db: db}
}

// Create inserts a catalog entry. A variable entry defaults to per-unit
// pricing; a fixed one to flat.
func (s *Service) Create(ctx context.Context, ct types.ChargeType) (types.ChargeType, error) {
	if ct.Name == "" {
		return types.ChargeType{}, fault.Validation("charge type name is required")
	}
	if ct.UnitPrice < 0 {
		return types.ChargeType{}, fault.Validation("unit price must not be negative")
	}
	if ct.Pricing == "" {
		if ct.IsVariable {
			ct.Pricing = types.PricingPerUnit
		} else {
			ct.Pricing = types.PricingFlat
		}
	}
	ct.ID = uuid.New().String()

	var apartment any
	if ct.ApartmentID != "" {
		apartment = ct.ApartmentID
	}
	var meta any
	if len(ct.Meta) > 0 {
		meta = string(ct.Meta)
	}
	_, err := s.db.Execute(ctx, `
		INSERT INTO charge_types (id, apartment_id, name, unit, pricing, unit_price, is_variable, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ct.ID, apartment, ct.Name, ct.Unit, ct.Pricing, ct.UnitPrice, boolToInt(ct.IsVariable), meta)
	if err != nil {
		return types.ChargeType{}, fmt.Errorf("inserting charge type: %w", err)
	}
	return ct, nil
}

// Get loads one catalog entry.
func (s *Service) Get(ctx context.Context, id string) (types.ChargeType, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, apartment_id, name, unit, pricing, unit_price, is_variable, meta
		FROM charge_types WHERE id = ?`, id)
	ct, err := scanChargeType(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return ct, fault.NotFound("charge type %s not found", id)
	}
	if err != nil {
		return ct, fmt.Errorf("loading charge type %s: %w", id, err)
	}
	return ct, nil
}

// List returns the catalog visible to an apartment: its own entries plus
// the global ones. An empty apartmentID lists only the global catalog.
func (s *Service) List(ctx context.Context, apartmentID string) ([]types.ChargeType, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if apartmentID == "" {
		rows, err = s.db.Query(ctx, `
			SELECT id, apartment_id, name, unit, pricing, unit_price, is_variable, meta
			FROM charge_types WHERE apartment_id IS NULL ORDER BY name`)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT id, apartment_id, name, unit, pricing, unit_price, is_variable, meta
			FROM charge_types WHERE apartment_id IS NULL OR apartment_id = ? ORDER BY name`,
			apartmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("listing charge types: %w", err)
	}
	defer rows.Close()

	var out []types.ChargeType
	for rows.Next() {
		ct, err := scanChargeType(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// Update changes an entry's name, unit and price. The fixed/metered kind
// is immutable once created — existing invoices already depend on it.
func (s *Service) Update(ctx context.Context, id, name, unit string, unitPrice int64) (types.ChargeType, error) {
	if name == "" {
		return types.ChargeType{}, fault.Validation("charge type name is required")
	}
	if unitPrice < 0 {
		return types.ChargeType{}, fault.Validation("unit price must not be negative")
	}
	res, err := s.db.Execute(ctx,
		`UPDATE charge_types SET name = ?, unit = ?, unit_price = ? WHERE id = ?`,
		name, unit, unitPrice, id)
	if err != nil {
		return types.ChargeType{}, fmt.Errorf("updating charge type %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.ChargeType{}, fault.NotFound("charge type %s not found", id)
	}
	return s.Get(ctx, id)
}

// Delete removes an entry no lease is using.
func (s *Service) Delete(ctx context.Context, id string) error {
	var used int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM recurring_charges WHERE charge_type_id = ?`, id).Scan(&used); err != nil {
		return fmt.Errorf("counting charge usage: %w", err)
	}
	if used > 0 {
		return fault.Conflict("charge type is attached to %d lease(s) and cannot be deleted", used)
	}
	res, err := s.db.Execute(ctx, `DELETE FROM charge_types WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting charge type %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("charge type %s not found", id)
	}
	return nil
}

func scanChargeType(scan func(dest ...any) error) (types.ChargeType, error) {
	var (
		ct       types.ChargeType
		aptID    sql.NullString
		meta     sql.NullString
		variable int
	)
	if err := scan(&ct.ID, &aptID, &ct.Name, &ct.Unit, &ct.Pricing,
		&ct.UnitPrice, &variable, &meta); err != nil {
		return ct, err
	}
	if aptID.Valid {
		ct.ApartmentID = aptID.String
	}
	if meta.Valid {
		ct.Meta = []byte(meta.String)
	}
	ct.IsVariable = variable != 0
	return ct, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
