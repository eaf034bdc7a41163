package tenancy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/vuquang/nhatro/internal/fault"
	"github.com/vuquang/nhatro/internal/types"
)

// AttachCharge attaches a catalog charge type to a lease, optionally
// overriding the catalog unit price for this lease only.
func (s *Service) AttachCharge(ctx context.Context, leaseID, chargeTypeID string, unitPrice *int64, config json.RawMessage) (types.RecurringCharge, error) {
	if unitPrice != nil && *unitPrice < 0 {
		return types.RecurringCharge{}, fault.Validation("unit price override must not be negative")
	}
	if _, err := s.GetLease(ctx, leaseID); err != nil {
		return types.RecurringCharge{}, err
	}
	var exists int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM charge_types WHERE id = ?`, chargeTypeID).Scan(&exists); err != nil {
		return types.RecurringCharge{}, fmt.Errorf("checking charge type: %w", err)
	}
	if exists == 0 {
		return types.RecurringCharge{}, fault.NotFound("charge type %s not found", chargeTypeID)
	}
	var dup int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM recurring_charges WHERE lease_id = ? AND charge_type_id = ?`,
		leaseID, chargeTypeID).Scan(&dup); err != nil {
		return types.RecurringCharge{}, fmt.Errorf("checking attached charges: %w", err)
	}
	if dup > 0 {
		return types.RecurringCharge{}, fault.Conflict("charge is already attached to this lease")
	}

	rc := types.RecurringCharge{
		ID:           uuid.New().String(),
		LeaseID:      leaseID,
		ChargeTypeID: chargeTypeID,
		UnitPrice:    unitPrice,
		Config:       config,
	}
	var price any
	if rc.UnitPrice != nil {
		price = *rc.UnitPrice
	}
	var cfg any
	if len(rc.Config) > 0 {
		cfg = string(rc.Config)
	}
	_, err := s.db.Execute(ctx, `
		INSERT INTO recurring_charges (id, lease_id, charge_type_id, unit_price, config)
		VALUES (?, ?, ?, ?, ?)`,
		rc.ID, rc.LeaseID, rc.ChargeTypeID, price, cfg)
	if err != nil {
		return types.RecurringCharge{}, fmt.Errorf("attaching charge: %w", err)
	}
	return rc, nil
}

// DetachCharge removes a recurring charge from its lease.
func (s *Service) DetachCharge(ctx context.Context, id string) error {
	res, err := s.db.Execute(ctx, `DELETE FROM recurring_charges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("detaching charge %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("recurring charge %s not found", id)
	}
	return nil
}

// ListCharges returns a lease's recurring charges in insertion order.
func (s *Service) ListCharges(ctx context.Context, leaseID string) ([]types.RecurringCharge, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, lease_id, charge_type_id, unit_price, config
		FROM recurring_charges WHERE lease_id = ? ORDER BY rowid`, leaseID)
	if err != nil {
		return nil, fmt.Errorf("listing charges for lease %s: %w", leaseID, err)
	}
	defer rows.Close()

	var out []types.RecurringCharge
	for rows.Next() {
		var (
			rc     types.RecurringCharge
			price  sql.NullInt64
			config sql.NullString
		)
		if err := rows.Scan(&rc.ID, &rc.LeaseID, &rc.ChargeTypeID, &price, &config); err != nil {
			return nil, err
		}
		if price.Valid {
			rc.UnitPrice = &price.Int64
		}
		if config.Valid {
			rc.Config = json.RawMessage(config.String)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// RecordReading stores one billing period's meter reading for a metered
// charge. Both readings must be non-negative and the end reading must
// not be below the start — a reversed delta is rejected here, never
// silently clamped later in invoice generation.
func (s *Service) RecordReading(ctx context.Context, m types.MeterReading) (types.MeterReading, error) {
	if m.StartReading < 0 || m.EndReading < 0 {
		return types.MeterReading{}, fault.Validation("meter readings must not be negative")
	}
	if m.EndReading < m.StartReading {
		return types.MeterReading{}, fault.Validation(
			"end reading %v is below start reading %v", m.EndReading, m.StartReading)
	}
	if m.PeriodStart.IsZero() || m.PeriodEnd.IsZero() {
		return types.MeterReading{}, fault.Validation("reading period is required")
	}
	if _, err := s.GetLease(ctx, m.LeaseID); err != nil {
		return types.MeterReading{}, err
	}

	var dup int
	if err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM meter_readings
		WHERE lease_id = ? AND charge_type_id = ? AND period_start = ?`,
		m.LeaseID, m.ChargeTypeID, types.FormatDate(m.PeriodStart)).Scan(&dup); err != nil {
		return types.MeterReading{}, fmt.Errorf("checking existing reading: %w", err)
	}
	if dup > 0 {
		return types.MeterReading{}, fault.Conflict(
			"a reading for this charge already exists for the period starting %s",
			types.FormatDate(m.PeriodStart))
	}

	m.ID = uuid.New().String()
	m.PeriodStart = types.MidnightUTC(m.PeriodStart)
	m.PeriodEnd = types.MidnightUTC(m.PeriodEnd)
	_, err := s.db.Execute(ctx, `
		INSERT INTO meter_readings (id, lease_id, charge_type_id, period_start, period_end,
		                            start_reading, end_reading)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.LeaseID, m.ChargeTypeID, types.FormatDate(m.PeriodStart),
		types.FormatDate(m.PeriodEnd), m.StartReading, m.EndReading)
	if err != nil {
		return types.MeterReading{}, fmt.Errorf("inserting meter reading: %w", err)
	}
	return m, nil
}

// ListReadings returns a lease's meter readings in period order.
func (s *Service) ListReadings(ctx context.Context, leaseID string) ([]types.MeterReading, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, lease_id, charge_type_id, period_start, period_end, start_reading, end_reading
		FROM meter_readings WHERE lease_id = ? ORDER BY period_start, charge_type_id`, leaseID)
	if err != nil {
		return nil, fmt.Errorf("listing readings for lease %s: %w", leaseID, err)
	}
	defer rows.Close()

	var out []types.MeterReading
	for rows.Next() {
		var (
			m          types.MeterReading
			start, end string
		)
		if err := rows.Scan(&m.ID, &m.LeaseID, &m.ChargeTypeID, &start, &end,
			&m.StartReading, &m.EndReading); err != nil {
			return nil, err
		}
		if m.PeriodStart, err = types.ParseDate(start); err != nil {
			return nil, err
		}
		if m.PeriodEnd, err = types.ParseDate(end); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
