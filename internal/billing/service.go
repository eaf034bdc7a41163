// Package billing is the core engine: it derives billing periods from a
// lease's cadence, turns charges and meter readings into invoices, closes
// cycles into settlements, computes overdue late fees, and records
// payments. All mutations that touch more than one row run inside a
// single store transaction.
package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/vuquang/nhatro/internal/event"
	"github.com/vuquang/nhatro/internal/fault"
	"github.com/vuquang/nhatro/internal/settings"
	"github.com/vuquang/nhatro/internal/store"
	"github.com/vuquang/nhatro/internal/types"
)

// Service executes billing operations against the store.
type Service struct {
	db       *store.DB
	settings *settings.Repository
	recorder event.Recorder
}

// NewService creates a billing Service. The recorder may be nil; event
// recording is best effort and never fails a command.
func NewService(db *store.DB, st *settings.Repository, rec event.Recorder) *Service {
	return &Service{db: db, settings: st, recorder: rec}
}

func (s *Service) record(ctx context.Context, evt event.DomainEvent) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, evt); err != nil {
		// Best effort: the command already succeeded.
		log.Printf("event recording failed: %v", err)
	}
}

// LeaseCharge is one recurring charge joined with its catalog entry and
// resolved into the tagged fixed/metered variant.
type LeaseCharge struct {
	Charge types.RecurringCharge
	Type   types.ChargeType
	Kind   types.ChargeKind
}

func loadLease(ctx context.Context, q store.Querier, id string) (types.Lease, error) {
	var (
		l        types.Lease
		start    string
		end      sql.NullString
		tenant   sql.NullString
		override sql.NullString
		duration sql.NullInt64
	)
	err := q.QueryRow(ctx, `
		SELECT id, room_id, tenant_id, lease_type, start_date, end_date,
		       billing_cycle, base_rent, deposit_amount, status,
		       late_fee_override, duration_days
		FROM leases WHERE id = ?`, id).
		Scan(&l.ID, &l.RoomID, &tenant, &l.LeaseType, &start, &end,
			&l.BillingCycle, &l.BaseRent, &l.DepositAmount, &l.Status,
			&override, &duration)
	if errors.Is(err, sql.ErrNoRows) {
		return l, fault.NotFound("lease %s not found", id)
	}
	if err != nil {
		return l, fmt.Errorf("loading lease %s: %w", id, err)
	}
	if l.StartDate, err = types.ParseDate(start); err != nil {
		return l, fmt.Errorf("lease %s start date: %w", id, err)
	}
	if end.Valid {
		t, err := types.ParseDate(end.String)
		if err != nil {
			return l, fmt.Errorf("lease %s end date: %w", id, err)
		}
		l.EndDate = &t
	}
	if tenant.Valid {
		l.TenantID = tenant.String
	}
	if override.Valid && override.String != "" {
		var cfg types.LateFeeConfig
		if err := json.Unmarshal([]byte(override.String), &cfg); err != nil {
			return l, fmt.Errorf("lease %s late fee override: %w", id, err)
		}
		l.LateFeeOverride = &cfg
	}
	if duration.Valid {
		d := int(duration.Int64)
		l.DurationDays = &d
	}
	return l, nil
}

// loadLeaseCharges returns the lease's recurring charges joined with
// their catalog entries, fixed charges before metered ones, each in
// stable insertion order.
func loadLeaseCharges(ctx context.Context, q store.Querier, leaseID string) ([]LeaseCharge, error) {
	rows, err := q.Query(ctx, `
		SELECT rc.id, rc.lease_id, rc.charge_type_id, rc.unit_price, rc.config,
		       ct.id, ct.apartment_id, ct.name, ct.unit, ct.pricing,
		       ct.unit_price, ct.is_variable, ct.meta
		FROM recurring_charges rc
		JOIN charge_types ct ON ct.id = rc.charge_type_id
		WHERE rc.lease_id = ?
		ORDER BY ct.is_variable, rc.rowid`, leaseID)
	if err != nil {
		return nil, fmt.Errorf("loading charges for lease %s: %w", leaseID, err)
	}
	defer rows.Close()

	var out []LeaseCharge
	for rows.Next() {
		var (
			lc       LeaseCharge
			price    sql.NullInt64
			config   sql.NullString
			aptID    sql.NullString
			meta     sql.NullString
			variable int
		)
		if err := rows.Scan(
			&lc.Charge.ID, &lc.Charge.LeaseID, &lc.Charge.ChargeTypeID, &price, &config,
			&lc.Type.ID, &aptID, &lc.Type.Name, &lc.Type.Unit, &lc.Type.Pricing,
			&lc.Type.UnitPrice, &variable, &meta,
		); err != nil {
			return nil, err
		}
		if price.Valid {
			lc.Charge.UnitPrice = &price.Int64
		}
		if config.Valid {
			lc.Charge.Config = json.RawMessage(config.String)
		}
		if aptID.Valid {
			lc.Type.ApartmentID = aptID.String
		}
		if meta.Valid {
			lc.Type.Meta = json.RawMessage(meta.String)
		}
		lc.Type.IsVariable = variable != 0
		lc.Kind = lc.Type.Kind(lc.Charge.UnitPrice)
		out = append(out, lc)
	}
	return out, rows.Err()
}

// loadReadings returns the meter readings whose period start falls
// exactly on the given period, keyed by charge type.
func loadReadings(ctx context.Context, q store.Querier, leaseID string, periodStart time.Time) (map[string]types.MeterReading, error) {
	rows, err := q.Query(ctx, `
		SELECT id, lease_id, charge_type_id, period_start, period_end,
		       start_reading, end_reading
		FROM meter_readings
		WHERE lease_id = ? AND period_start = ?`,
		leaseID, types.FormatDate(periodStart))
	if err != nil {
		return nil, fmt.Errorf("loading readings for lease %s: %w", leaseID, err)
	}
	defer rows.Close()

	out := make(map[string]types.MeterReading)
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
		out[m.ChargeTypeID] = m
	}
	return out, rows.Err()
}

func scanCycle(scan func(dest ...any) error) (types.Cycle, error) {
	var (
		c          types.Cycle
		start, end string
		invoiceID  sql.NullString
	)
	if err := scan(&c.ID, &c.LeaseID, &start, &end, &c.Status, &invoiceID); err != nil {
		return c, err
	}
	var err error
	if c.PeriodStart, err = types.ParseDate(start); err != nil {
		return c, err
	}
	if c.PeriodEnd, err = types.ParseDate(end); err != nil {
		return c, err
	}
	if invoiceID.Valid {
		c.InvoiceID = &invoiceID.String
	}
	return c, nil
}
