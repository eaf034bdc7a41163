// Package tenancy manages tenants and the lease lifecycle: starting a
// lease (which occupies its room), terminating it early, attaching
// recurring charges, and recording meter readings.
package tenancy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vuquang/nhatro/internal/event"
	"github.com/vuquang/nhatro/internal/fault"
	"github.com/vuquang/nhatro/internal/store"
	"github.com/vuquang/nhatro/internal/types"
)

// Service executes tenancy operations against the store.
type Service struct {
	db       *store.DB
	recorder event.Recorder
}

// NewService creates a tenancy Service. The recorder may be nil.
func NewService(db *store.DB, rec event.Recorder) *Service {
	return &Service{db: db, recorder: rec}
}

func (s *Service) record(ctx context.Context, evt event.DomainEvent) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, evt); err != nil {
		log.Printf("event recording failed: %v", err)
	}
}

// ── Tenants ──────────────────────────────────────────────────────────

// CreateTenant inserts a tenant.
func (s *Service) CreateTenant(ctx context.Context, t types.Tenant) (types.Tenant, error) {
	if t.Name == "" {
		return types.Tenant{}, fault.Validation("tenant name is required")
	}
	t.ID = uuid.New().String()
	_, err := s.db.Execute(ctx, `
		INSERT INTO tenants (id, name, phone, email, national_id, note)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Phone, t.Email, t.NationalID, t.Note)
	if err != nil {
		return types.Tenant{}, fmt.Errorf("inserting tenant: %w", err)
	}
	return t, nil
}

// GetTenant loads one tenant.
func (s *Service) GetTenant(ctx context.Context, id string) (types.Tenant, error) {
	var t types.Tenant
	err := s.db.QueryRow(ctx,
		`SELECT id, name, phone, email, national_id, note FROM tenants WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Phone, &t.Email, &t.NationalID, &t.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fault.NotFound("tenant %s not found", id)
	}
	if err != nil {
		return t, fmt.Errorf("loading tenant %s: %w", id, err)
	}
	return t, nil
}

// ListTenants returns tenants by name. A limit of zero or less means
// all; SQLite treats a negative LIMIT as unbounded.
func (s *Service) ListTenants(ctx context.Context, limit, offset int) ([]types.Tenant, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, name, phone, email, national_id, note FROM tenants
		ORDER BY name LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var out []types.Tenant
	for rows.Next() {
		var t types.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Phone, &t.Email, &t.NationalID, &t.Note); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ── Leases ───────────────────────────────────────────────────────────

// StartLeaseInput describes a new lease.
type StartLeaseInput struct {
	RoomID          string
	TenantID        string
	LeaseType       types.LeaseType
	StartDate       time.Time
	BillingCycle    types.BillingCycle
	BaseRent        int64
	DepositAmount   int64
	DurationDays    *int
	LateFeeOverride *types.LateFeeConfig
}

// StartLease creates an active lease and flips its room to occupied, in
// one transaction. A room with an active lease cannot be leased again.
func (s *Service) StartLease(ctx context.Context, in StartLeaseInput) (types.Lease, error) {
	if in.RoomID == "" {
		return types.Lease{}, fault.Validation("room is required")
	}
	if in.StartDate.IsZero() {
		return types.Lease{}, fault.Validation("start date is required")
	}
	if in.BaseRent < 0 || in.DepositAmount < 0 {
		return types.Lease{}, fault.Validation("rent and deposit must not be negative")
	}
	if in.LeaseType == "" {
		in.LeaseType = types.LeaseLongTerm
	}
	if in.BillingCycle == "" {
		in.BillingCycle = types.CycleMonthly
	}
	if in.LeaseType == types.LeaseShortTerm && in.DurationDays != nil && *in.DurationDays < 1 {
		return types.Lease{}, fault.Validation("duration must be at least one day")
	}

	var active int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM leases WHERE room_id = ? AND status = ?`,
		in.RoomID, types.LeaseActive).Scan(&active); err != nil {
		return types.Lease{}, fmt.Errorf("checking room occupancy: %w", err)
	}
	if active > 0 {
		return types.Lease{}, fault.Conflict("room already has an active lease")
	}

	l := types.Lease{
		ID:              uuid.New().String(),
		RoomID:          in.RoomID,
		TenantID:        in.TenantID,
		LeaseType:       in.LeaseType,
		StartDate:       types.MidnightUTC(in.StartDate),
		BillingCycle:    in.BillingCycle,
		BaseRent:        in.BaseRent,
		DepositAmount:   in.DepositAmount,
		Status:          types.LeaseActive,
		LateFeeOverride: in.LateFeeOverride,
		DurationDays:    in.DurationDays,
	}

	var override any
	if l.LateFeeOverride != nil {
		raw, err := json.Marshal(l.LateFeeOverride)
		if err != nil {
			return types.Lease{}, fmt.Errorf("encoding late fee override: %w", err)
		}
		override = string(raw)
	}
	var tenant any
	if l.TenantID != "" {
		tenant = l.TenantID
	}
	var duration any
	if l.DurationDays != nil {
		duration = *l.DurationDays
	}

	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.Execute(ctx, `
			INSERT INTO leases (id, room_id, tenant_id, lease_type, start_date, billing_cycle,
			                    base_rent, deposit_amount, status, late_fee_override, duration_days)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.RoomID, tenant, l.LeaseType, types.FormatDate(l.StartDate),
			l.BillingCycle, l.BaseRent, l.DepositAmount, l.Status, override, duration); err != nil {
			return fmt.Errorf("inserting lease: %w", err)
		}
		res, err := tx.Execute(ctx,
			`UPDATE rooms SET status = ? WHERE id = ?`, types.RoomOccupied, l.RoomID)
		if err != nil {
			return fmt.Errorf("occupying room: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fault.NotFound("room %s not found", l.RoomID)
		}
		return nil
	})
	if err != nil {
		return types.Lease{}, err
	}

	s.record(ctx, event.NewLeaseStarted(event.LeaseStartedPayload{
		LeaseID:  l.ID,
		RoomID:   l.RoomID,
		TenantID: l.TenantID,
		BaseRent: l.BaseRent,
	}))
	return l, nil
}

// TerminateLease ends an active lease early and frees its room.
func (s *Service) TerminateLease(ctx context.Context, leaseID string, endDate time.Time) (types.Lease, error) {
	l, err := s.GetLease(ctx, leaseID)
	if err != nil {
		return types.Lease{}, err
	}
	if l.Status != types.LeaseActive {
		return types.Lease{}, fault.Conflict("lease %s is already ended", leaseID)
	}
	if endDate.IsZero() {
		endDate = time.Now()
	}
	end := types.MidnightUTC(endDate)
	if end.Before(types.MidnightUTC(l.StartDate)) {
		return types.Lease{}, fault.Validation("end date is before the lease start")
	}

	err = s.db.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.Execute(ctx,
			`UPDATE leases SET status = ?, end_date = ? WHERE id = ?`,
			types.LeaseEnded, types.FormatDate(end), leaseID); err != nil {
			return fmt.Errorf("ending lease: %w", err)
		}
		if _, err := tx.Execute(ctx,
			`UPDATE rooms SET status = ? WHERE id = ?`, types.RoomAvailable, l.RoomID); err != nil {
			return fmt.Errorf("freeing room: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.Lease{}, err
	}

	s.record(ctx, event.NewLeaseTerminated(event.LeaseTerminatedPayload{
		LeaseID: leaseID,
		RoomID:  l.RoomID,
		EndDate: types.FormatDate(end),
	}))
	return s.GetLease(ctx, leaseID)
}

// GetLease loads one lease.
func (s *Service) GetLease(ctx context.Context, id string) (types.Lease, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, room_id, tenant_id, lease_type, start_date, end_date, billing_cycle,
		       base_rent, deposit_amount, status, late_fee_override, duration_days
		FROM leases WHERE id = ?`, id)
	l, err := scanLease(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return l, fault.NotFound("lease %s not found", id)
	}
	if err != nil {
		return l, fmt.Errorf("loading lease %s: %w", id, err)
	}
	return l, nil
}

// ListLeases returns leases, optionally filtered to one room.
func (s *Service) ListLeases(ctx context.Context, roomID string) ([]types.Lease, error) {
	query := `
		SELECT id, room_id, tenant_id, lease_type, start_date, end_date, billing_cycle,
		       base_rent, deposit_amount, status, late_fee_override, duration_days
		FROM leases`
	var (
		rows *sql.Rows
		err  error
	)
	if roomID == "" {
		rows, err = s.db.Query(ctx, query+` ORDER BY start_date`)
	} else {
		rows, err = s.db.Query(ctx, query+` WHERE room_id = ? ORDER BY start_date`, roomID)
	}
	if err != nil {
		return nil, fmt.Errorf("listing leases: %w", err)
	}
	defer rows.Close()

	var out []types.Lease
	for rows.Next() {
		l, err := scanLease(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLease(scan func(dest ...any) error) (types.Lease, error) {
	var (
		l        types.Lease
		tenant   sql.NullString
		start    string
		end      sql.NullString
		override sql.NullString
		duration sql.NullInt64
	)
	if err := scan(&l.ID, &l.RoomID, &tenant, &l.LeaseType, &start, &end,
		&l.BillingCycle, &l.BaseRent, &l.DepositAmount, &l.Status,
		&override, &duration); err != nil {
		return l, err
	}
	var err error
	if l.StartDate, err = types.ParseDate(start); err != nil {
		return l, err
	}
	if end.Valid {
		t, err := types.ParseDate(end.String)
		if err != nil {
			return l, err
		}
		l.EndDate = &t
	}
	if tenant.Valid {
		l.TenantID = tenant.String
	}
	if override.Valid && override.String != "" {
		var cfg types.LateFeeConfig
		if err := json.Unmarshal([]byte(override.String), &cfg); err != nil {
			return l, err
		}
		l.LateFeeOverride = &cfg
	}
	if duration.Valid {
		d := int(duration.Int64)
		l.DurationDays = &d
	}
	return l, nil
}
