package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vuquang/nhatro/internal/event"
	"github.com/vuquang/nhatro/internal/fault"
	"github.com/vuquang/nhatro/internal/store"
	"github.com/vuquang/nhatro/internal/types"
)

// SettleCycleInput carries the tenant-supplied data that closes a cycle:
// a quantity for every variable charge (missing entries default to zero)
// and zero or more named ad-hoc costs.
type SettleCycleInput struct {
	CycleID    string
	Quantities map[string]float64 // charge type id → consumed quantity
	Extras     []types.ExtraCost
	IssueDate  time.Time // zero value means today
}

// SettleCycle closes one cycle: it persists the supplied quantities as
// meter readings, builds and persists the invoice, and marks the cycle
// settled with the invoice id. The whole mutation is one transaction —
// either the invoice and the cycle update both land, or neither does.
//
// Re-settling an already-settled cycle is rejected: settled is terminal
// and a period never gets a second invoice.
func (s *Service) SettleCycle(ctx context.Context, in SettleCycleInput) (types.Invoice, error) {
	cycle, err := s.GetCycle(ctx, in.CycleID)
	if err != nil {
		return types.Invoice{}, err
	}
	if cycle.Status == types.CycleSettled {
		return types.Invoice{}, fault.Conflict("cycle %s is already settled", cycle.ID)
	}

	lease, err := loadLease(ctx, s.db, cycle.LeaseID)
	if err != nil {
		return types.Invoice{}, err
	}
	charges, err := loadLeaseCharges(ctx, s.db, lease.ID)
	if err != nil {
		return types.Invoice{}, err
	}

	for id, qty := range in.Quantities {
		if qty < 0 {
			return types.Invoice{}, fault.Validation(
				"quantity for charge %s must not be negative, got %v", id, qty)
		}
	}
	for _, ec := range in.Extras {
		if ec.Amount < 0 {
			return types.Invoice{}, fault.Validation(
				"extra cost %q must not have a negative amount", ec.Name)
		}
	}

	issue := in.IssueDate
	if issue.IsZero() {
		issue = time.Now()
	}

	var invoice types.Invoice
	err = s.db.WithTx(ctx, func(tx *store.Tx) error {
		readings, err := s.resolveReadings(ctx, tx, lease, cycle, charges, in.Quantities)
		if err != nil {
			return err
		}
		invoice, err = BuildInvoice(lease, charges, readings, in.Extras,
			Period{Start: cycle.PeriodStart, End: cycle.PeriodEnd}, issue)
		if err != nil {
			return err
		}
		if err := insertInvoice(ctx, tx, invoice); err != nil {
			return err
		}
		res, err := tx.Execute(ctx,
			`UPDATE cycles SET status = ?, invoice_id = ? WHERE id = ? AND status = ?`,
			types.CycleSettled, invoice.ID, cycle.ID, types.CycleOpen)
		if err != nil {
			return fmt.Errorf("closing cycle %s: %w", cycle.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fault.Conflict("cycle %s is already settled", cycle.ID)
		}
		return nil
	})
	if err != nil {
		return types.Invoice{}, err
	}

	s.record(ctx, event.NewCycleSettled(event.CycleSettledPayload{
		CycleID:     cycle.ID,
		LeaseID:     lease.ID,
		InvoiceID:   invoice.ID,
		PeriodStart: types.FormatDate(cycle.PeriodStart),
		Total:       invoice.Total,
	}))
	return invoice, nil
}

// resolveReadings returns the period's readings for every metered charge,
// creating rows from the supplied quantities where none exist yet. A new
// reading continues from the charge's latest recorded end reading so the
// meter history stays monotonic.
func (s *Service) resolveReadings(ctx context.Context, tx *store.Tx, lease types.Lease,
	cycle types.Cycle, charges []LeaseCharge, quantities map[string]float64) (map[string]types.MeterReading, error) {

	readings, err := loadReadings(ctx, tx, lease.ID, cycle.PeriodStart)
	if err != nil {
		return nil, err
	}
	for _, lc := range charges {
		if lc.Kind.Metered == nil {
			continue
		}
		if _, ok := readings[lc.Type.ID]; ok {
			continue
		}
		qty := quantities[lc.Type.ID] // zero when omitted

		var last sql.NullFloat64
		if err := tx.QueryRow(ctx, `
			SELECT end_reading FROM meter_readings
			WHERE lease_id = ? AND charge_type_id = ?
			ORDER BY period_start DESC LIMIT 1`,
			lease.ID, lc.Type.ID).Scan(&last); err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("reading meter history: %w", err)
		}

		m := types.MeterReading{
			ID:           uuid.New().String(),
			LeaseID:      lease.ID,
			ChargeTypeID: lc.Type.ID,
			PeriodStart:  cycle.PeriodStart,
			PeriodEnd:    cycle.PeriodEnd,
			StartReading: last.Float64,
			EndReading:   last.Float64 + qty,
		}
		if _, err := tx.Execute(ctx, `
			INSERT INTO meter_readings (id, lease_id, charge_type_id, period_start,
			                            period_end, start_reading, end_reading)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.LeaseID, m.ChargeTypeID, types.FormatDate(m.PeriodStart),
			types.FormatDate(m.PeriodEnd), m.StartReading, m.EndReading); err != nil {
			return nil, fmt.Errorf("recording meter reading: %w", err)
		}
		readings[lc.Type.ID] = m
	}
	return readings, nil
}

// PreviewInvoice builds the invoice a cycle would settle into, without
// persisting anything. Metered charges must already have readings for
// the period; a missing reading surfaces as an incomplete-input failure
// so the caller can prompt for it.
func (s *Service) PreviewInvoice(ctx context.Context, cycleID string) (types.Invoice, error) {
	cycle, err := s.GetCycle(ctx, cycleID)
	if err != nil {
		return types.Invoice{}, err
	}
	lease, err := loadLease(ctx, s.db, cycle.LeaseID)
	if err != nil {
		return types.Invoice{}, err
	}
	charges, err := loadLeaseCharges(ctx, s.db, lease.ID)
	if err != nil {
		return types.Invoice{}, err
	}
	readings, err := loadReadings(ctx, s.db, lease.ID, cycle.PeriodStart)
	if err != nil {
		return types.Invoice{}, err
	}
	return BuildInvoice(lease, charges, readings, nil,
		Period{Start: cycle.PeriodStart, End: cycle.PeriodEnd}, time.Now())
}

// CloseLeaseInput is the terminal lease-end settlement request.
//
// When Signed is false the adjustments are deductions: adjustments_total
// is their sum and final_balance = deposit − |adjustments_total|. When
// Signed is true the amounts are pre-signed (positive charges the
// tenant) and final_balance = deposit − adjustments_total, taken exactly
// as supplied. The engine stores what it computed and never re-derives
// the sign convention elsewhere.
type CloseLeaseInput struct {
	LeaseID     string
	Adjustments []types.Adjustment
	Signed      bool
	SettledAt   time.Time // zero value means now
}

// CloseLease performs the lease-end settlement: it balances the deposit
// against the adjustments, ends the lease, frees the room, and persists
// the settlement — atomically. A positive final balance is a refund owed
// to the tenant; negative means the tenant owes more.
func (s *Service) CloseLease(ctx context.Context, in CloseLeaseInput) (types.Settlement, error) {
	lease, err := loadLease(ctx, s.db, in.LeaseID)
	if err != nil {
		return types.Settlement{}, err
	}

	var n int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM lease_settlements WHERE lease_id = ?`, lease.ID).Scan(&n); err != nil {
		return types.Settlement{}, fmt.Errorf("checking prior settlement: %w", err)
	}
	if n > 0 {
		return types.Settlement{}, fault.Conflict("lease %s is already settled", lease.ID)
	}

	for _, a := range in.Adjustments {
		if a.Name == "" {
			return types.Settlement{}, fault.Validation("settlement adjustments must be named")
		}
	}

	var total int64
	for _, a := range in.Adjustments {
		total += a.Amount
	}
	final := lease.DepositAmount - total
	if !in.Signed {
		abs := total
		if abs < 0 {
			abs = -abs
		}
		final = lease.DepositAmount - abs
	}

	when := in.SettledAt
	if when.IsZero() {
		when = time.Now()
	}
	adjJSON, err := json.Marshal(in.Adjustments)
	if err != nil {
		return types.Settlement{}, fmt.Errorf("encoding adjustments: %w", err)
	}

	st := types.Settlement{
		ID:               uuid.New().String(),
		LeaseID:          lease.ID,
		Deposit:          lease.DepositAmount,
		Adjustments:      in.Adjustments,
		AdjustmentsTotal: total,
		FinalBalance:     final,
		SettledAt:        when,
	}

	err = s.db.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.Execute(ctx, `
			INSERT INTO lease_settlements (id, lease_id, deposit, adjustments,
			                               adjustments_total, final_balance, settled_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			st.ID, st.LeaseID, st.Deposit, string(adjJSON),
			st.AdjustmentsTotal, st.FinalBalance, when.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("inserting settlement: %w", err)
		}
		if lease.Status == types.LeaseActive {
			if _, err := tx.Execute(ctx,
				`UPDATE leases SET status = ?, end_date = COALESCE(end_date, ?) WHERE id = ?`,
				types.LeaseEnded, types.FormatDate(when), lease.ID); err != nil {
				return fmt.Errorf("ending lease: %w", err)
			}
			if _, err := tx.Execute(ctx,
				`UPDATE rooms SET status = ? WHERE id = ?`,
				types.RoomAvailable, lease.RoomID); err != nil {
				return fmt.Errorf("freeing room: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return types.Settlement{}, err
	}

	s.record(ctx, event.NewLeaseSettled(event.LeaseSettledPayload{
		LeaseID:      lease.ID,
		SettlementID: st.ID,
		Deposit:      st.Deposit,
		FinalBalance: st.FinalBalance,
	}))
	return st, nil
}

// GetSettlement returns the lease-end settlement for a lease, if any.
func (s *Service) GetSettlement(ctx context.Context, leaseID string) (types.Settlement, error) {
	var (
		st      types.Settlement
		adjJSON string
		settled string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, lease_id, deposit, adjustments, adjustments_total, final_balance, settled_at
		FROM lease_settlements WHERE lease_id = ?`, leaseID).
		Scan(&st.ID, &st.LeaseID, &st.Deposit, &adjJSON, &st.AdjustmentsTotal,
			&st.FinalBalance, &settled)
	if err == sql.ErrNoRows {
		return st, fault.NotFound("lease %s has no settlement", leaseID)
	}
	if err != nil {
		return st, fmt.Errorf("loading settlement for lease %s: %w", leaseID, err)
	}
	if err := json.Unmarshal([]byte(adjJSON), &st.Adjustments); err != nil {
		return st, fmt.Errorf("decoding adjustments: %w", err)
	}
	if st.SettledAt, err = time.Parse(time.RFC3339, settled); err != nil {
		return st, fmt.Errorf("parsing settled_at: %w", err)
	}
	return st, nil
}
