package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vuquang/nhatro/internal/fault"
	"github.com/vuquang/nhatro/internal/store"
	"github.com/vuquang/nhatro/internal/types"
)

// Period is one billing period: consecutive civil dates, both ends
// inclusive.
type Period struct {
	Start time.Time
	End   time.Time
}

// GeneratePeriods derives the consecutive, non-overlapping billing
// periods covering the lease's active lifetime up to now (or its end
// date, whichever is earlier). At least one period is always produced so
// a fresh lease has something to settle.
//
// Monthly periods use calendar month arithmetic: period N starts on
// start_date plus N months, with the day-of-month clamped to the target
// month's length, and ends one day before the next period start. Yearly
// is analogous with year increments. Daily periods are single calendar
// days, except that a short-term lease with a fixed duration bills its
// whole stay as one period unless it opted into daily invoicing.
func GeneratePeriods(lease types.Lease, now time.Time) []Period {
	start := types.MidnightUTC(lease.StartDate)
	horizon := types.MidnightUTC(now)
	if lease.EndDate != nil && lease.EndDate.Before(horizon) {
		horizon = types.MidnightUTC(*lease.EndDate)
	}

	if lease.LeaseType == types.LeaseShortTerm && lease.DurationDays != nil {
		days := *lease.DurationDays
		if days < 1 {
			days = 1
		}
		checkout := start.AddDate(0, 0, days-1)

		// A short-term stay with a known duration is one cycle, unless
		// the lease explicitly bills daily.
		if lease.BillingCycle != types.CycleDaily {
			return []Period{truncate(Period{Start: start, End: checkout}, lease)}
		}
		// Daily short-term stays stop producing cycles at checkout, no
		// matter how far past it now is.
		if checkout.Before(horizon) {
			horizon = checkout
		}
	}

	var periods []Period
	for n := 0; ; n++ {
		var pstart, next time.Time
		switch lease.BillingCycle {
		case types.CycleDaily:
			pstart = start.AddDate(0, 0, n)
			next = start.AddDate(0, 0, n+1)
		case types.CycleYearly:
			pstart = addMonthsClamped(start, 12*n)
			next = addMonthsClamped(start, 12*(n+1))
		default: // monthly
			pstart = addMonthsClamped(start, n)
			next = addMonthsClamped(start, n+1)
		}
		if n > 0 && pstart.After(horizon) {
			break
		}
		periods = append(periods, truncate(Period{Start: pstart, End: next.AddDate(0, 0, -1)}, lease))
		if lease.EndDate != nil && next.After(types.MidnightUTC(*lease.EndDate)) {
			break
		}
	}
	return periods
}

// truncate clips a period's end to the lease end date.
func truncate(p Period, lease types.Lease) Period {
	if lease.EndDate != nil {
		end := types.MidnightUTC(*lease.EndDate)
		if end.Before(p.End) {
			p.End = end
		}
	}
	return p
}

// addMonthsClamped adds n calendar months, clamping the day-of-month to
// the target month's length so Jan 31 + 1 month is Feb 28/29 rather
// than Mar 2/3.
func addMonthsClamped(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// EnsureCycles materializes any billing periods the lease has reached
// but that have no cycle row yet, then returns all cycles for the lease
// in period order. A fresh lease gets its first cycle eagerly.
func (s *Service) EnsureCycles(ctx context.Context, leaseID string, now time.Time) ([]types.Cycle, error) {
	lease, err := loadLease(ctx, s.db, leaseID)
	if err != nil {
		return nil, err
	}

	existing, err := s.cyclesByPeriodStart(ctx, leaseID)
	if err != nil {
		return nil, err
	}

	for _, p := range GeneratePeriods(lease, now) {
		if _, ok := existing[types.FormatDate(p.Start)]; ok {
			continue
		}
		if _, err := s.createCycle(ctx, s.db, lease.ID, p); err != nil {
			return nil, err
		}
	}
	return s.ListCycles(ctx, leaseID)
}

// CreateCycle inserts one cycle for the given period. A cycle whose
// period start already exists for the lease is a conflict, never a
// silent duplicate.
func (s *Service) CreateCycle(ctx context.Context, leaseID string, p Period) (types.Cycle, error) {
	lease, err := loadLease(ctx, s.db, leaseID)
	if err != nil {
		return types.Cycle{}, err
	}
	return s.createCycle(ctx, s.db, lease.ID, p)
}

func (s *Service) createCycle(ctx context.Context, q store.Querier, leaseID string, p Period) (types.Cycle, error) {
	var n int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM cycles WHERE lease_id = ? AND period_start = ?`,
		leaseID, types.FormatDate(p.Start)).Scan(&n); err != nil {
		return types.Cycle{}, fmt.Errorf("checking for duplicate cycle: %w", err)
	}
	if n > 0 {
		return types.Cycle{}, fault.Conflict(
			"a billing cycle starting %s already exists for this lease",
			types.FormatDate(p.Start))
	}

	c := types.Cycle{
		ID:          uuid.New().String(),
		LeaseID:     leaseID,
		PeriodStart: p.Start,
		PeriodEnd:   p.End,
		Status:      types.CycleOpen,
	}
	_, err := q.Execute(ctx, `
		INSERT INTO cycles (id, lease_id, period_start, period_end, status)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.LeaseID, types.FormatDate(c.PeriodStart), types.FormatDate(c.PeriodEnd), c.Status)
	if err != nil {
		return types.Cycle{}, fmt.Errorf("inserting cycle: %w", err)
	}
	return c, nil
}

// GetCycle loads one cycle.
func (s *Service) GetCycle(ctx context.Context, id string) (types.Cycle, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, lease_id, period_start, period_end, status, invoice_id
		FROM cycles WHERE id = ?`, id)
	c, err := scanCycle(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fault.NotFound("cycle %s not found", id)
	}
	if err != nil {
		return c, fmt.Errorf("loading cycle %s: %w", id, err)
	}
	return c, nil
}

// ListCycles returns all cycles for a lease in period order.
func (s *Service) ListCycles(ctx context.Context, leaseID string) ([]types.Cycle, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, lease_id, period_start, period_end, status, invoice_id
		FROM cycles WHERE lease_id = ? ORDER BY period_start`, leaseID)
	if err != nil {
		return nil, fmt.Errorf("listing cycles for lease %s: %w", leaseID, err)
	}
	defer rows.Close()

	var out []types.Cycle
	for rows.Next() {
		c, err := scanCycle(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Service) cyclesByPeriodStart(ctx context.Context, leaseID string) (map[string]types.Cycle, error) {
	cycles, err := s.ListCycles(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]types.Cycle, len(cycles))
	for _, c := range cycles {
		out[types.FormatDate(c.PeriodStart)] = c
	}
	return out, nil
}
