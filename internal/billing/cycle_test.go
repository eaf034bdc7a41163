package billing

import (
	"testing"
	"time"

	"github.com/vuquang/nhatro/internal/types"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGeneratePeriods_MonthlyClampsToMonthEnd(t *testing.T) {
	lease := types.Lease{
		LeaseType:    types.LeaseLongTerm,
		StartDate:    date(2025, time.January, 31),
		BillingCycle: types.CycleMonthly,
		Status:       types.LeaseActive,
	}

	periods := GeneratePeriods(lease, date(2025, time.April, 15))
	if len(periods) != 3 {
		t.Fatalf("got %d periods, want 3", len(periods))
	}

	// Jan 31 start clamps to Feb 28 in a non-leap year.
	if !periods[1].Start.Equal(date(2025, time.February, 28)) {
		t.Errorf("period 2 start = %s, want 2025-02-28", types.FormatDate(periods[1].Start))
	}
	if !periods[2].Start.Equal(date(2025, time.March, 31)) {
		t.Errorf("period 3 start = %s, want 2025-03-31", types.FormatDate(periods[2].Start))
	}
	// Each period ends the day before the next begins.
	if !periods[0].End.Equal(date(2025, time.February, 27)) {
		t.Errorf("period 1 end = %s, want 2025-02-27", types.FormatDate(periods[0].End))
	}
}

func TestGeneratePeriods_LeapFebruary(t *testing.T) {
	lease := types.Lease{
		LeaseType:    types.LeaseLongTerm,
		StartDate:    date(2024, time.January, 31),
		BillingCycle: types.CycleMonthly,
		Status:       types.LeaseActive,
	}

	periods := GeneratePeriods(lease, date(2024, time.March, 1))
	if len(periods) < 2 {
		t.Fatalf("got %d periods, want at least 2", len(periods))
	}
	if !periods[1].Start.Equal(date(2024, time.February, 29)) {
		t.Errorf("period 2 start = %s, want 2024-02-29", types.FormatDate(periods[1].Start))
	}
}

func TestGeneratePeriods_EagerFirstCycle(t *testing.T) {
	start := date(2025, time.June, 1)
	lease := types.Lease{
		LeaseType:    types.LeaseLongTerm,
		StartDate:    start,
		BillingCycle: types.CycleMonthly,
		Status:       types.LeaseActive,
	}

	// The lease starts today: its first period already exists.
	periods := GeneratePeriods(lease, start)
	if len(periods) != 1 {
		t.Fatalf("got %d periods, want 1", len(periods))
	}
	if !periods[0].Start.Equal(start) || !periods[0].End.Equal(date(2025, time.June, 30)) {
		t.Errorf("first period = %s..%s, want 2025-06-01..2025-06-30",
			types.FormatDate(periods[0].Start), types.FormatDate(periods[0].End))
	}
}

func TestGeneratePeriods_TruncatedAtLeaseEnd(t *testing.T) {
	end := date(2025, time.March, 15)
	lease := types.Lease{
		LeaseType:    types.LeaseLongTerm,
		StartDate:    date(2025, time.January, 1),
		EndDate:      &end,
		BillingCycle: types.CycleMonthly,
		Status:       types.LeaseActive,
	}

	periods := GeneratePeriods(lease, date(2025, time.December, 1))
	if len(periods) != 3 {
		t.Fatalf("got %d periods, want 3", len(periods))
	}
	last := periods[len(periods)-1]
	if !last.End.Equal(end) {
		t.Errorf("final period end = %s, want 2025-03-15", types.FormatDate(last.End))
	}
}

func TestGeneratePeriods_ShortTermSinglePeriod(t *testing.T) {
	days := 10
	lease := types.Lease{
		LeaseType:    types.LeaseShortTerm,
		StartDate:    date(2025, time.July, 1),
		DurationDays: &days,
		BillingCycle: types.CycleMonthly,
		Status:       types.LeaseActive,
	}

	periods := GeneratePeriods(lease, date(2025, time.August, 1))
	if len(periods) != 1 {
		t.Fatalf("got %d periods, want 1 for a fixed-duration stay", len(periods))
	}
	if !periods[0].End.Equal(date(2025, time.July, 10)) {
		t.Errorf("period end = %s, want 2025-07-10", types.FormatDate(periods[0].End))
	}
}

func TestGeneratePeriods_ShortTermDaily(t *testing.T) {
	days := 3
	lease := types.Lease{
		LeaseType:    types.LeaseShortTerm,
		StartDate:    date(2025, time.July, 1),
		DurationDays: &days,
		BillingCycle: types.CycleDaily,
		Status:       types.LeaseActive,
	}

	// Daily invoicing wins over the single-period rule.
	periods := GeneratePeriods(lease, date(2025, time.July, 2))
	if len(periods) != 2 {
		t.Fatalf("got %d periods, want 2", len(periods))
	}
	for i, p := range periods {
		if !p.Start.Equal(p.End) {
			t.Errorf("daily period %d spans %s..%s, want a single day",
				i+1, types.FormatDate(p.Start), types.FormatDate(p.End))
		}
	}
}

func TestGeneratePeriods_ShortTermDailyStopsAtCheckout(t *testing.T) {
	days := 3
	lease := types.Lease{
		LeaseType:    types.LeaseShortTerm,
		StartDate:    date(2025, time.July, 1),
		DurationDays: &days,
		BillingCycle: types.CycleDaily,
		Status:       types.LeaseActive,
	}

	// A month after checkout the stay is still exactly three days.
	periods := GeneratePeriods(lease, date(2025, time.July, 31))
	if len(periods) != 3 {
		t.Fatalf("got %d periods for a 3-day stay, want 3", len(periods))
	}
	last := periods[len(periods)-1]
	if got, want := types.FormatDate(last.End), "2025-07-03"; got != want {
		t.Errorf("last period ends %s, want %s", got, want)
	}
}

func TestGeneratePeriods_Yearly(t *testing.T) {
	lease := types.Lease{
		LeaseType:    types.LeaseLongTerm,
		StartDate:    date(2023, time.May, 1),
		BillingCycle: types.CycleYearly,
		Status:       types.LeaseActive,
	}

	periods := GeneratePeriods(lease, date(2025, time.June, 1))
	if len(periods) != 3 {
		t.Fatalf("got %d periods, want 3", len(periods))
	}
	if !periods[1].Start.Equal(date(2024, time.May, 1)) || !periods[1].End.Equal(date(2025, time.April, 30)) {
		t.Errorf("period 2 = %s..%s, want 2024-05-01..2025-04-30",
			types.FormatDate(periods[1].Start), types.FormatDate(periods[1].End))
	}
}

func TestGeneratePeriods_NoGapsNoOverlap(t *testing.T) {
	lease := types.Lease{
		LeaseType:    types.LeaseLongTerm,
		StartDate:    date(2024, time.October, 30),
		BillingCycle: types.CycleMonthly,
		Status:       types.LeaseActive,
	}

	periods := GeneratePeriods(lease, date(2025, time.August, 1))
	for i := 1; i < len(periods); i++ {
		want := periods[i-1].End.AddDate(0, 0, 1)
		if !periods[i].Start.Equal(want) {
			t.Errorf("period %d starts %s, want %s (day after previous end)",
				i+1, types.FormatDate(periods[i].Start), types.FormatDate(want))
		}
	}
}
