package billing

import (
	"testing"

	"github.com/vuquang/nhatro/internal/fault"
	"github.com/vuquang/nhatro/internal/types"
)

func dailyPercentConfig(cap int64) types.LateFeeConfig {
	return types.LateFeeConfig{
		Enabled:   true,
		AfterDays: 3,
		Mode:      types.LateFeePercent,
		Percent:   5,
		Repeat:    types.RepeatDaily,
		Cap:       &cap,
	}
}

func TestComputeLateFee_DailyPercent(t *testing.T) {
	cfg := dailyPercentConfig(200_000)

	fee, err := ComputeLateFee(1_000_000, cfg, 5)
	if err != nil {
		t.Fatalf("ComputeLateFee: %v", err)
	}
	// 5% of 1,000,000 per day, accruing on days 3, 4, and 5.
	if fee != 150_000 {
		t.Errorf("fee at 5 days = %d, want 150000", fee)
	}
}

func TestComputeLateFee_CapClamps(t *testing.T) {
	cfg := dailyPercentConfig(200_000)

	fee, err := ComputeLateFee(1_000_000, cfg, 10)
	if err != nil {
		t.Fatalf("ComputeLateFee: %v", err)
	}
	if fee != 200_000 {
		t.Errorf("fee at 10 days = %d, want cap 200000", fee)
	}
}

func TestComputeLateFee_GracePeriod(t *testing.T) {
	cfg := dailyPercentConfig(200_000)

	for days := 0; days < 3; days++ {
		fee, err := ComputeLateFee(1_000_000, cfg, days)
		if err != nil {
			t.Fatalf("ComputeLateFee(%d): %v", days, err)
		}
		if fee != 0 {
			t.Errorf("fee at %d days = %d, want 0 inside grace period", days, fee)
		}
	}
}

func TestComputeLateFee_Disabled(t *testing.T) {
	cfg := dailyPercentConfig(200_000)
	cfg.Enabled = false

	fee, err := ComputeLateFee(1_000_000, cfg, 30)
	if err != nil {
		t.Fatalf("ComputeLateFee: %v", err)
	}
	if fee != 0 {
		t.Errorf("fee with disabled config = %d, want 0", fee)
	}
}

func TestComputeLateFee_FlatOneShot(t *testing.T) {
	cfg := types.LateFeeConfig{
		Enabled:    true,
		AfterDays:  5,
		Mode:       types.LateFeeFlat,
		FlatAmount: 50_000,
		Repeat:     types.RepeatNone,
	}

	for _, days := range []int{5, 20, 365} {
		fee, err := ComputeLateFee(2_000_000, cfg, days)
		if err != nil {
			t.Fatalf("ComputeLateFee(%d): %v", days, err)
		}
		if fee != 50_000 {
			t.Errorf("one-shot fee at %d days = %d, want 50000", days, fee)
		}
	}
}

func TestComputeLateFee_Deterministic(t *testing.T) {
	cfg := dailyPercentConfig(500_000)
	a, _ := ComputeLateFee(3_333_333, cfg, 17)
	b, _ := ComputeLateFee(3_333_333, cfg, 17)
	if a != b {
		t.Errorf("same inputs gave %d and %d", a, b)
	}
}

func TestComputeLateFee_NegativeInputs(t *testing.T) {
	cfg := dailyPercentConfig(200_000)

	if _, err := ComputeLateFee(-1, cfg, 5); !fault.IsKind(err, fault.KindValidation) {
		t.Errorf("negative base: got %v, want validation error", err)
	}
	if _, err := ComputeLateFee(1000, cfg, -5); !fault.IsKind(err, fault.KindValidation) {
		t.Errorf("negative days: got %v, want validation error", err)
	}
}

func TestEffectiveLateFeeConfig_OverrideWholesale(t *testing.T) {
	global := dailyPercentConfig(200_000)
	override := types.LateFeeConfig{
		Enabled:    true,
		AfterDays:  10,
		Mode:       types.LateFeeFlat,
		FlatAmount: 25_000,
		Repeat:     types.RepeatNone,
	}
	lease := types.Lease{LateFeeOverride: &override}

	got := EffectiveLateFeeConfig(&global, lease)
	if got.Mode != types.LateFeeFlat || got.AfterDays != 10 {
		t.Errorf("override not applied wholesale: %+v", got)
	}
	// The override left Cap unset and it must stay unset.
	if got.Cap != nil {
		t.Errorf("cap leaked from global config: %v", *got.Cap)
	}
}

func TestEffectiveLateFeeConfig_Fallback(t *testing.T) {
	global := dailyPercentConfig(200_000)

	got := EffectiveLateFeeConfig(&global, types.Lease{})
	if got.Percent != 5 {
		t.Errorf("global config not used: %+v", got)
	}

	got = EffectiveLateFeeConfig(nil, types.Lease{})
	if got.Enabled {
		t.Errorf("zero config expected when nothing is configured: %+v", got)
	}
}
