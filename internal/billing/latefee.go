package billing

import (
	"math"

	"github.com/vuquang/nhatro/internal/fault"
	"github.com/vuquang/nhatro/internal/types"
)

// KeyLateFee is the settings key holding the global late fee config.
const KeyLateFee = "late_fee"

// ComputeLateFee computes the overdue penalty for an invoice of
// baseAmount that is daysLate days past due. It is a pure function:
// identical arguments always yield identical output.
//
// The fee is zero while the config is disabled or the grace period has
// not elapsed. In daily-repeat mode the unit fee accrues once per day
// past the grace period; the result is clamped to the configured cap
// when one is set.
func ComputeLateFee(baseAmount int64, cfg types.LateFeeConfig, daysLate int) (int64, error) {
	if baseAmount < 0 {
		return 0, fault.Validation("late fee base amount must not be negative, got %d", baseAmount)
	}
	if daysLate < 0 {
		return 0, fault.Validation("days late must not be negative, got %d", daysLate)
	}
	if !cfg.Enabled || daysLate < cfg.AfterDays {
		return 0, nil
	}

	times := int64(1)
	if cfg.Repeat == types.RepeatDaily {
		times = int64(daysLate - cfg.AfterDays + 1)
		if times < 1 {
			times = 1
		}
	}

	var unit int64
	switch cfg.Mode {
	case types.LateFeeFlat:
		unit = cfg.FlatAmount
	default:
		pct := cfg.Percent
		if pct < 0 {
			pct = 0
		}
		unit = roundHalfUp(float64(baseAmount) * pct / 100)
	}

	fee := unit * times
	if fee < 0 {
		fee = 0
	}
	if cfg.Cap != nil && fee > *cfg.Cap {
		fee = *cfg.Cap
	}
	return fee, nil
}

// EffectiveLateFeeConfig picks the config that governs a lease: the
// per-lease override when present, otherwise the global config. The
// override replaces the global config wholesale — fields are never
// merged.
func EffectiveLateFeeConfig(global *types.LateFeeConfig, lease types.Lease) types.LateFeeConfig {
	if lease.LateFeeOverride != nil {
		return *lease.LateFeeOverride
	}
	if global != nil {
		return *global
	}
	return types.LateFeeConfig{}
}

// roundHalfUp rounds to the nearest minor currency unit, halves away
// from zero for non-negative inputs.
func roundHalfUp(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}
