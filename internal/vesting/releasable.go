package vesting

import (
	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/vesting/internal/model"
)

// Vested returns how much of the schedule has unlocked at unix second now:
// total * clamp(now-start, 0, duration) / duration, truncated toward zero.
func Vested(s *model.Schedule, now int64) decimal.Decimal {
	if s == nil || !s.IsActive || s.VestingDuration <= 0 {
		return decimal.Zero
	}
	if now <= s.StartTime {
		return decimal.Zero
	}
	// A negative difference here means now-start overflowed, which is
	// longer than any duration.
	elapsed := now - s.StartTime
	if elapsed < 0 || elapsed >= s.VestingDuration {
		return s.TotalAmount
	}
	q, _ := s.TotalAmount.Mul(decimal.NewFromInt(elapsed)).QuoRem(decimal.NewFromInt(s.VestingDuration), 0)
	return q
}

// Releasable returns the vested amount not yet released, never negative.
func Releasable(s *model.Schedule, now int64) decimal.Decimal {
	if s == nil {
		return decimal.Zero
	}
	r := Vested(s, now).Sub(s.ReleasedAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}
