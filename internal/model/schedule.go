package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Schedule is a linear vesting schedule for a single beneficiary.
// A beneficiary has at most one schedule; it is never deleted, only drained.
type Schedule struct {
	Beneficiary     Address         `json:"beneficiary"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	StartTime       int64           `json:"start_time"`       // unix seconds
	VestingDuration int64           `json:"vesting_duration"` // seconds
	ReleasedAmount  decimal.Decimal `json:"released_amount"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// EndTime returns the unix second at which the schedule is fully vested.
func (s *Schedule) EndTime() int64 {
	return s.StartTime + s.VestingDuration
}

// Remaining returns the escrowed amount not yet released.
func (s *Schedule) Remaining() decimal.Decimal {
	return s.TotalAmount.Sub(s.ReleasedAmount)
}

// FullyReleased reports whether every token in the schedule has been paid out.
func (s *Schedule) FullyReleased() bool {
	return s.ReleasedAmount.GreaterThanOrEqual(s.TotalAmount)
}

// ScheduleFilter holds criteria for listing schedules.
type ScheduleFilter struct {
	ActiveOnly bool `json:"active_only,omitempty"`
	Limit      int  `json:"limit,omitempty"`
	Offset     int  `json:"offset,omitempty"`
}
