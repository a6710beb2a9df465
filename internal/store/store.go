package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/vesting/internal/model"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by single-record lookups when no record exists.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for the vesting ledger.
//
// Transactions started with RunInTransaction are serialized against each
// other, so read-modify-write sequences on the same beneficiary or balance
// cannot interleave.
type Store interface {
	// Schedules
	GetSchedule(ctx context.Context, beneficiary model.Address) (*model.Schedule, error)
	PutSchedule(ctx context.Context, s *model.Schedule) error
	ListSchedules(ctx context.Context, filter model.ScheduleFilter) ([]*model.Schedule, error)

	// Agreements
	GetAgreement(ctx context.Context, signer model.Address) (*model.Agreement, error)
	PutAgreement(ctx context.Context, a *model.Agreement) error
	ListAgreements(ctx context.Context) ([]*model.Agreement, error)

	// Balances (absent rows read as zero)
	GetBalance(ctx context.Context, addr model.Address) (decimal.Decimal, error)
	SetBalance(ctx context.Context, addr model.Address, amount decimal.Decimal) error
	ListBalances(ctx context.Context) ([]*model.Balance, error)
	TotalSupply(ctx context.Context) (decimal.Decimal, error)

	// Allowances (absent rows read as zero)
	GetAllowance(ctx context.Context, owner, spender model.Address) (decimal.Decimal, error)
	SetAllowance(ctx context.Context, owner, spender model.Address, amount decimal.Decimal) error

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
