// Package client provides a transport-agnostic interface for the vesting
// service with HTTP/JSON and gRPC implementations.
package client

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/vesting/internal/api"
	"github.com/alfredjeanlab/vesting/internal/events"
	"github.com/alfredjeanlab/vesting/internal/model"
)

// VestingClient is the interface that all vest CLI commands use to
// communicate with the vesting server. It is implemented by HTTPClient
// (default) and GRPCClient.
type VestingClient interface {
	// Schedules
	CreateSchedule(ctx context.Context, req *api.CreateScheduleRequest) (*model.Schedule, error)
	GetSchedule(ctx context.Context, beneficiary model.Address) (*model.Schedule, error)
	ListSchedules(ctx context.Context, filter model.ScheduleFilter) ([]*model.Schedule, error)
	Releasable(ctx context.Context, beneficiary model.Address) (decimal.Decimal, error)
	Release(ctx context.Context) (decimal.Decimal, error)
	EmergencyWithdraw(ctx context.Context, amount decimal.Decimal) error

	// Agreements
	SignAgreement(ctx context.Context, ipfsHash string) (*model.Agreement, error)
	GetAgreement(ctx context.Context, signer model.Address) (*model.Agreement, error)
	ListAgreements(ctx context.Context) ([]*model.Agreement, error)

	// Administration
	Owner(ctx context.Context) (*api.OwnerResponse, error)
	TransferOwnership(ctx context.Context, newOwner model.Address) (*api.OwnerResponse, error)

	// Token
	TokenInfo(ctx context.Context) (*model.TokenInfo, error)
	Balance(ctx context.Context, addr model.Address) (*model.Balance, error)
	Balances(ctx context.Context) ([]*model.Balance, error)
	Allowance(ctx context.Context, owner, spender model.Address) (*model.Allowance, error)
	Mint(ctx context.Context, to model.Address, amount decimal.Decimal) (*model.Balance, error)
	Approve(ctx context.Context, spender model.Address, amount decimal.Decimal) (*model.Allowance, error)
	Transfer(ctx context.Context, to model.Address, amount decimal.Decimal) (*model.Balance, error)
	Faucet(ctx context.Context, amount decimal.Decimal) (*model.Balance, error)

	// Events
	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)
	// WatchEvents calls fn for every event whose topic matches one of topics
	// (all when empty), until ctx is done or fn returns an error. Events after
	// afterID are replayed first; a negative afterID starts at the live tail.
	WatchEvents(ctx context.Context, topics []string, afterID int64, fn func(*model.Event) error) error
	Snapshot(ctx context.Context) (*model.Snapshot, error)

	// Identity and health
	WhoAmI(ctx context.Context) (*api.WhoAmIResponse, error)
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// Option configures a client.
type Option func(*options)

type options struct {
	token        string
	caller       model.Address
	pollInterval time.Duration
}

func defaultOptions() options {
	return options{pollInterval: 2 * time.Second}
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(o *options) { o.token = token }
}

// WithCaller names the caller for servers running without a keyring.
func WithCaller(addr model.Address) Option {
	return func(o *options) { o.caller = addr }
}

// WithPollInterval sets how often a polling WatchEvents asks for new events.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// pollEvents implements WatchEvents on top of ListEvents.
func pollEvents(ctx context.Context, list func(context.Context, model.EventFilter) ([]*model.Event, error), interval time.Duration, topics []string, afterID int64, fn func(*model.Event) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	skip := afterID < 0
	if skip {
		afterID = 0
	}
	for {
		evts, err := list(ctx, model.EventFilter{AfterID: afterID})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, e := range evts {
			afterID = e.ID
			if skip || !matchesAny(topics, e.Topic) {
				continue
			}
			if err := fn(e); err != nil {
				return err
			}
		}
		skip = false
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// matchesAny reports whether topic matches one of the patterns in topics,
// or topics is empty.
func matchesAny(topics []string, topic string) bool {
	if len(topics) == 0 {
		return true
	}
	for _, t := range topics {
		if events.MatchTopic(t, topic) {
			return true
		}
	}
	return false
}
