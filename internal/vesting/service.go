// Package vesting is the vesting ledger: schedule creation, the linear
// release formula, the agreement gate on release, and emergency withdrawal.
// Fund movement is delegated to a Token; all state lives in a store.Store.
package vesting

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/vesting/internal/access"
	"github.com/alfredjeanlab/vesting/internal/events"
	"github.com/alfredjeanlab/vesting/internal/idgen"
	"github.com/alfredjeanlab/vesting/internal/model"
	"github.com/alfredjeanlab/vesting/internal/store"
	"github.com/alfredjeanlab/vesting/internal/token"
)

// Token moves escrowed funds. *token.Ledger satisfies it.
type Token interface {
	Transfer(ctx context.Context, s store.Store, from, to model.Address, amount decimal.Decimal) error
	TransferFrom(ctx context.Context, s store.Store, spender, from, to model.Address, amount decimal.Decimal) error
}

// Config describes a ledger instance.
type Config struct {
	Admin       model.Address   // initial administrator
	Custody     model.Address   // account holding escrowed tokens
	FaucetLimit decimal.Decimal // per-call faucet cap in base units; zero disables
}

// Service is the vesting ledger. All mutating operations run in a single
// store transaction; their events are published only after commit.
type Service struct {
	store     store.Store
	publisher events.Publisher
	gate      *access.Gate
	ledger    *token.Ledger
	token     Token
	custody   model.Address
	now       func() time.Time

	// commitMu spans commit and publish so live subscribers see events in
	// commit order within this process.
	commitMu sync.Mutex

	hooksMu sync.RWMutex
	hooks   []func(*model.Event)
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithToken replaces the token used to move escrowed funds.
func WithToken(t Token) Option {
	return func(s *Service) { s.token = t }
}

// New returns a Service backed by st. A nil publisher disables bus publishing.
func New(cfg Config, st store.Store, pub events.Publisher, opts ...Option) (*Service, error) {
	gate, err := access.NewGate(cfg.Admin)
	if err != nil {
		return nil, fmt.Errorf("admin: %w", err)
	}
	if cfg.Custody.IsZero() {
		return nil, fmt.Errorf("custody: %w", ErrInvalidBeneficiary)
	}
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	ledger := token.New(cfg.FaucetLimit)
	s := &Service{
		store:     st,
		publisher: pub,
		gate:      gate,
		ledger:    ledger,
		token:     ledger,
		custody:   cfg.Custody,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Custody returns the escrow account address.
func (s *Service) Custody() model.Address { return s.custody }

// OnCommit registers fn to receive every event after its transaction commits.
func (s *Service) OnCommit(fn func(*model.Event)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// update runs fn in a store transaction. Events recorded through the tx are
// stamped with a shared operation ID and published once the commit succeeds.
func (s *Service) update(ctx context.Context, fn func(tx store.Store) error) error {
	opID, err := idgen.OpID()
	if err != nil {
		return err
	}
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	var rec *recorder
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		rec = &recorder{Store: tx, opID: opID}
		return fn(rec)
	})
	if err != nil {
		return err
	}
	for _, e := range rec.events {
		s.publish(ctx, e)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, e *model.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		slog.Warn("failed to publish event", "topic", e.Topic, "id", e.ID, "op_id", e.OpID, "error", err)
	}
	s.hooksMu.RLock()
	defer s.hooksMu.RUnlock()
	for _, fn := range s.hooks {
		fn(e)
	}
}

// record appends a ledger event inside tx.
func record(ctx context.Context, tx store.Store, topic string, subject, actor model.Address, payload any) error {
	e, err := events.New(topic, subject, actor, payload)
	if err != nil {
		return err
	}
	if err := tx.RecordEvent(ctx, e); err != nil {
		return fmt.Errorf("record %s: %w", topic, err)
	}
	return nil
}

// recorder wraps a transaction store and remembers the events written
// through it.
type recorder struct {
	store.Store
	opID   string
	events []*model.Event
}

func (r *recorder) RecordEvent(ctx context.Context, e *model.Event) error {
	if e.OpID == "" {
		e.OpID = r.opID
	}
	if err := r.Store.RecordEvent(ctx, e); err != nil {
		return err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(r)
}

// Events returns the persisted event history.
func (s *Service) Events(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	return s.store.ListEvents(ctx, filter)
}

// Owner returns the current administrator.
func (s *Service) Owner() model.Address {
	return s.gate.Owner()
}

// TransferOwnership hands the administrator role to newOwner. The role is
// swapped as the last step of the transaction and restored if the commit
// fails.
func (s *Service) TransferOwnership(ctx context.Context, caller, newOwner model.Address) error {
	var applied bool
	err := s.update(ctx, func(tx store.Store) error {
		if err := s.gate.RequireAdmin(caller); err != nil {
			return err
		}
		if newOwner.IsZero() {
			return ErrInvalidOwner
		}
		if err := record(ctx, tx, events.TopicOwnershipTransferred, newOwner, caller, events.OwnershipTransferred{
			PreviousOwner: caller,
			NewOwner:      newOwner,
		}); err != nil {
			return err
		}
		if _, err := s.gate.TransferOwnership(caller, newOwner); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil && applied {
		_, _ = s.gate.TransferOwnership(newOwner, caller)
	}
	return err
}

// RestoreOwner re-applies the latest ownership transfer in the event log, so
// a restarted server over a persistent store keeps the current administrator
// rather than the configured initial one.
func (s *Service) RestoreOwner(ctx context.Context) error {
	evts, err := s.store.ListEvents(ctx, model.EventFilter{Topics: []string{events.TopicOwnershipTransferred}})
	if err != nil {
		return fmt.Errorf("list ownership events: %w", err)
	}
	if len(evts) == 0 {
		return nil
	}
	last := evts[len(evts)-1]
	var p events.OwnershipTransferred
	if err := json.Unmarshal(last.Payload, &p); err != nil {
		return fmt.Errorf("decode ownership event %d: %w", last.ID, err)
	}
	cur := s.gate.Owner()
	if p.NewOwner == cur {
		return nil
	}
	if _, err := s.gate.TransferOwnership(cur, p.NewOwner); err != nil {
		return fmt.Errorf("restore owner from event %d: %w", last.ID, err)
	}
	return nil
}
