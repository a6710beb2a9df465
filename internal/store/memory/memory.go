// Package memory implements the store.Store interface in process memory.
// It backs `vest serve` when no database is configured and the unit tests of
// every package above the store.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/vesting/internal/model"
	"github.com/alfredjeanlab/vesting/internal/store"
	"github.com/shopspring/decimal"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("memory store closed")

type allowanceKey struct {
	owner, spender model.Address
}

// state is the full ledger contents. Transactions work on a clone and swap
// it in on commit, so a failed transaction leaves no trace.
type state struct {
	schedules   map[model.Address]model.Schedule
	agreements  map[model.Address]model.Agreement
	balances    map[model.Address]decimal.Decimal
	allowances  map[allowanceKey]decimal.Decimal
	events      []*model.Event
	nextEventID int64
}

func newState() *state {
	return &state{
		schedules:   make(map[model.Address]model.Schedule),
		agreements:  make(map[model.Address]model.Agreement),
		balances:    make(map[model.Address]decimal.Decimal),
		allowances:  make(map[allowanceKey]decimal.Decimal),
		nextEventID: 1,
	}
}

func (st *state) clone() *state {
	c := &state{
		schedules:   make(map[model.Address]model.Schedule, len(st.schedules)),
		agreements:  make(map[model.Address]model.Agreement, len(st.agreements)),
		balances:    make(map[model.Address]decimal.Decimal, len(st.balances)),
		allowances:  make(map[allowanceKey]decimal.Decimal, len(st.allowances)),
		events:      append([]*model.Event(nil), st.events...),
		nextEventID: st.nextEventID,
	}
	for k, v := range st.schedules {
		c.schedules[k] = v
	}
	for k, v := range st.agreements {
		c.agreements[k] = v
	}
	for k, v := range st.balances {
		c.balances[k] = v
	}
	for k, v := range st.allowances {
		c.allowances[k] = v
	}
	return c
}

// MemoryStore implements store.Store with a single mutex. Every call,
// including a whole RunInTransaction, holds the mutex for its duration, so
// transactions are fully serialized.
type MemoryStore struct {
	mu     sync.Mutex
	st     *state
	closed bool
}

// Compile-time check that MemoryStore implements store.Store.
var _ store.Store = (*MemoryStore)(nil)

// New returns an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{st: newState()}
}

// do runs fn against the committed state under the mutex.
func (s *MemoryStore) do(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return fn(s.st)
}

func (s *MemoryStore) GetSchedule(_ context.Context, beneficiary model.Address) (*model.Schedule, error) {
	var out *model.Schedule
	err := s.do(func(st *state) (err error) {
		out, err = st.getSchedule(beneficiary)
		return err
	})
	return out, err
}

func (s *MemoryStore) PutSchedule(_ context.Context, sched *model.Schedule) error {
	return s.do(func(st *state) error { return st.putSchedule(sched) })
}

func (s *MemoryStore) ListSchedules(_ context.Context, filter model.ScheduleFilter) ([]*model.Schedule, error) {
	var out []*model.Schedule
	err := s.do(func(st *state) error {
		out = st.listSchedules(filter)
		return nil
	})
	return out, err
}

func (s *MemoryStore) GetAgreement(_ context.Context, signer model.Address) (*model.Agreement, error) {
	var out *model.Agreement
	err := s.do(func(st *state) (err error) {
		out, err = st.getAgreement(signer)
		return err
	})
	return out, err
}

func (s *MemoryStore) PutAgreement(_ context.Context, a *model.Agreement) error {
	return s.do(func(st *state) error { return st.putAgreement(a) })
}

func (s *MemoryStore) ListAgreements(_ context.Context) ([]*model.Agreement, error) {
	var out []*model.Agreement
	err := s.do(func(st *state) error {
		out = st.listAgreements()
		return nil
	})
	return out, err
}

func (s *MemoryStore) GetBalance(_ context.Context, addr model.Address) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := s.do(func(st *state) error {
		out = st.balances[addr]
		return nil
	})
	return out, err
}

func (s *MemoryStore) SetBalance(_ context.Context, addr model.Address, amount decimal.Decimal) error {
	return s.do(func(st *state) error { return st.setBalance(addr, amount) })
}

func (s *MemoryStore) ListBalances(_ context.Context) ([]*model.Balance, error) {
	var out []*model.Balance
	err := s.do(func(st *state) error {
		out = st.listBalances()
		return nil
	})
	return out, err
}

func (s *MemoryStore) TotalSupply(_ context.Context) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := s.do(func(st *state) error {
		out = st.totalSupply()
		return nil
	})
	return out, err
}

func (s *MemoryStore) GetAllowance(_ context.Context, owner, spender model.Address) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := s.do(func(st *state) error {
		out = st.allowances[allowanceKey{owner, spender}]
		return nil
	})
	return out, err
}

func (s *MemoryStore) SetAllowance(_ context.Context, owner, spender model.Address, amount decimal.Decimal) error {
	return s.do(func(st *state) error { return st.setAllowance(owner, spender, amount) })
}

func (s *MemoryStore) RecordEvent(_ context.Context, event *model.Event) error {
	return s.do(func(st *state) error { return st.recordEvent(event) })
}

func (s *MemoryStore) ListEvents(_ context.Context, filter model.EventFilter) ([]*model.Event, error) {
	var out []*model.Event
	err := s.do(func(st *state) error {
		out = st.listEvents(filter)
		return nil
	})
	return out, err
}

// RunInTransaction runs fn against a private copy of the state while holding
// the store mutex. The copy replaces the committed state only when fn
// returns nil.
func (s *MemoryStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	work := s.st.clone()
	if err := fn(&txStore{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Close marks the store closed. Contents are discarded.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// txStore implements store.Store over a transaction's working state. The
// parent MemoryStore's mutex is already held, so no locking happens here.
type txStore struct {
	st *state
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (t *txStore) GetSchedule(_ context.Context, beneficiary model.Address) (*model.Schedule, error) {
	return t.st.getSchedule(beneficiary)
}

func (t *txStore) PutSchedule(_ context.Context, sched *model.Schedule) error {
	return t.st.putSchedule(sched)
}

func (t *txStore) ListSchedules(_ context.Context, filter model.ScheduleFilter) ([]*model.Schedule, error) {
	return t.st.listSchedules(filter), nil
}

func (t *txStore) GetAgreement(_ context.Context, signer model.Address) (*model.Agreement, error) {
	return t.st.getAgreement(signer)
}

func (t *txStore) PutAgreement(_ context.Context, a *model.Agreement) error {
	return t.st.putAgreement(a)
}

func (t *txStore) ListAgreements(_ context.Context) ([]*model.Agreement, error) {
	return t.st.listAgreements(), nil
}

func (t *txStore) GetBalance(_ context.Context, addr model.Address) (decimal.Decimal, error) {
	return t.st.balances[addr], nil
}

func (t *txStore) SetBalance(_ context.Context, addr model.Address, amount decimal.Decimal) error {
	return t.st.setBalance(addr, amount)
}

func (t *txStore) ListBalances(_ context.Context) ([]*model.Balance, error) {
	return t.st.listBalances(), nil
}

func (t *txStore) TotalSupply(_ context.Context) (decimal.Decimal, error) {
	return t.st.totalSupply(), nil
}

func (t *txStore) GetAllowance(_ context.Context, owner, spender model.Address) (decimal.Decimal, error) {
	return t.st.allowances[allowanceKey{owner, spender}], nil
}

func (t *txStore) SetAllowance(_ context.Context, owner, spender model.Address, amount decimal.Decimal) error {
	return t.st.setAllowance(owner, spender, amount)
}

func (t *txStore) RecordEvent(_ context.Context, event *model.Event) error {
	return t.st.recordEvent(event)
}

func (t *txStore) ListEvents(_ context.Context, filter model.EventFilter) ([]*model.Event, error) {
	return t.st.listEvents(filter), nil
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (t *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

// Close is a no-op for a transaction store; the parent store owns the state.
func (t *txStore) Close() error {
	return nil
}

// --- state operations shared by MemoryStore and txStore ---

func (st *state) getSchedule(beneficiary model.Address) (*model.Schedule, error) {
	sched, ok := st.schedules[beneficiary]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sched, nil
}

func (st *state) putSchedule(sched *model.Schedule) error {
	st.schedules[sched.Beneficiary] = *sched
	return nil
}

func (st *state) listSchedules(filter model.ScheduleFilter) []*model.Schedule {
	out := make([]*model.Schedule, 0, len(st.schedules))
	for _, sched := range st.schedules {
		if filter.ActiveOnly && !sched.IsActive {
			continue
		}
		sched := sched
		out = append(out, &sched)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Beneficiary < out[j].Beneficiary
	})
	return paginate(out, filter.Offset, filter.Limit)
}

func (st *state) getAgreement(signer model.Address) (*model.Agreement, error) {
	a, ok := st.agreements[signer]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (st *state) putAgreement(a *model.Agreement) error {
	st.agreements[a.Signer] = *a
	return nil
}

func (st *state) listAgreements() []*model.Agreement {
	out := make([]*model.Agreement, 0, len(st.agreements))
	for _, a := range st.agreements {
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Signer < out[j].Signer })
	return out
}

func (st *state) setBalance(addr model.Address, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.New("balance must not be negative")
	}
	if amount.IsZero() {
		delete(st.balances, addr)
		return nil
	}
	st.balances[addr] = amount
	return nil
}

func (st *state) listBalances() []*model.Balance {
	out := make([]*model.Balance, 0, len(st.balances))
	for addr, amt := range st.balances {
		out = append(out, &model.Balance{Address: addr, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func (st *state) totalSupply() decimal.Decimal {
	total := decimal.Zero
	for _, amt := range st.balances {
		total = total.Add(amt)
	}
	return total
}

func (st *state) setAllowance(owner, spender model.Address, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.New("allowance must not be negative")
	}
	key := allowanceKey{owner, spender}
	if amount.IsZero() {
		delete(st.allowances, key)
		return nil
	}
	st.allowances[key] = amount
	return nil
}

func (st *state) recordEvent(event *model.Event) error {
	event.ID = st.nextEventID
	st.nextEventID++
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	cp := *event
	st.events = append(st.events, &cp)
	return nil
}

func (st *state) listEvents(filter model.EventFilter) []*model.Event {
	topics := make(map[string]bool, len(filter.Topics))
	for _, t := range filter.Topics {
		topics[t] = true
	}
	var out []*model.Event
	for _, e := range st.events {
		if e.ID <= filter.AfterID {
			continue
		}
		if len(topics) > 0 && !topics[e.Topic] {
			continue
		}
		if filter.Subject != "" && e.Subject != filter.Subject {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
