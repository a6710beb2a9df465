package vesting

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/vesting/internal/model"
	"github.com/alfredjeanlab/vesting/internal/store"
)

// TokenInfo returns the escrowed token's metadata and supply.
func (s *Service) TokenInfo(ctx context.Context) (*model.TokenInfo, error) {
	return s.ledger.Info(ctx, s.store)
}

func (s *Service) BalanceOf(ctx context.Context, addr model.Address) (decimal.Decimal, error) {
	return s.ledger.BalanceOf(ctx, s.store, addr)
}

func (s *Service) Allowance(ctx context.Context, owner, spender model.Address) (decimal.Decimal, error) {
	return s.ledger.Allowance(ctx, s.store, owner, spender)
}

func (s *Service) Balances(ctx context.Context) ([]*model.Balance, error) {
	return s.store.ListBalances(ctx)
}

// Mint creates new tokens for `to`. Administrator only.
func (s *Service) Mint(ctx context.Context, caller, to model.Address, amount decimal.Decimal) error {
	return s.update(ctx, func(tx store.Store) error {
		if err := s.gate.RequireAdmin(caller); err != nil {
			return err
		}
		return s.ledger.Mint(ctx, tx, caller, to, amount)
	})
}

// Faucet mints a capped amount to the caller for test deployments.
func (s *Service) Faucet(ctx context.Context, caller model.Address, amount decimal.Decimal) error {
	return s.update(ctx, func(tx store.Store) error {
		return s.ledger.Faucet(ctx, tx, caller, amount)
	})
}

func (s *Service) Approve(ctx context.Context, caller, spender model.Address, amount decimal.Decimal) error {
	return s.update(ctx, func(tx store.Store) error {
		return s.ledger.Approve(ctx, tx, caller, spender, amount)
	})
}

func (s *Service) Transfer(ctx context.Context, caller, to model.Address, amount decimal.Decimal) error {
	return s.update(ctx, func(tx store.Store) error {
		return s.ledger.Transfer(ctx, tx, caller, to, amount)
	})
}

// Snapshot returns the full ledger state in one consistent read.
func (s *Service) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	var snap model.Snapshot
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		if snap.Schedules, err = tx.ListSchedules(ctx, model.ScheduleFilter{}); err != nil {
			return err
		}
		if snap.Agreements, err = tx.ListAgreements(ctx); err != nil {
			return err
		}
		if snap.Balances, err = tx.ListBalances(ctx); err != nil {
			return err
		}
		if snap.Events, err = tx.ListEvents(ctx, model.EventFilter{}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	snap.Owner = s.Owner()
	snap.Custody = s.custody
	snap.TakenAt = s.now().UTC()
	return &snap, nil
}
