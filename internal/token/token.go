// Package token implements the fungible balance ledger the vesting core moves
// funds through: balances, allowances, mint, transfer and transferFrom.
//
// Every operation takes the store handle to act on, so callers can compose
// several token movements with their own writes inside one transaction.
package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/vesting/internal/events"
	"github.com/alfredjeanlab/vesting/internal/model"
	"github.com/alfredjeanlab/vesting/internal/store"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidRecipient      = errors.New("invalid recipient")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrFaucetDisabled        = errors.New("faucet disabled")
	ErrFaucetLimit           = errors.New("faucet limit exceeded")
)

// Ledger is the balance ledger. The zero value is usable with the faucet
// disabled.
type Ledger struct {
	// FaucetLimit caps a single Faucet call in base units. Zero disables it.
	FaucetLimit decimal.Decimal
}

// New returns a Ledger whose faucet dispenses at most faucetLimit per call.
func New(faucetLimit decimal.Decimal) *Ledger {
	return &Ledger{FaucetLimit: faucetLimit}
}

// Info returns the token metadata and current supply.
func (l *Ledger) Info(ctx context.Context, s store.Store) (*model.TokenInfo, error) {
	supply, err := s.TotalSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("total supply: %w", err)
	}
	return &model.TokenInfo{
		Name:        model.TokenName,
		Symbol:      model.TokenSymbol,
		Decimals:    model.TokenDecimals,
		TotalSupply: supply,
	}, nil
}

func (l *Ledger) BalanceOf(ctx context.Context, s store.Store, addr model.Address) (decimal.Decimal, error) {
	return s.GetBalance(ctx, addr)
}

func (l *Ledger) TotalSupply(ctx context.Context, s store.Store) (decimal.Decimal, error) {
	return s.TotalSupply(ctx)
}

func (l *Ledger) Allowance(ctx context.Context, s store.Store, owner, spender model.Address) (decimal.Decimal, error) {
	return s.GetAllowance(ctx, owner, spender)
}

// Mint credits amount to `to` out of thin air. Authorization is the caller's
// concern.
func (l *Ledger) Mint(ctx context.Context, s store.Store, actor, to model.Address, amount decimal.Decimal) error {
	if to.IsZero() {
		return ErrInvalidRecipient
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal, err := s.GetBalance(ctx, to)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	if err := s.SetBalance(ctx, to, bal.Add(amount)); err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return record(ctx, s, events.TopicTransfer, to, actor, events.Transfer{
		From:   model.ZeroAddress,
		To:     to,
		Amount: amount,
	})
}

// Faucet mints amount to the caller, capped by FaucetLimit.
func (l *Ledger) Faucet(ctx context.Context, s store.Store, caller model.Address, amount decimal.Decimal) error {
	if !l.FaucetLimit.IsPositive() {
		return ErrFaucetDisabled
	}
	if amount.GreaterThan(l.FaucetLimit) {
		return fmt.Errorf("%w: %s > %s", ErrFaucetLimit, amount, l.FaucetLimit)
	}
	return l.Mint(ctx, s, caller, caller, amount)
}

// Approve sets the amount spender may move out of owner's balance,
// replacing any previous allowance. A zero amount revokes it.
func (l *Ledger) Approve(ctx context.Context, s store.Store, owner, spender model.Address, amount decimal.Decimal) error {
	if spender.IsZero() {
		return ErrInvalidRecipient
	}
	if !model.IsWholeAmount(amount) {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if err := s.SetAllowance(ctx, owner, spender, amount); err != nil {
		return fmt.Errorf("set allowance: %w", err)
	}
	return record(ctx, s, events.TopicApproval, owner, owner, events.Approval{
		Owner:   owner,
		Spender: spender,
		Amount:  amount,
	})
}

// Transfer moves amount from `from` to `to`.
func (l *Ledger) Transfer(ctx context.Context, s store.Store, from, to model.Address, amount decimal.Decimal) error {
	return l.move(ctx, s, from, from, to, amount)
}

// TransferFrom moves amount from `from` to `to` on behalf of spender,
// consuming spender's allowance.
func (l *Ledger) TransferFrom(ctx context.Context, s store.Store, spender, from, to model.Address, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	allowed, err := s.GetAllowance(ctx, from, spender)
	if err != nil {
		return fmt.Errorf("get allowance: %w", err)
	}
	if allowed.LessThan(amount) {
		return fmt.Errorf("%w: %s allowed, %s requested", ErrInsufficientAllowance, allowed, amount)
	}
	if err := s.SetAllowance(ctx, from, spender, allowed.Sub(amount)); err != nil {
		return fmt.Errorf("set allowance: %w", err)
	}
	return l.move(ctx, s, spender, from, to, amount)
}

func (l *Ledger) move(ctx context.Context, s store.Store, actor, from, to model.Address, amount decimal.Decimal) error {
	if to.IsZero() {
		return ErrInvalidRecipient
	}
	if err := checkAmount(amount); err != nil {
		return err
	}

	fromBal, err := s.GetBalance(ctx, from)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	if fromBal.LessThan(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, fromBal, amount)
	}
	if err := s.SetBalance(ctx, from, fromBal.Sub(amount)); err != nil {
		return fmt.Errorf("set balance: %w", err)
	}

	// Read after the debit so a self-transfer nets to zero.
	toBal, err := s.GetBalance(ctx, to)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	if err := s.SetBalance(ctx, to, toBal.Add(amount)); err != nil {
		return fmt.Errorf("set balance: %w", err)
	}

	return record(ctx, s, events.TopicTransfer, to, actor, events.Transfer{
		From:   from,
		To:     to,
		Amount: amount,
	})
}

func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !model.IsWholeAmount(amount) {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return nil
}

func record(ctx context.Context, s store.Store, topic string, subject, actor model.Address, payload any) error {
	e, err := events.New(topic, subject, actor, payload)
	if err != nil {
		return err
	}
	if err := s.RecordEvent(ctx, e); err != nil {
		return fmt.Errorf("record %s: %w", topic, err)
	}
	return nil
}
