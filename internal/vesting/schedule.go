package vesting

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/vesting/internal/events"
	"github.com/alfredjeanlab/vesting/internal/model"
	"github.com/alfredjeanlab/vesting/internal/store"
)

// CreateSchedule escrows totalAmount from the administrator into custody and
// opens a linear schedule for beneficiary. The administrator must first
// approve the custody account for at least totalAmount.
//
// A beneficiary may hold a new schedule only once the previous one is fully
// released; the new schedule replaces it.
func (s *Service) CreateSchedule(ctx context.Context, caller, beneficiary model.Address, totalAmount decimal.Decimal, startTime, vestingDuration int64) (*model.Schedule, error) {
	var sched *model.Schedule
	err := s.update(ctx, func(tx store.Store) error {
		if err := s.gate.RequireAdmin(caller); err != nil {
			return err
		}
		if beneficiary.IsZero() {
			return ErrInvalidBeneficiary
		}
		if !totalAmount.IsPositive() || !model.IsWholeAmount(totalAmount) {
			return fmt.Errorf("%w: total %s", ErrInvalidAmount, totalAmount)
		}
		if vestingDuration <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidDuration, vestingDuration)
		}
		if startTime < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidStartTime, startTime)
		}

		prev, err := tx.GetSchedule(ctx, beneficiary)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return fmt.Errorf("get schedule: %w", err)
		case prev.IsActive && !prev.FullyReleased():
			return fmt.Errorf("%w: %s has %s unreleased", ErrScheduleExists, beneficiary, prev.Remaining())
		}

		if err := s.token.TransferFrom(ctx, tx, s.custody, caller, s.custody, totalAmount); err != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailure, err)
		}

		now := s.now().UTC()
		sched = &model.Schedule{
			Beneficiary:     beneficiary,
			TotalAmount:     totalAmount,
			StartTime:       startTime,
			VestingDuration: vestingDuration,
			ReleasedAmount:  decimal.Zero,
			IsActive:        true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := model.ValidateSchedule(sched); err != nil {
			return err
		}
		if err := tx.PutSchedule(ctx, sched); err != nil {
			return fmt.Errorf("put schedule: %w", err)
		}

		return record(ctx, tx, events.TopicScheduleCreated, beneficiary, caller, events.ScheduleCreated{
			Beneficiary:     beneficiary,
			TotalAmount:     totalAmount,
			StartTime:       startTime,
			VestingDuration: vestingDuration,
		})
	})
	if err != nil {
		return nil, err
	}
	return sched, nil
}

// GetSchedule returns the beneficiary's schedule, or a zero-value inactive
// schedule (beneficiary = zero address) when none exists.
func (s *Service) GetSchedule(ctx context.Context, beneficiary model.Address) (*model.Schedule, error) {
	sched, err := s.store.GetSchedule(ctx, beneficiary)
	if errors.Is(err, store.ErrNotFound) {
		return &model.Schedule{
			Beneficiary:    model.ZeroAddress,
			TotalAmount:    decimal.Zero,
			ReleasedAmount: decimal.Zero,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sched, nil
}

func (s *Service) ListSchedules(ctx context.Context, filter model.ScheduleFilter) ([]*model.Schedule, error) {
	return s.store.ListSchedules(ctx, filter)
}

// CalculateReleasableAmount reports what Release would pay beneficiary right
// now. It is zero when there is no active schedule.
func (s *Service) CalculateReleasableAmount(ctx context.Context, beneficiary model.Address) (decimal.Decimal, error) {
	sched, err := s.store.GetSchedule(ctx, beneficiary)
	if errors.Is(err, store.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get schedule: %w", err)
	}
	return Releasable(sched, s.now().Unix()), nil
}

// Release pays the caller everything vested and not yet released.
func (s *Service) Release(ctx context.Context, caller model.Address) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := s.update(ctx, func(tx store.Store) error {
		var err error
		amount, err = s.release(ctx, tx, caller)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// release does the work of Release inside tx. The released amount is
// persisted before the token transfer runs, so a transfer that calls back
// into release sees nothing left to pay.
func (s *Service) release(ctx context.Context, tx store.Store, caller model.Address) (decimal.Decimal, error) {
	sched, err := tx.GetSchedule(ctx, caller)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !sched.IsActive) {
		return decimal.Zero, ErrNoActiveSchedule
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get schedule: %w", err)
	}

	agreement, err := tx.GetAgreement(ctx, caller)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !agreement.IsSigned) {
		return decimal.Zero, ErrAgreementNotSigned
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get agreement: %w", err)
	}

	now := s.now()
	amount := Releasable(sched, now.Unix())
	if !amount.IsPositive() {
		return decimal.Zero, ErrNothingToRelease
	}

	sched.ReleasedAmount = sched.ReleasedAmount.Add(amount)
	sched.UpdatedAt = now.UTC()
	if err := tx.PutSchedule(ctx, sched); err != nil {
		return decimal.Zero, fmt.Errorf("put schedule: %w", err)
	}

	if err := s.token.Transfer(ctx, tx, s.custody, caller, amount); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrTransferFailure, err)
	}

	if err := record(ctx, tx, events.TopicTokensReleased, caller, caller, events.TokensReleased{
		Beneficiary: caller,
		Amount:      amount,
	}); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// EmergencyWithdraw moves amount out of custody to the administrator. It does
// not check outstanding schedules, so it can leave them under-collateralized.
func (s *Service) EmergencyWithdraw(ctx context.Context, caller model.Address, amount decimal.Decimal) error {
	return s.update(ctx, func(tx store.Store) error {
		if err := s.gate.RequireAdmin(caller); err != nil {
			return err
		}
		if !amount.IsPositive() || !model.IsWholeAmount(amount) {
			return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
		}
		if err := s.token.Transfer(ctx, tx, s.custody, caller, amount); err != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailure, err)
		}
		return record(ctx, tx, events.TopicTokensWithdrawn, caller, caller, events.TokensWithdrawn{
			To:     caller,
			Amount: amount,
		})
	})
}
