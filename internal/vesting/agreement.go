package vesting

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/vesting/internal/events"
	"github.com/alfredjeanlab/vesting/internal/model"
	"github.com/alfredjeanlab/vesting/internal/store"
)

// SignAgreement records that caller accepted the agreement identified by
// ipfsHash. The caller must hold an active schedule and may sign only once.
func (s *Service) SignAgreement(ctx context.Context, caller model.Address, ipfsHash string) (*model.Agreement, error) {
	var a *model.Agreement
	err := s.update(ctx, func(tx store.Store) error {
		if ipfsHash == "" {
			return ErrEmptyFingerprint
		}

		sched, err := tx.GetSchedule(ctx, caller)
		if errors.Is(err, store.ErrNotFound) || (err == nil && !sched.IsActive) {
			return ErrNoActiveSchedule
		}
		if err != nil {
			return fmt.Errorf("get schedule: %w", err)
		}

		prev, err := tx.GetAgreement(ctx, caller)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return fmt.Errorf("get agreement: %w", err)
		case prev.IsSigned:
			return fmt.Errorf("%w: %s signed %q", ErrAlreadySigned, caller, prev.IPFSHash)
		}

		a = &model.Agreement{
			IPFSHash:  ipfsHash,
			Signer:    caller,
			Timestamp: s.now().Unix(),
			IsSigned:  true,
		}
		if err := model.ValidateAgreement(a); err != nil {
			return err
		}
		if err := tx.PutAgreement(ctx, a); err != nil {
			return fmt.Errorf("put agreement: %w", err)
		}
		return record(ctx, tx, events.TopicAgreementSigned, caller, caller, events.AgreementSigned{
			Signer:    caller,
			IPFSHash:  ipfsHash,
			Timestamp: a.Timestamp,
		})
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetAgreement returns the signer's agreement record, or an unsigned zero
// record (signer = zero address) when none exists.
func (s *Service) GetAgreement(ctx context.Context, signer model.Address) (*model.Agreement, error) {
	a, err := s.store.GetAgreement(ctx, signer)
	if errors.Is(err, store.ErrNotFound) {
		return &model.Agreement{Signer: model.ZeroAddress}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agreement: %w", err)
	}
	return a, nil
}

func (s *Service) ListAgreements(ctx context.Context) ([]*model.Agreement, error) {
	return s.store.ListAgreements(ctx)
}
