package vesting

import (
	"errors"

	"github.com/alfredjeanlab/vesting/internal/access"
)

// Ledger errors. Operations wrap these with context; test with errors.Is.
var (
	ErrUnauthorized       = access.ErrUnauthorized
	ErrInvalidOwner       = access.ErrInvalidOwner
	ErrInvalidBeneficiary = errors.New("beneficiary cannot be the zero address")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInvalidDuration    = errors.New("vesting duration must be greater than zero")
	ErrInvalidStartTime   = errors.New("start time cannot be negative")
	ErrNoActiveSchedule   = errors.New("no active vesting schedule")
	ErrAgreementNotSigned = errors.New("agreement not signed")
	ErrNothingToRelease   = errors.New("no tokens to release")
	ErrEmptyFingerprint   = errors.New("agreement fingerprint cannot be empty")
	ErrTransferFailure    = errors.New("token transfer failed")
	ErrScheduleExists     = errors.New("beneficiary already has an unreleased schedule")
	ErrAlreadySigned      = errors.New("agreement already signed")
)
