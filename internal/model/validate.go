package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateSchedule checks a Schedule for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the schedule is valid.
func ValidateSchedule(s *Schedule) error {
	var ve ValidationError

	if s.Beneficiary.IsZero() {
		ve.Errors = append(ve.Errors, FieldError{Field: "beneficiary", Message: "must not be the zero address"})
	} else if !s.Beneficiary.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "beneficiary",
			Message: fmt.Sprintf("invalid address %q", s.Beneficiary),
		})
	}

	if !IsWholeAmount(s.TotalAmount) || !s.TotalAmount.IsPositive() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "total_amount",
			Message: fmt.Sprintf("must be a positive integer, got %s", s.TotalAmount),
		})
	}

	if s.VestingDuration <= 0 {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "vesting_duration",
			Message: fmt.Sprintf("must be positive, got %d", s.VestingDuration),
		})
	}

	if s.StartTime < 0 {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "start_time",
			Message: fmt.Sprintf("must not be negative, got %d", s.StartTime),
		})
	}

	// Released amount never goes negative and never exceeds the total.
	if !IsWholeAmount(s.ReleasedAmount) {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "released_amount",
			Message: fmt.Sprintf("must be a non-negative integer, got %s", s.ReleasedAmount),
		})
	} else if s.ReleasedAmount.GreaterThan(s.TotalAmount) {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "released_amount",
			Message: fmt.Sprintf("%s exceeds total_amount %s", s.ReleasedAmount, s.TotalAmount),
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateAgreement checks a signed Agreement record.
func ValidateAgreement(a *Agreement) error {
	var ve ValidationError

	if a.IPFSHash == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "ipfs_hash", Message: "is required"})
	}
	if a.Signer.IsZero() {
		ve.Errors = append(ve.Errors, FieldError{Field: "signer", Message: "must not be the zero address"})
	}
	if a.IsSigned && a.Timestamp <= 0 {
		ve.Errors = append(ve.Errors, FieldError{Field: "timestamp", Message: "is required when signed"})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
