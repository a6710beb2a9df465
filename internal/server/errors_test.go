package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/vesting/internal/model"
	"github.com/alfredjeanlab/vesting/internal/token"
	"github.com/alfredjeanlab/vesting/internal/vesting"
)

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHTTP int
		wantGRPC codes.Code
	}{
		{"anonymous", errAnonymous, http.StatusUnauthorized, codes.Unauthenticated},
		{"unauthorized", vesting.ErrUnauthorized, http.StatusForbidden, codes.PermissionDenied},
		{"input", inputError("bad"), http.StatusBadRequest, codes.InvalidArgument},
		{"validation", &model.ValidationError{Errors: []model.FieldError{{Field: "x", Message: "y"}}}, http.StatusBadRequest, codes.InvalidArgument},
		{"invalid amount", fmt.Errorf("%w: -1", vesting.ErrInvalidAmount), http.StatusBadRequest, codes.InvalidArgument},
		{"invalid duration", vesting.ErrInvalidDuration, http.StatusBadRequest, codes.InvalidArgument},
		{"empty fingerprint", vesting.ErrEmptyFingerprint, http.StatusBadRequest, codes.InvalidArgument},
		{"invalid owner", vesting.ErrInvalidOwner, http.StatusBadRequest, codes.InvalidArgument},
		{"no schedule", vesting.ErrNoActiveSchedule, http.StatusNotFound, codes.NotFound},
		{"not signed", vesting.ErrAgreementNotSigned, http.StatusConflict, codes.FailedPrecondition},
		{"nothing to release", vesting.ErrNothingToRelease, http.StatusConflict, codes.FailedPrecondition},
		{"schedule exists", vesting.ErrScheduleExists, http.StatusConflict, codes.FailedPrecondition},
		{"already signed", vesting.ErrAlreadySigned, http.StatusConflict, codes.FailedPrecondition},
		{"faucet disabled", token.ErrFaucetDisabled, http.StatusConflict, codes.FailedPrecondition},
		{"transfer failure", fmt.Errorf("%w: %w", vesting.ErrTransferFailure, token.ErrInvalidAmount), http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{"insufficient balance", token.ErrInsufficientBalance, http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := httpStatus(tt.err); got != tt.wantHTTP {
				t.Errorf("httpStatus = %d, want %d", got, tt.wantHTTP)
			}
			if got := status.Code(grpcError(tt.err)); got != tt.wantGRPC {
				t.Errorf("grpc code = %v, want %v", got, tt.wantGRPC)
			}
		})
	}
}
