package server

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/vesting/internal/model"
	"github.com/alfredjeanlab/vesting/internal/token"
	"github.com/alfredjeanlab/vesting/internal/vesting"
)

// errAnonymous is returned when a mutating call carries no caller identity.
var errAnonymous = errors.New("caller identity required")

// errorClass groups ledger errors by how transports report them.
type errorClass int

const (
	classInternal errorClass = iota
	classInvalid
	classUnauthenticated
	classForbidden
	classNotFound
	classConflict
	classTransfer
)

func classify(err error) errorClass {
	var ie inputError
	var ve *model.ValidationError
	switch {
	case errors.Is(err, errAnonymous):
		return classUnauthenticated
	case errors.Is(err, vesting.ErrUnauthorized):
		return classForbidden
	case errors.Is(err, vesting.ErrTransferFailure):
		return classTransfer
	case errors.As(err, &ie), errors.As(err, &ve),
		errors.Is(err, vesting.ErrInvalidBeneficiary),
		errors.Is(err, vesting.ErrInvalidAmount),
		errors.Is(err, vesting.ErrInvalidDuration),
		errors.Is(err, vesting.ErrInvalidStartTime),
		errors.Is(err, vesting.ErrEmptyFingerprint),
		errors.Is(err, vesting.ErrInvalidOwner),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, token.ErrInvalidRecipient),
		errors.Is(err, token.ErrFaucetLimit):
		return classInvalid
	case errors.Is(err, vesting.ErrNoActiveSchedule):
		return classNotFound
	case errors.Is(err, vesting.ErrAgreementNotSigned),
		errors.Is(err, vesting.ErrNothingToRelease),
		errors.Is(err, vesting.ErrScheduleExists),
		errors.Is(err, vesting.ErrAlreadySigned),
		errors.Is(err, token.ErrFaucetDisabled):
		return classConflict
	case errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		return classTransfer
	}
	return classInternal
}

// httpStatus maps a ledger error to an HTTP status code.
func httpStatus(err error) int {
	switch classify(err) {
	case classInvalid:
		return http.StatusBadRequest
	case classUnauthenticated:
		return http.StatusUnauthorized
	case classForbidden:
		return http.StatusForbidden
	case classNotFound:
		return http.StatusNotFound
	case classConflict:
		return http.StatusConflict
	case classTransfer:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// grpcError converts a ledger error to a gRPC status error.
func grpcError(err error) error {
	var code codes.Code
	switch classify(err) {
	case classInvalid:
		code = codes.InvalidArgument
	case classUnauthenticated:
		code = codes.Unauthenticated
	case classForbidden:
		code = codes.PermissionDenied
	case classNotFound:
		code = codes.NotFound
	case classConflict, classTransfer:
		code = codes.FailedPrecondition
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
