// Package api defines the request and response messages shared by the HTTP
// and gRPC transports and the client. Every message is a JSON object; on gRPC
// it travels as a google.protobuf.Struct with the same field names.
package api

import (
	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/vesting/internal/model"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "vesting.v1.VestingService"

// Method names on ServiceName.
const (
	MethodHealth            = "Health"
	MethodWhoAmI            = "WhoAmI"
	MethodGetTokenInfo      = "GetTokenInfo"
	MethodCreateSchedule    = "CreateSchedule"
	MethodGetSchedule       = "GetSchedule"
	MethodListSchedules     = "ListSchedules"
	MethodGetReleasable     = "GetReleasable"
	MethodSignAgreement     = "SignAgreement"
	MethodGetAgreement      = "GetAgreement"
	MethodListAgreements    = "ListAgreements"
	MethodRelease           = "Release"
	MethodEmergencyWithdraw = "EmergencyWithdraw"
	MethodGetOwner          = "GetOwner"
	MethodTransferOwnership = "TransferOwnership"
	MethodGetBalance        = "GetBalance"
	MethodListBalances      = "ListBalances"
	MethodGetAllowance      = "GetAllowance"
	MethodMint              = "Mint"
	MethodApprove           = "Approve"
	MethodTransfer          = "Transfer"
	MethodFaucet            = "Faucet"
	MethodListEvents        = "ListEvents"
	MethodGetSnapshot       = "GetSnapshot"
)

// FullMethod returns the gRPC path for a method on ServiceName.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Empty is used for requests and responses without fields.
type Empty struct{}

type HealthResponse struct {
	Status string `json:"status"`
}

type WhoAmIResponse struct {
	Address model.Address `json:"address"`
	IsOwner bool          `json:"is_owner"`
}

type AddressRequest struct {
	Address model.Address `json:"address"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type AmountResponse struct {
	Amount decimal.Decimal `json:"amount"`
}

type CreateScheduleRequest struct {
	Beneficiary     model.Address   `json:"beneficiary"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	StartTime       int64           `json:"start_time"`
	VestingDuration int64           `json:"vesting_duration"`
}

type ListSchedulesResponse struct {
	Schedules []*model.Schedule `json:"schedules"`
}

type SignAgreementRequest struct {
	IPFSHash string `json:"ipfs_hash"`
}

type ListAgreementsResponse struct {
	Agreements []*model.Agreement `json:"agreements"`
}

type OwnerResponse struct {
	Owner   model.Address `json:"owner"`
	Custody model.Address `json:"custody"`
}

type TransferOwnershipRequest struct {
	NewOwner model.Address `json:"new_owner"`
}

type ListBalancesResponse struct {
	Balances []*model.Balance `json:"balances"`
}

type AllowanceRequest struct {
	Owner   model.Address `json:"owner"`
	Spender model.Address `json:"spender"`
}

type MintRequest struct {
	To     model.Address   `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type ApproveRequest struct {
	Spender model.Address   `json:"spender"`
	Amount  decimal.Decimal `json:"amount"`
}

type TransferRequest struct {
	To     model.Address   `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type ListEventsResponse struct {
	Events []*model.Event `json:"events"`
}
