package server

import (
	"context"
	"strings"

	"github.com/alfredjeanlab/vesting/internal/api"
	"github.com/alfredjeanlab/vesting/internal/model"
)

// The methods in this file are the transport-neutral operations. HTTP
// handlers and the gRPC service both decode into the api request types and
// call through here; errors are returned unmapped.

func (s *VestingServer) Health(_ context.Context, _ *api.Empty) (*api.HealthResponse, error) {
	return &api.HealthResponse{Status: "ok"}, nil
}

func (s *VestingServer) WhoAmI(ctx context.Context, _ *api.Empty) (*api.WhoAmIResponse, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	return &api.WhoAmIResponse{Address: caller, IsOwner: caller == s.svc.Owner()}, nil
}

func (s *VestingServer) GetTokenInfo(ctx context.Context, _ *api.Empty) (*model.TokenInfo, error) {
	return s.svc.TokenInfo(ctx)
}

func (s *VestingServer) CreateSchedule(ctx context.Context, req *api.CreateScheduleRequest) (*model.Schedule, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	return s.svc.CreateSchedule(ctx, caller, req.Beneficiary, req.TotalAmount, req.StartTime, req.VestingDuration)
}

func (s *VestingServer) GetSchedule(ctx context.Context, req *api.AddressRequest) (*model.Schedule, error) {
	if err := requireAddress("address", req.Address); err != nil {
		return nil, err
	}
	return s.svc.GetSchedule(ctx, req.Address)
}

func (s *VestingServer) ListSchedules(ctx context.Context, req *model.ScheduleFilter) (*api.ListSchedulesResponse, error) {
	if req.Limit < 0 || req.Offset < 0 {
		return nil, inputError("limit and offset must not be negative")
	}
	schedules, err := s.svc.ListSchedules(ctx, *req)
	if err != nil {
		return nil, err
	}
	return &api.ListSchedulesResponse{Schedules: nonNil(schedules)}, nil
}

func (s *VestingServer) GetReleasable(ctx context.Context, req *api.AddressRequest) (*api.AmountResponse, error) {
	if err := requireAddress("address", req.Address); err != nil {
		return nil, err
	}
	amount, err := s.svc.CalculateReleasableAmount(ctx, req.Address)
	if err != nil {
		return nil, err
	}
	return &api.AmountResponse{Amount: amount}, nil
}

func (s *VestingServer) SignAgreement(ctx context.Context, req *api.SignAgreementRequest) (*model.Agreement, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	return s.svc.SignAgreement(ctx, caller, req.IPFSHash)
}

func (s *VestingServer) GetAgreement(ctx context.Context, req *api.AddressRequest) (*model.Agreement, error) {
	if err := requireAddress("address", req.Address); err != nil {
		return nil, err
	}
	return s.svc.GetAgreement(ctx, req.Address)
}

func (s *VestingServer) ListAgreements(ctx context.Context, _ *api.Empty) (*api.ListAgreementsResponse, error) {
	agreements, err := s.svc.ListAgreements(ctx)
	if err != nil {
		return nil, err
	}
	return &api.ListAgreementsResponse{Agreements: nonNil(agreements)}, nil
}

func (s *VestingServer) Release(ctx context.Context, _ *api.Empty) (*api.AmountResponse, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := s.svc.Release(ctx, caller)
	if err != nil {
		return nil, err
	}
	return &api.AmountResponse{Amount: amount}, nil
}

func (s *VestingServer) EmergencyWithdraw(ctx context.Context, req *api.AmountRequest) (*api.AmountResponse, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.EmergencyWithdraw(ctx, caller, req.Amount); err != nil {
		return nil, err
	}
	return &api.AmountResponse{Amount: req.Amount}, nil
}

func (s *VestingServer) GetOwner(_ context.Context, _ *api.Empty) (*api.OwnerResponse, error) {
	return &api.OwnerResponse{Owner: s.svc.Owner(), Custody: s.svc.Custody()}, nil
}

func (s *VestingServer) TransferOwnership(ctx context.Context, req *api.TransferOwnershipRequest) (*api.OwnerResponse, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.TransferOwnership(ctx, caller, req.NewOwner); err != nil {
		return nil, err
	}
	return &api.OwnerResponse{Owner: s.svc.Owner(), Custody: s.svc.Custody()}, nil
}

func (s *VestingServer) GetBalance(ctx context.Context, req *api.AddressRequest) (*model.Balance, error) {
	if err := requireAddress("address", req.Address); err != nil {
		return nil, err
	}
	return s.balance(ctx, req.Address)
}

func (s *VestingServer) ListBalances(ctx context.Context, _ *api.Empty) (*api.ListBalancesResponse, error) {
	balances, err := s.svc.Balances(ctx)
	if err != nil {
		return nil, err
	}
	return &api.ListBalancesResponse{Balances: nonNil(balances)}, nil
}

func (s *VestingServer) GetAllowance(ctx context.Context, req *api.AllowanceRequest) (*model.Allowance, error) {
	if err := requireAddress("owner", req.Owner); err != nil {
		return nil, err
	}
	if err := requireAddress("spender", req.Spender); err != nil {
		return nil, err
	}
	amount, err := s.svc.Allowance(ctx, req.Owner, req.Spender)
	if err != nil {
		return nil, err
	}
	return &model.Allowance{Owner: req.Owner, Spender: req.Spender, Amount: amount}, nil
}

func (s *VestingServer) Mint(ctx context.Context, req *api.MintRequest) (*model.Balance, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Mint(ctx, caller, req.To, req.Amount); err != nil {
		return nil, err
	}
	return s.balance(ctx, req.To)
}

func (s *VestingServer) Approve(ctx context.Context, req *api.ApproveRequest) (*model.Allowance, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Approve(ctx, caller, req.Spender, req.Amount); err != nil {
		return nil, err
	}
	return &model.Allowance{Owner: caller, Spender: req.Spender, Amount: req.Amount}, nil
}

func (s *VestingServer) Transfer(ctx context.Context, req *api.TransferRequest) (*model.Balance, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Transfer(ctx, caller, req.To, req.Amount); err != nil {
		return nil, err
	}
	return s.balance(ctx, caller)
}

func (s *VestingServer) Faucet(ctx context.Context, req *api.AmountRequest) (*model.Balance, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Faucet(ctx, caller, req.Amount); err != nil {
		return nil, err
	}
	return s.balance(ctx, caller)
}

func (s *VestingServer) ListEvents(ctx context.Context, req *model.EventFilter) (*api.ListEventsResponse, error) {
	if req.Limit < 0 || req.AfterID < 0 {
		return nil, inputError("limit and after_id must not be negative")
	}
	for _, t := range req.Topics {
		if strings.TrimSpace(t) == "" {
			return nil, inputError("topics must not contain empty names")
		}
	}
	evts, err := s.svc.Events(ctx, *req)
	if err != nil {
		return nil, err
	}
	return &api.ListEventsResponse{Events: nonNil(evts)}, nil
}

func (s *VestingServer) GetSnapshot(ctx context.Context, _ *api.Empty) (*model.Snapshot, error) {
	return s.svc.Snapshot(ctx)
}

func (s *VestingServer) balance(ctx context.Context, addr model.Address) (*model.Balance, error) {
	amount, err := s.svc.BalanceOf(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &model.Balance{Address: addr, Amount: amount}, nil
}

func requireAddress(field string, a model.Address) error {
	if a == "" {
		return inputError(field + " is required")
	}
	return nil
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
