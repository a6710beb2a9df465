package client

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/vesting/internal/api"
	"github.com/alfredjeanlab/vesting/internal/model"
)

// GRPCClient implements VestingClient using the gRPC transport.
type GRPCClient struct {
	conn *grpc.ClientConn
	opts options
}

// NewGRPCClient connects to the given gRPC address and returns a client.
func NewGRPCClient(addr string, opts ...Option) (*GRPCClient, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, opts: o}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// call invokes method with req encoded as a Struct and decodes the reply into out.
func (c *GRPCClient) call(ctx context.Context, method string, req, out any) error {
	if req == nil {
		req = api.Empty{}
	}
	in, err := api.ToStruct(req)
	if err != nil {
		return err
	}
	if c.opts.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.opts.token)
	}
	if c.opts.caller != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-vesting-caller", c.opts.caller.String())
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, api.FullMethod(method), in, resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return api.FromStruct(resp, out)
}

// --- Schedules ---

func (c *GRPCClient) CreateSchedule(ctx context.Context, req *api.CreateScheduleRequest) (*model.Schedule, error) {
	var s model.Schedule
	if err := c.call(ctx, api.MethodCreateSchedule, req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *GRPCClient) GetSchedule(ctx context.Context, beneficiary model.Address) (*model.Schedule, error) {
	var s model.Schedule
	if err := c.call(ctx, api.MethodGetSchedule, &api.AddressRequest{Address: beneficiary}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *GRPCClient) ListSchedules(ctx context.Context, filter model.ScheduleFilter) ([]*model.Schedule, error) {
	var resp api.ListSchedulesResponse
	if err := c.call(ctx, api.MethodListSchedules, &filter, &resp); err != nil {
		return nil, err
	}
	return resp.Schedules, nil
}

func (c *GRPCClient) Releasable(ctx context.Context, beneficiary model.Address) (decimal.Decimal, error) {
	var resp api.AmountResponse
	if err := c.call(ctx, api.MethodGetReleasable, &api.AddressRequest{Address: beneficiary}, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Amount, nil
}

func (c *GRPCClient) Release(ctx context.Context) (decimal.Decimal, error) {
	var resp api.AmountResponse
	if err := c.call(ctx, api.MethodRelease, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Amount, nil
}

func (c *GRPCClient) EmergencyWithdraw(ctx context.Context, amount decimal.Decimal) error {
	return c.call(ctx, api.MethodEmergencyWithdraw, &api.AmountRequest{Amount: amount}, nil)
}

// --- Agreements ---

func (c *GRPCClient) SignAgreement(ctx context.Context, ipfsHash string) (*model.Agreement, error) {
	var a model.Agreement
	if err := c.call(ctx, api.MethodSignAgreement, &api.SignAgreementRequest{IPFSHash: ipfsHash}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *GRPCClient) GetAgreement(ctx context.Context, signer model.Address) (*model.Agreement, error) {
	var a model.Agreement
	if err := c.call(ctx, api.MethodGetAgreement, &api.AddressRequest{Address: signer}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *GRPCClient) ListAgreements(ctx context.Context) ([]*model.Agreement, error) {
	var resp api.ListAgreementsResponse
	if err := c.call(ctx, api.MethodListAgreements, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Agreements, nil
}

// --- Administration ---

func (c *GRPCClient) Owner(ctx context.Context) (*api.OwnerResponse, error) {
	var resp api.OwnerResponse
	if err := c.call(ctx, api.MethodGetOwner, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *GRPCClient) TransferOwnership(ctx context.Context, newOwner model.Address) (*api.OwnerResponse, error) {
	var resp api.OwnerResponse
	if err := c.call(ctx, api.MethodTransferOwnership, &api.TransferOwnershipRequest{NewOwner: newOwner}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Token ---

func (c *GRPCClient) TokenInfo(ctx context.Context) (*model.TokenInfo, error) {
	var info model.TokenInfo
	if err := c.call(ctx, api.MethodGetTokenInfo, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *GRPCClient) Balance(ctx context.Context, addr model.Address) (*model.Balance, error) {
	var b model.Balance
	if err := c.call(ctx, api.MethodGetBalance, &api.AddressRequest{Address: addr}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *GRPCClient) Balances(ctx context.Context) ([]*model.Balance, error) {
	var resp api.ListBalancesResponse
	if err := c.call(ctx, api.MethodListBalances, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Balances, nil
}

func (c *GRPCClient) Allowance(ctx context.Context, owner, spender model.Address) (*model.Allowance, error) {
	var a model.Allowance
	if err := c.call(ctx, api.MethodGetAllowance, &api.AllowanceRequest{Owner: owner, Spender: spender}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *GRPCClient) Mint(ctx context.Context, to model.Address, amount decimal.Decimal) (*model.Balance, error) {
	var b model.Balance
	if err := c.call(ctx, api.MethodMint, &api.MintRequest{To: to, Amount: amount}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *GRPCClient) Approve(ctx context.Context, spender model.Address, amount decimal.Decimal) (*model.Allowance, error) {
	var a model.Allowance
	if err := c.call(ctx, api.MethodApprove, &api.ApproveRequest{Spender: spender, Amount: amount}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *GRPCClient) Transfer(ctx context.Context, to model.Address, amount decimal.Decimal) (*model.Balance, error) {
	var b model.Balance
	if err := c.call(ctx, api.MethodTransfer, &api.TransferRequest{To: to, Amount: amount}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *GRPCClient) Faucet(ctx context.Context, amount decimal.Decimal) (*model.Balance, error) {
	var b model.Balance
	if err := c.call(ctx, api.MethodFaucet, &api.AmountRequest{Amount: amount}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// --- Events ---

func (c *GRPCClient) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	var resp api.ListEventsResponse
	if err := c.call(ctx, api.MethodListEvents, &filter, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// WatchEvents polls ListEvents; the gRPC service has no streaming method.
func (c *GRPCClient) WatchEvents(ctx context.Context, topics []string, afterID int64, fn func(*model.Event) error) error {
	return pollEvents(ctx, c.ListEvents, c.opts.pollInterval, topics, afterID, fn)
}

func (c *GRPCClient) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	var s model.Snapshot
	if err := c.call(ctx, api.MethodGetSnapshot, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// --- Identity and health ---

func (c *GRPCClient) WhoAmI(ctx context.Context) (*api.WhoAmIResponse, error) {
	var resp api.WhoAmIResponse
	if err := c.call(ctx, api.MethodWhoAmI, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	var resp api.HealthResponse
	if err := c.call(ctx, api.MethodHealth, nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}
