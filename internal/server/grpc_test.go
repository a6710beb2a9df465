package server

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/vesting/internal/api"
	"github.com/alfredjeanlab/vesting/internal/model"
)

// startGRPC serves env over a loopback listener and returns a client connection.
func startGRPC(t *testing.T, env *testEnv) *grpc.ClientConn {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := NewGRPCServer(env.vs)
	go srv.Serve(lis) //nolint:errcheck
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// invoke calls method as caller and decodes the response into out.
func invoke(t *testing.T, conn *grpc.ClientConn, caller model.Address, method string, req, out any) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if caller != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-vesting-caller", caller.String())
	}
	if req == nil {
		req = api.Empty{}
	}
	in, err := api.ToStruct(req)
	if err != nil {
		t.Fatalf("ToStruct: %v", err)
	}
	resp := new(structpb.Struct)
	if err := conn.Invoke(ctx, api.FullMethod(method), in, resp); err != nil {
		return err
	}
	if out != nil {
		if err := api.FromStruct(resp, out); err != nil {
			t.Fatalf("FromStruct: %v", err)
		}
	}
	return nil
}

func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if status.Code(err) != code {
		t.Fatalf("expected code %v, got %v (err: %v)", code, status.Code(err), err)
	}
}

func TestGRPCHealth(t *testing.T) {
	conn := startGRPC(t, newTestServer(t, testKeyring()))
	var resp api.HealthResponse
	if err := invoke(t, conn, "", api.MethodHealth, nil, &resp); err != nil {
		t.Fatalf("Health: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestGRPCVestingFlow(t *testing.T) {
	env := newTestServer(t, nil)
	conn := startGRPC(t, env)

	if err := invoke(t, conn, admin, api.MethodMint, api.MintRequest{To: admin, Amount: units(1000)}, nil); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := invoke(t, conn, admin, api.MethodApprove, api.ApproveRequest{Spender: custody, Amount: units(1000)}, nil); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	var sched model.Schedule
	err := invoke(t, conn, admin, api.MethodCreateSchedule, api.CreateScheduleRequest{
		Beneficiary:     alice,
		TotalAmount:     units(1000),
		StartTime:       env.clock.Now().Unix(),
		VestingDuration: int64(30 * day / time.Second),
	}, &sched)
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	if sched.Beneficiary != alice || !sched.TotalAmount.Equal(units(1000)) || !sched.IsActive {
		t.Errorf("schedule = %+v", sched)
	}

	requireCode(t, invoke(t, conn, alice, api.MethodRelease, nil, nil), codes.FailedPrecondition)

	if err := invoke(t, conn, alice, api.MethodSignAgreement, api.SignAgreementRequest{IPFSHash: "QmAgreement"}, nil); err != nil {
		t.Fatalf("SignAgreement: %v", err)
	}

	env.clock.Advance(15 * day)

	var released api.AmountResponse
	if err := invoke(t, conn, alice, api.MethodRelease, nil, &released); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !released.Amount.Equal(units(500)) {
		t.Errorf("released = %s, want %s", released.Amount, units(500))
	}

	var bal model.Balance
	if err := invoke(t, conn, "", api.MethodGetBalance, api.AddressRequest{Address: alice}, &bal); err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !bal.Amount.Equal(units(500)) {
		t.Errorf("balance = %s, want %s", bal.Amount, units(500))
	}

	var evts api.ListEventsResponse
	if err := invoke(t, conn, "", api.MethodListEvents, model.EventFilter{Subject: alice}, &evts); err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(evts.Events) == 0 {
		t.Fatal("expected events about alice")
	}
}

func TestGRPCErrorCodes(t *testing.T) {
	env := newTestServer(t, nil)
	conn := startGRPC(t, env)

	requireCode(t, invoke(t, conn, "", api.MethodRelease, nil, nil), codes.Unauthenticated)
	requireCode(t, invoke(t, conn, bob, api.MethodRelease, nil, nil), codes.NotFound)
	requireCode(t, invoke(t, conn, bob, api.MethodMint, api.MintRequest{To: bob, Amount: units(1)}, nil), codes.PermissionDenied)
	requireCode(t, invoke(t, conn, "", api.MethodGetSchedule, map[string]any{"address": "0x1234"}, nil), codes.InvalidArgument)
	requireCode(t, invoke(t, conn, "", api.MethodGetSchedule, api.AddressRequest{}, nil), codes.InvalidArgument)
	requireCode(t, invoke(t, conn, admin, api.MethodEmergencyWithdraw, api.AmountRequest{Amount: units(1)}, nil), codes.FailedPrecondition)
	requireCode(t, invoke(t, conn, admin, api.MethodTransferOwnership, api.TransferOwnershipRequest{NewOwner: model.ZeroAddress}, nil), codes.InvalidArgument)
}

func TestGRPCKeyringAuth(t *testing.T) {
	conn := startGRPC(t, newTestServer(t, testKeyring()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	in, _ := api.ToStruct(api.Empty{})
	out := new(structpb.Struct)

	err := conn.Invoke(ctx, api.FullMethod(api.MethodWhoAmI), in, out)
	requireCode(t, err, codes.Unauthenticated)

	authed := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer secret")
	if err := conn.Invoke(authed, api.FullMethod(api.MethodWhoAmI), in, out); err != nil {
		t.Fatalf("WhoAmI: %v", err)
	}
	var who api.WhoAmIResponse
	if err := api.FromStruct(out, &who); err != nil {
		t.Fatalf("FromStruct: %v", err)
	}
	if who.Address != alice || who.IsOwner {
		t.Errorf("whoami = %+v", who)
	}
}
