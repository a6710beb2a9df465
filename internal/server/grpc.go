package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/vesting/internal/api"
)

// NewGRPCServer creates a gRPC server with standard interceptors,
// registers the VestingService, reflection, and returns the server ready to serve.
func NewGRPCServer(vs *VestingServer) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			AuthInterceptor(vs.keyring),
			LoggingInterceptor,
		),
	)

	srv.RegisterService(&serviceDesc, vs)
	reflection.Register(srv)

	return srv
}

// vestingService is the handler type checked by RegisterService.
type vestingService interface {
	Health(context.Context, *api.Empty) (*api.HealthResponse, error)
	Release(context.Context, *api.Empty) (*api.AmountResponse, error)
}

// serviceDesc describes vesting.v1.VestingService. Every method takes and
// returns a google.protobuf.Struct holding the JSON form of the api message.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: api.ServiceName,
	HandlerType: (*vestingService)(nil),
	Methods: []grpc.MethodDesc{
		unary(api.MethodHealth, (*VestingServer).Health),
		unary(api.MethodWhoAmI, (*VestingServer).WhoAmI),
		unary(api.MethodGetTokenInfo, (*VestingServer).GetTokenInfo),
		unary(api.MethodCreateSchedule, (*VestingServer).CreateSchedule),
		unary(api.MethodGetSchedule, (*VestingServer).GetSchedule),
		unary(api.MethodListSchedules, (*VestingServer).ListSchedules),
		unary(api.MethodGetReleasable, (*VestingServer).GetReleasable),
		unary(api.MethodSignAgreement, (*VestingServer).SignAgreement),
		unary(api.MethodGetAgreement, (*VestingServer).GetAgreement),
		unary(api.MethodListAgreements, (*VestingServer).ListAgreements),
		unary(api.MethodRelease, (*VestingServer).Release),
		unary(api.MethodEmergencyWithdraw, (*VestingServer).EmergencyWithdraw),
		unary(api.MethodGetOwner, (*VestingServer).GetOwner),
		unary(api.MethodTransferOwnership, (*VestingServer).TransferOwnership),
		unary(api.MethodGetBalance, (*VestingServer).GetBalance),
		unary(api.MethodListBalances, (*VestingServer).ListBalances),
		unary(api.MethodGetAllowance, (*VestingServer).GetAllowance),
		unary(api.MethodMint, (*VestingServer).Mint),
		unary(api.MethodApprove, (*VestingServer).Approve),
		unary(api.MethodTransfer, (*VestingServer).Transfer),
		unary(api.MethodFaucet, (*VestingServer).Faucet),
		unary(api.MethodListEvents, (*VestingServer).ListEvents),
		unary(api.MethodGetSnapshot, (*VestingServer).GetSnapshot),
	},
	Streams: []grpc.StreamDesc{},
}

// unary adapts a typed operation to a grpc.MethodDesc carrying Structs.
func unary[Req, Resp any](name string, op func(*VestingServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	call := func(srv any, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		req := new(Req)
		if err := api.FromStruct(in, req); err != nil {
			return nil, grpcError(inputError(err.Error()))
		}
		resp, err := op(srv.(*VestingServer), ctx, req)
		if err != nil {
			return nil, grpcError(err)
		}
		out, err := api.ToStruct(resp)
		if err != nil {
			return nil, grpcError(err)
		}
		return out, nil
	}

	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv, ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: api.FullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv, ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
