package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/vesting/internal/api"
	"github.com/alfredjeanlab/vesting/internal/config"
	"github.com/alfredjeanlab/vesting/internal/model"
)

// CallerHeader names the caller address when bearer authentication is off.
// The gRPC metadata key is its lowercase form.
const CallerHeader = "X-Vesting-Caller"

var callerMetadataKey = strings.ToLower(CallerHeader)

// LoggingInterceptor logs the method name, duration, and error (if any) for every
// unary RPC call.
func LoggingInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	duration := time.Since(start)

	if err != nil {
		slog.Error("rpc completed",
			"method", info.FullMethod,
			"caller", CallerFromContext(ctx),
			"duration", duration,
			"error", err,
		)
	} else {
		slog.Info("rpc completed",
			"method", info.FullMethod,
			"caller", CallerFromContext(ctx),
			"duration", duration,
		)
	}

	return resp, err
}

// RecoveryInterceptor catches panics in downstream handlers, logs the stack
// trace, and returns a codes.Internal error instead of crashing the server.
func RecoveryInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered in gRPC handler",
				"method", info.FullMethod,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()
	return handler(ctx, req)
}

// AuthInterceptor returns a gRPC unary interceptor that resolves the caller.
// With an enabled keyring the "authorization" metadata must carry a Bearer
// token listed in it. Otherwise the optional x-vesting-caller metadata names
// the caller. The Health RPC is always exempt.
func AuthInterceptor(keyring *config.Keyring) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if info.FullMethod == api.FullMethod(api.MethodHealth) {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)

		if !keyring.Enabled() {
			vals := md.Get(callerMetadataKey)
			if len(vals) == 0 || vals[0] == "" {
				return handler(ctx, req)
			}
			caller, err := model.ParseAddress(vals[0])
			if err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "%s: %v", callerMetadataKey, err)
			}
			return handler(withCaller(ctx, caller), req)
		}

		vals := md.Get("authorization")
		if len(vals) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}
		provided, ok := strings.CutPrefix(vals[0], "Bearer ")
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "invalid authorization scheme")
		}
		id, ok := keyring.Lookup(provided)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		return handler(withCaller(ctx, id.Address), req)
	}
}

// AuthMiddleware wraps an http.Handler and resolves the caller the same way
// AuthInterceptor does, from the Authorization header or X-Vesting-Caller.
// GET /v1/health is always exempt.
func AuthMiddleware(keyring *config.Keyring, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}

		if !keyring.Enabled() {
			v := r.Header.Get(CallerHeader)
			if v == "" {
				next.ServeHTTP(w, r)
				return
			}
			caller, err := model.ParseAddress(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, CallerHeader+": "+err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller)))
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		provided, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid authorization scheme")
			return
		}
		id, ok := keyring.Lookup(provided)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), id.Address)))
	})
}
