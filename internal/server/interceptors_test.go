package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/vesting/internal/api"
	"github.com/alfredjeanlab/vesting/internal/config"
	"github.com/alfredjeanlab/vesting/internal/model"
)

var (
	releaseInfo = &grpc.UnaryServerInfo{FullMethod: api.FullMethod(api.MethodRelease)}
	healthInfo  = &grpc.UnaryServerInfo{FullMethod: api.FullMethod(api.MethodHealth)}
)

func testKeyring() *config.Keyring {
	return &config.Keyring{Identities: []config.Identity{
		{Name: "alice", Token: "secret", Address: alice},
	}}
}

// callerHandler returns the caller resolved by the interceptor.
func callerHandler(ctx context.Context, _ any) (any, error) {
	return CallerFromContext(ctx), nil
}

func TestAuthInterceptor_Disabled(t *testing.T) {
	interceptor := AuthInterceptor(nil)
	resp, err := interceptor(context.Background(), nil, releaseInfo, callerHandler)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp != model.Address("") {
		t.Fatalf("expected anonymous caller, got %v", resp)
	}
}

func TestAuthInterceptor_CallerMetadata(t *testing.T) {
	interceptor := AuthInterceptor(nil)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-vesting-caller", "0x70997970C51812DC3A010C7D01B50E0D17DC79C8"))
	resp, err := interceptor(ctx, nil, releaseInfo, callerHandler)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp != alice {
		t.Fatalf("expected %s, got %v", alice, resp)
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-vesting-caller", "0xabc"))
	if _, err := interceptor(ctx, nil, releaseInfo, callerHandler); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestAuthInterceptor_HealthExempt(t *testing.T) {
	interceptor := AuthInterceptor(testKeyring())
	if _, err := interceptor(context.Background(), nil, healthInfo, callerHandler); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestAuthInterceptor_Keyring(t *testing.T) {
	interceptor := AuthInterceptor(testKeyring())

	tests := []struct {
		name string
		md   metadata.MD
		want codes.Code
	}{
		{"missing metadata", nil, codes.Unauthenticated},
		{"missing auth header", metadata.Pairs("other", "value"), codes.Unauthenticated},
		{"invalid scheme", metadata.Pairs("authorization", "Basic secret"), codes.Unauthenticated},
		{"wrong token", metadata.Pairs("authorization", "Bearer wrong"), codes.Unauthenticated},
		{"caller metadata ignored", metadata.Pairs("x-vesting-caller", alice.String()), codes.Unauthenticated},
		{"correct token", metadata.Pairs("authorization", "Bearer secret"), codes.OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tt.md)
			}
			resp, err := interceptor(ctx, nil, releaseInfo, callerHandler)
			if status.Code(err) != tt.want {
				t.Fatalf("code = %v, want %v (err %v)", status.Code(err), tt.want, err)
			}
			if tt.want == codes.OK && resp != alice {
				t.Fatalf("caller = %v, want %s", resp, alice)
			}
		})
	}
}

func TestLoggingInterceptor(t *testing.T) {
	resp, err := LoggingInterceptor(context.Background(), nil, releaseInfo, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	if err != nil || resp != "ok" {
		t.Fatalf("got (%v, %v), want (ok, nil)", resp, err)
	}

	wantErr := errors.New("boom")
	_, err = LoggingInterceptor(context.Background(), nil, releaseInfo, func(context.Context, any) (any, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	_, err := RecoveryInterceptor(context.Background(), nil, releaseInfo, func(context.Context, any) (any, error) {
		panic("kaboom")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}

// --- AuthMiddleware tests ---

func callerEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]model.Address{"caller": CallerFromContext(r.Context())})
	})
}

func TestAuthMiddleware_Keyring(t *testing.T) {
	handler := AuthMiddleware(testKeyring(), callerEcho())

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong token", "Bearer wrong", http.StatusUnauthorized},
		{"invalid scheme", "Basic secret", http.StatusUnauthorized},
		{"correct token", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/schedules", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := serve(handler, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d; body: %s", tt.want, rec.Code, rec.Body.String())
			}
			if tt.want == http.StatusOK {
				var got map[string]model.Address
				decodeBody(t, rec, &got)
				if got["caller"] != alice {
					t.Fatalf("caller = %s, want %s", got["caller"], alice)
				}
			}
		})
	}
}

func TestAuthMiddleware_HealthExempt(t *testing.T) {
	handler := AuthMiddleware(testKeyring(), callerEcho())
	rec := serve(handler, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	handler := AuthMiddleware(&config.Keyring{}, callerEcho())

	req := httptest.NewRequest(http.MethodGet, "/v1/schedules", nil)
	rec := serve(handler, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/schedules", nil)
	req.Header.Set(CallerHeader, bob.String())
	rec = serve(handler, req)
	var got map[string]model.Address
	decodeBody(t, rec, &got)
	if got["caller"] != bob {
		t.Fatalf("caller = %s, want %s", got["caller"], bob)
	}
}
