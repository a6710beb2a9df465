package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alfredjeanlab/vesting/internal/config"
	"github.com/alfredjeanlab/vesting/internal/model"
	"github.com/alfredjeanlab/vesting/internal/vesting"
)

// VestingServer exposes a vesting.Service over HTTP, gRPC and SSE.
type VestingServer struct {
	svc     *vesting.Service
	keyring *config.Keyring
	sseHub  *sseHub
}

// NewVestingServer returns a server for svc. A nil or empty keyring disables
// bearer authentication; callers then identify themselves with the
// X-Vesting-Caller header (HTTP) or x-vesting-caller metadata (gRPC).
func NewVestingServer(svc *vesting.Service, keyring *config.Keyring) *VestingServer {
	s := &VestingServer{
		svc:     svc,
		keyring: keyring,
		sseHub:  newSSEHub(),
	}
	svc.OnCommit(s.broadcastEvent)
	return s
}

// broadcastEvent fans a committed event out to SSE clients.
func (s *VestingServer) broadcastEvent(e *model.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Warn("failed to marshal event for SSE broadcast", "topic", e.Topic, "id", e.ID, "error", err)
		return
	}
	s.sseHub.broadcast(e.ID, e.Topic, data)
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// callerKey is the context key for the authenticated caller address.
type callerKey struct{}

func withCaller(ctx context.Context, caller model.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the authenticated caller, or "" if none.
func CallerFromContext(ctx context.Context) model.Address {
	a, _ := ctx.Value(callerKey{}).(model.Address)
	return a
}

// requireCaller returns the caller or an error when the request is anonymous.
func requireCaller(ctx context.Context) (model.Address, error) {
	caller := CallerFromContext(ctx)
	if caller.IsZero() {
		return "", errAnonymous
	}
	return caller, nil
}
