package client

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/vesting/internal/api"
	"github.com/alfredjeanlab/vesting/internal/config"
	"github.com/alfredjeanlab/vesting/internal/events"
	"github.com/alfredjeanlab/vesting/internal/model"
	"github.com/alfredjeanlab/vesting/internal/server"
	"github.com/alfredjeanlab/vesting/internal/store/memory"
	"github.com/alfredjeanlab/vesting/internal/vesting"
)

var (
	admin   = model.MustParseAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	custody = model.MustParseAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// liveServer runs a real vesting server on loopback HTTP and gRPC listeners.
type liveServer struct {
	httpURL  string
	grpcAddr string
	clock    *fakeClock
}

var testTokens = map[model.Address]string{
	admin: "vtk_admin",
	alice: "vtk_alice",
}

func startLiveServer(t *testing.T) *liveServer {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := vesting.New(vesting.Config{Admin: admin, Custody: custody}, memory.New(), nil, vesting.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("vesting.New: %v", err)
	}
	keyring := &config.Keyring{}
	for addr, tok := range testTokens {
		keyring.Add(config.Identity{Name: tok, Token: tok, Address: addr})
	}
	vs := server.NewVestingServer(svc, keyring)

	ts := httptest.NewServer(vs.NewHTTPHandler())
	t.Cleanup(ts.Close)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	gs := server.NewGRPCServer(vs)
	go gs.Serve(lis) //nolint:errcheck
	t.Cleanup(gs.Stop)

	return &liveServer{httpURL: ts.URL, grpcAddr: lis.Addr().String(), clock: clock}
}

type transport struct {
	name    string
	connect func(t *testing.T, ls *liveServer, as model.Address) VestingClient
}

var transports = []transport{
	{"http", func(t *testing.T, ls *liveServer, as model.Address) VestingClient {
		return NewHTTPClient(ls.httpURL, WithToken(testTokens[as]))
	}},
	{"grpc", func(t *testing.T, ls *liveServer, as model.Address) VestingClient {
		c, err := NewGRPCClient(ls.grpcAddr, WithToken(testTokens[as]), WithPollInterval(10*time.Millisecond))
		if err != nil {
			t.Fatalf("NewGRPCClient: %v", err)
		}
		t.Cleanup(func() { c.Close() })
		return c
	}},
}

func whole(n int64) decimal.Decimal {
	return decimal.New(n, model.TokenDecimals)
}

func TestClients_VestingFlow(t *testing.T) {
	for _, tr := range transports {
		t.Run(tr.name, func(t *testing.T) {
			ls := startLiveServer(t)
			ctx := context.Background()
			adminClient := tr.connect(t, ls, admin)
			aliceClient := tr.connect(t, ls, alice)

			who, err := adminClient.WhoAmI(ctx)
			if err != nil {
				t.Fatalf("WhoAmI: %v", err)
			}
			if who.Address != admin || !who.IsOwner {
				t.Fatalf("whoami = %+v", who)
			}

			if _, err := adminClient.Mint(ctx, admin, whole(1000)); err != nil {
				t.Fatalf("Mint: %v", err)
			}
			if _, err := adminClient.Approve(ctx, custody, whole(1000)); err != nil {
				t.Fatalf("Approve: %v", err)
			}
			if _, err := adminClient.CreateSchedule(ctx, &api.CreateScheduleRequest{
				Beneficiary:     alice,
				TotalAmount:     whole(1000),
				StartTime:       ls.clock.Now().Unix(),
				VestingDuration: 30 * 24 * 3600,
			}); err != nil {
				t.Fatalf("CreateSchedule: %v", err)
			}

			if _, err := aliceClient.SignAgreement(ctx, "QmAgreement"); err != nil {
				t.Fatalf("SignAgreement: %v", err)
			}
			ls.clock.Advance(15 * 24 * time.Hour)

			releasable, err := aliceClient.Releasable(ctx, alice)
			if err != nil {
				t.Fatalf("Releasable: %v", err)
			}
			if !releasable.Equal(whole(500)) {
				t.Fatalf("releasable = %s, want %s", releasable, whole(500))
			}
			released, err := aliceClient.Release(ctx)
			if err != nil {
				t.Fatalf("Release: %v", err)
			}
			if !released.Equal(whole(500)) {
				t.Fatalf("released = %s, want %s", released, whole(500))
			}

			bal, err := aliceClient.Balance(ctx, alice)
			if err != nil {
				t.Fatalf("Balance: %v", err)
			}
			if !bal.Amount.Equal(whole(500)) {
				t.Errorf("balance = %s, want %s", bal.Amount, whole(500))
			}

			schedules, err := aliceClient.ListSchedules(ctx, model.ScheduleFilter{})
			if err != nil || len(schedules) != 1 {
				t.Fatalf("ListSchedules = %v, %v", schedules, err)
			}

			snap, err := adminClient.Snapshot(ctx)
			if err != nil {
				t.Fatalf("Snapshot: %v", err)
			}
			if snap.Owner != admin || len(snap.Agreements) != 1 {
				t.Errorf("snapshot owner %s, %d agreements", snap.Owner, len(snap.Agreements))
			}

			// Watch replays the release from the log.
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			var got *model.Event
			err = aliceClient.WatchEvents(wctx, []string{"vesting.tokens.*"}, 0, func(e *model.Event) error {
				got = e
				return errStop
			})
			if err != errStop || got == nil || got.Topic != events.TopicTokensReleased {
				t.Fatalf("WatchEvents = %v, event %+v", err, got)
			}
		})
	}
}

func TestClients_ErrorsSurface(t *testing.T) {
	ls := startLiveServer(t)
	ctx := context.Background()

	h := NewHTTPClient(ls.httpURL, WithToken(testTokens[alice]))
	if _, err := h.Mint(ctx, alice, whole(1)); !IsStatus(err, http.StatusForbidden) {
		t.Errorf("HTTP mint as non-admin: %v", err)
	}
	if _, err := NewHTTPClient(ls.httpURL).Release(ctx); !IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("HTTP anonymous release: %v", err)
	}

	g, err := NewGRPCClient(ls.grpcAddr, WithToken(testTokens[alice]))
	if err != nil {
		t.Fatalf("NewGRPCClient: %v", err)
	}
	defer g.Close()
	if _, err := g.Release(ctx); status.Code(err) != codes.NotFound {
		t.Errorf("gRPC release without schedule: %v", err)
	}
	if _, err := g.Mint(ctx, alice, whole(1)); status.Code(err) != codes.PermissionDenied {
		t.Errorf("gRPC mint as non-admin: %v", err)
	}
}
