package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/vesting/internal/config"
	"github.com/alfredjeanlab/vesting/internal/model"
	"github.com/alfredjeanlab/vesting/internal/store/memory"
	"github.com/alfredjeanlab/vesting/internal/vesting"
)

var (
	admin   = model.MustParseAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	custody = model.MustParseAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	alice   = model.MustParseAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob     = model.MustParseAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

const day = 24 * time.Hour

// testClock is a manually advanced time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	vs      *VestingServer
	svc     *vesting.Service
	clock   *testClock
	handler http.Handler
	url     string // set when served over TCP
}

// newTestServer builds a server over an in-memory ledger. A nil keyring
// leaves bearer auth off.
func newTestServer(t *testing.T, keyring *config.Keyring) *testEnv {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := vesting.New(vesting.Config{
		Admin:       admin,
		Custody:     custody,
		FaucetLimit: units(100),
	}, memory.New(), nil, vesting.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("vesting.New: %v", err)
	}
	vs := NewVestingServer(svc, keyring)
	return &testEnv{vs: vs, svc: svc, clock: clock, handler: vs.NewHTTPHandler()}
}

// units converts whole tokens to base units.
func units(n int64) decimal.Decimal {
	return decimal.New(n, model.TokenDecimals)
}

// do performs a request against the handler as caller ("" = anonymous).
func (e *testEnv) do(t *testing.T, method, path string, caller model.Address, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != "" {
		req.Header.Set(CallerHeader, caller.String())
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// grant funds the admin and escrows a 30-day schedule of total tokens for
// beneficiary starting now.
func (e *testEnv) grant(t *testing.T, beneficiary model.Address, total int64) {
	t.Helper()
	requireStatus(t, e.do(t, "POST", "/v1/token/mint", admin, map[string]any{"to": admin, "amount": units(total)}), http.StatusOK)
	requireStatus(t, e.do(t, "POST", "/v1/token/approve", admin, map[string]any{"spender": custody, "amount": units(total)}), http.StatusOK)
	requireStatus(t, e.do(t, "POST", "/v1/schedules", admin, map[string]any{
		"beneficiary":      beneficiary,
		"total_amount":     units(total),
		"start_time":       e.clock.Now().Unix(),
		"vesting_duration": int64(30 * day / time.Second),
	}), http.StatusCreated)
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, code, rec.Body.String())
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v; body: %s", err, rec.Body.String())
	}
}

func newRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
