package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/vesting/internal/config"
	"github.com/alfredjeanlab/vesting/internal/events"
	"github.com/alfredjeanlab/vesting/internal/model"
	"github.com/alfredjeanlab/vesting/internal/store/memory"
)

var (
	testAdmin   = model.MustParseAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testCustody = model.MustParseAddress(config.DefaultCustody)
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenStack_Memory(t *testing.T) {
	cfg := &config.Config{Admin: testAdmin, Custody: testCustody, FaucetLimit: decimal.NewFromInt(100)}

	st, err := openStack(cfg, quietLogger())
	if err != nil {
		t.Fatalf("openStack: %v", err)
	}
	defer st.close(quietLogger())

	if _, ok := st.store.(*memory.MemoryStore); !ok {
		t.Fatalf("store = %T, want *memory.MemoryStore", st.store)
	}
	if _, ok := st.publisher.(*events.NoopPublisher); !ok {
		t.Fatalf("publisher = %T, want *events.NoopPublisher", st.publisher)
	}
	if st.keyring.Enabled() {
		t.Fatal("keyring enabled without a file")
	}
	if st.svc.Owner() != testAdmin {
		t.Fatalf("owner = %s, want %s", st.svc.Owner(), testAdmin)
	}

	// The ledger is usable end to end.
	ctx := context.Background()
	if err := st.svc.Mint(ctx, testAdmin, testCustody, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	bal, err := st.svc.BalanceOf(ctx, testCustody)
	if err != nil || !bal.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("BalanceOf = %s, %v", bal, err)
	}
}

func TestOpenStack_Keyring(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring.toml")
	k := &config.Keyring{}
	k.Add(config.Identity{Name: "admin", Token: "vtk_admin", Address: testAdmin})
	if err := k.Save(path); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{Admin: testAdmin, Custody: testCustody, KeyringPath: path}
	st, err := openStack(cfg, quietLogger())
	if err != nil {
		t.Fatalf("openStack: %v", err)
	}
	defer st.close(quietLogger())

	id, ok := st.keyring.Lookup("vtk_admin")
	if !ok || id.Address != testAdmin {
		t.Fatalf("Lookup = %+v, %v", id, ok)
	}
}

func TestOpenStack_Errors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "keyring.toml")
	if err := os.WriteFile(bad, []byte("[[identity]]\nname = \"x\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"bad keyring", config.Config{Admin: testAdmin, Custody: testCustody, KeyringPath: bad}},
		{"no custody", config.Config{Admin: testAdmin}},
		{"unreachable nats", config.Config{Admin: testAdmin, Custody: testCustody, NATSURL: "nats://127.0.0.1:1"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			if _, err := openStack(&cfg, quietLogger()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestStartSync_Disabled(t *testing.T) {
	cfg := &config.Config{SyncInterval: 0, SyncGitRepo: "/tmp/repo"}
	if s := startSync(cfg, nil, quietLogger()); s != nil {
		t.Fatal("scheduler started with zero interval")
	}
	cfg = &config.Config{SyncInterval: time.Minute}
	if s := startSync(cfg, nil, quietLogger()); s != nil {
		t.Fatal("scheduler started without destinations")
	}
}

func TestStartSync_Git(t *testing.T) {
	cfg := &config.Config{Admin: testAdmin, Custody: testCustody}
	st, err := openStack(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer st.close(quietLogger())

	// A missing repo only makes each sync fail and log; the scheduler runs.
	cfg.SyncInterval = time.Hour
	cfg.SyncGitRepo = filepath.Join(t.TempDir(), "missing")
	cfg.SyncGitFile = "vesting.jsonl"
	cfg.SyncGitBranch = "main"
	s := startSync(cfg, st.svc, quietLogger())
	if s == nil {
		t.Fatal("expected a scheduler")
	}
	s.Stop()
}
