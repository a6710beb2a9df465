package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alfredjeanlab/vesting/internal/model"
)

func TestSaveLoadProfiles(t *testing.T) {
	t.Setenv("VESTING_PROFILES", filepath.Join(t.TempDir(), "state", "profiles.toml"))

	alice := model.MustParseAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	in := ProfilesConfig{
		Active: "prod",
		Profiles: map[string]Profile{
			"prod":  {HTTPURL: "https://vest.example.com", Token: "vtk_abc", NATSURL: "nats://prod:4222"},
			"local": {GRPCAddr: "localhost:9090", Caller: alice},
		},
	}
	if err := saveProfiles(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := loadProfiles()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Active != "prod" {
		t.Errorf("Active = %q, want prod", got.Active)
	}
	if p := got.Profiles["prod"]; p.HTTPURL != "https://vest.example.com" || p.Token != "vtk_abc" || p.NATSURL != "nats://prod:4222" {
		t.Errorf("prod profile = %+v", p)
	}
	if p := got.Profiles["local"]; p.Caller != alice {
		t.Errorf("local caller = %q, want %q", p.Caller, alice)
	}

	path, _ := profilesPath()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("profiles file mode = %o, want 600", perm)
	}
}

func TestLoadProfiles_NoFile(t *testing.T) {
	t.Setenv("VESTING_PROFILES", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := loadProfiles()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Active != "" || cfg.Profiles == nil || len(cfg.Profiles) != 0 {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestLoadProfiles_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.toml")
	if err := os.WriteFile(path, []byte("active = [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VESTING_PROFILES", path)
	if _, err := loadProfiles(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestProfileCommands(t *testing.T) {
	t.Setenv("VESTING_PROFILES", filepath.Join(t.TempDir(), "profiles.toml"))

	out := runCLI(t, "profile", "add", "dev", "--http", "http://localhost:8080", "--caller", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	if !strings.Contains(out, `profile "dev" saved`) {
		t.Fatalf("add output = %q", out)
	}
	runCLI(t, "profile", "add", "prod", "--grpc", "vest.example.com:443", "--with-token", "vtk_0123456789")

	cfg, err := loadProfiles()
	if err != nil {
		t.Fatal(err)
	}
	// The first profile becomes active.
	if cfg.Active != "dev" {
		t.Fatalf("Active = %q, want dev", cfg.Active)
	}

	runCLI(t, "profile", "use", "prod")
	out = runCLI(t, "profile", "list")
	if !strings.Contains(out, "* prod") || !strings.Contains(out, "vtk_0123...") {
		t.Fatalf("list output = %q", out)
	}
	if strings.Contains(out, "vtk_0123456789") {
		t.Fatalf("list leaked full token: %q", out)
	}

	runCLI(t, "profile", "remove", "prod")
	cfg, _ = loadProfiles()
	if cfg.Active != "" || len(cfg.Profiles) != 1 {
		t.Fatalf("after remove: %+v", cfg)
	}

	if _, err := execCLI("profile", "use", "prod"); err == nil {
		t.Fatal("expected error using a removed profile")
	}
}

// execCLI runs the root command with args and returns what it wrote to
// the command's output.
func execCLI(args ...string) (string, error) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return buf.String(), err
}

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCLI(args...)
	if err != nil {
		t.Fatalf("vest %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}
