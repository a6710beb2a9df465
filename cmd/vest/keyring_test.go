package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/alfredjeanlab/vesting/internal/config"
	"github.com/alfredjeanlab/vesting/internal/idgen"
)

func TestKeyringAdd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "keyring.toml")
	t.Setenv("VESTING_KEYRING", path)

	out := runCLI(t, "keyring", "add", "admin", testAdmin.String())
	tok := strings.TrimSpace(out)
	if !strings.HasPrefix(tok, idgen.TokenPrefix) {
		t.Fatalf("token = %q, want %s prefix", tok, idgen.TokenPrefix)
	}

	k, err := config.LoadKeyring(path)
	if err != nil {
		t.Fatalf("LoadKeyring: %v", err)
	}
	id, ok := k.Lookup(tok)
	if !ok || id.Name != "admin" || id.Address != testAdmin {
		t.Fatalf("Lookup = %+v, %v", id, ok)
	}

	// Re-adding a name rotates its token.
	rotated := strings.TrimSpace(runCLI(t, "keyring", "add", "admin", testAdmin.String()))
	if rotated == tok {
		t.Fatal("token not rotated")
	}
	k, _ = config.LoadKeyring(path)
	if len(k.Identities) != 1 {
		t.Fatalf("identities = %d, want 1", len(k.Identities))
	}
	if _, ok := k.Lookup(tok); ok {
		t.Fatal("old token still valid")
	}

	list := runCLI(t, "keyring", "list")
	if !strings.Contains(list, "admin") || strings.Contains(list, rotated) {
		t.Fatalf("list output = %q", list)
	}
}

func TestKeyringAdd_Errors(t *testing.T) {
	t.Setenv("VESTING_KEYRING", filepath.Join(t.TempDir(), "keyring.toml"))
	if _, err := execCLI("keyring", "add", "x", "not-an-address"); err == nil {
		t.Fatal("expected error for bad address")
	}
	if _, err := execCLI("keyring", "add", "x", "0x0000000000000000000000000000000000000000"); err == nil {
		t.Fatal("expected error for zero address")
	}
}
