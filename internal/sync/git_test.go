package sync

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// newGitClone creates a bare remote plus a clone with one commit on main.
func newGitClone(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	remoteDir := t.TempDir()
	run(t, remoteDir, "git", "init", "--bare")

	workDir := t.TempDir()
	run(t, workDir, "git", "clone", remoteDir, "repo")
	repoDir := filepath.Join(workDir, "repo")

	run(t, repoDir, "git", "config", "user.email", "ledger@example.com")
	run(t, repoDir, "git", "config", "user.name", "Ledger Sync")
	run(t, repoDir, "git", "symbolic-ref", "HEAD", "refs/heads/main")

	if err := os.WriteFile(filepath.Join(repoDir, ".gitkeep"), nil, 0o644); err != nil {
		t.Fatalf("write .gitkeep: %v", err)
	}
	run(t, repoDir, "git", "add", ".")
	run(t, repoDir, "git", "commit", "-m", "init")
	run(t, repoDir, "git", "push", "origin", "main")
	return repoDir
}

func TestGitDestination(t *testing.T) {
	repoDir := newGitClone(t)
	dest := NewGitDestination(repoDir, "vesting.jsonl", "main")

	var snap bytes.Buffer
	if err := ExportJSONL(context.Background(), newFakeSource(), &snap); err != nil {
		t.Fatal(err)
	}
	data1 := snap.Bytes()
	if err := dest.Write(context.Background(), data1); err != nil {
		t.Fatalf("first write: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(repoDir, "vesting.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !bytes.Equal(got, data1) {
		t.Fatalf("file content mismatch: got %q", got)
	}
	if n := commitCount(t, repoDir); n != 2 {
		t.Fatalf("commits after first write = %d, want 2", n)
	}
	msg := gitOutput(t, repoDir, "log", "-1", "--format=%B")
	if !strings.HasPrefix(msg, "sync: update vesting snapshot") || !strings.Contains(msg, "schedules: 2") {
		t.Fatalf("commit message = %q", msg)
	}

	// Same data is a no-op.
	if err := dest.Write(context.Background(), data1); err != nil {
		t.Fatalf("second write (no-op): %v", err)
	}
	if n := commitCount(t, repoDir); n != 2 {
		t.Fatalf("commits after no-op write = %d, want 2", n)
	}

	data2 := []byte(`{"version":"1","type":"header","schedule_count":0}` + "\n")
	if err := dest.Write(context.Background(), data2); err != nil {
		t.Fatalf("third write: %v", err)
	}
	got, err = os.ReadFile(filepath.Join(repoDir, "vesting.jsonl"))
	if err != nil {
		t.Fatalf("read file after update: %v", err)
	}
	if !bytes.Equal(got, data2) {
		t.Fatalf("file content mismatch after update: got %q", got)
	}
	if n := commitCount(t, repoDir); n != 3 {
		t.Fatalf("commits after update = %d, want 3", n)
	}

	// The push reached the remote.
	remote := gitOutput(t, repoDir, "rev-parse", "origin/main")
	local := gitOutput(t, repoDir, "rev-parse", "HEAD")
	if remote != local {
		t.Fatalf("origin/main = %s, HEAD = %s", remote, local)
	}
}

func TestGitDestination_SubDirectory(t *testing.T) {
	repoDir := newGitClone(t)
	dest := NewGitDestination(repoDir, "data/vesting.jsonl", "main")

	data := []byte(`{"type":"header"}` + "\n")
	if err := dest.Write(context.Background(), data); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(repoDir, "data", "vesting.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestGitDestination_MissingBranch(t *testing.T) {
	repoDir := newGitClone(t)
	dest := NewGitDestination(repoDir, "vesting.jsonl", "no-such-branch")

	err := dest.Write(context.Background(), []byte("{}\n"))
	if err == nil || !strings.Contains(err.Error(), "git checkout") {
		t.Fatalf("expected checkout error, got %v", err)
	}
}

func TestCommitMessage(t *testing.T) {
	if got := commitMessage([]byte("garbage")); got != "sync: update vesting snapshot" {
		t.Fatalf("fallback message = %q", got)
	}
	got := commitMessage([]byte(`{"type":"header","schedule_count":3,"event_count":9}` + "\n"))
	if !strings.Contains(got, "schedules: 3") || !strings.Contains(got, "events: 9") {
		t.Fatalf("message = %q", got)
	}
}

func commitCount(t *testing.T, dir string) int {
	t.Helper()
	n, err := strconv.Atoi(gitOutput(t, dir, "rev-list", "--count", "HEAD"))
	if err != nil {
		t.Fatalf("rev-list count: %v", err)
	}
	return n
}

func gitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("git %v failed: %v", args, err)
	}
	return strings.TrimSpace(string(out))
}

func run(t *testing.T, dir string, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("%s %v failed: %v", name, args, err)
	}
}
