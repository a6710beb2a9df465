package ui

import (
	"os"
	"testing"
)

func TestShouldUseColor_Env(t *testing.T) {
	tests := []struct {
		name    string
		noColor string
		force   string
		cli     string
		want    bool
	}{
		{"no_color wins", "1", "1", "", false},
		{"force", "", "1", "", true},
		{"clicolor off", "", "", "0", false},
		// A temp file is never a terminal.
		{"default not a tty", "", "", "", false},
	}
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tc.noColor)
			t.Setenv("CLICOLOR_FORCE", tc.force)
			t.Setenv("CLICOLOR", tc.cli)
			if got := ShouldUseColor(f); got != tc.want {
				t.Fatalf("ShouldUseColor = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWidth_NotTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if got := Width(f, 100); got != 100 {
		t.Fatalf("Width = %d, want fallback 100", got)
	}
	if got := Width(nil, 80); got != 80 {
		t.Fatalf("Width(nil) = %d, want 80", got)
	}
}

func TestRender(t *testing.T) {
	SetColor(false)
	if got := RenderOK("signed"); got != "signed" {
		t.Fatalf("plain RenderOK = %q", got)
	}
	SetColor(true)
	defer SetColor(false)
	if got := RenderError("x"); got != "\x1b[38;5;203mx\x1b[0m" {
		t.Fatalf("RenderError = %q", got)
	}
	if got := RenderAccent(""); got != "" {
		t.Fatalf("empty string painted: %q", got)
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		frac  float64
		width int
		want  string
	}{
		{0, 4, "[----]"},
		{0.5, 4, "[##--]"},
		{1, 4, "[####]"},
		{1.7, 4, "[####]"},
		{-1, 2, "[--]"},
		{0.5, 0, ""},
	}
	for _, tc := range tests {
		if got := Progress(tc.frac, tc.width); got != tc.want {
			t.Errorf("Progress(%v, %d) = %q, want %q", tc.frac, tc.width, got, tc.want)
		}
	}
}
