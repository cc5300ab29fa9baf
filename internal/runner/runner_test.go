package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.home.luguber.info/inful/litebuilder/internal/config"
)

func TestVersionSatisfiesPin(t *testing.T) {
	tests := []struct {
		reported string
		pin      string
		want     bool
	}{
		{"3.11.4", "3.11", true},
		{"3.11", "3.11", true},
		{"3.11.4", "3.11.4", true},
		{"3.12.0", "3.11", false},
		{"3.1.4", "3.11", false},
		{"3.110.0", "3.11", false},
		{"anything", "", true},
	}
	for _, tt := range tests {
		if got := VersionSatisfiesPin(tt.reported, tt.pin); got != tt.want {
			t.Errorf("VersionSatisfiesPin(%q, %q) = %v, want %v", tt.reported, tt.pin, got, tt.want)
		}
	}
}

func TestPinSpec(t *testing.T) {
	tests := []struct {
		tool config.ToolConfig
		want string
	}{
		{config.ToolConfig{Name: "notebook-packager", Version: "0.4.5"}, "notebook-packager==0.4.5"},
		{config.ToolConfig{Name: "runtime-build", Version: "0.29.3", Extra: []string{"wasm"}}, "runtime-build[wasm]==0.29.3"},
		{config.ToolConfig{Name: "x", Version: "1.0", Extra: []string{"a", "b"}}, "x[a,b]==1.0"},
	}
	for _, tt := range tests {
		if got := PinSpec(tt.tool); got != tt.want {
			t.Errorf("PinSpec(%+v) = %q, want %q", tt.tool, got, tt.want)
		}
	}
}

func TestOutput(t *testing.T) {
	r := New(t.TempDir())
	out, err := r.Output(context.Background(), "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("Output() failed: %v", err)
	}
	if out != "hello" {
		t.Errorf("expected trimmed stdout %q, got %q", "hello", out)
	}
}

func TestOutput_CapturesStderrOnFailure(t *testing.T) {
	r := New(t.TempDir())
	_, err := r.Output(context.Background(), "sh", "-c", "echo broken >&2; exit 3")
	if err == nil {
		t.Fatal("expected error")
	}
	var te *ToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected *ToolError, got %T", err)
	}
	if te.Output != "broken" {
		t.Errorf("expected captured stderr %q, got %q", "broken", te.Output)
	}
}

func TestRun_KeepsFailureTail(t *testing.T) {
	r := New(t.TempDir())
	err := r.Run(context.Background(), "sh", "-c", "echo first; echo last line; exit 1")
	if err == nil {
		t.Fatal("expected error")
	}
	var te *ToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected *ToolError, got %T", err)
	}
	if te.Output != "first\nlast line" {
		t.Errorf("expected full output tail in error, got %q", te.Output)
	}
}

func TestRun_TailIsBounded(t *testing.T) {
	r := New(t.TempDir())
	err := r.Run(context.Background(), "sh", "-c", "i=1; while [ $i -le 30 ]; do echo line$i; i=$((i+1)); done; exit 1")
	if err == nil {
		t.Fatal("expected error")
	}
	var te *ToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected *ToolError, got %T", err)
	}
	lines := strings.Split(te.Output, "\n")
	if len(lines) != outputTailLines {
		t.Fatalf("expected %d tail lines, got %d", outputTailLines, len(lines))
	}
	if lines[0] != "line11" || lines[len(lines)-1] != "line30" {
		t.Errorf("expected tail line11..line30, got %q..%q", lines[0], lines[len(lines)-1])
	}
}

func TestRun_MissingTool(t *testing.T) {
	r := New(t.TempDir())
	err := r.Run(context.Background(), "definitely-not-a-real-tool-xyz")
	if err == nil {
		t.Fatal("expected error for missing tool")
	}
	var te *ToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected *ToolError, got %T", err)
	}
}

func writeStubInterpreter(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "interp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInterpreterVersion(t *testing.T) {
	stub := writeStubInterpreter(t, `echo "Python 3.11.4"`)
	r := New(t.TempDir())
	got, err := r.InterpreterVersion(context.Background(), config.InterpConfig{Binary: stub})
	if err != nil {
		t.Fatalf("InterpreterVersion() failed: %v", err)
	}
	if got != "3.11.4" {
		t.Errorf("expected version %q, got %q", "3.11.4", got)
	}
}

func TestInterpreterVersion_SilentInterpreter(t *testing.T) {
	stub := writeStubInterpreter(t, "exit 0")
	r := New(t.TempDir())
	_, err := r.InterpreterVersion(context.Background(), config.InterpConfig{Binary: stub})
	if err == nil {
		t.Fatal("expected error for silent interpreter")
	}
	var te *ToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected *ToolError, got %T", err)
	}
}

func TestInterpreterVersion_StderrOnlyBanner(t *testing.T) {
	stub := writeStubInterpreter(t, `echo "Python 2.7.18" >&2; exit 0`)
	r := New(t.TempDir())
	_, err := r.InterpreterVersion(context.Background(), config.InterpConfig{Binary: stub})
	if err == nil {
		t.Fatal("expected error when version goes to stderr only")
	}
}

func TestRunner_EnvAndDir(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, "LITEBUILDER_TEST_VAR=42")
	out, err := r.Output(context.Background(), "sh", "-c", "echo $LITEBUILDER_TEST_VAR:$(pwd)")
	if err != nil {
		t.Fatalf("Output() failed: %v", err)
	}
	want := "42:" + dir
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}
