// Package runner invokes the external build tools the pipeline depends on
// (interpreter, packaging tools, toolchain build). The tools themselves are
// opaque; runner only owns invocation, environment pinning, and failure
// reporting.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"git.home.luguber.info/inful/litebuilder/internal/config"
)

// outputTailLines bounds how much failing-tool output is retained.
const outputTailLines = 20

// Runner executes external tools with a fixed working directory and
// additional environment entries layered over the process environment.
type Runner struct {
	dir string
	env []string
}

// New creates a runner rooted at dir. Extra env entries are KEY=VALUE pairs.
func New(dir string, env ...string) *Runner {
	return &Runner{dir: dir, env: env}
}

// ToolError wraps a failed tool invocation with its name and captured output tail.
type ToolError struct {
	Tool   string
	Err    error
	Output string
}

func (e *ToolError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("tool %s failed: %v: %s", e.Tool, e.Err, e.Output)
	}
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Run executes name with args, streaming output to debug logging.
func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	// #nosec G204 -- tool name and args come from validated configuration
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), r.env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &ToolError{Tool: name, Err: err}
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return &ToolError{Tool: name, Err: err}
	}

	// Keep the last lines of output so a failure carries usable context.
	var tail []string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		slog.Debug("tool output", "tool", name, "line", line)
		tail = append(tail, line)
		if len(tail) > outputTailLines {
			tail = tail[1:]
		}
	}

	if err := cmd.Wait(); err != nil {
		return &ToolError{Tool: name, Err: err, Output: strings.Join(tail, "\n")}
	}
	return nil
}

// Output executes name with args and returns trimmed stdout.
func (r *Runner) Output(ctx context.Context, name string, args ...string) (string, error) {
	// #nosec G204 -- tool name and args come from validated configuration
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), r.env...)

	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return "", &ToolError{Tool: name, Err: err, Output: strings.TrimSpace(string(ee.Stderr))}
		}
		return "", &ToolError{Tool: name, Err: err}
	}
	return strings.TrimSpace(string(out)), nil
}

// InterpreterVersion queries the interpreter for its version string.
func (r *Runner) InterpreterVersion(ctx context.Context, interp config.InterpConfig) (string, error) {
	out, err := r.Output(ctx, interp.Binary, "--version")
	if err != nil {
		return "", err
	}
	// "Python 3.11.4" -> "3.11.4"
	fields := strings.Fields(out)
	if len(fields) == 0 {
		// Some interpreters banner to stderr only; treat silence as a failure.
		return "", &ToolError{Tool: interp.Binary, Err: errors.New("interpreter reported no version")}
	}
	return fields[len(fields)-1], nil
}

// VersionSatisfiesPin reports whether a reported version matches the pinned
// one. The pin may be a prefix: pin "3.11" accepts "3.11.4".
func VersionSatisfiesPin(reported, pin string) bool {
	if pin == "" {
		return true
	}
	if reported == pin {
		return true
	}
	return strings.HasPrefix(reported, pin+".")
}

// InstallTools installs the pinned external tools via the interpreter's
// package manager, one invocation with all pins so the resolver sees the
// full set.
func (r *Runner) InstallTools(ctx context.Context, interp config.InterpConfig, tools []config.ToolConfig) error {
	if len(tools) == 0 {
		return nil
	}
	args := []string{"-m", "pip", "install", "--upgrade"}
	for _, tool := range tools {
		args = append(args, PinSpec(tool))
	}
	slog.Info("Installing pinned tools", "count", len(tools))
	return r.Run(ctx, interp.Binary, args...)
}

// PinSpec renders a tool pin in requirement syntax ("name==version").
func PinSpec(tool config.ToolConfig) string {
	spec := tool.Name
	if len(tool.Extra) > 0 {
		spec = fmt.Sprintf("%s[%s]", tool.Name, strings.Join(tool.Extra, ","))
	}
	return spec + "==" + tool.Version
}
