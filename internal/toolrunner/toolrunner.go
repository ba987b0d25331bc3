// Package toolrunner provides execution of external tools and commands.
//
// Overview:
//   - Responsibility: Execute the interpreter, SDK generators, and migration tools
//   - Key Types: Runner, Command, CommandResult, ProcessError, Session
//   - Concurrency Model: Sequential command execution with context support
//   - Error Semantics: Structured errors carrying the captured stdout/stderr
//   - Performance Notes: Output captured in memory; every command bounded by a timeout
//
// Usage:
//
//	runner := NewRunner(".")
//	res, err := runner.Exec(ctx, "uvx", "migrate-to-uv")
package toolrunner

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/core/log"
	"github.com/eggybyte-technology/clientgen/internal/envloader"
	"github.com/eggybyte-technology/clientgen/internal/ui"
)

// waitDelay bounds how long Wait keeps draining pipes after the process is killed.
const waitDelay = 5 * time.Second

// Runner provides execution of external tools.
//
// Parameters:
//   - workDir: Working directory for commands ("" inherits the caller's)
//   - verbose: Whether to show command lines
//   - dryRun: Report commands instead of executing them
//   - env: Extra environment merged over the inherited one
//
// Concurrency:
//   - Configure before use; safe for sequential use afterwards
type Runner struct {
	workDir  string
	verbose  bool
	dryRun   bool
	env      map[string]string
	timeout  time.Duration
	logger   log.Logger
	lookPath func(string) (string, error)
}

// Command describes one external invocation.
type Command struct {
	Name    string            // Executable name or path
	Args    []string          // Arguments
	Dir     string            // Working directory override
	Stdin   io.Reader         // Optional standard input
	Env     map[string]string // Extra environment, overriding the runner's
	Timeout time.Duration     // Overrides the runner default when > 0
	Label   string            // Service label used in dry-run and log output
}

// CommandResult represents the result of a command execution.
//
// Parameters:
//   - ExitCode: Process exit code (-1 if it did not run to completion)
//   - Stdout: Standard output content
//   - Stderr: Standard error content
//   - Duration: Command execution time
//   - DryRun: True when the command was only reported
//
// Concurrency:
//   - Immutable after creation
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	DryRun   bool
}

// ProcessError reports a command that could not complete successfully. Stdout
// and Stderr hold the captured streams verbatim.
type ProcessError struct {
	Name     string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Err      error
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	var b strings.Builder
	switch {
	case e.TimedOut:
		fmt.Fprintf(&b, "command %s timed out", e.Name)
	case e.ExitCode >= 0:
		fmt.Fprintf(&b, "command %s exited with code %d", e.Name, e.ExitCode)
	default:
		fmt.Fprintf(&b, "command %s failed: %v", e.Name, e.Err)
	}
	b.WriteString("\n--- stdout ---\n")
	b.WriteString(e.Stdout)
	b.WriteString("\n--- stderr ---\n")
	b.WriteString(e.Stderr)
	return b.String()
}

// Unwrap returns the underlying execution error.
func (e *ProcessError) Unwrap() error {
	return e.Err
}

// NewRunner creates a new tool runner.
//
// Parameters:
//   - workDir: Working directory for commands
//
// Returns:
//   - *Runner: Tool runner instance
func NewRunner(workDir string) *Runner {
	return &Runner{
		workDir:  workDir,
		timeout:  10 * time.Minute,
		logger:   log.Nop(),
		lookPath: exec.LookPath,
	}
}

// SetVerbose enables or disables printing of command lines.
func (r *Runner) SetVerbose(enabled bool) {
	r.verbose = enabled
}

// SetDryRun makes the runner report commands instead of executing them.
func (r *Runner) SetDryRun(enabled bool) {
	r.dryRun = enabled
}

// DryRun reports whether the runner is in dry-run mode.
func (r *Runner) DryRun() bool {
	return r.dryRun
}

// SetEnv sets extra environment variables merged over the inherited environment.
func (r *Runner) SetEnv(env map[string]string) {
	r.env = env
}

// SetLogger sets the diagnostic logger.
func (r *Runner) SetLogger(logger log.Logger) {
	if logger == nil {
		logger = log.Nop()
	}
	r.logger = logger
}

// SetLookPath replaces the PATH lookup used by LookPath.
func (r *Runner) SetLookPath(fn func(string) (string, error)) {
	if fn == nil {
		fn = exec.LookPath
	}
	r.lookPath = fn
}

// Run executes a command and returns the result.
//
// Parameters:
//   - ctx: Context for cancellation
//   - c: Command to execute
//
// Returns:
//   - *CommandResult: Command execution result (also returned on failure)
//   - error: *errors.E wrapping a *ProcessError on failure
//
// Concurrency:
//   - Blocks until the process exits or the timeout expires
func (r *Runner) Run(ctx context.Context, c Command) (*CommandResult, error) {
	line := CommandLine(c.Name, c.Args...)

	if r.dryRun {
		if c.Label != "" {
			ui.ServiceDry(c.Label, "Would run: %s", line)
		} else {
			ui.Dry("Would run: %s", line)
		}
		return &CommandResult{DryRun: true}, nil
	}

	ctx, cancel := r.withTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := r.command(ctx, c)
	r.logEnvironment(c)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = c.Stdin

	if r.verbose {
		ui.Debug("Running: %s", line)
	}

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := &CommandResult{
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	r.logger.Debug("command finished",
		log.Str("command", c.Name),
		log.Int("exit_code", result.ExitCode),
		log.Dur("duration", duration),
		log.Str("label", c.Label))

	if err != nil {
		return result, r.classify(ctx, c, result, err)
	}
	return result, nil
}

// Exec runs an arbitrary command in the runner's working directory.
func (r *Runner) Exec(ctx context.Context, name string, args ...string) (*CommandResult, error) {
	return r.Run(ctx, Command{Name: name, Args: args})
}

// ExecIn runs a command in the given directory.
func (r *Runner) ExecIn(ctx context.Context, dir, name string, args ...string) (*CommandResult, error) {
	return r.Run(ctx, Command{Name: name, Args: args, Dir: dir})
}

// Python runs the interpreter with the given arguments.
func (r *Runner) Python(ctx context.Context, python string, args ...string) (*CommandResult, error) {
	return r.Run(ctx, Command{Name: python, Args: args})
}

// LookPath returns the first of names found on PATH.
//
// Parameters:
//   - names: Candidate executable names in preference order
//
// Returns:
//   - string: The name that matched
//   - string: Resolved path
//   - error: CodeUnavailable error when none is found
func (r *Runner) LookPath(names ...string) (string, string, error) {
	for _, name := range names {
		if path, err := r.lookPath(name); err == nil {
			return name, path, nil
		}
	}
	return "", "", errors.Newf(errors.CodeUnavailable, "none of %s found in PATH", strings.Join(names, ", "))
}

func (r *Runner) withTimeout(ctx context.Context, override time.Duration) (context.Context, context.CancelFunc) {
	timeout := r.timeout
	if override > 0 {
		timeout = override
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *Runner) command(ctx context.Context, c Command) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = r.workDir
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	if env := r.environment(c); len(env) > 0 {
		cmd.Env = envloader.MergeWithOS(env)
	}
	cmd.WaitDelay = waitDelay
	return cmd
}

// environment returns the variables set on top of the inherited environment.
func (r *Runner) environment(c Command) map[string]string {
	if len(r.env) == 0 && len(c.Env) == 0 {
		return nil
	}
	env := make(map[string]string, len(r.env)+len(c.Env))
	for k, v := range r.env {
		env[k] = v
	}
	for k, v := range c.Env {
		env[k] = v
	}
	return env
}

// logEnvironment logs the environment overrides of c, one field per
// variable. Values are masked by the logger's sensitive fields.
func (r *Runner) logEnvironment(c Command) {
	env := r.environment(c)
	if len(env) == 0 {
		return
	}
	kv := make([]any, 0, len(env)+1)
	kv = append(kv, log.Str("label", c.Label))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		kv = append(kv, log.Str(k, env[k]))
	}
	r.logger.Debug("command environment", kv...)
}

func (r *Runner) classify(ctx context.Context, c Command, result *CommandResult, err error) error {
	perr := &ProcessError{
		Name:     c.Name,
		Args:     c.Args,
		ExitCode: result.ExitCode,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		Err:      err,
	}

	if ctx.Err() == context.DeadlineExceeded {
		perr.TimedOut = true
		return errors.Wrap(errors.CodeDeadlineExceeded, "toolrunner.run", perr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return errors.Wrap(errors.CodeProcessFailed, "toolrunner.run", perr)
	}

	return errors.Wrap(errors.CodeUnavailable, "toolrunner.run", perr)
}

// CommandLine renders a command for display. Arguments holding an inline
// program (multi-line text) are abbreviated.
func CommandLine(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quote(name))
	for _, arg := range args {
		if strings.Contains(arg, "\n") {
			parts = append(parts, fmt.Sprintf("<program:%d lines>", strings.Count(arg, "\n")+1))
			continue
		}
		parts = append(parts, quote(arg))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'$`\\") {
		return strconv.Quote(s)
	}
	return s
}
