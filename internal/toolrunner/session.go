package toolrunner

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/core/log"
	"github.com/eggybyte-technology/clientgen/internal/ui"
)

// Session is a long-lived child process driven over its stdin/stdout.
// Stderr is collected for diagnostics.
type Session struct {
	name   string
	args   []string
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *lockedBuilder

	closeOnce sync.Once
	waitErr   error
}

type lockedBuilder struct {
	mu sync.Mutex
	b  strings.Builder
}

func (l *lockedBuilder) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuilder) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

// Start launches a session process. The session lives until Close or until ctx
// is cancelled; Command.Timeout is not applied to sessions.
//
// Parameters:
//   - ctx: Context bounding the whole session
//   - c: Command to start
//
// Returns:
//   - *Session: Running session
//   - error: CodeUnavailable if the process could not be started
func (r *Runner) Start(ctx context.Context, c Command) (*Session, error) {
	if r.dryRun {
		ui.Dry("Would start: %s", CommandLine(c.Name, c.Args...))
		return nil, errors.New(errors.CodeAborted, "sessions are not started in dry-run mode")
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := r.command(ctx, c)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, errors.Wrap(errors.CodeInternal, "toolrunner.start", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, errors.Wrap(errors.CodeInternal, "toolrunner.start", err)
	}

	stderr := &lockedBuilder{}
	cmd.Stderr = stderr

	if r.verbose {
		ui.Debug("Starting: %s", CommandLine(c.Name, c.Args...))
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, errors.Wrap(errors.CodeUnavailable, "toolrunner.start", &ProcessError{
			Name: c.Name, Args: c.Args, ExitCode: -1, Err: err,
		})
	}

	r.logger.Debug("session started", log.Str("command", c.Name), log.Int("pid", cmd.Process.Pid))

	return &Session{
		name:   c.Name,
		args:   c.Args,
		cmd:    cmd,
		cancel: cancel,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		stderr: stderr,
	}, nil
}

// Send writes one line to the session's stdin.
func (s *Session) Send(line []byte) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := s.stdin.Write(buf); err != nil {
		return errors.Wrap(errors.CodeUnavailable, "toolrunner.send", s.processError(err))
	}
	return nil
}

// ReadLine reads one line from the session's stdout, racing the read against
// ctx. When ctx ends first the session is killed.
//
// Returns:
//   - []byte: Line without the trailing newline
//   - error: CodeDeadlineExceeded on timeout, CodeProcessFailed if the process exited
func (s *Session) ReadLine(ctx context.Context) ([]byte, error) {
	type reply struct {
		line []byte
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		line, err := s.stdout.ReadBytes('\n')
		ch <- reply{line: line, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			s.Close()
			return nil, errors.Wrap(errors.CodeProcessFailed, "toolrunner.read", s.processError(r.err))
		}
		return []byte(strings.TrimRight(string(r.line), "\r\n")), nil
	case <-ctx.Done():
		s.Kill()
		perr := s.processError(ctx.Err())
		if ctx.Err() == context.DeadlineExceeded {
			perr.TimedOut = true
			return nil, errors.Wrap(errors.CodeDeadlineExceeded, "toolrunner.read", perr)
		}
		return nil, errors.Wrap(errors.CodeAborted, "toolrunner.read", perr)
	}
}

// Stderr returns the stderr collected so far.
func (s *Session) Stderr() string {
	return s.stderr.String()
}

// Pid returns the process id.
func (s *Session) Pid() int {
	return s.cmd.Process.Pid
}

// Kill terminates the process immediately and reaps it.
func (s *Session) Kill() {
	s.cancel()
	s.Close()
}

// Close closes stdin, which asks the process to exit, and waits for it.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.stdin.Close()
		s.waitErr = s.cmd.Wait()
		s.cancel()
	})
	return s.waitErr
}

func (s *Session) processError(err error) *ProcessError {
	exitCode := -1
	if s.cmd.ProcessState != nil {
		exitCode = s.cmd.ProcessState.ExitCode()
	}
	return &ProcessError{
		Name:     s.name,
		Args:     s.args,
		ExitCode: exitCode,
		Stderr:   s.Stderr(),
		Err:      err,
	}
}
