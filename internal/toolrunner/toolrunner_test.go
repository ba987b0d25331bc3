package toolrunner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/testingx"
	"github.com/eggybyte-technology/clientgen/internal/ui"
)

const helperEnv = "TOOLRUNNER_HELPER_PROCESS"

func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		os.Exit(helperMain(os.Args[1:]))
	}
	os.Exit(m.Run())
}

// helperMain makes the test binary act as the external tool under test.
func helperMain(args []string) int {
	if len(args) == 0 {
		return 64
	}
	switch args[0] {
	case "echo":
		fmt.Fprint(os.Stdout, strings.Join(args[1:], " "))
		return 0
	case "fail":
		fmt.Fprint(os.Stdout, "partial output")
		fmt.Fprint(os.Stderr, "Traceback: boom")
		return 3
	case "sleep":
		time.Sleep(30 * time.Second)
		return 0
	case "env":
		fmt.Fprint(os.Stdout, os.Getenv(args[1]))
		return 0
	case "pwd":
		wd, _ := os.Getwd()
		fmt.Fprint(os.Stdout, wd)
		return 0
	case "repl":
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "hang" {
				time.Sleep(30 * time.Second)
			}
			fmt.Fprintf(os.Stderr, "got %s\n", line)
			fmt.Fprintf(os.Stdout, "ack:%s\n", line)
		}
		return 0
	}
	return 64
}

func helperRunner(t *testing.T) *Runner {
	t.Helper()
	r := NewRunner("")
	r.SetEnv(map[string]string{helperEnv: "1"})
	return r
}

func TestExecCapturesStdout(t *testing.T) {
	r := helperRunner(t)

	res, err := r.Exec(context.Background(), os.Args[0], "echo", "hello", "world")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello world", res.Stdout)
	assert.False(t, res.DryRun)
}

func TestExecNonZeroExitKeepsOutputVerbatim(t *testing.T) {
	r := helperRunner(t)

	res, err := r.Exec(context.Background(), os.Args[0], "fail")
	require.Error(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.True(t, errors.IsCode(err, errors.CodeProcessFailed))

	var perr *ProcessError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "partial output", perr.Stdout)
	assert.Equal(t, "Traceback: boom", perr.Stderr)
	assert.Contains(t, err.Error(), "exited with code 3")
	assert.Contains(t, err.Error(), "Traceback: boom")
}

func TestExecTimeout(t *testing.T) {
	r := helperRunner(t)

	_, err := r.Run(context.Background(), Command{
		Name:    os.Args[0],
		Args:    []string{"sleep"},
		Timeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDeadlineExceeded))

	var perr *ProcessError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.TimedOut)
}

func TestExecMissingBinary(t *testing.T) {
	r := NewRunner("")

	_, err := r.Exec(context.Background(), filepath.Join(t.TempDir(), "no-such-tool"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeUnavailable))
}

func TestExecEnvAndDir(t *testing.T) {
	r := helperRunner(t)
	logger := testingx.NewMockLogger(t)
	r.SetLogger(logger)
	r.SetEnv(map[string]string{helperEnv: "1", "CLIENTGEN_MARKER": "42"})

	res, err := r.Exec(context.Background(), os.Args[0], "env", "CLIENTGEN_MARKER")
	require.NoError(t, err)
	assert.Equal(t, "42", res.Stdout)

	entry, found := logger.Find("DEBUG", "command environment")
	require.True(t, found)
	assert.Equal(t, "42", entry.Fields["CLIENTGEN_MARKER"])
	assert.Equal(t, "1", entry.Fields[helperEnv])

	dir := t.TempDir()
	res, err = r.ExecIn(context.Background(), dir, os.Args[0], "pwd")
	require.NoError(t, err)

	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(res.Stdout)
	assert.Equal(t, want, got)
}

func TestDryRunReportsWithoutExecuting(t *testing.T) {
	var out bytes.Buffer
	restore := ui.SetOutput(&out, &out)
	defer restore()

	r := NewRunner("")
	r.SetDryRun(true)

	res, err := r.Run(context.Background(), Command{
		Name:  filepath.Join(t.TempDir(), "no-such-tool"),
		Args:  []string{"generate", "--path", "a b.json"},
		Label: "service-billing",
	})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Contains(t, out.String(), "[DRY] [service-billing] Would run:")
	assert.Contains(t, out.String(), `"a b.json"`)
}

func TestLookPath(t *testing.T) {
	r := NewRunner("")
	r.lookPath = func(name string) (string, error) {
		if name == "uv" {
			return "/usr/bin/uv", nil
		}
		return "", fmt.Errorf("not found")
	}

	name, path, err := r.LookPath("uvx", "uv")
	require.NoError(t, err)
	assert.Equal(t, "uv", name)
	assert.Equal(t, "/usr/bin/uv", path)

	_, _, err = r.LookPath("poetry")
	assert.True(t, errors.IsCode(err, errors.CodeUnavailable))
}

func TestCommandLine(t *testing.T) {
	line := CommandLine("python", "-c", "import sys\nprint(1)\n", "ab_service.x.main", "")
	assert.Equal(t, `python -c <program:3 lines> ab_service.x.main ""`, line)
}

func TestSessionRoundTrip(t *testing.T) {
	r := helperRunner(t)

	s, err := r.Start(context.Background(), Command{Name: os.Args[0], Args: []string{"repl"}})
	require.NoError(t, err)
	defer s.Kill()

	for _, msg := range []string{"one", "two"} {
		require.NoError(t, s.Send([]byte(msg)))
		line, err := s.ReadLine(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ack:"+msg, string(line))
	}

	require.NoError(t, s.Close())
	assert.Contains(t, s.Stderr(), "got two")
}

func TestSessionReadTimeoutKillsProcess(t *testing.T) {
	r := helperRunner(t)

	s, err := r.Start(context.Background(), Command{Name: os.Args[0], Args: []string{"repl"}})
	require.NoError(t, err)

	require.NoError(t, s.Send([]byte("hang")))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = s.ReadLine(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDeadlineExceeded))
	assert.Less(t, time.Since(start), 10*time.Second)
}
