package pyenv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/toolrunner"
)

const helperEnv = "PYENV_HELPER_PROCESS"

func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		// fake interpreter: print the sys.path JSON given in the environment
		fmt.Println(os.Getenv("PYENV_FAKE_SYS_PATH"))
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func noPath(string) (string, error) { return "", fmt.Errorf("not found") }

func makeVenv(t *testing.T) string {
	t.Helper()
	venv := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(venv, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(venv, "bin", "python"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(venv, "lib", "python3.12", "site-packages"), 0o755))
	return venv
}

func TestInterpreterOrder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix virtualenv layout")
	}
	venv := makeVenv(t)

	r := &Resolver{Python: "/custom/python", Venv: venv, LookPath: noPath}
	p, err := r.Interpreter()
	require.NoError(t, err)
	assert.Equal(t, "/custom/python", p)

	r = &Resolver{Venv: venv, LookPath: noPath}
	p, err = r.Interpreter()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(venv, "bin", "python"), p)

	r = &Resolver{
		Venv:     filepath.Join(t.TempDir(), "missing"),
		Getenv:   func(string) string { return "" },
		LookPath: func(name string) (string, error) { return "/usr/bin/" + name, nil },
	}
	p, err = r.Interpreter()
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/python3", p)

	r = &Resolver{Getenv: func(string) string { return "" }, LookPath: noPath}
	_, err = r.Interpreter()
	assert.True(t, errors.IsCode(err, errors.CodeUnavailable))
}

func TestVirtualEnvFallback(t *testing.T) {
	venv := makeVenv(t)
	r := &Resolver{
		Venv:   filepath.Join(t.TempDir(), "missing"),
		Getenv: func(key string) string { return map[string]string{"VIRTUAL_ENV": venv}[key] },
	}
	assert.Equal(t, venv, r.VenvDir())
	assert.Equal(t, []string{filepath.Join(venv, "lib", "python3.12", "site-packages")}, r.SitePackages())
}

func TestSitePackagesWithoutVenv(t *testing.T) {
	r := &Resolver{Getenv: func(string) string { return "" }}
	assert.Nil(t, r.SitePackages())
}

func TestQuerySysPath(t *testing.T) {
	existing := t.TempDir()
	fake := fmt.Sprintf(`[%q, %q]`, existing, filepath.Join(existing, "nope.zip"))

	runner := toolrunner.NewRunner("")
	runner.SetEnv(map[string]string{helperEnv: "1", "PYENV_FAKE_SYS_PATH": fake})

	dirs, err := QuerySysPath(context.Background(), runner, os.Args[0])
	require.NoError(t, err)
	assert.Equal(t, []string{existing}, dirs)
}

func TestQuerySysPathBadOutput(t *testing.T) {
	runner := toolrunner.NewRunner("")
	runner.SetEnv(map[string]string{helperEnv: "1", "PYENV_FAKE_SYS_PATH": "not json"})

	_, err := QuerySysPath(context.Background(), runner, os.Args[0])
	assert.True(t, errors.IsCode(err, errors.CodeInternal))
}
