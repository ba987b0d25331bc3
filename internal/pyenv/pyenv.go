// Package pyenv locates the Python interpreter and its package roots.
//
// Overview:
//   - Responsibility: Resolve the interpreter, the virtualenv and its site-packages
//   - Key Types: Resolver
//   - Concurrency Model: Stateless after construction
//   - Error Semantics: CodeUnavailable when no interpreter can be found
//   - Performance Notes: Filesystem globs only; QuerySysPath spawns one process
package pyenv

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/toolrunner"
)

// sysPathProgram prints the interpreter's import path as a JSON array.
const sysPathProgram = "import json, sys; print(json.dumps([p for p in sys.path if p]))"

// Resolver resolves interpreter and package-root locations. Zero-value
// function fields fall back to the os and exec implementations.
type Resolver struct {
	Python string // configured interpreter, highest priority
	Venv   string // configured virtualenv directory

	Getenv   func(string) string
	LookPath func(string) (string, error)
}

func (r *Resolver) getenv(key string) string {
	if r.Getenv != nil {
		return r.Getenv(key)
	}
	return os.Getenv(key)
}

func (r *Resolver) lookPath(name string) (string, error) {
	if r.LookPath != nil {
		return r.LookPath(name)
	}
	return exec.LookPath(name)
}

// VenvDir returns the configured virtualenv when it exists, else $VIRTUAL_ENV.
// It returns "" when neither is usable.
func (r *Resolver) VenvDir() string {
	if r.Venv != "" && isDir(r.Venv) {
		return r.Venv
	}
	if active := r.getenv("VIRTUAL_ENV"); active != "" && isDir(active) {
		return active
	}
	return ""
}

// Interpreter resolves the interpreter to run, in order: the configured path,
// the virtualenv's interpreter, then python3 and python on PATH.
//
// Returns:
//   - string: Interpreter path or name
//   - error: CodeUnavailable if nothing is found
func (r *Resolver) Interpreter() (string, error) {
	if r.Python != "" {
		return r.Python, nil
	}
	if venv := r.VenvDir(); venv != "" {
		if p := venvPython(venv); p != "" {
			return p, nil
		}
	}
	for _, name := range []string{"python3", "python"} {
		if p, err := r.lookPath(name); err == nil {
			return p, nil
		}
	}
	return "", errors.New(errors.CodeUnavailable,
		"no Python interpreter found; set python in clientgen.yaml or CLIENTGEN_PYTHON")
}

func venvPython(venv string) string {
	candidates := []string{
		filepath.Join(venv, "bin", "python"),
		filepath.Join(venv, "bin", "python3"),
	}
	if runtime.GOOS == "windows" {
		candidates = []string{filepath.Join(venv, "Scripts", "python.exe")}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

// SitePackages returns the site-packages directories of the virtualenv,
// sorted, or nil when there is no virtualenv.
func (r *Resolver) SitePackages() []string {
	venv := r.VenvDir()
	if venv == "" {
		return nil
	}
	return SitePackagesOf(venv)
}

// SitePackagesOf returns the existing site-packages directories of venv.
func SitePackagesOf(venv string) []string {
	var dirs []string
	for _, pattern := range []string{
		filepath.Join(venv, "lib", "python3*", "site-packages"),
		filepath.Join(venv, "Lib", "site-packages"),
	} {
		matches, _ := filepath.Glob(pattern)
		for _, m := range matches {
			if isDir(m) {
				dirs = append(dirs, m)
			}
		}
	}
	sort.Strings(dirs)
	return dirs
}

// QuerySysPath asks the interpreter for its import path. Entries that are not
// existing directories (zip files, missing paths) are dropped.
func QuerySysPath(ctx context.Context, runner *toolrunner.Runner, python string) ([]string, error) {
	res, err := runner.Python(ctx, python, "-c", sysPathProgram)
	if err != nil {
		return nil, err
	}
	if res.DryRun {
		return nil, nil
	}

	var entries []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &entries); err != nil {
		return nil, errors.Wrapf(errors.CodeInternal, "pyenv.sys_path", err, "unexpected sys.path output %q", res.Stdout)
	}

	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if isDir(e) {
			dirs = append(dirs, e)
		}
	}
	return dirs, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
