// Package extract obtains a service's OpenAPI document by running a small
// bootstrap program in a Python interpreter.
//
// Overview:
//   - Responsibility: Import one service module, read its application attribute, write the schema
//   - Key Types: Extractor, Job, Isolated, Shared
//   - Concurrency Model: One job at a time; Shared owns a single worker process
//   - Error Semantics: Errors name the module and output path and carry the captured output
//   - Performance Notes: Isolated pays interpreter start-up per service; Shared pays it once
//
// Usage:
//
//	ex, err := extract.New(configschema.PolicyIsolated, extract.Options{Python: py, Runner: runner})
//	defer ex.Close()
//	err = ex.Extract(ctx, extract.Job{Module: "ab_service.billing.main", Attr: "app", Output: path})
package extract

import (
	"context"
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eggybyte-technology/clientgen/internal/configschema"
	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/core/log"
	"github.com/eggybyte-technology/clientgen/internal/toolrunner"
)

// Exit codes of the bootstrap program.
const (
	ExitOK        = 0
	ExitImport    = 2
	ExitAttribute = 3
	ExitSchema    = 4
)

var (
	//go:embed python/common.py
	commonProgram string
	//go:embed python/isolated.py
	isolatedMain string
	//go:embed python/worker.py
	workerMain string
)

// IsolatedProgram is the bootstrap run once per service. It takes the module,
// attribute and output path as argv.
func IsolatedProgram() string { return commonProgram + isolatedMain }

// WorkerProgram is the long-lived bootstrap that reads JSON job lines on stdin.
func WorkerProgram() string { return commonProgram + workerMain }

// Job is one schema extraction.
type Job struct {
	Module string // dotted module path
	Attr   string // attribute holding the application
	Output string // schema document destination
	Label  string // service label for console output
}

// Extractor writes a service's schema document.
type Extractor interface {
	// Extract writes the schema for job.Module to job.Output.
	Extract(ctx context.Context, job Job) error
	// Close releases interpreter processes.
	Close() error
}

// Options configure both extraction policies.
type Options struct {
	Python     string
	Runner     *toolrunner.Runner
	Timeout    time.Duration
	PythonPath []string // prepended to PYTHONPATH for the interpreter
	Logger     log.Logger
}

// New returns the Extractor for policy.
func New(policy string, opts Options) (Extractor, error) {
	if opts.Runner == nil {
		opts.Runner = toolrunner.NewRunner("")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Python == "" {
		return nil, errors.New(errors.CodeInvalidArgument, "extract: interpreter path is empty")
	}

	switch policy {
	case configschema.PolicyIsolated, "":
		return &Isolated{opts: opts}, nil
	case configschema.PolicyShared:
		return &Shared{opts: opts}, nil
	default:
		return nil, errors.Newf(errors.CodeInvalidArgument, "unknown extraction policy %q", policy)
	}
}

// env returns the per-invocation environment carrying PYTHONPATH.
func (o Options) env() map[string]string {
	if len(o.PythonPath) == 0 {
		return nil
	}
	parts := make([]string, 0, len(o.PythonPath)+1)
	for _, p := range o.PythonPath {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		parts = append(parts, p)
	}
	if existing := os.Getenv("PYTHONPATH"); existing != "" {
		parts = append(parts, existing)
	}
	return map[string]string{"PYTHONPATH": strings.Join(parts, string(os.PathListSeparator))}
}

// codeForExit maps a bootstrap exit code to an error code.
func codeForExit(exit int) errors.Code {
	if exit == ExitAttribute {
		return errors.CodeNotFound
	}
	return errors.CodeProcessFailed
}

func ensureParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(errors.CodeInternal, "extract.prepare", err, "cannot create directory for %s", path)
	}
	return nil
}
