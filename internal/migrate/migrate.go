// Package migrate runs the post-generation lockfile migration
// (migrate-to-uv) inside a generated SDK directory.
//
// A missing tool or a failed migration is reported and never fails the run.
package migrate

import (
	"context"
	"time"

	"github.com/eggybyte-technology/clientgen/internal/core/log"
	"github.com/eggybyte-technology/clientgen/internal/toolrunner"
	"github.com/eggybyte-technology/clientgen/internal/ui"
)

// Status is the outcome of a migration attempt.
type Status string

const (
	StatusMigrated Status = "migrated"
	StatusSkipped  Status = "skipped" // no tool available or disabled
	StatusFailed   Status = "failed"
	StatusPlanned  Status = "planned" // dry run: the command was reported only
)

// toolArgs maps a launcher to the arguments that run migrate-to-uv through it.
var toolArgs = map[string][]string{
	"uvx": {"migrate-to-uv"},
	"uv":  {"tool", "run", "migrate-to-uv"},
}

// Migrator runs migrate-to-uv with the first available launcher.
type Migrator struct {
	runner  *toolrunner.Runner
	tools   []string
	timeout time.Duration
	logger  log.Logger
}

// New creates a Migrator trying tools in order ("uvx", "uv").
func New(runner *toolrunner.Runner, tools []string, timeout time.Duration, logger log.Logger) *Migrator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Migrator{runner: runner, tools: tools, timeout: timeout, logger: logger}
}

// Command returns the command line that would be used, or false when no
// launcher is on PATH.
func (m *Migrator) Command() (string, []string, bool) {
	name, path, err := m.runner.LookPath(m.tools...)
	if err != nil {
		return "", nil, false
	}
	return path, toolArgs[name], true
}

// Run migrates the project in dir for service.
//
// Returns:
//   - Status: Outcome
//   - error: The failure when Status is StatusFailed, for reporting only
func (m *Migrator) Run(ctx context.Context, service, dir string) (Status, error) {
	path, args, ok := m.Command()
	if !ok {
		ui.ServiceWarning(service, "No uv launcher (%v) on PATH, skipping lockfile migration", m.tools)
		return StatusSkipped, nil
	}

	_, err := m.runner.Run(ctx, toolrunner.Command{
		Name:    path,
		Args:    args,
		Dir:     dir,
		Timeout: m.timeout,
		Label:   service,
	})
	if err != nil {
		ui.ServiceWarning(service, "Lockfile migration failed: %v", err)
		m.logger.Warn("lockfile migration failed", log.Str("service", service), log.Str("dir", dir))
		return StatusFailed, err
	}
	if m.runner.DryRun() {
		return StatusPlanned, nil
	}
	ui.Service(service, "📦", "Lockfile migrated in %s", dir)
	return StatusMigrated, nil
}
