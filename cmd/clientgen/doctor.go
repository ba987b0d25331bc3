package main

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eggybyte-technology/clientgen/internal/configschema"
	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/generators"
	"github.com/eggybyte-technology/clientgen/internal/pipeline"
	"github.com/eggybyte-technology/clientgen/internal/toolrunner"
	"github.com/eggybyte-technology/clientgen/internal/ui"
)

// doctorCmd represents the doctor command.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the generation environment",
	Long: `Check everything clientgen generate depends on.

This command verifies:
  • Configuration file and CLIENTGEN_* overrides
  • Python interpreter and virtualenv
  • FastAPI and the generator module importable by that interpreter
  • Lockfile migration launchers (uvx, uv)
  • Services discoverable in the namespace

Example:
  clientgen doctor`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// doctorStatus accumulates check outcomes.
type doctorStatus struct {
	errors   int
	warnings int
}

func (s *doctorStatus) fail(format string, args ...any) {
	s.errors++
	ui.Error("  [x] "+format, args...)
}

func (s *doctorStatus) warn(format string, args ...any) {
	s.warnings++
	ui.Warning("  [!] "+format, args...)
}

// runDoctor executes the doctor command.
//
// Parameters:
//   - cmd: Cobra command
//   - args: Command arguments
//
// Returns:
//   - error: CodeUnavailable when a required check failed
func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	status := &doctorStatus{}
	separator := strings.Repeat("=", 60)

	ui.Info("clientgen environment diagnostics")
	ui.Info("%s", separator)
	ui.Info("  OS/Arch: %s/%s", runtime.GOOS, runtime.GOARCH)

	ui.Info("Configuration")
	config, err := loadConfig(configschema.Overrides{})
	if err != nil {
		return err
	}
	ui.Success("  [+] %s (namespace %s, policy %s, preset %s)",
		configPath, config.Namespace, config.Extraction.Policy, config.Generator.Preset)

	ws, err := newWorkspace(config, false)
	if err != nil {
		return err
	}

	ui.Info("Python")
	python := checkInterpreter(ctx, ws, status)
	if venv := ws.resolver.VenvDir(); venv != "" {
		ui.Success("  [+] virtualenv %s", venv)
	} else {
		ui.Debug("  no virtualenv at %s and VIRTUAL_ENV unset", config.Venv)
	}

	ui.Info("Generator")
	if python != "" {
		checkModule(ctx, ws.runner, python, "fastapi", status)
	}
	checkGenerator(ctx, ws, python, status)

	ui.Info("Lockfile migration")
	checkMigration(ws, status)

	ui.Info("Services")
	p, err := pipeline.New(pipeline.Options{
		Config: config, Runner: ws.runner, FS: ws.fs, Python: python, Resolver: ws.resolver, Logger: ws.logger,
	})
	if err != nil {
		return err
	}
	services, err := p.Discover(ctx)
	switch {
	case err != nil:
		status.warn("discovery failed: %v", err)
	case len(services) == 0:
		status.warn("no services found in the '%s.' namespace", config.Namespace)
	default:
		ui.Success("  [+] %d service(s) in %s", len(services), config.Namespace)
	}

	ui.Info("%s", separator)
	switch {
	case status.errors > 0:
		ui.Error("Diagnostics completed with ERRORS")
		return errors.Newf(errors.CodeUnavailable, "environment check failed (%d errors)", status.errors)
	case status.warnings > 0:
		ui.Warning("Diagnostics completed with WARNINGS")
	default:
		ui.Success("All checks passed - environment ready")
	}
	return nil
}

// checkInterpreter resolves and runs the interpreter. It returns "" when
// there is no usable interpreter.
func checkInterpreter(ctx context.Context, ws *workspace, status *doctorStatus) string {
	python, err := ws.resolver.Interpreter()
	if err != nil {
		status.fail("interpreter: %v", err)
		return ""
	}
	res, err := ws.runner.Python(ctx, python, "--version")
	if err != nil {
		status.fail("interpreter %s: %v", python, err)
		return ""
	}
	version := strings.TrimSpace(res.Stdout + res.Stderr)
	ui.Success("  [+] %s (%s)", python, version)
	return python
}

// checkModule reports whether module is importable by python.
func checkModule(ctx context.Context, runner *toolrunner.Runner, python, module string, status *doctorStatus) bool {
	if _, err := runner.Python(ctx, python, "-c", "import "+module); err != nil {
		status.fail("%s is not importable by %s", module, python)
		ui.Debug("      %v", err)
		return false
	}
	ui.Success("  [+] %s", module)
	return true
}

func checkGenerator(ctx context.Context, ws *workspace, python string, status *doctorStatus) {
	preset, err := generators.PresetFor(ws.config)
	if err != nil {
		status.fail("generator: %v", err)
		return
	}
	if module := preset.Module(); module != "" {
		if python != "" {
			checkModule(ctx, ws.runner, python, module, status)
		}
		return
	}

	exe := preset.Command[0]
	if strings.Contains(exe, "{{") {
		ui.Debug("  generator executable %s is a template, not checked", exe)
		return
	}
	if _, path, err := ws.runner.LookPath(exe); err != nil {
		status.fail("generator %s not found in PATH", exe)
	} else {
		ui.Success("  [+] %s (%s)", exe, path)
	}
}

func checkMigration(ws *workspace, status *doctorStatus) {
	if !ws.config.Migration.IsEnabled() {
		ui.Info("  migration disabled")
		return
	}
	var found []string
	for _, tool := range ws.config.Migration.Tools {
		if _, path, err := ws.runner.LookPath(tool); err == nil {
			found = append(found, fmt.Sprintf("%s (%s)", tool, path))
		}
	}
	if len(found) == 0 {
		status.warn("none of %s found; lock files will not be migrated", strings.Join(ws.config.Migration.Tools, ", "))
		return
	}
	ui.Success("  [+] %s", strings.Join(found, ", "))
}
