// Package generators runs the external SDK generator for one service.
//
// Overview:
//   - Responsibility: Prepare the output directory, write the override file, run the generator
//   - Key Types: SDKGenerator, Preset, TemplateData, Result
//   - Concurrency Model: Sequential; one service at a time
//   - Error Semantics: Generator failures carry the captured output; the override file is always removed
//   - Performance Notes: Bounded by generator.timeout
//
// Usage:
//
//	gen, err := generators.NewSDKGenerator(fs, runner, config, python)
//	res, err := gen.Generate(ctx, names, schemaPath)
package generators

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eggybyte-technology/clientgen/internal/configschema"
	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/core/log"
	"github.com/eggybyte-technology/clientgen/internal/layout"
	"github.com/eggybyte-technology/clientgen/internal/projectfs"
	"github.com/eggybyte-technology/clientgen/internal/toolrunner"
	"github.com/eggybyte-technology/clientgen/internal/ui"
)

// dryConfigPath stands in for the override file in dry-run output.
const dryConfigPath = "<override.yml>"

// TemplateData is what command and path templates are rendered against.
type TemplateData struct {
	layout.Names
	Python     string
	SchemaPath string
	OutputDir  string
	ConfigPath string
	OutputRoot string
}

// Override is the generator configuration override file.
type Override struct {
	PackageNameOverride string `yaml:"package_name_override"`
	ProjectNameOverride string `yaml:"project_name_override"`
}

// Result describes one generator invocation.
type Result struct {
	OutputDir  string
	ConfigPath string
	Command    []string
	Duration   time.Duration
}

// SDKGenerator invokes the configured generator.
//
// Parameters:
//   - fs: Dry-run aware file system rooted at the output root
//   - runner: Tool runner for the generator process
//   - config: Loaded configuration
//   - python: Resolved interpreter path
//
// Concurrency:
//   - Not safe for concurrent use
type SDKGenerator struct {
	fs     *projectfs.ProjectFS
	runner *toolrunner.Runner
	config *configschema.Config
	preset Preset
	python string
	logger log.Logger
}

// NewSDKGenerator creates a generator for config's preset.
func NewSDKGenerator(fs *projectfs.ProjectFS, runner *toolrunner.Runner, config *configschema.Config, python string) (*SDKGenerator, error) {
	preset, err := PresetFor(config)
	if err != nil {
		return nil, err
	}
	return &SDKGenerator{
		fs:     fs,
		runner: runner,
		config: config,
		preset: preset,
		python: python,
		logger: log.Nop(),
	}, nil
}

// SetLogger sets the diagnostic logger.
func (g *SDKGenerator) SetLogger(logger log.Logger) {
	if logger != nil {
		g.logger = logger
	}
}

// Preset returns the resolved preset.
func (g *SDKGenerator) Preset() Preset {
	return g.preset
}

// OutputDir returns the SDK directory for a service.
func (g *SDKGenerator) OutputDir(names layout.Names) (string, error) {
	return layout.Resolve(g.config.Output.Root, "sdk_dir", g.preset.SDKDir, names)
}

// Generate prepares the output directory and runs the generator against schemaPath.
//
// Parameters:
//   - ctx: Context for cancellation
//   - names: Service names
//   - schemaPath: Schema document to generate from
//
// Returns:
//   - *Result: Invocation details (non-nil once the output directory is known)
//   - error: Preparation or generator failure
func (g *SDKGenerator) Generate(ctx context.Context, names layout.Names, schemaPath string) (*Result, error) {
	outDir, err := g.OutputDir(names)
	if err != nil {
		return nil, err
	}
	res := &Result{OutputDir: outDir}
	fs := g.fs.ForService(names.ServiceName)

	if err := g.prepareOutput(fs, names.ServiceName, outDir); err != nil {
		return res, err
	}

	data := TemplateData{
		Names:      names,
		Python:     g.python,
		SchemaPath: schemaPath,
		OutputDir:  outDir,
		OutputRoot: g.config.Output.Root,
	}

	if g.preset.UsesOverride() {
		path, cleanup, err := g.writeOverride(names)
		if err != nil {
			return res, err
		}
		defer cleanup()
		data.ConfigPath = path
		res.ConfigPath = path
	}

	args := make([]string, 0, len(g.preset.Command))
	for i, arg := range g.preset.Command {
		rendered, err := layout.Render("generator.command", arg, data)
		if err != nil {
			return res, err
		}
		if i == 0 && rendered == "" {
			return res, errors.New(errors.CodeInvalidArgument, "generator command renders to an empty executable")
		}
		args = append(args, rendered)
	}
	res.Command = args

	if !g.runner.DryRun() {
		ui.Service(names.ServiceName, "🚀", "Generating SDK → %s", outDir)
	}

	run, err := g.runner.Run(ctx, toolrunner.Command{
		Name:    args[0],
		Args:    args[1:],
		Timeout: g.config.Generator.Timeout,
		Label:   names.ServiceName,
	})
	if run != nil {
		res.Duration = run.Duration
	}
	if err != nil {
		return res, errors.Wrapf(errors.CodeOf(err), "generators.generate", err,
			"SDK generation for %s (schema %s, output %s) failed", names.ServiceName, schemaPath, outDir)
	}

	g.logger.Debug("sdk generated",
		log.Str("service", names.ServiceName), log.Str("output", outDir), log.Dur("duration", res.Duration))
	return res, nil
}

// prepareOutput removes the stale output (all of it, or only lock files) and
// recreates the directory.
func (g *SDKGenerator) prepareOutput(fs *projectfs.ProjectFS, service, outDir string) error {
	exists, err := fs.DirectoryExists(outDir)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "generators.prepare", err)
	}

	if exists && g.config.Generator.CleanOutput {
		if _, err := fs.RemoveDirectory(outDir); err != nil {
			return errors.Wrap(errors.CodeInternal, "generators.prepare", err)
		}
	} else if exists {
		for _, name := range g.config.Generator.Lockfiles {
			lock := filepath.Join(outDir, name)
			removed, err := fs.RemoveFile(lock)
			if err != nil {
				return errors.Wrap(errors.CodeInternal, "generators.prepare", err)
			}
			if removed && !fs.DryRun() {
				ui.Service(service, "🗑️ ", "Removed stale %s", lock)
			}
		}
	}

	if err := fs.EnsureDirectory(outDir); err != nil {
		return errors.Wrap(errors.CodeInternal, "generators.prepare", err)
	}
	return nil
}

// writeOverride writes the override YAML to a temporary file. The returned
// cleanup removes it; removal errors are ignored.
func (g *SDKGenerator) writeOverride(names layout.Names) (string, func(), error) {
	pkg, err := layout.Render("generator.package_name", g.config.Generator.PackageName, names)
	if err != nil {
		return "", nil, err
	}
	project, err := layout.Render("generator.project_name", g.config.Generator.ProjectName, names)
	if err != nil {
		return "", nil, err
	}
	override := Override{PackageNameOverride: pkg, ProjectNameOverride: project}

	if g.runner.DryRun() {
		ui.ServiceDry(names.ServiceName, "Would write generator override (package %s, project %s)", pkg, project)
		return dryConfigPath, func() {}, nil
	}

	f, err := os.CreateTemp("", "clientgen-"+names.Package+"-*.yml")
	if err != nil {
		return "", nil, errors.Wrap(errors.CodeInternal, "generators.override", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	enc := yaml.NewEncoder(f)
	err = enc.Encode(override)
	if closeErr := enc.Close(); err == nil {
		err = closeErr
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return "", nil, errors.Wrap(errors.CodeInternal, "generators.override", err)
	}
	return f.Name(), cleanup, nil
}
