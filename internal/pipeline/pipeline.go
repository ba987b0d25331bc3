// Package pipeline drives every discovered service through schema extraction,
// SDK generation and lockfile migration, and collects a Run Report.
//
// Overview:
//   - Responsibility: Sequence the per-service steps and track their state
//   - Key Types: Pipeline, Options, ServiceResult, Report, State
//   - Concurrency Model: One goroutine; services are processed one at a time
//   - Error Semantics: Per-service failures are recorded and skipped; Run only
//     returns an error for setup failures, cancellation and fail_fast aborts
//   - Performance Notes: Dominated by the interpreter and generator subprocesses
//
// Usage:
//
//	p, err := pipeline.New(pipeline.Options{Config: cfg, Runner: runner, FS: fs, Python: py})
//	report, err := p.Run(ctx)
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/eggybyte-technology/clientgen/internal/configschema"
	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/core/log"
	"github.com/eggybyte-technology/clientgen/internal/discovery"
	"github.com/eggybyte-technology/clientgen/internal/extract"
	"github.com/eggybyte-technology/clientgen/internal/generators"
	"github.com/eggybyte-technology/clientgen/internal/layout"
	"github.com/eggybyte-technology/clientgen/internal/migrate"
	"github.com/eggybyte-technology/clientgen/internal/projectfs"
	"github.com/eggybyte-technology/clientgen/internal/pyenv"
	"github.com/eggybyte-technology/clientgen/internal/schema"
	"github.com/eggybyte-technology/clientgen/internal/toolrunner"
	"github.com/eggybyte-technology/clientgen/internal/ui"
)

// Options configure a Pipeline.
//
// Parameters:
//   - Config: Loaded and validated configuration
//   - Runner: Tool runner; its dry-run flag selects dry-run mode
//   - FS: File system for output preparation; must share the runner's dry-run flag
//   - Python: Resolved interpreter
//   - Roots: Package roots; when nil they come from Resolver and the interpreter
//   - Resolver: Virtualenv resolver used when Roots is nil
//   - Extractor: Replaces the extractor selected by extraction.policy
//   - Logger: Diagnostic logger
//   - RunID: Run identifier; generated when empty
type Options struct {
	Config    *configschema.Config
	Runner    *toolrunner.Runner
	FS        *projectfs.ProjectFS
	Python    string
	Roots     []string
	Resolver  *pyenv.Resolver
	Extractor extract.Extractor
	Logger    log.Logger
	RunID     string
}

// Pipeline processes the services of one namespace.
type Pipeline struct {
	opts   Options
	config *configschema.Config
	runner *toolrunner.Runner
	logger log.Logger
	runID  string
	now    func() time.Time
}

// New validates opts and creates a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Config == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "pipeline: configuration is required")
	}
	if opts.Runner == nil {
		opts.Runner = toolrunner.NewRunner("")
	}
	if opts.FS == nil {
		opts.FS = projectfs.New(".")
		opts.FS.SetDryRun(opts.Runner.DryRun())
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	return &Pipeline{
		opts:   opts,
		config: opts.Config,
		runner: opts.Runner,
		logger: opts.Logger.With("run_id", opts.RunID),
		runID:  opts.RunID,
		now:    time.Now,
	}, nil
}

// RunID returns the run identifier.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Discover returns the namespace's services without extracting anything.
func (p *Pipeline) Discover(ctx context.Context) ([]discovery.Service, error) {
	roots := p.opts.Roots
	if roots == nil {
		var err error
		roots, err = discovery.RootSource{
			SearchPaths: p.config.SearchPaths,
			Resolver:    p.opts.Resolver,
			Runner:      p.runner,
			Python:      p.opts.Python,
			Logger:      p.logger,
		}.Roots(ctx)
		if err != nil {
			return nil, err
		}
	}

	d := discovery.New(p.config.Namespace, p.config.EntryModule, roots, discovery.WithLogger(p.logger))
	p.logger.Debug("package roots", "roots", d.Roots())
	return d.Collect(), nil
}

// Run discovers the services and processes them in discovery order.
//
// Parameters:
//   - ctx: Context for cancellation; cancelling it aborts the run
//
// Returns:
//   - *Report: Per-service outcomes; non-nil whenever discovery ran
//   - error: Setup failure, CodeAborted on cancellation or a fail_fast abort
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	dry := p.runner.DryRun()
	report := &Report{
		RunID:     p.runID,
		Namespace: p.config.Namespace,
		Policy:    p.config.Extraction.Policy,
		DryRun:    dry,
		Started:   p.now(),
	}
	defer func() { report.Duration = p.now().Sub(report.Started) }()

	if dry {
		ui.Service("", "🌿", "DRY-RUN – no SDKs will be written.")
	}

	services, err := p.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if len(services) == 0 {
		ui.Service("", "❗", "No FastAPI services with `%s` found in the '%s.' namespace",
			p.config.AppAttribute, p.config.Namespace)
		return report, nil
	}
	p.logger.Info("services discovered", log.Int("count", len(services)))

	generator, err := generators.NewSDKGenerator(p.opts.FS, p.runner, p.config, p.opts.Python)
	if err != nil {
		return report, err
	}
	generator.SetLogger(p.logger)

	extractor := p.opts.Extractor
	if extractor == nil {
		extractor, err = extract.New(p.config.Extraction.Policy, extract.Options{
			Python:     p.opts.Python,
			Runner:     p.runner,
			Timeout:    p.config.Extraction.Timeout,
			PythonPath: p.config.SearchPaths,
			Logger:     p.logger,
		})
		if err != nil {
			return report, err
		}
	}
	defer func() {
		if err := extractor.Close(); err != nil {
			p.logger.Warn("closing extractor", "error", err.Error())
		}
	}()

	var migrator *migrate.Migrator
	if p.config.Migration.IsEnabled() {
		migrator = migrate.New(p.runner, p.config.Migration.Tools, p.config.Migration.Timeout, p.logger)
	}

	steps := &steps{
		pipeline:  p,
		extractor: extractor,
		generator: generator,
		migrator:  migrator,
		dry:       dry,
	}
	for _, svc := range services {
		if err := ctx.Err(); err != nil {
			report.Aborted = true
			return report, errors.Wrap(errors.CodeAborted, "pipeline.run", err)
		}

		res, err := steps.process(ctx, svc)
		report.Results = append(report.Results, res)
		if err != nil {
			report.Aborted = true
			var e *errors.E
			if errors.As(err, &e) {
				p.logger.Error(err, "run aborted", e.Details...)
			}
			return report, err
		}
	}
	return report, nil
}

// steps holds the per-run collaborators shared by every service.
type steps struct {
	pipeline  *Pipeline
	extractor extract.Extractor
	generator *generators.SDKGenerator
	migrator  *migrate.Migrator
	dry       bool
}

// process runs one service through the state machine. A non-nil error aborts
// the whole run.
func (s *steps) process(ctx context.Context, svc discovery.Service) (*ServiceResult, error) {
	p := s.pipeline
	config := p.config
	names := layout.NamesFor(config.Namespace, svc.Name, config.EntryModule)
	logger := p.logger.With("service", names.ServiceName)

	res := &ServiceResult{Service: svc, Names: names, State: StateDiscovered}
	started := p.now()
	defer func() { res.Duration = p.now().Sub(started) }()

	schemaPath, err := layout.Resolve(config.Output.Root, "schema_path", config.Output.SchemaPath, names)
	if err != nil {
		return res, s.fail(ctx, res, StageExtract, err, logger)
	}
	res.SchemaPath = schemaPath

	err = s.extractor.Extract(ctx, extract.Job{
		Module: svc.Module,
		Attr:   config.AppAttribute,
		Output: schemaPath,
		Label:  names.ServiceName,
	})
	if err != nil {
		return res, s.fail(ctx, res, StageExtract, err, logger)
	}

	if !s.dry {
		summary, err := schema.Load(ctx, schemaPath)
		if err != nil {
			return res, s.fail(ctx, res, StageInspect, err, logger)
		}
		res.Summary = summary
		ui.Service(names.ServiceName, "🔧", "openapi.json → %s", schemaPath)
		ui.Debug("%s: %s", names.ServiceName, summary)
		for _, warning := range summary.Warnings {
			ui.ServiceWarning(names.ServiceName, "OpenAPI validation: %s", warning)
			logger.Warn("openapi validation failed, generating anyway", log.Str("detail", warning))
		}
	}
	if err := res.advance(StateSchemaExtracted); err != nil {
		return res, err
	}

	gen, err := s.generator.Generate(ctx, names, schemaPath)
	if gen != nil {
		res.OutputDir = gen.OutputDir
	}
	if err != nil {
		if failErr := s.fail(ctx, res, StageGenerate, err, logger); failErr != nil {
			return res, failErr
		}
		if config.FailFast {
			return res, errors.Build(errors.CodeAborted).
				WithOp("pipeline.run").
				WithErr(err).
				WithMsgf("aborting after %s failed (fail_fast)", names.ServiceName).
				WithDetails(log.Str("service", names.ServiceName), log.Str("stage", string(StageGenerate))).
				Err()
		}
		return res, nil
	}

	if s.dry {
		if s.migrator != nil {
			res.Migration, _ = s.migrator.Run(ctx, names.ServiceName, res.OutputDir)
		}
		return res, res.advance(StatePlanned)
	}

	ui.ServiceSuccess(names.ServiceName, "SDK ready")
	if err := res.advance(StateSDKGenerated); err != nil {
		return res, err
	}
	logger.Info("sdk generated", log.Str("output", res.OutputDir))

	if s.migrator != nil {
		status, _ := s.migrator.Run(ctx, names.ServiceName, res.OutputDir)
		res.Migration = status
		if status == migrate.StatusMigrated {
			if err := res.advance(StateMigrated); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// fail records a per-service failure. It returns an error only when the
// failure came from cancellation, which aborts the run.
func (s *steps) fail(ctx context.Context, res *ServiceResult, stage Stage, err error, logger log.Logger) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.err = err
		res.Error = err.Error()
		return errors.Wrap(errors.CodeAborted, "pipeline.run", ctxErr)
	}
	if skipErr := res.skip(stage, err); skipErr != nil {
		return skipErr
	}
	ui.ServiceWarning(res.Names.ServiceName, "Skip %s (%s failed): %v", res.Service.Module, stage, err)
	logger.Error(err, "service skipped",
		log.Str("module", res.Service.Module), log.Str("stage", string(stage)), log.Str("op", errors.OpOf(err)))
	return nil
}
