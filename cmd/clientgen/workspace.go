package main

import (
	"io"
	"maps"
	"os"
	"slices"

	"github.com/eggybyte-technology/clientgen/internal/configschema"
	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/core/log"
	"github.com/eggybyte-technology/clientgen/internal/envloader"
	"github.com/eggybyte-technology/clientgen/internal/logx"
	"github.com/eggybyte-technology/clientgen/internal/projectfs"
	"github.com/eggybyte-technology/clientgen/internal/pyenv"
	"github.com/eggybyte-technology/clientgen/internal/toolrunner"
	"github.com/eggybyte-technology/clientgen/internal/ui"
)

// stderrLogLimit caps the captured tool output attached to log records.
const stderrLogLimit = 4096

// logOutput receives diagnostic log records.
var logOutput io.Writer = os.Stderr

// workspace bundles what every command needs once the configuration is loaded.
type workspace struct {
	config   *configschema.Config
	runner   *toolrunner.Runner
	fs       *projectfs.ProjectFS
	resolver *pyenv.Resolver
	logger   log.Logger
}

// loadConfig loads the configuration file with flag overrides and reports
// its diagnostics. Errors in the configuration are returned as one error.
func loadConfig(ov configschema.Overrides) (*configschema.Config, error) {
	config, diags := configschema.Load(configPath, configschema.WithOverrides(ov))
	for _, d := range diags.Items() {
		switch d.Severity {
		case configschema.SeverityError:
			ui.Error("%s", d)
		case configschema.SeverityWarning:
			ui.Warning("%s", d)
		default:
			ui.Debug("%s", d)
		}
	}
	if diags.HasErrors() {
		return nil, diags.Err()
	}
	return config, nil
}

// newLogger builds the diagnostic logger. --log-level wins over the
// configuration; --verbose raises the default to debug. Fields named in
// masked, the variables loaded from env_file, are redacted.
func newLogger(config *configschema.Config, masked []string) (log.Logger, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	if config.LogLevel != "" {
		level = config.LogLevel
	}
	if logLevel != "" {
		level = logLevel
	}

	parsed, err := logx.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(errors.CodeInvalidArgument, "cli.logger", err, "invalid log level %q", level)
	}

	opts := []logx.Option{
		logx.WithLevel(parsed),
		logx.WithWriter(logOutput),
		logx.WithPayloadLimit(stderrLogLimit),
		logx.WithSensitiveFields(masked...),
	}
	if jsonOutput {
		opts = append(opts, logx.WithFormat(logx.FormatJSON), logx.WithTimestamp(true))
	} else if f, ok := logOutput.(*os.File); ok && isTerminal(f) {
		opts = append(opts, logx.WithColor(true))
	}
	return logx.New(opts...), nil
}

// newWorkspace wires the runner, file system and interpreter resolver for config.
func newWorkspace(config *configschema.Config, dry bool) (*workspace, error) {
	var vars map[string]string
	if config.EnvFile != "" {
		var err error
		vars, err = envloader.LoadEnvFile(config.EnvFile)
		if err != nil {
			return nil, errors.Wrapf(errors.CodeInvalidArgument, "cli.env_file", err, "cannot load env_file %s", config.EnvFile)
		}
		ui.Debug("Loaded %d variables from %s", len(vars), config.EnvFile)
	}

	logger, err := newLogger(config, slices.Sorted(maps.Keys(vars)))
	if err != nil {
		return nil, err
	}

	runner := toolrunner.NewRunner("")
	runner.SetVerbose(verbose)
	runner.SetDryRun(dry)
	runner.SetLogger(logger)
	runner.SetEnv(vars)

	fs := projectfs.New(".")
	fs.SetVerbose(verbose)
	fs.SetDryRun(dry)

	return &workspace{
		config:   config,
		runner:   runner,
		fs:       fs,
		resolver: &pyenv.Resolver{Python: config.Python, Venv: config.Venv},
		logger:   logger,
	}, nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
