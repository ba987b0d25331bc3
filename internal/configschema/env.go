package configschema

import (
	"time"

	env "github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CLIENTGEN_"

// envOverrides mirrors the subset of Config that can be set from the
// environment. Unset variables leave the pointer fields nil.
type envOverrides struct {
	Namespace         *string        `env:"NAMESPACE"`
	Python            *string        `env:"PYTHON"`
	Venv              *string        `env:"VENV"`
	SearchPaths       []string       `env:"SEARCH_PATHS" envSeparator:":"`
	OutputRoot        *string        `env:"OUTPUT_ROOT"`
	Policy            *string        `env:"POLICY"`
	ExtractionTimeout *time.Duration `env:"EXTRACTION_TIMEOUT"`
	FailFast          *bool          `env:"FAIL_FAST"`
	Preset            *string        `env:"PRESET"`
	LogLevel          *string        `env:"LOG_LEVEL"`
	EnvFile           *string        `env:"ENV_FILE"`
	MetricsFile       *string        `env:"METRICS_FILE"`
}

// applyEnv overlays CLIENTGEN_* variables on config. A nil environ reads the
// process environment.
func applyEnv(config *Config, environ map[string]string) error {
	var ov envOverrides
	if err := env.ParseWithOptions(&ov, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}); err != nil {
		return err
	}

	setString(&config.Namespace, ov.Namespace)
	setString(&config.Python, ov.Python)
	setString(&config.Venv, ov.Venv)
	setString(&config.Output.Root, ov.OutputRoot)
	setString(&config.Extraction.Policy, ov.Policy)
	setString(&config.Generator.Preset, ov.Preset)
	setString(&config.LogLevel, ov.LogLevel)
	setString(&config.EnvFile, ov.EnvFile)
	setString(&config.MetricsFile, ov.MetricsFile)
	if len(ov.SearchPaths) > 0 {
		config.SearchPaths = ov.SearchPaths
	}
	if ov.ExtractionTimeout != nil {
		config.Extraction.Timeout = *ov.ExtractionTimeout
	}
	if ov.FailFast != nil {
		config.FailFast = *ov.FailFast
	}
	return nil
}
