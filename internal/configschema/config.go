// Package configschema provides configuration loading and validation for clientgen.
//
// Overview:
//   - Responsibility: Parse clientgen.yaml, apply env and flag overrides, fill defaults, validate
//   - Key Types: Config, Overrides, Diagnostics
//   - Concurrency Model: Immutable configuration after loading
//   - Error Semantics: Structured diagnostics with paths and suggestions
//   - Performance Notes: Single-pass parsing
//
// Usage:
//
//	cfg, diags := configschema.Load("clientgen.yaml", configschema.WithOverrides(o))
//	if diags.HasErrors() {
//	    return diags.Err()
//	}
package configschema

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Extraction policies.
const (
	PolicyIsolated = "isolated"
	PolicyShared   = "shared"
)

// Generator presets.
const (
	PresetOpenAPIPythonClient = "openapi-python-client"
	PresetABGenerator         = "ab-openapi-python-generator"
	PresetCustom              = "custom"
)

// DefaultPath is the configuration file looked up when --config is not given.
const DefaultPath = "clientgen.yaml"

// Config represents the complete clientgen configuration.
//
// Parameters:
//   - Namespace: Package whose submodules are services (e.g. ab_service)
//   - EntryModule: Submodule suffix holding the application (e.g. main)
//   - AppAttribute: Attribute holding the application object (e.g. app)
//   - Python: Interpreter path; resolved from the environment when empty
//   - SearchPaths: Extra package roots scanned before the virtualenv
//   - Venv: Virtualenv directory used for interpreter and site-packages lookup
//   - FailFast: Abort the run after the first failed service
//   - EnvFile: .env file merged into every subprocess environment
//
// Concurrency:
//   - Immutable after loading
type Config struct {
	ConfigVersion string           `yaml:"config_version"`
	Namespace     string           `yaml:"namespace" validate:"required,pymodule"`
	EntryModule   string           `yaml:"entry_module" validate:"required,pyident"`
	AppAttribute  string           `yaml:"app_attribute" validate:"required,pyident"`
	Python        string           `yaml:"python,omitempty"`
	SearchPaths   []string         `yaml:"search_paths,omitempty"`
	Venv          string           `yaml:"venv"`
	FailFast      bool             `yaml:"fail_fast"`
	EnvFile       string           `yaml:"env_file,omitempty"`
	LogLevel      string           `yaml:"log_level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
	MetricsFile   string           `yaml:"metrics_file,omitempty"`
	Extraction    ExtractionConfig `yaml:"extraction"`
	Output        OutputConfig     `yaml:"output"`
	Generator     GeneratorConfig  `yaml:"generator"`
	Migration     MigrationConfig  `yaml:"migration"`
}

// ExtractionConfig selects how schemas are obtained from services.
type ExtractionConfig struct {
	Policy  string        `yaml:"policy" validate:"required,oneof=isolated shared"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// OutputConfig defines where artifacts are written. SchemaPath and SDKDir
// are text/template strings resolved against Root.
type OutputConfig struct {
	Root       string `yaml:"root" validate:"required"`
	SchemaPath string `yaml:"schema_path" validate:"required"`
	SDKDir     string `yaml:"sdk_dir,omitempty"`
}

// GeneratorConfig defines the SDK generator invocation.
type GeneratorConfig struct {
	Preset      string        `yaml:"preset" validate:"required,oneof=openapi-python-client ab-openapi-python-generator custom"`
	Command     []string      `yaml:"command,omitempty"`
	CleanOutput bool          `yaml:"clean_output"`
	Lockfiles   []string      `yaml:"lockfiles,omitempty"`
	PackageName string        `yaml:"package_name,omitempty"`
	ProjectName string        `yaml:"project_name,omitempty"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
}

// MigrationConfig defines the post-generation lockfile migration.
type MigrationConfig struct {
	Enabled *bool         `yaml:"enabled,omitempty"`
	Tools   []string      `yaml:"tools,omitempty" validate:"dive,oneof=uvx uv"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// IsEnabled reports whether migration runs; it defaults to true.
func (m MigrationConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Overrides carries command-line flag values. Nil fields leave the loaded
// configuration untouched.
type Overrides struct {
	Namespace   *string
	Python      *string
	OutputRoot  *string
	Policy      *string
	FailFast    *bool
	Preset      *string
	LogLevel    *string
	MetricsFile *string
}

type loadOptions struct {
	environ   map[string]string
	overrides Overrides
}

// LoadOption customizes Load.
type LoadOption func(*loadOptions)

// WithEnvironment replaces the process environment used for CLIENTGEN_* overrides.
func WithEnvironment(environ map[string]string) LoadOption {
	return func(o *loadOptions) { o.environ = environ }
}

// WithOverrides applies command-line flag overrides.
func WithOverrides(ov Overrides) LoadOption {
	return func(o *loadOptions) { o.overrides = ov }
}

// Load reads clientgen.yaml, then applies environment overrides, flag
// overrides and defaults, in that order, and validates the result.
// A missing file is not an error: defaults are used and an info diagnostic is recorded.
//
// Parameters:
//   - path: Configuration file path
//   - opts: Environment and flag overrides
//
// Returns:
//   - *Config: Loaded configuration (nil only when the file cannot be parsed)
//   - *Diagnostics: Issues found while loading
func Load(path string, opts ...LoadOption) (*Config, *Diagnostics) {
	diags := NewDiagnostics()
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	var config Config
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		diags.AddInfo("Configuration file not found, using defaults", path, "Run 'clientgen init' to create one")
	case err != nil:
		diags.AddError(fmt.Sprintf("Failed to read configuration file: %v", err), path, "Check file permissions")
		return nil, diags
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			diags.AddError(fmt.Sprintf("Failed to parse YAML: %v", err), path, "Check YAML syntax")
			return nil, diags
		}
	}

	if err := applyEnv(&config, o.environ); err != nil {
		diags.AddError(fmt.Sprintf("Invalid environment override: %v", err), "CLIENTGEN_*", "Check CLIENTGEN_ variables")
	}
	applyOverrides(&config, o.overrides)
	applyDefaults(&config)
	validateConfig(&config, diags)

	return &config, diags
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func applyOverrides(config *Config, ov Overrides) {
	setString(&config.Namespace, ov.Namespace)
	setString(&config.Python, ov.Python)
	setString(&config.Output.Root, ov.OutputRoot)
	setString(&config.Extraction.Policy, ov.Policy)
	setString(&config.Generator.Preset, ov.Preset)
	setString(&config.LogLevel, ov.LogLevel)
	setString(&config.MetricsFile, ov.MetricsFile)
	if ov.FailFast != nil {
		config.FailFast = *ov.FailFast
	}
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

// applyDefaults fills in default values for missing configuration.
func applyDefaults(config *Config) {
	if config.ConfigVersion == "" {
		config.ConfigVersion = "1.0"
	}
	if config.Namespace == "" {
		config.Namespace = "ab_service"
	}
	if config.EntryModule == "" {
		config.EntryModule = "main"
	}
	if config.AppAttribute == "" {
		config.AppAttribute = "app"
	}
	if config.Venv == "" {
		config.Venv = ".venv"
	}

	if config.Extraction.Policy == "" {
		config.Extraction.Policy = PolicyIsolated
	}
	if config.Extraction.Timeout == 0 {
		config.Extraction.Timeout = 2 * time.Minute
	}

	if config.Output.Root == "" {
		config.Output.Root = ".."
	}
	if config.Output.SchemaPath == "" {
		config.Output.SchemaPath = "{{.ServiceName}}-openapi.json"
	}

	if config.Generator.Preset == "" {
		config.Generator.Preset = PresetOpenAPIPythonClient
	}
	if config.Generator.Lockfiles == nil {
		config.Generator.Lockfiles = []string{"uv.lock"}
	}
	if config.Generator.PackageName == "" {
		config.Generator.PackageName = "ab_client_{{.Module}}"
	}
	if config.Generator.ProjectName == "" {
		config.Generator.ProjectName = "ab-{{.ClientName}}"
	}
	if config.Generator.Timeout == 0 {
		config.Generator.Timeout = 10 * time.Minute
	}

	if len(config.Migration.Tools) == 0 {
		config.Migration.Tools = []string{"uvx", "uv"}
	}
	if config.Migration.Timeout == 0 {
		config.Migration.Timeout = 5 * time.Minute
	}
}
