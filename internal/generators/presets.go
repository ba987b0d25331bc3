package generators

import (
	"strings"

	"github.com/eggybyte-technology/clientgen/internal/configschema"
	"github.com/eggybyte-technology/clientgen/internal/core/errors"
)

// Preset is a generator command line plus its default output directory.
// Both are text/template strings rendered against TemplateData.
type Preset struct {
	Name    string
	Command []string
	SDKDir  string
}

var presets = map[string]Preset{
	configschema.PresetOpenAPIPythonClient: {
		Name: configschema.PresetOpenAPIPythonClient,
		Command: []string{
			"{{.Python}}", "-m", "openapi_python_client", "generate",
			"--path", "{{.SchemaPath}}",
			"--output-path", "{{.OutputDir}}",
			"--config", "{{.ConfigPath}}",
			"--overwrite",
		},
		SDKDir: "{{.ClientName}}",
	},
	configschema.PresetABGenerator: {
		Name:    configschema.PresetABGenerator,
		Command: []string{"{{.Python}}", "-m", "ab_openapi_python_generator", "{{.SchemaPath}}", "{{.OutputDir}}"},
		SDKDir:  "src/ab_client/{{.Module}}",
	},
}

// PresetFor resolves the preset named in the configuration. The custom
// preset takes its command from generator.command; output.sdk_dir, when set,
// overrides any preset's output directory.
func PresetFor(config *configschema.Config) (Preset, error) {
	var p Preset
	switch name := config.Generator.Preset; name {
	case configschema.PresetCustom:
		p = Preset{Name: name, Command: config.Generator.Command}
	default:
		known, ok := presets[name]
		if !ok {
			return Preset{}, errors.Newf(errors.CodeInvalidArgument, "unknown generator preset %q", name)
		}
		p = known
		p.Command = append([]string(nil), known.Command...)
	}

	if config.Output.SDKDir != "" {
		p.SDKDir = config.Output.SDKDir
	}
	if len(p.Command) == 0 {
		return Preset{}, errors.New(errors.CodeInvalidArgument, "generator command is empty")
	}
	if p.SDKDir == "" {
		return Preset{}, errors.New(errors.CodeInvalidArgument, "output.sdk_dir is required for the custom preset")
	}
	return p, nil
}

// UsesOverride reports whether the command references the override file.
func (p Preset) UsesOverride() bool {
	for _, arg := range p.Command {
		if strings.Contains(arg, ".ConfigPath") {
			return true
		}
	}
	return false
}

// Module returns the Python module the preset runs with -m, or "" for
// commands that do not follow that form.
func (p Preset) Module() string {
	for i, arg := range p.Command {
		if arg == "-m" && i+1 < len(p.Command) {
			return p.Command[i+1]
		}
	}
	return ""
}
