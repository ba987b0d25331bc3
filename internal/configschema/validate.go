package configschema

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"text/template"

	"github.com/go-playground/validator/v10"
)

var (
	identRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	moduleRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// IsIdentifier reports whether s is a valid Python identifier (ASCII subset).
func IsIdentifier(s string) bool {
	return identRe.MatchString(s)
}

// newValidator returns a validator that reports yaml field names and knows
// the pyident and pymodule tags.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("pyident", func(fl validator.FieldLevel) bool {
		return identRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("pymodule", func(fl validator.FieldLevel) bool {
		return moduleRe.MatchString(fl.Field().String())
	})
	return v
}

// validateConfig runs tag validation followed by rules that span fields.
func validateConfig(config *Config, diags *Diagnostics) {
	if err := newValidator().Struct(config); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				path := fieldPath(fe)
				diags.AddError(fieldMessage(fe), path, fieldSuggestion(fe))
			}
		} else {
			diags.AddError(fmt.Sprintf("validation failed: %v", err), "", "")
		}
	}

	if config.Generator.Preset == PresetCustom && len(config.Generator.Command) == 0 {
		diags.AddError("generator.command is required for the custom preset", "generator.command",
			`Set e.g. ["{{.Python}}", "-m", "my_generator", "{{.SchemaPath}}", "{{.OutputDir}}"]`)
	}
	if config.Generator.Preset == PresetCustom && config.Output.SDKDir == "" {
		diags.AddError("output.sdk_dir is required for the custom preset", "output.sdk_dir",
			`Set e.g. "client-{{.Package}}"`)
	}

	templates := map[string]string{
		"output.schema_path":     config.Output.SchemaPath,
		"output.sdk_dir":         config.Output.SDKDir,
		"generator.package_name": config.Generator.PackageName,
		"generator.project_name": config.Generator.ProjectName,
	}
	for i, arg := range config.Generator.Command {
		templates[fmt.Sprintf("generator.command[%d]", i)] = arg
	}
	for path, text := range templates {
		if _, err := template.New(path).Parse(text); err != nil {
			diags.AddError(fmt.Sprintf("Invalid template: %v", err), path, "Check the {{ }} placeholders")
		}
	}

	if config.Extraction.Policy == PolicyShared {
		diags.AddWarning("Shared extraction imports every service into one interpreter; import-time side effects can collide",
			"extraction.policy", "Use 'isolated' unless start-up time matters")
	}
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fmt.Sprint(fe.Value()))
	case "pyident":
		return fmt.Sprintf("%s must be a Python identifier, got %q", fe.Field(), fmt.Sprint(fe.Value()))
	case "pymodule":
		return fmt.Sprintf("%s must be a dotted Python module name, got %q", fe.Field(), fmt.Sprint(fe.Value()))
	case "gt":
		return fmt.Sprintf("%s must be positive", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func fieldSuggestion(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return "Use one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt":
		return "Use a duration such as 30s or 5m"
	default:
		return ""
	}
}
