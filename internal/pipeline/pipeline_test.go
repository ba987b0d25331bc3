package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eggybyte-technology/clientgen/internal/configschema"
	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/migrate"
	"github.com/eggybyte-technology/clientgen/internal/projectfs"
	"github.com/eggybyte-technology/clientgen/internal/testingx"
	"github.com/eggybyte-technology/clientgen/internal/toolrunner"
	"github.com/eggybyte-technology/clientgen/internal/ui"
)

const helperEnv = "PIPELINE_HELPER_PROCESS"

func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		os.Exit(fakeTool(os.Args[1:]))
	}
	os.Exit(m.Run())
}

// fakeTool plays the interpreter running the extraction bootstrap, the SDK
// generator module and the lockfile migration tool.
func fakeTool(args []string) int {
	switch {
	case len(args) == 5 && args[0] == "-c":
		return fakeExtract(args[2], args[4])
	case len(args) > 2 && args[0] == "-m" && args[1] == "openapi_python_client":
		return fakeGenerate(args[2:])
	case len(args) == 1 && args[0] == "migrate-to-uv":
		return writeFile("migrated.txt", "ok")
	}
	fmt.Fprintf(os.Stderr, "unexpected invocation: %q\n", args)
	return 64
}

func fakeExtract(module, output string) int {
	switch {
	case strings.Contains(module, ".noapp."):
		fmt.Fprintf(os.Stderr, "module '%s' has no attribute 'app'\n", module)
		return 3
	case strings.Contains(module, ".badschema."):
		return writeFile(output, `{"openapi": "3.1.0"}`)
	case strings.Contains(module, ".legacy."):
		// pydantic v1 output: numeric exclusiveMinimum is not valid OpenAPI 3.0
		return writeFile(output, `{
  "openapi": "3.0.2",
  "info": {"title": "legacy", "version": "0.1.0"},
  "paths": {
    "/orders/{order_id}": {
      "get": {
        "parameters": [{"name": "order_id", "in": "path", "required": true,
          "schema": {"title": "Order Id", "exclusiveMinimum": 0, "type": "integer"}}],
        "responses": {"200": {"description": "ok"}}
      }
    }
  }
}`)
	}
	return writeFile(output, fmt.Sprintf(`{
  "openapi": "3.1.0",
  "info": {"title": %q, "version": "0.1.0"},
  "paths": {
    "/items/{item_id}": {
      "get": {"operationId": "read_item", "responses": {"200": {"description": "ok"}}}
    }
  }
}`, module))
}

func fakeGenerate(args []string) int {
	flags := map[string]string{}
	for i := 0; i < len(args)-1; i++ {
		if strings.HasPrefix(args[i], "--") {
			flags[args[i]] = args[i+1]
		}
	}
	out := flags["--output-path"]
	if strings.Contains(out, "broken") {
		fmt.Fprint(os.Stderr, "Unable to generate the client\n")
		return 1
	}
	override, err := os.ReadFile(flags["--config"])
	if err != nil {
		return 66
	}
	if code := writeFile(filepath.Join(out, "override.yml"), string(override)); code != 0 {
		return code
	}
	return writeFile(filepath.Join(out, "schema-path.txt"), flags["--path"])
}

func writeFile(path, content string) int {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 70
	}
	return 0
}

type fixture struct {
	config *configschema.Config
	runner *toolrunner.Runner
	fs     *projectfs.ProjectFS
	logger *testingx.MockLogger
	tree   string
	out    *bytes.Buffer
}

func newFixture(t *testing.T, dry bool, services ...string) *fixture {
	t.Helper()
	f := &fixture{
		config: configschema.Default(),
		runner: toolrunner.NewRunner(""),
		fs:     projectfs.New("."),
		logger: testingx.NewMockLogger(t),
		tree:   testingx.ServiceTree(t, "ab_service", "main", services...),
		out:    &bytes.Buffer{},
	}
	f.config.Output.Root = t.TempDir()

	f.runner.SetEnv(map[string]string{helperEnv: "1"})
	f.runner.SetDryRun(dry)
	f.runner.SetLookPath(func(name string) (string, error) {
		return "", fmt.Errorf("%s: not found", name)
	})
	f.fs.SetDryRun(dry)

	restore := ui.SetOutput(f.out, f.out)
	t.Cleanup(restore)
	return f
}

func (f *fixture) run(ctx context.Context) (*Report, error) {
	p, err := New(Options{
		Config: f.config,
		Runner: f.runner,
		FS:     f.fs,
		Python: os.Args[0],
		Roots:  []string{f.tree},
		Logger: f.logger,
		RunID:  "run-1",
	})
	if err != nil {
		return nil, err
	}
	return p.Run(ctx)
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t, false, "billing")

	report, err := f.run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	res := report.Results[0]
	assert.Equal(t, StateSDKGenerated, res.State)
	assert.Equal(t, migrate.StatusSkipped, res.Migration)
	assert.Empty(t, res.Error)

	schemaPath := filepath.Join(f.config.Output.Root, "service-billing-openapi.json")
	outDir := filepath.Join(f.config.Output.Root, "client-billing")
	assert.Equal(t, schemaPath, res.SchemaPath)
	assert.Equal(t, outDir, res.OutputDir)

	doc, err := os.ReadFile(schemaPath)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "/items/{item_id}")

	require.NotNil(t, res.Summary)
	assert.Equal(t, 1, res.Summary.Paths)
	assert.Equal(t, 1, res.Summary.Operations)

	got, err := os.ReadFile(filepath.Join(outDir, "schema-path.txt"))
	require.NoError(t, err)
	assert.Equal(t, schemaPath, string(got))

	override, err := os.ReadFile(filepath.Join(outDir, "override.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(override), "package_name_override: ab_client_billing")

	out := f.out.String()
	assert.Contains(t, out, "🔧 [service-billing] openapi.json → "+schemaPath)
	assert.Contains(t, out, "[service-billing] SDK ready")
	assert.Equal(t, "1 service: 1 generated", report.String())
	assert.Equal(t, "run-1", report.RunID)
	assert.False(t, report.Aborted)
}

func TestRunNoServices(t *testing.T) {
	f := newFixture(t, false)

	report, err := f.run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Equal(t, "no services found", report.String())
	assert.Contains(t, f.out.String(), "No FastAPI services with `app` found in the 'ab_service.' namespace")
}

func TestRunMissingAttributeContinues(t *testing.T) {
	f := newFixture(t, false, "billing", "noapp")

	report, err := f.run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	billing, ok := report.Lookup("billing")
	require.True(t, ok)
	assert.Equal(t, StateSDKGenerated, billing.State)

	noapp, ok := report.Lookup("noapp")
	require.True(t, ok)
	assert.Equal(t, StateSkipped, noapp.State)
	assert.Equal(t, StageExtract, noapp.Stage)
	assert.Contains(t, noapp.Error, "ab_service.noapp.main")
	assert.Contains(t, noapp.Error, "has no attribute 'app'")
	testingx.AssertErrorCode(t, noapp.Err(), errors.CodeNotFound)

	assert.Equal(t, "2 services: 1 generated, 1 skipped", report.String())
	assert.Contains(t, f.out.String(), "Skip ab_service.noapp.main")

	entry, found := f.logger.Find("ERROR", "service skipped")
	require.True(t, found)
	assert.Equal(t, "run-1", entry.Fields["run_id"])
	assert.Equal(t, "service-noapp", entry.Fields["service"])
	assert.Equal(t, "extract", entry.Fields["stage"])
	assert.Equal(t, "extract.isolated", entry.Fields["op"])
}

func TestRunInvalidSchemaSkipped(t *testing.T) {
	f := newFixture(t, false, "badschema")

	report, err := f.run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, StateSkipped, report.Results[0].State)
	assert.Equal(t, StageInspect, report.Results[0].Stage)
	testingx.AssertErrorCode(t, report.Results[0].Err(), errors.CodeInvalidArgument)
	assert.NoDirExists(t, filepath.Join(f.config.Output.Root, "client-badschema"))
}

func TestRunOpenAPIValidationWarningStillGenerates(t *testing.T) {
	f := newFixture(t, false, "legacy")

	report, err := f.run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	res := report.Results[0]
	assert.Equal(t, StateSDKGenerated, res.State)
	require.NotNil(t, res.Summary)
	require.NotEmpty(t, res.Summary.Warnings)
	assert.FileExists(t, filepath.Join(res.OutputDir, "schema-path.txt"))

	assert.Contains(t, f.out.String(), "[service-legacy] OpenAPI validation:")
	f.logger.AssertLogged("WARN", "openapi validation failed, generating anyway")
}

func TestRunGenerationFailureContinues(t *testing.T) {
	f := newFixture(t, false, "billing", "broken_gen", "zeta")

	report, err := f.run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 3)

	broken, _ := report.Lookup("broken_gen")
	assert.Equal(t, StateSkipped, broken.State)
	assert.Equal(t, StageGenerate, broken.Stage)
	assert.Contains(t, broken.Error, "Unable to generate the client")
	testingx.AssertErrorCode(t, broken.Err(), errors.CodeProcessFailed)

	zeta, _ := report.Lookup("zeta")
	assert.Equal(t, StateSDKGenerated, zeta.State)
	assert.Equal(t, 2, report.Generated())
}

func TestRunFailFastAborts(t *testing.T) {
	f := newFixture(t, false, "billing", "broken_gen", "zeta")
	f.config.FailFast = true

	report, err := f.run(context.Background())
	require.Error(t, err)
	testingx.AssertErrorCode(t, err, errors.CodeAborted)
	assert.Contains(t, err.Error(), "service-broken-gen")

	require.NotNil(t, report)
	assert.True(t, report.Aborted)
	require.Len(t, report.Results, 2)
	_, processed := report.Lookup("zeta")
	assert.False(t, processed)

	entry, found := f.logger.Find("ERROR", "run aborted")
	require.True(t, found)
	assert.Equal(t, "service-broken-gen", entry.Fields["service"])
	assert.Equal(t, "generate", entry.Fields["stage"])
}

func TestRunMigratesLockfile(t *testing.T) {
	f := newFixture(t, false, "billing")
	f.runner.SetLookPath(func(name string) (string, error) {
		if name == "uvx" {
			return os.Args[0], nil
		}
		return "", fmt.Errorf("%s: not found", name)
	})

	report, err := f.run(context.Background())
	require.NoError(t, err)
	res := report.Results[0]
	assert.Equal(t, StateMigrated, res.State)
	assert.Equal(t, migrate.StatusMigrated, res.Migration)
	assert.FileExists(t, filepath.Join(res.OutputDir, "migrated.txt"))
	assert.Equal(t, "1 service: 1 generated (1 migrated)", report.String())
}

func TestRunMigrationDisabled(t *testing.T) {
	f := newFixture(t, false, "billing")
	disabled := false
	f.config.Migration.Enabled = &disabled

	report, err := f.run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSDKGenerated, report.Results[0].State)
	assert.Empty(t, report.Results[0].Migration)
	assert.NotContains(t, f.out.String(), "lockfile migration")
}

func TestRunDryRunWritesNothing(t *testing.T) {
	f := newFixture(t, true, "billing", "user_profile")

	report, err := f.run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	require.Len(t, report.Results, 2)
	for _, res := range report.Results {
		assert.Equal(t, StatePlanned, res.State, res.Service.Name)
		assert.Nil(t, res.Summary)
	}
	assert.Equal(t, "2 services: 2 planned", report.String())
	assert.Equal(t, 0, report.Generated())

	entries, err := os.ReadDir(f.config.Output.Root)
	require.NoError(t, err)
	assert.Empty(t, entries)

	out := f.out.String()
	assert.Contains(t, out, "DRY-RUN – no SDKs will be written.")
	assert.Contains(t, out, "[DRY] [service-user-profile] Would run:")
	assert.Contains(t, out, "ab_service.user_profile.main")
	assert.Contains(t, out, "openapi_python_client generate")
	assert.NotContains(t, out, "SDK ready")
}

func TestRunDryRunPlansMigration(t *testing.T) {
	f := newFixture(t, true, "billing")
	f.runner.SetLookPath(func(name string) (string, error) {
		if name == "uvx" {
			return os.Args[0], nil
		}
		return "", fmt.Errorf("%s: not found", name)
	})

	report, err := f.run(context.Background())
	require.NoError(t, err)
	res := report.Results[0]
	assert.Equal(t, StatePlanned, res.State)
	assert.Equal(t, migrate.StatusPlanned, res.Migration)
	assert.Equal(t, "1 service: 1 planned", report.String())
	assert.Contains(t, f.out.String(), "migrate-to-uv")
	assert.NotContains(t, f.out.String(), "Lockfile migrated")
}

func TestRunCancelledContext(t *testing.T) {
	f := newFixture(t, false, "billing")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.run(ctx)
	testingx.AssertErrorCode(t, err, errors.CodeAborted)
	require.NotNil(t, report)
	assert.True(t, report.Aborted)
	assert.Empty(t, report.Results)
	assert.NoFileExists(t, filepath.Join(f.config.Output.Root, "service-billing-openapi.json"))
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(Options{})
	testingx.AssertErrorCode(t, err, errors.CodeInvalidArgument)
}

func TestDiscoverUsesRoots(t *testing.T) {
	f := newFixture(t, false, "billing", "user_profile")
	p, err := New(Options{Config: f.config, Runner: f.runner, Roots: []string{f.tree}})
	require.NoError(t, err)
	assert.NotEmpty(t, p.RunID())

	services, err := p.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, "ab_service.billing.main", services[0].Module)
	assert.Equal(t, "ab_service.user_profile.main", services[1].Module)
}
