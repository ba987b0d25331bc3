package extract

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eggybyte-technology/clientgen/internal/configschema"
	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/testingx"
	"github.com/eggybyte-technology/clientgen/internal/toolrunner"
)

// appModule builds its document through openapi(), the path taken for
// objects without FastAPI routes. It prints while being imported.
const appModule = `print("booting billing")


class App:
    title = "Billing"

    def openapi(self):
        return {
            "openapi": "3.1.0",
            "info": {"title": self.title, "version": "1.0.0"},
            "paths": {"/invoices": {"get": {"responses": {"200": {"description": "ok"}}}}},
        }


app = App()
`

// pythonTree writes an ab_service namespace with billing, noapp and crash
// services and returns the package root.
func pythonTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testingx.WriteFile(t, root, "ab_service/billing/__init__.py", "")
	testingx.WriteFile(t, root, "ab_service/billing/main.py", appModule)
	testingx.WriteFile(t, root, "ab_service/noapp/__init__.py", "")
	testingx.WriteFile(t, root, "ab_service/noapp/main.py", "application = None\n")
	testingx.WriteFile(t, root, "ab_service/crash/__init__.py", "")
	testingx.WriteFile(t, root, "ab_service/crash/main.py", "print(\"starting crash\")\nraise RuntimeError(\"boom\")\n")
	return root
}

func realExtractor(t *testing.T, policy string) Extractor {
	t.Helper()
	python, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not found in PATH")
	}
	ex, err := New(policy, Options{
		Python:     python,
		Runner:     toolrunner.NewRunner(""),
		PythonPath: []string{pythonTree(t)},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ex.Close() })
	return ex
}

func assertBillingDocument(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc), string(data))
	assert.Equal(t, "3.1.0", doc["openapi"])
	assert.Contains(t, doc["paths"], "/invoices")
}

func TestIsolatedRealInterpreter(t *testing.T) {
	ex := realExtractor(t, configschema.PolicyIsolated)
	dir := t.TempDir()
	ctx := context.Background()

	out := filepath.Join(dir, "service-billing-openapi.json")
	require.NoError(t, ex.Extract(ctx, Job{Module: "ab_service.billing.main", Attr: "app", Output: out}))
	assertBillingDocument(t, out)

	err := ex.Extract(ctx, Job{Module: "ab_service.noapp.main", Attr: "app", Output: filepath.Join(dir, "noapp.json")})
	testingx.AssertErrorCode(t, err, errors.CodeNotFound)
	assert.Contains(t, err.Error(), "has no attribute 'app'")
	assert.NoFileExists(t, filepath.Join(dir, "noapp.json"))

	err = ex.Extract(ctx, Job{Module: "ab_service.crash.main", Attr: "app", Output: filepath.Join(dir, "crash.json")})
	testingx.AssertErrorCode(t, err, errors.CodeProcessFailed)
	assert.Contains(t, err.Error(), "exited with code 2")
	assert.Contains(t, err.Error(), "RuntimeError")
	assert.Contains(t, err.Error(), "starting crash")

	err = ex.Extract(ctx, Job{Module: "ab_service.missing.main", Attr: "app", Output: filepath.Join(dir, "missing.json")})
	testingx.AssertErrorCode(t, err, errors.CodeProcessFailed)
	assert.Contains(t, err.Error(), "ModuleNotFoundError")
}

func TestSharedRealInterpreter(t *testing.T) {
	ex := realExtractor(t, configschema.PolicyShared)
	dir := t.TempDir()
	ctx := context.Background()

	// billing prints while imported; the reply line must still parse
	out := filepath.Join(dir, "service-billing-openapi.json")
	require.NoError(t, ex.Extract(ctx, Job{Module: "ab_service.billing.main", Attr: "app", Output: out}))
	assertBillingDocument(t, out)

	err := ex.Extract(ctx, Job{Module: "ab_service.noapp.main", Attr: "app", Output: filepath.Join(dir, "noapp.json")})
	testingx.AssertErrorCode(t, err, errors.CodeNotFound)
	assert.Contains(t, err.Error(), "has no attribute 'app'")

	err = ex.Extract(ctx, Job{Module: "ab_service.crash.main", Attr: "app", Output: filepath.Join(dir, "crash.json")})
	testingx.AssertErrorCode(t, err, errors.CodeProcessFailed)
	assert.Contains(t, err.Error(), "cannot import ab_service.crash.main")
	assert.Contains(t, err.Error(), "RuntimeError('boom')")

	again := filepath.Join(dir, "again.json")
	require.NoError(t, ex.Extract(ctx, Job{Module: "ab_service.billing.main", Attr: "app", Output: again}))
	assertBillingDocument(t, again)
	assert.Equal(t, 1, ex.(*Shared).Starts())
}
