package testingx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/core/log"
)

func TestMockLoggerRecordsFields(t *testing.T) {
	logger := NewMockLogger(t)
	child := logger.With("run_id", "r-1")

	child.Info("schema written", log.Str("service", "billing"), log.Int("paths", 3))
	child.Error(errors.New(errors.CodeInternal, "boom"), "service skipped", "stage", "extract")
	logger.Debug("root only")

	entries := logger.Entries()
	require.Len(t, entries, 3)

	assert.Equal(t, "INFO", entries[0].Level)
	assert.Equal(t, map[string]any{"run_id": "r-1", "service": "billing", "paths": 3}, entries[0].Fields)

	assert.Equal(t, "ERROR", entries[1].Level)
	assert.EqualError(t, entries[1].Error, "INTERNAL: boom")
	assert.Equal(t, "extract", entries[1].Fields["stage"])

	assert.Empty(t, entries[2].Fields)

	logger.AssertLogged("INFO", "schema written")
	_, ok := logger.Find("WARN", "schema written")
	assert.False(t, ok)

	logger.Clear()
	assert.Empty(t, logger.Entries())
	logger.AssertNotLogged("ERROR")
}

func TestAssertErrorCode(t *testing.T) {
	err := errors.Wrap(errors.CodeNotFound, "extract.isolated", os.ErrNotExist)
	AssertErrorCode(t, err, errors.CodeNotFound)
}

func TestServiceTree(t *testing.T) {
	root := ServiceTree(t, "ab_service", "main", "billing", "user_profile")

	assert.FileExists(t, filepath.Join(root, "ab_service", "billing", "main.py"))
	assert.FileExists(t, filepath.Join(root, "ab_service", "user_profile", "__init__.py"))
	assert.NoFileExists(t, filepath.Join(root, "ab_service", "__init__.py"))

	dotted := ServiceTree(t, "acme.services", "app", "orders")
	assert.FileExists(t, filepath.Join(dotted, "acme", "services", "orders", "app.py"))
}
