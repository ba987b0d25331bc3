// Package testingx provides testing utilities for clientgen packages.
//
// Overview:
//   - Responsibility: Testing helpers, mocks, and Python package fixtures
//   - Key Types: MockLogger, LogEntry
//   - Concurrency Model: MockLogger is safe for concurrent use
//   - Error Semantics: Test failures via testing.T
//   - Performance Notes: Optimized for test execution
//
// Usage:
//
//	logger := testingx.NewMockLogger(t)
//	root := testingx.ServiceTree(t, "ab_service", "main", "billing", "user_profile")
package testingx

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/core/log"
)

// LogEntry represents a single log entry.
type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]any
	Error   error
}

// MockLogger is a mock logger for testing. Loggers derived with With share
// the parent's entry list.
type MockLogger struct {
	t      testing.TB
	store  *entryStore
	fields []any
}

type entryStore struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewMockLogger creates a new mock logger.
func NewMockLogger(t testing.TB) *MockLogger {
	return &MockLogger{t: t, store: &entryStore{}}
}

// With returns a logger that adds kv to every entry.
func (m *MockLogger) With(kv ...any) log.Logger {
	fields := append(append([]any(nil), m.fields...), kv...)
	return &MockLogger{t: m.t, store: m.store, fields: fields}
}

// Debug logs a debug message.
func (m *MockLogger) Debug(msg string, kv ...any) {
	m.log("DEBUG", msg, nil, kv)
}

// Info logs an info message.
func (m *MockLogger) Info(msg string, kv ...any) {
	m.log("INFO", msg, nil, kv)
}

// Warn logs a warning message.
func (m *MockLogger) Warn(msg string, kv ...any) {
	m.log("WARN", msg, nil, kv)
}

// Error logs an error message.
func (m *MockLogger) Error(err error, msg string, kv ...any) {
	m.log("ERROR", msg, err, kv)
}

func (m *MockLogger) log(level, msg string, err error, kv []any) {
	fields := flatten(append(append([]any(nil), m.fields...), kv...))
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.entries = append(m.store.entries, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  fields,
		Error:   err,
	})
}

// flatten turns key-value pairs, including the []any pairs built by log.Str
// and friends, into a map.
func flatten(kv []any) map[string]any {
	fields := map[string]any{}
	for i := 0; i < len(kv); i++ {
		if pair, ok := kv[i].([]any); ok && len(pair) == 2 {
			if k, ok := pair[0].(string); ok {
				fields[k] = pair[1]
			}
			continue
		}
		k, ok := kv[i].(string)
		if !ok || i+1 >= len(kv) {
			continue
		}
		fields[k] = kv[i+1]
		i++
	}
	return fields
}

// Entries returns all log entries.
func (m *MockLogger) Entries() []LogEntry {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	entries := make([]LogEntry, len(m.store.entries))
	copy(entries, m.store.entries)
	return entries
}

// Find returns the first entry with level and message.
func (m *MockLogger) Find(level, msg string) (LogEntry, bool) {
	for _, entry := range m.Entries() {
		if entry.Level == level && entry.Message == msg {
			return entry, true
		}
	}
	return LogEntry{}, false
}

// AssertLogged asserts that a message was logged.
func (m *MockLogger) AssertLogged(level, msg string) {
	m.t.Helper()
	if _, ok := m.Find(level, msg); !ok {
		m.t.Errorf("Expected log message not found: level=%s msg=%q", level, msg)
	}
}

// AssertNotLogged asserts that no entry has level.
func (m *MockLogger) AssertNotLogged(level string) {
	m.t.Helper()
	for _, entry := range m.Entries() {
		if entry.Level == level {
			m.t.Errorf("Unexpected %s log: %q", level, entry.Message)
		}
	}
}

// Clear clears all log entries.
func (m *MockLogger) Clear() {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.entries = nil
}

// AssertErrorCode asserts that err carries the expected code.
func AssertErrorCode(t testing.TB, err error, expectedCode errors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected error with code %s, got nil", expectedCode)
	}
	if !errors.IsCode(err, expectedCode) {
		t.Errorf("Expected error code %s, got %s (%v)", expectedCode, errors.CodeOf(err), err)
	}
}

// WriteFile writes content under dir, creating parents.
func WriteFile(t testing.TB, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ServiceTree creates a package root holding <namespace>/<svc>/<entry>.py for
// each service and returns the root. The namespace itself has no __init__.py.
func ServiceTree(t testing.TB, namespace, entry string, services ...string) string {
	t.Helper()
	root := t.TempDir()
	nsDir := strings.ReplaceAll(namespace, ".", "/")
	for _, svc := range services {
		WriteFile(t, root, fmt.Sprintf("%s/%s/__init__.py", nsDir, svc), "")
		WriteFile(t, root, fmt.Sprintf("%s/%s/%s.py", nsDir, svc, entry), "app = None\n")
	}
	return root
}
