// Package projectfs provides dry-run aware file system operations for
// generated artifacts (schema documents, SDK directories, lock files).
//
// Overview:
//   - Responsibility: Create, write and remove generated files and directories
//   - Key Types: ProjectFS
//   - Concurrency Model: Sequential file operations
//   - Error Semantics: File system errors wrapped with the affected path
//   - Performance Notes: Idempotent operations, minimal file I/O
//
// Usage:
//
//	fs := projectfs.New("..")
//	fs.SetDryRun(true)
//	err := fs.RemoveDirectory("client-billing")
package projectfs

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"

	"github.com/eggybyte-technology/clientgen/internal/ui"
)

// ProjectFS performs file operations relative to a root directory. In dry-run
// mode every mutating operation is reported instead of performed.
//
// Parameters:
//   - rootDir: Root directory that relative paths resolve against
//   - verbose: Whether to report performed operations
//   - dryRun: Whether to skip mutations
//
// Concurrency:
//   - Configure before use
type ProjectFS struct {
	rootDir string
	verbose bool
	dryRun  bool
	label   string
}

// New creates a ProjectFS rooted at rootDir.
func New(rootDir string) *ProjectFS {
	return &ProjectFS{rootDir: rootDir}
}

// SetVerbose enables or disables reporting of performed operations.
func (p *ProjectFS) SetVerbose(enabled bool) {
	p.verbose = enabled
}

// SetDryRun enables or disables dry-run mode.
func (p *ProjectFS) SetDryRun(enabled bool) {
	p.dryRun = enabled
}

// DryRun reports whether mutations are skipped.
func (p *ProjectFS) DryRun() bool {
	return p.dryRun
}

// ForService returns a copy whose dry-run messages are scoped to service.
func (p *ProjectFS) ForService(service string) *ProjectFS {
	c := *p
	c.label = service
	return &c
}

// Abs resolves path against the root directory. Absolute paths are returned
// cleaned and unchanged otherwise.
func (p *ProjectFS) Abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(p.rootDir, path)
}

func (p *ProjectFS) dry(format string, args ...any) {
	if p.label != "" {
		ui.ServiceDry(p.label, format, args...)
		return
	}
	ui.Dry(format, args...)
}

func (p *ProjectFS) trace(format string, args ...any) {
	if p.verbose {
		ui.Debug(format, args...)
	}
}

// EnsureDirectory creates a directory and its parents if missing.
func (p *ProjectFS) EnsureDirectory(path string) error {
	full := p.Abs(path)
	if p.dryRun {
		p.dry("Would create directory %s", full)
		return nil
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", full, err)
	}
	p.trace("Ensured directory: %s", full)
	return nil
}

// WriteFile writes content to path, creating parent directories.
func (p *ProjectFS) WriteFile(path string, content []byte, mode fs.FileMode) error {
	full := p.Abs(path)
	if p.dryRun {
		p.dry("Would write %s (%d bytes)", full, len(content))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", full, err)
	}
	if err := os.WriteFile(full, content, mode); err != nil {
		return fmt.Errorf("failed to write file %s: %w", full, err)
	}
	p.trace("Wrote file: %s", full)
	return nil
}

// WriteTemplate renders a text/template and writes the result to path.
func (p *ProjectFS) WriteTemplate(path, templateContent string, data any, mode fs.FileMode) error {
	tmpl, err := template.New(filepath.Base(path)).Option("missingkey=error").Parse(templateContent)
	if err != nil {
		return fmt.Errorf("failed to parse template for %s: %w", path, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render template for %s: %w", path, err)
	}
	return p.WriteFile(path, buf.Bytes(), mode)
}

// FileExists reports whether a regular file exists at path.
func (p *ProjectFS) FileExists(path string) (bool, error) {
	info, err := os.Stat(p.Abs(path))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", p.Abs(path), err)
	}
	return !info.IsDir(), nil
}

// DirectoryExists reports whether a directory exists at path.
func (p *ProjectFS) DirectoryExists(path string) (bool, error) {
	info, err := os.Stat(p.Abs(path))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", p.Abs(path), err)
	}
	return info.IsDir(), nil
}

// ReadFile returns the contents of path.
func (p *ProjectFS) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(p.Abs(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", p.Abs(path), err)
	}
	return data, nil
}

// RemoveFile removes a file. A missing file is not an error.
//
// Returns:
//   - bool: True if a file was (or would be) removed
//   - error: Removal error
func (p *ProjectFS) RemoveFile(path string) (bool, error) {
	full := p.Abs(path)
	exists, err := p.FileExists(full)
	if err != nil || !exists {
		return false, err
	}
	if p.dryRun {
		p.dry("Would remove %s", full)
		return true, nil
	}
	if err := os.Remove(full); err != nil {
		return false, fmt.Errorf("failed to remove file %s: %w", full, err)
	}
	p.trace("Removed file: %s", full)
	return true, nil
}

// RemoveDirectory removes a directory tree. A missing directory is not an error.
//
// Returns:
//   - bool: True if a directory was (or would be) removed
//   - error: Removal error
func (p *ProjectFS) RemoveDirectory(path string) (bool, error) {
	full := p.Abs(path)
	exists, err := p.DirectoryExists(full)
	if err != nil || !exists {
		return false, err
	}
	if p.dryRun {
		p.dry("Would remove directory %s", full)
		return true, nil
	}
	if err := os.RemoveAll(full); err != nil {
		return false, fmt.Errorf("failed to remove directory %s: %w", full, err)
	}
	p.trace("Removed directory: %s", full)
	return true, nil
}
