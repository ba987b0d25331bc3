// Package envloader loads .env files into the environment of spawned tools.
//
// Overview:
//   - Responsibility: Parse env_file and merge it over the inherited environment
//   - Key Types: Environment maps and merge helpers
//   - Concurrency Model: Stateless functions
//   - Error Semantics: Parse errors report the offending line number
//   - Performance Notes: Single pass over the file
//
// Usage:
//
//	vars, err := envloader.LoadEnvFile(".env")
//	cmd.Env = envloader.MergeWithOS(vars)
package envloader

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// LoadEnvFile loads environment variables from a .env file.
//
// Supported syntax:
//   - KEY=value and export KEY=value
//   - Comments starting with # and empty lines
//   - Single or double quoted values (quotes are stripped, nothing is expanded)
//
// Parameters:
//   - path: Path to the .env file
//
// Returns:
//   - map[string]string: Variables by name
//   - error: Open or parse error
func LoadEnvFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open env file: %w", err)
	}
	defer file.Close()

	vars := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%s:%d: expected KEY=value, got %q", path, lineNum, line)
		}
		vars[key] = unquote(strings.TrimSpace(value))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}
	return vars, nil
}

func unquote(v string) string {
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '"' || first == '\'') && first == last {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// MapToSlice converts a variable map to sorted KEY=value entries.
func MapToSlice(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+vars[k])
	}
	return out
}

// Merge overlays vars on base (KEY=value entries). Overlaid keys keep their
// position in base; new keys are appended in sorted order.
func Merge(base []string, vars map[string]string) []string {
	merged := make([]string, 0, len(base)+len(vars))
	seen := make(map[string]bool, len(vars))

	for _, entry := range base {
		key, _, _ := strings.Cut(entry, "=")
		if value, ok := vars[key]; ok {
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, key+"="+value)
			continue
		}
		merged = append(merged, entry)
	}

	for _, entry := range MapToSlice(vars) {
		key, _, _ := strings.Cut(entry, "=")
		if !seen[key] {
			merged = append(merged, entry)
		}
	}
	return merged
}

// MergeWithOS overlays vars on the current process environment.
func MergeWithOS(vars map[string]string) []string {
	return Merge(os.Environ(), vars)
}
