// Package ui provides unified console output for the clientgen CLI.
//
// Overview:
//   - Responsibility: Standardized status messages, dry-run notices, and summaries
//   - Key Types: Message for JSON output, OutputLevel
//   - Concurrency Model: Thread-safe output operations
//   - Error Semantics: Output failures are ignored
//   - Performance Notes: Unbuffered writes, one line per message
//
// Usage:
//
//	ui.Info("Discovered %d services", n)
//	ui.Service("billing", "🚀", "Generating SDK → %s", dir)
//	ui.Dry("Would run: %s", cmdline)
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	verbose    bool
	jsonOutput bool
	stdout     io.Writer = os.Stdout
	stderr     io.Writer = os.Stderr
	mu         sync.RWMutex
)

// OutputLevel represents the severity level of a message.
type OutputLevel string

const (
	LevelDebug   OutputLevel = "debug"
	LevelInfo    OutputLevel = "info"
	LevelWarning OutputLevel = "warning"
	LevelError   OutputLevel = "error"
	LevelSuccess OutputLevel = "success"
	LevelDry     OutputLevel = "dry-run"
)

// Message represents a structured output message.
//
// Parameters:
//   - Level: Message severity level
//   - Text: Human-readable message content
//   - Service: Service the message refers to, if any
//   - Data: Optional structured data for JSON output
//   - Timestamp: When the message was created
//
// Concurrency:
//   - Immutable after creation
type Message struct {
	Level     OutputLevel `json:"level"`
	Text      string      `json:"text"`
	Service   string      `json:"service,omitempty"`
	Data      any         `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SetVerbose enables or disables debug messages.
func SetVerbose(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = enabled
}

// SetJSONOutput enables JSON-formatted output.
func SetJSONOutput(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	jsonOutput = enabled
}

// SetOutput redirects console output. Nil writers restore the process defaults.
//
// Parameters:
//   - out: Writer for informational messages
//   - errOut: Writer for error messages
//
// Returns:
//   - func(): Restores the previous writers
//
// Concurrency:
//   - Thread-safe
func SetOutput(out, errOut io.Writer) func() {
	mu.Lock()
	defer mu.Unlock()

	prevOut, prevErr := stdout, stderr
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	stdout, stderr = out, errOut

	return func() {
		mu.Lock()
		defer mu.Unlock()
		stdout, stderr = prevOut, prevErr
	}
}

// IsJSON reports whether JSON output is enabled.
func IsJSON() bool {
	mu.RLock()
	defer mu.RUnlock()
	return jsonOutput
}

// output writes a message to the appropriate output stream.
//
// Parameters:
//   - level: Message severity level
//   - service: Service name prefix (may be empty)
//   - icon: Optional emoji replacing the level prefix
//   - text: Formatted message text
//
// Concurrency:
//   - Thread-safe
func output(level OutputLevel, service, icon, text string) {
	mu.RLock()
	useJSON := jsonOutput
	useVerbose := verbose
	out, errOut := stdout, stderr
	mu.RUnlock()

	if level == LevelDebug && !useVerbose {
		return
	}

	if useJSON {
		encoder := json.NewEncoder(out)
		if err := encoder.Encode(Message{
			Level:     level,
			Text:      text,
			Service:   service,
			Timestamp: time.Now(),
		}); err != nil {
			fmt.Fprintf(errOut, "Failed to encode JSON output: %v\n", err)
		}
		return
	}

	writer := out
	if level == LevelError {
		writer = errOut
	}

	prefix := icon
	if prefix == "" {
		switch level {
		case LevelDebug:
			prefix = "🔍 DEBUG:"
		case LevelInfo:
			prefix = "ℹ️  INFO:"
		case LevelWarning:
			prefix = "⚠️  WARN:"
		case LevelError:
			prefix = "❌ ERROR:"
		case LevelSuccess:
			prefix = "✅"
		case LevelDry:
			prefix = "[DRY]"
		}
	}

	if service != "" {
		fmt.Fprintf(writer, "%s [%s] %s\n", prefix, service, text)
		return
	}
	fmt.Fprintf(writer, "%s %s\n", prefix, text)
}

// Debug outputs a debug message, shown only in verbose mode.
func Debug(format string, args ...any) {
	output(LevelDebug, "", "", fmt.Sprintf(format, args...))
}

// Info outputs an informational message.
func Info(format string, args ...any) {
	output(LevelInfo, "", "", fmt.Sprintf(format, args...))
}

// Warning outputs a warning message.
func Warning(format string, args ...any) {
	output(LevelWarning, "", "", fmt.Sprintf(format, args...))
}

// Error outputs an error message to stderr.
func Error(format string, args ...any) {
	output(LevelError, "", "", fmt.Sprintf(format, args...))
}

// Success outputs a success message.
func Success(format string, args ...any) {
	output(LevelSuccess, "", "", fmt.Sprintf(format, args...))
}

// Dry reports an action that a dry run skipped.
func Dry(format string, args ...any) {
	output(LevelDry, "", "", fmt.Sprintf(format, args...))
}

// Service outputs a message scoped to one service, prefixed with an icon.
//
// Parameters:
//   - service: Service name shown in brackets
//   - icon: Leading emoji (e.g. "🔧", "🚀")
//   - format: Printf-style format string
//   - args: Format arguments
//
// Concurrency:
//   - Thread-safe
func Service(service, icon, format string, args ...any) {
	output(LevelInfo, service, icon, fmt.Sprintf(format, args...))
}

// ServiceWarning outputs a warning scoped to one service.
func ServiceWarning(service, format string, args ...any) {
	output(LevelWarning, service, "⚠️ ", fmt.Sprintf(format, args...))
}

// ServiceSuccess outputs a success message scoped to one service.
func ServiceSuccess(service, format string, args ...any) {
	output(LevelSuccess, service, "✅", fmt.Sprintf(format, args...))
}

// ServiceDry reports a skipped action scoped to one service.
func ServiceDry(service, format string, args ...any) {
	output(LevelDry, service, "[DRY]", fmt.Sprintf(format, args...))
}

// Data outputs a structured value. In JSON mode the value is embedded in the
// message; otherwise only the text is printed.
func Data(text string, data any) {
	mu.RLock()
	useJSON := jsonOutput
	out := stdout
	mu.RUnlock()

	if !useJSON {
		fmt.Fprintln(out, text)
		return
	}

	encoder := json.NewEncoder(out)
	_ = encoder.Encode(Message{
		Level:     LevelInfo,
		Text:      text,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// Blank prints an empty line outside JSON mode.
func Blank() {
	mu.RLock()
	useJSON := jsonOutput
	out := stdout
	mu.RUnlock()

	if !useJSON {
		fmt.Fprintln(out)
	}
}
