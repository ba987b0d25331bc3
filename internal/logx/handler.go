package logx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const redacted = "***REDACTED***"

// Handler is a slog.Handler that writes logfmt lines with sorted fields.
type Handler struct {
	opts  Options
	mu    *sync.Mutex
	attrs []slog.Attr
	group string
}

// NewHandler creates a new Handler with the given options.
func NewHandler(opts Options) *Handler {
	return &Handler{
		opts: opts,
		mu:   &sync.Mutex{},
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level
}

// Handle implements slog.Handler.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		attrs = append(attrs, a)
		return true
	})

	var buf strings.Builder

	if !h.opts.DisableTimestamp {
		ts := r.Time
		if ts.IsZero() {
			ts = time.Now()
		}
		buf.WriteString("time=")
		buf.WriteString(ts.Format(time.RFC3339))
		buf.WriteString(" ")
	}

	levelStr := LevelString(r.Level)
	buf.WriteString("level=")
	if h.opts.Color {
		buf.WriteString(ColorizeLevel(levelStr))
	} else {
		buf.WriteString(levelStr)
	}

	buf.WriteString(" msg=")
	buf.WriteString(fmt.Sprintf("%q", r.Message))

	for _, attr := range SortAttrs(attrs) {
		if attr.Key == "" {
			continue
		}
		buf.WriteString(" ")
		buf.WriteString(attr.Key)
		buf.WriteString("=")
		buf.WriteString(FormatValue(attr.Key, attr.Value, h.opts))
	}
	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.opts.Writer, buf.String())
	return err
}

// WithAttrs returns a new Handler with the given attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := append([]slog.Attr{}, h.attrs...)
	newAttrs = append(newAttrs, attrs...)

	return &Handler{
		opts:  h.opts,
		mu:    h.mu,
		attrs: newAttrs,
		group: h.group,
	}
}

// WithGroup returns a new Handler with the given group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		opts:  h.opts,
		mu:    h.mu,
		attrs: h.attrs,
		group: name,
	}
}

// KVToAttrs converts key-value pairs to slog.Attr slice.
// Pairs built with Str/Int/Dur arrive as nested two-element slices and are flattened.
func KVToAttrs(kv []any) []slog.Attr {
	flat := make([]any, 0, len(kv))
	for _, item := range kv {
		switch v := item.(type) {
		case []any:
			if len(v) == 2 {
				flat = append(flat, v[0], v[1])
			} else {
				flat = append(flat, v)
			}
		case slog.Attr:
			flat = append(flat, v.Key, v.Value.Any())
		default:
			flat = append(flat, v)
		}
	}

	attrs := make([]slog.Attr, 0, len(flat)/2)
	for i := 0; i < len(flat)-1; i += 2 {
		key := fmt.Sprintf("%v", flat[i])
		attrs = append(attrs, slog.Any(key, flat[i+1]))
	}
	return attrs
}

// SortAttrs sorts attributes by key.
func SortAttrs(attrs []slog.Attr) []slog.Attr {
	sorted := make([]slog.Attr, len(attrs))
	copy(sorted, attrs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Key < sorted[j].Key
	})
	return sorted
}

// FormatValue formats a slog.Value for logfmt output.
func FormatValue(key string, v slog.Value, opts Options) string {
	if isSensitive(key, opts.SensitiveFields) {
		return fmt.Sprintf("%q", redacted)
	}

	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return quoteLimited(v.String(), opts.PayloadMaxBytes)
	case slog.KindInt64:
		return fmt.Sprintf("%d", v.Int64())
	case slog.KindUint64:
		return fmt.Sprintf("%d", v.Uint64())
	case slog.KindFloat64:
		f := v.Float64()
		if f == float64(int64(f)) {
			return fmt.Sprintf("%.0f", f)
		}
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", f), "0"), ".")
	case slog.KindBool:
		return fmt.Sprintf("%t", v.Bool())
	case slog.KindDuration:
		// milliseconds
		return fmt.Sprintf("%d", v.Duration().Milliseconds())
	case slog.KindTime:
		return fmt.Sprintf("%q", v.Time().Format(time.RFC3339))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return quoteLimited(err.Error(), opts.PayloadMaxBytes)
		}
		return quoteLimited(fmt.Sprintf("%v", v.Any()), opts.PayloadMaxBytes)
	default:
		return quoteLimited(v.String(), opts.PayloadMaxBytes)
	}
}

func quoteLimited(s string, limit int) string {
	if limit > 0 && len(s) > limit {
		s = fmt.Sprintf("%s...(truncated, %d bytes)", s[:limit], len(s))
	}
	return fmt.Sprintf("%q", s)
}

func isSensitive(key string, fields []string) bool {
	for _, field := range fields {
		if strings.EqualFold(key, field) {
			return true
		}
	}
	return false
}

// LevelString returns the string representation of a log level.
func LevelString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case slog.LevelWarn:
		return "WARN"
	case slog.LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", level)
	}
}

// ColorizeLevel adds ANSI color codes to the level value only.
func ColorizeLevel(level string) string {
	const (
		reset   = "\033[0m"
		red     = "\033[31m"
		yellow  = "\033[33m"
		cyan    = "\033[36m"
		magenta = "\033[35m"
	)

	switch level {
	case "DEBUG":
		return magenta + level + reset
	case "INFO":
		return cyan + level + reset
	case "WARN":
		return yellow + level + reset
	case "ERROR":
		return red + level + reset
	default:
		return level
	}
}
