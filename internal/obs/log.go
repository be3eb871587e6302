package obs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// LevelTrace sits below slog's debug level and carries per-chunk relay events.
const LevelTrace = slog.Level(-8)

type Fields map[string]any

// Config selects the process-wide log sink.
type Config struct {
	Level  string // trace, debug, info, warn, error
	Format string // json, text, console
	Output io.Writer
}

var base atomic.Pointer[slog.Logger]

func init() { base.Store(newSlog(Config{})) }

// Configure replaces the process-wide sink. Loggers created earlier pick up
// the new sink on their next call.
func Configure(cfg Config) { base.Store(newSlog(cfg)) }

func newSlog(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	level := ParseLevel(cfg.Level)
	var h slog.Handler
	switch cfg.Format {
	case "text":
		h = slog.NewTextHandler(cfg.Output, &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevel})
	case "console":
		h = &consoleHandler{mu: &sync.Mutex{}, w: cfg.Output, level: level}
	default:
		h = slog.NewJSONHandler(cfg.Output, &slog.HandlerOptions{Level: level, ReplaceAttr: replaceJSON})
	}
	return slog.New(h)
}

// ParseLevel maps a level name to its slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warn"
	case l >= slog.LevelInfo:
		return "info"
	case l >= slog.LevelDebug:
		return "debug"
	default:
		return "trace"
	}
}

func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if l, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(levelName(l))
		}
	}
	return a
}

// replaceJSON keeps the ts/level/msg line shape of the JSON log stream.
func replaceJSON(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		a.Key = "ts"
		a.Value = slog.StringValue(a.Value.Time().UTC().Format("2006-01-02T15:04:05.999999999Z07:00"))
		return a
	}
	return replaceLevel(groups, a)
}

// Logger carries a fixed set of fields (connection id, direction scope)
// into every record it emits. The nil Logger logs without extra fields.
type Logger struct {
	args []any
}

// With returns a child logger that adds f to every record.
func (l *Logger) With(f Fields) *Logger {
	var args []any
	if l != nil {
		args = slices.Clone(l.args)
	}
	return &Logger{args: append(args, flatten(f)...)}
}

func (l *Logger) Enabled(level slog.Level) bool {
	return base.Load().Enabled(context.Background(), level)
}

func (l *Logger) log(level slog.Level, msg string, f Fields) {
	lg := base.Load()
	if !lg.Enabled(context.Background(), level) {
		return
	}
	var args []any
	if l != nil {
		args = slices.Clone(l.args)
	}
	args = append(args, flatten(f)...)
	lg.Log(context.Background(), level, msg, args...)
}

func (l *Logger) Trace(msg string, f Fields) { l.log(LevelTrace, msg, f) }
func (l *Logger) Debug(msg string, f Fields) { l.log(slog.LevelDebug, msg, f) }
func (l *Logger) Info(msg string, f Fields)  { l.log(slog.LevelInfo, msg, f) }
func (l *Logger) Warn(msg string, f Fields)  { l.log(slog.LevelWarn, msg, f) }
func (l *Logger) Error(msg string, f Fields) { l.log(slog.LevelError, msg, f) }

func Trace(msg string, f Fields) { (*Logger)(nil).Trace(msg, f) }
func Debug(msg string, f Fields) { (*Logger)(nil).Debug(msg, f) }
func Info(msg string, f Fields)  { (*Logger)(nil).Info(msg, f) }
func Warn(msg string, f Fields)  { (*Logger)(nil).Warn(msg, f) }
func Error(msg string, f Fields) { (*Logger)(nil).Error(msg, f) }

// flatten turns f into slog key/value args in key order.
func flatten(f Fields) []any {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, k, f[k])
	}
	return args
}
