package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the logger handed to CLI commands.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	// Slog returns the underlying slog logger, for packages that take one.
	Slog() *slog.Logger
}

// Config selects the level, format and destination of log output.
// Empty fields mean warn, text and os.Stderr.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// level is shared by every logger built by New so SetLevel applies to
// loggers already handed out.
var level = func() *slog.LevelVar {
	v := new(slog.LevelVar)
	v.Set(slog.LevelWarn)
	return v
}()

type handle struct {
	*slog.Logger
}

// New builds a logger whose handler redacts sensitive attributes.
func New(cfg Config) (Logger, error) {
	if cfg.Level != "" {
		lvl, ok := parseLevel(cfg.Level)
		if !ok {
			return nil, fmt.Errorf("unknown log level %q", cfg.Level)
		}
		level.Set(lvl)
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return handle{slog.New(slog.NewTextHandler(out, opts))}, nil
	case "json":
		return handle{slog.New(slog.NewJSONHandler(out, opts))}, nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func (h handle) With(args ...any) Logger {
	return handle{h.Logger.With(args...)}
}

func (h handle) Slog() *slog.Logger {
	return h.Logger
}

// SetDefault installs l as the process-wide slog default, which packages
// built without an explicit logger fall back to.
func SetDefault(l Logger) {
	slog.SetDefault(l.Slog())
}

// SetLevel changes the level of every logger built by New. Unknown names
// leave the level unchanged.
func SetLevel(name string) {
	if lvl, ok := parseLevel(name); ok {
		level.Set(lvl)
	}
}

// GetLevel returns the current level name in lower case.
func GetLevel() string {
	return strings.ToLower(level.Level().String())
}

// ValidLevel reports whether name is a known log level.
func ValidLevel(name string) bool {
	_, ok := parseLevel(name)
	return ok
}

func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}
