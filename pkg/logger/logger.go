// Package logger provides the process-wide structured logger: JSON
// lines over slog, optional file rotation via lumberjack, and
// unconditional redaction of sensitive key paths.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var Log *slog.Logger

// redactedKeys are the key paths redacted unconditionally, regardless of
// level or handler. Matching is on the attribute's own key name (nested
// group keys are joined with "." before comparison, e.g. headers.authorization).
var redactedKeys = map[string]bool{
	"password":              true,
	"token":                 true,
	"apikey":                true,
	"api_key":               true,
	"authorization":         true,
	"secret":                true,
	"accesstoken":           true,
	"headers.authorization": true,
}

const redactedValue = "[REDACTED]"

// Config is the logger configuration.
type Config struct {
	Level      string
	Format     string // json, text
	Output     string // stdout, stderr, file
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool

	// Service and Env are attached to every log line.
	Service string
	Env     string
}

// LevelFromDebugEnv maps the DEBUG environment variable
// (trace|debug|info|warn|error|fatal, case-insensitive) to a slog.Level,
// defaulting to Info when unset or unrecognized.
func LevelFromDebugEnv(value string) slog.Level {
	switch strings.ToLower(value) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error", "fatal":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var debugWarnOnce sync.Once

// warnIfDebug emits the one-time stderr warning required whenever the
// selected level unlocks debug-level logging, since debug output may
// include values a redaction rule failed to anticipate.
func warnIfDebug(level slog.Level) {
	if level > slog.LevelDebug {
		return
	}
	debugWarnOnce.Do(func() {
		os.Stderr.WriteString("warning: debug logging enabled; sensitive data may appear in logs\n")
	})
}

// Init initializes the logger from the DEBUG env convention alone.
func Init(level string) {
	InitWithConfig(Config{
		Level:  level,
		Format: "json",
		Output: "stdout",
	})
}

// InitWithConfig initializes the logger with a full configuration.
func InitWithConfig(cfg Config) {
	lvl := LevelFromDebugEnv(cfg.Level)
	warnIfDebug(lvl)

	var writer io.Writer
	switch cfg.Output {
	case "stderr":
		writer = os.Stderr
	case "file":
		if cfg.FilePath == "" {
			cfg.FilePath = "logs/app.log"
		}
		dir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			writer = os.Stdout
		} else {
			writer = &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   cfg.Compress,
			}
		}
	default:
		writer = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   lvl == slog.LevelDebug,
		ReplaceAttr: redactAttr,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(writer, opts)
	default:
		handler = slog.NewJSONHandler(writer, opts)
	}

	log := slog.New(handler)
	if cfg.Service != "" {
		log = log.With("service", cfg.Service)
	}
	if cfg.Env != "" {
		log = log.With("env", cfg.Env)
	}
	Log = log
}

// redactAttr is a slog.HandlerOptions.ReplaceAttr implementation that
// redacts any attribute whose key (optionally qualified by its group
// path) matches redactedKeys.
func redactAttr(groups []string, a slog.Attr) slog.Attr {
	path := strings.ToLower(strings.Join(append(append([]string{}, groups...), a.Key), "."))
	if redactedKeys[path] || redactedKeys[strings.ToLower(a.Key)] {
		a.Value = slog.StringValue(redactedValue)
	}
	return a
}

// WithContext returns a logger enriched with the given key-value args.
func WithContext(ctx context.Context, args ...any) *slog.Logger {
	return Log.With(args...)
}

// WithCorrelationID adds the correlationId field used to trace one probe
// attempt across log lines; each retried attempt carries its own ID.
func WithCorrelationID(correlationID string) *slog.Logger {
	return Log.With("correlationId", correlationID)
}

// WithModule adds the module field identifying the emitting component.
func WithModule(module string) *slog.Logger {
	return Log.With("module", module)
}

// WithService adds the service field.
func WithService(service string) *slog.Logger {
	return Log.With("service", service)
}

func Debug(msg string, args ...any) {
	Log.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Log.Error(msg, args...)
}

func Fatal(msg string, args ...any) {
	Log.Error(msg, args...)
	os.Exit(1)
}

func init() {
	Init("info")
}
