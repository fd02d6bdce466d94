// pkg/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/healthwatch/healthwatch/pkg/apperror"
)

const (
	envPrefix    = "HEALTHWATCH_"
	configEnvVar = "CONFIG_PATH"
)

// Loader loads configuration from layered sources.
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/healthwatch/config.yaml",
		},
		envPrefix: envPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConfigPaths sets the list of candidate config file paths.
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// Load loads configuration with priority (lowest to highest):
// 1. Defaults
// 2. Config file (yaml)
// 3. Environment variables
func (l *Loader) Load() (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := l.loadConfigFile(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	if ve := l.checkUnknownKeys(); ve != nil {
		return nil, ve
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDefaults loads the settings defaults map.
func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		"settings.check_interval":    30 * time.Second,
		"settings.warning_threshold": 500 * time.Millisecond,
		"settings.timeout":           5 * time.Second,
		"settings.page_refresh":      10 * time.Second,
		"settings.max_retries":       2,
		"settings.worker_pool_size":  8,
		"settings.history_file":      "healthwatch_history.csv",
		"settings.output_dir":        "./data",

		"settings.metrics_addr": ":9090",
		"settings.metrics_path": "/metrics",

		"settings.tracing_enabled":     false,
		"settings.tracing_endpoint":    "localhost:4317",
		"settings.tracing_sample_rate": 0.1,
	}

	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

// loadConfigFile loads the pings/settings document from disk.
func (l *Loader) loadConfigFile() error {
	if configPath := os.Getenv(configEnvVar); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return l.k.Load(file.Provider(configPath), yaml.Parser())
		}
	}

	for _, path := range l.configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		if _, err := os.Stat(absPath); err == nil {
			return l.k.Load(file.Provider(absPath), yaml.Parser())
		}
	}

	return fmt.Errorf("config file not found in paths: %v", l.configPaths)
}

// loadEnv loads environment variable overrides, e.g.
// HEALTHWATCH_SETTINGS_TIMEOUT -> settings.timeout.
func (l *Loader) loadEnv() error {
	return l.k.Load(env.Provider(l.envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(
				strings.TrimPrefix(s, l.envPrefix),
			),
			"_", ".",
		)
	}), nil)
}

// MustLoad loads configuration or panics.
func MustLoad(opts ...LoaderOption) *Config {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Load is a convenience function using default loader options.
func Load() (*Config, error) {
	return NewLoader().Load()
}

// LoadAndReport loads configuration the same way Load does, but on
// failure prints every collected violation to stderr instead of
// returning a single combined error. It reports whether the result is
// valid, for CLI entry points that want an exit code rather than a
// Go error value.
func LoadAndReport(opts ...LoaderOption) (*Config, bool) {
	l := NewLoader(opts...)

	if err := l.loadDefaults(); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load defaults: %v\n", err)
		return nil, false
	}
	if err := l.loadConfigFile(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if err := l.loadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load env: %v\n", err)
		return nil, false
	}

	if ve := l.checkUnknownKeys(); ve != nil {
		fmt.Fprintln(os.Stderr, "configuration is invalid:")
		for _, e := range ve.Errors {
			fmt.Fprintf(os.Stderr, "  - %s\n", e.Error())
		}
		return nil, false
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to unmarshal config: %v\n", err)
		return nil, false
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "configuration is invalid:")
		if ve, ok := err.(*apperror.ValidationErrors); ok {
			for _, e := range ve.Errors {
				fmt.Fprintf(os.Stderr, "  - %s\n", e.Error())
			}
		} else {
			fmt.Fprintf(os.Stderr, "  - %v\n", err)
		}
		return nil, false
	}

	return &cfg, true
}

// knownSettingsKeys is every key the settings block recognizes.
var knownSettingsKeys = map[string]bool{
	"check_interval":      true,
	"warning_threshold":   true,
	"timeout":             true,
	"page_refresh":        true,
	"max_retries":         true,
	"worker_pool_size":    true,
	"history_file":        true,
	"output_dir":          true,
	"metrics_addr":        true,
	"metrics_path":        true,
	"tracing_enabled":     true,
	"tracing_endpoint":    true,
	"tracing_sample_rate": true,
}

// knownServiceKeys is every key one pings[] entry recognizes.
var knownServiceKeys = map[string]bool{
	"name":              true,
	"protocol":          true,
	"method":            true,
	"resource":          true,
	"tags":              true,
	"expected":          true,
	"headers":           true,
	"payload":           true,
	"interval":          true,
	"warning_threshold": true,
	"timeout":           true,
	"description":       true,
}

// knownExpectedKeys is every key a service's expected block recognizes.
var knownExpectedKeys = map[string]bool{"status": true, "text": true, "headers": true}

// knownHeaderEntryKeys is every key one headers[] entry recognizes.
var knownHeaderEntryKeys = map[string]bool{"name": true, "value": true}

// checkUnknownKeys diffs the loader's fully flattened key set (settings
// and file/env overrides merged in) against the schema's known keys and
// returns a *apperror.ValidationErrors naming every unrecognized one, or
// nil if none were found. l.k.Keys() flattens nested maps into dotted
// paths but leaves slices whole, so each pings[] entry is flattened
// through its own Koanf view and its keys are prefixed with
// "pings.<index>." (e.g. "pings.0.expected.status"); each path is then
// walked segment by segment against the known field sets. Entries of a
// service's headers list are themselves a slice and are not walked.
// payload is deliberately exempt from this check, since it is an
// arbitrary pass-through JSON value, not a schema-validated field.
func (l *Loader) checkUnknownKeys() *apperror.ValidationErrors {
	bad := make(map[string]bool)
	for _, key := range l.k.Keys() {
		if reason := unknownKeyReason(key); reason != "" {
			bad[reason] = true
		}
	}
	for i, entry := range l.k.Slices("pings") {
		for _, key := range entry.Keys() {
			if reason := unknownKeyReason(fmt.Sprintf("pings.%d.%s", i, key)); reason != "" {
				bad[reason] = true
			}
		}
	}

	if len(bad) == 0 {
		return nil
	}

	keys := make([]string, 0, len(bad))
	for k := range bad {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ve := apperror.NewValidationErrors()
	for _, key := range keys {
		ve.AddErrorWithField(apperror.CodeUnknownKey, "unknown configuration key", key)
	}
	return ve
}

// unknownKeyReason returns the offending dotted key path if key does not
// resolve to a recognized schema field, or "" if it does.
func unknownKeyReason(key string) string {
	segs := strings.Split(key, ".")

	switch segs[0] {
	case "settings":
		if len(segs) < 2 || !knownSettingsKeys[segs[1]] {
			return key
		}
		return ""
	case "pings":
		return unknownPingsKeyReason(key, segs)
	default:
		return key
	}
}

// unknownPingsKeyReason validates one "pings.<index>.<field>..." path.
func unknownPingsKeyReason(key string, segs []string) string {
	if len(segs) < 3 {
		return ""
	}

	field := segs[2]
	if !knownServiceKeys[field] {
		return key
	}

	switch field {
	case "payload":
		return ""
	case "expected":
		if len(segs) < 4 {
			return ""
		}
		// expected.headers is a free-form name->value map, not a fixed
		// field set, so any key beneath it is allowed.
		if segs[3] == "headers" {
			return ""
		}
		if !knownExpectedKeys[segs[3]] {
			return key
		}
		return ""
	case "headers":
		if len(segs) < 5 {
			return ""
		}
		if !knownHeaderEntryKeys[segs[4]] {
			return key
		}
		return ""
	default:
		return ""
	}
}
