package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v3"

	"app-activate/internal/hotkeys"
	"app-activate/internal/keyspec"
)

const (
	maxConfigFileBytes int64 = 1 << 20 // 1MB
	maxRenameRetry           = 10
	// Windows file lock releases (antivirus/indexing) typically settle quickly.
	// Use a short linear backoff: baseDelay * (1..maxRenameRetry).
	renameRetryBaseDelay = 10 * time.Millisecond

	// DefaultTimeoutMS is the chord window when timeout_ms is omitted.
	DefaultTimeoutMS = 1000

	// EnvConfigPath overrides DefaultPath when set.
	EnvConfigPath = "APP_ACTIVATE_CONFIG"

	appDirName      = "app-activate"
	defaultFileName = "config.toml"
)

// configHomeFn and userHomeDirFn are test seams.
var configHomeFn = func() string { return xdg.ConfigHome }
var userHomeDirFn = os.UserHomeDir

// Format is the on-disk encoding of a config file.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFor picks the encoding from the file extension. Anything that is not
// .yaml or .yml is read as TOML.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Config is the user configuration file.
type Config struct {
	LeaderKey             string            `toml:"leader_key" yaml:"leader_key"`
	TimeoutMS             uint64            `toml:"timeout_ms" yaml:"timeout_ms"`
	Applications          map[string]string `toml:"applications" yaml:"applications"`
	SecondaryApplications map[string]string `toml:"secondary_applications,omitempty" yaml:"secondary_applications,omitempty"`
	DB                    string            `toml:"db,omitempty" yaml:"db,omitempty"`
	Backend               string            `toml:"backend,omitempty" yaml:"backend,omitempty"`
	LogLevel              string            `toml:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// knownFields lists the top-level keys Load understands.
var knownFields = map[string]struct{}{
	"leader_key":             {},
	"timeout_ms":             {},
	"applications":           {},
	"secondary_applications": {},
	"db":                     {},
	"backend":                {},
	"log_level":              {},
}

// Timeout returns the chord window.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// DefaultConfig returns the config written by EnsureFile.
func DefaultConfig() Config {
	return Config{
		LeaderKey:    "space",
		TimeoutMS:    DefaultTimeoutMS,
		Applications: defaultApplications(),
		Backend:      string(hotkeys.DefaultBackend),
		LogLevel:     "info",
	}
}

func defaultApplications() map[string]string {
	switch runtime.GOOS {
	case "darwin":
		return map[string]string{
			"f": "/System/Library/CoreServices/Finder.app",
			"t": "/System/Applications/Utilities/Terminal.app",
		}
	case "windows":
		return map[string]string{
			"e": `C:\Windows\explorer.exe`,
			"n": `C:\Windows\notepad.exe`,
		}
	default:
		return map[string]string{
			"w": "https://github.com",
		}
	}
}

// DefaultPath resolves the config file path: $APP_ACTIVATE_CONFIG when set,
// otherwise config.toml under the XDG config home.
func DefaultPath() string {
	if override := strings.TrimSpace(os.Getenv(EnvConfigPath)); override != "" {
		return override
	}
	return filepath.Join(configHomeFn(), appDirName, defaultFileName)
}

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Load reads, parses and validates the config at path. A missing file is an
// error since there would be nothing to bind.
func Load(path string) (Config, error) {
	var cfg Config
	if strings.TrimSpace(path) == "" {
		return cfg, errors.New("config path required")
	}

	raw, err := readLimitedFile(path, maxConfigFileBytes)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("config file %s not found (create one with `app-activate config init`): %w", path, err)
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	format := FormatFor(path)
	if err := unmarshal(format, raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if rawMap, err := parseRawConfigMetadata(format, raw); err != nil {
		slog.Warn("[WARN-CONFIG] failed to parse config metadata", "error", err)
	} else {
		warnUnknownFields(rawMap)
	}

	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// EnsureFile writes DefaultConfig if path does not exist. created reports
// whether a file was written.
func EnsureFile(path string) (cfg Config, created bool, err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		cfg, err = Load(path)
		return cfg, false, err
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return cfg, false, statErr
	}
	cfg, err = Save(path, DefaultConfig())
	if err != nil {
		return cfg, false, err
	}
	return cfg, true, nil
}

// Save validates cfg and writes it atomically in the format implied by path.
// Returns the normalized config that was actually written to disk.
func Save(path string, cfg Config) (Config, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return cfg, errors.New("config path required")
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("save config: %w", err)
	}

	raw, err := marshal(FormatFor(trimmedPath), cfg)
	if err != nil {
		return cfg, fmt.Errorf("save config: marshal: %w", err)
	}
	if err := atomicWrite(trimmedPath, raw); err != nil {
		return cfg, err
	}
	slog.Debug("[DEBUG-CONFIG] config saved", "path", trimmedPath)
	return cfg, nil
}

// ResolveDB returns the audit database path, or "" when auditing is off.
// "~" and environment variables are expanded; a relative path is taken
// relative to the directory of the config file.
func (c Config) ResolveDB(configPath string) (string, error) {
	db := strings.TrimSpace(c.DB)
	if db == "" {
		return "", nil
	}
	expanded, err := ExpandPath(db)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(filepath.Dir(configPath), expanded)
	}
	return filepath.Clean(expanded), nil
}

// ExpandPath expands a leading "~" and $VAR / ${VAR} references.
func ExpandPath(path string) (string, error) {
	path = os.ExpandEnv(path)
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := userHomeDirFn()
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", path, err)
	}
	return filepath.Join(home, path[1:]), nil
}

// Validate checks cfg after defaults were applied.
func Validate(cfg Config) error {
	var errs []error
	if strings.TrimSpace(cfg.LeaderKey) == "" {
		errs = append(errs, &ValidationError{Field: "leader_key", Message: "must not be empty"})
	}
	if cfg.TimeoutMS == 0 {
		errs = append(errs, &ValidationError{Field: "timeout_ms", Message: "must be positive"})
	}
	if len(cfg.Applications) == 0 {
		errs = append(errs, &ValidationError{Field: "applications", Message: "at least one binding is required"})
	}
	errs = append(errs, validateBindings("applications", cfg.Applications)...)
	errs = append(errs, validateBindings("secondary_applications", cfg.SecondaryApplications)...)
	if _, err := hotkeys.ParseBackend(cfg.Backend); err != nil {
		errs = append(errs, &ValidationError{Field: "backend", Message: err.Error()})
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		errs = append(errs, &ValidationError{Field: "log_level", Message: err.Error()})
	}
	return errors.Join(errs...)
}

// validateBindings rejects empty labels, empty targets and labels that
// normalize to the same key ("e" and "KeyE").
func validateBindings(field string, bindings map[string]string) []error {
	labels := sortedKeys(bindings)
	var errs []error
	seen := make(map[string]string, len(labels))
	for _, label := range labels {
		trimmed := strings.TrimSpace(label)
		if trimmed == "" {
			errs = append(errs, &ValidationError{Field: field, Message: "empty key label"})
			continue
		}
		if strings.TrimSpace(bindings[label]) == "" {
			errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf("key %q has an empty target", label)})
		}
		folded := keyspec.Normalize(trimmed).Fold()
		if first, dup := seen[folded]; dup {
			errs = append(errs, &ValidationError{
				Field:   field,
				Message: fmt.Sprintf("keys %q and %q bind the same key", first, label),
			})
			continue
		}
		seen[folded] = label
	}
	return errs
}

// ParseLogLevel maps a log_level value onto slog. Empty means info.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (available: debug, info, warn, error)", level)
	}
}

// Clone returns a deep copy of cfg.
func Clone(src Config) Config {
	dst := src
	dst.Applications = maps.Clone(src.Applications)
	dst.SecondaryApplications = maps.Clone(src.SecondaryApplications)
	return dst
}

// applyDefaults fills missing defaults in-place.
// MUTATES: cfg is directly modified.
func applyDefaults(cfg *Config) {
	if cfg.TimeoutMS == 0 {
		cfg.TimeoutMS = DefaultTimeoutMS
	}
	if strings.TrimSpace(cfg.Backend) == "" {
		cfg.Backend = string(hotkeys.DefaultBackend)
	}
	cfg.LeaderKey = strings.TrimSpace(cfg.LeaderKey)
}

func unmarshal(format Format, raw []byte, cfg *Config) error {
	if format == FormatYAML {
		return yaml.Unmarshal(raw, cfg)
	}
	return toml.Unmarshal(raw, cfg)
}

func marshal(format Format, cfg Config) ([]byte, error) {
	if format == FormatYAML {
		return yaml.Marshal(cfg)
	}
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(false)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func parseRawConfigMetadata(format Format, raw []byte) (map[string]any, error) {
	rawMap := map[string]any{}
	var err error
	if format == FormatYAML {
		err = yaml.Unmarshal(raw, &rawMap)
	} else {
		err = toml.Unmarshal(raw, &rawMap)
	}
	return rawMap, err
}

func warnUnknownFields(rawMap map[string]any) {
	for _, key := range sortedKeys(rawMap) {
		if _, ok := knownFields[key]; !ok {
			slog.Warn("[WARN-CONFIG] unknown field ignored", "field", key)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// atomicWrite writes config data using temp-file + rename to avoid partial
// writes and retries rename on Windows to tolerate transient file locks.
// The watcher only ever sees a complete file.
func atomicWrite(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save config: mkdir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("save config: create temp: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			if closeErr := tmpFile.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
				slog.Warn("[WARN-CONFIG] failed to close temp file", "path", tmpPath, "error", closeErr)
			}
		}
		if err != nil {
			if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				slog.Warn("[WARN-CONFIG] failed to remove temp file", "path", tmpPath, "error", removeErr)
			}
		}
	}()

	if err = tmpFile.Chmod(0o600); err != nil {
		return fmt.Errorf("save config: chmod temp: %w", err)
	}
	if _, err = tmpFile.Write(data); err != nil {
		return fmt.Errorf("save config: write: %w", err)
	}
	if err = tmpFile.Sync(); err != nil {
		return fmt.Errorf("save config: sync: %w", err)
	}
	err = tmpFile.Close()
	tmpFile = nil
	if err != nil {
		return fmt.Errorf("save config: close: %w", err)
	}

	if err = renameFileWithRetry(tmpPath, path); err != nil {
		return fmt.Errorf("save config: rename: %w", err)
	}
	return nil
}

func readLimitedFile(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	limited := io.LimitReader(file, maxBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", maxBytes)
	}
	return raw, nil
}

func renameFileWithRetry(sourcePath string, targetPath string) error {
	var lastErr error
	for attempt := range maxRenameRetry {
		err := os.Rename(sourcePath, targetPath)
		if err == nil {
			return nil
		}
		lastErr = err
		if runtime.GOOS != "windows" {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * renameRetryBaseDelay)
	}
	return lastErr
}
