package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"

	"github.com/kclejeune/dirsweep/internal/logging"
)

const appName = "dirsweep"

// ErrInvalid marks every error caused by the content of a config file, as
// opposed to errors reading it.
var ErrInvalid = errors.New("invalid config")

// DefaultLogFileName renders to e.g. "2024-05-01_13-04-05_myhost.log".
const DefaultLogFileName = `{{ now.Format "2006-01-02_15-04-05" }}_{{ hostname }}.log`

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l *Level) UnmarshalText(text []byte) error {
	v := Level(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		*l = v
		return nil
	default:
		return fmt.Errorf("unsupported log level: %q", text)
	}
}

// Slog maps the level onto its log/slog equivalent. Unknown values map to info.
func (l Level) Slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type ConsoleFormat string

const (
	FormatAuto ConsoleFormat = "auto"
	FormatText ConsoleFormat = "text"
	FormatJSON ConsoleFormat = "json"
)

func (f *ConsoleFormat) UnmarshalText(text []byte) error {
	v := ConsoleFormat(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case FormatAuto, FormatText, FormatJSON:
		*f = v
		return nil
	default:
		return fmt.Errorf("unsupported console format: %q", text)
	}
}

type Config struct {
	Roots   []string      `toml:"roots" yaml:"roots"`
	Exclude ExcludeConfig `toml:"exclude" yaml:"exclude"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
}

type ExcludeConfig struct {
	// ExactPaths are compared case-insensitively against the full path of
	// each candidate directory.
	ExactPaths []string `toml:"exact_paths" yaml:"exact_paths"`
	// PathFragments exclude any candidate whose full path contains one of
	// them, case-insensitively, anywhere in the string.
	PathFragments []string `toml:"path_fragments" yaml:"path_fragments"`
}

type LoggingConfig struct {
	Directory string `toml:"directory" yaml:"directory"`
	// FileName is a text/template rendered once per run.
	FileName string `toml:"file_name" yaml:"file_name"`
	// Keep is the number of run logs retained in Directory, including the
	// current one. Zero keeps everything.
	Keep          int           `toml:"keep" yaml:"keep"`
	ConsoleLevel  Level         `toml:"console_level" yaml:"console_level"`
	FileLevel     Level         `toml:"file_level" yaml:"file_level"`
	ConsoleFormat ConsoleFormat `toml:"console_format" yaml:"console_format"`
}

func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Directory:     filepath.Join(StateDir(), "logs"),
			FileName:      DefaultLogFileName,
			Keep:          10,
			ConsoleLevel:  LevelInfo,
			FileLevel:     LevelDebug,
			ConsoleFormat: FormatAuto,
		},
	}
}

// Load reads the config file, falling back to $XDG_CONFIG_HOME/dirsweep/config.toml
// or ~/.config/dirsweep/config.toml. Files ending in .yaml or .yml are decoded
// as YAML, everything else as TOML.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	path, err := ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expanding config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return Parse(path, data)
}

// Parse decodes already-read config bytes. path selects the format and is
// the base for relative roots and exact paths.
func Parse(path string, data []byte) (*Config, error) {
	cfg := DefaultConfig()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := decodeYAML(data, cfg); err != nil {
			return nil, err
		}
	default:
		if err := decodeTOML(data, cfg); err != nil {
			return nil, err
		}
	}

	base := filepath.Dir(path)
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}
	if err := cfg.Resolve(base); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func decodeTOML(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("parsing config: %w: %w", ErrInvalid, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("parsing config: %w: unknown keys: %s", ErrInvalid, strings.Join(keys, ", "))
	}
	if !md.IsDefined("roots") {
		return fmt.Errorf("parsing config: %w: missing required key \"roots\"", ErrInvalid)
	}
	return nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parsing config: %w: %w", ErrInvalid, err)
	}
	if cfg.Roots == nil {
		return fmt.Errorf("parsing config: %w: missing required key \"roots\"", ErrInvalid)
	}
	return nil
}

// Resolve expands ~ and shell variables in roots, exact paths and the log
// directory, and makes relative entries absolute against base.
func (c *Config) Resolve(base string) error {
	for i, root := range c.Roots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		resolved, err := ResolvePath(root, base)
		if err != nil {
			return fmt.Errorf("%w: root %q: %w", ErrInvalid, root, err)
		}
		c.Roots[i] = resolved
	}

	for i, p := range c.Exclude.ExactPaths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		resolved, err := ResolvePath(p, base)
		if err != nil {
			return fmt.Errorf("%w: exact path %q: %w", ErrInvalid, p, err)
		}
		c.Exclude.ExactPaths[i] = resolved
	}

	if c.Logging.Directory != "" {
		resolved, err := ResolvePath(c.Logging.Directory, base)
		if err != nil {
			return fmt.Errorf("%w: logging directory %q: %w", ErrInvalid, c.Logging.Directory, err)
		}
		c.Logging.Directory = resolved
	}

	return nil
}

func (c *Config) Validate() error {
	if len(c.Roots) == 0 {
		return fmt.Errorf("%w: roots must list at least one directory", ErrInvalid)
	}
	for _, root := range c.Roots {
		if strings.TrimSpace(root) == "" {
			return fmt.Errorf("%w: roots must not contain empty entries", ErrInvalid)
		}
		if !filepath.IsAbs(root) {
			return fmt.Errorf("%w: root %q is not an absolute path", ErrInvalid, root)
		}
	}

	for _, p := range c.Exclude.ExactPaths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: exclude.exact_paths must not contain empty entries", ErrInvalid)
		}
	}
	for _, f := range c.Exclude.PathFragments {
		if strings.TrimSpace(f) == "" {
			// An empty fragment is a substring of every path.
			return fmt.Errorf("%w: exclude.path_fragments must not contain empty entries", ErrInvalid)
		}
	}

	if c.Logging.Keep < 0 {
		return fmt.Errorf("%w: logging.keep must be >= 0, got %d", ErrInvalid, c.Logging.Keep)
	}
	if strings.TrimSpace(c.Logging.FileName) == "" {
		return fmt.Errorf("%w: logging.file_name must not be empty", ErrInvalid)
	}
	if _, err := logging.ParseFileName(c.Logging.FileName); err != nil {
		return fmt.Errorf("%w: logging.file_name: %w", ErrInvalid, err)
	}
	for name, l := range map[string]Level{
		"console_level": c.Logging.ConsoleLevel,
		"file_level":    c.Logging.FileLevel,
	} {
		switch l {
		case LevelDebug, LevelInfo, LevelWarn, LevelError:
		default:
			return fmt.Errorf("%w: unsupported logging.%s: %q (must be debug, info, warn or error)", ErrInvalid, name, l)
		}
	}
	switch c.Logging.ConsoleFormat {
	case FormatAuto, FormatText, FormatJSON:
	default:
		return fmt.Errorf("%w: unsupported logging.console_format: %q (must be auto, text or json)", ErrInvalid, c.Logging.ConsoleFormat)
	}

	return nil
}

// ExpandPath expands a leading ~/ and shell parameters such as $HOME or
// ${MEDIA_ROOT:-/srv/media}. Unset variables expand to the empty string.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	if !strings.Contains(path, "$") {
		return path, nil
	}

	word, err := syntax.NewParser().Document(strings.NewReader(path))
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", path, err)
	}
	env := &expand.Config{Env: expand.ListEnviron(os.Environ()...)}
	expanded, err := expand.Document(env, word)
	if err != nil {
		return "", fmt.Errorf("expanding %q: %w", path, err)
	}
	return expanded, nil
}

// ResolvePath expands path and makes it absolute relative to base.
// Absolute and ~/ paths ignore base.
func ResolvePath(path, base string) (string, error) {
	expanded, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(base, expanded)
	}
	return filepath.Clean(expanded), nil
}

func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName, "config.toml")
}

// StateDir returns the dirsweep state directory under XDG_STATE_HOME.
func StateDir() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, appName)
}
