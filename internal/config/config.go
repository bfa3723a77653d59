package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mainbong/path_lister/internal/files"
	"github.com/mainbong/path_lister/internal/filesystem"
	"github.com/mainbong/path_lister/internal/lister"
	"github.com/mainbong/path_lister/internal/logger"
)

// Config holds the application configuration
type Config struct {
	Root      string `json:"root" yaml:"root" toml:"root"`
	Output    string `json:"output" yaml:"output" toml:"output"`
	Join      string `json:"join" yaml:"join" toml:"join"` // "concat", "separator" or "relative"
	BackupDir string `json:"backup_dir" yaml:"backup_dir" toml:"backup_dir"`
	LogDir    string `json:"log_dir" yaml:"log_dir" toml:"log_dir"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"` // "debug", "info", "warn", "error"
}

// Environment variables that override file values
const (
	EnvRoot   = "PATH_LISTER_ROOT"
	EnvOutput = "PATH_LISTER_OUTPUT"
	EnvJoin   = "PATH_LISTER_JOIN"
)

// ErrConfigDirUnavailable means the home config directory cannot be used:
// HOME is unset, or the directory or its files cannot be written.
var ErrConfigDirUnavailable = errors.New("config directory unavailable")

var (
	configDir  = homeConfigDir()
	configFile = joinIfSet(configDir, "config.json")
	defaultFS  = filesystem.NewOSFileSystem()
)

func homeConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".path-lister")
}

func joinIfSet(dir, name string) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, name)
}

// Default returns the configuration used when no file exists. An empty dir
// leaves LogDir empty, which disables the log file.
func Default(dir string) *Config {
	return &Config{
		Root:     "svgs",
		Output:   "nama_file.txt",
		Join:     string(lister.JoinConcat),
		LogDir:   joinIfSet(dir, "logs"),
		LogLevel: "info",
	}
}

// Load loads the configuration from file or creates a default one
func Load() (*Config, error) {
	return LoadWithFS(defaultFS, configDir, configFile)
}

// LoadWithFS loads the configuration using a custom FileSystem (for testing)
func LoadWithFS(fs filesystem.FileSystem, dir, file string) (*Config, error) {
	if dir == "" || file == "" {
		return nil, fmt.Errorf("%w: home directory is not set", ErrConfigDirUnavailable)
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create config directory: %w", ErrConfigDirUnavailable, err)
	}

	cfg := Default(dir)

	if _, err := fs.Stat(file); err == nil {
		if err := files.NewManagerWithFS("", fs).Decode(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		if err := cfg.SaveWithFS(fs, file); err != nil {
			return nil, fmt.Errorf("%w: failed to save default config: %w", ErrConfigDirUnavailable, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.ensureDir(fs, file, "log_dir", &cfg.LogDir, filepath.Join(dir, "logs")); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigDirUnavailable, err)
	}

	return cfg, nil
}

// LoadOrDefault is Load, except that an unusable home config directory
// yields the defaults (with environment overrides) and no log directory
// instead of an error.
func LoadOrDefault() (*Config, error) {
	return LoadOrDefaultWithFS(defaultFS, configDir, configFile)
}

// LoadOrDefaultWithFS is LoadOrDefault with a custom FileSystem (for testing)
func LoadOrDefaultWithFS(fs filesystem.FileSystem, dir, file string) (*Config, error) {
	cfg, err := LoadWithFS(fs, dir, file)
	if !errors.Is(err, ErrConfigDirUnavailable) {
		return cfg, err
	}

	cfg = Default("")
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads an explicit config file (.json, .yaml, .yml or .toml).
// Unlike Load it never creates the file or any directory.
func LoadFile(path string) (*Config, error) {
	return LoadFileWithFS(defaultFS, path)
}

// LoadFileWithFS loads an explicit config file using a custom FileSystem (for testing)
func LoadFileWithFS(fs filesystem.FileSystem, path string) (*Config, error) {
	cfg := Default(configDir)

	if err := files.NewManagerWithFS("", fs).Decode(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// log_dir is created by the logger, which tolerates it being unusable
	return cfg, nil
}

// Save saves the configuration to file
func (c *Config) Save() error {
	return c.SaveWithFS(defaultFS, configFile)
}

// SaveWithFS saves the configuration using a custom FileSystem (for testing)
func (c *Config) SaveWithFS(fs filesystem.FileSystem, file string) error {
	if err := files.NewManagerWithFS("", fs).Encode(file, c, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() string {
	return configDir
}

// GetConfigFile returns the configuration file path
func GetConfigFile() string {
	return configFile
}

// JoinMode returns the parsed join mode
func (c *Config) JoinMode() (lister.JoinMode, error) {
	return lister.ParseJoinMode(c.Join)
}

// Level returns the parsed log level
func (c *Config) Level() (logger.LogLevel, error) {
	return logger.ParseLevel(c.LogLevel)
}

// Validate checks values that cannot be caught by the decoder
func (c *Config) Validate() error {
	if _, err := c.JoinMode(); err != nil {
		return fmt.Errorf("invalid join: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvRoot); v != "" {
		c.Root = v
	}
	if v := os.Getenv(EnvOutput); v != "" {
		c.Output = v
	}
	if v := os.Getenv(EnvJoin); v != "" {
		c.Join = v
	}
}

func (c *Config) ensureDir(fs filesystem.FileSystem, file, key string, value *string, fallback string) error {
	if strings.TrimSpace(*value) == "" {
		*value = fallback
		if err := c.SaveWithFS(fs, file); err != nil {
			return fmt.Errorf("failed to save default %s: %w", key, err)
		}
	}

	if err := fs.MkdirAll(*value, 0755); err != nil {
		*value = fallback
		if err := fs.MkdirAll(*value, 0755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", key, err)
		}
		if err := c.SaveWithFS(fs, file); err != nil {
			return fmt.Errorf("failed to save fallback %s: %w", key, err)
		}
	}

	return nil
}

// Set updates a config value by key.
func (c *Config) Set(key, value string) error {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "root":
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("invalid root: must not be empty")
		}
		c.Root = value
	case "output":
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("invalid output: must not be empty")
		}
		c.Output = value
	case "join":
		mode, err := lister.ParseJoinMode(value)
		if err != nil {
			return fmt.Errorf("invalid join: %w", err)
		}
		c.Join = string(mode)
	case "backup_dir":
		c.BackupDir = value
	case "log_dir":
		c.LogDir = value
	case "log_level":
		if _, err := logger.ParseLevel(value); err != nil || strings.TrimSpace(value) == "" {
			return fmt.Errorf("invalid log_level: %s", value)
		}
		c.LogLevel = strings.ToLower(strings.TrimSpace(value))
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	return nil
}
