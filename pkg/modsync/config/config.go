package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/jamesainslie/modsync/pkg/modsync/logging"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Format     string            `mapstructure:"format"`
	Console    string            `mapstructure:"console"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// HTTPConfig configures downloads.
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   int           `mapstructure:"retries"`
	UserAgent string        `mapstructure:"user_agent"`
}

// BackupConfig configures where replaced files are kept.
type BackupConfig struct {
	Dir           string `mapstructure:"dir"` // empty means <mods_dir>/.modsync/backups
	Keep          bool   `mapstructure:"keep"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	Game         string       `mapstructure:"game"`
	ModsDir      string       `mapstructure:"mods_dir"`
	StagingDir   string       `mapstructure:"staging_dir"` // empty means <mods_dir>/.modsync/staging
	MinFreeSpace string       `mapstructure:"min_free_space"`
	Backup       BackupConfig `mapstructure:"backup"`
	HTTP         HTTPConfig   `mapstructure:"http"`
	HashCache    struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"hash_cache"`
	History struct {
		Enabled       bool   `mapstructure:"enabled"`
		Path          string `mapstructure:"path"`
		RetentionDays int    `mapstructure:"retention_days"`
	} `mapstructure:"history"`
	Library struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"library"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Load loads configuration from the default locations and the environment.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/modsync/config.yaml
//   - $HOME/.config/modsync/config.yaml
//
// Environment variables are prefixed with MODSYNC_ (e.g., MODSYNC_MODS_DIR).
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file. An empty path searches the
// default locations.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "modsync"))
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", "modsync"))
	}

	v.SetEnvPrefix("MODSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.ModsDir, &cfg.StagingDir, &cfg.Backup.Dir, &cfg.HashCache.Path, &cfg.History.Path, &cfg.Library.Path, &cfg.Logging.Path} {
		if strings.HasPrefix(*p, "~") {
			*p = filepath.Join(homeDir, (*p)[1:])
		}
	}

	return &cfg, nil
}

// Defaults returns the configuration used when no file or environment
// overrides apply.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("game", DefaultGame)
	v.SetDefault("mods_dir", "")
	v.SetDefault("staging_dir", "")
	v.SetDefault("min_free_space", DefaultMinFreeSpace)

	v.SetDefault("backup.dir", "")
	v.SetDefault("backup.keep", true)
	v.SetDefault("backup.retention_days", DefaultBackupRetentionDays)

	v.SetDefault("http.timeout", DefaultHTTPTimeout)
	v.SetDefault("http.retries", DefaultHTTPRetries)
	v.SetDefault("http.user_agent", DefaultUserAgent)

	v.SetDefault("hash_cache.enabled", true)
	v.SetDefault("hash_cache.path", DefaultHashCachePath())

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", DefaultHistoryPath())
	v.SetDefault("history.retention_days", DefaultHistoryRetentionDays)

	v.SetDefault("library.path", DefaultLibraryPath())

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.console", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"install": "info",
		"fetch":   "info",
		"watch":   "warn",
	})
}

// MinFreeSpaceBytes parses MinFreeSpace ("100MB", "1 GiB", ...).
func (c *Config) MinFreeSpaceBytes() (uint64, error) {
	if c.MinFreeSpace == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.MinFreeSpace)
	if err != nil {
		return 0, fmt.Errorf("invalid min_free_space %q: %w", c.MinFreeSpace, err)
	}
	return n, nil
}

// ToLogging converts the logging section into a logging.Config.
func (l LoggingConfig) ToLogging() (logging.Config, error) {
	rotation := logging.DefaultRotationConfig()
	if l.Rotation.MaxSize != "" {
		n, err := humanize.ParseBytes(l.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, fmt.Errorf("invalid logging.rotation.max_size %q: %w", l.Rotation.MaxSize, err)
		}
		rotation.MaxSize = int64(n)
	}
	rotation.MaxAge = l.Rotation.MaxAge
	rotation.MaxBackups = l.Rotation.MaxBackups
	rotation.Daily = l.Rotation.Daily

	return logging.Config{
		Level:        l.Level,
		Path:         l.Path,
		Format:       l.Format,
		Rotation:     rotation,
		Components:   l.Components,
		ConsoleLevel: l.Console,
	}, nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "modsync"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "modsync"), nil
}

// ConfigPath returns the path of the default config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left alone.
func WriteDefault() (string, error) {
	if err := EnsureConfigDir(); err != nil {
		return "", err
	}

	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# modsync configuration

# Game tag used by "modsync new" and "modsync export": fs19, fs22 or fs25
game: %s

# Mods directory to reconcile when none is given on the command line
mods_dir: ""

# Download staging directory (empty means <mods_dir>/.modsync/staging)
staging_dir: ""

# Free space that must remain on the mods volume after an install
min_free_space: %s

# Copies of files that an install replaced
backup:
  dir: ""           # empty means <mods_dir>/.modsync/backups
  keep: true
  retention_days: %d

http:
  timeout: %s
  retries: %d
  user_agent: %s

# Remembered file digests, so unchanged mods are not re-hashed
hash_cache:
  enabled: true
  path: %s

# Install run records
history:
  enabled: true
  path: %s
  retention_days: %d

# Saved manifests
library:
  path: %s

logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/modsync/modsync.log)
  path: ""
  # Log file format: text, json or logfmt
  format: text
  # Console log level (empty disables console logging)
  console: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  components:
    install: info
    fetch: info
    watch: warn
`, DefaultGame, DefaultMinFreeSpace, DefaultBackupRetentionDays, DefaultHTTPTimeout, DefaultHTTPRetries,
		DefaultUserAgent, DefaultHashCachePath(), DefaultHistoryPath(), DefaultHistoryRetentionDays, DefaultLibraryPath())

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/modsync/ for history and saved manifests.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "modsync")
}

// StateDir returns $XDG_STATE_HOME/modsync/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "modsync")
}

// CacheDir returns $XDG_CACHE_HOME/modsync/ for the hash cache.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "modsync")
}

// DefaultHashCachePath returns the default hash cache directory.
func DefaultHashCachePath() string {
	return filepath.Join(CacheDir(), "hashes")
}

// DefaultHistoryPath returns the default run history directory.
func DefaultHistoryPath() string {
	return filepath.Join(DataDir(), "history")
}

// DefaultLibraryPath returns the default saved-manifest directory.
func DefaultLibraryPath() string {
	return filepath.Join(DataDir(), "library")
}

// WorkDir is the per-target directory holding staging, backups and the
// run lock.
func WorkDir(modsDir string) string {
	return filepath.Join(modsDir, ".modsync")
}

// ResolveStagingDir returns the configured staging directory or the
// per-target default.
func (c *Config) ResolveStagingDir(modsDir string) string {
	if c.StagingDir != "" {
		return c.StagingDir
	}
	return filepath.Join(WorkDir(modsDir), "staging")
}

// ResolveBackupDir returns the configured backup directory or the
// per-target default.
func (c *Config) ResolveBackupDir(modsDir string) string {
	if c.Backup.Dir != "" {
		return c.Backup.Dir
	}
	return filepath.Join(WorkDir(modsDir), "backups")
}
