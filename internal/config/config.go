package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kirbytools/buildwatch/internal/capture"
	"github.com/kirbytools/buildwatch/internal/logging"
	"github.com/kirbytools/buildwatch/internal/transport"
)

// Config represents the complete buildwatch configuration
type Config struct {
	Build   BuildConfig   `mapstructure:"build"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// BuildConfig controls how builds are supervised and classified
type BuildConfig struct {
	// ParseOutput enables classification of build output. When false the
	// supervisor passes output through and only the fallback timer and
	// process exit drive the phase.
	ParseOutput bool `mapstructure:"parse_output"`
	// FallbackDelay is how long a build may stay in Building without an
	// explicit signal before it is assumed Ready (default: 5s)
	FallbackDelay time.Duration `mapstructure:"fallback_delay"`
	// RestartGrace is the pause between stopping and starting on restart,
	// giving the old terminal time to release (default: 500ms)
	RestartGrace time.Duration `mapstructure:"restart_grace"`
	// BufferSize is the rolling output buffer ceiling in bytes (default: 100KiB)
	BufferSize int `mapstructure:"buffer_size"`
	// InheritEnv passes the current environment to the build (default: true)
	InheritEnv bool `mapstructure:"inherit_env"`
	// Transport selects how the build is spawned
	// Options: "auto", "pty", "pipe"
	Transport string `mapstructure:"transport"`
	// TerminateTimeout is how long to wait after SIGTERM before SIGKILL (default: 2s)
	TerminateTimeout time.Duration `mapstructure:"terminate_timeout"`
	// CustomTools maps a profile key to its loosely typed definition. Entries
	// are decoded individually so one bad entry does not reject the file.
	CustomTools map[string]any `mapstructure:"custom_tools"`
	// ProfilesFile is an optional YAML file of extra custom profiles that is
	// reloaded when it changes
	ProfilesFile string `mapstructure:"profiles_file"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the directory the log file is written to. Empty logs to stderr.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the maximum size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated backup files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// Rotation returns the logging rotation settings.
func (c *LoggingConfig) Rotation() logging.RotationConfig {
	return logging.RotationConfig{MaxSizeMB: c.MaxSizeMB, MaxBackups: c.MaxBackups}
}

// ResolveProfilesFile returns the profiles file path with ~ expanded and
// relative paths resolved against baseDir. Empty stays empty.
func (c *BuildConfig) ResolveProfilesFile(baseDir string) string {
	path := c.ProfilesFile
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Build: BuildConfig{
			ParseOutput:      true,
			FallbackDelay:    5 * time.Second,
			RestartGrace:     500 * time.Millisecond,
			BufferSize:       capture.DefaultSize,
			InheritEnv:       true,
			Transport:        transport.ModeAuto,
			TerminateTimeout: transport.DefaultTerminateTimeout,
			CustomTools:      map[string]any{},
			ProfilesFile:     "",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Build defaults
	viper.SetDefault("build.parse_output", defaults.Build.ParseOutput)
	viper.SetDefault("build.fallback_delay", defaults.Build.FallbackDelay)
	viper.SetDefault("build.restart_grace", defaults.Build.RestartGrace)
	viper.SetDefault("build.buffer_size", defaults.Build.BufferSize)
	viper.SetDefault("build.inherit_env", defaults.Build.InheritEnv)
	viper.SetDefault("build.transport", defaults.Build.Transport)
	viper.SetDefault("build.terminate_timeout", defaults.Build.TerminateTimeout)
	viper.SetDefault("build.custom_tools", defaults.Build.CustomTools)
	viper.SetDefault("build.profiles_file", defaults.Build.ProfilesFile)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "buildwatch")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".buildwatch"
	}
	return filepath.Join(home, ".config", "buildwatch")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
