package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kirbytools/buildwatch/internal/config"
	"github.com/kirbytools/buildwatch/internal/logging"
	"github.com/kirbytools/buildwatch/internal/transport"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify buildwatch configuration",
	Long: `View or modify buildwatch configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  buildwatch config set build.fallback_delay 10s
  buildwatch config set build.transport pipe
  buildwatch config set logging.level debug

Valid keys:
  build.parse_output       - Classify build output (true/false)
  build.fallback_delay     - Assume ready after this long without a signal
  build.restart_grace      - Pause between stop and start on restart
  build.buffer_size        - Rolling output buffer in bytes
  build.inherit_env        - Pass the current environment to builds (true/false)
  build.transport          - Options: auto, pty, pipe
  build.terminate_timeout  - Wait after SIGTERM before SIGKILL
  build.profiles_file      - YAML file of custom tool profiles
  logging.level            - Options: debug, info, warn, error
  logging.dir              - Directory for buildwatch.log (empty: stderr)
  logging.max_size_mb      - Rotate the log file at this size
  logging.max_backups      - Rotated log files to keep`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/buildwatch/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()

	_, _ = fmt.Fprintln(w, "Current configuration:")
	_, _ = fmt.Fprintln(w)

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		_, _ = fmt.Fprintf(w, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		_, _ = fmt.Fprintf(w, "Config file: (none - using defaults)\n")
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "build:")
	_, _ = fmt.Fprintf(w, "  parse_output: %v\n", cfg.Build.ParseOutput)
	_, _ = fmt.Fprintf(w, "  fallback_delay: %s\n", cfg.Build.FallbackDelay)
	_, _ = fmt.Fprintf(w, "  restart_grace: %s\n", cfg.Build.RestartGrace)
	_, _ = fmt.Fprintf(w, "  buffer_size: %d\n", cfg.Build.BufferSize)
	_, _ = fmt.Fprintf(w, "  inherit_env: %v\n", cfg.Build.InheritEnv)
	_, _ = fmt.Fprintf(w, "  transport: %s\n", cfg.Build.Transport)
	_, _ = fmt.Fprintf(w, "  terminate_timeout: %s\n", cfg.Build.TerminateTimeout)
	_, _ = fmt.Fprintf(w, "  profiles_file: %s\n", cfg.Build.ProfilesFile)
	_, _ = fmt.Fprintf(w, "  custom_tools: %d defined\n", len(cfg.Build.CustomTools))

	_, _ = fmt.Fprintln(w, "logging:")
	_, _ = fmt.Fprintf(w, "  level: %s\n", cfg.Logging.Level)
	_, _ = fmt.Fprintf(w, "  dir: %s\n", cfg.Logging.Dir)
	_, _ = fmt.Fprintf(w, "  max_size_mb: %d\n", cfg.Logging.MaxSizeMB)
	_, _ = fmt.Fprintf(w, "  max_backups: %d\n", cfg.Logging.MaxBackups)

	return nil
}

// configKeys maps settable keys to their value kind.
var configKeys = map[string]string{
	"build.parse_output":      "bool",
	"build.fallback_delay":    "duration",
	"build.restart_grace":     "duration",
	"build.buffer_size":       "int",
	"build.inherit_env":       "bool",
	"build.transport":         "transport",
	"build.terminate_timeout": "duration",
	"build.profiles_file":     "string",
	"logging.level":           "level",
	"logging.dir":             "string",
	"logging.max_size_mb":     "int",
	"logging.max_backups":     "int",
}

// parseConfigValue validates value for key and converts it to the type
// stored in the config file.
func parseConfigValue(key, value string) (any, error) {
	keyType, ok := configKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'buildwatch config set --help' to see valid keys", key)
	}

	switch keyType {
	case "bool":
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return value == "true", nil
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return intVal, nil
	case "duration":
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected a duration such as 5s or 500ms", key)
		}
		if d < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return value, nil
	case "transport":
		for _, m := range transport.ValidModes() {
			if value == m {
				return value, nil
			}
		}
		return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
			key, value, strings.Join(transport.ValidModes(), ", "))
	case "level":
		upper := strings.ToUpper(value)
		for _, l := range logging.ValidLevels() {
			if upper == l {
				return strings.ToLower(value), nil
			}
		}
		return nil, fmt.Errorf("invalid value for %s: %s\nValid options: debug, info, warn, error", key, value)
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	typedValue, err := parseConfigValue(key, args[1])
	if err != nil {
		return err
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set the value in viper
	viper.Set(key, typedValue)

	// Write to config file
	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "Set %s = %v\n", key, typedValue)
	_, _ = fmt.Fprintf(w, "Config saved to %s\n", configFile)

	return nil
}

// defaultConfigContent is written by 'config init'.
const defaultConfigContent = `# buildwatch configuration

build:
  # Classify build output into phases. When false, only the fallback timer
  # and process exit move a build out of "building".
  parse_output: true
  # A build that prints no recognizable signal is assumed ready after this long
  fallback_delay: 5s
  # Pause between stopping and starting on restart
  restart_grace: 500ms
  # Rolling output buffer used for tool detection, in bytes
  buffer_size: 102400
  # Pass the current environment to the build
  inherit_env: true
  # How builds are spawned: auto, pty or pipe
  transport: auto
  # How long to wait after SIGTERM before SIGKILL
  terminate_timeout: 2s
  # Optional YAML file with a top-level "tools:" map, reloaded on change
  profiles_file: ""
  # Custom tool profiles, tried before the built-in ones
  custom_tools: {}
  #  kirbyup:
  #    name: kirbyup
  #    detect: 'kirbyup v\d'
  #    start: 'Building'
  #    success: ['Build complete', 'built in']
  #    error: 'Build failed'
  #    watch_ready: 'Watching for changes'
  #    duration: 'in (\d+(?:\.\d+)?)\s*m?s'

logging:
  # debug, info, warn or error
  level: info
  # Directory for buildwatch.log; empty logs to stderr
  dir: ""
  max_size_mb: 10
  max_backups: 3
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'buildwatch config set' to modify values", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "Created config file at %s\n", configFile)
	_, _ = fmt.Fprintln(w, "Edit this file to customize buildwatch's behavior.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		_, _ = fmt.Fprintf(w, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		_, _ = fmt.Fprintf(w, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	_, _ = fmt.Fprintln(w, "\nSearch paths:")
	_, _ = fmt.Fprintf(w, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	_, _ = fmt.Fprintf(w, "  2. $HOME/.config/buildwatch/config.yaml\n")
	_, _ = fmt.Fprintf(w, "  3. ./config.yaml (current directory)\n")
	_, _ = fmt.Fprintln(w, "\nEnvironment variables: BUILDWATCH_* (e.g., BUILDWATCH_BUILD_FALLBACK_DELAY)")

	return nil
}
