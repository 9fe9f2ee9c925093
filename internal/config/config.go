package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config represents the application configuration.
type Config struct {
	// Global options that apply to all commands
	Global map[string]string
	// Command-specific options
	Commands map[string]map[string]string
	// Engine holds the typed script-engine settings from the [engine] section.
	Engine EngineConfig
	// Warnings contains any warnings generated during config loading
	Warnings []string
}

// EngineConfig controls the script engine's loop, logging, and bridge.
type EngineConfig struct {
	// LogLevel is the minimum level retained by the script-visible log ring
	// (debug, info, warn, error).
	LogLevel string `json:"logLevel" default:"info"`
	// LogMaxEntries bounds the in-memory log ring.
	LogMaxEntries int `json:"logMaxEntries" default:"1000"`
	// RunForever keeps the engine alive with no pending callbacks.
	RunForever bool `json:"runForever" default:"false"`
	// BridgeTimeoutMs bounds how long a UI command may go unanswered before
	// a synthesized failure result is delivered. 0 disables the deadline.
	BridgeTimeoutMs int `json:"bridgeTimeoutMs" default:"0"`
	// SyncTimeoutMs bounds synchronous calls onto the engine loop.
	SyncTimeoutMs int `json:"syncTimeoutMs" default:"10000"`
}

// NewConfig creates a new empty configuration.
func NewConfig() *Config {
	return &Config{
		Global:   make(map[string]string),
		Commands: make(map[string]map[string]string),
		Engine: EngineConfig{
			LogLevel:      "info",
			LogMaxEntries: 1000,
			SyncTimeoutMs: 10000,
		},
		Warnings: make([]string, 0),
	}
}

// Load loads configuration from the default config file path.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads configuration from the specified file path.
// The file uses dnsmasq-style format: optionName remainingLineIsTheValue
//
// SECURITY: This function rejects symlinks to prevent symlink attacks
// that could read sensitive files through symlink traversal.
func LoadFromPath(path string) (*Config, error) {
	// Security: Lstat checks the final path component for symlinks.
	// Intermediate directory symlinks are NOT checked; the threat model
	// targets direct file symlink substitution.
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return NewConfig(), nil
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if fi.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlink not allowed in config path: %s", path)
	}

	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return LoadFromReader(file)
}

// LoadFromReader loads configuration from an io.Reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	config := NewConfig()
	scanner := bufio.NewScanner(r)

	var currentCommand string
	var inEngineSection bool

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Check for section header [section_name]
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			sectionName := strings.Trim(line, "[]")
			switch sectionName {
			case "engine":
				inEngineSection = true
				currentCommand = ""
			default:
				inEngineSection = false
				currentCommand = sectionName
				if config.Commands[currentCommand] == nil {
					config.Commands[currentCommand] = make(map[string]string)
				}
			}
			continue
		}

		// Parse option line: optionName remainingLineIsTheValue
		parts := strings.SplitN(line, " ", 2)
		if len(parts) < 1 {
			continue
		}

		optionName := parts[0]
		var value string
		if len(parts) > 1 {
			value = parts[1]
		}

		if inEngineSection {
			if err := parseEngineOption(&config.Engine, optionName, value); err != nil {
				return nil, fmt.Errorf("invalid engine option %q: %w", optionName, err)
			}
		} else if currentCommand == "" {
			config.Global[optionName] = value
		} else {
			config.Commands[currentCommand][optionName] = value
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	// Validate config against schema: detect unknown options and type mismatches.
	for _, issue := range ValidateConfig(config, DefaultSchema()) {
		config.addWarning("%s", issue)
	}

	return config, nil
}

// addWarning adds a warning to the config's warnings list.
func (c *Config) addWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.Warnings = append(c.Warnings, msg)
	slog.Warn("[Config] " + msg)
}

// parseEngineOption parses one [engine] section option.
// Supported options:
//   - logLevel <string>: minimum retained log level (default: info)
//   - logMaxEntries <int>: log ring capacity (default: 1000)
//   - runForever <bool>: keep running with no pending callbacks (default: false)
//   - bridgeTimeoutMs <int>: UI command deadline in ms, 0 disables (default: 0)
//   - syncTimeoutMs <int>: sync loop call deadline in ms (default: 10000)
func parseEngineOption(ec *EngineConfig, name, value string) error {
	switch name {
	case "logLevel":
		switch strings.ToLower(value) {
		case "debug", "info", "warn", "warning", "error":
			ec.LogLevel = strings.ToLower(value)
		default:
			return fmt.Errorf("unknown log level: %s", value)
		}

	case "logMaxEntries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value %q: %w", value, err)
		}
		if n < 1 {
			return fmt.Errorf("logMaxEntries must be at least 1: %d", n)
		}
		ec.LogMaxEntries = n

	case "runForever":
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value %q: %w", value, err)
		}
		ec.RunForever = b

	case "bridgeTimeoutMs":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value %q: %w", value, err)
		}
		if n < 0 {
			return fmt.Errorf("bridgeTimeoutMs cannot be negative: %d", n)
		}
		ec.BridgeTimeoutMs = n

	case "syncTimeoutMs":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value %q: %w", value, err)
		}
		if n < 1 {
			return fmt.Errorf("syncTimeoutMs must be at least 1: %d", n)
		}
		ec.SyncTimeoutMs = n

	default:
		return fmt.Errorf("unknown engine option: %s", name)
	}
	return nil
}

// parseBool parses a boolean value from string.
// Accepts: true, false, 1, 0, yes, no (case-insensitive)
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}

// GetGlobalOption returns a global configuration option.
func (c *Config) GetGlobalOption(name string) (string, bool) {
	value, exists := c.Global[name]
	return value, exists
}

// GetCommandOption returns a command-specific configuration option.
// It first checks command-specific options, then falls back to global options.
func (c *Config) GetCommandOption(command, name string) (string, bool) {
	if cmdOptions, exists := c.Commands[command]; exists {
		if value, exists := cmdOptions[name]; exists {
			return value, true
		}
	}

	// Fall back to global options
	return c.GetGlobalOption(name)
}

// SetGlobalOption sets a global configuration option.
func (c *Config) SetGlobalOption(name, value string) {
	c.Global[name] = value
}

// SetCommandOption sets a command-specific configuration option.
func (c *Config) SetCommandOption(command, name, value string) {
	if c.Commands[command] == nil {
		c.Commands[command] = make(map[string]string)
	}
	c.Commands[command][name] = value
}

// GetWarnings returns any warnings generated during config loading.
func (c *Config) GetWarnings() []string {
	return c.Warnings
}

// HasWarnings returns true if there are any warnings.
func (c *Config) HasWarnings() bool {
	return len(c.Warnings) > 0
}
