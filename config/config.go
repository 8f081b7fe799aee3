// Package config provides the main configuration for the application.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the file.
const (
	EnvLogLevel     = "LOG_LEVEL"
	EnvRconPassword = "MCCTL_RCON_PASSWORD"
)

// Config represents the main configuration for the application.
type Config struct {
	LogLevel string         `yaml:"log_level"` // Logging level (e.g., DEBUG, INFO, ERROR)
	Server   ServerConfig   `yaml:"server"`    // Managed server settings
	Rcon     RconConfig     `yaml:"rcon"`      // Remote console client settings
	Download DownloadConfig `yaml:"download"`  // Server jar download settings
}

// ServerConfig describes the managed server process.
type ServerConfig struct {
	Dir             string            `yaml:"dir"`              // Working directory of the server
	Executable      string            `yaml:"executable"`       // Server jar, relative to Dir unless absolute
	World           string            `yaml:"world"`            // World name passed to the server
	Java            string            `yaml:"java"`             // Launcher binary, looked up in PATH
	JavaArgs        []string          `yaml:"java_args"`        // Launcher arguments placed before the jar
	ReadyTimeout    time.Duration     `yaml:"ready_timeout"`    // Bound on the wait for the server to become ready
	StopTimeout     time.Duration     `yaml:"stop_timeout"`     // Bound on the wait for a graceful stop
	SettleDelay     time.Duration     `yaml:"settle_delay"`     // Pause after readiness
	WatchProperties bool              `yaml:"watch_properties"` // Reload server.properties when it changes
	Properties      map[string]string `yaml:"properties"`       // Overrides merged into server.properties, replacing the defaults
}

// RconConfig describes how the rcon subcommand reaches a server.
type RconConfig struct {
	Address  string        `yaml:"address"`  // host:port of the RCON listener
	Password string        `yaml:"password"` // RCON password, prompted for when empty
	Timeout  time.Duration `yaml:"timeout"`  // Per-request I/O timeout
}

// DownloadConfig describes where server jars come from.
type DownloadConfig struct {
	ManifestURL string        `yaml:"manifest_url"` // Launcher version manifest
	Version     string        `yaml:"version"`      // Version to fetch; empty means the latest release
	Timeout     time.Duration `yaml:"timeout"`      // Global timeout for HTTP requests
}

// NewConfig returns a Config instance populated with default values.
func NewConfig() Config {
	return Config{
		LogLevel: "INFO",
		Server: ServerConfig{
			Dir:          "server",
			Executable:   "server.jar",
			World:        "world",
			Java:         "java",
			JavaArgs:     []string{"-Xmx2G", "-jar"},
			ReadyTimeout: 5 * time.Minute,
			StopTimeout:  time.Minute,
			SettleDelay:  time.Second,
			Properties: map[string]string{
				"enable-rcon": "true",
				"rcon.port":   "25575",
			},
		},
		Rcon: RconConfig{
			Address: "127.0.0.1:25575",
			Timeout: 10 * time.Second,
		},
		Download: DownloadConfig{
			ManifestURL: "https://launchermeta.mojang.com/mc/game/version_manifest.json",
			Timeout:     5 * time.Minute,
		},
	}
}

// Load reads configuration from the specified file path into the Config struct.
// If the file does not exist, a default configuration is created and saved to the path,
// and created is true. Environment overrides are applied in both cases.
func (c *Config) Load(path string) (created bool, err error) {
	file, err := os.Open(path) //nolint
	if err != nil {
		if !os.IsNotExist(err) {
			return false, fmt.Errorf("could not open config file: %w", err)
		}

		*c = NewConfig()
		data, marshalErr := yaml.Marshal(c)
		if marshalErr != nil {
			return false, fmt.Errorf("failed to marshal default config: %w", marshalErr)
		}
		if dir := filepath.Dir(path); dir != "." {
			if mkdirErr := os.MkdirAll(dir, 0o755); mkdirErr != nil {
				return false, fmt.Errorf("failed to create config directory: %w", mkdirErr)
			}
		}
		if writeErr := os.WriteFile(path, data, 0o600); writeErr != nil {
			return false, fmt.Errorf("failed to write default config file: %w", writeErr)
		}

		c.applyEnv()
		return true, nil
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return false, fmt.Errorf("could not read config file: %w", err)
	}

	// A properties map in the file replaces the defaults instead of merging into them.
	defaults := c.Server.Properties
	c.Server.Properties = nil
	if err := yaml.Unmarshal(data, c); err != nil {
		c.Server.Properties = defaults
		return false, fmt.Errorf("could not parse yaml config: %w", err)
	}
	if c.Server.Properties == nil {
		c.Server.Properties = defaults
	}

	c.applyEnv()
	return false, nil
}

func (c *Config) applyEnv() {
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
	if password := os.Getenv(EnvRconPassword); password != "" {
		c.Rcon.Password = password
	}
}

// ExecutablePath returns the server jar path, resolved against the server directory.
func (s ServerConfig) ExecutablePath() string {
	if filepath.IsAbs(s.Executable) {
		return s.Executable
	}
	return filepath.Join(s.Dir, s.Executable)
}
