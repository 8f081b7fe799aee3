package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvRconPassword, "")
	path := filepath.Join(t.TempDir(), "nested", "mcctl.yaml")

	cfg := Config{}
	created, err := cfg.Load(path)
	assert.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, NewConfig(), cfg)

	// The written file loads back to the same configuration.
	reloaded := Config{}
	created, err = reloaded.Load(path)
	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, cfg, reloaded)
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvRconPassword, "")
	path := filepath.Join(t.TempDir(), "mcctl.yaml")
	data := `
log_level: DEBUG
server:
  dir: /srv/mc
  world: survival
  ready_timeout: 90s
  java_args: ["-jar"]
  properties:
    motd: Hello
rcon:
  address: mc.example.com:25575
  password: secret
`
	assert.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg := NewConfig()
	_, err := cfg.Load(path)
	assert.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "/srv/mc", cfg.Server.Dir)
	assert.Equal(t, "survival", cfg.Server.World)
	assert.Equal(t, 90*time.Second, cfg.Server.ReadyTimeout)
	assert.Equal(t, time.Minute, cfg.Server.StopTimeout)
	assert.Equal(t, []string{"-jar"}, cfg.Server.JavaArgs)
	assert.Equal(t, map[string]string{"motd": "Hello"}, cfg.Server.Properties)
	assert.Equal(t, "mc.example.com:25575", cfg.Rcon.Address)
	assert.Equal(t, "secret", cfg.Rcon.Password)
	assert.Equal(t, "/srv/mc/server.jar", cfg.Server.ExecutablePath())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvRconPassword, "from-env")
	path := filepath.Join(t.TempDir(), "mcctl.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("log_level: DEBUG\nrcon:\n  password: from-file\n"), 0o600))

	cfg := NewConfig()
	_, err := cfg.Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, "from-env", cfg.Rcon.Password)
	// No properties in the file keeps the defaults.
	assert.Equal(t, NewConfig().Server.Properties, cfg.Server.Properties)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcctl.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	cfg := NewConfig()
	_, err := cfg.Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "could not parse yaml config")
}

func TestExecutablePathAbsolute(t *testing.T) {
	s := ServerConfig{Dir: "server", Executable: "/opt/mc/paper.jar"}
	assert.Equal(t, "/opt/mc/paper.jar", s.ExecutablePath())
}
