package server

import (
	"context"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultExecutable is the server artifact looked up in the working directory.
	DefaultExecutable = "server.jar"
	// DefaultWorldName is the world loaded when none is configured.
	DefaultWorldName = "world"

	defaultReadyTimeout = 5 * time.Minute
	defaultStopTimeout  = time.Minute
	defaultSettleDelay  = time.Second
)

// OutputFunc receives every line the server prints after it became ready.
type OutputFunc func(line string)

// Config is the complete description of a server to start. Build it with a Builder.
type Config struct {
	Dir             string            // Working directory holding server.properties and eula.txt
	Executable      string            // Server artifact, inside Dir
	World           string            // World name passed with --world
	Properties      map[string]string // Overrides merged into server.properties
	Launcher        Launcher          // Runtime used to execute the artifact
	ReadyTimeout    time.Duration     // Bound on the wait for the readiness marker
	StopTimeout     time.Duration     // Bound on the wait for exit after "stop"
	SettleDelay     time.Duration     // Pause after readiness before remote connections are expected
	Stderr          io.Writer         // Receives the child's stderr; nil discards it
	OnOutput        OutputFunc        // Receives output lines once running
	WatchProperties bool              // Keep Properties in sync with the file while running
	Logger          Logger
}

// Builder assembles a Config. Setters can be chained; validation happens in Build.
type Builder struct {
	cfg Config
}

// NewBuilder returns a builder for a server living in dir, running dir/server.jar.
func NewBuilder(dir string) *Builder {
	return &Builder{cfg: Config{
		Dir:          dir,
		Executable:   filepath.Join(dir, DefaultExecutable),
		World:        DefaultWorldName,
		Properties:   map[string]string{},
		Launcher:     DefaultLauncher,
		ReadyTimeout: defaultReadyTimeout,
		StopTimeout:  defaultStopTimeout,
		SettleDelay:  defaultSettleDelay,
	}}
}

// WithExecutable returns a builder whose working directory is the executable's parent.
func WithExecutable(executable string) *Builder {
	return NewBuilder(filepath.Dir(executable)).Executable(executable)
}

// Executable sets the path of the server artifact. It must be inside the working directory.
func (b *Builder) Executable(path string) *Builder {
	b.cfg.Executable = path
	return b
}

// World sets the name of the world to load.
func (b *Builder) World(name string) *Builder {
	b.cfg.World = name
	return b
}

// Property sets one server.properties override.
func (b *Builder) Property(key, value string) *Builder {
	b.cfg.Properties[key] = value
	return b
}

// Properties sets several server.properties overrides.
func (b *Builder) Properties(props map[string]string) *Builder {
	maps.Copy(b.cfg.Properties, props)
	return b
}

// Launcher sets the runtime used to execute the artifact.
func (b *Builder) Launcher(l Launcher) *Builder {
	b.cfg.Launcher = l
	return b
}

// ReadyTimeout bounds the wait for the readiness marker. Zero disables the bound.
func (b *Builder) ReadyTimeout(d time.Duration) *Builder {
	b.cfg.ReadyTimeout = d
	return b
}

// StopTimeout bounds the wait for exit after a graceful stop. Zero disables the bound.
func (b *Builder) StopTimeout(d time.Duration) *Builder {
	b.cfg.StopTimeout = d
	return b
}

// SettleDelay sets the pause after readiness.
func (b *Builder) SettleDelay(d time.Duration) *Builder {
	b.cfg.SettleDelay = d
	return b
}

// Stderr sets where the child's stderr goes.
func (b *Builder) Stderr(w io.Writer) *Builder {
	b.cfg.Stderr = w
	return b
}

// OnOutput sets the callback receiving output lines after readiness.
func (b *Builder) OnOutput(fn OutputFunc) *Builder {
	b.cfg.OnOutput = fn
	return b
}

// WatchProperties keeps the instance's properties in sync with server.properties while running.
func (b *Builder) WatchProperties(enabled bool) *Builder {
	b.cfg.WatchProperties = enabled
	return b
}

// Logger sets the logger.
func (b *Builder) Logger(l Logger) *Builder {
	b.cfg.Logger = l
	return b
}

// Build validates the configuration and returns a copy of it.
func (b *Builder) Build() (Config, error) {
	cfg := b.cfg
	cfg.Properties = maps.Clone(b.cfg.Properties)
	cfg.Launcher.Args = append([]string(nil), b.cfg.Launcher.Args...)

	if cfg.Dir == "" {
		return Config{}, fmt.Errorf("%w: working directory is empty", ErrInvalidConfig)
	}
	if cfg.World == "" {
		return Config{}, fmt.Errorf("%w: world name is empty", ErrInvalidConfig)
	}
	if cfg.Launcher.Path == "" {
		return Config{}, fmt.Errorf("%w: launcher is empty", ErrInvalidConfig)
	}
	if !within(cfg.Dir, cfg.Executable) {
		return Config{}, fmt.Errorf("%w: executable %s is outside %s", ErrInvalidConfig, cfg.Executable, cfg.Dir)
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	return cfg, nil
}

// Start builds the configuration and starts the server. See Start.
func (b *Builder) Start(ctx context.Context) (*Instance, error) {
	cfg, err := b.Build()
	if err != nil {
		return nil, err
	}
	return Start(ctx, cfg)
}

func within(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
