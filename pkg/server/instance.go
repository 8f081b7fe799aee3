// Package server runs a Minecraft server as a child process: it generates and
// reconciles server.properties, accepts the EULA, waits until the server reports
// it is ready, feeds console commands through stdin and shuts the process down.
//
// Typical use:
//
//	srv, err := server.NewBuilder(dir).
//		Property("enable-rcon", "true").
//		Property("rcon.password", "secret").
//		Start(ctx)
//	if err != nil {
//		return err
//	}
//	defer srv.Close()
//
//	err = srv.Command("say hello")
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// PropertiesFile is the server's configuration file inside the working directory.
	PropertiesFile = "server.properties"
	// EulaFile is the acceptance marker the server requires to run unattended.
	EulaFile = "eula.txt"
	// ReadyMarker is printed by the server once it accepts players and commands.
	ReadyMarker = "[Server thread/INFO]: Done "

	eulaContent     = "eula=true"
	stopCommand     = "stop"
	defaultRconPort = "25575"

	settlePollInterval = 100 * time.Millisecond
	dialTimeout        = time.Second
)

// Logger defines the logging interface used by Instance.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Instance is a running server. It is the sole owner of the child process and
// must be released with Close, TryStop or Kill.
type Instance struct {
	dir        string
	executable string
	world      string
	cfg        Config
	logger     Logger

	proc       *Process
	watcher    *PropertyWatcher
	outputDone chan struct{}

	mu         sync.Mutex
	state      State
	properties map[string]string
}

// Start prepares the working directory and launches the server, blocking until it is ready.
//
// If server.properties is missing the server is first run with --initSettings to
// generate it. Configured properties are merged into the file and eula.txt is
// written. The server is then started with --nogui and its output scanned for
// ReadyMarker, bounded by cfg.ReadyTimeout and ctx.
func Start(ctx context.Context, cfg Config) (*Instance, error) {
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	inst := &Instance{
		dir:        cfg.Dir,
		executable: cfg.Executable,
		world:      cfg.World,
		cfg:        cfg,
		logger:     cfg.Logger,
		state:      StateUninitialized,
	}

	inst.setState(StateSettingsBootstrap)
	props, err := inst.bootstrap(ctx)
	if err != nil {
		inst.setState(StateTerminated)
		return nil, err
	}
	inst.properties = props

	inst.setState(StateStarting)
	if err := inst.launch(ctx); err != nil {
		inst.setState(StateTerminated)
		return nil, err
	}

	inst.settle(ctx)

	if err := inst.markRunning(ctx); err != nil {
		inst.Kill()
		return nil, err
	}

	if cfg.WatchProperties {
		inst.watchProperties()
	}

	inst.logger.Info("Server %s is running with PID %d", inst.executable, inst.proc.PID())
	return inst, nil
}

func (i *Instance) bootstrap(ctx context.Context) (map[string]string, error) {
	propsPath := filepath.Join(i.dir, PropertiesFile)

	if _, err := os.Stat(propsPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}
		if err := i.generateSettings(ctx); err != nil {
			return nil, err
		}
	}

	props, err := LoadProperties(propsPath)
	if err != nil {
		return nil, err
	}
	props, err = MergeProperties(propsPath, props, i.cfg.Properties)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(filepath.Join(i.dir, EulaFile), []byte(eulaContent), 0o644); err != nil {
		return nil, fmt.Errorf("%w: writing %s: %w", ErrIO, EulaFile, err)
	}

	return props, nil
}

// generateSettings runs the server once so that it writes its default configuration.
func (i *Instance) generateSettings(ctx context.Context) error {
	i.logger.Info("%s not found, generating default settings", PropertiesFile)

	proc, err := Spawn(i.cfg.Launcher, i.executable, []string{"--initSettings"}, i.dir, i.cfg.Stderr)
	if err != nil {
		return err
	}

	ctx, cancel := withOptionalTimeout(ctx, i.cfg.ReadyTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			line, err := proc.ReadLine()
			if err != nil {
				return
			}
			i.logger.Info("[Server]: %s", line)
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		proc.Kill()
		return fmt.Errorf("%w: %w", ErrBootstrapFailed, ctx.Err())
	}

	status, err := proc.Wait()
	if err != nil {
		return err
	}
	if !status.Success {
		return fmt.Errorf("%w: server did not exit successfully: %s", ErrBootstrapFailed, status)
	}

	return nil
}

// launch starts the real run and blocks until the readiness marker shows up.
func (i *Instance) launch(ctx context.Context) error {
	proc, err := Spawn(i.cfg.Launcher, i.executable, []string{"--nogui", "--world", i.world}, i.dir, i.cfg.Stderr)
	if err != nil {
		return err
	}
	i.proc = proc
	i.outputDone = make(chan struct{})
	i.logger.Info("Starting server %s (PID %d), world %q", i.executable, proc.PID(), i.world)

	ctx, cancel := withOptionalTimeout(ctx, i.cfg.ReadyTimeout)
	defer cancel()

	ready := make(chan struct{})
	go i.readOutput(ready)

	select {
	case <-ready:
		return nil
	case <-i.outputDone:
		select {
		case <-ready:
			return nil
		default:
		}
		proc.Kill()
		return fmt.Errorf("%w: output ended before the server was ready", ErrStartupFailed)
	case <-ctx.Done():
		proc.Kill()
		return fmt.Errorf("%w: waiting for readiness: %w", ErrStartupFailed, ctx.Err())
	}
}

// readOutput consumes stdout for the whole life of the process. Lines are logged
// until the readiness marker, then handed to the output callback.
func (i *Instance) readOutput(ready chan<- struct{}) {
	defer close(i.outputDone)

	isReady := false
	for {
		line, err := i.proc.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				i.logger.Warn("Reading server output: %v", err)
			}
			break
		}

		if !isReady {
			i.logger.Info("[Server]: %s", line)
			if strings.Contains(line, ReadyMarker) {
				isReady = true
				close(ready)
			}
			continue
		}

		i.logger.Debug("[Server]: %s", line)
		if i.cfg.OnOutput != nil {
			i.cfg.OnOutput(line)
		}
	}

	status, err := i.proc.Wait()
	if err != nil {
		i.logger.Error("Server (PID %d) wait failed: %v", i.proc.PID(), err)
	} else {
		i.logger.Info("Server (PID %d) exited: %s", i.proc.PID(), status)
	}

	i.mu.Lock()
	i.state = StateTerminated
	i.mu.Unlock()
}

// settle gives the server a moment to open its network listeners after the marker.
// When RCON is enabled the RCON port is polled and the wait ends as soon as it accepts.
func (i *Instance) settle(ctx context.Context) {
	if i.cfg.SettleDelay <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, i.cfg.SettleDelay)
	defer cancel()

	addr, ok := i.RconAddress()
	if !ok {
		select {
		case <-ctx.Done():
		case <-i.outputDone:
		}
		return
	}

	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			i.logger.Warn("RCON listener %s not reachable after %s", addr, i.cfg.SettleDelay)
			return
		case <-i.outputDone:
			return
		case <-ticker.C:
			conn, err := net.DialTimeout("tcp", addr, dialTimeout)
			if err != nil {
				i.logger.Debug("Attempt %d: RCON listener %s not ready: %v", attempt, addr, err)
				continue
			}
			conn.Close()
			i.logger.Debug("RCON listener %s is up after %d attempts", addr, attempt)
			return
		}
	}
}

// markRunning ends startup. It fails when the server exited during the settle
// window or ctx ended meanwhile.
func (i *Instance) markRunning(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStartupFailed, err)
	}
	if i.state != StateStarting {
		return fmt.Errorf("%w: server exited before it was running", ErrStartupFailed)
	}

	i.logger.Debug("Server state %s -> %s", i.state, StateRunning)
	i.state = StateRunning
	return nil
}

func (i *Instance) watchProperties() {
	w := NewPropertyWatcher(filepath.Join(i.dir, PropertiesFile), i.logger, func(props map[string]string) {
		i.mu.Lock()
		i.properties = props
		i.mu.Unlock()
		i.logger.Debug("Reloaded %s (%d keys)", PropertiesFile, len(props))
	})
	if err := w.Start(context.Background()); err != nil {
		i.logger.Warn("Property file watching disabled: %v", err)
		return
	}
	i.watcher = w
}

// Command writes a console command to the server's stdin. No reply is read;
// the server's answer, if any, appears in its output.
func (i *Instance) Command(text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.commandLocked(text)
}

func (i *Instance) commandLocked(text string) error {
	if i.state != StateRunning {
		return fmt.Errorf("%w: server is %s", ErrStdinUnavailable, i.state)
	}
	select {
	case <-i.proc.Exited():
		return fmt.Errorf("%w: server process has exited", ErrStdinUnavailable)
	default:
	}

	i.logger.Debug("Sending command to server: %s", text)
	if err := i.proc.WriteLine(text); err != nil {
		return fmt.Errorf("%w: %w", ErrStdinUnavailable, err)
	}
	return nil
}

// TryStop sends "stop" and waits for the process to exit, bounded by the stop
// timeout and ctx. It reports whether the server exited successfully.
// A non-zero exit is not an error. On ErrStopTimeout the process is still
// running and may be killed.
func (i *Instance) TryStop(ctx context.Context) (bool, error) {
	i.mu.Lock()
	if i.state == StateTerminated {
		i.mu.Unlock()
		status, err := i.proc.Wait()
		return status.Success, err
	}
	if err := i.commandLocked(stopCommand); err != nil {
		i.mu.Unlock()
		return false, err
	}
	i.state = StateStopping
	i.mu.Unlock()

	i.logger.Info("Stopping server (PID %d)", i.proc.PID())

	ctx, cancel := withOptionalTimeout(ctx, i.cfg.StopTimeout)
	defer cancel()

	select {
	case <-i.outputDone:
	case <-ctx.Done():
		return false, fmt.Errorf("%w: %w", ErrStopTimeout, ctx.Err())
	}

	status, err := i.proc.Wait()
	i.release()
	if err != nil {
		return false, err
	}
	return status.Success, nil
}

// Kill terminates the server immediately. Calling it again, or after the server
// exited, does nothing.
func (i *Instance) Kill() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.proc.Kill(); err != nil {
		return err
	}
	i.state = StateTerminated
	i.releaseLocked()
	return nil
}

// Close stops the server gracefully and falls back to Kill when the graceful
// stop fails or does not report success. Graceful stop errors are logged, not
// returned. Close is safe to defer and to call repeatedly.
func (i *Instance) Close() error {
	if i.State() == StateTerminated {
		i.release()
		return nil
	}

	ok, err := i.TryStop(context.Background())
	if err != nil {
		i.logger.Warn("Graceful stop failed, killing server: %v", err)
	}
	if err != nil || !ok {
		return i.Kill()
	}
	return nil
}

func (i *Instance) release() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.state = StateTerminated
	i.releaseLocked()
}

func (i *Instance) releaseLocked() {
	i.proc.CloseStdin()
	if i.watcher != nil {
		i.watcher.Stop()
		i.watcher = nil
	}
}

func (i *Instance) setState(s State) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.logger.Debug("Server state %s -> %s", i.state, s)
	i.state = s
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.state
}

// Dir returns the working directory.
func (i *Instance) Dir() string { return i.dir }

// Executable returns the path of the server artifact.
func (i *Instance) Executable() string { return i.executable }

// World returns the world name the server was started with.
func (i *Instance) World() string { return i.world }

// PID returns the process id of the running server.
func (i *Instance) PID() int { return i.proc.PID() }

// Output returns a channel closed once the server's output stream has ended and
// the process has been reaped.
func (i *Instance) Output() <-chan struct{} { return i.outputDone }

// Properties returns a copy of the server properties after the merge, refreshed
// from disk when property watching is enabled.
func (i *Instance) Properties() map[string]string {
	i.mu.Lock()
	defer i.mu.Unlock()

	return maps.Clone(i.properties)
}

// RconAddress returns the address of the RCON listener and whether RCON is enabled.
func (i *Instance) RconAddress() (string, bool) {
	props := i.Properties()
	if !strings.EqualFold(props["enable-rcon"], "true") {
		return "", false
	}

	host := props["server-ip"]
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	port := props["rcon.port"]
	if port == "" {
		port = defaultRconPort
	}
	return net.JoinHostPort(host, port), true
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
