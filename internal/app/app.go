// Package app wires configuration, the managed server, the RCON client and the
// launcher API into the flows behind the mcctl subcommands.
package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/sund3RRR/mcctl/config"
	"github.com/sund3RRR/mcctl/internal/adapters/mojang"
	"github.com/sund3RRR/mcctl/internal/status"
	"github.com/sund3RRR/mcctl/pkg/logger"
	"github.com/sund3RRR/mcctl/pkg/rcon"
	"github.com/sund3RRR/mcctl/pkg/server"
)

// ErrNoPassword is returned when the RCON password is neither configured nor entered.
var ErrNoPassword = errors.New("no RCON password given")

// PasswordFunc asks the user for the RCON password.
type PasswordFunc func() (string, error)

type App struct {
	cfg     config.Config
	logger  *logger.Logger
	mojang  *mojang.Client
	console *Console
}

func NewApp(cfg config.Config, logger *logger.Logger, mojang *mojang.Client, console *Console) *App {
	return &App{
		cfg:     cfg,
		logger:  logger,
		mojang:  mojang,
		console: console,
	}
}

// RunServer starts the configured server and forwards console input to it until
// an empty line, end of input, ctx cancellation or the server exiting on its own.
func (app *App) RunServer(ctx context.Context) error {
	builder, err := app.serverBuilder()
	if err != nil {
		return err
	}

	srv, err := builder.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	defer srv.Close()

	app.reportStatus(srv)
	if addr, ok := srv.RconAddress(); ok {
		app.console.Success("Server ready, RCON listening on %s", addr)
	} else {
		app.console.Success("Server ready")
	}
	app.console.Info("Type commands for the server console, an empty line stops the server")

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()
	lines := app.console.Lines(inputCtx)

	for {
		select {
		case <-ctx.Done():
			app.logger.Info("Interrupted, stopping server")
			return app.stopServer(srv)
		case <-srv.Output():
			app.logger.Warn("Server exited on its own")
			return nil
		case line, ok := <-lines:
			if !ok || line == "" {
				return app.stopServer(srv)
			}
			if err := srv.Command(line); err != nil {
				app.console.Error("Command failed: %v", err)
			}
		}
	}
}

func (app *App) stopServer(srv *server.Instance) error {
	ok, err := srv.TryStop(context.Background())
	if err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	if !ok {
		app.console.Error("Server exited with an error")
		return nil
	}
	app.console.Success("Server stopped")
	return nil
}

// serverBuilder translates the configuration into a server builder.
func (app *App) serverBuilder() (*server.Builder, error) {
	sc := app.cfg.Server

	props := maps.Clone(sc.Properties)
	if props == nil {
		props = map[string]string{}
	}
	if err := app.ensureRconPassword(sc.Dir, props); err != nil {
		return nil, err
	}

	return server.NewBuilder(sc.Dir).
		Executable(sc.ExecutablePath()).
		World(sc.World).
		Launcher(app.launcher()).
		Properties(props).
		ReadyTimeout(sc.ReadyTimeout).
		StopTimeout(sc.StopTimeout).
		SettleDelay(sc.SettleDelay).
		WatchProperties(sc.WatchProperties).
		Logger(app.logger.With("component", "server")), nil
}

// launcher returns the configured runtime, or the default one.
func (app *App) launcher() server.Launcher {
	sc := app.cfg.Server
	if sc.Java == "" {
		return server.DefaultLauncher
	}
	return server.Launcher{Path: sc.Java, Args: sc.JavaArgs}
}

// ensureRconPassword fills in rcon.password when RCON is enabled without one.
// A password already stored in server.properties is kept, otherwise a random one is generated.
func (app *App) ensureRconPassword(dir string, props map[string]string) error {
	if props["enable-rcon"] != "true" || props["rcon.password"] != "" {
		return nil
	}

	existing, err := server.LoadProperties(filepath.Join(dir, server.PropertiesFile))
	switch {
	case err == nil && existing["rcon.password"] != "":
		props["rcon.password"] = existing["rcon.password"]
		return nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return err
	}

	props["rcon.password"] = uuid.NewString()
	app.logger.Info("Generated RCON password %s", props["rcon.password"])
	return nil
}

func (app *App) reportStatus(srv *server.Instance) {
	port := status.DefaultPort
	if p, err := strconv.Atoi(srv.Properties()["server-port"]); err == nil {
		port = p
	}

	st, err := status.Check("127.0.0.1", port)
	if err != nil {
		app.logger.Warn("Status ping failed: %v", err)
		return
	}
	app.logger.Info("Server %s, %d/%d players, motd %q", st.Version, st.Players, st.MaxPlayers, st.Description)
}

// RunRcon opens an RCON session and runs a read-eval-print loop over it.
// An empty line or end of input ends the session.
func (app *App) RunRcon(ctx context.Context, address, password string, askPassword PasswordFunc) error {
	if address == "" {
		address = app.cfg.Rcon.Address
	}
	if password == "" {
		password = app.cfg.Rcon.Password
	}
	if password == "" && askPassword != nil {
		var err error
		if password, err = askPassword(); err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}
	if password == "" {
		return ErrNoPassword
	}

	opts := []rcon.Option{rcon.WithLogger(app.logger.With("component", "rcon"))}
	if app.cfg.Rcon.Timeout > 0 {
		opts = append(opts, rcon.WithTimeout(app.cfg.Rcon.Timeout))
	}

	session, err := rcon.Dial(ctx, address, password, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	defer session.Close()

	app.console.Success("Connected to %s", address)
	lines := app.console.Lines(ctx)
	for {
		app.console.Prompt("> ")

		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}
		if line == "" {
			return nil
		}

		response, err := session.Command(ctx, line)
		if err != nil {
			return fmt.Errorf("command %q failed: %w", line, err)
		}
		app.console.Println(response.Payload)
	}
}

// Status pings the server at address and prints a summary.
func (app *App) Status(address string) error {
	host, port, err := status.ParseAddress(address)
	if err != nil {
		return err
	}

	st, err := status.Check(host, port)
	if err != nil {
		app.console.Error("Server %s is offline: %v", address, err)
		return err
	}

	app.console.Success("Server %s is online (%s)", address, st.Latency)
	app.console.Info("Version:  %s (protocol %d)", st.Version, st.Protocol)
	app.console.Info("Players:  %d/%d", st.Players, st.MaxPlayers)
	for _, name := range st.Sample {
		app.console.Info("          %s", name)
	}
	app.console.Info("MOTD:     %s", st.Description)
	return nil
}

// Download fetches the server jar of version, or of the latest release when
// version is empty, to the configured executable path.
func (app *App) Download(ctx context.Context, version string) error {
	info, err := app.resolveVersion(ctx, version)
	if err != nil {
		return err
	}

	dest := app.cfg.Server.ExecutablePath()
	app.logger.Info("Downloading server %s (%s) to %s", info.ID, info.Type, dest)

	n, err := app.mojang.DownloadServer(ctx, info, dest)
	if err != nil {
		return err
	}

	app.console.Success("Downloaded %s: %d bytes written to %s", info.ID, n, dest)
	return nil
}

// Reports downloads the server jar of version into outDir and runs its data
// generator there. An empty outDir uses a temporary directory that is removed afterwards.
func (app *App) Reports(ctx context.Context, version, outDir string) error {
	info, err := app.resolveVersion(ctx, version)
	if err != nil {
		return err
	}

	keep := outDir != ""
	if !keep {
		tmp, err := os.MkdirTemp("", "mcctl-reports-")
		if err != nil {
			return fmt.Errorf("failed to create work directory: %w", err)
		}
		defer os.RemoveAll(tmp)
		outDir = tmp
	} else if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	jar := filepath.Join(outDir, server.DefaultExecutable)
	app.logger.Info("Downloading server %s (%s) to %s", info.ID, info.Type, jar)
	if _, err := app.mojang.DownloadServer(ctx, info, jar); err != nil {
		return err
	}

	dir, err := server.GenerateReports(ctx, app.launcher(), jar, app.logger.With("component", "generator"))
	if err != nil {
		return err
	}
	reports, err := server.LoadReports(dir)
	if err != nil {
		return err
	}

	states := 0
	for _, block := range reports.Blocks {
		states += len(block.States)
	}
	app.console.Success("Generated reports for %s: %d blocks, %d block states", info.ID, len(reports.Blocks), states)
	if keep {
		app.console.Info("Reports written to %s", dir)
	}
	return nil
}

// resolveVersion looks version up in the manifest, or picks the latest release when it is empty.
func (app *App) resolveVersion(ctx context.Context, version string) (mojang.VersionInfo, error) {
	manifest, err := app.mojang.Manifest(ctx)
	if err != nil {
		return mojang.VersionInfo{}, err
	}
	if version == "" {
		return manifest.LatestRelease()
	}
	return manifest.Find(version)
}
