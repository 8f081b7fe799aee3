// Command mcctl runs and remotely controls a Minecraft server.
//
// Usage:
//
//	mcctl [-config mcctl.yaml] [-log-level INFO] [-color] <command> [flags]
//
// Commands:
//
//	server    start the configured server and forward console input to it
//	rcon      open an interactive remote console
//	status    ping a server and print its status
//	download  download a server jar
//	reports   download a server jar and run its data generator
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/sund3RRR/mcctl/config"
	"github.com/sund3RRR/mcctl/internal/adapters/mojang"
	"github.com/sund3RRR/mcctl/internal/app"
	"github.com/sund3RRR/mcctl/pkg/logger"
)

type cliOptions struct {
	configPath  string
	logLevel    string
	enableColor bool
}

func main() {
	options := parseFlags()

	cfg := config.NewConfig()
	created, err := cfg.Load(options.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if options.logLevel != "" {
		cfg.LogLevel = options.logLevel
	}

	log := logger.NewWithOutput(cfg.LogLevel, os.Stderr)
	if created {
		log.Info("Config file not found, created default at %s", options.configPath)
	}

	console := app.NewConsole(os.Stdin, os.Stdout, os.Stderr, options.enableColor)
	application := app.NewApp(cfg, log, mojang.New(cfg.Download), console)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	if err := run(ctx, application, flag.Args()); err != nil {
		console.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, application *app.App, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("no command given")
	}

	command, args := args[0], args[1:]
	fs := flag.NewFlagSet(command, flag.ExitOnError)

	switch command {
	case "server":
		fs.Parse(args)
		return application.RunServer(ctx)

	case "rcon":
		address := fs.String("address", "", "RCON address host:port (default from config)")
		password := fs.String("password", "", "RCON password (default from config or "+config.EnvRconPassword+")")
		fs.Parse(args)
		return application.RunRcon(ctx, *address, *password, promptPassword)

	case "status":
		fs.Parse(args)
		address := fs.Arg(0)
		if address == "" {
			address = "127.0.0.1"
		}
		return application.Status(address)

	case "download":
		version := fs.String("version", "", "Server version (default latest release)")
		fs.Parse(args)
		return application.Download(ctx, *version)

	case "reports":
		version := fs.String("version", "", "Server version (default latest release)")
		out := fs.String("out", "", "Directory to keep the jar and reports in (default temporary)")
		fs.Parse(args)
		return application.Reports(ctx, *version, *out)

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// parseFlags parses the global command-line flags.
func parseFlags() cliOptions {
	options := cliOptions{}

	flag.StringVar(&options.configPath, "config", "mcctl.yaml", "Configuration file path")
	flag.StringVar(&options.logLevel, "log-level", "", "Log level: DEBUG, INFO, WARN or ERROR (overrides config)")
	flag.BoolVar(&options.enableColor, "color", isatty.IsTerminal(os.Stdout.Fd()), "Enable coloured output")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] server|rcon|status|download|reports [command flags]\n", os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()
	return options
}

// promptPassword reads the RCON password from the terminal without echo.
func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}

	fmt.Fprint(os.Stderr, "RCON password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(password), nil
}

// setupSignalHandler cancels the context on SIGINT or SIGTERM.
func setupSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		cancelFunc()
	}()
}
