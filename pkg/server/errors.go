package server

import "errors"

var (
	// ErrIO is returned when a filesystem or pipe operation fails.
	ErrIO = errors.New("i/o failure")

	// ErrParse is returned when a property file line cannot be split into key and value.
	ErrParse = errors.New("malformed property file")

	// ErrLauncherNotFound is returned when the runtime needed to execute the server is not installed.
	ErrLauncherNotFound = errors.New("server launcher not found")

	// ErrBootstrapFailed is returned when the settings generation run does not exit successfully.
	ErrBootstrapFailed = errors.New("failed to generate default server settings")

	// ErrStartupFailed is returned when the server output ends, or the wait expires,
	// before the readiness marker is printed.
	ErrStartupFailed = errors.New("server failed to start")

	// ErrStdinUnavailable is returned when a command cannot be written because the server
	// is not running or its input stream is gone.
	ErrStdinUnavailable = errors.New("server stdin is unavailable")

	// ErrStopTimeout is returned when the server does not exit within the stop timeout.
	ErrStopTimeout = errors.New("timed out waiting for server to stop")

	// ErrReportsFailed is returned when the data generator fails or its output cannot be decoded.
	ErrReportsFailed = errors.New("failed to generate server reports")

	// ErrInvalidConfig is returned by the builder when the configuration is inconsistent.
	ErrInvalidConfig = errors.New("invalid server configuration")
)
