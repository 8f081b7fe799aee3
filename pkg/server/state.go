package server

// State is a step in the server lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateSettingsBootstrap
	StateStarting
	StateRunning
	StateStopping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSettingsBootstrap:
		return "settings-bootstrap"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
