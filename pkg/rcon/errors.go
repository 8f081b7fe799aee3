package rcon

import "errors"

var (
	// ErrIO is returned when reading from or writing to the connection fails.
	ErrIO = errors.New("rcon transport failure")

	// ErrMalformedPacket is returned when a packet's declared length cannot be fully read
	// or is too small to hold the fixed header.
	ErrMalformedPacket = errors.New("malformed rcon packet")

	// ErrInvalidPayload is returned when a response payload is not valid UTF-8.
	ErrInvalidPayload = errors.New("rcon payload is not valid UTF-8")

	// ErrLoginFailed is returned when the server rejects the password.
	ErrLoginFailed = errors.New("rcon login failed")

	// ErrNotAuthenticated is returned when a command is sent before a successful login.
	ErrNotAuthenticated = errors.New("rcon session is not authenticated")

	// ErrClosed is returned when the session has already been closed.
	ErrClosed = errors.New("rcon session is closed")
)
