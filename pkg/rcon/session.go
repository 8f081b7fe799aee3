// Package rcon implements a blocking client for the Minecraft remote console protocol.
package rcon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	defaultDialTimeout = 5 * time.Second
	// requestID is used for every request; a session has at most one outstanding.
	requestID int32 = 0
)

// Logger defines the logging interface used by Session.
type Logger interface {
	Debug(format string, args ...any)
	Warn(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

type state int32

const (
	stateConnected state = iota
	stateAuthenticated
	stateClosed
)

// Option configures a Session.
type Option func(*Session)

// WithDialTimeout bounds the TCP connect performed by Dial.
func WithDialTimeout(d time.Duration) Option {
	return func(s *Session) { s.dialTimeout = d }
}

// WithTimeout bounds every request/response exchange that has no earlier context deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithMaxResponseSize rejects responses whose declared length exceeds n bytes.
func WithMaxResponseSize(n int) Option {
	return func(s *Session) { s.maxResponse = n }
}

// WithLogger sets the logger used for connection events.
func WithLogger(l Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Session is an RCON connection to a single server.
//
// Requests are strictly sequential: the session holds a lock for the whole
// write-then-read exchange. The connection is closed exactly once, either by
// Close or internally after a transport failure or rejected login.
type Session struct {
	conn        net.Conn
	dialTimeout time.Duration
	timeout     time.Duration
	maxResponse int
	logger      Logger

	mu        sync.Mutex
	state     state
	closeOnce sync.Once
}

// Dial connects to address and logs in with password.
// On a failed login the connection is closed and ErrLoginFailed returned.
func Dial(ctx context.Context, address, password string, opts ...Option) (*Session, error) {
	s := newSession(nil, opts...)

	dialer := net.Dialer{Timeout: s.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrIO, address, err)
	}
	s.conn = conn
	s.logger.Debug("rcon: connected to %s", address)

	if err := s.Login(ctx, password); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// NewSession wraps an established connection. Login must succeed before commands are accepted.
// A nil conn yields a closed session.
func NewSession(conn net.Conn, opts ...Option) *Session {
	s := newSession(conn, opts...)
	if conn == nil {
		s.state = stateClosed
	}
	return s
}

func newSession(conn net.Conn, opts ...Option) *Session {
	s := &Session{
		conn:        conn,
		dialTimeout: defaultDialTimeout,
		logger:      nopLogger{},
		state:       stateConnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login authenticates the session.
//
// A rejected password is reported by the server as a reply with id -1 and the
// command type value; the session is closed and ErrLoginFailed returned.
func (s *Session) Login(ctx context.Context, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateClosed:
		return ErrClosed
	case stateAuthenticated:
		return nil
	}

	resp, err := s.exchange(ctx, Packet{ID: requestID, Type: TypeLogin, Payload: []byte(password)})
	if err != nil {
		return err
	}

	if resp.loginRejected() {
		s.logger.Warn("rcon: login rejected by %s", s.conn.RemoteAddr())
		s.closeLocked()
		return ErrLoginFailed
	}
	if resp.ID != requestID {
		s.closeLocked()
		return fmt.Errorf("%w: login answered with id %d, want %d", ErrMalformedPacket, resp.ID, requestID)
	}

	s.state = stateAuthenticated
	return nil
}

// Command sends text as a command and returns the server's single reply.
func (s *Session) Command(ctx context.Context, text string) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateClosed:
		return Response{}, ErrClosed
	case stateConnected:
		return Response{}, ErrNotAuthenticated
	}

	s.logger.Debug("rcon: sending command %q", text)
	return s.exchange(ctx, Packet{ID: requestID, Type: TypeCommand, Payload: []byte(text)})
}

// Authenticated reports whether the session accepts commands.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state == stateAuthenticated
}

// RemoteAddr returns the server address, or nil for a session without a connection.
func (s *Session) RemoteAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.RemoteAddr()
}

// Close shuts the connection down in both directions.
// Only the first call can return an error; later calls, including calls after
// the session closed itself, return nil.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	var err error
	s.closeOnce.Do(func() {
		s.state = stateClosed
		if s.conn == nil {
			return
		}
		if cerr := s.conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	})
	return err
}

// exchange writes p and reads one reply. Any failure leaves the stream in an
// unknown position, so the session is closed. Callers hold s.mu.
func (s *Session) exchange(ctx context.Context, p Packet) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	deadline, ok := ctx.Deadline()
	if !ok && s.timeout > 0 {
		deadline = time.Now().Add(s.timeout)
	}
	if err := s.conn.SetDeadline(deadline); err != nil {
		s.closeLocked()
		return Response{}, fmt.Errorf("%w: set deadline: %w", ErrIO, err)
	}

	// Unblock the exchange when the context is cancelled before the deadline.
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := p.WriteTo(s.conn); err != nil {
		s.closeLocked()
		return Response{}, fmt.Errorf("%w: write: %w", ErrIO, err)
	}

	resp, err := ReadResponseLimit(s.conn, s.maxResponse)
	if err != nil {
		s.closeLocked()
		return Response{}, err
	}

	return resp, nil
}
