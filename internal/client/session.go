package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omochice/toy-irc-chat/internal/config"
	"github.com/omochice/toy-irc-chat/internal/logger"
	"github.com/omochice/toy-irc-chat/pkg/protocol"
)

const (
	readBufferSize = 4096

	// quitTimeout bounds the best-effort QUIT sent while shutting down.
	quitTimeout = 2 * time.Second
)

// Session is a single connection to one IRC server.
//
// Connect dials and registers, Run drives the inbound and outbound loops
// until the session ends, and Shutdown may be called at any time from any
// goroutine. A Session is used once; there is no reconnection.
type Session struct {
	cfg       config.Config
	dialer    Dialer
	presenter Presenter
	log       *slog.Logger
	clock     func() time.Time

	mu     sync.RWMutex
	state  protocol.State
	status Status
	conn   Connection

	// writeMu serializes every line written to conn.
	writeMu sync.Mutex

	running   atomic.Bool
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
	wg        sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

// WithDialer replaces the default NetDialer.
func WithDialer(d Dialer) Option {
	return func(s *Session) {
		s.dialer = d
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// WithClock sets the time source used to stamp presented events.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) {
		s.clock = clock
	}
}

// New creates a Session for cfg. cfg must have passed validation.
func New(cfg config.Config, presenter Presenter, opts ...Option) *Session {
	s := &Session{
		cfg:       cfg,
		dialer:    &NetDialer{},
		presenter: presenter,
		log:       logger.Discard(),
		clock:     time.Now,
		state:     cfg.State(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("server", s.state.Address())
	return s
}

// Status returns the current lifecycle stage.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// IsConnected returns whether the session is registered and running.
func (s *Session) IsConnected() bool {
	return s.Status() == StatusConnected
}

// State returns a copy of the session state.
func (s *Session) State() protocol.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Done is closed once the session has shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	prev := s.status
	s.status = status
	s.mu.Unlock()
	if prev != status {
		s.log.Debug("status changed", "from", prev, "to", status)
	}
}

// Connect dials the server and sends the registration lines. It does not
// wait for the server to acknowledge them.
//
// A Shutdown while the dial is in flight wins: the new connection is
// closed and Connect returns ErrClosed.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.status {
	case StatusDisconnected:
	case StatusClosing, StatusClosed:
		s.mu.Unlock()
		return ErrClosed
	default:
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.status = StatusRegistering
	addr := s.state.Address()
	s.mu.Unlock()

	s.log.Info("connecting", "transport", s.cfg.Transport, "tls", s.cfg.TLS)
	conn, err := s.dialer.Dial(ctx, s.cfg)
	if err != nil {
		s.log.Error("connect failed", "error", err)
		s.mu.Lock()
		if s.status == StatusRegistering {
			s.status = StatusDisconnected
		}
		s.mu.Unlock()
		return &ConnectError{Address: addr, Err: err}
	}

	s.mu.Lock()
	if s.status != StatusRegistering {
		s.mu.Unlock()
		s.log.Info("shut down while dialing")
		if err := conn.Close(); err != nil && !isClosed(err) {
			s.log.Debug("failed to close connection", "error", err)
		}
		return ErrClosed
	}
	s.conn = conn
	s.running.Store(true)
	s.mu.Unlock()

	for _, line := range protocol.Registration(s.State()) {
		if err := s.writeLine(line); err != nil {
			if !s.running.Load() {
				return ErrClosed
			}
			_ = s.Shutdown()
			return &ConnectError{Address: addr, Err: err}
		}
	}

	s.mu.Lock()
	if s.status != StatusRegistering {
		s.mu.Unlock()
		return ErrClosed
	}
	s.status = StatusConnected
	s.mu.Unlock()
	s.log.Debug("status changed", "from", StatusRegistering, "to", StatusConnected)
	s.log.Info("registered", "nick", s.State().Nick)
	return nil
}

// Run drives the session until it ends: the inbound loop reads server
// lines and the outbound loop reads operator input. It returns nil when
// the operator quit, Shutdown was called or ctx was cancelled, and an
// *IOError when the connection failed or the server closed it.
func (s *Session) Run(ctx context.Context, input Input) error {
	s.mu.RLock()
	conn := s.conn
	status := s.status
	s.mu.RUnlock()
	switch status {
	case StatusConnected:
	case StatusClosing, StatusClosed:
		return nil
	default:
		return ErrNotConnected
	}

	errc := make(chan error, 2)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		errc <- s.receiveLines(conn)
	}()
	go func() {
		defer s.wg.Done()
		errc <- s.readInput(input)
	}()

	var err error
	select {
	case err = <-errc:
	case <-s.done:
	case <-ctx.Done():
		s.log.Info("context done, shutting down")
	}

	closeErr := s.Shutdown()
	if cerr := input.Close(); cerr != nil {
		s.log.Debug("failed to close input", "error", cerr)
	}
	s.wg.Wait()

	close(errc)
	for e := range errc {
		if err == nil {
			err = e
		}
	}

	return errors.Join(err, closeErr)
}

// Submit translates one line of operator input and sends the result.
// Rejected input is reported to the presenter and is not an error.
func (s *Session) Submit(text string) error {
	if !s.running.Load() {
		switch s.Status() {
		case StatusDisconnected, StatusRegistering:
			return ErrNotConnected
		}
		return ErrClosed
	}

	s.mu.Lock()
	intent, err := protocol.Translate(text, &s.state)
	s.mu.Unlock()

	if errors.Is(err, protocol.ErrEmptyInput) {
		return nil
	}
	var rejected *protocol.CommandRejected
	if errors.As(err, &rejected) {
		s.log.Debug("command rejected", "error", err)
		s.presenter.Reject(rejected)
		return nil
	}
	if err != nil {
		return err
	}

	if intent.Kind == protocol.IntentQuit {
		s.log.Info("quit requested")
		// Run reports the shutdown result.
		_ = s.Shutdown()
		return nil
	}

	return s.writeLine(intent.Line())
}

// Shutdown ends the session: it stops both loops, sends a best-effort
// QUIT and closes the connection. It is safe to call more than once and
// from any goroutine; later calls return the first call's result.
//
// Failures meaning the connection is already gone are dropped. Anything
// else is returned.
func (s *Session) Shutdown() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.running.Store(false)
		prev := s.status
		s.status = StatusClosing
		conn := s.conn
		s.mu.Unlock()
		s.log.Debug("status changed", "from", prev, "to", StatusClosing)

		var errs []error
		if conn != nil {
			if d, ok := conn.(deadliner); ok {
				_ = d.SetWriteDeadline(time.Now().Add(quitTimeout))
			}
			if err := s.writeLine(protocol.Quit()); err != nil && !isClosed(err) {
				s.log.Warn("failed to send quit", "error", err)
				errs = append(errs, err)
			}
			if err := conn.Close(); err != nil && !isClosed(err) {
				s.log.Warn("failed to close connection", "error", err)
				errs = append(errs, &IOError{Op: "close", Err: err})
			}
		}

		s.closeErr = errors.Join(errs...)
		s.setStatus(StatusClosed)
		s.log.Info("session closed")
		close(s.done)
	})
	return s.closeErr
}

// writeLine validates line, appends CRLF and writes it in one call while
// holding the write lock.
func (s *Session) writeLine(line string) error {
	if err := protocol.ValidateLine(line); err != nil {
		return err
	}

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	data := make([]byte, 0, len(line)+2)
	data = append(data, line...)
	data = append(data, '\r', '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := conn.Write(data); err != nil {
		return &IOError{Op: "write", Err: err}
	}

	// Only the verb: message bodies may carry NickServ passwords.
	s.log.Debug("sent", "command", protocol.ParseMessage(line).Command)
	return nil
}

// receiveLines is the inbound loop.
func (s *Session) receiveLines(conn Connection) error {
	framer := protocol.NewFramer()
	buf := make([]byte, readBufferSize)

	for s.running.Load() {
		n, err := conn.Read(buf)
		if n > 0 {
			for _, line := range framer.Feed(buf[:n]) {
				if err := s.handleLine(line); err != nil {
					if !s.running.Load() {
						return nil
					}
					return err
				}
			}
		}
		if err != nil {
			if dropped := framer.Reset(); dropped > 0 {
				s.log.Debug("discarded partial line", "bytes", dropped)
			}
			if !s.running.Load() {
				return nil
			}
			if errors.Is(err, io.EOF) || isClosed(err) {
				s.log.Info("server closed the connection")
			} else {
				s.log.Error("read failed", "error", err)
			}
			return &IOError{Op: "read", Err: err}
		}
	}
	return nil
}

// handleLine answers keepalive checks before anything is presented, so a
// slow presenter cannot delay the PONG.
func (s *Session) handleLine(line protocol.RawLine) error {
	ev := protocol.Classify(line)

	if ev.Kind == protocol.EventKeepaliveCheck {
		if err := s.writeLine(protocol.Pong(ev.Token)); err != nil {
			return err
		}
	}

	s.presenter.Present(Entry{
		At:      s.clock(),
		Event:   ev,
		Current: s.State().Channel,
	})
	return nil
}

// readInput is the outbound loop.
func (s *Session) readInput(input Input) error {
	for s.running.Load() {
		text, err := input.ReadLine(s.prompt())
		if err != nil {
			if !s.running.Load() {
				return nil
			}
			if errors.Is(err, io.EOF) {
				s.log.Info("input closed")
				return nil
			}
			s.log.Error("input failed", "error", err)
			return err
		}

		if err := s.Submit(text); err != nil {
			if errors.Is(err, ErrClosed) || !s.running.Load() {
				return nil
			}
			return err
		}
	}
	return nil
}

func (s *Session) prompt() string {
	return s.State().Channel + " > "
}
