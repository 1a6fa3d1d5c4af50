package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/gobwas/ws/wsutil"
)

var (
	// ErrNotConnected indicates an operation that needs a registered session.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected indicates Connect was called twice.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrClosed indicates the session has been shut down.
	ErrClosed = errors.New("session closed")
)

// ConnectError reports a failure to reach or register with the server.
// It is fatal: the client does not retry.
type ConnectError struct {
	Address string
	Err     error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Address, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IOError reports a read or write failure on an established connection.
// It ends the session.
type IOError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *IOError) Unwrap() error {
	return e.Err
}

// isClosed reports whether err only says the connection is already gone.
// Those failures are expected while shutting down and are not reported.
func isClosed(err error) bool {
	if err == nil {
		return false
	}
	var wsClosed wsutil.ClosedError
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, ErrClosed) ||
		errors.As(err, &wsClosed)
}
