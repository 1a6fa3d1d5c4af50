// Package protocol implements the client side of the IRC line protocol:
// framing a byte stream into lines, classifying inbound lines into events
// and translating operator input into outbound command lines.
//
// Nothing in this package performs I/O. The session engine in
// internal/client owns the socket and drives these pieces.
package protocol

import (
	"errors"
	"fmt"
)

const (
	// MaxLineLength is the maximum length of a protocol line in bytes,
	// including the trailing CRLF.
	MaxLineLength = 512

	// MaxBufferedBytes bounds how much unterminated input the Framer keeps
	// before it flushes the buffer as a line.
	MaxBufferedBytes = 64 * 1024

	// QuitMessage is the reason sent with every QUIT issued by the client.
	QuitMessage = "Client closed"
)

// Sentinel errors. CommandRejected wraps one of them.
var (
	// ErrLineTooLong indicates a rendered line would exceed MaxLineLength.
	ErrLineTooLong = errors.New("line too long")

	// ErrInvalidLine indicates a line containing CR, LF or NUL.
	ErrInvalidLine = errors.New("line contains forbidden characters")

	// ErrUnknownCommand indicates a slash-command the client does not know.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrMissingArgument indicates a known command without its required arguments.
	ErrMissingArgument = errors.New("missing argument")

	// ErrEmptyInput is returned for blank operator input. It is not a
	// rejection; callers ignore it.
	ErrEmptyInput = errors.New("empty input")
)

// CommandRejected reports operator input that produced no wire line.
type CommandRejected struct {
	Input string
	Err   error
}

// Error implements the error interface.
func (e *CommandRejected) Error() string {
	if errors.Is(e.Err, ErrMissingArgument) {
		return fmt.Sprintf("%s: %s", e.Err, usage(e.Input))
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Input)
}

// Unwrap returns the underlying reason for errors.Is support.
func (e *CommandRejected) Unwrap() error {
	return e.Err
}

func reject(input string, err error) error {
	return &CommandRejected{Input: input, Err: err}
}

// ValidateLine checks a line (without CRLF) against the wire invariants.
func ValidateLine(line string) error {
	if len(line)+2 > MaxLineLength {
		return fmt.Errorf("%w: %d bytes", ErrLineTooLong, len(line)+2)
	}
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\r', '\n', 0:
			return ErrInvalidLine
		}
	}
	return nil
}
