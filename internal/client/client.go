// Package client implements the IRC session engine: it owns the
// connection, registers with the server, answers keepalive checks and
// moves operator input and server traffic between the collaborators.
package client

import (
	"time"

	"github.com/omochice/toy-irc-chat/pkg/protocol"
)

// Entry is one event handed to the presenter.
type Entry struct {
	At    time.Time
	Event protocol.Event
	// Current is the channel the operator is talking in when the event
	// arrived.
	Current string
}

// Presenter renders session output. Present is called from the inbound
// loop and Reject from the outbound loop, so implementations must be safe
// for concurrent use.
type Presenter interface {
	// Present shows an event received from the server.
	Present(Entry)

	// Reject shows a local error about operator input. Nothing was sent.
	Reject(err error)
}

// Input supplies operator lines.
type Input interface {
	// ReadLine blocks until the operator enters a line. It returns io.EOF
	// when input ends.
	ReadLine(prompt string) (string, error)

	// Close releases the input. A pending ReadLine must return.
	Close() error
}
