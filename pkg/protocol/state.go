package protocol

import (
	"net"
	"strconv"
)

// State is the mutable identity of a session.
// Channel and Nick change through Translate; the rest is fixed at
// registration.
type State struct {
	Server   string
	Port     int
	Nick     string
	Realname string
	Channel  string
}

// Address returns host:port for dialing.
func (s State) Address() string {
	return net.JoinHostPort(s.Server, strconv.Itoa(s.Port))
}
