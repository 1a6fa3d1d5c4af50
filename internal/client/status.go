package client

// Status is the lifecycle stage of a Session.
type Status int

const (
	StatusDisconnected Status = iota
	StatusRegistering
	StatusConnected
	StatusClosing
	StatusClosed
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusRegistering:
		return "registering"
	case StatusConnected:
		return "connected"
	case StatusClosing:
		return "closing"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}
