package protocol

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EventKind represents the type of an inbound event.
type EventKind int

const (
	EventSystemNotice EventKind = iota
	EventKeepaliveCheck
	EventChannelMessage
)

// String returns the string representation of EventKind
func (k EventKind) String() string {
	switch k {
	case EventSystemNotice:
		return "NOTICE"
	case EventKeepaliveCheck:
		return "PING"
	case EventChannelMessage:
		return "PRIVMSG"
	default:
		return "UNKNOWN"
	}
}

// Event is a classified inbound line.
type Event struct {
	Kind EventKind

	// Token is the keepalive token of an EventKeepaliveCheck.
	Token string

	// Channel, Sender and Text describe an EventChannelMessage. For a
	// notice Text holds the raw line.
	Channel string
	Sender  string
	Text    string

	// Command is the verb or numeric of the line, best effort.
	Command string

	Raw RawLine
}

const (
	verbPing    = "PING"
	verbPrivmsg = "PRIVMSG"
)

// Classify turns a line into an event. Lines that cannot be parsed as a
// keepalive or channel message become notices carrying the raw text.
func Classify(line RawLine) Event {
	raw := string(line)
	fields := strings.Fields(raw)

	if len(fields) > 0 && fields[0] == verbPing {
		token := ""
		if len(fields) > 1 {
			token = strings.TrimPrefix(fields[1], ":")
		}
		return Event{Kind: EventKeepaliveCheck, Token: token, Command: verbPing, Raw: line}
	}

	if strings.Contains(raw, verbPrivmsg) {
		if ev, ok := classifyPrivmsg(line, fields); ok {
			return ev
		}
	}

	return notice(line)
}

func classifyPrivmsg(line RawLine, fields []string) (Event, bool) {
	parts := strings.SplitN(string(line), ":", 3)
	if len(parts) < 3 {
		return Event{}, false
	}

	head := strings.Fields(parts[1])
	if len(head) == 0 {
		return Event{}, false
	}
	sender, _, _ := strings.Cut(head[0], "!")
	if sender == "" {
		return Event{}, false
	}

	channel := ""
	for i, field := range fields {
		if field == verbPrivmsg && i+1 < len(fields) {
			channel = fields[i+1]
			break
		}
	}
	if channel == "" || strings.HasPrefix(channel, ":") {
		return Event{}, false
	}

	return Event{
		Kind:    EventChannelMessage,
		Channel: channel,
		Sender:  sender,
		Text:    parts[2],
		Command: verbPrivmsg,
		Raw:     line,
	}, true
}

func notice(line RawLine) Event {
	return Event{
		Kind:    EventSystemNotice,
		Text:    string(line),
		Command: ParseMessage(string(line)).Command,
		Raw:     line,
	}
}

// Encode encodes the event into bytes using protobuf
func (e *Event) Encode() ([]byte, error) {
	msg, err := e.ToProto()
	if err != nil {
		return nil, err
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return data, nil
}

// Decode decodes bytes into an event using protobuf
func (e *Event) Decode(data []byte) error {
	msg := &structpb.Struct{}
	if err := proto.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}
	e.FromProto(msg)
	return nil
}

// ToProto converts the event to a protobuf Struct. Empty fields are left
// out.
func (e *Event) ToProto() (*structpb.Struct, error) {
	fields := map[string]any{"kind": e.Kind.String()}
	for key, value := range map[string]string{
		"token":   e.Token,
		"channel": e.Channel,
		"sender":  e.Sender,
		"text":    e.Text,
		"command": e.Command,
		"raw":     string(e.Raw),
	} {
		if value != "" {
			fields[key] = value
		}
	}
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return msg, nil
}

// FromProto populates the event from a protobuf Struct.
func (e *Event) FromProto(msg *structpb.Struct) {
	get := func(key string) string {
		return msg.GetFields()[key].GetStringValue()
	}
	e.Kind = eventKindFromString(get("kind"))
	e.Token = get("token")
	e.Channel = get("channel")
	e.Sender = get("sender")
	e.Text = get("text")
	e.Command = get("command")
	e.Raw = RawLine(get("raw"))
}

// eventKindFromString falls back to a notice for unknown names, so a
// stream written by a newer client still decodes.
func eventKindFromString(s string) EventKind {
	switch s {
	case "PING":
		return EventKeepaliveCheck
	case "PRIVMSG":
		return EventChannelMessage
	default:
		return EventSystemNotice
	}
}
