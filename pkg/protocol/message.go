package protocol

import (
	"strings"
)

// Message is a single line in the generic IRC grammar:
//
//	[:prefix] COMMAND [param ...] [:trailing]
type Message struct {
	Prefix  string
	Command string
	Params  []string
}

// Marshal encodes the message. The last parameter is written in trailing
// form when it is empty, contains a space or starts with a colon.
func (m Message) Marshal() string {
	var sb strings.Builder
	if m.Prefix != "" {
		sb.WriteByte(':')
		sb.WriteString(m.Prefix)
		sb.WriteByte(' ')
	}
	sb.WriteString(m.Command)
	for i, param := range m.Params {
		sb.WriteByte(' ')
		last := i == len(m.Params)-1
		if last && (param == "" || strings.Contains(param, " ") || strings.HasPrefix(param, ":")) {
			sb.WriteByte(':')
		}
		sb.WriteString(param)
	}
	return sb.String()
}

// Nick returns the nickname part of the prefix, or the whole prefix when it
// names a server.
func (m Message) Nick() string {
	nick, _, _ := strings.Cut(m.Prefix, "!")
	return nick
}

// ParseMessage decodes a line. It never fails: a line it cannot make sense
// of comes back with whatever fields could be read.
func ParseMessage(line string) *Message {
	msg := &Message{}
	rest := strings.TrimLeft(line, " ")

	if strings.HasPrefix(rest, ":") {
		prefix, tail, _ := strings.Cut(rest[1:], " ")
		msg.Prefix = prefix
		rest = strings.TrimLeft(tail, " ")
	}

	command, rest, _ := strings.Cut(rest, " ")
	msg.Command = strings.ToUpper(command)

	for rest != "" {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			break
		}
		// A parameter starting with a colon is the last one and may
		// contain spaces.
		if rest[0] == ':' {
			msg.Params = append(msg.Params, rest[1:])
			break
		}
		var param string
		param, rest, _ = strings.Cut(rest, " ")
		msg.Params = append(msg.Params, param)
	}

	return msg
}
