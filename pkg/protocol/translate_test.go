package protocol_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/toy-irc-chat/pkg/protocol"
)

func newState() protocol.State {
	return protocol.State{
		Server:   "irc.example.net",
		Port:     6667,
		Nick:     "alice",
		Realname: "Alice Liddell",
		Channel:  "#test",
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      protocol.Intent
		wantLine  string
		wantState func(*protocol.State)
	}{
		{
			name:     "plain chat goes to current channel",
			input:    "hello there",
			want:     protocol.Intent{Kind: protocol.IntentRawChat, Target: "#test", Text: "hello there"},
			wantLine: "PRIVMSG #test :hello there",
		},
		{
			name:     "join",
			input:    "/join #foo",
			want:     protocol.Intent{Kind: protocol.IntentJoin, Target: "#foo"},
			wantLine: "JOIN #foo",
			wantState: func(s *protocol.State) {
				s.Channel = "#foo"
			},
		},
		{
			name:     "part uses current channel",
			input:    "/part",
			want:     protocol.Intent{Kind: protocol.IntentPart, Target: "#test"},
			wantLine: "PART #test",
		},
		{
			name:     "list",
			input:    "/list",
			want:     protocol.Intent{Kind: protocol.IntentList},
			wantLine: "LIST",
		},
		{
			name:     "nick",
			input:    "/nick bob",
			want:     protocol.Intent{Kind: protocol.IntentChangeNick, Target: "bob"},
			wantLine: "NICK bob",
			wantState: func(s *protocol.State) {
				s.Nick = "bob"
			},
		},
		{
			name:     "msg joins remaining words",
			input:    "/msg carol how are   you",
			want:     protocol.Intent{Kind: protocol.IntentDirectMessage, Target: "carol", Text: "how are you"},
			wantLine: "PRIVMSG carol :how are you",
		},
		{
			name:     "quit",
			input:    "/quit",
			want:     protocol.Intent{Kind: protocol.IntentQuit},
			wantLine: "QUIT :Client closed",
		},
		{
			name:     "nickserv",
			input:    "/nickserv identify hunter2",
			want:     protocol.Intent{Kind: protocol.IntentNickServ, Text: "identify hunter2"},
			wantLine: "PRIVMSG NickServ :identify hunter2",
		},
		{
			name:     "command token is case insensitive",
			input:    "/JOIN #Bar",
			want:     protocol.Intent{Kind: protocol.IntentJoin, Target: "#Bar"},
			wantLine: "JOIN #Bar",
			wantState: func(s *protocol.State) {
				s.Channel = "#Bar"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := newState()
			want := newState()
			if tt.wantState != nil {
				tt.wantState(&want)
			}

			got, err := protocol.Translate(tt.input, &state)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantLine, got.Line())
			assert.Equal(t, want, state)
		})
	}
}

func TestTranslate_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "msg without args", input: "/msg", wantErr: protocol.ErrMissingArgument},
		{name: "msg without text", input: "/msg carol", wantErr: protocol.ErrMissingArgument},
		{name: "join without channel", input: "/join", wantErr: protocol.ErrMissingArgument},
		{name: "nick without name", input: "/nick  ", wantErr: protocol.ErrMissingArgument},
		{name: "nickserv without args", input: "/nickserv", wantErr: protocol.ErrMissingArgument},
		{name: "unknown command", input: "/whois bob", wantErr: protocol.ErrUnknownCommand},
		{name: "lone slash", input: "/", wantErr: protocol.ErrUnknownCommand},
		{name: "too long", input: strings.Repeat("a", protocol.MaxLineLength), wantErr: protocol.ErrLineTooLong},
		{name: "embedded newline", input: "hi\r\nQUIT :injected", wantErr: protocol.ErrInvalidLine},
		{name: "embedded nul", input: "hi\x00there", wantErr: protocol.ErrInvalidLine},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := newState()

			got, err := protocol.Translate(tt.input, &state)
			require.Error(t, err)

			var rejected *protocol.CommandRejected
			require.True(t, errors.As(err, &rejected), "got %T", err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, protocol.Intent{}, got)
			assert.Empty(t, got.Line())
			assert.Equal(t, newState(), state, "state must not change on rejection")
		})
	}
}

func TestIntent_ZeroValueRendersNoLine(t *testing.T) {
	var intent protocol.Intent
	assert.Equal(t, protocol.IntentNone, intent.Kind)
	assert.Equal(t, "NONE", intent.Kind.String())
	assert.Empty(t, intent.Line())
}

func TestTranslate_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\t"} {
		state := newState()
		_, err := protocol.Translate(input, &state)
		assert.ErrorIs(t, err, protocol.ErrEmptyInput)
		assert.Equal(t, newState(), state)
	}
}

func TestCommandRejected_Error(t *testing.T) {
	state := newState()
	_, err := protocol.Translate("/msg", &state)
	assert.EqualError(t, err, "missing argument: usage: /msg <target> <text>")

	_, err = protocol.Translate("/frobnicate", &state)
	assert.EqualError(t, err, "unknown command: /frobnicate")
}

// Every intent rendered to the wire and read back through the framer and
// the generic parser recovers its verb and arguments.
func TestIntent_RoundTrip(t *testing.T) {
	tests := []struct {
		input      string
		wantVerb   string
		wantParams []string
	}{
		{input: "hi all", wantVerb: "PRIVMSG", wantParams: []string{"#test", "hi all"}},
		{input: "/join #foo", wantVerb: "JOIN", wantParams: []string{"#foo"}},
		{input: "/part", wantVerb: "PART", wantParams: []string{"#test"}},
		{input: "/list", wantVerb: "LIST"},
		{input: "/nick bob", wantVerb: "NICK", wantParams: []string{"bob"}},
		{input: "/msg carol see you", wantVerb: "PRIVMSG", wantParams: []string{"carol", "see you"}},
		{input: "/quit", wantVerb: "QUIT", wantParams: []string{"Client closed"}},
		{input: "/nickserv register pw mail@example.com", wantVerb: "PRIVMSG", wantParams: []string{"NickServ", "register pw mail@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			state := newState()
			intent, err := protocol.Translate(tt.input, &state)
			require.NoError(t, err)

			lines := protocol.NewFramer().Feed([]byte(intent.Line() + "\r\n"))
			require.Len(t, lines, 1)

			msg := protocol.ParseMessage(string(lines[0]))
			assert.Equal(t, tt.wantVerb, msg.Command)
			assert.Equal(t, tt.wantParams, msg.Params)
		})
	}
}

func TestRegistration(t *testing.T) {
	assert.Equal(t, []string{
		"NICK alice",
		"USER alice 0 * :Alice Liddell",
	}, protocol.Registration(newState()))
}

func TestPong(t *testing.T) {
	assert.Equal(t, "PONG abc123", protocol.Pong("abc123"))
	assert.Equal(t, "PONG", protocol.Pong(""))
}

func TestValidateLine(t *testing.T) {
	assert.NoError(t, protocol.ValidateLine(strings.Repeat("a", protocol.MaxLineLength-2)))
	assert.ErrorIs(t, protocol.ValidateLine(strings.Repeat("a", protocol.MaxLineLength-1)), protocol.ErrLineTooLong)
	assert.ErrorIs(t, protocol.ValidateLine("a\rb"), protocol.ErrInvalidLine)
}
