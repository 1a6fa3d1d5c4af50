package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omochice/toy-irc-chat/pkg/protocol"
)

func TestMessage_Marshal(t *testing.T) {
	tests := []struct {
		name string
		msg  protocol.Message
		want string
	}{
		{
			name: "prefix and middle params",
			msg:  protocol.Message{Prefix: "prefix", Command: "command", Params: []string{"p1", "p2"}},
			want: ":prefix command p1 p2",
		},
		{
			name: "trailing with space",
			msg:  protocol.Message{Command: "command", Params: []string{"p1", "p2 with space"}},
			want: "command p1 :p2 with space",
		},
		{
			name: "empty trailing",
			msg:  protocol.Message{Command: "TOPIC", Params: []string{"#c", ""}},
			want: "TOPIC #c :",
		},
		{
			name: "trailing starting with colon",
			msg:  protocol.Message{Command: "PRIVMSG", Params: []string{"#c", ":)"}},
			want: "PRIVMSG #c ::)",
		},
		{
			name: "no params",
			msg:  protocol.Message{Command: "LIST"},
			want: "LIST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.Marshal())
		})
	}
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name string
		line string
		want protocol.Message
	}{
		{
			name: "numeric with trailing",
			line: ":irc.example.com 251 botnet_test :There are 185 users on 25 servers",
			want: protocol.Message{
				Prefix:  "irc.example.com",
				Command: "251",
				Params:  []string{"botnet_test", "There are 185 users on 25 servers"},
			},
		},
		{
			name: "no prefix",
			line: "PING :abc123",
			want: protocol.Message{Command: "PING", Params: []string{"abc123"}},
		},
		{
			name: "lowercase command normalised",
			line: "join #go",
			want: protocol.Message{Command: "JOIN", Params: []string{"#go"}},
		},
		{
			name: "repeated spaces",
			line: ":n!u@h  PRIVMSG   #c  :hi  there",
			want: protocol.Message{Prefix: "n!u@h", Command: "PRIVMSG", Params: []string{"#c", "hi  there"}},
		},
		{
			name: "empty trailing",
			line: "TOPIC #c :",
			want: protocol.Message{Command: "TOPIC", Params: []string{"#c", ""}},
		},
		{
			name: "prefix only",
			line: ":lonely",
			want: protocol.Message{Prefix: "lonely"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := protocol.ParseMessage(tt.line)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestMessage_Nick(t *testing.T) {
	assert.Equal(t, "alice", protocol.ParseMessage(":alice!u@h QUIT :bye").Nick())
	assert.Equal(t, "irc.example.net", protocol.ParseMessage(":irc.example.net 001 a :hi").Nick())
	assert.Equal(t, "", protocol.ParseMessage("PING :x").Nick())
}
