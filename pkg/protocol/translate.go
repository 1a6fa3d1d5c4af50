package protocol

import (
	"strings"
)

const commandPrefix = "/"

// command describes one slash-command: how many words it needs after the
// command token and how to build the intent from them.
type command struct {
	minArgs int
	usage   string
	build   func(args []string, s *State) Intent
}

var commands = map[string]command{
	"/join": {
		minArgs: 1,
		usage:   "/join <channel>",
		build: func(args []string, _ *State) Intent {
			return Intent{Kind: IntentJoin, Target: args[0]}
		},
	},
	"/part": {
		usage: "/part",
		build: func(_ []string, s *State) Intent {
			return Intent{Kind: IntentPart, Target: s.Channel}
		},
	},
	"/list": {
		usage: "/list",
		build: func(_ []string, _ *State) Intent {
			return Intent{Kind: IntentList}
		},
	},
	"/nick": {
		minArgs: 1,
		usage:   "/nick <newname>",
		build: func(args []string, _ *State) Intent {
			return Intent{Kind: IntentChangeNick, Target: args[0]}
		},
	},
	"/msg": {
		minArgs: 2,
		usage:   "/msg <target> <text>",
		build: func(args []string, _ *State) Intent {
			return Intent{Kind: IntentDirectMessage, Target: args[0], Text: strings.Join(args[1:], " ")}
		},
	},
	"/quit": {
		usage: "/quit",
		build: func(_ []string, _ *State) Intent {
			return Intent{Kind: IntentQuit}
		},
	},
	"/nickserv": {
		minArgs: 1,
		usage:   "/nickserv <command> [args...]",
		build: func(args []string, _ *State) Intent {
			return Intent{Kind: IntentNickServ, Text: strings.Join(args, " ")}
		},
	},
}

// Translate converts one line of operator input into an intent.
//
// Plain text becomes a message to the current channel. Slash-commands are
// looked up in the command table; unknown commands, missing arguments and
// lines that would break the wire invariants return a *CommandRejected and
// leave s untouched. On success Join updates s.Channel and ChangeNick
// updates s.Nick.
func Translate(input string, s *State) (Intent, error) {
	if strings.TrimSpace(input) == "" {
		return Intent{}, ErrEmptyInput
	}

	var intent Intent
	if !strings.HasPrefix(input, commandPrefix) {
		intent = Intent{Kind: IntentRawChat, Target: s.Channel, Text: input}
	} else {
		parts := strings.Fields(input)
		cmd, ok := commands[strings.ToLower(parts[0])]
		if !ok {
			return Intent{}, reject(parts[0], ErrUnknownCommand)
		}
		args := parts[1:]
		if len(args) < cmd.minArgs {
			return Intent{}, reject(strings.ToLower(parts[0]), ErrMissingArgument)
		}
		intent = cmd.build(args, s)
	}

	if err := ValidateLine(intent.Line()); err != nil {
		return Intent{}, reject(input, err)
	}

	switch intent.Kind {
	case IntentJoin:
		s.Channel = intent.Target
	case IntentChangeNick:
		s.Nick = intent.Target
	}

	return intent, nil
}

// usage returns the usage string for a command token, or the token itself.
func usage(token string) string {
	if cmd, ok := commands[token]; ok {
		return "usage: " + cmd.usage
	}
	return token
}
