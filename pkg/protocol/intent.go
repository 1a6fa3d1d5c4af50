package protocol

// IntentKind represents the type of an outgoing intent.
type IntentKind int

// The zero IntentKind renders no line, so a rejected translation can never
// reach the wire.
const (
	IntentNone IntentKind = iota
	IntentRawChat
	IntentJoin
	IntentPart
	IntentList
	IntentChangeNick
	IntentDirectMessage
	IntentNickServ
	IntentQuit
)

// String returns the string representation of IntentKind
func (k IntentKind) String() string {
	switch k {
	case IntentNone:
		return "NONE"
	case IntentRawChat:
		return "CHAT"
	case IntentJoin:
		return "JOIN"
	case IntentPart:
		return "PART"
	case IntentList:
		return "LIST"
	case IntentChangeNick:
		return "NICK"
	case IntentDirectMessage:
		return "MSG"
	case IntentNickServ:
		return "NICKSERV"
	case IntentQuit:
		return "QUIT"
	default:
		return "UNKNOWN"
	}
}

// NickServ is the services nickname addressed by /nickserv.
const NickServ = "NickServ"

// Intent is something the operator asked the client to send.
//
// Target is the channel for RawChat, Join and Part, the recipient for
// DirectMessage and the new nickname for ChangeNick. Text is the message
// body for RawChat, DirectMessage and NickServ.
type Intent struct {
	Kind   IntentKind
	Target string
	Text   string
}

// Line renders the intent as a wire line without the trailing CRLF.
func (i Intent) Line() string {
	switch i.Kind {
	case IntentRawChat, IntentDirectMessage:
		return "PRIVMSG " + i.Target + " :" + i.Text
	case IntentJoin:
		return "JOIN " + i.Target
	case IntentPart:
		return "PART " + i.Target
	case IntentList:
		return "LIST"
	case IntentChangeNick:
		return "NICK " + i.Target
	case IntentNickServ:
		return "PRIVMSG " + NickServ + " :" + i.Text
	case IntentQuit:
		return Quit()
	default:
		return ""
	}
}

// Registration returns the NICK and USER lines sent right after connecting.
func Registration(s State) []string {
	return []string{
		"NICK " + s.Nick,
		"USER " + s.Nick + " 0 * :" + s.Realname,
	}
}

// Pong returns the reply to a keepalive check.
func Pong(token string) string {
	if token == "" {
		return "PONG"
	}
	return "PONG " + token
}

// Quit returns the line sent when the session closes.
func Quit() string {
	return "QUIT :" + QuitMessage
}
