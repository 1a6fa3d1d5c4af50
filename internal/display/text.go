// Package display renders session entries for the operator.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/omochice/toy-irc-chat/internal/client"
	"github.com/omochice/toy-irc-chat/pkg/protocol"
)

// DefaultTimeFormat is the timestamp layout appended to every line.
const DefaultTimeFormat = "15:04:05"

// TextOptions configures a Text presenter.
type TextOptions struct {
	// Color enables styling. Styles are still dropped when w is not a
	// terminal unless ForceColor is set.
	Color      bool
	ForceColor bool

	// Width wraps lines at this many columns. Zero uses the terminal width
	// of w when it is one; negative disables wrapping.
	Width int

	// ShowKeepalive also prints keepalive checks.
	ShowKeepalive bool

	TimeFormat string
}

type styles struct {
	channel  lipgloss.Style
	away     lipgloss.Style
	nick     lipgloss.Style
	text     lipgloss.Style
	notice   lipgloss.Style
	stamp    lipgloss.Style
	err      lipgloss.Style
	prompt   lipgloss.Style
	keepline lipgloss.Style
}

// Text prints one human-readable line per entry.
type Text struct {
	mu     sync.Mutex
	w      io.Writer
	opts   TextOptions
	styles styles
}

// NewText creates a Text presenter writing to w.
func NewText(w io.Writer, opts TextOptions) *Text {
	if opts.TimeFormat == "" {
		opts.TimeFormat = DefaultTimeFormat
	}
	if opts.Width == 0 {
		opts.Width = terminalWidth(w)
	}

	r := lipgloss.NewRenderer(w)
	switch {
	case !opts.Color:
		r.SetColorProfile(termenv.Ascii)
	case opts.ForceColor:
		r.SetColorProfile(termenv.ANSI256)
	}

	return &Text{
		w:    w,
		opts: opts,
		styles: styles{
			channel:  r.NewStyle().Foreground(lipgloss.Color("63")).Bold(true),
			away:     r.NewStyle().Foreground(lipgloss.Color("241")),
			nick:     r.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
			text:     r.NewStyle(),
			notice:   r.NewStyle().Foreground(lipgloss.Color("245")),
			stamp:    r.NewStyle().Foreground(lipgloss.Color("240")),
			err:      r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
			prompt:   r.NewStyle().Foreground(lipgloss.Color("86")),
			keepline: r.NewStyle().Foreground(lipgloss.Color("238")),
		},
	}
}

// terminalWidth returns the width of w if it is a terminal, and -1
// otherwise.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return -1
	}
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return -1
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return -1
	}
	return width
}

// Present implements client.Presenter.
func (t *Text) Present(e client.Entry) {
	var line string
	stamp := t.styles.stamp.Render("[" + e.At.Format(t.opts.TimeFormat) + "]")

	switch e.Event.Kind {
	case protocol.EventChannelMessage:
		chStyle := t.styles.channel
		if e.Current != "" && e.Event.Channel != e.Current {
			chStyle = t.styles.away
		}
		line = fmt.Sprintf("%s %s %s %s",
			chStyle.Render("["+Escape(e.Event.Channel)+"]"),
			t.styles.nick.Render(Escape(e.Event.Sender)+":"),
			t.styles.text.Render(Escape(e.Event.Text)),
			stamp,
		)
	case protocol.EventKeepaliveCheck:
		if !t.opts.ShowKeepalive {
			return
		}
		line = t.styles.keepline.Render(Escape(string(e.Event.Raw))) + " " + stamp
	default:
		line = t.styles.notice.Render(Escape(string(e.Event.Raw))) + " " + stamp
	}

	t.writeLine(line)
}

// Reject implements client.Presenter.
func (t *Text) Reject(err error) {
	t.writeLine(t.styles.err.Render("error:") + " " + Escape(err.Error()))
}

// Prompt styles a prompt string for the line editor.
func (t *Text) Prompt(prompt string) string {
	return t.styles.prompt.Render(prompt)
}

func (t *Text) writeLine(line string) {
	if t.opts.Width > 0 {
		line = wordwrap.String(line, t.opts.Width)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.w, line+"\n")
}

// Escape makes control characters in remote text visible so they cannot
// drive the terminal. C0 controls and DEL use caret notation (ESC is ^[);
// C1 controls are written as \u escapes. Tabs are kept.
func Escape(s string) string {
	if !strings.ContainsFunc(s, needsEscape) {
		return s
	}

	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '\t' || !needsEscape(r):
			sb.WriteRune(r)
		case r < 0x20:
			sb.WriteByte('^')
			sb.WriteByte(byte(r) + '@')
		case r == 0x7f:
			sb.WriteString("^?")
		default:
			fmt.Fprintf(&sb, "\\u%04x", r)
		}
	}
	return sb.String()
}

func needsEscape(r rune) bool {
	return r != '\t' && unicode.IsControl(r)
}
