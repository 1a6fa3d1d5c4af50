// Package console reads operator input.
//
// When stdin is a terminal the LineEditor uses ergochat/readline for
// editing keys and a persistent history. Otherwise (piped input, Emacs
// comint) it reads plain lines.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ergochat/readline"
	"golang.org/x/term"

	"github.com/omochice/toy-irc-chat/internal/logger"
)

const (
	// HistoryFileName is the history file in the user's home directory.
	HistoryFileName = ".toy_irc_history"

	// HistoryLimit is the number of history entries kept.
	HistoryLimit = 500
)

// ErrClosed is returned by ReadLine after Close.
var ErrClosed = errors.New("line editor closed")

// Options configures a LineEditor. The zero value reads os.Stdin.
type Options struct {
	// In is read in non-interactive mode. Defaults to os.Stdin.
	In io.Reader

	// Out receives the prompt in non-interactive mode. Nil prints no
	// prompt, so piped sessions do not mix prompts into the output.
	Out io.Writer

	// HistoryFile overrides ~/.toy_irc_history.
	HistoryFile string

	// Style decorates the prompt in interactive mode.
	Style func(string) string

	// Basic forces non-interactive mode.
	Basic bool

	Logger *slog.Logger
}

// LineEditor implements client.Input.
type LineEditor struct {
	interactive bool
	rl          *readline.Instance

	in    io.Reader
	out   io.Writer
	style func(string) string

	startOnce sync.Once
	lines     chan scanResult

	closeOnce sync.Once
	done      chan struct{}
}

type scanResult struct {
	line string
	err  error
}

// NewLineEditor creates a LineEditor, choosing the interactive mode when
// stdin is a terminal and INSIDE_EMACS is unset.
func NewLineEditor(opts Options) *LineEditor {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	le := &LineEditor{
		in:    opts.In,
		out:   opts.Out,
		style: opts.Style,
		lines: make(chan scanResult),
		done:  make(chan struct{}),
	}
	if le.in == nil {
		le.in = os.Stdin
	}
	if le.style == nil {
		le.style = func(s string) string { return s }
	}

	if opts.Basic || !isTerminal(le.in) || os.Getenv("INSIDE_EMACS") != "" {
		return le
	}

	historyFile := opts.HistoryFile
	if historyFile == "" {
		historyFile = filepath.Join(homeDir(), HistoryFileName)
	}
	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:            historyFile,
		HistoryLimit:           HistoryLimit,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		log.Warn("readline init failed, using basic input", "error", err)
		return le
	}

	le.interactive = true
	le.rl = rl
	return le
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// Output returns the writer session output should go to. In interactive
// mode that is readline's stdout, which redraws the prompt and the line
// being typed after each write. Otherwise it is fallback.
func (le *LineEditor) Output(fallback io.Writer) io.Writer {
	if le.interactive {
		return le.rl.Stdout()
	}
	return fallback
}

// SetStyle replaces the prompt style. Call it before the first ReadLine.
func (le *LineEditor) SetStyle(style func(string) string) {
	if style == nil {
		style = func(s string) string { return s }
	}
	le.style = style
}

// IsInteractive reports whether readline is in use.
func (le *LineEditor) IsInteractive() bool {
	return le.interactive
}

// ReadLine shows prompt and returns the next line without its newline.
// Ctrl-C, Ctrl-D and the end of piped input all return io.EOF.
func (le *LineEditor) ReadLine(prompt string) (string, error) {
	select {
	case <-le.done:
		return "", ErrClosed
	default:
	}

	if le.interactive {
		return le.readInteractive(prompt)
	}
	return le.readBasic(prompt)
}

func (le *LineEditor) readInteractive(prompt string) (string, error) {
	le.rl.SetPrompt(le.style(prompt))
	line, err := le.rl.Readline()
	if err != nil {
		select {
		case <-le.done:
			return "", ErrClosed
		default:
		}
		if errors.Is(err, readline.ErrInterrupt) {
			return "", io.EOF
		}
		return "", err
	}

	if trimmed := strings.TrimSpace(line); keepInHistory(trimmed) {
		_ = le.rl.SaveToHistory(trimmed)
	}
	return line, nil
}

// keepInHistory reports whether line may be written to the history file.
// Lines addressed to NickServ carry passwords and are never saved.
func keepInHistory(line string) bool {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "/nickserv":
		return false
	case "/msg":
		return len(fields) < 2 || fields[1] != "nickserv"
	}
	return true
}

// readBasic reads through a background scanner so Close can unblock a
// pending ReadLine even though the underlying read cannot be cancelled.
func (le *LineEditor) readBasic(prompt string) (string, error) {
	le.startOnce.Do(func() { go le.scan() })

	if le.out != nil {
		fmt.Fprint(le.out, prompt)
	}

	select {
	case res, ok := <-le.lines:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	case <-le.done:
		return "", ErrClosed
	}
}

func (le *LineEditor) scan() {
	defer close(le.lines)

	scanner := bufio.NewScanner(le.in)
	for scanner.Scan() {
		select {
		case le.lines <- scanResult{line: strings.TrimSuffix(scanner.Text(), "\r")}:
		case <-le.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case le.lines <- scanResult{err: err}:
		case <-le.done:
		}
	}
}

// Close saves the history and unblocks a pending ReadLine. It is safe to
// call more than once.
func (le *LineEditor) Close() error {
	var err error
	le.closeOnce.Do(func() {
		close(le.done)
		if le.rl != nil {
			err = le.rl.Close()
		}
	})
	return err
}
