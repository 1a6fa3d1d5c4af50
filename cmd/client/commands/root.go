package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/omochice/toy-irc-chat/internal/client"
	"github.com/omochice/toy-irc-chat/internal/config"
	"github.com/omochice/toy-irc-chat/internal/console"
	"github.com/omochice/toy-irc-chat/internal/display"
	"github.com/omochice/toy-irc-chat/internal/logger"
)

var (
	Version   string
	BuildTime string
)

// Exit codes.
const (
	ExitOK     = 0
	ExitConfig = 1
	ExitIO     = 2
)

// Output formats accepted by --format.
const (
	FormatText   = "text"
	FormatColor  = "color"
	FormatStream = "stream"
)

type options struct {
	configPath string
	format     string
	logFile    string
	verbose    bool
	showPings  bool
	overrides  config.Overrides
}

// exitError carries the process exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// ExitCode maps an error returned by the root command to a process exit
// code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return ExitConfig
}

// NewRootCmd builds the toy-irc command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "toy-irc",
		Short:         "toy-irc is a minimal interactive IRC client",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "path to the INI config file")
	flags.StringVar(&opts.format, "format", FormatText, "output format: text, color or stream")
	flags.StringVar(&opts.logFile, "log-file", "", "append logs to this file (default: no logs)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	flags.BoolVar(&opts.showPings, "show-pings", false, "also print keepalive checks")
	flags.StringVar(&opts.overrides.Server, "server", "", "server host, overrides the config file")
	flags.IntVar(&opts.overrides.Port, "port", 0, "server port, overrides the config file")
	flags.StringVar(&opts.overrides.Nick, "nick", "", "nickname, overrides the config file")
	flags.StringVar(&opts.overrides.Channel, "channel", "", "channel to talk in, overrides the config file")

	rootCmd.AddCommand(versionCmd)
	return rootCmd
}

// Execute runs the command line and exits with the matching code.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(ExitCode(err))
	}
}

// newPresenter returns the presenter for --format and, for text output, the
// matching prompt style. Text output goes through the editor so incoming
// lines do not break the line being typed.
func newPresenter(opts *options, w io.Writer, editor *console.LineEditor, log *slog.Logger) (client.Presenter, func(string) string, error) {
	switch opts.format {
	case FormatText, FormatColor:
		topts := display.TextOptions{
			Color:         opts.format == FormatColor,
			ShowKeepalive: opts.showPings,
		}
		if editor.IsInteractive() {
			// readline's writer hides the terminal from lipgloss.
			topts.ForceColor = true
			topts.Width = stdoutWidth()
		}
		t := display.NewText(editor.Output(w), topts)
		return t, t.Prompt, nil
	case FormatStream:
		return display.NewStream(w, log), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown format %q", opts.format)
	}
}

func stdoutWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 0
	}
	return width
}

func run(cmd *cobra.Command, opts *options) error {
	cfg, err := config.LoadWithOverrides(opts.configPath, opts.overrides)
	if err != nil {
		return withCode(ExitConfig, err)
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	log, closer, err := logger.New(level, opts.logFile)
	if err != nil {
		return withCode(ExitConfig, err)
	}
	defer closer.Close()

	editor := console.NewLineEditor(console.Options{
		In:     cmd.InOrStdin(),
		Logger: log,
	})
	defer editor.Close()

	p, style, err := newPresenter(opts, cmd.OutOrStdout(), editor, log)
	if err != nil {
		return withCode(ExitConfig, err)
	}
	editor.SetStyle(style)

	session := client.New(cfg, p, client.WithLogger(log))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := session.Connect(ctx); err != nil {
		return withCode(ExitConfig, err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, shutting down", "signal", sig.String())
			_ = session.Shutdown()
			_ = editor.Close()
		case <-session.Done():
		}
	}()

	if err := session.Run(ctx, editor); err != nil {
		return withCode(ExitIO, fmt.Errorf("session ended: %w", err))
	}
	return nil
}
