package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/omochice/toy-irc-chat/internal/ircd"
	"github.com/omochice/toy-irc-chat/internal/logger"
)

func main() {
	var (
		cfg     ircd.Config
		name    string
		verbose bool
	)

	rootCmd := &cobra.Command{
		Use:          "toy-ircd",
		Short:        "toy-ircd is a loopback IRC server for trying the client locally",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			log := logger.NewWriter(level, cmd.ErrOrStderr())

			srv := ircd.NewServer(cfg, ircd.NewHub(ircd.WithName(name), ircd.WithLogger(log), ircd.WithReceivedLimit(0)))
			if err := srv.Start(); err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			sig := <-sigChan
			log.Info("received signal, shutting down", "signal", sig.String())
			srv.Hub().Broadcast(":" + name + " NOTICE * :Server shutting down")
			// Let the write loops flush the notice before connections close.
			time.Sleep(200 * time.Millisecond)
			srv.Stop()
			return nil
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&cfg.TCPAddr, "addr", "127.0.0.1:6667", "TCP listen address (empty disables)")
	flags.StringVar(&cfg.WebSocketAddr, "ws-addr", "127.0.0.1:8067", "WebSocket listen address (empty disables)")
	flags.StringVar(&cfg.WebSocketPath, "ws-path", "/", "WebSocket endpoint path")
	flags.DurationVar(&cfg.PingInterval, "ping", 90*time.Second, "keepalive check interval (0 disables)")
	flags.StringVar(&name, "name", ircd.DefaultName, "server name")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
