package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentlauncher/server"
)

var serveFlags struct {
	addr      string
	provider  string
	verbosity string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the launcher over HTTP and WebSocket",
	Long: `Serve the launcher over HTTP and WebSocket.

POST /tasks runs a task and returns its result (or an NDJSON event stream
with "stream": true). GET /ws/tasks runs one task per WebSocket connection.
With nats.enabled and nats.persist, GET /tasks/{id}/events replays the
recorded events of a task.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.addr, "addr", "a", ":8080", "Listen address")
	serveCmd.Flags().StringVarP(&serveFlags.provider, "provider", "p", "mock", "Processor provider (openai, anthropic, mock)")
	serveCmd.Flags().StringVar(&serveFlags.verbosity, "verbosity", "silent", "Event logging (silent, basic, detailed)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, map[string]string{"addr": "server.addr"})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			a.logger.Warn("cli.close_failed", "error", err)
		}
	}()

	srv := server.New(a.launcher, func(o *server.Options) {
		o.Logger = a.logger
		if a.bridge != nil && cfg.NATS.Persist {
			o.History = a.bridge
		}
	})
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
