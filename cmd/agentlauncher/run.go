package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentlauncher"
	"github.com/hupe1980/agentlauncher/agentid"
	"github.com/hupe1980/agentlauncher/core"
)

var runFlags struct {
	session   string
	timeout   time.Duration
	provider  string
	model     string
	verbosity string
	stream    bool
}

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a single task and print its result",
	Long: `Run a single task on a fresh primary agent and print the result.

With --stream every message of the primary agent is printed as soon as it
is complete and tool activity is reported on stderr. With --session the conversation is
loaded from and recorded to the configured session store.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.session, "session", "s", "", "Session id to load and record the conversation under")
	runCmd.Flags().DurationVarP(&runFlags.timeout, "timeout", "t", 0, "Task timeout (default from config)")
	runCmd.Flags().StringVarP(&runFlags.provider, "provider", "p", "mock", "Processor provider (openai, anthropic, mock)")
	runCmd.Flags().StringVarP(&runFlags.model, "model", "m", "", "Model name (default: provider default)")
	runCmd.Flags().StringVar(&runFlags.verbosity, "verbosity", "silent", "Event logging (silent, basic, detailed)")
	runCmd.Flags().BoolVar(&runFlags.stream, "stream", false, "Stream the reply as it is generated")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
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
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			a.logger.Warn("cli.close_failed", "error", err)
		}
	}()

	out := cmd.OutOrStdout()
	if cfg.Stream {
		stopPrinter := attachStreamPrinter(a.launcher, out, cmd.ErrOrStderr())
		defer stopPrinter()
	}

	var optFns []func(o *agentlauncher.RunOptions)
	if runFlags.session != "" {
		optFns = append(optFns, agentlauncher.WithSessionID(runFlags.session))
	}

	task := strings.Join(args, " ")
	result, ok := a.launcher.Run(ctx, task, optFns...)
	if !ok {
		return fmt.Errorf("task did not finish (timeout or cancelled)")
	}

	if cfg.Stream {
		a.launcher.Bus().Wait()
		return nil
	}
	_, err = fmt.Fprintln(out, result)
	return err
}

// attachStreamPrinter prints the primary agents' messages to out and
// tool activity to errOut until the returned stop func is called.
func attachStreamPrinter(l *agentlauncher.Launcher, out, errOut io.Writer) (stop func()) {
	events := make(chan core.Event, 256)
	done := make(chan struct{})

	l.SubscribeAny(func(_ context.Context, ev core.Event) error {
		switch ev.(type) {
		case core.MessageDone, core.ToolExecStart, core.ToolExecError, core.AgentCreate:
			select {
			case events <- ev:
			case <-done:
			}
		}
		return nil
	})

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for {
			var ev core.Event
			select {
			case ev = <-events:
			case <-done:
				return
			}
			switch e := ev.(type) {
			case core.MessageDone:
				// deltas are delivered concurrently; the done event carries
				// the message in order
				if agentid.IsPrimary(e.AgentID) {
					fmt.Fprintln(out, e.Message)
				}
			case core.ToolExecStart:
				fmt.Fprintf(errOut, "→ %s %s\n", e.ToolName, formatArgs(e.Arguments))
			case core.ToolExecError:
				fmt.Fprintf(errOut, "✗ %s: %s\n", e.ToolName, e.Error)
			case core.AgentCreate:
				fmt.Fprintf(errOut, "↳ sub-agent: %s\n", e.Task)
			}
		}
	}()

	return func() {
		// flush what was queued before stopping
		for len(events) > 0 {
			time.Sleep(5 * time.Millisecond)
		}
		close(done)
		<-printed
	}
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(args))
	for _, k := range slices.Sorted(maps.Keys(args)) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
