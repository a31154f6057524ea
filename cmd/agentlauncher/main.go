package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentlauncher/config"
)

// Version set via ldflags during build
var version = "dev"

var rootFlags struct {
	config string
}

var rootCmd = &cobra.Command{
	Use:   "agentlauncher",
	Short: "Run hierarchical LLM agents from the command line",
	Long: `agentlauncher runs tasks on an event-driven agent runtime.

A primary agent works on each task with the demo tool catalog and may
delegate self-contained subtasks to sub-agents. Configuration is read from
agentlauncher.yaml, AGENTLAUNCHER_* environment variables and flags.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.config, "config", "c", "", "Config file (default: ./agentlauncher.yaml or ~/.agentlauncher/agentlauncher.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration with cmd's flags bound on top.
func loadConfig(cmd *cobra.Command, flagKeys map[string]string) (*config.Config, error) {
	return config.Load(func(o *config.Options) {
		o.File = rootFlags.config
		o.Flags = cmd.Flags()
		o.FlagKeys = flagKeys
	})
}
