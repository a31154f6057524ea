package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentlauncher/config"
)

var configInitFlags struct {
	force bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file holding every default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.FileName
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path, configInitFlags.force); err != nil {
			return fmt.Errorf("%w\n\nUse --force to overwrite", err)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Config written to: %s\n", path)
		return err
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configInitFlags.force, "force", "f", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
}
