package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentlauncher/internal/demotools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the demo tool catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPARAMETERS\tDESCRIPTION")
		for _, t := range demotools.All() {
			params := make([]string, len(t.Parameters))
			for i, p := range t.Parameters {
				params[i] = p.Name + ":" + p.Type
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, strings.Join(params, ", "), t.Description)
		}
		return w.Flush()
	},
}
