package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warp/b2b-engine/api"
	"github.com/warp/b2b-engine/internal/presentation/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph [quote|approval]",
	Short: "Print a lifecycle as a Mermaid flowchart",
	Long: `Prints a lifecycle's transition table as a Mermaid flowchart.
Guarded edges are dotted. --current highlights one state.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"quote", "approval"},
	RunE: func(cmd *cobra.Command, args []string) error {
		g, ok := api.LifecycleGraph(strings.ToLower(args[0]))
		if !ok {
			return fmt.Errorf("unknown lifecycle %q (want quote or approval)", args[0])
		}

		var overlay *graph.Overlay
		if current, _ := cmd.Flags().GetString("current"); current != "" {
			overlay = &graph.Overlay{Current: current}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g, overlay))
		return nil
	},
}

func init() {
	graphCmd.Flags().String("current", "", "State to highlight")
	rootCmd.AddCommand(graphCmd)
}
