package main

import (
	"fmt"
	"os"

	"github.com/nvandessel/tensionflow/internal/visualization"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Visualize a tension network",
		Long: `Output a scenario's network in DOT (Graphviz), JSON, or plain text format.

By default the initial value table is drawn; --final runs the scenario
first and draws the values after the last step.

Examples:
  tensionflow graph --builtin sentence | dot -Tpng -o sentence.png
  tensionflow graph --scenario my.yaml --final --format json
  tensionflow graph --builtin triangle -o triangle.dot --open`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			final, _ := cmd.Flags().GetBool("final")
			open, _ := cmd.Flags().GetBool("open")

			if open && output == "" {
				return fmt.Errorf("--open requires --output")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			sc, err := resolveScenario(cmd.Context(), cmd, cfg)
			if err != nil {
				return err
			}
			conns, err := sc.ConnectionTable()
			if err != nil {
				return err
			}

			values := sc.Nodes
			if final {
				res, err := runScenario(cmd, cfg, sc)
				if err != nil {
					return err
				}
				values = res.Final()
			}

			rendered, err := visualization.Render(visualization.Format(format), values, conns)
			if err != nil {
				return err
			}

			if output == "" {
				fmt.Fprint(cmd.OutOrStdout(), rendered)
				return nil
			}

			if err := os.WriteFile(output, []byte(rendered), 0644); err != nil {
				return fmt.Errorf("write graph: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Graph written to %s\n", output)

			if open {
				if err := visualization.Open(output); err != nil {
					newLogger(cmd, cfg).Warn("could not open graph viewer", "error", err)
				}
			}
			return nil
		},
	}

	addSourceFlags(cmd)
	cmd.Flags().String("format", "dot", "Output format: dot, json, or text")
	cmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	cmd.Flags().Bool("final", false, "Draw the values after running the scenario")
	cmd.Flags().Bool("open", false, "Open the written file with the default viewer (requires --output)")
	cmd.Flags().Int("steps", 0, "Steps to run with --final (default: scenario, then config)")
	cmd.Flags().Float64("damping", 0, "Damping to use with --final (default: scenario, then config)")

	return cmd
}
