package main

import (
	"fmt"

	"github.com/nvandessel/tensionflow/internal/tension"
	"github.com/nvandessel/tensionflow/internal/visualization"
	"github.com/spf13/cobra"
)

func newFlowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Measure node and global tension of a scenario",
		Long: `Compute each node's tension as the mean absolute difference between its
value and its neighbours' values, and the global tension as the mean of
those. Values are not changed.

Examples:
  tensionflow flow --builtin triangle
  tensionflow flow --network sentence --iterations 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			iterations := cfg.Simulation.FlowIterations
			if cmd.Flags().Changed("iterations") {
				iterations, _ = cmd.Flags().GetInt("iterations")
			}
			if iterations < 0 || iterations > tension.MaxSteps {
				return fmt.Errorf("--iterations must be between 0 and %d, got %d", tension.MaxSteps, iterations)
			}

			sc, err := resolveScenario(cmd.Context(), cmd, cfg)
			if err != nil {
				return err
			}
			conns, err := sc.ConnectionTable()
			if err != nil {
				return err
			}

			flow := tension.NewFlow(sc.Nodes, tension.AdjacencyFromConnections(conns))
			flow.Propagate(iterations)

			newLogger(cmd, cfg).Debug("flow computed",
				"scenario", sc.Name, "iterations", iterations, "global_tension", flow.GlobalTension())

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, map[string]interface{}{
					"scenario":       sc.Name,
					"iterations":     iterations,
					"tensions":       tension.Values(flow.Tensions()),
					"global_tension": tension.Number(flow.GlobalTension()),
				})
			}

			fmt.Fprint(out, visualization.RenderText(tension.Values(flow.Tensions())))
			fmt.Fprintf(out, "global tension %.4f\n", flow.GlobalTension())
			return nil
		},
	}

	addSourceFlags(cmd)
	cmd.Flags().Int("iterations", 0, "Update iterations (default: config simulation.flow_iterations)")

	return cmd
}
