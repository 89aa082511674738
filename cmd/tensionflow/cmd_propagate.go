package main

import (
	"fmt"
	"io"

	"github.com/nvandessel/tensionflow/internal/config"
	"github.com/nvandessel/tensionflow/internal/logging"
	"github.com/nvandessel/tensionflow/internal/scenario"
	"github.com/nvandessel/tensionflow/internal/visualization"
	"github.com/spf13/cobra"
)

func newPropagateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "propagate",
		Short: "Propagate node values for a number of steps",
		Long: `Run the tension engine on a scenario and print the value table after
every step. Step 0 is the initial table.

Examples:
  tensionflow propagate --builtin equilibrium
  tensionflow propagate --scenario sentence.yaml --steps 3
  tensionflow propagate --values '{"X":0.3,"Y":-0.5}' \
      --connections '{"X":{"Y":0.2},"Y":{"X":-0.2}}' --steps 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			finalOnly, _ := cmd.Flags().GetBool("final")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			sc, err := resolveScenario(cmd.Context(), cmd, cfg)
			if err != nil {
				return err
			}

			res, err := runScenario(cmd, cfg, sc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if finalOnly {
					return writeJSON(out, map[string]interface{}{
						"run_id":   res.RunID,
						"scenario": res.Scenario,
						"damping":  res.Damping,
						"final":    res.Final(),
					})
				}
				return writeJSON(out, res)
			}

			printResult(out, res, finalOnly)
			return nil
		},
	}

	addSourceFlags(cmd)
	cmd.Flags().Int("steps", 0, "Number of propagation steps (default: scenario, then config)")
	cmd.Flags().Float64("damping", 0, "Damping factor (default: scenario, then config)")
	cmd.Flags().Bool("final", false, "Only print the final value table")

	return cmd
}

// runScenario applies --steps/--damping when the command has them set and
// runs sc with config defaults.
func runScenario(cmd *cobra.Command, cfg *config.Config, sc *scenario.Scenario) (*scenario.Result, error) {
	if f := cmd.Flags().Lookup("steps"); f != nil && f.Changed {
		steps, _ := cmd.Flags().GetInt("steps")
		sc.Steps = &steps
	}
	if f := cmd.Flags().Lookup("damping"); f != nil && f.Changed {
		damping, _ := cmd.Flags().GetFloat64("damping")
		sc.Damping = &damping
	}

	stepLog := logging.NewStepLogger(cfg.Storage.DataDir, cfg.Logging.Level)
	defer stepLog.Close()

	runner := scenario.NewRunner(
		scenario.WithDamping(cfg.Engine.Damping),
		scenario.WithSteps(cfg.Simulation.Steps),
		scenario.WithLogger(newLogger(cmd, cfg)),
		scenario.WithStepLogger(stepLog),
	)

	res, err := runner.Run(cmd.Context(), sc)
	if err != nil {
		return nil, fmt.Errorf("run scenario: %w", err)
	}
	return res, nil
}

func printResult(out io.Writer, res *scenario.Result, finalOnly bool) {
	if isTerminal(out) {
		fmt.Fprintf(out, "Scenario %s (damping %g, run %s)\n\n", res.Scenario, res.Damping, res.RunID)
	}

	steps := res.Steps
	if finalOnly && len(steps) > 0 {
		steps = steps[len(steps)-1:]
	}

	for i, step := range steps {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "step %d  global tension %.4f\n", step.Index, step.GlobalTension)
		fmt.Fprint(out, visualization.RenderText(step.Values))
	}
}
