package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nvandessel/tensionflow/internal/config"
	"github.com/nvandessel/tensionflow/internal/network"
	"github.com/nvandessel/tensionflow/internal/scenario"
	"github.com/nvandessel/tensionflow/internal/tension"
	"github.com/spf13/cobra"
)

// addSourceFlags registers the flags that select the scenario a command
// works on. Exactly one of --scenario, --builtin, --network or --values
// must be given.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("scenario", "", "Scenario YAML file")
	cmd.Flags().String("builtin", "", "Built-in scenario (equilibrium, sentence, triangle)")
	cmd.Flags().String("network", "", "Name of a stored network")
	cmd.Flags().String("values", "", `Node values as JSON, e.g. '{"X":0.3,"Y":-0.5}'`)
	cmd.Flags().String("connections", "", `Connections as JSON, e.g. '{"X":{"Y":0.2}}' (with --values)`)
}

// resolveScenario loads the scenario selected by the source flags.
func resolveScenario(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*scenario.Scenario, error) {
	file, _ := cmd.Flags().GetString("scenario")
	builtin, _ := cmd.Flags().GetString("builtin")
	name, _ := cmd.Flags().GetString("network")
	values, _ := cmd.Flags().GetString("values")
	conns, _ := cmd.Flags().GetString("connections")

	set := 0
	for _, s := range []string{file, builtin, name, values} {
		if s != "" {
			set++
		}
	}
	switch {
	case set == 0:
		return nil, fmt.Errorf("one of --scenario, --builtin, --network or --values is required")
	case set > 1:
		return nil, fmt.Errorf("--scenario, --builtin, --network and --values are mutually exclusive")
	case conns != "" && values == "":
		return nil, fmt.Errorf("--connections requires --values")
	}

	switch {
	case file != "":
		return scenario.Load(file)
	case builtin != "":
		return scenario.Builtin(builtin)
	case name != "":
		store, err := network.NewSQLiteStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open network store: %w", err)
		}
		defer store.Close()

		n, err := store.LoadNetwork(ctx, name)
		if err != nil {
			return nil, err
		}
		return scenario.FromNetwork(n), nil
	}

	sc := &scenario.Scenario{Name: "inline"}
	if err := json.Unmarshal([]byte(values), &sc.Nodes); err != nil {
		return nil, fmt.Errorf("parse --values: %w", err)
	}
	if conns != "" {
		var c tension.Connections
		if err := json.Unmarshal([]byte(conns), &c); err != nil {
			return nil, fmt.Errorf("parse --connections: %w", err)
		}
		sc.Connections = c
	}
	return sc, nil
}
