package main

import (
	"fmt"

	"github.com/nvandessel/tensionflow/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect tensionflow configuration",
		Long: `Show the effective configuration or validate a config file.

Configuration is read from ~/.tensionflow/config.yaml (or --config) and
then overridden by TENSIONFLOW_DAMPING, TENSIONFLOW_STEPS,
TENSIONFLOW_DATA_DIR and TENSIONFLOW_LOG_LEVEL.

Examples:
  tensionflow config show
  tensionflow config validate ./config.yaml`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigValidateCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, cfg)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode YAML: %w", err)
			}
			_, err = out.Write(data)
			return err
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a config file (default: the effective configuration)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			var (
				cfg *config.Config
				err error
			)
			if len(args) == 1 {
				cfg, err = config.LoadFromFile(args[0])
				if err == nil {
					err = cfg.Validate()
				}
			} else {
				cfg, err = loadConfig(cmd)
			}
			if err != nil {
				return fmt.Errorf("config is invalid: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, map[string]interface{}{"valid": true})
			}
			fmt.Fprintln(out, "Configuration is valid.")
			return nil
		},
	}
}
