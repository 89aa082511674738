package main

import (
	"fmt"

	"github.com/nvandessel/tensionflow/internal/logging"
	"github.com/nvandessel/tensionflow/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP server over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
tension_propagate, tension_graph, tension_flow, tension_expression and
tension_networks tools. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger := newLogger(cmd, cfg)
			stepLog := logging.NewStepLogger(cfg.Storage.DataDir, cfg.Logging.Level)
			defer stepLog.Close()

			server, err := mcp.NewServer(&mcp.Config{
				Name:           "tensionflow",
				Version:        version,
				DataDir:        cfg.Storage.DataDir,
				Damping:        &cfg.Engine.Damping,
				FlowIterations: cfg.Simulation.FlowIterations,
				Logger:         logger,
				StepLog:        stepLog,
			})
			if err != nil {
				return fmt.Errorf("failed to start MCP server: %w", err)
			}

			logger.Info("MCP server starting", "version", version, "data_dir", cfg.Storage.DataDir)
			return server.Run(cmd.Context())
		},
	}
}
