package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/tensionflow/internal/logging"
	"github.com/nvandessel/tensionflow/internal/network"
	"github.com/nvandessel/tensionflow/internal/ratelimit"
	"github.com/nvandessel/tensionflow/internal/tension"
)

// Server wraps the MCP SDK server and exposes the tension tools.
type Server struct {
	server       *sdk.Server
	store        network.NetworkStore
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	logger       *slog.Logger
	stepLog      *logging.StepLogger

	damping    float64
	iterations int
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "tensionflow")
	Version string // Server version
	DataDir string // Directory holding networks.db and audit.jsonl

	Damping        *float64 // Default damping; nil means tension.DefaultDamping
	FlowIterations int      // Default flow iterations; 0 means 3

	Logger  *slog.Logger
	StepLog *logging.StepLogger
}

// NewServer creates a new MCP server backed by the SQLite network store
// under cfg.DataDir.
func NewServer(cfg *Config) (*Server, error) {
	store, err := network.NewSQLiteStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create network store: %w", err)
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{})

	s := &Server{
		server:       mcpServer,
		store:        store,
		toolLimiters: ratelimit.NewToolLimiters(),
		auditLogger:  NewAuditLogger(cfg.DataDir),
		logger:       cfg.Logger,
		stepLog:      cfg.StepLog,
		damping:      tension.DefaultDamping,
		iterations:   cfg.FlowIterations,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if cfg.Damping != nil {
		s.damping = *cfg.Damping
	}
	if s.iterations == 0 {
		s.iterations = 3
	}

	if err := s.registerTools(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			s.logger.Info("shutting down MCP server")
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Debug("MCP server listening on stdio")
	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close closes the network store and audit log.
func (s *Server) Close() error {
	var firstErr error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			firstErr = err
		}
		s.store = nil
	}
	if err := s.auditLogger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
