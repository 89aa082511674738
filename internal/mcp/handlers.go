package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/tensionflow/internal/expression"
	"github.com/nvandessel/tensionflow/internal/network"
	"github.com/nvandessel/tensionflow/internal/ratelimit"
	"github.com/nvandessel/tensionflow/internal/scenario"
	"github.com/nvandessel/tensionflow/internal/tension"
	"github.com/nvandessel/tensionflow/internal/visualization"
)

// registerTools registers all tension MCP tools with the server.
func (s *Server) registerTools() error {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tension_propagate",
		Description: "Propagate node values along weighted connections: value += damping * sum(neighbour weights), repeated for the given number of steps",
	}, s.handlePropagate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tension_graph",
		Description: "Render a tension network in DOT (Graphviz), JSON, or plain text format",
	}, s.handleGraph)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tension_flow",
		Description: "Compute per-node tension (mean absolute difference to neighbours) and the global tension of a value table",
	}, s.handleFlow)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tension_expression",
		Description: "Format a subject-relation-object triple as (subject) -[relation]-> (object), or parse that text back",
	}, s.handleExpression)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tension_networks",
		Description: "List the networks stored in the local network database",
	}, s.handleNetworks)

	return nil
}

// loadTables resolves a stored network (if named) and lays the explicit
// tables over it. Explicit values replace stored ones; explicit connection
// rows replace the relation-derived entries for the same pair.
func (s *Server) loadTables(ctx context.Context, name string, values tension.Values, conns tension.Connections) (*scenario.Scenario, error) {
	sc := &scenario.Scenario{Name: "adhoc", Nodes: tension.Values{}}
	if name != "" {
		n, err := s.store.LoadNetwork(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load network: %w", err)
		}
		sc = scenario.FromNetwork(n)
		if sc.Nodes == nil {
			sc.Nodes = tension.Values{}
		}
	}

	for id, v := range values {
		sc.Nodes[id] = v
	}
	sc.Connections = conns
	return sc, nil
}

// handlePropagate implements the tension_propagate tool.
func (s *Server) handlePropagate(ctx context.Context, req *sdk.CallToolRequest, args PropagateInput) (_ *sdk.CallToolResult, _ PropagateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("tension_propagate", start, retErr, sanitizeToolParams(map[string]interface{}{
			"network":     args.Network,
			"values":      args.Values,
			"connections": args.Connections,
			"damping":     args.Damping,
			"steps":       args.Steps,
		}))
	}()

	steps := 1
	if args.Steps != nil {
		steps = *args.Steps
	}
	if err := ratelimit.CheckLimit(s.toolLimiters, "tension_propagate", steps); err != nil {
		return nil, PropagateOutput{}, err
	}

	sc, err := s.loadTables(ctx, args.Network, args.Values, args.Connections)
	if err != nil {
		return nil, PropagateOutput{}, err
	}
	if len(sc.Nodes) == 0 {
		return nil, PropagateOutput{}, fmt.Errorf("values are required (or name a stored network)")
	}
	if args.Damping != nil {
		sc.Damping = args.Damping
	}
	sc.Steps = &steps

	runner := scenario.NewRunner(
		scenario.WithDamping(s.damping),
		scenario.WithSteps(1),
		scenario.WithLogger(s.logger),
		scenario.WithStepLogger(s.stepLog),
	)
	res, err := runner.Run(ctx, sc)
	if err != nil {
		return nil, PropagateOutput{}, fmt.Errorf("propagate: %w", err)
	}

	s.logger.Debug("tension_propagate", "run_id", res.RunID, "nodes", len(sc.Nodes), "steps", len(res.Steps)-1)

	return nil, PropagateOutput{
		RunID:   res.RunID,
		Damping: res.Damping,
		Steps:   res.Steps,
		Final:   res.Final(),
	}, nil
}

// handleGraph implements the tension_graph tool.
func (s *Server) handleGraph(ctx context.Context, req *sdk.CallToolRequest, args GraphInput) (_ *sdk.CallToolResult, _ GraphOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("tension_graph", start, retErr, sanitizeToolParams(map[string]interface{}{
			"network":     args.Network,
			"values":      args.Values,
			"connections": args.Connections,
			"format":      args.Format,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "tension_graph", 1); err != nil {
		return nil, GraphOutput{}, err
	}

	format := args.Format
	if format == "" {
		format = string(visualization.FormatJSON)
	}

	sc, err := s.loadTables(ctx, args.Network, args.Values, args.Connections)
	if err != nil {
		return nil, GraphOutput{}, err
	}
	conns, err := sc.ConnectionTable()
	if err != nil {
		return nil, GraphOutput{}, err
	}

	meta := visualization.RenderJSON(sc.Nodes, conns)
	nodeCount, _ := meta["node_count"].(int)
	edgeCount, _ := meta["edge_count"].(int)

	if visualization.Format(format) == visualization.FormatJSON {
		return nil, GraphOutput{
			Format:    format,
			Graph:     meta,
			NodeCount: nodeCount,
			EdgeCount: edgeCount,
		}, nil
	}

	rendered, err := visualization.Render(visualization.Format(format), sc.Nodes, conns)
	if err != nil {
		return nil, GraphOutput{}, err
	}
	return nil, GraphOutput{
		Format:    format,
		Graph:     rendered,
		NodeCount: nodeCount,
		EdgeCount: edgeCount,
	}, nil
}

// handleFlow implements the tension_flow tool.
func (s *Server) handleFlow(ctx context.Context, req *sdk.CallToolRequest, args FlowInput) (_ *sdk.CallToolResult, _ FlowOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("tension_flow", start, retErr, sanitizeToolParams(map[string]interface{}{
			"values":     args.Values,
			"adjacency":  args.Adjacency,
			"iterations": args.Iterations,
		}))
	}()

	iterations := args.Iterations
	if iterations == 0 {
		iterations = s.iterations
	}
	if iterations < 0 || iterations > tension.MaxSteps {
		return nil, FlowOutput{}, fmt.Errorf("iterations must be between 0 and %d, got %d", tension.MaxSteps, iterations)
	}

	if err := ratelimit.CheckLimit(s.toolLimiters, "tension_flow", iterations); err != nil {
		return nil, FlowOutput{}, err
	}

	flow := tension.NewFlow(args.Values, args.Adjacency)
	flow.Propagate(iterations)

	return nil, FlowOutput{
		Tensions:      tension.Values(flow.Tensions()),
		GlobalTension: tension.Number(flow.GlobalTension()),
	}, nil
}

// handleExpression implements the tension_expression tool.
func (s *Server) handleExpression(ctx context.Context, req *sdk.CallToolRequest, args ExpressionInput) (_ *sdk.CallToolResult, _ ExpressionOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("tension_expression", start, retErr, sanitizeToolParams(map[string]interface{}{
			"subject":  args.Subject,
			"relation": args.Relation,
			"object":   args.Object,
			"text":     args.Text,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "tension_expression", 1); err != nil {
		return nil, ExpressionOutput{}, err
	}

	var expr expression.Expression
	if args.Text != "" {
		parsed, err := expression.Parse(args.Text)
		if err != nil {
			return nil, ExpressionOutput{}, err
		}
		expr = parsed
	} else {
		if args.Subject == "" || args.Object == "" {
			return nil, ExpressionOutput{}, fmt.Errorf("either 'text' or both 'subject' and 'object' are required")
		}
		expr = expression.New(args.Subject, args.Relation, args.Object)
	}

	return nil, ExpressionOutput{
		Subject:  expr.Subject,
		Relation: expr.Relation,
		Object:   expr.Object,
		Text:     expr.String(),
	}, nil
}

// handleNetworks implements the tension_networks tool.
func (s *Server) handleNetworks(ctx context.Context, req *sdk.CallToolRequest, args NetworksInput) (_ *sdk.CallToolResult, _ NetworksOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("tension_networks", start, retErr, sanitizeToolParams(map[string]interface{}{}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "tension_networks", 1); err != nil {
		return nil, NetworksOutput{}, err
	}

	summaries, err := s.store.ListNetworks(ctx)
	if err != nil {
		return nil, NetworksOutput{}, fmt.Errorf("list networks: %w", err)
	}

	if summaries == nil {
		summaries = []network.Summary{}
	}

	return nil, NetworksOutput{
		Networks: summaries,
		Count:    len(summaries),
	}, nil
}
