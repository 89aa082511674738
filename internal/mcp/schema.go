// Package mcp provides an MCP (Model Context Protocol) server for tensionflow.
package mcp

import (
	"github.com/nvandessel/tensionflow/internal/network"
	"github.com/nvandessel/tensionflow/internal/scenario"
	"github.com/nvandessel/tensionflow/internal/tension"
)

// PropagateInput defines the input for the tension_propagate tool.
type PropagateInput struct {
	Network     string              `json:"network,omitempty" jsonschema:"Name of a stored network to start from"`
	Values      tension.Values      `json:"values,omitempty" jsonschema:"Node value table (merged over the stored network's values)"`
	Connections tension.Connections `json:"connections,omitempty" jsonschema:"Directed connection table: node to neighbour weights"`
	Damping     *float64            `json:"damping,omitempty" jsonschema:"Damping factor (default from config: 0.9)"`
	Steps       *int                `json:"steps,omitempty" jsonschema:"Number of propagation steps (default 1)"`
}

// PropagateOutput defines the output for the tension_propagate tool.
type PropagateOutput struct {
	RunID   string          `json:"run_id" jsonschema:"Identifier of this run"`
	Damping float64         `json:"damping" jsonschema:"Damping factor used"`
	Steps   []scenario.Step `json:"steps" jsonschema:"Value table after each step; step 0 is the input"`
	Final   tension.Values  `json:"final" jsonschema:"Value table after the last step"`
}

// GraphInput defines the input for the tension_graph tool.
type GraphInput struct {
	Network     string              `json:"network,omitempty" jsonschema:"Name of a stored network to render"`
	Values      tension.Values      `json:"values,omitempty" jsonschema:"Node value table"`
	Connections tension.Connections `json:"connections,omitempty" jsonschema:"Directed connection table"`
	Format      string              `json:"format,omitempty" jsonschema:"Output format: dot or json or text (default: json)"`
}

// GraphOutput defines the output for the tension_graph tool.
type GraphOutput struct {
	Format    string      `json:"format" jsonschema:"Format of the rendered graph"`
	Graph     interface{} `json:"graph" jsonschema:"Rendered graph: a string for dot/text or an object for json"`
	NodeCount int         `json:"node_count" jsonschema:"Number of nodes drawn"`
	EdgeCount int         `json:"edge_count" jsonschema:"Number of edges drawn"`
}

// FlowInput defines the input for the tension_flow tool.
type FlowInput struct {
	Values     tension.Values      `json:"values" jsonschema:"Node value table"`
	Adjacency  map[string][]string `json:"adjacency" jsonschema:"Neighbour lists per node"`
	Iterations int                 `json:"iterations,omitempty" jsonschema:"Update iterations (default from config: 3)"`
}

// FlowOutput defines the output for the tension_flow tool.
type FlowOutput struct {
	Tensions      tension.Values `json:"tensions" jsonschema:"Mean absolute difference to neighbours per node"`
	GlobalTension tension.Number `json:"global_tension" jsonschema:"Mean of the node tensions"`
}

// ExpressionInput defines the input for the tension_expression tool. Either
// Text is parsed, or Subject/Relation/Object are formatted.
type ExpressionInput struct {
	Subject  string `json:"subject,omitempty" jsonschema:"Subject node"`
	Relation string `json:"relation,omitempty" jsonschema:"Relation label"`
	Object   string `json:"object,omitempty" jsonschema:"Object node"`
	Text     string `json:"text,omitempty" jsonschema:"Expression text to parse such as (A) -[causes]-> (B)"`
}

// ExpressionOutput defines the output for the tension_expression tool.
type ExpressionOutput struct {
	Subject  string `json:"subject"`
	Relation string `json:"relation"`
	Object   string `json:"object"`
	Text     string `json:"text" jsonschema:"Canonical expression text"`
}

// NetworksInput defines the input for the tension_networks tool.
type NetworksInput struct{}

// NetworksOutput defines the output for the tension_networks tool.
type NetworksOutput struct {
	Networks []network.Summary `json:"networks" jsonschema:"Stored networks sorted by name"`
	Count    int               `json:"count" jsonschema:"Number of stored networks"`
}
