// Package visualization renders tension graphs in various output formats.
package visualization

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nvandessel/tensionflow/internal/tension"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// edgeColor picks a DOT color from the sign of a weight.
func edgeColor(w float64) string {
	switch {
	case w > 0:
		return "mediumseagreen"
	case w < 0:
		return "tomato"
	default:
		return "lightgray"
	}
}

// Render dispatches to the renderer for format.
func Render(format Format, values tension.Values, connections tension.Connections) (string, error) {
	switch format {
	case FormatDOT:
		return RenderDOT(values, connections), nil
	case FormatJSON:
		data, err := json.MarshalIndent(RenderJSON(values, connections), "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode JSON: %w", err)
		}
		return string(data) + "\n", nil
	case FormatText:
		return RenderText(values), nil
	default:
		return "", fmt.Errorf("unsupported format %q (use 'dot', 'json', or 'text')", format)
	}
}

// RenderDOT produces a Graphviz DOT representation of the tension graph.
// Nodes come from both tables; nodes without a value are drawn dashed.
// A pair of opposite edges with equal weight is drawn once without arrows.
func RenderDOT(values tension.Values, connections tension.Connections) string {
	var b strings.Builder
	b.WriteString("digraph tension {\n")
	b.WriteString("  label=\"Tension Network\";\n")
	b.WriteString("  node [shape=ellipse, style=filled, fillcolor=lightblue, fontname=\"Helvetica\", fontsize=10];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=9];\n\n")

	for _, id := range nodeIDs(values, connections) {
		if v, ok := values[id]; ok {
			fmt.Fprintf(&b, "  %q [label=\"%s\\n%.4g\", tooltip=\"tension=%.4g\"];\n",
				id, escape(id), v, tension.Tension(connections, id))
		} else {
			fmt.Fprintf(&b, "  %q [style=dashed];\n", id)
		}
	}
	b.WriteString("\n")

	for _, e := range CollectEdges(connections) {
		attrs := fmt.Sprintf("label=\"%.4g\", color=%s", e.Weight, edgeColor(e.Weight))
		if e.Symmetric {
			attrs += ", dir=none"
		}
		fmt.Fprintf(&b, "  %q -> %q [%s];\n", e.Source, e.Target, attrs)
	}

	b.WriteString("}\n")
	return b.String()
}

// RenderJSON produces a JSON-ready graph with nodes and edges arrays.
func RenderJSON(values tension.Values, connections tension.Connections) map[string]interface{} {
	ids := nodeIDs(values, connections)
	jsonNodes := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		node := map[string]interface{}{
			"id":      id,
			"tension": tension.Number(tension.Tension(connections, id)),
		}
		if v, ok := values[id]; ok {
			node["value"] = tension.Number(v)
		}
		jsonNodes = append(jsonNodes, node)
	}

	edges := CollectEdges(connections)
	jsonEdges := make([]map[string]interface{}, 0, len(edges))
	for _, e := range edges {
		jsonEdges = append(jsonEdges, map[string]interface{}{
			"source":    e.Source,
			"target":    e.Target,
			"weight":    tension.Number(e.Weight),
			"symmetric": e.Symmetric,
		})
	}

	return map[string]interface{}{
		"nodes":      jsonNodes,
		"edges":      jsonEdges,
		"node_count": len(jsonNodes),
		"edge_count": len(jsonEdges),
	}
}

// RenderText produces a sorted two-column table of node values.
func RenderText(values tension.Values) string {
	ids := make([]string, 0, len(values))
	width := 0
	for id := range values {
		ids = append(ids, id)
		if len(id) > width {
			width = len(id)
		}
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "%-*s  %.4f\n", width, id, values[id])
	}
	return b.String()
}

// Edge is a rendered edge. Symmetric edges stand for a pair of opposite
// connections with equal weight and have Source < Target.
type Edge struct {
	Source    string
	Target    string
	Weight    float64
	Symmetric bool
}

// CollectEdges flattens a connection table into a sorted edge list,
// merging symmetric pairs.
func CollectEdges(connections tension.Connections) []Edge {
	edges := make([]Edge, 0)
	for src, nbrs := range connections {
		for tgt, w := range nbrs {
			if back, ok := connections[tgt][src]; ok && back == w {
				if tgt < src {
					continue // emitted from the other side
				}
				edges = append(edges, Edge{Source: src, Target: tgt, Weight: w, Symmetric: src != tgt})
				continue
			}
			edges = append(edges, Edge{Source: src, Target: tgt, Weight: w})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges
}

// nodeIDs returns the sorted union of ids in values and connections,
// including neighbour ids.
func nodeIDs(values tension.Values, connections tension.Connections) []string {
	seen := make(map[string]bool, len(values))
	for id := range values {
		seen[id] = true
	}
	for id, nbrs := range connections {
		seen[id] = true
		for nbr := range nbrs {
			seen[nbr] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// escape makes s safe inside a quoted DOT label.
func escape(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`)
}
