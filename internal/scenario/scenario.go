// Package scenario loads tension scenarios from YAML and runs them through
// the propagation engine one step at a time.
package scenario

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/nvandessel/tensionflow/internal/network"
	"github.com/nvandessel/tensionflow/internal/tension"
	"gopkg.in/yaml.v3"
)

// Scenario is an initial value table plus the graph it evolves on.
type Scenario struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Damping overrides the runner's damping when set.
	Damping *float64 `json:"damping,omitempty" yaml:"damping,omitempty"`

	// Steps overrides the runner's step count when set.
	Steps *int `json:"steps,omitempty" yaml:"steps,omitempty"`

	Nodes tension.Values `json:"nodes" yaml:"nodes"`

	// Relations are undirected; both directions end up in Connections.
	Relations []RelationSpec `json:"relations,omitempty" yaml:"relations,omitempty"`

	// Connections are directed entries applied on top of Relations.
	Connections tension.Connections `json:"connections,omitempty" yaml:"connections,omitempty"`
}

// RelationSpec is a relation as written in a scenario file. A missing
// weight means network.DefaultWeight.
type RelationSpec struct {
	A      string   `json:"a" yaml:"a"`
	B      string   `json:"b" yaml:"b"`
	Weight *float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// Relation resolves the default weight.
func (r RelationSpec) Relation() network.Relation {
	w := network.DefaultWeight
	if r.Weight != nil {
		w = *r.Weight
	}
	return network.Relation{A: r.A, B: r.B, Weight: w}
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scenario for structural problems. It does not check
// graph shape: cycles, dangling neighbours and disconnected nodes are fine.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario missing name")
	}
	if s.Steps != nil && (*s.Steps < 0 || *s.Steps > tension.MaxSteps) {
		return fmt.Errorf("scenario %q: steps must be between 0 and %d, got %d", s.Name, tension.MaxSteps, *s.Steps)
	}
	if s.Damping != nil && (math.IsNaN(*s.Damping) || math.IsInf(*s.Damping, 0)) {
		return fmt.Errorf("scenario %q: damping must be finite", s.Name)
	}
	for i, r := range s.Relations {
		if r.A == "" || r.B == "" {
			return fmt.Errorf("scenario %q: relation %d needs both a and b", s.Name, i)
		}
	}
	return nil
}

// DampingOr returns the scenario's damping or def when unset.
func (s *Scenario) DampingOr(def float64) float64 {
	if s.Damping != nil {
		return *s.Damping
	}
	return def
}

// StepsOr returns the scenario's step count or def when unset.
func (s *Scenario) StepsOr(def int) int {
	if s.Steps != nil {
		return *s.Steps
	}
	return def
}

// Network builds a relation network carrying the scenario's node values.
// Directed Connections entries are not part of the network.
func (s *Scenario) Network() (*network.Network, error) {
	rels := make([]network.Relation, 0, len(s.Relations))
	for _, r := range s.Relations {
		rels = append(rels, r.Relation())
	}
	n, err := network.FromRelations(s.Name, s.Nodes, rels)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	return n, nil
}

// ConnectionTable returns the full connection table: relation-derived
// entries first, then the directed Connections entries on top.
func (s *Scenario) ConnectionTable() (tension.Connections, error) {
	n, err := s.Network()
	if err != nil {
		return nil, err
	}
	conns := n.Connections()
	for src, nbrs := range s.Connections {
		if conns[src] == nil {
			conns[src] = make(map[string]float64, len(nbrs))
		}
		for tgt, w := range nbrs {
			conns[src][tgt] = w
		}
	}
	return conns, nil
}

// FromNetwork turns a stored network back into a scenario.
func FromNetwork(n *network.Network) *Scenario {
	sc := &Scenario{
		Name:  n.Name,
		Nodes: n.Values(),
	}
	for _, r := range n.Relations() {
		w := r.Weight
		sc.Relations = append(sc.Relations, RelationSpec{A: r.A, B: r.B, Weight: &w})
	}
	return sc
}

// Builtin returns a fresh copy of a named built-in scenario.
func Builtin(name string) (*Scenario, error) {
	build, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown built-in scenario %q (available: %v)", name, BuiltinNames())
	}
	return build(), nil
}

// BuiltinNames lists the built-in scenarios in sorted order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ptr[T any](v T) *T { return &v }

var builtins = map[string]func() *Scenario{
	"equilibrium": func() *Scenario {
		return &Scenario{
			Name:        "equilibrium",
			Description: "Two nodes pulling on each other with opposite weights",
			Damping:     ptr(0.9),
			Steps:       ptr(5),
			Nodes:       tension.Values{"X": 0.3, "Y": -0.5},
			Connections: tension.Connections{
				"X": {"Y": 0.2},
				"Y": {"X": -0.2},
			},
		}
	},
	"sentence": func() *Scenario {
		return &Scenario{
			Name:        "sentence",
			Description: "Three words linked by a supporting and an opposing relation",
			Steps:       ptr(1),
			Nodes:       tension.Values{"A": 1, "B": 2, "C": -1},
			Relations: []RelationSpec{
				{A: "A", B: "B", Weight: ptr(0.5)},
				{A: "B", B: "C", Weight: ptr(-0.7)},
			},
		}
	},
	"triangle": func() *Scenario {
		return &Scenario{
			Name:        "triangle",
			Description: "Fully connected triangle with spread-out values",
			Steps:       ptr(5),
			Nodes:       tension.Values{"a": 1, "b": 3, "c": 7},
			Relations: []RelationSpec{
				{A: "a", B: "b"},
				{A: "a", B: "c"},
				{A: "b", B: "c"},
			},
		}
	},
}
