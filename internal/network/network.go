// Package network builds undirected, weighted relation graphs and turns them
// into the connection tables consumed by the tension engine. It also defines
// the NetworkStore interface used to persist named networks.
package network

import (
	"fmt"
	"sort"

	"github.com/nvandessel/tensionflow/internal/tension"
)

// DefaultWeight is the weight given to relations added without one.
const DefaultWeight = 1.0

// Relation is an undirected weighted edge between two nodes.
type Relation struct {
	A      string  `json:"a" yaml:"a"`
	B      string  `json:"b" yaml:"b"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// pair is the canonical (ordered) key of an undirected edge.
type pair struct{ lo, hi string }

func makePair(a, b string) pair {
	if b < a {
		a, b = b, a
	}
	return pair{lo: a, hi: b}
}

// Network is a named undirected graph with optional node values.
// A Network is not safe for concurrent mutation.
type Network struct {
	Name string

	nodes     map[string]struct{}
	values    map[string]float64
	relations map[pair]float64
}

// New creates an empty network.
func New(name string) *Network {
	return &Network{
		Name:      name,
		nodes:     make(map[string]struct{}),
		values:    make(map[string]float64),
		relations: make(map[pair]float64),
	}
}

// AddNode registers a node and sets its value.
func (n *Network) AddNode(id string, value float64) {
	n.nodes[id] = struct{}{}
	n.values[id] = value
}

// AddRelation records an undirected edge between a and b, adding either node
// if it is not yet known. Adding the same pair again replaces its weight.
func (n *Network) AddRelation(a, b string, weight float64) error {
	if a == "" || b == "" {
		return fmt.Errorf("relation endpoints must be non-empty (got %q, %q)", a, b)
	}
	n.nodes[a] = struct{}{}
	n.nodes[b] = struct{}{}
	n.relations[makePair(a, b)] = weight
	return nil
}

// RemoveRelation deletes the edge between a and b if present.
func (n *Network) RemoveRelation(a, b string) {
	delete(n.relations, makePair(a, b))
}

// Weight returns the weight of the edge between a and b.
func (n *Network) Weight(a, b string) (float64, bool) {
	w, ok := n.relations[makePair(a, b)]
	return w, ok
}

// Nodes returns all node ids in sorted order.
func (n *Network) Nodes() []string {
	ids := make([]string, 0, len(n.nodes))
	for id := range n.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Relations returns every edge with A <= B, sorted by (A, B).
func (n *Network) Relations() []Relation {
	rels := make([]Relation, 0, len(n.relations))
	for p, w := range n.relations {
		rels = append(rels, Relation{A: p.lo, B: p.hi, Weight: w})
	}
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].A != rels[j].A {
			return rels[i].A < rels[j].A
		}
		return rels[i].B < rels[j].B
	})
	return rels
}

// Values returns a copy of the node values that have been set.
// Nodes added only through relations have no value.
func (n *Network) Values() tension.Values {
	out := make(tension.Values, len(n.values))
	for id, v := range n.values {
		out[id] = v
	}
	return out
}

// Connections returns a fresh connection table containing both directions
// of every edge. Every known node has an entry, possibly empty.
func (n *Network) Connections() tension.Connections {
	conns := make(tension.Connections, len(n.nodes))
	for id := range n.nodes {
		conns[id] = make(map[string]float64)
	}
	for p, w := range n.relations {
		conns[p.lo][p.hi] = w
		conns[p.hi][p.lo] = w
	}
	return conns
}

// Clone returns a deep copy of the network.
func (n *Network) Clone() *Network {
	c := New(n.Name)
	for id := range n.nodes {
		c.nodes[id] = struct{}{}
	}
	for id, v := range n.values {
		c.values[id] = v
	}
	for p, w := range n.relations {
		c.relations[p] = w
	}
	return c
}

// FromRelations builds a network from a node value table and a relation list.
func FromRelations(name string, values tension.Values, relations []Relation) (*Network, error) {
	n := New(name)
	for id, v := range values {
		n.AddNode(id, v)
	}
	for _, r := range relations {
		if err := n.AddRelation(r.A, r.B, r.Weight); err != nil {
			return nil, err
		}
	}
	return n, nil
}
