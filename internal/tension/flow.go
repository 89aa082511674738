package tension

import (
	"math"
	"sort"
)

// Flow models tension as disagreement between neighbours: a node's tension
// is the mean absolute difference between its value and the values of the
// nodes it is linked to. Values are never changed by a Flow; only the
// derived tensions are recomputed.
type Flow struct {
	values    Values
	adjacency map[string][]string
	tensions  map[string]float64
}

// NewFlow creates a flow over a copy of values. adjacency lists, per node,
// the nodes it is linked to. Links need not be symmetric.
func NewFlow(values Values, adjacency map[string][]string) *Flow {
	adj := make(map[string][]string, len(adjacency))
	for id, nbrs := range adjacency {
		adj[id] = append([]string(nil), nbrs...)
	}
	return &Flow{
		values:    values.Clone(),
		adjacency: adj,
		tensions:  make(map[string]float64, len(values)),
	}
}

// AdjacencyFromConnections derives a flow adjacency list from a connection
// table, ignoring weights. Neighbour lists are sorted.
func AdjacencyFromConnections(connections Connections) map[string][]string {
	adj := make(map[string][]string, len(connections))
	for id, nbrs := range connections {
		list := make([]string, 0, len(nbrs))
		for nbr := range nbrs {
			list = append(list, nbr)
		}
		sort.Strings(list)
		adj[id] = list
	}
	return adj
}

// NodeTension computes the current tension of id from the value table.
// Neighbours without a value are skipped; a node with no usable neighbours
// has zero tension.
func (f *Flow) NodeTension(id string) float64 {
	val, ok := f.values[id]
	if !ok {
		return 0
	}

	sum := 0.0
	n := 0
	for _, nbr := range f.adjacency[id] {
		nv, ok := f.values[nbr]
		if !ok {
			continue
		}
		sum += math.Abs(val - nv)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Update recomputes every node's tension.
func (f *Flow) Update() {
	for id := range f.values {
		f.tensions[id] = f.NodeTension(id)
	}
}

// Propagate runs Update the given number of times.
func (f *Flow) Propagate(iterations int) {
	for i := 0; i < iterations; i++ {
		f.Update()
	}
}

// Tensions returns a copy of the per-node tensions from the last Update.
func (f *Flow) Tensions() map[string]float64 {
	out := make(map[string]float64, len(f.tensions))
	for id, t := range f.tensions {
		out[id] = t
	}
	return out
}

// GlobalTension is the mean node tension, or zero for an empty flow.
// Nodes that have not been updated yet count as zero.
func (f *Flow) GlobalTension() float64 {
	if len(f.values) == 0 {
		return 0
	}
	sum := 0.0
	for id := range f.values {
		sum += f.tensions[id]
	}
	return sum / float64(len(f.values))
}
