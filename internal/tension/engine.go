// Package tension implements the tension propagation engine. Each node holds
// a scalar value; on every step the summed weight of a node's connections is
// scaled by a damping factor and added to the node's value.
package tension

// DefaultDamping is the damping factor used when none is configured.
const DefaultDamping = 0.9

// MaxSteps bounds how many times a run may repeat propagation or flow
// updates.
const MaxSteps = 10000

// Values maps node identifiers to their scalar value.
type Values map[string]float64

// Connections maps a node identifier to its neighbours' edge weights.
type Connections map[string]map[string]float64

// Clone returns a shallow copy of v. A nil table clones to an empty one.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for id, val := range v {
		out[id] = val
	}
	return out
}

// Engine performs single-step tension propagation.
// The engine is stateless apart from its damping factor, so one Engine may
// be shared between goroutines.
type Engine struct {
	damping float64
}

// NewEngine creates an engine with the given damping factor.
func NewEngine(damping float64) *Engine {
	return &Engine{damping: damping}
}

// Damping returns the engine's damping factor.
func (e *Engine) Damping() float64 {
	return e.damping
}

// Propagate computes one update step and returns a new value table.
//
// For every node n in values:
//
//	values'[n] = values[n] + damping * Tension(connections, n)
//
// Nodes that appear only in connections are not added to the result, and
// neighbours missing from values still contribute their edge weight. The
// input tables are never modified.
func (e *Engine) Propagate(values Values, connections Connections) Values {
	updated := make(Values, len(values))
	for id, val := range values {
		updated[id] = val + e.damping*Tension(connections, id)
	}
	return updated
}

// Tension returns the sum of all edge weights attached to id, or zero when
// id has no entry in connections.
func Tension(connections Connections, id string) float64 {
	sum := 0.0
	for _, w := range connections[id] {
		sum += w
	}
	return sum
}
