package scenario

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nvandessel/tensionflow/internal/logging"
	"github.com/nvandessel/tensionflow/internal/tension"
)

// Step is the value table after Index propagation steps. Step 0 is the
// initial table.
type Step struct {
	Index         int            `json:"index"`
	Values        tension.Values `json:"values"`
	GlobalTension tension.Number `json:"global_tension"`
}

// Result is the outcome of one scenario run.
type Result struct {
	RunID    string  `json:"run_id"`
	Scenario string  `json:"scenario"`
	Damping  float64 `json:"damping"`
	Steps    []Step  `json:"steps"`
}

// Final returns the last step's values.
func (r *Result) Final() tension.Values {
	if len(r.Steps) == 0 {
		return tension.Values{}
	}
	return r.Steps[len(r.Steps)-1].Values
}

// Runner repeatedly invokes the engine on a scenario.
type Runner struct {
	damping float64
	steps   int
	logger  *slog.Logger
	stepLog *logging.StepLogger
}

// Option configures a Runner.
type Option func(*Runner)

// WithDamping sets the damping used for scenarios that do not set their own.
func WithDamping(d float64) Option {
	return func(r *Runner) { r.damping = d }
}

// WithSteps sets the step count used for scenarios that do not set their own.
func WithSteps(n int) Option {
	return func(r *Runner) { r.steps = n }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithStepLogger records every step to a JSONL trace. nil disables it.
func WithStepLogger(sl *logging.StepLogger) Option {
	return func(r *Runner) { r.stepLog = sl }
}

// NewRunner creates a runner with default damping and 5 steps.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		damping: tension.DefaultDamping,
		steps:   5,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run propagates the scenario for its step count. Cancellation is checked
// before every step; a cancelled run returns the context error.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	conns, err := sc.ConnectionTable()
	if err != nil {
		return nil, err
	}

	damping := sc.DampingOr(r.damping)
	steps := sc.StepsOr(r.steps)
	if steps < 0 || steps > tension.MaxSteps {
		return nil, fmt.Errorf("scenario %q: steps must be between 0 and %d, got %d", sc.Name, tension.MaxSteps, steps)
	}

	engine := tension.NewEngine(damping)
	adjacency := tension.AdjacencyFromConnections(conns)

	res := &Result{
		RunID:    uuid.NewString(),
		Scenario: sc.Name,
		Damping:  damping,
		Steps:    make([]Step, 0, steps+1),
	}

	r.logger.Debug("scenario run started",
		"run_id", res.RunID, "scenario", sc.Name, "damping", damping, "steps", steps, "nodes", len(sc.Nodes))

	values := sc.Nodes.Clone()
	res.Steps = append(res.Steps, r.record(res, 0, values, adjacency))

	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scenario %q: step %d: %w", sc.Name, i, err)
		}
		values = engine.Propagate(values, conns)
		res.Steps = append(res.Steps, r.record(res, i, values, adjacency))
	}

	r.logger.Debug("scenario run finished", "run_id", res.RunID, "scenario", sc.Name)
	return res, nil
}

// record snapshots one step and emits its log lines.
func (r *Runner) record(res *Result, index int, values tension.Values, adjacency map[string][]string) Step {
	flow := tension.NewFlow(values, adjacency)
	flow.Update()

	step := Step{Index: index, Values: values, GlobalTension: tension.Number(flow.GlobalTension())}

	r.logger.Debug("propagation step", "run_id", res.RunID, "step", index, "global_tension", float64(step.GlobalTension))
	r.logger.Log(context.Background(), logging.LevelTrace, "propagation values", "step", index, "values", values)

	r.stepLog.LogStep(logging.StepRecord{
		RunID:         res.RunID,
		Scenario:      res.Scenario,
		Step:          index,
		Damping:       tension.Number(res.Damping),
		Values:        values,
		GlobalTension: step.GlobalTension,
	})

	return step
}
