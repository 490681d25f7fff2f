// Package pipeline drives registered agents in dependency order, enforcing
// each agent's input contract before invocation and merging every outcome
// back into the state store. Failure is data: no agent error propagates past
// the orchestrator boundary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"agentic_diligence/pkg/core/quality"
	"agentic_diligence/pkg/core/registry"
	"agentic_diligence/pkg/core/state"
)

// Capability is the opaque boundary to the agent implementation. Inputs are
// pre-validated, policy-selected mappings; the capability may call an external
// LLM/API. The returned value must decode to a mapping.
type Capability interface {
	Invoke(ctx context.Context, spec registry.AgentSpec, inputs map[string]any) (any, error)
}

// CapabilityError wraps a failure inside the capability boundary.
type CapabilityError struct {
	Agent string
	Err   error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %s: %v", e.Agent, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// Config tunes one pipeline run.
type Config struct {
	// WorkerLimit bounds how many agents run concurrently, respecting
	// upstream rate limits of the capability. <=0 means sequential.
	WorkerLimit int
	// AgentTimeout converts a hung capability call into a Failed result.
	AgentTimeout time.Duration
	// PreferRaw flips the default source for either-acceptable agents.
	PreferRaw bool
}

// DefaultConfig matches one analysis job against a rate-limited LLM backend.
func DefaultConfig() Config {
	return Config{
		WorkerLimit:  3,
		AgentTimeout: 120 * time.Second,
	}
}

// Orchestrator executes one due-diligence job over a single state store.
type Orchestrator struct {
	registry   *registry.Registry
	store      *state.Store
	capability Capability
	gate       *quality.Gate
	config     Config

	mu      sync.Mutex
	states  map[string]AgentState
	reasons map[string]string
}

// NewOrchestrator wires the engine with its required collaborators.
func NewOrchestrator(reg *registry.Registry, st *state.Store, cap Capability) *Orchestrator {
	return &Orchestrator{
		registry:   reg,
		store:      st,
		capability: cap,
		gate:       quality.NewGate(),
		config:     DefaultConfig(),
		states:     make(map[string]AgentState),
		reasons:    make(map[string]string),
	}
}

// SetConfig replaces the run configuration.
func (o *Orchestrator) SetConfig(cfg Config) {
	o.config = cfg
}

// SetGate injects a quality gate (e.g. with a custom policy table or clock).
func (o *Orchestrator) SetGate(g *quality.Gate) {
	o.gate = g
}

// Run executes the full pipeline. The only fatal error is a dependency cycle,
// detected before anything executes. Cancellation stops scheduling of
// not-yet-started agents; agents already running finish or time out.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	order, err := o.registry.ResolveOrder()
	if err != nil {
		return nil, fmt.Errorf("resolve execution order: %w", err)
	}
	fmt.Printf("Resolved execution order: %s\n", strings.Join(order, " -> "))

	for _, name := range order {
		spec, _ := o.registry.Spec(name)
		o.store.SetProjection(name, spec.ProducedFields)
		o.setState(name, StatePending, "")
	}

	// Pre-run gate: freshness findings land in the anomaly log before any
	// agent consumes the data.
	o.gate.Run(o.store)

	cancelled := o.executeAll(ctx, order)

	// Post-run gate: shape drift over everything the agents produced.
	o.gate.Run(o.store)

	report := o.buildReport(order, cancelled)

	snap := o.store.Snapshot()
	qm := snap.Quality
	qm.CompletenessScore = report.Completeness
	_ = o.store.SetQuality(qm)
	o.store.Seal()

	fmt.Printf("Pipeline completed in %v (completeness %.0f%%)\n", time.Since(start), report.Completeness*100)
	return report, nil
}

// executeAll runs agents until every agent is terminal. Each agent is
// dispatched as soon as its producers are terminal, bounded by the worker
// limit, so a slow agent never holds back unrelated ones. Returns true when
// the job was cancelled.
func (o *Orchestrator) executeAll(ctx context.Context, order []string) bool {
	g := new(errgroup.Group)
	if o.config.WorkerLimit > 0 {
		g.SetLimit(o.config.WorkerLimit)
	} else {
		g.SetLimit(1)
	}

	dispatched := make(map[string]bool, len(order))
	finished := make(chan struct{}, len(order))
	completed := 0

	for completed < len(order) {
		if ctx.Err() != nil {
			// Agents already running keep their context; only dispatch of
			// new agents stops.
			_ = g.Wait()
			o.skipRemaining(order, dispatched, "job cancelled")
			return true
		}

		launched := false
		for _, name := range o.readyAgents(order, dispatched) {
			dispatched[name] = true
			launched = true
			name := name
			g.Go(func() error {
				o.runAgent(ctx, name)
				finished <- struct{}{}
				return nil
			})
		}

		if !launched && len(dispatched) == completed {
			// Defensive: a resolved order always yields progress.
			o.skipRemaining(order, dispatched, "scheduler stalled")
			return false
		}

		// Re-evaluate readiness after each completion, not after a whole
		// batch drains.
		<-finished
		completed++
	}
	_ = g.Wait()
	return false
}

// readyAgents returns not-yet-dispatched agents whose producers are all
// terminal, in the resolved order.
func (o *Orchestrator) readyAgents(order []string, dispatched map[string]bool) []string {
	var ready []string
	for _, name := range order {
		if dispatched[name] {
			continue
		}
		blocked := false
		for _, dep := range o.registry.DependenciesOf(name, o.config.PreferRaw) {
			if !o.state(dep.Agent).Terminal() {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, name)
		}
	}
	return ready
}

// runAgent walks one agent through the state machine and always merges a
// terminal result, whatever happens inside the capability.
func (o *Orchestrator) runAgent(ctx context.Context, name string) {
	o.setState(name, StateValidating, "")
	spec, _ := o.registry.Spec(name)

	// Upstream gating: a downstream agent whose required input came from a
	// failed or skipped producer is Skipped, not Failed, so completeness
	// reporting can tell "never attempted" from "attempted and errored".
	for _, dep := range o.registry.DependenciesOf(name, o.config.PreferRaw) {
		if !dep.Hard {
			continue
		}
		switch o.state(dep.Agent) {
		case StateFailed:
			o.skip(name, fmt.Sprintf("upstream agent %s failed", dep.Agent))
			return
		case StateSkipped:
			o.skip(name, fmt.Sprintf("upstream agent %s was skipped", dep.Agent))
			return
		}
	}

	inputs, missing := o.registry.ResolveInputs(name, o.store, o.config.PreferRaw)
	if len(missing) > 0 {
		paths := make([]string, len(missing))
		for i, m := range missing {
			paths[i] = m.Path
		}
		o.skip(name, fmt.Sprintf("missing required input: %s", strings.Join(paths, ", ")))
		return
	}

	o.setState(name, StateRunning, "")
	fmt.Printf("Agent %s running...\n", name)

	turnCtx := ctx
	cancel := func() {}
	if o.config.AgentTimeout > 0 {
		turnCtx, cancel = context.WithTimeout(ctx, o.config.AgentTimeout)
	}
	raw, err := o.capability.Invoke(turnCtx, spec, inputs)
	timedOut := turnCtx.Err() == context.DeadlineExceeded
	cancel()

	if err != nil {
		reason := err.Error()
		if timedOut || errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		o.fail(name, reason)
		return
	}

	data, err := state.AsMapping(state.AgentOutputPath(name), raw)
	if err != nil {
		o.recordShapeViolation(name, err)
		o.fail(name, err.Error())
		return
	}

	result := state.AgentResult{
		AgentName: name,
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	}
	if err := o.store.Merge(result); err != nil {
		if state.IsShapeViolation(err) {
			// Projection clashed with the documented schema. The offending
			// merge was rejected with prior state intact; keep the outcome
			// as data.
			o.recordShapeViolation(name, err)
		}
		o.fail(name, err.Error())
		return
	}

	o.setState(name, StateSucceeded, "")
	fmt.Printf("Agent %s succeeded\n", name)
}

// skip merges a synthetic failed result without invoking the agent.
func (o *Orchestrator) skip(name, reason string) {
	o.mergeFailure(name, reason)
	o.setState(name, StateSkipped, reason)
	fmt.Printf("Agent %s skipped: %s\n", name, reason)
}

// fail merges a failed result for an agent that was attempted.
func (o *Orchestrator) fail(name, reason string) {
	o.mergeFailure(name, reason)
	o.setState(name, StateFailed, reason)
	fmt.Printf("Agent %s failed: %s\n", name, reason)
}

func (o *Orchestrator) mergeFailure(name, reason string) {
	err := o.store.Merge(state.AgentResult{
		AgentName: name,
		Success:   false,
		Data:      map[string]any{},
		Error:     reason,
		Timestamp: time.Now(),
	})
	if err != nil {
		fmt.Printf("Warning: could not merge failure result for %s: %v\n", name, err)
	}
}

func (o *Orchestrator) recordShapeViolation(name string, err error) {
	_ = o.store.AppendAnomaly(state.Anomaly{
		ID:          uuid.New().String(),
		Agent:       name,
		Type:        "shape_violation",
		Severity:    state.SeverityCritical,
		Description: err.Error(),
		DetectedAt:  time.Now(),
	})
}

// skipRemaining marks every not-yet-started agent Skipped with the given
// reason, so the persisted state still reflects partial progress.
func (o *Orchestrator) skipRemaining(order []string, dispatched map[string]bool, reason string) {
	for _, name := range order {
		if dispatched[name] || o.state(name).Terminal() {
			continue
		}
		o.skip(name, reason)
	}
}

func (o *Orchestrator) buildReport(order []string, cancelled bool) *Report {
	o.mu.Lock()
	defer o.mu.Unlock()

	report := &Report{
		Order:     append([]string(nil), order...),
		States:    make(map[string]AgentState, len(order)),
		Reasons:   make(map[string]string),
		Cancelled: cancelled,
	}
	succeeded := 0
	for _, name := range order {
		st := o.states[name]
		report.States[name] = st
		if reason := o.reasons[name]; reason != "" {
			report.Reasons[name] = reason
		}
		if st == StateSucceeded {
			succeeded++
		}
	}
	if len(order) > 0 {
		report.Completeness = float64(succeeded) / float64(len(order))
	}
	return report
}

func (o *Orchestrator) setState(name string, st AgentState, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states[name] = st
	if reason != "" {
		o.reasons[name] = reason
	}
}

func (o *Orchestrator) state(name string) AgentState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.states[name]
}
