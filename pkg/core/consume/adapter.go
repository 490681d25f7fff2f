// Package consume is the stable read surface for downstream consumers.
// Report generators and dashboards depend only on this adapter, never on the
// state store's internals, so storage can evolve without touching rendering.
package consume

import (
	"agentic_diligence/pkg/core/state"
)

// Adapter wraps a state store with a read API that never raises: absent
// agents yield empty mappings, absent fields yield the caller's default.
type Adapter struct {
	store    *state.Store
	expected []string // agent names the completeness score is measured against
}

// NewAdapter creates a read adapter. expected lists the agents the job was
// supposed to run, usually the resolved execution order.
func NewAdapter(st *state.Store, expected []string) *Adapter {
	return &Adapter{
		store:    st,
		expected: append([]string(nil), expected...),
	}
}

// GetAgentOutput returns an agent's output mapping. Consistent with the
// "failure is data" principle, an absent or failed agent yields an empty
// mapping, never nil and never an error. The mapping is the caller's to
// mutate; the merged record is unaffected.
func (a *Adapter) GetAgentOutput(agentName string) map[string]any {
	res, ok := a.store.AgentOutput(agentName)
	if !ok || res.Data == nil {
		return map[string]any{}
	}
	return res.Data
}

// GetField resolves a state field path, substituting def when the field has
// not been computed.
func (a *Adapter) GetField(path string, def any) any {
	return a.store.GetOr(path, def)
}

// CompletenessScore is the fraction of expected agents whose execution
// reached a successful terminal state.
func (a *Adapter) CompletenessScore() float64 {
	if len(a.expected) == 0 {
		return 0
	}
	succeeded := 0
	for _, name := range a.expected {
		if res, ok := a.store.AgentOutput(name); ok && res.Success {
			succeeded++
		}
	}
	return float64(succeeded) / float64(len(a.expected))
}

// Anomalies returns the audit trail, worst findings included.
func (a *Adapter) Anomalies() []state.Anomaly {
	v, err := a.store.Get(state.FieldAnomalyLog)
	if err != nil {
		return nil
	}
	log, _ := v.([]state.Anomaly)
	return log
}

// Target returns the identity of the analyzed company.
func (a *Adapter) Target() state.TargetIdentity {
	v, err := a.store.Get(state.FieldTargetIdentity)
	if err != nil {
		return state.TargetIdentity{}
	}
	t, _ := v.(state.TargetIdentity)
	return t
}

// ExpectedAgents returns the agents the job was supposed to run.
func (a *Adapter) ExpectedAgents() []string {
	return append([]string(nil), a.expected...)
}
