package pipeline

// AgentState is the per-agent execution state machine:
// Pending -> Validating -> Running -> {Succeeded, Failed, Skipped}.
type AgentState string

const (
	StatePending    AgentState = "pending"
	StateValidating AgentState = "validating"
	StateRunning    AgentState = "running"
	StateSucceeded  AgentState = "succeeded"
	StateFailed     AgentState = "failed"
	StateSkipped    AgentState = "skipped"
)

// Terminal reports whether a state accepts no further transitions.
func (s AgentState) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}

// Report summarizes one pipeline run for the caller.
type Report struct {
	Order        []string              `json:"order"`
	States       map[string]AgentState `json:"states"`
	Reasons      map[string]string     `json:"reasons,omitempty"` // skip/failure reasons
	Completeness float64               `json:"completeness"`
	Cancelled    bool                  `json:"cancelled,omitempty"`
}
