package quality

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"agentic_diligence/pkg/core/state"
)

// GateAgent is the source attributed to anomalies the gate raises.
const GateAgent = "quality_gate"

// Gate runs both advisory checks against a state store and records findings
// as anomalies. It never returns an error and never halts the pipeline.
type Gate struct {
	Policy FreshnessPolicy
	Now    func() time.Time // injectable clock for tests
}

// NewGate creates a gate with the default policy table.
func NewGate() *Gate {
	return &Gate{
		Policy: DefaultFreshnessPolicy(),
		Now:    time.Now,
	}
}

// Report is the combined outcome of one gate run.
type Report struct {
	Freshness FreshnessReport `json:"freshness"`
	Drifts    []ShapeDrift    `json:"shape_drifts,omitempty"`
}

// Run evaluates freshness and shape drift over the current state, appends
// anomalies for every finding, and updates the quality metadata block.
func (g *Gate) Run(st *state.Store) Report {
	snap := st.Snapshot()
	now := g.Now()

	report := Report{
		Freshness: CheckFreshness(snap, g.Policy, now),
		Drifts:    ScanShapes(snap),
	}

	// The gate runs before and after the pipeline; findings already on the
	// log are not raised twice.
	recorded := make(map[string]bool, len(snap.AnomalyLog))
	for _, a := range snap.AnomalyLog {
		recorded[a.Type+"|"+a.Description] = true
	}
	raise := func(a state.Anomaly) {
		if recorded[a.Type+"|"+a.Description] {
			return
		}
		recorded[a.Type+"|"+a.Description] = true
		_ = st.AppendAnomaly(a)
	}

	for _, stale := range report.Freshness.StaleFilings {
		raise(state.Anomaly{
			ID:          uuid.New().String(),
			Agent:       GateAgent,
			Type:        "stale_filing",
			Severity:    state.SeverityWarning,
			Description: fmt.Sprintf("filing %s exceeds its maximum acceptable age", stale),
			DetectedAt:  now,
		})
	}
	for _, drift := range report.Drifts {
		raise(state.Anomaly{
			ID:          uuid.New().String(),
			Agent:       GateAgent,
			Type:        "shape_drift",
			Severity:    state.SeverityCritical,
			Description: fmt.Sprintf("shape drift at %s: expected %s, got %s", drift.Path, drift.Expected, drift.Actual),
			DetectedAt:  now,
		})
	}

	quality := snap.Quality
	quality.FilingFreshnessScore = report.Freshness.Score
	quality.FilingFreshnessGrade = report.Freshness.Grade
	quality.StatementAgeDays = report.Freshness.StatementAgeDays
	quality.StatementGrade = report.Freshness.StatementGrade
	quality.StaleFilings = report.Freshness.StaleFilings
	_ = st.SetQuality(quality)

	return report
}
