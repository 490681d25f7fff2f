package quality

import (
	"testing"

	"agentic_diligence/pkg/core/state"
)

func TestScanShapesCleanState(t *testing.T) {
	snap := state.AnalysisState{
		Target: state.TargetIdentity{Ticker: "GLBX"},
		RawFinancials: &state.FinancialStatements{
			Income: []state.PeriodRecord{
				{FiscalYear: 2024, PeriodType: "FY", Items: map[string]float64{"revenue": 1200}},
			},
		},
		AgentOutputs: []state.AgentResult{
			{AgentName: "risk", Success: true, Data: map[string]any{"risk_rating": "low"}},
		},
	}
	if drifts := ScanShapes(snap); len(drifts) != 0 {
		t.Errorf("Clean state should have no drift, got %+v", drifts)
	}
}

func TestScanShapesDetectsSequenceInAgentData(t *testing.T) {
	snap := state.AnalysisState{
		AgentOutputs: []state.AgentResult{
			{
				AgentName: "financial_analyst",
				Success:   true,
				Data: map[string]any{
					// Documented as a mapping; a list here is the classic defect.
					"normalized_financial_data": []any{"period-1", "period-2"},
				},
			},
		},
	}

	drifts := ScanShapes(snap)
	if len(drifts) != 1 {
		t.Fatalf("Expected 1 drift, got %+v", drifts)
	}
	d := drifts[0]
	if d.Path != "agent_outputs.financial_analyst.data.normalized_financial_data" {
		t.Errorf("Unexpected drift path: %s", d.Path)
	}
	if d.Expected != "mapping" || d.Actual != "sequence" {
		t.Errorf("Expected mapping/sequence, got %s/%s", d.Expected, d.Actual)
	}
}

func TestScanShapesDetectsNullAgentData(t *testing.T) {
	snap := state.AnalysisState{
		AgentOutputs: []state.AgentResult{
			{AgentName: "risk", Success: false, Data: nil},
		},
	}
	drifts := ScanShapes(snap)
	if len(drifts) != 1 {
		t.Fatalf("Expected 1 drift for null data, got %+v", drifts)
	}
	if drifts[0].Path != "agent_outputs.risk.data" || drifts[0].Actual != "null" {
		t.Errorf("Unexpected drift: %+v", drifts[0])
	}
}

func TestGateEscalatesDriftToCritical(t *testing.T) {
	st := state.NewStore(state.TargetIdentity{Ticker: "GLBX"})
	if err := st.Merge(state.AgentResult{
		AgentName: "competitive",
		Success:   true,
		Data:      map[string]any{"deal_parameters": []any{"term-1"}},
	}); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	gate := NewGate()
	report := gate.Run(st)
	if len(report.Drifts) != 1 {
		t.Fatalf("Expected 1 drift, got %+v", report.Drifts)
	}

	snap := st.Snapshot()
	found := false
	for _, a := range snap.AnomalyLog {
		if a.Type == "shape_drift" && a.Severity == state.SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Error("Shape drift must be recorded as a critical anomaly")
	}
}
