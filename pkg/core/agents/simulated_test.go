package agents

import (
	"context"
	"testing"
	"time"

	"agentic_diligence/pkg/core/pipeline"
	"agentic_diligence/pkg/core/registry"
	"agentic_diligence/pkg/core/state"
)

func sampleStatements() *state.FinancialStatements {
	return &state.FinancialStatements{
		Income: []state.PeriodRecord{
			{
				FiscalYear: 2024,
				PeriodType: "FY",
				EndDate:    time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
				Items: map[string]float64{
					"revenue":               1200,
					"pretax_income":         200,
					"income_tax":            42,
					"restructuring_charges": 80,
					"impairment_of_assets":  30,
				},
			},
		},
		Balance: []state.PeriodRecord{
			{FiscalYear: 2024, PeriodType: "FY", Items: map[string]float64{"total_debt": 400, "total_equity": 600}},
		},
	}
}

func mustInvoke(t *testing.T, name string, inputs map[string]any) map[string]any {
	t.Helper()
	capability := NewSimulatedCapability()
	capability.Latency = 0
	spec := registry.AgentSpec{Name: name}
	raw, err := capability.Invoke(context.Background(), spec, inputs)
	if err != nil {
		t.Fatalf("Invoke %s failed: %v", name, err)
	}
	data, err := state.AsMapping(state.AgentOutputPath(name), raw)
	if err != nil {
		t.Fatalf("Invoke %s returned non-mapping: %v", name, err)
	}
	return data
}

func TestSimulatedNormalizationStripsNonRecurring(t *testing.T) {
	inputs := map[string]any{registry.FinancialData: sampleStatements()}
	data := mustInvoke(t, FinancialAnalyst, inputs)

	fin, ok := data[state.FieldNormalizedFinancials].(*state.FinancialStatements)
	if !ok {
		t.Fatalf("Expected statements under %s, got %T", state.FieldNormalizedFinancials, data[state.FieldNormalizedFinancials])
	}
	items := fin.Income[0].Items
	if _, present := items["restructuring_charges"]; present {
		t.Error("Restructuring charge should be stripped")
	}
	if _, present := items["impairment_of_assets"]; present {
		t.Error("Impairment should be stripped")
	}
	if items["revenue"] != 1200 {
		t.Errorf("Recurring items must pass through, revenue = %v", items["revenue"])
	}

	adjustments, ok := data["adjustments"].([]any)
	if !ok || len(adjustments) != 2 {
		t.Errorf("Expected 2 recorded adjustments, got %v", data["adjustments"])
	}
}

func TestSimulatedCapabilityHonorsCancellation(t *testing.T) {
	capability := NewSimulatedCapability()
	capability.Latency = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := capability.Invoke(ctx, registry.AgentSpec{Name: Risk}, map[string]any{
		registry.FinancialData: sampleStatements(),
	})
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSimulatedTaxUsesFiledFigures(t *testing.T) {
	data := mustInvoke(t, Tax, map[string]any{registry.FinancialData: sampleStatements()})
	rate, ok := data["effective_tax_rate"].(float64)
	if !ok {
		t.Fatalf("Expected effective_tax_rate, got %v", data["effective_tax_rate"])
	}
	if rate < 0.20 || rate > 0.22 {
		t.Errorf("Expected rate around 0.21, got %v", rate)
	}
}

func TestSimulatedUnknownAgent(t *testing.T) {
	capability := NewSimulatedCapability()
	capability.Latency = 0
	_, err := capability.Invoke(context.Background(), registry.AgentSpec{Name: "mystery"}, nil)
	if err == nil {
		t.Fatal("Expected error for unknown agent")
	}
	if _, ok := err.(*pipeline.CapabilityError); !ok {
		t.Errorf("Expected CapabilityError, got %T", err)
	}
}

func TestDefaultSpecsResolve(t *testing.T) {
	reg := registry.New()
	if err := RegisterDefaults(reg); err != nil {
		t.Fatalf("RegisterDefaults failed: %v", err)
	}

	order, err := reg.ResolveOrder()
	if err != nil {
		t.Fatalf("Default agent set must resolve: %v", err)
	}
	if len(order) != len(DefaultSpecs()) {
		t.Fatalf("Expected %d agents in order, got %d", len(DefaultSpecs()), len(order))
	}

	pos := make(map[string]int)
	for i, name := range order {
		pos[name] = i
	}
	if pos[FinancialAnalyst] > pos[Valuation] {
		t.Error("Financial analyst must precede valuation")
	}
	if pos[Valuation] > pos[Synthesis] || pos[Risk] > pos[Synthesis] {
		t.Error("Synthesis must follow valuation and risk")
	}
	if pos[Synthesis] > pos[ReportGenerator] {
		t.Error("Report generator must run last")
	}
}

func TestFullSimulatedRun(t *testing.T) {
	st := state.NewStore(state.TargetIdentity{CompanyName: "Globex Corp", Ticker: "GLBX"})
	if err := st.SetRawFinancials(sampleStatements()); err != nil {
		t.Fatalf("SetRawFinancials failed: %v", err)
	}

	reg := registry.New()
	if err := RegisterDefaults(reg); err != nil {
		t.Fatalf("RegisterDefaults failed: %v", err)
	}

	capability := NewSimulatedCapability()
	capability.Latency = 0

	orch := pipeline.NewOrchestrator(reg, st, capability)
	rep, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if rep.Completeness != 1.0 {
		for name, s := range rep.States {
			t.Logf("%s: %s (%s)", name, s, rep.Reasons[name])
		}
		t.Fatalf("Expected full completeness, got %v", rep.Completeness)
	}

	snap := st.Snapshot()
	if snap.NormalizedFinancials == nil {
		t.Fatal("Normalized statements missing after run")
	}
	if _, present := snap.NormalizedFinancials.Income[0].Items["restructuring_charges"]; present {
		t.Error("Normalized statements still carry non-recurring items")
	}

	val, _ := st.AgentOutput(Valuation)
	if val.Data["enterprise_value_mid"] == nil {
		t.Error("Valuation output missing midpoint")
	}
}
