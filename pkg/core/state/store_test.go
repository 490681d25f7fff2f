package state

import (
	"testing"
	"time"
)

func testTarget() TargetIdentity {
	return TargetIdentity{CompanyName: "Globex Corp", Ticker: "GLBX", CIK: "0000123456"}
}

func testStatements() *FinancialStatements {
	return &FinancialStatements{
		Income: []PeriodRecord{
			{
				FiscalYear: 2023,
				PeriodType: "FY",
				EndDate:    time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
				Items:      map[string]float64{"revenue": 1000, "restructuring_charges": 50},
			},
			{
				FiscalYear: 2024,
				PeriodType: "FY",
				EndDate:    time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
				Items:      map[string]float64{"revenue": 1200, "restructuring_charges": 30},
			},
		},
		Balance: []PeriodRecord{
			{
				FiscalYear: 2024,
				PeriodType: "FY",
				Items:      map[string]float64{"total_debt": 400, "total_equity": 600},
			},
		},
	}
}

func TestMergeAppendsOutput(t *testing.T) {
	st := NewStore(testTarget())

	err := st.Merge(AgentResult{
		AgentName: "risk",
		Success:   true,
		Data:      map[string]any{"risk_rating": "moderate"},
	})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	res, ok := st.AgentOutput("risk")
	if !ok {
		t.Fatal("Expected risk output after merge")
	}
	if res.Data["risk_rating"] != "moderate" {
		t.Errorf("Expected risk_rating 'moderate', got %v", res.Data["risk_rating"])
	}
	if res.Timestamp.IsZero() {
		t.Error("Merge should backfill a timestamp")
	}
}

func TestMergeRejectsDuplicate(t *testing.T) {
	st := NewStore(testTarget())
	first := AgentResult{AgentName: "risk", Success: true, Data: map[string]any{"risk_rating": "low"}}
	if err := st.Merge(first); err != nil {
		t.Fatalf("First merge failed: %v", err)
	}

	err := st.Merge(AgentResult{AgentName: "risk", Success: true, Data: map[string]any{"risk_rating": "high"}})
	if err == nil {
		t.Fatal("Expected duplicate merge to be rejected")
	}
	if _, ok := err.(*DuplicateMergeError); !ok {
		t.Errorf("Expected DuplicateMergeError, got %T", err)
	}

	// Original result must be untouched.
	res, _ := st.AgentOutput("risk")
	if res.Data["risk_rating"] != "low" {
		t.Errorf("Duplicate merge overwrote data: got %v", res.Data["risk_rating"])
	}
}

func TestMergeDataRejectsSequence(t *testing.T) {
	st := NewStore(testTarget())

	err := st.MergeData("risk", []any{"finding-1", "finding-2"})
	if err == nil {
		t.Fatal("Expected shape violation for sequence data")
	}
	if !IsShapeViolation(err) {
		t.Errorf("Expected ShapeViolationError, got %T", err)
	}
	if _, ok := st.AgentOutput("risk"); ok {
		t.Error("Rejected merge must not leave an output behind")
	}
}

func TestMergeProjectionAtomicity(t *testing.T) {
	st := NewStore(testTarget())
	st.SetProjection("financial_analyst", []string{FieldNormalizedFinancials})

	// A sequence where the normalized statements mapping belongs: the whole
	// merge must be rejected, including the agent_outputs append.
	err := st.Merge(AgentResult{
		AgentName: "financial_analyst",
		Success:   true,
		Data: map[string]any{
			FieldNormalizedFinancials: []any{"income", "balance"},
		},
	})
	if !IsShapeViolation(err) {
		t.Fatalf("Expected shape violation, got %v", err)
	}
	if _, ok := st.AgentOutput("financial_analyst"); ok {
		t.Error("Atomicity broken: output log written despite rejected projection")
	}
	if _, getErr := st.Get(FieldNormalizedFinancials); !IsMissingField(getErr) {
		t.Error("Atomicity broken: projection applied despite rejection")
	}
}

func TestMergeProjectsNormalizedFinancials(t *testing.T) {
	st := NewStore(testTarget())
	st.SetProjection("financial_analyst", []string{FieldNormalizedFinancials})

	err := st.Merge(AgentResult{
		AgentName: "financial_analyst",
		Success:   true,
		Data: map[string]any{
			FieldNormalizedFinancials: map[string]any{
				"income_statement": []any{
					map[string]any{
						"fiscal_year": 2024,
						"period_type": "FY",
						"items":       map[string]any{"revenue": 1200.0},
					},
				},
			},
			"adjustments": []any{},
		},
	})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	v, getErr := st.Get(FieldNormalizedFinancials)
	if getErr != nil {
		t.Fatalf("Normalized financials not projected: %v", getErr)
	}
	fin, ok := v.(*FinancialStatements)
	if !ok {
		t.Fatalf("Expected *FinancialStatements, got %T", v)
	}
	if len(fin.Income) != 1 || fin.Income[0].Items["revenue"] != 1200 {
		t.Errorf("Projected statements wrong: %+v", fin.Income)
	}
}

func TestGetDistinguishesMissingFromEmpty(t *testing.T) {
	st := NewStore(testTarget())

	// Absent agent output: missing-field error, not an empty value.
	if _, err := st.Get("agent_outputs.valuation"); !IsMissingField(err) {
		t.Errorf("Expected MissingFieldError for absent agent, got %v", err)
	}

	// Present-but-empty output is a value, not an error.
	if err := st.MergeData("valuation", map[string]any{}); err != nil {
		t.Fatalf("MergeData failed: %v", err)
	}
	v, err := st.Get("agent_outputs.valuation")
	if err != nil {
		t.Fatalf("Expected empty mapping, got error: %v", err)
	}
	if m, ok := v.(map[string]any); !ok || len(m) != 0 {
		t.Errorf("Expected empty mapping, got %v", v)
	}

	// Absent key inside a present output is missing again.
	if _, err := st.Get("agent_outputs.valuation.enterprise_value_mid"); !IsMissingField(err) {
		t.Errorf("Expected MissingFieldError for absent key, got %v", err)
	}
}

func TestGetOrDefault(t *testing.T) {
	st := NewStore(testTarget())
	if got := st.GetOr("agent_outputs.risk", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback, got %v", got)
	}
}

func TestSealRejectsWrites(t *testing.T) {
	st := NewStore(testTarget())
	st.Seal()

	if err := st.MergeData("risk", map[string]any{}); err != ErrStateSealed {
		t.Errorf("Expected ErrStateSealed from merge, got %v", err)
	}
	if err := st.SetRawFinancials(testStatements()); err != ErrStateSealed {
		t.Errorf("Expected ErrStateSealed from setter, got %v", err)
	}
	if err := st.AppendAnomaly(Anomaly{ID: "a1"}); err != ErrStateSealed {
		t.Errorf("Expected ErrStateSealed from anomaly append, got %v", err)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	st := NewStore(testTarget())
	if err := st.MergeData("risk", map[string]any{"risk_rating": "low"}); err != nil {
		t.Fatalf("MergeData failed: %v", err)
	}

	snap := st.Snapshot()
	snap.AgentOutputs[0].Data["risk_rating"] = "tampered"

	res, _ := st.AgentOutput("risk")
	if res.Data["risk_rating"] != "low" {
		t.Error("Snapshot mutation leaked into the store")
	}
}

func TestReadPathsReturnIsolatedCopies(t *testing.T) {
	st := NewStore(testTarget())
	if err := st.SetRawFinancials(testStatements()); err != nil {
		t.Fatalf("SetRawFinancials failed: %v", err)
	}
	if err := st.MergeData("risk", map[string]any{
		"risk_rating": "low",
		"key_risks":   []any{"leverage"},
	}); err != nil {
		t.Fatalf("MergeData failed: %v", err)
	}

	v, err := st.Get(FieldRawFinancials)
	if err != nil {
		t.Fatalf("Get raw financials failed: %v", err)
	}
	fin := v.(*FinancialStatements)
	fin.Income[1].Items["revenue"] = -1

	v, _ = st.Get(FieldRawFinancials)
	if got := v.(*FinancialStatements).Income[1].Items["revenue"]; got != 1200 {
		t.Errorf("Reader mutation reached merged statements: revenue = %v", got)
	}

	out, err := st.Get("agent_outputs.risk")
	if err != nil {
		t.Fatalf("Get agent output failed: %v", err)
	}
	out.(map[string]any)["risk_rating"] = "tampered"

	res, _ := st.AgentOutput("risk")
	if res.Data["risk_rating"] != "low" {
		t.Errorf("Reader mutation reached merged output: %v", res.Data["risk_rating"])
	}

	res.Data["risk_rating"] = "tampered"
	if again, _ := st.AgentOutput("risk"); again.Data["risk_rating"] != "low" {
		t.Errorf("AgentOutput mutation reached merged output: %v", again.Data["risk_rating"])
	}

	risks, err := st.Get("agent_outputs.risk.key_risks")
	if err != nil {
		t.Fatalf("Get output key failed: %v", err)
	}
	risks.([]any)[0] = "tampered"
	if fresh, _ := st.Get("agent_outputs.risk.key_risks"); fresh.([]any)[0] != "leverage" {
		t.Errorf("Reader mutation reached merged sequence: %v", fresh)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	st := NewStore(testTarget())
	if err := st.SetRawFinancials(testStatements()); err != nil {
		t.Fatalf("SetRawFinancials failed: %v", err)
	}
	if err := st.SetFilings([]FilingRecord{
		{FormType: "10-K", FilingDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), AccessionNumber: "0000123456-25-000001"},
	}); err != nil {
		t.Fatalf("SetFilings failed: %v", err)
	}
	if err := st.MergeData("risk", map[string]any{"risk_rating": "moderate"}); err != nil {
		t.Fatalf("MergeData failed: %v", err)
	}
	if err := st.AppendAnomaly(Anomaly{ID: "a1", Agent: "quality_gate", Type: "stale_filing", Severity: SeverityWarning, Description: "stale"}); err != nil {
		t.Fatalf("AppendAnomaly failed: %v", err)
	}
	st.Seal()

	doc, err := st.MarshalDocument()
	if err != nil {
		t.Fatalf("MarshalDocument failed: %v", err)
	}

	loaded, err := LoadDocument(doc)
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	if !loaded.Sealed() {
		t.Error("Loaded store should be sealed")
	}

	res, ok := loaded.AgentOutput("risk")
	if !ok || res.Data["risk_rating"] != "moderate" {
		t.Errorf("Agent output lost in round trip: %+v", res)
	}
	v, err := loaded.Get(FieldRawFinancials)
	if err != nil {
		t.Fatalf("Raw financials lost in round trip: %v", err)
	}
	fin := v.(*FinancialStatements)
	if latest := fin.Latest(StatementIncome); latest == nil || latest.FiscalYear != 2024 {
		t.Errorf("Latest income period wrong after round trip: %+v", latest)
	}
	anomalies, _ := loaded.Get(FieldAnomalyLog)
	if log, ok := anomalies.([]Anomaly); !ok || len(log) != 1 {
		t.Errorf("Anomaly log lost in round trip: %v", anomalies)
	}
}

func TestSeverityRank(t *testing.T) {
	cases := []struct {
		a, b Severity
	}{
		{SeverityInfo, SeverityWarning},
		{SeverityWarning, SeverityCritical},
	}
	for _, c := range cases {
		if c.a.Rank() >= c.b.Rank() {
			t.Errorf("Expected %s to rank below %s", c.a, c.b)
		}
	}
}
