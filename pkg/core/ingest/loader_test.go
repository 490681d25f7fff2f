package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"agentic_diligence/pkg/core/state"
)

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write input file: %v", err)
	}
	return path
}

const validInput = `{
	"target_identity": {"company_name": "Globex Corp", "ticker": "GLBX", "cik": "0000012345"},
	"financial_data": {
		"income_statement": [
			{"fiscal_year": 2024, "period_type": "FY", "items": {"revenue": 1200, "net_income": 150}}
		]
	},
	"filings": [
		{"form_type": "10-K", "filing_date": "2025-02-15T00:00:00Z", "accession_number": "0000012345-25-000001"}
	],
	"deal_parameters": {"acquirer": "Initech", "deal_value": 5000}
}`

func TestLoadInputFile(t *testing.T) {
	in, err := LoadInputFile(writeInput(t, validInput))
	if err != nil {
		t.Fatalf("LoadInputFile failed: %v", err)
	}

	if in.Target.Ticker != "GLBX" {
		t.Errorf("Expected ticker GLBX, got %q", in.Target.Ticker)
	}
	if len(in.Financials.Income) != 1 || in.Financials.Income[0].Items["revenue"] != 1200 {
		t.Errorf("Income statement not loaded: %+v", in.Financials.Income)
	}
	if len(in.Filings) != 1 || in.Filings[0].FormType != "10-K" {
		t.Errorf("Filings not loaded: %+v", in.Filings)
	}
	if in.Deal == nil || in.Deal.DealValue != 5000 {
		t.Errorf("Deal parameters not loaded: %+v", in.Deal)
	}
}

func TestLoadInputFileValidation(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"not json", `{"target_identity":`},
		{"missing target", `{"financial_data": {"income_statement": [{"fiscal_year": 2024, "items": {"revenue": 1}}]}}`},
		{"missing financials", `{"target_identity": {"ticker": "GLBX"}}`},
		{"empty statements", `{"target_identity": {"ticker": "GLBX"}, "financial_data": {}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadInputFile(writeInput(t, tc.content)); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestSeedPopulatesStore(t *testing.T) {
	in, err := LoadInputFile(writeInput(t, validInput))
	if err != nil {
		t.Fatalf("LoadInputFile failed: %v", err)
	}

	st := state.NewStore(in.Target)
	if err := in.Seed(st); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	snap := st.Snapshot()
	if snap.RawFinancials == nil || snap.RawFinancials.Income[0].Items["net_income"] != 150 {
		t.Error("Raw financials not seeded")
	}
	if len(snap.Filings) != 1 {
		t.Errorf("Expected 1 filing, got %d", len(snap.Filings))
	}
	if snap.Deal == nil || snap.Deal.Acquirer != "Initech" {
		t.Error("Deal parameters not seeded")
	}
}
