package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"agentic_diligence/pkg/core/state"
)

// InputFile is the local JSON format for a diligence job: target identity,
// as-filed statements, filing metadata, and optional deal terms.
type InputFile struct {
	Target     state.TargetIdentity       `json:"target_identity"`
	Financials *state.FinancialStatements `json:"financial_data"`
	Filings    []state.FilingRecord       `json:"filings,omitempty"`
	Deal       *state.DealParameters      `json:"deal_parameters,omitempty"`
}

// LoadInputFile reads and validates a job input file.
func LoadInputFile(path string) (*InputFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	var in InputFile
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("failed to parse input file: %w", err)
	}

	if in.Target.Ticker == "" && in.Target.CompanyName == "" {
		return nil, fmt.Errorf("input file missing target identity")
	}
	if in.Financials == nil {
		return nil, fmt.Errorf("input file missing financial_data")
	}
	if len(in.Financials.Income) == 0 && len(in.Financials.Balance) == 0 && len(in.Financials.CashFlow) == 0 {
		return nil, fmt.Errorf("financial_data contains no statements")
	}
	return &in, nil
}

// Seed populates a fresh store with the input file's contents.
func (in *InputFile) Seed(st *state.Store) error {
	if err := st.SetRawFinancials(in.Financials); err != nil {
		return err
	}
	if len(in.Filings) > 0 {
		if err := st.SetFilings(in.Filings); err != nil {
			return err
		}
	}
	if in.Deal != nil {
		if err := st.SetDealParameters(in.Deal); err != nil {
			return err
		}
	}
	return nil
}
