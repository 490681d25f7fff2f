// Package state implements the shared analysis record for a due-diligence job.
// A single AnalysisState is owned by one Store; agents read declared fields and
// write results back through Store.Merge, which is the only mutation path.
package state

import (
	"time"
)

// =============================================================================
// TARGET & FINANCIAL DATA
// =============================================================================

// TargetIdentity identifies the company under analysis.
type TargetIdentity struct {
	CompanyName string `json:"company_name"`
	Ticker      string `json:"ticker"`
	CIK         string `json:"cik,omitempty"`
}

// StatementType identifies one of the three core financial statements.
type StatementType string

const (
	StatementIncome   StatementType = "income_statement"
	StatementBalance  StatementType = "balance_sheet"
	StatementCashFlow StatementType = "cash_flow_statement"
)

// PeriodRecord is one reporting period within a statement sequence.
// EndDate is zero when the source table carried no period end date; ordering
// then falls back to fiscal year.
type PeriodRecord struct {
	FiscalYear int                `json:"fiscal_year"`
	PeriodType string             `json:"period_type"` // "FY", "Q1", ...
	EndDate    time.Time          `json:"end_date"`
	Items      map[string]float64 `json:"items"`
}

// FinancialStatements holds the three statements as ordered period sequences.
// The same shape is used for raw and normalized data.
type FinancialStatements struct {
	Income   []PeriodRecord `json:"income_statement"`
	Balance  []PeriodRecord `json:"balance_sheet"`
	CashFlow []PeriodRecord `json:"cash_flow_statement"`
}

// Latest returns the most recent period record for a statement, or nil.
func (f *FinancialStatements) Latest(st StatementType) *PeriodRecord {
	if f == nil {
		return nil
	}
	var seq []PeriodRecord
	switch st {
	case StatementIncome:
		seq = f.Income
	case StatementBalance:
		seq = f.Balance
	case StatementCashFlow:
		seq = f.CashFlow
	}
	var latest *PeriodRecord
	for i := range seq {
		if latest == nil || newerPeriod(&seq[i], latest) {
			latest = &seq[i]
		}
	}
	return latest
}

func newerPeriod(a, b *PeriodRecord) bool {
	if !a.EndDate.IsZero() || !b.EndDate.IsZero() {
		return a.EndDate.After(b.EndDate)
	}
	return a.FiscalYear > b.FiscalYear
}

// Clone returns a deep copy, so readers cannot alter the merged record.
func (f *FinancialStatements) Clone() *FinancialStatements {
	if f == nil {
		return nil
	}
	return &FinancialStatements{
		Income:   clonePeriods(f.Income),
		Balance:  clonePeriods(f.Balance),
		CashFlow: clonePeriods(f.CashFlow),
	}
}

func clonePeriods(seq []PeriodRecord) []PeriodRecord {
	if seq == nil {
		return nil
	}
	out := make([]PeriodRecord, len(seq))
	for i, p := range seq {
		items := make(map[string]float64, len(p.Items))
		for k, v := range p.Items {
			items[k] = v
		}
		p.Items = items
		out[i] = p
	}
	return out
}

// FilingRecord is the source-document metadata the quality gate evaluates.
type FilingRecord struct {
	FormType        string    `json:"form_type"` // "10-K", "10-Q", "8-K"
	FilingDate      time.Time `json:"filing_date"`
	AccessionNumber string    `json:"accession_number,omitempty"`
}

// DealParameters is present only for M&A-style analyses.
type DealParameters struct {
	Acquirer  string             `json:"acquirer"`
	DealValue float64            `json:"deal_value"`
	DealTerms map[string]string  `json:"deal_terms,omitempty"`
	Synergies map[string]float64 `json:"synergies,omitempty"`
}

// Clone returns a deep copy, so readers cannot alter the merged record.
func (d *DealParameters) Clone() *DealParameters {
	if d == nil {
		return nil
	}
	out := *d
	if d.DealTerms != nil {
		out.DealTerms = make(map[string]string, len(d.DealTerms))
		for k, v := range d.DealTerms {
			out.DealTerms[k] = v
		}
	}
	if d.Synergies != nil {
		out.Synergies = make(map[string]float64, len(d.Synergies))
		for k, v := range d.Synergies {
			out.Synergies[k] = v
		}
	}
	return &out
}

// =============================================================================
// AGENT RESULTS & ANOMALIES
// =============================================================================

// AgentResult is one agent's execution outcome. Created by the orchestrator
// immediately after the agent completes or errors, then appended to the state's
// output log. Never mutated after creation.
type AgentResult struct {
	AgentName string         `json:"agent_name"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data"` // empty mapping on failure, never nil
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Severity orders anomalies by how much attention they need.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordering position of a severity (info < warning < critical).
func (s Severity) Rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	default:
		return 0
	}
}

// Anomaly is a structured flag raised by an agent or the quality gate.
// The anomaly log is append-only and serves as a permanent audit trail.
type Anomaly struct {
	ID          string    `json:"id"`
	Agent       string    `json:"agent"` // source agent or "quality_gate"
	Type        string    `json:"type"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	DetectedAt  time.Time `json:"detected_at"`
}

// QualityMetadata holds the scores the quality gate attaches to a state.
type QualityMetadata struct {
	FilingFreshnessScore float64  `json:"filing_freshness_score"`
	FilingFreshnessGrade string   `json:"filing_freshness_grade,omitempty"`
	StatementAgeDays     float64  `json:"statement_age_days"`
	StatementGrade       string   `json:"statement_grade,omitempty"`
	StaleFilings         []string `json:"stale_filings,omitempty"`
	CompletenessScore    float64  `json:"completeness_score"`
}

// =============================================================================
// ANALYSIS STATE
// =============================================================================

// AnalysisState is the single shared record for one due-diligence job.
// AgentOutputs is ordered by execution and contains at most one entry per
// agent name. An output's Data field is always a mapping; every downstream
// consumer performs key-based lookups on it.
type AnalysisState struct {
	Target               TargetIdentity       `json:"target_identity"`
	Filings              []FilingRecord       `json:"filings,omitempty"`
	RawFinancials        *FinancialStatements `json:"raw_financial_data,omitempty"`
	NormalizedFinancials *FinancialStatements `json:"normalized_financial_data,omitempty"`
	AgentOutputs         []AgentResult        `json:"agent_outputs"`
	Deal                 *DealParameters      `json:"deal_parameters,omitempty"`
	AnomalyLog           []Anomaly            `json:"anomaly_log,omitempty"`
	Quality              QualityMetadata      `json:"quality_metadata"`
}

// Output returns the result for an agent name, if one was merged.
func (a *AnalysisState) Output(agentName string) (AgentResult, bool) {
	for i := range a.AgentOutputs {
		if a.AgentOutputs[i].AgentName == agentName {
			return a.AgentOutputs[i], true
		}
	}
	return AgentResult{}, false
}
