// Package quality implements the advisory data-quality gate: filing
// freshness scoring and shape-drift detection. Findings are recorded as
// anomalies on the analysis state; the gate never halts the pipeline.
package quality

import (
	"fmt"
	"time"

	"agentic_diligence/pkg/core/state"
)

// Grade buckets for freshness scores and statement ages.
const (
	GradeExcellent = "Excellent"
	GradeGood      = "Good"
	GradeFair      = "Fair"
	GradePoor      = "Poor"
)

// FreshnessPolicy maps a filing form type to its maximum acceptable age in
// days. Forms without an entry use DefaultMaxAgeDays.
type FreshnessPolicy map[string]int

// DefaultMaxAgeDays applies to form types the policy does not name.
const DefaultMaxAgeDays = 365

// DefaultFreshnessPolicy: annual filings within ~15 months, quarterly within
// ~6 months, current reports within ~3 months.
func DefaultFreshnessPolicy() FreshnessPolicy {
	return FreshnessPolicy{
		"10-K": 456,
		"10-Q": 182,
		"8-K":  90,
	}
}

// FilingFreshness is the per-filing verdict.
type FilingFreshness struct {
	FormType        string `json:"form_type"`
	AccessionNumber string `json:"accession_number,omitempty"`
	AgeDays         int    `json:"age_days"`
	MaxAgeDays      int    `json:"max_age_days"`
	IsFresh         bool   `json:"is_fresh"`
}

// FreshnessReport aggregates filing- and statement-level freshness.
type FreshnessReport struct {
	Filings          []FilingFreshness `json:"filings"`
	Score            float64           `json:"score"` // fraction of filings within threshold
	Grade            string            `json:"grade"`
	StaleFilings     []string          `json:"stale_filings,omitempty"`
	StatementAgeDays float64           `json:"statement_age_days"` // mean age of latest records
	StatementGrade   string            `json:"statement_grade,omitempty"`
}

// CheckFreshness evaluates every filing against the policy and computes the
// mean age of the latest income/balance/cash-flow records.
func CheckFreshness(snap state.AnalysisState, policy FreshnessPolicy, now time.Time) FreshnessReport {
	if policy == nil {
		policy = DefaultFreshnessPolicy()
	}

	report := FreshnessReport{}
	fresh := 0
	for _, filing := range snap.Filings {
		maxAge, ok := policy[filing.FormType]
		if !ok {
			maxAge = DefaultMaxAgeDays
		}
		age := int(now.Sub(filing.FilingDate).Hours() / 24)
		ff := FilingFreshness{
			FormType:        filing.FormType,
			AccessionNumber: filing.AccessionNumber,
			AgeDays:         age,
			MaxAgeDays:      maxAge,
			IsFresh:         age <= maxAge,
		}
		report.Filings = append(report.Filings, ff)
		if ff.IsFresh {
			fresh++
		} else {
			label := filing.AccessionNumber
			if label == "" {
				label = fmt.Sprintf("%s filed %s", filing.FormType, filing.FilingDate.Format("2006-01-02"))
			}
			report.StaleFilings = append(report.StaleFilings, label)
		}
	}
	if len(snap.Filings) > 0 {
		report.Score = float64(fresh) / float64(len(snap.Filings))
	} else {
		report.Score = 1.0 // nothing to be stale
	}
	report.Grade = gradeScore(report.Score)

	if age, ok := meanStatementAge(snap.RawFinancials, now); ok {
		report.StatementAgeDays = age
		report.StatementGrade = gradeAge(age)
	}
	return report
}

// meanStatementAge averages the age of the latest record in each statement.
func meanStatementAge(f *state.FinancialStatements, now time.Time) (float64, bool) {
	if f == nil {
		return 0, false
	}
	var total float64
	count := 0
	for _, st := range []state.StatementType{state.StatementIncome, state.StatementBalance, state.StatementCashFlow} {
		latest := f.Latest(st)
		if latest == nil || latest.EndDate.IsZero() {
			continue
		}
		total += now.Sub(latest.EndDate).Hours() / 24
		count++
	}
	if count == 0 {
		return 0, false
	}
	return total / float64(count), true
}

// gradeScore buckets a freshness fraction.
func gradeScore(score float64) string {
	switch {
	case score >= 0.8:
		return GradeExcellent
	case score >= 0.6:
		return GradeGood
	case score >= 0.4:
		return GradeFair
	default:
		return GradePoor
	}
}

// gradeAge buckets a day-count with the same four grades.
func gradeAge(days float64) string {
	switch {
	case days <= 90:
		return GradeExcellent
	case days <= 182:
		return GradeGood
	case days <= 365:
		return GradeFair
	default:
		return GradePoor
	}
}
