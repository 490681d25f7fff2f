package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"agentic_diligence/pkg/core/pipeline"
	"agentic_diligence/pkg/core/registry"
	"agentic_diligence/pkg/core/state"
)

// nonRecurringMarkers flags income items the simulated normalization strips.
var nonRecurringMarkers = []string{
	"restructuring",
	"impairment",
	"litigation",
	"one_time",
	"gain_on_sale",
}

// SimulatedCapability produces deterministic outputs without any API calls.
// Used for offline runs and tests, mirroring the live capability's contract:
// a mapping per agent, context cancellation honored.
type SimulatedCapability struct {
	Latency time.Duration
}

// NewSimulatedCapability creates a capability with a small synthetic latency.
func NewSimulatedCapability() *SimulatedCapability {
	return &SimulatedCapability{Latency: 10 * time.Millisecond}
}

var _ pipeline.Capability = (*SimulatedCapability)(nil)

// Invoke dispatches to the per-agent simulation.
func (c *SimulatedCapability) Invoke(ctx context.Context, spec registry.AgentSpec, inputs map[string]any) (any, error) {
	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	switch spec.Name {
	case FinancialAnalyst:
		return c.normalize(inputs)
	case Valuation:
		return c.value(inputs)
	case Risk:
		return c.assessRisk(inputs)
	case Tax:
		return c.assessTax(inputs)
	case Competitive:
		return map[string]any{
			"market_position":  "established challenger",
			"main_competitors": []any{"peer-a", "peer-b"},
			"moat_assessment":  "moderate switching costs",
		}, nil
	case Legal:
		return map[string]any{
			"regulatory_concerns":  []any{},
			"pending_litigation":   []any{},
			"deal_structure_notes": "no structural blockers identified",
		}, nil
	case Synthesis:
		return c.synthesize(inputs)
	case ReportGenerator:
		return c.reportContent(inputs)
	default:
		return nil, &pipeline.CapabilityError{
			Agent: spec.Name,
			Err:   fmt.Errorf("no simulation defined"),
		}
	}
}

// normalize strips flagged non-recurring items from the income statement and
// returns the adjusted statements under the projected field name.
func (c *SimulatedCapability) normalize(inputs map[string]any) (any, error) {
	raw, err := statementsFromInput(inputs[registry.FinancialData])
	if err != nil {
		return nil, err
	}

	normalized := &state.FinancialStatements{
		Balance:  append([]state.PeriodRecord(nil), raw.Balance...),
		CashFlow: append([]state.PeriodRecord(nil), raw.CashFlow...),
	}
	var adjustments []any
	for _, period := range raw.Income {
		adjusted := state.PeriodRecord{
			FiscalYear: period.FiscalYear,
			PeriodType: period.PeriodType,
			EndDate:    period.EndDate,
			Items:      make(map[string]float64, len(period.Items)),
		}
		for item, amount := range period.Items {
			if isNonRecurring(item) {
				adjustments = append(adjustments, map[string]any{
					"period":    fmt.Sprintf("%d-%s", period.FiscalYear, period.PeriodType),
					"item":      item,
					"amount":    amount,
					"rationale": "non-recurring item removed",
				})
				continue
			}
			adjusted.Items[item] = amount
		}
		normalized.Income = append(normalized.Income, adjusted)
	}

	return map[string]any{
		state.FieldNormalizedFinancials: normalized,
		"adjustments":                   adjustments,
	}, nil
}

func (c *SimulatedCapability) value(inputs map[string]any) (any, error) {
	fin, err := statementsFromInput(inputs[registry.FinancialData])
	if err != nil {
		return nil, err
	}
	revenue := latestItem(fin, state.StatementIncome, "revenue")
	mid := revenue * 2.5
	return map[string]any{
		"enterprise_value_low":  mid * 0.8,
		"enterprise_value_high": mid * 1.2,
		"enterprise_value_mid":  mid,
		"methodology":           "revenue multiple over normalized statements",
		"key_assumptions":       map[string]any{"revenue_multiple": 2.5},
	}, nil
}

func (c *SimulatedCapability) assessRisk(inputs map[string]any) (any, error) {
	fin, err := statementsFromInput(inputs[registry.FinancialData])
	if err != nil {
		return nil, err
	}
	debt := latestItem(fin, state.StatementBalance, "total_debt")
	equity := latestItem(fin, state.StatementBalance, "total_equity")
	rating := "moderate"
	if equity > 0 && debt/equity > 2 {
		rating = "elevated"
	}
	return map[string]any{
		"risk_rating":          rating,
		"leverage_assessment":  fmt.Sprintf("debt/equity %.2f", safeRatio(debt, equity)),
		"liquidity_assessment": "adequate near-term liquidity",
		"key_risks":            []any{"customer concentration", "input cost volatility"},
	}, nil
}

func (c *SimulatedCapability) assessTax(inputs map[string]any) (any, error) {
	fin, err := statementsFromInput(inputs[registry.FinancialData])
	if err != nil {
		return nil, err
	}
	pretax := latestItem(fin, state.StatementIncome, "pretax_income")
	tax := latestItem(fin, state.StatementIncome, "income_tax")
	return map[string]any{
		"effective_tax_rate": safeRatio(tax, pretax),
		"deferred_positions": map[string]any{},
		"exposure_notes":     []any{"computed from as-filed statements"},
	}, nil
}

func (c *SimulatedCapability) synthesize(inputs map[string]any) (any, error) {
	valuation := mappingInput(inputs[state.AgentOutputPath(Valuation)])
	risk := mappingInput(inputs[state.AgentOutputPath(Risk)])

	recommendation := "proceed"
	if rating, _ := risk["risk_rating"].(string); rating == "elevated" || rating == "high" {
		recommendation = "proceed_with_conditions"
	}
	summary := fmt.Sprintf("Midpoint enterprise value %v with %v risk profile.",
		valuation["enterprise_value_mid"], risk["risk_rating"])
	return map[string]any{
		"recommendation":    recommendation,
		"executive_summary": summary,
		"key_findings":      []any{"valuation anchored on normalized revenue", "risk profile acceptable"},
		"open_items":        []any{},
	}, nil
}

func (c *SimulatedCapability) reportContent(inputs map[string]any) (any, error) {
	synthesis := mappingInput(inputs[state.AgentOutputPath(Synthesis)])
	summary, _ := synthesis["executive_summary"].(string)
	if summary == "" {
		summary = "Synthesis output unavailable."
	}
	return map[string]any{
		"title": "Due-Diligence Memorandum",
		"sections": map[string]any{
			"Executive Summary": summary,
			"Recommendation":    fmt.Sprintf("%v", synthesis["recommendation"]),
		},
	}, nil
}

// =============================================================================
// INPUT COERCION HELPERS
// =============================================================================

// statementsFromInput accepts either the typed statements or their generic
// JSON form, which is what a reloaded state yields.
func statementsFromInput(v any) (*state.FinancialStatements, error) {
	switch fin := v.(type) {
	case *state.FinancialStatements:
		return fin, nil
	case state.FinancialStatements:
		return &fin, nil
	case nil:
		return nil, fmt.Errorf("financial data input absent")
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode financial input: %w", err)
		}
		out := &state.FinancialStatements{}
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("decode financial input: %w", err)
		}
		return out, nil
	}
}

func mappingInput(v any) map[string]any {
	m, _ := v.(map[string]any)
	if m == nil {
		return map[string]any{}
	}
	return m
}

func latestItem(fin *state.FinancialStatements, st state.StatementType, item string) float64 {
	latest := fin.Latest(st)
	if latest == nil {
		return 0
	}
	return latest.Items[item]
}

func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func isNonRecurring(item string) bool {
	lower := strings.ToLower(item)
	for _, marker := range nonRecurringMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
