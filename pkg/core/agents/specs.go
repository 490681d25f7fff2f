// Package agents declares the due-diligence agent set and implements the
// capability boundary the orchestrator invokes: an LLM-backed capability for
// live runs and a deterministic simulation for tests and offline work.
package agents

import (
	"agentic_diligence/pkg/core/registry"
	"agentic_diligence/pkg/core/state"
)

// Agent names. agent_outputs entries and report sections key off these.
const (
	FinancialAnalyst = "financial_analyst"
	Valuation        = "valuation"
	Risk             = "risk"
	Tax              = "tax"
	Competitive      = "competitive"
	Legal            = "legal"
	Synthesis        = "synthesis"
	ReportGenerator  = "report_generator"
)

// DefaultSpecs declares the full due-diligence agent set in execution-friendly
// declaration order. The financial analyst normalizes the raw statements;
// everything downstream declares which variant it accepts.
func DefaultSpecs() []registry.AgentSpec {
	return []registry.AgentSpec{
		{
			Name: FinancialAnalyst,
			RequiredInputs: []registry.InputRef{
				{Path: registry.FinancialData, Source: registry.SourceRaw},
			},
			ProducedFields: []string{state.FieldNormalizedFinancials},
			Policy:         registry.RawPreferred,
		},
		{
			Name: Valuation,
			RequiredInputs: []registry.InputRef{
				{Path: registry.FinancialData, Source: registry.SourceNormalized},
			},
			OptionalInputs: []registry.InputRef{
				{Path: state.FieldDealParameters},
			},
			Policy: registry.MustUseNormalized,
		},
		{
			Name: Risk,
			RequiredInputs: []registry.InputRef{
				{Path: registry.FinancialData, Source: registry.SourceEither},
			},
			Policy: registry.EitherAcceptable,
		},
		{
			// Tax works strictly on the statements as filed; adjusted
			// figures would corrupt the tax basis.
			Name: Tax,
			RequiredInputs: []registry.InputRef{
				{Path: registry.FinancialData, Source: registry.SourceRaw},
			},
			Policy: registry.RawPreferred,
		},
		{
			Name: Competitive,
			RequiredInputs: []registry.InputRef{
				{Path: state.FieldTargetIdentity},
			},
			OptionalInputs: []registry.InputRef{
				{Path: registry.FinancialData, Source: registry.SourceEither},
			},
			Policy: registry.EitherAcceptable,
		},
		{
			Name: Legal,
			RequiredInputs: []registry.InputRef{
				{Path: state.FieldTargetIdentity},
			},
			OptionalInputs: []registry.InputRef{
				{Path: state.FieldDealParameters},
			},
			Policy: registry.EitherAcceptable,
		},
		{
			Name: Synthesis,
			RequiredInputs: []registry.InputRef{
				{Path: state.AgentOutputPath(Valuation)},
				{Path: state.AgentOutputPath(Risk)},
			},
			OptionalInputs: []registry.InputRef{
				{Path: state.AgentOutputPath(Tax)},
				{Path: state.AgentOutputPath(Competitive)},
				{Path: state.AgentOutputPath(Legal)},
			},
			Policy: registry.EitherAcceptable,
		},
		{
			Name: ReportGenerator,
			RequiredInputs: []registry.InputRef{
				{Path: state.AgentOutputPath(Synthesis)},
			},
			OptionalInputs: []registry.InputRef{
				{Path: state.FieldQualityMetadata},
				{Path: state.FieldAnomalyLog},
			},
			Policy: registry.EitherAcceptable,
		},
	}
}

// RegisterDefaults loads the default agent set into a registry.
func RegisterDefaults(reg *registry.Registry) error {
	for _, spec := range DefaultSpecs() {
		if err := reg.Register(spec); err != nil {
			return err
		}
	}
	return nil
}
