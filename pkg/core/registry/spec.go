// Package registry holds the static agent declarations and the dependency
// graph computed from them. Specs are defined at process start and immutable
// once the execution order has been resolved.
package registry

import (
	"agentic_diligence/pkg/core/state"
)

// DataSource tags which variant of the financial data an input accepts.
type DataSource string

const (
	SourceRaw        DataSource = "raw"
	SourceNormalized DataSource = "normalized"
	SourceEither     DataSource = "either"
)

// FinancialData is the virtual input path for the statement family. It is
// resolved to raw_financial_data or normalized_financial_data by the agent's
// normalization policy before execution.
const FinancialData = "financial_data"

// InputRef is one declared input: a field path into the analysis state plus
// the acceptable data source. Source is only meaningful for financial paths.
type InputRef struct {
	Path   string     `json:"path"`
	Source DataSource `json:"source,omitempty"`
}

// NormalizationPolicy drives input validation and source selection before an
// agent runs. It replaces per-consumer "try this key, then that key" chains:
// the source decision is made exactly once, by the orchestrator.
type NormalizationPolicy string

const (
	// MustUseNormalized skips the agent when normalized data is absent.
	MustUseNormalized NormalizationPolicy = "must_use_normalized"
	// RawPreferred forbids normalized input; tax-basis agents need the
	// statements exactly as filed.
	RawPreferred NormalizationPolicy = "raw_preferred"
	// EitherAcceptable takes normalized when present, raw otherwise
	// (the preference is configurable at the orchestrator).
	EitherAcceptable NormalizationPolicy = "either_acceptable"
)

// AgentSpec is the static declaration for one analysis agent.
type AgentSpec struct {
	Name           string              `json:"name"`
	RequiredInputs []InputRef          `json:"required_inputs"`
	OptionalInputs []InputRef          `json:"optional_inputs,omitempty"`
	ProducedFields []string            `json:"produced_fields"`
	Policy         NormalizationPolicy `json:"normalization_policy"`
}

// ResolveSource collapses an input tag and the agent policy into the concrete
// source for a financial input. preferRaw flips the default for "either".
func ResolveSource(ref InputRef, policy NormalizationPolicy, preferRaw bool) DataSource {
	switch policy {
	case MustUseNormalized:
		return SourceNormalized
	case RawPreferred:
		return SourceRaw
	}
	switch ref.Source {
	case SourceNormalized, SourceRaw:
		return ref.Source
	default:
		if preferRaw {
			return SourceRaw
		}
		return SourceNormalized
	}
}

// financialPath maps a source to the concrete state field.
func financialPath(src DataSource) string {
	if src == SourceRaw {
		return state.FieldRawFinancials
	}
	return state.FieldNormalizedFinancials
}

// IsFinancialPath reports whether a declared path belongs to the statement
// family and is subject to policy resolution.
func IsFinancialPath(path string) bool {
	return path == FinancialData ||
		path == state.FieldRawFinancials ||
		path == state.FieldNormalizedFinancials
}
