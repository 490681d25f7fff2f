package quality

import (
	"encoding/json"
	"fmt"
	"reflect"

	"agentic_diligence/pkg/core/state"
)

// ShapeDrift is one location where the actual container kind diverges from
// the documented schema. Never auto-corrected; surfaced for remediation.
type ShapeDrift struct {
	Path     string `json:"path"`
	Expected string `json:"expected"` // "mapping" or "sequence"
	Actual   string `json:"actual"`
}

// documentedKinds is the schema the drift scan enforces: the container kind
// expected at each known path of the state document and inside agent data.
var documentedKinds = map[string]string{
	"target_identity":                "mapping",
	"filings":                        "sequence",
	"raw_financial_data":             "mapping",
	"normalized_financial_data":      "mapping",
	"agent_outputs":                  "sequence",
	"deal_parameters":                "mapping",
	"anomaly_log":                    "sequence",
	"quality_metadata":               "mapping",
	"income_statement":               "sequence",
	"balance_sheet":                  "sequence",
	"cash_flow_statement":            "sequence",
	"data.normalized_financial_data": "mapping",
	"data.deal_parameters":           "mapping",
}

// ScanShapes walks the state document and every agent output looking for
// sequences where the schema documents a mapping, and vice versa.
func ScanShapes(snap state.AnalysisState) []ShapeDrift {
	// Work on the generic JSON form, which is the shape consumers see.
	raw, err := json.Marshal(&snap)
	if err != nil {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}

	var drifts []ShapeDrift
	for field, v := range doc {
		expected, known := documentedKinds[field]
		if !known || v == nil {
			continue
		}
		if actual := containerKind(v); actual != expected {
			drifts = append(drifts, ShapeDrift{Path: field, Expected: expected, Actual: actual})
			continue
		}
		switch field {
		case "raw_financial_data", "normalized_financial_data":
			drifts = append(drifts, scanStatements(field, v)...)
		case "agent_outputs":
			drifts = append(drifts, scanOutputs(v)...)
		}
	}
	return drifts
}

// scanStatements checks the three statement sequences inside a financials block.
func scanStatements(prefix string, v any) []ShapeDrift {
	block, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	var drifts []ShapeDrift
	for key, sub := range block {
		expected, known := documentedKinds[key]
		if !known || sub == nil {
			continue
		}
		if actual := containerKind(sub); actual != expected {
			drifts = append(drifts, ShapeDrift{
				Path:     prefix + "." + key,
				Expected: expected,
				Actual:   actual,
			})
		}
	}
	return drifts
}

// scanOutputs enforces the hard invariant on every AgentResult: data is a
// mapping, plus the documented kinds of any projected fields inside it.
func scanOutputs(v any) []ShapeDrift {
	entries, ok := v.([]any)
	if !ok {
		return nil
	}
	var drifts []ShapeDrift
	for i, entry := range entries {
		rec, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name, _ := rec["agent_name"].(string)
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		base := "agent_outputs." + name

		data, present := rec["data"]
		if !present || data == nil {
			drifts = append(drifts, ShapeDrift{Path: base + ".data", Expected: "mapping", Actual: "null"})
			continue
		}
		if actual := containerKind(data); actual != "mapping" {
			drifts = append(drifts, ShapeDrift{Path: base + ".data", Expected: "mapping", Actual: actual})
			continue
		}
		for key, sub := range data.(map[string]any) {
			expected, known := documentedKinds["data."+key]
			if !known || sub == nil {
				continue
			}
			if actual := containerKind(sub); actual != expected {
				drifts = append(drifts, ShapeDrift{
					Path:     base + ".data." + key,
					Expected: expected,
					Actual:   actual,
				})
			}
		}
	}
	return drifts
}

func containerKind(v any) string {
	if v == nil {
		return "null"
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map:
		return "mapping"
	case reflect.Slice, reflect.Array:
		return "sequence"
	default:
		return "scalar"
	}
}
