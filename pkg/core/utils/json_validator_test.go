package utils

import (
	"strings"
	"testing"
)

type valuationOutput struct {
	EnterpriseValue float64 `json:"enterprise_value"`
	Methodology     string  `json:"methodology"`
}

func TestValidateJSON(t *testing.T) {
	var out valuationOutput
	err := ValidateJSON(`{"enterprise_value": 3000, "methodology": "revenue multiple"}`, &out)
	if err != nil {
		t.Fatalf("ValidateJSON failed on valid input: %v", err)
	}
	if out.EnterpriseValue != 3000 {
		t.Errorf("Expected enterprise value 3000, got %v", out.EnterpriseValue)
	}
}

func TestValidateJSONRejectsZeroFields(t *testing.T) {
	var out valuationOutput
	err := ValidateJSON(`{"enterprise_value": 3000}`, &out)
	if err == nil {
		t.Fatal("Expected schema violation for missing methodology")
	}
	if !strings.Contains(err.Error(), "JSON_SCHEMA_VIOLATION") {
		t.Errorf("Expected schema violation error, got: %v", err)
	}
}

func TestValidateJSONRejectsMalformed(t *testing.T) {
	var out valuationOutput
	err := ValidateJSON(`{"enterprise_value": `, &out)
	if err == nil || !strings.Contains(err.Error(), "JSON_STRUCTURAL_ERROR") {
		t.Errorf("Expected structural error, got: %v", err)
	}
}

func TestSmartParseCleanInput(t *testing.T) {
	var out map[string]any
	result, err := SmartParse(`{"risk_rating": "moderate"}`, &out)
	if err != nil {
		t.Fatalf("SmartParse failed on clean JSON: %v", err)
	}
	if result != `{"risk_rating": "moderate"}` {
		t.Errorf("Clean input should pass through unchanged, got %q", result)
	}
}

func TestSmartParseRepairsCodeFence(t *testing.T) {
	input := "```json\n{\"risk_rating\": \"elevated\", \"key_risks\": [\"leverage\",]}\n```"
	var out map[string]any
	_, err := SmartParse(input, &out)
	if err != nil {
		t.Fatalf("SmartParse failed on fenced JSON: %v", err)
	}
	if out["risk_rating"] != "elevated" {
		t.Errorf("Expected risk_rating elevated, got %v", out["risk_rating"])
	}
}

func TestParseHJSONToStruct(t *testing.T) {
	input := `{
		# analyst commentary allowed here
		risk_rating: moderate
		score: 0.6
	}`
	var out map[string]any
	if err := ParseHJSONToStruct(input, &out); err != nil {
		t.Fatalf("ParseHJSONToStruct failed: %v", err)
	}
	if out["risk_rating"] != "moderate" {
		t.Errorf("Expected risk_rating moderate, got %v", out["risk_rating"])
	}
}

func TestMustRepairJSONFallsBackToEmptyObject(t *testing.T) {
	if got := MustRepairJSON(""); got == "" {
		t.Error("MustRepairJSON must never return an empty string")
	}
}
