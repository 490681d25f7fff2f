package ingest

import (
	"strings"
	"testing"
)

const filingContent = `
UNITED STATES SECURITIES AND EXCHANGE COMMISSION
FORM 10-K

Item 1. Business
We make widgets and sell them worldwide.

Item 1A. Risk Factors
Demand for widgets may decline.

Item 7. MD&A
Revenue grew 14% year over year.

Item 8. Financial Statements
<table><tr><th>2024</th></tr><tr><td>Revenue</td><td>1,200</td></tr></table>

Item 9A. Controls and Procedures
Management concluded controls are effective.
`

func TestParseSectionsOrdersByOffset(t *testing.T) {
	parser := NewSectionParser()
	sections := parser.ParseSections(filingContent)

	if len(sections) != 5 {
		t.Fatalf("Expected 5 sections, got %d", len(sections))
	}

	expectedOrder := []string{"1", "1A", "7", "8", "9A"}
	for i, item := range expectedOrder {
		if sections[i].ItemNumber != item {
			t.Errorf("Section %d: expected item %s, got %s", i, item, sections[i].ItemNumber)
		}
	}

	if !strings.Contains(sections[1].Content, "Demand for widgets") {
		t.Error("Risk Factors section missing its body")
	}
	if strings.Contains(sections[1].Content, "Revenue grew") {
		t.Error("Risk Factors section bleeds into MD&A")
	}
}

func TestFinancialSectionKeepsHTML(t *testing.T) {
	parser := NewSectionParser()
	section := parser.FinancialSection(filingContent)
	if section == nil {
		t.Fatal("Expected an Item 8 section")
	}
	if !strings.Contains(section.Content, "<table>") {
		t.Error("Item 8 content should keep table markup intact")
	}

	records, err := NewTableParser().ParseStatement(section.Content)
	if err != nil {
		t.Fatalf("Statement table in Item 8 should parse: %v", err)
	}
	if records[0].Items["revenue"] != 1200 {
		t.Errorf("Expected revenue 1200, got %v", records[0].Items["revenue"])
	}
}

func TestFinancialSectionMissing(t *testing.T) {
	parser := NewSectionParser()
	if section := parser.FinancialSection("Item 1. Business\nWidgets."); section != nil {
		t.Errorf("Expected nil for filing without Item 8, got item %s", section.ItemNumber)
	}
}
