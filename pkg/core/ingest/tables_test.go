package ingest

import (
	"testing"
)

const statementHTML = `
<div>
	<p>Consolidated Statements of Operations</p>
	<table>
		<tr><th>(in thousands)</th><th>2024</th><th>2023</th></tr>
		<tr><td>Revenue</td><td>$1,200,500</td><td>$1,050,000</td></tr>
		<tr><td>Cost of revenue (1)</td><td>(700,000)</td><td>(625,000)</td></tr>
		<tr><td>Operating expenses:</td><td></td><td></td></tr>
		<tr><td>Restructuring charges</td><td>80,000</td><td>—</td></tr>
		<tr><td>Net income</td><td>150,250</td><td>120,500</td></tr>
	</table>
</div>`

func TestParseStatementExtractsPeriods(t *testing.T) {
	parser := NewTableParser()
	records, err := parser.ParseStatement(statementHTML)
	if err != nil {
		t.Fatalf("ParseStatement failed: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 fiscal years, got %d", len(records))
	}
	if records[0].FiscalYear != 2023 || records[1].FiscalYear != 2024 {
		t.Errorf("Expected ascending years 2023, 2024; got %d, %d",
			records[0].FiscalYear, records[1].FiscalYear)
	}
	if records[0].PeriodType != "FY" {
		t.Errorf("Expected FY period type, got %q", records[0].PeriodType)
	}

	latest := records[1].Items
	if latest["revenue"] != 1200500 {
		t.Errorf("Expected revenue 1200500, got %v", latest["revenue"])
	}
	if latest["cost_of_revenue"] != -700000 {
		t.Errorf("Parenthesized amount should be negative, got %v", latest["cost_of_revenue"])
	}
	if latest["net_income"] != 150250 {
		t.Errorf("Expected net income 150250, got %v", latest["net_income"])
	}
}

func TestParseStatementSkipsRaggedRows(t *testing.T) {
	parser := NewTableParser()
	records, err := parser.ParseStatement(statementHTML)
	if err != nil {
		t.Fatalf("ParseStatement failed: %v", err)
	}

	// "Restructuring charges" has one numeric cell for two year columns and
	// "Operating expenses:" has none; neither should produce items.
	for _, rec := range records {
		if _, ok := rec.Items["operating_expenses"]; ok {
			t.Errorf("Sub-header row leaked into FY%d items", rec.FiscalYear)
		}
		if _, ok := rec.Items["restructuring_charges"]; ok {
			t.Errorf("Ragged row leaked into FY%d items", rec.FiscalYear)
		}
	}
}

func TestParseStatementNoTable(t *testing.T) {
	parser := NewTableParser()
	if _, err := parser.ParseStatement("<p>No tables in sight.</p>"); err == nil {
		t.Error("Expected error for content without a statement table")
	}
	if _, err := parser.ParseStatement(`<table><tr><td>a</td><td>b</td></tr></table>`); err == nil {
		t.Error("Expected error for table without fiscal-year header")
	}
}

func TestItemKey(t *testing.T) {
	testCases := []struct {
		label    string
		expected string
	}{
		{"Revenue", "revenue"},
		{"  Cost of revenue (1)", "cost_of_revenue"},
		{"Selling, general & administrative", "selling_general_administrative"},
		{"Net income (loss)", "net_income_loss"},
		{"", ""},
	}

	for _, tc := range testCases {
		if got := itemKey(tc.label); got != tc.expected {
			t.Errorf("itemKey(%q) = %q, expected %q", tc.label, got, tc.expected)
		}
	}
}

func TestParseAmount(t *testing.T) {
	testCases := []struct {
		text     string
		expected float64
		ok       bool
	}{
		{"1,200,500", 1200500, true},
		{"$42.5", 42.5, true},
		{"(700,000)", -700000, true},
		{"($1,000)", -1000, true},
		{"—", 0, false},
		{"-", 0, false},
		{"", 0, false},
		{"See note 12", 0, false},
	}

	for _, tc := range testCases {
		got, ok := parseAmount(tc.text)
		if ok != tc.ok {
			t.Errorf("parseAmount(%q) ok = %v, expected %v", tc.text, ok, tc.ok)
			continue
		}
		if ok && got != tc.expected {
			t.Errorf("parseAmount(%q) = %v, expected %v", tc.text, got, tc.expected)
		}
	}
}
