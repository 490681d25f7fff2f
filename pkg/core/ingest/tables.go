package ingest

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"agentic_diligence/pkg/core/state"
)

var (
	yearPattern    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	nonItemChars   = regexp.MustCompile(`[^a-z0-9]+`)
	footnoteSuffix = regexp.MustCompile(`\(\d+\)\s*$`)
)

// TableParser extracts period records from statement tables in filing HTML.
type TableParser struct{}

// NewTableParser creates a statement table parser.
func NewTableParser() *TableParser {
	return &TableParser{}
}

// ParseStatement parses the first statement-shaped table in the HTML fragment
// into period records, oldest fiscal year first.
//
// A statement-shaped table has fiscal years in its header row and line items
// with one numeric value per year in its body rows.
func (p *TableParser) ParseStatement(html string) ([]state.PeriodRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	var records []state.PeriodRecord
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		years := headerYears(table)
		if len(years) == 0 {
			return true // keep looking
		}

		byYear := make(map[int]map[string]float64, len(years))
		for _, y := range years {
			byYear[y] = make(map[string]float64)
		}

		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() < 2 {
				return
			}
			label := itemKey(cells.First().Text())
			if label == "" {
				return
			}

			var values []float64
			cells.Slice(1, cells.Length()).Each(func(_ int, cell *goquery.Selection) {
				if v, ok := parseAmount(cell.Text()); ok {
					values = append(values, v)
				}
			})
			if len(values) != len(years) {
				return // layout row or sub-header, skip
			}
			for i, y := range years {
				byYear[y][label] = values[i]
			}
		})

		for _, y := range years {
			if len(byYear[y]) == 0 {
				continue
			}
			records = append(records, state.PeriodRecord{
				FiscalYear: y,
				PeriodType: "FY",
				Items:      byYear[y],
			})
		}
		return len(records) == 0
	})

	if len(records) == 0 {
		return nil, fmt.Errorf("no statement table found")
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].FiscalYear < records[j].FiscalYear
	})
	return records, nil
}

// headerYears extracts fiscal years from the table's header cells, in the
// column order they appear.
func headerYears(table *goquery.Selection) []int {
	var years []int
	table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			if m := yearPattern.FindString(cell.Text()); m != "" {
				if y, err := strconv.Atoi(m); err == nil {
					years = append(years, y)
				}
			}
		})
		return len(years) == 0
	})
	return years
}

// itemKey normalizes a line-item label into a stable snake_case key.
func itemKey(label string) string {
	label = footnoteSuffix.ReplaceAllString(strings.TrimSpace(label), "")
	label = strings.ToLower(label)
	label = nonItemChars.ReplaceAllString(label, "_")
	return strings.Trim(label, "_")
}

// parseAmount parses a numeric table cell. Handles currency symbols, comma
// separators, and accounting-style parentheses for negatives.
func parseAmount(text string) (float64, bool) {
	s := strings.TrimSpace(text)
	if s == "" || s == "-" || s == "—" || s == "–" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}
