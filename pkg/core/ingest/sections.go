package ingest

import (
	"regexp"
	"strings"
)

// Section represents a parsed section from a 10-K filing.
type Section struct {
	ItemNumber string `json:"item_number"` // "1A", "7", "8", ...
	Title      string `json:"title"`
	Content    string `json:"content"`
	Offset     int    `json:"offset"`
}

// sectionDefinitions lists the 10-K items the pipeline consumes. Item 8
// feeds the table parser; the rest feed narrative agents.
var sectionDefinitions = []struct {
	ItemNumber string
	Title      string
}{
	{"1", "Business"},
	{"1A", "Risk Factors"},
	{"3", "Legal Proceedings"},
	{"7", "MD&A"},
	{"8", "Financial Statements"},
	{"9A", "Controls and Procedures"},
}

// SectionParser splits 10-K filings by Item number.
type SectionParser struct {
	patterns []*regexp.Regexp
}

// NewSectionParser builds patterns matching item headings like
// "ITEM 1A. Risk Factors" or "Item 8 - Financial Statements".
func NewSectionParser() *SectionParser {
	patterns := make([]*regexp.Regexp, 0, len(sectionDefinitions))
	for _, def := range sectionDefinitions {
		patternStr := `(?i)(?:^|\n)\s*item\s*` + regexp.QuoteMeta(def.ItemNumber) + `\s*[.\-:]\s*` + regexp.QuoteMeta(def.Title)
		patterns = append(patterns, regexp.MustCompile(patternStr))
	}
	return &SectionParser{patterns: patterns}
}

// ParseSections extracts the known sections from filing content. Each
// section runs from its heading to the next known heading.
func (p *SectionParser) ParseSections(content string) []Section {
	type boundary struct {
		itemNum string
		title   string
		offset  int
	}

	var boundaries []boundary
	for i, pattern := range p.patterns {
		for _, match := range pattern.FindAllStringIndex(content, -1) {
			boundaries = append(boundaries, boundary{
				itemNum: sectionDefinitions[i].ItemNumber,
				title:   sectionDefinitions[i].Title,
				offset:  match[0],
			})
		}
	}

	for i := 0; i < len(boundaries)-1; i++ {
		for j := i + 1; j < len(boundaries); j++ {
			if boundaries[j].offset < boundaries[i].offset {
				boundaries[i], boundaries[j] = boundaries[j], boundaries[i]
			}
		}
	}

	sections := make([]Section, 0, len(boundaries))
	for i, b := range boundaries {
		end := len(content)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].offset
		}
		sections = append(sections, Section{
			ItemNumber: b.itemNum,
			Title:      b.title,
			Content:    content[b.offset:end],
			Offset:     b.offset,
		})
	}
	return sections
}

// FinancialSection returns the Item 8 content, HTML intact so the table
// parser can work on it. Nil when the filing has no recognizable Item 8.
func (p *SectionParser) FinancialSection(content string) *Section {
	return p.sectionByItem(content, "8")
}

func (p *SectionParser) sectionByItem(content string, itemNumber string) *Section {
	for _, s := range p.ParseSections(content) {
		if strings.EqualFold(s.ItemNumber, itemNumber) {
			return &s
		}
	}
	return nil
}
