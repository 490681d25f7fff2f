// Package report renders the final due-diligence memorandum. It reads only
// through the consume adapter, so a partially failed job still yields a
// memo with explicit gaps instead of a rendering error.
package report

import (
	"fmt"
	"strings"
	"time"

	"agentic_diligence/pkg/core/agents"
	"agentic_diligence/pkg/core/consume"
	"agentic_diligence/pkg/core/state"
	"agentic_diligence/pkg/core/utils"
)

const missingSection = "_Not available: analysis did not complete for this section._"

// Generator renders markdown memos from completed job states.
type Generator struct {
	Now func() time.Time
}

// NewGenerator creates a memo generator.
func NewGenerator() *Generator {
	return &Generator{Now: time.Now}
}

// Generate renders the memo. It never fails on missing agent outputs; it
// only fails if the assembled document is not valid markdown.
func (g *Generator) Generate(adapter *consume.Adapter) (string, error) {
	target := adapter.Target()
	name := target.CompanyName
	if name == "" {
		name = target.Ticker
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Due-Diligence Memorandum: %s\n\n", name)
	if target.Ticker != "" {
		fmt.Fprintf(&sb, "**Ticker:** %s  \n", target.Ticker)
	}
	fmt.Fprintf(&sb, "**Generated:** %s  \n", g.Now().Format("2006-01-02"))
	fmt.Fprintf(&sb, "**Completeness:** %.0f%%\n\n", adapter.CompletenessScore()*100)

	g.writeSynthesis(&sb, adapter)
	g.writeValuation(&sb, adapter)
	g.writeRisk(&sb, adapter)
	g.writeFindings(&sb, adapter)
	g.writeQuality(&sb, adapter)

	memo := utils.CleanMarkdown(sb.String())
	if !utils.ValidateMarkdown(memo) {
		return "", fmt.Errorf("generated memo is not valid markdown")
	}
	return memo, nil
}

func (g *Generator) writeSynthesis(sb *strings.Builder, adapter *consume.Adapter) {
	out := adapter.GetAgentOutput(agents.Synthesis)
	sb.WriteString("## Executive Summary\n\n")
	if summary, ok := out["executive_summary"].(string); ok && summary != "" {
		sb.WriteString(summary + "\n\n")
	} else {
		sb.WriteString(missingSection + "\n\n")
	}
	if rec, ok := out["recommendation"].(string); ok && rec != "" {
		fmt.Fprintf(sb, "**Recommendation:** %s\n\n", strings.ReplaceAll(rec, "_", " "))
	}
}

func (g *Generator) writeValuation(sb *strings.Builder, adapter *consume.Adapter) {
	out := adapter.GetAgentOutput(agents.Valuation)
	sb.WriteString("## Valuation\n\n")
	if len(out) == 0 {
		sb.WriteString(missingSection + "\n\n")
		return
	}
	if low, ok := asFloat(out["enterprise_value_low"]); ok {
		high, _ := asFloat(out["enterprise_value_high"])
		fmt.Fprintf(sb, "Estimated enterprise value range: %.1f to %.1f.\n\n", low, high)
	}
	if method, ok := out["methodology"].(string); ok && method != "" {
		fmt.Fprintf(sb, "**Methodology:** %s\n\n", method)
	}
}

func (g *Generator) writeRisk(sb *strings.Builder, adapter *consume.Adapter) {
	out := adapter.GetAgentOutput(agents.Risk)
	sb.WriteString("## Risk Assessment\n\n")
	if len(out) == 0 {
		sb.WriteString(missingSection + "\n\n")
		return
	}
	if rating, ok := out["risk_rating"].(string); ok && rating != "" {
		fmt.Fprintf(sb, "**Overall risk rating:** %s\n\n", rating)
	}
	if risks, ok := out["key_risks"].([]any); ok && len(risks) > 0 {
		for _, r := range risks {
			fmt.Fprintf(sb, "- %v\n", r)
		}
		sb.WriteString("\n")
	}
}

// writeFindings covers the secondary workstreams in one section each.
func (g *Generator) writeFindings(sb *strings.Builder, adapter *consume.Adapter) {
	sections := []struct {
		agent string
		title string
	}{
		{agents.Tax, "Tax"},
		{agents.Competitive, "Competitive Position"},
		{agents.Legal, "Legal"},
	}
	for _, sec := range sections {
		out := adapter.GetAgentOutput(sec.agent)
		fmt.Fprintf(sb, "## %s\n\n", sec.title)
		if len(out) == 0 {
			sb.WriteString(missingSection + "\n\n")
			continue
		}
		for _, kv := range sortedEntries(out) {
			fmt.Fprintf(sb, "- **%s:** %v\n", strings.ReplaceAll(kv.key, "_", " "), kv.value)
		}
		sb.WriteString("\n")
	}
}

func (g *Generator) writeQuality(sb *strings.Builder, adapter *consume.Adapter) {
	sb.WriteString("## Data Quality\n\n")

	q, _ := adapter.GetField(state.FieldQualityMetadata, state.QualityMetadata{}).(state.QualityMetadata)
	if q.FilingFreshnessGrade != "" {
		fmt.Fprintf(sb, "**Filing freshness:** %s (score %.2f)  \n", q.FilingFreshnessGrade, q.FilingFreshnessScore)
	}
	if q.StatementGrade != "" {
		fmt.Fprintf(sb, "**Statement age:** %s (%.0f days)  \n", q.StatementGrade, q.StatementAgeDays)
	}
	sb.WriteString("\n")

	anomalies := adapter.Anomalies()
	if len(anomalies) == 0 {
		sb.WriteString("No anomalies recorded.\n")
		return
	}
	sb.WriteString("| Severity | Agent | Description |\n|---|---|---|\n")
	for _, a := range anomalies {
		fmt.Fprintf(sb, "| %s | %s | %s |\n", a.Severity, a.Agent, strings.ReplaceAll(a.Description, "|", "/"))
	}
}

type entry struct {
	key   string
	value any
}

func sortedEntries(m map[string]any) []entry {
	entries := make([]entry, 0, len(m))
	for k, v := range m {
		entries = append(entries, entry{key: k, value: v})
	}
	for i := 0; i < len(entries)-1; i++ {
		for j := i + 1; j < len(entries); j++ {
			if entries[j].key < entries[i].key {
				entries[i], entries[j] = entries[j], entries[i]
			}
		}
	}
	return entries
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
