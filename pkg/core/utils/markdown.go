package utils

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/text"
)

var excessBlankLines = regexp.MustCompile(`\n{3,}`)

// CleanMarkdown normalizes memo markdown before it is written out: strips an
// outer code fence if a model wrapped the document in one, trims trailing
// whitespace that is not a markdown hard break, and collapses runs of blank
// lines left behind by skipped sections.
func CleanMarkdown(input string) string {
	cleaned := strings.TrimSpace(input)

	if strings.HasPrefix(cleaned, "```") && strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimPrefix(cleaned, "```markdown")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	lines := strings.Split(cleaned, "\n")
	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		// Two trailing spaces are a markdown line break; keep exactly two.
		if strings.HasSuffix(line, "  ") && trimmed != "" {
			trimmed += "  "
		}
		lines[i] = trimmed
	}
	cleaned = strings.Join(lines, "\n")

	return excessBlankLines.ReplaceAllString(cleaned, "\n\n")
}

// ValidateMarkdown reports whether the memo parses as markdown. Goldmark is
// permissive, so this catches only gross corruption, and an empty document
// is treated as invalid.
func ValidateMarkdown(input string) bool {
	if strings.TrimSpace(input) == "" {
		return false
	}
	parser := goldmark.DefaultParser()
	doc := parser.Parse(text.NewReader([]byte(input)))
	return doc != nil && doc.HasChildren()
}
