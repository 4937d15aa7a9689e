package vectordb

import (
	"fmt"
	"strings"
)

// FormatResults renders query results as human-readable text. A zero
// snippetLen lists IDs only, a negative one prints full record text.
func FormatResults(results []Result, snippetLen int) string {
	if len(results) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d result(s):\n\n", len(results))

	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s (similarity: %.4f)\n", i+1, r.Record.ID, r.Similarity)
		if snippetLen == 0 {
			continue
		}
		text := strings.TrimSpace(r.Record.Text)
		if snippetLen > 0 && len(text) > snippetLen {
			text = strings.ToValidUTF8(text[:snippetLen], "") + "..."
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	return sb.String()
}
