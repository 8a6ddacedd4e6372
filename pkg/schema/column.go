// Package schema supplies table schema context for SQL generation, sourced
// from the Glue catalog and from DDL files in a GitHub repository.
package schema

import (
	"fmt"
	"strings"
)

// Column is one column of a table schema, in catalog order.
type Column struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Comment string `json:"comment,omitempty"`
}

// FormatForPrompt renders a table's columns as indented context lines for a
// generation prompt.
func FormatForPrompt(table string, columns []Column) string {
	if len(columns) == 0 {
		return fmt.Sprintf("%s: No column information available", table)
	}

	var b strings.Builder
	b.WriteString(table + ":")
	for _, col := range columns {
		b.WriteString(fmt.Sprintf("\n  - %s (%s)", col.Name, col.Type))
		if col.Comment != "" {
			b.WriteString(" -- " + col.Comment)
		}
	}
	return b.String()
}
