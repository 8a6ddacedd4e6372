package sqlcheck

import (
	"regexp"
	"strings"
)

var (
	consecutiveQuotesPattern = regexp.MustCompile(`'{2,}`)
	lowercaseNullPattern     = regexp.MustCompile(`\bnull\b`)
	commaBeforeClausePattern = regexp.MustCompile(`(?i),\s*(FROM|WHERE|GROUP|ORDER|HAVING|UNION|LIMIT)\b`)
)

// incompleteEnders are tokens that never legally end a statement. A statement
// ending on one of these was truncated mid-generation.
var incompleteEnders = map[string]bool{
	"WHERE": true, "AND": true, "OR": true, "SELECT": true, "FROM": true,
	"JOIN": true, "ON": true, "GROUP": true, "ORDER": true, "HAVING": true,
	"=": true, ">": true, "<": true, "LIKE": true, "IN": true,
}

// Preflight scans a statement for the syntax signatures that historically
// break Athena parsing. A non-empty result means the statement must not be
// executed as-is.
func Preflight(sqlQuery string) []string {
	trimmed := strings.TrimSpace(sqlQuery)
	if trimmed == "" {
		return []string{"empty statement"}
	}

	var issues []string

	if strings.Contains(strings.ToUpper(trimmed), "NULLIF") {
		issues = append(issues, "contains NULLIF")
	}
	if OddQuotes(trimmed) {
		issues = append(issues, "odd number of single quotes")
	}
	if consecutiveQuotesPattern.MatchString(trimmed) {
		issues = append(issues, "consecutive single quotes")
	}
	if lowercaseNullPattern.MatchString(trimmed) {
		issues = append(issues, "lowercase null literal")
	}
	if OpenParens(trimmed) != 0 {
		issues = append(issues, "unbalanced parentheses")
	}
	if commaBeforeClausePattern.MatchString(trimmed) {
		issues = append(issues, "trailing comma before clause keyword")
	}
	if endsIncomplete(trimmed) {
		issues = append(issues, "ends with incomplete clause")
	}

	return issues
}

func endsIncomplete(sqlQuery string) bool {
	sqlQuery = strings.TrimRight(strings.TrimSpace(sqlQuery), ";")
	fields := strings.Fields(sqlQuery)
	if len(fields) == 0 {
		return true
	}
	last := strings.ToUpper(fields[len(fields)-1])
	return incompleteEnders[last]
}
