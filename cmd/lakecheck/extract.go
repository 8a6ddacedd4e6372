package main

import (
	"regexp"
	"sort"
	"strings"
)

// promptHints is what table/date extraction pulled out of a free-form
// validation request.
type promptHints struct {
	Tables     []string
	StartDate  string
	EndDate    string
	DateColumn string
}

var tablePatterns = []*regexp.Regexp{
	// Qualified database.table names
	regexp.MustCompile(`(?i)\b(\w+\.\w+(?:_\w+)*)\b`),
	// Common warehouse naming conventions
	regexp.MustCompile(`(?i)\b(fact_\w+)\b`),
	regexp.MustCompile(`(?i)\b(dim_\w+)\b`),
	regexp.MustCompile(`(?i)\b(\w+_fact)\b`),
	regexp.MustCompile(`(?i)\b(\w+_dim)\b`),
	regexp.MustCompile(`(?i)\b(\w+_xref)\b`),
	regexp.MustCompile(`(?i)\b(\w+_lookalike)\b`),
	regexp.MustCompile(`(?i)\b(\w+_mart)\b`),
}

// excludedTableWords are prose words the table patterns keep matching.
var excludedTableWords = map[string]bool{
	"between": true, "from": true, "where": true, "select": true,
	"table": true, "tables": true, "data": true, "record": true, "records": true,
}

type datePattern struct {
	re       *regexp.Regexp
	isRange  bool
	startsAt bool // single-date patterns: true when the date opens the window
}

var dateRangePatterns = []datePattern{
	{re: regexp.MustCompile(`(?i)between\s+(\d{4}-\d{2}-\d{2})\s+(?:to|and)\s+(\d{4}-\d{2}-\d{2})`), isRange: true},
	{re: regexp.MustCompile(`(?i)from\s+(\d{4}-\d{2}-\d{2})\s+to\s+(\d{4}-\d{2}-\d{2})`), isRange: true},
	{re: regexp.MustCompile(`(?i)(\d{4}-\d{2}-\d{2})\s+to\s+(\d{4}-\d{2}-\d{2})`), isRange: true},
	{re: regexp.MustCompile(`(?i)(?:after|since|from)\s+(\d{4}-\d{2}-\d{2})`), startsAt: true},
	{re: regexp.MustCompile(`(?i)(?:before|until|to)\s+(\d{4}-\d{2}-\d{2})`)},
}

var dateColumnPattern = regexp.MustCompile(`(?i)\b(\w*date\w*)\b`)

// extractHints pulls table names, a date window, and a date column out of a
// natural-language request so the caller can omit the explicit flags.
func extractHints(prompt string) promptHints {
	var hints promptHints

	found := make(map[string]bool)
	for _, re := range tablePatterns {
		for _, m := range re.FindAllStringSubmatch(prompt, -1) {
			found[m[1]] = true
		}
	}
	for name := range found {
		if len(name) > 3 && !excludedTableWords[strings.ToLower(name)] {
			hints.Tables = append(hints.Tables, name)
		}
	}
	// Qualified names sort ahead of bare ones, and order is stable for tests.
	sort.Slice(hints.Tables, func(i, j int) bool {
		qi := strings.Contains(hints.Tables[i], ".")
		qj := strings.Contains(hints.Tables[j], ".")
		if qi != qj {
			return qi
		}
		return strings.Index(prompt, hints.Tables[i]) < strings.Index(prompt, hints.Tables[j])
	})

	for _, p := range dateRangePatterns {
		m := p.re.FindStringSubmatch(prompt)
		if m == nil {
			continue
		}
		if p.isRange {
			hints.StartDate, hints.EndDate = m[1], m[2]
		} else if p.startsAt {
			hints.StartDate = m[1]
		} else {
			hints.EndDate = m[1]
		}
		break
	}

	for _, m := range dateColumnPattern.FindAllStringSubmatch(prompt, -1) {
		if len(m[1]) > 4 && strings.Contains(strings.ToLower(m[1]), "date") {
			hints.DateColumn = m[1]
			break
		}
	}
	return hints
}
