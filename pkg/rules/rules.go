// Package rules renders and judges the predefined table comparison checks.
package rules

import (
	"fmt"
	"strconv"
	"strings"
)

type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusError Status = "ERROR"
	StatusInfo  Status = "INFO"
)

// Result is the outcome of one check.
type Result struct {
	RuleName       string  `json:"rule_name"`
	Status         Status  `json:"status"`
	LegacyValue    string  `json:"legacy_value,omitempty"`
	ProdValue      string  `json:"prod_value,omitempty"`
	Difference     int64   `json:"difference,omitempty"`
	PercentageDiff float64 `json:"percentage_diff,omitempty"`
	Message        string  `json:"message"`
	ErrorDetails   string  `json:"error_details,omitempty"`
}

// QueryPair is the SQL a rule runs on each side. An empty ProdSQL means the
// rule collapsed to a single informational statement.
type QueryPair struct {
	LegacySQL string
	ProdSQL   string
}

// Rule renders per-table SQL and judges the rows that come back.
type Rule interface {
	Name() string
	Description() string
	SQL(legacyTable, prodTable string) QueryPair
	Evaluate(legacyRows, prodRows []map[string]string) Result
}

// DateFilter bounds a comparison to a date window. TRY_CAST keeps the
// filter usable on VARCHAR date columns.
type DateFilter struct {
	Column string
	Start  string
	End    string
}

func (f DateFilter) Empty() bool {
	return f.Column == "" || (f.Start == "" && f.End == "")
}

// Clause renders the filter conditions without a WHERE keyword.
func (f DateFilter) Clause() string { return f.clause(f.Column) }

// AliasedClause renders the conditions with the column qualified by alias.
func (f DateFilter) AliasedClause(alias string) string {
	return f.clause(alias + "." + f.Column)
}

func (f DateFilter) clause(column string) string {
	if f.Empty() {
		return ""
	}
	expr := fmt.Sprintf("TRY_CAST(%s AS DATE)", column)
	var parts []string
	if f.Start != "" {
		parts = append(parts, fmt.Sprintf("%s >= DATE '%s'", expr, f.Start))
	}
	if f.End != "" {
		parts = append(parts, fmt.Sprintf("%s <= DATE '%s'", expr, f.End))
	}
	return strings.Join(parts, " AND ")
}

// Describe renders the log-friendly window suffix, empty when unfiltered.
func (f DateFilter) Describe() string {
	if f.Empty() {
		return ""
	}
	switch {
	case f.Start != "" && f.End != "":
		return fmt.Sprintf(" (filtered by %s from %s to %s)", f.Column, f.Start, f.End)
	case f.Start != "":
		return fmt.Sprintf(" (filtered by %s from %s)", f.Column, f.Start)
	default:
		return fmt.Sprintf(" (filtered by %s until %s)", f.Column, f.End)
	}
}

// firstCount reads an integer column from the first row. Absent rows or
// columns count as zero, matching an empty result set.
func firstCount(rows []map[string]string, key string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	raw, ok := rows[0][key]
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", key, raw, err)
	}
	return n, nil
}

func errorResult(name, message string, err error) Result {
	return Result{
		RuleName:     name,
		Status:       StatusError,
		Message:      message,
		ErrorDetails: err.Error(),
	}
}
