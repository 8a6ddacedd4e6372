package rules

import (
	"fmt"
	"sort"
	"strings"
)

// defaultMaxCompareColumns bounds the width of the per-column statement so a
// wide table cannot render an unrunnable query.
const defaultMaxCompareColumns = 20

// ColumnComparison counts non-null values per column on both sides. The
// column list normally comes from the intersection of the two tables' lake
// DDL schemas, with primary key columns folded in.
type ColumnComparison struct {
	Columns    []string
	MaxColumns int
	Filter     DateFilter
}

func (ColumnComparison) Name() string { return "Column Comparison (Lake Schema)" }

func (ColumnComparison) Description() string {
	return "Counts per-column non-null values using the lake schema column list"
}

func (r ColumnComparison) SQL(legacyTable, prodTable string) QueryPair {
	maxColumns := r.MaxColumns
	if maxColumns <= 0 {
		maxColumns = defaultMaxCompareColumns
	}

	if len(r.Columns) == 0 {
		return QueryPair{LegacySQL: "SELECT 'No common columns to compare. Please specify columns.' AS info"}
	}
	if len(r.Columns) > maxColumns {
		return QueryPair{LegacySQL: fmt.Sprintf(
			"SELECT 'Too many columns to compare (%d). Please specify columns.' AS info", len(r.Columns))}
	}

	build := func(table, alias string) string {
		counts := make([]string, len(r.Columns))
		for i, col := range r.Columns {
			counts[i] = fmt.Sprintf("SUM(CASE WHEN %s.%s IS NOT NULL THEN 1 ELSE 0 END) AS %s_non_nulls",
				alias, col, col)
		}
		where := ""
		if c := r.Filter.AliasedClause(alias); c != "" {
			where = " WHERE 1=1 AND " + c
		}
		return fmt.Sprintf("SELECT\n  %s\nFROM %s %s%s;", strings.Join(counts, ",\n  "), table, alias, where)
	}
	return QueryPair{LegacySQL: build(legacyTable, "l"), ProdSQL: build(prodTable, "p")}
}

func (r ColumnComparison) Evaluate(legacyRows, prodRows []map[string]string) Result {
	if len(legacyRows) > 0 {
		if info, ok := legacyRows[0]["info"]; ok {
			return Result{RuleName: r.Name(), Status: StatusInfo, LegacyValue: info, Message: info}
		}
	}

	legacyRow := map[string]string{}
	if len(legacyRows) > 0 {
		legacyRow = legacyRows[0]
	}
	prodRow := map[string]string{}
	if len(prodRows) > 0 {
		prodRow = prodRows[0]
	}

	keys := make([]string, 0, len(legacyRow))
	for k := range legacyRow {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sample := keys
	if len(sample) > 5 {
		sample = sample[:5]
	}

	return Result{
		RuleName:    r.Name(),
		Status:      StatusInfo,
		LegacyValue: renderCounts(legacyRow),
		ProdValue:   renderCounts(prodRow),
		Message: fmt.Sprintf("Per-table non-null counts returned for %d columns (showing sample: %s)",
			len(legacyRow), strings.Join(sample, ", ")),
	}
}

func renderCounts(row map[string]string) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + row[k]
	}
	return strings.Join(parts, ", ")
}
