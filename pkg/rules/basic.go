package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// RowCount compares total row counts. The comparison is informational: the
// report shows the difference, it does not fail the run.
type RowCount struct {
	Filter DateFilter
}

func (RowCount) Name() string { return "Row Count Validation" }

func (RowCount) Description() string {
	return "Compares total row count between legacy and production tables"
}

func (r RowCount) SQL(legacyTable, prodTable string) QueryPair {
	where := ""
	if c := r.Filter.Clause(); c != "" {
		where = " WHERE " + c
	}
	return QueryPair{
		LegacySQL: fmt.Sprintf("SELECT COUNT(*) as row_count FROM %s%s", legacyTable, where),
		ProdSQL:   fmt.Sprintf("SELECT COUNT(*) as row_count FROM %s%s", prodTable, where),
	}
}

func (r RowCount) Evaluate(legacyRows, prodRows []map[string]string) Result {
	legacyCount, err := firstCount(legacyRows, "row_count")
	if err != nil {
		return errorResult(r.Name(), "Error during validation", err)
	}
	prodCount, err := firstCount(prodRows, "row_count")
	if err != nil {
		return errorResult(r.Name(), "Error during validation", err)
	}

	difference := legacyCount - prodCount
	if difference < 0 {
		difference = -difference
	}
	pct := float64(difference) / float64(max(legacyCount, 1)) * 100

	message := fmt.Sprintf("Row counts are identical: %d", legacyCount)
	if difference != 0 {
		message = fmt.Sprintf("Row count difference: %d rows (%.2f%%)", difference, pct)
	}

	return Result{
		RuleName:       r.Name(),
		Status:         StatusInfo,
		LegacyValue:    strconv.FormatInt(legacyCount, 10),
		ProdValue:      strconv.FormatInt(prodCount, 10),
		Difference:     difference,
		PercentageDiff: pct,
		Message:        message,
	}
}

// PrimaryKeyCount compares row totals against distinct key counts, flagging
// duplicate keys on either side. The metric/value UNION ALL shape keeps the
// statement valid for any key arity; composite keys concatenate through a
// pipe separator.
type PrimaryKeyCount struct {
	Columns []string
	Filter  DateFilter
}

func (PrimaryKeyCount) Name() string { return "Primary Key Count Validation" }

func (PrimaryKeyCount) Description() string {
	return "Compares primary key count and uniqueness between tables"
}

func (r PrimaryKeyCount) SQL(legacyTable, prodTable string) QueryPair {
	conditions := make([]string, 0, len(r.Columns)+1)
	for _, col := range r.Columns {
		conditions = append(conditions, col+" IS NOT NULL")
	}
	if c := r.Filter.Clause(); c != "" {
		conditions = append(conditions, c)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	keyExpr := r.Columns[0]
	if len(r.Columns) > 1 {
		casts := make([]string, len(r.Columns))
		for i, col := range r.Columns {
			casts[i] = fmt.Sprintf("CAST(%s AS VARCHAR)", col)
		}
		keyExpr = "CONCAT(" + strings.Join(casts, ", '|', ") + ")"
	}

	build := func(table string) string {
		return fmt.Sprintf(`SELECT 'total_rows' as metric, COUNT(*) as value
FROM %[1]s%[2]s
UNION ALL
SELECT 'distinct_pk_count' as metric, COUNT(DISTINCT %[3]s) as value
FROM %[1]s%[2]s`, table, where, keyExpr)
	}
	return QueryPair{LegacySQL: build(legacyTable), ProdSQL: build(prodTable)}
}

func (r PrimaryKeyCount) Evaluate(legacyRows, prodRows []map[string]string) Result {
	legacyMetrics, err := metricValues(legacyRows)
	if err != nil {
		return errorResult(r.Name(), "Error during validation", err)
	}
	prodMetrics, err := metricValues(prodRows)
	if err != nil {
		return errorResult(r.Name(), "Error during validation", err)
	}

	legacyTotal := legacyMetrics["total_rows"]
	legacyUnique := legacyMetrics["distinct_pk_count"]
	prodTotal := prodMetrics["total_rows"]
	prodUnique := prodMetrics["distinct_pk_count"]

	legacyUniquePct := float64(legacyUnique) / float64(max(legacyTotal, 1)) * 100
	prodUniquePct := float64(prodUnique) / float64(max(prodTotal, 1)) * 100

	var issues []string
	if legacyUniquePct < 100 {
		issues = append(issues, fmt.Sprintf("Legacy table has duplicate PKs (%.1f%% unique)", legacyUniquePct))
	}
	if prodUniquePct < 100 {
		issues = append(issues, fmt.Sprintf("Prod table has duplicate PKs (%.1f%% unique)", prodUniquePct))
	}
	if legacyUnique != prodUnique {
		issues = append(issues, fmt.Sprintf("Unique PK count mismatch: %d vs %d", legacyUnique, prodUnique))
	}

	message := fmt.Sprintf("Primary key counts: Legacy=%d, Prod=%d (both 100%% unique)", legacyUnique, prodUnique)
	if len(issues) > 0 {
		message = strings.Join(issues, "; ")
	}

	difference := legacyUnique - prodUnique
	if difference < 0 {
		difference = -difference
	}

	return Result{
		RuleName:    r.Name(),
		Status:      StatusInfo,
		LegacyValue: fmt.Sprintf("total=%d unique=%d", legacyTotal, legacyUnique),
		ProdValue:   fmt.Sprintf("total=%d unique=%d", prodTotal, prodUnique),
		Difference:  difference,
		Message:     message,
	}
}

func metricValues(rows []map[string]string) (map[string]int64, error) {
	metrics := make(map[string]int64, len(rows))
	for _, row := range rows {
		name := row["metric"]
		if name == "" {
			continue
		}
		n, err := strconv.ParseInt(row["value"], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse metric %s %q: %w", name, row["value"], err)
		}
		metrics[name] = n
	}
	return metrics, nil
}

// nullRateTolerance is the default allowed per-column null percentage
// difference before the check fails.
const nullRateTolerance = 5.0

// NullValue compares per-column null rates between the two tables.
// Tolerance is the allowed percentage-point drift per column; zero means
// the 5% default.
type NullValue struct {
	Columns   []string
	Filter    DateFilter
	Tolerance float64
}

func (NullValue) Name() string { return "Null Value Validation" }

func (NullValue) Description() string {
	return "Compares null value counts for specified columns"
}

func (r NullValue) SQL(legacyTable, prodTable string) QueryPair {
	checks := make([]string, len(r.Columns))
	for i, col := range r.Columns {
		checks[i] = fmt.Sprintf("SUM(CASE WHEN %s IS NULL THEN 1 ELSE 0 END) as %s_nulls", col, col)
	}
	where := ""
	if c := r.Filter.Clause(); c != "" {
		where = " WHERE " + c
	}

	build := func(table string) string {
		return fmt.Sprintf("SELECT COUNT(*) as total_rows, %s FROM %s%s",
			strings.Join(checks, ", "), table, where)
	}
	return QueryPair{LegacySQL: build(legacyTable), ProdSQL: build(prodTable)}
}

func (r NullValue) Evaluate(legacyRows, prodRows []map[string]string) Result {
	legacyTotal, err := firstCount(legacyRows, "total_rows")
	if err != nil {
		return errorResult(r.Name(), "Error during validation", err)
	}
	prodTotal, err := firstCount(prodRows, "total_rows")
	if err != nil {
		return errorResult(r.Name(), "Error during validation", err)
	}

	tolerance := r.Tolerance
	if tolerance <= 0 {
		tolerance = nullRateTolerance
	}

	var issues []string
	legacyParts := []string{fmt.Sprintf("total=%d", legacyTotal)}
	prodParts := []string{fmt.Sprintf("total=%d", prodTotal)}

	for _, col := range r.Columns {
		key := col + "_nulls"
		legacyNulls, err := firstCount(legacyRows, key)
		if err != nil {
			return errorResult(r.Name(), "Error during validation", err)
		}
		prodNulls, err := firstCount(prodRows, key)
		if err != nil {
			return errorResult(r.Name(), "Error during validation", err)
		}

		legacyPct := float64(legacyNulls) / float64(max(legacyTotal, 1)) * 100
		prodPct := float64(prodNulls) / float64(max(prodTotal, 1)) * 100

		legacyParts = append(legacyParts, fmt.Sprintf("%s=%d", key, legacyNulls))
		prodParts = append(prodParts, fmt.Sprintf("%s=%d", key, prodNulls))

		delta := legacyPct - prodPct
		if delta < 0 {
			delta = -delta
		}
		if delta > tolerance {
			issues = append(issues, fmt.Sprintf("%s: %.1f%% vs %.1f%% null", col, legacyPct, prodPct))
		}
	}

	status := StatusPass
	message := "Null value validation passed"
	if len(issues) > 0 {
		status = StatusFail
		message = strings.Join(issues, "; ")
	}

	return Result{
		RuleName:    r.Name(),
		Status:      status,
		LegacyValue: strings.Join(legacyParts, ", "),
		ProdValue:   strings.Join(prodParts, ", "),
		Message:     message,
	}
}
