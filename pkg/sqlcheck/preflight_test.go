package sqlcheck

import (
	"strings"
	"testing"
)

func TestPreflight_CleanQueries(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "simple count",
			input: "SELECT COUNT(*) AS row_count FROM legacy.fact_orders;",
		},
		{
			name: "union all comparison",
			input: "SELECT 'legacy' AS src, COUNT(*) AS total FROM legacy.fact_orders " +
				"UNION ALL SELECT 'prod' AS src, COUNT(*) AS total FROM prod.fact_orders;",
		},
		{
			name:  "coalesce instead of nullif",
			input: "SELECT COALESCE(region, 'unknown') AS region, COUNT(*) FROM dim_region GROUP BY 1;",
		},
		{
			name:  "uppercase NULL literal",
			input: "SELECT SUM(CASE WHEN amount IS NULL THEN 1 ELSE 0 END) FROM fact_orders;",
		},
		{
			name:  "date bounded comparison",
			input: "SELECT COUNT(*) FROM fact_orders WHERE order_date BETWEEN DATE '2024-01-01' AND DATE '2024-03-31';",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if issues := Preflight(tt.input); len(issues) != 0 {
				t.Errorf("expected no issues, got %v", issues)
			}
		})
	}
}

func TestPreflight_RedFlags(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expectedIssue string
	}{
		{
			name:          "nullif present",
			input:         "SELECT NULLIF(region, '') FROM dim_region",
			expectedIssue: "contains NULLIF",
		},
		{
			name:          "lowercase nullif still flagged",
			input:         "SELECT nullif(region, '') FROM dim_region",
			expectedIssue: "contains NULLIF",
		},
		{
			name:          "odd quote count",
			input:         "SELECT 'legacy AS src FROM fact_orders",
			expectedIssue: "odd number of single quotes",
		},
		{
			name:          "consecutive quotes",
			input:         "SELECT ''legacy'' AS src FROM fact_orders",
			expectedIssue: "consecutive single quotes",
		},
		{
			name:          "lowercase null literal",
			input:         "SELECT CASE WHEN amount IS null THEN 1 ELSE 0 END FROM fact_orders",
			expectedIssue: "lowercase null literal",
		},
		{
			name:          "unbalanced parentheses",
			input:         "SELECT COUNT(* FROM fact_orders",
			expectedIssue: "unbalanced parentheses",
		},
		{
			name:          "trailing comma before FROM",
			input:         "SELECT order_id, amount, FROM fact_orders",
			expectedIssue: "trailing comma before clause keyword",
		},
		{
			name:          "trailing comma before GROUP",
			input:         "SELECT region, COUNT(*), GROUP BY region",
			expectedIssue: "trailing comma before clause keyword",
		},
		{
			name:          "truncated after WHERE",
			input:         "SELECT COUNT(*) FROM fact_orders WHERE",
			expectedIssue: "ends with incomplete clause",
		},
		{
			name:          "truncated after AND",
			input:         "SELECT COUNT(*) FROM fact_orders WHERE amount > 0 AND",
			expectedIssue: "ends with incomplete clause",
		},
		{
			name:          "truncated after comparison operator",
			input:         "SELECT COUNT(*) FROM fact_orders WHERE amount =",
			expectedIssue: "ends with incomplete clause",
		},
		{
			name:          "truncated after operator before semicolon",
			input:         "SELECT COUNT(*) FROM fact_orders WHERE order_date >;",
			expectedIssue: "ends with incomplete clause",
		},
		{
			name:          "empty statement",
			input:         "   ",
			expectedIssue: "empty statement",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Preflight(tt.input)
			if len(issues) == 0 {
				t.Fatalf("expected issues for %q, got none", tt.input)
			}
			found := false
			for _, issue := range issues {
				if issue == tt.expectedIssue {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected issue %q in %v", tt.expectedIssue, issues)
			}
		})
	}
}

func TestPreflight_ReportsAllIssues(t *testing.T) {
	// One statement tripping several flags at once
	input := "SELECT NULLIF(region, '' FROM dim_region WHERE"
	issues := Preflight(input)

	joined := strings.Join(issues, "; ")
	for _, want := range []string{"contains NULLIF", "unbalanced parentheses", "ends with incomplete clause"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in issues, got %v", want, issues)
		}
	}
}
