package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lakecheck/lakecheck/pkg/rules"
	"github.com/lakecheck/lakecheck/pkg/sqlgen"
)

// TestValidator_CustomValidation tests the full path: request suffixed with
// the date window, SQL generated, executed, and judged by row equality.
func TestValidator_CustomValidation(t *testing.T) {
	exec := &fakeExecutor{}
	gen := &fakeGenerator{}
	job := testJob()
	job.CustomRequests = []string{"totals match"}
	job.Filter = rules.DateFilter{Column: "ds", Start: "2026-01-01", End: "2026-03-31"}

	report, err := newTestValidator(exec, WithGenerator(gen)).Validate(context.Background(), job)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	res := findResult(t, report, "Custom LLM Validation")
	if res.Status != rules.StatusPass {
		t.Errorf("status: got %s (%q)", res.Status, res.ErrorDetails)
	}
	if res.Message != "Custom validation passed: Compares totals" {
		t.Errorf("message: got %q", res.Message)
	}
	if res.LegacyValue != "row_count=100" {
		t.Errorf("legacy value: got %q", res.LegacyValue)
	}

	req := gen.request()
	want := "totals match with date filtering on ds between 2026-01-01 and 2026-03-31"
	if req.ValidationRequest != want {
		t.Errorf("request: got %q, want %q", req.ValidationRequest, want)
	}
	if req.DateColumn != "ds" || req.StartDate != "2026-01-01" || req.EndDate != "2026-03-31" {
		t.Errorf("window not carried: %+v", req)
	}
}

// TestValidator_CustomValidationFails tests the row mismatch verdict.
func TestValidator_CustomValidationFails(t *testing.T) {
	exec := &fakeExecutor{executeFunc: func(sql string) ([]map[string]string, error) {
		if strings.Contains(sql, "legacy_db") {
			return []map[string]string{{"total": "100"}}, nil
		}
		return []map[string]string{{"total": "99"}}, nil
	}}
	gen := &fakeGenerator{}

	res := newTestValidator(exec, WithGenerator(gen)).runCustom(context.Background(), testJob(), "totals match")
	if res.Status != rules.StatusFail {
		t.Errorf("status: got %s", res.Status)
	}
	if res.Message != "Custom validation failed: Compares totals" {
		t.Errorf("message: got %q", res.Message)
	}
	if res.LegacyValue != "total=100" || res.ProdValue != "total=99" {
		t.Errorf("values: got %q / %q", res.LegacyValue, res.ProdValue)
	}
}

// TestValidator_CustomRequiresGenerator tests the error result when no
// provider is wired.
func TestValidator_CustomRequiresGenerator(t *testing.T) {
	exec := &fakeExecutor{}
	job := testJob()
	job.CustomRequests = []string{"totals match"}

	report, err := newTestValidator(exec).Validate(context.Background(), job)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	res := findResult(t, report, "Custom Validation")
	if res.Status != rules.StatusError {
		t.Errorf("status: got %s", res.Status)
	}
	if res.LegacyValue != "N/A" || res.ProdValue != "N/A" {
		t.Errorf("values: got %q / %q", res.LegacyValue, res.ProdValue)
	}
	if !strings.Contains(res.Message, "requires an LLM provider") {
		t.Errorf("message: got %q", res.Message)
	}
	if report.ErrorChecks != 1 {
		t.Errorf("error checks: got %d", report.ErrorChecks)
	}
}

// TestValidator_CustomSyntaxReentry tests that a syntax failure at
// execution time invalidates the cached entry and regenerates once.
func TestValidator_CustomSyntaxReentry(t *testing.T) {
	exec := &fakeExecutor{executeFunc: func(sql string) ([]map[string]string, error) {
		if strings.Contains(sql, "v1") {
			return nil, errors.New("SYNTAX_ERROR: line 1:8: mismatched input 'FROM'")
		}
		return []map[string]string{{"total": "9"}}, nil
	}}
	gen := &fakeGenerator{generateFunc: func(call int, req sqlgen.Request) sqlgen.Result {
		return sqlgen.Result{
			LegacySQL:   fmt.Sprintf("SELECT COUNT(*) AS total FROM %s v%d", req.LegacyTable, call),
			ProdSQL:     fmt.Sprintf("SELECT COUNT(*) AS total FROM %s v%d", req.ProdTable, call),
			Explanation: "Totals match",
			Origin:      sqlgen.OriginGenerated,
		}
	}}
	cache := &fakeCache{}

	v := newTestValidator(exec, WithGenerator(gen), WithCache(cache))
	res := v.runCustom(context.Background(), testJob(), "totals match")

	if res.Status != rules.StatusPass {
		t.Errorf("status: got %s (%q)", res.Status, res.ErrorDetails)
	}
	if gen.calls() != 2 {
		t.Errorf("generate calls: got %d, want 2", gen.calls())
	}
	if cache.count() != 1 {
		t.Errorf("invalidations: got %d, want 1", cache.count())
	}
}

// TestValidator_CustomNonSyntaxError tests that a warehouse-side failure is
// reported without regeneration.
func TestValidator_CustomNonSyntaxError(t *testing.T) {
	exec := &fakeExecutor{executeFunc: func(string) ([]map[string]string, error) {
		return nil, errors.New("access denied to workgroup")
	}}
	gen := &fakeGenerator{}
	cache := &fakeCache{}

	v := newTestValidator(exec, WithGenerator(gen), WithCache(cache))
	res := v.runCustom(context.Background(), testJob(), "totals match")

	if res.Status != rules.StatusError {
		t.Errorf("status: got %s", res.Status)
	}
	if res.Message != "Custom validation failed to execute" {
		t.Errorf("message: got %q", res.Message)
	}
	if !strings.Contains(res.ErrorDetails, "access denied") {
		t.Errorf("details: got %q", res.ErrorDetails)
	}
	if gen.calls() != 1 {
		t.Errorf("generate calls: got %d, want 1", gen.calls())
	}
	if cache.count() != 0 {
		t.Errorf("invalidations: got %d, want 0", cache.count())
	}
}

// TestValidator_CustomPreflightForcesFallback tests that a dirty result,
// such as a stale cache entry, is invalidated and replaced with the
// fallback statement before execution.
func TestValidator_CustomPreflightForcesFallback(t *testing.T) {
	exec := &fakeExecutor{executeFunc: func(string) ([]map[string]string, error) {
		return nil, nil
	}}
	gen := &fakeGenerator{generateFunc: func(int, sqlgen.Request) sqlgen.Result {
		return sqlgen.Result{
			LegacySQL:   "SELECT NULLIF(amount, 0) FROM legacy_db.orders",
			ProdSQL:     "SELECT NULLIF(amount, 0) FROM prod_db.orders",
			Explanation: "nullif variant",
			Origin:      sqlgen.OriginCache,
		}
	}}
	cache := &fakeCache{}

	v := newTestValidator(exec, WithGenerator(gen), WithCache(cache))
	res := v.runCustom(context.Background(), testJob(), "check amounts")

	if cache.count() != 1 {
		t.Errorf("invalidations: got %d, want 1", cache.count())
	}
	var ranFallback bool
	for _, sql := range exec.sqls() {
		if sql == "SELECT COUNT(*) AS row_count FROM legacy_db.orders;" {
			ranFallback = true
		}
		if strings.Contains(sql, "NULLIF") {
			t.Errorf("dirty statement reached the executor: %q", sql)
		}
	}
	if !ranFallback {
		t.Errorf("fallback statement not executed: %v", exec.sqls())
	}
	if res.Status != rules.StatusPass {
		t.Errorf("status: got %s", res.Status)
	}
	if !strings.Contains(res.Message, "Simple fallback query to count rows") {
		t.Errorf("message: got %q", res.Message)
	}
}

// TestValidator_ValidateCustomSQL tests the direct statement-pair entry
// point.
func TestValidator_ValidateCustomSQL(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		exec := &fakeExecutor{}
		res := newTestValidator(exec).ValidateCustomSQL(context.Background(),
			"SELECT 1 AS one", "SELECT 1 AS one", "")
		if res.RuleName != "Custom SQL Validation" {
			t.Errorf("name: got %q", res.RuleName)
		}
		if res.Status != rules.StatusPass || res.Message != "Custom SQL results match" {
			t.Errorf("got %s %q", res.Status, res.Message)
		}
	})

	t.Run("differ", func(t *testing.T) {
		exec := &fakeExecutor{executeFunc: func(sql string) ([]map[string]string, error) {
			if strings.Contains(sql, "legacy") {
				return []map[string]string{{"n": "1"}}, nil
			}
			return []map[string]string{{"n": "2"}}, nil
		}}
		res := newTestValidator(exec).ValidateCustomSQL(context.Background(),
			"SELECT n FROM legacy_db.orders", "SELECT n FROM prod_db.orders", "Totals")
		if res.RuleName != "Totals" {
			t.Errorf("name: got %q", res.RuleName)
		}
		if res.Status != rules.StatusFail || res.Message != "Custom SQL results differ" {
			t.Errorf("got %s %q", res.Status, res.Message)
		}
	})

	t.Run("error", func(t *testing.T) {
		exec := &fakeExecutor{executeFunc: func(string) ([]map[string]string, error) {
			return nil, errors.New("boom")
		}}
		res := newTestValidator(exec).ValidateCustomSQL(context.Background(),
			"SELECT 1", "SELECT 1", "")
		if res.Status != rules.StatusError || res.Message != "Custom SQL execution error" {
			t.Errorf("got %s %q", res.Status, res.Message)
		}
		if res.ErrorDetails != "boom" {
			t.Errorf("details: got %q", res.ErrorDetails)
		}
	})
}

// TestIsSyntaxError tests the executor-error classification, including its
// case sensitivity.
func TestIsSyntaxError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"SYNTAX_ERROR: line 1:8: mismatched input 'FROM'", true},
		{"NULLIF is not supported here", true},
		{"Expecting: <expression>", true},
		{"InvalidRequestException: malformed query", true},
		{"found ''' near clause", true},
		{"unterminated quote at end", true},
		{"error at position 1265", true},
		{"cannot resolve identifier x", true},
		{"query ended with <EOF>", true},
		{"unbalanced parentheses in filter", true},
		{"connection refused", false},
		{"access denied to workgroup", false},
		{"MISMATCHED INPUT", false},
		{"Null constraint violated", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := isSyntaxError(errors.New(tt.msg)); got != tt.want {
				t.Errorf("isSyntaxError(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
	if isSyntaxError(nil) {
		t.Error("nil error classified as syntax error")
	}
}

// TestDateContext tests the request suffix for each window shape.
func TestDateContext(t *testing.T) {
	tests := []struct {
		name   string
		filter rules.DateFilter
		want   string
	}{
		{"empty", rules.DateFilter{}, ""},
		{"column only", rules.DateFilter{Column: "ds"}, ""},
		{"both bounds", rules.DateFilter{Column: "ds", Start: "2026-01-01", End: "2026-03-31"},
			" with date filtering on ds between 2026-01-01 and 2026-03-31"},
		{"start only", rules.DateFilter{Column: "ds", Start: "2026-01-01"},
			" with date filtering on ds from 2026-01-01 onwards"},
		{"end only", rules.DateFilter{Column: "ds", End: "2026-03-31"},
			" with date filtering on ds up to 2026-03-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dateContext(tt.filter); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// TestRenderRows tests result set flattening for reports.
func TestRenderRows(t *testing.T) {
	if got := renderRows(nil); got != "no rows" {
		t.Errorf("empty: got %q", got)
	}

	one := []map[string]string{{"b": "2", "a": "1"}}
	if got := renderRows(one); got != "a=1, b=2" {
		t.Errorf("one row: got %q", got)
	}

	many := []map[string]string{{"n": "1"}, {"n": "2"}, {"n": "3"}}
	if got := renderRows(many); got != "3 rows, first: n=1" {
		t.Errorf("many rows: got %q", got)
	}
}

// TestRowsEqual tests positional result comparison.
func TestRowsEqual(t *testing.T) {
	a := []map[string]string{{"n": "1"}, {"n": "2"}}
	b := []map[string]string{{"n": "1"}, {"n": "2"}}
	if !rowsEqual(a, b) {
		t.Error("identical sets compared unequal")
	}
	if !rowsEqual(nil, nil) {
		t.Error("two empty sets compared unequal")
	}
	if rowsEqual(a, b[:1]) {
		t.Error("different lengths compared equal")
	}
	if rowsEqual(a, []map[string]string{{"n": "2"}, {"n": "1"}}) {
		t.Error("reordered rows compared equal")
	}
}
