package sqlgen

import (
	"strings"
	"testing"
)

func TestFallback_RowCount(t *testing.T) {
	got := Fallback("legacy_db.fact_orders", "prod_db.fact_orders", "compare row counts")

	if got.LegacySQL != "SELECT COUNT(*) AS row_count FROM legacy_db.fact_orders;" {
		t.Errorf("LegacySQL = %q", got.LegacySQL)
	}
	if got.ProdSQL != "" {
		t.Errorf("ProdSQL = %q, want empty", got.ProdSQL)
	}
	if got.Explanation != "Simple fallback query to count rows in legacy_db.fact_orders" {
		t.Errorf("Explanation = %q", got.Explanation)
	}
	if got.Origin != OriginFallback {
		t.Errorf("Origin = %q, want %q", got.Origin, OriginFallback)
	}
}

func TestFallback_DataQuality(t *testing.T) {
	got := Fallback("legacy_db.fact_orders", "", "check for duplicate orders")

	if !strings.Contains(got.LegacySQL, "WITH data_quality AS") {
		t.Errorf("expected data quality CTE, got %q", got.LegacySQL)
	}
	for _, metric := range []string{"TOTAL_ROWS", "UNIQUE_ROWS", "DUPLICATE_ROWS"} {
		if !strings.Contains(got.LegacySQL, metric) {
			t.Errorf("expected metric %s in %q", metric, got.LegacySQL)
		}
	}
	if !strings.Contains(got.LegacySQL, "legacy_db.fact_orders") {
		t.Errorf("expected legacy table interpolated, got %q", got.LegacySQL)
	}
	if !strings.HasSuffix(got.LegacySQL, ";") {
		t.Errorf("expected terminated statement, got %q", got.LegacySQL)
	}
	if got.Explanation != "Fallback data quality analysis for legacy_db.fact_orders" {
		t.Errorf("Explanation = %q", got.Explanation)
	}
}

func TestFallback_Preview(t *testing.T) {
	got := Fallback("legacy_db.fact_orders", "", "show me a sample of rows")

	if got.LegacySQL != "SELECT * FROM legacy_db.fact_orders LIMIT 10;" {
		t.Errorf("LegacySQL = %q", got.LegacySQL)
	}
	if got.Explanation != "Fallback sample preview of legacy_db.fact_orders" {
		t.Errorf("Explanation = %q", got.Explanation)
	}
}

func TestFallback_KeywordRouting(t *testing.T) {
	tests := []struct {
		name    string
		request string
		marker  string
	}{
		{"duplicate keyword", "find duplicate rows", "WITH data_quality AS"},
		{"unique keyword", "verify uniqueness constraints", "WITH data_quality AS"},
		{"integrity keyword", "referential integrity check", "WITH data_quality AS"},
		{"uppercase keyword", "DUPLICATE detection", "WITH data_quality AS"},
		{"sample keyword", "sample the table", "LIMIT 10;"},
		{"preview keyword", "preview recent data", "LIMIT 10;"},
		{"no keyword", "how many rows are there", "row_count"},
		{"duplicate wins over sample", "sample duplicate rows", "WITH data_quality AS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fallback("legacy_db.t", "", tt.request)
			if !strings.Contains(got.LegacySQL, tt.marker) {
				t.Errorf("Fallback(%q) = %q, want %q variant", tt.request, got.LegacySQL, tt.marker)
			}
			if got.Origin != OriginFallback {
				t.Errorf("Origin = %q, want %q", got.Origin, OriginFallback)
			}
			if got.ProdSQL != "" {
				t.Errorf("ProdSQL = %q, want empty", got.ProdSQL)
			}
		})
	}
}

func TestFallback_Deterministic(t *testing.T) {
	first := Fallback("legacy_db.t", "prod_db.t", "check for duplicates")
	second := Fallback("legacy_db.t", "prod_db.t", "check for duplicates")
	if first != second {
		t.Errorf("Fallback not deterministic:\n first: %+v\nsecond: %+v", first, second)
	}
}

func TestFallback_StatementsPassPreflight(t *testing.T) {
	requests := []string{
		"compare row counts",
		"check for duplicate orders",
		"show me a sample",
	}

	for _, request := range requests {
		got := Fallback("legacy_db.fact_orders", "", request)
		issues := preflightBoth(got.LegacySQL, got.ProdSQL)
		if len(issues) != 0 {
			t.Errorf("Fallback(%q) produced SQL with issues %v:\n%s", request, issues, got.LegacySQL)
		}
	}
}
