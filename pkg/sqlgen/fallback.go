package sqlgen

import (
	"fmt"
	"strings"
)

var (
	duplicateKeywords = []string{"duplicate", "unique", "integrity"}
	previewKeywords   = []string{"sample", "preview"}
)

const dataQualityTemplate = `WITH data_quality AS (
  SELECT
    (SELECT COUNT(*) FROM %s) AS total_rows,
    (SELECT COUNT(*) FROM (SELECT DISTINCT * FROM %s)) AS unique_rows
)
SELECT 'TOTAL_ROWS' AS metric, CAST(total_rows AS VARCHAR) AS value FROM data_quality
UNION ALL
SELECT 'UNIQUE_ROWS' AS metric, CAST(unique_rows AS VARCHAR) AS value FROM data_quality
UNION ALL
SELECT 'DUPLICATE_ROWS' AS metric, CAST(total_rows - unique_rows AS VARCHAR) AS value FROM data_quality;`

// Fallback builds a minimal query pair from the table names alone,
// ignoring whatever the failed generation attempt produced. It is pure
// and never fails: the statements are fixed templates that interpolate
// nothing but table names. Requests that mention duplicates or sampling
// get a tailored statement; everything else gets a row count against the
// legacy table.
func Fallback(legacyTable, prodTable, requestText string) Result {
	lowered := strings.ToLower(requestText)

	if containsAny(lowered, duplicateKeywords) {
		return Result{
			LegacySQL:   fmt.Sprintf(dataQualityTemplate, legacyTable, legacyTable),
			Explanation: fmt.Sprintf("Fallback data quality analysis for %s", legacyTable),
			Origin:      OriginFallback,
		}
	}

	if containsAny(lowered, previewKeywords) {
		return Result{
			LegacySQL:   fmt.Sprintf("SELECT * FROM %s LIMIT 10;", legacyTable),
			Explanation: fmt.Sprintf("Fallback sample preview of %s", legacyTable),
			Origin:      OriginFallback,
		}
	}

	return Result{
		LegacySQL:   fmt.Sprintf("SELECT COUNT(*) AS row_count FROM %s;", legacyTable),
		Explanation: fmt.Sprintf("Simple fallback query to count rows in %s", legacyTable),
		Origin:      OriginFallback,
	}
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
