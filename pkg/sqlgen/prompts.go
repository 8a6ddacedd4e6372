package sqlgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lakecheck/lakecheck/pkg/schema"
)

// comparisonKeywords marks requests that should produce one unified query
// reading both tables instead of a per-table pair.
var comparisonKeywords = []string{
	"compare", "comparison", "vs", "versus", "against",
	"validate", "check", "verify", "match", "difference", "diff",
	"between", "across", "both tables", "consistency", "discrepancy",
	"primary key", "uniqueness", "duplicate", "integrity",
	"same", "different", "equal", "unequal",
}

const (
	unifiedSystemMessage   = "You are a simple SQL generator. When given multiple tables, generate ONE query that analyzes BOTH tables using UNION ALL. Keep it simple - basic SELECT statements only. Always end with semicolon. Return valid JSON with single query in legacy_sql."
	singleSystemMessage    = "You are a simple SQL generator. Generate BASIC, COMPLETE Athena SQL queries only. Keep it simple - just SELECT, FROM, WHERE, basic functions. Always end with semicolon. Return valid JSON."
	validatorSystemMessage = "You are an AWS Athena SQL syntax validator. Return only valid JSON."
	summarySystemMessage   = "You are a data analyst providing validation insights."
)

const unifiedPromptTemplate = `Generate ONE SIMPLE, COMPLETE Athena SQL query to COMPARE/VALIDATE: %s

COMPARISON SCENARIO - TWO TABLES:
- Legacy Table: %s
- Prod Table: %s
%s
%s

REQUIREMENTS:
1. Generate ONE query that compares/validates BOTH tables
2. Use UNION ALL to combine results from both tables
3. Add 'source' column to identify which table each row comes from
4. Keep it SIMPLE - basic SELECT, COUNT, SUM functions only
5. MUST end with semicolon

EXAMPLES for comparison:
✅ Primary Key Check:
SELECT 'legacy' as source, COUNT(*) as total_rows, COUNT(DISTINCT order_id, line_item_id) as unique_keys
FROM %s
UNION ALL
SELECT 'prod' as source, COUNT(*) as total_rows, COUNT(DISTINCT order_id, line_item_id) as unique_keys
FROM %s;

✅ Row Count Comparison:
SELECT 'legacy' as source, COUNT(*) as row_count FROM %s
UNION ALL
SELECT 'prod' as source, COUNT(*) as row_count FROM %s;

JSON Response:
{
    "legacy_sql": "unified_comparison_query_here;",
    "prod_sql": "",
    "explanation": "compares both tables for [specific validation]"
}`

const singlePromptTemplate = `Generate SIMPLE, COMPLETE Athena SQL for: %s

TABLE: %s
%s
%s

REQUIREMENTS:
1. Keep it SIMPLE - basic SELECT statements only
2. Generate ONE complete query in "legacy_sql"
3. MUST end with semicolon or be naturally complete
4. Use COUNT(*), SUM(), basic aggregations

EXAMPLES:
✅ GOOD: SELECT COUNT(*) FROM %s;
✅ GOOD: SELECT DISTINCT category FROM %s;

JSON Response:
{
    "legacy_sql": "your_complete_simple_query_here;",
    "prod_sql": "",
    "explanation": "what this checks"
}`

const summaryPromptTemplate = `Analyze these data validation results between legacy table '%s' and production table '%s':

%s

Provide a concise summary that:
1. Highlights the overall validation status
2. Identifies critical issues that need attention
3. Suggests next steps if there are failures
4. Mentions any data quality concerns

Keep the response professional and actionable.`

const validationPromptTemplate = `You are an AWS Athena SQL syntax checker. Analyze this SQL for syntax errors:

SQL TO CHECK:
%s

Check for these common Athena syntax issues:
1. NULLIF usage (must have exactly 2 arguments)
2. NULL keyword (must be uppercase NULL, not lowercase null)
3. Quote balancing (every ' must have a closing ')
4. Parentheses balancing (every ( must have a closing ))
5. Incomplete statements (EOF errors - missing ), END, or proper termination)
6. Unfinished WHERE/JOIN/ON clauses (ending with keywords like WHERE, AND, OR)
7. Trailing commas before FROM/WHERE/GROUP/ORDER clauses
8. Truncated queries due to token limits
9. LIMIT placement (only at query end, never in WITH clauses)
10. UNION structure (FROM before UNION ALL)
11. String literal termination
12. Multiple consecutive quotes (''', '''', etc.)
13. Keywords must be properly cased for Athena

Return JSON:
{
    "is_valid": true/false,
    "issues": ["list of specific issues found"],
    "corrected_sql": "fixed SQL if issues found, or original if valid"
}

If no issues found, return is_valid: true with empty issues array.
If issues found, provide corrected_sql with fixes applied.`

// needsUnifiedQuery reports whether the request compares two distinct
// tables and should therefore run as a single UNION ALL statement.
func needsUnifiedQuery(legacyTable, prodTable, requestText string) bool {
	if strings.TrimSpace(prodTable) == "" || prodTable == legacyTable {
		return false
	}
	return containsAny(strings.ToLower(requestText), comparisonKeywords)
}

// buildPrompt assembles the system and user messages for a generation
// request.
func buildPrompt(req Request) (string, string) {
	schemaContext := buildSchemaContext(req.SchemaContext)
	dateContext := buildDateContext(req.DateColumn, req.StartDate, req.EndDate)

	if needsUnifiedQuery(req.LegacyTable, req.ProdTable, req.ValidationRequest) {
		prompt := fmt.Sprintf(unifiedPromptTemplate,
			req.ValidationRequest, req.LegacyTable, req.ProdTable,
			schemaContext, dateContext,
			req.LegacyTable, req.ProdTable,
			req.LegacyTable, req.ProdTable)
		return unifiedSystemMessage, prompt
	}

	prompt := fmt.Sprintf(singlePromptTemplate,
		req.ValidationRequest, req.LegacyTable,
		schemaContext, dateContext,
		req.LegacyTable, req.LegacyTable)
	return singleSystemMessage, prompt
}

func buildValidationPrompt(sqlQuery string) (string, string) {
	return validatorSystemMessage, fmt.Sprintf(validationPromptTemplate, sqlQuery)
}

func buildSummaryPrompt(legacyTable, prodTable string, resultLines []string) (string, string) {
	prompt := fmt.Sprintf(summaryPromptTemplate, legacyTable, prodTable, strings.Join(resultLines, "\n"))
	return summarySystemMessage, prompt
}

func buildSchemaContext(schemas map[string][]schema.Column) string {
	if len(schemas) == 0 {
		return ""
	}

	tables := make([]string, 0, len(schemas))
	for table := range schemas {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	var b strings.Builder
	b.WriteString("\nTable Schema Information:\n")
	for i, table := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(schema.FormatForPrompt(table, schemas[table]))
	}
	return b.String()
}

func buildDateContext(dateColumn, startDate, endDate string) string {
	if dateColumn == "" || (startDate == "" && endDate == "") {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nDate Filtering Required:\n- Column: %s", dateColumn)
	switch {
	case startDate != "" && endDate != "":
		fmt.Fprintf(&b, "\n- Date Range: %s to %s", startDate, endDate)
	case startDate != "":
		fmt.Fprintf(&b, "\n- From Date: %s", startDate)
	default:
		fmt.Fprintf(&b, "\n- Until Date: %s", endDate)
	}
	return b.String()
}
