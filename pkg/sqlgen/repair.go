package sqlgen

import (
	"regexp"
	"strings"
)

// RepairReport lists the rewrite rules that changed a statement during a
// Repair pass, in the order they first fired. It is diagnostic only;
// callers that need to gate on residual defects run Preflight instead.
type RepairReport struct {
	Applied []string
}

// repairRule is one entry in an ordered rewrite table. Rules run top to
// bottom and each sees the previous rule's output. An empty issue marks a
// formatting pass that is not worth reporting.
type repairRule struct {
	pattern *regexp.Regexp
	replace string
	issue   string
}

var (
	whitespaceRunPattern  = regexp.MustCompile(`\s+`)
	quoteRunPattern       = regexp.MustCompile(`'{2,}`)
	caseWithoutEndPattern = regexp.MustCompile(`(?i)(\bCASE\s+[^E]*)$`)
)

// quoteRules normalizes the string-literal damage LLMs most often produce:
// doubled and quadrupled quotes, strings left open at a clause boundary,
// numeric literals wrapped in quotes, and quoted aliases.
var quoteRules = []repairRule{
	{quoteRunPattern, `'`, "collapsed repeated quotes"},
	{regexp.MustCompile(`(?i)'([^']*?)(\s*(?:FROM|WHERE|GROUP|ORDER|UNION|LIMIT|;)|\s*$)`), `'$1'$2`, "closed unterminated string"},
	{regexp.MustCompile(`\\'`), `''`, "rewrote escaped quote"},
	{regexp.MustCompile(`'(\d+)'(\s*[,)])`), `$1$2`, "unquoted numeric literal"},
	{regexp.MustCompile(`'\s*\+\s*'`), ``, "joined concatenated strings"},
	{regexp.MustCompile(`(?i)\s+AS\s+'([^']+)'`), ` AS $1`, "unquoted alias"},
	// Sweeps up quote pairs the rules above introduce next to ones they
	// collapse, so the table as a whole converges.
	{regexp.MustCompile(`'+`), `'`, ""},
}

// nullifRules rewrites every NULLIF form Athena rejects. The targeted
// rules preserve argument structure; the blanket substitution at the end
// must stay last so it only sees what they missed.
var nullifRules = []repairRule{
	{regexp.MustCompile(`(?i)\bNULLIF\s*([^\s(])`), `COALESCE $1`, "rewrote bare NULLIF"},
	{regexp.MustCompile(`(?i)\bNULLIF\s*\(\s*([^,)]+)\s*\)`), `COALESCE($1, NULL)`, "rewrote single-argument NULLIF"},
	{regexp.MustCompile(`(?i)\bWHERE\s+NULLIF\b`), `WHERE COALESCE`, "rewrote NULLIF after WHERE"},
	{regexp.MustCompile(`(?i)\bSELECT\s+NULLIF\s+([^,\s(]+)`), `SELECT COALESCE($1, NULL)`, "rewrote unparenthesized SELECT NULLIF"},
	{regexp.MustCompile(`(?i)\bAS\s+NULLIF\b`), `AS nullif_result`, "renamed NULLIF alias"},
	{regexp.MustCompile(`(?i)\bNULLIF\s*([^(])`), `COALESCE$1`, "rewrote bare NULLIF"},
	{regexp.MustCompile(`(?i)\bNULLIF\s*\(\s*([^,)]+)\s*,\s*\)`), `COALESCE($1, NULL)`, "completed dangling NULLIF argument"},
	{regexp.MustCompile(`(?i)\bNULLIF\s*\(\s*([^,)]+)\s*,\s*([^,)]*)\s*$`), `COALESCE($1, $2)`, "closed unterminated NULLIF"},
	{regexp.MustCompile(`(?i)\bNULLIF\b`), `COALESCE`, "replaced remaining NULLIF"},
}

// commonRules covers casing and formatting defects: lowercase null,
// unterminated subqueries, commas dangling before a clause keyword,
// doubled semicolons, and operator spacing.
var commonRules = []repairRule{
	{regexp.MustCompile(`(?i)\bnull\b`), `NULL`, "uppercased null keyword"},
	{regexp.MustCompile(`(?i)(\(\s*SELECT[^)]*)$`), `$1)`, "closed unterminated subquery"},
	{regexp.MustCompile(`(?i),\s*((?:FROM|WHERE|GROUP|ORDER|UNION|LIMIT)\b|;|$)`), ` $1`, "removed trailing comma"},
	{regexp.MustCompile(`;{2,}`), `;`, "collapsed repeated semicolons"},
	{regexp.MustCompile(`([<>=!]+)`), ` $1 `, ""},
	{whitespaceRunPattern, ` `, ""},
	{regexp.MustCompile(`(?i)\bGROUP\s+BY\s+,`), `GROUP BY 1,`, "repaired empty GROUP BY"},
	{regexp.MustCompile(`(?i)\bORDER\s+BY\s+,`), `ORDER BY 1,`, "repaired empty ORDER BY"},
	{regexp.MustCompile(`(?i)\bUNION\s+ALL\s+SELECT`), "UNION ALL\nSELECT", "split UNION ALL SELECT"},
}

// Repair applies the ordered rewrite tables to a single SQL statement and
// reports which rules changed it. It never fails; clean input comes back
// unchanged with an empty report. The pass is deterministic, and running
// it on its own output is a no-op for the defect classes it targets.
func Repair(sqlQuery string) (string, RepairReport) {
	if strings.TrimSpace(sqlQuery) == "" {
		return sqlQuery, RepairReport{}
	}

	var applied []string
	record := func(issue string) {
		if issue == "" {
			return
		}
		for _, seen := range applied {
			if seen == issue {
				return
			}
		}
		applied = append(applied, issue)
	}

	base := strings.TrimSpace(whitespaceRunPattern.ReplaceAllString(sqlQuery, " "))

	out := applyRules(base, quoteRules, record)
	out = applyRules(out, nullifRules, record)
	out = applyRules(out, commonRules, record)
	out = completeStatement(out, record)
	out = balanceParens(out, record)
	out = rebalanceQuotes(out, record)

	out = strings.TrimSpace(out)
	if out == base {
		// Anything recorded was an intermediate artifact that a later
		// rule undid.
		applied = nil
	}
	return out, RepairReport{Applied: applied}
}

func applyRules(sqlQuery string, rules []repairRule, record func(string)) string {
	out := sqlQuery
	for _, rule := range rules {
		next := rule.pattern.ReplaceAllString(out, rule.replace)
		if next != out {
			record(rule.issue)
			out = next
		}
	}
	return out
}

// completeStatement patches statements cut off mid-clause, usually by a
// provider token limit.
func completeStatement(sqlQuery string, record func(string)) string {
	out := strings.TrimSpace(sqlQuery)
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return sqlQuery
	}

	switch strings.ToUpper(fields[len(fields)-1]) {
	case "WHERE", "AND", "OR":
		out += " 1 = 1"
		record("completed dangling clause")
	}

	if next := caseWithoutEndPattern.ReplaceAllString(out, "$1 END"); next != out {
		record("closed unterminated CASE")
		out = next
	}

	if !strings.HasSuffix(out, ";") && !strings.HasSuffix(out, ")") && !endsWithEndKeyword(out) {
		out += ";"
		record("appended statement terminator")
	}
	return out
}

func endsWithEndKeyword(sqlQuery string) bool {
	fields := strings.Fields(sqlQuery)
	return len(fields) > 0 && strings.EqualFold(fields[len(fields)-1], "END")
}

func balanceParens(sqlQuery string, record func(string)) string {
	opens := strings.Count(sqlQuery, "(")
	closes := strings.Count(sqlQuery, ")")
	if opens > closes {
		record("balanced parentheses")
		return sqlQuery + strings.Repeat(")", opens-closes)
	}
	return sqlQuery
}

// rebalanceQuotes runs after every other rule: collapse any quote runs the
// rewrites reintroduced, then close the final string if the count is odd.
func rebalanceQuotes(sqlQuery string, record func(string)) string {
	out := sqlQuery
	if next := quoteRunPattern.ReplaceAllString(out, "'"); next != out {
		record("collapsed repeated quotes")
		out = next
	}
	if strings.Count(out, "'")%2 != 0 {
		record("balanced string quotes")
		out += "'"
	}
	return out
}
