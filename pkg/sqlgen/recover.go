package sqlgen

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/lakecheck/lakecheck/pkg/jsonutil"
)

// payload is the structured record recovered from a raw provider response.
type payload struct {
	LegacySQL   string
	ProdSQL     string
	Explanation string
}

const defaultExplanation = "Extracted from malformed JSON"

var (
	trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)
	barePropertyPattern  = regexp.MustCompile(`(\s*)([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)
	singleQuotedPattern  = regexp.MustCompile(`'([^'\\]*(?:\\.[^'\\]*)*)'`)
)

type fieldPattern struct {
	double *regexp.Regexp
	single *regexp.Regexp
}

func newFieldPattern(name string) fieldPattern {
	return fieldPattern{
		double: regexp.MustCompile(`(?s)["']?` + name + `["']?\s*:\s*"((?:[^"\\]|\\.)+)"`),
		single: regexp.MustCompile(`(?s)["']?` + name + `["']?\s*:\s*'([^']+)'`),
	}
}

var (
	legacySQLField   = newFieldPattern("legacy_sql")
	prodSQLField     = newFieldPattern("prod_sql")
	explanationField = newFieldPattern("explanation")
)

// recoverPayload coerces a raw provider response into a payload, trying
// progressively more aggressive strategies and stopping at the first success.
// The returned strategy names the stage that succeeded, for diagnostics. ok is
// false when no strategy produced a non-empty legacy_sql.
func recoverPayload(raw string) (payload, string, bool) {
	cleaned := stripFences(raw)

	if p, ok := parsePayload(fixUnterminatedStrings(cleaned)); ok {
		return p, "direct", true
	}

	if p, ok := parseBounded(cleaned); ok {
		return p, "bounded", true
	}

	if p, ok := extractFields(raw); ok {
		return p, "fields", true
	}

	return payload{}, "", false
}

// stripFences removes a Markdown code-fence wrapper around the response body.
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// fixUnterminatedStrings closes string values the model left open: a line with
// an odd count of unescaped double quotes gets a closing quote appended, with
// a trailing comma re-attached after the quote. The object itself is closed if
// the text does not already end with a brace.
func fixUnterminatedStrings(response string) string {
	lines := strings.Split(response, "\n")
	for i, line := range lines {
		quotes := 0
		escaped := false
		for _, char := range line {
			if char == '\\' && !escaped {
				escaped = true
				continue
			}
			if char == '"' && !escaped {
				quotes++
			}
			escaped = false
		}

		if quotes%2 != 0 {
			trimmed := strings.TrimRight(line, " \t")
			if strings.HasSuffix(trimmed, ",") {
				lines[i] = strings.TrimSuffix(trimmed, ",") + `",`
			} else {
				lines[i] = trimmed + `"`
			}
		}
	}

	fixed := strings.Join(lines, "\n")
	if !strings.HasSuffix(strings.TrimSpace(fixed), "}") {
		fixed = strings.TrimRight(fixed, " \t\n\r") + "\n}"
	}
	return fixed
}

// parseBounded discards everything outside the first { and last }, applies the
// fixed sequence of textual fixes, and parses the result.
func parseBounded(response string) (payload, bool) {
	content, ok := boundedCandidate(response)
	if !ok {
		return payload{}, false
	}
	return parsePayload(content)
}

// boundedCandidate cuts the response down to its outermost object span and
// normalizes it toward parsable JSON: trailing commas removed, bare property
// names quoted, single quotes converted, stray inner quotes escaped.
func boundedCandidate(response string) (string, bool) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}

	content := response[start : end+1]
	content = trailingCommaPattern.ReplaceAllString(content, "$1")
	content = barePropertyPattern.ReplaceAllString(content, `$1"$2":`)
	content = singleQuotedPattern.ReplaceAllString(content, `"$1"`)
	content = escapeStrayQuotes(content)
	return content, true
}

// escapeStrayQuotes escapes double quotes that sit inside a string value
// without terminating it. A closing quote must be followed (after optional
// spaces) by a comma, brace, bracket, colon, or end of line.
func escapeStrayQuotes(s string) string {
	var b strings.Builder
	runes := []rune(s)
	inString := false
	escaped := false

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if escaped {
			b.WriteRune(c)
			escaped = false
			continue
		}
		if c == '\\' {
			b.WriteRune(c)
			escaped = true
			continue
		}
		if c != '"' {
			b.WriteRune(c)
			continue
		}
		if !inString {
			inString = true
			b.WriteRune(c)
			continue
		}

		j := i + 1
		for j < len(runes) && (runes[j] == ' ' || runes[j] == '\t') {
			j++
		}
		if j >= len(runes) || isValueDelimiter(runes[j]) {
			inString = false
			b.WriteRune(c)
			continue
		}
		b.WriteString(`\"`)
	}
	return b.String()
}

func isValueDelimiter(r rune) bool {
	switch r {
	case ',', '}', ']', ':', '\n', '\r':
		return true
	}
	return false
}

// extractFields locates the three expected fields independently in the raw
// text, assembling a payload even when the surrounding JSON is unparsable.
// A missing legacy_sql is not decodable; missing prod_sql and explanation
// default to empty and a generic label.
func extractFields(response string) (payload, bool) {
	legacySQL, ok := matchField(legacySQLField, response)
	if !ok {
		return payload{}, false
	}

	prodSQL, _ := matchField(prodSQLField, response)
	explanation, found := matchField(explanationField, response)
	if !found {
		explanation = defaultExplanation
	}

	p := payload{
		LegacySQL:   decodeEscapes(legacySQL),
		ProdSQL:     decodeEscapes(prodSQL),
		Explanation: strings.ReplaceAll(explanation, `\"`, `"`),
	}
	return p, strings.TrimSpace(p.LegacySQL) != ""
}

func matchField(fp fieldPattern, response string) (string, bool) {
	if m := fp.double.FindStringSubmatch(response); len(m) >= 2 {
		return m[1], true
	}
	if m := fp.single.FindStringSubmatch(response); len(m) >= 2 {
		return m[1], true
	}
	return "", false
}

func decodeEscapes(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\n`, "\n")
	return s
}

// parsePayload unmarshals a candidate JSON object, coercing loosely typed
// field values to strings. A payload without a non-empty legacy_sql does not
// count as parsed.
func parsePayload(data string) (payload, bool) {
	var raw struct {
		LegacySQL   json.RawMessage `json:"legacy_sql"`
		ProdSQL     json.RawMessage `json:"prod_sql"`
		Explanation json.RawMessage `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return payload{}, false
	}

	p := payload{
		LegacySQL:   jsonutil.FlexibleStringValue(raw.LegacySQL),
		ProdSQL:     jsonutil.FlexibleStringValue(raw.ProdSQL),
		Explanation: jsonutil.FlexibleStringValue(raw.Explanation),
	}
	return p, strings.TrimSpace(p.LegacySQL) != ""
}
