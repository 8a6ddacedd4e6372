// Package sqlcheck provides scanning and safety checks for generated and
// user-supplied SQL before it is sent to Athena.
package sqlcheck

import (
	"errors"
	"strings"
)

// ErrMultipleStatements indicates the query contains multiple SQL statements.
var ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")

// NormalizeStatement trims whitespace, strips a single trailing semicolon,
// and rejects input that still contains a semicolon outside string literals.
func NormalizeStatement(sqlQuery string) (string, error) {
	sqlQuery = strings.TrimSpace(sqlQuery)
	if sqlQuery == "" {
		return "", nil
	}

	normalized := stripTrailingSemicolon(sqlQuery)

	if hasSemicolonOutsideStrings(normalized) {
		return "", ErrMultipleStatements
	}

	return normalized, nil
}

// OpenParens returns the count of opening minus closing parentheses.
// Positive means unclosed groups, negative means stray closers.
func OpenParens(sqlQuery string) int {
	return strings.Count(sqlQuery, "(") - strings.Count(sqlQuery, ")")
}

// OddQuotes reports whether the statement contains an odd number of single
// quotes. Quotes are counted without tracking string state: generation bugs
// show up as raw unpaired quotes.
func OddQuotes(sqlQuery string) bool {
	return strings.Count(sqlQuery, "'")%2 != 0
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of string literals.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// Both backslash escape (\') and SQL standard escape ('') are handled:
			// a doubled quote exits and immediately re-enters the string state.
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}

// stripTrailingSemicolon removes a trailing semicolon and surrounding whitespace.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")

	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimSuffix(sqlQuery, ";")
		sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	}

	return sqlQuery
}
