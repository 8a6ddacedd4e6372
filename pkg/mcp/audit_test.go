package mcp

import (
	"context"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeParams_TruncatesLargeValues(t *testing.T) {
	largeSQL := make([]byte, 20000)
	for i := range largeSQL {
		largeSQL[i] = 'a'
	}

	params := map[string]any{
		"sql": string(largeSQL),
	}

	result := sanitizeParams(params)
	sqlVal, ok := result["sql"].(string)
	if !ok {
		t.Fatal("expected sql to be a string")
	}

	expectedLen := maxParamLogSize + len("...[truncated]")
	if len(sqlVal) != expectedLen {
		t.Errorf("expected truncated length %d, got %d", expectedLen, len(sqlVal))
	}
}

func TestSanitizeParams_PreservesSmallValues(t *testing.T) {
	params := map[string]any{
		"sql":   "SELECT 1",
		"limit": 100,
	}

	result := sanitizeParams(params)

	if result["sql"] != "SELECT 1" {
		t.Errorf("expected sql to be preserved, got %v", result["sql"])
	}
	if result["limit"] != 100 {
		t.Errorf("expected limit to be preserved, got %v", result["limit"])
	}
}

func TestSanitizeParams_NilInput(t *testing.T) {
	result := sanitizeParams(nil)
	if result != nil {
		t.Errorf("expected nil for nil input, got %v", result)
	}
}

func TestSanitizeParams_RedactsSQLStringLiterals(t *testing.T) {
	params := map[string]any{
		"sql": "SELECT * FROM users WHERE name = 'John' AND city = 'New York'",
	}

	result := sanitizeParams(params)
	sqlVal := result["sql"].(string)

	expected := "SELECT * FROM users WHERE name = '***' AND city = '***'"
	if sqlVal != expected {
		t.Errorf("expected SQL %q, got %q", expected, sqlVal)
	}
}

func TestSanitizeParams_RedactsSQLEscapedQuotes(t *testing.T) {
	params := map[string]any{
		"sql": "SELECT * FROM users WHERE name = 'O''Brien'",
	}

	result := sanitizeParams(params)
	sqlVal := result["sql"].(string)

	expected := "SELECT * FROM users WHERE name = '***'"
	if sqlVal != expected {
		t.Errorf("expected SQL %q, got %q", expected, sqlVal)
	}
}

func TestSanitizeParams_RequestTextPreserved(t *testing.T) {
	// Natural-language request text is not a SQL parameter, so literals in it
	// stay intact for debugging.
	params := map[string]any{
		"request":      "count rows where status = 'active'",
		"legacy_table": "legacy_db.orders",
	}

	result := sanitizeParams(params)

	if result["request"] != "count rows where status = 'active'" {
		t.Errorf("expected request to be preserved, got %v", result["request"])
	}
	if result["legacy_table"] != "legacy_db.orders" {
		t.Errorf("expected legacy_table to be preserved, got %v", result["legacy_table"])
	}
}

func TestIsSQLParam(t *testing.T) {
	tests := []struct {
		key    string
		expect bool
	}{
		{"sql", true},
		{"SQL", true},
		{"query", true},
		{"QUERY", true},
		{"raw_sql", true},
		{"generated_query", true},
		{"legacy_table", false},
		{"request", false},
		{"limit", false},
		{"sql_mode", false}, // not a suffix match
	}

	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			if got := isSQLParam(tc.key); got != tc.expect {
				t.Errorf("isSQLParam(%q) = %v, want %v", tc.key, got, tc.expect)
			}
		})
	}
}

func TestRedactSQLStringLiterals(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple literal",
			input:  "WHERE name = 'John'",
			expect: "WHERE name = '***'",
		},
		{
			name:   "multiple literals",
			input:  "WHERE name = 'John' AND city = 'NYC'",
			expect: "WHERE name = '***' AND city = '***'",
		},
		{
			name:   "empty literal",
			input:  "WHERE name = ''",
			expect: "WHERE name = '***'",
		},
		{
			name:   "no literals",
			input:  "SELECT COUNT(*) FROM users",
			expect: "SELECT COUNT(*) FROM users",
		},
		{
			name:   "numeric not affected",
			input:  "WHERE id = 42 AND name = 'test'",
			expect: "WHERE id = 42 AND name = '***'",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := redactSQLStringLiterals(tc.input)
			if got != tc.expect {
				t.Errorf("redactSQLStringLiterals(%q) = %q, want %q", tc.input, got, tc.expect)
			}
		})
	}
}

func TestResultPreview_ReturnsFirstText(t *testing.T) {
	result := &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Text: "hello world"},
		},
	}

	if got := resultPreview(result); got != "hello world" {
		t.Errorf("expected preview 'hello world', got %q", got)
	}
}

func TestResultPreview_TruncatesLongText(t *testing.T) {
	longText := make([]byte, 500)
	for i := range longText {
		longText[i] = 'x'
	}

	result := &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Text: string(longText)},
		},
	}

	preview := resultPreview(result)
	expectedLen := 200 + len("...[truncated]")
	if len(preview) != expectedLen {
		t.Errorf("expected preview length %d, got %d", expectedLen, len(preview))
	}
}

func TestResultPreview_EmptyContent(t *testing.T) {
	if got := resultPreview(&mcplib.CallToolResult{}); got != "" {
		t.Errorf("expected empty preview, got %q", got)
	}
}

func TestCallLogger_LogsCompletedCall(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	c := newCallLogger(zap.New(core))

	req := &mcplib.CallToolRequest{}
	req.Params.Name = "cache_stats"

	c.beforeCallTool(context.Background(), "req-1", req)
	c.afterCallTool(context.Background(), "req-1", req, mcplib.NewToolResultText("{}"))

	entries := logs.FilterMessage("tool call completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 completed entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["tool"] != "cache_stats" {
		t.Errorf("expected tool field 'cache_stats', got %v", fields["tool"])
	}
	if _, ok := fields["duration_ms"]; !ok {
		t.Error("expected duration_ms field")
	}
}

func TestCallLogger_WarnsOnErrorResult(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	c := newCallLogger(zap.New(core))

	req := &mcplib.CallToolRequest{}
	req.Params.Name = "generate_sql"

	c.beforeCallTool(context.Background(), "req-2", req)
	c.afterCallTool(context.Background(), "req-2", req, NewErrorResult("security_violation", "rejected"))

	entries := logs.FilterMessage("tool call returned error result").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 error-result entry, got %d", len(entries))
	}
	preview, _ := entries[0].ContextMap()["preview"].(string)
	if !strings.Contains(preview, "security_violation") {
		t.Errorf("expected preview to carry the error code, got %q", preview)
	}
}

func TestCallLogger_LogsProtocolError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	c := newCallLogger(zap.New(core))

	req := &mcplib.CallToolRequest{}
	req.Params.Name = "generate_sql"

	c.beforeCallTool(context.Background(), "req-3", req)
	c.onError(context.Background(), "req-3", mcplib.MethodToolsCall, req, context.DeadlineExceeded)

	entries := logs.FilterMessage("tool call failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 failed entry, got %d", len(entries))
	}
}

func TestCallLogger_IgnoresNonToolErrors(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	c := newCallLogger(zap.New(core))

	c.onError(context.Background(), "req-4", mcplib.MethodToolsList, nil, context.DeadlineExceeded)

	if got := logs.Len(); got != 0 {
		t.Errorf("expected no log entries for non-tool errors, got %d", got)
	}
}
