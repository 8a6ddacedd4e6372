package mcp

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// callLogger records tool invocations through the structured logger. Hooks
// capture start times keyed by request ID so completions and errors can be
// logged with their duration.
type callLogger struct {
	logger *zap.Logger

	startTimes sync.Map
}

func newCallLogger(logger *zap.Logger) *callLogger {
	return &callLogger{logger: logger.Named("mcp-audit")}
}

// hooks returns mcp-go Hooks configured to capture tool call events.
func (c *callLogger) hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(c.beforeCallTool)
	hooks.AddAfterCallTool(c.afterCallTool)
	hooks.AddOnError(c.onError)
	return hooks
}

func (c *callLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	c.startTimes.Store(id, time.Now())
}

func (c *callLogger) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	start, _ := c.loadAndDeleteStart(id)

	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
	}

	if result != nil && result.IsError {
		c.logger.Warn("tool call returned error result",
			append(fields, zap.String("preview", resultPreview(result)))...)
		return
	}
	c.logger.Info("tool call completed", fields...)
}

func (c *callLogger) onError(_ context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}

	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	start, _ := c.loadAndDeleteStart(id)
	c.logger.Warn("tool call failed",
		zap.String("tool", req.Params.Name),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
		zap.Error(err))
}

func (c *callLogger) loadAndDeleteStart(id any) (time.Time, bool) {
	if v, ok := c.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time), true
	}
	return time.Now(), false
}

// maxParamLogSize is the maximum size of parameter strings written to the log.
const maxParamLogSize = 10240 // 10KB

// sqlStringLiteralPattern matches SQL string literals: 'value', 'it''s escaped', etc.
// Handles escaped single quotes within strings.
var sqlStringLiteralPattern = regexp.MustCompile(`'(?:[^']*(?:'')?)*[^']*'`)

// sanitizeParams sanitizes request parameters before they are logged.
// Long values are truncated and string literals in SQL-like parameters are
// redacted so user-provided values stay out of the log.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

func sanitizeValue(key string, value any) any {
	switch val := value.(type) {
	case string:
		return sanitizeStringParam(key, val)
	case map[string]any:
		return sanitizeParams(val)
	default:
		return value
	}
}

func sanitizeStringParam(key string, val string) string {
	if len(val) > maxParamLogSize {
		val = val[:maxParamLogSize] + "...[truncated]"
	}

	if isSQLParam(key) {
		val = redactSQLStringLiterals(val)
	}

	return val
}

// isSQLParam returns true if a parameter key likely contains SQL.
func isSQLParam(key string) bool {
	lower := strings.ToLower(key)
	return lower == "sql" || lower == "query" || strings.HasSuffix(lower, "_sql") || strings.HasSuffix(lower, "_query")
}

// redactSQLStringLiterals replaces string literal values in SQL with '***',
// preserving the query structure for debugging while hiding user-provided values.
func redactSQLStringLiterals(sql string) string {
	return sqlStringLiteralPattern.ReplaceAllString(sql, "'***'")
}

// resultPreview returns a truncated preview of the first text content in a
// tool result.
func resultPreview(result *mcplib.CallToolResult) string {
	for _, content := range result.Content {
		tc, ok := content.(mcplib.TextContent)
		if !ok {
			continue
		}
		text := tc.Text
		if len(text) > 200 {
			text = text[:200] + "...[truncated]"
		}
		return text
	}
	return ""
}
