package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/lakecheck/lakecheck/pkg/sqlcheck"
	"github.com/lakecheck/lakecheck/pkg/sqlgen"
)

// defaultRecentLimit is the number of cache entries list_recent returns when
// no limit is given.
const defaultRecentLimit = 10

// SQLSource generates validation SQL pairs from natural-language requests.
type SQLSource interface {
	Generate(ctx context.Context, req sqlgen.Request) sqlgen.Result
}

// CacheStore exposes the cache operations served by the cache tools.
type CacheStore interface {
	Stats() sqlgen.Stats
	Clear() int
	ListRecent(limit int) []sqlgen.EntrySummary
}

var (
	_ SQLSource  = (*sqlgen.Generator)(nil)
	_ CacheStore = (*sqlgen.Store)(nil)
)

// ToolDeps contains dependencies for lakecheck's MCP tools.
type ToolDeps struct {
	Generator SQLSource
	Cache     CacheStore
	Logger    *zap.Logger
}

// RegisterTools registers the SQL generation and cache tools. The cache
// tools are omitted when no cache is wired (caching disabled).
func RegisterTools(s *Server, deps *ToolDeps) {
	registerGenerateSQLTool(s, deps)
	if deps.Cache == nil {
		return
	}
	registerCacheStatsTool(s, deps)
	registerCacheClearTool(s, deps)
	registerListRecentTool(s, deps)
}

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcplib.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	val, ok := args[key].(string)
	if !ok {
		return ""
	}
	return val
}

// getOptionalFloat extracts an optional float argument from the request.
func getOptionalFloat(req mcplib.CallToolRequest, key string) (float64, bool) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return 0, false
	}
	val, ok := args[key].(float64)
	return val, ok
}

// generateSQLResponse is the response format for the generate_sql tool.
type generateSQLResponse struct {
	LegacySQL   string `json:"legacy_sql"`
	ProdSQL     string `json:"prod_sql,omitempty"`
	Explanation string `json:"explanation"`
	Origin      string `json:"origin"`
}

// registerGenerateSQLTool adds the generate_sql tool. It runs a request
// through the generation pipeline and returns the SQL pair with the origin of
// the result, without executing anything.
func registerGenerateSQLTool(s *Server, deps *ToolDeps) {
	tool := mcplib.NewTool(
		"generate_sql",
		mcplib.WithDescription(
			"Generate a legacy/prod SQL validation pair from a natural-language request. "+
				"Returns legacy_sql, prod_sql, an explanation, and the origin of the result: "+
				"cache (a previous identical request), generated (fresh LLM output), or "+
				"fallback (static count query). Nothing is executed against Athena.",
		),
		mcplib.WithString(
			"legacy_table",
			mcplib.Required(),
			mcplib.Description("Fully qualified legacy table name, e.g. legacy_db.orders"),
		),
		mcplib.WithString(
			"prod_table",
			mcplib.Required(),
			mcplib.Description("Fully qualified production table name, e.g. prod_db.orders"),
		),
		mcplib.WithString(
			"request",
			mcplib.Required(),
			mcplib.Description("What to validate, in plain language"),
		),
		mcplib.WithString(
			"date_column",
			mcplib.Description("Column for date-window filtering"),
		),
		mcplib.WithString(
			"start_date",
			mcplib.Description("Inclusive window start, YYYY-MM-DD"),
		),
		mcplib.WithString(
			"end_date",
			mcplib.Description("Inclusive window end, YYYY-MM-DD"),
		),
		mcplib.WithReadOnlyHintAnnotation(false),
		mcplib.WithDestructiveHintAnnotation(false),
		mcplib.WithIdempotentHintAnnotation(false),
		mcplib.WithOpenWorldHintAnnotation(true),
	)

	s.RegisterTool(tool, func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		if deps.Generator == nil {
			return NewErrorResult(
				"llm_not_configured",
				"SQL generation requires an LLM provider. Set LLM_API_KEY in the environment.",
			), nil
		}

		legacyTable, err := req.RequireString("legacy_table")
		if err != nil {
			return nil, err
		}
		prodTable, err := req.RequireString("prod_table")
		if err != nil {
			return nil, err
		}
		request, err := req.RequireString("request")
		if err != nil {
			return nil, err
		}

		genReq := sqlgen.Request{
			LegacyTable:       legacyTable,
			ProdTable:         prodTable,
			ValidationRequest: request,
			DateColumn:        getOptionalString(req, "date_column"),
			StartDate:         getOptionalString(req, "start_date"),
			EndDate:           getOptionalString(req, "end_date"),
		}

		if result := rejectInjection(deps.Logger, map[string]any{
			"legacy_table": genReq.LegacyTable,
			"prod_table":   genReq.ProdTable,
			"request":      genReq.ValidationRequest,
			"date_column":  genReq.DateColumn,
			"start_date":   genReq.StartDate,
			"end_date":     genReq.EndDate,
		}); result != nil {
			return result, nil
		}

		res := deps.Generator.Generate(ctx, genReq)

		jsonResult, err := json.Marshal(generateSQLResponse{
			LegacySQL:   res.LegacySQL,
			ProdSQL:     res.ProdSQL,
			Explanation: res.Explanation,
			Origin:      string(res.Origin),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return mcplib.NewToolResultText(string(jsonResult)), nil
	})
}

// rejectInjection checks tool inputs for SQL injection patterns before they
// reach prompts or fallback templates. Returns a structured error result when
// any input matches, nil when all are clean.
func rejectInjection(logger *zap.Logger, inputs map[string]any) *mcplib.CallToolResult {
	findings := sqlcheck.CheckInputs(inputs)
	if len(findings) == 0 {
		return nil
	}

	names := make([]string, 0, len(findings))
	for _, finding := range findings {
		names = append(names, finding.Input)
	}
	sort.Strings(names)

	logger.Warn("rejected tool call: input matched injection pattern",
		zap.Strings("inputs", names))
	return NewErrorResultWithDetails(
		"security_violation",
		"input matched a SQL injection pattern",
		map[string]any{"inputs": names},
	)
}

// cacheStatsResponse is the response format for the cache_stats tool.
type cacheStatsResponse struct {
	Entries        int       `json:"entries"`
	MaxEntries     int       `json:"max_entries"`
	TTLHours       float64   `json:"ttl_hours"`
	Hits           int       `json:"hits"`
	Misses         int       `json:"misses"`
	HitRatePercent float64   `json:"hit_rate_percent"`
	Saves          int       `json:"saves"`
	Evictions      int       `json:"evictions"`
	LastCleanup    time.Time `json:"last_cleanup"`
	SizeBytes      int64     `json:"size_bytes"`
}

func toCacheStatsResponse(stats sqlgen.Stats) cacheStatsResponse {
	return cacheStatsResponse{
		Entries:        stats.Entries,
		MaxEntries:     stats.MaxEntries,
		TTLHours:       stats.TTL.Hours(),
		Hits:           stats.Hits,
		Misses:         stats.Misses,
		HitRatePercent: stats.HitRatePercent,
		Saves:          stats.Saves,
		Evictions:      stats.Evictions,
		LastCleanup:    stats.LastCleanup,
		SizeBytes:      stats.SizeBytes,
	}
}

// registerCacheStatsTool adds the cache_stats tool for reporting cache counters.
func registerCacheStatsTool(s *Server, deps *ToolDeps) {
	tool := mcplib.NewTool(
		"cache_stats",
		mcplib.WithDescription(
			"Report SQL cache counters: entries, hit rate, saves, evictions, and size on disk.",
		),
		mcplib.WithReadOnlyHintAnnotation(true),
		mcplib.WithDestructiveHintAnnotation(false),
		mcplib.WithIdempotentHintAnnotation(true),
		mcplib.WithOpenWorldHintAnnotation(false),
	)

	s.RegisterTool(tool, func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		jsonResult, err := json.Marshal(toCacheStatsResponse(deps.Cache.Stats()))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return mcplib.NewToolResultText(string(jsonResult)), nil
	})
}

// registerCacheClearTool adds the cache_clear tool for emptying the SQL cache.
func registerCacheClearTool(s *Server, deps *ToolDeps) {
	tool := mcplib.NewTool(
		"cache_clear",
		mcplib.WithDescription(
			"Remove every entry from the SQL cache. Returns the number of entries removed.",
		),
		mcplib.WithReadOnlyHintAnnotation(false),
		mcplib.WithDestructiveHintAnnotation(true),
		mcplib.WithIdempotentHintAnnotation(true),
		mcplib.WithOpenWorldHintAnnotation(false),
	)

	s.RegisterTool(tool, func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		removed := deps.Cache.Clear()

		result := struct {
			Removed int `json:"removed"`
		}{Removed: removed}

		jsonResult, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return mcplib.NewToolResultText(string(jsonResult)), nil
	})
}

// recentEntryResponse describes one cache entry in the list_recent response.
type recentEntryResponse struct {
	Key               string    `json:"key"`
	ValidationRequest string    `json:"validation_request"`
	Tables            string    `json:"tables"`
	CreatedAt         time.Time `json:"created_at"`
	LastAccessed      time.Time `json:"last_accessed"`
	AccessCount       int       `json:"access_count"`
	AgeHours          float64   `json:"age_hours"`
}

// registerListRecentTool adds the list_recent tool for inspecting cache
// entries by recency of access.
func registerListRecentTool(s *Server, deps *ToolDeps) {
	tool := mcplib.NewTool(
		"list_recent",
		mcplib.WithDescription(
			"List cache entries ordered by most recent access. Shows the request text, "+
				"table pair, age, and access count for each entry.",
		),
		mcplib.WithNumber(
			"limit",
			mcplib.Description(fmt.Sprintf("Max entries to return (default: %d)", defaultRecentLimit)),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
		mcplib.WithDestructiveHintAnnotation(false),
		mcplib.WithIdempotentHintAnnotation(true),
		mcplib.WithOpenWorldHintAnnotation(false),
	)

	s.RegisterTool(tool, func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		limit := defaultRecentLimit
		if val, ok := getOptionalFloat(req, "limit"); ok && val > 0 {
			limit = int(val)
		}

		entries := deps.Cache.ListRecent(limit)

		result := struct {
			Entries []recentEntryResponse `json:"entries"`
			Count   int                   `json:"count"`
		}{
			Entries: make([]recentEntryResponse, 0, len(entries)),
			Count:   len(entries),
		}
		for _, entry := range entries {
			result.Entries = append(result.Entries, recentEntryResponse{
				Key:               entry.Key,
				ValidationRequest: entry.ValidationRequest,
				Tables:            entry.Tables,
				CreatedAt:         entry.CreatedAt,
				LastAccessed:      entry.LastAccessed,
				AccessCount:       entry.AccessCount,
				AgeHours:          entry.AgeHours,
			})
		}

		jsonResult, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return mcplib.NewToolResultText(string(jsonResult)), nil
	})
}
