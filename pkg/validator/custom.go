package validator

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/lakecheck/lakecheck/pkg/rules"
	"github.com/lakecheck/lakecheck/pkg/schema"
	"github.com/lakecheck/lakecheck/pkg/sqlcheck"
	"github.com/lakecheck/lakecheck/pkg/sqlgen"
	"github.com/lakecheck/lakecheck/pkg/workqueue"
)

// customExecAttempts bounds execute, invalidate, regenerate loops for one
// custom validation.
const customExecAttempts = 2

// customRuleName labels LLM-backed validations in reports.
const customRuleName = "Custom LLM Validation"

// customTask runs one natural-language validation through the generation
// pipeline. Run never returns an error outside cancellation: every failure
// mode lands in the stored result, so one bad generation cannot fail the
// whole run.
type customTask struct {
	workqueue.BaseTask
	validator *Validator
	job       Job
	request   string

	res *rules.Result
}

func newCustomTask(v *Validator, job Job, request string) *customTask {
	return &customTask{
		BaseTask:  workqueue.NewBaseTask(customRuleName, true),
		validator: v,
		job:       job,
		request:   request,
	}
}

func (t *customTask) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res := t.validator.runCustom(ctx, t.job, t.request)
	t.res = &res
	return nil
}

func (t *customTask) result(snap workqueue.TaskSnapshot) rules.Result {
	if t.res != nil {
		return *t.res
	}
	return failedResult(customRuleName, "Custom validation error", snap)
}

// runCustom drives one request through generation, the pre-execution scan,
// and execution. A syntax failure at execution time drops the cached entry
// and regenerates; anything else, or a second syntax failure, becomes an
// error result.
func (v *Validator) runCustom(ctx context.Context, job Job, request string) rules.Result {
	if v.generator == nil {
		return rules.Result{
			RuleName:     "Custom Validation",
			Status:       rules.StatusError,
			LegacyValue:  "N/A",
			ProdValue:    "N/A",
			Message:      "Custom validation requires an LLM provider. Use predefined rules or configure one.",
			ErrorDetails: "Set LLM_API_KEY in the environment or llm.api_key in the config file.",
		}
	}

	log := v.logger.With(
		zap.String("legacy_table", job.LegacyTable),
		zap.String("prod_table", job.ProdTable),
	)

	req := sqlgen.Request{
		LegacyTable:       job.LegacyTable,
		ProdTable:         job.ProdTable,
		ValidationRequest: request + dateContext(job.Filter),
		DateColumn:        job.Filter.Column,
		StartDate:         job.Filter.Start,
		EndDate:           job.Filter.End,
		SchemaContext:     v.schemaContext(ctx, job),
	}

	res := v.gateCustomSQL(log, req, v.generator.Generate(ctx, req), request)

	var legacyRows, prodRows []map[string]string
	var execErr error
	for attempt := 1; attempt <= customExecAttempts; attempt++ {
		legacyRows, prodRows, execErr = executePair(ctx, v.executor, res.LegacySQL, res.ProdSQL)
		if execErr == nil {
			break
		}
		if attempt == customExecAttempts || !isSyntaxError(execErr) {
			break
		}

		log.Warn("generated sql failed to execute, regenerating",
			zap.Int("attempt", attempt),
			zap.Error(execErr))
		if v.cache != nil {
			v.cache.Invalidate(req)
		}
		res = v.gateCustomSQL(log, req, v.generator.Generate(ctx, req), request)
	}
	if execErr != nil {
		return rules.Result{
			RuleName:     "Custom Validation",
			Status:       rules.StatusError,
			LegacyValue:  "N/A",
			ProdValue:    "N/A",
			Message:      "Custom validation failed to execute",
			ErrorDetails: execErr.Error(),
		}
	}

	status := rules.StatusPass
	message := "Custom validation passed: " + res.Explanation
	if !rowsEqual(legacyRows, prodRows) {
		status = rules.StatusFail
		message = "Custom validation failed: " + res.Explanation
	}
	return rules.Result{
		RuleName:    customRuleName,
		Status:      status,
		LegacyValue: renderRows(legacyRows),
		ProdValue:   renderRows(prodRows),
		Message:     message,
	}
}

// gateCustomSQL rescans a generation result before execution. Cached
// entries can predate the current repair tables, so the scan runs even
// though fresh generations were already gated; a dirty result is dropped
// from the cache and replaced with the fallback.
func (v *Validator) gateCustomSQL(log *zap.Logger, req sqlgen.Request, res sqlgen.Result, rawRequest string) sqlgen.Result {
	issues := sqlcheck.Preflight(res.LegacySQL)
	if res.ProdSQL != "" {
		issues = append(issues, sqlcheck.Preflight(res.ProdSQL)...)
	}
	if len(issues) == 0 {
		return res
	}

	log.Warn("generated sql failed pre-execution scan",
		zap.String("origin", string(res.Origin)),
		zap.Strings("issues", issues))
	if v.cache != nil {
		v.cache.Invalidate(req)
	}
	return sqlgen.Fallback(req.LegacyTable, req.ProdTable, rawRequest)
}

// schemaContext fetches catalog columns for prompt grounding. Lookups are
// best-effort: generation proceeds without context when the catalog is
// unreachable.
func (v *Validator) schemaContext(ctx context.Context, job Job) map[string][]schema.Column {
	if v.catalog == nil {
		return nil
	}

	sc := make(map[string][]schema.Column, 2)
	for _, table := range []string{job.LegacyTable, job.ProdTable} {
		details, err := v.catalog.TableDetails(ctx, table)
		if err != nil {
			v.logger.Warn("schema context lookup failed",
				zap.String("table", table),
				zap.Error(err))
			continue
		}
		sc[table] = details.Columns
	}
	if len(sc) == 0 {
		return nil
	}
	return sc
}

// ValidateCustomSQL runs a caller-supplied statement pair and compares the
// result sets directly, bypassing generation.
func (v *Validator) ValidateCustomSQL(ctx context.Context, legacySQL, prodSQL, name string) rules.Result {
	if name == "" {
		name = "Custom SQL Validation"
	}

	legacyRows, prodRows, err := executePair(ctx, v.executor, legacySQL, prodSQL)
	if err != nil {
		return rules.Result{
			RuleName:     name,
			Status:       rules.StatusError,
			Message:      "Custom SQL execution error",
			ErrorDetails: err.Error(),
		}
	}

	status := rules.StatusPass
	message := "Custom SQL results match"
	if !rowsEqual(legacyRows, prodRows) {
		status = rules.StatusFail
		message = "Custom SQL results differ"
	}
	return rules.Result{
		RuleName:    name,
		Status:      status,
		LegacyValue: renderRows(legacyRows),
		ProdValue:   renderRows(prodRows),
		Message:     message,
	}
}

// dateContext renders the window suffix appended to the natural-language
// request so the provider filters both statements.
func dateContext(filter rules.DateFilter) string {
	if filter.Empty() {
		return ""
	}

	s := " with date filtering on " + filter.Column
	switch {
	case filter.Start != "" && filter.End != "":
		s += fmt.Sprintf(" between %s and %s", filter.Start, filter.End)
	case filter.Start != "":
		s += fmt.Sprintf(" from %s onwards", filter.Start)
	default:
		s += fmt.Sprintf(" up to %s", filter.End)
	}
	return s
}

// syntaxIndicators mark executor failures caused by the statement text.
// Matching is case sensitive: Athena spells these tokens consistently, and
// lowering would catch unrelated message text.
var syntaxIndicators = []string{
	"NULLIF",
	"mismatched input",
	"Expecting:",
	"InvalidRequestException",
	"'''",
	"quote",
	"line 1:",
	"position",
	"null",
	"identifier",
	"<EOF>",
	"ORDER",
	"incomplete",
	"parentheses",
}

// isSyntaxError reports whether an execution failure blames the SQL itself,
// which regeneration can fix, rather than the warehouse.
func isSyntaxError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, indicator := range syntaxIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}

// rowsEqual compares result sets positionally. The generated statements
// are aggregates with deterministic ordering, so row order is meaningful.
func rowsEqual(legacy, prod []map[string]string) bool {
	if len(legacy) != len(prod) {
		return false
	}
	for i := range legacy {
		if !maps.Equal(legacy[i], prod[i]) {
			return false
		}
	}
	return true
}

// renderRows flattens a result set for the report: one row prints all its
// columns, bigger sets print the count and the first row.
func renderRows(rows []map[string]string) string {
	if len(rows) == 0 {
		return "no rows"
	}
	first := renderRow(rows[0])
	if len(rows) == 1 {
		return first
	}
	return fmt.Sprintf("%d rows, first: %s", len(rows), first)
}

func renderRow(row map[string]string) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + row[k]
	}
	return strings.Join(parts, ", ")
}
