// Package validator orchestrates one comparison run for a table pair:
// predefined SQL rules, a catalog schema comparison, and LLM-backed custom
// checks, executed on a bounded work queue with results collected in
// completion order.
package validator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lakecheck/lakecheck/pkg/retry"
	"github.com/lakecheck/lakecheck/pkg/rules"
	"github.com/lakecheck/lakecheck/pkg/schema"
	"github.com/lakecheck/lakecheck/pkg/sqlgen"
	"github.com/lakecheck/lakecheck/pkg/workqueue"
)

// DefaultMaxConcurrent bounds how many checks run at once. Each check may
// hold two Athena statements in flight, one per side.
const DefaultMaxConcurrent = 5

// QueryExecutor runs statements against the warehouse.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string) ([]map[string]string, error)
	TableAccessible(ctx context.Context, table string) error
}

// Catalog resolves table snapshots for schema comparison and prompt context.
type Catalog interface {
	TableDetails(ctx context.Context, table string) (schema.Table, error)
}

// DDLSource locates lake DDL, used to resolve column comparison lists.
type DDLSource interface {
	SearchTableDDL(ctx context.Context, table string) (schema.TableDDL, bool)
}

// SQLSource turns validation requests into SQL and narrates finished runs.
type SQLSource interface {
	Generate(ctx context.Context, req sqlgen.Request) sqlgen.Result
	Summarize(ctx context.Context, legacyTable, prodTable string, resultLines []string) (string, error)
}

// CacheInvalidator drops a cached generation proven bad at execution time.
type CacheInvalidator interface {
	Invalidate(req sqlgen.Request) bool
}

var (
	_ Catalog          = (*schema.GlueProvider)(nil)
	_ DDLSource        = (*schema.DDLFetcher)(nil)
	_ SQLSource        = (*sqlgen.Generator)(nil)
	_ CacheInvalidator = (*sqlgen.Store)(nil)
)

// Job describes one validation run.
type Job struct {
	LegacyTable string
	ProdTable   string

	PrimaryKeyColumns []string
	NullCheckColumns  []string
	IncludeSchema     bool
	CustomRequests    []string

	// NullTolerance is the allowed percentage-point null-rate drift per
	// column; zero means the rule default.
	NullTolerance float64

	Filter rules.DateFilter

	// ExtraRules are appended after the basic checks. A ColumnComparison
	// with no columns gets its list resolved from lake DDL.
	ExtraRules []rules.Rule

	// SkipBasicRules drops the automatically assembled checks so a job
	// runs only its extra rules, schema comparison, and custom requests.
	SkipBasicRules bool
}

// Report is the outcome of a run.
type Report struct {
	RunID         string         `json:"run_id"`
	LegacyTable   string         `json:"legacy_table"`
	ProdTable     string         `json:"prod_table"`
	Results       []rules.Result `json:"validation_results"`
	ExecutionTime float64        `json:"execution_time"`
	Timestamp     time.Time      `json:"timestamp"`
	Summary       string         `json:"summary"`
	TotalChecks   int            `json:"total_checks"`
	PassedChecks  int            `json:"passed_checks"`
	FailedChecks  int            `json:"failed_checks"`
	ErrorChecks   int            `json:"error_checks"`
}

func (r *Report) tally() {
	r.TotalChecks = len(r.Results)
	r.PassedChecks = 0
	r.FailedChecks = 0
	r.ErrorChecks = 0
	for _, res := range r.Results {
		switch res.Status {
		case rules.StatusPass:
			r.PassedChecks++
		case rules.StatusFail:
			r.FailedChecks++
		case rules.StatusError:
			r.ErrorChecks++
		}
	}
}

// Validator runs validation jobs. Only the executor is required; the other
// collaborators switch on schema comparison, column resolution, and custom
// LLM validations.
type Validator struct {
	executor  QueryExecutor
	generator SQLSource
	cache     CacheInvalidator
	catalog   Catalog
	ddl       DDLSource

	maxConcurrent int
	retryCfg      *retry.Config
	logger        *zap.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithGenerator wires the generation pipeline for custom validations and
// run summaries.
func WithGenerator(generator SQLSource) Option {
	return func(v *Validator) { v.generator = generator }
}

// WithCache lets execution-time failures invalidate cached generations.
func WithCache(cache CacheInvalidator) Option {
	return func(v *Validator) { v.cache = cache }
}

// WithCatalog wires Glue-backed schema comparison and prompt context.
func WithCatalog(catalog Catalog) Option {
	return func(v *Validator) { v.catalog = catalog }
}

// WithDDLSource wires lake DDL lookups for column comparison rules.
func WithDDLSource(ddl DDLSource) Option {
	return func(v *Validator) { v.ddl = ddl }
}

// WithMaxConcurrent bounds how many checks run at once.
func WithMaxConcurrent(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxConcurrent = n
		}
	}
}

// WithRetry overrides the transient-failure retry policy.
func WithRetry(cfg *retry.Config) Option {
	return func(v *Validator) {
		if cfg != nil {
			v.retryCfg = cfg
		}
	}
}

func New(executor QueryExecutor, logger *zap.Logger, opts ...Option) *Validator {
	v := &Validator{
		executor:      executor,
		maxConcurrent: DefaultMaxConcurrent,
		retryCfg:      workqueue.DefaultRetryConfig(),
		logger:        logger.Named("validator"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs every check for the job and builds the report. Check
// failures land in the report, never in the error return; the error is
// reserved for context cancellation. A table pair that fails the access
// test short-circuits into a single-result error report.
func (v *Validator) Validate(ctx context.Context, job Job) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := v.logger.With(
		zap.String("run_id", runID),
		zap.String("legacy_table", job.LegacyTable),
		zap.String("prod_table", job.ProdTable),
	)
	log.Info("starting validation",
		zap.String("window", strings.TrimSpace(job.Filter.Describe())))

	if err := v.testTableAccess(ctx, log, job); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return v.errorReport(runID, job, start, err), nil
	}

	queue := workqueue.New(v.logger,
		workqueue.WithStrategy(workqueue.NewThrottledStrategy(1, v.maxConcurrent)),
		workqueue.WithRetry(v.retryCfg))

	tasks := v.buildTasks(ctx, job)
	byID := make(map[string]checkTask, len(tasks))
	for _, task := range tasks {
		byID[task.ID()] = task
		queue.Enqueue(task)
	}

	if err := queue.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("run finished with failed checks", zap.Error(err))
	}

	results := make([]rules.Result, 0, len(tasks))
	for _, snap := range queue.Finished() {
		task, ok := byID[snap.ID]
		if !ok {
			continue
		}
		results = append(results, task.result(snap))
	}

	report := &Report{
		RunID:         runID,
		LegacyTable:   job.LegacyTable,
		ProdTable:     job.ProdTable,
		Results:       results,
		ExecutionTime: time.Since(start).Seconds(),
		Timestamp:     time.Now(),
		Summary:       v.summarize(ctx, job, results),
	}
	report.tally()

	log.Info("validation completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("total", report.TotalChecks),
		zap.Int("passed", report.PassedChecks),
		zap.Int("failed", report.FailedChecks),
		zap.Int("errors", report.ErrorChecks))
	return report, nil
}

// testTableAccess probes both tables so a bad pair fails before any rule
// spends Athena time. Both sides are probed even when the first fails.
func (v *Validator) testTableAccess(ctx context.Context, log *zap.Logger, job Job) error {
	legacyErr := v.executor.TableAccessible(ctx, job.LegacyTable)
	if legacyErr != nil {
		log.Error("cannot access legacy table", zap.Error(legacyErr))
	}
	prodErr := v.executor.TableAccessible(ctx, job.ProdTable)
	if prodErr != nil {
		log.Error("cannot access prod table", zap.Error(prodErr))
	}
	return errors.Join(legacyErr, prodErr)
}

func (v *Validator) errorReport(runID string, job Job, start time.Time, err error) *Report {
	const message = "Table access test failed"
	return &Report{
		RunID:       runID,
		LegacyTable: job.LegacyTable,
		ProdTable:   job.ProdTable,
		Results: []rules.Result{{
			RuleName:     "Table Access",
			Status:       rules.StatusError,
			Message:      message,
			ErrorDetails: err.Error(),
		}},
		ExecutionTime: time.Since(start).Seconds(),
		Timestamp:     time.Now(),
		Summary:       "Validation failed: " + message,
		TotalChecks:   1,
		ErrorChecks:   1,
	}
}

func (v *Validator) buildTasks(ctx context.Context, job Job) []checkTask {
	var tasks []checkTask
	for _, rule := range v.assembleRules(ctx, job) {
		tasks = append(tasks, newRuleTask(rule, job, v.executor))
	}
	if job.IncludeSchema {
		tasks = append(tasks, newSchemaTask(v.catalog, job))
	}
	for _, request := range job.CustomRequests {
		tasks = append(tasks, newCustomTask(v, job, request))
	}
	return tasks
}

// assembleRules builds the basic rule set: row count always, key and null
// checks when columns were given, then the job's extra rules.
func (v *Validator) assembleRules(ctx context.Context, job Job) []rules.Rule {
	var rs []rules.Rule
	if !job.SkipBasicRules {
		rs = append(rs, rules.RowCount{Filter: job.Filter})
		if len(job.PrimaryKeyColumns) > 0 {
			rs = append(rs, rules.PrimaryKeyCount{Columns: job.PrimaryKeyColumns, Filter: job.Filter})
		}
		if len(job.NullCheckColumns) > 0 {
			rs = append(rs, rules.NullValue{
				Columns:   job.NullCheckColumns,
				Filter:    job.Filter,
				Tolerance: job.NullTolerance,
			})
		}
	}
	for _, rule := range job.ExtraRules {
		if cc, ok := rule.(rules.ColumnComparison); ok && len(cc.Columns) == 0 {
			cc.Columns = v.comparisonColumns(ctx, job)
			rule = cc
		}
		rs = append(rs, rule)
	}
	return rs
}

// comparisonColumns resolves the column list for a lake-schema comparison:
// the sorted intersection of both tables' DDL columns with primary keys
// folded in, or the primary keys alone when no DDL is reachable.
func (v *Validator) comparisonColumns(ctx context.Context, job Job) []string {
	if v.ddl == nil {
		return dedupe(job.PrimaryKeyColumns)
	}

	legacy := ddlColumnNames(v.ddl.SearchTableDDL(ctx, job.LegacyTable))
	prod := ddlColumnNames(v.ddl.SearchTableDDL(ctx, job.ProdTable))

	var common []string
	for name := range legacy {
		if prod[name] {
			common = append(common, name)
		}
	}
	sort.Strings(common)

	for _, pk := range job.PrimaryKeyColumns {
		if !slices.Contains(common, pk) {
			common = append(common, pk)
		}
	}
	if len(common) == 0 {
		return dedupe(job.PrimaryKeyColumns)
	}
	return common
}

func ddlColumnNames(ddl schema.TableDDL, ok bool) map[string]bool {
	if !ok {
		return nil
	}
	names := make(map[string]bool, len(ddl.Columns))
	for _, col := range ddl.Columns {
		names[col.Name] = true
	}
	return names
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, val := range values {
		if !seen[val] {
			seen[val] = true
			out = append(out, val)
		}
	}
	return out
}

// summarize narrates the run through the provider when one is wired,
// falling back to plain counts.
func (v *Validator) summarize(ctx context.Context, job Job, results []rules.Result) string {
	if v.generator != nil {
		lines := make([]string, len(results))
		for i, r := range results {
			lines[i] = fmt.Sprintf("- %s: %s - %s", r.RuleName, r.Status, r.Message)
		}
		summary, err := v.generator.Summarize(ctx, job.LegacyTable, job.ProdTable, lines)
		if err == nil && summary != "" {
			return summary
		}
		if err != nil {
			v.logger.Warn("summary generation failed", zap.Error(err))
		}
	}

	var info, passed, failed, errs int
	for _, r := range results {
		switch r.Status {
		case rules.StatusInfo:
			info++
		case rules.StatusPass:
			passed++
		case rules.StatusFail:
			failed++
		case rules.StatusError:
			errs++
		}
	}
	return fmt.Sprintf("Data comparison completed: %d informational reports, %d validations passed, %d failed, %d errors.",
		info, passed, failed, errs)
}
