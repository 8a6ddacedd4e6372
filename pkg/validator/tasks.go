package validator

import (
	"context"
	"errors"
	"sync"

	"github.com/lakecheck/lakecheck/pkg/rules"
	"github.com/lakecheck/lakecheck/pkg/workqueue"
)

// checkTask is a queue task that yields a rule result once the queue
// drains. A task that never stored one reports the failure recorded in
// its snapshot instead.
type checkTask interface {
	workqueue.Task
	result(snap workqueue.TaskSnapshot) rules.Result
}

func failedResult(name, message string, snap workqueue.TaskSnapshot) rules.Result {
	return rules.Result{
		RuleName:     name,
		Status:       rules.StatusError,
		Message:      message,
		ErrorDetails: snap.Error,
	}
}

// ruleTask executes one SQL rule: render the pair, run both sides, judge
// the rows. Execution errors go back to the queue so transient failures
// are retried there.
type ruleTask struct {
	workqueue.BaseTask
	rule     rules.Rule
	job      Job
	executor QueryExecutor

	res *rules.Result
}

func newRuleTask(rule rules.Rule, job Job, executor QueryExecutor) *ruleTask {
	return &ruleTask{
		BaseTask: workqueue.NewBaseTask(rule.Name(), false),
		rule:     rule,
		job:      job,
		executor: executor,
	}
}

func (t *ruleTask) Run(ctx context.Context) error {
	pair := t.rule.SQL(t.job.LegacyTable, t.job.ProdTable)
	legacyRows, prodRows, err := executePair(ctx, t.executor, pair.LegacySQL, pair.ProdSQL)
	if err != nil {
		return err
	}
	res := t.rule.Evaluate(legacyRows, prodRows)
	t.res = &res
	return nil
}

func (t *ruleTask) result(snap workqueue.TaskSnapshot) rules.Result {
	if t.res != nil {
		return *t.res
	}
	return failedResult(t.rule.Name(), "Execution error", snap)
}

// schemaTask compares catalog snapshots instead of running SQL.
type schemaTask struct {
	workqueue.BaseTask
	catalog Catalog
	job     Job

	res *rules.Result
}

func newSchemaTask(catalog Catalog, job Job) *schemaTask {
	return &schemaTask{
		BaseTask: workqueue.NewBaseTask(rules.SchemaRuleName, false),
		catalog:  catalog,
		job:      job,
	}
}

func (t *schemaTask) Run(ctx context.Context) error {
	if t.catalog == nil {
		return errors.New("catalog not configured")
	}
	legacy, err := t.catalog.TableDetails(ctx, t.job.LegacyTable)
	if err != nil {
		return err
	}
	prod, err := t.catalog.TableDetails(ctx, t.job.ProdTable)
	if err != nil {
		return err
	}
	res := rules.CompareSchemas(legacy, prod)
	t.res = &res
	return nil
}

func (t *schemaTask) result(snap workqueue.TaskSnapshot) rules.Result {
	if t.res != nil {
		return *t.res
	}
	return failedResult(rules.SchemaRuleName, "Execution error", snap)
}

// executePair runs both sides of a query pair concurrently. A pair with an
// empty prod statement runs one side only. The legacy error wins when both
// sides fail.
func executePair(ctx context.Context, executor QueryExecutor, legacySQL, prodSQL string) ([]map[string]string, []map[string]string, error) {
	if prodSQL == "" {
		legacyRows, err := executor.Execute(ctx, legacySQL)
		if err != nil {
			return nil, nil, err
		}
		return legacyRows, nil, nil
	}

	var (
		wg         sync.WaitGroup
		legacyRows []map[string]string
		prodRows   []map[string]string
		legacyErr  error
		prodErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		legacyRows, legacyErr = executor.Execute(ctx, legacySQL)
	}()
	go func() {
		defer wg.Done()
		prodRows, prodErr = executor.Execute(ctx, prodSQL)
	}()
	wg.Wait()

	if legacyErr != nil {
		return nil, nil, legacyErr
	}
	if prodErr != nil {
		return nil, nil, prodErr
	}
	return legacyRows, prodRows, nil
}
