// Package athena executes SQL against AWS Athena and stages results in S3.
package athena

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	defaultDatabase     = "default"
	defaultTimeout      = 5 * time.Minute
	defaultPollInterval = time.Second
)

// QueryAPI is the slice of the Athena client the executor depends on.
type QueryAPI interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
}

// ObjectStoreAPI is the slice of the S3 client used for the output preflight.
type ObjectStoreAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// ExecutionError is a query failure reported by Athena. Reason carries the
// raw StateChangeReason so callers can classify syntax errors by substring.
type ExecutionError struct {
	QueryID string
	State   string
	Reason  string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query %s %s: %s", e.QueryID, strings.ToLower(e.State), e.Reason)
}

// Config carries executor settings. Zero values fall back to the default
// database, a 5 minute query timeout, and 1s polling.
type Config struct {
	Database       string
	Workgroup      string
	OutputLocation string
	Timeout        time.Duration
	PollInterval   time.Duration
}

// Executor runs single statements through the Athena API and returns their
// result rows as string maps keyed by column name.
type Executor struct {
	client         QueryAPI
	store          ObjectStoreAPI
	database       string
	workgroup      string
	outputLocation string
	timeout        time.Duration
	pollInterval   time.Duration
	logger         *zap.Logger
}

func NewExecutor(client QueryAPI, store ObjectStoreAPI, cfg Config, logger *zap.Logger) *Executor {
	if cfg.Database == "" {
		cfg.Database = defaultDatabase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	logger = logger.Named("athena")

	output := cfg.OutputLocation
	if output != "" {
		// A bare bucket URL gets a folder prefix so result objects do not
		// land in the bucket root.
		if bucket, prefix, err := parseS3URL(output); err == nil && prefix == "" {
			output = fmt.Sprintf("s3://%s/athena-results/", bucket)
			logger.Info("output location had no prefix, using default folder",
				zap.String("output_location", output))
		}
	}

	return &Executor{
		client:         client,
		store:          store,
		database:       cfg.Database,
		workgroup:      cfg.Workgroup,
		outputLocation: output,
		timeout:        cfg.Timeout,
		pollInterval:   cfg.PollInterval,
		logger:         logger,
	}
}

// OutputLocation returns the effective result location, empty when the
// workgroup default is in use.
func (e *Executor) OutputLocation() string { return e.outputLocation }

// Execute runs one statement and returns its rows with the header row
// stripped. The executor's timeout bounds the whole run.
func (e *Executor) Execute(ctx context.Context, sql string) ([]map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	input := &athena.StartQueryExecutionInput{
		QueryString:           aws.String(sql),
		QueryExecutionContext: &types.QueryExecutionContext{Database: aws.String(e.database)},
	}
	if e.workgroup != "" {
		input.WorkGroup = aws.String(e.workgroup)
	}
	if e.outputLocation != "" {
		input.ResultConfiguration = &types.ResultConfiguration{
			OutputLocation: aws.String(e.outputLocation),
		}
	}

	started, err := e.client.StartQueryExecution(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("start query execution: %w", err)
	}
	queryID := aws.ToString(started.QueryExecutionId)
	e.logger.Debug("query started", zap.String("query_id", queryID))

	if err := e.waitForCompletion(ctx, queryID); err != nil {
		return nil, err
	}
	return e.fetchResults(ctx, queryID)
}

func (e *Executor) waitForCompletion(ctx context.Context, queryID string) error {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		out, err := e.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(queryID),
		})
		if err != nil {
			return fmt.Errorf("get query execution: %w", err)
		}
		if out.QueryExecution == nil || out.QueryExecution.Status == nil {
			return fmt.Errorf("query %s: empty execution status", queryID)
		}

		status := out.QueryExecution.Status
		switch status.State {
		case types.QueryExecutionStateSucceeded:
			return nil
		case types.QueryExecutionStateFailed, types.QueryExecutionStateCancelled:
			return &ExecutionError{
				QueryID: queryID,
				State:   string(status.State),
				Reason:  aws.ToString(status.StateChangeReason),
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("query %s timed out: %w", queryID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (e *Executor) fetchResults(ctx context.Context, queryID string) ([]map[string]string, error) {
	var (
		rows      []map[string]string
		columns   []string
		nextToken *string
		firstPage = true
	)

	for {
		out, err := e.client.GetQueryResults(ctx, &athena.GetQueryResultsInput{
			QueryExecutionId: aws.String(queryID),
			NextToken:        nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("get query results: %w", err)
		}
		if out.ResultSet == nil {
			break
		}

		if columns == nil && out.ResultSet.ResultSetMetadata != nil {
			for _, info := range out.ResultSet.ResultSetMetadata.ColumnInfo {
				columns = append(columns, aws.ToString(info.Name))
			}
		}

		data := out.ResultSet.Rows
		// Athena repeats the column names as the first row of the first page.
		if firstPage && len(data) > 0 {
			data = data[1:]
		}
		firstPage = false

		for _, r := range data {
			row := make(map[string]string, len(columns))
			for i, datum := range r.Data {
				if i < len(columns) {
					row[columns[i]] = aws.ToString(datum.VarCharValue)
				}
			}
			rows = append(rows, row)
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	e.logger.Debug("query results fetched",
		zap.String("query_id", queryID),
		zap.Int("rows", len(rows)))
	return rows, nil
}

// TestConnection runs a trivial statement to confirm Athena is reachable
// with the current credentials.
func (e *Executor) TestConnection(ctx context.Context) error {
	if _, err := e.Execute(ctx, "SELECT 1 AS test_value"); err != nil {
		return fmt.Errorf("athena connection test: %w", err)
	}
	return nil
}

// TableAccessible confirms the table can be queried at all, independent of
// any validation rule.
func (e *Executor) TableAccessible(ctx context.Context, table string) error {
	sql := fmt.Sprintf("SELECT COUNT(*) AS row_count FROM %s LIMIT 1", table)
	if _, err := e.Execute(ctx, sql); err != nil {
		return fmt.Errorf("table %s not accessible: %w", table, err)
	}
	return nil
}

// PreflightOutputLocation writes and removes a probe object under the
// configured result prefix, proving the credentials can stage query output
// before any query runs. A workgroup-default location needs no probe.
func (e *Executor) PreflightOutputLocation(ctx context.Context) error {
	if e.outputLocation == "" {
		return nil
	}
	bucket, prefix, err := parseS3URL(e.outputLocation)
	if err != nil {
		return err
	}

	if _, err := e.store.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return fmt.Errorf("cannot access bucket %s: %w", bucket, err)
	}

	key := fmt.Sprintf("%sathena-preflight/%d.txt", prefix, time.Now().Unix())
	if _, err := e.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader("athena preflight test"),
	}); err != nil {
		return fmt.Errorf("cannot write to s3://%s/%s: %w", bucket, prefix, err)
	}
	if _, err := e.store.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		e.logger.Warn("could not remove preflight object",
			zap.String("key", key),
			zap.Error(err))
	}

	e.logger.Debug("output location verified", zap.String("output_location", e.outputLocation))
	return nil
}

// parseS3URL splits s3://bucket/prefix into its parts, normalizing the
// prefix to end with a slash.
func parseS3URL(raw string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(raw, "s3://") {
		return "", "", fmt.Errorf("invalid S3 URL: %s", raw)
	}
	bucket, prefix, _ = strings.Cut(strings.TrimPrefix(raw, "s3://"), "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid S3 URL: %s", raw)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix, nil
}
