// Package workqueue runs validation checks with bounded concurrency. Query
// tasks hold Athena slots and provider tasks hold LLM slots; a strategy
// keeps each lane within its limit while transient failures are retried
// with backoff.
package workqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lakecheck/lakecheck/pkg/retry"
)

// DefaultRetryConfig bounds transient-error retries for batch runs. A
// throttled workgroup gets two more chances, 2s then 4s apart.
func DefaultRetryConfig() *retry.Config {
	return &retry.Config{
		MaxRetries:       2,
		InitialDelay:     2 * time.Second,
		MaxDelay:         30 * time.Second,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 3,
	}
}

// Queue executes tasks under a concurrency strategy and records outcomes
// in completion order. A queue can be reused for consecutive batches.
type Queue struct {
	mu        sync.Mutex
	tasks     []*TaskState
	finished  []*TaskState
	cancelled bool

	strategy ConcurrencyStrategy
	retryCfg *retry.Config

	// done is closed when all tasks reach a terminal state
	done chan struct{}
	wg   sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	logger *zap.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithStrategy sets the concurrency strategy.
func WithStrategy(strategy ConcurrencyStrategy) Option {
	return func(q *Queue) {
		if strategy != nil {
			q.strategy = strategy
		}
	}
}

// WithRetry sets the retry configuration for transient task failures.
func WithRetry(cfg *retry.Config) Option {
	return func(q *Queue) {
		if cfg != nil {
			q.retryCfg = cfg
		}
	}
}

// New creates a work queue. The default strategy serializes each lane.
func New(logger *zap.Logger, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:    make([]*TaskState, 0),
		strategy: NewSerializedStrategy(),
		retryCfg: DefaultRetryConfig(),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.Named("workqueue"),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Enqueue adds a task and starts it as soon as its lane has capacity.
func (q *Queue) Enqueue(task Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancelled {
		q.logger.Warn("queue cancelled, ignoring enqueue",
			zap.String("task_id", task.ID()),
			zap.String("task_name", task.Name()))
		return
	}

	q.resetDoneLocked()

	state := NewTaskState(task)
	q.tasks = append(q.tasks, state)

	q.logger.Debug("task enqueued",
		zap.String("task_id", task.ID()),
		zap.String("task_name", task.Name()),
		zap.Bool("uses_llm", task.UsesLLM()))

	q.tryStartLocked()
}

// tryStartLocked starts every pending task whose lane has capacity.
// Must be called with the lock held.
func (q *Queue) tryStartLocked() {
	if q.cancelled {
		return
	}

	for _, ts := range q.tasks {
		if ts.GetStatus() != TaskStatusPending {
			continue
		}

		llmTask := ts.Task.UsesLLM()

		if llmTask && !q.strategy.CanStartLLM() {
			continue
		}
		if !llmTask && !q.strategy.CanStartQuery() {
			continue
		}

		if llmTask {
			q.strategy.OnStartLLM()
		} else {
			q.strategy.OnStartQuery()
		}
		ts.SetStatus(TaskStatusRunning)

		q.logger.Debug("starting task",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()))

		q.wg.Add(1)
		go q.runTask(ts)
	}
}

// runTask executes one task, retrying transient failures.
func (q *Queue) runTask(ts *TaskState) {
	defer q.wg.Done()

	attempts := 0
	err := retry.DoIfRetryable(q.ctx, q.retryCfg, func() error {
		attempts++
		return ts.Task.Run(q.ctx)
	})
	ts.SetOutcome(attempts, err)

	q.completeTask(ts, err)
}

// completeTask records the terminal state, frees the lane slot, and starts
// whatever was waiting on it.
func (q *Queue) completeTask(ts *TaskState, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ts.Task.UsesLLM() {
		q.strategy.OnDoneLLM()
	} else {
		q.strategy.OnDoneQuery()
	}

	switch {
	case err == nil:
		ts.SetStatus(TaskStatusCompleted)
		q.logger.Debug("task completed",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()))
	case errors.Is(err, context.Canceled):
		ts.SetStatus(TaskStatusCancelled)
		q.logger.Info("task cancelled",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()))
	default:
		ts.SetStatus(TaskStatusFailed)
		q.logger.Warn("task failed",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()),
			zap.Error(err))
	}
	q.finished = append(q.finished, ts)

	if q.allTasksDoneLocked() {
		q.closeDoneLocked()
		return
	}

	q.tryStartLocked()
}

// allTasksDoneLocked returns true if every task is in a terminal state.
// Must be called with the lock held.
func (q *Queue) allTasksDoneLocked() bool {
	for _, ts := range q.tasks {
		status := ts.GetStatus()
		if status == TaskStatusPending || status == TaskStatusRunning {
			return false
		}
	}
	return true
}

// closeDoneLocked safely closes the done channel.
func (q *Queue) closeDoneLocked() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
}

// resetDoneLocked recreates the done channel if a previous batch closed
// it, so the queue can run consecutive batches.
func (q *Queue) resetDoneLocked() {
	select {
	case <-q.done:
		q.done = make(chan struct{})
	default:
	}
}

// Wait blocks until all tasks reach a terminal state or the context is
// cancelled. It returns nil for an empty queue, the first task error when
// any task failed, and ctx.Err() on cancellation.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	if len(q.tasks) == 0 {
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		q.mu.Lock()
		defer q.mu.Unlock()
		for _, ts := range q.tasks {
			if ts.GetStatus() == TaskStatusFailed {
				return ts.GetError()
			}
		}
		return nil
	case <-ctx.Done():
		q.Cancel()
		return ctx.Err()
	}
}

// Cancel stops accepting tasks, signals running tasks through their
// context, and marks pending tasks cancelled.
func (q *Queue) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancelled {
		return
	}

	q.cancelled = true
	q.logger.Info("queue cancelled, signaling running tasks to stop")

	q.cancel()

	for _, ts := range q.tasks {
		if ts.GetStatus() == TaskStatusPending {
			ts.SetStatus(TaskStatusCancelled)
		}
	}

	if q.allTasksDoneLocked() {
		q.closeDoneLocked()
	}
}

// Finished returns snapshots of the tasks that ran, in completion order.
func (q *Queue) Finished() []TaskSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	snapshots := make([]TaskSnapshot, len(q.finished))
	for i, ts := range q.finished {
		snapshots[i] = ts.Snapshot()
	}
	return snapshots
}

// TaskCount returns the total number of tasks.
func (q *Queue) TaskCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Progress returns a progress summary.
func (q *Queue) Progress() Progress {
	q.mu.Lock()
	defer q.mu.Unlock()

	p := Progress{Total: len(q.tasks)}
	for _, ts := range q.tasks {
		switch ts.GetStatus() {
		case TaskStatusPending:
			p.Pending++
		case TaskStatusRunning:
			p.Running++
		case TaskStatusCompleted:
			p.Completed++
		case TaskStatusFailed:
			p.Failed++
		case TaskStatusCancelled:
			p.Cancelled++
		}
	}
	return p
}

// Progress holds queue progress statistics.
type Progress struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Percentage returns the completion percentage (0-100).
func (p Progress) Percentage() int {
	if p.Total == 0 {
		return 100
	}
	done := p.Completed + p.Failed + p.Cancelled
	return (done * 100) / p.Total
}
