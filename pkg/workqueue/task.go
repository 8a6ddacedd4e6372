package workqueue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a queued check.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Task is one unit of validation work.
type Task interface {
	// ID returns a unique identifier for this task.
	ID() string

	// Name returns a human-readable name for logs and reports.
	Name() string

	// UsesLLM reports whether the task occupies the provider lane.
	// Generation calls are throttled separately from Athena queries.
	UsesLLM() bool

	// Run executes the task. The context is cancelled when the queue is.
	Run(ctx context.Context) error
}

// TaskState holds the runtime state of a task.
type TaskState struct {
	Task        Task
	Status      TaskStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
	Attempts    int
	Err         error

	mu sync.RWMutex
}

// NewTaskState wraps a task in its pending state.
func NewTaskState(task Task) *TaskState {
	return &TaskState{
		Task:   task,
		Status: TaskStatusPending,
	}
}

func (ts *TaskState) GetStatus() TaskStatus {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.Status
}

// SetStatus updates the status and timestamps.
func (ts *TaskState) SetStatus(status TaskStatus) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.Status = status
	now := time.Now()

	switch status {
	case TaskStatusRunning:
		ts.StartedAt = &now
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		ts.CompletedAt = &now
	}
}

func (ts *TaskState) SetOutcome(attempts int, err error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.Attempts = attempts
	ts.Err = err
}

func (ts *TaskState) GetError() error {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.Err
}

// Snapshot returns an immutable copy of the task state.
func (ts *TaskState) Snapshot() TaskSnapshot {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	var errMsg string
	if ts.Err != nil {
		errMsg = ts.Err.Error()
	}

	return TaskSnapshot{
		ID:          ts.Task.ID(),
		Name:        ts.Task.Name(),
		UsesLLM:     ts.Task.UsesLLM(),
		Status:      ts.Status,
		StartedAt:   ts.StartedAt,
		CompletedAt: ts.CompletedAt,
		Attempts:    ts.Attempts,
		Error:       errMsg,
	}
}

// TaskSnapshot is an immutable view of task state for reporting.
type TaskSnapshot struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	UsesLLM     bool       `json:"uses_llm"`
	Status      TaskStatus `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Attempts    int        `json:"attempts,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// BaseTask provides identity for concrete task implementations. Embed it
// and implement Run.
type BaseTask struct {
	id      string
	name    string
	usesLLM bool
}

// NewBaseTask assigns a fresh task ID.
func NewBaseTask(name string, usesLLM bool) BaseTask {
	return BaseTask{
		id:      uuid.New().String(),
		name:    name,
		usesLLM: usesLLM,
	}
}

func (t BaseTask) ID() string { return t.id }

func (t BaseTask) Name() string { return t.name }

func (t BaseTask) UsesLLM() bool { return t.usesLLM }
