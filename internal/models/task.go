package models

import (
	"fmt"
	"sync"
	"time"
)

// TaskStatus enumerates the lifecycle of an analysis task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// TaskRecord tracks the progress of one analysis request. Transitions are
// pending -> running -> {completed, failed, cancelled}; terminal states are
// final.
type TaskRecord struct {
	mu          sync.Mutex
	ID          string
	status      TaskStatus
	progress    int
	currentStep string
	err         string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// NewTaskRecord creates a pending task.
func NewTaskRecord(id string) *TaskRecord {
	return &TaskRecord{ID: id, status: TaskPending}
}

// Status returns the current status.
func (t *TaskRecord) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Progress returns (progress 0-100, current step label).
func (t *TaskRecord) Progress() (int, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress, t.currentStep
}

// Err returns the recorded failure message, if any.
func (t *TaskRecord) Err() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Start moves pending -> running.
func (t *TaskRecord) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TaskPending {
		return fmt.Errorf("cannot start task in state %q", t.status)
	}
	t.status = TaskRunning
	t.StartedAt = time.Now().UTC()
	return nil
}

// Update records progress while running. Out-of-range values are clamped.
func (t *TaskRecord) Update(progress int, step string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TaskRunning {
		return
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	t.progress = progress
	t.currentStep = step
}

// Complete moves running -> completed.
func (t *TaskRecord) Complete() {
	t.finish(TaskCompleted, "")
}

// Fail moves running -> failed with a message.
func (t *TaskRecord) Fail(msg string) {
	t.finish(TaskFailed, msg)
}

// Cancel moves pending or running -> cancelled.
func (t *TaskRecord) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return
	}
	t.status = TaskCancelled
	t.FinishedAt = time.Now().UTC()
}

func (t *TaskRecord) finish(status TaskStatus, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return
	}
	t.status = status
	t.err = msg
	if status == TaskCompleted {
		t.progress = 100
	}
	t.FinishedAt = time.Now().UTC()
}
