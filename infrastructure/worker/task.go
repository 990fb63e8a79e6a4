package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Lane names. The ml lane runs one task at a time per process.
const (
	LaneDefault    = "default"
	LaneThumbnails = "thumbnails"
	LaneML         = "ml"
)

// Task is the queue envelope for one stage execution.
type Task struct {
	ID         uuid.UUID `json:"id"`
	RunID      uuid.UUID `json:"runId"`
	Graph      string    `json:"graph"`
	Stage      string    `json:"stage"`
	Lane       string    `json:"lane"`
	AssetID    uuid.UUID `json:"assetId"`
	OwnerID    uuid.UUID `json:"ownerId"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Encode serializes the task for the queue.
func (t *Task) Encode() ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode task: %w", err)
	}
	return data, nil
}

// DecodeTask parses a queue payload.
func DecodeTask(data []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &t, nil
}

// runKey is the state namespace for one pipeline run.
func (t *Task) runKey() string {
	return "run:" + t.RunID.String()
}

// TaskContext is handed to stage functions. It carries the task plus
// access to per-run shared state, so sibling stages on different
// workers can exchange results.
type TaskContext struct {
	Task  *Task
	state StateStore
}

// SetResult stores this stage's output in the run state as JSON.
func (tc *TaskContext) SetResult(ctx context.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal result for %s: %w", tc.Task.Stage, err)
	}
	return tc.state.SetResult(ctx, tc.Task.runKey(), tc.Task.Stage, data)
}

// Result loads another stage's output into v. The second return is
// false when that stage stored nothing.
func (tc *TaskContext) Result(ctx context.Context, stage string, v interface{}) (bool, error) {
	data, ok, err := tc.state.GetResult(ctx, tc.Task.runKey(), stage)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("unmarshal result of %s: %w", stage, err)
	}
	return true, nil
}

// Statuses reads the full stage status map of this run.
func (tc *TaskContext) Statuses(ctx context.Context) (map[string]string, error) {
	return tc.state.Statuses(ctx, tc.Task.runKey())
}
