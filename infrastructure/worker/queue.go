package worker

import (
	"context"
	"sync"
)

// Queue moves tasks between the orchestrator and lane workers.
type Queue interface {
	Enqueue(ctx context.Context, lane string, task *Task) error
	// Dequeue blocks briefly waiting for a task; (nil, nil) means the
	// lane was empty and the caller should poll again.
	Dequeue(ctx context.Context, lane string) (*Task, error)
}

// MemoryQueue is an in-process Queue backed by buffered channels.
type MemoryQueue struct {
	mu    sync.Mutex
	lanes map[string]chan *Task
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{lanes: make(map[string]chan *Task)}
}

func (q *MemoryQueue) lane(name string) chan *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch, ok := q.lanes[name]
	if !ok {
		ch = make(chan *Task, 1024)
		q.lanes[name] = ch
	}
	return ch
}

func (q *MemoryQueue) Enqueue(ctx context.Context, lane string, task *Task) error {
	select {
	case q.lane(lane) <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, lane string) (*Task, error) {
	select {
	case task := <-q.lane(lane):
		return task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
