package worker

import (
	"context"
	"sync"
	"time"
)

// Stage status values tracked per run.
const (
	StatusPending = "pending"
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// StateStore tracks per-run stage state plus cross-worker locks. The
// redis implementation makes fan-in joins work across processes; the
// memory implementation backs single-process deployments and tests.
type StateStore interface {
	// InitRun creates the run record with every stage pending.
	InitRun(ctx context.Context, runKey string, stages []string) error
	SetStatus(ctx context.Context, runKey, stage, status string) error
	Statuses(ctx context.Context, runKey string) (map[string]string, error)
	// Claim atomically transitions pending→queued; false means another
	// worker already claimed the stage.
	Claim(ctx context.Context, runKey, stage string) (bool, error)
	SetResult(ctx context.Context, runKey, stage string, data []byte) error
	GetResult(ctx context.Context, runKey, stage string) ([]byte, bool, error)

	// AcquireLock takes a named lock with a TTL; false means held.
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error
}

// MemoryState is an in-process StateStore.
type MemoryState struct {
	mu      sync.Mutex
	runs    map[string]map[string]string
	results map[string]map[string][]byte
	locks   map[string]time.Time
}

func NewMemoryState() *MemoryState {
	return &MemoryState{
		runs:    make(map[string]map[string]string),
		results: make(map[string]map[string][]byte),
		locks:   make(map[string]time.Time),
	}
}

func (m *MemoryState) InitRun(ctx context.Context, runKey string, stages []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make(map[string]string, len(stages))
	for _, s := range stages {
		statuses[s] = StatusPending
	}
	m.runs[runKey] = statuses
	m.results[runKey] = make(map[string][]byte)
	return nil
}

func (m *MemoryState) SetStatus(ctx context.Context, runKey, stage, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if run, ok := m.runs[runKey]; ok {
		run[stage] = status
	}
	return nil
}

func (m *MemoryState) Statuses(ctx context.Context, runKey string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string)
	for k, v := range m.runs[runKey] {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryState) Claim(ctx context.Context, runKey, stage string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runKey]
	if !ok {
		return false, nil
	}
	if run[stage] != StatusPending {
		return false, nil
	}
	run[stage] = StatusQueued
	return true, nil
}

func (m *MemoryState) SetResult(ctx context.Context, runKey, stage string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if results, ok := m.results[runKey]; ok {
		results[stage] = data
	}
	return nil
}

func (m *MemoryState) GetResult(ctx context.Context, runKey, stage string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.results[runKey][stage]
	return data, ok, nil
}

func (m *MemoryState) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if expiry, held := m.locks[name]; held && time.Now().Before(expiry) {
		return false, nil
	}
	m.locks[name] = time.Now().Add(ttl)
	return true, nil
}

func (m *MemoryState) ReleaseLock(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.locks, name)
	return nil
}
