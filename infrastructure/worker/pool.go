package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pixvault/pkg/logger"
)

// PoolConfig tunes the lane workers.
type PoolConfig struct {
	// LaneConcurrency maps lane name to worker goroutine count.
	LaneConcurrency map[string]int
	// RecycleAfter relaunches a lane worker after this many tasks to
	// bound native memory growth from inference sessions. 0 disables.
	RecycleAfter int
	MaxRetries   int
	BaseDelay    time.Duration
}

// DefaultPoolConfig mirrors production defaults: the ml lane is
// strictly serial per process.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		LaneConcurrency: map[string]int{
			LaneDefault:    4,
			LaneThumbnails: 2,
			LaneML:         1,
		},
		RecycleAfter: 100,
		MaxRetries:   3,
		BaseDelay:    2 * time.Second,
	}
}

// Pool runs lane workers consuming the task queue.
type Pool struct {
	orchestrator *Orchestrator
	queue        Queue
	config       PoolConfig

	// onRecycle runs when a lane worker retires, before its
	// replacement starts. Used to drop inference sessions.
	onRecycle func(lane string)

	// Worker control
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex

	breaker *CircuitBreaker
}

// CircuitBreaker prevents cascading failures
type CircuitBreaker struct {
	failures     int32
	threshold    int32
	resetTimeout time.Duration
	lastFailure  time.Time
	mu           sync.RWMutex
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(threshold int32, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
	}
}

// IsOpen returns true if circuit is open (should not proceed)
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if atomic.LoadInt32(&cb.failures) >= cb.threshold {
		// Check if reset timeout has passed
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			// Allow one request through (half-open state)
			return false
		}
		return true
	}
	return false
}

// RecordSuccess resets the failure count
func (cb *CircuitBreaker) RecordSuccess() {
	atomic.StoreInt32(&cb.failures, 0)
}

// RecordFailure increments failure count
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	atomic.AddInt32(&cb.failures, 1)
	cb.lastFailure = time.Now()
}

// GetFailures returns current failure count
func (cb *CircuitBreaker) GetFailures() int32 {
	return atomic.LoadInt32(&cb.failures)
}

func NewPool(orchestrator *Orchestrator, queue Queue, config PoolConfig, onRecycle func(lane string)) *Pool {
	return &Pool{
		orchestrator: orchestrator,
		queue:        queue,
		config:       config,
		onRecycle:    onRecycle,
		breaker:      NewCircuitBreaker(10, 60*time.Second),
	}
}

// Start launches the lane workers.
func (p *Pool) Start() {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	for lane, n := range p.config.LaneConcurrency {
		for i := 0; i < n; i++ {
			p.wg.Add(1)
			go p.runLane(lane)
		}
	}

	logger.Pipeline("pool_start", "Worker pool started", map[string]interface{}{
		"lanes": p.config.LaneConcurrency,
	})
}

// Stop stops the pool gracefully.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = false
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	logger.Pipeline("pool_stop", "Worker pool stopped", nil)
}

// IsRunning returns whether the pool is running.
func (p *Pool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isRunning
}

// runLane consumes one lane until recycled or stopped. Recycling
// relaunches a fresh goroutine so long-lived native resources get
// dropped on a clean boundary.
func (p *Pool) runLane(lane string) {
	defer p.wg.Done()

	processed := 0
	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		task, err := p.queue.Dequeue(p.ctx, lane)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			logger.PipelineError("dequeue", "Queue read failed", err, map[string]interface{}{"lane": lane})
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}

		p.processWithRetry(task)
		processed++

		if p.config.RecycleAfter > 0 && processed >= p.config.RecycleAfter {
			logger.Pipeline("worker_recycle", "Recycling lane worker", map[string]interface{}{
				"lane":      lane,
				"processed": processed,
			})
			if p.onRecycle != nil {
				p.onRecycle(lane)
			}
			p.wg.Add(1)
			go p.runLane(lane)
			return
		}
	}
}

// runHandler invokes a stage handler and converts a panic into a
// stage error so one bad asset cannot take a lane worker down.
func (p *Pool) runHandler(handler StageFunc, task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.PipelineError("stage_panic", "Stage handler panicked", fmt.Errorf("%v", r), map[string]interface{}{
				"stage":   task.Stage,
				"assetId": task.AssetID.String(),
			})
			err = fmt.Errorf("stage %s panicked: %v", task.Stage, r)
		}
	}()
	return handler(p.ctx, p.orchestrator.NewTaskContext(task))
}

// processWithRetry runs a task with exponential backoff, then records
// the terminal outcome with the orchestrator.
func (p *Pool) processWithRetry(task *Task) {
	handler, ok := p.orchestrator.Handler(task.Stage)
	if !ok {
		p.orchestrator.FailStage(p.ctx, task, &unknownStageError{stage: task.Stage})
		return
	}

	if p.breaker.IsOpen() {
		logger.Pipeline("breaker_open", "Circuit breaker open, requeueing task", map[string]interface{}{
			"stage":    task.Stage,
			"failures": p.breaker.GetFailures(),
		})
		time.Sleep(time.Second)
		if err := p.queue.Enqueue(p.ctx, task.Lane, task); err != nil {
			p.orchestrator.FailStage(p.ctx, task, err)
		}
		return
	}

	_ = p.orchestrator.State().SetStatus(p.ctx, task.runKey(), task.Stage, StatusRunning)

	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			delay := p.config.BaseDelay * time.Duration(1<<uint(attempt-1))
			logger.Pipeline("retry", "Retrying stage", map[string]interface{}{
				"stage":   task.Stage,
				"attempt": attempt,
				"delay":   delay.String(),
			})
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(delay):
			}
		}

		task.Attempt = attempt
		start := time.Now()
		err := p.runHandler(handler, task)
		if err == nil {
			p.breaker.RecordSuccess()
			logger.Pipeline("stage_done", "Stage completed", map[string]interface{}{
				"stage":    task.Stage,
				"assetId":  task.AssetID.String(),
				"duration": time.Since(start).String(),
			})
			if err := p.orchestrator.CompleteStage(p.ctx, task); err != nil {
				logger.PipelineError("advance", "Could not advance pipeline", err, map[string]interface{}{
					"stage": task.Stage,
				})
			}
			return
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	p.breaker.RecordFailure()
	p.orchestrator.FailStage(p.ctx, task, lastErr)
}

type unknownStageError struct {
	stage string
}

func (e *unknownStageError) Error() string {
	return "no handler registered for stage " + e.stage
}

// isRetryableError determines if an error is retryable
func isRetryableError(err error) bool {
	// Network errors, timeouts, and temporary failures are retryable
	errStr := err.Error()
	retryablePatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"503",
		"502",
		"504",
		"rate limit",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
