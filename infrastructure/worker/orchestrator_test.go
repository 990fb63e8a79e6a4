package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"pixvault/domain/models"
)

func testPoolConfig() PoolConfig {
	return PoolConfig{
		LaneConcurrency: map[string]int{
			LaneDefault:    1,
			LaneThumbnails: 1,
			LaneML:         1,
		},
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
	}
}

// recorder registers handlers that log their execution order.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) handler(name string, fn func() error) StageFunc {
	return func(ctx context.Context, tc *TaskContext) error {
		if fn != nil {
			if err := fn(); err != nil {
				return err
			}
		}
		r.mu.Lock()
		r.order = append(r.order, name)
		r.mu.Unlock()
		return nil
	}
}

func (r *recorder) ran(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.order {
		if n == name {
			return true
		}
	}
	return false
}

func (r *recorder) index(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return -1
}

func waitForStatus(t *testing.T, o *Orchestrator, runID uuid.UUID, stage, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		statuses, err := o.RunStatuses(context.Background(), runID)
		if err != nil {
			t.Fatal(err)
		}
		if statuses[stage] == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	statuses, _ := o.RunStatuses(context.Background(), runID)
	t.Fatalf("stage %s never reached %s: %v", stage, want, statuses)
}

func submitImage(t *testing.T, o *Orchestrator) uuid.UUID {
	t.Helper()
	asset := &models.Asset{ID: uuid.New(), OwnerID: uuid.New(), AssetType: models.AssetTypeImage}
	runID, err := o.SubmitAsset(context.Background(), asset)
	if err != nil {
		t.Fatal(err)
	}
	return runID
}

func TestImageGraphRunsInDependencyOrder(t *testing.T) {
	queue := NewMemoryQueue()
	state := NewMemoryState()
	o := NewOrchestrator(queue, state)

	rec := &recorder{}

	o.Register(StageMetadataExtract, rec.handler(StageMetadataExtract, nil))
	o.Register(StageThumbnails, rec.handler(StageThumbnails, nil))
	o.Register(StageCommitExtraction, rec.handler(StageCommitExtraction, nil))
	o.Register(StageCommitMetadata, rec.handler(StageCommitMetadata, nil))
	o.Register(StageFaceDetectEmbed, rec.handler(StageFaceDetectEmbed, nil))
	o.Register(StageObjectDetect, rec.handler(StageObjectDetect, nil))
	o.Register(StageSceneClassify, rec.handler(StageSceneClassify, nil))
	o.Register(StageClusterFaces, rec.handler(StageClusterFaces, nil))

	pool := NewPool(o, queue, testPoolConfig(), nil)
	pool.Start()
	defer pool.Stop()

	submitImage(t, o)

	// Wait for the terminal stage.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && !rec.ran(StageClusterFaces) {
		time.Sleep(5 * time.Millisecond)
	}
	if !rec.ran(StageClusterFaces) {
		t.Fatalf("cluster stage never ran; order: %v", rec.order)
	}

	// Join ordering: commit after both roots, ml stages after commit,
	// cluster after faces.
	if rec.index(StageCommitExtraction) < rec.index(StageMetadataExtract) ||
		rec.index(StageCommitExtraction) < rec.index(StageThumbnails) {
		t.Errorf("join ran before its dependencies: %v", rec.order)
	}
	if rec.index(StageFaceDetectEmbed) < rec.index(StageCommitMetadata) {
		t.Errorf("ml stage ran before commit: %v", rec.order)
	}
	if rec.index(StageClusterFaces) < rec.index(StageFaceDetectEmbed) {
		t.Errorf("cluster ran before face stage: %v", rec.order)
	}
}

func TestFailedStageBlocksDependentsOnly(t *testing.T) {
	queue := NewMemoryQueue()
	state := NewMemoryState()
	o := NewOrchestrator(queue, state)

	rec := &recorder{}

	// Metadata fails permanently with a non-retryable error.
	o.Register(StageMetadataExtract, func(ctx context.Context, tc *TaskContext) error {
		return errors.New("corrupt file")
	})
	o.Register(StageThumbnails, rec.handler(StageThumbnails, nil))
	o.Register(StageCommitExtraction, rec.handler(StageCommitExtraction, nil))
	o.Register(StageCommitMetadata, rec.handler(StageCommitMetadata, nil))
	o.Register(StageFaceDetectEmbed, rec.handler(StageFaceDetectEmbed, nil))
	o.Register(StageObjectDetect, rec.handler(StageObjectDetect, nil))
	o.Register(StageSceneClassify, rec.handler(StageSceneClassify, nil))
	o.Register(StageClusterFaces, rec.handler(StageClusterFaces, nil))

	pool := NewPool(o, queue, testPoolConfig(), nil)
	pool.Start()
	defer pool.Stop()

	runID := submitImage(t, o)

	waitForStatus(t, o, runID, StageMetadataExtract, StatusFailed)
	waitForStatus(t, o, runID, StageThumbnails, StatusDone)

	// The sibling branch survived; the join never fired.
	time.Sleep(50 * time.Millisecond)
	if rec.ran(StageCommitExtraction) {
		t.Error("join ran despite failed dependency")
	}
	if rec.ran(StageClusterFaces) {
		t.Error("downstream stage ran despite failed dependency")
	}
}

func TestRetryableErrorIsRetried(t *testing.T) {
	queue := NewMemoryQueue()
	state := NewMemoryState()
	o := NewOrchestrator(queue, state)

	var attempts int32
	var mu sync.Mutex
	done := make(chan struct{})

	o.Register(StageVideoProbe, func(ctx context.Context, tc *TaskContext) error {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 2 {
			return errors.New("connection refused")
		}
		return nil
	})
	o.Register(StageVideoThumbnail, func(ctx context.Context, tc *TaskContext) error {
		close(done)
		return nil
	})
	o.Register(StageCommitMetadata, func(ctx context.Context, tc *TaskContext) error {
		return nil
	})

	pool := NewPool(o, queue, testPoolConfig(), nil)
	pool.Start()
	defer pool.Stop()

	asset := &models.Asset{ID: uuid.New(), OwnerID: uuid.New(), AssetType: models.AssetTypeVideo}
	if _, err := o.SubmitAsset(context.Background(), asset); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dependent stage never ran after retry")
	}

	mu.Lock()
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	mu.Unlock()
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"dial tcp: connection refused", true},
		{"request timeout exceeded", true},
		{"geocode request: status 503", true},
		{"corrupt image header", false},
		{"no face detected", false},
	}

	for _, tt := range tests {
		if got := isRetryableError(errors.New(tt.msg)); got != tt.want {
			t.Errorf("isRetryableError(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestMemoryStateClaimIsExclusive(t *testing.T) {
	state := NewMemoryState()
	ctx := context.Background()

	if err := state.InitRun(ctx, "run:x", []string{"a"}); err != nil {
		t.Fatal(err)
	}

	ok, err := state.Claim(ctx, "run:x", "a")
	if err != nil || !ok {
		t.Fatalf("first claim = (%v, %v)", ok, err)
	}
	ok, err = state.Claim(ctx, "run:x", "a")
	if err != nil || ok {
		t.Fatalf("second claim = (%v, %v), want denied", ok, err)
	}
}

func TestMemoryStateLockTTL(t *testing.T) {
	state := NewMemoryState()
	ctx := context.Background()

	ok, _ := state.AcquireLock(ctx, "cluster:owner1", 10*time.Millisecond)
	if !ok {
		t.Fatal("first acquire failed")
	}
	ok, _ = state.AcquireLock(ctx, "cluster:owner1", 10*time.Millisecond)
	if ok {
		t.Fatal("lock acquired while held")
	}

	time.Sleep(15 * time.Millisecond)
	ok, _ = state.AcquireLock(ctx, "cluster:owner1", 10*time.Millisecond)
	if !ok {
		t.Fatal("lock not reacquirable after TTL")
	}

	_ = state.ReleaseLock(ctx, "cluster:owner1")
}
