package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pixvault/domain/models"
	"pixvault/pkg/logger"
)

// StageFunc executes one pipeline stage. Stage functions must be
// idempotent; delivery is at-least-once.
type StageFunc func(ctx context.Context, tc *TaskContext) error

// Orchestrator owns the pipeline graphs: it starts runs, enqueues
// stages whose dependencies completed, and records terminal state.
type Orchestrator struct {
	queue    Queue
	state    StateStore
	graphs   map[string]*Graph
	handlers map[string]StageFunc
}

func NewOrchestrator(queue Queue, state StateStore) *Orchestrator {
	return &Orchestrator{
		queue:  queue,
		state:  state,
		graphs: map[string]*Graph{
			GraphImage: ImageGraph(),
			GraphVideo: VideoGraph(),
		},
		handlers: make(map[string]StageFunc),
	}
}

// Register binds a stage name to its handler. Panics on duplicates so
// wiring mistakes surface at startup.
func (o *Orchestrator) Register(stage string, fn StageFunc) {
	if _, exists := o.handlers[stage]; exists {
		panic("duplicate stage handler: " + stage)
	}
	o.handlers[stage] = fn
}

// Handler returns the registered handler for a stage.
func (o *Orchestrator) Handler(stage string) (StageFunc, bool) {
	fn, ok := o.handlers[stage]
	return fn, ok
}

// SubmitAsset starts a pipeline run for an asset and returns the run ID.
// The graph is chosen by asset type; root stages are enqueued immediately.
func (o *Orchestrator) SubmitAsset(ctx context.Context, asset *models.Asset) (uuid.UUID, error) {
	graphName := GraphImage
	if asset.AssetType == models.AssetTypeVideo {
		graphName = GraphVideo
	}
	graph := o.graphs[graphName]

	runID := uuid.New()
	task := &Task{
		RunID:   runID,
		Graph:   graphName,
		AssetID: asset.ID,
		OwnerID: asset.OwnerID,
	}

	if err := o.state.InitRun(ctx, task.runKey(), graph.StageNames()); err != nil {
		return uuid.Nil, err
	}

	for _, root := range graph.Roots() {
		if err := o.enqueueStage(ctx, task, root); err != nil {
			return uuid.Nil, err
		}
	}

	logger.Pipeline("run_start", "Pipeline run started", map[string]interface{}{
		"runId":   runID.String(),
		"graph":   graphName,
		"assetId": asset.ID.String(),
	})

	return runID, nil
}

func (o *Orchestrator) enqueueStage(ctx context.Context, base *Task, stage StageDef) error {
	claimed, err := o.state.Claim(ctx, base.runKey(), stage.Name)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	task := &Task{
		ID:         uuid.New(),
		RunID:      base.RunID,
		Graph:      base.Graph,
		Stage:      stage.Name,
		Lane:       stage.Lane,
		AssetID:    base.AssetID,
		OwnerID:    base.OwnerID,
		EnqueuedAt: time.Now(),
	}
	if err := o.queue.Enqueue(ctx, stage.Lane, task); err != nil {
		return err
	}
	return nil
}

// CompleteStage records a successful stage and enqueues every
// dependent whose dependencies are now all done.
func (o *Orchestrator) CompleteStage(ctx context.Context, task *Task) error {
	if err := o.state.SetStatus(ctx, task.runKey(), task.Stage, StatusDone); err != nil {
		return err
	}

	graph, ok := o.graphs[task.Graph]
	if !ok {
		return fmt.Errorf("unknown graph %q", task.Graph)
	}

	statuses, err := o.state.Statuses(ctx, task.runKey())
	if err != nil {
		return err
	}
	statuses[task.Stage] = StatusDone

	for _, dep := range graph.Dependents(task.Stage) {
		ready := true
		for _, need := range dep.DependsOn {
			if statuses[need] != StatusDone {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		if err := o.enqueueStage(ctx, task, dep); err != nil {
			return err
		}
	}

	return nil
}

// FailStage records a permanently failed stage. Dependents never run;
// sibling branches continue untouched.
func (o *Orchestrator) FailStage(ctx context.Context, task *Task, cause error) {
	if err := o.state.SetStatus(ctx, task.runKey(), task.Stage, StatusFailed); err != nil {
		logger.PipelineError("fail_stage", "Could not record stage failure", err, map[string]interface{}{
			"runId": task.RunID.String(),
			"stage": task.Stage,
		})
	}

	logger.PipelineError("stage_failed", "Stage exhausted retries", cause, map[string]interface{}{
		"runId":   task.RunID.String(),
		"stage":   task.Stage,
		"assetId": task.AssetID.String(),
	})
}

// RunStatuses exposes the stage map of a run, for the status endpoint.
func (o *Orchestrator) RunStatuses(ctx context.Context, runID uuid.UUID) (map[string]string, error) {
	task := &Task{RunID: runID}
	return o.state.Statuses(ctx, task.runKey())
}

// NewTaskContext wraps a task with the run state store.
func (o *Orchestrator) NewTaskContext(task *Task) *TaskContext {
	return &TaskContext{Task: task, state: o.state}
}

// State exposes the store for services that share its locks.
func (o *Orchestrator) State() StateStore {
	return o.state
}
