package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"pixvault/pkg/logger"
)

// EventScheduler runs the periodic maintenance sweeps (stale-asset
// reprocessing, clustering passes).
type EventScheduler interface {
	Start()
	Stop()
	AddJob(id, cronExpr string, task func()) error
	RemoveJob(id string) error
	ListJobs() map[string]*JobInfo
	IsRunning() bool
}

type JobInfo struct {
	ID       string
	CronExpr string
	LastRun  *time.Time
	NextRun  *time.Time
}

type GocronScheduler struct {
	scheduler *gocron.Scheduler
	jobs      map[string]*jobEntry
	mu        sync.RWMutex
	running   bool
}

type jobEntry struct {
	cronExpr string
	job      *gocron.Job
	lastRun  *time.Time
}

func NewEventScheduler() EventScheduler {
	scheduler := gocron.NewScheduler(time.UTC)
	// A slow sweep must never overlap its next tick.
	scheduler.SingletonModeAll()

	return &GocronScheduler{
		scheduler: scheduler,
		jobs:      make(map[string]*jobEntry),
	}
}

func (s *GocronScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		logger.SchedulerWarn("start", "Scheduler is already running", nil)
		return
	}

	s.scheduler.StartAsync()
	s.running = true
	logger.Scheduler("started", "Event scheduler started", map[string]interface{}{"jobs": len(s.jobs)})
}

func (s *GocronScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.scheduler.Stop()
	s.running = false
	logger.Scheduler("stopped", "Event scheduler stopped", nil)
}

func (s *GocronScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *GocronScheduler) AddJob(id, cronExpr string, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return fmt.Errorf("job with ID %s already exists", id)
	}

	job, err := s.scheduler.Cron(cronExpr).Do(func() {
		now := time.Now()
		logger.Scheduler("job_executing", "Executing job", map[string]interface{}{"job_id": id})

		s.mu.Lock()
		if entry, exists := s.jobs[id]; exists {
			entry.lastRun = &now
		}
		s.mu.Unlock()

		task()
	})
	if err != nil {
		return fmt.Errorf("failed to create job: %v", err)
	}

	s.jobs[id] = &jobEntry{cronExpr: cronExpr, job: job}

	logger.Scheduler("job_added", "Job added", map[string]interface{}{
		"job_id":    id,
		"cron_expr": cronExpr,
		"next_run":  job.NextRun().Format(time.RFC3339),
	})
	return nil
}

func (s *GocronScheduler) RemoveJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job with ID %s not found", id)
	}

	if entry.job != nil {
		s.scheduler.RemoveByReference(entry.job)
	}
	delete(s.jobs, id)

	logger.Scheduler("job_removed", "Job removed", map[string]interface{}{"job_id": id})
	return nil
}

func (s *GocronScheduler) ListJobs() map[string]*JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make(map[string]*JobInfo, len(s.jobs))
	for id, entry := range s.jobs {
		info := &JobInfo{ID: id, CronExpr: entry.cronExpr}
		if entry.lastRun != nil {
			lastRun := *entry.lastRun
			info.LastRun = &lastRun
		}
		if entry.job != nil {
			nextRun := entry.job.NextRun()
			info.NextRun = &nextRun
		}
		jobs[id] = info
	}
	return jobs
}
