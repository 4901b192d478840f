package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

// JobFunc is a unit of background work.
type JobFunc func(ctx context.Context) error

// JobInfo tracks the runs of a scheduled job.
type JobInfo struct {
	ID         string
	Name       string
	Every      time.Duration
	LastRun    time.Time
	RunCount   int
	ErrorCount int
	LastError  string

	job gocron.Job
}

// Scheduler runs periodic maintenance jobs.
type Scheduler struct {
	gocron gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	jobs map[string]*JobInfo
}

func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLogger(newLogger()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		gocron: s,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*JobInfo),
	}, nil
}

func (s *Scheduler) Start() {
	log.Info("Starting job scheduler", "jobs", len(s.jobs))
	s.gocron.Start()
}

func (s *Scheduler) Stop() error {
	log.Info("Stopping job scheduler")
	s.cancel()
	return s.gocron.Shutdown()
}

// AddSingletonJob runs fn every interval; an overrunning run delays the next one.
func (s *Scheduler) AddSingletonJob(id, name string, every time.Duration, fn JobFunc) error {
	if every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", id)
	}

	info := &JobInfo{ID: id, Name: name, Every: every}

	job, err := s.gocron.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(s.wrap(info, fn)),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", id, err)
	}
	info.job = job

	s.mu.Lock()
	s.jobs[id] = info
	s.mu.Unlock()

	log.Info("Added job to scheduler", "id", id, "name", name, "every", every)
	return nil
}

// Job returns a snapshot of the job's statistics.
func (s *Scheduler) Job(id string) (JobInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.jobs[id]
	if !ok {
		return JobInfo{}, false
	}
	return *info, true
}

func (s *Scheduler) wrap(info *JobInfo, fn JobFunc) func() {
	return func() {
		log.Debug("Starting job", "id", info.ID)
		start := time.Now()
		err := fn(s.ctx)

		s.mu.Lock()
		info.LastRun = start
		info.RunCount++
		if err != nil {
			info.ErrorCount++
			info.LastError = err.Error()
		} else {
			info.LastError = ""
		}
		s.mu.Unlock()

		if err != nil {
			log.Error("Job failed", "id", info.ID, "error", err)
			return
		}
		log.Debug("Job completed", "id", info.ID, "took", time.Since(start))
	}
}
