// Package scheduler enqueues periodic background tasks on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Enqueuer hands tasks to the background queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task backlite.Task) error
}

// Job is one periodic task.
type Job struct {
	Name     string
	Schedule string // five-field cron expression
	Task     backlite.Task
}

// Scheduler runs cron entries that enqueue backlite tasks. The work itself
// happens on the queue workers, so a slow job never blocks the cron loop.
type Scheduler struct {
	queue Enqueuer
	log   zerolog.Logger
	cron  *cron.Cron

	mu      sync.RWMutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
	running bool
}

// New creates a stopped scheduler.
func New(queue Enqueuer, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		queue:   queue,
		log:     log.With().Str("component", "scheduler").Logger(),
		cron:    cron.New(cron.WithParser(parser)),
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
	}
}

// ValidateCronSchedule checks a five-field cron expression.
func ValidateCronSchedule(expr string) error {
	_, err := parser.Parse(expr)
	return err
}

// Add registers a job. Jobs with an empty schedule are skipped.
func (s *Scheduler) Add(job Job) error {
	if job.Schedule == "" {
		s.log.Info().Str("job", job.Name).Msg("no schedule, job disabled")
		return nil
	}
	if err := ValidateCronSchedule(job.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q for %s: %w", job.Schedule, job.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	id, err := s.cron.AddFunc(job.Schedule, func() {
		s.enqueue(context.Background(), job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
	}
	s.jobs[job.Name] = job
	s.entries[job.Name] = id
	return nil
}

// Start begins firing jobs and stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.cron.Start()
	for name, next := range s.NextRuns() {
		s.log.Info().Str("job", name).Time("next_run", next).Msg("job scheduled")
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop halts the cron loop and waits for in-flight enqueues.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.log.Info().Msg("scheduler stopped")
}

// RunNow enqueues a registered job immediately.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	return s.queue.Enqueue(ctx, job.Task)
}

// NextRuns returns the next fire time of each job while running.
func (s *Scheduler) NextRuns() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		if next := s.cron.Entry(id).Next; !next.IsZero() {
			out[name] = next
		}
	}
	return out
}

// Jobs lists registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) enqueue(ctx context.Context, job Job) {
	if err := s.queue.Enqueue(ctx, job.Task); err != nil {
		s.log.Error().Err(err).Str("job", job.Name).Msg("failed to enqueue scheduled task")
		return
	}
	s.log.Debug().Str("job", job.Name).Msg("scheduled task enqueued")
}
