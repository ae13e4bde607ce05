package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-clientraw/internal/clientraw"
	"github.com/i474232898/weather-clientraw/internal/logging"
	"github.com/i474232898/weather-clientraw/internal/metrics"
	"github.com/i474232898/weather-clientraw/internal/snapshot"
)

// Publisher builds and writes records.
type Publisher interface {
	Publish(ctx context.Context, kind clientraw.Kind, now time.Time) error
}

// Refresher updates externally sourced conditions.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Intervals holds how often each job runs. Zero disables a job.
type Intervals struct {
	Realtime   time.Duration
	Hourly     time.Duration
	Daily      time.Duration
	Conditions time.Duration
}

// Job is one periodic task.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Scheduler periodically publishes records and refreshes conditions.
type Scheduler struct {
	location *time.Location
	timeout  time.Duration
	jobs     []Job

	scheduler *gocron.Scheduler
}

// New creates a new Scheduler for the kinds that have an interval. Conditions
// may be nil.
func New(loc *time.Location, intervals Intervals, publisher Publisher, conditions Refresher) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{location: loc, timeout: 30 * time.Second}

	every := map[clientraw.Kind]time.Duration{
		clientraw.KindRealtime: intervals.Realtime,
		clientraw.KindHourly:   intervals.Hourly,
		clientraw.KindDaily:    intervals.Daily,
	}
	for _, kind := range clientraw.Kinds {
		if every[kind] <= 0 {
			continue
		}
		kind := kind
		s.jobs = append(s.jobs, Job{
			Name:  string(kind),
			Every: every[kind],
			Run: func(ctx context.Context) error {
				err := publisher.Publish(ctx, kind, time.Now())
				if errors.Is(err, snapshot.ErrThrottled) {
					return nil
				}
				return err
			},
		})
	}

	if conditions != nil && intervals.Conditions > 0 {
		s.jobs = append(s.jobs, Job{
			Name:  "conditions",
			Every: intervals.Conditions,
			Run: func(ctx context.Context) error {
				err := conditions.Refresh(ctx)
				metrics.RecordConditionsRefresh(err)
				return err
			},
		})
	}
	return s
}

// Jobs returns the scheduled jobs.
func (s *Scheduler) Jobs() []Job {
	return s.jobs
}

// Start schedules the periodic jobs and starts the underlying scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.jobs) == 0 {
		logging.Info().Msg("scheduler: no jobs configured; nothing to schedule")
		return nil
	}

	s.scheduler = gocron.NewScheduler(s.location)
	for _, job := range s.jobs {
		job := job
		_, err := s.scheduler.Every(job.Every).SingletonMode().Do(func() {
			s.run(ctx, job)
		})
		if err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name, err)
		}
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		logging.Error().Err(err).Str("job", job.Name).Msg("scheduler: job failed")
		return
	}
	logging.Debug().Str("job", job.Name).Dur("took", time.Since(start)).Msg("scheduler: job completed")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// Serve runs the scheduler until ctx is cancelled.
func (s *Scheduler) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Stop()

	<-ctx.Done()
	return ctx.Err()
}

func (s *Scheduler) String() string { return "scheduler" }
