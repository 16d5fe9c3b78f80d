// Package scheduler runs named recurring jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is run on each schedule tick. ctx is cancelled when the scheduler stops.
type Job func(ctx context.Context)

type entry struct {
	spec string
	job  Job
	id   cron.EntryID
}

// Scheduler owns a cron runner and its named jobs. Jobs may be added before
// or after Start. A job whose previous run is still in progress is skipped
// and a panicking job is recovered and logged.
type Scheduler struct {
	mu sync.Mutex

	logger   *slog.Logger
	location *time.Location
	parser   cron.Parser

	entries map[string]*entry
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a stopped scheduler using standard five-field cron
// expressions and @descriptors.
func NewScheduler() *Scheduler {
	return &Scheduler{
		logger:   slog.Default(),
		location: time.Local,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		entries:  make(map[string]*entry),
	}
}

// WithLogger sets a custom logger.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithLocation sets the time zone schedules are evaluated in.
func (s *Scheduler) WithLocation(loc *time.Location) *Scheduler {
	if loc != nil {
		s.location = loc
	}
	return s
}

// Add installs job under name, replacing any job already using that name.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q for %s: %w", spec, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[name]; ok && s.cron != nil {
		s.cron.Remove(old.id)
	}
	e := &entry{spec: spec, job: job}
	s.entries[name] = e

	if s.cron != nil {
		if err := s.schedule(name, e); err != nil {
			delete(s.entries, name)
			return err
		}
	}

	s.logger.Info("scheduled job",
		slog.String("job", name),
		slog.String("cron", spec))
	return nil
}

// Remove uninstalls the named job.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return
	}
	if s.cron != nil {
		s.cron.Remove(e.id)
	}
	delete(s.entries, name)
}

// schedule registers e with the running cron. Callers hold s.mu.
func (s *Scheduler) schedule(name string, e *entry) error {
	ctx := s.ctx
	logger := s.logger
	job := e.job
	id, err := s.cron.AddFunc(e.spec, func() {
		logger.Debug("running scheduled job", slog.String("job", name))
		job(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", name, err)
	}
	e.id = id
	return nil
}

// Start begins running installed jobs on their schedules.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	cl := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.location),
		cron.WithLogger(cl),
		cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
	)

	for name, e := range s.entries {
		if err := s.schedule(name, e); err != nil {
			s.cancel()
			s.cron, s.ctx, s.cancel = nil, nil, nil
			return err
		}
	}
	s.cron.Start()

	s.logger.Info("scheduler started", slog.Int("jobs", len(s.entries)))
	return nil
}

// Stop stops scheduling, cancels the job context and waits for running
// jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.ctx, s.cancel = nil, nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()

	s.logger.Info("scheduler stopped")
}

// NextRun returns the next time the named job will run. ok is false when
// the job is unknown or the scheduler is not running.
func (s *Scheduler) NextRun(name string) (next time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.entries[name]
	if !found || s.cron == nil {
		return time.Time{}, false
	}
	return s.cron.Entry(e.id).Next, true
}

// Jobs returns the installed job names, sorted.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseCron validates a cron expression and returns the next run time after
// from, evaluated in the scheduler's location.
func (s *Scheduler) ParseCron(expr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule.Next(from.In(s.location)), nil
}

// ValidateCron validates a cron expression.
func (s *Scheduler) ValidateCron(expr string) error {
	_, err := s.parser.Parse(expr)
	return err
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
