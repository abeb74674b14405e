// Package jobs runs calendar-aligned background work on a cron schedule in
// the household timezone.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Func is one unit of scheduled work.
type Func func(ctx context.Context) error

type job struct {
	name string
	spec string
	fn   Func
	id   cron.EntryID
}

// Runner owns a cron scheduler. Jobs receive a context that is cancelled on
// Stop, and a job still running when its next tick arrives is skipped.
type Runner struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   map[string]*job
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(loc *time.Location, logger *slog.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{logger: logger}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs:   make(map[string]*job),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add schedules fn under name. spec has a leading seconds field, for
// example "0 0 20 * * *" for 20:00 daily.
func (r *Runner) Add(name, spec string, fn Func) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}
	j := &job{name: name, spec: spec, fn: fn}
	id, err := r.cron.AddFunc(spec, func() { r.run(j) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	j.id = id
	r.jobs[name] = j
	return nil
}

func (r *Runner) run(j *job) {
	start := time.Now()
	if err := j.fn(r.ctx); err != nil {
		r.logger.Error("job failed", "job", j.name, "error", err, "duration", time.Since(start))
		return
	}
	r.logger.Debug("job finished", "job", j.name, "duration", time.Since(start))
}

// RunNow runs a registered job synchronously, outside its schedule.
func (r *Runner) RunNow(name string) error {
	r.mu.Lock()
	j, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	return j.fn(r.ctx)
}

// Next reports when name fires next. It is zero before Start.
func (r *Runner) Next(name string) time.Time {
	r.mu.Lock()
	j, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return r.cron.Entry(j.id).Next
}

func (r *Runner) Start() {
	r.cron.Start()
	r.logger.Info("job runner started", "jobs", len(r.jobs))
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (r *Runner) Stop(ctx context.Context) {
	r.cancel()
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		r.logger.Warn("job runner stop timed out")
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
