package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mit45/AutoSocial-Ai/internal/lock"
	"github.com/robfig/cron"
)

// Task is one periodic background job.
type Task struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context)
	// RunAtStart also runs the task once shortly after the lock is won.
	RunAtStart bool

	running atomic.Bool
}

// Runner drives the periodic tasks while this process holds the scheduler
// lock. Ticks are skipped while another process owns it, and a tick is
// skipped if the previous run of the same task has not finished.
type Runner struct {
	locker       lock.Locker
	tasks        []*Task
	initialDelay time.Duration
	renewEvery   time.Duration

	cron   *cron.Cron
	owned  atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	timers []*time.Timer
}

type RunnerOption func(*Runner)

func WithInitialDelay(d time.Duration) RunnerOption {
	return func(r *Runner) { r.initialDelay = d }
}

func WithRenewEvery(d time.Duration) RunnerOption {
	return func(r *Runner) { r.renewEvery = d }
}

func NewRunner(locker lock.Locker, tasks []*Task, opts ...RunnerOption) *Runner {
	r := &Runner{
		locker:       locker,
		tasks:        tasks,
		initialDelay: 5 * time.Second,
		renewEvery:   30 * time.Second,
		cron:         cron.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Owned() bool { return r.owned.Load() }

// Start schedules the tasks and reports whether the lock was won. With a
// file lock held elsewhere nothing is started. A lease-based lock keeps
// trying to take over on every renew tick.
func (r *Runner) Start(ctx context.Context) (bool, error) {
	ok, err := r.locker.TryAcquire(ctx)
	if err != nil {
		return false, err
	}
	_, renewable := r.locker.(lock.Renewer)
	if !ok && !renewable {
		slog.Info("scheduler lock held elsewhere, background jobs not started")
		return false, nil
	}
	r.owned.Store(ok)

	r.ctx, r.cancel = context.WithCancel(context.Background())

	for _, t := range r.tasks {
		if err := r.cron.AddFunc(every(t.Every), func() { r.runTask(t) }); err != nil {
			r.cancel()
			return false, fmt.Errorf("error scheduling %s: %w", t.Name, err)
		}
		if t.RunAtStart {
			r.timers = append(r.timers, time.AfterFunc(r.initialDelay, func() { r.runTask(t) }))
		}
	}
	if renewable {
		if err := r.cron.AddFunc(every(r.renewEvery), func() { r.renew(r.ctx) }); err != nil {
			r.cancel()
			return false, fmt.Errorf("error scheduling lock renewal: %w", err)
		}
	}

	r.cron.Start()
	slog.Info("background jobs started", "tasks", len(r.tasks), "owned", ok)
	return ok, nil
}

// Stop halts the schedule, waits for running tasks, and releases the lock.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cron.Stop()
	for _, t := range r.timers {
		t.Stop()
	}
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("background jobs did not finish before shutdown")
	}

	r.owned.Store(false)
	return r.locker.Release(ctx)
}

func (r *Runner) runTask(t *Task) {
	if !r.owned.Load() || r.ctx.Err() != nil {
		return
	}
	if !t.running.CompareAndSwap(false, true) {
		slog.Debug("previous run still in progress, skipping tick", "task", t.Name)
		return
	}
	r.wg.Add(1)
	defer func() {
		t.running.Store(false)
		r.wg.Done()
		if p := recover(); p != nil {
			slog.Error("background task panicked", "task", t.Name, "panic", p)
		}
	}()

	t.Run(r.ctx)
}

// renew keeps the lease alive, or tries to take it over when it is lost.
func (r *Runner) renew(ctx context.Context) {
	renewer, ok := r.locker.(lock.Renewer)
	if !ok || ctx.Err() != nil {
		return
	}

	if r.owned.Load() {
		err := renewer.Renew(ctx)
		if err == nil {
			return
		}
		if !errors.Is(err, lock.ErrLockLost) {
			slog.Error("scheduler lock renewal failed", "error", err)
			return
		}
		slog.Warn("scheduler lock lost, pausing background jobs")
		r.owned.Store(false)
	}

	acquired, err := r.locker.TryAcquire(ctx)
	if err != nil {
		slog.Error("scheduler lock acquisition failed", "error", err)
		return
	}
	if acquired {
		slog.Info("scheduler lock acquired, resuming background jobs")
		r.owned.Store(true)
	}
}

func every(d time.Duration) string {
	if d < time.Second {
		d = time.Second
	}
	return "@every " + d.String()
}
