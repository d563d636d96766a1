// Package worker claims scan tasks from the shared queues, runs them and
// reports results or retries until no work has been seen for a while.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"nmapcluster/logging"
	"nmapcluster/queue"
	"nmapcluster/scanner"
	"nmapcluster/task"
)

const (
	// MaxIdleStreak is the number of consecutive empty polls after which the
	// next empty poll ends the loop.
	MaxIdleStreak = 5
	backoffBase   = 500 * time.Millisecond
)

// Backoff is the upper bound of the sleep after the given number of
// consecutive empty polls: 0.5s * 2^streak.
func Backoff(streak int) time.Duration {
	return backoffBase << streak
}

// Options configures a Worker.
type Options struct {
	// Address identifies this worker in results.
	Address string
	Logger  *slog.Logger
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter draws a duration uniformly from [0, limit). Defaults to math/rand/v2.
	Jitter func(limit time.Duration) time.Duration
}

// Worker is one polling loop. It is not safe for concurrent use; run
// several Workers for parallelism.
type Worker struct {
	set      queue.Set
	executor scanner.Executor
	address  string
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	jitter   func(limit time.Duration) time.Duration

	idleStreak int
}

// New creates a worker reading from set and running scans with executor.
func New(set queue.Set, executor scanner.Executor, opts Options) *Worker {
	w := &Worker{
		set:      set,
		executor: executor,
		address:  opts.Address,
		logger:   opts.Logger,
		sleep:    opts.Sleep,
		jitter:   opts.Jitter,
	}
	if w.logger == nil {
		w.logger = logging.Logger()
	}
	if w.sleep == nil {
		w.sleep = sleepContext
	}
	if w.jitter == nil {
		w.jitter = func(limit time.Duration) time.Duration { return rand.N(limit) }
	}
	return w
}

// Run processes tasks until MaxIdleStreak+1 consecutive polls found every
// queue empty, in which case it returns nil. Queue failures are returned.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "worker started", "worker", w.address)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		t, from, err := w.claim(ctx)
		if errors.Is(err, queue.ErrMalformed) {
			w.logger.WarnContext(ctx, "discarding malformed task", "error", err)
			w.idleStreak = 0
			continue
		}
		if err != nil {
			return err
		}

		if t == nil {
			w.idleStreak++
			if w.idleStreak > MaxIdleStreak {
				w.logger.InfoContext(ctx, "queues stayed empty, worker exiting",
					"worker", w.address, "empty_polls", w.idleStreak)
				return nil
			}
			wait := w.jitter(Backoff(w.idleStreak))
			w.logger.DebugContext(ctx, "queues empty, backing off",
				"empty_polls", w.idleStreak, "wait", wait.String())
			if err := w.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		w.idleStreak = 0
		if err := w.process(ctx, t, from); err != nil {
			return err
		}
	}
}

// claim takes the first available task in priority order together with the
// queue it came from.
func (w *Worker) claim(ctx context.Context) (*task.Task, task.Queue, error) {
	for _, name := range task.PollOrder {
		t, err := queue.PopTask(ctx, w.set, name)
		if err != nil {
			return nil, name, err
		}
		if t != nil {
			return t, name, nil
		}
	}
	return nil, "", nil
}

func (w *Worker) process(ctx context.Context, t *task.Task, from task.Queue) error {
	logCtx := logging.ContextAttrs(ctx,
		slog.String("task_id", t.ID),
		slog.String("queue", string(from)),
		slog.String("target", t.TargetString()),
	)

	if t.Exhausted() {
		w.logger.WarnContext(logCtx, "dropping task after too many failed attempts",
			"task", t.String(), "failed_attempts", t.FailedAttempts)
		return nil
	}

	w.logger.InfoContext(logCtx, "scan started", "kind", t.Kind, "parameters", t.Parameters)
	start := time.Now()
	out, err := w.executor.Execute(ctx, t.Target, t.Parameters)
	if err != nil {
		return w.retry(ctx, logCtx, t, from, err)
	}

	w.logger.InfoContext(logCtx, "scan finished, reporting result",
		"elapsed", time.Since(start).String(), "xml", out.XMLPath)
	res := &task.Result{
		Task:       t,
		Output:     out.Output,
		Worker:     w.address,
		FinishedAt: time.Now().UTC(),
	}
	// the scan is done; shutdown must not lose its result
	return queue.PushResult(context.WithoutCancel(ctx), w.set, res)
}

func (w *Worker) retry(ctx, logCtx context.Context, t *task.Task, from task.Queue, cause error) error {
	if ctx.Err() != nil {
		// interrupted by shutdown, not by the target: hand it back unchanged
		if err := queue.PushTask(context.WithoutCancel(ctx), w.set, from, t); err != nil {
			return fmt.Errorf("returning interrupted task %s: %w", t.ID, err)
		}
		return ctx.Err()
	}

	t.FailedAttempts++
	if t.Exhausted() {
		w.logger.WarnContext(logCtx, "scan failed too many times, dropping task",
			"task", t.String(), "failed_attempts", t.FailedAttempts, "error", cause)
		return nil
	}
	w.logger.WarnContext(logCtx, "scan failed, requeueing",
		"failed_attempts", t.FailedAttempts, "error", cause)
	return queue.PushTask(context.WithoutCancel(ctx), w.set, from, t)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RunPool runs n workers sharing opts and returns when all of them have
// exited. The first queue failure cancels the others.
func RunPool(ctx context.Context, n int, set queue.Set, executor scanner.Executor, opts Options) error {
	if n < 1 {
		n = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		w := New(set, executor, opts)
		w.logger = w.logger.With("loop", i)
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	return g.Wait()
}
