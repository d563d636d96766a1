// Package coordinator seeds host discovery, turns discovered hosts into port
// scans and hands finished port scans to a Sink.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"nmapcluster/logging"
	"nmapcluster/partition"
	"nmapcluster/queue"
	"nmapcluster/scanner"
	"nmapcluster/store"
	"nmapcluster/task"
)

// DefaultInterval is the pause between two drains of the results queue.
const DefaultInterval = 500 * time.Millisecond

// Sink persists port scan findings. Store must be idempotent.
type Sink interface {
	Store(ctx context.Context, rec store.Record) error
}

// Options configures a Coordinator.
type Options struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Coordinator owns the discovered host set. Its methods must be called from
// a single goroutine.
type Coordinator struct {
	set      queue.Set
	sink     Sink
	interval time.Duration
	logger   *slog.Logger

	discovered map[netip.Addr]struct{}
}

// New creates a coordinator using set for tasks and results and sink for
// port scan findings.
func New(set queue.Set, sink Sink, opts Options) *Coordinator {
	c := &Coordinator{
		set:        set,
		sink:       sink,
		interval:   opts.Interval,
		logger:     opts.Logger,
		discovered: make(map[netip.Addr]struct{}),
	}
	if c.interval <= 0 {
		c.interval = DefaultInterval
	}
	if c.logger == nil {
		c.logger = logging.Logger()
	}
	return c
}

// Seed partitions targets and enqueues one discovery task per block. It
// returns the number of tasks enqueued.
func (c *Coordinator) Seed(ctx context.Context, targets []netip.Prefix) (int, error) {
	n := 0
	for _, target := range targets {
		blocks := partition.Partition(target)
		for _, block := range blocks {
			t := task.New(block, DiscoveryParameters, task.KindICMP, task.PurposeHostDiscovery)
			if err := queue.PushTask(ctx, c.set, task.QueueDiscovery, t); err != nil {
				return n, err
			}
			n++
		}
		c.logger.InfoContext(ctx, "seeded host discovery",
			"target", task.FormatTarget(target), "blocks", len(blocks))
	}
	return n, nil
}

// Run drains the results queue every interval until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopped", "hosts_discovered", len(c.discovered))
			return nil
		case <-ticker.C:
		}
	}
}

// Drain handles results until the results queue is empty.
func (c *Coordinator) Drain(ctx context.Context) error {
	for {
		res, err := queue.PopResult(ctx, c.set)
		if errors.Is(err, queue.ErrMalformed) {
			c.logger.WarnContext(ctx, "discarding malformed result", "error", err)
			continue
		}
		if err != nil {
			return err
		}
		if res == nil {
			return nil
		}
		if err := c.Handle(ctx, res); err != nil {
			return err
		}
	}
}

// Handle processes one result. Unparseable reports are logged and dropped;
// only queue failures are returned.
func (c *Coordinator) Handle(ctx context.Context, res *task.Result) error {
	t := res.Task
	ctx = logging.ContextAttrs(ctx,
		slog.String("task_id", t.ID),
		slog.String("target", t.TargetString()),
		slog.String("worker", res.Worker),
	)

	hosts, err := scanner.Parse(res.Output)
	if err != nil {
		c.logger.ErrorContext(ctx, "could not parse scan report, discarding result",
			"task", t.String(), "error", err)
		return nil
	}

	switch t.Purpose {
	case task.PurposeHostDiscovery:
		return c.handleDiscovery(ctx, hosts)
	case task.PurposePortScan:
		c.handlePortScan(ctx, res, hosts)
		return nil
	default:
		c.logger.WarnContext(ctx, "result with unknown purpose", "purpose", t.Purpose)
		return nil
	}
}

func (c *Coordinator) handleDiscovery(ctx context.Context, hosts []scanner.Host) error {
	for _, h := range hosts {
		if !h.Up {
			continue
		}
		if _, seen := c.discovered[h.Addr]; seen {
			continue
		}
		c.discovered[h.Addr] = struct{}{}

		c.logger.InfoContext(ctx, "host discovered", "host", h.Addr.String())
		target := netip.PrefixFrom(h.Addr, h.Addr.BitLen())
		for _, p := range FollowUps {
			t := task.New(target, p.Parameters, p.Kind, task.PurposePortScan)
			if err := queue.PushTask(ctx, c.set, p.Queue, t); err != nil {
				return fmt.Errorf("scheduling %s: %w", t, err)
			}
		}
	}
	return nil
}

func (c *Coordinator) handlePortScan(ctx context.Context, res *task.Result, hosts []scanner.Host) {
	for _, h := range hosts {
		if !h.Up && len(h.Ports) == 0 {
			continue
		}
		rec := store.Record{
			Host:      h,
			TaskID:    res.Task.ID,
			Kind:      res.Task.Kind,
			Worker:    res.Worker,
			Raw:       res.Output,
			ScannedAt: res.FinishedAt,
		}
		if err := c.sink.Store(ctx, rec); err != nil {
			c.logger.ErrorContext(ctx, "storing scan result failed",
				"host", h.Addr.String(), "error", err)
			continue
		}
		c.logger.InfoContext(ctx, "stored scan result",
			"host", h.Addr.String(), "kind", res.Task.Kind, "open_ports", len(h.Ports))
	}
}

// Discovered reports whether addr has been seen up by a discovery scan.
func (c *Coordinator) Discovered(addr netip.Addr) bool {
	_, ok := c.discovered[addr]
	return ok
}
