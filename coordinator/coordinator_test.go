package coordinator

import (
	"context"
	"errors"
	"net/netip"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmapcluster/queue"
	"nmapcluster/scanner/scannertest"
	"nmapcluster/store"
	"nmapcluster/task"
)

type memorySink struct {
	mu      sync.Mutex
	records []store.Record
	err     error
}

func (m *memorySink) Store(_ context.Context, rec store.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func result(purpose task.Purpose, target string, output []byte) *task.Result {
	kind := task.KindTCP
	if purpose == task.PurposeHostDiscovery {
		kind = task.KindICMP
	}
	return &task.Result{
		Task:       task.New(netip.MustParsePrefix(target), nil, kind, purpose),
		Output:     output,
		Worker:     "10.9.9.9",
		FinishedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func drainAll(t *testing.T, set queue.Set, name task.Queue) []*task.Task {
	t.Helper()
	var out []*task.Task
	for {
		tk, err := queue.PopTask(context.Background(), set, name)
		require.NoError(t, err)
		if tk == nil {
			return out
		}
		out = append(out, tk)
	}
}

func TestSeed(t *testing.T) {
	set := queue.NewMemorySet()
	c := New(set, &memorySink{}, Options{})

	n, err := c.Seed(context.Background(), []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/22"),
		netip.MustParsePrefix("192.168.1.10/32"),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	tasks := drainAll(t, set, task.QueueDiscovery)
	require.Len(t, tasks, 5)
	assert.Equal(t, "10.0.0.0/24", tasks[0].TargetString())
	assert.Equal(t, "10.0.3.0/24", tasks[3].TargetString())
	assert.Equal(t, "192.168.1.10", tasks[4].TargetString())
	for _, tk := range tasks {
		assert.Equal(t, task.PurposeHostDiscovery, tk.Purpose)
		assert.Equal(t, task.KindICMP, tk.Kind)
		assert.Equal(t, DiscoveryParameters, tk.Parameters)
		assert.Zero(t, tk.FailedAttempts)
	}
}

func TestDiscoveryEnqueuesFollowUpsOnce(t *testing.T) {
	set := queue.NewMemorySet()
	c := New(set, &memorySink{}, Options{})
	ctx := context.Background()

	report := scannertest.XML(
		scannertest.Host{Addr: "10.0.0.1", Up: true},
		scannertest.Host{Addr: "10.0.0.2", Up: false},
	)
	// the same result delivered twice
	require.NoError(t, c.Handle(ctx, result(task.PurposeHostDiscovery, "10.0.0.0/30", report)))
	require.NoError(t, c.Handle(ctx, result(task.PurposeHostDiscovery, "10.0.0.0/30", report)))

	assert.True(t, c.Discovered(netip.MustParseAddr("10.0.0.1")))
	assert.False(t, c.Discovered(netip.MustParseAddr("10.0.0.2")))

	fast := drainAll(t, set, task.QueueFast)
	medium := drainAll(t, set, task.QueueMedium)
	slow := drainAll(t, set, task.QueueSlow)
	require.Len(t, fast, 1)
	require.Len(t, medium, 2)
	require.Len(t, slow, 1)

	assert.Equal(t, []string{"-sS", "-sV"}, fast[0].Parameters)
	assert.Equal(t, task.KindTCP, fast[0].Kind)
	assert.Equal(t, []string{"-p-", "-sS", "-sC", "-sV"}, medium[0].Parameters)
	assert.Equal(t, task.KindSCTP, medium[1].Kind)
	assert.Equal(t, []string{"-sU", "-sC", "-sV", "--top-ports", "96"}, slow[0].Parameters)
	for _, tk := range append(append(fast, medium...), slow...) {
		assert.Equal(t, "10.0.0.1", tk.TargetString())
		assert.Equal(t, task.PurposePortScan, tk.Purpose)
	}
	assert.Empty(t, drainAll(t, set, task.QueueDiscovery))
}

func TestOverlappingDiscoveryResults(t *testing.T) {
	set := queue.NewMemorySet()
	c := New(set, &memorySink{}, Options{})
	ctx := context.Background()

	require.NoError(t, c.Handle(ctx, result(task.PurposeHostDiscovery, "10.0.0.0/26",
		scannertest.XML(scannertest.Host{Addr: "10.0.0.1", Up: true}))))
	require.NoError(t, c.Handle(ctx, result(task.PurposeHostDiscovery, "10.0.0.1/32",
		scannertest.XML(scannertest.Host{Addr: "10.0.0.1", Up: true}, scannertest.Host{Addr: "10.0.0.3", Up: true}))))

	assert.Len(t, drainAll(t, set, task.QueueFast), 2)
	assert.Len(t, drainAll(t, set, task.QueueMedium), 4)
	assert.Len(t, drainAll(t, set, task.QueueSlow), 2)
}

func TestUnparseableResultIsDiscarded(t *testing.T) {
	set := queue.NewMemorySet()
	sink := &memorySink{}
	c := New(set, sink, Options{})

	require.NoError(t, c.Handle(context.Background(), result(task.PurposeHostDiscovery, "10.0.0.0/24", []byte("garbage"))))
	require.NoError(t, c.Handle(context.Background(), result(task.PurposePortScan, "10.0.0.1/32", nil)))

	depths, err := queue.Depths(context.Background(), set)
	require.NoError(t, err)
	for name, n := range depths {
		assert.Zero(t, n, "queue %s", name)
	}
	assert.Empty(t, sink.records)
}

func TestPortScanGoesToSink(t *testing.T) {
	sink := &memorySink{}
	c := New(queue.NewMemorySet(), sink, Options{})
	report := scannertest.XML(scannertest.Host{
		Addr: "10.0.0.1", Up: true, Hostname: "gw.lab",
		Ports: []scannertest.Port{{Number: 22, Protocol: "tcp", Service: "ssh", Product: "OpenSSH", Version: "9.6"}},
	})
	res := result(task.PurposePortScan, "10.0.0.1/32", report)

	require.NoError(t, c.Handle(context.Background(), res))

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), rec.Host.Addr)
	assert.Equal(t, "gw.lab", rec.Host.Hostname)
	assert.Equal(t, res.Task.ID, rec.TaskID)
	assert.Equal(t, "10.9.9.9", rec.Worker)
	assert.Equal(t, report, rec.Raw)
	require.Len(t, rec.Host.Ports, 1)
	assert.Equal(t, uint16(22), rec.Host.Ports[0].Number)
	assert.False(t, c.Discovered(rec.Host.Addr), "port scans do not feed discovery")
}

func TestSinkFailureDoesNotStopHandling(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	c := New(queue.NewMemorySet(), sink, Options{})
	report := scannertest.XML(scannertest.Host{Addr: "10.0.0.1", Up: true})
	assert.NoError(t, c.Handle(context.Background(), result(task.PurposePortScan, "10.0.0.1/32", report)))
}

func TestDrainHandlesEveryResult(t *testing.T) {
	set := queue.NewMemorySet()
	sink := &memorySink{}
	c := New(set, sink, Options{})
	ctx := context.Background()

	require.NoError(t, queue.PushResult(ctx, set, result(task.PurposeHostDiscovery, "10.0.0.0/30",
		scannertest.XML(scannertest.Host{Addr: "10.0.0.1", Up: true}))))
	require.NoError(t, set.Enqueue(ctx, task.QueueResults, []byte("{broken")))
	require.NoError(t, queue.PushResult(ctx, set, result(task.PurposePortScan, "10.0.0.2/32",
		scannertest.XML(scannertest.Host{Addr: "10.0.0.2", Up: true}))))

	require.NoError(t, c.Drain(ctx))

	n, err := set.Len(ctx, task.QueueResults)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, sink.records, 1)
	assert.True(t, c.Discovered(netip.MustParseAddr("10.0.0.1")))
}

func TestRunStopsOnCancel(t *testing.T) {
	set := queue.NewMemorySet()
	c := New(set, &memorySink{}, Options{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, queue.PushResult(ctx, set, result(task.PurposeHostDiscovery, "10.0.0.0/30",
		scannertest.XML(scannertest.Host{Addr: "10.0.0.1", Up: true}))))

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, err := set.Len(context.Background(), task.QueueFast)
		return err == nil && n == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("coordinator did not stop")
	}
}

func TestEndToEndWithStore(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	defer db.Close()

	c := New(queue.NewMemorySet(), db, Options{})
	report := scannertest.XML(scannertest.Host{
		Addr: "10.0.0.1", Up: true,
		Ports: []scannertest.Port{{Number: 80, Protocol: "tcp", Service: "http", Product: "nginx"}},
	})
	res := result(task.PurposePortScan, "10.0.0.1/32", report)
	require.NoError(t, c.Handle(ctx, res))
	require.NoError(t, c.Handle(ctx, res))

	host, err := db.Host(ctx, netip.MustParseAddr("10.0.0.1"))
	require.NoError(t, err)
	require.Len(t, host.Ports, 1)
	assert.Equal(t, 80, host.Ports[0].Port)

	scans, err := db.ScanCount(ctx, netip.MustParseAddr("10.0.0.1"))
	require.NoError(t, err)
	assert.Equal(t, 1, scans)
}
