package queue

import (
	"context"
	"sync"

	"nmapcluster/task"
)

// MemorySet keeps the queues in process memory. It serves single-process
// runs and tests; a single mutex serializes every operation.
type MemorySet struct {
	mu     sync.Mutex
	queues map[task.Queue][][]byte
}

// NewMemorySet creates an empty in-memory queue set.
func NewMemorySet() *MemorySet {
	return &MemorySet{
		queues: make(map[task.Queue][][]byte, len(task.Queues)),
	}
}

// Enqueue stores a copy of payload at the tail of the queue.
func (m *MemorySet) Enqueue(_ context.Context, name task.Queue, payload []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	stored := make([]byte, len(payload))
	copy(stored, payload)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[name] = append(m.queues[name], stored)
	return nil
}

// TryDequeue removes and returns the head of the queue.
func (m *MemorySet) TryDequeue(_ context.Context, name task.Queue) ([]byte, bool, error) {
	if err := checkName(name); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queues[name]
	if len(q) == 0 {
		return nil, false, nil
	}
	head := q[0]
	q[0] = nil
	m.queues[name] = q[1:]
	return head, true, nil
}

// Len returns the number of waiting items.
func (m *MemorySet) Len(_ context.Context, name task.Queue) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.queues[name])), nil
}
