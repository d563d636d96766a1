// Package queue implements the shared set of named FIFO queues through which
// the coordinator and workers exchange tasks and results.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"nmapcluster/task"
)

var (
	// ErrUnknownQueue is returned for a queue name outside the set.
	ErrUnknownQueue = errors.New("unknown queue")
	// ErrMalformed indicates a dequeued item could not be decoded. The item
	// is gone from the queue when this is returned.
	ErrMalformed = errors.New("malformed queue item")
)

// Set is a group of independently addressable FIFO queues. Implementations
// must deliver every enqueued item to at most one caller of TryDequeue.
type Set interface {
	// Enqueue appends payload to the named queue without blocking.
	Enqueue(ctx context.Context, name task.Queue, payload []byte) error
	// TryDequeue removes the oldest item of the named queue. It returns
	// immediately with ok=false when the queue is empty.
	TryDequeue(ctx context.Context, name task.Queue) (payload []byte, ok bool, err error)
	// Len returns the number of items waiting in the named queue.
	Len(ctx context.Context, name task.Queue) (int64, error)
}

func checkName(name task.Queue) error {
	if !name.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownQueue, name)
	}
	return nil
}

// PushTask encodes t and appends it to the named queue.
func PushTask(ctx context.Context, s Set, name task.Queue, t *task.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding task %s: %w", t.ID, err)
	}
	if err := s.Enqueue(ctx, name, data); err != nil {
		return fmt.Errorf("enqueue %s: %w", name, err)
	}
	return nil
}

// PopTask takes the oldest task from the named queue. A nil task with a nil
// error means the queue was empty.
func PopTask(ctx context.Context, s Set, name task.Queue) (*task.Task, error) {
	data, ok, err := s.TryDequeue(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("dequeue %s: %w", name, err)
	}
	if !ok {
		return nil, nil
	}
	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w on %s: %v", ErrMalformed, name, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w on %s: %v", ErrMalformed, name, err)
	}
	return &t, nil
}

// PushResult appends r to the results queue.
func PushResult(ctx context.Context, s Set, r *task.Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if err := s.Enqueue(ctx, task.QueueResults, data); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.QueueResults, err)
	}
	return nil
}

// PopResult takes the oldest result. A nil result with a nil error means the
// results queue was empty.
func PopResult(ctx context.Context, s Set) (*task.Result, error) {
	data, ok, err := s.TryDequeue(ctx, task.QueueResults)
	if err != nil {
		return nil, fmt.Errorf("dequeue %s: %w", task.QueueResults, err)
	}
	if !ok {
		return nil, nil
	}
	var r task.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w on %s: %v", ErrMalformed, task.QueueResults, err)
	}
	if r.Task == nil {
		return nil, fmt.Errorf("%w on %s: result without task", ErrMalformed, task.QueueResults)
	}
	if err := r.Task.Validate(); err != nil {
		return nil, fmt.Errorf("%w on %s: %v", ErrMalformed, task.QueueResults, err)
	}
	return &r, nil
}

// Depths returns the current length of every queue.
func Depths(ctx context.Context, s Set) (map[task.Queue]int64, error) {
	out := make(map[task.Queue]int64, len(task.Queues))
	for _, name := range task.Queues {
		n, err := s.Len(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("length of %s: %w", name, err)
		}
		out[name] = n
	}
	return out, nil
}
