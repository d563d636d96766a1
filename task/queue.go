package task

import "fmt"

// Queue names one of the shared FIFO queues.
type Queue string

const (
	QueueDiscovery Queue = "discovery"
	QueueFast      Queue = "fast"
	QueueMedium    Queue = "medium"
	QueueSlow      Queue = "slow"
	QueueResults   Queue = "results"
)

// PollOrder is the priority in which workers look for work. The results
// queue is consumed by the coordinator only.
var PollOrder = []Queue{QueueDiscovery, QueueFast, QueueMedium, QueueSlow}

// Queues lists every queue of the set.
var Queues = []Queue{QueueDiscovery, QueueFast, QueueMedium, QueueSlow, QueueResults}

// Valid reports whether q names a known queue.
func (q Queue) Valid() bool {
	for _, known := range Queues {
		if q == known {
			return true
		}
	}
	return false
}

// ParseQueue validates a queue name.
func ParseQueue(s string) (Queue, error) {
	q := Queue(s)
	if !q.Valid() {
		return "", fmt.Errorf("unknown queue %q", s)
	}
	return q, nil
}
