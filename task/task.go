package task

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxFailedAttempts is the number of failures a task may accumulate before it
// is abandoned. A task with more failures than this is never executed again.
const MaxFailedAttempts = 7

// Kind identifies the technique family of a scan. It is informational only and
// has no effect on scheduling.
type Kind string

const (
	KindARP  Kind = "ARP"
	KindICMP Kind = "ICMP"
	KindIGMP Kind = "IGMP"
	KindTCP  Kind = "TCP"
	KindSCTP Kind = "SCTP"
	KindUDP  Kind = "UDP"
)

// Kinds lists the valid kinds, roughly sorted from fastest to slowest.
var Kinds = []Kind{KindARP, KindICMP, KindIGMP, KindTCP, KindSCTP, KindUDP}

// ParseKind validates a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	for _, valid := range Kinds {
		if k == valid {
			return k, nil
		}
	}
	return "", fmt.Errorf("invalid scan kind %q", s)
}

// Purpose determines how the coordinator interprets a result.
type Purpose string

const (
	PurposeHostDiscovery Purpose = "host_discovery"
	PurposePortScan      Purpose = "port_scan"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeHostDiscovery || p == PurposePortScan
}

// Task describes one scan: what to scan, with which flags and why.
type Task struct {
	ID             string       `json:"id"`
	Target         netip.Prefix `json:"target"`
	Parameters     []string     `json:"parameters"`
	Kind           Kind         `json:"kind"`
	Purpose        Purpose      `json:"purpose"`
	FailedAttempts int          `json:"failed_attempts"`
	CreatedAt      time.Time    `json:"created_at"`
}

// New creates a task with a fresh identifier and no failed attempts.
func New(target netip.Prefix, params []string, kind Kind, purpose Purpose) *Task {
	return &Task{
		ID:         uuid.NewString(),
		Target:     target.Masked(),
		Parameters: append([]string(nil), params...),
		Kind:       kind,
		Purpose:    purpose,
		CreatedAt:  time.Now().UTC(),
	}
}

// Validate checks the fields a worker and the coordinator rely on.
func (t *Task) Validate() error {
	if !t.Target.IsValid() {
		return errors.New("task without a valid target")
	}
	if !t.Purpose.Valid() {
		return fmt.Errorf("task with unknown purpose %q", t.Purpose)
	}
	return nil
}

// Exhausted reports whether the task has failed too often to be run again.
func (t *Task) Exhausted() bool {
	return t.FailedAttempts > MaxFailedAttempts
}

// TargetString renders the target the way nmap expects it: a bare address for
// single hosts, CIDR notation otherwise.
func (t *Task) TargetString() string {
	return FormatTarget(t.Target)
}

func (t *Task) String() string {
	return fmt.Sprintf("<%s nmap scan of %s>", t.Kind, t.TargetString())
}

// FormatTarget renders a prefix as a bare address when it covers one host.
func FormatTarget(p netip.Prefix) string {
	if p.IsSingleIP() {
		return p.Addr().String()
	}
	return p.String()
}

// Result is produced by a worker for a successful scan and consumed exactly
// once by the coordinator.
type Result struct {
	Task       *Task     `json:"task"`
	Output     []byte    `json:"output"`
	Worker     string    `json:"worker"`
	FinishedAt time.Time `json:"finished_at"`
}
