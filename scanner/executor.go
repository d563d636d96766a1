package scanner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"nmapcluster/logging"
	"nmapcluster/task"
)

// Outcome is what a successful scan hands back to the worker.
type Outcome struct {
	// Output is the nmap XML report.
	Output []byte
	// XMLPath is the local copy of Output, empty when none was written.
	XMLPath  string
	Warnings []string
}

// Executor runs one scan. A non-nil error means the scan failed and counts
// against the task's retry budget; the cause is not distinguished.
type Executor interface {
	Execute(ctx context.Context, target netip.Prefix, params []string) (Outcome, error)
}

// NmapExecutor runs the nmap binary through github.com/Ullaakut/nmap/v3.
type NmapExecutor struct {
	binary string
	xmlDir string
}

// NewNmapExecutor returns an executor using nmap from PATH.
func NewNmapExecutor() NmapExecutor {
	return NmapExecutor{}
}

// WithBinary sets an explicit path to the nmap binary.
func (e NmapExecutor) WithBinary(path string) NmapExecutor {
	e.binary = path
	return e
}

// WithXMLDir keeps a copy of every XML report in dir.
func (e NmapExecutor) WithXMLDir(dir string) NmapExecutor {
	e.xmlDir = dir
	return e
}

// Execute runs nmap with params verbatim against target. The scan is not
// bounded by a timeout; it ends when nmap exits or ctx is cancelled.
func (e NmapExecutor) Execute(ctx context.Context, target netip.Prefix, params []string) (Outcome, error) {
	options := []nmap.Option{
		nmap.WithCustomArguments(params...),
		nmap.WithTargets(task.FormatTarget(target)),
	}
	if e.binary != "" {
		options = append(options, nmap.WithBinaryPath(e.binary))
	}
	if target.Addr().Is6() {
		options = append(options, nmap.WithIPv6Scanning())
	}

	logCtx := logging.ContextAttrs(ctx,
		slog.String("scanner", "nmap"),
		slog.String("target", target.String()),
	)

	s, err := nmap.NewScanner(ctx, options...)
	if err != nil {
		return Outcome{}, fmt.Errorf("creating nmap scanner: %w", err)
	}

	start := time.Now()
	slog.DebugContext(logCtx, "nmap started", "parameters", params)
	run, warningsp, err := s.Run()
	var warnings []string
	if warningsp != nil {
		warnings = *warningsp
	}
	for _, w := range warnings {
		slog.WarnContext(logCtx, "nmap", "warning", w)
	}
	if err != nil {
		return Outcome{Warnings: warnings}, fmt.Errorf("nmap scan: %w", err)
	}
	slog.DebugContext(logCtx, "nmap finished", "elapsed", time.Since(start).String())

	raw, err := io.ReadAll(run.ToReader())
	if err != nil {
		return Outcome{Warnings: warnings}, fmt.Errorf("reading nmap report: %w", err)
	}

	out := Outcome{Output: raw, Warnings: warnings}
	if e.xmlDir != "" {
		path, err := writeXML(e.xmlDir, raw)
		if err != nil {
			// the report is still delivered through the queue
			slog.WarnContext(logCtx, "failed to keep xml copy", "error", err)
		} else {
			out.XMLPath = path
		}
	}
	return out, nil
}

func writeXML(dir string, raw []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.xml", time.Now().UTC().UnixNano()))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
