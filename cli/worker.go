package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"nmapcluster/scanner/rawaccess"
	"nmapcluster/worker"
)

func (a *app) workerCommand() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run scan tasks from the shared queues until they stay empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if concurrency > 0 {
				a.cfg.WorkerConcurrency = concurrency
			}

			set, client, err := a.openQueues(ctx)
			if err != nil {
				return err
			}
			defer closeQueues(ctx, client)

			warnRawAccess(ctx)
			addr := workerAddress(ctx, a.cfg.WorkerAddr)
			slog.InfoContext(ctx, "worker pool starting", "worker", addr, "loops", a.cfg.WorkerConcurrency)
			err = worker.RunPool(ctx, a.cfg.WorkerConcurrency, set, a.executor(), worker.Options{Address: addr})
			if err := ignoreCanceled(err); err != nil {
				return err
			}
			slog.InfoContext(ctx, "worker pool finished")
			return nil
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "number of polling loops (default WORKER_CONCURRENCY)")
	return cmd
}

// warnRawAccess reports early when this host cannot run the raw follow-up
// scans; they would otherwise burn their retries.
func warnRawAccess(ctx context.Context) {
	devices, err := rawaccess.Check()
	if err != nil {
		slog.WarnContext(ctx, "SYN, SCTP and UDP scans will fail on this worker", "error", err)
		return
	}
	slog.DebugContext(ctx, "raw packet access available", "devices", devices)
}
