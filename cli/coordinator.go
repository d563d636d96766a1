package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"nmapcluster/api"
	"nmapcluster/coordinator"
	"nmapcluster/partition"
	"nmapcluster/store"
	"nmapcluster/worker"
)

func (a *app) coordinatorCommand() *cobra.Command {
	var (
		localWorker bool
		serveAPI    bool
		dbPath      string
		interval    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "coordinator [flags] TARGET...",
		Short: "Seed host discovery for the targets and collect results until interrupted",
		Long: `coordinator partitions every TARGET (an address or CIDR block) into
discovery tasks, schedules port scans for each host found up and stores the
port scan results. It runs until interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			targets, err := partition.ParseTargets(args)
			if err != nil {
				return err
			}
			if dbPath != "" {
				a.cfg.DBPath = dbPath
			}

			set, client, err := a.openQueues(ctx)
			if err != nil {
				return err
			}
			defer closeQueues(ctx, client)

			db, err := store.Open(ctx, a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			c := coordinator.New(set, db, coordinator.Options{Interval: interval})
			n, err := c.Seed(ctx, targets)
			if err != nil {
				return err
			}
			slog.InfoContext(ctx, "coordinator started", "discovery_tasks", n, "db", a.cfg.DBPath)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return c.Run(gctx)
			})
			if serveAPI {
				router := api.NewRouter(api.NewServer(set, db), api.Options{
					APIKey:      a.cfg.APIKey,
					RateLimit:   a.cfg.RateLimit,
					Redis:       client,
					RedisPrefix: a.cfg.QueuePrefix,
				})
				g.Go(func() error {
					return api.Serve(gctx, a.cfg.APIAddr, router)
				})
			}
			if localWorker {
				warnRawAccess(ctx)
				opts := worker.Options{Address: workerAddress(gctx, a.cfg.WorkerAddr)}
				g.Go(func() error {
					return ignoreCanceled(worker.RunPool(gctx, a.cfg.WorkerConcurrency, set, a.executor(), opts))
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&localWorker, "local-worker", true, "also run a worker in this process")
	cmd.Flags().BoolVar(&serveAPI, "api", true, "serve the status API on API_ADDR")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite inventory path (default DB_PATH)")
	cmd.Flags().DurationVar(&interval, "interval", coordinator.DefaultInterval, "pause between polls of the results queue")
	return cmd
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
