// Package cli wires the nmapcluster commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"nmapcluster/config"
	"nmapcluster/logging"
	"nmapcluster/queue"
	"nmapcluster/scanner"
)

type app struct {
	cfg config.Config

	flagEnvFile string
	flagVerbose bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "nmapcluster",
		Short:             "Distributed nmap scanning over shared Redis queues",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
	}
	root.PersistentFlags().StringVar(&a.flagEnvFile, "env-file", "", "Load settings from this file instead of ./.env")
	root.PersistentFlags().BoolVar(&a.flagVerbose, "verbose", false, "verbose logging")

	root.AddCommand(
		a.coordinatorCommand(),
		a.workerCommand(),
		a.exportCommand(),
		versionCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		slog.Error("nmapcluster failed", "error", err)
		return 1
	}
	return 0
}

func (a *app) init(cmd *cobra.Command, _ []string) error {
	var files []string
	if a.flagEnvFile != "" {
		files = append(files, a.flagEnvFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := logging.ParseLevel(cfg.LogLevel)
	if a.flagVerbose {
		level = slog.LevelDebug
	}
	logging.Configure(level)

	ctx := logging.ContextAttrs(cmd.Context(), slog.Group("nmapcluster",
		slog.String("cmd", cmd.Name()),
		slog.Int("pid", os.Getpid()),
	))
	cmd.SetContext(ctx)
	return nil
}

// openQueues connects to the configured queue backend. The returned client is
// nil for the in-memory backend.
func (a *app) openQueues(ctx context.Context) (queue.Set, *redis.Client, error) {
	if a.cfg.QueueBackend == config.BackendMemory {
		slog.WarnContext(ctx, "using in-memory queues, only local workers can take part")
		return queue.NewMemorySet(), nil, nil
	}
	set, err := queue.DialRedis(ctx, a.cfg.RedisOptions())
	if err != nil {
		return nil, nil, err
	}
	return set, set.Client(), nil
}

func (a *app) executor() scanner.NmapExecutor {
	return scanner.NewNmapExecutor().WithBinary(a.cfg.NmapBinary).WithXMLDir(a.cfg.XMLDir)
}

func closeQueues(ctx context.Context, client *redis.Client) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		slog.WarnContext(ctx, "closing redis connection", "error", err)
	}
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
