package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"nmapcluster/bom"
	"nmapcluster/store"
)

func (a *app) exportCommand() *cobra.Command {
	var dbPath, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the host inventory as a CycloneDX JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if dbPath == "" {
				dbPath = a.cfg.DBPath
			}
			db, err := store.Open(ctx, dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			hosts, err := db.Hosts(ctx)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			return bom.Write(w, hosts)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite inventory path (default DB_PATH)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	return cmd
}
