package cli

import (
	"runtime/debug"

	"github.com/spf13/cobra"
)

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			info, ok := debug.ReadBuildInfo()
			if !ok {
				printf(cmd, "nmapcluster: version info not available\n")
				return
			}
			printf(cmd, "nmapcluster: %s\n", info.Main.Version)
			printf(cmd, "go:          %s\n", info.GoVersion)
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					printf(cmd, "commit:      %s\n", s.Value)
				case "vcs.time":
					printf(cmd, "date:        %s\n", s.Value)
				}
			}
		},
	}
}
