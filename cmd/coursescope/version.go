package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/coursescope/internal/app"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "coursescope %s (commit %s, built %s, %s)\n",
				app.BuildVersion, app.BuildCommit, app.BuildDate, runtime.Version())
		},
	}
}
