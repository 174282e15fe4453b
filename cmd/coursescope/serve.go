package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/coursescope/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service (scrape, proxy-course and liveness endpoints).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	addSiteFlags(cmd.Flags())
	addServeFlags(cmd.Flags())
	return cmd
}

func serve(ctx context.Context, cfg app.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close(context.WithoutCancel(ctx))

	return a.Run(ctx)
}
