package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func tickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one tick, print the report and exit",
		Long:  "Runs a single tracking tick. Meant for cron jobs and other external schedulers.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			report, err := rt.tracker.RunTick(ctx)
			if err != nil {
				return fmt.Errorf("tick failed: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), report.String())
			return err
		},
	}
}
