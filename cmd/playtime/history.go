package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pscheid92/playtime/internal/adapter/postgres"
	"github.com/pscheid92/playtime/internal/domain"
	"github.com/pscheid92/playtime/internal/platform/config"
)

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <user-id>",
		Short: "List the logged sessions of one user from the Postgres session log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, startupTimeout)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.DatabaseURL == "" {
				return errors.New("history reads the Postgres session log; DATABASE_URL is required")
			}

			pool, err := postgres.Connect(ctx, cfg.DatabaseURL, nil)
			if err != nil {
				return err
			}
			defer pool.Close()

			records, err := postgres.NewSessionLog(pool).ListByEntity(ctx, domain.EntityID(id))
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), records, cfg.Location())
		},
	}
}

func printRecords(w io.Writer, records []domain.SessionRecord, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(domain.RecordColumns, "\t"))
	for _, r := range records {
		cells := make([]string, 0, len(domain.RecordColumns))
		for _, v := range r.Row(loc) {
			cells = append(cells, fmt.Sprint(v))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
