package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"chatrouter/internal/audit"

	"github.com/spf13/cobra"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the dispatch journal",
	}

	var limit int
	recent := &cobra.Command{
		Use:   "recent",
		Short: "Show the most recent listener outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tCOMPONENT\tEVENT\tAUTHOR\tLISTENER\tSTATUS\tDURATION\tERROR")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.At.Format(time.DateTime), e.Component, e.EventID, e.Author, e.Listener, e.Status, e.Duration, e.Error)
			}
			return tw.Flush()
		},
	}
	recent.Flags().IntVarP(&limit, "limit", "n", 20, "number of outcomes to show")
	cmd.AddCommand(recent)

	var days int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete journal entries older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Prune(cmd.Context(), time.Now().AddDate(0, 0, -days))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d cycle(s)\n", n)
			return nil
		},
	}
	prune.Flags().IntVar(&days, "days", 30, "keep entries newer than this many days")
	cmd.AddCommand(prune)

	return cmd
}

func openJournal(cmd *cobra.Command) (*audit.Store, error) {
	cfg, err := loadConfigOrDefaults()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return audit.Open(cmd.Context(), cfg.Audit.DBPath, audit.WithLogger(logger))
}

