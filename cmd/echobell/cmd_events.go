package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/echobell/echobell/internal/lifecycle"
	"github.com/echobell/echobell/pkg/textutil"
)

func eventsCmd() *cobra.Command {
	var (
		limit      int
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent door events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("events: %w", err)
			}
			defer func() { _ = st.Close() }()

			events, err := st.ListEvents(ctx, limit)
			if err != nil {
				return fmt.Errorf("events: %w", err)
			}

			if outputJSON {
				return printJSON(events)
			}
			if len(events) == 0 {
				fmt.Println("No events recorded.")
				return nil
			}
			for i := range events {
				e := &events[i]
				fmt.Printf("%s  %-8s  %-18s  %.2f  %-8s  %s\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Type, e.Intent, e.Confidence, e.Mode,
					textutil.Truncate(e.Transcript, 60))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max events")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")

	cmd.AddCommand(eventsPruneCmd())
	return cmd
}

func eventsPruneCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete events older than events.retention_days",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("events prune: %w", err)
			}
			defer func() { _ = st.Close() }()

			report, err := lifecycle.NewManager(st, cfg.Events.Retention(), logger).Run(ctx, dryRun)
			if err != nil {
				return fmt.Errorf("events prune: %w", err)
			}
			if report.Cutoff.IsZero() {
				fmt.Println("Retention disabled; nothing pruned.")
				return nil
			}

			verb := "Deleted"
			if dryRun {
				verb = "Would delete"
			}
			fmt.Printf("%s %d event(s) older than %s\n", verb, report.Expired, report.Cutoff.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count without deleting")
	return cmd
}
