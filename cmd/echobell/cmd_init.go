package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database and seed default rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}
			defer func() { _ = st.Close() }()

			version, err := st.SchemaVersion(ctx)
			if err != nil {
				return fmt.Errorf("init: reading schema version: %w", err)
			}
			fmt.Printf("Database ready: %s (schema v%d, seed=%t)\n", cfg.Database.Path, version, cfg.Database.Seed)
			return nil
		},
	}
}
