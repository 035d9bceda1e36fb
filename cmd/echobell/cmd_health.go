package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/echobell/echobell/internal/rules"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the database, rules and policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			allOK := true

			st, err := newStore(ctx, logger)
			if err != nil {
				fmt.Printf("Database: FAIL (%v)\n", err)
				return fmt.Errorf("one or more health checks failed")
			}
			defer func() { _ = st.Close() }()

			version, err := st.SchemaVersion(ctx)
			if err != nil {
				fmt.Printf("Database: FAIL (%v)\n", err)
				allOK = false
			} else {
				fmt.Printf("Database: OK (schema v%d)\n", version)
			}

			a, err := newApp(ctx, st, logger)
			if err != nil {
				fmt.Printf("Rules: FAIL (%v)\n", err)
				allOK = false
			} else {
				h := a.Rules.Health()
				if h.Status != rules.StatusOK {
					fmt.Printf("Rules: FAIL (%s)\n", h.Status)
					allOK = false
				} else {
					fmt.Printf("Rules: OK (v%d, %d invalid)\n", h.Version, h.Invalid)
				}
				fmt.Printf("Policy: OK (%d rules)\n", len(a.Policy.Rules()))
				fmt.Printf("Mode: %s\n", a.Household.Snapshot().ActiveMode())
			}

			if !allOK {
				return fmt.Errorf("one or more health checks failed")
			}
			return nil
		},
	}
}
