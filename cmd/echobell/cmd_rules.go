package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/echobell/echobell/internal/rules"
	"github.com/echobell/echobell/pkg/textutil"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and toggle classification rules",
	}

	cmd.AddCommand(
		rulesListCmd(),
		rulesValidateCmd(),
		rulesToggleCmd(true),
		rulesToggleCmd(false),
	)

	return cmd
}

func rulesListCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the compiled pattern rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			a, closeFn, err := openApp(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("rules list: %w", err)
			}
			defer closeFn()

			snap := a.Rules.Snapshot()
			if outputJSON {
				return printJSON(snap.Rules)
			}

			fmt.Printf("Rules v%d: %d active, %d invalid\n", snap.Version, len(snap.Rules), len(snap.Invalid))
			for i := range snap.Rules {
				r := &snap.Rules[i]
				kind := "text"
				if r.IsRegex {
					kind = "regex"
				}
				target := r.Target
				if target == "" {
					target = "-"
				}
				fmt.Printf("%4d  %-5s  %-30s  %-18s  %-16s  %.2f\n",
					r.ID, kind, textutil.Truncate(r.Pattern, 30), target, r.Entity, r.Contribution)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	return cmd
}

func rulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Compile the rule tables and report invalid rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("rules validate: %w", err)
			}
			defer func() { _ = st.Close() }()

			rs, err := st.LoadRuleSet(ctx)
			if err != nil {
				return fmt.Errorf("rules validate: loading rules: %w", err)
			}
			snap := rules.Compile(rs, 0)
			for i := range snap.Invalid {
				fmt.Printf("INVALID %s\n", snap.Invalid[i].Error())
			}
			fmt.Printf("%d patterns compiled, %d entities, %d vision mappings, %d invalid\n",
				len(snap.Rules), len(snap.Entities), len(snap.Mappings), len(snap.Invalid))
			if len(snap.Invalid) > 0 {
				return fmt.Errorf("rules validate: %d invalid rule(s)", len(snap.Invalid))
			}
			return nil
		},
	}
}

func rulesToggleCmd(enable bool) *cobra.Command {
	var entity bool

	use, verb := "disable", "Disable"
	if enable {
		use, verb = "enable", "Enable"
	}

	cmd := &cobra.Command{
		Use:   use + " <pattern-id | entity-name>",
		Short: verb + " a pattern rule by ID, or an entity with --entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("rules %s: %w", use, err)
			}
			defer func() { _ = st.Close() }()

			if entity {
				if err := st.SetEntityEnabled(ctx, args[0], enable); err != nil {
					return fmt.Errorf("rules %s: entity %q: %w", use, args[0], err)
				}
				fmt.Printf("Entity %s %sd\n", args[0], use)
				return nil
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("rules %s: invalid pattern id %q", use, args[0])
			}
			if err := st.SetPatternEnabled(ctx, id, enable); err != nil {
				return fmt.Errorf("rules %s: pattern %d: %w", use, id, err)
			}
			fmt.Printf("Pattern %d %sd\n", id, use)
			return nil
		},
	}

	cmd.Flags().BoolVar(&entity, "entity", false, "treat the argument as an entity name")
	return cmd
}
