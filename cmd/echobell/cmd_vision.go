package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/echobell/echobell/internal/models"
)

func visionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vision",
		Short: "Manage detector label mappings",
	}

	cmd.AddCommand(
		visionToggleCmd(true),
		visionToggleCmd(false),
		visionSetCmd(),
	)

	return cmd
}

func visionToggleCmd(enable bool) *cobra.Command {
	use, state := "disable", "off"
	if enable {
		use, state = "enable", "on"
	}

	return &cobra.Command{
		Use:   use + " <model> <raw-label>",
		Short: "Turn a label mapping " + state,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("vision %s: %w", use, err)
			}
			defer func() { _ = st.Close() }()

			if err := st.SetVisionMappingEnabled(ctx, args[0], args[1], enable); err != nil {
				return fmt.Errorf("vision %s: %s/%s: %w", use, args[0], args[1], err)
			}
			fmt.Printf("Mapping %s/%s %sd\n", args[0], args[1], use)
			return nil
		},
	}
}

func visionSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <model> <raw-label> <semantic-class>",
		Short: "Create or replace a label mapping",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("vision set: %w", err)
			}
			defer func() { _ = st.Close() }()

			m := models.VisionClassMapping{ModelName: args[0], RawClass: args[1], SemanticClass: args[2], Enabled: true}
			if err := st.UpsertVisionMapping(ctx, m); err != nil {
				return fmt.Errorf("vision set: %w", err)
			}
			fmt.Printf("Mapping %s/%s -> %s\n", m.ModelName, m.RawClass, m.SemanticClass)
			return nil
		},
	}
}
