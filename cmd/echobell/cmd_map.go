package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func mapLabelCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "map-label <raw-label>...",
		Short: "Map raw detector labels to semantic classes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			a, closeFn, err := openApp(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("map-label: %w", err)
			}
			defer closeFn()

			if model == "" {
				model = a.Mapper.DefaultModel()
			}
			for _, raw := range args {
				fmt.Printf("%s/%s -> %s\n", model, raw, a.Mapper.MapLabel(model, raw))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "detector model (default: vision.default_model)")
	return cmd
}
