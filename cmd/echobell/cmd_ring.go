package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/echobell/echobell/internal/doorbell"
	"github.com/echobell/echobell/internal/models"
)

func ringCmd() *cobra.Command {
	var (
		model      string
		labels     []string
		uniform    string
		snapshot   string
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "ring [transcript]",
		Short: "Simulate a doorbell ring and record the event",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			a, closeFn, err := openApp(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("ring: %w", err)
			}
			defer closeFn()

			ring := doorbell.Ring{
				Transcript:   strings.Join(args, " "),
				Model:        model,
				Uniform:      uniform,
				SnapshotPath: snapshot,
			}
			for _, l := range labels {
				ring.Detections = append(ring.Detections, models.Detection{Class: l, Confidence: 1})
			}

			out, err := a.Agent.HandleRing(cmd.Context(), ring)
			if err != nil {
				return fmt.Errorf("ring: %w", err)
			}

			if outputJSON {
				return printJSON(out)
			}

			fmt.Printf("Intent: %s (%.2f, urgency %d, via %s)\n",
				out.Classification.Intent, out.Classification.Confidence, out.Classification.Urgency, out.Classification.Source)
			fmt.Printf("Say:    %s\n", out.Plan.Speak)
			fmt.Printf("Notify: %s [rule %s]\n", out.Plan.Notify, out.Plan.Rule)
			for _, n := range out.Targets {
				fmt.Printf("  -> %s:%s\n", n.Kind, n.Target)
			}
			fmt.Printf("Event:  %s\n", out.Event.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "detector model for --label")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "raw detector label seen in the frame (repeatable)")
	cmd.Flags().StringVar(&uniform, "uniform", "", "uniform seen on camera (police or fire)")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "camera snapshot path to attach to the event")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	return cmd
}
