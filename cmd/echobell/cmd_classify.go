package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/echobell/echobell/internal/models"
)

func classifyCmd() *cobra.Command {
	var (
		uniform    string
		outputJSON bool
		explain    bool
	)

	cmd := &cobra.Command{
		Use:   "classify <text>",
		Short: "Classify a visitor utterance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			a, closeFn, err := openApp(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("classify: %w", err)
			}
			defer closeFn()

			text := strings.Join(args, " ")
			var result models.Classification
			if uniform != "" {
				result = a.Classifier.ClassifyScene(a.Mapper.MapDetections("", nil, uniform), text)
			} else {
				result = a.Classifier.Classify(text)
			}

			if outputJSON {
				return printJSON(result)
			}

			fmt.Printf("Intent:     %s\n", result.Intent)
			fmt.Printf("Confidence: %.2f (score %.2f)\n", result.Confidence, result.Score)
			fmt.Printf("Urgency:    %d\n", result.Urgency)
			fmt.Printf("Source:     %s (rules v%d)\n", result.Source, result.RulesetVersion)
			if len(result.MatchedRuleIDs) > 0 {
				fmt.Printf("Rules:      %v\n", result.MatchedRuleIDs)
			}
			if len(result.MatchedEntities) > 0 {
				fmt.Printf("Entities:   %s\n", strings.Join(result.MatchedEntities, ", "))
			}
			if explain {
				intents := make([]string, 0, len(result.Scores))
				for intent := range result.Scores {
					intents = append(intents, intent)
				}
				sort.Strings(intents)
				for _, intent := range intents {
					fmt.Printf("  %-18s %.2f\n", intent, result.Scores[intent])
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&uniform, "uniform", "", "uniform seen on camera (police or fire)")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&explain, "explain", false, "print per-intent scores")
	return cmd
}
