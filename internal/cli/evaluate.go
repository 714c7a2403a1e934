package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run one evaluation pass over all active rules",
	RunE:  runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	engine, store, err := initEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := engine.EvaluateAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	fmt.Printf("Evaluation pass finished:\n")
	fmt.Printf("  Rules evaluated:   %d\n", summary.Evaluated)
	fmt.Printf("  Notifications:     %d\n", summary.Notified)
	fmt.Printf("  Healthy (skipped): %d\n", summary.SkippedHealthy)
	fmt.Printf("  In cooldown:       %d\n", summary.SkippedCooldown)
	fmt.Printf("  Failures:          %d\n", len(summary.Failures))
	for _, f := range summary.Failures {
		fmt.Printf("    - %s (%s): %s: %s\n", f.ItemName, f.RuleID, f.Kind, f.Cause)
	}

	return nil
}
