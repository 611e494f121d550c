package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/sunflower-app/sunflower/internal/domain"
)

func init() {
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(openCmd)
}

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Register a cold launch and decide which prompt to show",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecision(func(ctx context.Context, d engagementOps) (domain.Decision, error) {
			return d.Launch(ctx, time.Now())
		})
	},
}

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Decide which prompt to show when the app becomes active",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecision(func(ctx context.Context, d engagementOps) (domain.Decision, error) {
			return d.BecameActive(ctx, time.Now())
		})
	},
}

func runDecision(decide func(context.Context, engagementOps) (domain.Decision, error)) error {
	s, done, err := openEngagement()
	if err != nil {
		return err
	}
	defer done()

	dec, err := decide(context.Background(), s)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(dec)
	}
	printDecision(dec)
	return nil
}
