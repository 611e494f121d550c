package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(goalCmd)
	rootCmd.AddCommand(growthCmd)
}

var goalCmd = &cobra.Command{
	Use:   "goal DURATION",
	Short: "Set the daily sun goal (e.g. 30m, 1h, 1800)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		goal, err := parseSeconds(args[0])
		if err != nil {
			return err
		}

		s, done, err := openEngagement()
		if err != nil {
			return err
		}
		defer done()

		if err := s.SetSunGoal(context.Background(), goal); err != nil {
			return err
		}
		fmt.Printf("Daily sun goal set to %s.\n", goal)
		return nil
	},
}

var growthCmd = &cobra.Command{
	Use:   "growth EXPOSURE",
	Short: "Show the growth state for an exposure (e.g. 20m, 1200)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exposure, err := parseSeconds(args[0])
		if err != nil {
			return err
		}

		s, done, err := openEngagement()
		if err != nil {
			return err
		}
		defer done()

		g, err := s.Growth(exposure)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(g)
		}
		fmt.Printf("%s (%.0f%% of goal)\n", g.State, g.Percentage)
		fmt.Printf("  Animation: %.2f → %.2f at %.1fx\n", g.Profile.Start, g.Profile.End, g.Profile.Speed)
		return nil
	},
}
