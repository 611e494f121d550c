package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(pickCmd)
}

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Pick today's sunflower",
	Args:  cobra.NoArgs,
	RunE:  runPick,
}

func runPick(cmd *cobra.Command, args []string) error {
	s, done, err := openEngagement()
	if err != nil {
		return err
	}
	defer done()

	out, err := s.RecordPick(context.Background(), time.Now())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(out)
	}

	switch {
	case out.AlreadyPicked:
		fmt.Println("Already picked today.")
	case out.Increased:
		fmt.Printf("Picked! Streak is now %d day(s).\n", out.Streak.TodayStreak)
	default:
		fmt.Printf("Picked! You lost your %d-day streak, starting again at %d.\n",
			out.Streak.YesterdayStreak, out.Streak.TodayStreak)
	}
	return nil
}
