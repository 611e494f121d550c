package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show streak, growth and entitlement",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, done, err := openEngagement()
	if err != nil {
		return err
	}
	defer done()

	snap, err := s.Snapshot(time.Now())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(snap)
	}

	st := snap.State
	fmt.Printf("Streak:       %d day(s)", snap.Streak.TodayStreak)
	if snap.Streak.Carried {
		fmt.Print(" (pick today to keep it)")
	}
	fmt.Println()
	fmt.Printf("Picks:        %d\n", snap.Picks)
	fmt.Printf("Sun today:    %s of %s (%.0f%%, %s)\n",
		st.TimeInSun.Truncate(time.Second), st.SunGoal, snap.Growth.Percentage, snap.Growth.State)
	fmt.Printf("Entitlement:  %s\n", st.Entitlement)
	fmt.Printf("Onboarded:    %s\n", formatDate(st.OnboardingDate))
	fmt.Printf("Last picked:  %s\n", formatDate(st.LastPickedDate))
	fmt.Printf("Launches:     %d\n", st.LaunchCount)
	return nil
}
