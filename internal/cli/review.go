package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reviewCmd)
}

var reviewCmd = &cobra.Command{
	Use:       "review accept|decline",
	Short:     "Answer the review prompt",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"accept", "decline"},
	RunE:      runReview,
}

func runReview(cmd *cobra.Command, args []string) error {
	s, done, err := openEngagement()
	if err != nil {
		return err
	}
	defer done()

	st, err := s.ResolveReview(args[0] == "accept")
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(st)
	}
	if st.GaveReview {
		fmt.Println("Thanks for the review.")
	} else {
		fmt.Printf("Will ask again after %d launches.\n", st.NextAlertLaunchCount)
	}
	return nil
}
