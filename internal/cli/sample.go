package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sunflower-app/sunflower/internal/domain"
)

func init() {
	sampleCmd.AddCommand(sampleSunCmd)
	sampleCmd.AddCommand(sampleSleepCmd)
	rootCmd.AddCommand(sampleCmd)
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Feed a health sample and queue notifications that become due",
}

var sampleSunCmd = &cobra.Command{
	Use:   "sun EXPOSURE",
	Short: "Record today's sun exposure (e.g. 35m, 2000)",
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

		el, err := s.HandleSunSample(context.Background(), exposure, time.Now())
		if err != nil {
			return err
		}
		return printEligibility(el, "sun-ready")
	},
}

var sampleSleepCmd = &cobra.Command{
	Use:   "sleep END",
	Short: "Record when the last sleep sample ended (RFC 3339 or HH:MM today)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		end, err := parseSampleEnd(args[0], now)
		if err != nil {
			return err
		}
		s, done, err := openEngagement()
		if err != nil {
			return err
		}
		defer done()

		el, err := s.HandleSleepSample(context.Background(), end, now)
		if err != nil {
			return err
		}
		return printEligibility(el, "good-morning")
	},
}

// parseSampleEnd accepts an RFC 3339 timestamp or a local HH:MM today.
func parseSampleEnd(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Local(), nil
	}
	clock, err := time.ParseInLocation("15:04", s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("want RFC 3339 or HH:MM, got %q", s)
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, now.Location()), nil
}

func printEligibility(el domain.Eligibility, name string) error {
	if jsonOutput {
		return printJSON(el)
	}
	if el.Fire {
		fmt.Printf("Queued %s notification.\n", name)
	} else {
		fmt.Printf("No %s notification due.\n", name)
	}
	return nil
}
