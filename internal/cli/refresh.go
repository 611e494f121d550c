package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(refreshCmd)
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the entitlement from the purchase backend",
	Args:  cobra.NoArgs,
	RunE:  runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	s, done, err := openEngagement()
	if err != nil {
		return err
	}
	defer done()

	upd, err := s.RefreshEntitlement(context.Background(), time.Now())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(upd)
	}

	switch {
	case upd.Stale:
		fmt.Printf("Purchase backend unavailable; keeping %s.\n", upd.Entitlement)
	case upd.Entitlement != upd.Previous:
		fmt.Printf("Entitlement: %s → %s\n", upd.Previous, upd.Entitlement)
	default:
		fmt.Printf("Entitlement: %s (unchanged)\n", upd.Entitlement)
	}
	return nil
}
