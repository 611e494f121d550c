package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	notificationsCmd.Flags().IntVar(&notifLimit, "limit", 20, "Maximum notifications to list")
	notificationsCmd.Flags().StringVar(&notifShown, "shown", "", "Mark the notification with this id as shown")
	rootCmd.AddCommand(notificationsCmd)
}

var (
	notifLimit int
	notifShown string
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notifs"},
	Short:   "List queued notifications",
	Args:    cobra.NoArgs,
	RunE:    runNotifications,
}

func runNotifications(cmd *cobra.Command, args []string) error {
	s, done, err := openEngagement()
	if err != nil {
		return err
	}
	defer done()

	if notifShown != "" {
		if err := s.MarkNotificationShown(notifShown); err != nil {
			return err
		}
		fmt.Printf("Marked %s as shown.\n", notifShown)
		return nil
	}

	notifs, err := s.PendingNotifications(notifLimit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(notifs)
	}
	if len(notifs) == 0 {
		fmt.Println("No pending notifications.")
		return nil
	}
	fmt.Printf("%-36s  %-14s  %-16s  %s\n", "ID", "TYPE", "CREATED", "TITLE")
	for _, n := range notifs {
		fmt.Printf("%-36s  %-14s  %-16s  %s\n", n.ID, n.Type, formatDate(n.CreatedAt), n.Title)
	}
	return nil
}
