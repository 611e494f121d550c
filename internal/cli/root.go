// Package cli implements the Sunflower command-line interface using Cobra.
// Engagement commands go through a running `serve` when one answers on the
// configured address and open the state database directly otherwise.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	jsonOutput bool
	verbose    bool
	localOnly  bool
)

var rootCmd = &cobra.Command{
	Use:   "sunflower",
	Short: "Sunflower: grow a flower with daily sunlight",
	Long: `Sunflower tracks daily outdoor sunlight toward a goal, keeps a streak of
daily picks and decides which prompt the app shows on launch.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().BoolVar(&localOnly, "local", false, "Open the state database directly even if the service is running")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at the configured level instead of warnings only")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
