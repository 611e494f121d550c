package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sunflower-app/sunflower/internal/daemon"
)

var (
	serveHost     string
	servePort     int
	serveMetrics  bool
	serveLogLevel string
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveMetrics, "metrics", false, "Expose /metrics regardless of [telemetry]")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engagement service",
	Long: `Run the engagement API (default 127.0.0.1:7411) together with the health
loop, the companion retry queue and a startup entitlement refresh.
Stops cleanly on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyServeFlags(&cfg)

	d, err := daemon.NewWithConfig(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Serve(context.Background())
}

// applyServeFlags overlays command-line overrides on the loaded config.
func applyServeFlags(cfg *daemon.Config) {
	if serveHost != "" {
		cfg.API.Host = serveHost
	}
	if servePort > 0 {
		cfg.API.Port = servePort
	}
	if serveMetrics {
		cfg.Telemetry.Prometheus = true
	}
	if serveLogLevel != "" {
		cfg.Logging.Level = serveLogLevel
	}
}
