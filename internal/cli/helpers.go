package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sunflower-app/sunflower/internal/api"
	"github.com/sunflower-app/sunflower/internal/app/engagement"
	"github.com/sunflower-app/sunflower/internal/daemon"
	"github.com/sunflower-app/sunflower/internal/domain"
)

// engagementOps is the session surface the commands drive. Both a local
// *engagement.Session and an *api.Client for a running service satisfy it.
type engagementOps interface {
	Launch(ctx context.Context, now time.Time) (domain.Decision, error)
	BecameActive(ctx context.Context, now time.Time) (domain.Decision, error)
	ResolveReview(accepted bool) (domain.EngagementState, error)
	RecordPick(ctx context.Context, now time.Time) (domain.PickOutcome, error)
	SetSunGoal(ctx context.Context, goal time.Duration) error
	Growth(exposure time.Duration) (domain.Growth, error)
	RefreshEntitlement(ctx context.Context, now time.Time) (domain.EntitlementUpdate, error)
	HandleSunSample(ctx context.Context, exposure time.Duration, now time.Time) (domain.Eligibility, error)
	HandleSleepSample(ctx context.Context, end, now time.Time) (domain.Eligibility, error)
	PendingNotifications(limit int) ([]domain.Notification, error)
	MarkNotificationShown(id string) error
	Snapshot(now time.Time) (domain.Snapshot, error)
}

var (
	_ engagementOps = (*engagement.Session)(nil)
	_ engagementOps = (*api.Client)(nil)
)

// openEngagement returns the running service when `sunflower serve` is up,
// so its session stays the only writer of the state database. Otherwise
// it wires a local session; the returned func releases it.
func openEngagement() (engagementOps, func(), error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if !localOnly {
		client := api.NewClient(serviceURL(cfg.API), nil)
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		err := client.Ping(ctx)
		cancel()
		if err == nil {
			return client, func() {}, nil
		}
	}

	if !verbose {
		cfg.Logging.Level = "warn"
	}
	d, err := daemon.NewWithConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	return d.Session, func() { d.Close() }, nil
}

// serviceURL is where a local `serve` with this config listens. Wildcard
// hosts are dialled on loopback.
func serviceURL(c daemon.APIConfig) string {
	host := c.Host
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(c.Port))
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseSeconds accepts "90", "90s", "1m30s".
func parseSeconds(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func printDecision(d domain.Decision) {
	switch {
	case d.FirstRun:
		fmt.Println("Show: paywall (first run)")
	case d.ForcedPaywall:
		fmt.Println("Show: paywall (trial ended, cannot be dismissed)")
		if d.PromoOfferActive {
			fmt.Printf("  Promo offer ends %s (%s left)\n",
				formatDate(d.PromoOfferEndsAt), time.Until(d.PromoOfferEndsAt).Truncate(time.Minute))
		}
	case d.Modal == domain.ModalNone:
		fmt.Println("Show: nothing")
	default:
		fmt.Printf("Show: %s\n", d.Modal)
	}
	fmt.Printf("  Launches: %d (review prompt at %d)\n", d.State.LaunchCount, d.State.NextAlertLaunchCount)
}
