package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sunflower-app/sunflower/internal/domain"
)

// Client calls a running engagement service. Its methods mirror
// engagement.Session so callers can use either; the server applies its own
// clock, so the now arguments are ignored.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the service at base, e.g.
// http://127.0.0.1:7411. A nil hc uses a 10 second timeout.
func NewClient(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

// Ping reports whether a Sunflower service answers at the base URL.
func (c *Client) Ping(ctx context.Context) error {
	var v struct {
		Version string `json:"version"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/version", nil, &v); err != nil {
		return err
	}
	if v.Version == "" {
		return fmt.Errorf("%s is not a sunflower service", c.base)
	}
	return nil
}

// Launch registers a cold launch.
func (c *Client) Launch(ctx context.Context, _ time.Time) (domain.Decision, error) {
	var d domain.Decision
	err := c.call(ctx, http.MethodPost, "/api/engagement/launch", nil, &d)
	return d, err
}

// BecameActive evaluates a return to the foreground.
func (c *Client) BecameActive(ctx context.Context, _ time.Time) (domain.Decision, error) {
	var d domain.Decision
	err := c.call(ctx, http.MethodPost, "/api/engagement/active", nil, &d)
	return d, err
}

// ResolveReview answers the review prompt.
func (c *Client) ResolveReview(accepted bool) (domain.EngagementState, error) {
	var st domain.EngagementState
	err := c.call(context.Background(), http.MethodPost, "/api/engagement/review",
		map[string]bool{"accepted": accepted}, &st)
	return st, err
}

// RecordPick records today's pick.
func (c *Client) RecordPick(ctx context.Context, _ time.Time) (domain.PickOutcome, error) {
	var out domain.PickOutcome
	err := c.call(ctx, http.MethodPost, "/api/engagement/picks", nil, &out)
	return out, err
}

// SetSunGoal changes the daily goal.
func (c *Client) SetSunGoal(ctx context.Context, goal time.Duration) error {
	return c.call(ctx, http.MethodPut, "/api/engagement/goal",
		map[string]float64{"seconds": goal.Seconds()}, nil)
}

// Growth classifies an exposure against the current goal.
func (c *Client) Growth(exposure time.Duration) (domain.Growth, error) {
	var g domain.Growth
	q := url.Values{"exposure": {strconv.FormatFloat(exposure.Seconds(), 'f', -1, 64)}}
	err := c.call(context.Background(), http.MethodGet, "/api/engagement/growth?"+q.Encode(), nil, &g)
	return g, err
}

// RefreshEntitlement asks the service to refetch purchase facts.
func (c *Client) RefreshEntitlement(ctx context.Context, _ time.Time) (domain.EntitlementUpdate, error) {
	var upd domain.EntitlementUpdate
	err := c.call(ctx, http.MethodPost, "/api/engagement/entitlement/refresh", nil, &upd)
	return upd, err
}

// HandleSunSample submits today's exposure.
func (c *Client) HandleSunSample(ctx context.Context, exposure time.Duration, _ time.Time) (domain.Eligibility, error) {
	var el domain.Eligibility
	err := c.call(ctx, http.MethodPost, "/api/engagement/samples/sun",
		map[string]float64{"seconds": exposure.Seconds()}, &el)
	return el, err
}

// HandleSleepSample submits the end of the latest sleep sample.
func (c *Client) HandleSleepSample(ctx context.Context, end, _ time.Time) (domain.Eligibility, error) {
	var el domain.Eligibility
	err := c.call(ctx, http.MethodPost, "/api/engagement/samples/sleep",
		map[string]time.Time{"end": end}, &el)
	return el, err
}

// PendingNotifications lists queued notifications.
func (c *Client) PendingNotifications(limit int) ([]domain.Notification, error) {
	var body struct {
		Notifications []domain.Notification `json:"notifications"`
	}
	path := "/api/engagement/notifications?limit=" + strconv.Itoa(limit)
	err := c.call(context.Background(), http.MethodGet, path, nil, &body)
	return body.Notifications, err
}

// MarkNotificationShown marks one notification as shown.
func (c *Client) MarkNotificationShown(id string) error {
	path := "/api/engagement/notifications/" + url.PathEscape(id) + "/shown"
	return c.call(context.Background(), http.MethodPost, path, nil, nil)
}

// Snapshot returns the service's engagement picture.
func (c *Client) Snapshot(_ time.Time) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := c.call(context.Background(), http.MethodGet, "/api/engagement/state", nil, &snap)
	return snap, err
}

// call sends one JSON request and decodes a 2xx response into out.
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return responseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// responseError turns an error body back into the domain error it came
// from where one is recognisable.
func responseError(resp *http.Response) error {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		msg = body.Error.Message
	}

	for _, known := range []error{
		domain.ErrInvalidSunGoal,
		domain.ErrInvalidExposure,
		domain.ErrNotificationNotFound,
	} {
		if strings.Contains(msg, known.Error()) {
			return fmt.Errorf("%w (HTTP %d)", known, resp.StatusCode)
		}
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
}
