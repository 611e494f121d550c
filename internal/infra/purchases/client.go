// Package purchases fetches a customer's purchase facts from the purchase
// backend's REST API.
package purchases

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sunflower-app/sunflower/internal/domain"
)

// Config configures the client.
type Config struct {
	Endpoint  string // e.g. https://api.revenuecat.com/v1
	APIKey    string
	AppUserID string
	Timeout   time.Duration
}

// Client implements domain.PurchaseSource.
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

// NewClient creates a client. A zero timeout means 10 seconds.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		now:  time.Now,
	}
}

// subscriberResponse is the subset of the customer-info payload we read.
type subscriberResponse struct {
	Subscriber struct {
		Subscriptions map[string]struct {
			ExpiresDate *time.Time `json:"expires_date"`
		} `json:"subscriptions"`
		NonSubscriptions map[string][]json.RawMessage `json:"non_subscriptions"`
	} `json:"subscriber"`
}

// CustomerInfo fetches the user's purchase facts. Any failure wraps
// domain.ErrPurchasesUnavailable.
func (c *Client) CustomerInfo(ctx context.Context) (domain.PurchaseFacts, error) {
	var facts domain.PurchaseFacts
	if c.cfg.Endpoint == "" || c.cfg.AppUserID == "" {
		return facts, fmt.Errorf("%w: endpoint or app user id not configured", domain.ErrPurchasesUnavailable)
	}

	u := strings.TrimRight(c.cfg.Endpoint, "/") + "/subscribers/" + url.PathEscape(c.cfg.AppUserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return facts, fmt.Errorf("%w: %v", domain.ErrPurchasesUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return facts, fmt.Errorf("%w: %v", domain.ErrPurchasesUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return facts, fmt.Errorf("%w: HTTP %d: %s", domain.ErrPurchasesUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload subscriberResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return facts, fmt.Errorf("%w: decode customer info: %v", domain.ErrPurchasesUnavailable, err)
	}

	now := c.now()
	for id, sub := range payload.Subscriber.Subscriptions {
		// No expiry means a lifetime-style subscription.
		if sub.ExpiresDate == nil || sub.ExpiresDate.After(now) {
			facts.ActiveSubscriptions = append(facts.ActiveSubscriptions, id)
		}
	}
	for id, purchases := range payload.Subscriber.NonSubscriptions {
		if len(purchases) > 0 {
			facts.NonSubscriptions = append(facts.NonSubscriptions, id)
		}
	}
	sort.Strings(facts.ActiveSubscriptions)
	sort.Strings(facts.NonSubscriptions)
	return facts, nil
}
