package tekmetric

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tekfollow/tekfollow/internal/ratelimit"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://shop.tekmetric.com"

// dateFormat is the date-only format the upstream API expects in query
// parameters.
const dateFormat = "2006-01-02"

// Config holds the connection settings for one shop.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	ShopID       int64
	Timeout      time.Duration
}

// Client talks to the upstream shop-management API. All calls are paced
// through a shared rate limiter and authenticated with a cached OAuth
// client-credentials token.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *ratelimit.Limiter

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a client for the configured shop. The limiter may be
// shared with other upstream callers.
func NewClient(cfg Config, limiter *ratelimit.Limiter) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
	}
}

// FetchAppointments returns upstream appointments scheduled in the given
// date range for the configured shop.
func (c *Client) FetchAppointments(ctx context.Context, start, end time.Time) ([]Appointment, error) {
	q := url.Values{}
	q.Set("shopId", strconv.FormatInt(c.cfg.ShopID, 10))
	q.Set("startDate", start.Format(dateFormat))
	q.Set("endDate", end.Format(dateFormat))

	var resp pagedResponse[Appointment]
	if err := c.get(ctx, "/api/v1/appointments", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch appointments: %w", err)
	}
	return resp.Content, nil
}

// FetchVehicleRepairOrders returns posted repair orders for a vehicle with a
// posted date on or after postedSince.
func (c *Client) FetchVehicleRepairOrders(ctx context.Context, vehicleID int64, postedSince time.Time) ([]RepairOrder, error) {
	q := url.Values{}
	q.Set("shopId", strconv.FormatInt(c.cfg.ShopID, 10))
	q.Set("vehicleId", strconv.FormatInt(vehicleID, 10))
	q.Set("postedStartDate", postedSince.Format(dateFormat))
	q.Set("status", StatusPosted)

	var resp pagedResponse[RepairOrder]
	if err := c.get(ctx, "/api/v1/repair-orders", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch vehicle repair orders: %w", err)
	}
	return resp.Content, nil
}

// FetchJobs returns the service lines of an upstream repair order.
func (c *Client) FetchJobs(ctx context.Context, repairOrderID int64) ([]Job, error) {
	q := url.Values{}
	q.Set("shopId", strconv.FormatInt(c.cfg.ShopID, 10))

	path := fmt.Sprintf("/api/v1/repair-orders/%d/jobs", repairOrderID)
	var resp pagedResponse[Job]
	if err := c.get(ctx, path, q, &resp); err != nil {
		return nil, fmt.Errorf("fetch jobs for repair order %d: %w", repairOrderID, err)
	}
	return resp.Content, nil
}

// get performs a rate-limited, authenticated GET and decodes the JSON body.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	reqURL := c.cfg.BaseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// accessToken returns a cached OAuth token, refreshing it when expired.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/api/v1/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token request: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response: empty access token")
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	// Refresh one minute before the reported expiry.
	c.token = tr.AccessToken
	c.tokenExpiry = time.Now().Add(ttl - time.Minute)
	return c.token, nil
}
