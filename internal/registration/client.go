// Package registration implements the Seller node's best-effort, at-startup
// registration with the Marketplace registry (spec.md §4.9, grounded on
// RegistrationService.register): retry a fixed number of attempts with a
// fixed delay; treat 200 and 409 as success (409 means "already
// registered", which is fine); give up after exhausting attempts without
// ever failing startup.
package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Settings configures the registration client, mirroring
// MarketplaceRegistrationSettings.
type Settings struct {
	Enabled            bool
	AgentName          string
	SellerBaseURL      string
	Description        string
	Tags               []string
	MarketplaceBaseURL string
	RetryAttempts      int
	RetryDelay         time.Duration
}

type registrationBody struct {
	AgentName   string   `json:"agent_name"`
	BaseURL     string   `json:"base_url"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Client registers a seller with the Marketplace.
type Client struct {
	settings   Settings
	httpClient *http.Client
	log        *slog.Logger

	registered bool
}

// New builds a Client. httpClient defaults to a 30 second timeout, matching
// the source's `httpx.AsyncClient(timeout=30.0)`.
func New(settings Settings, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	if settings.RetryAttempts <= 0 {
		settings.RetryAttempts = 3
	}
	if settings.RetryDelay <= 0 {
		settings.RetryDelay = 2 * time.Second
	}
	return &Client{settings: settings, httpClient: httpClient, log: log}
}

// Register attempts to register with the Marketplace, retrying transient
// failures up to RetryAttempts times. It returns true on success
// (including "already registered") and false only after exhausting every
// attempt — callers must treat false as non-fatal (spec.md: registration
// never blocks the Seller node from serving requests).
func (c *Client) Register(ctx context.Context) bool {
	if !c.settings.Enabled {
		c.log.Info("marketplace registration disabled, skipping")
		return true
	}

	body := registrationBody{
		AgentName:   c.settings.AgentName,
		BaseURL:     c.settings.SellerBaseURL,
		Description: c.settings.Description,
		Tags:        c.settings.Tags,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		c.log.Error("failed to encode registration body", "err", err)
		return false
	}

	for attempt := 1; attempt <= c.settings.RetryAttempts; attempt++ {
		ok, retry := c.attempt(ctx, raw, attempt)
		if ok {
			c.registered = true
			return true
		}
		if !retry {
			break
		}
		if attempt < c.settings.RetryAttempts {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(c.settings.RetryDelay):
			}
		}
	}

	c.log.Error("failed to register with marketplace", "attempts", c.settings.RetryAttempts)
	return false
}

// attempt makes one registration call. retry is false when a further
// attempt would be pointless (none in this client: every non-success
// outcome is retried, matching the source's behavior of retrying on any
// status other than 200/409).
func (c *Client) attempt(ctx context.Context, body []byte, attempt int) (ok bool, retry bool) {
	url := fmt.Sprintf("%s/register", c.settings.MarketplaceBaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.log.Warn("registration attempt failed to build request", "attempt", attempt, "err", err)
		return false, true
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("registration attempt failed with error", "attempt", attempt, "err", err)
		return false, true
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var decoded map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&decoded)
		c.log.Info("successfully registered with marketplace", "agent_id", decoded["agent_id"])
		return true, false
	case http.StatusConflict:
		c.log.Info("seller already registered with marketplace (409 conflict)")
		return true, false
	default:
		c.log.Warn("registration attempt failed", "attempt", attempt, "status", resp.StatusCode)
		return false, true
	}
}

// IsRegistered reports whether the last Register call succeeded.
func (c *Client) IsRegistered() bool {
	return c.registered
}
