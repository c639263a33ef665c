// Package entsoe fetches and decodes day-ahead electricity prices from the
// ENTSO-E transparency platform.
package entsoe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jdboer/hems/utils"
)

const defaultBaseURL = "https://web-api.tp.entsoe.eu/api"

// APIClient represents an HTTP client for the ENTSO-E API
type APIClient struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
}

// NewAPIClient creates a new ENTSO-E API client with default settings
func NewAPIClient() *APIClient {
	return &APIClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  "entsoe-go-client/1.0",
		baseURL:    defaultBaseURL,
	}
}

// SetUserAgent sets a custom user agent for the API client
func (c *APIClient) SetUserAgent(userAgent string) {
	c.userAgent = userAgent
}

// SetBaseURL sets the base URL for the API (useful for testing)
func (c *APIClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// FetchDayAhead downloads day-ahead prices (document type A44) for a bidding
// zone over [start, end). The range may span multiple days; the platform
// returns one time series per delivery day.
func (c *APIClient) FetchDayAhead(ctx context.Context, securityToken, domain string, start, end time.Time) (*PublicationMarketDocument, error) {
	if securityToken == "" {
		return nil, fmt.Errorf("security token cannot be empty")
	}
	if domain == "" {
		return nil, fmt.Errorf("bidding zone domain cannot be empty")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	query := u.Query()
	query.Set("documentType", "A44")
	query.Set("in_Domain", domain)
	query.Set("out_Domain", domain)
	query.Set("periodStart", utils.GetUTCString(start))
	query.Set("periodEnd", utils.GetUTCString(end))
	query.Set("securityToken", securityToken)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP request failed with status %d: %s", resp.StatusCode, string(body))
	}

	doc, err := DecodePublicationMarketDocument(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode XML response: %w", err)
	}
	return doc, nil
}
