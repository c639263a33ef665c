package meteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// hourlyVariables are the archive variables requested on every call.
var hourlyVariables = []string{
	"shortwave_radiation",
	"direct_normal_irradiance",
	"diffuse_radiation",
	"temperature_2m",
	"wind_speed_10m",
}

// Client represents a client for the Open-Meteo Archive API
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new client for the Open-Meteo Archive API
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: "https://archive-api.open-meteo.com/v1/archive",
	}
}

// NewClientWithHTTPClient creates a new client with a custom HTTP client
func NewClientWithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    "https://archive-api.open-meteo.com/v1/archive",
	}
}

// SetBaseURL sets the base URL for the API (useful for testing)
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// GetArchive retrieves hourly historical weather for the given location and
// inclusive date range
func (c *Client) GetArchive(ctx context.Context, params QueryParams) (*ArchiveResponse, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}

	reqURL, err := c.buildURL(params)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var archive ArchiveResponse
	if err := json.Unmarshal(body, &archive); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &archive, nil
}

// buildURL constructs the API URL with query parameters
func (c *Client) buildURL(params QueryParams) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}

	query := u.Query()
	query.Set("latitude", formatFloat(params.Location.Latitude))
	query.Set("longitude", formatFloat(params.Location.Longitude))
	query.Set("start_date", params.StartDate.Format("2006-01-02"))
	query.Set("end_date", params.EndDate.Format("2006-01-02"))
	query.Set("hourly", strings.Join(hourlyVariables, ","))
	if params.Timezone != "" {
		query.Set("timezone", params.Timezone)
	} else {
		query.Set("timezone", "UTC")
	}

	u.RawQuery = query.Encode()
	return u.String(), nil
}

// formatFloat formats a float64 to a string with appropriate precision
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ValidateParams validates that the request parameters are within acceptable ranges
func ValidateParams(params QueryParams) error {
	if params.Location.Latitude < -90 || params.Location.Latitude > 90 {
		return &ValidationError{Field: "latitude", Message: fmt.Sprintf("must be between -90 and 90, got %f", params.Location.Latitude)}
	}
	if params.Location.Longitude < -180 || params.Location.Longitude > 180 {
		return &ValidationError{Field: "longitude", Message: fmt.Sprintf("must be between -180 and 180, got %f", params.Location.Longitude)}
	}
	if params.StartDate.IsZero() || params.EndDate.IsZero() {
		return &ValidationError{Field: "date range", Message: "start and end dates are required"}
	}
	if params.EndDate.Before(params.StartDate) {
		return &ValidationError{Field: "date range", Message: "end date precedes start date"}
	}
	return nil
}
