package psi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client fetches the 24-hour Pollutant Standards Index from the national
// environment agency's public feed.
type Client struct {
	// endpoint is the feed URL without query parameters.
	endpoint string
	// httpClient performs the requests; replaceable for testing.
	httpClient *http.Client

	// callTimeout is the default timeout for individual feed calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for feed calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// DefaultCallTimeout bounds a single feed request.
const DefaultCallTimeout = 10 * time.Second

// regionCentral selects the reading used for the building's advisory.
const regionCentral = "central"

// errEndpointRequired is returned when the feed URL is missing.
var errEndpointRequired = errors.New("endpoint must be provided")

// NewClient creates a feed client for the provided endpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errEndpointRequired
	}

	client := &Client{
		endpoint:    endpoint,
		httpClient:  http.DefaultClient,
		callTimeout: DefaultCallTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// apiResponse mirrors the subset of the feed payload the advisory needs.
type apiResponse struct {
	Data struct {
		Items []struct {
			Readings struct {
				PSI24Hourly map[string]float64 `json:"psi_twenty_four_hourly"`
			} `json:"readings"`
		} `json:"items"`
	} `json:"data"`
}

// Fetch24HourIndex returns the central-region 24-hour index for the given
// calendar date. A payload without items or without the central reading
// reports ok=false with no error; transport and decoding failures are errors.
func (c *Client) Fetch24HourIndex(ctx context.Context, date time.Time) (float64, bool, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	requestURL := c.endpoint + "?date=" + url.QueryEscape(date.Format(time.DateOnly))

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, requestURL, nil)
	if err != nil {
		return 0, false, fmt.Errorf("build PSI request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("fetch PSI feed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("PSI feed returned status %d", resp.StatusCode)
	}

	var payload apiResponse
	if err = json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, false, fmt.Errorf("decode PSI feed: %w", err)
	}

	if len(payload.Data.Items) == 0 {
		return 0, false, nil
	}

	value, ok := payload.Data.Items[0].Readings.PSI24Hourly[regionCentral]
	if !ok {
		return 0, false, nil
	}

	return value, true, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
