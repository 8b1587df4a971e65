// Package alphavantage implements the Alpha Vantage adapter. Every Alpha
// Vantage endpoint is a GET on one URL selected by the "function" query
// parameter.
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"resty.dev/v3"

	"marketbrain/internal/provider"
	"marketbrain/internal/ratelimit"
)

// Name identifies the adapter in the registry and in result provenance.
const Name = "alpha_vantage"

// DefaultBaseURL is the production endpoint.
const DefaultBaseURL = "https://www.alphavantage.co/query"

// Body-level fields Alpha Vantage uses instead of HTTP status codes to
// report errors and quota notices.
var noticeFields = []string{"Error Message", "Note", "Information"}

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// RetryCount is passed to the HTTP client; negative disables retries.
	RetryCount int

	Limiter *ratelimit.Limiter
	Logger  *slog.Logger

	// Now stamps quotes, which Alpha Vantage does not time itself.
	Now func() time.Time
}

// Client talks to the Alpha Vantage API. Operations the API does not offer
// return provider.ErrUnsupported.
type Client struct {
	provider.Unsupported

	apiKey  string
	http    *resty.Client
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Client. An API key is required.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("alphavantage: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Client{
		apiKey: cfg.APIKey,
		http: provider.NewHTTPClient(cfg.BaseURL, provider.HTTPOptions{
			Timeout:    cfg.Timeout,
			RetryCount: cfg.RetryCount,
			Logger:     cfg.Logger,
		}),
		limiter: cfg.Limiter,
		logger:  cfg.Logger,
		now:     cfg.Now,
	}, nil
}

// Name implements provider.Provider.
func (c *Client) Name() string { return Name }

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// query calls one function and returns the top-level JSON fields. Notices
// in the body are returned as errors carrying the notice text verbatim.
func (c *Client) query(ctx context.Context, function string, params map[string]string) (map[string]json.RawMessage, error) {
	if err := c.limiter.Wait(ctx, Name); err != nil {
		return nil, provider.NewTimeoutError(Name, err)
	}

	q := map[string]string{
		"function": function,
		"apikey":   c.apiKey,
	}
	for k, v := range params {
		q[k] = v
	}

	var body map[string]json.RawMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(q).
		SetResult(&body).
		Get("")

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, provider.NewTimeoutError(Name, err)
		}
		return nil, provider.NewNetworkError(Name, err)
	}

	if !resp.IsSuccess() {
		return nil, provider.ClassifyHTTPError(Name, resp.StatusCode(), resp.String())
	}

	for _, field := range noticeFields {
		raw, ok := body[field]
		if !ok {
			continue
		}
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil || msg == "" {
			msg = string(raw)
		}
		if provider.IsRateLimitMessage(msg) {
			return nil, provider.NewRateLimitError(Name, resp.StatusCode(), msg)
		}
		return nil, provider.NewValidationError(Name, msg)
	}

	return body, nil
}

// decode unmarshals the top-level field key into out. It reports false when
// the field is absent.
func decode(body map[string]json.RawMessage, key string, out any) (bool, error) {
	raw, ok := body[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, provider.NewValidationError(Name, fmt.Sprintf("failed to parse %q: %v", key, err))
	}
	return true, nil
}
