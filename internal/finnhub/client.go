// Package finnhub implements the Finnhub adapter on top of the REST API at
// https://finnhub.io/api/v1.
package finnhub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"resty.dev/v3"

	"marketbrain/internal/provider"
	"marketbrain/internal/ratelimit"
)

// Name identifies the adapter in the registry and in result provenance.
const Name = "finnhub"

const DefaultBaseURL = "https://finnhub.io/api/v1"

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// RetryCount is passed to the HTTP client; negative disables retries.
	RetryCount int

	Limiter *ratelimit.Limiter
	Logger  *slog.Logger

	// Now anchors the date windows of news and calendar requests.
	Now func() time.Time
}

// Client talks to the Finnhub API. Premium-only endpoints are not
// implemented and return provider.ErrUnsupported.
type Client struct {
	provider.Unsupported

	apiKey  string
	http    *resty.Client
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("finnhub: API key is required")
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

func (c *Client) Name() string { return Name }

func (c *Client) Close() error {
	return c.http.Close()
}

// get calls path and decodes the body into out. Finnhub reports some
// failures as {"error": "..."} with a 200 status; those become errors too.
func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	if err := c.limiter.Wait(ctx, Name); err != nil {
		return provider.NewTimeoutError(Name, err)
	}

	q := map[string]string{"token": c.apiKey}
	for k, v := range params {
		q[k] = v
	}

	var raw json.RawMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(q).
		SetResult(&raw).
		Get(path)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return provider.NewTimeoutError(Name, err)
		}
		return provider.NewNetworkError(Name, err)
	}

	if !resp.IsSuccess() {
		return provider.ClassifyHTTPError(Name, resp.StatusCode(), errorText(resp.String()))
	}

	body := bytes.TrimSpace(raw)
	if bytes.HasPrefix(body, []byte("{")) {
		if msg := errorText(string(body)); msg != string(body) {
			if provider.IsRateLimitMessage(msg) {
				return provider.NewRateLimitError(Name, resp.StatusCode(), msg)
			}
			return provider.NewClientError(Name, resp.StatusCode(), msg)
		}
	}
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return provider.NewValidationError(Name, fmt.Sprintf("failed to parse %s: %v", path, err))
	}
	return nil
}

// errorText extracts the "error" field of a JSON error body, or returns
// body unchanged when it is not one.
func errorText(body string) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(body), &e) == nil && e.Error != "" {
		return e.Error
	}
	return body
}

// Finnhub sends JSON numbers and null for missing values.
func nullDecimal(f *float64) decimal.NullDecimal {
	if f == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*f))
}

func toDecimal(f *float64) decimal.Decimal {
	return nullDecimal(f).Decimal
}

// millions converts values Finnhub reports in millions.
func millions(f *float64) decimal.NullDecimal {
	d := nullDecimal(f)
	if d.Valid {
		d.Decimal = d.Decimal.Mul(decimal.NewFromInt(1_000_000))
	}
	return d
}

func parseDate(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
