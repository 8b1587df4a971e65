package provider

import (
	"log/slog"
	"time"

	"resty.dev/v3"
)

const (
	// Default retry configuration
	defaultRetryCount       = 3
	defaultRetryWaitTime    = 1 * time.Second
	defaultRetryMaxWaitTime = 10 * time.Second
	defaultTimeout          = 30 * time.Second
)

// HTTPOptions tunes the shared HTTP client. Zero values fall back to the
// defaults above.
type HTTPOptions struct {
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
	Logger     *slog.Logger
}

// NewHTTPClient creates a new HTTP client with retry logic and exponential backoff
func NewHTTPClient(baseURL string, opts HTTPOptions) *resty.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retryCount := opts.RetryCount
	if retryCount < 0 {
		retryCount = 0
	} else if retryCount == 0 {
		retryCount = defaultRetryCount
	}
	retryWait := opts.RetryWait
	if retryWait <= 0 {
		retryWait = defaultRetryWaitTime
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(retryCount).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(defaultRetryMaxWaitTime).
		AddRetryConditions(retryCondition).
		AddRetryHooks(retryHook(logger))

	return client
}

// retryCondition determines whether a request should be retried based on the response and error
func retryCondition(r *resty.Response, err error) bool {
	// Retry on network errors
	if err != nil {
		return true
	}

	switch code := r.StatusCode(); {
	case code >= 500:
		return true
	case code == 429, code == 408:
		return true
	default:
		// Don't retry on other client errors
		return false
	}
}

// retryHook logs retry attempts for observability
func retryHook(logger *slog.Logger) resty.RetryHookFunc {
	return func(r *resty.Response, err error) {
		if r == nil || r.Request == nil {
			return
		}
		if err != nil {
			logger.Debug("retrying request due to error",
				"url", r.Request.URL,
				"attempt", r.Request.Attempt,
				"error", err.Error())
			return
		}

		logger.Debug("retrying request due to status code",
			"url", r.Request.URL,
			"attempt", r.Request.Attempt,
			"status_code", r.StatusCode())
	}
}
