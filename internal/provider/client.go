package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Upstream terms require an explicit consent declaration on every request.
const (
	consentValue = "yes"
	consentText  = "I hereby declare my consent agreement for fetching my information via AITAN Labs API"
)

// Endpoint addresses one upstream verification API. Host is the optional
// x-rapidapi-host header some endpoints require alongside the key.
type Endpoint struct {
	URL  string
	Host string
}

// Result carries everything the pipeline records about one upstream call.
// TAT is the wall-clock seconds spent producing the response, retries
// included.
type Result struct {
	StatusCode int
	Body       map[string]any
	Request    map[string]any
	TAT        float64
}

// ClientConfig configures the upstream HTTP client. Zero values fall back
// to the defaults below.
type ClientConfig struct {
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *logrus.Logger
}

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
)

// Client posts verification requests to the upstream provider. Server-side
// failures (5xx) are retried a fixed number of times with a constant delay;
// client errors and transport failures are not retried.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	maxAttempts int
	retryDelay  time.Duration
	log         *logrus.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("provider: api key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		apiKey:      cfg.APIKey,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		log:         cfg.Logger,
	}, nil
}

// Verify posts the identifier fields, wrapped in the consent payload, to the
// endpoint and returns the raw decoded reply regardless of its HTTP status.
func (c *Client) Verify(ctx context.Context, ep Endpoint, fields map[string]any) (*Result, error) {
	payload := map[string]any{
		"consent":      consentValue,
		"consent_text": consentText,
	}
	for k, v := range fields {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("provider: encode request: %w", err)
	}

	start := time.Now()

	var resp *http.Response
	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("provider: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-rapidapi-key", c.apiKey)
		if ep.Host != "" {
			req.Header.Set("x-rapidapi-host", ep.Host)
		}

		resp, err = c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("provider: request failed: %w", err)
		}
		if resp.StatusCode < http.StatusInternalServerError || attempt >= c.maxAttempts {
			break
		}

		resp.Body.Close()
		c.log.WithFields(logrus.Fields{
			"url":     ep.URL,
			"status":  resp.StatusCode,
			"attempt": attempt,
		}).Warn("upstream returned server error, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("provider: read response: %w", err)
	}

	parsed := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("provider: decode response: %w", err)
		}
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Body:       parsed,
		Request:    payload,
		TAT:        time.Since(start).Seconds(),
	}, nil
}
