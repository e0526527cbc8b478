// Package hfinference serves the study capabilities from the hosted Hugging Face Inference API.
package hfinference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/observability"
)

const defaultBaseURL = "https://api-inference.huggingface.co"

// Config holds inference client configuration.
type Config struct {
	APIToken       string
	BaseURL        string // Default: https://api-inference.huggingface.co
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client posts inference requests to hosted models.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiToken       string
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *observability.Logger
}

// ErrMissingToken is returned by model calls when no API token is configured.
var ErrMissingToken = errors.New("API token is required")

// NewClient creates a new inference client. A missing token is reported when a model is first used.
func NewClient(cfg Config, logger *observability.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}

	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiToken:       cfg.APIToken,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.WithOperation("hfinference"),
	}, nil
}

// inferenceRequest is the common request envelope.
type inferenceRequest struct {
	Inputs     any            `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
}

// apiError is the error body returned by the inference API.
type apiError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`
}

// StatusError is a non-2xx response from the inference API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// shouldRetry reports whether a status is transient (rate limit, model loading, gateway errors).
func shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// modelStatus is the body of the status endpoint.
type modelStatus struct {
	Loaded bool   `json:"loaded"`
	State  string `json:"state"`
}

// checkModel confirms the model exists and the token may use it.
func (c *Client) checkModel(ctx context.Context, model string) error {
	if c.apiToken == "" {
		return fmt.Errorf("%s: %w", model, ErrMissingToken)
	}

	body, err := c.call(ctx, model, http.MethodGet, c.baseURL+"/status/"+model, nil)
	if err != nil {
		return err
	}

	var status modelStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("%s: unmarshal status: %w", model, err)
	}
	c.logger.Debug().Str("model", model).Bool("loaded", status.Loaded).Str("state", status.State).Msg("Model available")
	return nil
}

// infer posts req to model and decodes the JSON response into out, retrying transient failures.
func (c *Client) infer(ctx context.Context, model string, req inferenceRequest, out any) error {
	if c.apiToken == "" {
		return fmt.Errorf("%s: %w", model, ErrMissingToken)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	body, err := c.call(ctx, model, http.MethodPost, c.baseURL+"/models/"+model, payload)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: unmarshal response: %w", model, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, model, method, url string, payload []byte) ([]byte, error) {
	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		return c.send(ctx, method, url, payload)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxInterval = c.maxBackoff

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn().
				Str("model", model).
				Str("method", method).
				Int("attempt", attempt).
				Dur("retry_in", next).
				Err(err).
				Msg("Inference request failed, retrying")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", model, err)
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	statusErr := &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		statusErr.Message = apiErr.Error
	}

	if !shouldRetry(resp.StatusCode) {
		return nil, backoff.Permanent(statusErr)
	}
	if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
		return nil, errors.Join(statusErr, backoff.RetryAfter(secs))
	}
	return nil, statusErr
}
