// Package backend calls the remote reconciliation and settlement execution
// endpoints.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cuongbtq/recon-queue/internal/queue/domain"
)

const (
	apiKeyHeader = "x-api-key"

	// maxBodySize caps how much of a response is read.
	maxBodySize = 1 << 20
	// maxMessageLen caps a non-JSON body reused as an error message.
	maxMessageLen = 300
)

// Config holds the execution service location and credentials.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration // zero means no client-side timeout
}

// Request identifies one remote execution.
type Request struct {
	Domain   string
	Endpoint string
	From     time.Time
	To       time.Time
}

// Result is a successful execution.
type Result struct {
	StatusCode int
	Message    string
}

// Error is a failure reported by the backend itself.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend returned HTTP %d: %s", e.StatusCode, e.Message)
}

// TransportError means no usable response was received.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "connection error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// response is the execution endpoints' JSON body.
type response struct {
	Message    string `json:"message"`
	Success    *bool  `json:"success"`
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
}

// Client performs GET <base>/<domain>/<endpoint>?from_date&to_date.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	apiKey  string
	logger  *slog.Logger
}

// NewClient validates cfg and creates a client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend base url %q: scheme must be http or https", cfg.BaseURL)
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: base,
		apiKey:  cfg.APIKey,
		logger:  logger,
	}, nil
}

// URL renders the request URL.
func (c *Client) URL(req Request) string {
	u := *c.baseURL
	u.Path = strings.Join([]string{u.Path, strings.Trim(req.Domain, "/"), strings.Trim(req.Endpoint, "/")}, "/")

	q := url.Values{}
	q.Set("from_date", req.From.Format(domain.BackendDateLayout))
	q.Set("to_date", req.To.Format(domain.BackendDateLayout))
	u.RawQuery = q.Encode()

	return u.String()
}

// Execute runs one remote execution. It returns *Error when the backend
// reports failure and *TransportError when no response could be read.
func (c *Client) Execute(ctx context.Context, req Request) (Result, error) {
	target := c.URL(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{}, &TransportError{Err: err}
	}
	httpReq.Header.Set(apiKeyHeader, c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Result{}, &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug("Backend call settled",
		slog.String("endpoint", req.Endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	var parsed response
	jsonErr := json.Unmarshal(body, &parsed)

	failed := resp.StatusCode < 200 || resp.StatusCode > 299 ||
		(parsed.Success != nil && !*parsed.Success) ||
		parsed.StatusCode >= 400 ||
		parsed.Error != ""

	if !failed {
		return Result{StatusCode: resp.StatusCode, Message: parsed.Message}, nil
	}

	message := parsed.Message
	if message == "" {
		message = parsed.Error
	}
	if message == "" && jsonErr != nil {
		message = truncate(strings.TrimSpace(string(body)), maxMessageLen)
	}
	if message == "" {
		message = fmt.Sprintf("Backend returned HTTP %d", resp.StatusCode)
	}

	status := resp.StatusCode
	if parsed.StatusCode >= 400 {
		status = parsed.StatusCode
	}

	return Result{}, &Error{StatusCode: status, Message: message}
}

// IsTransport reports whether err is a connection-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
