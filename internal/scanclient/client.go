// File: internal/scanclient/client.go
// Brief: HTTP client for the scan-results endpoint with bounded retries.

// Package scanclient fetches scan records from the leakwatch backend.
package scanclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/example/leakwatch/internal/model"
)

// DefaultPath is the scan-results endpoint relative to the backend URL.
const DefaultPath = "/api/events?n=50"

// maxBody bounds the response body read into memory.
const maxBody = 8 << 20

// ErrTransport marks every failure to obtain a usable response.
var ErrTransport = errors.New("scan backend unreachable")

// TransportError describes a failed request.
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) match any TransportError.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Options configure a Client.
type Options struct {
	BaseURL  string
	Path     string
	RetryMax int
	// RetryWaitMin and RetryWaitMax bound the backoff between attempts.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Logger       logr.Logger
	// HTTPClient overrides the underlying transport (tests).
	HTTPClient *http.Client
}

// Client implements dashboard.Fetcher.
type Client struct {
	endpoint string
	http     *retryablehttp.Client
	logger   logr.Logger
}

// New builds a client for opts.BaseURL.
func New(opts Options) (*Client, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		return nil, errors.New("scanclient: backend URL is required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("scanclient: invalid backend URL %q", base)
	}
	path := opts.Path
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	logger := opts.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	if opts.HTTPClient != nil {
		rc.HTTPClient = opts.HTTPClient
	}
	rc.Logger = leveledLogger{logger.WithName("http")}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		endpoint: strings.TrimRight(base, "/") + path,
		http:     rc,
		logger:   logger,
	}, nil
}

// Endpoint is the full URL the client polls.
func (c *Client) Endpoint() string { return c.endpoint }

// Fetch issues one request (with retries) and decodes the records.
func (c *Client) Fetch(ctx context.Context) ([]model.ScanRecord, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, &TransportError{URL: c.endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &TransportError{URL: c.endpoint, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil, &TransportError{URL: c.endpoint, Status: resp.StatusCode, Err: fmt.Errorf("status %s", resp.Status)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &TransportError{URL: c.endpoint, Err: errors.Wrap(err, "read body")}
	}
	records, err := model.DecodeRecords(body)
	if err != nil {
		return nil, &TransportError{URL: c.endpoint, Err: errors.Wrap(err, "decode scan records")}
	}
	c.logger.V(1).Info("scan records fetched", "count", len(records))
	return records, nil
}

// leveledLogger routes retryablehttp diagnostics through logr.
type leveledLogger struct {
	logger logr.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.V(1).Info(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.V(2).Info(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.V(1).Info(msg, keysAndValues...)
}
