package rest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nerrad567/gray-logic-hub/internal/coordinator"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
)

const maxResponseBodySize = 1 << 20 // 1MB

// Connection pooling limits for a single device.
const (
	defaultMaxIdleConnsPerHost = 4
	defaultMaxConnsPerHost     = 4
	defaultIdleConnTimeout     = 60 * time.Second
)

// Client talks to one device.
//
// Timeouts come from the caller's context; the coordinator bounds each fetch.
type Client struct {
	base       *url.URL
	headers    map[string]string
	rebootPath string
	httpClient *http.Client
}

// NewClient creates a client for the device described by cfg.
func NewClient(cfg config.EntryConfig) (*Client, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidURL, base.Scheme)
	}

	return &Client{
		base:       base,
		headers:    cfg.Headers,
		rebootPath: cfg.RebootPath,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}, nil
}

// Fetch GETs path and returns the raw JSON body.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	body, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: GET %s", ErrInvalidPayload, path)
	}
	return body, nil
}

// Reboot POSTs to the configured reboot path.
func (c *Client) Reboot(ctx context.Context) error {
	if c.rebootPath == "" {
		return ErrRebootUnsupported
	}
	_, err := c.do(ctx, http.MethodPost, c.rebootPath)
	return err
}

// Close releases idle connections.
func (c *Client) Close() {
	if t, ok := c.httpClient.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}

// resolve joins path onto the base URL, keeping any base path prefix.
func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", err
	}
	base := *c.base
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base.ResolveReference(ref).String(), nil
}

func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, fmt.Errorf("%w: path %q: %w", ErrInvalidURL, path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, coordinator.UpdateFailed(fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, coordinator.UpdateFailed(fmt.Errorf("reading %s response: %w", path, err))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return nil, coordinator.UpdateFailed(fmt.Errorf("%w: %s %s: %d", ErrStatus, method, path, resp.StatusCode))
	default:
		return nil, fmt.Errorf("%w: %s %s: %d", ErrStatus, method, path, resp.StatusCode)
	}
}
