package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// DefaultTimeout is applied to each request unless overridden.
const DefaultTimeout = 2 * time.Second

// an embedded board serves one client at a time; keep the pool small
const (
	defaultMaxIdleConnsPerHost = 2
	defaultMaxConnsPerHost     = 4
	defaultIdleConnTimeout     = 30 * time.Second
)

// Response holds the result of an HTTP request made by [Client.Fetch].
type Response struct {
	// Body contains the HTTP response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code. Zero if the request failed
	// before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error contains any transport error. It always wraps [ErrTransport].
	Error error
}

// Client is an HTTP client bound to one device.
//
// Timeouts are applied per request via context rather than on the
// underlying http.Client.
type Client struct {
	baseURL    string
	headers    map[string]string
	timeout    time.Duration
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithHeaders sets headers sent with every request (e.g. an auth token).
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.headers = make(map[string]string, len(headers))
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a [Client] for the device at baseURL
// (e.g. "http://192.168.4.1").
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid device URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("device URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("device URL must include a host")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the device base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Fetch performs a request against path and returns a structured [Response].
//
// Fetch always returns a Response; transport errors are captured in the
// Error field rather than returned separately.
func (c *Client) Fetch(ctx context.Context, method, path string) Response {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("%w: failed to create request: %v", ErrTransport, err),
		}
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("%w: request failed: %v", ErrTransport, err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("%w: failed to read response body: %v", ErrTransport, err),
		}
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Control sends an LED command (POST /api/led/{action}).
func (c *Client) Control(ctx context.Context, action Action) (LEDResponse, error) {
	if err := action.Validate(); err != nil {
		return LEDResponse{}, err
	}
	resp := c.Fetch(ctx, http.MethodPost, "/api/led/"+string(action))
	return decodeLED(resp)
}

// BulbStatus reads GET /api/bulb/status.
func (c *Client) BulbStatus(ctx context.Context) (BulbStatus, error) {
	return decodeBulb(c.Fetch(ctx, http.MethodGet, "/api/bulb/status"))
}

// Status reads GET /api/status.
func (c *Client) Status(ctx context.Context) (SystemStatus, error) {
	return decodeStatus(c.Fetch(ctx, http.MethodGet, "/api/status"))
}

// SystemInfo reads GET /api/system/info.
func (c *Client) SystemInfo(ctx context.Context) (SystemInfo, error) {
	return decodeSystemInfo(c.Fetch(ctx, http.MethodGet, "/api/system/info"))
}

// Close releases idle connections. The client stays usable.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}
