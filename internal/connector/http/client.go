package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 10.0
	defaultRateBurst = 5
	defaultUserAgent = "ucl-salesforce/1.0"
	maxBackoff       = 10 * time.Second
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is prefixed to relative request paths. It usually becomes
	// known only after login, see SetBaseURL.
	BaseURL string
	Auth    AuthConfig

	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64 // requests per second
	RateBurst  int

	// Headers are sent with every request.
	Headers   map[string]string
	UserAgent string
	Transport http.RoundTripper
	Logger    zerolog.Logger
}

// DefaultClientConfig returns the defaults used for Salesforce calls.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:    defaultTimeout,
		MaxRetries: 0,
		RateLimit:  defaultRateLimit,
		RateBurst:  defaultRateBurst,
		UserAgent:  defaultUserAgent,
		Headers:    map[string]string{},
		Logger:     zerolog.Nop(),
	}
}

// Client is a rate-limited HTTP client. With MaxRetries set it re-sends
// throttled (429) and server error (5xx) responses with exponential
// backoff.
type Client struct {
	config  *ClientConfig
	http    *http.Client
	limiter *rate.Limiter

	mu      sync.RWMutex
	baseURL string
	auth    AuthConfig
}

// NewClient fills unset fields of config with defaults and returns a
// client.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	config.MaxRetries = max(config.MaxRetries, 0)
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}
	if config.RateBurst <= 0 {
		config.RateBurst = defaultRateBurst
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}
	auth := config.Auth
	if auth == nil {
		auth = NoAuth{}
	}
	return &Client{
		config:  config,
		http:    &http.Client{Timeout: config.Timeout, Transport: config.Transport},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		baseURL: config.BaseURL,
		auth:    auth,
	}
}

// SetBaseURL points relative paths at base, e.g. the instance URL a login
// returned.
func (c *Client) SetBaseURL(base string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = base
}

// BaseURL returns the current base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetAuth swaps the authentication strategy.
func (c *Client) SetAuth(auth AuthConfig) {
	if auth == nil {
		auth = NoAuth{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = auth
}

// Request is one call. Path may be absolute or relative to the base URL.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    []byte
	// NoRetry sends the request once, for calls that must not repeat.
	NoRetry bool
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// JSON decodes the body into target.
func (r *Response) JSON(target any) error {
	return json.Unmarshal(r.Body, target)
}

// Do sends req, retrying throttled and server errors. On an HTTP error
// the last response is returned alongside the *HTTPError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	attempts := c.config.MaxRetries + 1
	if req.NoRetry {
		attempts = 1
	}

	var (
		resp *Response
		err  error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if werr := c.limiter.Wait(ctx); werr != nil {
			return nil, fmt.Errorf("rate limiter: %w", werr)
		}
		resp, err = c.send(ctx, req)
		if err == nil || !isRetryable(err) || attempt == attempts-1 {
			break
		}

		wait := backoff(attempt, resp)
		c.config.Logger.Debug().
			Str("method", req.Method).
			Str("path", req.Path).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Err(err).
			Msg("retrying salesforce request")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return resp, err
}

// backoff honours a Retry-After header in seconds and otherwise doubles
// from 100ms.
func backoff(attempt int, resp *Response) time.Duration {
	if resp != nil {
		if secs, err := strconv.Atoi(resp.Headers.Get("Retry-After")); err == nil && secs >= 0 {
			return min(time.Duration(secs)*time.Second, maxBackoff)
		}
	}
	return min(100*time.Millisecond<<uint(attempt), maxBackoff)
}

func (c *Client) url(req *Request) string {
	target := req.Path
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		base := strings.TrimSuffix(c.BaseURL(), "/")
		if target != "" {
			target = base + "/" + strings.TrimPrefix(target, "/")
		} else {
			target = base
		}
	}
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	return target
}

func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.url(req), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	c.mu.RLock()
	c.auth.Apply(httpReq)
	c.mu.RUnlock()

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	resp := &Response{StatusCode: httpResp.StatusCode, Headers: httpResp.Header, Body: data}
	if httpResp.StatusCode >= 400 {
		return resp, &HTTPError{StatusCode: httpResp.StatusCode, Message: string(data)}
	}
	return resp, nil
}

// Get sends a GET.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post sends body as JSON. Posts are not retried: bulk job and batch
// creation are not idempotent.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
	}
	return c.Do(ctx, &Request{
		Method:  http.MethodPost,
		Path:    path,
		Body:    data,
		Headers: map[string]string{"Content-Type": "application/json"},
		NoRetry: true,
	})
}

// HTTPError is a 4xx or 5xx response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func isRetryable(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
}
