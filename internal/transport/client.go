// Package transport implements the HTTP layer behind the proxy engine:
// a retrying JSON client bound to one base URL, and the adapter that
// exposes a route table as the node graph the engine walks.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/apiq/internal/auth"
	"github.com/fivetwenty-io/apiq/internal/constants"
	"github.com/hashicorp/go-retryablehttp"
)

// defaultUserAgent identifies this client on the wire unless overridden
// via WithUserAgent.
const defaultUserAgent = "apiq-go/1.0"

// Logger receives transport-level request/response logs.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Request describes one HTTP exchange against the base URL.
type Request struct {
	// Method is the upper-case HTTP verb.
	Method string
	// Path is the URL path below the base URL, with a leading slash.
	Path string
	// Query holds query parameters appended to the URL.
	Query url.Values
	// Headers holds additional request headers.
	Headers map[string]string
	// Body is marshaled as the JSON request body when non-nil.
	Body any
}

// Response is one completed HTTP exchange. The client returns a
// Response for every exchange the server answered, whatever the status
// code; callers decide what a non-2xx status means.
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	err := json.Unmarshal(r.Body, v)
	if err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}

	return nil
}

// Client is a JSON HTTP client bound to one base URL. Transient
// failures (connection errors, 5xx, 429) are retried at the wire level
// up to the configured budget; WithRetryConfig with a zero maximum
// turns wire retries off for callers that run their own retry loop.
type Client struct {
	baseURL   string
	http      *retryablehttp.Client
	tokens    auth.TokenManager
	logger    Logger
	debug     bool
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger request/response logging goes to.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug toggles request/response debug logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig tunes wire-level retries. A zero retryMax disables
// them, so every call maps to exactly one HTTP attempt.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.http.RetryMax = retryMax
		c.http.RetryWaitMin = waitMin
		c.http.RetryWaitMax = waitMax
	}
}

// WithTimeout bounds a single HTTP attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http.HTTPClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client, keeping the retry
// wrapper. Useful for custom TLS or proxy configuration.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http.HTTPClient = httpClient
	}
}

// NewClient creates a client for the API at baseURL. tokens may be nil,
// in which case requests go out unauthenticated.
func NewClient(baseURL string, tokens auth.TokenManager, opts ...Option) *Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = constants.DefaultRetryMax
	retry.RetryWaitMin = constants.DefaultRetryWaitMin
	retry.RetryWaitMax = constants.DefaultRetryWaitMax
	retry.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retry.Logger = nil
	// Exhausted retries must still hand the final response back instead
	// of swallowing it in a giving-up error.
	retry.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      retry,
		tokens:    tokens,
		userAgent: defaultUserAgent,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Do performs one request. The returned error covers transport-level
// failures only (token acquisition, connection, context cancellation);
// an HTTP error status comes back as a normal Response. A 401 triggers
// one token refresh and a single replay when a token manager is
// configured.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil {
		refreshErr := c.tokens.RefreshToken(ctx)
		if refreshErr != nil {
			// Not refreshable; the 401 stands.
			return resp, nil
		}

		return c.send(ctx, req)
	}

	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": req.Method,
			"url":    httpReq.URL.String(),
		})
	}

	start := time.Now()

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	defer func() {
		_ = httpResp.Body.Close()
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status":   httpResp.StatusCode,
			"duration": time.Since(start).String(),
			"bytes":    len(body),
		})
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    httpResp.Header,
		Body:       body,
	}, nil
}

func (c *Client) buildRequest(ctx context.Context, req *Request) (*retryablehttp.Request, error) {
	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	fullURL := c.baseURL + path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	// A []byte body lets the retry layer rewind between attempts.
	var rawBody any

	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}

		rawBody = data
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, rawBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if c.tokens != nil {
		token, err := c.tokens.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting token: %w", err)
		}

		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return httpReq, nil
}
