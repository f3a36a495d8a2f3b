package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/ossinventory/pkg/observability"
)

const (
	// DefaultTimeout bounds a metadata request, including reading the body.
	DefaultTimeout = 2 * time.Minute

	// DefaultIdleTimeout bounds how long a streamed download may go without
	// receiving any data. Total download time is not limited.
	DefaultIdleTimeout = 30 * time.Second

	// DefaultRetryDelay is the initial backoff between attempts.
	DefaultRetryDelay = time.Second

	// maxJSONBody caps metadata documents read into memory.
	maxJSONBody = 32 << 20
)

// Client provides shared HTTP functionality for registry lookups and archive
// downloads. It applies default headers, status classification, optional
// retries and observability hooks to every request.
//
// A Client is safe for concurrent use.
type Client struct {
	http        *http.Client
	headers     map[string]string
	timeout     time.Duration
	idleTimeout time.Duration
	attempts    int
	retryDelay  time.Duration
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client. Tests use this to
// point the client at an httptest server.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each [Client.GetJSON] attempt. Zero disables it.
// Streamed bodies from [Client.Open] are governed by [WithIdleTimeout]
// instead.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithIdleTimeout aborts an [Client.Open] request once no response headers
// or body bytes have arrived for d. Zero disables it.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Client) { c.idleTimeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.headers["User-Agent"] = ua
		}
	}
}

// WithRetries enables up to n additional attempts for transient failures
// (transport errors, 429 and 5xx responses). The default is no retry.
func WithRetries(n int) Option {
	return func(c *Client) { c.attempts = max(n, 0) + 1 }
}

// WithRetryDelay sets the initial backoff between retries.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// NewClient creates a Client. Without options it uses [DefaultTimeout] and
// [DefaultIdleTimeout], performs a single attempt per request and sends no
// extra headers.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{},
		headers:     map[string]string{},
		timeout:     DefaultTimeout,
		idleTimeout: DefaultIdleTimeout,
		attempts:    1,
		retryDelay:  DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON performs a GET request, reads the whole body and JSON-decodes it
// into v. Decoding failures wrap [ErrDecode] and are never retried.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	return Retry(ctx, c.attempts, c.retryDelay, func() error {
		reqCtx, cancel := c.requestContext(ctx)
		defer cancel()

		body, _, err := c.do(ctx, reqCtx, url)
		if err != nil {
			return err
		}
		defer body.Close()

		data, err := io.ReadAll(io.LimitReader(body, maxJSONBody))
		if err != nil {
			return c.transportError(ctx, err)
		}
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return nil
	})
}

// Open performs a GET request and returns the response body for streaming
// together with the advertised content length (-1 if unknown). Retries only
// cover obtaining a successful response; once the body is handed to the
// caller it is the caller's job to read and close it.
//
// The request is only bounded by the idle timeout: a slow body that keeps
// delivering data is never cut off, a stalled one fails with [ErrStalled].
func (c *Client) Open(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	var (
		body io.ReadCloser
		size int64
	)
	err := Retry(ctx, c.attempts, c.retryDelay, func() error {
		var err error
		body, size, err = c.open(ctx, url)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return body, size, nil
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) open(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	if c.idleTimeout <= 0 {
		return c.do(ctx, ctx, url)
	}

	reqCtx, cancel := context.WithCancel(ctx)
	watch := watchIdle(c.idleTimeout, cancel)
	body, size, err := c.do(ctx, reqCtx, url)
	if err != nil {
		watch.stop()
		cancel()
		return nil, 0, watch.explain(err)
	}
	return &idleBody{ReadCloser: body, watch: watch, cancel: cancel}, size, nil
}

// do sends the request under reqCtx. Transport failures are retryable unless
// the caller's ctx has ended.
func (c *Client) do(ctx, reqCtx context.Context, url string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, 0, c.transportError(ctx, err)
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode, url); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

// transportError wraps err with ErrNetwork. Failures caused by the caller's
// context are not retryable.
func (c *Client) transportError(ctx context.Context, err error) error {
	wrapped := fmt.Errorf("%w: %w", ErrNetwork, err)
	if ctx.Err() != nil {
		return wrapped
	}
	return &RetryableError{Err: wrapped}
}
