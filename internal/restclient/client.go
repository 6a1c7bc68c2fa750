// Package restclient implements remote.Accessor against the backend's table
// REST API (GET/POST /{table}, GET/PATCH/DELETE /{table}/{id},
// GET /{table}/search).
//
// Transport is go-retryablehttp over a pooled go-cleanhttp client. Retries are
// off unless WithRetries is given; inserts always carry an Idempotency-Key so
// a retried POST cannot create a second row.
package restclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	cleanhttp "github.com/hashicorp/go-cleanhttp"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/tbourn/miele-backoffice/internal/remote"
)

// Client holds the base URL and transport shared by every table accessor.
type Client struct {
	base   string
	hc     *retryablehttp.Client
	userID string
}

// Option configures a Client.
type Option func(*Client)

// WithRetries sets how many times a failed request is retried (0 = never).
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.hc.RetryMax = n
		}
	}
}

// WithRetryWait bounds the backoff between retries.
func WithRetryWait(lo, hi time.Duration) Option {
	return func(c *Client) {
		c.hc.RetryWaitMin, c.hc.RetryWaitMax = lo, hi
	}
}

// WithHTTPClient replaces the underlying pooled client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.hc.HTTPClient = h
		}
	}
}

// WithUserID sends X-User-ID on every request; the backend records it as
// the author of activity entries.
func WithUserID(id string) Option { return func(c *Client) { c.userID = strings.TrimSpace(id) } }

// WithLogger routes retry/transport diagnostics to l.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.hc.Logger = leveled{l: l} }
}

// New builds a client for baseURL, e.g. "http://localhost:8080/rest/v1".
func New(baseURL string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("restclient: invalid base url %q", baseURL)
	}

	hc := retryablehttp.NewClient()
	hc.HTTPClient = cleanhttp.DefaultPooledClient()
	hc.RetryMax = 0
	hc.Logger = nil
	// hand the last response back so the error envelope can be decoded
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{base: base, hc: hc}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.base }

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Message)
}

// codeNotFound is the backend's error code for a missing row. Other 404s,
// such as unknown_table, are configuration errors.
const codeNotFound = "not_found"

// Unwrap makes a missing-row 404 satisfy errors.Is(err, remote.ErrNotFound).
// A 404 without an envelope counts as missing too.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound && (e.Code == "" || e.Code == codeNotFound) {
		return remote.ErrNotFound
	}
	return nil
}

type errorBody struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// do sends one request and decodes a JSON body into out (when non-nil and
// the response has content). It returns the response headers.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) (http.Header, error) {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body any
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = b
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}
	if method == http.MethodPost {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("do request: %w: %w", ctxErr, err)
		}
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.Header, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return resp.Header, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		apiErr.Code, apiErr.Message, apiErr.RequestID = eb.Code, eb.Message, eb.RequestID
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

// leveled adapts zerolog to retryablehttp.LeveledLogger.
type leveled struct{ l zerolog.Logger }

func (z leveled) Error(msg string, kv ...interface{}) { z.l.Error().Fields(kv).Msg(msg) }
func (z leveled) Info(msg string, kv ...interface{})  { z.l.Info().Fields(kv).Msg(msg) }
func (z leveled) Debug(msg string, kv ...interface{}) { z.l.Debug().Fields(kv).Msg(msg) }
func (z leveled) Warn(msg string, kv ...interface{})  { z.l.Warn().Fields(kv).Msg(msg) }
