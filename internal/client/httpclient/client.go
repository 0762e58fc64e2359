package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/authsession/internal/client/api"
	"github.com/dmitrijs2005/authsession/internal/client/events"
	"github.com/dmitrijs2005/authsession/internal/client/tokens"
	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/logging"
	"github.com/dmitrijs2005/authsession/internal/retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Request describes one logical backend call. Body, when set, is sent as
// JSON. Retries overrides the client's retry bound: zero keeps the default,
// a negative value disables retrying.
type Request struct {
	Method   string
	Path     string
	Query    url.Values
	Body     any
	Header   http.Header
	SkipAuth bool
	Retries  int
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the raw body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

type Client struct {
	baseURL    string
	hc         *http.Client
	tokens     *tokens.Manager
	bus        *events.Bus
	log        logging.Logger
	maxRetries int
	backoff    retry.Backoff
}

type Option func(*Client)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRetries sets how many times a transient failure is retried.
func WithRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

func WithBackoff(b retry.Backoff) Option {
	return func(c *Client) { c.backoff = b }
}

func New(baseURL string, tm *tokens.Manager, bus *events.Bus, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		hc:         newHTTPClient(10 * time.Second),
		tokens:     tm,
		bus:        bus,
		log:        logging.NewNop(),
		maxRetries: 3,
		backoff:    retry.ExpoJitter{Base: 300 * time.Millisecond, Max: 5 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(transport),
	}
}

// Do runs r through the pipeline. A 2xx response is returned as is; any
// other status becomes an *APIError.
func (c *Client) Do(ctx context.Context, r *Request) (*Response, error) {
	body, err := encodeBody(r.Body)
	if err != nil {
		return nil, err
	}

	var token string
	if !r.SkipAuth {
		token = c.preflight(ctx, r.Path)
	}

	resp, err := c.send(ctx, r, body, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || r.SkipAuth {
		return result(resp)
	}

	if r.Path == common.RefreshPath {
		c.expire(ctx, "refresh endpoint rejected the session")
		return nil, fmt.Errorf("%w: %w", common.ErrAuthenticationExpired, newAPIError(resp))
	}

	// The token this request carried is stale. Refresh once (or join the
	// refresh someone else started) and replay with its result.
	fresh, err := c.tokens.RefreshIfStale(ctx, token)
	if err != nil {
		replaysTotal.WithLabelValues("refresh_failed").Inc()
		return nil, err
	}

	c.log.Debug(ctx, "replaying request after refresh", "method", r.Method, "path", r.Path)
	resp, err = c.send(ctx, r, body, fresh)
	if err != nil {
		replaysTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		replaysTotal.WithLabelValues("unauthorized").Inc()
		c.expire(ctx, "replay rejected")
		return nil, fmt.Errorf("%w: %w", common.ErrAuthenticationExpired, newAPIError(resp))
	}
	replaysTotal.WithLabelValues("ok").Inc()
	return result(resp)
}

// preflight returns the token to send, renewing it first when it expires
// within the threshold. A failed renewal is tolerated: the request goes out
// with whatever is stored and a 401 is handled reactively.
func (c *Client) preflight(ctx context.Context, path string) string {
	seen, _ := c.tokens.AccessToken(ctx)
	if path == common.RefreshPath || !c.tokens.ShouldRefresh(ctx) {
		return seen
	}
	fresh, err := c.tokens.RefreshIfStale(ctx, seen)
	if err != nil {
		c.log.Warn(ctx, "pre-flight refresh failed", "path", path, "err", err)
		cur, _ := c.tokens.AccessToken(ctx)
		return cur
	}
	return fresh
}

func (c *Client) expire(ctx context.Context, reason string) {
	c.log.Warn(ctx, "authentication expired", "reason", reason)
	c.bus.Publish(ctx, events.Event{Kind: events.KindAuthExpired})
}

// send performs the round trip under the retry policy. Transient statuses
// that outlive the retry budget come back as *APIError.
func (c *Client) send(ctx context.Context, r *Request, body []byte, token string) (*Response, error) {
	var out *Response
	err := retry.Do(ctx, func(attempt int) error {
		resp, err := c.roundTrip(ctx, r, body, token)
		if err != nil {
			return err
		}
		if isTransientStatus(resp.StatusCode) {
			return newAPIError(resp)
		}
		out = resp
		return nil
	}, retry.Policy{
		Name:      "http",
		Attempts:  c.retries(r) + 1,
		Backoff:   c.backoff,
		Retryable: func(err error) bool { return ctx.Err() == nil && errors.Is(err, common.ErrNetwork) },
		OnAttempt: func(attempt int, err error) {
			c.log.Warn(ctx, "request attempt failed", "method", r.Method, "path", r.Path, "attempt", attempt, "err", err)
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) retries(r *Request) int {
	switch {
	case r.Retries < 0:
		return 0
	case r.Retries > 0:
		return r.Retries
	}
	return c.maxRetries
}

func (c *Client) roundTrip(ctx context.Context, r *Request, body []byte, token string) (*Response, error) {
	u, err := c.url(r)
	if err != nil {
		return nil, err
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !r.SkipAuth && token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(r.Method, "0").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", common.ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues(r.Method, "0").Inc()
		return nil, fmt.Errorf("%w: read body: %w", common.ErrNetwork, err)
	}
	requestsTotal.WithLabelValues(r.Method, strconv.Itoa(resp.StatusCode)).Inc()
	c.log.Debug(ctx, "request done", "method", r.Method, "path", r.Path, "status", resp.StatusCode)

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) url(r *Request) (string, error) {
	u, err := url.Parse(c.baseURL + r.Path)
	if err != nil {
		return "", fmt.Errorf("bad path %q: %w", r.Path, err)
	}
	if len(r.Query) > 0 {
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func encodeBody(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return b, nil
}

func result(resp *Response) (*Response, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	return nil, newAPIError(resp)
}

// DoJSON runs r and unwraps the response envelope into T. A 2xx envelope
// with success=false is reported as *APIError.
func DoJSON[T any](ctx context.Context, c *Client, r *Request) (*T, error) {
	resp, err := c.Do(ctx, r)
	if err != nil {
		return nil, err
	}
	var env api.Envelope
	if err := resp.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if !env.Success {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: env.Message, Fields: env.Errors}
	}
	out := new(T)
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return out, nil
}
