// internal/api/client.go
//
// Typed client for the remote forum REST API.
//
// Context
// -------
// Every page in this process is a thin view over the forum API.  Client wraps
// two go-retryablehttp clients that share one transport:
//
//   • read  – idempotent GETs, retried with exponential backoff up to
//             `api.retry_max` attempts.
//   • write – POST, PATCH, and DELETE calls, never retried.  A duplicated
//             signup or comment is worse than a visible error.
//
// Non-2xx responses become *StatusError.  Transport failures are returned
// wrapped, so callers decide between a generic message and a retry.
//
// Credentials are the API's own cookies.  They are captured at login, kept in
// the server-side auth session, and forwarded per call.  Signup, login, and
// uniqueness checks are sent without them.
//
// Notes
// -----
//   • Response bodies are capped at 1 MiB.
//   • Each request bumps `api_requests_total{method,code}`.
//   • Oxford commas, two spaces after periods.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/yanizio/forum/internal/config"
	"github.com/yanizio/forum/internal/logger"
	"github.com/yanizio/forum/internal/metrics"
)

const maxBody = 1 << 20

// Credentials are the API session cookies forwarded on authenticated calls.
type Credentials []*http.Cookie

// Client is safe for concurrent use.
type Client struct {
	base  *url.URL
	read  *retryablehttp.Client
	write *retryablehttp.Client
}

// New builds a Client from the `api` config section.
func New(cfg config.API) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api base url: %w", err)
	}

	read := retryablehttp.NewClient()
	read.RetryMax = cfg.RetryMax
	read.HTTPClient.Timeout = cfg.Timeout
	read.Logger = leveled{zap.S().Named("api")}
	read.ErrorHandler = retryablehttp.PassthroughErrorHandler

	write := retryablehttp.NewClient()
	write.RetryMax = 0
	write.HTTPClient = read.HTTPClient
	write.Logger = read.Logger
	write.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{base: base, read: read, write: write}, nil
}

// BaseURL returns the API root, used to build image URLs.
func (c *Client) BaseURL() string { return c.base.String() }

// ImageURL returns the public URL of an uploaded image.  kind is "profile"
// or "posts".  Empty names yield "".
func (c *Client) ImageURL(kind, name string) string {
	if name == "" {
		return ""
	}
	return c.base.JoinPath("images", kind, name).String()
}

/*──────────────────────────── request plumbing ────────────────────────────*/

// payload is a pre-encoded request body with its content type.
type payload struct {
	contentType string
	data        []byte
}

func jsonBody(v any) (*payload, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &payload{contentType: "application/json", data: b}, nil
}

// call describes one API round trip.
type call struct {
	method string
	path   string
	query  url.Values
	creds  Credentials
	body   any // nil, *payload, or a JSON-encodable value
	out    any // decoded on 2xx when non-nil
}

// do performs c and returns the response (body already consumed) so callers
// can read cookies.
func (c *Client) do(ctx context.Context, cl call) (*http.Response, error) {
	u := c.base.JoinPath(cl.path)
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch b := cl.body.(type) {
	case nil:
	case *payload:
		body, contentType = bytes.NewReader(b.data), b.contentType
	default:
		p, err := jsonBody(b)
		if err != nil {
			return nil, fmt.Errorf("api %s %s: encode: %w", cl.method, cl.path, err)
		}
		body, contentType = bytes.NewReader(p.data), p.contentType
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("api %s %s: %w", cl.method, cl.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, ck := range cl.creds {
		req.AddCookie(ck)
	}

	hc := c.write
	if cl.method == http.MethodGet {
		hc = c.read
	}

	resp, err := hc.Do(req)
	if err != nil {
		metrics.APIRequests.WithLabelValues(cl.method, "error").Inc()
		logger.FromContext(ctx).Warnw("api transport failure", "method", cl.method, "path", cl.path, "err", err)
		return nil, fmt.Errorf("api %s %s: %w", cl.method, cl.path, err)
	}
	defer resp.Body.Close()
	metrics.APIRequests.WithLabelValues(cl.method, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp, fmt.Errorf("api %s %s: read body: %w", cl.method, cl.path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, newStatusError(cl.method, cl.path, resp.StatusCode, data)
	}
	if cl.out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, cl.out); err != nil {
			return resp, fmt.Errorf("api %s %s: decode: %w", cl.method, cl.path, err)
		}
	}
	return resp, nil
}

/*──────────────────────────── logger adapter ──────────────────────────────*/

// leveled adapts zap to retryablehttp.LeveledLogger.
type leveled struct{ l *zap.SugaredLogger }

func (z leveled) Error(msg string, kv ...interface{}) { z.l.Errorw(msg, kv...) }
func (z leveled) Info(msg string, kv ...interface{}) { z.l.Infow(msg, kv...) }
func (z leveled) Debug(msg string, kv ...interface{}) { z.l.Debugw(msg, kv...) }
func (z leveled) Warn(msg string, kv ...interface{}) { z.l.Warnw(msg, kv...) }
