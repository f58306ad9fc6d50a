// Package backend is the REST client of the restaurant backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/ramen-pos/internal/domain/order"
	"github.com/xenking/ramen-pos/pkg/httpmiddleware"
)

const (
	loginPath    = "/api/v1/login"
	productsPath = "/api/v1/products"
	ordersPath   = "/api/v1/orders"
	kitchenPath  = "/api/v1/kitchen/orders"
	streamPath   = "/ws/kitchen"

	maxErrorBody = 4 << 10
)

// Session carries the bearer token of an authenticated user. The zero
// value is an anonymous session.
type Session struct {
	Token string
}

// Authorized reports whether the session carries a token.
func (s Session) Authorized() bool { return s.Token != "" }

// Header returns the Authorization header for the session, if any.
func (s Session) Header() http.Header {
	h := make(http.Header)
	if s.Authorized() {
		h.Set("Authorization", "Bearer "+s.Token)
	}
	return h
}

// HTTPError is a non-2xx backend response.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	// Detail is the backend's error message, when it sent one.
	Detail string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap classifies client errors as rejections. Timeouts and throttling
// are left transient.
func (e *HTTPError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return nil
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return order.ErrRejected
	default:
		return nil
	}
}

// Client talks to the backend over HTTP.
type Client struct {
	base    *url.URL
	http    *http.Client
	session Session
	lg      *zap.Logger
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, httpClient *http.Client, session Session, lg *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.Errorf("base url %q has no host", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		base:    u,
		http:    httpClient,
		session: session,
		lg:      lg,
	}, nil
}

// WithSession returns a copy of c that authenticates with s.
func (c *Client) WithSession(s Session) *Client {
	cp := *c
	cp.session = s
	return &cp
}

// Session returns the session the client authenticates with.
func (c *Client) Session() Session { return c.session }

// StreamURL returns the kitchen push endpoint, ws or wss following the
// base URL scheme.
func (c *Client) StreamURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + streamPath
	return u.String()
}

// Origin returns the origin to present when dialing the push endpoint.
func (c *Client) Origin() string {
	return c.base.Scheme + "://" + c.base.Host
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
}

func jsonRequest(method, path string, v any) (request, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return request{}, errors.Wrap(err, "encode body")
	}
	return request{
		method:      method,
		path:        path,
		body:        bytes.NewReader(data),
		contentType: "application/json",
	}, nil
}

// do sends r and returns the response body of a 2xx response.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint(r.path), r.body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if c.session.Authorized() {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
	reqID := httpmiddleware.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	req.Header.Set(httpmiddleware.RequestIDHeader, reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", r.method, r.path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		httpErr := &HTTPError{
			Method:     r.method,
			Path:       r.path,
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(body),
		}
		c.lg.Debug("Backend error",
			zap.String("request_id", reqID),
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", httpErr.Detail),
		)
		return nil, httpErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s %s", r.method, r.path)
	}
	return body, nil
}

// errorDetail extracts a human readable message from an error body. The
// backend reports either {"detail": "..."} or a validation list
// {"detail": [{"msg": "..."}]}.
func errorDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &list); err == nil {
		msgs := make([]string, 0, len(list))
		for _, item := range list {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(payload.Detail)
}
