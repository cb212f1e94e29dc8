package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"schoolhub/internal/metrics"
)

// ErrUnauthorized is wrapped by every 401 answer from the backend.
var ErrUnauthorized = errors.New("backend: unauthorized")

// APIError is a non-2xx backend answer.
type APIError struct {
	Status int
	// Detail is the backend's own message (detail / error / message field), if any.
	Detail string
	Body   []byte
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return "backend error " + http.StatusText(e.Status) + ": " + e.Detail
	}
	return "backend error " + http.StatusText(e.Status)
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match 401 answers.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Message returns the backend's embedded error detail when present, else fallback.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}

// Session is the backend session a request is made on behalf of.
type Session struct {
	ID        string `json:"sid"`
	CSRFToken string `json:"csrf,omitempty"`
}

type sessionKey struct{}

// WithSession attaches backend session credentials to ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session stored in ctx.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok && s.ID != ""
}

const (
	sessionCookie = "sessionid"
	csrfCookie    = "csrftoken"
)

// Client calls the school REST backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Log     *zap.Logger
}

// New creates a client with the given request timeout.
func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Log:     log,
	}
}

type request struct {
	method      string
	resource    string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func (c *Client) jsonRequest(ctx context.Context, method, resource, path string, query url.Values, in, out any) error {
	req := request{method: method, resource: resource, path: path, query: query}
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
		req.body = bytes.NewReader(data)
		req.contentType = "application/json"
	}
	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

// send issues the request and converts non-2xx answers into *APIError.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	u := c.BaseURL + "/" + strings.TrimLeft(r.path, "/")
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return nil, errors.Wrap(err, "build backend request")
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if s, ok := SessionFrom(ctx); ok {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: s.ID})
		if s.CSRFToken != "" {
			req.AddCookie(&http.Cookie{Name: csrfCookie, Value: s.CSRFToken})
			if r.method != http.MethodGet && r.method != http.MethodHead {
				req.Header.Set("X-CSRFToken", s.CSRFToken)
			}
		}
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	metrics.BackendLatency.WithLabelValues(r.resource).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequests.WithLabelValues(r.resource, r.method, metrics.StatusClass(0)).Inc()
		return nil, errors.Wrapf(err, "backend %s %s", r.method, r.path)
	}
	metrics.BackendRequests.WithLabelValues(r.resource, r.method, metrics.StatusClass(resp.StatusCode)).Inc()
	c.Log.Debug("backend request",
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{Status: resp.StatusCode, Detail: detailOf(body), Body: body}
		c.Log.Warn("backend error",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", apiErr.Detail))
		return nil, apiErr
	}
	return resp, nil
}

func decode(resp *http.Response, out any) error {
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Wrap(err, "decode backend response")
	}
	return nil
}

// detailOf pulls a human message out of a DRF-style error body.
func detailOf(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "error", "message"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
