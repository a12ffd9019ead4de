package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is used when no base URL is configured.
	DefaultBaseURL   = "http://localhost:8000/api/v1"
	defaultUserAgent = "vidtube/0.1"

	headerRequestID = "X-Request-Id"
)

// Request describes one call. Path is relative to the client's base URL and
// may carry its own query string.
type Request struct {
	Method string
	Path   string
	// Body is nil, a *Form, or any JSON-encodable value.
	Body   any
	Query  url.Values
	Header http.Header
}

// Response is a successful (2xx) result. When NoContent is true the body was
// not inspected.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	NoContent bool
}

// Client issues requests against one base URL with a shared cookie jar.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	logger    log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sends requests through hc. A jar is attached to a copy of hc
// when it has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			cp := *hc
			if cp.Jar == nil {
				cp.Jar = c.http.Jar
			}
			c.http = &cp
		}
	}
}

func WithLogger(logger log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient builds a Client for baseURL, e.g. "http://localhost:8000/api/v1".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &Client{
		baseURL:   base,
		http:      &http.Client{Jar: jar},
		userAgent: defaultUserAgent,
		logger:    log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do performs req. Any failure is returned as an *Error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c == nil {
		return nil, transportError(fmt.Errorf("client is nil"))
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	reqURL, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, transportError(err)
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, transportError(fmt.Errorf("encode body: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, reqURL.String(), body)
	if err != nil {
		if body != nil {
			body.Close()
		}
		return nil, transportError(fmt.Errorf("create request: %w", err))
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(headerRequestID, requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for name, values := range req.Header {
		httpReq.Header.Del(name)
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}

	logger := log.With(c.logger, "method", req.Method, "path", req.Path, "request_id", requestID)
	start := time.Now()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		level.Warn(logger).Log("msg", "request failed before a response", "err", err)
		return nil, transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	level.Debug(logger).Log("msg", "request completed", "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			text = nil
		}
		apiErr := responseError(resp.StatusCode, statusText(resp), text)
		level.Debug(logger).Log("msg", "request rejected", "status", resp.StatusCode, "message", apiErr.Message)
		return nil, apiErr
	}

	out := &Response{Status: resp.StatusCode, Header: resp.Header}
	if isNoContent(resp) {
		out.NoContent = true
		return out, nil
	}

	out.Body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Status: resp.StatusCode, Message: MsgInvalidResponse, Err: err}
	}
	return out, nil
}

func (c *Client) resolve(path string, query url.Values) (*url.URL, error) {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u, err := url.Parse(c.baseURL.String() + path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}
	if len(query) > 0 {
		merged := u.Query()
		for k, vs := range query {
			merged.Del(k)
			for _, v := range vs {
				merged.Add(k, v)
			}
		}
		u.RawQuery = merged.Encode()
	}
	return u, nil
}

// encodeBody returns the request body and its Content-Type. Every request
// that is not a form is declared JSON, bodyless ones included; a form sets
// its own multipart boundary.
func encodeBody(body any) (io.ReadCloser, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "application/json", nil
	case *Form:
		if b == nil {
			return nil, "application/json", nil
		}
		r, ct := b.reader()
		return r, ct, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return io.NopCloser(bytes.NewReader(data)), "application/json", nil
	}
}

func isNoContent(resp *http.Response) bool {
	if resp.StatusCode == http.StatusNoContent {
		return true
	}
	if resp.ContentLength == 0 || resp.Header.Get("Content-Length") == "0" {
		return true
	}
	return !strings.Contains(resp.Header.Get("Content-Type"), "application/json")
}

// statusText returns the reason phrase the server sent, which may be empty.
func statusText(resp *http.Response) string {
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse base url %q: missing host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
