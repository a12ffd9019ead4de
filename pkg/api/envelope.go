package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
)

// Envelope is the body shape of every non-empty successful response.
type Envelope[T any] struct {
	StatusCode int    `json:"statusCode"`
	Data       T      `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// NoContent reports whether e is the "no content" value. Safe on nil.
func (e *Envelope[T]) NoContent() bool {
	return e == nil
}

// Value returns Data, or the zero T for no content.
func (e *Envelope[T]) Value() T {
	if e == nil {
		var zero T
		return zero
	}
	return e.Data
}

// RequestOption adjusts a Request built by the verb helpers.
type RequestOption func(*Request)

// WithHeader sets a header. Caller headers replace the client's defaults.
func WithHeader(name, value string) RequestOption {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = make(http.Header)
		}
		r.Header.Set(name, value)
	}
}

// WithQuery merges values into the request's query string.
func WithQuery(values url.Values) RequestOption {
	return func(r *Request) {
		if r.Query == nil {
			r.Query = make(url.Values)
		}
		for k, vs := range values {
			r.Query[k] = append([]string(nil), vs...)
		}
	}
}

// Get reads path. No body is sent.
func Get[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (*Envelope[T], error) {
	return call[T](ctx, c, http.MethodGet, path, nil, opts)
}

// Post creates. body is nil, a *Form, or a JSON-encodable value.
func Post[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (*Envelope[T], error) {
	return call[T](ctx, c, http.MethodPost, path, body, opts)
}

// Patch partially updates.
func Patch[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (*Envelope[T], error) {
	return call[T](ctx, c, http.MethodPatch, path, body, opts)
}

// Delete removes. No body is sent.
func Delete[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (*Envelope[T], error) {
	return call[T](ctx, c, http.MethodDelete, path, nil, opts)
}

func call[T any](ctx context.Context, c *Client, method, path string, body any, opts []RequestOption) (*Envelope[T], error) {
	req := Request{Method: method, Path: path, Body: body}
	for _, opt := range opts {
		opt(&req)
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return Decode[T](resp)
}

// Decode unwraps the envelope of a successful response. A NoContent response
// yields (nil, nil).
func Decode[T any](resp *Response) (*Envelope[T], error) {
	if resp == nil || resp.NoContent {
		return nil, nil
	}
	var env Envelope[T]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, &Error{Status: resp.Status, Message: MsgInvalidResponse, Err: err}
	}
	return &env, nil
}
