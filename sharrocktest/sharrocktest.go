// Package sharrocktest provides typed test helpers for sharrock services.
package sharrocktest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/axilent/sharrock"
)

// Client wraps an httptest.Server for convenient service testing.
type Client struct {
	Server *httptest.Server
	Header http.Header
}

// NewClient creates a test client from a router.
func NewClient(t testing.TB, r *sharrock.Router) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &Client{Server: srv, Header: http.Header{}}
}

// NewServer builds a registry from sources and serves it with a default
// router. The registry is built eagerly so duplicate keys fail the test.
func NewServer(t testing.TB, sources []sharrock.Source, opts ...sharrock.RouterOption) *Client {
	t.Helper()
	reg, err := sharrock.Build(sources...)
	if err != nil {
		t.Fatalf("sharrocktest: build registry: %v", err)
	}
	return NewClient(t, sharrock.New(reg, opts...))
}

// URL returns the absolute URL of path on the test server.
func (c *Client) URL(path string) string {
	return c.Server.URL + path
}

// Response holds a decoded service response. Problem is set instead of Body
// for application/problem+json answers.
type Response[T any] struct {
	Status  int
	Headers http.Header
	Body    *T
	Problem *sharrock.ProblemDetail
	RawBody []byte
}

// Warning returns the deprecation warning of the response, if any.
func (r *Response[T]) Warning() string {
	return r.Headers.Get("Warning")
}

// Get sends a typed GET request.
func Get[Resp any](t testing.TB, c *Client, path string) *Response[Resp] {
	t.Helper()
	return Do[Resp](t, c, http.MethodGet, path, "", nil)
}

// Post sends a typed POST request with a JSON body.
func Post[Req, Resp any](t testing.TB, c *Client, path string, body *Req) *Response[Resp] {
	t.Helper()
	return Do[Resp](t, c, http.MethodPost, path, "application/json", marshal(t, body))
}

// Put sends a typed PUT request with a JSON body.
func Put[Req, Resp any](t testing.TB, c *Client, path string, body *Req) *Response[Resp] {
	t.Helper()
	return Do[Resp](t, c, http.MethodPut, path, "application/json", marshal(t, body))
}

// Delete sends a typed DELETE request.
func Delete[Resp any](t testing.TB, c *Client, path string) *Response[Resp] {
	t.Helper()
	return Do[Resp](t, c, http.MethodDelete, path, "", nil)
}

// Form sends form-encoded values with the given method.
func Form[Resp any](t testing.TB, c *Client, method, path string, values url.Values) *Response[Resp] {
	t.Helper()
	return Do[Resp](t, c, method, path, "application/x-www-form-urlencoded", strings.NewReader(values.Encode()))
}

func marshal(t testing.TB, body any) io.Reader {
	t.Helper()
	if body == nil {
		return nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("sharrocktest: marshal request body: %v", err)
	}
	return bytes.NewReader(b)
}

// Do sends a request and decodes a JSON answer into Resp.
func Do[Resp any](t testing.TB, c *Client, method, path, contentType string, body io.Reader) *Response[Resp] {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, c.URL(path), body)
	if err != nil {
		t.Fatalf("sharrocktest: create request: %v", err)
	}
	for k, vals := range c.Header {
		req.Header[k] = vals
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("sharrocktest: execute request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.Errorf("sharrocktest: close body: %v", closeErr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("sharrocktest: read body: %v", err)
	}

	result := &Response[Resp]{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		RawBody: raw,
	}
	if len(raw) == 0 {
		return result
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/problem+json") {
		var problem sharrock.ProblemDetail
		if json.Unmarshal(raw, &problem) == nil {
			result.Problem = &problem
		}
		return result
	}

	var decoded Resp
	if json.Unmarshal(raw, &decoded) == nil {
		result.Body = &decoded
	}
	return result
}
