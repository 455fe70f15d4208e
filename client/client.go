// Package client calls sharrock services over HTTP. It discovers each
// service's parameter contract from the server's self-description on first
// use and validates calls locally before sending them.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sync/singleflight"

	"github.com/axilent/sharrock"
)

// Client calls the services of one app version. It is safe for concurrent
// use; self-descriptions are fetched at most once per name at a time.
type Client struct {
	serviceURL string
	app        string
	version    string

	http   *http.Client
	auth   func(*http.Request)
	logger *slog.Logger

	services  cmap.ConcurrentMap[string, *ServiceHandle]
	resources cmap.ConcurrentMap[string, *ResourceHandle]
	fetches   singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Defaults to http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithBasicAuth attaches Basic credentials to every request.
func WithBasicAuth(user, pass string) Option {
	return func(c *Client) {
		c.auth = func(r *http.Request) { r.SetBasicAuth(user, pass) }
	}
}

// WithBearerToken attaches a bearer token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.auth = func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
	}
}

// WithLogger sets the logger used for deprecation warnings. Defaults to
// slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New returns a client for the services of app at version, served under
// serviceURL (for example "http://localhost:8000/api").
func New(serviceURL, app, version string, opts ...Option) *Client {
	c := &Client{
		serviceURL: strings.TrimRight(serviceURL, "/"),
		app:        app,
		version:    version,
		http:       http.DefaultClient,
		logger:     slog.Default(),
		services:   cmap.New[*ServiceHandle](),
		resources:  cmap.New[*ResourceHandle](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ServiceHandle is the client-side mirror of a descriptor: its address and
// the validators rebuilt from its self-description.
type ServiceHandle struct {
	Slug        string
	URL         string
	Description sharrock.Description
	Validator   *ParamValidator
}

// callConfig holds the per-call settings.
type callConfig struct {
	data       any
	params     map[string]any
	method     string
	force      bool
	skipChecks bool
}

// CallOption configures a single call.
type CallOption func(*callConfig)

// WithData sends data as the JSON request body.
func WithData(data any) CallOption {
	return func(c *callConfig) {
		c.data = data
	}
}

// WithParams sends params as the query string on GET and DELETE, and as a
// form body on POST and PUT when no data is given.
func WithParams(params map[string]any) CallOption {
	return func(c *callConfig) {
		c.params = params
	}
}

// WithMethod overrides the inferred HTTP method.
func WithMethod(method string) CallOption {
	return func(c *callConfig) {
		c.method = strings.ToUpper(method)
	}
}

// ForceRefresh refetches the self-description before calling.
func ForceRefresh() CallOption {
	return func(c *callConfig) {
		c.force = true
	}
}

// SkipLocalCheck sends the call without validating it first.
func SkipLocalCheck() CallOption {
	return func(c *callConfig) {
		c.skipChecks = true
	}
}

func newCallConfig(opts []CallOption) *callConfig {
	cfg := &callConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.method == "" {
		cfg.method = http.MethodGet
		if cfg.data != nil {
			cfg.method = http.MethodPost
		}
	}
	return cfg
}

// Call invokes the named service. The name is slugified the same way the
// server derives slugs, so "HelloWorld" and "helloworld" address the same
// service.
func (c *Client) Call(ctx context.Context, name string, opts ...CallOption) (*Result, error) {
	cfg := newCallConfig(opts)

	h, err := c.service(ctx, sharrock.Slugify(name), cfg.force)
	if err != nil {
		return nil, err
	}
	if !cfg.skipChecks {
		if err := h.Validator.checkCall(h.Description.DataParsing, cfg); err != nil {
			return nil, err
		}
	}
	return c.do(ctx, cfg.method, h.URL, cfg)
}

// Method returns a function calling the named service. It is the
// statically declared counterpart of dynamic per-service accessors:
//
//	hello := c.Method("helloworld")
//	res, err := hello(ctx, client.WithParams(map[string]any{"name": "Loren"}))
func (c *Client) Method(name string) func(ctx context.Context, opts ...CallOption) (*Result, error) {
	return func(ctx context.Context, opts ...CallOption) (*Result, error) {
		return c.Call(ctx, name, opts...)
	}
}

// CallAs invokes the named service and decodes its result into T.
func CallAs[T any](ctx context.Context, c *Client, name string, opts ...CallOption) (T, error) {
	var out T
	res, err := c.Call(ctx, name, opts...)
	if err != nil {
		return out, err
	}
	err = res.Decode(&out)
	return out, err
}

// Describe returns the self-description of the named service.
func (c *Client) Describe(ctx context.Context, name string) (sharrock.Description, error) {
	h, err := c.service(ctx, sharrock.Slugify(name), false)
	if err != nil {
		return sharrock.Description{}, err
	}
	return h.Description, nil
}

// Directory lists the services of the client's app version.
func (c *Client) Directory(ctx context.Context) (sharrock.Directory, error) {
	var dir sharrock.Directory
	u := fmt.Sprintf("%s/dir/%s/%s.json", c.serviceURL, url.PathEscape(c.app), url.PathEscape(c.version))
	err := c.getJSON(ctx, u, &dir)
	return dir, err
}

// coalesce runs fetch once per key across concurrent callers. The shared
// fetch ignores the first caller's cancellation; every caller stops waiting
// when its own ctx ends.
func (c *Client) coalesce(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	ch := c.fetches.DoChan(key, func() (any, error) {
		return fetch(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// service returns the cached handle for slug, fetching it when absent or
// forced. Concurrent fetches of the same slug are coalesced.
func (c *Client) service(ctx context.Context, slug string, force bool) (*ServiceHandle, error) {
	if !force {
		if h, ok := c.services.Get(slug); ok {
			return h, nil
		}
	}

	v, err := c.coalesce(ctx, "service:"+slug, func(fetchCtx context.Context) (any, error) {
		if !force {
			if h, ok := c.services.Get(slug); ok {
				return h, nil
			}
		}
		var desc sharrock.Description
		if err := c.getJSON(fetchCtx, c.describeURL(slug), &desc); err != nil {
			return nil, err
		}
		validator, err := NewParamValidator(desc.Params)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", slug, err)
		}
		h := &ServiceHandle{
			Slug:        slug,
			URL:         fmt.Sprintf("%s/%s/%s/%s.json", c.serviceURL, url.PathEscape(c.app), url.PathEscape(c.version), url.PathEscape(slug)),
			Description: desc,
			Validator:   validator,
		}
		c.services.Set(slug, h)
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ServiceHandle), nil
}

func (c *Client) describeURL(slug string) string {
	return fmt.Sprintf("%s/describe/%s/%s/%s.json", c.serviceURL, url.PathEscape(c.app), url.PathEscape(c.version), url.PathEscape(slug))
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	res, err := c.do(ctx, http.MethodGet, u, &callConfig{})
	if err != nil {
		return err
	}
	return res.Decode(v)
}

// do performs one HTTP exchange. GET and DELETE carry params in the query
// string. POST and PUT send data as JSON (params then go in the query
// string) or else params as a form body.
func (c *Client) do(ctx context.Context, method, rawURL string, cfg *callConfig) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %s: %w", rawURL, err)
	}

	var (
		body        io.Reader
		contentType string
		query       = encodeParams(cfg.params)
	)
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		if cfg.data != nil {
			b, err := json.Marshal(cfg.data)
			if err != nil {
				return nil, fmt.Errorf("encode request data: %w", err)
			}
			body, contentType = bytes.NewReader(b), "application/json"
		} else if len(query) > 0 {
			body, contentType = strings.NewReader(query.Encode()), "application/x-www-form-urlencoded"
			query = nil
		}
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.auth != nil {
		c.auth(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, u.Redacted(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, newServiceException(resp, raw)
	}

	res := &Result{
		Status: resp.StatusCode,
		Header: resp.Header,
		Raw:    raw,
	}
	if warning := resp.Header.Get("Warning"); warning != "" {
		res.Deprecation = strings.TrimPrefix(warning, sharrock.DeprecationPrefix)
		c.logger.LogAttrs(ctx, slog.LevelWarn, "called deprecated service",
			slog.String("method", method),
			slog.String("url", u.Redacted()),
			slog.String("reason", res.Deprecation),
		)
	}
	if err := res.decodeValue(); err != nil {
		return nil, err
	}
	return res, nil
}

// Result is a successful service answer.
type Result struct {
	Status int
	Header http.Header
	Raw    []byte

	// Value is the decoded JSON body; nil for an empty body.
	Value any

	// Deprecation is the deprecation reason announced by the server, if any.
	Deprecation string
}

// Deprecated reports whether the server flagged the service as deprecated.
func (r *Result) Deprecated() bool { return r.Deprecation != "" }

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Result) Decode(v any) error {
	if len(bytes.TrimSpace(r.Raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Raw, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (r *Result) decodeValue() error {
	if len(bytes.TrimSpace(r.Raw)) == 0 {
		return nil
	}
	mediaType := r.Header.Get("Content-Type")
	if mediaType != "" && !strings.Contains(mediaType, "json") {
		return nil
	}
	return r.Decode(&r.Value)
}

// ServiceException reports an HTTP status of 400 or above.
type ServiceException struct {
	StatusCode int
	Body       string

	// Problem is the decoded problem details body, when the server sent one.
	Problem *sharrock.ProblemDetail
}

func newServiceException(resp *http.Response, raw []byte) *ServiceException {
	e := &ServiceException{StatusCode: resp.StatusCode, Body: string(raw)}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/problem+json") {
		var p sharrock.ProblemDetail
		if json.Unmarshal(raw, &p) == nil {
			e.Problem = &p
		}
	}
	return e
}

func (e *ServiceException) Error() string {
	msg := e.Body
	if e.Problem != nil {
		msg = e.Problem.Error()
	}
	return fmt.Sprintf("service exception %d: %s", e.StatusCode, msg)
}

// Status returns the HTTP status code of the failed call.
func (e *ServiceException) Status() int { return e.StatusCode }

// IsStatus reports whether err is a ServiceException with the given status.
func IsStatus(err error, status int) bool {
	var se *ServiceException
	return errors.As(err, &se) && se.StatusCode == status
}
