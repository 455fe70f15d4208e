package sharrock

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
)

// Router exposes a Registry over HTTP. It implements http.Handler.
//
//	GET|POST /<app>/<version>/<slug>.<ext>          execute a descriptor
//	VERB     /<app>/<version>/<slug>/               execute a resource
//	VERB     /<app>/<version>/<slug>/<id>.<ext>     execute a model resource record
//	GET      /describe/<app>/<version>/<slug>.<ext> self-description
//	GET      /dir.<ext>, /dir/<app>/<version>.<ext> directory
//	GET      /openapi.json, /openapi.yaml           OpenAPI document
type Router struct {
	registry   *Registry
	mux        *http.ServeMux
	middleware []Middleware

	title   string
	version string

	serializers  serializerSet
	logger       *slog.Logger
	metrics      *Metrics
	errorHandler ErrorHandler
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// PathParamFunc reads a named path parameter matched by the routing layer.
type PathParamFunc func(r *http.Request, name string) string

// ServeMuxPathParam reads path parameters matched by http.ServeMux.
func ServeMuxPathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// ErrorHandler is a custom error response writer.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// WithTitle sets the API title (used in the OpenAPI document).
func WithTitle(title string) RouterOption {
	return func(r *Router) {
		r.title = title
	}
}

// WithVersion sets the API version (used in the OpenAPI document).
func WithVersion(version string) RouterOption {
	return func(r *Router) {
		r.version = version
	}
}

// WithLogger sets the logger used for server faults. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithSerializer adds a format to the extension whitelist. Describe and
// directory documents are available in every router format; services still
// answer only the formats they declare.
func WithSerializer(s Serializer) RouterOption {
	return func(r *Router) {
		r.serializers = append(r.serializers, s)
	}
}

// WithFormats replaces the extension whitelist. The json and xml defaults
// are dropped unless listed again.
func WithFormats(ss ...Serializer) RouterOption {
	return func(r *Router) {
		r.serializers = append(serializerSet(nil), ss...)
	}
}

// WithMetrics records per-service request metrics.
func WithMetrics(m *Metrics) RouterOption {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithErrorHandler sets a custom error handler for the router.
func WithErrorHandler(h ErrorHandler) RouterOption {
	return func(r *Router) {
		r.errorHandler = h
	}
}

// New creates a Router serving the registry.
func New(registry *Registry, opts ...RouterOption) *Router {
	r := &Router{
		registry:    registry,
		mux:         http.NewServeMux(),
		title:       "Sharrock services",
		version:     DefaultVersion,
		serializers: serializerSet{JSONSerializer{}, XMLSerializer{}},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.serializers = newSerializerSet(r.serializers...)
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.routes()
	return r
}

func (r *Router) routes() {
	pp := ServeMuxPathParam
	execute := r.ExecuteHandler(pp)
	r.mux.Handle("/{app}/{version}/{name}", execute)
	r.mux.Handle("/{app}/{version}/{name}/{$}", execute)
	r.mux.Handle("/{app}/{version}/{name}/{id}", execute)

	describe := r.DescribeHandler(pp)
	r.mux.Handle("GET /describe/{app}/{version}/{name}", describe)
	r.mux.Handle("GET /describe/{app}/{version}/{name}/{$}", describe)

	dir := r.DirectoryHandler(pp)
	for _, ext := range r.Extensions() {
		r.mux.Handle("GET /dir."+ext, dir)
	}
	r.mux.Handle("GET /dir/{$}", dir)
	r.mux.Handle("GET /dir/{app}/{version}/{$}", dir)
	r.mux.Handle("GET /dir/{app}/{name}", dir)

	spec := r.SpecHandler()
	for _, ext := range SpecFormats() {
		r.mux.Handle("GET /openapi."+ext, spec)
	}
}

// Registry returns the registry served by the router.
func (r *Router) Registry() *Registry { return r.registry }

// Extensions returns the whitelisted URL extensions: html plus every
// router format.
func (r *Router) Extensions() []string {
	return append([]string{"html"}, r.serializers.formats()...)
}

func (r *Router) allowedExt(ext string) bool {
	return slices.Contains(r.Extensions(), ext)
}

// Use adds middleware to the router. Middleware is applied in the order added.
func (r *Router) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

// Handle registers an extra handler (for example /metrics) on the router mux.
func (r *Router) Handle(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	handler := http.Handler(r.mux)
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}
	handler.ServeHTTP(w, req)
}

// ListenAndServe starts an HTTP server on the given address.
// It blocks until the context is cancelled, then shuts down gracefully.
func (r *Router) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// splitExt splits "slug.ext" at the last dot.
func splitExt(s string) (name, ext string) {
	if i := strings.LastIndexByte(s, '.'); i > 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

// ExecuteHandler runs descriptors and resources. Routing layers other than
// the built-in mux mount it with their own PathParamFunc; it reads the app,
// version, name and optional id parameters.
func (r *Router) ExecuteHandler(pathParam PathParamFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		app, version := pathParam(req, "app"), pathParam(req, "version")
		slug, ext := splitExt(pathParam(req, "name"))
		id := pathParam(req, "id")
		if id != "" {
			id, ext = splitExt(id)
		}
		key := Key{App: app, Version: version, Slug: slug}

		status, matched, err := r.execute(w, req, key, id, ext)
		if err != nil {
			status = ErrorStatus(err)
			r.fail(w, req, key, err)
		}
		if !matched {
			key = unmatchedKey
		}
		r.metrics.observe(key, req.Method, status, time.Since(start))
	})
}

// execute reports whether key named a registered service, so unmatched
// paths stay out of the metric labels.
func (r *Router) execute(w http.ResponseWriter, req *http.Request, key Key, id, ext string) (int, bool, error) {
	if ext != "" && !r.allowedExt(ext) {
		return 0, false, Errorf(http.StatusNotFound, "unknown extension %q", ext)
	}

	svc, err := r.registry.Lookup(key.App, key.Version, key.Slug)
	if err != nil {
		return 0, false, err
	}
	// Error responses of deprecated services carry the warning too.
	if reason := svc.Deprecated(); reason != "" {
		w.Header().Set("Warning", DeprecationPrefix+reason)
	}

	if _, ok := svc.(*Descriptor); ok {
		if id != "" {
			return 0, true, Errorf(http.StatusNotFound, "%s does not address records", key)
		}
		if req.Method != http.MethodGet && req.Method != http.MethodPost {
			return 0, true, &MethodNotAllowedError{Method: req.Method, Allowed: []string{http.MethodGet, http.MethodPost}}
		}
	}

	var pathParams map[string]string
	if id != "" {
		pathParams = map[string]string{IDParam: id}
	}
	sreq, err := NewRequest(req, pathParams)
	if err != nil {
		return 0, true, err
	}

	resp, err := svc.Serve(sreq, ext)
	if err != nil {
		return 0, true, err
	}
	resp.write(w)
	return resp.Status, true, nil
}

// fail logs server faults with service context and writes the error.
func (r *Router) fail(w http.ResponseWriter, req *http.Request, key Key, err error) {
	status := ErrorStatus(err)
	attrs := []slog.Attr{
		slog.String("app", key.App),
		slog.String("version", key.Version),
		slog.String("service", key.Slug),
		slog.String("method", req.Method),
		slog.Int("status", status),
		slog.Any("err", err),
	}
	if id := GetRequestID(req); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}

	if status >= http.StatusInternalServerError {
		r.logger.LogAttrs(req.Context(), slog.LevelError, "service failed", attrs...)
	} else {
		r.logger.LogAttrs(req.Context(), slog.LevelDebug, "service rejected request", attrs...)
	}

	if r.errorHandler != nil {
		r.errorHandler(w, req, err)
		return
	}
	writeErrorResponse(w, err)
}

// DescribeHandler serves self-descriptions; it reads app, version and name.
func (r *Router) DescribeHandler(pathParam PathParamFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		app, version := pathParam(req, "app"), pathParam(req, "version")
		slug, ext := splitExt(pathParam(req, "name"))
		if ext == "" {
			ext = "html"
		}
		key := Key{App: app, Version: version, Slug: slug}

		if !r.allowedExt(ext) {
			r.fail(w, req, key, Errorf(http.StatusNotFound, "unknown extension %q", ext))
			return
		}
		svc, err := r.registry.Lookup(app, version, slug)
		if err != nil {
			r.fail(w, req, key, err)
			return
		}

		var doc any
		switch s := svc.(type) {
		case *Descriptor:
			doc = s.Describe()
		case *Resource:
			doc = s.Describe()
		}
		if err := r.render(w, ext, doc); err != nil {
			r.fail(w, req, key, err)
		}
	})
}

// DirectoryHandler serves the directory; it reads the optional app and
// version (or name, as "<version>.<ext>") parameters.
func (r *Router) DirectoryHandler(pathParam PathParamFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		app, version := pathParam(req, "app"), pathParam(req, "version")
		ext := "html"
		if name := pathParam(req, "name"); name != "" {
			version, ext = splitExt(name)
		} else if _, e := splitExt(strings.TrimPrefix(req.URL.Path, "/")); e != "" && app == "" {
			ext = e
		}
		key := Key{App: app, Version: version}

		if !r.allowedExt(ext) {
			r.fail(w, req, key, Errorf(http.StatusNotFound, "unknown extension %q", ext))
			return
		}
		if err := r.registry.Ensure(); err != nil {
			r.fail(w, req, key, err)
			return
		}
		if err := r.render(w, ext, r.registry.Directory(app, version)); err != nil {
			r.fail(w, req, key, err)
		}
	})
}

// render writes a describe or directory document in the requested format.
func (r *Router) render(w http.ResponseWriter, ext string, doc any) error {
	if ext == "html" {
		return renderPage(w, doc)
	}
	ser, err := r.serializers.lookup(ext)
	if err != nil {
		return err
	}
	body, err := ser.Serialize(doc)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", ser.ContentType())
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck,gosec // best-effort after WriteHeader
	w.Write(body)
	return nil
}
