package sharrock_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axilent/sharrock"
	"github.com/axilent/sharrock/sharrocktest"
)

func panicky() sharrock.Module {
	return sharrock.Module{App: "faulty", Version: "1.0", Descriptors: []*sharrock.Descriptor{
		sharrock.NewDescriptor("Boom", func(context.Context, *sharrock.Request, any, sharrock.Params) (any, error) {
			panic("boom")
		}),
	}}
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	reg, err := sharrock.Build(panicky())
	require.NoError(t, err)
	r := sharrock.New(reg)
	r.Use(sharrock.RequestID(), sharrock.Recovery(logger))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/faulty/1.0/boom.json", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var problem sharrock.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "Internal Server Error", problem.Detail)
	assert.NotContains(t, rec.Body.String(), "boom")

	out := buf.String()
	assert.Contains(t, out, "panic recovered")
	assert.Contains(t, out, "panic=boom")
	assert.Contains(t, out, "request_id="+rec.Header().Get("X-Request-ID"))
}

func TestRecovery_abortHandlerIsRepanicked(t *testing.T) {
	t.Parallel()

	handler := sharrock.Recovery(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg      []sharrock.RequestIDConfig
		incoming http.Header
		header   string
		check    func(t *testing.T, id string)
	}{
		"generated when absent": {
			header: "X-Request-ID",
			check: func(t *testing.T, id string) {
				assert.Len(t, id, 36)
			},
		},
		"propagated when present": {
			incoming: http.Header{"X-Request-Id": {"abc-123"}},
			header:   "X-Request-ID",
			check: func(t *testing.T, id string) {
				assert.Equal(t, "abc-123", id)
			},
		},
		"custom header and generator": {
			cfg:    []sharrock.RequestIDConfig{{Header: "X-Trace", Generator: func() string { return "fixed" }}},
			header: "X-Trace",
			check: func(t *testing.T, id string) {
				assert.Equal(t, "fixed", id)
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var seen string
			handler := sharrock.RequestID(tc.cfg...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = sharrock.GetRequestID(r)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.incoming {
				req.Header[k] = v
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			id := rec.Header().Get(tc.header)
			assert.Equal(t, seen, id)
			tc.check(t, id)
		})
	}
}

func TestRequestID_reachesServices(t *testing.T) {
	t.Parallel()

	reg, err := sharrock.Build(sharrock.Module{App: "trace", Version: "1.0", Descriptors: []*sharrock.Descriptor{
		sharrock.NewDescriptor("Echo", func(ctx context.Context, _ *sharrock.Request, _ any, _ sharrock.Params) (any, error) {
			return sharrock.RequestIDFromContext(ctx), nil
		}),
	}})
	require.NoError(t, err)
	r := sharrock.New(reg)
	r.Use(sharrock.RequestID())
	c := sharrocktest.NewClient(t, r)
	c.Header.Set("X-Request-ID", "req-42")

	resp := sharrocktest.Get[string](t, c, "/trace/1.0/echo.json")
	require.Equal(t, http.StatusOK, resp.Status)
	require.NotNil(t, resp.Body)
	assert.Equal(t, "req-42", *resp.Body)
	assert.Empty(t, sharrock.RequestIDFromContext(context.Background()))
}

func TestLogger(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		path       string
		wantSubstr []string
		wantLevel  string
	}{
		"request is logged": {
			path:       "/sharrock_example/1.0/helloworld.json",
			wantSubstr: []string{"msg=request", "method=GET", "path=/sharrock_example/1.0/helloworld.json", "status=200"},
			wantLevel:  "level=INFO",
		},
		"status code is captured": {
			path:       "/sharrock_example/1.0/nope.json",
			wantSubstr: []string{"status=404"},
			wantLevel:  "level=INFO",
		},
		"deprecated calls log at warn": {
			path:       "/sharrock_example/0.9/helloworld.json",
			wantSubstr: []string{`deprecated="METHOD DEPRECATED: version 0.9 is retired, use 1.0"`},
			wantLevel:  "level=WARN",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			r := sharrock.New(exampleRegistry(t), sharrock.WithLogger(slog.New(slog.DiscardHandler)))
			r.Use(sharrock.RequestID(), sharrock.Logger(logger))
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))

			out := buf.String()
			assert.Contains(t, out, tc.wantLevel)
			assert.Contains(t, out, "request_id=")
			for _, s := range tc.wantSubstr {
				assert.Contains(t, out, s, "log output should contain %q", s)
			}
		})
	}
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		body       string
		chunked    bool
		wantStatus int
	}{
		"within the limit": {
			body:       `{"foo": "bar"}`,
			wantStatus: http.StatusOK,
		},
		"declared length over the limit": {
			body:       `{"foo": "` + strings.Repeat("x", 64) + `"}`,
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		"streamed body over the limit": {
			body:       `{"foo": "` + strings.Repeat("x", 64) + `"}`,
			chunked:    true,
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := sharrock.New(exampleRegistry(t))
			r.Use(sharrock.BodyLimit(32))

			req := httptest.NewRequest(http.MethodPost, "/sharrock_example/1.0/postdata.json", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			if tc.chunked {
				req.ContentLength = -1
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus != http.StatusOK {
				assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			}
		})
	}
}
