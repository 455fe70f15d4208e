package chiroute_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axilent/sharrock"
	"github.com/axilent/sharrock/chiroute"
	"github.com/axilent/sharrock/client"
	"github.com/axilent/sharrock/internal/example"
	"github.com/axilent/sharrock/modelstore"
	"github.com/axilent/sharrock/sharrocktest"
)

func newServer(t *testing.T) *sharrocktest.Client {
	t.Helper()

	reg, err := sharrock.Build(example.Sources(modelstore.NewMemory())...)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(sharrock.RequestID())
	r.Route("/api", func(r chi.Router) {
		chiroute.Mount(r, sharrock.New(reg))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &sharrocktest.Client{Server: srv, Header: http.Header{}}
}

func TestMount(t *testing.T) {
	t.Parallel()

	c := newServer(t)

	tests := map[string]struct {
		method     string
		path       string
		form       url.Values
		wantStatus int
		wantBody   string
	}{
		"descriptor": {
			method: http.MethodGet, path: "/api/sharrock_example/1.0/helloworld.json?name=Loren",
			wantStatus: http.StatusOK, wantBody: `"Hello Loren!"`,
		},
		"legacy descriptor": {
			method: http.MethodGet, path: "/api/sharrock_example/0.9/helloworld.json",
			wantStatus: http.StatusOK, wantBody: `"Hello world!"`,
		},
		"resource": {
			method: http.MethodPost, path: "/api/sharrock_resource_example/1.0/meresource/",
			form:       url.Values{"name": {"Loren"}},
			wantStatus: http.StatusCreated, wantBody: `"Posted Loren"`,
		},
		"unknown record": {
			method: http.MethodGet, path: "/api/sharrock_modelresource_example/1.0/userresource/9.json",
			wantStatus: http.StatusNotFound,
		},
		"describe": {
			method: http.MethodGet, path: "/api/describe/sharrock_example/1.0/helloworld.json",
			wantStatus: http.StatusOK,
		},
		"directory": {
			method: http.MethodGet, path: "/api/dir.json",
			wantStatus: http.StatusOK,
		},
		"directory page": {
			method: http.MethodGet, path: "/api/dir/",
			wantStatus: http.StatusOK,
		},
		"version directory": {
			method: http.MethodGet, path: "/api/dir/sharrock_example/1.0.json",
			wantStatus: http.StatusOK,
		},
		"openapi": {
			method: http.MethodGet, path: "/api/openapi.json",
			wantStatus: http.StatusOK,
		},
		"unknown extension": {
			method: http.MethodGet, path: "/api/sharrock_example/1.0/helloworld.txt",
			wantStatus: http.StatusNotFound,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var resp *sharrocktest.Response[any]
			if tc.form != nil {
				resp = sharrocktest.Form[any](t, c, tc.method, tc.path, tc.form)
			} else {
				resp = sharrocktest.Do[any](t, c, tc.method, tc.path, "", nil)
			}

			assert.Equal(t, tc.wantStatus, resp.Status)
			if tc.wantBody != "" {
				assert.Equal(t, tc.wantBody, string(resp.RawBody))
			}
			assert.NotEmpty(t, resp.Headers.Get("X-Request-ID"))
		})
	}
}

func TestMount_client(t *testing.T) {
	t.Parallel()

	c := newServer(t)
	users := client.New(c.URL("/api"), example.ModelResourceApp, example.Version).ModelResource("userresource")
	ctx := context.Background()

	id, err := users.Create(ctx, map[string]any{"name": "Loren"})
	require.NoError(t, err)

	record, err := users.Fetch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Loren", record["name"])
}
