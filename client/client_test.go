package client_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axilent/sharrock"
	"github.com/axilent/sharrock/client"
	"github.com/axilent/sharrock/internal/example"
	"github.com/axilent/sharrock/modelstore"
)

// server serves the example apps and counts describe fetches and service
// executions separately.
type server struct {
	url       string
	describes atomic.Int64
	calls     atomic.Int64
}

func newServer(t *testing.T) *server {
	t.Helper()

	reg, err := sharrock.Build(example.Sources(modelstore.NewMemory())...)
	require.NoError(t, err)

	s := &server{}
	r := sharrock.New(reg, sharrock.WithLogger(slog.New(slog.DiscardHandler)))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.HasPrefix(req.URL.Path, "/describe/") {
				s.describes.Add(1)
			} else {
				s.calls.Add(1)
			}
			next.ServeHTTP(w, req)
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	s.url = srv.URL
	return s
}

func TestClient_Call(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	c := client.New(srv.url, example.App, example.Version)
	ctx := context.Background()

	tests := map[string]struct {
		name      string
		opts      []client.CallOption
		wantValue any
	}{
		"default param": {
			name:      "helloworld",
			wantValue: "Hello world!",
		},
		"query param": {
			name:      "HelloWorld",
			opts:      []client.CallOption{client.WithParams(map[string]any{"name": "Loren"})},
			wantValue: "Hello Loren!",
		},
		"form param on post": {
			name: "helloworld",
			opts: []client.CallOption{
				client.WithParams(map[string]any{"name": "Loren"}),
				client.WithMethod("post"),
			},
			wantValue: "Hello Loren!",
		},
		"posted data": {
			name:      "postdata",
			opts:      []client.CallOption{client.WithData(map[string]any{"foo": "bar"})},
			wantValue: map[string]any{"grommit": "bar"},
		},
		"data parsing": {
			name:      "adder",
			opts:      []client.CallOption{client.WithData(map[string]any{"numbers": []int{1, 2, 3}})},
			wantValue: map[string]any{"sum": float64(6)},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			res, err := c.Call(ctx, tc.name, tc.opts...)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, res.Status)
			assert.Equal(t, tc.wantValue, res.Value)
			assert.False(t, res.Deprecated())
		})
	}
}

func TestClient_localChecks(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	c := client.New(srv.url, example.App, example.Version)
	ctx := context.Background()
	t.Cleanup(func() {
		assert.Zero(t, srv.calls.Load(), "rejected calls must not reach the server")
	})

	tests := map[string]struct {
		name      string
		opts      []client.CallOption
		wantErr   error
		wantField string
	}{
		"missing required param": {
			name:      "parameterizedservice",
			wantErr:   sharrock.ErrMissingParam,
			wantField: "foo",
		},
		"bad param type": {
			name:      "parameterizedservice",
			opts:      []client.CallOption{client.WithParams(map[string]any{"foo": "x", "bar": "abc"})},
			wantErr:   sharrock.ErrBadParamType,
			wantField: "bar",
		},
		"missing list in the body": {
			name:      "adder",
			opts:      []client.CallOption{client.WithData(map[string]any{})},
			wantErr:   sharrock.ErrMissingParam,
			wantField: "numbers",
		},
		"bad list item in the body": {
			name:      "adder",
			opts:      []client.CallOption{client.WithData(map[string]any{"numbers": []any{1, "x"}})},
			wantErr:   sharrock.ErrBadParamType,
			wantField: "numbers[1]",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := c.Call(ctx, tc.name, tc.opts...)
			require.ErrorIs(t, err, tc.wantErr)

			if errors.Is(tc.wantErr, sharrock.ErrMissingParam) {
				var missing *sharrock.MissingParamError
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, tc.wantField, missing.Name)
				return
			}
			var badType *sharrock.BadParamTypeError
			require.ErrorAs(t, err, &badType)
			assert.Equal(t, tc.wantField, badType.Name)
		})
	}
}

func TestClient_SkipLocalCheck(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	c := client.New(srv.url, example.App, example.Version)

	_, err := c.Call(context.Background(), "parameterizedservice", client.SkipLocalCheck())
	require.Error(t, err)
	assert.True(t, client.IsStatus(err, http.StatusBadRequest))
	assert.False(t, client.IsStatus(err, http.StatusNotFound))

	var se *client.ServiceException
	require.ErrorAs(t, err, &se)
	require.NotNil(t, se.Problem)
	require.Len(t, se.Problem.Errors, 1)
	assert.Equal(t, "foo", se.Problem.Errors[0].Field)
	assert.Contains(t, se.Error(), "service exception 400")
	assert.EqualValues(t, 1, srv.calls.Load())
}

func TestClient_serverFailures(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	c := client.New(srv.url, example.App, example.Version)
	ctx := context.Background()

	_, err := c.Call(ctx, "nope")
	assert.True(t, client.IsStatus(err, http.StatusNotFound))

	_, err = c.Call(ctx, "simpleservice")
	assert.True(t, client.IsStatus(err, http.StatusNotImplemented))
}

func TestClient_deprecation(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	var buf bytes.Buffer
	c := client.New(srv.url, example.App, example.LegacyVersion,
		client.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	res, err := c.Call(context.Background(), "helloworld")
	require.NoError(t, err)
	assert.True(t, res.Deprecated())
	assert.Equal(t, example.LegacyReason, res.Deprecation)
	assert.Contains(t, buf.String(), "called deprecated service")
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestClient_MethodAndCallAs(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	c := client.New(srv.url, example.App, example.Version)
	ctx := context.Background()

	hello := c.Method("HelloWorld")
	res, err := hello(ctx, client.WithParams(map[string]any{"name": "Ada"}))
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada!", res.Value)

	type sum struct {
		Sum int `json:"sum"`
	}
	got, err := client.CallAs[sum](ctx, c, "adder", client.WithData(map[string]any{"numbers": []string{"2", "3"}}))
	require.NoError(t, err)
	assert.Equal(t, 5, got.Sum)
}

func TestClient_StructParams(t *testing.T) {
	t.Parallel()

	type greeting struct {
		Name  string `param:"name,omitempty"`
		Count int    `param:"count"`
	}

	params, err := client.StructParams(greeting{Name: "Loren", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Loren", "count": "2"}, params)

	params, err = client.StructParams(greeting{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": "0"}, params)

	srv := newServer(t)
	c := client.New(srv.url, example.App, example.Version)
	params, err = client.StructParams(greeting{Name: "Loren"})
	require.NoError(t, err)
	res, err := c.Call(context.Background(), "helloworld", client.WithParams(params))
	require.NoError(t, err)
	assert.Equal(t, "Hello Loren!", res.Value)
}

func TestClient_descriptionsAreCached(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	c := client.New(srv.url, example.App, example.Version)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Call(ctx, "helloworld")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, srv.describes.Load())
	assert.EqualValues(t, 10, srv.calls.Load())

	_, err := c.Call(ctx, "helloworld", client.ForceRefresh())
	require.NoError(t, err)
	assert.EqualValues(t, 2, srv.describes.Load())
}

func TestClient_cancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	t.Parallel()

	reg, err := sharrock.Build(example.Sources(modelstore.NewMemory())...)
	require.NoError(t, err)
	r := sharrock.New(reg, sharrock.WithLogger(slog.New(slog.DiscardHandler)))

	var describes atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/describe/") {
			if describes.Add(1) == 1 {
				close(started)
			}
			<-release
		}
		r.ServeHTTP(w, req)
	}))
	t.Cleanup(srv.Close)

	c := client.New(srv.URL, example.App, example.Version)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Call(first, "helloworld")
		firstErr <- err
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), "helloworld")
		second <- err
	}()

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	require.NoError(t, <-second)
	assert.EqualValues(t, 1, describes.Load())
}

func TestClient_DescribeAndDirectory(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	c := client.New(srv.url+"/", example.App, example.Version)
	ctx := context.Background()

	desc, err := c.Describe(ctx, "HelloWorld")
	require.NoError(t, err)
	assert.Equal(t, "Hello World", desc.ServiceName)
	require.Len(t, desc.Params, 1)
	assert.Equal(t, "name", desc.Params[0].Name)

	_, err = c.Describe(ctx, "nope")
	assert.True(t, client.IsStatus(err, http.StatusNotFound))

	dir, err := c.Directory(ctx)
	require.NoError(t, err)
	require.Len(t, dir.Apps, 1)
	assert.Len(t, dir.Apps[0].Versions[0].Functions, 5)
}

func TestClient_auth(t *testing.T) {
	t.Parallel()

	key := []byte("0123456789abcdef")
	reg, err := sharrock.Build(example.SecureModule(nil, sharrock.NewJWTCheck(key, "whoami")))
	require.NoError(t, err)
	srv := httptest.NewServer(sharrock.New(reg, sharrock.WithLogger(slog.New(slog.DiscardHandler))))
	t.Cleanup(srv.Close)
	ctx := context.Background()

	token, err := sharrock.SignToken(key, "bob", "whoami")
	require.NoError(t, err)

	authed := client.New(srv.URL, example.SecureApp, example.Version, client.WithBearerToken(token))
	res, err := authed.Call(ctx, "tokenwhoami")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user": "bearer"}, res.Value)

	anonymous := client.New(srv.URL, example.SecureApp, example.Version)
	_, err = anonymous.Call(ctx, "tokenwhoami")
	assert.True(t, client.IsStatus(err, http.StatusForbidden))
}
