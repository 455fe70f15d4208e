package sharrock_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axilent/sharrock"
	"github.com/axilent/sharrock/sharrocktest"
)

func TestMetrics_countsServiceCalls(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := sharrock.NewMetrics(reg)
	c := newExampleServer(t, sharrock.WithMetrics(m))

	sharrocktest.Get[any](t, c, "/sharrock_example/1.0/helloworld.json")
	sharrocktest.Get[any](t, c, "/sharrock_example/1.0/helloworld.json?name=Loren")
	sharrocktest.Get[any](t, c, "/sharrock_example/1.0/parameterizedservice.json")
	sharrocktest.Get[any](t, c, "/describe/sharrock_example/1.0/helloworld.json")

	counter := m.RequestCounter()
	assert.InDelta(t, 2, testutil.ToFloat64(counter.WithLabelValues("sharrock_example", "1.0", "helloworld", "GET", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(counter.WithLabelValues("sharrock_example", "1.0", "parameterizedservice", "GET", "400")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(counter))

	count, err := testutil.GatherAndCount(reg, "sharrock_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := sharrock.NewMetrics(nil)
	r := sharrock.New(exampleRegistry(t), sharrock.WithMetrics(m))
	r.Handle("GET /metrics", m.Handler())
	c := sharrocktest.NewClient(t, r)

	sharrocktest.Get[any](t, c, "/sharrock_resource_example/1.0/partialresource/")

	resp := sharrocktest.Get[any](t, c, "/metrics")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, string(resp.RawBody),
		`sharrock_requests_total{app="sharrock_resource_example",code="200",method="GET",service="partialresource",version="1.0"} 1`)
}

func TestMetrics_unmatchedPathsShareSeries(t *testing.T) {
	t.Parallel()

	m := sharrock.NewMetrics(nil)
	r := sharrock.New(exampleRegistry(t), sharrock.WithMetrics(m))
	serve := func(method, path string) int {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec.Code
	}

	for i := range 50 {
		require.Equal(t, http.StatusNotFound, serve(http.MethodGet, fmt.Sprintf("/x%dy/v%d/s%d.json", i, i, i)))
		require.Equal(t, http.StatusNotFound, serve(http.MethodGet, fmt.Sprintf("/sharrock_example/1.0/helloworld.e%d", i)))
		require.Equal(t, http.StatusMethodNotAllowed, serve(fmt.Sprintf("BREW%d", i), "/sharrock_example/1.0/helloworld.json"))
	}

	counter := m.RequestCounter()
	assert.Equal(t, 2, testutil.CollectAndCount(counter))
	assert.InDelta(t, 100, testutil.ToFloat64(counter.WithLabelValues("", "", "unmatched", "GET", "404")), 0)
	assert.InDelta(t, 50, testutil.ToFloat64(counter.WithLabelValues("sharrock_example", "1.0", "helloworld", "other", "405")), 0)
}
