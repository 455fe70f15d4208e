package sharrock_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/axilent/sharrock"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg        []sharrock.CORSConfig
		method     string
		header     http.Header
		wantStatus int
		wantHeader map[string]string
		noHeader   []string
	}{
		"default headers on GET": {
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{
				"Access-Control-Allow-Origin":   "*",
				"Access-Control-Allow-Methods":  "GET, POST, PUT, DELETE, OPTIONS",
				"Access-Control-Allow-Headers":  "Content-Type, Authorization, Accept",
				"Access-Control-Expose-Headers": "Warning, X-Request-ID",
				"Vary":                          "Origin",
			},
		},
		"preflight OPTIONS returns 204": {
			method:     http.MethodOptions,
			header:     http.Header{"Access-Control-Request-Method": {"PUT"}},
			wantStatus: http.StatusNoContent,
			wantHeader: map[string]string{
				"Access-Control-Allow-Origin":  "*",
				"Access-Control-Allow-Methods": "GET, POST, PUT, DELETE, OPTIONS",
			},
		},
		"plain OPTIONS reaches the handler": {
			method:     http.MethodOptions,
			wantStatus: http.StatusOK,
		},
		"custom config echoes an allowed origin": {
			cfg: []sharrock.CORSConfig{{
				AllowOrigins:  []string{"https://example.com"},
				AllowMethods:  []string{"GET", "POST"},
				AllowHeaders:  []string{"X-Custom"},
				ExposeHeaders: []string{"X-Exposed"},
				MaxAge:        3600,
			}},
			method:     http.MethodGet,
			header:     http.Header{"Origin": {"https://example.com"}},
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{
				"Access-Control-Allow-Origin":   "https://example.com",
				"Access-Control-Allow-Methods":  "GET, POST",
				"Access-Control-Allow-Headers":  "X-Custom",
				"Access-Control-Expose-Headers": "Warning, X-Request-ID, X-Exposed",
				"Access-Control-Max-Age":        "3600",
			},
		},
		"unknown origin gets no CORS headers": {
			cfg: []sharrock.CORSConfig{{
				AllowOrigins: []string{"https://example.com"},
			}},
			method:     http.MethodGet,
			header:     http.Header{"Origin": {"https://evil.example"}},
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{"Vary": "Origin"},
			noHeader:   []string{"Access-Control-Allow-Origin", "Access-Control-Expose-Headers"},
		},
		"credentials echo the origin instead of the wildcard": {
			cfg: []sharrock.CORSConfig{{
				AllowOrigins:     []string{"*"},
				AllowMethods:     []string{"GET"},
				AllowHeaders:     []string{"Content-Type"},
				AllowCredentials: true,
			}},
			method:     http.MethodGet,
			header:     http.Header{"Origin": {"https://app.example"}},
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{
				"Access-Control-Allow-Origin":      "https://app.example",
				"Access-Control-Allow-Credentials": "true",
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			handler := sharrock.CORS(tc.cfg...)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tc.method, "/sharrock_example/1.0/helloworld.json", nil)
			for k, v := range tc.header {
				req.Header[k] = v
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			for header, want := range tc.wantHeader {
				assert.Equal(t, want, rec.Header().Get(header), "header %s", header)
			}
			for _, header := range tc.noHeader {
				assert.Empty(t, rec.Header().Get(header), "header %s should not be set", header)
			}
		})
	}
}
