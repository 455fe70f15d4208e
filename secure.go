package sharrock

import (
	"net/http"
	"strconv"
)

// SecureConfig configures the Secure headers middleware.
type SecureConfig struct {
	ContentTypeNosniff    bool   // default: true → X-Content-Type-Options: nosniff
	FrameDeny             bool   // default: true → X-Frame-Options: DENY
	HSTSMaxAge            int    // default: 0 (disabled). If >0: Strict-Transport-Security
	ReferrerPolicy        string // default: "strict-origin-when-cross-origin"
	ContentSecurityPolicy string // default: "default-src 'self'", applied to html pages only
}

// Secure returns middleware that sets security response headers.
// With no arguments, it uses sensible defaults.
func Secure(cfg ...SecureConfig) Middleware {
	c := SecureConfig{
		ContentTypeNosniff:    true,
		FrameDeny:             true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'",
	}
	if len(cfg) > 0 {
		c = cfg[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c.ContentTypeNosniff {
				w.Header().Set("X-Content-Type-Options", "nosniff")
			}
			if c.FrameDeny {
				w.Header().Set("X-Frame-Options", "DENY")
			}
			if c.HSTSMaxAge > 0 {
				w.Header().Set("Strict-Transport-Security", "max-age="+strconv.Itoa(c.HSTSMaxAge))
			}
			if c.ReferrerPolicy != "" {
				w.Header().Set("Referrer-Policy", c.ReferrerPolicy)
			}
			if c.ContentSecurityPolicy != "" {
				_, ext := splitExt(r.URL.Path)
				if ext == "html" || r.URL.Path == "/dir/" {
					w.Header().Set("Content-Security-Policy", c.ContentSecurityPolicy)
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
