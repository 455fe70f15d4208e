package sharrock

import "net/http"

// BodyLimit returns middleware that limits the maximum request body size.
// Requests that declare a larger Content-Length are rejected up front;
// streamed bodies fail with 413 when the service reads past the limit.
func BodyLimit(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeErrorResponse(w, Errorf(http.StatusRequestEntityTooLarge,
					"request body of %d bytes exceeds the %d byte limit", r.ContentLength, maxBytes))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
