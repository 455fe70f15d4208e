package sharrock

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// DeprecationPrefix starts the Warning header value of deprecated services.
const DeprecationPrefix = "METHOD DEPRECATED: "

// Response is a serialized service result ready to be written.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// write copies the response onto w. Its headers replace any value already
// set under the same name.
func (resp *Response) write(w http.ResponseWriter) {
	for k, vals := range resp.Header {
		w.Header()[k] = append([]string(nil), vals...)
	}
	w.WriteHeader(resp.Status)
	if len(resp.Body) > 0 {
		//nolint:errcheck,gosec // best-effort after WriteHeader
		w.Write(resp.Body)
	}
}

// writeErrorResponse writes an error as an RFC 9457 problem details response.
func writeErrorResponse(w http.ResponseWriter, err error) {
	problem := problemFor(err)

	var mna *MethodNotAllowedError
	if errors.As(err, &mna) {
		w.Header().Set("Allow", strings.Join(mna.Allowed, ", "))
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
	json.NewEncoder(w).Encode(problem)
}
