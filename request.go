package sharrock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
)

// maxMultipartMemory is the maximum memory used for multipart form parsing (32 MB).
const maxMultipartMemory = 32 << 20

// Request is what the routing collaborator hands the core: an already
// matched route with its path parameters, query and form data, and the raw
// body. HTTP is the originating request when there is one.
type Request struct {
	Method      string
	PathParams  map[string]string
	Query       url.Values
	Form        url.Values
	Body        []byte
	ContentType string
	Header      http.Header

	HTTP *http.Request
}

// NewRequest reads r into a Request. The body is read once; form-encoded
// and multipart bodies are additionally parsed into Form.
func NewRequest(r *http.Request, pathParams map[string]string) (*Request, error) {
	req := &Request{
		Method:      r.Method,
		PathParams:  pathParams,
		Query:       r.URL.Query(),
		Form:        url.Values{},
		ContentType: r.Header.Get("Content-Type"),
		Header:      r.Header,
		HTTP:        r,
	}

	if r.Body != nil && r.Body != http.NoBody {
		body, err := io.ReadAll(r.Body)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, Errorf(http.StatusRequestEntityTooLarge, "request body exceeds the %d byte limit", tooLarge.Limit)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBindBody, err)
		}
		req.Body = body
	}

	mediaType, _, _ := mime.ParseMediaType(req.ContentType)
	switch mediaType {
	case "application/x-www-form-urlencoded":
		form, err := url.ParseQuery(string(req.Body))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBindForm, err)
		}
		req.Form = form
	case "multipart/form-data":
		r.Body = io.NopCloser(bytes.NewReader(req.Body))
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBindForm, err)
		}
		req.Form = url.Values(r.MultipartForm.Value)
	}

	return req, nil
}

// Context returns the originating request context, or context.Background.
func (r *Request) Context() context.Context {
	if r.HTTP != nil {
		return r.HTTP.Context()
	}
	return context.Background()
}

// PathParam returns a path parameter supplied by the router.
func (r *Request) PathParam(name string) string {
	return r.PathParams[name]
}

// BasicAuth returns the credentials from the Authorization header.
func (r *Request) BasicAuth() (user, pass string, ok bool) {
	return basicAuthFromHeader(r.Header)
}

// isFormBody reports whether the body was the source of Form.
func (r *Request) isFormBody() bool {
	mediaType, _, _ := mime.ParseMediaType(r.ContentType)
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}

// rawParams selects the parameter source for a non data-parsing service:
// query data when present, else form data, else nothing. Sources are never
// merged. List parameters keep every value; others take the last one.
func (r *Request) rawParams(params []Param) map[string]any {
	var src url.Values
	switch {
	case len(r.Query) > 0:
		src = r.Query
	case len(r.Form) > 0:
		src = r.Form
	default:
		return map[string]any{}
	}

	kinds := make(map[string]Kind, len(params))
	for _, p := range params {
		kinds[p.name] = p.kind
	}

	out := make(map[string]any, len(src))
	for name, vals := range src {
		if len(vals) == 0 {
			continue
		}
		if kinds[name] == KindList {
			out[name] = vals
			continue
		}
		out[name] = vals[len(vals)-1]
	}
	return out
}
