package sharrock

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
)

// resourceMethods is the fixed verb order used for Allow headers and listings.
var resourceMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}

// ResponseCodes are the success status codes of resource verbs.
var ResponseCodes = map[string]int{
	http.MethodGet:    http.StatusOK,
	http.MethodPost:   http.StatusCreated,
	http.MethodPut:    http.StatusOK,
	http.MethodDelete: http.StatusOK,
}

// ResourceHeaders are the response headers of resource results per format.
// Formats not listed use the serializer content type.
var ResourceHeaders = map[string]http.Header{
	"json": {"Content-Type": {"application/json"}},
	"xml":  {"Content-Type": {"application/xml"}},
}

// Resource bundles up to four descriptors ("actions") into one CRUD-style
// endpoint. A verb without an action answers 405.
type Resource struct {
	name       string
	slug       string
	version    string
	docs       string
	deprecated string
	hidden     bool

	actions map[string]*Descriptor
}

// ResourceOption configures a Resource at definition time.
type ResourceOption func(*Resource)

// OnGet sets the GET action.
func OnGet(d *Descriptor) ResourceOption { return onMethod(http.MethodGet, d) }

// OnPost sets the POST action.
func OnPost(d *Descriptor) ResourceOption { return onMethod(http.MethodPost, d) }

// OnPut sets the PUT action.
func OnPut(d *Descriptor) ResourceOption { return onMethod(http.MethodPut, d) }

// OnDelete sets the DELETE action.
func OnDelete(d *Descriptor) ResourceOption { return onMethod(http.MethodDelete, d) }

func onMethod(method string, d *Descriptor) ResourceOption {
	return func(r *Resource) {
		r.actions[method] = d
	}
}

// WithResourceDocs sets the resource documentation.
func WithResourceDocs(docs string) ResourceOption {
	return func(r *Resource) {
		r.docs = docs
	}
}

// DeprecatedResource marks the resource and all of its actions deprecated.
func DeprecatedResource(reason string) ResourceOption {
	return func(r *Resource) {
		r.deprecated = reason
	}
}

// HiddenResource keeps the resource out of the registry.
func HiddenResource() ResourceOption {
	return func(r *Resource) {
		r.hidden = true
	}
}

// NewResource defines a resource. Deprecation propagates to every action.
func NewResource(name string, opts ...ResourceOption) *Resource {
	r := &Resource{
		name:    name,
		slug:    Slugify(name),
		actions: make(map[string]*Descriptor, len(resourceMethods)),
	}
	for _, opt := range opts {
		opt(r)
	}
	for method, a := range r.actions {
		if a == nil {
			delete(r.actions, method)
			continue
		}
		r.actions[method] = a.bind(a.version, r.deprecated)
	}
	return r
}

// Name returns the declared name.
func (r *Resource) Name() string { return r.name }

// Slug returns the URL segment the resource is addressed by.
func (r *Resource) Slug() string { return r.slug }

// Version returns the API version bound at registration.
func (r *Resource) Version() string { return r.version }

// Docs returns the documentation text.
func (r *Resource) Docs() string { return r.docs }

// Deprecated returns the deprecation reason shared by every action.
func (r *Resource) Deprecated() string { return r.deprecated }

// Visible reports whether the registry exposes the resource.
func (r *Resource) Visible() bool { return !r.hidden }

// Action returns the descriptor serving the HTTP method, if any.
func (r *Resource) Action(method string) (*Descriptor, bool) {
	d, ok := r.actions[strings.ToUpper(method)]
	return d, ok
}

// Methods returns the implemented verbs in GET, POST, PUT, DELETE order.
func (r *Resource) Methods() []string {
	out := make([]string, 0, len(r.actions))
	for _, m := range resourceMethods {
		if _, ok := r.actions[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// bind returns a copy of r and its actions for the given API version.
func (r *Resource) bind(version, deprecated string) *Resource {
	bound := *r
	bound.version = version
	if bound.deprecated == "" {
		bound.deprecated = deprecated
	}
	bound.actions = make(map[string]*Descriptor, len(r.actions))
	for method, a := range r.actions {
		bound.actions[method] = a.bind(version, bound.deprecated)
	}
	return &bound
}

// checkMethod fails with MethodNotAllowedError when no action matches.
func (r *Resource) checkMethod(method string) (*Descriptor, error) {
	action, ok := r.Action(method)
	if !ok {
		return nil, &MethodNotAllowedError{Method: method, Allowed: r.Methods()}
	}
	return action, nil
}

// Serve checks the method, delegates the full descriptor lifecycle to the
// matching action and wraps the result with the verb status code and the
// format headers.
func (r *Resource) Serve(req *Request, format string) (*Response, error) {
	method := strings.ToUpper(req.Method)
	action, err := r.checkMethod(method)
	if err != nil {
		return nil, err
	}

	result, ser, err := action.run(req, format)
	if err != nil {
		return nil, err
	}

	body, err := ser.Serialize(result)
	if err != nil {
		return nil, fmt.Errorf("serialize %s %s result as %s: %w", r.name, method, ser.Format(), err)
	}

	resp := &Response{
		Status: ResponseCodes[method],
		Header: r.responseHeaders(ser),
		Body:   body,
	}
	action.applyDeprecation(resp.Header)
	return resp, nil
}

func (r *Resource) responseHeaders(ser Serializer) http.Header {
	if h, ok := ResourceHeaders[ser.Format()]; ok {
		return h.Clone()
	}
	return http.Header{"Content-Type": {ser.ContentType()}}
}

// ActionDescription pairs a verb with its action description (XML form).
type ActionDescription struct {
	Method      string      `xml:"method,attr"`
	Description Description `xml:"descriptor"`
}

// ResourceDescription is the machine-readable self-description of a
// resource: one descriptor description per implemented verb, keyed by the
// lower-case verb.
type ResourceDescription struct {
	XMLName    xml.Name               `json:"-" xml:"resource" yaml:"-" msgpack:"-"`
	Name       string                 `json:"name" xml:"name" yaml:"name" msgpack:"name"`
	Slug       string                 `json:"slug" xml:"slug" yaml:"slug" msgpack:"slug"`
	Version    string                 `json:"version" xml:"version" yaml:"version" msgpack:"version"`
	Deprecated string                 `json:"deprecated,omitempty" xml:"deprecated,omitempty" yaml:"deprecated,omitempty" msgpack:"deprecated,omitempty"`
	Docs       string                 `json:"docs,omitempty" xml:"docs,omitempty" yaml:"docs,omitempty" msgpack:"docs,omitempty"`
	Actions    map[string]Description `json:"actions" xml:"-" yaml:"actions" msgpack:"actions"`
	ActionList []ActionDescription    `json:"-" xml:"actions>action" yaml:"-" msgpack:"-"`
}

// Describe returns the self-description.
func (r *Resource) Describe() ResourceDescription {
	desc := ResourceDescription{
		Name:       r.name,
		Slug:       r.slug,
		Version:    r.version,
		Deprecated: r.deprecated,
		Docs:       r.docs,
		Actions:    make(map[string]Description, len(r.actions)),
	}
	for _, m := range r.Methods() {
		ad := r.actions[m].Describe()
		desc.Actions[strings.ToLower(m)] = ad
		desc.ActionList = append(desc.ActionList, ActionDescription{Method: m, Description: ad})
	}
	return desc
}
