package sharrock

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// ExecuteFunc is the only behavior a concrete service supplies. data is the
// deserialized request body, independent of the declared params.
type ExecuteFunc func(ctx context.Context, req *Request, data any, params Params) (any, error)

// Descriptor is a single named, versioned, parameter-validated remote
// function. Descriptors are built once and never mutated afterwards; the
// registry binds each one to its version when the registry is built.
type Descriptor struct {
	name        string
	slug        string
	serviceName string
	version     string
	docs        string
	deprecated  string

	params      []Param
	serializers serializerSet
	security    SecurityCheck
	dataParsing bool
	hidden      bool

	execute ExecuteFunc
}

// DescriptorOption configures a Descriptor at definition time.
type DescriptorOption func(*Descriptor)

// WithParams declares the service parameters. Names must be unique.
func WithParams(params ...Param) DescriptorOption {
	return func(d *Descriptor) {
		d.params = append(d.params, params...)
	}
}

// WithSerializers declares the formats the service speaks. The first one is
// the default for requests without an extension.
func WithSerializers(ss ...Serializer) DescriptorOption {
	return func(d *Descriptor) {
		d.serializers = append(d.serializers, ss...)
	}
}

// WithSecurity sets the security check run before every execution.
func WithSecurity(s SecurityCheck) DescriptorOption {
	return func(d *Descriptor) {
		d.security = s
	}
}

// WithVerboseName overrides the human-readable service name.
func WithVerboseName(name string) DescriptorOption {
	return func(d *Descriptor) {
		d.serviceName = name
	}
}

// WithDocs sets the service documentation shown on describe pages.
func WithDocs(docs string) DescriptorOption {
	return func(d *Descriptor) {
		d.docs = docs
	}
}

// WithDataParsing makes the service read its parameters from the
// deserialized body instead of query or form data.
func WithDataParsing() DescriptorOption {
	return func(d *Descriptor) {
		d.dataParsing = true
	}
}

// Hidden keeps the descriptor out of the registry. Resource actions are
// usually hidden.
func Hidden() DescriptorOption {
	return func(d *Descriptor) {
		d.hidden = true
	}
}

// Deprecated marks the service deprecated. Responses carry a Warning header
// with the reason; execution is never blocked.
func Deprecated(reason string) DescriptorOption {
	return func(d *Descriptor) {
		d.deprecated = reason
	}
}

// NewDescriptor defines a service. A nil execute yields a service that
// answers 501 Not Implemented, which is useful for documented stubs.
func NewDescriptor(name string, execute ExecuteFunc, opts ...DescriptorOption) *Descriptor {
	d := &Descriptor{
		name:    name,
		slug:    Slugify(name),
		execute: execute,
	}
	for _, opt := range opts {
		opt(d)
	}

	seen := make(map[string]bool, len(d.params))
	for _, p := range d.params {
		if seen[p.name] {
			panic(fmt.Sprintf("sharrock: descriptor %s declares param %q twice", name, p.name))
		}
		seen[p.name] = true
	}

	if d.serviceName == "" {
		d.serviceName = SpaceOutCamelCase(name)
	}
	if len(d.serializers) == 0 {
		d.serializers = serializerSet{JSONSerializer{}}
	}
	d.serializers = newSerializerSet(d.serializers...)
	if d.security == nil {
		d.security = Public()
	}
	if d.execute == nil {
		d.execute = func(context.Context, *Request, any, Params) (any, error) {
			return nil, Errorf(http.StatusNotImplemented, "%s is not implemented", name)
		}
	}
	return d
}

// Name returns the declared Go-style name, e.g. "HelloWorld".
func (d *Descriptor) Name() string { return d.name }

// Slug returns the URL segment the descriptor is addressed by.
func (d *Descriptor) Slug() string { return d.slug }

// ServiceName returns the verbose name, or the name with words spaced out.
func (d *Descriptor) ServiceName() string { return d.serviceName }

// Version returns the API version the descriptor was registered under.
// It is empty until the registry binds it.
func (d *Descriptor) Version() string { return d.version }

// Docs returns the documentation text.
func (d *Descriptor) Docs() string { return d.docs }

// Deprecated returns the deprecation reason, empty when current.
func (d *Descriptor) Deprecated() string { return d.deprecated }

// Security returns the check run before every execution.
func (d *Descriptor) Security() SecurityCheck { return d.security }

// DataParsing reports whether params are read from the request body.
func (d *Descriptor) DataParsing() bool { return d.dataParsing }

// Visible reports whether the registry exposes the descriptor on its own.
func (d *Descriptor) Visible() bool { return !d.hidden }

// Formats lists the serializer formats, default first.
func (d *Descriptor) Formats() []string { return d.serializers.formats() }

// Params returns a copy of the declared parameters in declaration order.
func (d *Descriptor) Params() []Param {
	out := make([]Param, len(d.params))
	copy(out, d.params)
	return out
}

// bind returns a copy of d for the given API version. A module-level
// deprecation applies unless the descriptor carries its own reason.
func (d *Descriptor) bind(version, deprecated string) *Descriptor {
	bound := *d
	bound.version = version
	if bound.deprecated == "" {
		bound.deprecated = deprecated
	}
	return &bound
}

// Serve runs the request lifecycle: security check, body deserialization,
// parameter extraction and validation, execution, result serialization.
// Each stage short-circuits on failure.
func (d *Descriptor) Serve(req *Request, format string) (*Response, error) {
	result, ser, err := d.run(req, format)
	if err != nil {
		return nil, err
	}

	body, err := ser.Serialize(result)
	if err != nil {
		return nil, fmt.Errorf("serialize %s result as %s: %w", d.name, format, err)
	}

	resp := &Response{
		Status: http.StatusOK,
		Header: http.Header{},
		Body:   body,
	}
	resp.Header.Set("Content-Type", ser.ContentType())
	d.applyDeprecation(resp.Header)
	return resp, nil
}

// run performs every stage except serialization.
func (d *Descriptor) run(req *Request, format string) (any, Serializer, error) {
	if err := d.security.Check(req); err != nil {
		return nil, nil, err
	}

	ser, err := d.serializerFor(req, format)
	if err != nil {
		return nil, nil, err
	}

	var data any
	if !req.isFormBody() {
		data, err = ser.Deserialize(req.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrBindBody, err)
		}
	}

	params, err := d.ProcessParams(d.extractParams(req, data))
	if err != nil {
		return nil, nil, err
	}

	result, err := d.execute(req.Context(), req, data, params)
	if err != nil {
		return nil, nil, err
	}
	return result, ser, nil
}

// serializerFor resolves the format; an empty format is negotiated from the
// Accept header among the service's serializers.
func (d *Descriptor) serializerFor(req *Request, format string) (Serializer, error) {
	if format == "" {
		return d.serializers.negotiate(req.Header.Get("Accept")), nil
	}
	return d.serializers.lookup(format)
}

// extractParams picks the raw parameter source. Data-parsing services read
// the deserialized body; everything else reads query or form data.
func (d *Descriptor) extractParams(req *Request, data any) map[string]any {
	if len(d.params) == 0 {
		return map[string]any{}
	}
	if d.dataParsing {
		if m, ok := toDict(data); ok {
			return m
		}
		return map[string]any{}
	}
	return req.rawParams(d.params)
}

// ProcessParams validates and coerces raw values against every declared
// parameter, stopping at the first failure.
func (d *Descriptor) ProcessParams(raw map[string]any) (Params, error) {
	out := make(Params, len(d.params))
	for _, p := range d.params {
		v, err := p.Lookup(raw)
		if err != nil {
			return nil, err
		}
		out[p.name] = v
	}
	return out, nil
}

func (d *Descriptor) applyDeprecation(h http.Header) {
	if d.deprecated != "" {
		h.Set("Warning", DeprecationPrefix+d.deprecated)
	}
}

// Description is the machine-readable self-description of a descriptor,
// served at /describe/<app>/<version>/<slug>.<ext>.
type Description struct {
	XMLName     xml.Name           `json:"-" xml:"descriptor" yaml:"-" msgpack:"-"`
	ServiceName string             `json:"service_name" xml:"service_name" yaml:"service_name" msgpack:"service_name"`
	Name        string             `json:"name" xml:"name" yaml:"name" msgpack:"name"`
	Slug        string             `json:"slug" xml:"slug" yaml:"slug" msgpack:"slug"`
	Version     string             `json:"version" xml:"version" yaml:"version" msgpack:"version"`
	Deprecated  string             `json:"deprecated,omitempty" xml:"deprecated,omitempty" yaml:"deprecated,omitempty" msgpack:"deprecated,omitempty"`
	Docs        string             `json:"docs,omitempty" xml:"docs,omitempty" yaml:"docs,omitempty" msgpack:"docs,omitempty"`
	Permissions []string           `json:"permissions,omitempty" xml:"permissions>permission,omitempty" yaml:"permissions,omitempty" msgpack:"permissions,omitempty"`
	Formats     []string           `json:"formats" xml:"formats>format" yaml:"formats" msgpack:"formats"`
	DataParsing bool               `json:"data_parsing,omitempty" xml:"data_parsing,omitempty" yaml:"data_parsing,omitempty" msgpack:"data_parsing,omitempty"`
	Params      []ParamDescription `json:"params" xml:"params>param" yaml:"params" msgpack:"params"`
}

// Describe returns the self-description.
func (d *Descriptor) Describe() Description {
	desc := Description{
		ServiceName: d.serviceName,
		Name:        d.name,
		Slug:        d.slug,
		Version:     d.version,
		Deprecated:  d.deprecated,
		Docs:        d.docs,
		Permissions: d.security.Permissions(),
		Formats:     d.Formats(),
		DataParsing: d.dataParsing,
		Params:      make([]ParamDescription, 0, len(d.params)),
	}
	for _, p := range d.params {
		desc.Params = append(desc.Params, p.Describe())
	}
	return desc
}

var (
	camelCasePattern = regexp.MustCompile(`([A-Z][A-Z][a-z])|([a-z][A-Z])`)
	slugStrip        = regexp.MustCompile(`[^\w\s-]`)
	slugHyphenate    = regexp.MustCompile(`[-\s]+`)
)

// SpaceOutCamelCase inserts spaces at camel case boundaries:
// "DMLSServicesOtherBSTextLLC" becomes "DMLS Services Other BS Text LLC".
func SpaceOutCamelCase(s string) string {
	return camelCasePattern.ReplaceAllStringFunc(s, func(m string) string {
		return m[:1] + " " + m[1:]
	})
}

// Slugify lower-cases s, drops characters that are not alphanumerics,
// underscores, hyphens or spaces, and collapses runs of spaces and hyphens
// into a single hyphen.
func Slugify(s string) string {
	s = slugStrip.ReplaceAllString(s, "")
	s = strings.ToLower(strings.TrimSpace(s))
	return slugHyphenate.ReplaceAllString(s, "-")
}
