package sharrock

import (
	"net/http"
	"strconv"
	"strings"
)

// OpenAPISpec is the top-level OpenAPI 3.1 document.
type OpenAPISpec struct {
	OpenAPI    string              `json:"openapi" yaml:"openapi"`
	Info       OpenAPIInfo         `json:"info" yaml:"info"`
	Paths      map[string]PathItem `json:"paths" yaml:"paths"`
	Components *Components         `json:"components,omitempty" yaml:"components,omitempty"`
}

// OpenAPIInfo holds API metadata.
type OpenAPIInfo struct {
	Title   string `json:"title" yaml:"title"`
	Version string `json:"version" yaml:"version"`
}

// Components holds reusable schemas.
type Components struct {
	Schemas map[string]JSONSchema `json:"schemas,omitempty" yaml:"schemas,omitempty"`
}

// PathItem maps HTTP methods to operations.
type PathItem map[string]Operation

// Operation describes a single API operation on a path.
type Operation struct {
	Summary     string        `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string      `json:"tags,omitempty" yaml:"tags,omitempty"`
	OperationID string        `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Parameters  []Parameter   `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *RequestBody  `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   OperationResp `json:"responses" yaml:"responses"`
	Deprecated  bool          `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
}

// Parameter describes a single operation parameter.
type Parameter struct {
	Name        string     `json:"name" yaml:"name"`
	In          string     `json:"in" yaml:"in"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool       `json:"required,omitempty" yaml:"required,omitempty"`
	Schema      JSONSchema `json:"schema" yaml:"schema"`
}

// RequestBody describes the request body.
type RequestBody struct {
	Required bool                `json:"required" yaml:"required"`
	Content  map[string]MediaObj `json:"content" yaml:"content"`
}

// MediaObj is a media type object with an optional schema.
type MediaObj struct {
	Schema *JSONSchema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// OperationResp maps HTTP status codes to response objects.
type OperationResp map[string]ResponseObj

// ResponseObj describes a single response.
type ResponseObj struct {
	Description string              `json:"description" yaml:"description"`
	Content     map[string]MediaObj `json:"content,omitempty" yaml:"content,omitempty"`
}

const errorSchemaName = "ProblemDetail"

// Spec generates the OpenAPI 3.1 document for every registered service.
// Descriptors appear at /<app>/<version>/<slug>.json for GET and POST;
// resources at /<app>/<version>/<slug>/ for each implemented verb.
func (r *Router) Spec() OpenAPISpec {
	spec := OpenAPISpec{
		OpenAPI: "3.1.0",
		Info: OpenAPIInfo{
			Title:   r.title,
			Version: r.version,
		},
		Paths: make(map[string]PathItem),
		Components: &Components{
			Schemas: map[string]JSONSchema{errorSchemaName: errorResponseSchema()},
		},
	}

	for _, k := range r.registry.Keys() {
		svc, err := r.registry.Lookup(k.App, k.Version, k.Slug)
		if err != nil {
			continue
		}
		tags := []string{k.App + " " + k.Version}

		switch s := svc.(type) {
		case *Descriptor:
			path := "/" + k.App + "/" + k.Version + "/" + k.Slug + ".json"
			spec.Paths[path] = PathItem{
				"get":  buildOperation(s, http.MethodGet, http.StatusOK, tags, k),
				"post": buildOperation(s, http.MethodPost, http.StatusOK, tags, k),
			}
		case *Resource:
			path := "/" + k.App + "/" + k.Version + "/" + k.Slug + "/"
			item := make(PathItem)
			for _, m := range s.Methods() {
				action, _ := s.Action(m)
				item[strings.ToLower(m)] = buildOperation(action, m, ResponseCodes[m], tags, k)
			}
			spec.Paths[path] = item
		}
	}

	return spec
}

// buildOperation creates an Operation from a descriptor. Data-parsing
// services take their params as a JSON body; the rest take query
// parameters on GET and form fields otherwise.
func buildOperation(d *Descriptor, method string, status int, tags []string, k Key) Operation {
	op := Operation{
		Summary:     d.serviceName,
		Description: d.docs,
		Tags:        tags,
		OperationID: generateOperationID(k, method),
		Deprecated:  d.deprecated != "",
		Responses:   make(OperationResp),
	}

	switch {
	case d.dataParsing:
		schema := paramsToSchema(d.params)
		op.RequestBody = &RequestBody{
			Required: len(schema.Required) > 0,
			Content:  map[string]MediaObj{"application/json": {Schema: &schema}},
		}
	case method == http.MethodGet || method == http.MethodDelete:
		for _, p := range d.params {
			op.Parameters = append(op.Parameters, Parameter{
				Name:        p.name,
				In:          "query",
				Description: p.description,
				Required:    p.required,
				Schema:      paramToSchema(p),
			})
		}
	case len(d.params) > 0:
		schema := paramsToSchema(d.params)
		op.RequestBody = &RequestBody{
			Required: len(schema.Required) > 0,
			Content: map[string]MediaObj{
				"application/x-www-form-urlencoded": {Schema: &schema},
			},
		}
	}

	content := make(map[string]MediaObj, len(d.serializers))
	for _, s := range d.serializers {
		content[s.ContentType()] = MediaObj{}
	}
	op.Responses[strconv.Itoa(status)] = ResponseObj{
		Description: "Successful response",
		Content:     content,
	}

	errRef := map[string]MediaObj{
		"application/problem+json": {Schema: &JSONSchema{Ref: "#/components/schemas/" + errorSchemaName}},
	}
	for _, code := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound} {
		op.Responses[strconv.Itoa(code)] = ResponseObj{Description: http.StatusText(code), Content: errRef}
	}
	return op
}

// generateOperationID builds "<method><App><Version><Slug>" in camel case.
func generateOperationID(k Key, method string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, part := range []string{k.App, k.Version, k.Slug} {
		for _, word := range strings.FieldsFunc(part, func(r rune) bool {
			return r == '.' || r == '-' || r == '_'
		}) {
			b.WriteString(strings.ToUpper(word[:1]) + word[1:])
		}
	}
	return b.String()
}
