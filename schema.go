package sharrock

// JSONSchema represents a JSON Schema object (subset for OpenAPI 3.1).
type JSONSchema struct {
	Type        string                `json:"type,omitempty" yaml:"type,omitempty"`
	Format      string                `json:"format,omitempty" yaml:"format,omitempty"`
	Properties  map[string]JSONSchema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Items       *JSONSchema           `json:"items,omitempty" yaml:"items,omitempty"`
	Required    []string              `json:"required,omitempty" yaml:"required,omitempty"`
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any                   `json:"default,omitempty" yaml:"default,omitempty"`
	Ref         string                `json:"$ref,omitempty" yaml:"$ref,omitempty"`

	// AdditionalProperties can be true (any) or a schema.
	AdditionalProperties *JSONSchema `json:"additionalProperties,omitempty" yaml:"additionalProperties,omitempty"`
}

// paramToSchema converts a Param to a JSONSchema. Wildcard lists and
// dictionaries accept any items or properties.
func paramToSchema(p Param) JSONSchema {
	var s JSONSchema
	switch p.kind {
	case KindUnicode:
		s = JSONSchema{Type: "string"}
	case KindInteger:
		s = JSONSchema{Type: "integer", Format: "int64"}
	case KindFloat:
		s = JSONSchema{Type: "number", Format: "double"}
	case KindList:
		s = JSONSchema{Type: "array"}
		if p.item != nil {
			items := paramToSchema(*p.item)
			s.Items = &items
		}
	case KindDict:
		s = paramsToSchema(p.fields)
		if len(p.fields) == 0 {
			s.AdditionalProperties = &JSONSchema{}
		}
	}
	s.Description = p.description
	s.Default = p.def
	return s
}

// paramsToSchema builds an object schema with one property per param.
func paramsToSchema(params []Param) JSONSchema {
	s := JSONSchema{Type: "object"}
	if len(params) == 0 {
		return s
	}
	s.Properties = make(map[string]JSONSchema, len(params))
	for _, p := range params {
		s.Properties[p.name] = paramToSchema(p)
		if p.required {
			s.Required = append(s.Required, p.name)
		}
	}
	return s
}

// errorResponseSchema is the schema of RFC 9457 problem bodies.
func errorResponseSchema() JSONSchema {
	return JSONSchema{
		Type: "object",
		Properties: map[string]JSONSchema{
			"type":   {Type: "string"},
			"title":  {Type: "string"},
			"status": {Type: "integer"},
			"detail": {Type: "string"},
			"errors": {
				Type: "array",
				Items: &JSONSchema{
					Type: "object",
					Properties: map[string]JSONSchema{
						"field":   {Type: "string"},
						"message": {Type: "string"},
						"value":   {},
					},
				},
			},
		},
		Required: []string{"status"},
	}
}
