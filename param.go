package sharrock

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Kind names the coercion applied to a parameter. The string form is part of
// the self-description contract; clients rebuild validators from it.
type Kind string

const (
	KindUnicode Kind = "Unicode"
	KindInteger Kind = "Integer"
	KindFloat   Kind = "Float"
	KindList    Kind = "List"
	KindDict    Kind = "Dictionary"
)

// Param declares a named, typed, optionally required value. A Param is
// immutable once declared.
type Param struct {
	name        string
	kind        Kind
	required    bool
	def         any
	description string

	// item is the element schema for KindList, fields the per-key schema for
	// KindDict. Both nil means wildcard mode.
	item   *Param
	fields []Param
}

// ParamOption configures a Param at declaration time.
type ParamOption func(*Param)

// Required marks the parameter as mandatory.
func Required() ParamOption {
	return func(p *Param) {
		p.required = true
	}
}

// Default sets the value used when the parameter is absent.
func Default(v any) ParamOption {
	return func(p *Param) {
		p.def = v
	}
}

// Describe sets the human-readable parameter description.
func Describe(desc string) ParamOption {
	return func(p *Param) {
		p.description = desc
	}
}

func newParam(name string, kind Kind, opts []ParamOption) Param {
	p := Param{name: name, kind: kind}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// UnicodeParam declares a string parameter. Coercion never fails.
func UnicodeParam(name string, opts ...ParamOption) Param {
	return newParam(name, KindUnicode, opts)
}

// IntegerParam declares an integer parameter.
func IntegerParam(name string, opts ...ParamOption) Param {
	return newParam(name, KindInteger, opts)
}

// FloatParam declares a floating point parameter.
func FloatParam(name string, opts ...ParamOption) Param {
	return newParam(name, KindFloat, opts)
}

// ListParam declares a list parameter whose elements are coerced by item.
// A nil item accepts any sequence unchecked.
func ListParam(name string, item *Param, opts ...ParamOption) Param {
	p := newParam(name, KindList, opts)
	p.item = item
	return p
}

// DictParam declares a mapping parameter whose declared keys are coerced by
// the given fields. No fields accepts any mapping unchecked.
func DictParam(name string, fields []Param, opts ...ParamOption) Param {
	p := newParam(name, KindDict, opts)
	p.fields = fields
	return p
}

// Name returns the key the parameter is read under.
func (p Param) Name() string { return p.name }

// Kind returns the type tag that selects the coercion.
func (p Param) Kind() Kind { return p.kind }

// IsRequired reports whether an absent value without default is rejected.
func (p Param) IsRequired() bool { return p.required }

// DefaultValue returns the raw default, processed on use. Nil means none.
func (p Param) DefaultValue() any { return p.def }

// Description returns the human-readable help text.
func (p Param) Description() string { return p.description }

// Lookup reads the parameter from a raw mapping. An absent value falls back
// to the default; an absent required value without default is a
// MissingParamError. Otherwise the value is processed.
func (p Param) Lookup(raw map[string]any) (any, error) {
	return p.resolve(raw[p.name])
}

func (p Param) resolve(v any) (any, error) {
	if isAbsent(v) {
		switch {
		case p.def != nil:
			v = p.def
		case p.required:
			return nil, &MissingParamError{Name: p.name}
		default:
			return nil, nil
		}
	}
	return p.Process(v)
}

// Process coerces a raw value according to the parameter kind.
func (p Param) Process(raw any) (any, error) {
	switch p.kind {
	case KindUnicode:
		return toUnicode(raw), nil
	case KindInteger:
		if n, ok := toInteger(raw); ok {
			return n, nil
		}
	case KindFloat:
		if f, ok := toFloat(raw); ok {
			return f, nil
		}
	case KindList:
		return p.processList(raw)
	case KindDict:
		return p.processDict(raw)
	default:
		panic(fmt.Sprintf("sharrock: param %q has unknown kind %q", p.name, p.kind))
	}
	return nil, &BadParamTypeError{Name: p.name, Value: raw, Kind: p.kind}
}

func (p Param) processList(raw any) (any, error) {
	items, ok := toList(raw)
	if !ok {
		return nil, &BadParamTypeError{Name: p.name, Value: raw, Kind: p.kind}
	}
	if p.item == nil {
		return raw, nil
	}

	out := make([]any, len(items))
	for i, v := range items {
		elem := *p.item
		elem.name = fmt.Sprintf("%s[%d]", p.name, i)
		processed, err := elem.resolve(v)
		if err != nil {
			return nil, err
		}
		out[i] = processed
	}
	return out, nil
}

func (p Param) processDict(raw any) (any, error) {
	m, ok := toDict(raw)
	if !ok {
		return nil, &BadParamTypeError{Name: p.name, Value: raw, Kind: p.kind}
	}
	if len(p.fields) == 0 {
		return raw, nil
	}

	out := make(map[string]any, len(p.fields))
	for _, f := range p.fields {
		sub := f
		sub.name = p.name + "." + f.name
		processed, err := sub.resolve(m[f.name])
		if err != nil {
			return nil, err
		}
		out[f.name] = processed
	}
	return out, nil
}

// isAbsent treats nil and the empty string as "not supplied".
func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func toUnicode(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func toInteger(raw any) (int64, bool) {
	switch v := raw.(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInteger(f)
	case float32:
		return floatToInteger(float64(v))
	case float64:
		return floatToInteger(v)
	case bool:
		return 0, false
	}

	rv := reflect.ValueOf(raw)
	//exhaustive:ignore
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	default:
		return 0, false
	}
}

// floatToInteger truncates toward zero. float64(math.MaxInt64) rounds up to
// 2^63, so the upper bound is exclusive.
func floatToInteger(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= 1<<63 || f < -(1<<63) {
		return 0, false
	}
	return int64(f), true
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case bool:
		return 0, false
	}
	if n, ok := toInteger(raw); ok {
		return float64(n), true
	}
	return 0, false
}

func toList(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case string, []byte:
		return nil, false
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range rv.Len() {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toDict(raw any) (map[string]any, bool) {
	if m, ok := raw.(map[string]any); ok {
		return m, true
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// Params holds processed parameter values keyed by parameter name. Every
// declared parameter has an entry; absent optional parameters map to nil.
type Params map[string]any

// Has reports whether the parameter resolved to a non-nil value.
func (p Params) Has(name string) bool {
	return p[name] != nil
}

// String returns a Unicode parameter, or "" when absent.
func (p Params) String(name string) string {
	s, _ := p[name].(string)
	return s
}

// Int returns an Integer parameter, or 0 when absent.
func (p Params) Int(name string) int64 {
	n, _ := p[name].(int64)
	return n
}

// Float returns a Float parameter, or 0 when absent.
func (p Params) Float(name string) float64 {
	f, _ := p[name].(float64)
	return f
}

// List returns a List parameter, or nil when absent.
func (p Params) List(name string) []any {
	l, _ := toList(p[name])
	return l
}

// Dict returns a Dictionary parameter, or nil when absent.
func (p Params) Dict(name string) map[string]any {
	m, _ := toDict(p[name])
	return m
}

// Decode copies the parameters into a struct. Fields are matched by their
// `param` tag, falling back to a case-insensitive field name match.
func (p Params) Decode(target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "param",
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(p))
}

// ParamDescription is the wire form of a Param inside a self-description.
type ParamDescription struct {
	Name        string             `json:"name" xml:"name" yaml:"name" msgpack:"name"`
	Type        Kind               `json:"type" xml:"type" yaml:"type" msgpack:"type"`
	Required    bool               `json:"required" xml:"required" yaml:"required" msgpack:"required"`
	Description string             `json:"description" xml:"description" yaml:"description" msgpack:"description"`
	Default     any                `json:"default,omitempty" xml:"-" yaml:"default,omitempty" msgpack:"default,omitempty"`
	Item        *ParamDescription  `json:"item,omitempty" xml:"item,omitempty" yaml:"item,omitempty" msgpack:"item,omitempty"`
	Fields      []ParamDescription `json:"fields,omitempty" xml:"fields>param,omitempty" yaml:"fields,omitempty" msgpack:"fields,omitempty"`
}

// Describe returns the wire description of the parameter.
func (p Param) Describe() ParamDescription {
	d := ParamDescription{
		Name:        p.name,
		Type:        p.kind,
		Required:    p.required,
		Description: p.description,
		Default:     p.def,
	}
	if p.item != nil {
		item := p.item.Describe()
		d.Item = &item
	}
	for _, f := range p.fields {
		d.Fields = append(d.Fields, f.Describe())
	}
	return d
}

// Param rebuilds a Param from its wire description. It is how a client
// reconstructs the server's validators from a fetched self-description, so
// both sides coerce values with the same code.
func (d ParamDescription) Param() (Param, error) {
	switch d.Type {
	case KindUnicode, KindInteger, KindFloat, KindList, KindDict:
	default:
		return Param{}, fmt.Errorf("param %s: unknown type %q", d.Name, d.Type)
	}

	p := Param{
		name:        d.Name,
		kind:        d.Type,
		required:    d.Required,
		def:         d.Default,
		description: d.Description,
	}
	if d.Item != nil {
		item, err := d.Item.Param()
		if err != nil {
			return Param{}, err
		}
		p.item = &item
	}
	for _, fd := range d.Fields {
		f, err := fd.Param()
		if err != nil {
			return Param{}, err
		}
		p.fields = append(p.fields, f)
	}
	return p, nil
}
