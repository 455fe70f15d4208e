package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strconv"

	"github.com/gorilla/schema"

	"github.com/axilent/sharrock"
)

// ParamValidator is the pre-flight check rebuilt from a self-description.
// It applies the server's own coercion rules but never transforms the
// values that are sent.
type ParamValidator struct {
	params []sharrock.Param
	kinds  map[string]sharrock.Kind
}

// NewParamValidator rebuilds validators from parameter descriptions. An
// unknown type tag is an error.
func NewParamValidator(descs []sharrock.ParamDescription) (*ParamValidator, error) {
	v := &ParamValidator{
		params: make([]sharrock.Param, 0, len(descs)),
		kinds:  make(map[string]sharrock.Kind, len(descs)),
	}
	for _, d := range descs {
		p, err := d.Param()
		if err != nil {
			return nil, err
		}
		v.params = append(v.params, p)
		v.kinds[p.Name()] = p.Kind()
	}
	return v, nil
}

// Params returns the rebuilt parameters in declaration order.
func (v *ParamValidator) Params() []sharrock.Param {
	return v.params
}

// Check fails with *sharrock.MissingParamError or *sharrock.BadParamTypeError
// at the first parameter the server would reject.
func (v *ParamValidator) Check(values map[string]any) error {
	for _, p := range v.params {
		if _, err := p.Lookup(values); err != nil {
			return err
		}
	}
	return nil
}

// checkCall validates what the server will actually read: the JSON body for
// data-parsing services, otherwise the params as they look once encoded
// into a query string or form.
func (v *ParamValidator) checkCall(dataParsing bool, cfg *callConfig) error {
	if dataParsing {
		data, err := asMapping(cfg.data)
		if err != nil {
			return err
		}
		return v.Check(data)
	}
	return v.Check(v.wireParams(encodeParams(cfg.params)))
}

// wireParams mirrors how the server reads url values: list parameters keep
// every value, others the last one.
func (v *ParamValidator) wireParams(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for name, vals := range values {
		if len(vals) == 0 {
			continue
		}
		if v.kinds[name] == sharrock.KindList {
			out[name] = vals
			continue
		}
		out[name] = vals[len(vals)-1]
	}
	return out
}

// asMapping round-trips data through JSON so the check sees what the
// server will decode.
func asMapping(data any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode request data: %w", err)
	}
	var m map[string]any
	if json.Unmarshal(b, &m) != nil || m == nil {
		// Non-object bodies carry no params.
		return map[string]any{}, nil
	}
	return m, nil
}

// encodeParams flattens params into url values. Slices become repeated
// keys; nil values are dropped.
func encodeParams(params map[string]any) url.Values {
	values := make(url.Values, len(params))
	for name, v := range params {
		switch x := v.(type) {
		case nil:
		case string:
			values.Add(name, x)
		case []string:
			values[name] = append(values[name], x...)
		default:
			rv := reflect.ValueOf(v)
			if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
				for i := range rv.Len() {
					values.Add(name, formatValue(rv.Index(i).Interface()))
				}
				continue
			}
			values.Add(name, formatValue(v))
		}
	}
	return values
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}

var structEncoder = func() *schema.Encoder {
	enc := schema.NewEncoder()
	enc.SetAliasTag("param")
	return enc
}()

// StructParams encodes a struct into call params. Fields are named by their
// `param` tag:
//
//	type greeting struct {
//	    Name string `param:"name,omitempty"`
//	}
//	params, err := client.StructParams(greeting{Name: "Loren"})
//	...
//	res, err := c.Call(ctx, "helloworld", client.WithParams(params))
func StructParams(v any) (map[string]any, error) {
	values := url.Values{}
	if err := structEncoder.Encode(v, values); err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	out := make(map[string]any, len(values))
	for name, vals := range values {
		if len(vals) == 1 {
			out[name] = vals[0]
			continue
		}
		out[name] = vals
	}
	return out, nil
}
