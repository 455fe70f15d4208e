package sharrock

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"mime"
	"sort"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Serializer encodes execution results and decodes request bodies for one
// wire format. The format string doubles as the URL extension.
type Serializer interface {
	Format() string
	ContentType() string
	Serialize(v any) ([]byte, error)
	Deserialize(b []byte) (any, error)
}

// JSONSerializer is the default serializer.
type JSONSerializer struct{}

func (JSONSerializer) Format() string      { return "json" }
func (JSONSerializer) ContentType() string { return "application/json" }

// Serialize encodes v as JSON. A nil v yields an empty body.
func (JSONSerializer) Serialize(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Deserialize decodes a JSON body into generic values. An empty body
// yields nil.
func (JSONSerializer) Deserialize(b []byte) (any, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// YAMLSerializer encodes values as YAML documents.
type YAMLSerializer struct{}

func (YAMLSerializer) Format() string      { return "yaml" }
func (YAMLSerializer) ContentType() string { return "application/yaml" }

// Serialize encodes v as YAML. A nil v yields an empty body.
func (YAMLSerializer) Serialize(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return yaml.Marshal(v)
}

// Deserialize decodes a YAML body into generic values. An empty body
// yields nil.
func (YAMLSerializer) Deserialize(b []byte) (any, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	var v any
	if err := yaml.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// MsgpackSerializer encodes values as MessagePack.
type MsgpackSerializer struct{}

func (MsgpackSerializer) Format() string      { return "msgpack" }
func (MsgpackSerializer) ContentType() string { return "application/msgpack" }

// Serialize encodes v as MessagePack. A nil v yields an empty body.
func (MsgpackSerializer) Serialize(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return msgpack.Marshal(v)
}

// Deserialize decodes a MessagePack body into generic values. An empty body
// yields nil.
func (MsgpackSerializer) Deserialize(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var v any
	if err := msgpack.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// XMLSerializer encodes generic values (maps, slices, scalars) as an element
// tree rooted at <response>. Mapping keys become child elements and sequence
// members become <item> elements. Structs are marshaled with encoding/xml.
type XMLSerializer struct{}

func (XMLSerializer) Format() string      { return "xml" }
func (XMLSerializer) ContentType() string { return "application/xml" }

// Serialize encodes v as XML. A nil v yields an empty body.
func (XMLSerializer) Serialize(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	switch v.(type) {
	case map[string]any, []any, string, bool, int, int64, float64, json.Number:
	default:
		if _, ok := toDict(v); !ok {
			if _, ok := toList(v); !ok {
				b, err := xml.Marshal(v)
				if err != nil {
					return nil, err
				}
				buf.Write(b)
				return buf.Bytes(), nil
			}
		}
	}

	enc := xml.NewEncoder(&buf)
	if err := encodeXMLValue(enc, "response", v); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeXMLValue(enc *xml.Encoder, name string, v any) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if !validXMLName(name) {
		start = xml.StartElement{
			Name: xml.Name{Local: "entry"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "key"}, Value: name}},
		}
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}

	if m, ok := toDict(v); ok && v != nil {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := encodeXMLValue(enc, k, m[k]); err != nil {
				return err
			}
		}
	} else if l, ok := toList(v); ok {
		for _, item := range l {
			if err := encodeXMLValue(enc, "item", item); err != nil {
				return err
			}
		}
	} else if v != nil {
		if err := enc.EncodeToken(xml.CharData(toUnicode(v))); err != nil {
			return err
		}
	}

	return enc.EncodeToken(start.End())
}

func validXMLName(s string) bool {
	if s == "" || strings.HasPrefix(strings.ToLower(s), "xml") {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && (r == '-' || r == '.' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}

// Deserialize parses an element tree back into generic values. Leaf elements
// become strings; elements whose children are all <item> become lists.
func (XMLSerializer) Deserialize(b []byte) (any, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}

	dec := xml.NewDecoder(bytes.NewReader(b))
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if _, ok := tok.(xml.StartElement); ok {
			return decodeXMLElement(dec)
		}
	}
}

type xmlChild struct {
	name  string
	value any
}

func decodeXMLElement(dec *xml.Decoder) (any, error) {
	var (
		text     strings.Builder
		children []xmlChild
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			for _, a := range t.Attr {
				if t.Name.Local == "entry" && a.Name.Local == "key" {
					name = a.Value
				}
			}
			v, err := decodeXMLElement(dec)
			if err != nil {
				return nil, err
			}
			children = append(children, xmlChild{name: name, value: v})
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			return foldXMLChildren(text.String(), children), nil
		}
	}
}

func foldXMLChildren(text string, children []xmlChild) any {
	if len(children) == 0 {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return text
	}

	allItems := true
	for _, c := range children {
		if c.name != "item" {
			allItems = false
			break
		}
	}
	if allItems {
		out := make([]any, len(children))
		for i, c := range children {
			out[i] = c.value
		}
		return out
	}

	out := make(map[string]any, len(children))
	for _, c := range children {
		if prev, ok := out[c.name]; ok {
			if l, isList := prev.([]any); isList {
				out[c.name] = append(l, c.value)
			} else {
				out[c.name] = []any{prev, c.value}
			}
			continue
		}
		out[c.name] = c.value
	}
	return out
}

var builtinSerializers = serializerSet{JSONSerializer{}, XMLSerializer{}, YAMLSerializer{}, MsgpackSerializer{}}

// BuiltinSerializer returns the built-in serializer for a format name.
func BuiltinSerializer(format string) (Serializer, error) {
	return builtinSerializers.lookup(format)
}

// serializerSet is an ordered set of serializers keyed by format.
// Index 0 is the default.
type serializerSet []Serializer

func newSerializerSet(ss ...Serializer) serializerSet {
	set := make(serializerSet, 0, len(ss))
	seen := make(map[string]bool, len(ss))
	for _, s := range ss {
		if seen[s.Format()] {
			continue
		}
		seen[s.Format()] = true
		set = append(set, s)
	}
	return set
}

func (set serializerSet) lookup(format string) (Serializer, error) {
	for _, s := range set {
		if s.Format() == format {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func (set serializerSet) formats() []string {
	out := make([]string, len(set))
	for i, s := range set {
		out[i] = s.Format()
	}
	return out
}

// negotiate picks a serializer based on the Accept header value.
// Returns the default for empty or */* accept values and when an explicit
// Accept has no match.
func (set serializerSet) negotiate(accept string) Serializer {
	if accept == "" || len(set) == 0 {
		return set.first()
	}

	var (
		best    Serializer
		quality = -1.0
	)
	for part := range strings.SplitSeq(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}

		q := 1.0
		if qs, ok := params["q"]; ok {
			if parsed, err := strconv.ParseFloat(qs, 64); err == nil {
				q = parsed
			}
		}
		if q <= quality {
			continue
		}

		if mediaType == "*/*" {
			best, quality = set[0], q
			continue
		}
		for _, s := range set {
			if s.ContentType() == mediaType {
				best, quality = s, q
				break
			}
		}
	}

	if best == nil {
		return set.first()
	}
	return best
}

func (set serializerSet) first() Serializer {
	if len(set) == 0 {
		return JSONSerializer{}
	}
	return set[0]
}
