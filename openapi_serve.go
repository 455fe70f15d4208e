package sharrock

import (
	"fmt"
	"io"
	"net/http"
	"path"
)

// specSerializers are the formats the OpenAPI document is published in,
// independent of the formats services answer in.
var specSerializers = newSerializerSet(JSONSerializer{}, YAMLSerializer{})

// SpecFormats lists the extensions under which SpecHandler serves the
// OpenAPI document, default first.
func SpecFormats() []string { return specSerializers.formats() }

// SpecHandler serves the OpenAPI document at /openapi.<format>, encoded by
// the serializer registered for the extension.
func (r *Router) SpecHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, format := splitExt(path.Base(req.URL.Path))
		ser, body, err := r.encodeSpec(format)
		if err != nil {
			r.fail(w, req, Key{}, err)
			return
		}
		w.Header().Set("Content-Type", ser.ContentType())
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck,gosec // best-effort after WriteHeader
		w.Write(body)
	})
}

// WriteSpec writes the OpenAPI document to w in one of SpecFormats.
func (r *Router) WriteSpec(w io.Writer, format string) error {
	_, body, err := r.encodeSpec(format)
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func (r *Router) encodeSpec(format string) (Serializer, []byte, error) {
	ser, err := specSerializers.lookup(format)
	if err != nil {
		return nil, nil, err
	}
	body, err := ser.Serialize(r.Spec())
	if err != nil {
		return nil, nil, fmt.Errorf("encode openapi document as %s: %w", format, err)
	}
	return ser, body, nil
}
