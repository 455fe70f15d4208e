package sharrock

import (
	"context"
	"fmt"
)

// Store is the data-access collaborator behind a model resource. Records are
// plain mappings. Implementations return errors wrapping ErrNotFound for
// unknown ids and ErrConflict for duplicate creates.
type Store interface {
	List(ctx context.Context) ([]map[string]any, error)
	Get(ctx context.Context, id string) (map[string]any, error)
	Create(ctx context.Context, data map[string]any) (string, error)
	Update(ctx context.Context, id string, data map[string]any) error
	Delete(ctx context.Context, id string) error
}

// IDParam is the path or query parameter naming the record.
const IDParam = "id"

// NewModelResource returns a resource whose four actions pass through to
// store. GET lists records, or fetches one when an id is given; POST creates
// from the body and answers {"id": pk}; PUT updates and DELETE removes the
// identified record, both answering "OK".
func NewModelResource(name string, store Store, opts ...ResourceOption) *Resource {
	m := &modelActions{store: store}
	idParam := UnicodeParam(IDParam, Describe("Primary key of the record."))

	actions := []ResourceOption{
		OnGet(NewDescriptor(name+"Get", m.get, Hidden(), WithParams(idParam),
			WithDocs("Retrieves or lists the model."))),
		OnPost(NewDescriptor(name+"Post", m.create, Hidden(),
			WithDocs("Creates the model."))),
		OnPut(NewDescriptor(name+"Put", m.update, Hidden(), WithParams(idParam),
			WithDocs("Updates the model."))),
		OnDelete(NewDescriptor(name+"Delete", m.remove, Hidden(), WithParams(idParam),
			WithDocs("Deletes the model."))),
	}
	return NewResource(name, append(actions, opts...)...)
}

type modelActions struct {
	store Store
}

func recordID(req *Request, params Params) string {
	if id := req.PathParam(IDParam); id != "" {
		return id
	}
	return params.String(IDParam)
}

func recordData(data any) (map[string]any, error) {
	m, ok := toDict(data)
	if !ok || data == nil {
		return nil, fmt.Errorf("%w: body must be a mapping", ErrBindBody)
	}
	return m, nil
}

func (m *modelActions) get(ctx context.Context, req *Request, _ any, params Params) (any, error) {
	id := recordID(req, params)
	if id == "" {
		records, err := m.store.List(ctx)
		if err != nil {
			return nil, err
		}
		if records == nil {
			records = []map[string]any{}
		}
		return records, nil
	}
	return m.store.Get(ctx, id)
}

func (m *modelActions) create(ctx context.Context, _ *Request, data any, _ Params) (any, error) {
	record, err := recordData(data)
	if err != nil {
		return nil, err
	}
	id, err := m.store.Create(ctx, record)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id}, nil
}

func (m *modelActions) update(ctx context.Context, req *Request, data any, params Params) (any, error) {
	id := recordID(req, params)
	if id == "" {
		return nil, &MissingParamError{Name: IDParam}
	}
	record, err := recordData(data)
	if err != nil {
		return nil, err
	}
	if err := m.store.Update(ctx, id, record); err != nil {
		return nil, err
	}
	return "OK", nil
}

func (m *modelActions) remove(ctx context.Context, req *Request, _ any, params Params) (any, error) {
	id := recordID(req, params)
	if id == "" {
		return nil, &MissingParamError{Name: IDParam}
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return nil, err
	}
	return "OK", nil
}
