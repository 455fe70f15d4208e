package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/axilent/sharrock"
)

// ResourceHandle is the client-side mirror of a resource: one validator per
// implemented verb.
type ResourceHandle struct {
	Slug        string
	URL         string
	Description sharrock.ResourceDescription
	Actions     map[string]*ServiceHandle
}

// methods returns the implemented verbs in upper case.
func (h *ResourceHandle) methods() []string {
	out := make([]string, 0, len(h.Actions))
	for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		if _, ok := h.Actions[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// ResourceClient calls the verbs of one resource.
type ResourceClient struct {
	client *Client
	slug   string
}

// Resource returns a client for the named resource. Nothing is fetched until
// the first call.
func (c *Client) Resource(name string) *ResourceClient {
	return &ResourceClient{client: c, slug: sharrock.Slugify(name)}
}

// Get calls the GET action.
func (r *ResourceClient) Get(ctx context.Context, opts ...CallOption) (*Result, error) {
	return r.call(ctx, http.MethodGet, "", opts)
}

// Post calls the POST action.
func (r *ResourceClient) Post(ctx context.Context, opts ...CallOption) (*Result, error) {
	return r.call(ctx, http.MethodPost, "", opts)
}

// Put calls the PUT action.
func (r *ResourceClient) Put(ctx context.Context, opts ...CallOption) (*Result, error) {
	return r.call(ctx, http.MethodPut, "", opts)
}

// Delete calls the DELETE action.
func (r *ResourceClient) Delete(ctx context.Context, opts ...CallOption) (*Result, error) {
	return r.call(ctx, http.MethodDelete, "", opts)
}

// Describe returns the self-description of the resource.
func (r *ResourceClient) Describe(ctx context.Context) (sharrock.ResourceDescription, error) {
	h, err := r.client.resource(ctx, r.slug, false)
	if err != nil {
		return sharrock.ResourceDescription{}, err
	}
	return h.Description, nil
}

// call runs verb against the resource, or against one record when id is set.
// A verb the resource does not implement fails locally with
// *sharrock.MethodNotAllowedError unless local checks are skipped.
func (r *ResourceClient) call(ctx context.Context, method, id string, opts []CallOption) (*Result, error) {
	cfg := newCallConfig(opts)
	cfg.method = method

	h, err := r.client.resource(ctx, r.slug, cfg.force)
	if err != nil {
		return nil, err
	}

	target := h.URL
	if id != "" {
		target = h.URL + url.PathEscape(id) + ".json"
	}

	if !cfg.skipChecks {
		action, ok := h.Actions[method]
		if !ok {
			return nil, &sharrock.MethodNotAllowedError{Method: method, Allowed: h.methods()}
		}
		if err := action.Validator.checkCall(action.Description.DataParsing, cfg); err != nil {
			return nil, err
		}
	}
	return r.client.do(ctx, method, target, cfg)
}

// resource returns the cached handle for slug, fetching it when absent or
// forced.
func (c *Client) resource(ctx context.Context, slug string, force bool) (*ResourceHandle, error) {
	if !force {
		if h, ok := c.resources.Get(slug); ok {
			return h, nil
		}
	}

	v, err := c.coalesce(ctx, "resource:"+slug, func(fetchCtx context.Context) (any, error) {
		if !force {
			if h, ok := c.resources.Get(slug); ok {
				return h, nil
			}
		}
		var desc sharrock.ResourceDescription
		if err := c.getJSON(fetchCtx, c.describeURL(slug), &desc); err != nil {
			return nil, err
		}

		h := &ResourceHandle{
			Slug:        slug,
			URL:         fmt.Sprintf("%s/%s/%s/%s/", c.serviceURL, url.PathEscape(c.app), url.PathEscape(c.version), url.PathEscape(slug)),
			Description: desc,
			Actions:     make(map[string]*ServiceHandle, len(desc.Actions)),
		}
		for verb, ad := range desc.Actions {
			validator, err := NewParamValidator(ad.Params)
			if err != nil {
				return nil, fmt.Errorf("resource %s %s: %w", slug, verb, err)
			}
			h.Actions[strings.ToUpper(verb)] = &ServiceHandle{
				Slug:        ad.Slug,
				URL:         h.URL,
				Description: ad,
				Validator:   validator,
			}
		}
		c.resources.Set(slug, h)
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ResourceHandle), nil
}

// ModelResourceClient calls a model resource: a resource whose actions
// list, fetch, create, update and delete records.
type ModelResourceClient struct {
	*ResourceClient
}

// ModelResource returns a client for the named model resource.
func (c *Client) ModelResource(name string) *ModelResourceClient {
	return &ModelResourceClient{ResourceClient: c.Resource(name)}
}

// List returns every record.
func (m *ModelResourceClient) List(ctx context.Context) ([]map[string]any, error) {
	res, err := m.call(ctx, http.MethodGet, "", nil)
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	err = res.Decode(&records)
	return records, err
}

// Fetch returns the record with the given id.
func (m *ModelResourceClient) Fetch(ctx context.Context, id string) (map[string]any, error) {
	res, err := m.call(ctx, http.MethodGet, id, nil)
	if err != nil {
		return nil, err
	}
	var record map[string]any
	err = res.Decode(&record)
	return record, err
}

// Create stores data as a new record and returns its id.
func (m *ModelResourceClient) Create(ctx context.Context, data map[string]any) (string, error) {
	res, err := m.call(ctx, http.MethodPost, "", []CallOption{WithData(data)})
	if err != nil {
		return "", err
	}
	var created struct {
		ID string `json:"id"`
	}
	err = res.Decode(&created)
	return created.ID, err
}

// Update merges data into the record with the given id.
func (m *ModelResourceClient) Update(ctx context.Context, id string, data map[string]any) error {
	_, err := m.call(ctx, http.MethodPut, id, []CallOption{WithData(data)})
	return err
}

// Remove deletes the record with the given id.
func (m *ModelResourceClient) Remove(ctx context.Context, id string) error {
	_, err := m.call(ctx, http.MethodDelete, id, nil)
	return err
}
