package sharrock

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// DefaultVersion is the API version of modules that declare none.
const DefaultVersion = "0.1dev"

// FrameworkApp is the framework's own application label. Sources using it
// are never registered.
const FrameworkApp = "sharrock"

// Service is a registered Descriptor or Resource.
type Service interface {
	Name() string
	Slug() string
	Version() string
	Docs() string
	Deprecated() string
	Serve(req *Request, format string) (*Response, error)
}

// Source supplies service definitions to a Registry.
type Source interface {
	Modules() []Module
}

// Module is one API version of one application: the single-module
// declaration style. A deprecated module deprecates everything it contains.
type Module struct {
	App         string
	Version     string
	Deprecated  string
	Descriptors []*Descriptor
	Resources   []*Resource
}

// Modules implements Source.
func (m Module) Modules() []Module { return []Module{m} }

// Package is the multi-version declaration style: each module contributes
// one API version of the same application.
type Package struct {
	App      string
	Versions []Module
}

// Modules implements Source. Modules without an App inherit the package's.
func (p Package) Modules() []Module {
	out := make([]Module, len(p.Versions))
	for i, m := range p.Versions {
		if m.App == "" {
			m.App = p.App
		}
		out[i] = m
	}
	return out
}

// Key identifies a registered service.
type Key struct {
	App     string
	Version string
	Slug    string
}

func (k Key) String() string { return k.App + "/" + k.Version + "/" + k.Slug }

// Registry indexes services by (app, version, slug). It is populated once,
// either eagerly by Build or lazily on first query, and is read-only
// afterwards, so concurrent lookups need no locking.
type Registry struct {
	sources []Source

	once     sync.Once
	err      error
	services map[Key]Service
}

// NewRegistry returns a registry that populates itself on first use.
func NewRegistry(sources ...Source) *Registry {
	return &Registry{sources: sources}
}

// Build returns a populated registry, failing on duplicate keys.
func Build(sources ...Source) (*Registry, error) {
	r := NewRegistry(sources...)
	if err := r.Ensure(); err != nil {
		return nil, err
	}
	return r, nil
}

// Ensure populates the registry if it has not been populated yet. Calling it
// again is a no-op returning the first result.
func (r *Registry) Ensure() error {
	r.once.Do(func() {
		r.services, r.err = load(r.sources)
	})
	return r.err
}

func load(sources []Source) (map[Key]Service, error) {
	services := make(map[Key]Service)
	add := func(m Module, svc Service) error {
		key := Key{App: m.App, Version: svc.Version(), Slug: svc.Slug()}
		if _, exists := services[key]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateService, key)
		}
		services[key] = svc
		return nil
	}

	for _, src := range sources {
		for _, m := range src.Modules() {
			if m.App == FrameworkApp {
				continue
			}
			if m.App == "" {
				return nil, fmt.Errorf("sharrock: module with version %q has no app label", m.Version)
			}
			if m.Version == "" {
				m.Version = DefaultVersion
			}

			for _, d := range m.Descriptors {
				if d == nil || !d.Visible() {
					continue
				}
				if err := add(m, d.bind(m.Version, m.Deprecated)); err != nil {
					return nil, err
				}
			}
			for _, res := range m.Resources {
				if res == nil || !res.Visible() {
					continue
				}
				if err := add(m, res.bind(m.Version, m.Deprecated)); err != nil {
					return nil, err
				}
			}
		}
	}
	return services, nil
}

// Lookup returns the service registered under (app, version, slug).
func (r *Registry) Lookup(app, version, slug string) (Service, error) {
	if err := r.Ensure(); err != nil {
		return nil, err
	}
	svc, ok := r.services[Key{App: app, Version: version, Slug: slug}]
	if !ok {
		return nil, fmt.Errorf("%w: service %s/%s/%s", ErrNotFound, app, version, slug)
	}
	return svc, nil
}

// Descriptor returns the descriptor registered under (app, version, slug).
func (r *Registry) Descriptor(app, version, slug string) (*Descriptor, error) {
	svc, err := r.Lookup(app, version, slug)
	if err != nil {
		return nil, err
	}
	d, ok := svc.(*Descriptor)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s/%s is not a descriptor", ErrNotFound, app, version, slug)
	}
	return d, nil
}

// Resource returns the resource registered under (app, version, slug).
func (r *Registry) Resource(app, version, slug string) (*Resource, error) {
	svc, err := r.Lookup(app, version, slug)
	if err != nil {
		return nil, err
	}
	res, ok := svc.(*Resource)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s/%s is not a resource", ErrNotFound, app, version, slug)
	}
	return res, nil
}

// Keys returns every registered key in app, version, slug order.
func (r *Registry) Keys() []Key {
	if err := r.Ensure(); err != nil {
		return nil
	}
	keys := make([]Key, 0, len(r.services))
	for k := range r.services {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Key) int {
		return cmp.Or(cmp.Compare(a.App, b.App), cmp.Compare(a.Version, b.Version), cmp.Compare(a.Slug, b.Slug))
	})
	return keys
}

// Directory groups registered services by app and version.
type Directory struct {
	Apps []AppListing `json:"apps" xml:"app" yaml:"apps" msgpack:"apps"`
}

// AppListing is one application in a Directory.
type AppListing struct {
	App      string           `json:"app" xml:"name,attr" yaml:"app" msgpack:"app"`
	Versions []VersionListing `json:"versions" xml:"version" yaml:"versions" msgpack:"versions"`
}

// VersionListing is one API version of an application in a Directory.
type VersionListing struct {
	Version   string                `json:"version" xml:"name,attr" yaml:"version" msgpack:"version"`
	Functions []Description         `json:"functions" xml:"functions>descriptor" yaml:"functions" msgpack:"functions"`
	Resources []ResourceDescription `json:"resources" xml:"resources>resource" yaml:"resources" msgpack:"resources"`
}

// Directory lists registered services grouped app -> version ->
// {resources, functions}. Empty filters match everything. The output is
// deterministic for a given registry.
func (r *Registry) Directory(app, version string) Directory {
	var dir Directory
	for _, k := range r.Keys() {
		if (app != "" && k.App != app) || (version != "" && k.Version != version) {
			continue
		}

		if n := len(dir.Apps); n == 0 || dir.Apps[n-1].App != k.App {
			dir.Apps = append(dir.Apps, AppListing{App: k.App})
		}
		al := &dir.Apps[len(dir.Apps)-1]
		if n := len(al.Versions); n == 0 || al.Versions[n-1].Version != k.Version {
			al.Versions = append(al.Versions, VersionListing{
				Version:   k.Version,
				Functions: []Description{},
				Resources: []ResourceDescription{},
			})
		}
		vl := &al.Versions[len(al.Versions)-1]

		switch svc := r.services[k].(type) {
		case *Descriptor:
			vl.Functions = append(vl.Functions, svc.Describe())
		case *Resource:
			vl.Resources = append(vl.Resources, svc.Describe())
		}
	}
	return dir
}
