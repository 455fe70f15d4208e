// Package modelstore provides the data-access collaborators behind
// sharrock model resources.
package modelstore

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/axilent/sharrock"
)

// Memory is an in-process Store. Records created without an "id" member get
// the next integer id; ids are returned as strings.
type Memory struct {
	mu      sync.RWMutex
	next    int
	records map[string]map[string]any
}

var _ sharrock.Store = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]map[string]any)}
}

// List returns every record ordered by id, integers first in numeric order.
func (m *Memory) List(context.Context) ([]map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]map[string]any, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, maps.Clone(r))
	}
	slices.SortFunc(out, func(a, b map[string]any) int {
		return compareIDs(fmt.Sprint(a["id"]), fmt.Sprint(b["id"]))
	})
	return out, nil
}

// Get returns a copy of the record.
func (m *Memory) Get(_ context.Context, id string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok {
		return nil, notFound(id)
	}
	return maps.Clone(r), nil
}

// Create stores a copy of data and returns its id.
func (m *Memory) Create(_ context.Context, data map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := idOf(data)
	if id == "" {
		for {
			m.next++
			id = strconv.Itoa(m.next)
			if _, taken := m.records[id]; !taken {
				break
			}
		}
	} else if _, exists := m.records[id]; exists {
		return "", sharrock.Conflict("record " + id + " already exists")
	}

	r := make(map[string]any, len(data)+1)
	maps.Copy(r, data)
	r["id"] = id
	m.records[id] = r
	return id, nil
}

// Update merges data into the record. The id cannot be changed.
func (m *Memory) Update(_ context.Context, id string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return notFound(id)
	}
	maps.Copy(r, data)
	r["id"] = id
	return nil
}

// Delete removes the record.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return notFound(id)
	}
	delete(m.records, id)
	return nil
}

func idOf(data map[string]any) string {
	switch v := data["id"].(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func notFound(id string) error {
	return fmt.Errorf("%w: record %s", sharrock.ErrNotFound, id)
}

func compareIDs(a, b string) int {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return cmp.Compare(ai, bi)
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}
