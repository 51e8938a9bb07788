package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/docmesh/core"
)

// DefaultLimit caps query results when the query does not.
const DefaultLimit = 25

var _ core.VectorStore = (*Memory)(nil)

// Memory is a process-local VectorStore. NearText is a case-insensitive
// substring match over string properties; Where filters on equality. Records
// are returned in insertion order.
type Memory struct {
	mu      sync.RWMutex
	classes map[string]*memoryClass
}

type memoryClass struct {
	records map[string]core.Record
	order   []string
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{classes: make(map[string]*memoryClass)}
}

// EnsureClass creates class if needed.
func (m *Memory) EnsureClass(_ context.Context, class string) error {
	if class == "" {
		return fmt.Errorf("class name is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.class(class)

	return nil
}

func (m *Memory) class(name string) *memoryClass {
	c, ok := m.classes[name]
	if !ok {
		c = &memoryClass{records: make(map[string]core.Record)}
		m.classes[name] = c
	}
	return c
}

// Create stores rec and returns its id. Classes are created on demand.
func (m *Memory) Create(_ context.Context, class string, rec core.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.class(class)

	id := rec.ID
	if id == "" {
		id = core.NewID()
	}
	if _, exists := c.records[id]; exists {
		return "", fmt.Errorf("object %s already exists in class %s", id, class)
	}

	c.records[id] = core.Record{ID: id, Class: class, Properties: copyProps(rec.Properties)}
	c.order = append(c.order, id)

	return id, nil
}

// Get returns records of class matching q.
func (m *Memory) Get(_ context.Context, class string, q core.Query) ([]core.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.classes[class]
	if !ok {
		return []core.Record{}, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	needle := strings.ToLower(q.NearText)
	out := make([]core.Record, 0)
	for _, id := range c.order {
		rec := c.records[id]
		if !matchesWhere(rec.Properties, q.Where) {
			continue
		}
		if needle != "" && !containsText(rec.Properties, needle) {
			continue
		}

		out = append(out, core.Record{ID: rec.ID, Class: class, Properties: project(rec.Properties, q.Properties)})
		if len(out) == limit {
			break
		}
	}

	return out, nil
}

// Update merges properties into the record.
func (m *Memory) Update(_ context.Context, class, id string, properties map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.classes[class]
	if !ok {
		return fmt.Errorf("object %s: %w", id, core.ErrNotFound)
	}
	rec, ok := c.records[id]
	if !ok {
		return fmt.Errorf("object %s: %w", id, core.ErrNotFound)
	}

	merged := copyProps(rec.Properties)
	for k, v := range properties {
		merged[k] = v
	}
	rec.Properties = merged
	c.records[id] = rec

	return nil
}

// Delete removes the record.
func (m *Memory) Delete(_ context.Context, class, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.classes[class]
	if !ok {
		return fmt.Errorf("object %s: %w", id, core.ErrNotFound)
	}
	if _, ok := c.records[id]; !ok {
		return fmt.Errorf("object %s: %w", id, core.ErrNotFound)
	}

	delete(c.records, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}

	return nil
}

func matchesWhere(props, where map[string]any) bool {
	for k, want := range where {
		got, ok := props[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func containsText(props map[string]any, needle string) bool {
	for _, v := range props {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func project(props map[string]any, names []string) map[string]any {
	if len(names) == 0 {
		return copyProps(props)
	}
	out := make(map[string]any, len(names))
	for _, n := range names {
		if v, ok := props[n]; ok {
			out[n] = v
		}
	}
	return out
}

func copyProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
