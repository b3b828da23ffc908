package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process DocumentStore. It is used by the development
// driver and by tests, which can switch off ordered-query support and inject
// per-operation failures.
type Memory struct {
	mu              sync.RWMutex
	now             func() time.Time
	cols            map[string]*memCollection
	indexesDisabled bool
	failures        map[string]error
	writes          int
}

type memCollection struct {
	order []string
	docs  map[string]map[string]any
}

func NewMemory() *Memory {
	return &Memory{
		now:      time.Now,
		cols:     make(map[string]*memCollection),
		failures: make(map[string]error),
	}
}

// SetClock replaces the clock used for ServerTimestamp fields.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// DisableIndexes makes every ordered Find fail with ErrIndexUnavailable.
func (m *Memory) DisableIndexes(disabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexesDisabled = disabled
}

// FailOn makes op ("add", "set", "get", "update", "delete", "find") fail with
// err on collection. An empty collection matches all collections. A nil err
// clears the failure.
func (m *Memory) FailOn(op, collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := op + "|" + collection
	if err == nil {
		delete(m.failures, key)
		return
	}
	m.failures[key] = err
}

// Writes reports how many mutating operations succeeded.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("add", collection); err != nil {
		return "", err
	}

	id := newDocID()
	col := m.collection(collection)
	col.docs[id] = m.resolve(data)
	col.order = append(col.order, id)
	m.writes++
	return id, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("set", collection); err != nil {
		return err
	}

	col := m.collection(collection)
	existing, ok := col.docs[id]
	if !ok {
		col.order = append(col.order, id)
	}
	if merge && ok {
		mergeInto(existing, m.resolve(data))
	} else {
		col.docs[id] = m.resolve(data)
	}
	m.writes++
	return nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("get", collection); err != nil {
		return nil, err
	}

	col, ok := m.cols[collection]
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := col.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Data: copyMap(data)}, nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("update", collection); err != nil {
		return err
	}

	col, ok := m.cols[collection]
	if !ok {
		return ErrNotFound
	}
	data, ok := col.docs[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range m.resolve(fields) {
		data[k] = v
	}
	m.writes++
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("delete", collection); err != nil {
		return err
	}

	col, ok := m.cols[collection]
	if !ok {
		return nil
	}
	if _, ok := col.docs[id]; !ok {
		return nil
	}
	delete(col.docs, id)
	for i, oid := range col.order {
		if oid == id {
			col.order = append(col.order[:i], col.order[i+1:]...)
			break
		}
	}
	m.writes++
	return nil
}

// Find returns matches in insertion order unless q.OrderBy is set. Ordered
// results exclude documents missing the order field and break ties by id in
// the same direction.
func (m *Memory) Find(ctx context.Context, q Query) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("find", q.Collection); err != nil {
		return nil, err
	}
	if q.OrderBy != "" && m.indexesDisabled {
		return nil, fmt.Errorf("%w: ordering %s by %s", ErrIndexUnavailable, q.Collection, q.OrderBy)
	}

	col, ok := m.cols[q.Collection]
	if !ok {
		return []Document{}, nil
	}

	out := make([]Document, 0, len(col.order))
	for _, id := range col.order {
		data := col.docs[id]
		if !matches(data, q.Filters) {
			continue
		}
		if q.OrderBy != "" {
			if _, ok := data[q.OrderBy]; !ok {
				continue
			}
		}
		out = append(out, Document{ID: id, Data: copyMap(data)})
	}

	if q.OrderBy != "" {
		SortDocuments(out, q.OrderBy, q.Direction)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// SortDocuments orders docs by field with ties broken by document id, the
// same ordering an indexed query produces.
func SortDocuments(docs []Document, field string, dir Direction) {
	sort.SliceStable(docs, func(i, j int) bool {
		c := CompareValues(docs[i].Data[field], docs[j].Data[field])
		if c == 0 {
			c = strings.Compare(docs[i].ID, docs[j].ID)
		}
		if dir == Desc {
			return c > 0
		}
		return c < 0
	})
}

// CompareValues orders the scalar types the repositories store. Values of
// different or unknown types compare equal.
func CompareValues(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case int:
		if bv, ok := b.(int); ok {
			return compareOrdered(av, bv)
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return compareOrdered(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return compareOrdered(av, bv)
		}
	}
	return 0
}

func compareOrdered[T int | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (m *Memory) collection(name string) *memCollection {
	col, ok := m.cols[name]
	if !ok {
		col = &memCollection{docs: make(map[string]map[string]any)}
		m.cols[name] = col
	}
	return col
}

func (m *Memory) failure(op, collection string) error {
	if err, ok := m.failures[op+"|"+collection]; ok {
		return err
	}
	if err, ok := m.failures[op+"|"]; ok {
		return err
	}
	return nil
}

// resolve copies data, stamping every ServerTimestamp with one clock reading.
func (m *Memory) resolve(data map[string]any) map[string]any {
	return resolveAt(data, m.now().UTC())
}

func resolveAt(data map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch tv := v.(type) {
		case serverTimestamp:
			out[k] = now
		case map[string]any:
			out[k] = resolveAt(tv, now)
		default:
			out[k] = v
		}
	}
	return out
}

func matches(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if data[f.Field] != f.Value {
			return false
		}
	}
	return true
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if sv, ok := v.(map[string]any); ok {
			if dv, ok := dst[k].(map[string]any); ok {
				mergeInto(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
}

func copyMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		if mv, ok := v.(map[string]any); ok {
			out[k] = copyMap(mv)
			continue
		}
		out[k] = v
	}
	return out
}

func newDocID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}
