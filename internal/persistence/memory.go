package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"sync"
)

// MemoryDocuments keeps documents as JSON in process memory. It backs local runs
// with STORE_BACKEND=memory and the store tests.
type MemoryDocuments struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
	order       map[string][]string
}

// NewMemoryDocuments returns an empty store.
func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{
		collections: make(map[string]map[string][]byte),
		order:       make(map[string][]string),
	}
}

func (m *MemoryDocuments) Get(_ context.Context, collection, key string, out any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.collections[collection][key]
	if !ok {
		return ErrNoDocument
	}
	return json.Unmarshal(raw, out)
}

// FindOne returns the first inserted document whose string field equals value.
func (m *MemoryDocuments) FindOne(_ context.Context, collection, field, value string, out any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	segments := splitPath(field)
	for _, key := range m.order[collection] {
		raw := m.collections[collection][key]
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		found, ok := lookupPath(doc, segments)
		if !ok {
			continue
		}
		if s, isString := found.(string); isString && s == value {
			return json.Unmarshal(raw, out)
		}
	}
	return ErrNoDocument
}

func (m *MemoryDocuments) Insert(_ context.Context, collection, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.collections[collection][key]; exists {
		return ErrDuplicateKey
	}
	m.put(collection, key, raw)
	return nil
}

func (m *MemoryDocuments) Upsert(_ context.Context, collection, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(collection, key, raw)
	return nil
}

func (m *MemoryDocuments) Delete(_ context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.collections[collection][key]; !exists {
		return ErrNoDocument
	}
	delete(m.collections[collection], key)
	keys := m.order[collection]
	for i, k := range keys {
		if k == key {
			m.order[collection] = append(keys[:i:i], keys[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryDocuments) Set(_ context.Context, collection, key, path string, value any) error {
	normalized, err := normalizeValue(value)
	if err != nil {
		return err
	}
	return m.mutate(collection, key, func(doc any) (any, error) {
		return setPath(doc, splitPath(path), normalized)
	})
}

func (m *MemoryDocuments) Unset(_ context.Context, collection, key, path string) error {
	return m.mutate(collection, key, func(doc any) (any, error) {
		return unsetPath(doc, splitPath(path))
	})
}

func (m *MemoryDocuments) Push(_ context.Context, collection, key, path string, value any) error {
	normalized, err := normalizeValue(value)
	if err != nil {
		return err
	}
	segments := splitPath(path)
	return m.mutate(collection, key, func(doc any) (any, error) {
		current, _ := lookupPath(doc, segments)
		list, _ := current.([]any)
		return setPath(doc, segments, append(list, normalized))
	})
}

func (m *MemoryDocuments) Pull(_ context.Context, collection, key, path string, value any) error {
	normalized, err := normalizeValue(value)
	if err != nil {
		return err
	}
	segments := splitPath(path)
	return m.mutate(collection, key, func(doc any) (any, error) {
		current, ok := lookupPath(doc, segments)
		if !ok {
			return doc, nil
		}
		list, _ := current.([]any)
		kept := make([]any, 0, len(list))
		for _, item := range list {
			if !reflect.DeepEqual(item, normalized) {
				kept = append(kept, item)
			}
		}
		return setPath(doc, segments, kept)
	})
}

func (m *MemoryDocuments) Ping(context.Context) error {
	return nil
}

// Keys lists the keys of a collection in insertion order.
func (m *MemoryDocuments) Keys(collection string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order[collection]...)
}

func (m *MemoryDocuments) put(collection, key string, raw []byte) {
	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string][]byte)
	}
	if _, exists := m.collections[collection][key]; !exists {
		m.order[collection] = append(m.order[collection], key)
	}
	m.collections[collection][key] = raw
}

func (m *MemoryDocuments) mutate(collection, key string, fn func(doc any) (any, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.collections[collection][key]
	if !ok {
		return ErrNoDocument
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	updated, err := fn(doc)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(updated)
	if err != nil {
		return err
	}
	m.collections[collection][key] = encoded
	return nil
}

func normalizeValue(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func lookupPath(node any, segments []string) (any, bool) {
	for _, seg := range segments {
		switch typed := node.(type) {
		case map[string]any:
			next, ok := typed[seg]
			if !ok {
				return nil, false
			}
			node = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil, false
			}
			node = typed[idx]
		default:
			return nil, false
		}
	}
	return node, true
}

func setPath(node any, segments []string, value any) (any, error) {
	if len(segments) == 0 {
		return value, nil
	}
	seg, rest := segments[0], segments[1:]
	switch typed := node.(type) {
	case nil:
		child, err := setPath(nil, rest, value)
		if err != nil {
			return nil, err
		}
		return map[string]any{seg: child}, nil
	case map[string]any:
		child, err := setPath(typed[seg], rest, value)
		if err != nil {
			return nil, err
		}
		typed[seg] = child
		return typed, nil
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(typed) {
			return nil, fmt.Errorf("path segment %q out of range", seg)
		}
		child, err := setPath(typed[idx], rest, value)
		if err != nil {
			return nil, err
		}
		typed[idx] = child
		return typed, nil
	default:
		return nil, fmt.Errorf("path segment %q traverses a scalar", seg)
	}
}

func unsetPath(node any, segments []string) (any, error) {
	if len(segments) == 0 {
		return node, nil
	}
	parent, ok := lookupPath(node, segments[:len(segments)-1])
	if !ok {
		return node, nil
	}
	last := segments[len(segments)-1]
	switch typed := parent.(type) {
	case map[string]any:
		delete(typed, last)
	case []any:
		if idx, err := strconv.Atoi(last); err == nil && idx >= 0 && idx < len(typed) {
			typed[idx] = nil
		}
	}
	return node, nil
}
