package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// OrderedMap is a map that iterates in a stable order determined by each
// key's string form, used to keep card iteration order deterministic across
// processes without depending on Go's randomised map order.
type OrderedMap[K comparable, V any] struct {
	data map[K]V
	keys []K
}

// Stringer is the constraint satisfied by keys usable in an OrderedMap.
type Stringer interface {
	String() string
}

// NewOrderedMap returns an empty ordered map.
func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{data: make(map[K]V)}
}

func (m *OrderedMap[K, V]) keyString(k K) string {
	if s, ok := any(k).(Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", k)
}

// Set inserts or updates the value for k, preserving sorted key order.
func (m *OrderedMap[K, V]) Set(k K, v V) {
	if m.data == nil {
		m.data = make(map[K]V)
	}
	if _, exists := m.data[k]; !exists {
		m.keys = append(m.keys, k)
		sort.Slice(m.keys, func(i, j int) bool {
			return m.keyString(m.keys[i]) < m.keyString(m.keys[j])
		})
	}
	m.data[k] = v
}

// Get returns the value for k and whether it was present.
func (m *OrderedMap[K, V]) Get(k K) (V, bool) {
	v, ok := m.data[k]
	return v, ok
}

// Delete removes k, if present.
func (m *OrderedMap[K, V]) Delete(k K) {
	if _, ok := m.data[k]; !ok {
		return
	}
	delete(m.data, k)
	for i, key := range m.keys {
		if key == k {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *OrderedMap[K, V]) Len() int {
	return len(m.keys)
}

// Keys returns the keys in sorted-string order.
func (m *OrderedMap[K, V]) Keys() []K {
	out := make([]K, len(m.keys))
	copy(out, m.keys)
	return out
}

// Values returns the values in key-sorted order.
func (m *OrderedMap[K, V]) Values() []V {
	out := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.data[k])
	}
	return out
}

// Range calls fn for each entry in key-sorted order, stopping early if fn
// returns false.
func (m *OrderedMap[K, V]) Range(fn func(K, V) bool) {
	for _, k := range m.keys {
		if !fn(k, m.data[k]) {
			return
		}
	}
}

// Clone returns a deep-enough copy (keys/values copied, referenced data not).
func (m *OrderedMap[K, V]) Clone() *OrderedMap[K, V] {
	clone := NewOrderedMap[K, V]()
	clone.keys = append([]K(nil), m.keys...)
	clone.data = make(map[K]V, len(m.data))
	for k, v := range m.data {
		clone.data[k] = v
	}
	return clone
}

// MarshalJSON renders the map as a JSON object with keys in sorted order.
func (m *OrderedMap[K, V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(m.keyString(k))
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := json.Marshal(m.data[k])
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// There is deliberately no generic UnmarshalJSON: a caller needs a concrete
// key type to parse the string keys back into K, so consumers decode into
// map[string]V and rebuild the OrderedMap themselves (see
// SpecState.UnmarshalJSON in state.go).
