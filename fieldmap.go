package normup

import (
	"bytes"
	"encoding/json"
)

// FieldMap is an ordered physical-column -> value mapping.
// Re-setting an existing column keeps its original position.
type FieldMap struct {
	keys   []string
	values map[string]any
}

func NewFieldMap() *FieldMap {
	return &FieldMap{values: map[string]any{}}
}

func (m *FieldMap) Set(column string, value any) {
	if _, ok := m.values[column]; !ok {
		m.keys = append(m.keys, column)
	}
	m.values[column] = value
}

func (m *FieldMap) Get(column string) (any, bool) {
	v, ok := m.values[column]
	return v, ok
}

func (m *FieldMap) Has(column string) bool {
	_, ok := m.values[column]
	return ok
}

func (m *FieldMap) Len() int { return len(m.keys) }

// Keys returns the columns in insertion order
func (m *FieldMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Values returns the values aligned with Keys
func (m *FieldMap) Values() []any {
	out := make([]any, len(m.keys))
	for i, k := range m.keys {
		out[i] = m.values[k]
	}
	return out
}

// Range visits entries in order until fn returns false
func (m *FieldMap) Range(fn func(column string, value any) bool) {
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

func (m *FieldMap) Clone() *FieldMap {
	out := &FieldMap{keys: m.Keys(), values: make(map[string]any, len(m.values))}
	for k, v := range m.values {
		out.values[k] = v
	}
	return out
}

// Map returns an unordered copy
func (m *FieldMap) Map() map[string]any {
	out := make(map[string]any, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// MarshalJSON writes the object with keys in insertion order
func (m *FieldMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
