package domain

import "maps"

// Metadata is the free-form JSON document attached to a recording.
type Metadata map[string]any

// Clone returns a shallow copy that is never nil.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+4)
	maps.Copy(out, m)
	return out
}

// Merge returns a copy of m with every key of other applied on top.
func (m Metadata) Merge(other Metadata) Metadata {
	out := m.Clone()
	maps.Copy(out, other)
	return out
}

// String returns the value stored under key when it is a string.
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}
