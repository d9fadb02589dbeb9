package record

import (
	"maps"
	"slices"
)

// Record is a single document in a model collection.
type Record map[string]any

// Patch is a partial record shallow-merged over an existing record by Update.
type Patch map[string]any

// Set wraps a value that should be written as-is. It mirrors the
// { set: value } update form; Serialize replaces it with Value.
type Set struct {
	Value any
}

// Get returns the value of field, or nil if absent.
func (r Record) Get(field string) any {
	if r == nil {
		return nil
	}
	return r[field]
}

// String returns the field as a string. ok is false when the field is
// absent or holds another type.
func (r Record) String(field string) (string, bool) {
	s, ok := r[field].(string)
	return s, ok
}

// ID returns the "id" field, or "" when the record has none.
func (r Record) ID() string {
	s, _ := r.String("id")
	return s
}

// Keys returns the record's field names in sorted order.
func (r Record) Keys() []string {
	keys := slices.Collect(maps.Keys(r))
	slices.Sort(keys)
	return keys
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = cloneValue(elem)
		}
		return out
	case Record:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}

// Merge returns a copy of base with every field of patch written over it.
// The merge is shallow: nested objects in patch replace, not merge.
func Merge(base Record, patch Record) Record {
	out := base.Clone()
	if out == nil {
		out = make(Record, len(patch))
	}
	for k, v := range patch {
		out[k] = cloneValue(v)
	}
	return out
}
