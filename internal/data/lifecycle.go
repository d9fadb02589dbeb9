package data

import (
	"fmt"

	"github.com/roach88/marketdb/internal/record"
	"github.com/roach88/marketdb/internal/schema"
)

// Lifecycle applies create and update rules to records. It is stateless
// apart from its clock and id generator and is safe for concurrent use when
// they are.
type Lifecycle struct {
	Clock Clock
	IDs   IDGenerator
}

// NewLifecycle returns a Lifecycle using the wall clock and UUIDv7 ids when
// clock or ids are nil.
func NewLifecycle(clock Clock, ids IDGenerator) *Lifecycle {
	if clock == nil {
		clock = SystemClock{}
	}
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return &Lifecycle{Clock: clock, IDs: ids}
}

// PrepareCreate builds the stored form of a new record.
//
// Rules, in order:
//   - the input is deep-serialized and { set: v } wrappers are flattened
//   - schema defaults fill null or absent fields; string defaults also
//     replace empty strings
//   - models with generated ids get one unless the input carries a non-empty id
//   - createdAt is stamped when it is unset and either the model has it or
//     the input names it
//   - updatedAt likewise, and always on models that touch it on every write
//
// Every key field must end up with a string or number value.
func (l *Lifecycle) PrepareCreate(m schema.Model, input map[string]any) (record.Record, error) {
	rec, err := record.SerializeRecord(input)
	if err != nil {
		return nil, err
	}

	for field, def := range m.Defaults {
		if isUnset(rec[field], def) {
			rec[field] = def
		}
	}

	if m.GenerateID {
		if id, _ := rec["id"].(string); id == "" && !isNumber(rec["id"]) {
			rec["id"] = l.IDs.Generate()
		}
	}

	now := record.FormatTime(l.Clock.Now())
	if hasField(m.CreatedAt, rec, "createdAt") && isBlank(rec["createdAt"]) {
		rec["createdAt"] = now
	}
	if hasField(m.UpdatedAt, rec, "updatedAt") && (m.TouchAlways || isBlank(rec["updatedAt"])) {
		rec["updatedAt"] = now
	}

	if _, err := KeyValues(m, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ApplyUpdate returns existing with patch shallow-merged over it. Patch
// entries for key fields must leave the key unchanged. updatedAt is always
// refreshed when the model or the merged record has it, overriding any value
// in patch.
func (l *Lifecycle) ApplyUpdate(m schema.Model, existing record.Record, patch map[string]any) (record.Record, error) {
	p, err := record.SerializeRecord(patch)
	if err != nil {
		return nil, err
	}

	for _, field := range m.Key {
		v, ok := p[field]
		if ok && !record.Equal(v, existing[field]) {
			return nil, fmt.Errorf("%w: %s", ErrImmutableField, field)
		}
	}

	next := record.Merge(existing, p)
	if hasField(m.UpdatedAt, next, "updatedAt") {
		next["updatedAt"] = record.FormatTime(l.Clock.Now())
	}
	return next, nil
}

// hasField reports whether a lifecycle timestamp applies: the model declares
// it or the record already carries the field.
func hasField(declared bool, r record.Record, field string) bool {
	if declared {
		return true
	}
	_, ok := r[field]
	return ok
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func isUnset(v, def any) bool {
	if _, isString := def.(string); isString {
		return isBlank(v)
	}
	return v == nil
}

func isNumber(v any) bool {
	_, ok := v.(float64)
	return ok
}
