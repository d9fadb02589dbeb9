package data

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/marketdb/internal/query"
	"github.com/roach88/marketdb/internal/record"
	"github.com/roach88/marketdb/internal/schema"
)

// ByID is the filter for a record with the given id.
func ByID(id string) query.Expr {
	return query.Eq("id", id)
}

// ByKey builds the filter selecting a record by its key values, given in
// key field order. It panics if the number of values does not match the key.
//
//	data.ByKey(tokens.Spec(), "a@b.c", "tok")  // identifier = ... AND token = ...
func ByKey(m schema.Model, values ...any) query.Expr {
	if len(values) != len(m.Key) {
		panic(fmt.Sprintf("data.ByKey: model %s has %d key fields, got %d values", m.Name, len(m.Key), len(values)))
	}
	if len(values) == 1 {
		return query.Eq(m.Key[0], values[0])
	}
	exprs := make([]query.Expr, len(values))
	for i, v := range values {
		exprs[i] = query.Eq(m.Key[i], v)
	}
	return query.AllOf(exprs...)
}

// KeyValues returns a stored record's key values in key field order. Every
// key field must hold a string or a number.
func KeyValues(m schema.Model, r record.Record) ([]any, error) {
	values := make([]any, len(m.Key))
	for i, field := range m.Key {
		switch v := r[field].(type) {
		case string:
			if v == "" {
				return nil, fmt.Errorf("%w: %s", ErrMissingKey, field)
			}
			values[i] = v
		case float64:
			values[i] = v
		default:
			return nil, fmt.Errorf("%w: %s", ErrMissingKey, field)
		}
	}
	return values, nil
}

// KeyString encodes a stored record's key as a JSON array, e.g.
// ["a@b.c","tok"]. Equal keys encode to equal strings.
func KeyString(m schema.Model, r record.Record) (string, error) {
	values, err := KeyValues(m, r)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode key: %w", err)
	}
	return string(b), nil
}

// KeyFilter selects the stored record r by its key.
func KeyFilter(m schema.Model, r record.Record) (query.Expr, error) {
	values, err := KeyValues(m, r)
	if err != nil {
		return nil, err
	}
	return ByKey(m, values...), nil
}

// ParseOptions returns the query.FromMap options for m, registering its
// compound key name when the key has several fields.
func ParseOptions(m schema.Model) []query.ParseOption {
	if !m.HasCompositeKey() {
		return nil
	}
	return []query.ParseOption{query.WithCompoundKey(m.CompoundKeyName(), m.Key)}
}
