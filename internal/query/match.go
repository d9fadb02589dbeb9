package query

import (
	"github.com/roach88/marketdb/internal/record"
)

// Match reports whether r satisfies e. r must be in serialized form.
//
// Expression values are serialized on the fly; callers evaluating one
// expression against many records should Normalize it first.
func Match(e Expr, r record.Record) bool {
	switch ex := e.(type) {
	case nil:
		return true
	case FieldEquals:
		return matchField(ex, r)
	case *FieldEquals:
		return ex == nil || matchField(*ex, r)
	case NestedEquals:
		return matchNested(ex, r)
	case *NestedEquals:
		return ex == nil || matchNested(*ex, r)
	case And:
		return matchAll(ex.Exprs, r)
	case *And:
		return ex == nil || matchAll(ex.Exprs, r)
	case Or:
		return matchAny(ex.Exprs, r)
	case *Or:
		return ex != nil && matchAny(ex.Exprs, r)
	}
	return false
}

func matchField(ex FieldEquals, r record.Record) bool {
	want, err := record.Serialize(ex.Value)
	if err != nil {
		return false
	}
	return record.Equal(want, r[ex.Field])
}

func matchNested(ex NestedEquals, r record.Record) bool {
	obj, ok := r[ex.Field].(map[string]any)
	if !ok {
		return false
	}
	for k, v := range ex.Values {
		want, err := record.Serialize(v)
		if err != nil {
			return false
		}
		if !record.Equal(want, obj[k]) {
			return false
		}
	}
	return true
}

func matchAll(exprs []Expr, r record.Record) bool {
	for _, sub := range exprs {
		if !Match(sub, r) {
			return false
		}
	}
	return true
}

func matchAny(exprs []Expr, r record.Record) bool {
	for _, sub := range exprs {
		if Match(sub, r) {
			return true
		}
	}
	return false
}

// Filter returns the records matching e, preserving their order.
func Filter(records []record.Record, e Expr) []record.Record {
	out := make([]record.Record, 0, len(records))
	for _, r := range records {
		if Match(e, r) {
			out = append(out, r)
		}
	}
	return out
}
