package query

import (
	"errors"
	"fmt"

	"github.com/roach88/marketdb/internal/record"
)

// ErrInvalidExpr is wrapped by every validation failure.
var ErrInvalidExpr = errors.New("invalid filter expression")

// Validate checks that e is well formed: field names are non-empty,
// sub-expressions are non-nil and every value can be serialized.
//
// A nil e is valid and matches everything.
func Validate(e Expr) error {
	_, err := Normalize(e)
	return err
}

// Normalize validates e and returns an equivalent expression in which every
// value is in serialized form and pointer nodes are replaced by values.
// Matching a normalized expression does no per-record conversion work.
func Normalize(e Expr) (Expr, error) {
	if e == nil {
		return nil, nil
	}
	return normalize(e, "$")
}

func normalize(e Expr, path string) (Expr, error) {
	switch ex := e.(type) {
	case nil:
		return nil, invalid(path, "nil expression")
	case FieldEquals:
		return normalizeField(ex, path)
	case *FieldEquals:
		if ex == nil {
			return nil, invalid(path, "nil expression")
		}
		return normalizeField(*ex, path)
	case NestedEquals:
		return normalizeNested(ex, path)
	case *NestedEquals:
		if ex == nil {
			return nil, invalid(path, "nil expression")
		}
		return normalizeNested(*ex, path)
	case And:
		exprs, err := normalizeList(ex.Exprs, path+".AND")
		return And{Exprs: exprs}, err
	case *And:
		if ex == nil {
			return nil, invalid(path, "nil expression")
		}
		exprs, err := normalizeList(ex.Exprs, path+".AND")
		return And{Exprs: exprs}, err
	case Or:
		exprs, err := normalizeList(ex.Exprs, path+".OR")
		return Or{Exprs: exprs}, err
	case *Or:
		if ex == nil {
			return nil, invalid(path, "nil expression")
		}
		exprs, err := normalizeList(ex.Exprs, path+".OR")
		return Or{Exprs: exprs}, err
	}
	return nil, invalid(path, fmt.Sprintf("unknown expression type %T", e))
}

func normalizeField(ex FieldEquals, path string) (Expr, error) {
	if ex.Field == "" {
		return nil, invalid(path, "empty field name")
	}
	v, err := record.Serialize(ex.Value)
	if err != nil {
		return nil, invalid(path+"."+ex.Field, err.Error())
	}
	return FieldEquals{Field: ex.Field, Value: v}, nil
}

func normalizeNested(ex NestedEquals, path string) (Expr, error) {
	if ex.Field == "" {
		return nil, invalid(path, "empty field name")
	}
	if len(ex.Values) == 0 {
		return nil, invalid(path+"."+ex.Field, "nested comparison needs at least one entry")
	}
	values := make(map[string]any, len(ex.Values))
	for k, v := range ex.Values {
		if k == "" {
			return nil, invalid(path+"."+ex.Field, "empty nested field name")
		}
		s, err := record.Serialize(v)
		if err != nil {
			return nil, invalid(path+"."+ex.Field+"."+k, err.Error())
		}
		values[k] = s
	}
	return NestedEquals{Field: ex.Field, Values: values}, nil
}

func normalizeList(exprs []Expr, path string) ([]Expr, error) {
	out := make([]Expr, len(exprs))
	for i, sub := range exprs {
		n, err := normalize(sub, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func invalid(path, msg string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidExpr, path, msg)
}
