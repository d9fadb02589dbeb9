package query

// Expr is a filter expression.
//
// This is a sealed interface - only types in this package implement it.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// FieldEquals matches records whose Field equals Value.
//
// A nil Value matches records where the field is null or absent.
type FieldEquals struct {
	Field string
	Value any
}

func (FieldEquals) exprNode() {}

// NestedEquals matches records whose Field holds an object in which every
// entry of Values is present and equal.
//
//	NestedEquals{Field: "address", Values: map[string]any{"city": "Oslo"}}
//
// matches {"address": {"city": "Oslo", "zip": "0150"}}.
type NestedEquals struct {
	Field  string
	Values map[string]any
}

func (NestedEquals) exprNode() {}

// And matches when every sub-expression matches. Empty And always matches.
type And struct {
	Exprs []Expr
}

func (And) exprNode() {}

// Or matches when at least one sub-expression matches. Empty Or never
// matches.
type Or struct {
	Exprs []Expr
}

func (Or) exprNode() {}

// Eq is shorthand for FieldEquals{Field: field, Value: value}.
func Eq(field string, value any) FieldEquals {
	return FieldEquals{Field: field, Value: value}
}

// Nested is shorthand for NestedEquals.
func Nested(field string, values map[string]any) NestedEquals {
	return NestedEquals{Field: field, Values: values}
}

// AllOf is shorthand for And.
func AllOf(exprs ...Expr) And {
	return And{Exprs: exprs}
}

// AnyOf is shorthand for Or.
func AnyOf(exprs ...Expr) Or {
	return Or{Exprs: exprs}
}

// Fields builds an And of FieldEquals from a field->value map, the form
// most key lookups take. Clause order follows sorted field names so that
// the result is deterministic.
func Fields(values map[string]any) And {
	exprs := make([]Expr, 0, len(values))
	for _, k := range sortedKeys(values) {
		exprs = append(exprs, FieldEquals{Field: k, Value: values[k]})
	}
	return And{Exprs: exprs}
}
