package query

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ParseOption configures FromMap.
type ParseOption func(*parseConfig)

type parseConfig struct {
	compound map[string][]string
}

// WithCompoundKey registers name as an alias for a multi-field key, so that
// {name: {f1: v1, f2: v2}} expands to f1 = v1 AND f2 = v2 instead of a
// nested comparison.
func WithCompoundKey(name string, fields []string) ParseOption {
	return func(c *parseConfig) {
		if name == "" || len(fields) == 0 {
			return
		}
		c.compound[name] = slices.Clone(fields)
	}
}

// FromMap parses the object form of a filter. Top-level entries are ANDed.
//
// Recognised forms:
//
//	{"OR": [{...}, {...}]}      any sub-filter matches
//	{"AND": [{...}, {...}]}     every sub-filter matches (a single object is accepted)
//	{"f": {"equals": v}}        f = v
//	{"f": {"k": v, ...}}        nested comparison on object field f
//	{"f": v}                    f = v for scalars, arrays and null
//
// A nil or empty map yields an empty And, which matches every record.
func FromMap(m map[string]any, opts ...ParseOption) (Expr, error) {
	cfg := parseConfig{compound: map[string][]string{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg.parseObject(m, "$")
}

func (c *parseConfig) parseObject(m map[string]any, path string) (And, error) {
	exprs := make([]Expr, 0, len(m))
	for _, k := range sortedKeys(m) {
		e, err := c.parseEntry(k, m[k], path)
		if err != nil {
			return And{}, err
		}
		exprs = append(exprs, e)
	}
	return And{Exprs: exprs}, nil
}

func (c *parseConfig) parseEntry(key string, v any, path string) (Expr, error) {
	switch key {
	case "":
		return nil, invalid(path, "empty field name")
	case "OR":
		subs, err := c.parseList(v, path+".OR", false)
		if err != nil {
			return nil, err
		}
		return Or{Exprs: subs}, nil
	case "AND":
		subs, err := c.parseList(v, path+".AND", true)
		if err != nil {
			return nil, err
		}
		return And{Exprs: subs}, nil
	}

	obj, ok := asObject(v)
	if !ok {
		return FieldEquals{Field: key, Value: v}, nil
	}

	if fields, ok := c.compound[key]; ok {
		return expandCompound(key, fields, obj, path)
	}
	if eq, ok := obj["equals"]; ok {
		if len(obj) > 1 {
			return nil, invalid(path+"."+key, "equals cannot be combined with other keys")
		}
		return FieldEquals{Field: key, Value: eq}, nil
	}
	if len(obj) == 0 {
		return nil, invalid(path+"."+key, "empty object filter")
	}
	return NestedEquals{Field: key, Values: maps.Clone(obj)}, nil
}

func (c *parseConfig) parseList(v any, path string, allowObject bool) ([]Expr, error) {
	if allowObject {
		if obj, ok := asObject(v); ok {
			sub, err := c.parseObject(obj, path)
			if err != nil {
				return nil, err
			}
			return []Expr{sub}, nil
		}
	}

	items, ok := v.([]any)
	if !ok {
		if typed, isTyped := v.([]map[string]any); isTyped {
			items = make([]any, len(typed))
			for i, m := range typed {
				items[i] = m
			}
		} else {
			return nil, invalid(path, fmt.Sprintf("expected a list of filters, got %T", v))
		}
	}

	out := make([]Expr, 0, len(items))
	for i, item := range items {
		obj, ok := asObject(item)
		if !ok {
			return nil, invalid(fmt.Sprintf("%s[%d]", path, i), fmt.Sprintf("expected a filter object, got %T", item))
		}
		sub, err := c.parseObject(obj, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func expandCompound(name string, fields []string, obj map[string]any, path string) (Expr, error) {
	exprs := make([]Expr, 0, len(fields))
	for _, f := range fields {
		v, ok := obj[f]
		if !ok {
			return nil, invalid(path+"."+name, fmt.Sprintf("compound key is missing %q", f))
		}
		exprs = append(exprs, FieldEquals{Field: f, Value: v})
	}
	if len(obj) != len(fields) {
		return nil, invalid(path+"."+name, fmt.Sprintf("compound key takes exactly %s", strings.Join(fields, ", ")))
	}
	return And{Exprs: exprs}, nil
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, elem := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = elem
		}
		return out, true
	}
	return nil, false
}

func sortedKeys(m map[string]any) []string {
	keys := slices.Collect(maps.Keys(m))
	slices.Sort(keys)
	return keys
}

// ParseOrder parses the object form of an ordering: a single {field: dir}
// object or a list of them. Directions are "asc" or "desc", case-insensitive.
// A nil value yields no ordering.
//
// Go maps do not preserve insertion order, so an object naming several fields
// is rejected; use a list to order by more than one field.
func ParseOrder(v any) ([]Order, error) {
	if v == nil {
		return nil, nil
	}
	if obj, ok := asObject(v); ok {
		return parseOrderObject(obj, "orderBy")
	}

	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: orderBy: expected an object or a list, got %T", ErrInvalidOrder, v)
	}
	var out []Order
	for i, item := range items {
		obj, ok := asObject(item)
		if !ok {
			return nil, fmt.Errorf("%w: orderBy[%d]: expected an object, got %T", ErrInvalidOrder, i, item)
		}
		clauses, err := parseOrderObject(obj, fmt.Sprintf("orderBy[%d]", i))
		if err != nil {
			return nil, err
		}
		out = append(out, clauses...)
	}
	return out, nil
}

func parseOrderObject(obj map[string]any, path string) ([]Order, error) {
	if len(obj) == 0 {
		return nil, nil
	}
	if len(obj) > 1 {
		return nil, fmt.Errorf("%w: %s: one field per object, use a list to order by %s",
			ErrInvalidOrder, path, strings.Join(sortedKeys(obj), ", "))
	}
	for field, raw := range obj {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s: direction must be a string, got %T", ErrInvalidOrder, path, field, raw)
		}
		dir, err := ParseDirection(s)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", path, field, err)
		}
		return []Order{{Field: field, Direction: dir}}, nil
	}
	return nil, nil
}
