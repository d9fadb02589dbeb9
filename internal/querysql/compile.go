// Package querysql compiles filter expressions to parameterized SQLite SQL
// over the JSON documents held by the relational backend.
//
// The compiled WHERE clause is a superset filter: every record the
// expression matches is selected, but some records it does not match may be
// selected too. Callers re-check rows with query.Match. Clauses SQLite cannot
// evaluate exactly (object and array equality) compile to TRUE.
package querysql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/marketdb/internal/query"
)

const (
	sqlTrue  = "1 = 1"
	sqlFalse = "1 = 0"
)

// SQLCompiler compiles query expressions to parameterized SQL for SQLite.
//
// CRITICAL: All values and JSON paths are parameterized, never interpolated.
// CRITICAL: Every SELECT orders by insertion sequence for deterministic results.
type SQLCompiler struct {
	// Table holds one row per record.
	Table string
	// DataColumn holds the record's JSON document.
	DataColumn string
}

// NewSQLCompiler creates a compiler for the records table.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{
		Table:      "records",
		DataColumn: "data",
	}
}

// Select compiles a query returning the key and document of every candidate
// record of model, in insertion order.
func (c *SQLCompiler) Select(model string, where query.Expr) (string, []any, error) {
	whereSQL, params, err := c.Where(where)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("SELECT rkey, %s FROM %s WHERE model = ? AND (%s) ORDER BY seq ASC",
		c.DataColumn, c.Table, whereSQL)
	return sql, append([]any{model}, params...), nil
}

// Where compiles an expression to a WHERE clause fragment.
// A nil expression compiles to TRUE.
func (c *SQLCompiler) Where(where query.Expr) (string, []any, error) {
	normalized, err := query.Normalize(where)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	if normalized == nil {
		return sqlTrue, nil, nil
	}
	return c.compileExpr(normalized)
}

// compileExpr compiles a normalized expression. Normalize has already
// replaced pointer nodes with values.
func (c *SQLCompiler) compileExpr(e query.Expr) (string, []any, error) {
	switch ex := e.(type) {
	case query.FieldEquals:
		return c.compileEquals(jsonPath(ex.Field), ex.Value)
	case query.NestedEquals:
		return c.compileNested(ex)
	case query.And:
		return c.compileJunction(ex.Exprs, " AND ", sqlTrue)
	case query.Or:
		return c.compileJunction(ex.Exprs, " OR ", sqlFalse)
	default:
		return "", nil, fmt.Errorf("unsupported expression type: %T", e)
	}
}

// compileEquals compiles path = value.
// CRITICAL: Value is NEVER interpolated - always parameterized.
func (c *SQLCompiler) compileEquals(path string, value any) (string, []any, error) {
	if path == "" {
		return sqlTrue, nil, nil
	}
	switch v := value.(type) {
	case nil:
		// json_extract yields SQL NULL for both JSON null and a missing path.
		return fmt.Sprintf("json_extract(%s, ?) IS NULL", c.DataColumn), []any{path}, nil
	case bool:
		want := "false"
		if v {
			want = "true"
		}
		return fmt.Sprintf("json_type(%s, ?) = ?", c.DataColumn), []any{path, want}, nil
	case string:
		return fmt.Sprintf("(json_type(%s, ?) = 'text' AND json_extract(%s, ?) = ?)", c.DataColumn, c.DataColumn),
			[]any{path, path, v}, nil
	case float64:
		return fmt.Sprintf("(json_type(%s, ?) IN ('integer', 'real') AND json_extract(%s, ?) = ?)", c.DataColumn, c.DataColumn),
			[]any{path, path, v}, nil
	default:
		// Objects and arrays: SQLite compares their JSON text, which is
		// sensitive to key order. Leave them to the in-memory re-check.
		return sqlTrue, nil, nil
	}
}

func (c *SQLCompiler) compileNested(ex query.NestedEquals) (string, []any, error) {
	base := jsonPath(ex.Field)
	if base == "" {
		return sqlTrue, nil, nil
	}
	parts := []string{fmt.Sprintf("json_type(%s, ?) = 'object'", c.DataColumn)}
	params := []any{base}

	for _, k := range sortedKeys(ex.Values) {
		seg := quoteSegment(k)
		if seg == "" {
			continue
		}
		sql, p, err := c.compileEquals(base+"."+seg, ex.Values[k])
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}

// compileJunction joins sub-expressions with op. An empty list compiles to
// empty, which is TRUE for AND and FALSE for OR.
func (c *SQLCompiler) compileJunction(exprs []query.Expr, op, empty string) (string, []any, error) {
	if len(exprs) == 0 {
		return empty, nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, sub := range exprs {
		sql, params, err := c.compileExpr(sub)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}
	return "(" + strings.Join(sqlParts, op) + ")", allParams, nil
}

// jsonPath returns the SQLite JSON path for a top-level field, or "" when
// the name cannot be expressed as a quoted path label.
func jsonPath(field string) string {
	seg := quoteSegment(field)
	if seg == "" {
		return ""
	}
	return "$." + seg
}

func quoteSegment(name string) string {
	if name == "" || strings.ContainsAny(name, `"\`) {
		return ""
	}
	return `"` + name + `"`
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
