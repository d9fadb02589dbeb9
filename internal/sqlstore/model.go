package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/marketdb/internal/data"
	"github.com/roach88/marketdb/internal/query"
	"github.com/roach88/marketdb/internal/record"
	"github.com/roach88/marketdb/internal/schema"
)

// Model implements data.Model over one model's rows.
type Model struct {
	store *Store
	spec  schema.Model
}

var _ data.Model = (*Model)(nil)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// row is a matched record with its stored key.
type row struct {
	key string
	rec record.Record
}

// Spec returns the model's schema entry.
func (m *Model) Spec() schema.Model {
	return m.spec
}

func (m *Model) hydrate(r record.Record) record.Record {
	return record.Hydrate(r, m.store.schema.IsTimestampField)
}

// match returns the rows matching where in insertion order. The SQL filter
// selects a superset; each row is re-checked in Go.
func (m *Model) match(ctx context.Context, q queryer, where query.Expr) ([]row, error) {
	normalized, err := query.Normalize(where)
	if err != nil {
		return nil, err
	}
	stmt, params, err := m.store.compiler.Select(m.spec.Name, normalized)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		var key, doc string
		if err := rows.Scan(&key, &doc); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var rec record.Record
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", key, err)
		}
		if query.Match(normalized, rec) {
			out = append(out, row{key: key, rec: rec})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (m *Model) first(ctx context.Context, q queryer, where query.Expr) (*row, error) {
	rows, err := m.match(ctx, q, where)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (m *Model) readCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.store.closed.Load() {
		return data.ErrClosed
	}
	return nil
}

// FindMany returns matching records, ordered then paginated.
func (m *Model) FindMany(ctx context.Context, args data.FindArgs) ([]record.Record, error) {
	if err := m.readCheck(ctx); err != nil {
		return nil, data.Wrap("findMany", m.spec.Name, err)
	}
	rows, err := m.match(ctx, m.store.db, args.Where)
	if err != nil {
		return nil, data.Wrap("findMany", m.spec.Name, err)
	}

	recs := make([]record.Record, len(rows))
	for i, r := range rows {
		recs[i] = r.rec
	}
	query.Sort(recs, args.OrderBy)
	recs = query.Paginate(recs, args.Take)

	out := make([]record.Record, len(recs))
	for i, r := range recs {
		out[i] = m.hydrate(r)
	}
	return out, nil
}

// FindUnique returns the first record matching where, or nil.
func (m *Model) FindUnique(ctx context.Context, where query.Expr) (record.Record, error) {
	if err := m.readCheck(ctx); err != nil {
		return nil, data.Wrap("findUnique", m.spec.Name, err)
	}
	r, err := m.first(ctx, m.store.db, where)
	if err != nil {
		return nil, data.Wrap("findUnique", m.spec.Name, err)
	}
	if r == nil {
		return nil, nil
	}
	return m.hydrate(r.rec), nil
}

// FindFirst returns the first record of the ordered result, or nil.
func (m *Model) FindFirst(ctx context.Context, args data.FindArgs) (record.Record, error) {
	args.Take = query.Limit(1)
	found, err := m.FindMany(ctx, args)
	if err != nil {
		return nil, data.Wrap("findFirst", m.spec.Name, err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// Count returns the number of matching records.
func (m *Model) Count(ctx context.Context, where query.Expr) (int, error) {
	if err := m.readCheck(ctx); err != nil {
		return 0, data.Wrap("count", m.spec.Name, err)
	}
	rows, err := m.match(ctx, m.store.db, where)
	if err != nil {
		return 0, data.Wrap("count", m.spec.Name, err)
	}
	return len(rows), nil
}

// Create inserts a new record.
func (m *Model) Create(ctx context.Context, input map[string]any) (record.Record, error) {
	var out record.Record
	err := m.store.inTx(ctx, "create", m.spec.Name, func(tx *sql.Tx) error {
		rec, err := m.insert(ctx, tx, input)
		if err != nil {
			return err
		}
		out = m.hydrate(rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Model) insert(ctx context.Context, tx *sql.Tx, input map[string]any) (record.Record, error) {
	rec, err := m.store.lifecycle.PrepareCreate(m.spec, input)
	if err != nil {
		return nil, err
	}
	key, err := data.KeyString(m.spec, rec)
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO records (model, rkey, data) VALUES (?, ?, ?)",
		m.spec.Name, key, string(doc))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", data.ErrDuplicateKey, key)
	}
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}
	return rec, nil
}

// Update merges patch into the first matching record.
func (m *Model) Update(ctx context.Context, where query.Expr, patch map[string]any) (record.Record, error) {
	var out record.Record
	err := m.store.inTx(ctx, "update", m.spec.Name, func(tx *sql.Tx) error {
		r, err := m.first(ctx, tx, where)
		if err != nil {
			return err
		}
		if r == nil {
			return data.ErrNotFound
		}
		next, err := m.replace(ctx, tx, *r, patch)
		if err != nil {
			return err
		}
		out = m.hydrate(next)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Model) replace(ctx context.Context, tx *sql.Tx, r row, patch map[string]any) (record.Record, error) {
	next, err := m.store.lifecycle.ApplyUpdate(m.spec, r.rec, patch)
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE records SET data = ? WHERE model = ? AND rkey = ?",
		string(doc), m.spec.Name, r.key); err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}
	return next, nil
}

// Delete removes the first matching record and returns it.
func (m *Model) Delete(ctx context.Context, where query.Expr) (record.Record, error) {
	var out record.Record
	err := m.store.inTx(ctx, "delete", m.spec.Name, func(tx *sql.Tx) error {
		r, err := m.first(ctx, tx, where)
		if err != nil {
			return err
		}
		if r == nil {
			return data.ErrNotFound
		}
		if err := m.deleteKey(ctx, tx, r.key); err != nil {
			return err
		}
		out = m.hydrate(r.rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Model) deleteKey(ctx context.Context, tx *sql.Tx, key string) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM records WHERE model = ? AND rkey = ?",
		m.spec.Name, key); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// DeleteMany removes every matching record.
func (m *Model) DeleteMany(ctx context.Context, where query.Expr) (int, error) {
	var removed int
	err := m.store.inTx(ctx, "deleteMany", m.spec.Name, func(tx *sql.Tx) error {
		rows, err := m.match(ctx, tx, where)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if err := m.deleteKey(ctx, tx, r.key); err != nil {
				return err
			}
		}
		removed = len(rows)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Upsert updates the first matching record or creates one, in one
// transaction.
func (m *Model) Upsert(ctx context.Context, where query.Expr, create, update map[string]any) (record.Record, error) {
	var out record.Record
	err := m.store.inTx(ctx, "upsert", m.spec.Name, func(tx *sql.Tx) error {
		r, err := m.first(ctx, tx, where)
		if err != nil {
			return err
		}
		var rec record.Record
		if r != nil {
			rec, err = m.replace(ctx, tx, *r, update)
		} else {
			rec, err = m.insert(ctx, tx, create)
		}
		if err != nil {
			return err
		}
		out = m.hydrate(rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
