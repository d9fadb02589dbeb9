package jsonstore

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/marketdb/internal/data"
	"github.com/roach88/marketdb/internal/query"
	"github.com/roach88/marketdb/internal/record"
	"github.com/roach88/marketdb/internal/schema"
)

// Model implements data.Model over one collection of a Store.
type Model struct {
	store *Store
	spec  schema.Model
}

var _ data.Model = (*Model)(nil)

// Spec returns the model's schema entry.
func (m *Model) Spec() schema.Model {
	return m.spec
}

func (m *Model) records() []record.Record {
	return m.store.doc[m.spec.Name]
}

func (m *Model) setRecords(records []record.Record) {
	m.store.doc[m.spec.Name] = records
}

func (m *Model) hydrate(r record.Record) record.Record {
	return record.Hydrate(r, m.store.schema.IsTimestampField)
}

// indexOf returns the index of the first record matching a normalized
// expression, or -1.
func (m *Model) indexOf(where query.Expr) int {
	return slices.IndexFunc(m.records(), func(r record.Record) bool {
		return query.Match(where, r)
	})
}

// FindMany returns matching records, ordered then paginated.
func (m *Model) FindMany(ctx context.Context, args data.FindArgs) ([]record.Record, error) {
	var out []record.Record
	err := m.store.read(ctx, "findMany", m.spec.Name, func() error {
		where, err := query.Normalize(args.Where)
		if err != nil {
			return err
		}
		matched := query.Filter(m.records(), where)
		query.Sort(matched, args.OrderBy)
		matched = query.Paginate(matched, args.Take)

		out = make([]record.Record, len(matched))
		for i, r := range matched {
			out[i] = m.hydrate(r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindUnique returns the first record matching where, or nil.
func (m *Model) FindUnique(ctx context.Context, where query.Expr) (record.Record, error) {
	var out record.Record
	err := m.store.read(ctx, "findUnique", m.spec.Name, func() error {
		normalized, err := query.Normalize(where)
		if err != nil {
			return err
		}
		if i := m.indexOf(normalized); i >= 0 {
			out = m.hydrate(m.records()[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
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
	var n int
	err := m.store.read(ctx, "count", m.spec.Name, func() error {
		normalized, err := query.Normalize(where)
		if err != nil {
			return err
		}
		for _, r := range m.records() {
			if query.Match(normalized, r) {
				n++
			}
		}
		return nil
	})
	return n, err
}

// Create inserts a new record.
func (m *Model) Create(ctx context.Context, input map[string]any) (record.Record, error) {
	var out record.Record
	err := m.store.write(ctx, "create", m.spec.Name, func() (bool, error) {
		rec, err := m.insertLocked(input)
		if err != nil {
			return false, err
		}
		out = m.hydrate(rec)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// insertLocked prepares and appends a record. The caller holds the write lock.
func (m *Model) insertLocked(input map[string]any) (record.Record, error) {
	rec, err := m.store.lifecycle.PrepareCreate(m.spec, input)
	if err != nil {
		return nil, err
	}
	key, err := data.KeyString(m.spec, rec)
	if err != nil {
		return nil, err
	}
	for _, existing := range m.records() {
		if k, err := data.KeyString(m.spec, existing); err == nil && k == key {
			return nil, fmt.Errorf("%w: %s", data.ErrDuplicateKey, key)
		}
	}
	m.setRecords(append(m.records(), rec))
	return rec, nil
}

// Update merges patch into the first matching record.
func (m *Model) Update(ctx context.Context, where query.Expr, patch map[string]any) (record.Record, error) {
	var out record.Record
	err := m.store.write(ctx, "update", m.spec.Name, func() (bool, error) {
		normalized, err := query.Normalize(where)
		if err != nil {
			return false, err
		}
		i := m.indexOf(normalized)
		if i < 0 {
			return false, data.ErrNotFound
		}
		rec, err := m.updateAtLocked(i, patch)
		if err != nil {
			return false, err
		}
		out = m.hydrate(rec)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Model) updateAtLocked(i int, patch map[string]any) (record.Record, error) {
	records := m.records()
	next, err := m.store.lifecycle.ApplyUpdate(m.spec, records[i], patch)
	if err != nil {
		return nil, err
	}
	records[i] = next
	return next, nil
}

// Delete removes the first matching record and returns it.
func (m *Model) Delete(ctx context.Context, where query.Expr) (record.Record, error) {
	var out record.Record
	err := m.store.write(ctx, "delete", m.spec.Name, func() (bool, error) {
		normalized, err := query.Normalize(where)
		if err != nil {
			return false, err
		}
		i := m.indexOf(normalized)
		if i < 0 {
			return false, data.ErrNotFound
		}
		out = m.hydrate(m.records()[i])
		m.setRecords(slices.Delete(m.records(), i, i+1))
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteMany removes every matching record. The file is only rewritten when
// something was removed.
func (m *Model) DeleteMany(ctx context.Context, where query.Expr) (int, error) {
	var removed int
	err := m.store.write(ctx, "deleteMany", m.spec.Name, func() (bool, error) {
		normalized, err := query.Normalize(where)
		if err != nil {
			return false, err
		}
		before := len(m.records())
		m.setRecords(slices.DeleteFunc(m.records(), func(r record.Record) bool {
			return query.Match(normalized, r)
		}))
		removed = before - len(m.records())
		return removed > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Upsert updates the first matching record or creates one. The lookup and
// the write happen under one lock.
func (m *Model) Upsert(ctx context.Context, where query.Expr, create, update map[string]any) (record.Record, error) {
	var out record.Record
	err := m.store.write(ctx, "upsert", m.spec.Name, func() (bool, error) {
		normalized, err := query.Normalize(where)
		if err != nil {
			return false, err
		}

		var rec record.Record
		if i := m.indexOf(normalized); i >= 0 {
			rec, err = m.updateAtLocked(i, update)
		} else {
			rec, err = m.insertLocked(create)
		}
		if err != nil {
			return false, err
		}
		out = m.hydrate(rec)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
