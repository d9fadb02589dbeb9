package data

import (
	"context"

	"github.com/roach88/marketdb/internal/query"
	"github.com/roach88/marketdb/internal/record"
	"github.com/roach88/marketdb/internal/schema"
)

// Backend names a Client implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendJSON   Backend = "json"
)

// Client is a handle on one store. It is safe for concurrent use.
type Client interface {
	// Model returns the handler for a schema model, or an error wrapping
	// ErrUnknownModel.
	Model(name string) (Model, error)

	// Schema returns the schema the client was opened with.
	Schema() *schema.Schema

	// Backend identifies the implementation.
	Backend() Backend

	// Close flushes pending state and releases resources. Operations after
	// Close fail with ErrClosed.
	Close() error
}

// FindArgs selects, orders and limits records.
type FindArgs struct {
	Where   query.Expr
	OrderBy []query.Order
	// Take keeps the first n records for n >= 0 and the last |n| for
	// n < 0. Nil keeps every record.
	Take *int
}

// Model is the operation set for one collection.
type Model interface {
	// Spec returns the model's schema entry.
	Spec() schema.Model

	// FindMany returns matching records, ordered then paginated.
	FindMany(ctx context.Context, args FindArgs) ([]record.Record, error)

	// FindUnique returns the first record matching where, or nil.
	FindUnique(ctx context.Context, where query.Expr) (record.Record, error)

	// FindFirst is FindMany limited to one record. It returns nil when
	// nothing matches.
	FindFirst(ctx context.Context, args FindArgs) (record.Record, error)

	// Create inserts a record built from input.
	Create(ctx context.Context, input map[string]any) (record.Record, error)

	// Update merges patch into the first record matching where. It fails
	// with ErrNotFound when nothing matches.
	Update(ctx context.Context, where query.Expr, patch map[string]any) (record.Record, error)

	// Delete removes the first record matching where and returns it. It
	// fails with ErrNotFound when nothing matches.
	Delete(ctx context.Context, where query.Expr) (record.Record, error)

	// DeleteMany removes every matching record and returns how many were
	// removed.
	DeleteMany(ctx context.Context, where query.Expr) (int, error)

	// Upsert updates the first record matching where, or creates one from
	// create when nothing matches.
	Upsert(ctx context.Context, where query.Expr, create, update map[string]any) (record.Record, error)

	// Count returns the number of matching records.
	Count(ctx context.Context, where query.Expr) (int, error)
}
