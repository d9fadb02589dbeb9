package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/marketdb/internal/data"
	"github.com/roach88/marketdb/internal/querysql"
	"github.com/roach88/marketdb/internal/schema"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial records table
const currentSchemaVersion = 1

// Options configures Open.
type Options struct {
	// Schema defaults to the embedded schema.
	Schema *schema.Schema

	// Clock and IDs default to the wall clock and UUIDv7 ids.
	Clock data.Clock
	IDs   data.IDGenerator

	Logger *slog.Logger
}

// Store is the SQLite implementation of data.Client.
// Uses SQLite with WAL mode and a single connection.
type Store struct {
	db        *sql.DB
	closed    atomic.Bool
	schema    *schema.Schema
	lifecycle *data.Lifecycle
	compiler  *querysql.SQLCompiler
	logger    *slog.Logger
	models    map[string]*Model
}

var _ data.Client = (*Store)(nil)

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if opts.Schema == nil {
		s, err := schema.Load()
		if err != nil {
			return nil, fmt.Errorf("load schema: %w", err)
		}
		opts.Schema = s
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors
	db.SetMaxIdleConns(1) // Keep one connection ready

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:        db,
		schema:    opts.Schema,
		lifecycle: data.NewLifecycle(opts.Clock, opts.IDs),
		compiler:  querysql.NewSQLCompiler(),
		logger:    opts.Logger.With("backend", string(data.BackendSQLite)),
		models:    make(map[string]*Model),
	}
	for _, m := range opts.Schema.Models() {
		s.models[m.Name] = &Model{store: s, spec: m}
	}

	s.logger.Debug("database opened", "path", path)
	return s, nil
}

// Model returns the handler for a model.
func (s *Store) Model(name string) (data.Model, error) {
	m, ok := s.models[name]
	if !ok {
		return nil, data.Wrap("model", name, data.ErrUnknownModel)
	}
	return m, nil
}

// Schema returns the store's schema.
func (s *Store) Schema() *schema.Schema {
	return s.schema
}

// Backend returns data.BackendSQLite.
func (s *Store) Backend() data.Backend {
	return data.BackendSQLite
}

// Close closes the database connection. Closing twice is a no-op.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Model methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// begin checks the context and the handle before starting a transaction.
func (s *Store) begin(ctx context.Context) (*sql.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, data.ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}

// inTx runs fn in a transaction, committing when fn succeeds.
func (s *Store) inTx(ctx context.Context, op, model string, fn func(tx *sql.Tx) error) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return data.Wrap(op, model, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return data.Wrap(op, model, err)
	}
	if err := tx.Commit(); err != nil {
		return data.Wrap(op, model, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and records the schema
// version. This function is idempotent.
func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
