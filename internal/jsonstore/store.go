package jsonstore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/roach88/marketdb/internal/data"
	"github.com/roach88/marketdb/internal/schema"
)

// DefaultPath is the store file used when Options.Path is empty.
var DefaultPath = filepath.Join(".data", "prisma-store.json")

// Options configures Open.
type Options struct {
	// Path of the store file. Defaults to DefaultPath.
	Path string

	// Schema defaults to the embedded schema.
	Schema *schema.Schema

	// Clock and IDs default to the wall clock and UUIDv7 ids.
	Clock data.Clock
	IDs   data.IDGenerator

	// StrictRead fails Open on unreadable files instead of starting empty.
	StrictRead bool

	Logger *slog.Logger
}

// Store is the file-backed implementation of data.Client.
//
// Thread-safety: Store is safe for concurrent use. All operations on one
// Store are linearizable.
type Store struct {
	mu     sync.RWMutex
	doc    Document
	closed bool

	path      string
	schema    *schema.Schema
	lifecycle *data.Lifecycle
	logger    *slog.Logger
	models    map[string]*Model
}

var _ data.Client = (*Store)(nil)

// Open loads the store file and returns a handle on it.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
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
	logger := opts.Logger.With("backend", string(data.BackendJSON))

	doc, err := Load(opts.Path, opts.Schema, LoadOptions{
		StrictRead: opts.StrictRead,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	s := &Store{
		doc:       doc,
		path:      opts.Path,
		schema:    opts.Schema,
		lifecycle: data.NewLifecycle(opts.Clock, opts.IDs),
		logger:    logger,
		models:    make(map[string]*Model),
	}
	for _, m := range opts.Schema.Models() {
		s.models[m.Name] = &Model{store: s, spec: m}
	}

	logger.Debug("store opened", "path", opts.Path, "records", s.countAll())
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

// Backend returns data.BackendJSON.
func (s *Store) Backend() data.Backend {
	return data.BackendJSON
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// Snapshot returns a deep copy of the in-memory document.
func (s *Store) Snapshot() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Flush writes the in-memory document to disk.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return data.Wrap("flush", "", data.ErrClosed)
	}
	return s.saveLocked()
}

// Close flushes the document and closes the handle. Closing twice is a
// no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	err := s.saveLocked()
	s.closed = true
	return err
}

func (s *Store) saveLocked() error {
	if err := Save(s.path, s.doc, s.schema); err != nil {
		s.logger.Error("store save failed", "path", s.path, "error", err)
		return fmt.Errorf("save store: %w", err)
	}
	return nil
}

// read runs fn under the read lock.
func (s *Store) read(ctx context.Context, op, model string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return data.Wrap(op, model, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return data.Wrap(op, model, data.ErrClosed)
	}
	return data.Wrap(op, model, fn())
}

// write runs fn under the write lock and saves the document when fn reports
// a change.
func (s *Store) write(ctx context.Context, op, model string, fn func() (bool, error)) error {
	if err := ctx.Err(); err != nil {
		return data.Wrap(op, model, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return data.Wrap(op, model, data.ErrClosed)
	}

	changed, err := fn()
	if err != nil {
		return data.Wrap(op, model, err)
	}
	if !changed {
		return nil
	}
	return data.Wrap(op, model, s.saveLocked())
}

func (s *Store) countAll() int {
	n := 0
	for _, records := range s.doc {
		n += len(records)
	}
	return n
}
