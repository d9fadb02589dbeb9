// Package app opens the configured store: SQLite when a database is
// configured and reachable, otherwise the JSON file store. The admin account
// is seeded once per Open.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/marketdb/internal/config"
	"github.com/roach88/marketdb/internal/data"
	"github.com/roach88/marketdb/internal/jsonstore"
	"github.com/roach88/marketdb/internal/schema"
	"github.com/roach88/marketdb/internal/seed"
	"github.com/roach88/marketdb/internal/sqlstore"
)

// Options overrides the clock and id source, mainly for tests.
type Options struct {
	Clock data.Clock
	IDs   data.IDGenerator
	// Schema defaults to the embedded schema.
	Schema *schema.Schema
}

type flusher interface {
	Flush() error
}

// Open returns a ready client with the admin account in place. The caller
// owns the client and must Close it.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (data.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = data.SystemClock{}
	}
	if opts.Schema == nil {
		s, err := schema.Load()
		if err != nil {
			return nil, fmt.Errorf("load schema: %w", err)
		}
		opts.Schema = s
	}

	client, err := openBackend(ctx, cfg, logger, opts)
	if err != nil {
		return nil, err
	}

	if err := bootstrap(ctx, client, cfg.Admin, logger, opts.Clock); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (data.Client, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		path, ok := SQLitePath(cfg.Store.DatabaseURL)
		if !ok {
			return nil, fmt.Errorf("database url %q is not a sqlite database", cfg.Store.DatabaseURL)
		}
		return openSQLite(ctx, path, logger, opts)

	case config.BackendJSON:
		return openJSON(cfg.Store, logger, opts)

	default:
		if cfg.Store.DatabaseURL == "" {
			return openJSON(cfg.Store, logger, opts)
		}
		path, ok := SQLitePath(cfg.Store.DatabaseURL)
		if !ok {
			logger.Warn("database url is not a sqlite database, using fallback store",
				"data_file", cfg.Store.DataFile)
			return openJSON(cfg.Store, logger, opts)
		}
		client, err := openSQLite(ctx, path, logger, opts)
		if err != nil {
			logger.Warn("primary database unavailable, using fallback store",
				"error", err,
				"data_file", cfg.Store.DataFile)
			return openJSON(cfg.Store, logger, opts)
		}
		return client, nil
	}
}

func openSQLite(ctx context.Context, path string, logger *slog.Logger, opts Options) (data.Client, error) {
	s, err := sqlstore.Open(ctx, path, sqlstore.Options{
		Schema: opts.Schema,
		Clock:  opts.Clock,
		IDs:    opts.IDs,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return s, nil
}

func openJSON(cfg config.StoreConfig, logger *slog.Logger, opts Options) (data.Client, error) {
	s, err := jsonstore.Open(jsonstore.Options{
		Path:       cfg.DataFile,
		Schema:     opts.Schema,
		Clock:      opts.Clock,
		IDs:        opts.IDs,
		StrictRead: cfg.StrictRead,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open json store: %w", err)
	}
	return s, nil
}

func bootstrap(ctx context.Context, client data.Client, admin config.Admin, logger *slog.Logger, clock data.Clock) error {
	users, err := client.Model("user")
	if err != nil {
		return err
	}
	_, created, err := seed.EnsureAdmin(ctx, users, admin, clock)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		logger.Info("seeded admin user",
			"email", admin.Email,
			"backend", string(client.Backend()))
	}
	if f, ok := client.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush store: %w", err)
		}
	}
	return nil
}

// SQLitePath maps a DATABASE_URL to a path the sqlite3 driver accepts. Plain
// paths and file: URIs are SQLite; sqlite:// and sqlite3:// prefixes are
// stripped. Any other scheme is reported as not SQLite.
func SQLitePath(url string) (string, bool) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", false
	}
	for _, prefix := range []string{"sqlite3://", "sqlite://"} {
		if rest, ok := strings.CutPrefix(url, prefix); ok {
			return rest, rest != ""
		}
	}
	if strings.HasPrefix(url, "file:") {
		return url, true
	}
	if strings.Contains(url, "://") {
		return "", false
	}
	return url, true
}
