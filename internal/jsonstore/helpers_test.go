package jsonstore

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/marketdb/internal/data"
	"github.com/roach88/marketdb/internal/schema"
	"github.com/roach88/marketdb/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// testOptions returns options for a store in a fresh temp directory with a
// deterministic clock and id sequence.
func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Path:   filepath.Join(t.TempDir(), ".data", "prisma-store.json"),
		Schema: schema.MustLoad(),
		Clock:  testutil.NewDeterministicClock(),
		IDs:    data.NewSequenceGenerator("id"),
		Logger: discardLogger(),
	}
}

func openStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustModel(t *testing.T, s *Store, name string) data.Model {
	t.Helper()
	m, err := s.Model(name)
	require.NoError(t, err)
	return m
}
