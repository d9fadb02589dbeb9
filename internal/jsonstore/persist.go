package jsonstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/marketdb/internal/record"
	"github.com/roach88/marketdb/internal/schema"
)

// Document is the in-memory store: model name to records in insertion order.
// Records are in serialized form.
type Document map[string][]record.Record

// NewDocument returns a document with an empty collection for every model.
func NewDocument(s *schema.Schema) Document {
	doc := make(Document, len(s.Names()))
	for _, name := range s.Names() {
		doc[name] = []record.Record{}
	}
	return doc
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for name, records := range d {
		cp := make([]record.Record, len(records))
		for i, r := range records {
			cp[i] = r.Clone()
		}
		out[name] = cp
	}
	return out
}

// CorruptError reports a store file that exists but is not a valid document.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt store file %s: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// LoadOptions configures Load.
type LoadOptions struct {
	// StrictRead returns read errors instead of degrading to an empty
	// document.
	StrictRead bool
	Logger     *slog.Logger
}

// Load reads the document at path. The returned document always holds a
// collection for every schema model.
//
// A missing file yields an empty document. Other read errors are logged and
// also yield an empty document unless opts.StrictRead is set. A file that is
// not a JSON object fails with *CorruptError.
func Load(path string, s *schema.Schema, opts LoadOptions) (Document, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("store file not found, starting empty", "path", path)
		return NewDocument(s), nil
	}
	if err != nil {
		if opts.StrictRead {
			return nil, fmt.Errorf("read store: %w", err)
		}
		logger.Warn("store file unreadable, starting empty",
			"path", path,
			"error", err,
			"data_loss_risk", true)
		return NewDocument(s), nil
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		logger.Warn("store file is empty, starting empty", "path", path)
		return NewDocument(s), nil
	}

	return decode(path, raw, s, logger)
}

func decode(path string, raw []byte, s *schema.Schema, logger *slog.Logger) (Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	if top == nil {
		return nil, &CorruptError{Path: path, Err: errors.New("top level is not an object")}
	}

	doc := NewDocument(s)
	for name, msg := range top {
		if !s.Has(name) {
			logger.Warn("dropping unknown collection", "path", path, "collection", name)
			continue
		}

		var items []any
		if err := json.Unmarshal(msg, &items); err != nil {
			logger.Warn("collection is not an array, starting it empty",
				"path", path,
				"collection", name,
				"data_loss_risk", true)
			continue
		}

		records := make([]record.Record, 0, len(items))
		for i, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				logger.Warn("dropping non-object record",
					"path", path,
					"collection", name,
					"index", i)
				continue
			}
			records = append(records, record.Record(obj))
		}
		doc[name] = records
	}
	return doc, nil
}

// Encode renders the document in the on-disk format: collections in schema
// order, record keys sorted, 2-space indentation, no HTML escaping and a
// trailing newline. Collections not in the schema are omitted.
func Encode(doc Document, s *schema.Schema) ([]byte, error) {
	var buf bytes.Buffer
	names := s.Names()

	buf.WriteString("{\n")
	for i, name := range names {
		records := doc[name]
		if records == nil {
			records = []record.Record{}
		}

		var coll bytes.Buffer
		enc := json.NewEncoder(&coll)
		enc.SetEscapeHTML(false)
		enc.SetIndent("  ", "  ")
		if err := enc.Encode(records); err != nil {
			return nil, fmt.Errorf("encode collection %s: %w", name, err)
		}

		key, err := json.Marshal(name)
		if err != nil {
			return nil, fmt.Errorf("encode collection name: %w", err)
		}
		buf.WriteString("  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(bytes.TrimRight(coll.Bytes(), "\n"))
		if i < len(names)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// Save writes the document to path atomically: the content goes to a
// temporary file in the same directory, which is then renamed over path.
// Missing parent directories are created.
func Save(path string, doc Document, s *schema.Schema) error {
	b, err := Encode(doc, s)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, b)
}

func writeFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}
