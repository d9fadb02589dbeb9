// Package jsonstore provides the file-backed fallback store: every model's
// records live in memory and the whole document is rewritten to one JSON
// file after each mutation.
//
// # File format
//
// The file is a single JSON object keyed by model name in schema order. Each
// value is an array of record objects with sorted keys, 2-space indented.
// Timestamps are ISO-8601 strings; they become time.Time values in records
// returned to callers.
//
// # Consistency
//
// A Store serializes all operations on one handle with a read/write mutex.
// A mutating operation holds the write lock across its read-modify-write and
// the file rewrite, so concurrent upserts on one handle never lose updates.
// Writes go to a temporary file that is renamed over the target.
//
// A failed write is returned to the caller, but the in-memory change is kept
// and will be written by the next successful save.
//
// Two processes sharing one file are not coordinated. Changes made to the
// file by another process are not seen until the store is reopened.
//
// # Load errors
//
//   - missing file: every collection starts empty
//   - unreadable file: logged with data_loss_risk=true and treated as empty,
//     unless Options.StrictRead is set
//   - malformed JSON: Open fails with *CorruptError
package jsonstore
