// Package record provides the value model shared by every backend.
//
// A Record is a JSON-shaped document: string, number, bool, null, nested
// objects and arrays. In memory a record may additionally carry time.Time
// values; on disk those are ISO-8601 strings.
//
// Two forms exist and must not be confused:
//
//   - Serialized form: what backends store. Numbers are float64, timestamps
//     are strings formatted with TimeLayout, objects are map[string]any,
//     arrays are []any. Serialize produces this form from caller input.
//   - Hydrated form: what callers receive. Identical to the serialized form
//     except that top-level timestamp fields hold time.Time.
//
// All comparisons (Equal, Compare) operate on the serialized form.
//
// This package imports nothing internal.
package record
