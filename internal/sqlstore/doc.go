// Package sqlstore provides the primary SQLite backend implementing
// data.Client.
//
// Records of every model live in one table as JSON documents:
//
//	records(seq, model, rkey, data)  UNIQUE(model, rkey)
//
// seq preserves insertion order, so results come back in the same order the
// file store would return them. rkey is the record's key encoded by
// data.KeyString, which makes key uniqueness a table constraint.
//
// # Queries
//
// Filters are pushed down with querysql as a superset WHERE clause over
// json_extract, then every candidate row is re-checked with query.Match.
// Ordering and pagination run in Go with query.Sort and query.Paginate so
// that both backends share one set of comparison rules.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - one open connection: every mutating call runs in its own transaction
//     and transactions never interleave
package sqlstore
