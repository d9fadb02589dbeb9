// Package data defines the backend-neutral data-access contract and the
// record lifecycle rules every backend applies.
//
// # Contract
//
// A Client hands out one Model per schema model. Model operations take a
// query.Expr filter and/or a record payload:
//
//	users, err := client.Model("user")
//	u, err := users.Create(ctx, map[string]any{"email": "a@b.c"})
//	u, err = users.FindUnique(ctx, data.ByID(u.ID()))
//
// Mutations are durable before they return. Records returned to callers are
// hydrated deep copies; mutating them never affects the store.
//
// # Lifecycle
//
// Lifecycle turns caller payloads into stored records. On create it
// serializes the payload, applies schema defaults, generates an id and stamps
// timestamps. On update it shallow-merges a patch, rejects changes to key
// fields and refreshes updatedAt.
//
// # Errors
//
// Operations return *Error wrapping one of the sentinel errors, so callers
// test with errors.Is:
//
//	if errors.Is(err, data.ErrNotFound) { ... }
package data
