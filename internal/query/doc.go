// Package query provides the filter expression language, the in-memory
// matcher, and ordering and pagination for store queries.
//
// # Expressions
//
// Expr is a sealed interface using the marker method pattern. Only the four
// types in this package implement it, which keeps type switches in the
// matcher, the validator and the SQL compiler exhaustive:
//
//	FieldEquals   field = value
//	NestedEquals  field.k1 = v1 AND field.k2 = v2 ...
//	And           all sub-expressions match (empty And matches everything)
//	Or            any sub-expression matches (empty Or matches nothing)
//
// A nil Expr matches every record.
//
// Values in expressions are caller values; they are serialized with
// record.Serialize before comparison, so time.Time and int arguments
// compare equal to their stored forms.
//
// # Dynamic filters
//
// FromMap parses the object form used by scenario files and the CLI:
//
//	{"OR": [{"role": "SUPER_ADMIN"}, {"isApproved": true}]}
//	{"title": {"equals": "Desk"}}
//	{"address": {"city": "Oslo"}}
//	{"identifier_token": {"identifier": "a@b.c", "token": "t"}}  // with WithCompoundKey
//
// # Ordering and pagination
//
// Sort is stable and compares records key by key. Paginate keeps the first
// n items for n >= 0 and the last |n| items for n < 0.
package query
