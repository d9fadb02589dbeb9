// Package harness runs store scenarios described in YAML.
//
// Each scenario runs against a fresh JSON file store with a deterministic
// clock and id source, so the persisted document is identical across runs
// and can be compared against a golden file.
//
// # Scenario Format
//
//	name: upsert_user
//	description: "Upsert creates the user once, then updates it"
//	ids: [user-1]                 # optional; default ids are id-1, id-2, ...
//	setup:
//	  - model: product
//	    op: create
//	    data: { title: Lamp, price: 10 }
//	steps:
//	  - model: user
//	    op: upsert
//	    where: { email: a@example.com }
//	    create: { email: a@example.com }
//	    update: { name: A }
//	    expect:
//	      record: { id: user-1, role: CUSTOMER }
//	  - model: product
//	    op: update
//	    where: { id: missing }
//	    data: { title: x }
//	    expect:
//	      error: not_found
//	assertions:
//	  - type: record_count
//	    model: user
//	    count: 1
//	  - type: final_state
//	    model: user
//	    where: { email: a@example.com }
//	    expect: { name: A }
//
// Steps take the same where, data, create, update, orderBy and take fields
// as the CLI. Expected values are compared after serialization, so 10 and
// 10.0 are equal and timestamps compare as ISO-8601 strings.
//
// # Assertion Types
//
//   - record_count: number of records in a model matching where
//   - final_state: exactly one record matches where and contains expect
//   - trace_count: number of executed steps with an op (and model)
//   - trace_order: ops appear in the trace in the given order
package harness
