package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/marketdb/internal/data"
	"github.com/roach88/marketdb/internal/record"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s.%s %s\n", event.Seq, event.Model, event.Op, event.Outcome)
		}
	}
	return buf.String()
}

// checkExpect compares a step's outcome with its expect clause and returns
// one message per mismatch.
func checkExpect(step Step, resp data.Response, err error) []string {
	exp := step.Expect
	if exp == nil {
		exp = &Expect{}
	}

	if kind := data.Kind(err); kind != exp.Error {
		if exp.Error == "" {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
		if err == nil {
			return []string{fmt.Sprintf("expected error %s, got success", exp.Error)}
		}
		return []string{fmt.Sprintf("expected error %s, got %s: %v", exp.Error, kind, err)}
	}
	if err != nil {
		return nil
	}

	var msgs []string
	if exp.Count != nil {
		got := resp.Count
		if resp.Op == data.OpFindMany {
			got = len(resp.Records)
		}
		if got != *exp.Count {
			msgs = append(msgs, fmt.Sprintf("expected count %d, got %d", *exp.Count, got))
		}
	}
	if exp.None && resp.Record != nil {
		msgs = append(msgs, fmt.Sprintf("expected no record, got %v", resp.Record))
	}
	if exp.Record != nil {
		if resp.Record == nil {
			msgs = append(msgs, "expected a record, got none")
		} else if msg := matchSubset(resp.Record, exp.Record); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	if exp.Records != nil {
		if len(resp.Records) != len(exp.Records) {
			msgs = append(msgs, fmt.Sprintf("expected %d records, got %d", len(exp.Records), len(resp.Records)))
		} else {
			for i, want := range exp.Records {
				if msg := matchSubset(resp.Records[i], want); msg != "" {
					msgs = append(msgs, fmt.Sprintf("records[%d]: %s", i, msg))
				}
			}
		}
	}
	return msgs
}

// matchSubset checks that every expected field is present in actual with an
// equal serialized value. It returns "" on a match.
func matchSubset(actual record.Record, expected map[string]any) string {
	got, err := record.SerializeRecord(actual)
	if err != nil {
		return fmt.Sprintf("serialize actual record: %v", err)
	}
	want, err := record.SerializeRecord(expected)
	if err != nil {
		return fmt.Sprintf("serialize expected fields: %v", err)
	}

	for _, key := range sortedKeys(want) {
		actualValue, exists := got[key]
		if !exists {
			return fmt.Sprintf("field %q not present in record (fields: %v)", key, got.Keys())
		}
		if !record.Equal(want[key], actualValue) {
			return fmt.Sprintf("field %q = %v, expected %v", key, actualValue, want[key])
		}
	}
	return ""
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// findMatching returns the records of model matching where.
func findMatching(ctx context.Context, client data.Client, model string, where map[string]any) ([]record.Record, error) {
	m, err := client.Model(model)
	if err != nil {
		return nil, err
	}
	resp, err := data.Do(ctx, m, data.Request{Op: data.OpFindMany, Where: where})
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// assertRecordCount checks the number of records matching where.
func assertRecordCount(ctx context.Context, client data.Client, assertion Assertion) error {
	records, err := findMatching(ctx, client, assertion.Model, assertion.Where)
	if err != nil {
		return &AssertionError{
			Type:     AssertRecordCount,
			Expected: fmt.Sprintf("query %s", assertion.Model),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if len(records) != assertion.Count {
		return &AssertionError{
			Type:     AssertRecordCount,
			Expected: fmt.Sprintf("%d %s records where %s", assertion.Count, assertion.Model, formatWhere(assertion.Where)),
			Actual:   fmt.Sprintf("%d records", len(records)),
		}
	}
	return nil
}

// assertFinalState checks that exactly one record matches where and that it
// contains the expected fields.
func assertFinalState(ctx context.Context, client data.Client, assertion Assertion) error {
	records, err := findMatching(ctx, client, assertion.Model, assertion.Where)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query %s", assertion.Model),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	whereDesc := formatWhere(assertion.Where)
	switch len(records) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("record in %s where %s", assertion.Model, whereDesc),
			Actual:   "record not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one record in %s where %s", assertion.Model, whereDesc),
			Actual:   fmt.Sprintf("%d records matched (assertion is ambiguous)", len(records)),
		}
	}

	if msg := matchSubset(records[0], assertion.Expect); msg != "" {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s where %s to contain %v", assertion.Model, whereDesc, assertion.Expect),
			Actual:   msg,
		}
	}
	return nil
}

// assertTraceCount checks how many steps ran op (on model, when given).
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op != assertion.Op {
			continue
		}
		if assertion.Model != "" && event.Model != assertion.Model {
			continue
		}
		count++
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that ops appear in order. Ops don't need to be
// consecutive.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(assertion.Ops) && event.Op == assertion.Ops[next] {
			next++
		}
	}
	if next < len(assertion.Ops) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("ops in order: %v", assertion.Ops),
			Actual:   fmt.Sprintf("%s not found after %v", assertion.Ops[next], assertion.Ops[:next]),
			Trace:    trace,
		}
	}
	return nil
}

// formatWhere creates a human-readable description of a filter object.
func formatWhere(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	parts := make([]string, 0, len(where))
	for _, k := range sortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// EvaluateAssertions evaluates all assertions against the result and the
// store. Returns a slice of error messages for failed assertions.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, client data.Client) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRecordCount:
			err = assertRecordCount(ctx, client, assertion)
		case AssertFinalState:
			err = assertFinalState(ctx, client, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
