package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return scenario
}

func TestRunMarketplaceFlow(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/marketplace_flow.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 11)
	first := result.Trace[0]
	assert.Equal(t, 1, first.Seq)
	assert.Equal(t, "user", first.Model)
	assert.Equal(t, "create", first.Op)
	assert.Equal(t, "ok", first.Outcome)

	notFound := result.Trace[6]
	assert.Equal(t, "update", notFound.Op)
	assert.Equal(t, "not_found", notFound.Outcome)
	assert.Nil(t, notFound.Result)

	count := result.Trace[10]
	assert.Equal(t, 2.0, count.Result)

	require.Len(t, result.Document["product"], 2)
	assert.Equal(t, 12.0, result.Document["product"][0]["price"])
	assert.Contains(t, string(result.Snapshot), `"verificationToken": []`)
}

func TestRunFilters(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/filters.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
}

func TestRunIsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/marketplace_flow.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, string(first.Snapshot), string(second.Snapshot))
	assert.Equal(t, first.Trace, second.Trace)
}

func TestRunReportsFailedExpectations(t *testing.T) {
	scenario := mustParse(t, `
name: failing
description: every expectation is wrong
steps:
  - model: product
    op: create
    data: { title: Lamp, price: 10 }
    expect:
      record: { title: Desk }
  - model: product
    op: update
    where: { id: id-1 }
    data: { price: 11 }
    expect:
      error: not_found
  - model: product
    op: delete
    where: { id: nope }
  - model: product
    op: findMany
    expect:
      count: 3
      records: [{ title: Lamp }, { title: Desk }]
  - model: product
    op: findUnique
    where: { id: id-1 }
    expect:
      none: true
      record: { missing: field }
assertions:
  - type: record_count
    model: product
    count: 2
  - type: final_state
    model: product
    where: { id: id-1 }
    expect: { price: 99 }
  - type: trace_count
    op: upsert
    count: 1
  - type: trace_order
    ops: [delete, create]
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)

	joined := strings.Join(result.Errors, "\n")
	for _, want := range []string{
		`field "title" = Lamp, expected Desk`,
		"expected error not_found, got success",
		"unexpected error",
		"expected count 3, got 1",
		"expected 2 records, got 1",
		"expected no record",
		`field "missing" not present`,
		"Assertion failed: record_count",
		"Assertion failed: final_state",
		"Assertion failed: trace_count",
		"Assertion failed: trace_order",
	} {
		assert.Contains(t, joined, want)
	}
}

func TestRunFinalStateAmbiguous(t *testing.T) {
	scenario := mustParse(t, `
name: ambiguous
description: two records match the final_state filter
steps:
  - { model: product, op: create, data: { title: Lamp } }
  - { model: product, op: create, data: { title: Lamp } }
assertions:
  - type: final_state
    model: product
    where: { title: Lamp }
    expect: { title: Lamp }
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertion is ambiguous")
}

func TestRunUnknownModelIsAFailedStep(t *testing.T) {
	scenario := mustParse(t, `
name: unknown_model
description: steps on undeclared models fail with unknown_model
steps:
  - model: widget
    op: count
    expect:
      error: unknown_model
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
}

func TestRunSetupFailureAborts(t *testing.T) {
	scenario := mustParse(t, `
name: bad_setup
description: a failing setup step stops the scenario
setup:
  - { model: verificationToken, op: create, data: { identifier: a } }
steps:
  - { model: user, op: count }
`)

	_, err := Run(scenario)
	assert.ErrorContains(t, err, "setup step 0")
}

func TestRunExhaustedIDsIsAnError(t *testing.T) {
	scenario := mustParse(t, `
name: too_few_ids
description: more records than fixed ids
ids: [only-one]
steps:
  - { model: product, op: create, data: {} }
  - { model: product, op: create, data: {} }
`)

	_, err := Run(scenario)
	assert.ErrorContains(t, err, "all ids exhausted")
}
