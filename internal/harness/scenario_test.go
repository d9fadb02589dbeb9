package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/marketplace_flow.yaml")
	require.NoError(t, err)

	assert.Equal(t, "marketplace_flow", scenario.Name)
	assert.Equal(t, []string{"seller-1", "product-1", "product-2"}, scenario.IDs)
	require.Len(t, scenario.Setup, 1)
	assert.Equal(t, "user", scenario.Setup[0].Model)
	require.Len(t, scenario.Steps, 10)
	assert.Equal(t, "not_found", scenario.Steps[5].Expect.Error)
	assert.Len(t, scenario.Assertions, 6)
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestParseScenarioRejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: misspelled key
steps:
  - model: user
    op: count
assertion:
  - type: record_count
`))
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestParseScenarioValidation(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", `
description: d
steps: [{model: user, op: count}]`, "name is required"},
		{"missing description", `
name: n
steps: [{model: user, op: count}]`, "description is required"},
		{"no steps", `
name: n
description: d`, "steps list is required"},
		{"step without model", `
name: n
description: d
steps: [{op: count}]`, "steps[0]: model is required"},
		{"unknown op", `
name: n
description: d
steps: [{model: user, op: truncate}]`, "unknown operation"},
		{"create without data", `
name: n
description: d
steps: [{model: user, op: create}]`, "data is required for create"},
		{"upsert without update", `
name: n
description: d
steps: [{model: user, op: upsert, create: {}}]`, "create and update are required"},
		{"setup step invalid", `
name: n
description: d
setup: [{model: user}]
steps: [{model: user, op: count}]`, "setup[0]"},
		{"unknown assertion", `
name: n
description: d
steps: [{model: user, op: count}]
assertions: [{type: vibes}]`, "unknown assertion type"},
		{"final_state without expect", `
name: n
description: d
steps: [{model: user, op: count}]
assertions: [{type: final_state, model: user}]`, "expect is required"},
		{"trace_count without op", `
name: n
description: d
steps: [{model: user, op: count}]
assertions: [{type: trace_count, count: 1}]`, "trace_count"},
		{"trace_order without ops", `
name: n
description: d
steps: [{model: user, op: count}]
assertions: [{type: trace_order}]`, "ops list is required"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestStepRequestCarriesFields(t *testing.T) {
	take := 3
	step := Step{
		Model:   "product",
		Op:      "findMany",
		Where:   map[string]any{"title": "Lamp"},
		OrderBy: map[string]any{"price": "asc"},
		Take:    &take,
	}

	req := step.Request()
	assert.Equal(t, "findMany", string(req.Op))
	assert.Equal(t, step.Where, req.Where)
	assert.Equal(t, step.OrderBy, req.OrderBy)
	assert.Equal(t, &take, req.Take)

	assert.Equal(t, map[string]any{
		"where":   step.Where,
		"orderBy": step.OrderBy,
		"take":    3,
	}, step.args())
	assert.Nil(t, Step{Model: "user", Op: "count"}.args())
}

func TestScenarioFilesParse(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		raw, err := os.ReadFile(f)
		require.NoError(t, err)
		_, err = ParseScenario(raw)
		assert.NoError(t, err, f)
	}
}
