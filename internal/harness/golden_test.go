package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketplaceFlowGolden(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/marketplace_flow.yaml")
	require.NoError(t, err)
	require.NoError(t, RunWithGolden(t, scenario))
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "checkout.golden"),
		GoldenFilePath(filepath.Join("scenarios", "checkout.yaml")))
}

func TestUpdateAndCompareGolden(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/filters.yaml")
	require.NoError(t, err)
	result, err := Run(scenario)
	require.NoError(t, err)

	path := GoldenFilePath(filepath.Join(t.TempDir(), "filters.yaml"))
	_, err = CompareWithGolden(result, path)
	assert.Error(t, err)

	require.NoError(t, UpdateGoldenFile(result, path))
	match, err := CompareWithGolden(result, path)
	require.NoError(t, err)
	assert.True(t, match)

	result.Snapshot = append([]byte{}, result.Snapshot[:len(result.Snapshot)-2]...)
	match, err = CompareWithGolden(result, path)
	require.NoError(t, err)
	assert.False(t, match)
}
