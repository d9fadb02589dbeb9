package record

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isTimestamp(field string) bool {
	switch field {
	case "createdAt", "expires", "emailVerified":
		return true
	}
	return false
}

func TestSerializeScalars(t *testing.T) {
	when := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC)

	testCases := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"string", "desk", "desk"},
		{"bool", true, true},
		{"int", 42, float64(42)},
		{"int64", int64(-7), float64(-7)},
		{"uint8", uint8(3), float64(3)},
		{"float32", float32(1.5), float64(1.5)},
		{"json number", json.Number("12.25"), 12.25},
		{"time", when, "2024-01-02T03:04:05.006Z"},
		{"time pointer", &when, "2024-01-02T03:04:05.006Z"},
		{"nil time pointer", (*time.Time)(nil), nil},
		{"set wrapper", Set{Value: "x"}, "x"},
		{"set object", map[string]any{"set": 5}, float64(5)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Serialize(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSerializeNonUTCTime(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	got, err := Serialize(time.Date(2024, 6, 1, 12, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01T10:00:00.000Z", got)
}

func TestSerializeNested(t *testing.T) {
	in := map[string]any{
		"title": "Desk",
		"tags":  []string{"oak", "office"},
		"dims":  map[string]int{"w": 120, "d": 60},
		"owner": Record{"name": Set{Value: "Ann"}},
		"list":  []any{1, "two", nil},
	}

	got, err := SerializeRecord(in)
	require.NoError(t, err)

	want := Record{
		"title": "Desk",
		"tags":  []any{"oak", "office"},
		"dims":  map[string]any{"w": float64(120), "d": float64(60)},
		"owner": map[string]any{"name": "Ann"},
		"list":  []any{float64(1), "two", nil},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SerializeRecord mismatch (-want +got):\n%s", diff)
	}
}

func TestSerializeRejectsUnsupported(t *testing.T) {
	_, err := Serialize(math.NaN())
	require.ErrorIs(t, err, ErrUnsupportedValue)

	_, err = Serialize(make(chan int))
	require.ErrorIs(t, err, ErrUnsupportedValue)

	_, err = SerializeRecord(map[string]any{"bad": map[int]string{1: "x"}})
	require.ErrorIs(t, err, ErrUnsupportedValue)
	assert.Contains(t, err.Error(), "field bad")
}

func TestHydrateParsesTimestampFields(t *testing.T) {
	stored := Record{
		"createdAt":     "2024-01-02T03:04:05.000Z",
		"expires":       "not a date",
		"emailVerified": nil,
		"title":         "2024-01-02T03:04:05.000Z",
	}

	got := Hydrate(stored, isTimestamp)

	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), got["createdAt"])
	assert.Equal(t, "not a date", got["expires"], "unparseable timestamps stay strings")
	assert.Nil(t, got["emailVerified"])
	assert.Equal(t, "2024-01-02T03:04:05.000Z", got["title"], "non-timestamp fields are untouched")

	// Hydrate must not alias the stored record.
	assert.Equal(t, "2024-01-02T03:04:05.000Z", stored["createdAt"])
}

func TestSerializeHydrateRoundTrip(t *testing.T) {
	created := time.Date(2023, 12, 31, 23, 59, 59, 999_000_000, time.UTC)
	in := map[string]any{
		"createdAt": created,
		"nested":    map[string]any{"a": []any{true, nil, "x"}},
		"none":      nil,
		"price":     19.99,
	}

	serialized, err := SerializeRecord(in)
	require.NoError(t, err)

	got := Hydrate(serialized, isTimestamp)
	if diff := cmp.Diff(Record(in), got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTimeAcceptsDateOnly(t *testing.T) {
	got, err := ParseTime("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseTime("yesterday")
	require.Error(t, err)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.True(t, Equal("a", "a"))
	assert.True(t, Equal(float64(1), float64(1)))
	assert.True(t, Equal(map[string]any{"a": []any{float64(1)}}, Record{"a": []any{float64(1)}}))

	assert.False(t, Equal(nil, false))
	assert.False(t, Equal("1", float64(1)))
	assert.False(t, Equal([]any{"a"}, []any{"a", "b"}))
	assert.False(t, Equal(map[string]any{"a": nil}, map[string]any{"b": nil}))
}

func TestCompareRanksKinds(t *testing.T) {
	ordered := []any{nil, false, true, float64(-1), float64(3), "a", "b"}
	for i := 0; i < len(ordered)-1; i++ {
		assert.Negative(t, Compare(ordered[i], ordered[i+1]), "%v < %v", ordered[i], ordered[i+1])
		assert.Positive(t, Compare(ordered[i+1], ordered[i]), "%v > %v", ordered[i+1], ordered[i])
	}
	assert.Zero(t, Compare(map[string]any{"a": 1}, []any{}))
}

func TestMergeIsShallowAndCopies(t *testing.T) {
	base := Record{"id": "p1", "meta": map[string]any{"a": "1", "b": "2"}}
	merged := Merge(base, Record{"meta": map[string]any{"a": "9"}, "title": "Desk"})

	assert.Equal(t, Record{"id": "p1", "meta": map[string]any{"a": "9"}, "title": "Desk"}, merged)
	assert.Equal(t, map[string]any{"a": "1", "b": "2"}, base["meta"], "base must not change")
}

func TestCloneIsDeep(t *testing.T) {
	orig := Record{"tags": []any{"a"}, "dims": map[string]any{"w": float64(1)}}
	cp := orig.Clone()

	cp["tags"].([]any)[0] = "z"
	cp["dims"].(map[string]any)["w"] = float64(2)

	assert.Equal(t, "a", orig["tags"].([]any)[0])
	assert.Equal(t, float64(1), orig["dims"].(map[string]any)["w"])
}
