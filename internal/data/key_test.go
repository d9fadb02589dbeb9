package data

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marketdb/internal/query"
	"github.com/roach88/marketdb/internal/record"
)

func TestByKey(t *testing.T) {
	assert.Equal(t, query.Eq("id", "u1"), ByKey(model(t, "user"), "u1"))
	assert.Equal(t,
		query.AllOf(query.Eq("identifier", "a@b.c"), query.Eq("token", "t")),
		ByKey(model(t, "verificationToken"), "a@b.c", "t"))

	assert.Panics(t, func() { ByKey(model(t, "verificationToken"), "only-one") })
}

func TestKeyString(t *testing.T) {
	vt := model(t, "verificationToken")

	k, err := KeyString(vt, record.Record{"identifier": "a@b.c", "token": "t", "expires": "x"})
	require.NoError(t, err)
	assert.Equal(t, `["a@b.c","t"]`, k)

	k, err = KeyString(model(t, "user"), record.Record{"id": 7.0})
	require.NoError(t, err)
	assert.Equal(t, `[7]`, k)

	_, err = KeyString(model(t, "user"), record.Record{"email": "x"})
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestKeyFilterMatchesRecord(t *testing.T) {
	vt := model(t, "verificationToken")
	r := record.Record{"identifier": "a@b.c", "token": "t"}

	f, err := KeyFilter(vt, r)
	require.NoError(t, err)
	assert.True(t, query.Match(f, r))
	assert.False(t, query.Match(f, record.Record{"identifier": "a@b.c", "token": "u"}))
}

func TestParseOptionsRegistersCompoundKey(t *testing.T) {
	assert.Nil(t, ParseOptions(model(t, "user")))

	vt := model(t, "verificationToken")
	e, err := query.FromMap(map[string]any{
		"identifier_token": map[string]any{"identifier": "a@b.c", "token": "t"},
	}, ParseOptions(vt)...)
	require.NoError(t, err)
	assert.True(t, query.Match(e, record.Record{"identifier": "a@b.c", "token": "t"}))
}

func TestErrorWrapping(t *testing.T) {
	err := Wrap("update", "product", ErrNotFound)

	assert.True(t, IsNotFound(err))
	assert.Equal(t, "product update: record not found", err.Error())

	var de *Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "update", de.Op)

	assert.Same(t, err, Wrap("delete", "user", err), "already wrapped errors pass through")
	assert.NoError(t, Wrap("x", "y", nil))
}
