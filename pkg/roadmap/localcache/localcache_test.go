package localcache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.bolt")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndFindAllRoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Record("build-1", "X", []string{"a=1", "b=2"}))

	vals, ok, err := s.FindAll("build-1", "X")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a=1", "b=2"}, vals)

	_, ok, err = s.FindAll("build-1", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.FindAll("other-build", "X")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindReturnsFirstRecordedValue(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Record("build-1", "cc -c a.c", []string{"5"}))

	v, ok, err := s.Find("build-1", "cc -c a.c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "5", v)
}

func TestRecordOverwritesPreviousValue(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Record("build-1", "X", []string{"a=1"}))
	require.NoError(t, s.Record("build-1", "X", []string{"a=1", "b=2"}))

	vals, ok, err := s.FindAll("build-1", "X")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a=1", "b=2"}, vals)
}
