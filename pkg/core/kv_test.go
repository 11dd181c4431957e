package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStoreUpdate(t *testing.T) {
	kv := NewKVStore()

	require.NoError(t, kv.Update("a", func(old []byte, found bool) ([]byte, error) {
		assert.False(t, found)
		return []byte("1"), nil
	}))
	val, found := kv.Get("a")
	require.True(t, found)
	assert.Equal(t, []byte("1"), val)

	boom := errors.New("boom")
	err := kv.Update("a", func([]byte, bool) ([]byte, error) { return []byte("2"), boom })
	assert.ErrorIs(t, err, boom)
	val, _ = kv.Get("a")
	assert.Equal(t, []byte("1"), val, "failed update must not write")

	require.NoError(t, kv.Update("a", func([]byte, bool) ([]byte, error) { return nil, nil }))
	_, found = kv.Get("a")
	assert.False(t, found)
}

func TestKVStoreSnapshotRestore(t *testing.T) {
	kv := NewKVStore()
	kv.Set("rel:A", []byte("x"))
	kv.Set("rev:B", []byte("y"))

	snap := kv.Snapshot()
	kv.Set("rel:C", []byte("z"))

	other := NewKVStore()
	other.Restore(snap)
	_, found := other.Get("rel:C")
	assert.False(t, found)
	val, found := other.Get("rev:B")
	require.True(t, found)
	assert.Equal(t, []byte("y"), val)
}
