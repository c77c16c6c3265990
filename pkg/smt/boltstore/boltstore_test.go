package boltstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetBranchRoundTrips(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "smt.db"))
	require.NoError(t, err)
	defer store.Close()

	var nodeKey, left, right [32]byte
	nodeKey[0] = 0x01
	left[0] = 0xAA
	right[0] = 0xBB

	require.NoError(t, store.PutBranch(3, nodeKey, left, right))

	gotLeft, gotRight, ok, err := store.GetBranch(3, nodeKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, left, gotLeft)
	require.Equal(t, right, gotRight)
}

func TestDeleteBranchRemovesEntry(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "smt.db"))
	require.NoError(t, err)
	defer store.Close()

	var nodeKey, left, right [32]byte
	nodeKey[0] = 0x02

	require.NoError(t, store.PutBranch(5, nodeKey, left, right))
	require.NoError(t, store.DeleteBranch(5, nodeKey))

	_, _, ok, err := store.GetBranch(5, nodeKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLeafPutGetDelete(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "smt.db"))
	require.NoError(t, err)
	defer store.Close()

	var key, value [32]byte
	key[0] = 0x09
	value[0] = 0x42

	require.NoError(t, store.PutLeaf(key, value))
	got, ok, err := store.GetLeaf(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value, got)

	require.NoError(t, store.DeleteLeaf(key))
	_, ok, err = store.GetLeaf(key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReopenPersistsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smt.db")
	store, err := Open(path)
	require.NoError(t, err)

	var key, value [32]byte
	key[0] = 0x10
	value[0] = 0x77
	require.NoError(t, store.PutLeaf(key, value))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.GetLeaf(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value, got)
}
