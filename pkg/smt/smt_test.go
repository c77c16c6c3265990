package smt

import (
	"testing"

	"github.com/meridianchain/stateindexer/pkg/smt/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyTreeRootIsZeroRoot(t *testing.T) {
	tree := New(memstore.New())
	root, err := tree.Root()
	require.NoError(t, err)
	assert.Equal(t, ZeroRoot(), root)
}

func TestUpdateThenGetRoundTrips(t *testing.T) {
	tree := New(memstore.New())
	var key, value [32]byte
	key[0] = 0x01
	value[0] = 0xFF

	_, err := tree.Update(key, value)
	require.NoError(t, err)

	got, err := tree.Get(key)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestRootChangesWithContentIndependentOfOrder(t *testing.T) {
	var k1, v1, k2, v2 [32]byte
	k1[0] = 0x01
	v1[0] = 0xAA
	k2[0] = 0x02
	v2[0] = 0xBB

	treeA := New(memstore.New())
	_, _ = treeA.Update(k1, v1)
	rootA, _ := treeA.Update(k2, v2)

	treeB := New(memstore.New())
	_, _ = treeB.Update(k2, v2)
	rootB, _ := treeB.Update(k1, v1)

	assert.Equal(t, rootA, rootB, "root must be order-independent given the same final key/value set")
}

func TestDeletingBackToZeroRestoresZeroRoot(t *testing.T) {
	tree := New(memstore.New())
	var key, value [32]byte
	key[0] = 0x03
	value[0] = 0xCC

	_, err := tree.Update(key, value)
	require.NoError(t, err)

	root, err := tree.Update(key, [32]byte{})
	require.NoError(t, err)
	assert.Equal(t, ZeroRoot(), root)

	got, err := tree.Get(key)
	require.NoError(t, err)
	assert.Equal(t, [32]byte{}, got)
}

func TestUpdateIsReplayIdempotentAtTheRoot(t *testing.T) {
	tree := New(memstore.New())
	var key, value [32]byte
	key[0] = 0x04
	value[0] = 0xDD

	root1, err := tree.Update(key, value)
	require.NoError(t, err)
	root2, err := tree.Update(key, value)
	require.NoError(t, err)

	assert.Equal(t, root1, root2)
}

func TestDifferentKeysProduceDifferentRoots(t *testing.T) {
	var k1, k2, value [32]byte
	k1[0] = 0x05
	k2[0] = 0x06
	value[0] = 0xEE

	tree1 := New(memstore.New())
	root1, _ := tree1.Update(k1, value)

	tree2 := New(memstore.New())
	root2, _ := tree2.Update(k2, value)

	assert.NotEqual(t, root1, root2)
}
