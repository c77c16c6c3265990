// Package smt implements a 256-level sparse Merkle tree keyed by 32-byte
// hashes, generalized over pluggable storage backends (pkg/smt/boltstore,
// pkg/smt/memstore). Branch nodes are addressed by (depth, key-prefix) the
// way the reference sparse-merkle-tree store adapter addresses them, and
// combine(left, right) = Blake2b-256(left ‖ right) is applied uniformly —
// including to all-zero subtrees — so the zero-subtree hash at every depth
// falls out of the same formula instead of needing a special case on the
// hot path.
package smt

import "golang.org/x/crypto/blake2b"

// Depth is the number of branch levels between the root and a leaf: one
// level per bit of a 32-byte (256-bit) key.
const Depth = 256

// Store is the capability set a storage backend must provide. Tree is
// parameterized over Store with a type parameter (not an interface field)
// so the hot update loop is devirtualized at compile time, per the
// "dynamic dispatch over stores" design note: prefer static parameterisation
// of the tree type by store over runtime dispatch.
type Store interface {
	GetBranch(height uint8, nodeKey [32]byte) (left, right [32]byte, ok bool, err error)
	PutBranch(height uint8, nodeKey [32]byte, left, right [32]byte) error
	DeleteBranch(height uint8, nodeKey [32]byte) error
	GetLeaf(key [32]byte) (value [32]byte, ok bool, err error)
	PutLeaf(key [32]byte, value [32]byte) error
	DeleteLeaf(key [32]byte) error
}

// zeroHashes[d] is the root hash of an entirely-empty subtree rooted at
// depth d (0 = tree root, Depth = leaf level). zeroHashes[Depth] is the
// zero leaf hash; every shallower entry folds two copies of the next
// deepest one through combine.
var zeroHashes [Depth + 1][32]byte

func init() {
	for d := Depth - 1; d >= 0; d-- {
		z := zeroHashes[d+1]
		zeroHashes[d] = combine(z, z)
	}
}

// ZeroRoot is the root hash of a completely empty tree.
func ZeroRoot() [32]byte {
	return zeroHashes[0]
}

func combine(left, right [32]byte) [32]byte {
	var buf [64]byte
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return blake2b.Sum256(buf[:])
}

// bitAt returns the bit of key at depth d (0 = most significant bit, the
// one consumed at the root).
func bitAt(key [32]byte, d int) byte {
	byteIdx := d / 8
	shift := uint(7 - d%8)
	return (key[byteIdx] >> shift) & 1
}

// maskKey keeps the top d bits of key and zeroes the rest, giving the
// canonical node-key for the subtree at depth d that contains key.
func maskKey(key [32]byte, d int) [32]byte {
	var out [32]byte
	fullBytes := d / 8
	remBits := d % 8
	copy(out[:fullBytes], key[:fullBytes])
	if remBits > 0 {
		mask := byte(0xFF << uint(8-remBits))
		out[fullBytes] = key[fullBytes] & mask
	}
	return out
}

// Tree is a sparse Merkle tree over a Store of concrete type S.
type Tree[S Store] struct {
	Store S
}

// New wraps a store as a Tree.
func New[S Store](store S) *Tree[S] {
	return &Tree[S]{Store: store}
}

// Get returns the current leaf value hash for key, or the zero leaf hash if
// key has never been set (or was last set to the zero account).
func (t *Tree[S]) Get(key [32]byte) ([32]byte, error) {
	v, ok, err := t.Store.GetLeaf(key)
	if err != nil {
		return [32]byte{}, err
	}
	if !ok {
		return zeroHashes[Depth], nil
	}
	return v, nil
}

// Root returns the current root hash.
func (t *Tree[S]) Root() ([32]byte, error) {
	left, right, ok, err := t.Store.GetBranch(0, [32]byte{})
	if err != nil {
		return [32]byte{}, err
	}
	if !ok {
		return zeroHashes[0], nil
	}
	return combine(left, right), nil
}

// Update sets the leaf at key to leafValue and returns the new root hash.
// Setting leafValue to the zero hash removes the leaf (leaf absence ≡
// canonical-zero account).
func (t *Tree[S]) Update(key [32]byte, leafValue [32]byte) ([32]byte, error) {
	var sideNodes [Depth][32]byte
	for d := Depth - 1; d >= 0; d-- {
		nk := maskKey(key, d)
		left, right, ok, err := t.Store.GetBranch(uint8(d), nk)
		if err != nil {
			return [32]byte{}, err
		}
		if !ok {
			left, right = zeroHashes[d+1], zeroHashes[d+1]
		}
		if bitAt(key, d) == 0 {
			sideNodes[d] = right
		} else {
			sideNodes[d] = left
		}
	}

	if leafValue == ([32]byte{}) {
		if err := t.Store.DeleteLeaf(key); err != nil {
			return [32]byte{}, err
		}
	} else {
		if err := t.Store.PutLeaf(key, leafValue); err != nil {
			return [32]byte{}, err
		}
	}

	current := leafValue
	for d := Depth - 1; d >= 0; d-- {
		nk := maskKey(key, d)
		var left, right [32]byte
		if bitAt(key, d) == 0 {
			left, right = current, sideNodes[d]
		} else {
			left, right = sideNodes[d], current
		}

		if left == zeroHashes[d+1] && right == zeroHashes[d+1] {
			if err := t.Store.DeleteBranch(uint8(d), nk); err != nil {
				return [32]byte{}, err
			}
		} else {
			if err := t.Store.PutBranch(uint8(d), nk, left, right); err != nil {
				return [32]byte{}, err
			}
		}
		current = combine(left, right)
	}
	return current, nil
}
