package account

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func sampleUpdate() Update {
	var pk, owner [32]byte
	pk[0] = 0xAA
	owner[0] = 0xBB
	return Update{
		Pubkey:       pk,
		Owner:        owner,
		Lamports:     100,
		Executable:   true,
		RentEpoch:    7,
		Data:         []byte("hello"),
		Slot:         10,
		WriteVersion: 5,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	u := sampleUpdate()
	encoded := Encode(u)
	decoded, err := Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, u.Pubkey, decoded.Pubkey)
	assert.Equal(t, u.Owner, decoded.Owner)
	assert.Equal(t, u.Lamports, decoded.Lamports)
	assert.Equal(t, u.Executable, decoded.Executable)
	assert.Equal(t, u.RentEpoch, decoded.RentEpoch)
	assert.True(t, bytes.Equal(u.Data, decoded.Data))
}

func TestDecodeMalformedLeaf(t *testing.T) {
	_, err := Decode(make([]byte, 10))
	assert.ErrorIs(t, err, ErrMalformedLeaf)
}

func TestLeafHashZeroAccount(t *testing.T) {
	var zero Update
	assert.Equal(t, ZeroHash, LeafHash(zero))
}

func TestLeafHashNonZeroAccount(t *testing.T) {
	u := sampleUpdate()
	got := LeafHash(u)
	want := blake2b.Sum256(Encode(u))
	assert.Equal(t, want, got)
	assert.NotEqual(t, ZeroHash, got)
}

func TestSMTKeyIsHashOfPubkey(t *testing.T) {
	var pk [32]byte
	pk[0] = 0x42
	want := blake2b.Sum256(pk[:])
	assert.Equal(t, want, SMTKey(pk))
}

func TestChainHashDeterministicOrdering(t *testing.T) {
	var a, b Update
	a.Pubkey[0] = 0x01
	b.Pubkey[0] = 0x02
	sig := []byte("sig")

	h1 := ChainHash(sig, []Update{a, b}, [32]byte{})
	h2 := ChainHash(sig, []Update{a, b}, [32]byte{})
	assert.Equal(t, h1, h2)

	// A different order of the same accounts produces a different chain
	// value; callers are responsible for the lexicographic sort.
	h3 := ChainHash(sig, []Update{b, a}, [32]byte{})
	assert.NotEqual(t, h1, h3)
}
