// Package account implements the canonical account encoding shared by the
// relational writer pool and the authenticated state engine: the SMT is
// purely a function of smt_key and leaf_hash, decoupled from the DB row
// representation, so the relational schema can evolve without touching the
// authenticated state's semantics.
package account

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// fixedPrefixLen is len(pubkey) + len(le64 lamports) + len(owner) +
// len(executable) + len(le64 rent_epoch).
const fixedPrefixLen = 32 + 8 + 32 + 1 + 8

// ErrMalformedLeaf is returned by Decode when the input is shorter than the
// fixed-layout prefix.
var ErrMalformedLeaf = errors.New("malformed leaf: input shorter than fixed account prefix")

// ZeroHash is the leaf value hash of the canonical-zero account, and doubles
// as the SMT's representation of leaf absence.
var ZeroHash = [32]byte{}

// Update is the wire shape an upstream account mutation arrives in.
type Update struct {
	Pubkey        [32]byte
	Owner         [32]byte
	Lamports      uint64
	Executable    bool
	RentEpoch     uint64
	Data          []byte
	Slot          uint64
	WriteVersion  uint64
	TxnSignature  []byte // nil when the mutation was not caused by a user transaction
}

// IsZero reports whether this is the canonical-zero account: lamports,
// owner, executable, and rent_epoch at their zero value and an empty Data
// slice. Pubkey, Slot, WriteVersion, and TxnSignature are not considered.
func (u Update) IsZero() bool {
	return u.Lamports == 0 && u.Owner == [32]byte{} && !u.Executable &&
		u.RentEpoch == 0 && len(u.Data) == 0
}

// Encode produces the fixed-layout canonical byte encoding:
// pubkey ‖ le64(lamports) ‖ owner ‖ u8(executable) ‖ le64(rent_epoch) ‖ data.
func Encode(u Update) []byte {
	out := make([]byte, fixedPrefixLen+len(u.Data))
	off := 0
	copy(out[off:], u.Pubkey[:])
	off += 32
	binary.LittleEndian.PutUint64(out[off:], u.Lamports)
	off += 8
	copy(out[off:], u.Owner[:])
	off += 32
	if u.Executable {
		out[off] = 1
	}
	off++
	binary.LittleEndian.PutUint64(out[off:], u.RentEpoch)
	off += 8
	copy(out[off:], u.Data)
	return out
}

// Decode reverses Encode. Returns ErrMalformedLeaf if b is shorter than the
// fixed prefix.
func Decode(b []byte) (Update, error) {
	if len(b) < fixedPrefixLen {
		return Update{}, fmt.Errorf("account.Decode: %w (got %d bytes, need at least %d)", ErrMalformedLeaf, len(b), fixedPrefixLen)
	}
	var u Update
	off := 0
	copy(u.Pubkey[:], b[off:off+32])
	off += 32
	u.Lamports = binary.LittleEndian.Uint64(b[off:])
	off += 8
	copy(u.Owner[:], b[off:off+32])
	off += 32
	u.Executable = b[off] != 0
	off++
	u.RentEpoch = binary.LittleEndian.Uint64(b[off:])
	off += 8
	if off < len(b) {
		u.Data = append([]byte(nil), b[off:]...)
	}
	return u, nil
}

// SMTKey is the SMT key for a pubkey: Blake2b-256(pubkey).
func SMTKey(pubkey [32]byte) [32]byte {
	return blake2b.Sum256(pubkey[:])
}

// LeafHash is the SMT leaf value hash for an account: Blake2b-256 of the
// canonical encoding, except the canonical-zero account maps to ZeroHash so
// that leaf absence and an explicitly-zeroed account are indistinguishable
// to the tree, matching the spec's "leaf absence ≡ canonical-zero account"
// invariant.
func LeafHash(u Update) [32]byte {
	if u.IsZero() {
		return ZeroHash
	}
	return blake2b.Sum256(Encode(u))
}

// ChainHash folds one transaction's modified accounts into the running
// hash_account chain: Blake2b-256(signature ‖ concat(encode(account)) ‖ prev).
// Accounts must already be sorted ascending by pubkey by the caller (see
// pkg/brief, which owns that ordering).
func ChainHash(signature []byte, modifiedAccounts []Update, prev [32]byte) [32]byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err) // blake2b.New256 only errors on a bad key, which we never pass
	}
	h.Write(signature)
	for _, a := range modifiedAccounts {
		h.Write(Encode(a))
	}
	h.Write(prev[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
