// Package brief derives the per-slot commitment triple (root_hash,
// hash_account, transaction_number) that is later anchored to the
// settlement chain, and persists it idempotently.
package brief

import (
	"fmt"
	"sort"

	"github.com/meridianchain/stateindexer/pkg/account"
)

// Brief is the immutable per-slot commitment record.
type Brief struct {
	Slot              uint64
	RootHash          [32]byte
	HashAccount       [32]byte
	TransactionNumber uint64
}

// Transaction is one slot's transaction as the brief generator needs to see
// it: its signature, and every account it modified (including, for
// internal-bookkeeping mutations, entries whose TxnSignature is nil — those
// are filtered out of the hash chain input, matching the spec's "mutated by
// a user transaction, not internal bookkeeping" rule).
type Transaction struct {
	Signature        []byte
	ModifiedAccounts []account.Update
}

// DataSource is the read-only view the generator needs: the committed SMT
// root after all of a slot's updates landed, and that slot's transactions
// in write_version order.
type DataSource interface {
	RootAtSlot(slot uint64) (root [32]byte, ok bool, err error)
	TransactionsAtSlot(slot uint64) ([]Transaction, error)
}

// Generate derives the brief for slot from committed state. It is a pure
// function of what DataSource returns, so calling it twice for the same
// slot yields byte-identical output (spec invariant 3).
func Generate(ds DataSource, slot uint64) (Brief, error) {
	root, ok, err := ds.RootAtSlot(slot)
	if err != nil {
		return Brief{}, fmt.Errorf("brief.Generate: read root at slot %d: %w", slot, err)
	}
	if !ok {
		return Brief{}, fmt.Errorf("brief.Generate: no committed root for slot %d yet", slot)
	}

	txs, err := ds.TransactionsAtSlot(slot)
	if err != nil {
		return Brief{}, fmt.Errorf("brief.Generate: read transactions at slot %d: %w", slot, err)
	}

	var ha [32]byte
	for _, tx := range txs {
		userModified := make([]account.Update, 0, len(tx.ModifiedAccounts))
		for _, a := range tx.ModifiedAccounts {
			if a.TxnSignature != nil {
				userModified = append(userModified, a)
			}
		}
		sort.Slice(userModified, func(i, j int) bool {
			return pubkeyLess(userModified[i].Pubkey, userModified[j].Pubkey)
		})
		ha = account.ChainHash(tx.Signature, userModified, ha)
	}

	return Brief{
		Slot:              slot,
		RootHash:          root,
		HashAccount:       ha,
		TransactionNumber: uint64(len(txs)),
	}, nil
}

func pubkeyLess(a, b [32]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
