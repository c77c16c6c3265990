package writerpool

import "github.com/meridianchain/stateindexer/pkg/account"

// WorkItem is one unit of relational-store work. The concrete types below
// are the only implementations; dispatch switches on them exhaustively.
type WorkItem interface {
	isWorkItem()
}

// UpdateAccount carries one account write. IsStartup marks it as part of
// the bootstrap bulk-load phase rather than steady-state streaming.
type UpdateAccount struct {
	Account   account.Update
	IsStartup bool
}

// UpdateSlot carries a slot-status transition. Parent is nil for the two
// genesis slots and for any slot reported without a known parent.
type UpdateSlot struct {
	Slot   uint64
	Parent *uint64
	Status string
}

// LogTransaction carries one transaction's signature and the accounts it
// modified, for later brief generation.
type LogTransaction struct {
	Slot             uint64
	Signature        []byte
	WriteVersion     uint64
	IsVote           bool
	Success          bool
	ModifiedAccounts []account.Update
}

// UpdateBlock carries block metadata for a finalized slot.
type UpdateBlock struct {
	Slot        uint64
	Blockhash   string
	Rewards     []byte
	BlockTime   int64
	BlockHeight uint64
}

// UpdateEntry carries one PoH entry's record.
type UpdateEntry struct {
	Slot                     uint64
	EntryIndex               uint64
	NumHashes                uint64
	Hash                     []byte
	ExecutedTransactionCount uint64
	StartingTransactionIndex uint64
}

func (UpdateAccount) isWorkItem()  {}
func (UpdateSlot) isWorkItem()     {}
func (LogTransaction) isWorkItem() {}
func (UpdateBlock) isWorkItem()    {}
func (UpdateEntry) isWorkItem()    {}
