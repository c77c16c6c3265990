// Package ingress is the narrow entry point the upstream plugin calls: it
// fans each event out to the relational writer pool and, for account
// updates, to the authenticated state engine's single-writer update queue.
package ingress

import (
	"context"
	"fmt"
	"time"

	"github.com/meridianchain/stateindexer/pkg/account"
	"github.com/meridianchain/stateindexer/pkg/log"
	"github.com/meridianchain/stateindexer/pkg/writerpool"
	"github.com/rs/zerolog"
)

// DefaultStateQueueCapacity bounds the channel feeding the single
// authenticated-state writer goroutine.
const DefaultStateQueueCapacity = 40960

// StateApplier is implemented by the authenticated state engine.
type StateApplier interface {
	ApplyUpdate(ctx context.Context, u account.Update) error
}

// Ingress is the public contract the upstream plugin drives. It owns no
// storage itself: every event is either handed to the writer pool's
// channel or to its own internal state-update channel.
type Ingress struct {
	pool   *writerpool.Pool
	engine StateApplier
	logger zerolog.Logger

	stateCh chan account.Update
	doneCh  chan struct{}
}

// New wires an Ingress over an already-started writer pool and state
// engine. Call Run to start the state-engine feeder goroutine.
func New(pool *writerpool.Pool, engine StateApplier) *Ingress {
	return &Ingress{
		pool:    pool,
		engine:  engine,
		logger:  log.WithComponent("ingress"),
		stateCh: make(chan account.Update, DefaultStateQueueCapacity),
		doneCh:  make(chan struct{}),
	}
}

// Run starts the single goroutine that serially applies account updates to
// the state engine, preserving the engine's single-writer discipline. It
// returns when ctx is cancelled and the state queue has drained.
func (ig *Ingress) Run(ctx context.Context) {
	defer close(ig.doneCh)
	for {
		select {
		case u := <-ig.stateCh:
			if err := ig.engine.ApplyUpdate(ctx, u); err != nil {
				ig.logger.Error().Err(err).Uint64("slot", u.Slot).Uint64("write_version", u.WriteVersion).Msg("state engine rejected update")
			}
		case <-ctx.Done():
			for {
				select {
				case u := <-ig.stateCh:
					if err := ig.engine.ApplyUpdate(context.Background(), u); err != nil {
						ig.logger.Error().Err(err).Msg("state engine rejected update during drain")
					}
				default:
					return
				}
			}
		}
	}
}

// Done reports when Run has exited.
func (ig *Ingress) Done() <-chan struct{} { return ig.doneCh }

// UpdateAccount drops updates with a nil transaction signature during
// steady-state streaming (internal bookkeeping mutations the brief
// generator must never see), matching §4.6. Startup-time bookkeeping
// mutations (isStartup=true) are still admitted, since the relational
// account table needs them even though the SMT will ignore genesis slots.
func (ig *Ingress) UpdateAccount(u account.Update, isStartup bool) error {
	if u.TxnSignature == nil && !isStartup {
		return nil
	}
	ig.pool.Submit(writerpool.UpdateAccount{Account: u, IsStartup: isStartup})
	select {
	case ig.stateCh <- u:
	default:
		return fmt.Errorf("ingress.UpdateAccount: state queue full at slot=%d wv=%d", u.Slot, u.WriteVersion)
	}
	return nil
}

// UpdateSlotStatus records a slot's status transition.
func (ig *Ingress) UpdateSlotStatus(slot uint64, parent *uint64, status string) {
	ig.pool.Submit(writerpool.UpdateSlot{Slot: slot, Parent: parent, Status: status})
}

// LogTransaction records one transaction's signature and modified accounts.
func (ig *Ingress) LogTransaction(slot uint64, signature []byte, writeVersion uint64, isVote, success bool, modified []account.Update) {
	ig.pool.Submit(writerpool.LogTransaction{
		Slot: slot, Signature: signature, WriteVersion: writeVersion,
		IsVote: isVote, Success: success, ModifiedAccounts: modified,
	})
}

// UpdateBlockMetadata records a finalized slot's block metadata.
func (ig *Ingress) UpdateBlockMetadata(slot uint64, blockhash string, rewards []byte, blockTime int64, blockHeight uint64) {
	ig.pool.Submit(writerpool.UpdateBlock{Slot: slot, Blockhash: blockhash, Rewards: rewards, BlockTime: blockTime, BlockHeight: blockHeight})
}

// UpdateEntry records one PoH entry.
func (ig *Ingress) UpdateEntry(slot, entryIndex, numHashes uint64, hash []byte, executedTxCount, startingTxIndex uint64) {
	ig.pool.Submit(writerpool.UpdateEntry{
		Slot: slot, EntryIndex: entryIndex, NumHashes: numHashes, Hash: hash,
		ExecutedTransactionCount: executedTxCount, StartingTransactionIndex: startingTxIndex,
	})
}

// NotifyEndOfStartup waits for the writer pool channel to drain, signals
// the startup-done barrier, and waits for every worker to report in.
func (ig *Ingress) NotifyEndOfStartup() {
	ig.pool.NotifyEndOfStartup()
}

// Join sets exit_worker and waits for every writer-pool worker to exit.
// The startup barrier must not be held while this runs.
func (ig *Ingress) Join() {
	ig.pool.RequestExitAndJoin()
}

// WaitForDone blocks until Run has exited (the state queue has fully
// drained after ctx cancellation) or timeout elapses, whichever is first.
func (ig *Ingress) WaitForDone(timeout time.Duration) bool {
	select {
	case <-ig.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}
