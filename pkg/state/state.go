// Package state implements the authenticated state engine: a single-writer
// SMT keyed by account pubkey, maintained incrementally as account updates
// are observed, with a durable copy and an in-memory shadow copy kept in
// lockstep and cross-checked at startup.
package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/meridianchain/stateindexer/pkg/account"
	"github.com/meridianchain/stateindexer/pkg/errs"
	"github.com/meridianchain/stateindexer/pkg/log"
	"github.com/meridianchain/stateindexer/pkg/metrics"
	"github.com/meridianchain/stateindexer/pkg/rootfeed"
	"github.com/meridianchain/stateindexer/pkg/smt"
	"github.com/meridianchain/stateindexer/pkg/smt/boltstore"
	"github.com/meridianchain/stateindexer/pkg/smt/memstore"
	"github.com/rs/zerolog"
)

// genesisBoundary is the first slot the authenticated tree admits; updates
// for slot < genesisBoundary (the bootstrap slots 0 and 1) never reach the authenticated tree (they still land in the relational
// account table, which the writer pool handles independently).
const genesisBoundary = 2

// Engine owns the authenticated SMT, its watermark, and its audit log under
// single-writer discipline: apply_update and startup_reconcile must only
// ever be called from one goroutine.
type Engine struct {
	persistent *smt.Tree[*boltstore.Store]
	shadow     *smt.Tree[*memstore.Store]
	shadowRaw  *memstore.Store
	book       *Bookkeeping
	broker     *rootfeed.Broker
	logger     zerolog.Logger

	mu            sync.RWMutex
	watermarkSlot uint64
	watermarkWV   uint64
	lastRootSlot  uint64
}

// New wires an Engine over an already-open persistent SMT store and
// bookkeeping store. broker may be nil if no root-observer is needed.
func New(persistentStore *boltstore.Store, book *Bookkeeping, broker *rootfeed.Broker) *Engine {
	shadowRaw := memstore.New()
	return &Engine{
		persistent: smt.New(persistentStore),
		shadow:     smt.New(shadowRaw),
		shadowRaw:  shadowRaw,
		book:       book,
		broker:     broker,
		logger:     log.WithComponent("state"),
	}
}

// StartupReconcile rebuilds the shadow tree from the audit log, compares it
// against the durable root, and loads the watermark. It must be called
// exactly once, before any ApplyUpdate, and must fail loudly: a mismatch
// here means the persistent SMT was tampered with independently of the
// audit log.
func (e *Engine) StartupReconcile(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	persistentRoot, err := e.persistent.Root()
	if err != nil {
		return errs.Wrap(errs.ErrStorageFault, "state.StartupReconcile: read persistent root", err)
	}

	e.shadowRaw.Reset()
	count := 0
	err = e.book.IterateAuditLog(func(entry AuditEntry) error {
		decoded, derr := account.Decode(entry.Canonical)
		if derr != nil {
			return fmt.Errorf("state.StartupReconcile: decode audit entry slot=%d wv=%d: %w", entry.Slot, entry.WriteVersion, derr)
		}
		if _, uerr := e.shadow.Update(entry.SMTKey, account.LeafHash(decoded)); uerr != nil {
			return uerr
		}
		count++
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.ErrStorageFault, "state.StartupReconcile: replay audit log", err)
	}

	shadowRoot, err := e.shadow.Root()
	if err != nil {
		return errs.Wrap(errs.ErrStorageFault, "state.StartupReconcile: read shadow root", err)
	}

	if persistentRoot != shadowRoot {
		return errs.Wrap(errs.ErrRootDivergence, "state.StartupReconcile", fmt.Errorf("persistent root %x != shadow root %x after replaying %d audit entries", persistentRoot, shadowRoot, count))
	}

	slot, wv, err := e.book.GetWatermark()
	if err != nil {
		return errs.Wrap(errs.ErrStorageFault, "state.StartupReconcile: load watermark", err)
	}
	e.watermarkSlot = slot
	e.watermarkWV = wv
	e.lastRootSlot = slot

	e.logger.Info().
		Uint64("watermark_slot", slot).
		Uint64("watermark_write_version", wv).
		Int("audit_entries_replayed", count).
		Msg("startup reconciliation succeeded")
	return nil
}

// ApplyUpdate admits one account update into the authenticated tree. It is
// a no-op (and returns nil) for genesis slots and for updates that do not
// strictly advance the watermark. While the persistent and shadow roots
// disagree it returns ErrRootDivergence without touching either tree.
func (e *Engine) ApplyUpdate(ctx context.Context, u account.Update) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SMTUpdateDuration)

	if u.Slot < genesisBoundary {
		metrics.SMTUpdatesTotal.WithLabelValues("dropped_genesis").Inc()
		return nil
	}
	if !advances(u.Slot, u.WriteVersion, e.watermarkSlot, e.watermarkWV) {
		metrics.SMTUpdatesTotal.WithLabelValues("dropped_stale").Inc()
		return nil
	}

	persistentBefore, err := e.persistent.Root()
	if err != nil {
		return errs.Wrap(errs.ErrStorageFault, "state.ApplyUpdate: read persistent root", err)
	}
	shadowBefore, err := e.shadow.Root()
	if err != nil {
		return errs.Wrap(errs.ErrStorageFault, "state.ApplyUpdate: read shadow root", err)
	}
	if persistentBefore != shadowBefore {
		return errs.Wrap(errs.ErrRootDivergence, "state.ApplyUpdate", fmt.Errorf("persistent root %x != shadow root %x; refusing update at slot=%d wv=%d", persistentBefore, shadowBefore, u.Slot, u.WriteVersion))
	}

	key := account.SMTKey(u.Pubkey)
	leafHash := account.LeafHash(u)
	canonical := account.Encode(u)

	persistentRoot, err := e.persistent.Update(key, leafHash)
	if err != nil {
		return errs.Wrap(errs.ErrStorageFault, "state.ApplyUpdate: persistent tree update", err)
	}

	shadowRoot, err := e.shadow.Update(key, leafHash)
	if err != nil {
		return errs.Wrap(errs.ErrStorageFault, "state.ApplyUpdate: shadow tree update", err)
	}

	if persistentRoot != shadowRoot {
		return errs.Wrap(errs.ErrRootDivergence, "state.ApplyUpdate", fmt.Errorf("persistent root %x != shadow root %x at slot=%d wv=%d", persistentRoot, shadowRoot, u.Slot, u.WriteVersion))
	}

	if err := e.book.SetWatermark(u.Slot, u.WriteVersion); err != nil {
		return errs.Wrap(errs.ErrStorageFault, "state.ApplyUpdate: persist watermark", err)
	}
	if err := e.book.AppendAuditEntry(u.Slot, u.WriteVersion, key, canonical); err != nil {
		return errs.Wrap(errs.ErrStorageFault, "state.ApplyUpdate: append audit entry", err)
	}

	e.watermarkSlot = u.Slot
	e.watermarkWV = u.WriteVersion
	e.lastRootSlot = u.Slot

	metrics.SMTUpdatesTotal.WithLabelValues("applied").Inc()
	metrics.WatermarkSlot.Set(float64(u.Slot))
	metrics.WatermarkWriteVersion.Set(float64(u.WriteVersion))
	metrics.CurrentRootSlot.Set(float64(u.Slot))

	if e.broker != nil {
		e.broker.Publish(rootfeed.RootUpdate{Slot: u.Slot, Root: persistentRoot})
	}
	return nil
}

// advances reports whether (slot, wv) strictly exceeds the watermark
// (lastSlot, lastWV) under (slot, write_version) lexicographic order.
func advances(slot, wv, lastSlot, lastWV uint64) bool {
	if slot != lastSlot {
		return slot > lastSlot
	}
	return wv > lastWV
}

// Root returns the current persistent root hash.
func (e *Engine) Root() ([32]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.persistent.Root()
}

// Watermark returns the current (slot, write_version) watermark. Satisfies
// metrics.StateSource.
func (e *Engine) Watermark() (slot uint64, writeVersion uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.watermarkSlot, e.watermarkWV
}

// RootSlot returns the slot of the most recently committed root. Satisfies
// metrics.StateSource.
func (e *Engine) RootSlot() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastRootSlot
}

// CheckRoots re-reads the durable and shadow roots and compares them,
// without touching the audit log. Used by the periodic reconciler as a
// cheaper, steady-state sibling to StartupReconcile.
func (e *Engine) CheckRoots(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	persistentRoot, err := e.persistent.Root()
	if err != nil {
		return errs.Wrap(errs.ErrStorageFault, "state.CheckRoots: read persistent root", err)
	}
	shadowRoot, err := e.shadow.Root()
	if err != nil {
		return errs.Wrap(errs.ErrStorageFault, "state.CheckRoots: read shadow root", err)
	}
	if persistentRoot != shadowRoot {
		return errs.Wrap(errs.ErrRootDivergence, "state.CheckRoots", fmt.Errorf("persistent root %x != shadow root %x", persistentRoot, shadowRoot))
	}
	return nil
}
