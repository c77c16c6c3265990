package writerpool

import (
	"time"

	"github.com/meridianchain/stateindexer/pkg/account"
	"github.com/meridianchain/stateindexer/pkg/errs"
	"github.com/meridianchain/stateindexer/pkg/log"
	"github.com/meridianchain/stateindexer/pkg/metrics"
	"github.com/meridianchain/stateindexer/pkg/relstore"
	"github.com/rs/zerolog"
)

// worker owns one relational-store session and prepared-statement cache.
// Sessions are never shared across workers.
type worker struct {
	id    int
	pool  *Pool
	db    *relstoreDB
	logger zerolog.Logger

	startupBatch []UpdateAccount
	flushedStartup bool
}

// relstoreDB bundles a worker's own connection and its prepared statements
// so worker.run has one thing to tear down on exit.
type relstoreDB struct {
	stmts *relstore.Statements
	close func() error
}

func (w *worker) run() {
	defer w.pool.wg.Done()
	w.logger = log.WithWorker(w.id)

	db, err := relstore.OpenSession(w.pool.cfg.DSN)
	if err != nil {
		w.logger.Error().Err(err).Msg("worker failed to open relational session")
		if w.pool.cfg.PanicOnDBErrors {
			panic(err)
		}
		return
	}
	stmts, err := relstore.Prepare(db)
	if err != nil {
		w.logger.Error().Err(err).Msg("worker failed to prepare statements")
		db.Close()
		if w.pool.cfg.PanicOnDBErrors {
			panic(err)
		}
		return
	}
	w.db = &relstoreDB{stmts: stmts, close: db.Close}
	defer func() {
		stmts.Close()
		w.db.close()
	}()

	w.pool.initializedWorkerCount.Add(1)
	metrics.WorkersInitialized.Set(float64(w.pool.initializedWorkerCount.Load()))

	for {
		select {
		case item := <-w.pool.ch:
			w.dispatch(item)
		case <-time.After(w.pool.cfg.ReceiveTimeout):
			if w.pool.exitWorker.Load() {
				w.flushStartupBatch()
				return
			}
			if w.pool.startupDone.Load() && !w.flushedStartup {
				w.flushStartupBatch()
				w.flushedStartup = true
				w.pool.startupDoneCount.Add(1)
				metrics.StartupDoneCount.Add(1)
			}
		}
	}
}

func (w *worker) dispatch(item WorkItem) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.WorkItemDuration, kindOf(item))

	var err error
	switch it := item.(type) {
	case UpdateAccount:
		err = w.handleUpdateAccount(it)
	case UpdateSlot:
		err = w.handleUpdateSlot(it)
	case LogTransaction:
		err = w.handleLogTransaction(it)
	case UpdateBlock:
		err = w.handleUpdateBlock(it)
	case UpdateEntry:
		err = w.handleUpdateEntry(it)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		w.logger.Error().Err(err).Str("kind", kindOf(item)).Msg("writer pool item failed")
		if w.pool.cfg.PanicOnDBErrors {
			panic(err)
		}
	}
	metrics.WorkItemsProcessedTotal.WithLabelValues(kindOf(item), outcome).Inc()
}

func kindOf(item WorkItem) string {
	switch item.(type) {
	case UpdateAccount:
		return "update_account"
	case UpdateSlot:
		return "update_slot"
	case LogTransaction:
		return "log_transaction"
	case UpdateBlock:
		return "update_block"
	case UpdateEntry:
		return "update_entry"
	default:
		return "unknown"
	}
}

func (w *worker) handleUpdateAccount(it UpdateAccount) error {
	if it.IsStartup {
		w.startupBatch = append(w.startupBatch, it)
		if len(w.startupBatch) >= w.pool.cfg.StartupBatchSize {
			return w.flushStartupBatchLocked()
		}
		return nil
	}
	return w.upsertAccount(it.Account)
}

func (w *worker) upsertAccount(a account.Update) error {
	res, err := w.db.stmts.UpsertAccount.Exec(
		a.Pubkey[:], a.Slot, a.Owner[:], a.Lamports, a.Executable, a.RentEpoch, a.Data, a.WriteVersion, a.TxnSignature,
	)
	if err != nil {
		return errs.Wrap(errs.ErrAccountsUpdate, "writerpool.upsertAccount", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.ErrAccountsUpdate, "writerpool.upsertAccount", err)
	}
	if n == 0 && w.pool.cfg.HistoricalMode {
		if _, err := w.db.stmts.InsertAccountAudit.Exec(
			a.Pubkey[:], a.Slot, a.Owner[:], a.Lamports, a.Executable, a.RentEpoch, a.Data, a.WriteVersion, a.TxnSignature,
		); err != nil {
			return errs.Wrap(errs.ErrAccountsUpdate, "writerpool.upsertAccount.audit", err)
		}
		metrics.AccountAuditRowsTotal.Inc()
	}
	return nil
}

// flushStartupBatch flushes whatever is buffered, ignoring the usual batch
// size threshold; called from the idle-timeout path and at exit.
func (w *worker) flushStartupBatch() {
	if len(w.startupBatch) == 0 {
		return
	}
	if err := w.flushStartupBatchLocked(); err != nil {
		w.logger.Error().Err(err).Msg("startup batch flush failed")
	}
}

func (w *worker) flushStartupBatchLocked() error {
	if len(w.startupBatch) == 0 {
		return nil
	}
	query := relstore.BuildBulkAccountUpsert(len(w.startupBatch))
	args := make([]any, 0, len(w.startupBatch)*9)
	for _, it := range w.startupBatch {
		a := it.Account
		args = append(args, a.Pubkey[:], a.Slot, a.Owner[:], a.Lamports, a.Executable, a.RentEpoch, a.Data, a.WriteVersion, a.TxnSignature)
	}
	if _, err := w.db.stmts.DB().Exec(query, args...); err != nil {
		return errs.Wrap(errs.ErrAccountsUpdate, "writerpool.flushStartupBatch", err)
	}
	w.startupBatch = w.startupBatch[:0]
	return nil
}

func (w *worker) handleUpdateSlot(it UpdateSlot) error {
	var err error
	if it.Parent != nil {
		_, err = w.db.stmts.UpsertSlotWithParent.Exec(it.Slot, *it.Parent, it.Status)
	} else {
		_, err = w.db.stmts.UpsertSlotNoParent.Exec(it.Slot, it.Status)
	}
	if err != nil {
		return errs.Wrap(errs.ErrSlotStatusUpdate, "writerpool.handleUpdateSlot", err)
	}
	return nil
}

func (w *worker) handleLogTransaction(it LogTransaction) error {
	encoded, err := relstore.EncodeModifiedAccounts(it.ModifiedAccounts)
	if err != nil {
		return errs.Wrap(errs.ErrEntryUpdate, "writerpool.handleLogTransaction.encode", err)
	}
	if _, err := w.db.stmts.InsertTransactionLog.Exec(it.Slot, it.Signature, it.WriteVersion, it.IsVote, it.Success, encoded); err != nil {
		return errs.Wrap(errs.ErrEntryUpdate, "writerpool.handleLogTransaction", err)
	}
	return nil
}

func (w *worker) handleUpdateBlock(it UpdateBlock) error {
	if _, err := w.db.stmts.UpsertBlockMetadata.Exec(it.Slot, it.Blockhash, it.Rewards, it.BlockTime, it.BlockHeight); err != nil {
		return errs.Wrap(errs.ErrBlockMetadata, "writerpool.handleUpdateBlock", err)
	}
	return nil
}

func (w *worker) handleUpdateEntry(it UpdateEntry) error {
	if _, err := w.db.stmts.InsertEntry.Exec(it.Slot, it.EntryIndex, it.NumHashes, it.Hash, it.ExecutedTransactionCount, it.StartingTransactionIndex); err != nil {
		return errs.Wrap(errs.ErrEntryUpdate, "writerpool.handleUpdateEntry", err)
	}
	return nil
}
