// Package submitter implements the resumable brief submission driver
// described in §4.7: it reads the highest finalised slot from the
// relational store, generates and persists briefs for the unsubmitted
// window, and anchors each to the settlement service, retrying failures on
// the next iteration rather than aborting.
package submitter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/meridianchain/stateindexer/pkg/brief"
	"github.com/meridianchain/stateindexer/pkg/log"
	"github.com/meridianchain/stateindexer/pkg/metrics"
	sproto "github.com/meridianchain/stateindexer/pkg/settlement/proto"
	"github.com/rs/zerolog"
)

// genesisFloor matches the state engine's genesis boundary: briefs are
// never generated for slot < 2.
const genesisFloor = 2

// SettlementService is the narrow collaborator surface the driver needs;
// satisfied by *settlement.Client.
type SettlementService interface {
	EnsureStateAccount(ctx context.Context) error
	EnsureTallyAccount(ctx context.Context) (lastSubmittedSlot uint64, err error)
	IsBriefAccountExist(ctx context.Context, slot uint64) (bool, error)
	CreateBriefAccount(ctx context.Context, b sproto.BriefAccount, attemptID string) error
}

// LocalLedger is the driver's local idempotence hook: the
// "slot" -> last_submitted_local key in the state engine's bookkeeping
// store.
type LocalLedger interface {
	GetLastSubmittedSlot() (uint64, error)
	SetLastSubmittedSlot(slot uint64) error
}

// BriefStore persists generated briefs, keyed by slot.
type BriefStore interface {
	Save(ctx context.Context, b brief.Brief) error
}

// MaxFinalizedSlotFunc returns the highest slot with committed block
// metadata in the relational store.
type MaxFinalizedSlotFunc func() (uint64, error)

// Driver is the brief submission driver. It satisfies metrics.SubmitterSource.
type Driver struct {
	settlement SettlementService
	ledger     LocalLedger
	store      BriefStore
	dataSource brief.DataSource
	maxSlot    MaxFinalizedSlotFunc
	pollEvery  time.Duration
	logger     zerolog.Logger

	lastSubmitted uint64
}

// New builds a driver. pollEvery is the sleep between iterations when the
// driver is caught up with the relational store (spec default: 1s).
func New(settlement SettlementService, ledger LocalLedger, store BriefStore, dataSource brief.DataSource, maxSlot MaxFinalizedSlotFunc, pollEvery time.Duration) *Driver {
	if pollEvery <= 0 {
		pollEvery = time.Second
	}
	return &Driver{
		settlement: settlement,
		ledger:     ledger,
		store:      store,
		dataSource: dataSource,
		maxSlot:    maxSlot,
		pollEvery:  pollEvery,
		logger:     log.WithComponent("submitter"),
	}
}

// LastSubmittedSlot returns the highest slot locally recorded as
// submitted. Satisfies metrics.SubmitterSource.
func (d *Driver) LastSubmittedSlot() uint64 {
	return d.lastSubmitted
}

// Run executes the driver's bring-up and main loop until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.settlement.EnsureStateAccount(ctx); err != nil {
		return err
	}
	onChainSlot, err := d.settlement.EnsureTallyAccount(ctx)
	if err != nil {
		return err
	}

	localSlot, err := d.ledger.GetLastSubmittedSlot()
	if err != nil {
		return err
	}
	// The generation window always starts from the local watermark, not
	// the on-chain one: on-chain presence only gates individual
	// submissions (submitBrief's IsBriefAccountExist check), so a brief
	// already anchored on-chain still gets regenerated and persisted
	// locally on resume.
	d.logger.Info().Uint64("local_slot", localSlot).Uint64("on_chain_slot", onChainSlot).Msg("submission driver starting")
	d.lastSubmitted = localSlot
	metrics.LastSubmittedSlot.Set(float64(localSlot))

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		maxFinalized, err := d.maxSlot()
		if err != nil {
			d.logger.Error().Err(err).Msg("failed to read max finalized slot")
			d.sleep(ctx)
			continue
		}

		if maxFinalized < 1 || maxFinalized-1 <= d.lastSubmitted {
			d.sleep(ctx)
			continue
		}

		start := d.lastSubmitted + 1
		if start < genesisFloor {
			start = genesisFloor
		}
		end := maxFinalized - 1

		d.processWindow(ctx, start, end)
	}
}

func (d *Driver) sleep(ctx context.Context) {
	select {
	case <-time.After(d.pollEvery):
	case <-ctx.Done():
	}
}

// processWindow generates and submits briefs for [start, end], advancing
// the contiguous local watermark only as far as submissions succeed.
func (d *Driver) processWindow(ctx context.Context, start, end uint64) {
	contiguous := true
	for slot := start; slot <= end; slot++ {
		if ctx.Err() != nil {
			return
		}

		b, err := brief.Generate(d.dataSource, slot)
		if err != nil {
			d.logger.Error().Err(err).Uint64("slot", slot).Msg("brief generation failed")
			contiguous = false
			continue
		}
		metrics.BriefsGeneratedTotal.Inc()

		if err := d.store.Save(ctx, b); err != nil {
			d.logger.Error().Err(err).Uint64("slot", slot).Msg("brief persistence failed")
			contiguous = false
			continue
		}

		if err := d.submitBrief(ctx, b); err != nil {
			d.logger.Error().Err(err).Uint64("slot", slot).Msg("brief submission failed, will retry next iteration")
			metrics.BriefsSubmittedTotal.WithLabelValues("failed").Inc()
			contiguous = false
			continue
		}

		if contiguous {
			d.lastSubmitted = slot
			if err := d.ledger.SetLastSubmittedSlot(slot); err != nil {
				d.logger.Error().Err(err).Uint64("slot", slot).Msg("failed to persist local submission watermark")
			}
			metrics.LastSubmittedSlot.Set(float64(slot))
		}
	}
}

func (d *Driver) submitBrief(ctx context.Context, b brief.Brief) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.BriefSubmissionDuration)

	exists, err := d.settlement.IsBriefAccountExist(ctx, b.Slot)
	if err != nil {
		return err
	}
	if exists {
		metrics.BriefsSubmittedTotal.WithLabelValues("already_present").Inc()
		return nil
	}

	wire := sproto.BriefAccount{
		Slot:              b.Slot,
		RootHash:          b.RootHash[:],
		HashAccount:       b.HashAccount[:],
		TransactionNumber: b.TransactionNumber,
	}
	if err := d.settlement.CreateBriefAccount(ctx, wire, uuid.NewString()); err != nil {
		return err
	}
	metrics.BriefsSubmittedTotal.WithLabelValues("submitted").Inc()
	return nil
}
