// Package reconciler runs a periodic background check that the durable and
// in-memory copies of the authenticated state tree still agree, independent
// of the one-shot check the state engine performs at startup.
package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/meridianchain/stateindexer/pkg/errs"
	"github.com/meridianchain/stateindexer/pkg/log"
	"github.com/meridianchain/stateindexer/pkg/metrics"
	"github.com/rs/zerolog"
)

// RootVerifier is implemented by the authenticated state engine. CheckRoots
// recomputes both tree roots and returns an error (typically
// errs.ErrRootDivergence) if they disagree.
type RootVerifier interface {
	CheckRoots(ctx context.Context) error
}

// Reconciler periodically re-verifies that the durable SMT and its in-memory
// shadow still produce the same root hash.
type Reconciler struct {
	verifier RootVerifier
	interval time.Duration
	logger   zerolog.Logger
	mu       sync.Mutex
	stopCh   chan struct{}
}

// New creates a reconciler over the given verifier with the given check
// interval (spec default: 30s).
func New(verifier RootVerifier, interval time.Duration) *Reconciler {
	return &Reconciler{
		verifier: verifier,
		interval: interval,
		logger:   log.WithComponent("reconciler"),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the reconciliation loop.
func (r *Reconciler) Start() {
	go r.run()
}

// Stop stops the reconciler.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.interval).Msg("root reconciler started")

	for {
		select {
		case <-ticker.C:
			r.reconcile()
		case <-r.stopCh:
			r.logger.Info().Msg("root reconciler stopped")
			return
		}
	}
}

func (r *Reconciler) reconcile() {
	r.mu.Lock()
	defer r.mu.Unlock()

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	if err := r.verifier.CheckRoots(ctx); err != nil {
		if errors.Is(err, errs.ErrRootDivergence) {
			metrics.RootDivergenceTotal.Inc()
			r.logger.Error().Err(err).Msg("root divergence detected during periodic reconciliation")
			return
		}
		r.logger.Error().Err(err).Msg("root reconciliation cycle failed")
	}
}
