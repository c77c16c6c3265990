package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/meridianchain/stateindexer/pkg/ingress"
	"github.com/meridianchain/stateindexer/pkg/log"
	"github.com/meridianchain/stateindexer/pkg/metrics"
	"github.com/meridianchain/stateindexer/pkg/reconciler"
	"github.com/meridianchain/stateindexer/pkg/relstore"
	"github.com/meridianchain/stateindexer/pkg/rootfeed"
	"github.com/meridianchain/stateindexer/pkg/smt/boltstore"
	"github.com/meridianchain/stateindexer/pkg/state"
	"github.com/meridianchain/stateindexer/pkg/writerpool"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the event ingress, writer pool, and authenticated state engine",
	RunE:  runIndexer,
}

func init() {
	runCmd.Flags().Int("workers", writerpool.DefaultWorkers, "Writer pool worker count")
	runCmd.Flags().Int("channel-capacity", writerpool.DefaultChannelCapacity, "Writer pool channel capacity")
	runCmd.Flags().Int("startup-batch-size", writerpool.DefaultStartupBatchSize, "Startup bulk-insert batch size")
	runCmd.Flags().Duration("receive-timeout", writerpool.DefaultReceiveTimeout, "Worker receive timeout / cancellation granularity")
	runCmd.Flags().Bool("panic-on-db-errors", false, "Abort the process on any writer pool DB error")
	runCmd.Flags().Bool("historical-mode", true, "Append rejected out-of-order writes to the account_audit table")
	runCmd.Flags().Duration("reconcile-interval", 30*time.Second, "Periodic root-consistency check interval")
}

func runIndexer(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	relDSN, _ := cmd.Flags().GetString("relational-dsn")
	adminAddr, _ := cmd.Flags().GetString("admin-addr")
	workers, _ := cmd.Flags().GetInt("workers")
	chanCap, _ := cmd.Flags().GetInt("channel-capacity")
	batchSize, _ := cmd.Flags().GetInt("startup-batch-size")
	recvTimeout, _ := cmd.Flags().GetDuration("receive-timeout")
	panicOnDBErrors, _ := cmd.Flags().GetBool("panic-on-db-errors")
	historicalMode, _ := cmd.Flags().GetBool("historical-mode")
	reconcileInterval, _ := cmd.Flags().GetDuration("reconcile-interval")

	logger := log.WithComponent("main")
	metrics.SetVersion(Version)

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	smtStore, err := boltstore.Open(filepath.Join(dataDir, "smt.db"))
	if err != nil {
		return fmt.Errorf("opening SMT store: %w", err)
	}
	defer smtStore.Close()

	book, err := state.OpenBookkeeping(filepath.Join(dataDir, "bookkeeping.db"))
	if err != nil {
		return fmt.Errorf("opening bookkeeping store: %w", err)
	}
	defer book.Close()

	if _, err := relstore.Open(relDSN); err != nil {
		return fmt.Errorf("applying relational schema: %w", err)
	}

	broker := rootfeed.NewBroker()
	broker.Start()
	defer broker.Stop()

	engine := state.New(smtStore, book, broker)
	ctx := context.Background()
	if err := engine.StartupReconcile(ctx); err != nil {
		metrics.RegisterComponent("state", false, err.Error())
		return fmt.Errorf("startup reconciliation failed: %w", err)
	}
	metrics.RegisterComponent("state", true, "")

	pool := writerpool.New(writerpool.Config{
		DSN:              relDSN,
		Workers:          workers,
		ChannelCapacity:  chanCap,
		StartupBatchSize: batchSize,
		ReceiveTimeout:   recvTimeout,
		PanicOnDBErrors:  panicOnDBErrors,
		HistoricalMode:   historicalMode,
	})
	pool.Start()
	metrics.RegisterComponent("writerpool", true, "")
	defer pool.RequestExitAndJoin()

	ig := ingress.New(pool, engine)
	ingressCtx, cancelIngress := context.WithCancel(context.Background())
	go ig.Run(ingressCtx)
	metrics.RegisterComponent("ingress", true, "")
	defer func() {
		cancelIngress()
		ig.WaitForDone(5 * time.Second)
	}()

	recon := reconciler.New(engine, reconcileInterval)
	recon.Start()
	defer recon.Stop()

	collector := metrics.NewCollector(engine, pool, nil)
	collector.Start()
	defer collector.Stop()

	stopAdmin := startAdminServer(adminAddr)
	defer stopAdmin()

	logger.Info().
		Int("workers", workers).
		Str("data_dir", dataDir).
		Str("relational_dsn", relDSN).
		Msg("indexer running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	return nil
}
