package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/meridianchain/stateindexer/pkg/brief"
	"github.com/meridianchain/stateindexer/pkg/log"
	"github.com/meridianchain/stateindexer/pkg/metrics"
	"github.com/meridianchain/stateindexer/pkg/relstore"
	"github.com/meridianchain/stateindexer/pkg/settlement"
	"github.com/meridianchain/stateindexer/pkg/state"
	"github.com/meridianchain/stateindexer/pkg/submitter"
	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Generate briefs from the relational store and anchor them to the settlement service",
	RunE:  runSubmitter,
}

func init() {
	submitCmd.Flags().String("settlement-addr", "127.0.0.1:9090", "Settlement service gRPC address")
	submitCmd.Flags().Duration("poll-interval", time.Second, "Sleep between iterations once caught up with the relational store")
}

func runSubmitter(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	relDSN, _ := cmd.Flags().GetString("relational-dsn")
	adminAddr, _ := cmd.Flags().GetString("admin-addr")
	settlementAddr, _ := cmd.Flags().GetString("settlement-addr")
	pollInterval, _ := cmd.Flags().GetDuration("poll-interval")

	logger := log.WithComponent("submit")
	metrics.SetVersion(Version)

	db, err := relstore.Open(relDSN)
	if err != nil {
		return fmt.Errorf("opening relational store: %w", err)
	}
	defer db.Close()

	book, err := state.OpenBookkeeping(filepath.Join(dataDir, "bookkeeping.db"))
	if err != nil {
		return fmt.Errorf("opening bookkeeping store: %w", err)
	}
	defer book.Close()

	settlementClient, err := settlement.Dial(settlementAddr)
	if err != nil {
		return fmt.Errorf("dialing settlement service: %w", err)
	}
	defer settlementClient.Close()

	dataSource := relstore.NewDataSource(db)
	store := brief.NewStore(db)
	maxSlot := func() (uint64, error) { return relstore.MaxFinalizedSlot(db) }

	driver := submitter.New(settlementClient, book, store, dataSource, maxSlot, pollInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := metrics.NewCollector(nil, nil, driver)
	collector.Start()
	defer collector.Stop()

	stopAdmin := startAdminServer(adminAddr)
	defer stopAdmin()

	errCh := make(chan error, 1)
	go func() { errCh <- driver.Run(ctx) }()

	metrics.RegisterComponent("submitter", true, "")
	logger.Info().
		Str("settlement_addr", settlementAddr).
		Str("relational_dsn", relDSN).
		Msg("submission driver running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutting down")
		cancel()
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil {
			metrics.RegisterComponent("submitter", false, err.Error())
		}
		return err
	}
}
