package writerpool

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/meridianchain/stateindexer/pkg/account"
	"github.com/meridianchain/stateindexer/pkg/relstore"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, workers int) (*Pool, *relstore.DataSource, string) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "rel.db")
	db, err := relstore.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	p := New(Config{
		DSN:              dsn,
		Workers:          workers,
		ChannelCapacity:  16,
		StartupBatchSize: 2,
		ReceiveTimeout:   20 * time.Millisecond,
	})
	p.Start()
	t.Cleanup(p.RequestExitAndJoin)

	return p, relstore.NewDataSource(db), dsn
}

func waitForWorkers(t *testing.T, p *Pool, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return p.WorkersInitialized() >= n
	}, time.Second, 5*time.Millisecond)
}

func TestPoolAppliesAccountUpdate(t *testing.T) {
	p, _, dsn := newTestPool(t, 1)
	waitForWorkers(t, p, 1)

	pk := [32]byte{0x01}
	p.Submit(UpdateAccount{Account: account.Update{Pubkey: pk, Slot: 10, WriteVersion: 1, Lamports: 42}})

	db, err := relstore.OpenSession(dsn)
	require.NoError(t, err)
	defer db.Close()

	require.Eventually(t, func() bool {
		var lamports uint64
		err := db.QueryRow(`SELECT lamports FROM account WHERE pubkey = ?`, pk[:]).Scan(&lamports)
		return err == nil && lamports == 42
	}, time.Second, 10*time.Millisecond)
}

func TestPoolStartupBarrier(t *testing.T) {
	p, _, dsn := newTestPool(t, 2)
	waitForWorkers(t, p, 2)

	for i := 0; i < 5; i++ {
		pk := [32]byte{byte(i + 1)}
		p.Submit(UpdateAccount{Account: account.Update{Pubkey: pk, Slot: 1, WriteVersion: 1, Lamports: uint64(i)}, IsStartup: true})
	}

	p.NotifyEndOfStartup()
	require.Equal(t, p.WorkersInitialized(), int(p.startupDoneCount.Load()))

	db, err := relstore.OpenSession(dsn)
	require.NoError(t, err)
	defer db.Close()
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM account`).Scan(&count))
	require.Equal(t, 5, count)
}

func TestPoolChannelDepthAndCapacity(t *testing.T) {
	p, _, _ := newTestPool(t, 1)
	require.Equal(t, 16, p.Capacity())
	require.GreaterOrEqual(t, p.Depth(), 0)
}
