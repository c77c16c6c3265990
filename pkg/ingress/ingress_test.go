package ingress

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/meridianchain/stateindexer/pkg/account"
	"github.com/meridianchain/stateindexer/pkg/relstore"
	"github.com/meridianchain/stateindexer/pkg/writerpool"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu      sync.Mutex
	applied []account.Update
}

func (f *fakeEngine) ApplyUpdate(ctx context.Context, u account.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, u)
	return nil
}

func (f *fakeEngine) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}

func newTestIngress(t *testing.T) (*Ingress, *fakeEngine) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "rel.db")
	db, err := relstore.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pool := writerpool.New(writerpool.Config{DSN: dsn, Workers: 1, ChannelCapacity: 64, ReceiveTimeout: 20 * time.Millisecond})
	pool.Start()
	t.Cleanup(pool.RequestExitAndJoin)

	engine := &fakeEngine{}
	ig := New(pool, engine)
	ctx, cancel := context.WithCancel(context.Background())
	go ig.Run(ctx)
	t.Cleanup(cancel)

	return ig, engine
}

func TestUpdateAccountDropsInternalMutationsOutsideStartup(t *testing.T) {
	ig, engine := newTestIngress(t)

	err := ig.UpdateAccount(account.Update{Pubkey: [32]byte{0x01}, TxnSignature: nil}, false)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, engine.count())
}

func TestUpdateAccountAdmitsUserMutations(t *testing.T) {
	ig, engine := newTestIngress(t)

	err := ig.UpdateAccount(account.Update{Pubkey: [32]byte{0x02}, TxnSignature: []byte("sig")}, false)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return engine.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestUpdateAccountAdmitsStartupBookkeepingMutations(t *testing.T) {
	ig, engine := newTestIngress(t)

	err := ig.UpdateAccount(account.Update{Pubkey: [32]byte{0x03}, TxnSignature: nil}, true)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return engine.count() == 1 }, time.Second, 5*time.Millisecond)
}
