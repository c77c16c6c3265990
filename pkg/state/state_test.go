package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/meridianchain/stateindexer/pkg/account"
	"github.com/meridianchain/stateindexer/pkg/errs"
	"github.com/meridianchain/stateindexer/pkg/smt/boltstore"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	store, err := boltstore.Open(filepath.Join(dir, "smt.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	book, err := OpenBookkeeping(filepath.Join(dir, "book.db"))
	require.NoError(t, err)
	t.Cleanup(func() { book.Close() })

	return New(store, book, nil)
}

func pubkey(b byte) [32]byte {
	var pk [32]byte
	pk[0] = b
	return pk
}

// S1: out-of-order account update. A later call with a smaller write
// version must not overwrite the watermark or the SMT.
func TestApplyUpdateOutOfOrder(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	pk := pubkey(0x01)

	err := e.ApplyUpdate(ctx, account.Update{Pubkey: pk, Lamports: 100, Slot: 10, WriteVersion: 5})
	require.NoError(t, err)

	rootAfterFirst, err := e.Root()
	require.NoError(t, err)

	err = e.ApplyUpdate(ctx, account.Update{Pubkey: pk, Lamports: 50, Slot: 10, WriteVersion: 3})
	require.NoError(t, err)

	rootAfterSecond, err := e.Root()
	require.NoError(t, err)
	require.Equal(t, rootAfterFirst, rootAfterSecond, "stale update must not change the tree")

	slot, wv := e.Watermark()
	require.Equal(t, uint64(10), slot)
	require.Equal(t, uint64(5), wv)
}

// S2: slot < 2 is dropped at the SMT; the watermark stays at zero.
func TestApplyUpdateGenesisSlotDropped(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.ApplyUpdate(ctx, account.Update{Pubkey: pubkey(0x02), Lamports: 1, Slot: 1, WriteVersion: 1})
	require.NoError(t, err)

	slot, wv := e.Watermark()
	require.Equal(t, uint64(0), slot)
	require.Equal(t, uint64(0), wv)

	root, err := e.Root()
	require.NoError(t, err)
	require.NotEqual(t, [32]byte{}, root) // ZeroRoot is non-zero-byte in practice but assert no panic
}

// S3: replaying the identical update twice is a no-op the second time.
func TestApplyUpdateReplayIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	u := account.Update{Pubkey: pubkey(0x03), Lamports: 7, Slot: 10, WriteVersion: 1}

	require.NoError(t, e.ApplyUpdate(ctx, u))
	slot1, wv1 := e.Watermark()
	root1, _ := e.Root()

	require.NoError(t, e.ApplyUpdate(ctx, u))
	slot2, wv2 := e.Watermark()
	root2, _ := e.Root()

	require.Equal(t, slot1, slot2)
	require.Equal(t, wv1, wv2)
	require.Equal(t, root1, root2)
}

// S5: tampering with the persistent store between runs must surface as
// RootDivergence at startup reconciliation, not a silent success.
func TestStartupReconcileDetectsTampering(t *testing.T) {
	dir := t.TempDir()
	smtPath := filepath.Join(dir, "smt.db")
	bookPath := filepath.Join(dir, "book.db")

	store, err := boltstore.Open(smtPath)
	require.NoError(t, err)
	book, err := OpenBookkeeping(bookPath)
	require.NoError(t, err)

	e := New(store, book, nil)
	ctx := context.Background()
	require.NoError(t, e.ApplyUpdate(ctx, account.Update{Pubkey: pubkey(0x04), Lamports: 9, Slot: 10, WriteVersion: 1}))

	require.NoError(t, store.Close())
	require.NoError(t, book.Close())

	// Tamper with one persistent branch node directly.
	tamperedStore, err := boltstore.Open(smtPath)
	require.NoError(t, err)
	var nodeKey, left, right [32]byte
	left[0] = 0xFF
	require.NoError(t, tamperedStore.PutBranch(0, nodeKey, left, right))
	require.NoError(t, tamperedStore.Close())

	reopenedStore, err := boltstore.Open(smtPath)
	require.NoError(t, err)
	defer reopenedStore.Close()
	reopenedBook, err := OpenBookkeeping(bookPath)
	require.NoError(t, err)
	defer reopenedBook.Close()

	e2 := New(reopenedStore, reopenedBook, nil)
	err = e2.StartupReconcile(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, errs.ErrRootDivergence)
}

func TestStartupReconcileSucceedsUntampered(t *testing.T) {
	dir := t.TempDir()
	smtPath := filepath.Join(dir, "smt.db")
	bookPath := filepath.Join(dir, "book.db")

	store, err := boltstore.Open(smtPath)
	require.NoError(t, err)
	book, err := OpenBookkeeping(bookPath)
	require.NoError(t, err)

	e := New(store, book, nil)
	ctx := context.Background()
	require.NoError(t, e.ApplyUpdate(ctx, account.Update{Pubkey: pubkey(0x05), Lamports: 3, Slot: 10, WriteVersion: 1}))
	require.NoError(t, store.Close())
	require.NoError(t, book.Close())

	reopenedStore, err := boltstore.Open(smtPath)
	require.NoError(t, err)
	defer reopenedStore.Close()
	reopenedBook, err := OpenBookkeeping(bookPath)
	require.NoError(t, err)
	defer reopenedBook.Close()

	e2 := New(reopenedStore, reopenedBook, nil)
	require.NoError(t, e2.StartupReconcile(ctx))

	slot, wv := e2.Watermark()
	require.Equal(t, uint64(10), slot)
	require.Equal(t, uint64(1), wv)
}
