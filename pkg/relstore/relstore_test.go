package relstore

import (
	"path/filepath"
	"testing"

	"github.com/meridianchain/stateindexer/pkg/account"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) (*Statements, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rel.db")
	db, err := Open(path)
	require.NoError(t, err)
	stmts, err := Prepare(db)
	require.NoError(t, err)
	return stmts, func() { stmts.Close(); db.Close() }
}

func TestUpsertAccountLastWriterWins(t *testing.T) {
	s, cleanup := testDB(t)
	defer cleanup()

	pk := []byte{0x01}
	_, err := s.UpsertAccount.Exec(pk, 10, []byte{0x02}, uint64(100), false, uint64(0), []byte("a"), uint64(5), []byte(nil))
	require.NoError(t, err)

	res, err := s.UpsertAccount.Exec(pk, 10, []byte{0x02}, uint64(50), false, uint64(0), []byte("b"), uint64(3), []byte(nil))
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	require.Equal(t, int64(0), n, "stale write_version must not update the row")

	var slot, wv uint64
	require.NoError(t, s.SelectAccount.QueryRow(pk).Scan(&slot, &wv))
	require.Equal(t, uint64(10), slot)
	require.Equal(t, uint64(5), wv)
}

func TestUpsertAccountNewerSlotWins(t *testing.T) {
	s, cleanup := testDB(t)
	defer cleanup()

	pk := []byte{0x02}
	_, err := s.UpsertAccount.Exec(pk, 10, []byte{0x02}, uint64(100), false, uint64(0), []byte("a"), uint64(5), []byte(nil))
	require.NoError(t, err)

	res, err := s.UpsertAccount.Exec(pk, 11, []byte{0x02}, uint64(200), false, uint64(0), []byte("c"), uint64(1), []byte(nil))
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestDataSourceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rel.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO merkle_tree (slot, root_hash, updated_on) VALUES (?, ?, CURRENT_TIMESTAMP)`, 5, []byte{0xAA})
	require.NoError(t, err)

	accounts := []account.Update{{Pubkey: [32]byte{0x01}, TxnSignature: []byte("sig")}}
	encoded, err := EncodeModifiedAccounts(accounts)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO transaction_log (slot, signature, write_version, is_vote, success, modified_accounts, updated_on)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`, 5, []byte("sig"), 1, false, true, encoded)
	require.NoError(t, err)

	ds := NewDataSource(db)
	root, ok, err := ds.RootAtSlot(5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, byte(0xAA), root[0])

	txs, err := ds.TransactionsAtSlot(5)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, accounts[0].Pubkey, txs[0].ModifiedAccounts[0].Pubkey)
}
