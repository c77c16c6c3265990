package relstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/meridianchain/stateindexer/pkg/account"
	"github.com/meridianchain/stateindexer/pkg/brief"
)

// DataSource implements brief.DataSource over the relational store: the
// brief generator reads committed rows only, never the authenticated tree
// directly, so it can run as a loop separate from the state engine.
type DataSource struct {
	db *sql.DB
}

// NewDataSource wraps db for brief generation. db should be a connection
// (or pool) distinct from any single writer-pool worker's session.
func NewDataSource(db *sql.DB) *DataSource {
	return &DataSource{db: db}
}

// RootAtSlot reads the merkle_tree row for slot, if any.
func (d *DataSource) RootAtSlot(slot uint64) ([32]byte, bool, error) {
	var root []byte
	err := d.db.QueryRow(`SELECT root_hash FROM merkle_tree WHERE slot = ?`, slot).Scan(&root)
	if err == sql.ErrNoRows {
		return [32]byte{}, false, nil
	}
	if err != nil {
		return [32]byte{}, false, fmt.Errorf("relstore.DataSource.RootAtSlot(%d): %w", slot, err)
	}
	var out [32]byte
	copy(out[:], root)
	return out, true, nil
}

// modifiedAccountRow is the JSON shape persisted in
// transaction_log.modified_accounts; account.Update's byte slices round
// trip through JSON as base64, which encoding/json does natively.
type modifiedAccountRow struct {
	Pubkey       [32]byte `json:"pubkey"`
	Owner        [32]byte `json:"owner"`
	Lamports     uint64   `json:"lamports"`
	RentEpoch    uint64   `json:"rent_epoch"`
	WriteVersion uint64   `json:"write_version"`
	Slot         uint64   `json:"slot"`
	Executable   bool     `json:"executable"`
	Data         []byte   `json:"data"`
	TxnSignature []byte   `json:"txn_signature"`
}

// EncodeModifiedAccounts is the inverse of the decode path used by
// TransactionsAtSlot; the writer pool calls this when logging a
// transaction row.
func EncodeModifiedAccounts(accounts []account.Update) ([]byte, error) {
	rows := make([]modifiedAccountRow, len(accounts))
	for i, a := range accounts {
		rows[i] = modifiedAccountRow{
			Pubkey: a.Pubkey, Owner: a.Owner, Lamports: a.Lamports,
			RentEpoch: a.RentEpoch, WriteVersion: a.WriteVersion, Slot: a.Slot,
			Executable: a.Executable, Data: a.Data, TxnSignature: a.TxnSignature,
		}
	}
	return json.Marshal(rows)
}

func decodeModifiedAccounts(b []byte) ([]account.Update, error) {
	var rows []modifiedAccountRow
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, err
	}
	out := make([]account.Update, len(rows))
	for i, r := range rows {
		out[i] = account.Update{
			Pubkey: r.Pubkey, Owner: r.Owner, Lamports: r.Lamports,
			RentEpoch: r.RentEpoch, WriteVersion: r.WriteVersion, Slot: r.Slot,
			Executable: r.Executable, Data: r.Data, TxnSignature: r.TxnSignature,
		}
	}
	return out, nil
}

// TransactionsAtSlot returns slot's transactions in write_version order,
// the order the brief generator folds them in.
func (d *DataSource) TransactionsAtSlot(slot uint64) ([]brief.Transaction, error) {
	rows, err := d.db.Query(`
		SELECT signature, modified_accounts FROM transaction_log
		WHERE slot = ? ORDER BY write_version ASC`, slot)
	if err != nil {
		return nil, fmt.Errorf("relstore.DataSource.TransactionsAtSlot(%d): %w", slot, err)
	}
	defer rows.Close()

	var out []brief.Transaction
	for rows.Next() {
		var sig, raw []byte
		if err := rows.Scan(&sig, &raw); err != nil {
			return nil, fmt.Errorf("relstore.DataSource.TransactionsAtSlot(%d): scan: %w", slot, err)
		}
		accounts, err := decodeModifiedAccounts(raw)
		if err != nil {
			return nil, fmt.Errorf("relstore.DataSource.TransactionsAtSlot(%d): decode: %w", slot, err)
		}
		out = append(out, brief.Transaction{Signature: sig, ModifiedAccounts: accounts})
	}
	return out, rows.Err()
}

// MaxFinalizedSlot returns the highest slot with committed block metadata,
// the submission driver's "M" in its resumption loop.
func MaxFinalizedSlot(db *sql.DB) (uint64, error) {
	var m uint64
	if err := db.QueryRow(maxFinalizedSlotSQL).Scan(&m); err != nil {
		return 0, fmt.Errorf("relstore.MaxFinalizedSlot: %w", err)
	}
	return m, nil
}
