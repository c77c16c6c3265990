package relstore

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/meridianchain/stateindexer/pkg/errs"
)

// upsertAccountPredicate is the last-writer-wins conflict predicate shared
// by the single-row upsert and the startup bulk insert: a row is only
// replaced by a strictly newer (slot, write_version).
const upsertAccountPredicate = `acct.slot < excluded.slot OR (acct.slot = excluded.slot AND acct.write_version < excluded.write_version)`

const upsertAccountSQL = `
INSERT INTO account AS acct (pubkey, slot, owner, lamports, executable, rent_epoch, data, write_version, updated_on, txn_signature)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, ?)
ON CONFLICT (pubkey) DO UPDATE SET
	slot = excluded.slot,
	owner = excluded.owner,
	lamports = excluded.lamports,
	executable = excluded.executable,
	rent_epoch = excluded.rent_epoch,
	data = excluded.data,
	write_version = excluded.write_version,
	updated_on = excluded.updated_on,
	txn_signature = excluded.txn_signature
WHERE ` + upsertAccountPredicate

const insertAccountAuditSQL = `
INSERT INTO account_audit (pubkey, slot, owner, lamports, executable, rent_epoch, data, write_version, updated_on, txn_signature)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, ?)`

const selectAccountSQL = `
SELECT slot, write_version FROM account WHERE pubkey = ?`

const upsertSlotWithParentSQL = `
INSERT INTO slot (slot, parent, status, updated_on)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (slot) DO UPDATE SET parent = excluded.parent, status = excluded.status, updated_on = excluded.updated_on`

const upsertSlotNoParentSQL = `
INSERT INTO slot (slot, parent, status, updated_on)
VALUES (?, NULL, ?, CURRENT_TIMESTAMP)
ON CONFLICT (slot) DO UPDATE SET status = excluded.status, updated_on = excluded.updated_on`

const insertTransactionLogSQL = `
INSERT INTO transaction_log (slot, signature, write_version, is_vote, success, modified_accounts, updated_on)
VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (slot, signature) DO UPDATE SET
	write_version = excluded.write_version,
	is_vote = excluded.is_vote,
	success = excluded.success,
	modified_accounts = excluded.modified_accounts,
	updated_on = excluded.updated_on`

const upsertBlockMetadataSQL = `
INSERT INTO block_metadata (slot, blockhash, rewards, block_time, block_height, updated_on)
VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (slot) DO UPDATE SET
	blockhash = excluded.blockhash,
	rewards = excluded.rewards,
	block_time = excluded.block_time,
	block_height = excluded.block_height,
	updated_on = excluded.updated_on`

const insertEntrySQL = `
INSERT INTO entry (slot, entry_index, num_hashes, hash, executed_transaction_count, starting_transaction_index, updated_on)
VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (slot, entry_index) DO UPDATE SET
	num_hashes = excluded.num_hashes,
	hash = excluded.hash,
	executed_transaction_count = excluded.executed_transaction_count,
	starting_transaction_index = excluded.starting_transaction_index,
	updated_on = excluded.updated_on`

const upsertMerkleRootSQL = `
INSERT INTO merkle_tree (slot, root_hash, updated_on)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (slot) DO UPDATE SET root_hash = excluded.root_hash, updated_on = excluded.updated_on`

const maxFinalizedSlotSQL = `SELECT COALESCE(MAX(slot), 0) FROM block_metadata`

// Statements is a worker's prepared-statement cache: one *sql.Stmt per
// query, bound to that worker's own *sql.DB session.
type Statements struct {
	UpsertAccount      *sql.Stmt
	InsertAccountAudit *sql.Stmt
	SelectAccount      *sql.Stmt
	UpsertSlotWithParent *sql.Stmt
	UpsertSlotNoParent   *sql.Stmt
	InsertTransactionLog *sql.Stmt
	UpsertBlockMetadata  *sql.Stmt
	InsertEntry          *sql.Stmt
	UpsertMerkleRoot     *sql.Stmt
	MaxFinalizedSlot     *sql.Stmt

	db *sql.DB
}

// Prepare builds the statement cache for db. It is called once per worker
// session at worker bring-up.
func Prepare(db *sql.DB) (*Statements, error) {
	s := &Statements{db: db}
	var err error
	for _, p := range []struct {
		dst **sql.Stmt
		sql string
	}{
		{&s.UpsertAccount, upsertAccountSQL},
		{&s.InsertAccountAudit, insertAccountAuditSQL},
		{&s.SelectAccount, selectAccountSQL},
		{&s.UpsertSlotWithParent, upsertSlotWithParentSQL},
		{&s.UpsertSlotNoParent, upsertSlotNoParentSQL},
		{&s.InsertTransactionLog, insertTransactionLogSQL},
		{&s.UpsertBlockMetadata, upsertBlockMetadataSQL},
		{&s.InsertEntry, insertEntrySQL},
		{&s.UpsertMerkleRoot, upsertMerkleRootSQL},
		{&s.MaxFinalizedSlot, maxFinalizedSlotSQL},
	} {
		*p.dst, err = db.Prepare(p.sql)
		if err != nil {
			s.Close()
			return nil, errs.Wrap(errs.ErrDataSchema, "relstore.Prepare", err)
		}
	}
	return s, nil
}

// DB returns the underlying connection, for queries that can't be
// prepared ahead of time (the startup batcher's variable-width bulk insert).
func (s *Statements) DB() *sql.DB {
	return s.db
}

// Close releases every prepared statement. It does not close the
// underlying *sql.DB, which the caller owns.
func (s *Statements) Close() {
	for _, stmt := range []*sql.Stmt{
		s.UpsertAccount, s.InsertAccountAudit, s.SelectAccount,
		s.UpsertSlotWithParent, s.UpsertSlotNoParent, s.InsertTransactionLog,
		s.UpsertBlockMetadata, s.InsertEntry, s.UpsertMerkleRoot, s.MaxFinalizedSlot,
	} {
		if stmt != nil {
			stmt.Close()
		}
	}
}

// BuildBulkAccountUpsert returns a multi-row INSERT for n account rows that
// reuses upsertAccountPredicate, for the startup batcher's flush path.
func BuildBulkAccountUpsert(n int) string {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = "(?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, ?)"
	}
	return fmt.Sprintf(`
INSERT INTO account AS acct (pubkey, slot, owner, lamports, executable, rent_epoch, data, write_version, updated_on, txn_signature)
VALUES %s
ON CONFLICT (pubkey) DO UPDATE SET
	slot = excluded.slot,
	owner = excluded.owner,
	lamports = excluded.lamports,
	executable = excluded.executable,
	rent_epoch = excluded.rent_epoch,
	data = excluded.data,
	write_version = excluded.write_version,
	updated_on = excluded.updated_on,
	txn_signature = excluded.txn_signature
WHERE %s`, strings.Join(rows, ",\n"), upsertAccountPredicate)
}
