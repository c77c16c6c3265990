package brief

import (
	"context"
	"database/sql"
	"fmt"
)

// Store persists briefs idempotently: inserting an already-present slot is
// a no-op, so reruns of the submission driver never duplicate work.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-open relational database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save persists b, doing nothing if slot b.Slot is already recorded.
func (s *Store) Save(ctx context.Context, b Brief) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO brief (slot, root_hash, hash_account, transaction_number, updated_on)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (slot) DO NOTHING
	`, b.Slot, b.RootHash[:], b.HashAccount[:], b.TransactionNumber)
	if err != nil {
		return fmt.Errorf("brief.Store.Save: slot %d: %w", b.Slot, err)
	}
	return nil
}

// Get returns the persisted brief for slot, if any.
func (s *Store) Get(ctx context.Context, slot uint64) (Brief, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT slot, root_hash, hash_account, transaction_number
		FROM brief WHERE slot = ?
	`, slot)

	var b Brief
	var rootHash, hashAccount []byte
	err := row.Scan(&b.Slot, &rootHash, &hashAccount, &b.TransactionNumber)
	if err == sql.ErrNoRows {
		return Brief{}, false, nil
	}
	if err != nil {
		return Brief{}, false, fmt.Errorf("brief.Store.Get: slot %d: %w", slot, err)
	}
	copy(b.RootHash[:], rootHash)
	copy(b.HashAccount[:], hashAccount)
	return b, true, nil
}
