package state

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var bucketBookkeeping = []byte("bookkeeping")

var (
	keyWatermark      = []byte("slot_write_version")
	keySubmitterSlot  = []byte("slot")
	auditLogPrefix    = []byte("leafs")
)

// Bookkeeping persists the watermark, the audit log (leaf buffer), and the
// brief submission driver's last-submitted-slot marker, sharing the single
// ordered key-value family the spec describes for the persistent
// authenticated-state layout.
type Bookkeeping struct {
	db *bolt.DB
}

// OpenBookkeeping opens (creating if necessary) the bookkeeping database at
// path.
func OpenBookkeeping(path string) (*Bookkeeping, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("state.OpenBookkeeping: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBookkeeping)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("state.OpenBookkeeping: %w", err)
	}
	return &Bookkeeping{db: db}, nil
}

// Close closes the underlying database.
func (b *Bookkeeping) Close() error {
	return b.db.Close()
}

// GetWatermark returns the persisted (last_slot, last_write_version) pair,
// or (0, 0) if never set.
func (b *Bookkeeping) GetWatermark() (slot, writeVersion uint64, err error) {
	err = b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBookkeeping).Get(keyWatermark)
		if v == nil {
			return nil
		}
		if len(v) != 16 {
			return fmt.Errorf("state: corrupt watermark value (got %d bytes, want 16)", len(v))
		}
		slot = binary.LittleEndian.Uint64(v[:8])
		writeVersion = binary.LittleEndian.Uint64(v[8:])
		return nil
	})
	return slot, writeVersion, err
}

// SetWatermark persists the given watermark.
func (b *Bookkeeping) SetWatermark(slot, writeVersion uint64) error {
	var v [16]byte
	binary.LittleEndian.PutUint64(v[:8], slot)
	binary.LittleEndian.PutUint64(v[8:], writeVersion)
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBookkeeping).Put(keyWatermark, v[:])
	})
}

func auditKey(slot, writeVersion uint64) []byte {
	out := make([]byte, len(auditLogPrefix)+16)
	copy(out, auditLogPrefix)
	binary.BigEndian.PutUint64(out[len(auditLogPrefix):], slot)
	binary.BigEndian.PutUint64(out[len(auditLogPrefix)+8:], writeVersion)
	return out
}

// AppendAuditEntry records (H_k, canonical_bytes) for (slot, writeVersion),
// keyed so that bbolt's natural byte ordering iterates the log ascending by
// (slot, writeVersion).
func (b *Bookkeeping) AppendAuditEntry(slot, writeVersion uint64, smtKey [32]byte, canonical []byte) error {
	v := make([]byte, 32+len(canonical))
	copy(v, smtKey[:])
	copy(v[32:], canonical)
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBookkeeping).Put(auditKey(slot, writeVersion), v)
	})
}

// AuditEntry is one record yielded by IterateAuditLog.
type AuditEntry struct {
	Slot         uint64
	WriteVersion uint64
	SMTKey       [32]byte
	Canonical    []byte
}

// IterateAuditLog visits every audit entry in ascending (slot, write_version)
// order, as required to rebuild the shadow tree deterministically.
func (b *Bookkeeping) IterateAuditLog(fn func(AuditEntry) error) error {
	return b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketBookkeeping).Cursor()
		for k, v := c.Seek(auditLogPrefix); k != nil && hasPrefix(k, auditLogPrefix); k, v = c.Next() {
			if len(v) < 32 {
				return fmt.Errorf("state: corrupt audit entry (got %d bytes, want at least 32)", len(v))
			}
			entry := AuditEntry{
				Slot:         binary.BigEndian.Uint64(k[len(auditLogPrefix):]),
				WriteVersion: binary.BigEndian.Uint64(k[len(auditLogPrefix)+8:]),
				Canonical:    append([]byte(nil), v[32:]...),
			}
			copy(entry.SMTKey[:], v[:32])
			if err := fn(entry); err != nil {
				return err
			}
		}
		return nil
	})
}

func hasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == string(prefix)
}

// GetLastSubmittedSlot returns the brief submission driver's local
// idempotence marker, or 0 if it has never been set.
func (b *Bookkeeping) GetLastSubmittedSlot() (slot uint64, err error) {
	err = b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBookkeeping).Get(keySubmitterSlot)
		if v == nil {
			return nil
		}
		if len(v) != 8 {
			return fmt.Errorf("state: corrupt submitter slot value (got %d bytes, want 8)", len(v))
		}
		slot = binary.LittleEndian.Uint64(v)
		return nil
	})
	return slot, err
}

// SetLastSubmittedSlot persists the brief submission driver's local
// idempotence marker.
func (b *Bookkeeping) SetLastSubmittedSlot(slot uint64) error {
	var v [8]byte
	binary.LittleEndian.PutUint64(v[:], slot)
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBookkeeping).Put(keySubmitterSlot, v[:])
	})
}
