// Package shard implements the embedded single-file storage engine's public
// surface: Open/Close lifecycle and the insert/select/delete entry points,
// composed from the pk allocator, slotted-page manager and overflow manager
// in package storage, the transaction manager in this package, plus the
// pk-level locking in package concurrency.
package shard

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dplyshard/dplyshard/concurrency"
	"github.com/dplyshard/dplyshard/storage"
)

// Shard is one open storage file (or in-memory store).
type Shard struct {
	mu    sync.Mutex
	pager *storage.Pager
	locks *concurrency.LockManager

	ridIndex map[uint64]storage.RID
	// pendingDeletes holds pks with an uncommitted in-tx delete: visible
	// to every reader except the deleting transaction itself, until the
	// owning transaction commits or rolls back.
	pendingDeletes map[uint64]uint64

	nextTxID    uint64
	commitClock uint64
}

// Open opens or creates the shard file at path. pageSize is only honored
// when creating a new file; 0 uses storage.DefaultPageSize.
func Open(path string, pageSize int) (*Shard, error) {
	pager, err := storage.Open(path, pageSize)
	if err != nil {
		return nil, err
	}
	return newShard(pager)
}

// OpenMemory creates a shard entirely in memory, with no backing file.
func OpenMemory(pageSize int) (*Shard, error) {
	pager, err := storage.OpenMemory(pageSize)
	if err != nil {
		return nil, err
	}
	return newShard(pager)
}

func newShard(pager *storage.Pager) (*Shard, error) {
	s := &Shard{
		pager:          pager,
		locks:          concurrency.NewLockManager(concurrency.LockPolicyWait),
		ridIndex:       make(map[uint64]storage.RID),
		pendingDeletes: make(map[uint64]uint64),
	}
	if err := s.rebuildIndex(); err != nil {
		pager.Close()
		return nil, err
	}
	return s, nil
}

// rebuildIndex scans the data-page chain once at open, building the pk →
// RID cache so lookups never need to repeat the scan.
func (s *Shard) rebuildIndex() error {
	head := s.pager.FirstDataPageID()
	if head == storage.NoPage {
		return nil
	}
	return s.pager.ForEachDataPage(head, func(page *storage.Page) (bool, error) {
		for slot := 0; slot < page.InsertedRowCount(); slot++ {
			row, ok := storage.ReadRow(page, slot)
			if !ok {
				continue
			}
			s.ridIndex[row.PK] = storage.RID{SlotIndex: slot, PageID: page.ID()}
		}
		return true, nil
	})
}

// Close flushes the metadata page and closes the underlying file.
func (s *Shard) Close() error {
	return s.pager.Close()
}

// CreateTransaction starts a new Active transaction.
func (s *Shard) CreateTransaction() *Transaction {
	s.mu.Lock()
	s.nextTxID++
	tx := &Transaction{
		id:             s.nextTxID,
		startTimestamp: s.commitClock,
		status:         StatusActive,
		shard:          s,
	}
	s.mu.Unlock()
	return tx
}

func checkOpen(tx *Transaction) error {
	if tx == nil {
		return nil
	}
	if tx.Status() != StatusActive {
		return storage.ErrTransactionClosed
	}
	return nil
}

// Insert stores data under a freshly allocated pk and returns it. If tx is
// non-nil the insert is recorded in its writeSet for rollback tombstoning,
// but the row is written immediately regardless.
func (s *Shard) Insert(data []byte, tx *Transaction) (uint64, error) {
	if err := checkOpen(tx); err != nil {
		return 0, err
	}

	s.locks.StructuralMu.Lock()
	defer s.locks.StructuralMu.Unlock()

	pk, err := s.pager.NextPK()
	if err != nil {
		return 0, err
	}
	rid, err := s.insertIntoChain(pk, data)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.ridIndex[pk] = rid
	s.mu.Unlock()

	if tx != nil {
		tx.record(writeOp{kind: opInsert, pk: pk, rid: rid})
	}
	return pk, nil
}

// InsertString is Insert with its data UTF-8 encoded.
func (s *Shard) InsertString(data string, tx *Transaction) (uint64, error) {
	return s.Insert(storage.EncodeUTF8(data), tx)
}

// insertIntoChain places data on the current insert page, allocating and
// linking a fresh data page when the current one has no room even for an
// overflow pointer. Callers must hold locks.StructuralMu.
func (s *Shard) insertIntoChain(pk uint64, data []byte) (storage.RID, error) {
	pageID := s.pager.CurrentInsertPageID()
	if pageID == storage.NoPage {
		page, err := s.pager.AllocatePage(storage.PageTypeData)
		if err != nil {
			return storage.RID{}, err
		}
		if err := s.pager.SetCurrentInsertPageID(page.ID()); err != nil {
			return storage.RID{}, err
		}
		pageID = page.ID()
	}

	page, err := s.pager.ReadPage(pageID)
	if err != nil {
		return storage.RID{}, err
	}

	slot, err := storage.PutRecord(s.pager, page, pk, data)
	if err == nil {
		if err := s.pager.WritePage(page); err != nil {
			return storage.RID{}, err
		}
		return storage.RID{SlotIndex: slot, PageID: pageID}, nil
	}
	if !errors.Is(err, storage.ErrRowTooLarge) {
		return storage.RID{}, err
	}

	// Current page has no room even for an overflow pointer: chain a new
	// data page and retry there.
	newPage, allocErr := s.pager.AllocatePage(storage.PageTypeData)
	if allocErr != nil {
		return storage.RID{}, allocErr
	}
	page.SetNextID(newPage.ID())
	if writeErr := s.pager.WritePage(page); writeErr != nil {
		return storage.RID{}, writeErr
	}
	if setErr := s.pager.SetCurrentInsertPageID(newPage.ID()); setErr != nil {
		return storage.RID{}, setErr
	}

	slot, err = storage.PutRecord(s.pager, newPage, pk, data)
	if err != nil {
		return storage.RID{}, err
	}
	if err := s.pager.WritePage(newPage); err != nil {
		return storage.RID{}, err
	}
	return storage.RID{SlotIndex: slot, PageID: newPage.ID()}, nil
}

// Select returns the raw bytes stored under pk, or nil if pk does not
// exist or is not visible to tx.
func (s *Shard) Select(pk uint64, tx *Transaction) ([]byte, error) {
	if err := checkOpen(tx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	rid, ok := s.ridIndex[pk]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	page, err := s.pager.ReadPage(rid.PageID)
	if err != nil {
		return nil, err
	}
	data, deleted, found, err := storage.GetRecord(s.pager, page, rid.SlotIndex)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if !s.isVisible(pk, deleted, tx) {
		return nil, nil
	}
	return data, nil
}

// SelectString is Select with its result UTF-8 decoded; ok is false if the
// pk was not found or not visible.
func (s *Shard) SelectString(pk uint64, tx *Transaction) (value string, ok bool, err error) {
	data, err := s.Select(pk, tx)
	if err != nil {
		return "", false, err
	}
	if data == nil {
		return "", false, nil
	}
	return storage.DecodeUTF8(data), true, nil
}

// isVisible implements the transaction manager's visibility rule: a
// committed delete (persisted bit) is invisible to everyone; an
// uncommitted delete is invisible only to the transaction that made it.
func (s *Shard) isVisible(pk uint64, persistedDeleted bool, tx *Transaction) bool {
	if persistedDeleted {
		return false
	}
	s.mu.Lock()
	owner, pending := s.pendingDeletes[pk]
	s.mu.Unlock()
	if !pending {
		return true
	}
	return tx == nil || tx.id != owner
}

// Delete marks pk deleted. With tx nil the delete is immediate and
// globally visible. With tx non-nil the delete is recorded in the
// transaction's writeSet and only becomes visible to other readers on
// Commit; Rollback discards it with no page mutation ever having
// happened. A delete on an already (committed) deleted pk, or on a pk
// with no record at all, fails with ErrNotFound. A delete racing another
// active transaction's uncommitted delete of the same pk fails with
// ErrWriteConflict; redeleting under the same tx that already holds the
// pending delete is a no-op.
func (s *Shard) Delete(pk uint64, tx *Transaction) error {
	if err := checkOpen(tx); err != nil {
		return err
	}

	s.mu.Lock()
	rid, ok := s.ridIndex[pk]
	s.mu.Unlock()
	if !ok {
		return storage.ErrNotFound
	}

	page, err := s.pager.ReadPage(rid.PageID)
	if err != nil {
		return err
	}
	row, ok := storage.ReadRow(page, rid.SlotIndex)
	if !ok {
		return storage.ErrNotFound
	}

	s.mu.Lock()
	owner, pending := s.pendingDeletes[pk]
	s.mu.Unlock()

	if row.Deleted && !pending {
		return storage.ErrNotFound
	}
	if pending {
		if tx == nil || owner != tx.id {
			return storage.ErrWriteConflict
		}
		return nil
	}

	if err := s.locks.AcquireRow(pk); err != nil {
		return err
	}
	defer s.locks.ReleaseRow(pk)

	if tx == nil {
		if !storage.DeleteRow(page, rid.SlotIndex) {
			return storage.ErrNotFound
		}
		return s.pager.WritePage(page)
	}

	s.mu.Lock()
	s.pendingDeletes[pk] = tx.id
	s.mu.Unlock()
	tx.record(writeOp{kind: opDelete, pk: pk, rid: rid})
	return nil
}

// commit applies tx's writeSet: pending deletes are flushed to their
// pages (becoming visible to everyone); inserts were already persisted at
// Insert time and need no further action.
func (s *Shard) commit(tx *Transaction) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.status != StatusActive {
		return storage.ErrTransactionClosed
	}

	for _, op := range tx.writeSet {
		if op.kind != opDelete {
			continue
		}
		page, err := s.pager.ReadPage(op.rid.PageID)
		if err != nil {
			return err
		}
		if !storage.DeleteRow(page, op.rid.SlotIndex) {
			return fmt.Errorf("dplyshard: commit delete of pk %d: %w", op.pk, storage.ErrNotFound)
		}
		if err := s.pager.WritePage(page); err != nil {
			return err
		}
		s.mu.Lock()
		delete(s.pendingDeletes, op.pk)
		s.mu.Unlock()
	}

	tx.status = StatusCommitted
	s.mu.Lock()
	s.commitClock++
	s.mu.Unlock()
	return nil
}

// rollback undoes tx's writeSet in reverse order: a pending delete is
// simply dropped (it was never flushed), an insert is tombstoned by
// setting its deleted bit (the core does not support uncommitted-insert
// invisibility to other transactions, so the row was already persisted
// and rollback can only hide it after the fact).
func (s *Shard) rollback(tx *Transaction) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.status != StatusActive {
		return storage.ErrTransactionClosed
	}

	for i := len(tx.writeSet) - 1; i >= 0; i-- {
		op := tx.writeSet[i]
		switch op.kind {
		case opDelete:
			s.mu.Lock()
			delete(s.pendingDeletes, op.pk)
			s.mu.Unlock()
		case opInsert:
			page, err := s.pager.ReadPage(op.rid.PageID)
			if err != nil {
				return err
			}
			if !storage.DeleteRow(page, op.rid.SlotIndex) {
				return fmt.Errorf("dplyshard: rollback insert of pk %d: %w", op.pk, storage.ErrNotFound)
			}
			if err := s.pager.WritePage(page); err != nil {
				return err
			}
		}
	}

	tx.status = StatusRolledBack
	return nil
}
