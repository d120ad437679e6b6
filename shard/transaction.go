package shard

import (
	"sync"

	"github.com/dplyshard/dplyshard/storage"
)

type opKind int

const (
	opInsert opKind = iota
	opDelete
)

type writeOp struct {
	kind opKind
	pk   uint64
	rid  storage.RID
}

// Status is a Transaction's lifecycle state.
type Status int

const (
	StatusActive Status = iota
	StatusCommitted
	StatusRolledBack
)

// Transaction is an in-memory journal of pending mutations against a
// Shard. It is created by Shard.CreateTransaction and destroyed by
// Commit or Rollback; using it afterwards returns ErrTransactionClosed.
type Transaction struct {
	mu sync.Mutex

	id             uint64
	startTimestamp uint64
	status         Status
	writeSet       []writeOp

	shard *Shard
}

// ID returns the transaction's monotonically increasing identifier.
func (tx *Transaction) ID() uint64 { return tx.id }

// Status reports the transaction's current lifecycle state.
func (tx *Transaction) Status() Status {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.status
}

func (tx *Transaction) record(op writeOp) {
	tx.mu.Lock()
	tx.writeSet = append(tx.writeSet, op)
	tx.mu.Unlock()
}

// Commit applies the transaction's writeSet (flushing pending deletes) and
// marks it Committed.
func (tx *Transaction) Commit() error {
	return tx.shard.commit(tx)
}

// Rollback undoes the transaction's writeSet in reverse order and marks it
// RolledBack.
func (tx *Transaction) Rollback() error {
	return tx.shard.rollback(tx)
}
