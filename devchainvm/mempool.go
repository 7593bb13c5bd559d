// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devchainvm

import (
	"errors"

	"github.com/ava-labs/avalanchego/ids"
)

var (
	// ErrDuplicateNonce is returned when a sender already has a pending
	// transaction with the same nonce; replacement is not supported.
	ErrDuplicateNonce = errors.New("sender already has a pending transaction with this nonce")
)

type mempoolKey struct {
	sender ids.ShortID
	nonce  uint64
}

// Mempool holds submitted transactions until mining includes them in a
// block. Transactions leave in submission order, and a sender may hold at
// most one pending transaction per nonce. Not safe for concurrent use; the
// VM serializes access to it.
type Mempool struct {
	txs   []*Transaction
	index map[mempoolKey]*Transaction
	byID  map[ids.ID]*Transaction
}

func NewMempool() *Mempool {
	return &Mempool{
		index: make(map[mempoolKey]*Transaction),
		byID:  make(map[ids.ID]*Transaction),
	}
}

// Submit queues [tx] behind everything already pending.
func (m *Mempool) Submit(tx *Transaction) error {
	key := mempoolKey{sender: tx.From, nonce: tx.Nonce}
	if _, ok := m.index[key]; ok {
		return ErrDuplicateNonce
	}
	m.txs = append(m.txs, tx)
	m.index[key] = tx
	m.byID[tx.ID()] = tx
	return nil
}

// TakeForBlock removes and returns up to [limit] transactions in submission
// order. A limit of zero or less drains the whole pool.
func (m *Mempool) TakeForBlock(limit int) []*Transaction {
	n := len(m.txs)
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return nil
	}
	taken := make([]*Transaction, n)
	copy(taken, m.txs[:n])
	m.txs = m.txs[n:]
	for _, tx := range taken {
		delete(m.index, mempoolKey{sender: tx.From, nonce: tx.Nonce})
		delete(m.byID, tx.ID())
	}
	return taken
}

// Requeue puts transactions that mining skipped back at the front of the
// pool, keeping their original relative order.
func (m *Mempool) Requeue(txs []*Transaction) {
	if len(txs) == 0 {
		return
	}
	next := make([]*Transaction, 0, len(txs)+len(m.txs))
	next = append(next, txs...)
	next = append(next, m.txs...)
	m.txs = next
	for _, tx := range txs {
		m.index[mempoolKey{sender: tx.From, nonce: tx.Nonce}] = tx
		m.byID[tx.ID()] = tx
	}
}

// Drop removes the pending transaction with [txID], reporting whether it
// was there.
func (m *Mempool) Drop(txID ids.ID) bool {
	tx, ok := m.byID[txID]
	if !ok {
		return false
	}
	delete(m.byID, txID)
	delete(m.index, mempoolKey{sender: tx.From, nonce: tx.Nonce})
	for i, cand := range m.txs {
		if cand == tx {
			m.txs = append(m.txs[:i], m.txs[i+1:]...)
			break
		}
	}
	return true
}

// Pending returns a copy of the queue in submission order.
func (m *Mempool) Pending() []*Transaction {
	out := make([]*Transaction, len(m.txs))
	copy(out, m.txs)
	return out
}

// PendingFor counts pending transactions submitted by [sender]. Nonce
// auto-assignment builds on this.
func (m *Mempool) PendingFor(sender ids.ShortID) uint64 {
	var n uint64
	for _, tx := range m.txs {
		if tx.From == sender {
			n++
		}
	}
	return n
}

// Len reports how many transactions are pending.
func (m *Mempool) Len() int {
	return len(m.txs)
}

// Capture snapshots the queue. Transactions are immutable, so sharing them
// between the capture and the live pool is safe.
func (m *Mempool) Capture() []*Transaction {
	return m.Pending()
}

// Restore replaces the queue wholesale with [txs].
func (m *Mempool) Restore(txs []*Transaction) {
	m.txs = make([]*Transaction, len(txs))
	copy(m.txs, txs)
	m.index = make(map[mempoolKey]*Transaction, len(txs))
	m.byID = make(map[ids.ID]*Transaction, len(txs))
	for _, tx := range txs {
		m.index[mempoolKey{sender: tx.From, nonce: tx.Nonce}] = tx
		m.byID[tx.ID()] = tx
	}
}
