// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devchainvm

import (
	"github.com/google/btree"
)

// snapshotDegree keeps the arena btree shallow; dev nodes hold few captures.
const snapshotDegree = 2

// capture is one snapshot: everything needed to put the chain back exactly
// where it was. Immutable once stored in the arena.
type capture struct {
	id       uint64
	height   uint64
	accounts *AccountCapture
	pool     []*Transaction
	offset   int64
}

func (c *capture) Less(than btree.Item) bool {
	return c.id < than.(*capture).id
}

// SnapshotInfo is the externally visible description of a live capture.
type SnapshotInfo struct {
	ID     uint64
	Height uint64
}

// SnapshotManager hands out strictly increasing snapshot ids and keeps the
// live captures ordered, so a revert can resolve a requested id to the
// newest capture at or below it. Not safe for concurrent use; the VM
// serializes access to it.
type SnapshotManager struct {
	arena  *btree.BTree
	nextID uint64
}

func NewSnapshotManager() *SnapshotManager {
	return &SnapshotManager{
		arena: btree.New(snapshotDegree),
	}
}

// Take stores [c] under the next id. Ids start at 0 and are never reused,
// even after the captures holding them have been consumed.
func (m *SnapshotManager) Take(c *capture) uint64 {
	c.id = m.nextID
	m.nextID++
	m.arena.ReplaceOrInsert(c)
	return c.id
}

// Resolve returns the newest live capture with id <= [id]. It reports false
// when no live capture sits at or below [id]; nothing is consumed either
// way. A consumed id can therefore be named again and land on the next live
// capture below it, until nothing lives at or below and further attempts
// report false.
func (m *SnapshotManager) Resolve(id uint64) (*capture, bool) {
	var target *capture
	m.arena.DescendLessOrEqual(&capture{id: id}, func(item btree.Item) bool {
		target = item.(*capture)
		return false
	})
	if target == nil {
		return nil, false
	}
	return target, true
}

// Consume removes [c] and every newer capture from the arena. Reverting to a
// capture invalidates it and everything taken after it.
func (m *SnapshotManager) Consume(c *capture) {
	doomed := make([]btree.Item, 0, 1)
	m.arena.AscendGreaterOrEqual(c, func(item btree.Item) bool {
		doomed = append(doomed, item)
		return true
	})
	for _, item := range doomed {
		m.arena.Delete(item)
	}
}

// Live reports how many captures remain revertable.
func (m *SnapshotManager) Live() int {
	return m.arena.Len()
}

// NextID reports the id the next Take will assign.
func (m *SnapshotManager) NextID() uint64 {
	return m.nextID
}

// List returns the live captures in ascending id order.
func (m *SnapshotManager) List() []SnapshotInfo {
	out := make([]SnapshotInfo, 0, m.arena.Len())
	m.arena.Ascend(func(item btree.Item) bool {
		c := item.(*capture)
		out = append(out, SnapshotInfo{ID: c.id, Height: c.height})
		return true
	})
	return out
}
