// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devchainvm

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func newPoolTx(t *testing.T, sender ids.ShortID, nonce uint64) *Transaction {
	tx, err := NewTransaction(sender, ids.GenerateTestShortID(), uint256.NewInt(1), nil, nonce)
	require.NoError(t, err)
	return tx
}

func TestMempoolSubmit(t *testing.T) {
	require := require.New(t)
	m := NewMempool()
	alice, bob := ids.GenerateTestShortID(), ids.GenerateTestShortID()

	require.NoError(m.Submit(newPoolTx(t, alice, 0)))
	require.NoError(m.Submit(newPoolTx(t, bob, 0)))
	require.NoError(m.Submit(newPoolTx(t, alice, 1)))
	require.Equal(3, m.Len())

	// one pending slot per (sender, nonce)
	require.ErrorIs(m.Submit(newPoolTx(t, alice, 1)), ErrDuplicateNonce)
	require.Equal(3, m.Len())

	require.Equal(uint64(2), m.PendingFor(alice))
	require.Equal(uint64(1), m.PendingFor(bob))
	require.Zero(m.PendingFor(ids.GenerateTestShortID()))
}

func TestMempoolTakeForBlock(t *testing.T) {
	require := require.New(t)
	m := NewMempool()
	alice := ids.GenerateTestShortID()

	first := newPoolTx(t, alice, 0)
	second := newPoolTx(t, alice, 1)
	third := newPoolTx(t, alice, 2)
	require.NoError(m.Submit(first))
	require.NoError(m.Submit(second))
	require.NoError(m.Submit(third))

	// submission order is block order
	taken := m.TakeForBlock(2)
	require.Len(taken, 2)
	require.Equal(first.ID(), taken[0].ID())
	require.Equal(second.ID(), taken[1].ID())
	require.Equal(1, m.Len())

	// a zero limit drains everything
	taken = m.TakeForBlock(0)
	require.Len(taken, 1)
	require.Equal(third.ID(), taken[0].ID())
	require.Zero(m.Len())

	// taken nonces are free again
	require.NoError(m.Submit(newPoolTx(t, alice, 0)))
}

func TestMempoolRequeue(t *testing.T) {
	require := require.New(t)
	m := NewMempool()
	alice, bob := ids.GenerateTestShortID(), ids.GenerateTestShortID()

	skippedA := newPoolTx(t, alice, 0)
	skippedB := newPoolTx(t, alice, 1)
	require.NoError(m.Submit(skippedA))
	require.NoError(m.Submit(skippedB))
	taken := m.TakeForBlock(0)
	require.Len(taken, 2)

	// a transaction arrives while the block is being built
	late := newPoolTx(t, bob, 0)
	require.NoError(m.Submit(late))

	// skipped transactions return to the front in their original order
	m.Requeue(taken)
	pending := m.Pending()
	require.Len(pending, 3)
	require.Equal(skippedA.ID(), pending[0].ID())
	require.Equal(skippedB.ID(), pending[1].ID())
	require.Equal(late.ID(), pending[2].ID())

	// requeued entries hold their nonce slots again
	require.ErrorIs(m.Submit(newPoolTx(t, alice, 0)), ErrDuplicateNonce)
}

func TestMempoolDrop(t *testing.T) {
	require := require.New(t)
	m := NewMempool()
	alice := ids.GenerateTestShortID()

	keep := newPoolTx(t, alice, 0)
	drop := newPoolTx(t, alice, 1)
	require.NoError(m.Submit(keep))
	require.NoError(m.Submit(drop))

	require.True(m.Drop(drop.ID()))
	require.False(m.Drop(drop.ID()))
	require.Equal(1, m.Len())
	require.Equal(keep.ID(), m.Pending()[0].ID())

	// the dropped nonce is available again
	require.NoError(m.Submit(newPoolTx(t, alice, 1)))
}

func TestMempoolCaptureRestore(t *testing.T) {
	require := require.New(t)
	m := NewMempool()
	alice := ids.GenerateTestShortID()

	held := newPoolTx(t, alice, 0)
	require.NoError(m.Submit(held))
	snap := m.Capture()

	// churn after the capture
	require.NoError(m.Submit(newPoolTx(t, alice, 1)))
	m.TakeForBlock(0)
	require.Zero(m.Len())

	m.Restore(snap)
	require.Equal(1, m.Len())
	require.Equal(held.ID(), m.Pending()[0].ID())
	require.ErrorIs(m.Submit(newPoolTx(t, alice, 0)), ErrDuplicateNonce)
	require.NoError(m.Submit(newPoolTx(t, alice, 1)))
}
