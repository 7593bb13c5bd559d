// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devchainvm

import (
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

const testGenesisMillis int64 = 1_600_000_000_000

func newTestGenesisBytes(t *testing.T) []byte {
	g := &Genesis{
		ChainID:   1337,
		GasPrice:  "0x3b9aca00",
		Timestamp: testGenesisMillis,
	}
	for i := 0; i < 3; i++ {
		g.Allocs = append(g.Allocs, &GenesisAlloc{
			Address: FormatAddress(DevAddress(i)),
			Balance: "10000000000000000000000",
		})
	}
	b, err := g.Bytes()
	require.NoError(t, err)
	return b
}

func newTestVM(t *testing.T) *VM {
	vm := &VM{}
	require.NoError(t, vm.Initialize(memdb.New(), newTestGenesisBytes(t)))
	return vm
}

func TestGenesis(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)

	height, err := vm.BestBlockNumber()
	require.NoError(err)
	require.Zero(height)

	head, err := vm.HeadBlock()
	require.NoError(err)
	require.Equal(ids.Empty, head.Parent())
	require.Equal(testGenesisMillis, head.Timestamp())
	require.Empty(head.Txs)

	// dev accounts are funded, everyone else reads zero
	funded, err := ParseU256("10000000000000000000000")
	require.NoError(err)
	require.Equal(funded, vm.Balance(DevAddress(0)))
	require.True(vm.Balance(DevAddress(9)).IsZero())
	require.Zero(vm.Nonce(DevAddress(0)))
}

func TestMineLinksBlocks(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)

	height, err := vm.Mine(3, 0)
	require.NoError(err)
	require.Equal(uint64(3), height)

	prev, err := vm.GetBlockByHeight(0)
	require.NoError(err)
	for h := uint64(1); h <= 3; h++ {
		blk, err := vm.GetBlockByHeight(h)
		require.NoError(err)
		require.Equal(prev.ID(), blk.Parent())
		require.GreaterOrEqual(blk.Timestamp(), prev.Timestamp())

		byID, err := vm.GetBlock(blk.ID())
		require.NoError(err)
		require.Equal(blk.ID(), byID.ID())
		prev = blk
	}
}

func TestMineTransfers(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)

	sender, recipient := DevAddress(0), DevAddress(1)
	senderBefore := vm.Balance(sender)
	recipientBefore := vm.Balance(recipient)
	value := uint256.NewInt(2_000)

	txID, err := vm.SubmitTx(sender, recipient, value, nil, nil)
	require.NoError(err)
	require.Len(vm.PendingTxs(), 1)

	height, err := vm.Mine(1, 0)
	require.NoError(err)
	require.Equal(uint64(1), height)
	require.Empty(vm.PendingTxs())

	require.Equal(new(uint256.Int).Sub(senderBefore, value), vm.Balance(sender))
	require.Equal(new(uint256.Int).Add(recipientBefore, value), vm.Balance(recipient))
	require.Equal(uint64(1), vm.Nonce(sender))

	blk, err := vm.GetBlockByHeight(1)
	require.NoError(err)
	require.Len(blk.Txs, 1)
	require.Equal(txID, blk.Txs[0].ID())
	require.Equal(TxGas, blk.GasUsed())
}

func TestMineSkipsUnpayableTx(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)

	sender, recipient := DevAddress(0), DevAddress(1)
	balance := vm.Balance(sender)
	tooMuch := new(uint256.Int).Add(balance, uint256.NewInt(1))

	txID, err := vm.SubmitTx(sender, recipient, tooMuch, nil, nil)
	require.NoError(err)

	height, err := vm.Mine(1, 0)
	require.NoError(err)
	require.Equal(uint64(1), height)

	// the block is empty and the transfer is still pending
	blk, err := vm.GetBlockByHeight(1)
	require.NoError(err)
	require.Empty(blk.Txs)
	pending := vm.PendingTxs()
	require.Len(pending, 1)
	require.Equal(txID, pending[0].ID())
	require.Equal(balance, vm.Balance(sender))

	// top the account up and the transfer mines
	vm.SetBalance(sender, new(uint256.Int).Add(tooMuch, uint256.NewInt(1)))
	_, err = vm.Mine(1, 0)
	require.NoError(err)
	require.Empty(vm.PendingTxs())

	blk, err = vm.GetBlockByHeight(2)
	require.NoError(err)
	require.Len(blk.Txs, 1)
}

func TestNonceAssignment(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)
	sender, recipient := DevAddress(0), DevAddress(1)

	// auto nonces follow the pending queue
	_, err := vm.SubmitTx(sender, recipient, uint256.NewInt(1), nil, nil)
	require.NoError(err)
	_, err = vm.SubmitTx(sender, recipient, uint256.NewInt(2), nil, nil)
	require.NoError(err)
	pending := vm.PendingTxs()
	require.Len(pending, 2)
	require.Equal(uint64(0), pending[0].Nonce)
	require.Equal(uint64(1), pending[1].Nonce)

	// an explicit duplicate is refused
	one := uint64(1)
	_, err = vm.SubmitTx(sender, recipient, uint256.NewInt(3), nil, &one)
	require.ErrorIs(err, ErrDuplicateNonce)

	// the same nonce from another sender is fine
	zero := uint64(0)
	_, err = vm.SubmitTx(DevAddress(2), recipient, uint256.NewInt(3), nil, &zero)
	require.NoError(err)

	_, err = vm.Mine(1, 0)
	require.NoError(err)
	require.Equal(uint64(2), vm.Nonce(sender))
	require.Empty(vm.PendingTxs())
}

func TestDropTransaction(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)
	sender, recipient := DevAddress(0), DevAddress(1)

	txID, err := vm.SubmitTx(sender, recipient, uint256.NewInt(1), nil, nil)
	require.NoError(err)
	require.True(vm.DropTransaction(txID))
	require.False(vm.DropTransaction(txID))
	require.Empty(vm.PendingTxs())

	// dropping frees the nonce for resubmission
	_, err = vm.SubmitTx(sender, recipient, uint256.NewInt(1), nil, nil)
	require.NoError(err)
}

func TestTransactionReceipts(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)

	sender, recipient := DevAddress(0), DevAddress(1)
	first, err := vm.SubmitTx(sender, recipient, uint256.NewInt(100), nil, nil)
	require.NoError(err)
	price := uint256.NewInt(5_000_000_000)
	second, err := vm.SubmitTx(sender, recipient, uint256.NewInt(200), price, nil)
	require.NoError(err)

	_, err = vm.Mine(1, 0)
	require.NoError(err)
	blk, err := vm.GetBlockByHeight(1)
	require.NoError(err)

	receipt, err := vm.GetReceipt(first)
	require.NoError(err)
	require.Equal(blk.ID(), receipt.BlockID)
	require.Equal(uint64(1), receipt.BlockHeight)
	require.Equal(uint32(0), receipt.Index)
	require.Equal(TxGas, receipt.GasUsed)
	require.Equal(TxGas, receipt.CumulativeGasUsed)
	// an unset gas price falls back to the node's base price
	require.Equal(vm.GasPrice(), receipt.EffectiveGasPrice)

	receipt, err = vm.GetReceipt(second)
	require.NoError(err)
	require.Equal(uint32(1), receipt.Index)
	require.Equal(2*TxGas, receipt.CumulativeGasUsed)
	require.Equal(price, receipt.EffectiveGasPrice)

	_, err = vm.GetReceipt(ids.GenerateTestID())
	require.ErrorIs(err, database.ErrNotFound)
}

func TestSnapshotScenario(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)

	height, err := vm.Mine(5, 0)
	require.NoError(err)
	require.Equal(uint64(5), height)

	snapA, err := vm.Snapshot()
	require.NoError(err)
	require.Equal(uint64(0), snapA)

	height, err = vm.Mine(5, 0)
	require.NoError(err)
	require.Equal(uint64(10), height)

	snapB, err := vm.Snapshot()
	require.NoError(err)
	require.Equal(uint64(1), snapB)

	height, err = vm.Mine(5, 0)
	require.NoError(err)
	require.Equal(uint64(15), height)

	// the first revert lands on the newer capture
	ok, height, err := vm.RevertTo(snapB)
	require.NoError(err)
	require.True(ok)
	require.Equal(uint64(10), height)

	// naming the same id again resolves downward to the older capture
	ok, height, err = vm.RevertTo(snapB)
	require.NoError(err)
	require.True(ok)
	require.Equal(uint64(5), height)

	// nothing lives at or below the id anymore
	ok, height, err = vm.RevertTo(snapB)
	require.NoError(err)
	require.False(ok)
	require.Equal(uint64(5), height)
}

func TestRevertRestoresState(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)

	sender, recipient := DevAddress(0), DevAddress(1)
	before := vm.Balance(sender)

	snap, err := vm.Snapshot()
	require.NoError(err)

	// move funds and advance time after the capture
	_, err = vm.SubmitTx(sender, recipient, uint256.NewInt(4_000), nil, nil)
	require.NoError(err)
	_, err = vm.Mine(1, 0)
	require.NoError(err)
	vm.IncreaseTime(3600)
	require.Equal(uint64(1), vm.Nonce(sender))
	require.NotEqual(before, vm.Balance(sender))

	// queue but do not mine a second transfer
	_, err = vm.SubmitTx(sender, recipient, uint256.NewInt(4_000), nil, nil)
	require.NoError(err)
	require.Len(vm.PendingTxs(), 1)

	ok, height, err := vm.RevertTo(snap)
	require.NoError(err)
	require.True(ok)
	require.Zero(height)

	require.Equal(before, vm.Balance(sender))
	require.Zero(vm.Nonce(sender))
	require.Empty(vm.PendingTxs())
	require.Zero(vm.clock.Offset())
}

func TestSnapshotIDsNeverReused(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)

	id0, err := vm.Snapshot()
	require.NoError(err)
	require.Equal(uint64(0), id0)

	ok, _, err := vm.RevertTo(id0)
	require.NoError(err)
	require.True(ok)

	// consumed ids are never handed out again
	id1, err := vm.Snapshot()
	require.NoError(err)
	require.Equal(uint64(1), id1)

	list := vm.ListSnapshots()
	require.Len(list, 1)
	require.Equal(uint64(1), list[0].ID)
}

func TestRollback(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)

	sender, recipient := DevAddress(0), DevAddress(1)
	txID, err := vm.SubmitTx(sender, recipient, uint256.NewInt(100), nil, nil)
	require.NoError(err)
	_, err = vm.Mine(3, 0)
	require.NoError(err)

	spent := vm.Balance(sender)
	nonce := vm.Nonce(sender)

	height, err := vm.Rollback(2)
	require.NoError(err)
	require.Equal(uint64(1), height)

	// blocks are gone but account state is untouched
	require.Equal(spent, vm.Balance(sender))
	require.Equal(nonce, vm.Nonce(sender))
	_, err = vm.GetBlockByHeight(2)
	require.ErrorIs(err, database.ErrNotFound)

	// removing more blocks than exist above genesis fails
	_, err = vm.Rollback(5)
	require.ErrorIs(err, ErrInvalidCount)

	// rolling back to exactly genesis is allowed
	height, err = vm.Rollback(1)
	require.NoError(err)
	require.Zero(height)
	_, err = vm.GetReceipt(txID)
	require.ErrorIs(err, database.ErrNotFound)
}

func TestRevertBeyondHeadFails(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)

	_, err := vm.Mine(5, 0)
	require.NoError(err)
	snap, err := vm.Snapshot()
	require.NoError(err)

	_, err = vm.Rollback(3)
	require.NoError(err)

	// the capture points above the head now; revert refuses and keeps it live
	ok, _, err := vm.RevertTo(snap)
	require.ErrorIs(err, ErrInvalidHeight)
	require.False(ok)
	require.Equal(1, vm.snaps.Live())
}

func TestTimeTravel(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)
	vm.clock.clock.Set(time.UnixMilli(testGenesisMillis))

	// jump to an absolute time and mine
	target := uint64(testGenesisMillis/millisPerSecond) + 7200
	prev, err := vm.SetTime(target)
	require.NoError(err)
	require.Zero(prev)

	_, err = vm.Mine(1, 0)
	require.NoError(err)
	blk, err := vm.GetBlockByHeight(1)
	require.NoError(err)
	require.Equal(int64(target)*millisPerSecond, blk.Timestamp())

	// a second jump reports the offset the first one left behind
	prev, err = vm.SetTime(target + 100)
	require.NoError(err)
	require.Equal(int64(7200), prev)

	// jumping before genesis fails
	_, err = vm.SetTime(uint64(testGenesisMillis/millisPerSecond) - 10)
	require.ErrorIs(err, ErrTimeUnderflow)
}

func TestSetNextBlockTimestamp(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)
	vm.clock.clock.Set(time.UnixMilli(testGenesisMillis))

	target := uint64(testGenesisMillis/millisPerSecond) + 900
	require.NoError(vm.SetNextBlockTimestamp(target))

	_, err := vm.Mine(2, 0)
	require.NoError(err)

	// the pin applies to the first mined block only
	first, err := vm.GetBlockByHeight(1)
	require.NoError(err)
	require.Equal(int64(target)*millisPerSecond, first.Timestamp())
	second, err := vm.GetBlockByHeight(2)
	require.NoError(err)
	require.Equal(first.Timestamp(), second.Timestamp())

	// pinning at or before the head fails
	err = vm.SetNextBlockTimestamp(target)
	require.ErrorIs(err, errTimestampTooEarly)
}

func TestMineInterval(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)
	vm.clock.clock.Set(time.UnixMilli(testGenesisMillis))

	_, err := vm.Mine(3, 10)
	require.NoError(err)

	// the clock jumps 10s before each block
	for h := int64(1); h <= 3; h++ {
		blk, err := vm.GetBlockByHeight(uint64(h))
		require.NoError(err)
		require.Equal(testGenesisMillis+h*10*millisPerSecond, blk.Timestamp())
	}
}

func TestRevertRestoresClock(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)
	vm.clock.clock.Set(time.UnixMilli(testGenesisMillis))

	snap, err := vm.Snapshot()
	require.NoError(err)

	// a year into the future, then back
	vm.IncreaseTime(365 * 24 * 3600)
	_, err = vm.Mine(1, 0)
	require.NoError(err)
	jumped, err := vm.HeadBlock()
	require.NoError(err)
	require.Equal(testGenesisMillis+365*24*3600*millisPerSecond, jumped.Timestamp())

	ok, height, err := vm.RevertTo(snap)
	require.NoError(err)
	require.True(ok)
	require.Zero(height)

	_, err = vm.Mine(1, 0)
	require.NoError(err)
	back, err := vm.HeadBlock()
	require.NoError(err)
	require.Equal(uint64(1), back.Height())
	require.Equal(testGenesisMillis, back.Timestamp())
}

func TestStateCheats(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)
	addr := DevAddress(5)

	require.True(vm.Balance(addr).IsZero())
	vm.SetBalance(addr, uint256.NewInt(777))
	require.Equal(uint256.NewInt(777), vm.Balance(addr))

	vm.SetNonce(addr, 42)
	require.Equal(uint64(42), vm.Nonce(addr))

	key, value := *uint256.NewInt(1), *uint256.NewInt(99)
	vm.SetStorage(addr, key, value)
	require.Equal(value, vm.StorageAt(addr, key))
	unset := vm.StorageAt(addr, *uint256.NewInt(2))
	require.True(unset.IsZero())

	// cheats are captured and reverted like everything else
	snap, err := vm.Snapshot()
	require.NoError(err)
	vm.SetStorage(addr, key, *uint256.NewInt(100))
	ok, _, err := vm.RevertTo(snap)
	require.NoError(err)
	require.True(ok)
	require.Equal(value, vm.StorageAt(addr, key))
}

func TestResumeFromDatabase(t *testing.T) {
	require := require.New(t)
	db := memdb.New()
	genesisBytes := newTestGenesisBytes(t)

	vm := &VM{}
	require.NoError(vm.Initialize(db, genesisBytes))
	sender, recipient := DevAddress(0), DevAddress(1)
	_, err := vm.SubmitTx(sender, recipient, uint256.NewInt(500), nil, nil)
	require.NoError(err)
	_, err = vm.Mine(2, 0)
	require.NoError(err)
	balance := vm.Balance(recipient)
	head, err := vm.HeadBlock()
	require.NoError(err)

	// a new vm over the same database replays the chain
	resumed := &VM{}
	require.NoError(resumed.Initialize(db, genesisBytes))
	resumedHead, err := resumed.HeadBlock()
	require.NoError(err)
	require.Equal(head.ID(), resumedHead.ID())
	require.Equal(balance, resumed.Balance(recipient))
	require.Equal(uint64(1), resumed.Nonce(sender))

	// a different genesis is refused
	other := &Genesis{ChainID: 7, Timestamp: testGenesisMillis}
	otherBytes, err := other.Bytes()
	require.NoError(err)
	require.ErrorIs((&VM{}).Initialize(db, otherBytes), errGenesisMismatch)
}
