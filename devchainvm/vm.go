// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devchainvm

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/gorilla/rpc/v2"
	"github.com/holiman/uint256"

	cjson "github.com/ava-labs/avalanchego/utils/json"
	log "github.com/inconshreveable/log15"
)

const (
	// Name is the name of this VM
	Name = "devchainvm"

	// endpoint is the RPC namespace the service registers under
	endpoint = "devchain"
)

// Version is the semantic version of this VM
var Version = "v0.1.0"

var (
	errGenesisMismatch   = errors.New("database was initialized with a different genesis")
	errTimestampTooEarly = errors.New("next block timestamp is not after the head block")
)

// VM is the chain controller: the sole owner of the block store, account
// store, time source, mempool, and snapshot arena. One RWMutex serializes
// every mutation (mine, submit, revert, rollback, time changes), so readers
// only ever observe the state fully before or fully after an operation.
type VM struct {
	mu sync.RWMutex

	genesis  *Genesis
	gasPrice uint256.Int

	state    State
	accounts *AccountState
	mempool  *Mempool
	clock    *TimeSource
	snaps    *SnapshotManager
}

// Initialize opens the chain over [db]. A fresh database is seeded with the
// genesis block and allocation from [genesisBytes]; a previously initialized
// database must present the same genesis, and its chain is replayed to
// rebuild the in-memory account state.
func (vm *VM) Initialize(db database.Database, genesisBytes []byte) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	log.Info("initializing "+Name, "version", Version)

	genesis, err := ParseGenesis(genesisBytes)
	if err != nil {
		return err
	}
	gasPrice, err := genesis.gasPrice()
	if err != nil {
		return err
	}

	vm.genesis = genesis
	vm.gasPrice.Set(gasPrice)
	vm.state = NewState(db)
	vm.accounts = NewAccountState()
	vm.mempool = NewMempool()
	vm.clock = NewTimeSource(genesis.Timestamp)
	vm.snaps = NewSnapshotManager()

	initialized, err := vm.state.IsInitialized()
	if err != nil {
		return err
	}
	if initialized {
		return vm.resume(genesisBytes)
	}

	genesisBlock, err := NewBlock(ids.Empty, 0, genesis.Timestamp, nil)
	if err != nil {
		return fmt.Errorf("failed to build genesis block: %w", err)
	}

	defer vm.state.Abort()
	if err := vm.state.Append(genesisBlock); err != nil {
		return fmt.Errorf("failed to append genesis block: %w", err)
	}
	if err := vm.applyAlloc(); err != nil {
		return err
	}
	if err := vm.state.SetGenesis(genesisBytes); err != nil {
		return err
	}
	if err := vm.state.SetInitialized(); err != nil {
		return err
	}
	if err := vm.state.Commit(); err != nil {
		return fmt.Errorf("failed to commit genesis: %w", err)
	}

	log.Info("initialized chain",
		"chainID", genesis.ChainID,
		"accounts", len(genesis.Allocs),
		"genesisBlock", genesisBlock.ID(),
	)
	return nil
}

// applyAlloc funds the genesis accounts.
func (vm *VM) applyAlloc() error {
	for _, alloc := range vm.genesis.Allocs {
		addr, err := ParseAddress(alloc.Address)
		if err != nil {
			return err
		}
		balance, err := ParseU256(alloc.Balance)
		if err != nil {
			return err
		}
		vm.accounts.SetBalance(addr, balance)
	}
	return nil
}

// resume reattaches to an initialized database. Mining is deterministic, so
// replaying the stored blocks over the genesis allocation reproduces the
// account state the chain had when it shut down.
func (vm *VM) resume(genesisBytes []byte) error {
	stored, err := vm.state.GetGenesis()
	if err != nil {
		return err
	}
	if !bytes.Equal(stored, genesisBytes) {
		return errGenesisMismatch
	}
	if err := vm.applyAlloc(); err != nil {
		return err
	}
	head, err := vm.state.Head()
	if err != nil {
		return err
	}
	for h := uint64(1); h <= head.Hght; h++ {
		blk, err := vm.state.GetBlockByHeight(h)
		if err != nil {
			return err
		}
		for _, tx := range blk.Txs {
			if err := vm.applyTx(tx); err != nil {
				return fmt.Errorf("failed to replay transaction %s in block %d: %w", tx.ID(), h, err)
			}
		}
	}
	log.Info("resumed chain", "height", head.Hght, "headBlock", head.ID())
	return nil
}

// Shutdown closes the underlying database.
func (vm *VM) Shutdown() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.state == nil {
		return nil
	}
	return vm.state.Close()
}

// applyTx applies one transfer against the account store, leaving the store
// untouched when the transaction cannot be applied.
func (vm *VM) applyTx(tx *Transaction) error {
	if vm.accounts.GetNonce(tx.From) == math.MaxUint64 {
		return ErrNonceOverflow
	}
	if err := vm.accounts.ApplyTransfer(tx.From, tx.To, &tx.Value); err != nil {
		return err
	}
	return vm.accounts.IncrementNonce(tx.From)
}

// Mine appends [count] blocks (one when count is 0), draining the mempool
// into each. A transaction that fails an economic check is skipped and stays
// pending for a later attempt instead of failing the block; blocks may be
// empty. A nonzero [interval] jumps the chain clock forward by that many
// seconds before each block. Returns the new head height.
func (vm *VM) Mine(count uint64, interval int64) (uint64, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if count == 0 {
		count = 1
	}
	head, err := vm.state.Head()
	if err != nil {
		return 0, err
	}
	for i := uint64(0); i < count; i++ {
		if interval != 0 {
			vm.clock.IncreaseTime(interval)
		}
		blk, err := vm.mineOne(head)
		if err != nil {
			return 0, err
		}
		head = blk
	}
	return head.Hght, nil
}

func (vm *VM) mineOne(parent *Block) (*Block, error) {
	pending := vm.mempool.TakeForBlock(0)
	included := make([]*Transaction, 0, len(pending))
	var skipped []*Transaction
	for _, tx := range pending {
		if err := vm.applyTx(tx); err != nil {
			log.Debug("skipping transaction", "tx", tx.ID(), "err", err)
			skipped = append(skipped, tx)
			continue
		}
		included = append(included, tx)
	}
	vm.mempool.Requeue(skipped)

	timestamp := vm.clock.NextTimestamp()
	if timestamp < parent.Tmstmp {
		// block times never run backwards, whatever the offset does
		timestamp = parent.Tmstmp
	}

	blk, err := NewBlock(parent.ID(), parent.Hght+1, timestamp, included)
	if err != nil {
		return nil, err
	}

	defer vm.state.Abort()
	if err := vm.state.Append(blk); err != nil {
		return nil, err
	}
	if err := vm.state.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit block %d: %w", blk.Hght, err)
	}

	log.Info("mined block", "height", blk.Hght, "txs", len(included), "block", blk.ID())
	return blk, nil
}

// Snapshot captures the whole chain state (height, accounts, pending
// transactions, clock offset) and returns the capture's id. Ids start at 0
// and only ever grow.
func (vm *VM) Snapshot() (uint64, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	height, err := vm.state.Height()
	if err != nil {
		return 0, err
	}
	id := vm.snaps.Take(&capture{
		height:   height,
		accounts: vm.accounts.Capture(),
		pool:     vm.mempool.Capture(),
		offset:   vm.clock.Offset(),
	})
	log.Info("captured snapshot", "id", id, "height", height)
	return id, nil
}

// RevertTo restores the newest live snapshot at or below [id]: block height,
// account contents, pending transactions, and clock offset all return to
// their captured values, and the used capture plus every newer one is
// consumed. The flag is false, with nothing changed, when no live snapshot
// sits at or below [id]. The returned height is the head height after the
// call either way.
func (vm *VM) RevertTo(id uint64) (bool, uint64, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	height, err := vm.state.Height()
	if err != nil {
		return false, 0, err
	}
	c, ok := vm.snaps.Resolve(id)
	if !ok {
		log.Debug("no snapshot at or below id", "id", id)
		return false, height, nil
	}

	defer vm.state.Abort()
	if err := vm.state.TruncateTo(c.height); err != nil {
		return false, height, err
	}
	if err := vm.state.Commit(); err != nil {
		return false, height, err
	}
	vm.snaps.Consume(c)
	vm.accounts.Restore(c.accounts)
	vm.mempool.Restore(c.pool)
	vm.clock.SetOffset(c.offset)

	log.Info("reverted to snapshot", "id", c.id, "height", c.height)
	return true, c.height, nil
}

// Rollback removes the last [count] mined blocks (one when count is 0) from
// the block store. Unlike RevertTo it does not touch accounts, pending
// transactions, the clock, or the snapshot arena. Returns the new head
// height.
func (vm *VM) Rollback(count uint64) (uint64, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if count == 0 {
		count = 1
	}
	defer vm.state.Abort()
	if err := vm.state.Rollback(count); err != nil {
		return 0, err
	}
	if err := vm.state.Commit(); err != nil {
		return 0, err
	}
	height, err := vm.state.Height()
	if err != nil {
		return 0, err
	}
	log.Info("rolled back", "blocks", count, "height", height)
	return height, nil
}

// SetTime jumps the chain clock to [timestamp] seconds since the Unix epoch
// and returns the offset in seconds that was in effect before the jump.
func (vm *VM) SetTime(timestamp uint64) (int64, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	return vm.clock.SetTime(timestamp)
}

// IncreaseTime shifts the chain clock by [seconds] and returns the total
// offset in seconds now in effect.
func (vm *VM) IncreaseTime(seconds int64) int64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	return vm.clock.IncreaseTime(seconds)
}

// SetNextBlockTimestamp pins the exact timestamp, in seconds, of the next
// mined block. The pin is consumed by that block and must be after the head
// block's time.
func (vm *VM) SetNextBlockTimestamp(timestamp uint64) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	head, err := vm.state.Head()
	if err != nil {
		return err
	}
	millis := int64(timestamp) * millisPerSecond
	if millis <= head.Tmstmp {
		return fmt.Errorf("%w: %d", errTimestampTooEarly, timestamp)
	}
	vm.clock.SetNextTimestamp(millis)
	return nil
}

// SubmitTx queues a transfer for a future block. A nil [nonce] assigns the
// next free nonce for the sender: the account nonce plus however many
// transactions the sender already has pending.
func (vm *VM) SubmitTx(from, to ids.ShortID, value, gasPrice *uint256.Int, nonce *uint64) (ids.ID, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	n := uint64(0)
	if nonce != nil {
		n = *nonce
	} else {
		n = vm.accounts.GetNonce(from) + vm.mempool.PendingFor(from)
	}
	tx, err := NewTransaction(from, to, value, gasPrice, n)
	if err != nil {
		return ids.Empty, err
	}
	if err := vm.mempool.Submit(tx); err != nil {
		return ids.Empty, err
	}
	log.Debug("queued transaction", "tx", tx.ID(), "from", FormatAddress(from), "nonce", n)
	return tx.ID(), nil
}

// DropTransaction removes a pending transaction from the mempool, reporting
// whether it was there.
func (vm *VM) DropTransaction(txID ids.ID) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	return vm.mempool.Drop(txID)
}

// SetBalance overwrites an account balance.
func (vm *VM) SetBalance(addr ids.ShortID, balance *uint256.Int) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.accounts.SetBalance(addr, balance)
	log.Debug("set balance", "address", FormatAddress(addr))
}

// SetNonce overwrites an account nonce.
func (vm *VM) SetNonce(addr ids.ShortID, nonce uint64) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.accounts.SetNonce(addr, nonce)
	log.Debug("set nonce", "address", FormatAddress(addr), "nonce", nonce)
}

// SetStorage writes a word into an account's storage.
func (vm *VM) SetStorage(addr ids.ShortID, key, value uint256.Int) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.accounts.SetStorage(addr, key, value)
	log.Debug("set storage", "address", FormatAddress(addr))
}

// BestBlockNumber returns the head block height.
func (vm *VM) BestBlockNumber() (uint64, error) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	return vm.state.Height()
}

// HeadBlock returns the current head block.
func (vm *VM) HeadBlock() (*Block, error) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	return vm.state.Head()
}

// GetBlock returns the block with id [blkID], database.ErrNotFound when no
// such block is on the chain.
func (vm *VM) GetBlock(blkID ids.ID) (*Block, error) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	return vm.state.GetBlock(blkID)
}

// GetBlockByHeight returns the block at [height], database.ErrNotFound when
// the chain is shorter.
func (vm *VM) GetBlockByHeight(height uint64) (*Block, error) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	return vm.state.GetBlockByHeight(height)
}

// GetReceipt rebuilds the receipt of a mined transaction from the block that
// included it.
func (vm *VM) GetReceipt(txID ids.ID) (*Receipt, error) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	height, index, err := vm.state.GetTxBlock(txID)
	if err != nil {
		return nil, err
	}
	blk, err := vm.state.GetBlockByHeight(height)
	if err != nil {
		return nil, err
	}
	if int(index) >= len(blk.Txs) {
		return nil, database.ErrNotFound
	}
	tx := blk.Txs[index]
	return &Receipt{
		TxID:              txID,
		BlockID:           blk.ID(),
		BlockHeight:       height,
		Index:             index,
		From:              tx.From,
		To:                tx.To,
		Value:             tx.Value.Clone(),
		GasUsed:           TxGas,
		CumulativeGasUsed: uint64(index+1) * TxGas,
		EffectiveGasPrice: tx.EffectiveGasPrice(&vm.gasPrice),
	}, nil
}

// Balance returns [addr]'s balance.
func (vm *VM) Balance(addr ids.ShortID) *uint256.Int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	return vm.accounts.GetBalance(addr)
}

// Nonce returns [addr]'s nonce.
func (vm *VM) Nonce(addr ids.ShortID) uint64 {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	return vm.accounts.GetNonce(addr)
}

// StorageAt returns the word stored at [key] in [addr]'s storage.
func (vm *VM) StorageAt(addr ids.ShortID, key uint256.Int) uint256.Int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	return vm.accounts.GetStorage(addr, key)
}

// PendingTxs returns the pending transactions in submission order.
func (vm *VM) PendingTxs() []*Transaction {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	return vm.mempool.Pending()
}

// ListSnapshots returns the live snapshots in ascending id order.
func (vm *VM) ListSnapshots() []SnapshotInfo {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	return vm.snaps.List()
}

// GasPrice returns the node's base gas price.
func (vm *VM) GasPrice() *uint256.Int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	return vm.gasPrice.Clone()
}

// ChainID returns the chain id from genesis.
func (vm *VM) ChainID() uint64 {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	return vm.genesis.ChainID
}

// CreateHandlers returns the http handlers this node serves: the chain API
// at the root and the static genesis helpers under /static.
func (vm *VM) CreateHandlers() (map[string]http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(cjson.NewCodec(), "application/json")
	server.RegisterCodec(cjson.NewCodec(), "application/json;charset=UTF-8")
	if err := server.RegisterService(&Service{vm: vm}, endpoint); err != nil {
		return nil, err
	}

	staticServer := rpc.NewServer()
	staticServer.RegisterCodec(cjson.NewCodec(), "application/json")
	staticServer.RegisterCodec(cjson.NewCodec(), "application/json;charset=UTF-8")
	if err := staticServer.RegisterService(&StaticService{}, endpoint); err != nil {
		return nil, err
	}

	return map[string]http.Handler{
		"":        server,
		"/static": staticServer,
	}, nil
}
