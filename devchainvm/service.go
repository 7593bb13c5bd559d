// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devchainvm

import (
	"net/http"

	"github.com/ava-labs/avalanchego/api"

	cjson "github.com/ava-labs/avalanchego/utils/json"
)

// Service is the API service exposed by a running node under the devchain
// namespace. Quantities travel as 0x-prefixed hex or decimal strings;
// addresses and ids as 0x-prefixed hex.
type Service struct {
	vm *VM
}

// MineArgs ...
type MineArgs struct {
	// Count is how many blocks to mine. Unset mines one.
	Count *cjson.Uint64 `json:"count"`
	// Interval advances the chain clock this many seconds before each block.
	Interval *cjson.Uint64 `json:"interval"`
}

// MineReply ...
type MineReply struct {
	Height cjson.Uint64 `json:"height"`
}

// Mine appends blocks built from the pending transactions.
func (s *Service) Mine(_ *http.Request, args *MineArgs, reply *MineReply) error {
	count := uint64(0)
	if args.Count != nil {
		count = uint64(*args.Count)
	}
	interval := int64(0)
	if args.Interval != nil {
		interval = int64(*args.Interval)
	}
	height, err := s.vm.Mine(count, interval)
	if err != nil {
		return err
	}
	reply.Height = cjson.Uint64(height)
	return nil
}

// SnapshotReply ...
type SnapshotReply struct {
	ID string `json:"id"`
}

// Snapshot captures the chain state and returns the capture's id.
func (s *Service) Snapshot(_ *http.Request, _ *struct{}, reply *SnapshotReply) error {
	id, err := s.vm.Snapshot()
	if err != nil {
		return err
	}
	reply.ID = FormatSnapshotID(id)
	return nil
}

// RevertArgs ...
type RevertArgs struct {
	ID string `json:"id"`
}

// RevertReply ...
type RevertReply struct {
	Success bool         `json:"success"`
	Height  cjson.Uint64 `json:"height"`
}

// Revert restores the newest live snapshot at or below the given id.
func (s *Service) Revert(_ *http.Request, args *RevertArgs, reply *RevertReply) error {
	id, err := ParseSnapshotID(args.ID)
	if err != nil {
		return err
	}
	ok, height, err := s.vm.RevertTo(id)
	if err != nil {
		return err
	}
	reply.Success = ok
	reply.Height = cjson.Uint64(height)
	return nil
}

// RollbackArgs ...
type RollbackArgs struct {
	// Count is how many blocks to remove. Unset removes one.
	Count *cjson.Uint64 `json:"count"`
}

// RollbackReply ...
type RollbackReply struct {
	Height cjson.Uint64 `json:"height"`
}

// Rollback removes the newest blocks without touching account state.
func (s *Service) Rollback(_ *http.Request, args *RollbackArgs, reply *RollbackReply) error {
	count := uint64(0)
	if args.Count != nil {
		count = uint64(*args.Count)
	}
	height, err := s.vm.Rollback(count)
	if err != nil {
		return err
	}
	reply.Height = cjson.Uint64(height)
	return nil
}

// SetTimeArgs ...
type SetTimeArgs struct {
	// Timestamp is absolute seconds since the Unix epoch.
	Timestamp cjson.Uint64 `json:"timestamp"`
}

// SetTimeReply ...
type SetTimeReply struct {
	// OffsetSeconds is the offset that was in effect before the jump.
	OffsetSeconds int64 `json:"offsetSeconds"`
}

// SetTime jumps the chain clock to an absolute time.
func (s *Service) SetTime(_ *http.Request, args *SetTimeArgs, reply *SetTimeReply) error {
	prev, err := s.vm.SetTime(uint64(args.Timestamp))
	if err != nil {
		return err
	}
	reply.OffsetSeconds = prev
	return nil
}

// IncreaseTimeArgs ...
type IncreaseTimeArgs struct {
	Seconds cjson.Uint64 `json:"seconds"`
}

// IncreaseTimeReply ...
type IncreaseTimeReply struct {
	// OffsetSeconds is the total offset now in effect.
	OffsetSeconds int64 `json:"offsetSeconds"`
}

// IncreaseTime shifts the chain clock forward.
func (s *Service) IncreaseTime(_ *http.Request, args *IncreaseTimeArgs, reply *IncreaseTimeReply) error {
	reply.OffsetSeconds = s.vm.IncreaseTime(int64(args.Seconds))
	return nil
}

// SetNextBlockTimestampArgs ...
type SetNextBlockTimestampArgs struct {
	// Timestamp is absolute seconds since the Unix epoch.
	Timestamp cjson.Uint64 `json:"timestamp"`
}

// SetNextBlockTimestamp pins the exact timestamp of the next mined block.
func (s *Service) SetNextBlockTimestamp(_ *http.Request, args *SetNextBlockTimestampArgs, reply *api.EmptyReply) error {
	return s.vm.SetNextBlockTimestamp(uint64(args.Timestamp))
}

// BestBlockNumberReply ...
type BestBlockNumberReply struct {
	Height cjson.Uint64 `json:"height"`
}

// BestBlockNumber returns the head block height.
func (s *Service) BestBlockNumber(_ *http.Request, _ *struct{}, reply *BestBlockNumberReply) error {
	height, err := s.vm.BestBlockNumber()
	if err != nil {
		return err
	}
	reply.Height = cjson.Uint64(height)
	return nil
}

// GetBlockArgs ...
type GetBlockArgs struct {
	// ID of the block to fetch. Takes precedence over Height.
	ID *string `json:"id"`
	// Height of the block to fetch. When both are unset the head is
	// returned.
	Height *cjson.Uint64 `json:"height"`
}

// GetBlockReply ...
type GetBlockReply struct {
	ID        string       `json:"id"`
	ParentID  string       `json:"parentID"`
	Height    cjson.Uint64 `json:"height"`
	Timestamp cjson.Uint64 `json:"timestamp"`
	GasUsed   cjson.Uint64 `json:"gasUsed"`
	TxIDs     []string     `json:"txIDs"`
}

// GetBlock fetches a block by id, by height, or the head.
func (s *Service) GetBlock(_ *http.Request, args *GetBlockArgs, reply *GetBlockReply) error {
	var (
		blk *Block
		err error
	)
	switch {
	case args.ID != nil:
		blkID, parseErr := ParseID(*args.ID)
		if parseErr != nil {
			return parseErr
		}
		blk, err = s.vm.GetBlock(blkID)
	case args.Height != nil:
		blk, err = s.vm.GetBlockByHeight(uint64(*args.Height))
	default:
		blk, err = s.vm.HeadBlock()
	}
	if err != nil {
		return err
	}

	reply.ID = FormatID(blk.ID())
	reply.ParentID = FormatID(blk.Parent())
	reply.Height = cjson.Uint64(blk.Height())
	reply.Timestamp = cjson.Uint64(blk.Timestamp())
	reply.GasUsed = cjson.Uint64(blk.GasUsed())
	reply.TxIDs = make([]string, 0, len(blk.Txs))
	for _, tx := range blk.Txs {
		reply.TxIDs = append(reply.TxIDs, FormatID(tx.ID()))
	}
	return nil
}

// SendTransactionArgs ...
type SendTransactionArgs struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Value    string `json:"value"`
	GasPrice string `json:"gasPrice"`
	// Nonce to use. Unset picks the sender's next free nonce.
	Nonce *cjson.Uint64 `json:"nonce"`
}

// SendTransactionReply ...
type SendTransactionReply struct {
	TxID string `json:"txID"`
}

// SendTransaction queues a transfer for the next mined block.
func (s *Service) SendTransaction(_ *http.Request, args *SendTransactionArgs, reply *SendTransactionReply) error {
	from, err := ParseAddress(args.From)
	if err != nil {
		return err
	}
	to, err := ParseAddress(args.To)
	if err != nil {
		return err
	}
	value, err := ParseU256(args.Value)
	if err != nil {
		return err
	}
	gasPrice, err := ParseU256(args.GasPrice)
	if err != nil {
		return err
	}
	var nonce *uint64
	if args.Nonce != nil {
		n := uint64(*args.Nonce)
		nonce = &n
	}
	txID, err := s.vm.SubmitTx(from, to, value, gasPrice, nonce)
	if err != nil {
		return err
	}
	reply.TxID = FormatID(txID)
	return nil
}

// GetTransactionReceiptArgs ...
type GetTransactionReceiptArgs struct {
	TxID string `json:"txID"`
}

// GetTransactionReceiptReply ...
type GetTransactionReceiptReply struct {
	TxID              string       `json:"txID"`
	BlockID           string       `json:"blockID"`
	BlockHeight       cjson.Uint64 `json:"blockHeight"`
	Index             cjson.Uint64 `json:"index"`
	From              string       `json:"from"`
	To                string       `json:"to"`
	Value             string       `json:"value"`
	GasUsed           cjson.Uint64 `json:"gasUsed"`
	CumulativeGasUsed cjson.Uint64 `json:"cumulativeGasUsed"`
	EffectiveGasPrice string       `json:"effectiveGasPrice"`
}

// GetTransactionReceipt returns the receipt of a mined transaction.
func (s *Service) GetTransactionReceipt(_ *http.Request, args *GetTransactionReceiptArgs, reply *GetTransactionReceiptReply) error {
	txID, err := ParseID(args.TxID)
	if err != nil {
		return err
	}
	receipt, err := s.vm.GetReceipt(txID)
	if err != nil {
		return err
	}
	reply.TxID = FormatID(receipt.TxID)
	reply.BlockID = FormatID(receipt.BlockID)
	reply.BlockHeight = cjson.Uint64(receipt.BlockHeight)
	reply.Index = cjson.Uint64(receipt.Index)
	reply.From = FormatAddress(receipt.From)
	reply.To = FormatAddress(receipt.To)
	reply.Value = FormatU256(receipt.Value)
	reply.GasUsed = cjson.Uint64(receipt.GasUsed)
	reply.CumulativeGasUsed = cjson.Uint64(receipt.CumulativeGasUsed)
	reply.EffectiveGasPrice = FormatU256(receipt.EffectiveGasPrice)
	return nil
}

// GetBalanceArgs ...
type GetBalanceArgs struct {
	Address string `json:"address"`
}

// GetBalanceReply ...
type GetBalanceReply struct {
	Balance string `json:"balance"`
}

// GetBalance returns an account balance; unknown addresses read as zero.
func (s *Service) GetBalance(_ *http.Request, args *GetBalanceArgs, reply *GetBalanceReply) error {
	addr, err := ParseAddress(args.Address)
	if err != nil {
		return err
	}
	reply.Balance = FormatU256(s.vm.Balance(addr))
	return nil
}

// GetTransactionCountArgs ...
type GetTransactionCountArgs struct {
	Address string `json:"address"`
}

// GetTransactionCountReply ...
type GetTransactionCountReply struct {
	Nonce cjson.Uint64 `json:"nonce"`
}

// GetTransactionCount returns an account nonce.
func (s *Service) GetTransactionCount(_ *http.Request, args *GetTransactionCountArgs, reply *GetTransactionCountReply) error {
	addr, err := ParseAddress(args.Address)
	if err != nil {
		return err
	}
	reply.Nonce = cjson.Uint64(s.vm.Nonce(addr))
	return nil
}

// GetStorageAtArgs ...
type GetStorageAtArgs struct {
	Address string `json:"address"`
	Key     string `json:"key"`
}

// GetStorageAtReply ...
type GetStorageAtReply struct {
	Value string `json:"value"`
}

// GetStorageAt returns a storage word; unset slots read as zero.
func (s *Service) GetStorageAt(_ *http.Request, args *GetStorageAtArgs, reply *GetStorageAtReply) error {
	addr, err := ParseAddress(args.Address)
	if err != nil {
		return err
	}
	key, err := ParseU256(args.Key)
	if err != nil {
		return err
	}
	value := s.vm.StorageAt(addr, *key)
	reply.Value = FormatU256(&value)
	return nil
}

// SetBalanceArgs ...
type SetBalanceArgs struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// SetBalance overwrites an account balance.
func (s *Service) SetBalance(_ *http.Request, args *SetBalanceArgs, reply *api.EmptyReply) error {
	addr, err := ParseAddress(args.Address)
	if err != nil {
		return err
	}
	balance, err := ParseU256(args.Balance)
	if err != nil {
		return err
	}
	s.vm.SetBalance(addr, balance)
	return nil
}

// SetNonceArgs ...
type SetNonceArgs struct {
	Address string       `json:"address"`
	Nonce   cjson.Uint64 `json:"nonce"`
}

// SetNonce overwrites an account nonce.
func (s *Service) SetNonce(_ *http.Request, args *SetNonceArgs, reply *api.EmptyReply) error {
	addr, err := ParseAddress(args.Address)
	if err != nil {
		return err
	}
	s.vm.SetNonce(addr, uint64(args.Nonce))
	return nil
}

// SetStorageAtArgs ...
type SetStorageAtArgs struct {
	Address string `json:"address"`
	Key     string `json:"key"`
	Value   string `json:"value"`
}

// SetStorageAt writes a word into an account's storage.
func (s *Service) SetStorageAt(_ *http.Request, args *SetStorageAtArgs, reply *api.EmptyReply) error {
	addr, err := ParseAddress(args.Address)
	if err != nil {
		return err
	}
	key, err := ParseU256(args.Key)
	if err != nil {
		return err
	}
	value, err := ParseU256(args.Value)
	if err != nil {
		return err
	}
	s.vm.SetStorage(addr, *key, *value)
	return nil
}

// DropTransactionArgs ...
type DropTransactionArgs struct {
	TxID string `json:"txID"`
}

// DropTransactionReply ...
type DropTransactionReply struct {
	Removed bool `json:"removed"`
}

// DropTransaction removes a pending transaction from the mempool.
func (s *Service) DropTransaction(_ *http.Request, args *DropTransactionArgs, reply *DropTransactionReply) error {
	txID, err := ParseID(args.TxID)
	if err != nil {
		return err
	}
	reply.Removed = s.vm.DropTransaction(txID)
	return nil
}

// TxSummary describes one pending transaction.
type TxSummary struct {
	TxID     string       `json:"txID"`
	From     string       `json:"from"`
	To       string       `json:"to"`
	Value    string       `json:"value"`
	GasPrice string       `json:"gasPrice"`
	Nonce    cjson.Uint64 `json:"nonce"`
}

// PendingTransactionsReply ...
type PendingTransactionsReply struct {
	Transactions []TxSummary `json:"transactions"`
}

// PendingTransactions lists the mempool contents in submission order.
func (s *Service) PendingTransactions(_ *http.Request, _ *struct{}, reply *PendingTransactionsReply) error {
	pending := s.vm.PendingTxs()
	reply.Transactions = make([]TxSummary, 0, len(pending))
	for _, tx := range pending {
		reply.Transactions = append(reply.Transactions, TxSummary{
			TxID:     FormatID(tx.ID()),
			From:     FormatAddress(tx.From),
			To:       FormatAddress(tx.To),
			Value:    FormatU256(&tx.Value),
			GasPrice: FormatU256(&tx.GasPrice),
			Nonce:    cjson.Uint64(tx.Nonce),
		})
	}
	return nil
}

// SnapshotSummary describes one live snapshot.
type SnapshotSummary struct {
	ID     string       `json:"id"`
	Height cjson.Uint64 `json:"height"`
}

// ListSnapshotsReply ...
type ListSnapshotsReply struct {
	Snapshots []SnapshotSummary `json:"snapshots"`
}

// ListSnapshots lists the live snapshots in ascending id order.
func (s *Service) ListSnapshots(_ *http.Request, _ *struct{}, reply *ListSnapshotsReply) error {
	live := s.vm.ListSnapshots()
	reply.Snapshots = make([]SnapshotSummary, 0, len(live))
	for _, info := range live {
		reply.Snapshots = append(reply.Snapshots, SnapshotSummary{
			ID:     FormatSnapshotID(info.ID),
			Height: cjson.Uint64(info.Height),
		})
	}
	return nil
}

// GasPriceReply ...
type GasPriceReply struct {
	GasPrice string `json:"gasPrice"`
}

// GasPrice returns the node's base gas price.
func (s *Service) GasPrice(_ *http.Request, _ *struct{}, reply *GasPriceReply) error {
	reply.GasPrice = FormatU256(s.vm.GasPrice())
	return nil
}

// ChainIDReply ...
type ChainIDReply struct {
	ChainID cjson.Uint64 `json:"chainID"`
}

// ChainID returns the chain id from genesis.
func (s *Service) ChainID(_ *http.Request, _ *struct{}, reply *ChainIDReply) error {
	reply.ChainID = cjson.Uint64(s.vm.ChainID())
	return nil
}
