// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/ava-labs/avalanchego/api"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/holiman/uint256"

	"github.com/ava-labs/devchainvm/devchainvm"

	cjson "github.com/ava-labs/avalanchego/utils/json"
)

// Client defines devchainvm client operations.
type Client interface {
	// Mine appends [count] blocks, advancing the chain clock by [interval]
	// seconds before each, and returns the new head height.
	Mine(ctx context.Context, count uint64, interval int64) (uint64, error)

	// Snapshot captures the chain state and returns the capture's id.
	Snapshot(ctx context.Context) (string, error)

	// Revert restores the newest live snapshot at or below [id] and reports
	// whether anything was restored, plus the head height after the call.
	Revert(ctx context.Context, id string) (bool, uint64, error)

	// Rollback removes the last [count] blocks and returns the new height.
	Rollback(ctx context.Context, count uint64) (uint64, error)

	// SetTime jumps the chain clock to [timestamp] seconds and returns the
	// offset in seconds that was in effect before the jump.
	SetTime(ctx context.Context, timestamp uint64) (int64, error)

	// IncreaseTime shifts the chain clock and returns the total offset.
	IncreaseTime(ctx context.Context, seconds uint64) (int64, error)

	// SetNextBlockTimestamp pins the timestamp of the next mined block.
	SetNextBlockTimestamp(ctx context.Context, timestamp uint64) error

	// BestBlockNumber returns the head block height.
	BestBlockNumber(ctx context.Context) (uint64, error)

	// GetBlock fetches a block by id; an empty id fetches the head.
	GetBlock(ctx context.Context, id string) (*devchainvm.GetBlockReply, error)

	// GetBlockByHeight fetches the block at [height].
	GetBlockByHeight(ctx context.Context, height uint64) (*devchainvm.GetBlockReply, error)

	// SendTransaction queues a transfer and returns its transaction id.
	SendTransaction(ctx context.Context, args *devchainvm.SendTransactionArgs) (string, error)

	// GetTransactionReceipt returns the receipt of a mined transaction.
	GetTransactionReceipt(ctx context.Context, txID string) (*devchainvm.GetTransactionReceiptReply, error)

	// GetBalance returns an account balance.
	GetBalance(ctx context.Context, address string) (*uint256.Int, error)

	// GetTransactionCount returns an account nonce.
	GetTransactionCount(ctx context.Context, address string) (uint64, error)

	// GetStorageAt returns a storage word as a hex quantity.
	GetStorageAt(ctx context.Context, address, key string) (string, error)

	// SetBalance overwrites an account balance.
	SetBalance(ctx context.Context, address, balance string) error

	// SetNonce overwrites an account nonce.
	SetNonce(ctx context.Context, address string, nonce uint64) error

	// SetStorageAt writes a word into an account's storage.
	SetStorageAt(ctx context.Context, address, key, value string) error

	// DropTransaction removes a pending transaction from the mempool.
	DropTransaction(ctx context.Context, txID string) (bool, error)

	// PendingTransactions lists the mempool contents in submission order.
	PendingTransactions(ctx context.Context) ([]devchainvm.TxSummary, error)

	// ListSnapshots lists the live snapshots in ascending id order.
	ListSnapshots(ctx context.Context) ([]devchainvm.SnapshotSummary, error)
}

// New creates a new client object talking to the API served at [uri], e.g.
// "http://127.0.0.1:9750".
func New(uri string) Client {
	return &client{
		endpoint:   uri,
		httpClient: &http.Client{},
	}
}

type client struct {
	endpoint   string
	httpClient *http.Client
}

func (cli *client) send(ctx context.Context, method string, args, reply interface{}) error {
	body, err := json2.EncodeClientRequest("devchain."+method, args)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cli.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := cli.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", method, resp.StatusCode)
	}
	return json2.DecodeClientResponse(resp.Body, reply)
}

func (cli *client) Mine(ctx context.Context, count uint64, interval int64) (uint64, error) {
	args := &devchainvm.MineArgs{}
	if count > 0 {
		c := cjson.Uint64(count)
		args.Count = &c
	}
	if interval > 0 {
		i := cjson.Uint64(uint64(interval))
		args.Interval = &i
	}
	resp := new(devchainvm.MineReply)
	if err := cli.send(ctx, "mine", args, resp); err != nil {
		return 0, err
	}
	return uint64(resp.Height), nil
}

func (cli *client) Snapshot(ctx context.Context) (string, error) {
	resp := new(devchainvm.SnapshotReply)
	if err := cli.send(ctx, "snapshot", &struct{}{}, resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (cli *client) Revert(ctx context.Context, id string) (bool, uint64, error) {
	resp := new(devchainvm.RevertReply)
	if err := cli.send(ctx, "revert", &devchainvm.RevertArgs{ID: id}, resp); err != nil {
		return false, 0, err
	}
	return resp.Success, uint64(resp.Height), nil
}

func (cli *client) Rollback(ctx context.Context, count uint64) (uint64, error) {
	args := &devchainvm.RollbackArgs{}
	if count > 0 {
		c := cjson.Uint64(count)
		args.Count = &c
	}
	resp := new(devchainvm.RollbackReply)
	if err := cli.send(ctx, "rollback", args, resp); err != nil {
		return 0, err
	}
	return uint64(resp.Height), nil
}

func (cli *client) SetTime(ctx context.Context, timestamp uint64) (int64, error) {
	resp := new(devchainvm.SetTimeReply)
	err := cli.send(ctx, "setTime", &devchainvm.SetTimeArgs{Timestamp: cjson.Uint64(timestamp)}, resp)
	if err != nil {
		return 0, err
	}
	return resp.OffsetSeconds, nil
}

func (cli *client) IncreaseTime(ctx context.Context, seconds uint64) (int64, error) {
	resp := new(devchainvm.IncreaseTimeReply)
	err := cli.send(ctx, "increaseTime", &devchainvm.IncreaseTimeArgs{Seconds: cjson.Uint64(seconds)}, resp)
	if err != nil {
		return 0, err
	}
	return resp.OffsetSeconds, nil
}

func (cli *client) SetNextBlockTimestamp(ctx context.Context, timestamp uint64) error {
	resp := new(api.EmptyReply)
	return cli.send(ctx, "setNextBlockTimestamp",
		&devchainvm.SetNextBlockTimestampArgs{Timestamp: cjson.Uint64(timestamp)}, resp)
}

func (cli *client) BestBlockNumber(ctx context.Context) (uint64, error) {
	resp := new(devchainvm.BestBlockNumberReply)
	if err := cli.send(ctx, "bestBlockNumber", &struct{}{}, resp); err != nil {
		return 0, err
	}
	return uint64(resp.Height), nil
}

func (cli *client) GetBlock(ctx context.Context, id string) (*devchainvm.GetBlockReply, error) {
	args := &devchainvm.GetBlockArgs{}
	if id != "" {
		args.ID = &id
	}
	resp := new(devchainvm.GetBlockReply)
	if err := cli.send(ctx, "getBlock", args, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (cli *client) GetBlockByHeight(ctx context.Context, height uint64) (*devchainvm.GetBlockReply, error) {
	h := cjson.Uint64(height)
	resp := new(devchainvm.GetBlockReply)
	if err := cli.send(ctx, "getBlock", &devchainvm.GetBlockArgs{Height: &h}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (cli *client) SendTransaction(ctx context.Context, args *devchainvm.SendTransactionArgs) (string, error) {
	resp := new(devchainvm.SendTransactionReply)
	if err := cli.send(ctx, "sendTransaction", args, resp); err != nil {
		return "", err
	}
	return resp.TxID, nil
}

func (cli *client) GetTransactionReceipt(ctx context.Context, txID string) (*devchainvm.GetTransactionReceiptReply, error) {
	resp := new(devchainvm.GetTransactionReceiptReply)
	err := cli.send(ctx, "getTransactionReceipt", &devchainvm.GetTransactionReceiptArgs{TxID: txID}, resp)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (cli *client) GetBalance(ctx context.Context, address string) (*uint256.Int, error) {
	resp := new(devchainvm.GetBalanceReply)
	if err := cli.send(ctx, "getBalance", &devchainvm.GetBalanceArgs{Address: address}, resp); err != nil {
		return nil, err
	}
	return devchainvm.ParseU256(resp.Balance)
}

func (cli *client) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	resp := new(devchainvm.GetTransactionCountReply)
	err := cli.send(ctx, "getTransactionCount", &devchainvm.GetTransactionCountArgs{Address: address}, resp)
	if err != nil {
		return 0, err
	}
	return uint64(resp.Nonce), nil
}

func (cli *client) GetStorageAt(ctx context.Context, address, key string) (string, error) {
	resp := new(devchainvm.GetStorageAtReply)
	err := cli.send(ctx, "getStorageAt", &devchainvm.GetStorageAtArgs{Address: address, Key: key}, resp)
	if err != nil {
		return "", err
	}
	return resp.Value, nil
}

func (cli *client) SetBalance(ctx context.Context, address, balance string) error {
	resp := new(api.EmptyReply)
	return cli.send(ctx, "setBalance", &devchainvm.SetBalanceArgs{Address: address, Balance: balance}, resp)
}

func (cli *client) SetNonce(ctx context.Context, address string, nonce uint64) error {
	resp := new(api.EmptyReply)
	return cli.send(ctx, "setNonce", &devchainvm.SetNonceArgs{Address: address, Nonce: cjson.Uint64(nonce)}, resp)
}

func (cli *client) SetStorageAt(ctx context.Context, address, key, value string) error {
	resp := new(api.EmptyReply)
	return cli.send(ctx, "setStorageAt",
		&devchainvm.SetStorageAtArgs{Address: address, Key: key, Value: value}, resp)
}

func (cli *client) DropTransaction(ctx context.Context, txID string) (bool, error) {
	resp := new(devchainvm.DropTransactionReply)
	if err := cli.send(ctx, "dropTransaction", &devchainvm.DropTransactionArgs{TxID: txID}, resp); err != nil {
		return false, err
	}
	return resp.Removed, nil
}

func (cli *client) PendingTransactions(ctx context.Context) ([]devchainvm.TxSummary, error) {
	resp := new(devchainvm.PendingTransactionsReply)
	if err := cli.send(ctx, "pendingTransactions", &struct{}{}, resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

func (cli *client) ListSnapshots(ctx context.Context) ([]devchainvm.SnapshotSummary, error) {
	resp := new(devchainvm.ListSnapshotsReply)
	if err := cli.send(ctx, "listSnapshots", &struct{}{}, resp); err != nil {
		return nil, err
	}
	return resp.Snapshots, nil
}
