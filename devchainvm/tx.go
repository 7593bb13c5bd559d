// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devchainvm

import (
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/holiman/uint256"
)

// TxGas is the gas consumed by a plain value transfer. Without contract
// execution every transaction costs exactly the intrinsic amount.
const TxGas uint64 = 21_000

// Transaction is a plain value transfer between two accounts. Dev-chain
// transactions are unsigned; the node trusts the declared sender.
type Transaction struct {
	From     ids.ShortID `serialize:"true"`
	To       ids.ShortID `serialize:"true"`
	Value    uint256.Int `serialize:"true"`
	GasPrice uint256.Int `serialize:"true"`
	Nonce    uint64      `serialize:"true"`

	id    ids.ID
	bytes []byte
}

// NewTransaction assembles a transfer of [value] from [from] to [to],
// serializes it, and derives its id. A nil [value] or [gasPrice] reads as
// zero.
func NewTransaction(from, to ids.ShortID, value, gasPrice *uint256.Int, nonce uint64) (*Transaction, error) {
	tx := &Transaction{
		From:  from,
		To:    to,
		Nonce: nonce,
	}
	if value != nil {
		tx.Value.Set(value)
	}
	if gasPrice != nil {
		tx.GasPrice.Set(gasPrice)
	}
	return tx, tx.initialize()
}

func (tx *Transaction) initialize() error {
	bytes, err := Codec.Marshal(codecVersion, tx)
	if err != nil {
		return err
	}
	tx.bytes = bytes
	tx.id = hashing.ComputeHash256Array(bytes)
	return nil
}

// ID returns the ID of this transaction, the hash of its serialized bytes.
func (tx *Transaction) ID() ids.ID { return tx.id }

// Bytes returns the byte repr. of this transaction
func (tx *Transaction) Bytes() []byte { return tx.bytes }

// EffectiveGasPrice is the price a receipt reports for this transaction: the
// price attached at submission, or [fallback] when the sender left it unset.
func (tx *Transaction) EffectiveGasPrice(fallback *uint256.Int) *uint256.Int {
	if !tx.GasPrice.IsZero() {
		return tx.GasPrice.Clone()
	}
	return fallback.Clone()
}

// Receipt describes a mined transaction: where it landed and what it paid.
// Receipts are derived from block contents on demand rather than stored.
type Receipt struct {
	TxID              ids.ID
	BlockID           ids.ID
	BlockHeight       uint64
	Index             uint32
	From              ids.ShortID
	To                ids.ShortID
	Value             *uint256.Int
	GasUsed           uint64
	CumulativeGasUsed uint64
	EffectiveGasPrice *uint256.Int
}
