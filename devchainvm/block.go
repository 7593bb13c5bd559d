// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devchainvm

import (
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

// Block is one entry in the linear chain. Blocks are immutable once built;
// the chain only ever appends at the head or truncates back to an earlier
// height, so a block's id and contents never change after mining.
type Block struct {
	PrntID ids.ID         `serialize:"true" json:"parentID"`
	Hght   uint64         `serialize:"true" json:"height"`
	Tmstmp int64          `serialize:"true" json:"timestamp"`
	Txs    []*Transaction `serialize:"true" json:"transactions"`

	id    ids.ID
	bytes []byte
}

// NewBlock assembles a block, serializes it, and derives its id from the
// serialized bytes.
func NewBlock(parentID ids.ID, height uint64, timestamp int64, txs []*Transaction) (*Block, error) {
	blk := &Block{
		PrntID: parentID,
		Hght:   height,
		Tmstmp: timestamp,
		Txs:    txs,
	}
	return blk, blk.initialize()
}

// ParseBlock parses the byte repr. of a block stored in the block index
func ParseBlock(b []byte) (*Block, error) {
	blk := &Block{}
	parsedVersion, err := Codec.Unmarshal(b, blk)
	if err != nil {
		return nil, err
	}
	if parsedVersion != codecVersion {
		return nil, errBlockWrongVersion
	}
	for _, tx := range blk.Txs {
		if err := tx.initialize(); err != nil {
			return nil, err
		}
	}
	blk.bytes = b
	blk.id = hashing.ComputeHash256Array(b)
	return blk, nil
}

// initialize sets [b]'s byte repr. and its id, the hash of those bytes.
func (b *Block) initialize() error {
	bytes, err := Codec.Marshal(codecVersion, b)
	if err != nil {
		return err
	}
	b.bytes = bytes
	b.id = hashing.ComputeHash256Array(bytes)
	return nil
}

// ID returns the ID of this block
func (b *Block) ID() ids.ID { return b.id }

// Parent returns [b]'s parent's ID
func (b *Block) Parent() ids.ID { return b.PrntID }

// Height returns this block's height. The genesis block has height 0.
func (b *Block) Height() uint64 { return b.Hght }

// Timestamp returns this block's time in milliseconds since the Unix epoch.
func (b *Block) Timestamp() int64 { return b.Tmstmp }

// Time returns this block's time as wall-clock time.
func (b *Block) Time() time.Time { return time.UnixMilli(b.Tmstmp) }

// Bytes returns the byte repr. of this block
func (b *Block) Bytes() []byte { return b.bytes }

// GasUsed returns the total gas consumed by this block's transactions.
func (b *Block) GasUsed() uint64 { return uint64(len(b.Txs)) * TxGas }
