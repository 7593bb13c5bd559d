// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devchainvm

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
)

const blockCacheSize = 2048

var (
	// ErrInvalidSequence is returned when a block does not extend the chain:
	// its height or parent disagrees with the current head.
	ErrInvalidSequence = errors.New("block does not extend the current head")

	// ErrInvalidHeight is returned when a truncation target is above the
	// current head.
	ErrInvalidHeight = errors.New("height is beyond the current head")

	// ErrInvalidCount is returned when a rollback asks for more blocks than
	// exist above genesis.
	ErrInvalidCount = errors.New("cannot roll back past genesis")

	errBlockWrongVersion = errors.New("wrong version")

	acceptedKey = []byte("acceptedBlock")

	_ BlockState = (*blockState)(nil)
)

// BlockState is the append-only store of mined blocks: one linear chain
// indexed by height, by block id, and by the ids of the transactions inside.
type BlockState interface {
	Append(blk *Block) error
	TruncateTo(height uint64) error
	Rollback(count uint64) error
	GetBlock(blkID ids.ID) (*Block, error)
	GetBlockByHeight(height uint64) (*Block, error)
	Head() (*Block, error)
	Height() (uint64, error)
	GetTxBlock(txID ids.ID) (uint64, uint32, error)
	ClearCache()
}

// txLocation points a mined transaction id back at its block.
type txLocation struct {
	Height uint64 `serialize:"true"`
	Index  uint32 `serialize:"true"`
}

type blockState struct {
	// cache of blockID -> *Block
	// if a block is nil, that means the block is not in storage
	blkCache cache.Cacher

	heightDB   database.Database
	blockDB    database.Database
	txIndexDB  database.Database
	acceptedDB database.Database
}

func NewBlockState(heightDB, blockDB, txIndexDB, acceptedDB database.Database) BlockState {
	return &blockState{
		blkCache:   &cache.LRU{Size: blockCacheSize},
		heightDB:   heightDB,
		blockDB:    blockDB,
		txIndexDB:  txIndexDB,
		acceptedDB: acceptedDB,
	}
}

func (s *blockState) headID() (ids.ID, error) {
	idBytes, err := s.acceptedDB.Get(acceptedKey)
	if err != nil {
		return ids.ID{}, err
	}
	return ids.ToID(idBytes)
}

// Head returns the most recently appended block. database.ErrNotFound means
// the chain has no blocks yet, not even genesis.
func (s *blockState) Head() (*Block, error) {
	headID, err := s.headID()
	if err != nil {
		return nil, err
	}
	return s.GetBlock(headID)
}

func (s *blockState) Height() (uint64, error) {
	head, err := s.Head()
	if err != nil {
		return 0, err
	}
	return head.Hght, nil
}

// Append accepts [blk] as the new head. The block must carry the next height
// and name the current head as its parent; an empty chain only accepts a
// height-0 block with an empty parent.
func (s *blockState) Append(blk *Block) error {
	switch headID, err := s.headID(); {
	case err == nil:
		head, err := s.GetBlock(headID)
		if err != nil {
			return err
		}
		if blk.Hght != head.Hght+1 || blk.PrntID != headID {
			return fmt.Errorf("%w: block height %d parent %s onto head height %d",
				ErrInvalidSequence, blk.Hght, blk.PrntID, head.Hght)
		}
	case errors.Is(err, database.ErrNotFound):
		if blk.Hght != 0 || blk.PrntID != ids.Empty {
			return fmt.Errorf("%w: block height %d is not a genesis block", ErrInvalidSequence, blk.Hght)
		}
	default:
		return err
	}

	blkID := blk.ID()
	if err := s.heightDB.Put(packHeight(blk.Hght), blkID[:]); err != nil {
		return fmt.Errorf("failed to put block %s into height index: %w", blkID, err)
	}
	if err := s.blockDB.Put(blkID[:], blk.Bytes()); err != nil {
		return fmt.Errorf("failed to put block %s into block index: %w", blkID, err)
	}
	for i, tx := range blk.Txs {
		loc := txLocation{Height: blk.Hght, Index: uint32(i)}
		locBytes, err := Codec.Marshal(codecVersion, &loc)
		if err != nil {
			return fmt.Errorf("failed to marshal tx location: %w", err)
		}
		txID := tx.ID()
		if err := s.txIndexDB.Put(txID[:], locBytes); err != nil {
			return fmt.Errorf("failed to index transaction %s: %w", txID, err)
		}
	}
	if err := s.acceptedDB.Put(acceptedKey, blkID[:]); err != nil {
		return fmt.Errorf("failed to move head to %s: %w", blkID, err)
	}
	s.blkCache.Put(blkID, blk)
	return nil
}

func (s *blockState) GetBlock(blkID ids.ID) (*Block, error) {
	if blkIntf, cached := s.blkCache.Get(blkID); cached {
		if blkIntf == nil {
			return nil, database.ErrNotFound
		}
		return blkIntf.(*Block), nil
	}

	blkBytes, err := s.blockDB.Get(blkID[:])
	if err != nil {
		return nil, err
	}
	blk, err := ParseBlock(blkBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse block %s: %w", blkID, err)
	}
	s.blkCache.Put(blkID, blk)
	return blk, nil
}

func (s *blockState) GetBlockByHeight(height uint64) (*Block, error) {
	blkIDBytes, err := s.heightDB.Get(packHeight(height))
	if err != nil {
		return nil, err
	}
	blkID, err := ids.ToID(blkIDBytes)
	if err != nil {
		return nil, err
	}
	return s.GetBlock(blkID)
}

// GetTxBlock resolves a mined transaction id to the height of the block that
// included it and the transaction's index within that block.
func (s *blockState) GetTxBlock(txID ids.ID) (uint64, uint32, error) {
	locBytes, err := s.txIndexDB.Get(txID[:])
	if err != nil {
		return 0, 0, err
	}
	loc := txLocation{}
	parsedVersion, err := Codec.Unmarshal(locBytes, &loc)
	if err != nil {
		return 0, 0, err
	}
	if parsedVersion != codecVersion {
		return 0, 0, errBlockWrongVersion
	}
	return loc.Height, loc.Index, nil
}

// TruncateTo removes every block above [height] and makes the block at
// [height] the head again. Removed blocks disappear from all three indexes.
func (s *blockState) TruncateTo(height uint64) error {
	head, err := s.Head()
	if err != nil {
		return err
	}
	if height > head.Hght {
		return fmt.Errorf("%w: target %d, head %d", ErrInvalidHeight, height, head.Hght)
	}

	for h := head.Hght; h > height; h-- {
		blk, err := s.GetBlockByHeight(h)
		if err != nil {
			return err
		}
		blkID := blk.ID()
		for _, tx := range blk.Txs {
			txID := tx.ID()
			if err := s.txIndexDB.Delete(txID[:]); err != nil {
				return fmt.Errorf("failed to unindex transaction %s: %w", txID, err)
			}
		}
		if err := s.blockDB.Delete(blkID[:]); err != nil {
			return fmt.Errorf("failed to delete block %s: %w", blkID, err)
		}
		if err := s.heightDB.Delete(packHeight(h)); err != nil {
			return fmt.Errorf("failed to delete height %d: %w", h, err)
		}
		s.blkCache.Evict(blkID)
	}

	target, err := s.GetBlockByHeight(height)
	if err != nil {
		return err
	}
	targetID := target.ID()
	return s.acceptedDB.Put(acceptedKey, targetID[:])
}

// Rollback removes the last [count] blocks. Genesis cannot be removed.
func (s *blockState) Rollback(count uint64) error {
	head, err := s.Head()
	if err != nil {
		return err
	}
	if count > head.Hght {
		return fmt.Errorf("%w: removing %d of %d blocks above genesis", ErrInvalidCount, count, head.Hght)
	}
	return s.TruncateTo(head.Hght - count)
}

func (s *blockState) ClearCache() {
	s.blkCache.Flush()
}
