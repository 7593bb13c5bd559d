// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devchainvm

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
)

var (
	// These are prefixes for db keys.
	// It's important to set different prefixes for each separate database objects.
	singletonStatePrefix = []byte("singleton")
	heightStatePrefix    = []byte("height")
	blockStatePrefix     = []byte("block")
	txIndexStatePrefix   = []byte("txindex")
	acceptedStatePrefix  = []byte("accepted")

	_ State = (*state)(nil)
)

// State is a wrapper around SingletonState and BlockState.
// State also exposes a few methods needed for managing database commits and
// close.
type State interface {
	SingletonState
	BlockState

	Commit() error
	Abort()
	Close() error
}

type state struct {
	SingletonState
	BlockState

	baseDB *versiondb.Database
}

// NewState layers a versioned view over [db] so a batch of writes either
// commits as one unit or aborts without trace.
func NewState(db database.Database) State {
	baseDB := versiondb.New(db)
	return &state{
		SingletonState: NewSingletonState(prefixdb.New(singletonStatePrefix, baseDB)),
		BlockState: NewBlockState(
			prefixdb.New(heightStatePrefix, baseDB),
			prefixdb.New(blockStatePrefix, baseDB),
			prefixdb.New(txIndexStatePrefix, baseDB),
			prefixdb.New(acceptedStatePrefix, baseDB),
		),
		baseDB: baseDB,
	}
}

// Commit commits pending operations to baseDB
func (s *state) Commit() error {
	return s.baseDB.Commit()
}

// Abort drops pending operations without applying them
func (s *state) Abort() {
	s.baseDB.Abort()
}

// Close closes the underlying base database
func (s *state) Close() error {
	return s.baseDB.Close()
}
