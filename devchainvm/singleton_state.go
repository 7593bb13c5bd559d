// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devchainvm

import (
	"github.com/ava-labs/avalanchego/database"
)

var (
	isInitializedKey = []byte{0x00}
	genesisKey       = []byte{0x01}

	_ SingletonState = (*singletonState)(nil)
)

// SingletonState is a thin wrapper around a database to provide storage of
// the chain's one-off bookkeeping values.
type SingletonState interface {
	IsInitialized() (bool, error)
	SetInitialized() error

	GetGenesis() ([]byte, error)
	SetGenesis([]byte) error
}

type singletonState struct {
	singletonDB database.Database
}

func NewSingletonState(db database.Database) SingletonState {
	return &singletonState{
		singletonDB: db,
	}
}

func (s *singletonState) IsInitialized() (bool, error) {
	return s.singletonDB.Has(isInitializedKey)
}

func (s *singletonState) SetInitialized() error {
	return s.singletonDB.Put(isInitializedKey, nil)
}

func (s *singletonState) GetGenesis() ([]byte, error) {
	return s.singletonDB.Get(genesisKey)
}

func (s *singletonState) SetGenesis(genesisBytes []byte) error {
	return s.singletonDB.Put(genesisKey, genesisBytes)
}
