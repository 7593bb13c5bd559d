// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devchainvm

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/holiman/uint256"
)

const (
	defaultDevAccounts = 10

	// defaultGasPriceWei is 1 gwei, the price receipts report when neither
	// the transaction nor the genesis sets one.
	defaultGasPriceWei uint64 = 1_000_000_000
)

var errGenesisTimestamp = errors.New("genesis timestamp is negative")

// Genesis describes the chain a fresh node boots: its id, base gas price,
// genesis block timestamp in milliseconds, and the pre-funded development
// accounts.
type Genesis struct {
	ChainID   uint64          `json:"chainId"`
	GasPrice  string          `json:"gasPrice"`
	Timestamp int64           `json:"timestamp"`
	Allocs    []*GenesisAlloc `json:"allocations"`
}

// GenesisAlloc pre-funds one address.
type GenesisAlloc struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// DefaultGenesis builds the out-of-the-box dev chain: [accounts] derived
// addresses funded with [balance] each, starting at the current wall-clock
// time.
func DefaultGenesis(chainID uint64, accounts int, balance, gasPrice *uint256.Int) *Genesis {
	if accounts <= 0 {
		accounts = defaultDevAccounts
	}
	g := &Genesis{
		ChainID:   chainID,
		GasPrice:  FormatU256(gasPrice),
		Timestamp: time.Now().UnixMilli(),
	}
	for i := 0; i < accounts; i++ {
		g.Allocs = append(g.Allocs, &GenesisAlloc{
			Address: FormatAddress(DevAddress(i)),
			Balance: FormatU256(balance),
		})
	}
	return g
}

// DevAddress derives the i-th well-known development address. The derivation
// is fixed so tooling can hardcode the accounts the node funds.
func DevAddress(i int) ids.ShortID {
	seed := hashing.ComputeHash256([]byte(fmt.Sprintf("devchain dev account %d", i)))
	return ids.ShortID(hashing.ComputeHash160Array(seed))
}

// ParseGenesis decodes and validates genesis JSON.
func ParseGenesis(b []byte) (*Genesis, error) {
	g := &Genesis{}
	if err := json.Unmarshal(b, g); err != nil {
		return nil, fmt.Errorf("failed to parse genesis: %w", err)
	}
	if g.Timestamp < 0 {
		return nil, errGenesisTimestamp
	}
	if _, err := g.gasPrice(); err != nil {
		return nil, err
	}
	for _, alloc := range g.Allocs {
		if _, err := ParseAddress(alloc.Address); err != nil {
			return nil, err
		}
		if _, err := ParseU256(alloc.Balance); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Bytes returns the canonical JSON form of [g].
func (g *Genesis) Bytes() ([]byte, error) {
	return json.Marshal(g)
}

func (g *Genesis) gasPrice() (*uint256.Int, error) {
	if g.GasPrice == "" {
		return uint256.NewInt(defaultGasPriceWei), nil
	}
	return ParseU256(g.GasPrice)
}
