// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devchainvm

import (
	"errors"
	"math"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientBalance is returned when a sender cannot cover the
	// transferred value.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNonceOverflow is returned when an account nonce cannot be
	// incremented any further.
	ErrNonceOverflow = errors.New("nonce overflow")

	errBalanceOverflow = errors.New("balance overflow")
)

// account is the mutable record backing one address.
type account struct {
	balance uint256.Int
	nonce   uint64
	storage map[uint256.Int]uint256.Int
}

func (a *account) clone() *account {
	cp := &account{
		balance: a.balance,
		nonce:   a.nonce,
	}
	if len(a.storage) > 0 {
		cp.storage = make(map[uint256.Int]uint256.Int, len(a.storage))
		for k, v := range a.storage {
			cp.storage[k] = v
		}
	}
	return cp
}

// AccountState holds per-address balances, nonces, and storage words.
// Addresses never written read as all zero and take no space. The store is
// not safe for concurrent use; the VM serializes access to it.
type AccountState struct {
	accounts map[ids.ShortID]*account
}

// AccountCapture is a deep copy of an AccountState frozen at capture time,
// unaffected by whatever happens to the live state afterwards.
type AccountCapture struct {
	accounts map[ids.ShortID]*account
}

func NewAccountState() *AccountState {
	return &AccountState{
		accounts: make(map[ids.ShortID]*account),
	}
}

func (s *AccountState) lookup(addr ids.ShortID) (*account, bool) {
	a, ok := s.accounts[addr]
	return a, ok
}

// modify returns the record for [addr], materializing it on first write.
func (s *AccountState) modify(addr ids.ShortID) *account {
	if a, ok := s.accounts[addr]; ok {
		return a
	}
	a := &account{}
	s.accounts[addr] = a
	return a
}

// GetBalance returns [addr]'s balance, zero for addresses never seen.
func (s *AccountState) GetBalance(addr ids.ShortID) *uint256.Int {
	if a, ok := s.lookup(addr); ok {
		return a.balance.Clone()
	}
	return new(uint256.Int)
}

// GetNonce returns [addr]'s nonce, zero for addresses never seen.
func (s *AccountState) GetNonce(addr ids.ShortID) uint64 {
	if a, ok := s.lookup(addr); ok {
		return a.nonce
	}
	return 0
}

// GetStorage returns the word stored at [key], zero for unset slots.
func (s *AccountState) GetStorage(addr ids.ShortID, key uint256.Int) uint256.Int {
	if a, ok := s.lookup(addr); ok {
		return a.storage[key]
	}
	return uint256.Int{}
}

// ApplyTransfer moves [amount] from [from] to [to], debiting and crediting
// as one step. On error nothing has changed. A self-transfer only checks the
// balance.
func (s *AccountState) ApplyTransfer(from, to ids.ShortID, amount *uint256.Int) error {
	sender := s.modify(from)
	if sender.balance.Lt(amount) {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	recipient := s.modify(to)
	if _, overflow := new(uint256.Int).AddOverflow(&recipient.balance, amount); overflow {
		return errBalanceOverflow
	}
	sender.balance.Sub(&sender.balance, amount)
	recipient.balance.Add(&recipient.balance, amount)
	return nil
}

// IncrementNonce bumps [addr]'s nonce by one.
func (s *AccountState) IncrementNonce(addr ids.ShortID) error {
	a := s.modify(addr)
	if a.nonce == math.MaxUint64 {
		return ErrNonceOverflow
	}
	a.nonce++
	return nil
}

// SetBalance overwrites [addr]'s balance outright. This is the dev-node
// faucet; nothing in normal execution calls it.
func (s *AccountState) SetBalance(addr ids.ShortID, balance *uint256.Int) {
	s.modify(addr).balance.Set(balance)
}

// SetNonce overwrites [addr]'s nonce outright.
func (s *AccountState) SetNonce(addr ids.ShortID, nonce uint64) {
	s.modify(addr).nonce = nonce
}

// SetStorage writes a word into [addr]'s storage.
func (s *AccountState) SetStorage(addr ids.ShortID, key, value uint256.Int) {
	a := s.modify(addr)
	if a.storage == nil {
		a.storage = make(map[uint256.Int]uint256.Int)
	}
	a.storage[key] = value
}

// Capture deep-copies the whole store.
func (s *AccountState) Capture() *AccountCapture {
	cp := make(map[ids.ShortID]*account, len(s.accounts))
	for addr, a := range s.accounts {
		cp[addr] = a.clone()
	}
	return &AccountCapture{accounts: cp}
}

// Restore replaces the live state with [c]'s contents. The capture itself
// stays intact, so restoring it again later yields the same state.
func (s *AccountState) Restore(c *AccountCapture) {
	next := make(map[ids.ShortID]*account, len(c.accounts))
	for addr, a := range c.accounts {
		next[addr] = a.clone()
	}
	s.accounts = next
}

// Len reports how many addresses have been materialized.
func (s *AccountState) Len() int {
	return len(s.accounts)
}
