// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devchainvm

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/holiman/uint256"
)

var (
	errQuantityRange    = errors.New("quantity does not fit in 256 bits")
	errQuantityNegative = errors.New("quantity is negative")
)

// ParseAddress parses a 20-byte address from 0x-prefixed hex.
func ParseAddress(s string) (ids.ShortID, error) {
	b, err := decodeHex(s)
	if err != nil {
		return ids.ShortID{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	addr, err := ids.ToShortID(b)
	if err != nil {
		return ids.ShortID{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return addr, nil
}

// FormatAddress renders an address as 0x-prefixed hex.
func FormatAddress(addr ids.ShortID) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// ParseID parses a 32-byte block or transaction id from 0x-prefixed hex.
func ParseID(s string) (ids.ID, error) {
	b, err := decodeHex(s)
	if err != nil {
		return ids.ID{}, fmt.Errorf("invalid id %q: %w", s, err)
	}
	id, err := ids.ToID(b)
	if err != nil {
		return ids.ID{}, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

// FormatID renders a block or transaction id as 0x-prefixed hex.
func FormatID(id ids.ID) string {
	return "0x" + hex.EncodeToString(id[:])
}

// ParseU256 parses a 256-bit quantity from 0x-prefixed hex or decimal text.
// The empty string reads as zero.
func ParseU256(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := decodeHex(s)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity %q: %w", s, err)
		}
		if len(b) > 32 {
			return nil, fmt.Errorf("invalid quantity %q: %w", s, errQuantityRange)
		}
		return new(uint256.Int).SetBytes(b), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid quantity %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("invalid quantity %q: %w", s, errQuantityNegative)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("invalid quantity %q: %w", s, errQuantityRange)
	}
	return out, nil
}

// FormatU256 renders a quantity as minimal 0x-prefixed hex, "0x0" for zero.
func FormatU256(v *uint256.Int) string {
	if v == nil || v.IsZero() {
		return "0x0"
	}
	b := v.Bytes32()
	return "0x" + strings.TrimLeft(hex.EncodeToString(b[:]), "0")
}

// ParseSnapshotID parses a snapshot id from its RPC form, either 0x-prefixed
// hex ("0x1a") or decimal ("26").
func ParseSnapshotID(s string) (uint64, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		id, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid snapshot id %q: %w", s, err)
		}
		return id, nil
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid snapshot id %q: %w", s, err)
	}
	return id, nil
}

// FormatSnapshotID renders a snapshot id as 0x-prefixed hex.
func FormatSnapshotID(id uint64) string {
	return fmt.Sprintf("0x%x", id)
}

func decodeHex(s string) ([]byte, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

// packHeight gives the fixed-width big-endian form of a height used as a
// database key, so keys sort in height order.
func packHeight(height uint64) []byte {
	key := make([]byte, wrappers.LongLen)
	binary.BigEndian.PutUint64(key, height)
	return key
}
