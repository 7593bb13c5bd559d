// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devchainvm

import (
	"errors"

	"github.com/ava-labs/avalanchego/utils/timer/mockable"
)

const millisPerSecond = 1000

// ErrTimeUnderflow is returned when the chain clock would be moved to before
// the genesis block.
var ErrTimeUnderflow = errors.New("timestamp is before the genesis block")

// TimeSource supplies the timestamp stamped onto mined blocks: the wall
// clock plus a signed offset that SetTime and IncreaseTime adjust and that
// snapshot revert restores. Everything is millisecond precision internally;
// the RPC surface deals in whole seconds. Not safe for concurrent use; the
// VM serializes access to it.
type TimeSource struct {
	clock mockable.Clock

	offsetMillis  int64
	genesisMillis int64

	nextMillis int64
	nextArmed  bool
}

func NewTimeSource(genesisMillis int64) *TimeSource {
	return &TimeSource{
		genesisMillis: genesisMillis,
	}
}

// Now returns the current chain time in milliseconds since the Unix epoch.
func (t *TimeSource) Now() int64 {
	return t.clock.Time().UnixMilli() + t.offsetMillis
}

// SetTime makes Now report [absSeconds]. It returns the offset in whole
// seconds that was in effect before the call, so callers can report how far
// the clock jumped. Moving to before genesis fails.
func (t *TimeSource) SetTime(absSeconds uint64) (int64, error) {
	target := int64(absSeconds) * millisPerSecond
	if target < t.genesisMillis {
		return 0, ErrTimeUnderflow
	}
	prev := t.offsetMillis / millisPerSecond
	t.offsetMillis = target - t.clock.Time().UnixMilli()
	return prev, nil
}

// IncreaseTime shifts the offset by [seconds], negative allowed, and returns
// the total offset in whole seconds now in effect.
func (t *TimeSource) IncreaseTime(seconds int64) int64 {
	t.offsetMillis += seconds * millisPerSecond
	return t.offsetMillis / millisPerSecond
}

// SetNextTimestamp arms an exact timestamp for the next mined block only.
func (t *TimeSource) SetNextTimestamp(millis int64) {
	t.nextMillis = millis
	t.nextArmed = true
}

// NextTimestamp returns the timestamp for the block being mined: the armed
// one-shot value if any, otherwise Now. The one-shot value is consumed.
func (t *TimeSource) NextTimestamp() int64 {
	if t.nextArmed {
		t.nextArmed = false
		return t.nextMillis
	}
	return t.Now()
}

// Offset reports the current offset in milliseconds for snapshot captures.
func (t *TimeSource) Offset() int64 {
	return t.offsetMillis
}

// SetOffset restores a captured offset and disarms any pending one-shot
// timestamp.
func (t *TimeSource) SetOffset(millis int64) {
	t.offsetMillis = millis
	t.nextArmed = false
}
