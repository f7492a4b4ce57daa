package events

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// HeightEventIDShift is the number of low-order bits reserved for the
// in-block counter of a composite EventId. No block may produce more than
// 1<<HeightEventIDShift events. Modeled on the TimeShift/TimeBits split in
// forestrie-go-merklelog/massifs/snowflakeid, which packs a monotonic id from
// a coarse counter (there: time; here: block height) and a fine counter.
const HeightEventIDShift = 32

// EventId is a variable-length big-endian non-negative integer. It is
// strictly increasing across the life of the chain and orders numerically
// (see Compare). Because Bytes drops leading zeros, two ids whose encodings
// differ in length do not order the way those bytes compare
// lexicographically.
type EventId struct {
	v *big.Int
}

// Zero is the EventId produced by EventId::from([0]) during store
// initialization.
var Zero = FromUint64(0)

// FromUint64 builds an EventId from a plain counter value.
func FromUint64(v uint64) EventId {
	return EventId{v: new(big.Int).SetUint64(v)}
}

// FromHeightAndCounter builds the composite (block_height << SHIFT) |
// counter id used to reset the in-block counter at each commit.
func FromHeightAndCounter(height uint64, counter uint32) EventId {
	h := new(big.Int).Lsh(new(big.Int).SetUint64(height), HeightEventIDShift)
	h.Or(h, new(big.Int).SetUint64(uint64(counter)))
	return EventId{v: h}
}

// FromBytes interprets b as a big-endian unsigned integer.
func FromBytes(b []byte) EventId {
	return EventId{v: new(big.Int).SetBytes(b)}
}

// Bytes returns the canonical big-endian encoding, with no leading zero
// bytes (big.Int.Bytes already strips them; the empty slice represents 0).
func (id EventId) Bytes() []byte {
	return id.v.Bytes()
}

// Add returns id + n.
func (id EventId) Add(n uint32) EventId {
	return EventId{v: new(big.Int).Add(id.v, new(big.Int).SetUint64(uint64(n)))}
}

// Sub returns id - n. The caller must ensure id >= n; this package never
// saturates at zero, matching the "monotone increase only" contract.
func (id EventId) Sub(n uint32) EventId {
	return EventId{v: new(big.Int).Sub(id.v, new(big.Int).SetUint64(uint64(n)))}
}

// Compare returns -1, 0 or 1 as id is numerically less than, equal to, or
// greater than other.
func (id EventId) Compare(other EventId) int {
	return id.v.Cmp(other.v)
}

func (id EventId) Less(other EventId) bool {
	return id.Compare(other) < 0
}

func (id EventId) String() string {
	return fmt.Sprintf("%x", id.Bytes())
}

// MarshalCBOR encodes the EventId as a CBOR byte string of its big-endian
// encoding, matching the minicbor Encode impl in the original source
// (e.bytes(&self.0)).
func (id EventId) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(id.Bytes())
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (id *EventId) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("events: decode EventId: %w", err)
	}
	id.v = new(big.Int).SetBytes(raw)
	return nil
}

// bytesCompare compares two wire encodings lexicographically. Nothing in
// this module calls it; Filter and Compare work on the parsed big.Int.
func bytesCompare(a, b []byte) int {
	return bytes.Compare(a, b)
}
