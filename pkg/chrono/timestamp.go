// Package chrono implements the deterministic Timestamp type used in the
// event model and the ABCI bridge's message-timestamp validation.
package chrono

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Timestamp is a whole count of seconds since the Unix epoch. Unlike
// time.Time it has no monotonic component and no location, so two
// Timestamps built from the same seconds value always compare equal -
// required for deterministic replay across replicas.
type Timestamp struct {
	seconds int64
}

// Epoch is the sentinel zero timestamp the bridge stamps onto every
// deterministic response (spec.md S3/testable-property 2).
var Epoch = Timestamp{seconds: 0}

// New constructs a Timestamp from a count of seconds since the epoch.
func New(seconds int64) Timestamp {
	return Timestamp{seconds: seconds}
}

// Now returns the current wall-clock time truncated to whole seconds. This
// MUST NOT be called anywhere on the deliver_tx path (determinism
// discipline, spec.md section 9): it exists for the check_tx path, which is
// explicitly permitted to use local wall-clock time.
func Now() Timestamp {
	return Timestamp{seconds: time.Now().Unix()}
}

// FromTime converts an absolute instant to a Timestamp, discarding
// sub-second precision.
func FromTime(t time.Time) Timestamp {
	return Timestamp{seconds: t.Unix()}
}

// Time converts the Timestamp back to an absolute wall-clock instant in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.seconds, 0).UTC()
}

// Seconds returns the raw seconds-since-epoch value.
func (t Timestamp) Seconds() int64 {
	return t.seconds
}

// Before reports whether t is strictly earlier than other.
func (t Timestamp) Before(other Timestamp) bool {
	return t.seconds < other.seconds
}

// After reports whether t is strictly later than other.
func (t Timestamp) After(other Timestamp) bool {
	return t.seconds > other.seconds
}

// WithinTolerance reports whether t and other differ by no more than
// tolerance, used by the bridge to bound message-timestamp skew against
// block_time (spec.md section 4.5, TIMEOUT).
func (t Timestamp) WithinTolerance(other Timestamp, tolerance time.Duration) bool {
	diff := t.seconds - other.seconds
	if diff < 0 {
		diff = -diff
	}
	return diff <= int64(tolerance/time.Second)
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%d", t.seconds)
}

// MarshalCBOR implements cbor.Marshaler, encoding as an unsigned/negative
// CBOR integer of whole seconds (no tagging), matching many_types::Timestamp
// semantics rather than CBOR tag 1 (epoch-based date/time).
func (t Timestamp) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(t.seconds)
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (t *Timestamp) UnmarshalCBOR(data []byte) error {
	var v int64
	if err := cbor.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("chrono: %w", err)
	}
	t.seconds = v
	return nil
}
