package events

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/coreconsensus/bridge/pkg/cborutil"
)

// rawFields is the intermediate decode form of an EventInfo map: every value
// kept as an undecoded CBOR item so the caller can validate the field set
// (missing/unknown indexes) before committing to per-field decoding.
type rawFields map[uint64]cbor.RawMessage

func decodeFields(data []byte) (rawFields, error) {
	var m rawFields
	if err := cborutil.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("events: decode field map: %w", err)
	}
	if _, ok := m[0]; !ok {
		return nil, ErrMissingKindField
	}
	return m, nil
}

func decodeKind(fields rawFields) (EventKind, error) {
	var k EventKind
	if err := cborutil.Unmarshal(fields[0], &k); err != nil {
		return 0, err
	}
	return k, nil
}

// requireField decodes the value at key into out, erroring if key is absent.
func requireField(fields rawFields, key uint64, out interface{}) error {
	raw, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: %d", ErrMissingField, key)
	}
	if err := cborutil.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("events: field %d: %w", key, err)
	}
	return nil
}

// optionalField decodes the value at key into out if present, and reports
// whether it was present.
func optionalField(fields rawFields, key uint64, out interface{}) (bool, error) {
	raw, ok := fields[key]
	if !ok {
		return false, nil
	}
	if err := cborutil.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("events: field %d: %w", key, err)
	}
	return true, nil
}

// rejectUnknownFields errors if fields contains any key other than 0 and the
// keys in allowed.
func rejectUnknownFields(fields rawFields, allowed ...uint64) error {
	set := make(map[uint64]bool, len(allowed))
	for _, k := range allowed {
		set[k] = true
	}
	for k := range fields {
		if k == 0 || set[k] {
			continue
		}
		return fmt.Errorf("%w: %d", ErrUnknownField, k)
	}
	return nil
}

// encodeFields builds the canonical {0: kind, ...} map. cborutil's encoder
// sorts keys canonically (shortest encoding, then bytewise), which for the
// small non-negative integer keys used here is equivalent to ascending
// numeric order, so key 0 always lands first on the wire as required.
func encodeFields(kind EventKind, fields map[uint64]interface{}) ([]byte, error) {
	m := make(map[uint64]interface{}, len(fields)+1)
	m[0] = kind
	for k, v := range fields {
		m[k] = v
	}
	return cborutil.Marshal(m)
}
