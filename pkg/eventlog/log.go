// Package eventlog layers an append-only, queryable event log over the
// storage engine: every domain message that executes successfully appends
// one events.EventLog entry, keyed by its composite height/counter
// events.EventId so list queries can page and filter without a secondary
// index for the common case.
package eventlog

import (
	"fmt"

	"github.com/coreconsensus/bridge/pkg/chrono"
	"github.com/coreconsensus/bridge/pkg/events"
	"github.com/coreconsensus/bridge/pkg/storage"
)

const keyPrefix = "/events/"

func entryKey(id events.EventId) []byte {
	// EventId's big-endian byte encoding already sorts correctly, but
	// strips leading zero bytes (big.Int.Bytes), which would break
	// lexicographic ordering across different byte lengths once the
	// height climbs past 2^32-sized boundaries within the same prefix.
	// Fixed-width padding keeps /events/ keys sorted by value regardless
	// of magnitude.
	raw := id.Bytes()
	padded := make([]byte, 16)
	copy(padded[16-len(raw):], raw)
	return append([]byte(keyPrefix), padded...)
}

// Log appends one executed event at the given id and time. Engine must
// already be in a batch (BlockMode) or will write through immediately
// (ImmediateMode), matching storage.Engine's own Apply semantics.
func Log(engine *storage.Engine, id events.EventId, at chrono.Timestamp, content events.EventInfo) error {
	entry := events.EventLog{ID: id, Time: at, Content: content}
	data, err := entry.MarshalCBOR()
	if err != nil {
		return fmt.Errorf("eventlog: encode entry %s: %w", id, err)
	}
	return engine.Apply(storage.NewBatch().Put(entryKey(id), data))
}

// List scans committed events in key order (ascending id), applying filter
// and returning at most limit matches in the requested order. Reverses the
// accumulated slice for OrderDescending rather than reverse-scanning
// storage, since the engine does not expose a reverse iterator.
func List(engine *storage.Engine, filter events.Filter, order events.Order, limit int) ([]events.EventLog, error) {
	var out []events.EventLog
	err := engine.IteratePrefix([]byte(keyPrefix), func(key, value []byte) (bool, error) {
		var entry events.EventLog
		if err := entry.UnmarshalCBOR(value); err != nil {
			return false, fmt.Errorf("eventlog: decode entry at %x: %w", key, err)
		}
		if filter.Matches(entry) {
			out = append(out, entry)
		}
		return limit <= 0 || len(out) < limit, nil
	})
	if err != nil {
		return nil, err
	}

	if order == events.OrderDescending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

// Info summarizes the committed event log: total count and the distinct
// kinds observed, for the info() introspection operation.
func Info(engine *storage.Engine) (events.Info, error) {
	seen := make(map[events.EventKind]bool)
	var total uint64
	err := engine.IteratePrefix([]byte(keyPrefix), func(key, value []byte) (bool, error) {
		var entry events.EventLog
		if err := entry.UnmarshalCBOR(value); err != nil {
			return false, fmt.Errorf("eventlog: decode entry at %x: %w", key, err)
		}
		total++
		seen[entry.Kind()] = true
		return true, nil
	})
	if err != nil {
		return events.Info{}, err
	}

	info := events.Info{Total: total}
	for k := range seen {
		info.EventKinds = append(info.EventKinds, k)
	}
	return info, nil
}
