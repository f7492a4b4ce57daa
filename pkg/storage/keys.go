package storage

import "encoding/binary"

// Reserved key space: everything under /config and the two scalar counters
// is owned by the storage engine itself, never by a domain module's batch.
var (
	KeyIdentity    = []byte("/config/identity")
	KeySubresource = []byte("/config/subresource_id")
	KeyIdstoreSeed = []byte("/config/idstore_seed")
	KeyHeight      = []byte("/height")
	KeyLatestEvent = []byte("/latest_event_id")
)

// IsReserved reports whether key falls in the storage engine's own
// namespace and must never be written by Apply.
func IsReserved(key []byte) bool {
	if string(key) == string(KeyHeight) || string(key) == string(KeyLatestEvent) {
		return true
	}
	return len(key) >= 8 && string(key[:8]) == "/config/"
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
