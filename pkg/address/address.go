// Package address implements the opaque account identifier used throughout
// the bridge, storage, and event model: a fixed-size identity hash plus an
// optional 32-bit subresource suffix, with a distinguished anonymous value.
package address

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Kind discriminates how the identity bytes of an Address were derived.
type Kind byte

const (
	KindAnonymous   Kind = 0
	KindEd25519     Kind = 1
	KindSubresource Kind = 2
)

// IdentityLen is the length in bytes of the identity digest (excluding the
// kind byte and the optional subresource suffix).
const IdentityLen = 28

var ErrMalformed = errors.New("address: malformed encoding")

// Address is an opaque, comparable identifier. The zero value is Anonymous.
type Address struct {
	kind        Kind
	identity    [IdentityLen]byte
	subresource uint32
	hasSub      bool
}

// Anonymous returns the distinguished anonymous address used by the bridge
// to sign its own outbound calls to the backend.
func Anonymous() Address {
	return Address{kind: KindAnonymous}
}

// FromEd25519 derives an Address from an Ed25519 public key, truncating the
// SHA-256 digest of the key to IdentityLen bytes.
func FromEd25519(pub ed25519.PublicKey) Address {
	digest := sha256.Sum256(pub)
	var id [IdentityLen]byte
	copy(id[:], digest[:IdentityLen])
	return Address{kind: KindEd25519, identity: id}
}

// WithSubresourceID returns a copy of a with the given subresource id
// attached. Only non-anonymous addresses may carry a subresource.
func (a Address) WithSubresourceID(id uint32) (Address, error) {
	if a.kind == KindAnonymous {
		return Address{}, fmt.Errorf("address: anonymous address cannot have a subresource")
	}
	b := a
	b.kind = KindSubresource
	b.subresource = id
	b.hasSub = true
	return b, nil
}

// SubresourceID returns the attached subresource id, if any.
func (a Address) SubresourceID() (uint32, bool) {
	return a.subresource, a.hasSub
}

// IsAnonymous reports whether a is the anonymous address.
func (a Address) IsAnonymous() bool {
	return a.kind == KindAnonymous
}

// Equal reports whether a and b identify the same address.
func (a Address) Equal(b Address) bool {
	return a == b
}

// Bytes returns the canonical wire encoding: kind byte, identity digest, and
// (if present) a big-endian subresource suffix.
func (a Address) Bytes() []byte {
	if a.kind == KindAnonymous {
		return []byte{byte(KindAnonymous)}
	}
	out := make([]byte, 0, 1+IdentityLen+4)
	out = append(out, byte(a.kind))
	out = append(out, a.identity[:]...)
	if a.hasSub {
		out = append(out, byte(a.subresource>>24), byte(a.subresource>>16), byte(a.subresource>>8), byte(a.subresource))
	}
	return out
}

// FromBytes parses the canonical wire encoding produced by Bytes.
func FromBytes(b []byte) (Address, error) {
	if len(b) == 0 {
		return Address{}, ErrMalformed
	}
	kind := Kind(b[0])
	switch kind {
	case KindAnonymous:
		if len(b) != 1 {
			return Address{}, ErrMalformed
		}
		return Anonymous(), nil
	case KindEd25519:
		if len(b) != 1+IdentityLen {
			return Address{}, ErrMalformed
		}
		var a Address
		a.kind = kind
		copy(a.identity[:], b[1:])
		return a, nil
	case KindSubresource:
		if len(b) != 1+IdentityLen+4 {
			return Address{}, ErrMalformed
		}
		var a Address
		a.kind = kind
		copy(a.identity[:], b[1:1+IdentityLen])
		s := b[1+IdentityLen:]
		a.subresource = uint32(s[0])<<24 | uint32(s[1])<<16 | uint32(s[2])<<8 | uint32(s[3])
		a.hasSub = true
		return a, nil
	default:
		return Address{}, fmt.Errorf("%w: unknown kind %d", ErrMalformed, kind)
	}
}

// String renders the address as lowercase hex of its wire encoding, with no
// "0x" prefix, or as "anonymous" for the anonymous address.
func (a Address) String() string {
	if a.IsAnonymous() {
		return "anonymous"
	}
	return hex.EncodeToString(a.Bytes())
}

// MarshalCBOR implements cbor.Marshaler, encoding the address as a CBOR byte
// string carrying the canonical wire encoding.
func (a Address) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(a.Bytes())
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (a *Address) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("address: %w", err)
	}
	parsed, err := FromBytes(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
