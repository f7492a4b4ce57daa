// Package cborutil provides the deterministic CBOR encode/decode options
// shared by the event codec, the envelope layer, and storage records.
//
// Grounded on forestrie-go-merklelog/massifs/cborcodec.go's pattern of
// building a single reusable EncMode/DecMode pair from explicit options
// rather than relying on cbor.Marshal's package-level defaults.
package cborutil

import "github.com/fxamacker/cbor/v2"

// EncOptions are the canonical encoding options used for anything that must
// produce byte-identical output across replicas: sorted map keys, no
// indefinite-length items, shortest-form integers.
var EncOptions = cbor.EncOptions{
	Sort:        cbor.SortCanonical,
	IndefLength: cbor.IndefLengthForbidden,
	Time:        cbor.TimeUnixDynamic,
}

// DecOptions reject anything that would make decoding ambiguous or
// non-deterministic (duplicate map keys, indefinite-length items).
var DecOptions = cbor.DecOptions{
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
	IndefLength: cbor.IndefLengthForbidden,
	TimeTag:     cbor.DecTagIgnored,
}

// Codec bundles a matched EncMode/DecMode pair.
type Codec struct {
	Enc cbor.EncMode
	Dec cbor.DecMode
}

// New builds the shared deterministic codec. It panics only on malformed
// options, which would be a programming error in this package.
func New() Codec {
	enc, err := EncOptions.EncMode()
	if err != nil {
		panic("cborutil: invalid enc options: " + err.Error())
	}
	dec, err := DecOptions.DecMode()
	if err != nil {
		panic("cborutil: invalid dec options: " + err.Error())
	}
	return Codec{Enc: enc, Dec: dec}
}

// Shared is the process-wide deterministic codec instance.
var Shared = New()

// Marshal encodes v using the deterministic encoder.
func Marshal(v interface{}) ([]byte, error) {
	return Shared.Enc.Marshal(v)
}

// Unmarshal decodes data into v using the strict decoder.
func Unmarshal(data []byte, v interface{}) error {
	return Shared.Dec.Unmarshal(data, v)
}
