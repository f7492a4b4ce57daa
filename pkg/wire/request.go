// Package wire defines the CBOR shape carried inside a COSE envelope's
// payload for a domain message call: a dispatch method name, opaque
// CBOR-encoded arguments, and the sender's claimed timestamp. Both the
// backend (which decodes it to dispatch a module) and any client building a
// request (tests, a CLI, httpapi.Client's callers) share this one
// definition so the wire contract is defined exactly once.
package wire

import (
	"fmt"

	"github.com/coreconsensus/bridge/pkg/address"
	"github.com/coreconsensus/bridge/pkg/cborutil"
	"github.com/coreconsensus/bridge/pkg/chrono"
	"github.com/coreconsensus/bridge/pkg/cose"
)

// Request is the canonical CBOR shape of a COSE envelope's payload.
type Request struct {
	Method    string `cbor:"0,keyasint"`
	Args      []byte `cbor:"1,keyasint"`
	Timestamp int64  `cbor:"2,keyasint"`
}

// ExtractTimestamp reads the claimed send time out of env's payload.
func ExtractTimestamp(env *cose.Envelope) (chrono.Timestamp, error) {
	var w Request
	if err := cborutil.Unmarshal(env.Payload(), &w); err != nil {
		return chrono.Epoch, fmt.Errorf("wire: decode request envelope: %w", err)
	}
	return chrono.New(w.Timestamp), nil
}

// Encode builds a CBOR payload ready to be sealed into a COSE envelope.
func Encode(method string, args []byte, at chrono.Timestamp) ([]byte, error) {
	return cborutil.Marshal(Request{Method: method, Args: args, Timestamp: at.Seconds()})
}

// Response is the canonical CBOR shape of a backend's reply to a dispatched
// request: the call's raw result bytes on success, or an attribute-specific
// error code/message on failure (spec.md section 7's domain-error
// propagation policy — these travel inside Data/ErrorCode, never as an ABCI
// code). The bridge normalizes a Response before recording it; see
// NormalizeResponse.
type Response struct {
	From         address.Address `cbor:"0,keyasint"`
	Data         []byte          `cbor:"1,keyasint"`
	Timestamp    int64           `cbor:"2,keyasint"`
	Version      uint32          `cbor:"3,keyasint"`
	ErrorCode    uint32          `cbor:"4,keyasint"`
	ErrorMessage string          `cbor:"5,keyasint"`
}

// EncodeResponse serializes r to its canonical CBOR form.
func EncodeResponse(r Response) ([]byte, error) {
	return cborutil.Marshal(r)
}

// DecodeResponse parses a Response previously produced by EncodeResponse.
func DecodeResponse(data []byte) (Response, error) {
	var r Response
	if err := cborutil.Unmarshal(data, &r); err != nil {
		return Response{}, fmt.Errorf("wire: decode response: %w", err)
	}
	return r, nil
}

// NormalizeResponse applies the three-field consensus normalization
// spec.md 4.5 deliver_tx step 1 requires before a response is recorded: the
// sender is anonymized, the version is stripped, and the timestamp is
// pinned to the epoch sentinel, so every replica emits byte-identical
// response bytes regardless of which backend instance produced them or
// when.
func NormalizeResponse(r Response) Response {
	r.From = address.Anonymous()
	r.Version = 0
	r.Timestamp = chrono.Epoch.Seconds()
	return r
}
