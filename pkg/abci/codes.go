package abci

import (
	"errors"

	"github.com/coreconsensus/bridge/pkg/backend"
	"github.com/coreconsensus/bridge/pkg/validator"
)

// Check and Deliver are the two closed, stable ABCI error-code namespaces
// spec.md section 6 defines for this bridge. Numeric values are pinned
// across replicas and MUST NOT be renumbered; a value repeating across the
// two namespaces is harmless, since each is a distinct uint32 serialized
// into a distinct ABCI field (ResponseCheckTx.Code vs ExecTxResult.Code).
const (
	CheckSuccess                      uint32 = 0
	CheckCoseDeserializeError         uint32 = 4
	CheckMessageDeserializeError      uint32 = 5
	CheckRwLockPoisonedError          uint32 = 6
	CheckTimestampError               uint32 = 7
	CheckCannotGetSystemTimeError     uint32 = 8
	CheckTimestampOutsideOfRangeError uint32 = 9
	CheckValidationError              uint32 = 10
)

const (
	DeliverSuccess                uint32 = 0
	DeliverTransportRequestError  uint32 = 1
	DeliverCoseDeserializeError   uint32 = 2
	DeliverTransportResponseError uint32 = 3
	DeliverRwLockPoisonedError    uint32 = 11
)

// Query has no dedicated namespace in spec.md: these two codes are local to
// this bridge's Query handler only and never appear on CheckTx/DeliverTx.
const (
	QueryRejected uint32 = 1
	QueryNotFound uint32 = 2
)

// legacyUnknownErrorCode is the response-payload error code the
// legacy_error_code migration rewrites any attribute-specific deliver error
// into (spec.md section 4.5 step 2, scenario S4).
const legacyUnknownErrorCode uint32 = 1

// ClassifyCheckError maps a check_tx failure to its Check-namespace code.
// Anything that isn't one of the cache's or the envelope decoder's named
// sentinels falls back to ValidationError, the closed namespace's catch-all
// for "the envelope was rejected" (covers validator.ErrDuplicate, signature
// failures, and any other rejection reason).
func ClassifyCheckError(err error) uint32 {
	switch {
	case err == nil:
		return CheckSuccess
	case errors.Is(err, validator.ErrPoisoned):
		return CheckRwLockPoisonedError
	case errors.Is(err, validator.ErrStaleTimestamp):
		return CheckTimestampOutsideOfRangeError
	case errors.Is(err, backend.ErrMalformedEnvelope):
		return CheckCoseDeserializeError
	case errors.Is(err, backend.ErrMalformedRequest):
		return CheckMessageDeserializeError
	default:
		return CheckValidationError
	}
}

// ClassifyDeliverError maps a deliver_tx transport/decode failure to its
// Deliver-namespace code. It is never handed a domain error: per spec.md
// section 7's propagation policy, a module's application error travels
// inside the normalized response payload (see deliverOne), not as an ABCI
// code, so this only classifies failures that kept the request from ever
// reaching a response at all.
func ClassifyDeliverError(err error) uint32 {
	switch {
	case err == nil:
		return DeliverSuccess
	case errors.Is(err, validator.ErrPoisoned):
		return DeliverRwLockPoisonedError
	case errors.Is(err, backend.ErrMalformedEnvelope):
		return DeliverCoseDeserializeError
	case errors.Is(err, backend.ErrMalformedRequest):
		return DeliverCoseDeserializeError
	default:
		return DeliverTransportRequestError
	}
}
