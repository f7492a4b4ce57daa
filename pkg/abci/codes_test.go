package abci

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreconsensus/bridge/pkg/backend"
	"github.com/coreconsensus/bridge/pkg/validator"
)

// These cases pin the exact numeric values spec.md section 6 assigns each
// namespace; scenarios S1/S2 (section 8) depend on ErrDuplicate and
// ErrStaleTimestamp landing on 10 and 9 respectively.
func TestClassifyCheckError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want uint32
	}{
		{"nil", nil, CheckSuccess},
		{"poisoned", validator.ErrPoisoned, CheckRwLockPoisonedError},
		{"stale timestamp", validator.ErrStaleTimestamp, CheckTimestampOutsideOfRangeError},
		{"malformed envelope", backend.ErrMalformedEnvelope, CheckCoseDeserializeError},
		{"malformed request", backend.ErrMalformedRequest, CheckMessageDeserializeError},
		{"duplicate (S1 replay)", validator.ErrDuplicate, CheckValidationError},
		{"unrecognized", errTest, CheckValidationError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ClassifyCheckError(tc.err))
		})
	}
}

func TestClassifyDeliverError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want uint32
	}{
		{"nil", nil, DeliverSuccess},
		{"poisoned", validator.ErrPoisoned, DeliverRwLockPoisonedError},
		{"malformed envelope", backend.ErrMalformedEnvelope, DeliverCoseDeserializeError},
		{"malformed request", backend.ErrMalformedRequest, DeliverCoseDeserializeError},
		{"unrecognized (transport)", errTest, DeliverTransportRequestError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ClassifyDeliverError(tc.err))
		})
	}
}
