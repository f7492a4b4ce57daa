package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coreconsensus/bridge/pkg/chrono"
	"github.com/coreconsensus/bridge/pkg/faulterr"
)

func TestValidateRequestRejectsDuplicate(t *testing.T) {
	c := NewCache(time.Minute, 5*time.Second)
	now := chrono.New(1000)

	require.NoError(t, c.ValidateRequest("key-1", now))
	require.ErrorIs(t, c.ValidateRequest("key-1", now), ErrDuplicate)
}

func TestValidateEnvelopeRejectsStaleTimestamp(t *testing.T) {
	c := NewCache(time.Minute, 5*time.Second)
	now := chrono.New(1000)
	stale := chrono.New(1000 - 30)

	require.ErrorIs(t, c.ValidateEnvelope(nil, stale, now), ErrStaleTimestamp)
}

func TestMessageExecutedUnknownKeyPoisons(t *testing.T) {
	c := NewCache(time.Minute, 5*time.Second)

	err := c.MessageExecuted("never-validated")
	require.True(t, faulterr.IsFatal(err))
	require.ErrorIs(t, err, ErrUnknownRequest)

	poisoned, _ := c.Poisoned()
	require.True(t, poisoned)

	require.ErrorIs(t, c.ValidateRequest("anything", chrono.New(1)), ErrPoisoned)
}

func TestPruneEvictsExpiredEntries(t *testing.T) {
	c := NewCache(10*time.Second, 5*time.Second)
	require.NoError(t, c.ValidateRequest("key-1", chrono.New(0)))
	require.Equal(t, 1, c.Len())

	evicted := c.Prune(chrono.New(20))
	require.Equal(t, 1, evicted)
	require.Equal(t, 0, c.Len())
}

func TestMessageExecutedMarksEntry(t *testing.T) {
	c := NewCache(time.Minute, 5*time.Second)
	now := chrono.New(100)
	require.NoError(t, c.ValidateRequest("key-1", now))
	require.NoError(t, c.MessageExecuted("key-1"))

	poisoned, _ := c.Poisoned()
	require.False(t, poisoned)
}
