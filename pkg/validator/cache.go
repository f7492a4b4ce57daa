// Package validator implements the request validator cache: the
// short-lived, in-memory record of which envelopes have passed check_tx and
// whether each has since been delivered, used to reject replays and stale
// timestamps before a message reaches the deliver path.
package validator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coreconsensus/bridge/pkg/chrono"
	"github.com/coreconsensus/bridge/pkg/cose"
	"github.com/coreconsensus/bridge/pkg/faulterr"
)

var (
	// ErrPoisoned is returned by ValidateEnvelope, ValidateRequest and
	// MessageExecuted once the cache has been poisoned (MessageExecuted saw a
	// key it never validated): an inconsistency was observed on the deliver path and the
	// cache's state can no longer be trusted to reject replays correctly.
	ErrPoisoned = errors.New("validator: cache is poisoned")
	// ErrStaleTimestamp is returned when an envelope's timestamp falls
	// outside the configured tolerance of the cache's notion of now.
	ErrStaleTimestamp = errors.New("validator: envelope timestamp outside tolerance")
	// ErrDuplicate is returned when a request key has already been
	// validated and not yet evicted.
	ErrDuplicate = errors.New("validator: duplicate request")
	// ErrUnknownRequest is returned by MessageExecuted for a key the cache
	// never validated; this is the condition that poisons the cache, since
	// it means deliver and check disagree about what was accepted.
	ErrUnknownRequest = errors.New("validator: message_executed for unvalidated request")
)

// entry is one cached request awaiting execution.
type entry struct {
	validatedAt chrono.Timestamp
	executed    bool
}

// Cache is the request validator cache. Reads (validate_envelope during
// check_tx, run concurrently across many mempool goroutines) and writes
// (validate_request inserting, message_executed marking done) share one
// RWMutex, matching spec.md's exclusive-writer/shared-reader policy. Unlike
// a Rust Mutex, Go's sync primitives cannot poison themselves on panic, so
// poisoning is modeled explicitly: once poisoned is set, every method
// refuses further work until the process is restarted with a fresh Cache.
type Cache struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	retention time.Duration
	tolerance time.Duration
	poisoned  bool
	poisonErr error
}

// NewCache builds an empty cache. retention bounds how long a validated
// entry, delivered or not, survives before Prune evicts it; tolerance bounds how
// far an envelope's timestamp may drift from now.
func NewCache(retention, tolerance time.Duration) *Cache {
	return &Cache{
		entries:   make(map[string]*entry),
		retention: retention,
		tolerance: tolerance,
	}
}

// Poisoned reports whether the cache has been poisoned, and if so, the
// error that caused it.
func (c *Cache) Poisoned() (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.poisoned, c.poisonErr
}

func (c *Cache) poison(cause error) error {
	c.poisoned = true
	c.poisonErr = cause
	return faulterr.NewFatal(fmt.Errorf("%w: %w", ErrPoisoned, cause))
}

// ValidateEnvelope checks an envelope's freshness against now, independent
// of any particular request key. Verification of the COSE signature itself
// is the caller's responsibility (via a cose.Verifier/KeyRing); this only
// enforces the timestamp-tolerance invariant shared by every request.
func (c *Cache) ValidateEnvelope(env *cose.Envelope, at chrono.Timestamp, now chrono.Timestamp) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.poisoned {
		return ErrPoisoned
	}
	if !at.WithinTolerance(now, c.tolerance) {
		return ErrStaleTimestamp
	}
	return nil
}

// ValidateRequest registers key as seen at now, rejecting it if already
// present and not yet evicted by Prune. Called from check_tx.
func (c *Cache) ValidateRequest(key string, now chrono.Timestamp) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.poisoned {
		return ErrPoisoned
	}
	if _, exists := c.entries[key]; exists {
		return ErrDuplicate
	}
	c.entries[key] = &entry{validatedAt: now}
	return nil
}

// MessageExecuted marks key as delivered. A key absent from the cache
// indicates check_tx and deliver_tx disagreed about acceptance, which
// poisons the cache and returns a fatal error: this is one of the two
// conditions spec.md names as unrecoverable at the bridge layer.
func (c *Cache) MessageExecuted(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.poisoned {
		return ErrPoisoned
	}
	e, ok := c.entries[key]
	if !ok {
		return c.poison(ErrUnknownRequest)
	}
	e.executed = true
	return nil
}

// Prune evicts every entry validated at least retention before now,
// whether or not it was ever executed. The cache never prunes itself, and
// no other package in this module calls Prune, so entries stay until a
// caller does.
func (c *Cache) Prune(now chrono.Timestamp) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.poisoned {
		return 0
	}

	evicted := 0
	for k, e := range c.entries {
		if now.Seconds()-e.validatedAt.Seconds() >= int64(c.retention/time.Second) {
			delete(c.entries, k)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of cached entries, for metrics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
