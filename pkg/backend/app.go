// Package backend implements the backend application: the process that
// owns the storage engine, the event log, and the migration engine, and
// executes domain messages against them. It is deliberately transport
// agnostic — pkg/httpapi exposes it over HTTP/CBOR/COSE, and pkg/abci's
// bridge talks to it as a client, mirroring the many-ledger/many-abci
// process split this bridge generalizes.
package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/coreconsensus/bridge/pkg/address"
	"github.com/coreconsensus/bridge/pkg/cborutil"
	"github.com/coreconsensus/bridge/pkg/chrono"
	"github.com/coreconsensus/bridge/pkg/cose"
	"github.com/coreconsensus/bridge/pkg/eventlog"
	"github.com/coreconsensus/bridge/pkg/events"
	"github.com/coreconsensus/bridge/pkg/faulterr"
	"github.com/coreconsensus/bridge/pkg/metrics"
	"github.com/coreconsensus/bridge/pkg/migration"
	"github.com/coreconsensus/bridge/pkg/storage"
	"github.com/coreconsensus/bridge/pkg/validator"
	"github.com/coreconsensus/bridge/pkg/wire"
)

// Module is a pluggable domain handler: one attribute's worth of message
// types, dispatched by the method name carried in the request envelope's
// payload. Kept intentionally minimal (one method, raw CBOR in/out) so
// kvstore-style demo modules and richer ones share the same registration
// path, generalized from the teacher's single-purpose ValidatorBlock
// processor into an open dispatch table.
type Module interface {
	// Methods lists the dispatch names this module handles.
	Methods() []string
	// Execute runs method against storage (already inside the current
	// block's batch) and returns the CBOR-encoded response payload plus
	// the event to append to the log, if any.
	Execute(ctx context.Context, engine *storage.Engine, from address.Address, method string, args []byte) ([]byte, events.EventInfo, error)
}

// Request is a decoded, identity-checked call ready for dispatch.
type Request struct {
	From   address.Address
	Method string
	Args   []byte
}

var (
	// ErrMalformedEnvelope is returned when the raw bytes handed to
	// CheckEnvelope/DeliverEnvelope do not parse as a COSE envelope, or the
	// envelope's identity header cannot be resolved.
	ErrMalformedEnvelope = errors.New("backend: malformed envelope")
	// ErrMalformedRequest is returned when an envelope's payload does not
	// decode as a wire.Request.
	ErrMalformedRequest = errors.New("backend: malformed request payload")
	// ErrUnknownMethod is the domain error DeliverTx embeds in a response
	// when no registered module handles the requested method.
	ErrUnknownMethod = errors.New("backend: unknown method")
)

// DomainError lets a Module.Execute error carry an attribute-specific
// response error code — the "4_1" shape spec.md section 8 scenario S4
// refers to — so it survives into the response payload instead of being
// collapsed to the generic Unknown code. Modules that return a plain error
// get the generic code.
type DomainError interface {
	error
	Code() uint32
}

// unknownErrorCode is the response error code for a domain failure that
// does not implement DomainError, and for ErrUnknownMethod itself.
const unknownErrorCode = 1

func domainErrorCode(err error) uint32 {
	var d DomainError
	if errors.As(err, &d) {
		return d.Code()
	}
	return unknownErrorCode
}

// EventSink receives a copy of every event appended to the log, for a
// secondary index (pkg/eventindex) to keep in sync with the engine's own
// /events/ keyspace. Indexing failures are logged, not fatal: the engine
// remains the source of truth, the sink only accelerates list queries.
type EventSink interface {
	Index(ctx context.Context, entry events.EventLog) error
}

// Application ties the storage engine, event log, migration engine and
// request validator cache together and executes messages against them. One
// RWMutex guards it: CheckTx, BeginBlock, DeliverTx, EndBlock and Commit
// each take the exclusive lock for the length of the call, while Info,
// Query, Prove and MigrationActive share the read lock.
type Application struct {
	mu sync.RWMutex

	engine     *storage.Engine
	migrations *migration.Engine
	cache      *validator.Cache
	modules    map[string]Module
	identity   cose.Verifier
	metrics    *metrics.Registry
	eventSink  EventSink

	pendingHeight uint64
	counter       uint32
}

// SetMetrics attaches a metrics registry. Every metrics call elsewhere in
// this file is a no-op when this is left unset, so wiring metrics stays
// optional for callers (tests, a standalone backend) that don't need it.
func (a *Application) SetMetrics(r *metrics.Registry) {
	a.metrics = r
}

// SetEventSink attaches an optional secondary index for event list queries.
func (a *Application) SetEventSink(sink EventSink) {
	a.eventSink = sink
}

// NewApplication wires an already-opened storage engine, a loaded migration
// engine, and a request validator cache into one backend.
func NewApplication(engine *storage.Engine, migrations *migration.Engine, cache *validator.Cache, identity cose.Verifier) *Application {
	return &Application{
		engine:     engine,
		migrations: migrations,
		cache:      cache,
		modules:    make(map[string]Module),
		identity:   identity,
	}
}

// Register adds a module's methods to the dispatch table. Panics on a
// duplicate method name: that is a wiring bug caught at startup, not a
// runtime condition to recover from.
func (a *Application) Register(m Module) {
	for _, name := range m.Methods() {
		if _, exists := a.modules[name]; exists {
			panic(fmt.Sprintf("backend: method %q registered twice", name))
		}
		a.modules[name] = m
	}
}

// Info reports the current committed height and root hash.
func (a *Application) Info() (height uint64, root [32]byte, err error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	height, err = a.engine.Height()
	if err != nil {
		return 0, [32]byte{}, err
	}
	return height, a.engine.RootHash(), nil
}

// RequestKey derives the validator cache key for a raw, COSE-encoded
// envelope: its digest, so check_tx and deliver_tx agree on identity for the
// same wire bytes without re-parsing the envelope.
func RequestKey(envBytes []byte) string {
	sum := sha256.Sum256(envBytes)
	return hex.EncodeToString(sum[:])
}

// CheckTx validates an envelope and registers it in the validator cache so
// a later DeliverTx for the same wire bytes is recognized. Signature
// freshness and identity are checked here; the requested method's
// existence is left to DeliverTx since check_tx never decodes message
// arguments.
func (a *Application) CheckTx(envBytes []byte, env *cose.Envelope, at, now chrono.Timestamp) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.cache.ValidateEnvelope(env, at, now); err != nil {
		a.observeRejection(err)
		return err
	}
	if a.identity != nil {
		if err := a.identity.Verify(env); err != nil {
			a.observeRejection(err)
			return fmt.Errorf("backend: check_tx: %w", err)
		}
	}
	if err := a.cache.ValidateRequest(RequestKey(envBytes), now); err != nil {
		a.observeRejection(err)
		return err
	}
	if a.metrics != nil {
		a.metrics.ValidatorCacheSize.Set(float64(a.cache.Len()))
	}
	return nil
}

// observeRejection labels a check_tx rejection by its validator.Cache
// sentinel error, falling back to a generic label for anything else (e.g.
// an identity verification failure).
func (a *Application) observeRejection(err error) {
	if a.metrics == nil {
		return
	}
	label := "rejected"
	switch {
	case errors.Is(err, validator.ErrPoisoned):
		label = "poisoned"
	case errors.Is(err, validator.ErrStaleTimestamp):
		label = "stale_timestamp"
	case errors.Is(err, validator.ErrDuplicate):
		label = "duplicate"
	}
	a.metrics.ObserveCheckTxRejected(label)
}

// BeginBlock starts a new block: bumps the reserved height counter and runs
// any migration whose activation height has been reached. A migration
// failure here is logged by the caller, not necessarily fatal — see
// DESIGN.md's resolution of the begin_block Open Question.
func (a *Application) BeginBlock(ctx context.Context) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	height, err := a.engine.IncHeight()
	if err != nil {
		return 0, faulterr.NewFatal(err)
	}
	a.pendingHeight = height
	a.counter = 0

	if err := a.migrations.UpdateAtHeight(a.engine, height); err != nil {
		return height, err
	}

	if a.metrics != nil {
		for _, m := range a.migrations.List() {
			a.metrics.SetMigrationActive(m.Name(), m.IsActiveAt(height))
		}
	}

	return height, nil
}

// DeliverTx executes one already-validated request inside the current
// block, appends its event (if any) to the log, and marks the request
// executed in the validator cache. Per spec.md section 7's propagation
// policy, a module's application error is embedded in the returned
// wire.Response as an ErrorCode/ErrorMessage pair rather than returned as a
// Go error: the bridge must never turn a domain failure into a non-zero
// ABCI code, since that would mean replicas observing divergent bytes for
// identical backend failures. A Go error is returned only for faults outside
// the module's result: a failed event log write (fatal), a response that
// cannot be encoded, an already poisoned cache, or a key that check_tx never
// registered (fatal, and it poisons the cache: a determinism breach, not a
// domain error).
func (a *Application) DeliverTx(ctx context.Context, key string, req Request, at chrono.Timestamp) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	resp := wire.Response{From: req.From, Timestamp: at.Seconds()}

	mod, ok := a.modules[req.Method]
	if !ok {
		resp.ErrorCode = unknownErrorCode
		resp.ErrorMessage = fmt.Errorf("%w: %q", ErrUnknownMethod, req.Method).Error()
	} else if data, info, err := mod.Execute(ctx, a.engine, req.From, req.Method, req.Args); err != nil {
		resp.ErrorCode = domainErrorCode(err)
		resp.ErrorMessage = err.Error()
	} else {
		resp.Data = data
		if info != nil {
			id := events.FromHeightAndCounter(a.pendingHeight, a.counter)
			a.counter++
			entry := events.EventLog{ID: id, Time: at, Content: info}
			if err := eventlog.Log(a.engine, id, at, info); err != nil {
				return nil, faulterr.NewFatal(err)
			}
			if a.eventSink != nil {
				if err := a.eventSink.Index(ctx, entry); err != nil {
					log.Printf("[Backend] event index write failed for %s: %v", id, err)
				}
			}
		}
	}

	payload, err := wire.EncodeResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("backend: encode response: %w", err)
	}

	if err := a.cache.MessageExecuted(key); err != nil {
		return nil, err
	}

	if a.metrics != nil {
		a.metrics.ObserveDelivered(req.Method)
	}

	return payload, nil
}

// EndBlock runs the migration engine's update pass a second time at
// height+1, matching the commit sequencing in spec.md 4.3
// (inc_height -> commit -> migrations.update_at_height(height+1) -> commit).
func (a *Application) EndBlock(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.migrations.UpdateAtHeight(a.engine, a.pendingHeight+1)
}

// Commit flushes the block's staged writes, records the height-derived
// event id floor, and returns the new root hash.
func (a *Application) Commit(ctx context.Context) ([32]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	root, err := a.engine.Commit()
	if a.metrics != nil {
		a.metrics.CommitLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return [32]byte{}, faulterr.NewFatal(err)
	}

	floor := events.FromHeightAndCounter(a.pendingHeight, 0)
	if err := a.engine.SetLatestEventID(floor); err != nil {
		return [32]byte{}, faulterr.NewFatal(err)
	}

	return root, nil
}

// Query reads a committed key without going through the block lifecycle.
func (a *Application) Query(key []byte) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.engine.Get(key)
}

// Prove returns Merkle inclusion proofs for the given committed keys.
func (a *Application) Prove(keys [][]byte) ([]storage.Proof, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.engine.Prove(keys)
}

// MigrationActive reports whether the named migration is active at the
// given height, for the bridge's legacy_error_code deliver-path rewrite.
func (a *Application) MigrationActive(name string, height uint64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.migrations.IsActive(name, height)
}

// decodeEnvelope parses a raw COSE envelope and its wire.Request payload,
// resolving the sender's Address from the envelope's identity header. Used
// by the envelope-level entry points (CheckEnvelope, DeliverEnvelope) that
// let a transport (the ABCI bridge, httpapi.Client) forward raw bytes
// without understanding this module's request shape itself.
func decodeEnvelope(envBytes []byte) (*cose.Envelope, Request, chrono.Timestamp, error) {
	env, err := cose.ParseEnvelope(envBytes)
	if err != nil {
		return nil, Request{}, chrono.Epoch, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	var w wire.Request
	if err := cborutil.Unmarshal(env.Payload(), &w); err != nil {
		return nil, Request{}, chrono.Epoch, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	from, err := env.Identity()
	if err != nil {
		return nil, Request{}, chrono.Epoch, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	return env, Request{From: from, Method: w.Method, Args: w.Args}, chrono.New(w.Timestamp), nil
}

// CheckEnvelope parses envBytes and runs it through CheckTx, for transports
// that only have the raw wire bytes rather than an already-parsed envelope.
func (a *Application) CheckEnvelope(envBytes []byte, now chrono.Timestamp) error {
	env, _, at, err := decodeEnvelope(envBytes)
	if err != nil {
		return err
	}
	return a.CheckTx(envBytes, env, at, now)
}

// DeliverEnvelope parses envBytes and runs it through DeliverTx, deriving
// the validator cache key from the envelope bytes themselves.
func (a *Application) DeliverEnvelope(ctx context.Context, envBytes []byte) ([]byte, error) {
	_, req, at, err := decodeEnvelope(envBytes)
	if err != nil {
		return nil, err
	}
	return a.DeliverTx(ctx, RequestKey(envBytes), req, at)
}
