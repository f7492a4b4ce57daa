// Package storage implements the Merkle-backed key/value storage core: a
// durable KV layer (adapted from the teacher's cometbft-db KV adapter)
// plus a whole-keyspace Merkle tree (generalized from the teacher's
// batch Merkle tree) rebuilt at every commit, so any committed key/value
// pair can be proven against the current root.
package storage

import (
	"fmt"
	"sync"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/coreconsensus/bridge/pkg/events"
)

// Mode selects whether Apply writes land immediately or must wait for an
// explicit Commit, matching spec.md's distinction between a bridge's
// block-scoped staged writes (begin/deliver/commit) and a backend's
// immediate single-message writes outside of consensus.
type Mode int

const (
	BlockMode Mode = iota
	ImmediateMode
)

// Engine owns one cometbft-db handle, the reserved height/event-id counters
// that live inside it, and the in-memory Merkle tree rebuilt from its full
// key set on every Commit.
type Engine struct {
	mu      sync.RWMutex
	db      *adapter
	mode    Mode
	pending *Batch
	tree    *tree
	closed  bool
}

// Open wraps an already-open cometbft-db handle (goleveldb, memdb, etc.) as
// a storage Engine and rebuilds the Merkle tree from whatever keys are
// already present, so a restarted process resumes at the same root it
// stopped at.
func Open(db dbm.DB, mode Mode) (*Engine, error) {
	e := &Engine{db: newAdapter(db), mode: mode, pending: NewBatch()}
	if err := e.rebuildTree(); err != nil {
		return nil, err
	}
	return e, nil
}

// Create opens a fresh Engine and applies seed as its genesis batch,
// committing immediately so the returned Engine already has a non-empty
// root reflecting the seed state.
func Create(db dbm.DB, mode Mode, seed *Batch) (*Engine, error) {
	e, err := Open(db, mode)
	if err != nil {
		return nil, err
	}
	if seed != nil && seed.Len() > 0 {
		if err := e.Apply(seed); err != nil {
			return nil, err
		}
		if _, err := e.Commit(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Apply validates and stages (BlockMode) or immediately writes
// (ImmediateMode) a batch of mutations. No mutation may target the storage
// engine's reserved namespace.
func (e *Engine) Apply(b *Batch) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	for _, op := range b.Ops() {
		if IsReserved(op.Key) {
			return fmt.Errorf("%w: %s", ErrReservedKey, op.Key)
		}
	}

	if e.mode == ImmediateMode {
		for _, op := range b.Ops() {
			if err := e.writeOp(op); err != nil {
				return err
			}
		}
		return e.rebuildTreeLocked()
	}

	e.pending.ops = append(e.pending.ops, b.Ops()...)
	return nil
}

func (e *Engine) writeOp(op Op) error {
	switch op.Kind {
	case OpPut:
		return e.db.set(op.Key, op.Value)
	case OpDelete:
		return e.db.delete(op.Key)
	default:
		return fmt.Errorf("storage: unknown op kind %d", op.Kind)
	}
}

// Commit flushes the pending batch (BlockMode; a no-op if nothing is
// staged) and rebuilds the Merkle tree, returning the new root. In
// ImmediateMode the tree is already current after every Apply, so Commit
// just returns the root.
func (e *Engine) Commit() ([32]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return [32]byte{}, ErrClosed
	}

	if e.mode == BlockMode {
		ops := e.pending.Ops()
		for _, op := range ops {
			if err := e.writeOp(op); err != nil {
				return [32]byte{}, err
			}
		}
		e.pending = NewBatch()
		if err := e.rebuildTreeLocked(); err != nil {
			return [32]byte{}, err
		}
	}

	return e.tree.root(), nil
}

// Get reads the current value of key, bypassing any not-yet-committed
// pending batch (reads in this engine are always against committed state,
// matching spec.md's separation between a module's deliver-time view and
// storage's durable state).
func (e *Engine) Get(key []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	return e.db.get(key)
}

// IteratePrefix walks every committed key sharing prefix, in ascending byte
// order, invoking fn(key, value). fn returns (continue, error); stopping
// early or erroring halts the scan. Used by higher layers (the event log)
// that keep their own key namespace inside storage rather than the
// per-commit Merkle tree.
func (e *Engine) IteratePrefix(prefix []byte, fn func(key, value []byte) (bool, error)) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return e.db.iteratePrefix(prefix, fn)
}

// RootHash returns the root of the tree as of the last Commit (or Open, if
// nothing has been committed since).
func (e *Engine) RootHash() [32]byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tree.root()
}

// Prove returns an inclusion proof for each requested key against the
// current committed root. A key absent from the committed set makes the
// whole call fail with an error wrapping ErrKeyNotFound, and no proofs are
// returned; callers wanting non-membership proofs should check Get first.
func (e *Engine) Prove(keys [][]byte) ([]Proof, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Proof, len(keys))
	for i, k := range keys {
		p, err := e.tree.prove(k)
		if err != nil {
			return nil, fmt.Errorf("storage: prove %s: %w", k, err)
		}
		out[i] = p
	}
	return out, nil
}

func (e *Engine) rebuildTree() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rebuildTreeLocked()
}

func (e *Engine) rebuildTreeLocked() error {
	var pairs [][2][]byte
	err := e.db.iterate(func(key, value []byte) bool {
		if IsReserved(key) {
			return true
		}
		k := append([]byte(nil), key...)
		v := append([]byte(nil), value...)
		pairs = append(pairs, [2][]byte{k, v})
		return true
	})
	if err != nil {
		return err
	}
	e.tree = buildTree(pairs)
	return nil
}

// Height returns the reserved /height counter's current value.
func (e *Engine) Height() (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, err := e.db.get(KeyHeight)
	if err != nil {
		return 0, err
	}
	return decodeUint64(v), nil
}

// IncHeight stages /height+1 as part of the current pending batch in
// BlockMode, or writes it immediately in ImmediateMode, and returns the new
// value either way. Called at the start of begin_block, before the
// migration engine and the current block's commit_storage pass, per the
// commit sequencing in spec.md 4.3. Staging through the same path as Apply
// (rather than writing the adapter directly) keeps a failed later Commit
// from leaving /height advanced on disk while the rest of the block's
// mutations never landed.
func (e *Engine) IncHeight() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.stagedHeight()
	if err != nil {
		return 0, err
	}
	next := current + 1

	if e.mode == ImmediateMode {
		if err := e.db.set(KeyHeight, encodeUint64(next)); err != nil {
			return 0, err
		}
		return next, nil
	}

	e.pending.ops = append(e.pending.ops, Op{Kind: OpPut, Key: KeyHeight, Value: encodeUint64(next)})
	return next, nil
}

// stagedHeight returns /height as it would read once the current pending
// batch (if any) is committed, without requiring a Commit to observe it -
// so repeated IncHeight calls within the same uncommitted block still
// count up, even though none of them are visible to Height()/Get() until
// Commit flushes the batch.
func (e *Engine) stagedHeight() (uint64, error) {
	for i := len(e.pending.ops) - 1; i >= 0; i-- {
		op := e.pending.ops[i]
		if string(op.Key) == string(KeyHeight) {
			return decodeUint64(op.Value), nil
		}
	}
	v, err := e.db.get(KeyHeight)
	if err != nil {
		return 0, err
	}
	return decodeUint64(v), nil
}

// LatestEventID returns the reserved /latest_event_id counter.
func (e *Engine) LatestEventID() (events.EventId, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, err := e.db.get(KeyLatestEvent)
	if err != nil {
		return events.EventId{}, err
	}
	if len(v) == 0 {
		return events.Zero, nil
	}
	return events.FromBytes(v), nil
}

// SetLatestEventID persists /latest_event_id, called at the end of commit
// once the block's height-derived event id floor is known.
func (e *Engine) SetLatestEventID(id events.EventId) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.set(KeyLatestEvent, id.Bytes())
}

// Close marks the engine unusable. The underlying dbm.DB's lifecycle is the
// caller's responsibility.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
