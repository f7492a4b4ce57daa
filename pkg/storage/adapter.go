package storage

import (
	dbm "github.com/cometbft/cometbft-db"
)

// adapter wraps a cometbft-db handle with the narrow surface the engine
// needs: point reads, durable point writes, deletes, and a full-keyspace
// iterator for rebuilding the Merkle tree at commit. Adapted from the
// teacher's KVAdapter (pkg/kvdb), generalized from "Get/Set only" to also
// cover Delete and ordered iteration, both required by a tree rebuilt from
// the live key set rather than a single append-only batch of leaves.
type adapter struct {
	db dbm.DB
}

func newAdapter(db dbm.DB) *adapter {
	return &adapter{db: db}
}

func (a *adapter) get(key []byte) ([]byte, error) {
	v, err := a.db.Get(key)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (a *adapter) set(key, value []byte) error {
	return a.db.SetSync(key, value)
}

func (a *adapter) delete(key []byte) error {
	return a.db.DeleteSync(key)
}

// iterate walks every key in byte order, invoking fn(key, value). Stops
// early if fn returns false.
func (a *adapter) iterate(fn func(key, value []byte) bool) error {
	return a.iterateRange(nil, nil, fn)
}

// iteratePrefix walks every key with the given prefix in byte order.
func (a *adapter) iteratePrefix(prefix []byte, fn func(key, value []byte) (bool, error)) error {
	return a.iterateRangeErr(prefix, prefixUpperBound(prefix), fn)
}

func (a *adapter) iterateRange(start, end []byte, fn func(key, value []byte) bool) error {
	return a.iterateRangeErr(start, end, func(key, value []byte) (bool, error) {
		return fn(key, value), nil
	})
}

func (a *adapter) iterateRangeErr(start, end []byte, fn func(key, value []byte) (bool, error)) error {
	it, err := a.db.Iterator(start, end)
	if err != nil {
		return err
	}
	defer it.Close()

	for ; it.Valid(); it.Next() {
		cont, err := fn(it.Key(), it.Value())
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return it.Error()
}

// prefixUpperBound returns the smallest key greater than every key with
// the given prefix, for use as an Iterator's exclusive end bound. Returns
// nil (unbounded) if prefix is all 0xff bytes or empty.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
