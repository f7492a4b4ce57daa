package migration

import "sync"

// Engine holds a loaded, configured set of migrations and runs them against
// storage at commit boundaries. Reads (IsActive, Hotfix lookups from the
// deliver path) and writes (UpdateAtHeight from begin_block) happen on
// different goroutines in the bridge, so access is guarded by a RWMutex,
// matching spec.md's "migrations: exclusive-writer (begin_block update) /
// shared-reader (deliver_tx)" concurrency policy.
type Engine struct {
	mu      sync.RWMutex
	byName  map[string]*Migration
	ordered []*Migration
}

func newEngine() *Engine {
	return &Engine{byName: make(map[string]*Migration)}
}

func (e *Engine) add(m *Migration) {
	e.byName[m.Name()] = m
	e.ordered = append(e.ordered, m)
}

// UpdateAtHeight runs initialize (if this is the activation height) then
// update (if at or past it) for every migration, in registration order.
// Storage is mutated in place by each migration's callback; this never
// calls commit itself (per spec.md 4.3, the caller owns the commit).
//
// The first error aborts the remaining migrations for this call and is
// returned to the caller, which decides (per the bridge's begin_block
// policy) whether that is fatal or merely logged.
func (e *Engine) UpdateAtHeight(storage interface{}, height uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, m := range e.ordered {
		if err := m.RunInitialize(storage, height); err != nil {
			return err
		}
		if err := m.RunUpdate(storage, height); err != nil {
			return err
		}
	}
	return nil
}

// IsActive reports whether the named migration is enabled and has reached
// its activation height by currentHeight. Unknown names are treated as
// inactive rather than an error: callers consulting IsActive for an
// optional semantic rewrite (like legacy_error_code) should not have to
// special-case a typo the registry would already have rejected at load time.
func (e *Engine) IsActive(name string, currentHeight uint64) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, ok := e.byName[name]
	if !ok {
		return false
	}
	return m.IsActiveAt(currentHeight)
}

// Hotfix runs the named migration's byte-rewrite hook if it is a Hotfix
// migration active at exactly height. Returns the rewritten payload, or nil
// if the hotfix did not apply.
func (e *Engine) Hotfix(name string, payload []byte, height uint64) []byte {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, ok := e.byName[name]
	if !ok {
		return nil
	}
	return m.RunHotfix(payload, height)
}

// Get returns the named migration's current configuration, for
// introspection (admin endpoints, tests).
func (e *Engine) Get(name string) (*Migration, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.byName[name]
	return m, ok
}

// List returns every migration in registration order.
func (e *Engine) List() []*Migration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Migration, len(e.ordered))
	copy(out, e.ordered)
	return out
}
