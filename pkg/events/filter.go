package events

import (
	"github.com/coreconsensus/bridge/pkg/address"
	"github.com/coreconsensus/bridge/pkg/chrono"
)

// Range bounds a comparable value on both ends, either bound optional.
// Mirrors the original CborRange<T> used for id_range/date_range filters.
type Range[T any] struct {
	Min  *T
	Max  *T
	less func(a, b T) bool
}

// NewRange builds a Range using less to compare bounds against candidates.
func NewRange[T any](less func(a, b T) bool) Range[T] {
	return Range[T]{less: less}
}

// Contains reports whether v falls within [Min, Max] (inclusive), treating a
// nil bound as unbounded on that side.
func (r Range[T]) Contains(v T) bool {
	if r.Min != nil && r.less(v, *r.Min) {
		return false
	}
	if r.Max != nil && r.less(*r.Max, v) {
		return false
	}
	return true
}

// EventIdLess is the comparator Range[EventId] needs.
func EventIdLess(a, b EventId) bool { return a.Less(b) }

// TimestampLess is the comparator Range[chrono.Timestamp] needs.
func TimestampLess(a, b chrono.Timestamp) bool { return a.Before(b) }

// Order selects ascending or descending iteration for list().
type Order int

const (
	OrderAscending Order = iota
	OrderDescending
)

// Filter selects a subset of the event log. A nil/empty field means "no
// constraint on this dimension". Account/Kind/Symbol are OR-matched against
// their respective candidate set; all populated dimensions are AND-combined.
type Filter struct {
	Accounts  []address.Address
	Kinds     []EventKind
	Symbols   []address.Address
	IDRange   *Range[EventId]
	DateRange *Range[chrono.Timestamp]
}

// Matches reports whether entry satisfies every populated dimension of f.
func (f Filter) Matches(entry EventLog) bool {
	if len(f.Accounts) > 0 && !anyAddressMatches(entry, f.Accounts) {
		return false
	}
	if len(f.Kinds) > 0 && !kindIn(entry.Kind(), f.Kinds) {
		return false
	}
	if len(f.Symbols) > 0 && !symbolIn(entry.Symbol(), f.Symbols) {
		return false
	}
	if f.IDRange != nil && !f.IDRange.Contains(entry.ID) {
		return false
	}
	if f.DateRange != nil && !f.DateRange.Contains(entry.Time) {
		return false
	}
	return true
}

func anyAddressMatches(entry EventLog, candidates []address.Address) bool {
	for _, c := range candidates {
		if entry.IsAbout(c) {
			return true
		}
	}
	return false
}

func kindIn(k EventKind, set []EventKind) bool {
	for _, s := range set {
		if s == k {
			return true
		}
	}
	return false
}

func symbolIn(sym *address.Address, set []address.Address) bool {
	if sym == nil {
		return false
	}
	for _, s := range set {
		if s.Equal(*sym) {
			return true
		}
	}
	return false
}

// Info summarizes the event log as a whole: total count and the set of
// distinct kinds observed.
type Info struct {
	Total      uint64
	EventKinds []EventKind
}
