// Package faulterr distinguishes errors that are safe to log and continue
// from errors that put replicas at risk of diverging, so callers up the
// stack (begin_block's migration hook, deliver_tx's cache commit, storage's
// commit path) can tell the two apart without string-matching.
package faulterr

import "errors"

// Fatal wraps an error that must abort the process rather than merely be
// reported to the consensus layer: spec.md section 7 names exactly two
// classes (message_executed failure post-deliver, RVC poisoning during
// deliver) plus a failing storage apply/commit within a block.
type Fatal struct {
	err error
}

// NewFatal wraps err as fatal. Wrapping nil returns nil so callers can write
// `return faulterr.NewFatal(err)` unconditionally.
func NewFatal(err error) error {
	if err == nil {
		return nil
	}
	return &Fatal{err: err}
}

func (f *Fatal) Error() string { return f.err.Error() }
func (f *Fatal) Unwrap() error { return f.err }

// IsFatal reports whether err (or anything it wraps) is a Fatal.
func IsFatal(err error) bool {
	var f *Fatal
	return errors.As(err, &f)
}
