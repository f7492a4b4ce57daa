package events

import "errors"

var (
	ErrUnknownKind      = errors.New("events: unknown event kind")
	ErrMissingKindField = errors.New("events: first map entry must be key 0 (kind)")
	ErrMissingField     = errors.New("events: missing required field")
	ErrUnknownField     = errors.New("events: unknown field index")
	ErrRecursionDepth   = errors.New("events: multisig transaction nesting exceeds depth limit")
)

// MaxMultisigDepth bounds the recursion of AccountMultisigTransaction values
// nested inside AccountMultisigSubmit.Transaction. Suggested by spec.md's
// design notes to bound decode cost against adversarial input.
const MaxMultisigDepth = 8
