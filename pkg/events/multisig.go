package events

import (
	"github.com/coreconsensus/bridge/pkg/address"
)

// AccountMultisigTransaction is the closed subset of EventKinds legal as a
// multisig payload. AccountMultisigSubmit's Transaction field is explicitly
// self-describing recursion: a submit may contain another submit, bounded by
// MaxMultisigDepth.
type AccountMultisigTransaction interface {
	Kind() EventKind
	Addresses() []address.Address
	MarshalCBOR() ([]byte, error)
}

// rawValue lets a pre-encoded CBOR item be embedded verbatim as a map value
// without double-encoding it.
type rawValue []byte

func (r rawValue) MarshalCBOR() ([]byte, error) { return []byte(r), nil }

// decodeMultisigTransaction parses a nested transaction payload, rejecting
// anything past MaxMultisigDepth to bound adversarial nesting.
func decodeMultisigTransaction(data []byte, depth int) (AccountMultisigTransaction, error) {
	if depth > MaxMultisigDepth {
		return nil, ErrRecursionDepth
	}
	fields, err := decodeFields(data)
	if err != nil {
		return nil, err
	}
	kind, err := decodeKind(fields)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindSend:
		return decodeSend(fields)
	case KindAccountMultisigSubmit:
		return decodeAccountMultisigSubmit(fields, depth+1)
	default:
		return nil, ErrUnknownKind
	}
}

func decodeSendFromWrapped(fields rawFields) (*Send, error) {
	raw, ok := fields[1]
	if !ok {
		return nil, ErrMissingField
	}
	inner, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	return decodeSend(inner)
}

// --- AccountMultisigSubmit ---

// AccountMultisigSubmit records submission of a pending multisig
// transaction. Transaction is the recursive payload; Memo/Token/Data are
// opaque to the core (domain module concern).
type AccountMultisigSubmit struct {
	Submitter            address.Address
	Account              address.Address
	Memo                 string
	Transaction          AccountMultisigTransaction
	Token                []byte
	Threshold            uint64
	Timeout              int64
	ExecuteAutomatically bool
}

func (e *AccountMultisigSubmit) Kind() EventKind { return KindAccountMultisigSubmit }

func (e *AccountMultisigSubmit) Addresses() []address.Address {
	addrs := []address.Address{e.Submitter, e.Account}
	if e.Transaction != nil {
		addrs = append(addrs, e.Transaction.Addresses()...)
	}
	return addrs
}

func (e *AccountMultisigSubmit) Symbol() *address.Address {
	if e.Transaction == nil {
		return nil
	}
	if s, ok := e.Transaction.(interface{ Symbol() *address.Address }); ok {
		return s.Symbol()
	}
	return nil
}

func (e *AccountMultisigSubmit) MarshalCBOR() ([]byte, error) {
	txBytes, err := e.Transaction.MarshalCBOR()
	if err != nil {
		return nil, err
	}
	return encodeFields(KindAccountMultisigSubmit, map[uint64]interface{}{
		1: e.Submitter,
		2: e.Account,
		3: e.Memo,
		4: rawValue(txBytes),
		5: e.Token,
		6: e.Threshold,
		7: e.Timeout,
		8: e.ExecuteAutomatically,
	})
}

func decodeAccountMultisigSubmit(fields rawFields, depth int) (*AccountMultisigSubmit, error) {
	if err := rejectUnknownFields(fields, 1, 2, 3, 4, 5, 6, 7, 8); err != nil {
		return nil, err
	}
	var e AccountMultisigSubmit
	if err := requireField(fields, 1, &e.Submitter); err != nil {
		return nil, err
	}
	if err := requireField(fields, 2, &e.Account); err != nil {
		return nil, err
	}
	if err := requireField(fields, 3, &e.Memo); err != nil {
		return nil, err
	}
	txRaw, ok := fields[4]
	if !ok {
		return nil, ErrMissingField
	}
	tx, err := decodeMultisigTransaction(txRaw, depth)
	if err != nil {
		return nil, err
	}
	e.Transaction = tx
	if err := requireField(fields, 5, &e.Token); err != nil {
		return nil, err
	}
	if err := requireField(fields, 6, &e.Threshold); err != nil {
		return nil, err
	}
	if err := requireField(fields, 7, &e.Timeout); err != nil {
		return nil, err
	}
	if err := requireField(fields, 8, &e.ExecuteAutomatically); err != nil {
		return nil, err
	}
	return &e, nil
}

// --- AccountMultisigApprove / Revoke / Withdraw (same shape) ---

type multisigVote struct {
	kind    EventKind
	Account address.Address
	Token   []byte
	Signer  address.Address
}

func (e *multisigVote) Kind() EventKind { return e.kind }
func (e *multisigVote) Addresses() []address.Address {
	return []address.Address{e.Account, e.Signer}
}
func (e *multisigVote) Symbol() *address.Address { return nil }

func (e *multisigVote) MarshalCBOR() ([]byte, error) {
	return encodeFields(e.kind, map[uint64]interface{}{
		1: e.Account,
		2: e.Token,
		3: e.Signer,
	})
}

func decodeMultisigVote(kind EventKind, fields rawFields) (*multisigVote, error) {
	if err := rejectUnknownFields(fields, 1, 2, 3); err != nil {
		return nil, err
	}
	e := &multisigVote{kind: kind}
	if err := requireField(fields, 1, &e.Account); err != nil {
		return nil, err
	}
	if err := requireField(fields, 2, &e.Token); err != nil {
		return nil, err
	}
	if err := requireField(fields, 3, &e.Signer); err != nil {
		return nil, err
	}
	return e, nil
}

// AccountMultisigApprove wraps multisigVote to give it a distinct exported
// type identity, mirroring the original's distinct enum variants sharing a
// field shape.
type AccountMultisigApprove struct{ *multisigVote }
type AccountMultisigRevoke struct{ *multisigVote }
type AccountMultisigWithdraw struct{ *multisigVote }

func decodeAccountMultisigApprove(fields rawFields) (*AccountMultisigApprove, error) {
	v, err := decodeMultisigVote(KindAccountMultisigApprove, fields)
	if err != nil {
		return nil, err
	}
	return &AccountMultisigApprove{v}, nil
}

func decodeAccountMultisigRevoke(fields rawFields) (*AccountMultisigRevoke, error) {
	v, err := decodeMultisigVote(KindAccountMultisigRevoke, fields)
	if err != nil {
		return nil, err
	}
	return &AccountMultisigRevoke{v}, nil
}

func decodeAccountMultisigWithdraw(fields rawFields) (*AccountMultisigWithdraw, error) {
	v, err := decodeMultisigVote(KindAccountMultisigWithdraw, fields)
	if err != nil {
		return nil, err
	}
	return &AccountMultisigWithdraw{v}, nil
}

// --- AccountMultisigExecute ---

// AccountMultisigExecute records execution of a satisfied multisig
// transaction. Response is the raw CBOR-encoded backend response envelope;
// decoding it is the concern of whichever caller needs the domain result.
type AccountMultisigExecute struct {
	Account  address.Address
	Token    []byte
	Executer *address.Address
	Response []byte
}

func (e *AccountMultisigExecute) Kind() EventKind { return KindAccountMultisigExecute }

func (e *AccountMultisigExecute) Addresses() []address.Address {
	addrs := []address.Address{e.Account}
	if e.Executer != nil {
		addrs = append(addrs, *e.Executer)
	}
	return addrs
}

func (e *AccountMultisigExecute) Symbol() *address.Address { return nil }

func (e *AccountMultisigExecute) MarshalCBOR() ([]byte, error) {
	fields := map[uint64]interface{}{
		1: e.Account,
		2: e.Token,
		4: e.Response,
	}
	if e.Executer != nil {
		fields[3] = *e.Executer
	}
	return encodeFields(KindAccountMultisigExecute, fields)
}

func decodeAccountMultisigExecute(fields rawFields) (*AccountMultisigExecute, error) {
	if err := rejectUnknownFields(fields, 1, 2, 3, 4); err != nil {
		return nil, err
	}
	var e AccountMultisigExecute
	if err := requireField(fields, 1, &e.Account); err != nil {
		return nil, err
	}
	if err := requireField(fields, 2, &e.Token); err != nil {
		return nil, err
	}
	var executer address.Address
	present, err := optionalField(fields, 3, &executer)
	if err != nil {
		return nil, err
	}
	if present {
		e.Executer = &executer
	}
	if err := requireField(fields, 4, &e.Response); err != nil {
		return nil, err
	}
	return &e, nil
}

// --- AccountMultisigExpired ---

type AccountMultisigExpired struct {
	Account address.Address
	Token   []byte
	Time    int64
}

func (e *AccountMultisigExpired) Kind() EventKind              { return KindAccountMultisigExpired }
func (e *AccountMultisigExpired) Addresses() []address.Address { return []address.Address{e.Account} }
func (e *AccountMultisigExpired) Symbol() *address.Address     { return nil }

func (e *AccountMultisigExpired) MarshalCBOR() ([]byte, error) {
	return encodeFields(KindAccountMultisigExpired, map[uint64]interface{}{
		1: e.Account,
		2: e.Token,
		3: e.Time,
	})
}

func decodeAccountMultisigExpired(fields rawFields) (*AccountMultisigExpired, error) {
	if err := rejectUnknownFields(fields, 1, 2, 3); err != nil {
		return nil, err
	}
	var e AccountMultisigExpired
	if err := requireField(fields, 1, &e.Account); err != nil {
		return nil, err
	}
	if err := requireField(fields, 2, &e.Token); err != nil {
		return nil, err
	}
	if err := requireField(fields, 3, &e.Time); err != nil {
		return nil, err
	}
	return &e, nil
}
