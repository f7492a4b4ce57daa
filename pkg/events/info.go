package events

import (
	"math/big"

	"github.com/coreconsensus/bridge/pkg/address"
)

// EventInfo is a tagged union over EventKind. Each variant's wire body is a
// map {0: EventKind, 1..N: typed fields}; Addresses and Symbol are derived
// views computed from the variant's fields (walking into nested multisig
// transactions where applicable).
type EventInfo interface {
	Kind() EventKind
	// Addresses returns every address mentioned by this event, including
	// addresses mentioned by a nested AccountMultisigTransaction payload.
	Addresses() []address.Address
	// Symbol returns the address this event pertains to as a token symbol,
	// if it has one.
	Symbol() *address.Address

	MarshalCBOR() ([]byte, error)
}

// IsAbout reports whether id appears in info's Addresses().
func IsAbout(info EventInfo, id address.Address) bool {
	for _, a := range info.Addresses() {
		if a.Equal(id) {
			return true
		}
	}
	return false
}

// DecodeEventInfo dispatches on the wire map's key-0 EventKind to the
// matching variant's decoder. Unknown kinds are rejected: EventInfo is
// closed, not extensible at decode time.
func DecodeEventInfo(data []byte) (EventInfo, error) {
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
	case KindAccountCreate:
		return decodeAccountCreate(fields)
	case KindAccountDisable:
		return decodeAccountDisable(fields)
	case KindAccountMultisigSubmit:
		return decodeAccountMultisigSubmit(fields, 0)
	case KindAccountMultisigApprove:
		return decodeAccountMultisigApprove(fields)
	case KindAccountMultisigRevoke:
		return decodeAccountMultisigRevoke(fields)
	case KindAccountMultisigExecute:
		return decodeAccountMultisigExecute(fields)
	case KindAccountMultisigWithdraw:
		return decodeAccountMultisigWithdraw(fields)
	case KindAccountMultisigExpired:
		return decodeAccountMultisigExpired(fields)
	default:
		return nil, ErrUnknownKind
	}
}

// --- Send ---

// Send records a ledger transfer. Grounded on the [6,0] Send variant in the
// original events module.
type Send struct {
	From   address.Address
	To     address.Address
	Symbol address.Address
	Amount *big.Int
}

func (e *Send) Kind() EventKind { return KindSend }

func (e *Send) Addresses() []address.Address {
	return []address.Address{e.From, e.To}
}

func (e *Send) Symbol() *address.Address { return &e.Symbol }

func (e *Send) MarshalCBOR() ([]byte, error) {
	amount := e.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	return encodeFields(KindSend, map[uint64]interface{}{
		1: e.From,
		2: e.To,
		3: e.Symbol,
		4: amount,
	})
}

func decodeSend(fields rawFields) (*Send, error) {
	if err := rejectUnknownFields(fields, 1, 2, 3, 4); err != nil {
		return nil, err
	}
	var e Send
	if err := requireField(fields, 1, &e.From); err != nil {
		return nil, err
	}
	if err := requireField(fields, 2, &e.To); err != nil {
		return nil, err
	}
	if err := requireField(fields, 3, &e.Symbol); err != nil {
		return nil, err
	}
	e.Amount = new(big.Int)
	if err := requireField(fields, 4, e.Amount); err != nil {
		return nil, err
	}
	return &e, nil
}

// --- AccountCreate ---

// AccountCreate records the creation of a multi-role account. Roles and
// features are opaque byte blobs here: the account module's role/feature
// vocabulary is out of this module's scope, so the event just carries
// whatever the backend serialized.
type AccountCreate struct {
	Account      address.Address
	Description  string
	RolesCBOR    []byte
	FeaturesCBOR []byte
}

func (e *AccountCreate) Kind() EventKind              { return KindAccountCreate }
func (e *AccountCreate) Addresses() []address.Address { return []address.Address{e.Account} }
func (e *AccountCreate) Symbol() *address.Address     { return nil }

func (e *AccountCreate) MarshalCBOR() ([]byte, error) {
	return encodeFields(KindAccountCreate, map[uint64]interface{}{
		1: e.Account,
		2: e.Description,
		3: e.RolesCBOR,
		4: e.FeaturesCBOR,
	})
}

func decodeAccountCreate(fields rawFields) (*AccountCreate, error) {
	if err := rejectUnknownFields(fields, 1, 2, 3, 4); err != nil {
		return nil, err
	}
	var e AccountCreate
	if err := requireField(fields, 1, &e.Account); err != nil {
		return nil, err
	}
	if err := requireField(fields, 2, &e.Description); err != nil {
		return nil, err
	}
	if err := requireField(fields, 3, &e.RolesCBOR); err != nil {
		return nil, err
	}
	if err := requireField(fields, 4, &e.FeaturesCBOR); err != nil {
		return nil, err
	}
	return &e, nil
}

// --- AccountDisable ---

type AccountDisable struct {
	Account address.Address
}

func (e *AccountDisable) Kind() EventKind              { return KindAccountDisable }
func (e *AccountDisable) Addresses() []address.Address { return []address.Address{e.Account} }
func (e *AccountDisable) Symbol() *address.Address     { return nil }

func (e *AccountDisable) MarshalCBOR() ([]byte, error) {
	return encodeFields(KindAccountDisable, map[uint64]interface{}{1: e.Account})
}

func decodeAccountDisable(fields rawFields) (*AccountDisable, error) {
	if err := rejectUnknownFields(fields, 1); err != nil {
		return nil, err
	}
	var e AccountDisable
	if err := requireField(fields, 1, &e.Account); err != nil {
		return nil, err
	}
	return &e, nil
}
