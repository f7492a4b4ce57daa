package events

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// EventKind is a closed, versioned enumeration encoded on the wire as a
// nested attribute index (e.g. [9,1,0] for "account / multisig / submit")
// rather than as a string or a flat ordinal, so that future versions can
// insert new leaves under an existing branch without renumbering siblings.
// Modeled on the AttributeRelatedIndex scheme in the original many-modules
// events module.
type EventKind uint16

const (
	KindSend EventKind = iota
	KindAccountCreate
	KindAccountSetDescription
	KindAccountAddRoles
	KindAccountRemoveRoles
	KindAccountDisable
	KindAccountMultisigSubmit
	KindAccountMultisigApprove
	KindAccountMultisigRevoke
	KindAccountMultisigExecute
	KindAccountMultisigWithdraw
	KindAccountMultisigSetDefaults
	KindAccountMultisigExpired
)

var kindIndex = map[EventKind][]uint32{
	KindSend:                       {6, 0},
	KindAccountCreate:              {9, 0},
	KindAccountSetDescription:      {9, 1},
	KindAccountAddRoles:            {9, 2},
	KindAccountRemoveRoles:         {9, 3},
	KindAccountDisable:             {9, 4},
	KindAccountMultisigSubmit:      {9, 1, 0},
	KindAccountMultisigApprove:     {9, 1, 1},
	KindAccountMultisigRevoke:      {9, 1, 2},
	KindAccountMultisigExecute:     {9, 1, 3},
	KindAccountMultisigWithdraw:    {9, 1, 4},
	KindAccountMultisigSetDefaults: {9, 1, 5},
	KindAccountMultisigExpired:     {9, 1, 6},
}

var kindName = map[EventKind]string{
	KindSend:                       "send",
	KindAccountCreate:              "account-create",
	KindAccountSetDescription:      "account-set-description",
	KindAccountAddRoles:            "account-add-roles",
	KindAccountRemoveRoles:         "account-remove-roles",
	KindAccountDisable:             "account-disable",
	KindAccountMultisigSubmit:      "account-multisig-submit",
	KindAccountMultisigApprove:     "account-multisig-approve",
	KindAccountMultisigRevoke:      "account-multisig-revoke",
	KindAccountMultisigExecute:     "account-multisig-execute",
	KindAccountMultisigWithdraw:    "account-multisig-withdraw",
	KindAccountMultisigSetDefaults: "account-multisig-set-defaults",
	KindAccountMultisigExpired:     "account-multisig-expired",
}

var kindByIndexKey map[string]EventKind

func indexKey(idx []uint32) string {
	key := ""
	for i, v := range idx {
		if i > 0 {
			key += ","
		}
		key += fmt.Sprintf("%d", v)
	}
	return key
}

func init() {
	kindByIndexKey = make(map[string]EventKind, len(kindIndex))
	for k, idx := range kindIndex {
		kindByIndexKey[indexKey(idx)] = k
	}
}

// Index returns the nested attribute index this kind is assigned.
func (k EventKind) Index() []uint32 {
	idx, ok := kindIndex[k]
	if !ok {
		return nil
	}
	out := make([]uint32, len(idx))
	copy(out, idx)
	return out
}

func (k EventKind) String() string {
	if name, ok := kindName[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown-kind(%d)", uint16(k))
}

// KindFromIndex resolves the enum value matching a decoded attribute index.
// An index that matches nothing in the registry is an error: EventKind is
// closed, versioned by this binary, and never silently accepts an unknown
// value.
func KindFromIndex(idx []uint32) (EventKind, error) {
	k, ok := kindByIndexKey[indexKey(idx)]
	if !ok {
		return 0, fmt.Errorf("%w: index %v", ErrUnknownKind, idx)
	}
	return k, nil
}

// MarshalCBOR encodes the kind as its flattened attribute index.
func (k EventKind) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(k.Index())
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (k *EventKind) UnmarshalCBOR(data []byte) error {
	var idx []uint32
	if err := cbor.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("events: decode EventKind: %w", err)
	}
	resolved, err := KindFromIndex(idx)
	if err != nil {
		return err
	}
	*k = resolved
	return nil
}
