package events

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/coreconsensus/bridge/pkg/address"
	"github.com/coreconsensus/bridge/pkg/chrono"
	"github.com/coreconsensus/bridge/pkg/cborutil"
)

// EventLog is one recorded entry in the event log: an id, a timestamp, and
// the tagged-union payload describing what happened.
type EventLog struct {
	ID      EventId
	Time    chrono.Timestamp
	Content EventInfo
}

func (l EventLog) Kind() EventKind {
	return l.Content.Kind()
}

func (l EventLog) Symbol() *address.Address {
	return l.Content.Symbol()
}

func (l EventLog) IsAbout(id address.Address) bool {
	return IsAbout(l.Content, id)
}

type eventLogWire struct {
	ID      EventId          `cbor:"0,keyasint"`
	Time    chrono.Timestamp `cbor:"1,keyasint"`
	Content cbor.RawMessage  `cbor:"2,keyasint"`
}

func (l EventLog) MarshalCBOR() ([]byte, error) {
	content, err := l.Content.MarshalCBOR()
	if err != nil {
		return nil, err
	}
	return cborutil.Marshal(eventLogWire{ID: l.ID, Time: l.Time, Content: content})
}

func (l *EventLog) UnmarshalCBOR(data []byte) error {
	var w eventLogWire
	if err := cborutil.Unmarshal(data, &w); err != nil {
		return err
	}
	content, err := DecodeEventInfo(w.Content)
	if err != nil {
		return err
	}
	l.ID = w.ID
	l.Time = w.Time
	l.Content = content
	return nil
}
