package eventlog

import (
	"math/big"
	"testing"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/stretchr/testify/require"

	"github.com/coreconsensus/bridge/pkg/address"
	"github.com/coreconsensus/bridge/pkg/chrono"
	"github.com/coreconsensus/bridge/pkg/events"
	"github.com/coreconsensus/bridge/pkg/storage"
)

func testAddr(t *testing.T, seed byte) address.Address {
	t.Helper()
	pub := make([]byte, 32)
	pub[0] = seed
	return address.FromEd25519(pub)
}

func newEngine(t *testing.T) *storage.Engine {
	t.Helper()
	e, err := storage.Open(dbm.NewMemDB(), storage.BlockMode)
	require.NoError(t, err)
	return e
}

func TestLogAndListRoundTrip(t *testing.T) {
	engine := newEngine(t)
	from := testAddr(t, 1)
	to := testAddr(t, 2)
	sym := testAddr(t, 3)

	send := &events.Send{From: from, To: to, Symbol: sym, Amount: big.NewInt(100)}
	id := events.FromHeightAndCounter(1, 0)
	require.NoError(t, Log(engine, id, chrono.New(1000), send))
	_, err := engine.Commit()
	require.NoError(t, err)

	got, err := List(engine, events.Filter{}, events.OrderAscending, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, events.KindSend, got[0].Kind())
}

func TestListFiltersByAccount(t *testing.T) {
	engine := newEngine(t)
	a := testAddr(t, 1)
	b := testAddr(t, 2)
	sym := testAddr(t, 3)

	require.NoError(t, Log(engine, events.FromHeightAndCounter(1, 0), chrono.New(1),
		&events.Send{From: a, To: b, Symbol: sym, Amount: big.NewInt(1)}))
	require.NoError(t, Log(engine, events.FromHeightAndCounter(1, 1), chrono.New(2),
		&events.AccountDisable{Account: b}))
	_, err := engine.Commit()
	require.NoError(t, err)

	got, err := List(engine, events.Filter{Accounts: []address.Address{a}}, events.OrderAscending, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, events.KindSend, got[0].Kind())
}

func TestListDescendingOrder(t *testing.T) {
	engine := newEngine(t)
	a := testAddr(t, 1)

	for i := uint32(0); i < 3; i++ {
		require.NoError(t, Log(engine, events.FromHeightAndCounter(1, i), chrono.New(int64(i)),
			&events.AccountDisable{Account: a}))
	}
	_, err := engine.Commit()
	require.NoError(t, err)

	got, err := List(engine, events.Filter{}, events.OrderDescending, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.True(t, got[0].ID.Compare(got[1].ID) > 0)
}

func TestInfoCountsKinds(t *testing.T) {
	engine := newEngine(t)
	a := testAddr(t, 1)
	require.NoError(t, Log(engine, events.FromHeightAndCounter(1, 0), chrono.New(1),
		&events.AccountDisable{Account: a}))
	_, err := engine.Commit()
	require.NoError(t, err)

	info, err := Info(engine)
	require.NoError(t, err)
	require.Equal(t, uint64(1), info.Total)
	require.Contains(t, info.EventKinds, events.KindAccountDisable)
}
