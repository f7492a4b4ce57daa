package backend

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/stretchr/testify/require"

	"github.com/coreconsensus/bridge/pkg/address"
	"github.com/coreconsensus/bridge/pkg/chrono"
	"github.com/coreconsensus/bridge/pkg/events"
	"github.com/coreconsensus/bridge/pkg/metrics"
	"github.com/coreconsensus/bridge/pkg/migration"
	"github.com/coreconsensus/bridge/pkg/storage"
	"github.com/coreconsensus/bridge/pkg/validator"
	"github.com/coreconsensus/bridge/pkg/wire"
)

// kvstoreModule is a minimal demo domain module (put/get over the raw
// storage namespace) used only to exercise Application's dispatch path; it
// is not part of the bridge's own wire protocol.
type kvstoreModule struct{}

func (kvstoreModule) Methods() []string { return []string{"kvstore.put", "kvstore.get"} }

func (kvstoreModule) Execute(ctx context.Context, engine *storage.Engine, from address.Address, method string, args []byte) ([]byte, events.EventInfo, error) {
	switch method {
	case "kvstore.put":
		key := append([]byte("/kv/"), args...)
		if err := engine.Apply(storage.NewBatch().Put(key, args)); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	case "kvstore.get":
		key := append([]byte("/kv/"), args...)
		v, err := engine.Get(key)
		return v, nil, err
	}
	return nil, nil, nil
}

func testApp(t *testing.T) *Application {
	t.Helper()
	engine, err := storage.Open(dbm.NewMemDB(), storage.BlockMode)
	require.NoError(t, err)

	reg, err := migration.NewRegistry(migration.LegacyErrorCode)
	require.NoError(t, err)
	me := reg.EnableAllRegular()

	cache := validator.NewCache(time.Minute, 5*time.Second)
	app := NewApplication(engine, me, cache, nil)
	app.Register(kvstoreModule{})
	return app
}

func TestBeginDeliverCommitCycle(t *testing.T) {
	app := testApp(t)
	ctx := context.Background()
	now := chrono.New(1000)

	from := address.Anonymous()

	height, err := app.BeginBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), height)

	require.NoError(t, app.cache.ValidateRequest("req-1", now))
	_, err = app.DeliverTx(ctx, "req-1", Request{From: from, Method: "kvstore.put", Args: []byte("hello")}, now)
	require.NoError(t, err)

	require.NoError(t, app.EndBlock(ctx))

	root, err := app.Commit(ctx)
	require.NoError(t, err)
	require.NotEqual(t, [32]byte{}, root)

	v, err := app.Query(append([]byte("/kv/"), []byte("hello")...))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v)
}

// TestDeliverTxUnknownMethodEmbedsDomainError confirms spec.md section 7's
// propagation policy: an unknown method is an application error, not a
// transport failure, so it must come back as a Go nil error with the
// failure embedded in the response payload.
func TestDeliverTxUnknownMethodEmbedsDomainError(t *testing.T) {
	app := testApp(t)
	ctx := context.Background()
	now := chrono.New(1)
	_, err := app.BeginBlock(ctx)
	require.NoError(t, err)

	require.NoError(t, app.cache.ValidateRequest("req-1", now))
	payload, err := app.DeliverTx(ctx, "req-1", Request{Method: "does.not.exist"}, now)
	require.NoError(t, err)

	resp, err := wire.DecodeResponse(payload)
	require.NoError(t, err)
	require.NotZero(t, resp.ErrorCode)
	require.Contains(t, resp.ErrorMessage, "does.not.exist")
}

func TestDeliverTxWithoutPriorValidationPoisonsCache(t *testing.T) {
	app := testApp(t)
	ctx := context.Background()
	now := chrono.New(1)
	_, err := app.BeginBlock(ctx)
	require.NoError(t, err)

	_, err = app.DeliverTx(ctx, "never-checked", Request{Method: "kvstore.put", Args: []byte("x")}, now)
	require.Error(t, err)

	poisoned, _ := app.cache.Poisoned()
	require.True(t, poisoned)
}

func TestMigrationActiveAfterConfiguredHeight(t *testing.T) {
	app := testApp(t)
	require.True(t, app.MigrationActive(migration.LegacyErrorCodeName, 1))
}

func TestCheckTxThenDeliverTxSharedKey(t *testing.T) {
	app := testApp(t)
	ctx := context.Background()
	now := chrono.New(100)
	envBytes := []byte("fake-cose-envelope-bytes")

	require.NoError(t, app.CheckTx(envBytes, nil, now, now))

	_, err := app.BeginBlock(ctx)
	require.NoError(t, err)

	key := RequestKey(envBytes)
	_, err = app.DeliverTx(ctx, key, Request{Method: "kvstore.put", Args: []byte("v")}, now)
	require.NoError(t, err)
}

type fakeSink struct {
	entries []events.EventLog
}

func (s *fakeSink) Index(ctx context.Context, entry events.EventLog) error {
	s.entries = append(s.entries, entry)
	return nil
}

func TestEventSinkNotCalledWithoutEventInfo(t *testing.T) {
	app := testApp(t)
	sink := &fakeSink{}
	app.SetEventSink(sink)
	ctx := context.Background()
	now := chrono.New(1)

	_, err := app.BeginBlock(ctx)
	require.NoError(t, err)

	require.NoError(t, app.cache.ValidateRequest("req-1", now))
	_, err = app.DeliverTx(ctx, "req-1", Request{Method: "kvstore.put", Args: []byte("hello")}, now)
	require.NoError(t, err)

	require.Empty(t, sink.entries, "kvstoreModule.Execute returns no event info, sink should not be called")
}

func TestMetricsRecordedWhenRegistered(t *testing.T) {
	app := testApp(t)
	reg := metrics.New()
	app.SetMetrics(reg)
	ctx := context.Background()
	now := chrono.New(1)

	height, err := app.BeginBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), height)

	require.NoError(t, app.cache.ValidateRequest("req-1", now))
	_, err = app.DeliverTx(ctx, "req-1", Request{Method: "kvstore.put", Args: []byte("hello")}, now)
	require.NoError(t, err)

	require.NoError(t, app.EndBlock(ctx))
	_, err = app.Commit(ctx)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Contains(t, rec.Body.String(), `bridge_delivered_tx_total{method="kvstore.put"} 1`)
}
