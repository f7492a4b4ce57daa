package abci

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/stretchr/testify/require"

	"github.com/coreconsensus/bridge/pkg/address"
	"github.com/coreconsensus/bridge/pkg/chrono"
	"github.com/coreconsensus/bridge/pkg/cose"
	"github.com/coreconsensus/bridge/pkg/wire"
)

var errTest = errors.New("execution failed")

// fakeBackend is a minimal stand-in for backend.Application, letting the
// bridge's ABCI translation be tested without a real storage engine.
// deliverResp, when set, must already be wire.Response-encoded bytes: the
// bridge decodes whatever the backend hands back, exactly as it would a
// real Application's DeliverTx output.
type fakeBackend struct {
	height          uint64
	checkErr        error
	deliverResp     []byte
	deliverErr      error
	migrationActive bool
	gotEnvelope     []byte
}

func (f *fakeBackend) Info() (uint64, [32]byte, error) { return f.height, [32]byte{}, nil }

func (f *fakeBackend) CheckEnvelope(envBytes []byte, now chrono.Timestamp) error {
	return f.checkErr
}

func (f *fakeBackend) BeginBlock(ctx context.Context) (uint64, error) {
	f.height++
	return f.height, nil
}

func (f *fakeBackend) DeliverEnvelope(ctx context.Context, envBytes []byte) ([]byte, error) {
	f.gotEnvelope = envBytes
	if f.deliverErr != nil {
		return nil, f.deliverErr
	}
	if f.deliverResp != nil {
		return f.deliverResp, nil
	}
	return wire.EncodeResponse(wire.Response{})
}

func (f *fakeBackend) EndBlock(ctx context.Context) error { return nil }

func (f *fakeBackend) Commit(ctx context.Context) ([32]byte, error) { return [32]byte{1}, nil }

func (f *fakeBackend) Query(key []byte) ([]byte, error) { return []byte("value"), nil }

func (f *fakeBackend) MigrationActive(name string, height uint64) bool { return f.migrationActive }

func sealedTx(t *testing.T, method string) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	kp := cose.NewEd25519KeyPair(priv)

	payload, err := wire.Encode(method, []byte("x"), chrono.New(1000))
	require.NoError(t, err)

	env, err := kp.Seal(payload)
	require.NoError(t, err)

	data, err := env.MarshalCBOR()
	require.NoError(t, err)
	return data
}

func TestCheckTxAcceptsWellFormedEnvelope(t *testing.T) {
	fb := &fakeBackend{}
	b := NewBridge(fb)

	resp, err := b.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: sealedTx(t, "kvstore.put")})
	require.NoError(t, err)
	require.Equal(t, abcitypes.CodeTypeOK, resp.Code)
}

func TestCheckTxRejectsBackendError(t *testing.T) {
	fb := &fakeBackend{checkErr: errTest}
	b := NewBridge(fb)

	resp, err := b.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: []byte("not-cose")})
	require.NoError(t, err)
	require.Equal(t, CheckValidationError, resp.Code)
}

func TestFinalizeBlockDeliversAndDispatches(t *testing.T) {
	fb := &fakeBackend{}
	b := NewBridge(fb)

	tx := sealedTx(t, "kvstore.put")
	resp, err := b.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{
		Txs: [][]byte{tx},
	})
	require.NoError(t, err)
	require.Len(t, resp.TxResults, 1)
	require.Equal(t, abcitypes.CodeTypeOK, resp.TxResults[0].Code)
	require.Equal(t, tx, fb.gotEnvelope)
}

// TestFinalizeBlockNormalizesResponse exercises testable property #2
// (spec.md section 8): the recorded response always carries the anonymous
// sender, a stripped version, and the epoch sentinel timestamp, regardless
// of what the backend actually returned.
func TestFinalizeBlockNormalizesResponse(t *testing.T) {
	raw, err := wire.EncodeResponse(wire.Response{
		From:      address.FromEd25519(mustPub(t)),
		Data:      []byte("hello"),
		Timestamp: 1_700_000_000,
		Version:   7,
	})
	require.NoError(t, err)

	fb := &fakeBackend{deliverResp: raw}
	b := NewBridge(fb)

	resp, err := b.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{
		Txs: [][]byte{sealedTx(t, "kvstore.put")},
	})
	require.NoError(t, err)
	require.Equal(t, abcitypes.CodeTypeOK, resp.TxResults[0].Code)

	decoded, err := wire.DecodeResponse(resp.TxResults[0].Data)
	require.NoError(t, err)
	require.True(t, decoded.From.IsAnonymous())
	require.Equal(t, uint32(0), decoded.Version)
	require.Equal(t, int64(0), decoded.Timestamp)
	require.Equal(t, []byte("hello"), decoded.Data)
}

// TestDeliverDomainErrorStaysCodeZero is the bridge-level half of spec.md
// section 7's propagation policy: a domain error the backend embedded in
// its response never becomes a non-zero ABCI code.
func TestDeliverDomainErrorStaysCodeZero(t *testing.T) {
	raw, err := wire.EncodeResponse(wire.Response{ErrorCode: 41, ErrorMessage: "attribute error"})
	require.NoError(t, err)

	fb := &fakeBackend{deliverResp: raw}
	b := NewBridge(fb)

	resp, err := b.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{
		Txs: [][]byte{sealedTx(t, "kvstore.put")},
	})
	require.NoError(t, err)
	require.Equal(t, abcitypes.CodeTypeOK, resp.TxResults[0].Code)

	decoded, err := wire.DecodeResponse(resp.TxResults[0].Data)
	require.NoError(t, err)
	require.Equal(t, uint32(41), decoded.ErrorCode)
}

// TestDeliverErrorCodeRewrite is scenario S4 (spec.md section 8): once
// legacy_error_code is active, an attribute-specific embedded error code is
// rewritten to the closed Unknown code, while the ABCI code itself stays 0.
func TestDeliverErrorCodeRewrite(t *testing.T) {
	raw, err := wire.EncodeResponse(wire.Response{ErrorCode: 41, ErrorMessage: "attribute error"})
	require.NoError(t, err)

	fb := &fakeBackend{migrationActive: true, deliverResp: raw}
	b := NewBridge(fb)

	resp, err := b.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{
		Txs: [][]byte{sealedTx(t, "kvstore.put")},
	})
	require.NoError(t, err)
	require.Equal(t, abcitypes.CodeTypeOK, resp.TxResults[0].Code)

	decoded, err := wire.DecodeResponse(resp.TxResults[0].Data)
	require.NoError(t, err)
	require.Equal(t, uint32(1), decoded.ErrorCode)
}

// TestDeliverTransportErrorClassified covers a genuine transport/decode
// failure from the backend (not a domain error): this is the one case that
// still becomes a non-zero ABCI code.
func TestDeliverTransportErrorClassified(t *testing.T) {
	fb := &fakeBackend{deliverErr: errTest}
	b := NewBridge(fb)

	resp, err := b.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{
		Txs: [][]byte{sealedTx(t, "kvstore.put")},
	})
	require.NoError(t, err)
	require.Equal(t, DeliverTransportRequestError, resp.TxResults[0].Code)
}

func TestQueryReturnsValue(t *testing.T) {
	fb := &fakeBackend{}
	b := NewBridge(fb)

	resp, err := b.Query(context.Background(), &abcitypes.RequestQuery{Data: []byte("/kv/hello")})
	require.NoError(t, err)
	require.Equal(t, []byte("value"), resp.Value)
}

func mustPub(t *testing.T) ed25519.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return pub
}
