// Package abci implements the ABCI bridge: the thin cometbft-facing
// abcitypes.Application that translates consensus callbacks into calls
// against a backend (in-process or remote), normalizing requests for
// cross-replica determinism and rewriting deliver-path error codes when the
// legacy_error_code migration is active. Grounded in the teacher's
// pkg/consensus/abci_validator.go (ValidatorApp), generalized from a single
// ValidatorBlock message type to an arbitrary COSE-enveloped request
// dispatched to a pluggable backend.
package abci

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/coreconsensus/bridge/pkg/chrono"
	"github.com/coreconsensus/bridge/pkg/faulterr"
	"github.com/coreconsensus/bridge/pkg/migration"
	"github.com/coreconsensus/bridge/pkg/validator"
	"github.com/coreconsensus/bridge/pkg/wire"
)

// Backend is the set of operations the bridge needs from a backend
// application. Both *backend.Application (in-process) and an
// httpapi.Client (remote) satisfy it, so the bridge does not care whether
// the backend lives in the same process or across the wire. Every method
// takes the raw envelope bytes rather than a decoded request: only the
// backend understands the wire.Request shape, the bridge just forwards
// bytes, mirroring the real many-abci/many-ledger process split.
type Backend interface {
	Info() (height uint64, root [32]byte, err error)
	CheckEnvelope(envBytes []byte, now chrono.Timestamp) error
	BeginBlock(ctx context.Context) (uint64, error)
	DeliverEnvelope(ctx context.Context, envBytes []byte) ([]byte, error)
	EndBlock(ctx context.Context) error
	Commit(ctx context.Context) ([32]byte, error)
	Query(key []byte) ([]byte, error)
	MigrationActive(name string, height uint64) bool
}

// Bridge implements abcitypes.Application over a Backend. It carries no
// consensus-relevant state of its own beyond what it needs to translate one
// FinalizeBlock's Tx/Time fields into BeginBlock/DeliverTx/EndBlock calls,
// plus the latched block_time resource spec.md section 5 assigns it:
// exclusive writer in FinalizeBlock, shared reader in CheckTx.
type Bridge struct {
	backend Backend
	logger  *log.Logger

	blockTimeMu   sync.RWMutex
	blockTime     chrono.Timestamp
	haveBlockTime bool
}

// NewBridge wires a Backend into an ABCI application.
func NewBridge(b Backend) *Bridge {
	return &Bridge{backend: b, logger: log.New(log.Writer(), "[abci] ", log.LstdFlags)}
}

var _ abcitypes.Application = (*Bridge)(nil)

// Info reports the backend's committed height and root hash as cometbft's
// LastBlockHeight/LastBlockAppHash, letting a restarted node resume at the
// right point without replaying already-committed blocks.
func (b *Bridge) Info(ctx context.Context, req *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	height, root, err := b.backend.Info()
	if err != nil {
		return nil, err
	}
	return &abcitypes.ResponseInfo{
		Data:             "coreconsensus-bridge",
		Version:          "1.0.0",
		AppVersion:       1,
		LastBlockHeight:  int64(height),
		LastBlockAppHash: root[:],
	}, nil
}

// setBlockTime latches header.time as the bridge's notion of block_time.
// FinalizeBlock (begin_block) is its only writer.
func (b *Bridge) setBlockTime(t time.Time) {
	b.blockTimeMu.Lock()
	defer b.blockTimeMu.Unlock()
	b.blockTime = chrono.FromTime(t)
	b.haveBlockTime = true
}

// blockTimeNow is the shared-reader half of block_time: check_tx consults
// the height's latched block time, falling back to wall-clock only if no
// block has been finalized yet (spec.md section 4.5 check_tx).
func (b *Bridge) blockTimeNow() chrono.Timestamp {
	b.blockTimeMu.RLock()
	defer b.blockTimeMu.RUnlock()
	if b.haveBlockTime {
		return b.blockTime
	}
	return chrono.Now()
}

// CheckTx hands the raw envelope to the backend for parsing and
// signature/freshness/replay validation, per spec.md's check_tx -> RVC
// path. Every rejection is reported as a non-zero ABCI code rather than a
// transport error: an invalid tx must not crash the node.
func (b *Bridge) CheckTx(ctx context.Context, req *abcitypes.RequestCheckTx) (*abcitypes.ResponseCheckTx, error) {
	now := b.blockTimeNow()
	if err := b.backend.CheckEnvelope(req.Tx, now); err != nil {
		return &abcitypes.ResponseCheckTx{Code: ClassifyCheckError(err), Log: err.Error()}, nil
	}
	return &abcitypes.ResponseCheckTx{Code: abcitypes.CodeTypeOK, GasWanted: 1}, nil
}

// FinalizeBlock runs begin_block, then one deliver_tx per transaction, then
// end_block, matching spec.md 4.3's begin/deliver/end phases within a
// single ABCI 2.0 callback.
func (b *Bridge) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	b.setBlockTime(req.Time)

	height, err := b.backend.BeginBlock(ctx)
	if err != nil {
		if faulterr.IsFatal(err) || height == 0 {
			return nil, fmt.Errorf("abci: begin_block: %w", err)
		}
		b.logger.Printf("begin_block: migration update at height %d failed: %v", height, err)
	}

	results := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, tx := range req.Txs {
		res, err := b.deliverOne(ctx, tx, height)
		if err != nil {
			return nil, fmt.Errorf("abci: deliver_tx: %w", err)
		}
		results[i] = res
	}

	if err := b.backend.EndBlock(ctx); err != nil {
		return nil, fmt.Errorf("abci: end_block: %w", err)
	}

	return &abcitypes.ResponseFinalizeBlock{TxResults: results}, nil
}

// deliverOne runs one transaction through the backend and returns its ABCI
// result. Per spec.md section 7's propagation policy, a backend round trip
// that transport-succeeds always yields Code 0: any domain error a module
// raised already travels inside the normalized response payload (see
// wire.Response), never as a non-zero ABCI code, so every replica records
// the same bytes. Only a transport/decode failure — the backend never
// answered, or answered with something that does not parse as a
// wire.Response — becomes a non-zero code here. RVC poisoning on the
// deliver path is a determinism breach (spec.md section 7): it aborts the
// whole block rather than being folded into one tx result.
func (b *Bridge) deliverOne(ctx context.Context, tx []byte, height uint64) (*abcitypes.ExecTxResult, error) {
	payload, err := b.backend.DeliverEnvelope(ctx, tx)
	if err != nil {
		if faulterr.IsFatal(err) || errors.Is(err, validator.ErrPoisoned) {
			return nil, err
		}
		return &abcitypes.ExecTxResult{Code: ClassifyDeliverError(err), Log: err.Error()}, nil
	}

	resp, err := wire.DecodeResponse(payload)
	if err != nil {
		return &abcitypes.ExecTxResult{Code: DeliverCoseDeserializeError, Log: err.Error()}, nil
	}

	resp = wire.NormalizeResponse(resp)
	if resp.ErrorCode > legacyUnknownErrorCode && b.backend.MigrationActive(migration.LegacyErrorCodeName, height) {
		resp.ErrorCode = legacyUnknownErrorCode
	}

	data, err := wire.EncodeResponse(resp)
	if err != nil {
		return &abcitypes.ExecTxResult{Code: DeliverCoseDeserializeError, Log: err.Error()}, nil
	}

	return &abcitypes.ExecTxResult{Code: abcitypes.CodeTypeOK, Data: data}, nil
}

// Commit flushes the block's writes through the backend. The root hash the
// backend returns is discarded: neither this response nor FinalizeBlock's
// response carries an app hash.
func (b *Bridge) Commit(ctx context.Context, req *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	_, err := b.backend.Commit(ctx)
	if err != nil {
		return nil, err
	}
	return &abcitypes.ResponseCommit{}, nil
}

// Query answers a raw key lookup against committed state.
func (b *Bridge) Query(ctx context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	v, err := b.backend.Query(req.Data)
	if err != nil {
		return &abcitypes.ResponseQuery{Code: QueryRejected, Log: err.Error()}, nil
	}
	if v == nil {
		return &abcitypes.ResponseQuery{Code: QueryNotFound}, nil
	}
	return &abcitypes.ResponseQuery{Code: abcitypes.CodeTypeOK, Value: v}, nil
}

// InitChain is a no-op beyond acknowledging genesis: the backend's genesis
// batch is applied by backend.NewApplication's caller before the bridge
// starts serving ABCI, not from within InitChain.
func (b *Bridge) InitChain(ctx context.Context, req *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	return &abcitypes.ResponseInitChain{}, nil
}

func (b *Bridge) PrepareProposal(ctx context.Context, req *abcitypes.RequestPrepareProposal) (*abcitypes.ResponsePrepareProposal, error) {
	return &abcitypes.ResponsePrepareProposal{Txs: req.Txs}, nil
}

func (b *Bridge) ProcessProposal(ctx context.Context, req *abcitypes.RequestProcessProposal) (*abcitypes.ResponseProcessProposal, error) {
	return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_ACCEPT}, nil
}

func (b *Bridge) ExtendVote(ctx context.Context, req *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (b *Bridge) VerifyVoteExtension(ctx context.Context, req *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (b *Bridge) ListSnapshots(ctx context.Context, req *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (b *Bridge) OfferSnapshot(ctx context.Context, req *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{Result: abcitypes.ResponseOfferSnapshot_REJECT}, nil
}

func (b *Bridge) LoadSnapshotChunk(ctx context.Context, req *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (b *Bridge) ApplySnapshotChunk(ctx context.Context, req *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{Result: abcitypes.ResponseApplySnapshotChunk_REJECT}, nil
}
