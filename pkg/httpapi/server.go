// Package httpapi exposes a backend.Application over HTTP: one endpoint per
// ABCI lifecycle call plus a generic COSE-enveloped call endpoint for
// domain messages, so the ABCI bridge and the backend can run as separate
// processes. Grounded in the teacher's pkg/server handler-per-concern
// layout (ProofHandlers, BundleHandlers, ...): a struct per concern holding
// its dependencies, writeJSON/writeError helpers, manual method checks
// rather than a router middleware stack.
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/coreconsensus/bridge/pkg/backend"
)

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 1<<20))
}

func parseUint64(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	var v uint64
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

// Handlers serves a backend.Application's operations over HTTP.
type Handlers struct {
	app    *backend.Application
	logger *log.Logger
}

// NewHandlers builds HTTP handlers over app.
func NewHandlers(app *backend.Application) *Handlers {
	return &Handlers{app: app, logger: log.New(log.Writer(), "[httpapi] ", log.LstdFlags)}
}

// Mux builds the routed http.Handler for every endpoint this package serves:
// the ABCI lifecycle group in abci_handlers.go and the envelope call group
// in envelope_handlers.go.
func (h *Handlers) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/abci/info", h.handleInfo)
	mux.HandleFunc("/abci/checkTx", h.handleCheckTx)
	mux.HandleFunc("/abci/beginBlock", h.handleBeginBlock)
	mux.HandleFunc("/abci/deliverTx", h.handleDeliverTx)
	mux.HandleFunc("/abci/endBlock", h.handleEndBlock)
	mux.HandleFunc("/abci/commit", h.handleCommit)
	mux.HandleFunc("/abci/query", h.handleQuery)
	mux.HandleFunc("/migrations/active", h.handleMigrationActive)
	mux.HandleFunc("/call", h.handleCall)
	return mux
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Printf("write response: %v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, errorBody{Code: code, Message: message})
}
