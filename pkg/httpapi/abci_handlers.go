package httpapi

import (
	"fmt"
	"net/http"

	"github.com/coreconsensus/bridge/pkg/chrono"
)

type migrationActiveResponse struct {
	Active bool `json:"active"`
}

func (h *Handlers) handleMigrationActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is allowed")
		return
	}
	name := r.URL.Query().Get("name")
	height, err := parseUint64(r.URL.Query().Get("height"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_HEIGHT", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, migrationActiveResponse{Active: h.app.MigrationActive(name, height)})
}

type infoResponse struct {
	Height uint64 `json:"height"`
	Root   string `json:"root"`
}

func (h *Handlers) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is allowed")
		return
	}
	height, root, err := h.app.Info()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, infoResponse{Height: height, Root: fmt.Sprintf("%x", root)})
}

func (h *Handlers) handleCheckTx(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only POST is allowed")
		return
	}
	envBytes, err := readBody(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	now := chrono.Now()
	if err := h.app.CheckEnvelope(envBytes, now); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, "REJECTED", err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}

type beginBlockResponse struct {
	Height uint64 `json:"height"`
}

func (h *Handlers) handleBeginBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only POST is allowed")
		return
	}
	height, err := h.app.BeginBlock(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, beginBlockResponse{Height: height})
}

func (h *Handlers) handleDeliverTx(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only POST is allowed")
		return
	}
	envBytes, err := readBody(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	resp, err := h.app.DeliverEnvelope(r.Context(), envBytes)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, "EXECUTION_FAILED", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

func (h *Handlers) handleEndBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only POST is allowed")
		return
	}
	if err := h.app.EndBlock(r.Context()); err != nil {
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}

type commitResponse struct {
	Root string `json:"root"`
}

func (h *Handlers) handleCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only POST is allowed")
		return
	}
	root, err := h.app.Commit(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, commitResponse{Root: fmt.Sprintf("%x", root)})
}

func (h *Handlers) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is allowed")
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_KEY", "key query parameter is required")
		return
	}
	v, err := h.app.Query([]byte(key))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if v == nil {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "key not found")
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(v)
}
