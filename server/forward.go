// Package server implements the gateway's single HTTP surface: the
// per-chain forward handler (spec §4.8).
package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/gattaca-com/preconf-rpc/common"
	"github.com/gattaca-com/preconf-rpc/lookahead"
)

// forwardTimeout is the shared client's total timeout for the outbound
// forwarded request (spec §4.8).
const forwardTimeout = 10 * time.Second

// ManagerLookup resolves a chain-id to its lookahead.Manager.
type ManagerLookup func(chainID uint16) (*lookahead.Manager, bool)

// Handler serves the forward endpoint.
type Handler struct {
	log      *logrus.Entry
	managers ManagerLookup
	client   *http.Client
}

// NewHandler builds a Handler that dispatches to managers.
func NewHandler(log *logrus.Entry, managers ManagerLookup) *Handler {
	return &Handler{
		log:      log,
		managers: managers,
		client:   &http.Client{Timeout: forwardTimeout},
	}
}

// Router builds the mux.Router serving this handler's routes.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", h.missingChainID).Methods(http.MethodPost)
	r.HandleFunc("/{chain_id}", h.forward).Methods(http.MethodPost)
	return r
}

func (h *Handler) missingChainID(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "missing chain-id parameter", http.StatusBadRequest)
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chainIDStr := vars["chain_id"]

	chainID64, err := strconv.ParseUint(chainIDStr, 10, 16)
	if err != nil {
		http.Error(w, fmt.Sprintf("no lookahead provider found for chain-id %s", chainIDStr), http.StatusBadRequest)
		return
	}
	chainID := uint16(chainID64)

	manager, ok := h.managers(chainID)
	if !ok {
		http.Error(w, fmt.Sprintf("no lookahead provider found for chain-id %d", chainID), http.StatusBadRequest)
		return
	}

	url, err := manager.GetURL()
	if err != nil {
		if err == common.ErrNoLookahead {
			http.Error(w, "no lookahead provider found", http.StatusInternalServerError)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "error while forwarding request", http.StatusInternalServerError)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		http.Error(w, "error while forwarding request", http.StatusInternalServerError)
		return
	}
	req.Header = r.Header.Clone()

	resp, err := h.client.Do(req)
	if err != nil {
		h.log.WithError(err).WithField("url", url).Warn("forward request failed")
		http.Error(w, "error while forwarding request", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, "error while forwarding request", http.StatusInternalServerError)
		return
	}

	// Deviation, not a bug fix: the source returns 200 regardless of the
	// upstream's actual status (spec §4.8, §9 open question). Kept as
	// documented behavior rather than "fixed".
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(respBody)
}
