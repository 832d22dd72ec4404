// Package httpapi exposes the settlement layer's REST and websocket surface.
// Caller identity arrives pre-authenticated: the fronting gateway verifies
// signatures and forwards the caller address, so this layer only routes it.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	app "github.com/VoltGrid-Network/settlement_layer/internal/app"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/party"
	"github.com/VoltGrid-Network/settlement_layer/pkg/logger"
)

// handler bundles HTTP endpoints for the settlement engine.
type handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler returns a mux exposing the settlement REST API.
func NewHandler(application *app.Application, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.healthz)
	mux.HandleFunc("/supply", h.supply)
	mux.HandleFunc("/price", h.price)
	mux.HandleFunc("/parties", h.parties)
	mux.HandleFunc("/parties/", h.partyByAddress)
	mux.HandleFunc("/transactions", h.transactions)
	mux.HandleFunc("/transactions/", h.transactionResource)
	mux.HandleFunc("/refunds/", h.refundByAddress)
	mux.HandleFunc("/commit", h.commit)
	mux.HandleFunc("/reveal", h.reveal)
	mux.HandleFunc("/withdraw", h.withdraw)
	mux.HandleFunc("/admin/", h.admin)
	mux.HandleFunc("/events", h.eventStream)
	return mux
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) supply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	payload := map[string]any{
		"available_units": h.app.Engine.AvailableUnits(),
		"paused":          h.app.Engine.Paused(),
	}
	if pending, ok := h.app.Engine.PendingAdd(); ok {
		payload["pending_add"] = pending
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *handler) price(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	quote, err := h.app.PriceCache.Cached(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *handler) parties(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.app.Engine.AuthorizedParties())
}

func (h *handler) partyByAddress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	addr := party.Normalize(strings.TrimPrefix(r.URL.Path, "/parties/"))
	if addr.IsZero() {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":    addr,
		"authorized": h.app.Engine.IsAuthorized(addr),
	})
}

func (h *handler) transactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if buyer := party.Normalize(r.URL.Query().Get("buyer")); !buyer.IsZero() {
		// Buyer history renders from the mirror; the engine only indexes by
		// record number.
		txs, err := h.app.Transactions.ListTransactionsByBuyer(r.Context(), buyer)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, txs)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"count": h.app.Engine.TransactionCount()})
}

func (h *handler) transactionResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/transactions/")
	if rest == "count" {
		writeJSON(w, http.StatusOK, map[string]uint64{"count": h.app.Engine.TransactionCount()})
		return
	}
	index, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid transaction index %q", rest))
		return
	}
	tx, ok := h.app.Engine.TransactionByIndex(index)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("transaction %d not found", index))
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *handler) refundByAddress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	addr := party.Normalize(strings.TrimPrefix(r.URL.Path, "/refunds/"))
	if addr.IsZero() {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address":    addr.String(),
		"amount_wei": h.app.Engine.RefundOf(addr).Dec(),
	})
}

func (h *handler) commit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Caller string `json:"caller"`
		Hash   string `json:"hash"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	hash, err := parseHash(payload.Hash)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Engine.Commit(party.Normalize(payload.Caller), hash); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) reveal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Caller   string `json:"caller"`
		Units    uint64 `json:"units"`
		Nonce    uint64 `json:"nonce"`
		ValueWei string `json:"value_wei"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	value, err := parseWei(payload.ValueWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	receipt, err := h.app.Engine.Reveal(r.Context(), party.Normalize(payload.Caller), payload.Units, payload.Nonce, value)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transaction":  receipt.Transaction,
		"paid_wei":     receipt.PaidWei.Dec(),
		"required_wei": receipt.RequiredWei.Dec(),
		"refund_wei":   receipt.RefundWei.Dec(),
	})
}

func (h *handler) withdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := h.app.Engine.Withdraw(r.Context(), party.Normalize(payload.Caller))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amount_wei": amount.Dec()})
}

// admin routes are owner operations; the API key stands in for the owner's
// signature and the engine still enforces the owner check on the address.
func (h *handler) admin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if key := h.app.Config.AdminAPIKey; key == "" || r.Header.Get("X-Api-Key") != key {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("missing or invalid api key"))
		return
	}

	owner := h.app.Engine.Owner()
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/admin"), "/")

	var err error
	switch action {
	case "authorize", "unauthorize":
		var payload struct {
			Party string `json:"party"`
		}
		if decodeErr := decodeJSON(r.Body, &payload); decodeErr != nil {
			writeError(w, http.StatusBadRequest, decodeErr)
			return
		}
		if action == "authorize" {
			err = h.app.Engine.Authorize(owner, party.Normalize(payload.Party))
		} else {
			err = h.app.Engine.Unauthorize(owner, party.Normalize(payload.Party))
		}
	case "supply/request", "supply/confirm":
		var payload struct {
			Units uint64 `json:"units"`
		}
		if decodeErr := decodeJSON(r.Body, &payload); decodeErr != nil {
			writeError(w, http.StatusBadRequest, decodeErr)
			return
		}
		if action == "supply/request" {
			err = h.app.Engine.RequestAdd(owner, payload.Units)
		} else {
			err = h.app.Engine.ConfirmAdd(owner, payload.Units)
		}
	case "pause":
		err = h.app.Engine.Pause(owner)
	case "unpause":
		err = h.app.Engine.Unpause(owner)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Helpers ---------------------------------------------------------------------

func decodeJSON(body io.Reader, target any) error {
	dec := json.NewDecoder(io.LimitReader(body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func parseHash(raw string) ([32]byte, error) {
	var hash [32]byte
	cleaned := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(cleaned)
	if err != nil || len(decoded) != 32 {
		return hash, fmt.Errorf("hash must be 32 hex-encoded bytes")
	}
	copy(hash[:], decoded)
	return hash, nil
}

func parseWei(raw string) (*uint256.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uint256.NewInt(0), nil
	}
	value, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid value_wei %q: %w", raw, err)
	}
	return value, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses and a
// machine-readable kind so clients can branch without parsing messages.
func writeEngineError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	writeJSON(w, status, map[string]string{"error": err.Error(), "kind": kind})
}
