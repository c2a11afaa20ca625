package ledger

import (
	"log/slog"
	"net/http"

	"github.com/inaiurai/settlement/internal/httpapi"
	"github.com/inaiurai/settlement/internal/models"
	"github.com/inaiurai/settlement/internal/validate"
)

type MintRequest struct {
	To     models.Address `json:"to"`
	Amount int64          `json:"amount"`
}

type BalanceResponse struct {
	Address models.Address `json:"address"`
	Balance int64          `json:"balance"`
}

type Handler struct {
	svc       Service
	validator *validate.Validator
	log       *slog.Logger
}

func NewHandler(svc Service, validator *validate.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, validator: validator, log: log}
}

// GetBalance handles GET /api/v1/balances/{address}.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := httpapi.PathAddress(w, r, "address")
	if !ok {
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, BalanceResponse{Address: addr, Balance: h.svc.Balance(r.Context(), addr)})
}

// Mint handles POST /api/v1/admin/mint.
func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpapi.Caller(w, r)
	if !ok {
		return
	}
	var req MintRequest
	if err := httpapi.Decode(r, h.validator, validate.Mint, &req); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	if err := h.svc.Mint(r.Context(), caller, req.To, req.Amount); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	h.log.Info("funds minted", "to", req.To, "amount", req.Amount)
	httpapi.WriteJSON(w, http.StatusOK, BalanceResponse{Address: req.To, Balance: h.svc.Balance(r.Context(), req.To)})
}
