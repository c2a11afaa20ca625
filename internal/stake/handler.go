package stake

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/inaiurai/settlement/internal/httpapi"
	"github.com/inaiurai/settlement/internal/models"
	"github.com/inaiurai/settlement/internal/validate"
)

// Request/response structs use snake_case JSON.

type RegisterRequest struct {
	Metadata     string   `json:"metadata"`
	Capabilities []string `json:"capabilities"`
	Endpoint     string   `json:"endpoint"`
	Stake        int64    `json:"stake"`
}

type UpdateProfileRequest struct {
	Metadata     string   `json:"metadata"`
	Capabilities []string `json:"capabilities"`
	Endpoint     string   `json:"endpoint"`
}

type AmountRequest struct {
	Amount int64 `json:"amount"`
}

type SweepRequest struct {
	Address models.Address `json:"address"`
}

type ForfeitedResponse struct {
	Forfeited int64 `json:"forfeited"`
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

// Register handles POST /api/v1/identities.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpapi.Caller(w, r)
	if !ok {
		return
	}
	var req RegisterRequest
	if err := httpapi.Decode(r, h.validator, validate.Register, &req); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	id, err := h.svc.Register(r.Context(), caller, Profile{
		Metadata:     req.Metadata,
		Capabilities: req.Capabilities,
		Endpoint:     req.Endpoint,
	}, req.Stake)
	if err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, id)
}

// List handles GET /api/v1/identities?capability=&active=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ListFilter{Capability: q.Get("capability"), ActiveOnly: q.Get("active") != "false", Limit: 100}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			httpapi.WriteMessage(w, r, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		f.Limit = n
	}
	list := h.svc.List(r.Context(), f)
	if list == nil {
		list = []*models.Identity{}
	}
	httpapi.WriteJSON(w, http.StatusOK, list)
}

// Get handles GET /api/v1/identities/{address}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	addr, ok := httpapi.PathAddress(w, r, "address")
	if !ok {
		return
	}
	id, err := h.svc.Get(r.Context(), addr)
	if err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, id)
}

// UpdateProfile handles PATCH /api/v1/identities/me.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpapi.Caller(w, r)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if err := httpapi.Decode(r, h.validator, validate.UpdateProfile, &req); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	id, err := h.svc.UpdateProfile(r.Context(), caller, Profile(req))
	if err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, id)
}

// Deposit handles POST /api/v1/identities/me/stake.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.amount(w, r, h.svc.DepositStake)
}

// Withdraw handles POST /api/v1/identities/me/withdraw.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.amount(w, r, h.svc.WithdrawStake)
}

func (h *Handler) amount(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, caller models.Address, amount int64) error) {
	caller, ok := httpapi.Caller(w, r)
	if !ok {
		return
	}
	var req AmountRequest
	if err := httpapi.Decode(r, h.validator, validate.Amount, &req); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	if err := fn(r.Context(), caller, req.Amount); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	h.writeSelf(w, r, caller)
}

// Deactivate handles POST /api/v1/identities/me/deactivate.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpapi.Caller(w, r)
	if !ok {
		return
	}
	if err := h.svc.Deactivate(r.Context(), caller); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	h.writeSelf(w, r, caller)
}

// Forfeited handles GET /api/v1/admin/forfeited.
func (h *Handler) Forfeited(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, ForfeitedResponse{Forfeited: h.svc.Forfeited(r.Context())})
}

// Sweep handles POST /api/v1/admin/forfeited/sweep.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpapi.Caller(w, r)
	if !ok {
		return
	}
	var req SweepRequest
	if err := httpapi.Decode(r, h.validator, validate.Address, &req); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	if err := h.svc.SweepForfeited(r.Context(), caller, req.Address); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	h.log.Info("forfeited stake swept", "to", req.Address)
	httpapi.WriteJSON(w, http.StatusOK, ForfeitedResponse{Forfeited: h.svc.Forfeited(r.Context())})
}

func (h *Handler) writeSelf(w http.ResponseWriter, r *http.Request, caller models.Address) {
	id, err := h.svc.Get(r.Context(), caller)
	if err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, id)
}
