package authz

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/inaiurai/settlement/internal/httpapi"
	"github.com/inaiurai/settlement/internal/models"
	"github.com/inaiurai/settlement/internal/validate"
)

type AuthorizationRequest struct {
	Scope   string         `json:"scope"`
	Address models.Address `json:"address"`
}

type AuthorizationResponse struct {
	Scope   string           `json:"scope"`
	Granted []models.Address `json:"granted"`
}

// Handler serves /api/v1/admin/authorizations for a fixed set of scopes.
type Handler struct {
	sets      map[string]*Set
	validator *validate.Validator
	log       *slog.Logger
}

func NewHandler(validator *validate.Validator, log *slog.Logger, sets ...*Set) *Handler {
	if log == nil {
		log = slog.Default()
	}
	m := make(map[string]*Set, len(sets))
	for _, s := range sets {
		m[s.Scope()] = s
	}
	return &Handler{sets: m, validator: validator, log: log}
}

// Grant handles POST /api/v1/admin/authorizations.
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, (*Set).Grant)
}

// Revoke handles DELETE /api/v1/admin/authorizations.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, (*Set).Revoke)
}

type mutation = func(s *Set, ctx context.Context, caller, who models.Address) error

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, fn mutation) {
	caller, ok := httpapi.Caller(w, r)
	if !ok {
		return
	}
	var req AuthorizationRequest
	if err := httpapi.Decode(r, h.validator, validate.Authorization, &req); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	set, ok := h.sets[req.Scope]
	if !ok {
		httpapi.WriteMessage(w, r, http.StatusBadRequest, "unknown scope")
		return
	}
	if err := fn(set, r.Context(), caller, req.Address); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, AuthorizationResponse{Scope: set.Scope(), Granted: set.Granted(r.Context())})
}
