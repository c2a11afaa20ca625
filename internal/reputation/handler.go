package reputation

import (
	"log/slog"
	"net/http"

	"github.com/inaiurai/settlement/internal/httpapi"
	"github.com/inaiurai/settlement/internal/models"
)

type ReputationResponse struct {
	models.Reputation
	TrustScore int64 `json:"trust_score"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// Get handles GET /api/v1/reputation/{address}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	addr, ok := httpapi.PathAddress(w, r, "address")
	if !ok {
		return
	}
	rec := h.svc.Get(r.Context(), addr)
	httpapi.WriteJSON(w, http.StatusOK, ReputationResponse{Reputation: rec, TrustScore: TrustScore(rec)})
}
