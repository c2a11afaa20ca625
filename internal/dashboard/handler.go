// Package dashboard serves the signed-in participant's overview.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/inaiurai/settlement/internal/escrow"
	"github.com/inaiurai/settlement/internal/httpapi"
	"github.com/inaiurai/settlement/internal/models"
	"github.com/inaiurai/settlement/internal/reputation"
)

const maxJobs = 20

// Narrow views of the core, satisfied by the stake, ledger, reputation and escrow services.
type (
	Identities interface {
		Get(ctx context.Context, who models.Address) (*models.Identity, error)
	}
	Balances interface {
		Balance(ctx context.Context, addr models.Address) int64
	}
	Reputations interface {
		Get(ctx context.Context, who models.Address) models.Reputation
	}
	Jobs interface {
		List(ctx context.Context, f escrow.ListFilter) []*models.Job
	}
)

type Overview struct {
	Address      models.Address    `json:"address"`
	Identity     *models.Identity  `json:"identity"`
	Balance      int64             `json:"balance"`
	Reputation   models.Reputation `json:"reputation"`
	TrustScore   int64             `json:"trust_score"`
	HiredJobs    []*models.Job     `json:"hired_jobs"`
	AssignedJobs []*models.Job     `json:"assigned_jobs"`
}

type Handler struct {
	identities  Identities
	balances    Balances
	reputations Reputations
	jobs        Jobs
	log         *slog.Logger
}

func NewHandler(identities Identities, balances Balances, reputations Reputations, jobs Jobs, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		identities:  identities,
		balances:    balances,
		reputations: reputations,
		jobs:        jobs,
		log:         log,
	}
}

// GetMe handles GET /api/v1/me.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpapi.Caller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	ov := Overview{Address: caller}
	id, err := h.identities.Get(ctx, caller)
	switch {
	case err == nil:
		ov.Identity = id
	case errors.Is(err, models.ErrNotRegistered):
	default:
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	ov.Balance = h.balances.Balance(ctx, caller)
	ov.Reputation = h.reputations.Get(ctx, caller)
	ov.TrustScore = reputation.TrustScore(ov.Reputation)
	ov.HiredJobs = orEmpty(h.jobs.List(ctx, escrow.ListFilter{Master: caller, Limit: maxJobs}))
	ov.AssignedJobs = orEmpty(h.jobs.List(ctx, escrow.ListFilter{Worker: caller, Limit: maxJobs}))

	httpapi.WriteJSON(w, http.StatusOK, ov)
}

func orEmpty(jobs []*models.Job) []*models.Job {
	if jobs == nil {
		return []*models.Job{}
	}
	return jobs
}
