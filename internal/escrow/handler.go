package escrow

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/inaiurai/settlement/internal/httpapi"
	"github.com/inaiurai/settlement/internal/models"
	"github.com/inaiurai/settlement/internal/validate"
)

// Request/response structs use snake_case JSON.

type CreateJobRequest struct {
	Worker   models.Address `json:"worker"`
	Price    int64          `json:"price"`
	Deadline time.Time      `json:"deadline"`
}

type SubmitResultRequest struct {
	Commitment models.Hash `json:"commitment"`
	Reference  string      `json:"reference"`
}

type RejectRequest struct {
	SlashAmount int64 `json:"slash_amount"`
}

type FeeRecipientRequest struct {
	Address models.Address `json:"address"`
}

type StatsResponse struct {
	TotalLocked  int64          `json:"total_locked"`
	JobCount     uint64         `json:"job_count"`
	FeeRecipient models.Address `json:"fee_recipient"`
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Handler serves /api/v1/jobs endpoints.
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

// CreateJob handles POST /api/v1/jobs.
// Auth -> Validate -> Lock price -> 201.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpapi.Caller(w, r)
	if !ok {
		return
	}
	var req CreateJobRequest
	if err := httpapi.Decode(r, h.validator, validate.CreateJob, &req); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	job, err := h.svc.CreateJob(r.Context(), caller, req.Worker, req.Price, req.Deadline)
	if err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, job)
}

// ListJobs handles GET /api/v1/jobs?master=&worker=&limit=.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ListFilter{Limit: defaultListLimit}
	var err error
	if raw := q.Get("master"); raw != "" {
		if f.Master, err = models.ParseAddress(raw); err != nil {
			httpapi.WriteError(w, r, h.log, err)
			return
		}
	}
	if raw := q.Get("worker"); raw != "" {
		if f.Worker, err = models.ParseAddress(raw); err != nil {
			httpapi.WriteError(w, r, h.log, err)
			return
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			httpapi.WriteMessage(w, r, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxListLimit))
			return
		}
		f.Limit = n
	}
	jobs := h.svc.List(r.Context(), f)
	if jobs == nil {
		jobs = []*models.Job{}
	}
	httpapi.WriteJSON(w, http.StatusOK, jobs)
}

// GetJob handles GET /api/v1/jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	job, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, job)
}

// Accept handles POST /api/v1/jobs/{id}/accept.
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(caller models.Address, id uint64) error {
		return h.svc.AcceptJob(r.Context(), caller, id)
	})
}

// Submit handles POST /api/v1/jobs/{id}/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitResultRequest
	if err := httpapi.Decode(r, h.validator, validate.SubmitResult, &req); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	h.transition(w, r, func(caller models.Address, id uint64) error {
		return h.svc.SubmitResult(r.Context(), caller, id, req.Commitment, req.Reference)
	})
}

// Approve handles POST /api/v1/jobs/{id}/approve.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(caller models.Address, id uint64) error {
		return h.svc.ApproveAndRelease(r.Context(), caller, id)
	})
}

// Reject handles POST /api/v1/jobs/{id}/reject. The body is optional.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if r.ContentLength != 0 {
		if err := httpapi.Decode(r, h.validator, validate.RejectJob, &req); err != nil {
			httpapi.WriteError(w, r, h.log, err)
			return
		}
	}
	h.transition(w, r, func(caller models.Address, id uint64) error {
		return h.svc.RejectAndSlash(r.Context(), caller, id, req.SlashAmount)
	})
}

// Cancel handles POST /api/v1/jobs/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(caller models.Address, id uint64) error {
		return h.svc.CancelJob(r.Context(), caller, id)
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(caller models.Address, id uint64) error) {
	caller, ok := httpapi.Caller(w, r)
	if !ok {
		return
	}
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	if err := fn(caller, id); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	job, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, job)
}

// SetFeeRecipient handles POST /api/v1/admin/fee-recipient.
func (h *Handler) SetFeeRecipient(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpapi.Caller(w, r)
	if !ok {
		return
	}
	var req FeeRecipientRequest
	if err := httpapi.Decode(r, h.validator, validate.Address, &req); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	if err := h.svc.SetFeeRecipient(r.Context(), caller, req.Address); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	h.log.Info("fee recipient changed", "recipient", req.Address)
	h.Stats(w, r)
}

// Stats handles GET /api/v1/escrow.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	httpapi.WriteJSON(w, http.StatusOK, StatsResponse{
		TotalLocked:  h.svc.TotalLocked(ctx),
		JobCount:     h.svc.JobCount(ctx),
		FeeRecipient: h.svc.FeeRecipient(ctx),
	})
}

func jobID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		httpapi.WriteMessage(w, r, http.StatusBadRequest, "invalid job id")
		return 0, false
	}
	return id, true
}
