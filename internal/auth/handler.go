package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/inaiurai/settlement/internal/httpapi"
	"github.com/inaiurai/settlement/internal/models"
	"github.com/inaiurai/settlement/internal/validate"
)

type CredentialsRequest struct {
	Address  models.Address `json:"address"`
	Password string         `json:"password"`
}

type LoginResponse struct {
	Token     string         `json:"token"`
	Address   models.Address `json:"address"`
	ExpiresIn int64          `json:"expires_in"`
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

// CreateAccount handles POST /api/v1/auth/accounts.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := httpapi.Decode(r, h.validator, validate.Credentials, &req); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	acc, err := h.svc.CreateAccount(r.Context(), req.Password)
	if err != nil {
		h.log.Error("create account failed", "error", err)
		httpapi.WriteMessage(w, r, http.StatusInternalServerError, "account creation failed")
		return
	}
	h.log.Info("account created", "address", acc.Address)
	httpapi.WriteJSON(w, http.StatusCreated, acc)
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := httpapi.Decode(r, h.validator, validate.Credentials, &req); err != nil {
		httpapi.WriteError(w, r, h.log, err)
		return
	}
	if req.Address.IsZero() {
		httpapi.WriteMessage(w, r, http.StatusBadRequest, "missing address")
		return
	}
	token, err := h.svc.Login(r.Context(), req.Address, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httpapi.WriteMessage(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.log.Error("login failed", "error", err)
		httpapi.WriteMessage(w, r, http.StatusInternalServerError, "login failed")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, LoginResponse{Token: token, Address: req.Address, ExpiresIn: int64(tokenTTL.Seconds())})
}
