// Package httpapi holds the JSON helpers shared by the HTTP handlers.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/inaiurai/settlement/internal/middleware"
	"github.com/inaiurai/settlement/internal/models"
	"github.com/inaiurai/settlement/internal/validate"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes a plain error without a ledger code.
func WriteMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{
		Error:     msg,
		RequestID: middleware.RequestIDFromCtx(r.Context()),
	})
}

// WriteError maps err to its status and code. Unknown errors are logged and hidden.
func WriteError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	if errors.Is(err, validate.ErrValidation) {
		WriteMessage(w, r, http.StatusBadRequest, err.Error())
		return
	}
	code := models.ErrorCode(err)
	status := StatusFor(code)
	if status == http.StatusInternalServerError {
		if log == nil {
			log = slog.Default()
		}
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		WriteMessage(w, r, status, "internal error")
		return
	}
	WriteJSON(w, status, ErrorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: middleware.RequestIDFromCtx(r.Context()),
	})
}

// StatusFor returns the HTTP status for a ledger error code.
func StatusFor(code string) int {
	switch code {
	case "Unauthorized", "NotJobMaster", "NotJobWorker", "NotAuthorized":
		return http.StatusForbidden
	case "InvalidJobState", "CannotCancelJob", "FundsAlreadyReleased", "AlreadyRegistered", "DeadlinePassed":
		return http.StatusConflict
	case "InvalidPrice", "InvalidWorker", "CannotHireSelf", "InvalidDeadline",
		"InvalidOutputHash", "InvalidAmount", "InvalidAddress":
		return http.StatusBadRequest
	case "JobNotFound", "NotRegistered":
		return http.StatusNotFound
	case "MasterNotRegistered", "WorkerNotRegistered", "NotActive",
		"InsufficientStake", "MustMaintainMinimum":
		return http.StatusUnprocessableEntity
	case "InsufficientFunds":
		return http.StatusPaymentRequired
	case "TransferFailed":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Decode reads the request body, checks it against the named schema and
// decodes it into dst. Errors wrap validate.ErrValidation.
func Decode(r *http.Request, v *validate.Validator, schema string, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", validate.ErrValidation, err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: body too large", validate.ErrValidation)
	}
	if err := v.Validate(schema, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", validate.ErrValidation, err)
	}
	return nil
}

// Caller returns the authenticated identity or writes 401.
func Caller(w http.ResponseWriter, r *http.Request) (models.Address, bool) {
	caller, ok := middleware.CallerFromCtx(r.Context())
	if !ok {
		WriteMessage(w, r, http.StatusUnauthorized, "unauthorized")
	}
	return caller, ok
}

// PathAddress parses the {name} path value as an address or writes 400.
func PathAddress(w http.ResponseWriter, r *http.Request, name string) (models.Address, bool) {
	a, err := models.ParseAddress(r.PathValue(name))
	if err != nil {
		WriteError(w, r, nil, err)
		return models.Address{}, false
	}
	return a, true
}
