package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inaiurai/settlement/internal/models"
	"github.com/inaiurai/settlement/internal/validate"
)

func TestWriteError_MapsLedgerErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{models.ErrNotJobMaster, http.StatusForbidden, "NotJobMaster"},
		{fmt.Errorf("approve: %w", models.ErrFundsAlreadyReleased), http.StatusConflict, "FundsAlreadyReleased"},
		{models.ErrInvalidOutputHash, http.StatusBadRequest, "InvalidOutputHash"},
		{models.ErrJobNotFound, http.StatusNotFound, "JobNotFound"},
		{models.ErrInsufficientStake, http.StatusUnprocessableEntity, "InsufficientStake"},
		{models.ErrInsufficientFunds, http.StatusPaymentRequired, "InsufficientFunds"},
		{models.ErrTransferFailed, http.StatusBadGateway, "TransferFailed"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, httptest.NewRequest(http.MethodPost, "/", nil), nil, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Code)
		})
	}
}

func TestWriteError_HidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestDecode(t *testing.T) {
	v, err := validate.NewValidator()
	require.NoError(t, err)

	var dst struct {
		Amount int64 `json:"amount"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount": 42}`))
	require.NoError(t, Decode(req, v, validate.Amount, &dst))
	assert.Equal(t, int64(42), dst.Amount)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount": "42"}`))
	err = Decode(req, v, validate.Amount, &dst)
	assert.ErrorIs(t, err, validate.ErrValidation)

	rec := httptest.NewRecorder()
	WriteError(rec, req, nil, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
