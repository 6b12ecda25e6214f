package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/terangapay/ledger-engine/internal/app/identity"
	"github.com/terangapay/ledger-engine/internal/app/ledgererr"
	"github.com/terangapay/ledger-engine/internal/app/storage"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v) //nolint:errcheck
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := ledgererr.Code(err)
	if errors.Is(err, identity.ErrUnauthenticated) {
		code = "UNAUTHENTICATED"
	}
	writeJSON(w, statusFor(err), errorBody{
		Error:     err.Error(),
		Code:      code,
		Retryable: ledgererr.Retryable(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ledgererr.ErrWalletNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledgererr.ErrInsufficientFunds),
		errors.Is(err, ledgererr.ErrEscrowInsufficient):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledgererr.ErrWalletBlocked):
		return http.StatusForbidden
	case errors.Is(err, ledgererr.ErrDuplicateContribution),
		errors.Is(err, ledgererr.ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, ledgererr.ErrLockTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, ledgererr.ErrInvalidAmount),
		errors.Is(err, ledgererr.ErrTierMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "INVALID_REQUEST"})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
