package rpc

import (
	"errors"
	"net/http"

	"workledger/native/escrow"
	"workledger/native/jobs"
	"workledger/native/reputation"
)

// writeDomainError maps the native ledgers' stable error kinds onto the RPC
// error codes. Unknown errors surface as internal without leaking state.
func writeDomainError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, escrow.ErrNotFound), errors.Is(err, jobs.ErrJobNotFound), errors.Is(err, reputation.ErrRatingNotFound):
		writeError(w, http.StatusNotFound, id, codeNotFound, "not_found", err.Error())
	case errors.Is(err, escrow.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeForbidden, "unauthorized", err.Error())
	case errors.Is(err, escrow.ErrAlreadyReleased):
		writeError(w, http.StatusConflict, id, codeConflict, "already_released", err.Error())
	case errors.Is(err, escrow.ErrInvalidState), errors.Is(err, escrow.ErrAlreadyExists):
		writeError(w, http.StatusConflict, id, codeConflict, "invalid_state", err.Error())
	case errors.Is(err, escrow.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, id, codeInsufficientFunds, "insufficient_funds", err.Error())
	case errors.Is(err, escrow.ErrDisputeTimeout):
		writeError(w, http.StatusConflict, id, codeReleaseWindow, "release_window", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeInternal, "internal_error", err.Error())
	}
}
