package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/banksys/banking-backend/internal/errs"
)

// errorResponse is the uniform error payload. Messages are user-safe;
// internal identifiers never leak.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var status int
	var msg string

	switch {
	case errors.Is(err, errs.ErrInvalidArgument):
		status, msg = http.StatusBadRequest, "invalid request"
	case errors.Is(err, errs.ErrUnauthenticated):
		status, msg = http.StatusUnauthorized, "authentication required"
	case errors.Is(err, errs.ErrPermissionDenied):
		status, msg = http.StatusForbidden, "you can only operate on your own accounts"
	case errors.Is(err, errs.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, errs.ErrInsufficientFunds):
		status, msg = http.StatusUnprocessableEntity, "insufficient funds"
	case errors.Is(err, errs.ErrUnavailable):
		status, msg = http.StatusServiceUnavailable, "service temporarily unavailable"
	default:
		status, msg = http.StatusInternalServerError, "internal error"
		log.Printf("server: internal error: %v", err)
	}

	writeJSON(w, status, errorResponse{Error: msg})
}
