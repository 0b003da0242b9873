package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ETAnderson/grader/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps coded errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch errors.GetCode(err) {
	case errors.EInvalidInput:
		status, code = http.StatusBadRequest, "invalid_input"
	case errors.ERunNotFound:
		status, code = http.StatusNotFound, "not_found"
	case errors.EMisconfigured:
		status, code = http.StatusServiceUnavailable, "misconfigured"
	}
	writeJSON(w, status, map[string]any{
		"error":   code,
		"message": err.Error(),
	})
}
