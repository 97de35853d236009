package api

import (
	"encoding/json"
	"net/http"

	apperrors "visa-portal/internal/common/errors"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// readJSON decodes the request body into v; a malformed body is VALIDATION_FAILED.
func readJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperrors.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}
