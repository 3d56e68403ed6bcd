package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/logger"
)

var log logger.Logger = logger.New("api")

// SetLogger replaces the handlers' logger.
func SetLogger(l logger.Logger) {
	if l == nil {
		l = logger.NopLogger{}
	}
	log = l
}

type errorResponse struct {
	Error string           `json:"error"`
	Kind  domain.ErrorKind `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("encode failed: method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}

// writeDomainError maps error kinds to status codes. Errors without a kind are
// logged and reported as a bare 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusForKind(kind)
	if kind == "" {
		log.Errorf("%s %s failed: %v", r.Method, r.URL.Path, err)
		writeError(w, r, status, "internal server error")
		return
	}
	if status >= http.StatusInternalServerError {
		log.Errorf("%s %s failed: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, r, status, errorResponse{Error: err.Error(), Kind: kind})
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindPrecedenceViolation:
		return http.StatusUnprocessableEntity
	case domain.KindReoptimizationFailure:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

var errBadBody = errors.New("invalid json body")

// decodeJSON reads exactly one JSON object and rejects unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain only one JSON object")
	}
	return nil
}
