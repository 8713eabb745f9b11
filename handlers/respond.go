package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"mini-todo/auth"
)

const invalidIDMessage = "Invalid id"

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func invalidID(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	w.Write([]byte(invalidIDMessage))
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, struct{}{})
}

func badRequest(w http.ResponseWriter, field, message string) {
	body := map[string]string{"error": message}
	if field != "" {
		body["field"] = field
	}
	writeJSON(w, http.StatusBadRequest, body)
}

// writeError maps service errors onto a response. Anything it does not
// recognise is logged and reported as a 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ve *auth.ValidationError
	switch {
	case errors.As(err, &ve):
		badRequest(w, ve.Field, ve.Message)
	case errors.Is(err, auth.ErrInvalidCredentials):
		w.WriteHeader(http.StatusUnauthorized)
	default:
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &auth.ValidationError{Message: "request body must be valid JSON"}
	}
	return nil
}

// decodeOptionalJSON treats an empty body as {}.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &auth.ValidationError{Message: "request body must be valid JSON"}
	}
	return nil
}
