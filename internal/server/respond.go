package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"billing/internal/admin"
	"billing/internal/logger"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// MessageResponse carries the confirmation message of a write operation.
type MessageResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	body := []byte("null")
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string, details any) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// writeInternal logs err with the request logger and hides it from the client.
func writeInternal(w http.ResponseWriter, r *http.Request, err error, msg string) {
	log := logger.WithContext(r.Context())
	log.Error().Err(err).Str("path", r.URL.Path).Msg(msg)
	writeError(w, http.StatusInternalServerError, admin.ErrInternal.Error(), nil)
}

// writeAdminError maps an admin error kind to its status code.
func writeAdminError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *admin.ValidationError
	switch kind := admin.Kind(err); {
	case errors.As(kind, &verr):
		writeError(w, http.StatusBadRequest, verr.Message, map[string]string{"field": verr.Field})
	case kind == admin.ErrUnauthenticated:
		writeError(w, http.StatusUnauthorized, kind.Error(), nil)
	case kind == admin.ErrPermissionDenied:
		writeError(w, http.StatusForbidden, kind.Error(), nil)
	case kind == admin.ErrNotFound:
		writeError(w, http.StatusNotFound, kind.Error(), nil)
	case kind == admin.ErrAlreadyExists:
		writeError(w, http.StatusConflict, kind.Error(), nil)
	default:
		writeInternal(w, r, err, "Admin request failed")
	}
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	const op = "decodeJSON"

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if dec.More() {
		return fmt.Errorf("%s: body must contain a single JSON object", op)
	}
	return nil
}
