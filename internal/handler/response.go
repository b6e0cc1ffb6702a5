package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so callers (cron
// scripts, the bot, curl) always get the same envelope:
//
//	{"error": "validation_error", "message": "start_date must be YYYY-MM-DD", "field": "start_date"}
//
// The sync engine never sees status codes. It returns apperror values and
// this file decides what they mean over HTTP.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/playtracker/internal/apperror"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable kind, e.g. "not_found"
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // offending input, for validation errors
}

// errorKinds maps sentinels to HTTP. Order matters: an error wrapping two
// sentinels gets the first match.
var errorKinds = []struct {
	target error
	status int
	kind   string
}{
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperror.ErrConflict, http.StatusConflict, "conflict"},
	// Clockify failed, not us.
	{apperror.ErrUpstream, http.StatusBadGateway, "upstream_error"},
}

// writeJSON sets the header, then the status, then encodes the body. Header
// changes after the first Write are silently dropped, hence the order.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// status already sent; nothing left but logging
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError translates an error into an ErrorResponse.
//
// errors.As finds the *AppError anywhere in the chain, so a syncer error like
//
//	fmt.Errorf("reconcile: entry %s: %w", id, apperror.ValidationFailed(...))
//
// still answers 400 with the AppError's own message. Anything that is not an
// AppError is a 500 with a generic message; raw errors can carry SQL or file
// paths and never reach the client.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	resp := ErrorResponse{Error: "internal_error", Message: appErr.Message, Field: appErr.Field}
	status := http.StatusInternalServerError
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			status, resp.Error = k.status, k.kind
			break
		}
	}
	writeJSON(w, status, resp)
}
