package handler

// RESPONSE HELPERS:
// These functions standardise how we read JSON requests and send JSON
// responses and errors:
//
//	decodeJSON(w, r, &req)
//	writeJSON(w, http.StatusOK, data)
//	writeError(w, r, err)
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//
//	{"error": "validation_error", "message": "Validation failed",
//	 "errors": ["Date must be in YYYY-MM-DD format"]}
//
// "errors" only appears for validation failures that list several
// violations.

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/sakif/soundscape/internal/apperror"
)

// maxBodyBytes caps request bodies. Every request in this API is small.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string   `json:"error"`            // machine-readable kind, e.g. "not_found"
	Message string   `json:"message"`          // human-readable description
	Errors  []string `json:"errors,omitempty"` // every violated constraint
}

// MessageResponse is the body of endpoints that only report an outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body is written; once
// Encode writes, later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// decodeJSON reads the request body into dst. A malformed body is answered
// with 400 and false is returned; the handler must stop.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeBody(w, r, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid JSON body",
		})
		return false
	}
	return true
}

// decodeBody is decodeJSON for handlers that phrase their own 400.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		// An empty body decodes as the zero value; validation reports what is missing.
		return nil
	}
	return err
}

// writeError maps a domain error to its HTTP status and sends it.
//
// ERROR MAPPING:
// This is the one place where domain errors become HTTP:
//
//	ErrValidation   → 400    ErrUnauthorized → 401
//	ErrForbidden    → 403    ErrNotFound     → 404
//	ErrConflict     → 409    ErrUpstream     → 502
//	ErrInternal     → 500    anything else   → 500, generic message
//
// errors.As walks the wrap chain, so a service may return
// fmt.Errorf("...: %w", apperror.NotFound(...)) and still get a 404.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status, errorType = http.StatusBadRequest, "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status, errorType = http.StatusUnauthorized, "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status, errorType = http.StatusForbidden, "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status, errorType = http.StatusNotFound, "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status, errorType = http.StatusConflict, "conflict"
		case errors.Is(err, apperror.ErrUpstream):
			status, errorType = http.StatusBadGateway, "upstream_error"
		}

		if status >= http.StatusInternalServerError {
			// Upstream causes stay in the log, never in the response.
			slog.ErrorContext(r.Context(), "request failed",
				slog.String("path", r.URL.Path),
				slog.String("error", errorChain(err)),
			)
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Errors:  appErr.Details,
		})
		return
	}

	// Unknown error: never expose internals (SQL, file paths) to clients.
	slog.ErrorContext(r.Context(), "unhandled error",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// errorChain renders err including the causes an AppError hides behind
// its user-facing message.
func errorChain(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Err != nil {
		return err.Error() + ": " + appErr.Err.Error()
	}
	return err.Error()
}
