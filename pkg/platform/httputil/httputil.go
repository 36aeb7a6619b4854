// Package httputil renders JSON responses and decodes request bodies for handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "luwei/pkg/domain-errors"
)

// MaxBodyBytes caps request bodies accepted by DecodeJSON.
const MaxBodyBytes = 1 << 20

// ErrorResponse is the error body shared by every endpoint.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status and renders it. Errors without a domain code
// and internal errors are rendered without a description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	resp := ErrorResponse{Error: string(code)}
	var de *dErrors.Error
	if code != dErrors.CodeInternal && errors.As(err, &de) {
		resp.Description = de.Message
	}
	WriteJSON(w, status, resp)
}

// Validatable is implemented by request bodies that normalize and check themselves.
type Validatable[T any] interface {
	*T
	Validate() error
}

// DecodeJSON decodes a size-limited JSON body into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return dErrors.New(dErrors.CodeBadRequest, "request body too large")
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid json body")
	}
	return nil
}

// DecodeAndPrepare decodes the body into a T and runs its Validate method. On failure
// it writes the error response and returns false.
func DecodeAndPrepare[T any, PT Validatable[T]](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	if err := DecodeJSON(w, r, &req); err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, err)
		return nil, false
	}
	if err := PT(&req).Validate(); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
