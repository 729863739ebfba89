// Package httputil holds the JSON response helpers shared by every handler.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "taskboard/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies decoded by DecodeAndPrepare.
const maxBodyBytes = 1 << 20

// ErrorResponse is the envelope written for every failed request.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// MessageResponse is written by endpoints that have nothing to return but a note.
type MessageResponse struct {
	Message string `json:"message"`
}

// Validatable is implemented by request bodies that normalize and validate
// themselves after decoding.
type Validatable interface {
	Validate() error
}

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes a {"message": ...} body.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, MessageResponse{Message: message})
}

// WriteError maps err to a status code and error envelope. Errors without a
// domain code are reported as internal errors, and internal errors never leak
// their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeInternal
	description := ""
	if de, ok := dErrors.As(err); ok {
		code = de.Code
		description = de.Message
	}
	if code == dErrors.CodeInternal {
		description = ""
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), ErrorResponse{
		Error:            string(envelopeCode(code)),
		ErrorDescription: description,
	})
}

// envelopeCode reports model invariant failures as validation errors; both
// answer 422.
func envelopeCode(code dErrors.Code) dErrors.Code {
	if code == dErrors.CodeInvariantViolation {
		return dErrors.CodeValidation
	}
	return code
}

// DecodeAndPrepare decodes the JSON body into a T and runs its Validate method.
// On failure it writes the error response and returns false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			err = dErrors.New(dErrors.CodeBadRequest, "request body is required")
		} else {
			err = dErrors.New(dErrors.CodeBadRequest, "invalid request body")
		}
		logger.WarnContext(ctx, "failed to decode request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}

	if err := PT(&req).Validate(); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
