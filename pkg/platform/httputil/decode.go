package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	dErrors "mutualpool/pkg/domain-errors"
)

// DecodeJSON reads exactly one JSON object from the body into a T. Unknown
// fields, trailing data and bodies past the BodyLimit cap are rejected.
// On failure the error response is already written.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(&req)
	if err == nil && dec.More() {
		err = errTrailingData
	}
	if err != nil {
		logger.WarnContext(ctx, "rejected request body",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, decodeMessage(err)))
		return nil, false
	}
	return &req, true
}

var errTrailingData = errors.New("trailing data after JSON object")

func decodeMessage(err error) string {
	var tooLarge *http.MaxBytesError
	var syntax *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return "request body is empty"
	case errors.As(err, &tooLarge):
		return fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return fmt.Sprintf("%s has the wrong type", typeErr.Field)
	case errors.As(err, &syntax), errors.Is(err, io.ErrUnexpectedEOF):
		return "request body is not valid JSON"
	case errors.Is(err, errTrailingData):
		return "request body must contain a single JSON object"
	default:
		return "invalid request body"
	}
}

// Validatable is implemented by request types that support validation.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request types that support normalization.
type Normalizable interface {
	Normalize()
}

// PrepareRequest runs Normalize then Validate when req implements them.
func PrepareRequest(req any) error {
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := req.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// DecodeAndPrepare decodes then prepares. A non-domain validation error is
// reported as CodeValidation.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger, ctx, requestID)
	if !ok {
		return nil, false
	}
	if err := PrepareRequest(req); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestID,
		)
		if !errors.As(err, new(*dErrors.Error)) {
			err = dErrors.New(dErrors.CodeValidation, err.Error())
		}
		WriteError(w, err)
		return nil, false
	}
	return req, true
}
