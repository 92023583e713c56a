package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/estatedesk/lead-router/pkg/errors"
	"github.com/estatedesk/lead-router/pkg/logger"
)

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// WriteError renders err as an error envelope. Internal errors never expose their cause.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())
	payload := ErrorEnvelope{Error: APIError{Code: string(typed.Code()), Message: meta.Description}}
	if typed.Code() != pkgerrors.CodeInternal {
		if m := typed.Message(); m != "" {
			payload.Error.Message = m
		}
		payload.Error.Details = typed.Details()
	}

	status := StatusFor(typed.Code())
	if logg != nil && status >= http.StatusInternalServerError {
		logg.Error(logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "request.error", err)
	}
	writeJSON(w, status, payload)
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code pkgerrors.Code) int {
	switch code {
	case pkgerrors.CodeValidation:
		return http.StatusBadRequest
	case pkgerrors.CodeNotFound:
		return http.StatusNotFound
	case pkgerrors.CodeStateConflict:
		return http.StatusConflict
	case pkgerrors.CodeDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
