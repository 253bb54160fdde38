package http

import (
	"context"
	"errors"
	"net/http"

	"finca/internal/auth"
	"finca/internal/core"
	applog "finca/internal/log"
)

// retryAfterSeconds is advertised when the store is unreachable.
const retryAfterSeconds = "30"

// errorResponse maps a service error onto status, code and message. File
// errors are checked before validation because they arrive wrapped in a
// ValidationError for the "file" field.
func errorResponse(err error) *ResponseBuilder {
	var (
		denied *auth.DeniedError
		ve     *core.ValidationError
	)
	switch {
	case errors.As(err, &denied):
		return NewResponse().Status(http.StatusUnauthorized).JSON(ErrorBody{
			Error:     "sign_in_required",
			Message:   "Inicie sesión para continuar",
			SignInURL: denied.SignInURL,
		})
	case errors.Is(err, core.ErrUnsupportedFileType):
		return NewResponse().Status(http.StatusUnsupportedMediaType).JSON(ErrorBody{
			Error:   "unsupported_file_type",
			Message: "Solo se aceptan imágenes o PDF",
			Field:   "file",
		})
	case errors.Is(err, core.ErrFileTooLarge):
		return NewResponse().Status(http.StatusRequestEntityTooLarge).JSON(ErrorBody{
			Error:   "file_too_large",
			Message: "El archivo supera los 10 MB",
			Field:   "file",
		})
	case errors.As(err, &ve):
		return NewResponse().Status(http.StatusUnprocessableEntity).JSON(ErrorBody{
			Error:   "validation_failed",
			Message: validationMessage(ve),
			Field:   ve.Field,
		})
	case errors.Is(err, core.ErrNotFound):
		return ErrorResponse(http.StatusNotFound, "not_found", "Registro no encontrado")
	case errors.Is(err, core.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse(http.StatusServiceUnavailable, "store_unavailable", "Servicio no disponible, intente más tarde").
			Header("Retry-After", retryAfterSeconds)
	default:
		return ErrorResponse(http.StatusInternalServerError, "internal_error", "Error interno")
	}
}

func validationMessage(ve *core.ValidationError) string {
	switch {
	case errors.Is(ve, core.ErrMissingField):
		return "Falta el campo " + ve.Field
	case errors.Is(ve, core.ErrInvalidAmount):
		return "El monto debe ser un número mayor o igual a cero"
	case errors.Is(ve, core.ErrInvalidContributor):
		return "Aportante desconocido"
	default:
		return ve.Error()
	}
}

// writeError logs err at the level its class deserves and writes the response.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := errorResponse(err)
	logger := applog.FromContext(r.Context())
	fields := []any{
		applog.FieldOperation, op,
		applog.FieldError, err,
		applog.FieldErrorType, errorType(resp.statusCode),
		applog.FieldStatusCode, resp.statusCode,
	}
	if resp.statusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields...)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", fields...)
	}
	resp.Write(w)
}

func errorType(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return applog.ErrorTypeAuth
	case http.StatusNotFound:
		return applog.ErrorTypeNotFound
	case http.StatusServiceUnavailable:
		return applog.ErrorTypeDatabase
	case http.StatusInternalServerError:
		return applog.ErrorTypeInternal
	default:
		return applog.ErrorTypeValidation
	}
}
