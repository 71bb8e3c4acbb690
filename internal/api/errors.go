package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/taskmaster-hq/taskmaster-api/internal/api/shared"
	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
	"github.com/taskmaster-hq/taskmaster-api/internal/service"
	"github.com/taskmaster-hq/taskmaster-api/internal/service/auth"
	"github.com/taskmaster-hq/taskmaster-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var validationErrs validator.ValidationErrors

	switch {
	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, auth.ErrMissingIdentity),
		errors.Is(err, shared.ErrEmptyBody),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest

	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, service.ErrNotOwned),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, auth.ErrIdentityMismatch):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrConcurrentModification):
		return http.StatusConflict

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var fieldErr *domain.ValidationError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &validationErrs):
		return SanitizeValidationError(err)

	case errors.As(err, &fieldErr):
		if fieldErr.Field == "" {
			return "Invalid request: " + fieldErr.Message
		}
		return fmt.Sprintf("Invalid %s: %s", fieldErr.Field, fieldErr.Message)

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid task ID"

	case errors.Is(err, domain.ErrInvalidEmail):
		return "Invalid email: invalid email format"

	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"

	case errors.Is(err, auth.ErrMissingIdentity):
		return "Email is required"

	case errors.Is(err, auth.ErrMissingToken):
		return "Authorization header required"

	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"

	case errors.Is(err, auth.ErrIdentityMismatch):
		return "Email does not match the authenticated user"

	case errors.Is(err, service.ErrNotOwned),
		errors.Is(err, domain.ErrUnauthorized):
		return "Unauthorized to modify this task"

	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"

	case errors.Is(err, store.ErrNotFound):
		return "Task not found"

	case errors.Is(err, service.ErrConcurrentModification):
		return "Task was modified concurrently, please retry"

	case service.IsRetryable(err):
		return "Service temporarily unavailable, please retry"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and safe message for err. A non-empty
// message overrides the safe message for client errors only; 5xx responses
// always use the generic text.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)

	userMessage := GetSafeErrorMessage(err)
	if message != "" && status < http.StatusInternalServerError {
		userMessage = message
	}

	var opts []shared.ResponseOption
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, userMessage, err, opts...)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		fe := validationErrs[0]
		return fmt.Sprintf("Invalid %s: %s", jsonFieldName(fe.Field()), getValidationTagMessage(fe.Tag()))
	}

	// Example format: "Key: 'CreateTaskRequest.Email' Error:Field validation for 'Email' failed on the 'required' tag"
	errMsg := err.Error()
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 5 {
				return fmt.Sprintf("Invalid %s: %s", jsonFieldName(fieldParts[1]), getValidationTagMessage(fieldParts[3]))
			}
			if len(fieldParts) >= 3 {
				return fmt.Sprintf("Invalid %s", jsonFieldName(fieldParts[1]))
			}
		}
	}

	return "Validation error"
}

func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "min", "gt", "gte":
		return "too small"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
