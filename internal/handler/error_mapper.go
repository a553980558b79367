package handler

import (
	"errors"

	"github.com/civicfix/api/internal/model"
	"github.com/civicfix/api/internal/service"
)

// MapServiceError converts a service error to a ProblemDetails response.
// This centralizes error handling logic for all handlers, ensuring consistent
// HTTP status codes and error messages across the API.
func MapServiceError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}

	// Aggregated field validation carries its own detail
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		fields := make([]model.FieldError, 0, len(validationErr.Violations))
		for _, v := range validationErr.Violations {
			fields = append(fields, model.FieldError{Field: v.Field, Message: v.Message})
		}
		return model.NewValidationError(fields)
	}

	switch {
	// ===== Authentication Errors → 401 =====
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrSessionNotFound):
		return model.NewUnauthorizedError(err.Error())

	// ===== Authorization Errors → 403 =====
	case errors.Is(err, service.ErrNotProblemOwner):
		return model.NewForbiddenError(err.Error())

	// ===== Not Found Errors → 404 =====
	case errors.Is(err, service.ErrUserNotFound):
		return model.NewNotFoundError("user")
	case errors.Is(err, service.ErrProblemNotFound):
		return model.NewNotFoundError("problem")
	case errors.Is(err, service.ErrNoProblems):
		return model.NewNotFoundError("problems")

	// ===== Conflict Errors → 409 =====
	case errors.Is(err, service.ErrUsernameExists),
		errors.Is(err, service.ErrEmailExists):
		return model.NewConflictError(err.Error())

	// ===== Validation Errors → 400 =====
	case errors.Is(err, service.ErrUsernameTooShort),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrPasswordTooShort):
		return model.NewValidationError([]model.FieldError{{Field: "credentials", Message: err.Error()}})
	case errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrCommentTextRequired),
		errors.Is(err, service.ErrSolutionTextRequired),
		errors.Is(err, service.ErrProblemIDsRequired):
		return model.NewBadRequestError(err.Error())

	// ===== Default → 500 =====
	default:
		return model.NewInternalError("")
	}
}
