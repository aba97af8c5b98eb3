package transport

import (
	"errors"
	"net/http"

	"storefront/internal/errs"
	"storefront/internal/middleware"

	"go.uber.org/zap"
)

// writeServiceError maps a service error onto a status code and an error body.
// Unclassified errors are logged and reported as "failed to <action>".
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	var validationErr *errs.ValidationError
	switch {
	case errors.As(err, &validationErr):
		var details []middleware.ValidationError
		if validationErr.Field != "" {
			details = []middleware.ValidationError{{Field: validationErr.Field, Message: validationErr.Message}}
		}
		middleware.RespondWithValidationErrors(w, validationErr.Message, details)
	case errors.Is(err, errs.ErrValidation):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrInvalidCredentials):
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, errs.ErrTokenExpired):
		middleware.RespondWithError(w, http.StatusUnauthorized, "token expired")
	case errors.Is(err, errs.ErrUnauthorized):
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, errs.ErrNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrDuplicate), errors.Is(err, errs.ErrConflict):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrImageTooLarge):
		middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, errs.ErrImageTooLarge.Error())
	case errors.Is(err, errBodyTooLarge):
		middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, errBodyTooLarge.Error())
	case errors.Is(err, errs.ErrImageUploadFailed):
		logger.Error("Image upload failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadGateway, errs.ErrImageUploadFailed.Error())
	default:
		logger.Error("Request failed", zap.String("action", action), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to "+action)
	}
}
