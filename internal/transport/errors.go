package transport

import (
	"context"
	"errors"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/notify"

	"go.uber.org/zap"
)

// statusFor maps a domain error to the HTTP status it is reported with
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrOutOfStock):
		return http.StatusConflict, "out of stock"
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusConflict, "cart is empty"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, "quantity must be at least 1"
	case errors.Is(err, domain.ErrNotPurchasable):
		return http.StatusUnprocessableEntity, "product is not purchasable"
	case errors.Is(err, domain.ErrInvalidRecord):
		return http.StatusBadGateway, "catalog record is invalid"
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable, "could not save changes"
	case errors.Is(err, domain.ErrSourceUnavailable):
		return http.StatusServiceUnavailable, "catalog temporarily unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request cancelled"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// respondWithDomainError writes err as a structured error. Notifications
// raised while handling the request are attached to the details.
func respondWithDomainError(w http.ResponseWriter, logger *zap.Logger, err error, notifications []notify.Notification) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	}

	if domain.Retriable(err) {
		w.Header().Set("Retry-After", "1")
	}

	if len(notifications) == 0 {
		middleware.RespondWithError(w, status, message)
		return
	}
	middleware.RespondWithErrorDetails(w, status, message, map[string]interface{}{
		"notifications": notifications,
	})
}

func sessionFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID, ok := middleware.GetSessionID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "missing session")
	}
	return sessionID, ok
}
