package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"parkwise-booking-core/internal/api/wire"
	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/logger"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{domain.ErrValidation, http.StatusBadRequest, "validation_error"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrSlotConflict, http.StatusConflict, "slot_conflict"},
	{domain.ErrPropertyInactive, http.StatusUnprocessableEntity, "property_inactive"},
	{domain.ErrSlotInactive, http.StatusUnprocessableEntity, "slot_inactive"},
	{domain.ErrBookingClosed, http.StatusConflict, "booking_closed"},
	{domain.ErrAmountDecreaseRejected, http.StatusConflict, "amount_decrease_rejected"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{domain.ErrPaymentDeclined, http.StatusPaymentRequired, "payment_declined"},
	{domain.ErrStorageConflict, http.StatusServiceUnavailable, "storage_conflict"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
	{context.Canceled, http.StatusServiceUnavailable, "cancelled"},
}

func mapError(err error) (int, wire.ErrorResponse) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, wire.ErrorResponse{Error: m.code, Message: err.Error()}
		}
	}
	return http.StatusInternalServerError, wire.ErrorResponse{Error: "internal", Message: "internal server error"}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapError(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "HTTP request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}

func writeStatus(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, wire.ErrorResponse{Error: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write response body", "error", err)
	}
}
