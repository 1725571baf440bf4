package http

import (
	"net/http"

	"parkwise-booking-core/internal/security"

	"github.com/gorilla/mux"
)

// methodName names a route after the equivalent gRPC method, which keys the access policy.
func methodName(method string) string {
	return "/parkwise.reservation.v1.ReservationService/" + method
}

// NewRouter builds the /api/v1 REST routes plus /healthz.
func NewRouter(h *BookingHandler, tm security.TokenManager, limiter *RateLimiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware)
	router.HandleFunc("/healthz", Healthz).Methods(http.MethodGet).Name("healthz")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(AuthMiddleware(tm))
	if limiter != nil {
		api.Use(limiter.Middleware)
	}

	api.HandleFunc("/bookings", h.CreateBooking).Methods(http.MethodPost).Name(methodName("CreateBooking"))
	api.HandleFunc("/bookings/{id:[0-9]+}", h.GetBooking).Methods(http.MethodGet).Name(methodName("GetBooking"))
	api.HandleFunc("/bookings/{id:[0-9]+}/status", h.SetBookingStatus).Methods(http.MethodPost).Name(methodName("SetBookingStatus"))
	api.HandleFunc("/bookings/{id:[0-9]+}/payments", h.RecordPayment).Methods(http.MethodPost).Name(methodName("RecordPayment"))
	api.HandleFunc("/bookings/{id:[0-9]+}/payments", h.ListPayments).Methods(http.MethodGet).Name(methodName("ListPayments"))
	api.HandleFunc("/bookings/{id:[0-9]+}/topup", h.RecordTopUpPayment).Methods(http.MethodPost).Name(methodName("RecordTopUpPayment"))
	api.HandleFunc("/bookings/{id:[0-9]+}/summary", h.GetPaymentSummary).Methods(http.MethodGet).Name(methodName("GetPaymentSummary"))
	api.HandleFunc("/bookings/{id:[0-9]+}/history", h.ListStatusHistory).Methods(http.MethodGet).Name(methodName("ListStatusHistory"))
	api.HandleFunc("/availability", h.CheckAvailability).Methods(http.MethodPost).Name(methodName("CheckAvailability"))
	api.HandleFunc("/properties/{id:[0-9]+}/occupancy", h.GetActiveOccupancy).Methods(http.MethodGet).Name(methodName("GetActiveOccupancy"))

	return router
}
