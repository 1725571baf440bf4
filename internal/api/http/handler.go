package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"parkwise-booking-core/internal/api/wire"
	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/service"

	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// BookingHandler serves the REST surface over the same services as the gRPC handler.
type BookingHandler struct {
	reservationSvc  service.ReservationService
	paymentSvc      service.PaymentService
	availabilitySvc service.AvailabilityService
	now             func() time.Time
}

func NewBookingHandler(reservationSvc service.ReservationService, paymentSvc service.PaymentService, availabilitySvc service.AvailabilityService) *BookingHandler {
	return &BookingHandler{
		reservationSvc:  reservationSvc,
		paymentSvc:      paymentSvc,
		availabilitySvc: availabilitySvc,
		now:             time.Now,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("body", fmt.Sprintf("malformed JSON: %v", err))
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

// actorOf is only called on authenticated routes, where the middleware guarantees an actor.
func actorOf(r *http.Request) domain.Actor {
	actor, _ := ActorFromContext(r.Context())
	return actor
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req wire.CreateBookingRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := wire.ToCreateBookingRequest(&req, actorOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.reservationSvc.CreateBooking(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, wire.MapBookingResult(res))
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	actor := actorOf(r)
	booking, err := h.reservationSvc.GetBooking(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := h.paymentSvc.GetPaymentSummary(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &wire.BookingResponse{Booking: wire.MapDomainBooking(booking), Summary: wire.MapDomainSummary(summary)})
}

func (h *BookingHandler) SetBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req wire.SetBookingStatusRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	next, err := domain.ParseBookingStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	booking, err := h.reservationSvc.SetBookingStatus(r.Context(), id, next, actorOf(r), req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &wire.BookingResponse{Booking: wire.MapDomainBooking(booking)})
}

func (h *BookingHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req wire.RecordPaymentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.BookingID = id
	in, err := wire.ToRecordPaymentRequest(&req, actorOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.paymentSvc.RecordPayment(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, wire.MapPaymentResult(res))
}

func (h *BookingHandler) RecordTopUpPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req wire.RecordTopUpPaymentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.BookingID = id
	in, err := wire.ToTopUpRequest(&req, actorOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := h.paymentSvc.RecordTopUpPayment(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &wire.SummaryResponse{Summary: wire.MapDomainSummary(summary)})
}

func (h *BookingHandler) GetPaymentSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := h.paymentSvc.GetPaymentSummary(r.Context(), actorOf(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &wire.SummaryResponse{Summary: wire.MapDomainSummary(summary)})
}

func (h *BookingHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := h.paymentSvc.ListPayments(r.Context(), actorOf(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &wire.ListPaymentsResponse{Payments: wire.MapDomainPayments(events)})
}

func (h *BookingHandler) ListStatusHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.reservationSvc.ListStatusHistory(r.Context(), actorOf(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &wire.ListStatusHistoryResponse{Entries: wire.MapDomainHistory(entries)})
}

func (h *BookingHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req wire.CheckAvailabilityRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ok, err := h.availabilitySvc.CheckAvailability(r.Context(), req.PropertyID, req.SlotIDs, req.StartTime, req.EndTime)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &wire.CheckAvailabilityResponse{Available: ok})
}

// GetActiveOccupancy accepts an optional RFC 3339 as_of query parameter; it defaults to now.
func (h *BookingHandler) GetActiveOccupancy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	asOf := h.now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		if asOf, err = time.Parse(time.RFC3339, raw); err != nil {
			writeError(w, r, domain.NewValidationError("as_of", "must be an RFC 3339 timestamp"))
			return
		}
	}
	slots, err := h.availabilitySvc.ActiveOccupancy(r.Context(), id, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &wire.GetActiveOccupancyResponse{PropertyID: id, AsOf: asOf.UTC(), SlotIDs: slots})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
