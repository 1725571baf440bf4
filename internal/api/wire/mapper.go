package wire

import (
	"strings"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/service"

	"github.com/shopspring/decimal"
)

func MapDomainBooking(b *domain.Booking) *Booking {
	if b == nil {
		return nil
	}
	return &Booking{
		ID:          b.ID,
		CustomerRef: b.CustomerRef,
		PropertyID:  b.PropertyID,
		SlotIDs:     b.SlotIDs,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		Status:      string(b.Status),
		Category:    string(b.Category),
		CreatedBy:   b.CreatedBy,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func MapDomainSummary(s *domain.PaymentSummary) *PaymentSummary {
	if s == nil {
		return nil
	}
	return &PaymentSummary{
		BookingID:   s.BookingID,
		TotalAmount: s.TotalAmount.String(),
		OnlinePaid:  s.OnlinePaid.String(),
		CashPaid:    s.CashPaid.String(),
		BalanceDue:  s.BalanceDue.String(),
		Currency:    s.Currency,
	}
}

func MapDomainPayment(e *domain.PaymentEvent) *Payment {
	if e == nil {
		return nil
	}
	return &Payment{
		ID:         e.ID,
		BookingID:  e.BookingID,
		Amount:     e.Amount.String(),
		Method:     string(e.Method),
		Status:     string(e.Status),
		Reference:  e.Reference,
		RecordedBy: e.RecordedBy,
		CreatedAt:  e.CreatedAt,
	}
}

func MapDomainPayments(events []domain.PaymentEvent) []*Payment {
	out := make([]*Payment, 0, len(events))
	for i := range events {
		out = append(out, MapDomainPayment(&events[i]))
	}
	return out
}

func MapDomainHistory(entries []domain.StatusHistoryEntry) []*StatusHistoryEntry {
	out := make([]*StatusHistoryEntry, 0, len(entries))
	for _, e := range entries {
		entry := &StatusHistoryEntry{
			NewStatus: string(e.NewStatus),
			Actor:     e.Actor,
			Note:      e.Note,
			CreatedAt: e.CreatedAt,
		}
		if e.OldStatus != nil {
			entry.OldStatus = string(*e.OldStatus)
		}
		out = append(out, entry)
	}
	return out
}

func MapBookingResult(res *service.BookingResult) *BookingResponse {
	return &BookingResponse{
		Booking:  MapDomainBooking(res.Booking),
		Summary:  MapDomainSummary(res.Summary),
		Replayed: res.Replayed,
	}
}

func MapPaymentResult(res *service.PaymentResult) *PaymentResponse {
	return &PaymentResponse{
		Payment:  MapDomainPayment(res.Event),
		Summary:  MapDomainSummary(res.Summary),
		Replayed: res.Replayed,
	}
}

// ToCreateBookingRequest converts the payload into a service request for actor.
func ToCreateBookingRequest(req *CreateBookingRequest, actor domain.Actor) (service.CreateBookingRequest, error) {
	out := service.CreateBookingRequest{
		PropertyID:     req.PropertyID,
		SlotIDs:        req.SlotIDs,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		CustomerRef:    strings.TrimSpace(req.CustomerRef),
		IdempotencyKey: req.IdempotencyKey,
		Actor:          actor,
	}

	advance, err := optionalAmount("advance_amount", req.AdvanceAmount)
	if err != nil {
		return out, err
	}
	out.AdvanceAmount = advance

	if req.AdvanceMethod != "" {
		if out.AdvanceMethod, err = domain.ParsePaymentMethod(req.AdvanceMethod); err != nil {
			return out, err
		}
	}

	if req.TotalAmount != "" {
		total, err := domain.ParseAmount("total_amount", req.TotalAmount)
		if err != nil {
			return out, err
		}
		out.ExplicitTotal = &total
	}
	return out, nil
}

func ToRecordPaymentRequest(req *RecordPaymentRequest, actor domain.Actor) (service.RecordPaymentRequest, error) {
	out := service.RecordPaymentRequest{BookingID: req.BookingID, IdempotencyKey: req.IdempotencyKey, Actor: actor}
	amount, err := domain.ParseAmount("amount", req.Amount)
	if err != nil {
		return out, err
	}
	out.Amount = amount
	out.Method, err = parseMethod(req.Method)
	return out, err
}

func ToTopUpRequest(req *RecordTopUpPaymentRequest, actor domain.Actor) (service.TopUpRequest, error) {
	out := service.TopUpRequest{BookingID: req.BookingID, IdempotencyKey: req.IdempotencyKey, Actor: actor}
	amount, err := domain.ParseAmount("new_cumulative_amount", req.NewCumulativeAmount)
	if err != nil {
		return out, err
	}
	out.NewCumulativeAmount = amount
	out.Method, err = parseMethod(req.Method)
	return out, err
}

func parseMethod(raw string) (domain.PaymentMethod, error) {
	if raw == "" {
		return "", nil
	}
	return domain.ParsePaymentMethod(raw)
}

func optionalAmount(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return domain.ParseAmount(field, raw)
}
