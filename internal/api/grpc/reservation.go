package grpc

import (
	"context"
	"time"

	"parkwise-booking-core/internal/api/wire"
	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/logger"
	"parkwise-booking-core/internal/service"

	"google.golang.org/grpc"
)

const ReservationServiceName = "parkwise.reservation.v1.ReservationService"

// ReservationServer is the server API for ReservationService.
type ReservationServer interface {
	CreateBooking(context.Context, *wire.CreateBookingRequest) (*wire.BookingResponse, error)
	GetBooking(context.Context, *wire.GetBookingRequest) (*wire.BookingResponse, error)
	SetBookingStatus(context.Context, *wire.SetBookingStatusRequest) (*wire.BookingResponse, error)
	RecordPayment(context.Context, *wire.RecordPaymentRequest) (*wire.PaymentResponse, error)
	RecordTopUpPayment(context.Context, *wire.RecordTopUpPaymentRequest) (*wire.SummaryResponse, error)
	GetPaymentSummary(context.Context, *wire.GetBookingRequest) (*wire.SummaryResponse, error)
	ListPayments(context.Context, *wire.GetBookingRequest) (*wire.ListPaymentsResponse, error)
	ListStatusHistory(context.Context, *wire.GetBookingRequest) (*wire.ListStatusHistoryResponse, error)
	CheckAvailability(context.Context, *wire.CheckAvailabilityRequest) (*wire.CheckAvailabilityResponse, error)
	GetActiveOccupancy(context.Context, *wire.GetActiveOccupancyRequest) (*wire.GetActiveOccupancyResponse, error)
}

type ReservationHandler struct {
	reservationSvc  service.ReservationService
	paymentSvc      service.PaymentService
	availabilitySvc service.AvailabilityService
	now             func() time.Time
}

func NewReservationHandler(reservationSvc service.ReservationService, paymentSvc service.PaymentService, availabilitySvc service.AvailabilityService) *ReservationHandler {
	return &ReservationHandler{
		reservationSvc:  reservationSvc,
		paymentSvc:      paymentSvc,
		availabilitySvc: availabilitySvc,
		now:             time.Now,
	}
}

func (h *ReservationHandler) CreateBooking(ctx context.Context, req *wire.CreateBookingRequest) (*wire.BookingResponse, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	in, err := wire.ToCreateBookingRequest(req, actor)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := h.reservationSvc.CreateBooking(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return wire.MapBookingResult(res), nil
}

func (h *ReservationHandler) GetBooking(ctx context.Context, req *wire.GetBookingRequest) (*wire.BookingResponse, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	booking, err := h.reservationSvc.GetBooking(ctx, actor, req.BookingID)
	if err != nil {
		return nil, toStatus(err)
	}
	summary, err := h.paymentSvc.GetPaymentSummary(ctx, actor, req.BookingID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &wire.BookingResponse{Booking: wire.MapDomainBooking(booking), Summary: wire.MapDomainSummary(summary)}, nil
}

func (h *ReservationHandler) SetBookingStatus(ctx context.Context, req *wire.SetBookingStatusRequest) (*wire.BookingResponse, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	next, err := domain.ParseBookingStatus(req.Status)
	if err != nil {
		return nil, toStatus(err)
	}
	booking, err := h.reservationSvc.SetBookingStatus(ctx, req.BookingID, next, actor, req.Note)
	if err != nil {
		return nil, toStatus(err)
	}
	return &wire.BookingResponse{Booking: wire.MapDomainBooking(booking)}, nil
}

func (h *ReservationHandler) RecordPayment(ctx context.Context, req *wire.RecordPaymentRequest) (*wire.PaymentResponse, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	in, err := wire.ToRecordPaymentRequest(req, actor)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := h.paymentSvc.RecordPayment(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return wire.MapPaymentResult(res), nil
}

func (h *ReservationHandler) RecordTopUpPayment(ctx context.Context, req *wire.RecordTopUpPaymentRequest) (*wire.SummaryResponse, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	in, err := wire.ToTopUpRequest(req, actor)
	if err != nil {
		return nil, toStatus(err)
	}
	summary, err := h.paymentSvc.RecordTopUpPayment(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return &wire.SummaryResponse{Summary: wire.MapDomainSummary(summary)}, nil
}

func (h *ReservationHandler) GetPaymentSummary(ctx context.Context, req *wire.GetBookingRequest) (*wire.SummaryResponse, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := h.paymentSvc.GetPaymentSummary(ctx, actor, req.BookingID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &wire.SummaryResponse{Summary: wire.MapDomainSummary(summary)}, nil
}

func (h *ReservationHandler) ListPayments(ctx context.Context, req *wire.GetBookingRequest) (*wire.ListPaymentsResponse, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	events, err := h.paymentSvc.ListPayments(ctx, actor, req.BookingID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &wire.ListPaymentsResponse{Payments: wire.MapDomainPayments(events)}, nil
}

func (h *ReservationHandler) ListStatusHistory(ctx context.Context, req *wire.GetBookingRequest) (*wire.ListStatusHistoryResponse, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := h.reservationSvc.ListStatusHistory(ctx, actor, req.BookingID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &wire.ListStatusHistoryResponse{Entries: wire.MapDomainHistory(entries)}, nil
}

func (h *ReservationHandler) CheckAvailability(ctx context.Context, req *wire.CheckAvailabilityRequest) (*wire.CheckAvailabilityResponse, error) {
	ok, err := h.availabilitySvc.CheckAvailability(ctx, req.PropertyID, req.SlotIDs, req.StartTime, req.EndTime)
	if err != nil {
		return nil, toStatus(err)
	}
	return &wire.CheckAvailabilityResponse{Available: ok}, nil
}

func (h *ReservationHandler) GetActiveOccupancy(ctx context.Context, req *wire.GetActiveOccupancyRequest) (*wire.GetActiveOccupancyResponse, error) {
	asOf := h.now()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}
	slots, err := h.availabilitySvc.ActiveOccupancy(ctx, req.PropertyID, asOf)
	if err != nil {
		return nil, toStatus(err)
	}
	return &wire.GetActiveOccupancyResponse{PropertyID: req.PropertyID, AsOf: asOf.UTC(), SlotIDs: slots}, nil
}

// RegisterReservationServer registers srv on s under ReservationServiceName.
func RegisterReservationServer(s grpc.ServiceRegistrar, srv ReservationServer) {
	s.RegisterService(&ReservationServiceDesc, srv)
	logger.Debug("Registered gRPC service", "service", ReservationServiceName)
}

// unaryMethod builds a method descriptor that decodes Req and dispatches to call through the
// server's interceptor chain.
func unaryMethod[Req any, Resp any](name string, call func(ReservationServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				resp, err := call(srv.(ReservationServer), ctx, req.(*Req))
				if err != nil {
					return nil, err
				}
				return resp, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ReservationServiceName + "/" + name}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ReservationServiceDesc = grpc.ServiceDesc{
	ServiceName: ReservationServiceName,
	HandlerType: (*ReservationServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateBooking", ReservationServer.CreateBooking),
		unaryMethod("GetBooking", ReservationServer.GetBooking),
		unaryMethod("SetBookingStatus", ReservationServer.SetBookingStatus),
		unaryMethod("RecordPayment", ReservationServer.RecordPayment),
		unaryMethod("RecordTopUpPayment", ReservationServer.RecordTopUpPayment),
		unaryMethod("GetPaymentSummary", ReservationServer.GetPaymentSummary),
		unaryMethod("ListPayments", ReservationServer.ListPayments),
		unaryMethod("ListStatusHistory", ReservationServer.ListStatusHistory),
		unaryMethod("CheckAvailability", ReservationServer.CheckAvailability),
		unaryMethod("GetActiveOccupancy", ReservationServer.GetActiveOccupancy),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "parkwise/reservation/v1/reservation.json",
}
