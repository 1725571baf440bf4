package grpc

import (
	"context"

	"parkwise-booking-core/internal/api/wire"

	"google.golang.org/grpc"
)

// ReservationClient calls ReservationService over a connection, always with the JSON codec.
type ReservationClient struct {
	cc grpc.ClientConnInterface
}

func NewReservationClient(cc grpc.ClientConnInterface) *ReservationClient {
	return &ReservationClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ReservationServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReservationClient) CreateBooking(ctx context.Context, in *wire.CreateBookingRequest, opts ...grpc.CallOption) (*wire.BookingResponse, error) {
	return invoke[wire.BookingResponse](ctx, c.cc, "CreateBooking", in, opts)
}

func (c *ReservationClient) GetBooking(ctx context.Context, in *wire.GetBookingRequest, opts ...grpc.CallOption) (*wire.BookingResponse, error) {
	return invoke[wire.BookingResponse](ctx, c.cc, "GetBooking", in, opts)
}

func (c *ReservationClient) SetBookingStatus(ctx context.Context, in *wire.SetBookingStatusRequest, opts ...grpc.CallOption) (*wire.BookingResponse, error) {
	return invoke[wire.BookingResponse](ctx, c.cc, "SetBookingStatus", in, opts)
}

func (c *ReservationClient) RecordPayment(ctx context.Context, in *wire.RecordPaymentRequest, opts ...grpc.CallOption) (*wire.PaymentResponse, error) {
	return invoke[wire.PaymentResponse](ctx, c.cc, "RecordPayment", in, opts)
}

func (c *ReservationClient) RecordTopUpPayment(ctx context.Context, in *wire.RecordTopUpPaymentRequest, opts ...grpc.CallOption) (*wire.SummaryResponse, error) {
	return invoke[wire.SummaryResponse](ctx, c.cc, "RecordTopUpPayment", in, opts)
}

func (c *ReservationClient) GetPaymentSummary(ctx context.Context, in *wire.GetBookingRequest, opts ...grpc.CallOption) (*wire.SummaryResponse, error) {
	return invoke[wire.SummaryResponse](ctx, c.cc, "GetPaymentSummary", in, opts)
}

func (c *ReservationClient) ListPayments(ctx context.Context, in *wire.GetBookingRequest, opts ...grpc.CallOption) (*wire.ListPaymentsResponse, error) {
	return invoke[wire.ListPaymentsResponse](ctx, c.cc, "ListPayments", in, opts)
}

func (c *ReservationClient) ListStatusHistory(ctx context.Context, in *wire.GetBookingRequest, opts ...grpc.CallOption) (*wire.ListStatusHistoryResponse, error) {
	return invoke[wire.ListStatusHistoryResponse](ctx, c.cc, "ListStatusHistory", in, opts)
}

func (c *ReservationClient) CheckAvailability(ctx context.Context, in *wire.CheckAvailabilityRequest, opts ...grpc.CallOption) (*wire.CheckAvailabilityResponse, error) {
	return invoke[wire.CheckAvailabilityResponse](ctx, c.cc, "CheckAvailability", in, opts)
}

func (c *ReservationClient) GetActiveOccupancy(ctx context.Context, in *wire.GetActiveOccupancyRequest, opts ...grpc.CallOption) (*wire.GetActiveOccupancyResponse, error) {
	return invoke[wire.GetActiveOccupancyResponse](ctx, c.cc, "GetActiveOccupancy", in, opts)
}
