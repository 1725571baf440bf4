package grpc_test

import (
	"context"
	"net"
	"testing"
	"time"

	api "parkwise-booking-core/internal/api/grpc"
	"parkwise-booking-core/internal/api/grpc/interceptor"
	"parkwise-booking-core/internal/api/wire"
	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/gateway"
	"parkwise-booking-core/internal/repository/memory"
	"parkwise-booking-core/internal/security"
	"parkwise-booking-core/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var ten = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type testServer struct {
	conn   *grpc.ClientConn
	client *api.ReservationClient
	tokens security.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	store.SeedProperty(
		domain.Property{ID: 1, Name: "Central", HourlyRate: decimal.NewFromInt(300), DailyRate: decimal.NewFromInt(2000), Currency: "INR", Active: true},
		domain.Slot{ID: 10, Label: "A1", Type: domain.SlotTypeNormal, Active: true},
		domain.Slot{ID: 11, Label: "A2", Type: domain.SlotTypeNormal, Active: true},
	)
	gw := gateway.NewMockGateway(gateway.Config{Type: "mock", DeclineAbove: decimal.NewFromInt(5000)})
	policy := service.DefaultPolicy()
	handler := api.NewReservationHandler(
		service.NewReservationService(store, gw, nil, policy),
		service.NewPaymentService(store, gw, nil, policy),
		service.NewAvailabilityService(store, nil),
	)

	tokens := security.NewTokenManager("test-secret", time.Hour)
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		interceptor.Recovery(),
		interceptor.Logging(),
		interceptor.NewAuthInterceptor(tokens).Unary(),
	))
	api.RegisterReservationServer(s, handler)
	healthpb.RegisterHealthServer(s, health.NewServer())
	go func() { _ = s.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		s.Stop()
	})
	return &testServer{conn: conn, client: api.NewReservationClient(conn), tokens: tokens}
}

func (ts *testServer) as(t *testing.T, actor domain.Actor) context.Context {
	t.Helper()
	token, err := ts.tokens.GenerateAccessToken(actor)
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func TestReservationService_BookAndSettle(t *testing.T) {
	ts := newTestServer(t)
	customer := ts.as(t, domain.Actor{ID: "cust-1", Role: domain.RoleCustomer})

	created, err := ts.client.CreateBooking(customer, &wire.CreateBookingRequest{
		PropertyID:    1,
		SlotIDs:       []int64{10},
		StartTime:     ten,
		EndTime:       ten.Add(2 * time.Hour),
		AdvanceAmount: "200",
	})
	require.NoError(t, err)
	require.NotNil(t, created.Booking)
	assert.Equal(t, "PENDING", created.Booking.Status)
	assert.Equal(t, "cust-1", created.Booking.CustomerRef)
	assert.Equal(t, "600", created.Summary.TotalAmount)
	assert.Equal(t, "200", created.Summary.OnlinePaid)
	assert.Equal(t, "400", created.Summary.BalanceDue)

	id := created.Booking.ID
	topUp, err := ts.client.RecordTopUpPayment(customer, &wire.RecordTopUpPaymentRequest{BookingID: id, NewCumulativeAmount: "600"})
	require.NoError(t, err)
	assert.Equal(t, "0", topUp.Summary.BalanceDue)

	got, err := ts.client.GetBooking(customer, &wire.GetBookingRequest{BookingID: id})
	require.NoError(t, err)
	assert.Equal(t, "PAID", got.Booking.Status)
	assert.Equal(t, "600", got.Summary.OnlinePaid)

	payments, err := ts.client.ListPayments(customer, &wire.GetBookingRequest{BookingID: id})
	require.NoError(t, err)
	require.Len(t, payments.Payments, 2)
	assert.Equal(t, "CARD", payments.Payments[1].Method)

	history, err := ts.client.ListStatusHistory(customer, &wire.GetBookingRequest{BookingID: id})
	require.NoError(t, err)
	require.Len(t, history.Entries, 2)
	assert.Equal(t, "PAID", history.Entries[1].NewStatus)
}

func TestReservationService_ErrorCodes(t *testing.T) {
	ts := newTestServer(t)
	counter := ts.as(t, domain.Actor{ID: "clerk-7", Role: domain.RoleCounter})
	customer := ts.as(t, domain.Actor{ID: "cust-1", Role: domain.RoleCustomer})

	_, err := ts.client.CreateBooking(counter, &wire.CreateBookingRequest{
		PropertyID: 1, SlotIDs: []int64{11}, StartTime: ten, EndTime: ten.Add(time.Hour), CustomerRef: "walk-in",
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		ctx  context.Context
		req  *wire.CreateBookingRequest
		code codes.Code
	}{
		{"No token", context.Background(), &wire.CreateBookingRequest{PropertyID: 1, SlotIDs: []int64{10}, StartTime: ten, EndTime: ten.Add(time.Hour)}, codes.Unauthenticated},
		{"End before start", customer, &wire.CreateBookingRequest{PropertyID: 1, SlotIDs: []int64{10}, StartTime: ten, EndTime: ten.Add(-time.Hour)}, codes.InvalidArgument},
		{"Bad amount", customer, &wire.CreateBookingRequest{PropertyID: 1, SlotIDs: []int64{10}, StartTime: ten, EndTime: ten.Add(time.Hour), AdvanceAmount: "lots"}, codes.InvalidArgument},
		{"Overlap", counter, &wire.CreateBookingRequest{PropertyID: 1, SlotIDs: []int64{11}, StartTime: ten.Add(30 * time.Minute), EndTime: ten.Add(2 * time.Hour), CustomerRef: "late"}, codes.AlreadyExists},
		{"Unknown property", counter, &wire.CreateBookingRequest{PropertyID: 99, SlotIDs: []int64{10}, StartTime: ten, EndTime: ten.Add(time.Hour), CustomerRef: "x"}, codes.InvalidArgument},
		{"Booking for someone else", customer, &wire.CreateBookingRequest{PropertyID: 1, SlotIDs: []int64{10}, StartTime: ten, EndTime: ten.Add(time.Hour), CustomerRef: "cust-2"}, codes.PermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.client.CreateBooking(tt.ctx, tt.req)
			assert.Equal(t, tt.code, status.Code(err), "error: %v", err)
		})
	}

	t.Run("Cancelled booking rejects payment", func(t *testing.T) {
		res, err := ts.client.CreateBooking(counter, &wire.CreateBookingRequest{
			PropertyID: 1, SlotIDs: []int64{11}, StartTime: ten.Add(5 * time.Hour), EndTime: ten.Add(6 * time.Hour), CustomerRef: "walk-in",
		})
		require.NoError(t, err)
		_, err = ts.client.SetBookingStatus(counter, &wire.SetBookingStatusRequest{BookingID: res.Booking.ID, Status: "canceled"})
		require.NoError(t, err)

		_, err = ts.client.RecordPayment(counter, &wire.RecordPaymentRequest{BookingID: res.Booking.ID, Amount: "100", Method: "CASH"})
		assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	})
}

func TestReservationService_PublicAndStaffEndpoints(t *testing.T) {
	ts := newTestServer(t)
	counter := ts.as(t, domain.Actor{ID: "clerk-7", Role: domain.RoleCounter})

	_, err := ts.client.CreateBooking(counter, &wire.CreateBookingRequest{
		PropertyID: 1, SlotIDs: []int64{10}, StartTime: ten, EndTime: ten.Add(2 * time.Hour), CustomerRef: "walk-in",
	})
	require.NoError(t, err)

	avail, err := ts.client.CheckAvailability(context.Background(), &wire.CheckAvailabilityRequest{
		PropertyID: 1, SlotIDs: []int64{10}, StartTime: ten.Add(2 * time.Hour), EndTime: ten.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, avail.Available, "touching windows do not overlap")

	avail, err = ts.client.CheckAvailability(context.Background(), &wire.CheckAvailabilityRequest{
		PropertyID: 1, SlotIDs: []int64{10, 11}, StartTime: ten.Add(time.Hour), EndTime: ten.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, avail.Available)

	asOf := ten.Add(30 * time.Minute)
	occ, err := ts.client.GetActiveOccupancy(counter, &wire.GetActiveOccupancyRequest{PropertyID: 1, AsOf: &asOf})
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, occ.SlotIDs)

	customer := ts.as(t, domain.Actor{ID: "cust-1", Role: domain.RoleCustomer})
	_, err = ts.client.GetActiveOccupancy(customer, &wire.GetActiveOccupancyRequest{PropertyID: 1, AsOf: &asOf})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	hc, err := healthpb.NewHealthClient(ts.conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, hc.Status)
}
