package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"parkwise-booking-core/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event domain.BookingEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendReceipt(ctx context.Context, contact domain.CustomerContact, booking domain.Booking, summary domain.PaymentSummary) error {
	args := m.Called(ctx, contact, booking, summary)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, propertyID int64, asOf time.Time) ([]int64, bool, error) {
	args := m.Called(ctx, propertyID, asOf)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]int64), args.Bool(1), args.Error(2)
}

func (m *MockCache) Set(ctx context.Context, propertyID int64, asOf time.Time, slotIDs []int64) error {
	args := m.Called(ctx, propertyID, asOf, slotIDs)
	return args.Error(0)
}

func (m *MockCache) Invalidate(ctx context.Context, propertyID int64) error {
	args := m.Called(ctx, propertyID)
	return args.Error(0)
}

// fakeGateway approves everything unless told otherwise and remembers what it saw.
type fakeGateway struct {
	mu       sync.Mutex
	decline  bool
	status   domain.PaymentStatus
	captured []decimal.Decimal
	voided   []string
	seq      int
}

func (g *fakeGateway) Capture(ctx context.Context, reference string, amount decimal.Decimal, currency string) (*domain.CardCapture, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.decline {
		return nil, fmt.Errorf("%w: card refused", domain.ErrPaymentDeclined)
	}
	g.seq++
	g.captured = append(g.captured, amount)
	status := g.status
	if status == "" {
		status = domain.PaymentStatusPaid
	}
	return &domain.CardCapture{Reference: fmt.Sprintf("pi_test_%d", g.seq), Status: status}, nil
}

func (g *fakeGateway) Void(ctx context.Context, reference string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.voided = append(g.voided, reference)
	return nil
}
