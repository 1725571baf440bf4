package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockGateway simulates a card processor for demo and test deployments. Captures are keyed by
// the caller's reference, so retrying a capture returns the original answer instead of charging twice.
type MockGateway struct {
	cfg Config

	mu       sync.Mutex
	captures map[string]*capture
}

type capture struct {
	result   domain.CardCapture
	amount   decimal.Decimal
	currency string
	voided   bool
}

func NewMockGateway(cfg Config) *MockGateway {
	return &MockGateway{cfg: cfg, captures: map[string]*capture{}}
}

func (g *MockGateway) Capture(ctx context.Context, reference string, amount decimal.Decimal, currency string) (*domain.CardCapture, error) {
	if reference == "" {
		return nil, domain.NewValidationError("reference", "is required")
	}
	if !amount.IsPositive() {
		return nil, domain.NewValidationError("amount", "must be positive")
	}

	if g.cfg.Latency > 0 {
		select {
		case <-time.After(g.cfg.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.captures[reference]; ok {
		if !c.amount.Equal(amount) {
			return nil, domain.NewValidationError("reference", fmt.Sprintf("%s already used for %s", reference, c.amount))
		}
		res := c.result
		return &res, nil
	}

	if exceeds(amount, g.cfg.DeclineAbove) {
		logger.Info("Mock gateway declined capture", "reference", reference, "amount", amount)
		return nil, fmt.Errorf("%w: %s %s exceeds card limit", domain.ErrPaymentDeclined, amount, currency)
	}

	status := domain.PaymentStatusPaid
	if exceeds(amount, g.cfg.PendingAbove) {
		status = domain.PaymentStatusPending
	}
	c := &capture{
		result:   domain.CardCapture{Reference: "pi_" + uuid.New().String(), Status: status},
		amount:   amount,
		currency: currency,
	}
	g.captures[reference] = c

	res := c.result
	return &res, nil
}

// Void cancels a capture by the processor reference returned from Capture.
func (g *MockGateway) Void(ctx context.Context, processorRef string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, c := range g.captures {
		if c.result.Reference == processorRef {
			c.voided = true
			c.result.Status = domain.PaymentStatusFailed
			return nil
		}
	}
	return fmt.Errorf("%w: capture %s", domain.ErrNotFound, processorRef)
}

// Voided reports whether the processor reference has been voided.
func (g *MockGateway) Voided(processorRef string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, c := range g.captures {
		if c.result.Reference == processorRef {
			return c.voided
		}
	}
	return false
}

func exceeds(amount, limit decimal.Decimal) bool {
	return limit.IsPositive() && amount.GreaterThan(limit)
}
