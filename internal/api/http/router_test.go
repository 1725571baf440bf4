package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpapi "parkwise-booking-core/internal/api/http"
	"parkwise-booking-core/internal/api/wire"
	"parkwise-booking-core/internal/config"
	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/gateway"
	"parkwise-booking-core/internal/repository/memory"
	"parkwise-booking-core/internal/security"
	"parkwise-booking-core/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ten = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type testAPI struct {
	server *httptest.Server
	tokens security.TokenManager
}

func newTestAPI(t *testing.T, limit config.RateLimitConfig) *testAPI {
	t.Helper()
	store := memory.NewStore()
	store.SeedProperty(
		domain.Property{ID: 1, Name: "Central", HourlyRate: decimal.NewFromInt(300), DailyRate: decimal.NewFromInt(2000), Currency: "INR", Active: true},
		domain.Slot{ID: 10, Label: "A1", Type: domain.SlotTypeNormal, Active: true},
		domain.Slot{ID: 11, Label: "A2", Type: domain.SlotTypeNormal, Active: true},
	)
	gw := gateway.NewMockGateway(gateway.Config{Type: "mock"})
	policy := service.DefaultPolicy()
	h := httpapi.NewBookingHandler(
		service.NewReservationService(store, gw, nil, policy),
		service.NewPaymentService(store, gw, nil, policy),
		service.NewAvailabilityService(store, nil),
	)
	tokens := security.NewTokenManager("test-secret", time.Hour)
	srv := httptest.NewServer(httpapi.NewRouter(h, tokens, httpapi.NewRateLimiter(limit)))
	t.Cleanup(srv.Close)
	return &testAPI{server: srv, tokens: tokens}
}

func (a *testAPI) do(t *testing.T, method, path string, actor *domain.Actor, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if actor != nil {
		token, err := a.tokens.GenerateAccessToken(*actor)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

var (
	counter  = &domain.Actor{ID: "clerk-7", Role: domain.RoleCounter}
	customer = &domain.Actor{ID: "cust-1", Role: domain.RoleCustomer}
	other    = &domain.Actor{ID: "cust-2", Role: domain.RoleCustomer}
	generous = config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000}
)

func TestRouter_CounterBookingFlow(t *testing.T) {
	a := newTestAPI(t, generous)

	resp, body := a.do(t, http.MethodPost, "/api/v1/bookings", counter, wire.CreateBookingRequest{
		PropertyID:    1,
		SlotIDs:       []int64{10, 11},
		StartTime:     ten,
		EndTime:       ten.Add(time.Hour),
		CustomerRef:   "walk-in-42",
		AdvanceAmount: "100",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	created := decode[wire.BookingResponse](t, body)
	assert.Equal(t, "600", created.Summary.TotalAmount)
	assert.Equal(t, "100", created.Summary.CashPaid)
	assert.Equal(t, "500", created.Summary.BalanceDue)
	id := created.Booking.ID

	resp, body = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/topup", id), counter, map[string]string{"new_cumulative_amount": "600"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	summary := decode[wire.SummaryResponse](t, body)
	assert.Equal(t, "0", summary.Summary.BalanceDue)
	assert.Equal(t, "600", summary.Summary.CashPaid)

	resp, body = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d", id), counter, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PAID", decode[wire.BookingResponse](t, body).Booking.Status)

	resp, body = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d/payments", id), counter, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[wire.ListPaymentsResponse](t, body).Payments, 2)

	resp, body = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d/history", id), counter, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[wire.ListStatusHistoryResponse](t, body).Entries, 2)

	resp, body = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/topup", id), counter, map[string]string{"new_cumulative_amount": "500"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "amount_decrease_rejected", decode[wire.ErrorResponse](t, body).Error)

	resp, body = a.do(t, http.MethodGet, "/api/v1/properties/1/occupancy?as_of=2026-05-04T10:30:00Z", counter, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, []int64{10, 11}, decode[wire.GetActiveOccupancyResponse](t, body).SlotIDs)
}

func TestRouter_Errors(t *testing.T) {
	a := newTestAPI(t, generous)
	booking := wire.CreateBookingRequest{PropertyID: 1, SlotIDs: []int64{10}, StartTime: ten, EndTime: ten.Add(time.Hour)}

	resp, body := a.do(t, http.MethodPost, "/api/v1/bookings", customer, booking)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	id := decode[wire.BookingResponse](t, body).Booking.ID

	tests := []struct {
		name   string
		method string
		path   string
		actor  *domain.Actor
		body   any
		status int
		code   string
	}{
		{"No token", http.MethodPost, "/api/v1/bookings", nil, booking, http.StatusUnauthorized, "unauthenticated"},
		{"Overlap", http.MethodPost, "/api/v1/bookings", customer, booking, http.StatusConflict, "slot_conflict"},
		{"Malformed JSON", http.MethodPost, "/api/v1/bookings", customer, "{", http.StatusBadRequest, "validation_error"},
		{"Unknown field", http.MethodPost, "/api/v1/bookings", customer, `{"property_id":1,"discount":"all"}`, http.StatusBadRequest, "validation_error"},
		{"Unknown booking", http.MethodGet, "/api/v1/bookings/999", customer, nil, http.StatusNotFound, "not_found"},
		{"Another customer's booking", http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d", id), other, nil, http.StatusForbidden, "forbidden"},
		{"Customer cash payment", http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/payments", id), customer, map[string]string{"amount": "50", "method": "CASH"}, http.StatusForbidden, "forbidden"},
		{"Staff-only occupancy", http.MethodGet, "/api/v1/properties/1/occupancy", customer, nil, http.StatusForbidden, "forbidden"},
		{"Bad as_of", http.MethodGet, "/api/v1/properties/1/occupancy?as_of=noon", counter, nil, http.StatusBadRequest, "validation_error"},
		{"Illegal transition", http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/status", id), counter, map[string]string{"status": "PAID"}, http.StatusConflict, "invalid_transition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := a.do(t, tt.method, tt.path, tt.actor, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
			assert.Equal(t, tt.code, decode[wire.ErrorResponse](t, body).Error)
		})
	}
}

func TestRouter_PublicEndpoints(t *testing.T) {
	a := newTestAPI(t, generous)

	resp, body := a.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "ok"))

	resp, body = a.do(t, http.MethodPost, "/api/v1/availability", nil, wire.CheckAvailabilityRequest{
		PropertyID: 1, SlotIDs: []int64{10}, StartTime: ten, EndTime: ten.Add(time.Hour),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.True(t, decode[wire.CheckAvailabilityResponse](t, body).Available)
}

func TestRouter_RateLimit(t *testing.T) {
	a := newTestAPI(t, config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})
	check := wire.CheckAvailabilityRequest{PropertyID: 1, SlotIDs: []int64{10}, StartTime: ten, EndTime: ten.Add(time.Hour)}

	for i := 0; i < 2; i++ {
		resp, _ := a.do(t, http.MethodPost, "/api/v1/availability", nil, check)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := a.do(t, http.MethodPost, "/api/v1/availability", nil, check)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", decode[wire.ErrorResponse](t, body).Error)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	// Authenticated callers get their own bucket.
	resp, _ = a.do(t, http.MethodGet, "/api/v1/properties/1/occupancy", counter, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
