package gateway

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config selects and tunes the card gateway backend.
type Config struct {
	Type         string          // only "mock" is supported
	DeclineAbove decimal.Decimal // captures above this amount are declined; zero disables
	PendingAbove decimal.Decimal // captures above this amount stay PENDING; zero disables
	Latency      time.Duration   // simulated processing delay
}
