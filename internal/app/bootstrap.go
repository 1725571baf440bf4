// Package app wires configuration into the storage backend, the card gateway, the post-commit
// side effects and the services. Both binaries build their process from here.
package app

import (
	"context"
	"fmt"
	"time"

	"parkwise-booking-core/internal/cache"
	"parkwise-booking-core/internal/config"
	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/events"
	"parkwise-booking-core/internal/gateway"
	"parkwise-booking-core/internal/logger"
	"parkwise-booking-core/internal/notify"
	"parkwise-booking-core/internal/repository"
	"parkwise-booking-core/internal/repository/memory"
	"parkwise-booking-core/internal/repository/postgres"
	"parkwise-booking-core/internal/service"
)

type Services struct {
	Reservation  service.ReservationService
	Payment      service.PaymentService
	Availability service.AvailabilityService
	Audit        service.AuditService
}

// Infrastructure holds the process-wide dependencies. Close releases them in reverse order.
type Infrastructure struct {
	Store   repository.Transactor
	Gateway service.CardGateway
	Effects *service.SideEffects
	Policy  service.Policy

	closers []func() error
}

// Build opens storage and the optional Redis, Kafka and SendGrid integrations. An optional
// integration that cannot start is logged and left out; storage failures are fatal.
func Build(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	infra := &Infrastructure{
		Gateway: NewGateway(cfg.Gateway),
		Effects: &service.SideEffects{},
		Policy:  NewPolicy(cfg.Booking),
	}

	store, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	infra.Store = store
	infra.closers = append(infra.closers, closeStore)

	if cfg.Redis.Enabled {
		client, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Redis unavailable, occupancy cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			infra.Effects.Cache = cache.NewOccupancyCache(client, cfg.Redis.KeyPrefix, time.Duration(cfg.Redis.TTLSeconds)*time.Second)
			infra.closers = append(infra.closers, client.Close)
			logger.Info("Occupancy cache enabled", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.KeyPrefix)
		}
	}

	if cfg.Kafka.Enabled {
		publisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, time.Duration(cfg.Kafka.WriteTimeoutSeconds)*time.Second)
		infra.Effects.Publisher = publisher
		infra.closers = append(infra.closers, publisher.Close)
		logger.Info("Booking events enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	if cfg.SendGrid.Enabled {
		infra.Effects.Notifier = notify.NewSendGridNotifier(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)
		logger.Info("Receipt emails enabled", "from", cfg.SendGrid.FromEmail)
	}

	return infra, nil
}

// Services builds the domain services over the infrastructure.
func (i *Infrastructure) Services() Services {
	return Services{
		Reservation:  service.NewReservationService(i.Store, i.Gateway, i.Effects, i.Policy),
		Payment:      service.NewPaymentService(i.Store, i.Gateway, i.Effects, i.Policy),
		Availability: service.NewAvailabilityService(i.Store, i.Effects.Cache),
		Audit:        service.NewAuditService(i.Store, i.Policy.BalanceEpsilon),
	}
}

func (i *Infrastructure) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](); err != nil {
			logger.Warn("Failed to close resource", "error", err)
		}
	}
	i.closers = nil
}

// OpenStore returns the configured storage backend and its close func.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Transactor, func() error, error) {
	switch cfg.Storage.Type {
	case "memory":
		store := memory.NewStore()
		SeedMemoryStore(store, cfg.Storage.Seed)
		logger.Info("Using in-memory storage", "seeded_properties", len(cfg.Storage.Seed))
		return store, func() error { return nil }, nil
	case "postgres":
		logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
		db, err := postgres.Connect(ctx, cfg.GetDatabaseConnectionString(), cfg.Database.MaxOpenConns, cfg.Database.ConnectAttempts)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
		logger.Info("Database connection established")
		backoff := time.Duration(cfg.Database.RetryBackoffMillis) * time.Millisecond
		return postgres.NewStore(db, cfg.Database.MaxTxRetries, backoff), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

// SeedMemoryStore loads the catalog from config. Seeds are validated by config.Validate.
func SeedMemoryStore(store *memory.Store, seeds []config.PropertySeed) {
	for _, p := range seeds {
		property := domain.Property{
			ID:         p.ID,
			Name:       p.Name,
			HourlyRate: config.Amount(p.HourlyRate),
			DailyRate:  config.Amount(p.DailyRate),
			Currency:   p.Currency,
			Active:     !p.Inactive,
		}
		slots := make([]domain.Slot, 0, len(p.Slots))
		for _, s := range p.Slots {
			slotType, _ := domain.ParseSlotType(s.Type)
			slots = append(slots, domain.Slot{ID: s.ID, Label: s.Label, Type: slotType, Active: !s.Maintenance})
		}
		store.SeedProperty(property, slots...)
	}
}

func NewGateway(cfg config.GatewayConfig) *gateway.MockGateway {
	return gateway.NewMockGateway(gateway.Config{
		Type:         cfg.Type,
		DeclineAbove: config.Amount(cfg.DeclineAbove),
		PendingAbove: config.Amount(cfg.PendingAbove),
		Latency:      time.Duration(cfg.LatencyMillis) * time.Millisecond,
	})
}

func NewPolicy(cfg config.BookingConfig) service.Policy {
	return service.Policy{
		BalanceEpsilon:     cfg.Epsilon(),
		DefaultCurrency:    cfg.Currency,
		AllowTotalOverride: cfg.AllowTotalOverride,
		OverrideRoles:      cfg.Roles(),
	}
}
