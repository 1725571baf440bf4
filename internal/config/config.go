package config

import (
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"parkwise-booking-core/internal/domain"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. PARKWISE_DATABASE_HOST.
const EnvPrefix = "PARKWISE"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	SendGrid  SendGridConfig  `yaml:"sendgrid"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Booking   BookingConfig   `yaml:"booking"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"rate_limit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Host                   string `yaml:"host"`
	GRPCPort               int    `yaml:"grpc_port" envconfig:"grpc_port"`
	HTTPPort               int    `yaml:"http_port" envconfig:"http_port"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds" envconfig:"shutdown_timeout_seconds"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Database           string `yaml:"database"`
	SSLMode            string `yaml:"ssl_mode" envconfig:"ssl_mode"`
	MaxOpenConns       int    `yaml:"max_open_conns" envconfig:"max_open_conns"`
	MaxTxRetries       int    `yaml:"max_tx_retries" envconfig:"max_tx_retries"`
	RetryBackoffMillis int    `yaml:"retry_backoff_ms" envconfig:"retry_backoff_ms"`
	ConnectAttempts    int    `yaml:"connect_attempts" envconfig:"connect_attempts"`
}

// StorageConfig selects the storage backend. The memory backend is seeded from Seed.
type StorageConfig struct {
	Type string         `yaml:"type"` // "postgres" or "memory"
	Seed []PropertySeed `yaml:"seed" ignored:"true"`
}

type PropertySeed struct {
	ID         int64      `yaml:"id"`
	Name       string     `yaml:"name"`
	HourlyRate string     `yaml:"hourly_rate"`
	DailyRate  string     `yaml:"daily_rate"`
	Currency   string     `yaml:"currency"`
	Inactive   bool       `yaml:"inactive"`
	Slots      []SlotSeed `yaml:"slots"`
}

type SlotSeed struct {
	ID          int64  `yaml:"id"`
	Label       string `yaml:"label"`
	Type        string `yaml:"type"`
	Maintenance bool   `yaml:"maintenance"`
}

type GatewayConfig struct {
	Type          string `yaml:"type"` // only "mock"
	DeclineAbove  string `yaml:"decline_above" envconfig:"decline_above"`
	PendingAbove  string `yaml:"pending_above" envconfig:"pending_above"`
	LatencyMillis int    `yaml:"latency_ms" envconfig:"latency_ms"`
}

type RedisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	KeyPrefix  string `yaml:"key_prefix" envconfig:"key_prefix"`
	TTLSeconds int    `yaml:"ttl_seconds" envconfig:"ttl_seconds"`
}

type KafkaConfig struct {
	Enabled             bool     `yaml:"enabled"`
	Brokers             []string `yaml:"brokers"`
	Topic               string   `yaml:"topic"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds" envconfig:"write_timeout_seconds"`
}

type SendGridConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKey    string `yaml:"api_key" envconfig:"api_key"`
	FromEmail string `yaml:"from_email" envconfig:"from_email"`
	FromName  string `yaml:"from_name" envconfig:"from_name"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes" envconfig:"access_token_expiry_minutes"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// BookingConfig carries the business rules handed to the services.
type BookingConfig struct {
	Currency           string   `yaml:"currency"`
	BalanceEpsilon     string   `yaml:"balance_epsilon" envconfig:"balance_epsilon"`
	AllowTotalOverride bool     `yaml:"allow_total_override" envconfig:"allow_total_override"`
	OverrideRoles      []string `yaml:"override_roles" envconfig:"override_roles"`

	epsilon       decimal.Decimal
	overrideRoles []domain.Role
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	// TrustedProxies lists the addresses or CIDRs allowed to set X-Forwarded-For. Empty means
	// the header is ignored and callers are keyed by their connection address.
	TrustedProxies []string `yaml:"trusted_proxies" envconfig:"trusted_proxies"`
}

// ProxyPrefixes parses TrustedProxies. A bare address becomes a single-host prefix.
func (r RateLimitConfig) ProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(r.TrustedProxies))
	for _, raw := range r.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if p, err := netip.ParsePrefix(raw); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("rate_limit trusted_proxies: invalid address %q", raw)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// SchedulerConfig contains cron schedule settings (with seconds)
type SchedulerConfig struct {
	AuditLedgers       string `yaml:"audit_ledgers" envconfig:"audit_ledgers"`
	WarmOccupancyCache string `yaml:"warm_occupancy_cache" envconfig:"warm_occupancy_cache"`
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name" envconfig:"service_name"`
	Environment string  `yaml:"environment"`
	SampleRatio float64 `yaml:"sample_ratio" envconfig:"sample_ratio"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, overlays PARKWISE_* environment variables and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = 50051
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if err := validPort("server grpc_port", c.Server.GRPCPort); err != nil {
		return err
	}
	if err := validPort("server http_port", c.Server.HTTPPort); err != nil {
		return err
	}
	if c.Server.GRPCPort == c.Server.HTTPPort {
		return fmt.Errorf("grpc_port and http_port must differ")
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = 15
	}

	c.Storage.Type = strings.ToLower(c.Storage.Type)
	switch c.Storage.Type {
	case "", "postgres":
		c.Storage.Type = "postgres"
		if err := c.Database.validate(); err != nil {
			return err
		}
	case "memory":
		if err := c.Storage.validateSeed(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	if c.Database.MaxTxRetries <= 0 {
		c.Database.MaxTxRetries = 3
	}
	if c.Database.RetryBackoffMillis <= 0 {
		c.Database.RetryBackoffMillis = 20
	}
	if c.Database.ConnectAttempts <= 0 {
		c.Database.ConnectAttempts = 5
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 25
	}

	if c.Gateway.Type == "" {
		c.Gateway.Type = "mock"
	}
	if c.Gateway.Type != "mock" {
		return fmt.Errorf("unknown gateway type %q", c.Gateway.Type)
	}
	for field, v := range map[string]string{"decline_above": c.Gateway.DeclineAbove, "pending_above": c.Gateway.PendingAbove} {
		if _, err := optionalAmount(v); err != nil {
			return fmt.Errorf("gateway %s: %w", field, err)
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when redis is enabled")
	}
	if c.Redis.TTLSeconds <= 0 {
		c.Redis.TTLSeconds = 120
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "parkwise:occupancy"
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "parkwise.booking-events"
	}
	if c.Kafka.WriteTimeoutSeconds <= 0 {
		c.Kafka.WriteTimeoutSeconds = 5
	}

	if c.SendGrid.Enabled && (c.SendGrid.APIKey == "" || c.SendGrid.FromEmail == "") {
		return fmt.Errorf("sendgrid api_key and from_email are required when sendgrid is enabled")
	}
	if c.SendGrid.FromName == "" {
		c.SendGrid.FromName = "ParkWise"
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry <= 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if err := c.Booking.validate(); err != nil {
		return err
	}

	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = 10
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 20
	}
	if _, err := c.RateLimit.ProxyPrefixes(); err != nil {
		return err
	}

	if c.Scheduler.AuditLedgers == "" {
		c.Scheduler.AuditLedgers = "0 15 3 * * *" // 3:15 AM UTC
	}
	if c.Scheduler.WarmOccupancyCache == "" {
		c.Scheduler.WarmOccupancyCache = "0 * * * * *" // every minute
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "parkwise-booking-core"
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry endpoint is required when telemetry is enabled")
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if d.User == "" {
		return fmt.Errorf("database user is required")
	}
	if d.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	return validPort("database port", d.Port)
}

func (s *StorageConfig) validateSeed() error {
	slotIDs := map[int64]bool{}
	for _, p := range s.Seed {
		if p.ID <= 0 {
			return fmt.Errorf("seed property %q needs a positive id", p.Name)
		}
		for field, v := range map[string]string{"hourly_rate": p.HourlyRate, "daily_rate": p.DailyRate} {
			if _, err := optionalAmount(v); err != nil {
				return fmt.Errorf("seed property %d %s: %w", p.ID, field, err)
			}
		}
		for _, slot := range p.Slots {
			if slot.ID <= 0 || slotIDs[slot.ID] {
				return fmt.Errorf("seed property %d: slot id %d is missing or repeated", p.ID, slot.ID)
			}
			slotIDs[slot.ID] = true
			if _, err := domain.ParseSlotType(slot.Type); err != nil {
				return fmt.Errorf("seed slot %d: %w", slot.ID, err)
			}
		}
	}
	return nil
}

func (b *BookingConfig) validate() error {
	if b.Currency == "" {
		b.Currency = "INR"
	}
	b.epsilon = domain.DefaultBalanceEpsilon
	if b.BalanceEpsilon != "" {
		eps, err := decimal.NewFromString(b.BalanceEpsilon)
		if err != nil || eps.IsNegative() {
			return fmt.Errorf("booking balance_epsilon %q must be a non-negative decimal", b.BalanceEpsilon)
		}
		b.epsilon = eps
	}

	if len(b.OverrideRoles) == 0 {
		b.OverrideRoles = []string{string(domain.RoleCounter), string(domain.RoleAdmin)}
	}
	b.overrideRoles = b.overrideRoles[:0]
	for _, raw := range b.OverrideRoles {
		role, err := domain.ParseRole(raw)
		if err != nil {
			return fmt.Errorf("booking override_roles: %w", err)
		}
		b.overrideRoles = append(b.overrideRoles, role)
	}
	return nil
}

// Epsilon is the validated balance tolerance.
func (b *BookingConfig) Epsilon() decimal.Decimal {
	return b.epsilon
}

func (b *BookingConfig) Roles() []domain.Role {
	return b.overrideRoles
}

func validPort(name string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid %s: %d", name, port)
	}
	return nil
}

// optionalAmount parses a non-negative decimal; an empty string is zero.
func optionalAmount(v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s is negative", v)
	}
	return d, nil
}

// Amount parses a validated decimal setting such as a seed rate or a gateway threshold.
func Amount(v string) decimal.Decimal {
	d, _ := optionalAmount(v)
	return d
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

func (c *Config) GetGRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

func (c *Config) GetHTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
