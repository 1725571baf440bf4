package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"parkwise-booking-core/internal/logger"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 2 * time.Minute

// OccupancyCache stores active occupancy per property in one Redis hash, one field per minute.
// Invalidating a property drops the whole hash, so a booking change clears every cached minute.
type OccupancyCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewOccupancyCache(client redis.Cmdable, prefix string, ttl time.Duration) *OccupancyCache {
	if prefix == "" {
		prefix = "occupancy"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &OccupancyCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *OccupancyCache) key(propertyID int64) string {
	return fmt.Sprintf("%s:%d", c.prefix, propertyID)
}

func field(asOf time.Time) string {
	return strconv.FormatInt(asOf.UTC().Truncate(time.Minute).Unix(), 10)
}

func (c *OccupancyCache) Get(ctx context.Context, propertyID int64, asOf time.Time) ([]int64, bool, error) {
	raw, err := c.client.HGet(ctx, c.key(propertyID), field(asOf)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("occupancy cache get: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		logger.Warn("Discarding unreadable occupancy entry", "propertyID", propertyID, "error", err)
		return nil, false, nil
	}
	return ids, true, nil
}

func (c *OccupancyCache) Set(ctx context.Context, propertyID int64, asOf time.Time, slotIDs []int64) error {
	if slotIDs == nil {
		slotIDs = []int64{}
	}
	data, err := json.Marshal(slotIDs)
	if err != nil {
		return err
	}

	key := c.key(propertyID)
	if err := c.client.HSet(ctx, key, field(asOf), string(data)).Err(); err != nil {
		return fmt.Errorf("occupancy cache set: %w", err)
	}
	if err := c.client.Expire(ctx, key, c.ttl).Err(); err != nil {
		return fmt.Errorf("occupancy cache expire: %w", err)
	}
	return nil
}

func (c *OccupancyCache) Invalidate(ctx context.Context, propertyID int64) error {
	if err := c.client.Del(ctx, c.key(propertyID)).Err(); err != nil {
		return fmt.Errorf("occupancy cache invalidate: %w", err)
	}
	return nil
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}
