package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2026, 5, 4, 10, 30, 45, 0, time.UTC)

const minuteField = "1777890600"

func TestOccupancyCache_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("Hit", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c := NewOccupancyCache(db, "", 0)
		mock.ExpectHGet("occupancy:1", minuteField).SetVal("[10,12]")

		ids, ok, err := c.Get(ctx, 1, asOf)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []int64{10, 12}, ids)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Miss", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c := NewOccupancyCache(db, "", 0)
		mock.ExpectHGet("occupancy:1", minuteField).RedisNil()

		ids, ok, err := c.Get(ctx, 1, asOf)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, ids)
	})

	t.Run("Corrupt entry is a miss", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c := NewOccupancyCache(db, "", 0)
		mock.ExpectHGet("occupancy:1", minuteField).SetVal("not-json")

		_, ok, err := c.Get(ctx, 1, asOf)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Redis error", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c := NewOccupancyCache(db, "", 0)
		mock.ExpectHGet("occupancy:1", minuteField).SetErr(errors.New("connection refused"))

		_, _, err := c.Get(ctx, 1, asOf)
		assert.Error(t, err)
	})
}

func TestOccupancyCache_Set(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	c := NewOccupancyCache(db, "pw:occ", time.Minute)

	mock.ExpectHSet("pw:occ:3", minuteField, "[]").SetVal(1)
	mock.ExpectExpire("pw:occ:3", time.Minute).SetVal(true)

	require.NoError(t, c.Set(ctx, 3, asOf, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOccupancyCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	c := NewOccupancyCache(db, "", 0)

	mock.ExpectDel("occupancy:7").SetVal(1)
	require.NoError(t, c.Invalidate(ctx, 7))

	mock.ExpectDel("occupancy:7").SetErr(redis.ErrClosed)
	assert.Error(t, c.Invalidate(ctx, 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}
