package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bgysuite/barangay-backend/internal/core/domain"
)

const (
	stockKeyPrefix       = "stock:"
	idempotencyKeyPrefix = "idempotency:"
	statusCountKeyPrefix = "status-counts:"
	idempotencyKeyTTL    = 24 * time.Hour
	statusCountTTL       = 30 * time.Second
)

// The mirror is advisory, so an untracked key passes the check instead of
// refusing it; the database decides for real.
var decrementMirrorScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return 1
end

current = tonumber(current)
if current >= quantity then
	redis.call('DECRBY', key, quantity)
	return 1
end

return 0
`)

var incrementMirrorScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

if redis.call('EXISTS', key) == 1 then
	redis.call('INCRBY', key, quantity)
end

return 1
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) DecrementStockMirror(ctx context.Context, itemID string, quantity int) (bool, error) {
	key := stockKeyPrefix + itemID

	result, err := decrementMirrorScript.Run(ctx, r.client, []string{key}, quantity).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) IncrementStockMirror(ctx context.Context, itemID string, quantity int) error {
	key := stockKeyPrefix + itemID
	return incrementMirrorScript.Run(ctx, r.client, []string{key}, quantity).Err()
}

func (r *RedisAdapter) SetStockMirror(ctx context.Context, itemID string, quantity int) error {
	key := stockKeyPrefix + itemID
	return r.client.Set(ctx, key, quantity, 0).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) GetStatusCounts(ctx context.Context, key string) (*domain.StatusCounts, bool, error) {
	val, err := r.client.Get(ctx, statusCountKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var counts domain.StatusCounts
	if err := json.Unmarshal([]byte(val), &counts); err != nil {
		return nil, false, err
	}
	return &counts, true, nil
}

func (r *RedisAdapter) SetStatusCounts(ctx context.Context, key string, counts *domain.StatusCounts) error {
	raw, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, statusCountKeyPrefix+key, raw, statusCountTTL).Err()
}
