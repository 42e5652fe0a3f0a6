// Package cache memoizes computed daily forecasts in Redis and holds the
// short-lived dedup state for subscription reminders.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sssm0ulder/astrobot-sub000/internal/forecast"
)

// forecastTTL keeps a computed forecast for two days, long enough to serve
// repeat reads of yesterday's record without recomputing
const forecastTTL = 48 * time.Hour

// reminderTTL suppresses duplicate expiry reminders for one day
const reminderTTL = 24 * time.Hour

// ForecastCache manages computed forecasts in Redis
type ForecastCache struct {
	redis *redis.Client
}

// NewForecastCache creates a new forecast cache
func NewForecastCache(redisClient *redis.Client) *ForecastCache {
	return &ForecastCache{redis: redisClient}
}

// GetDaily retrieves the cached forecast for a user and date string.
// A nil result means no cached record exists.
func (fc *ForecastCache) GetDaily(ctx context.Context, userID int64, date string) (*forecast.Daily, error) {
	key := fmt.Sprintf("forecast:%d:%s", userID, date)

	data, err := fc.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get forecast from Redis: %w", err)
	}

	var d forecast.Daily
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal forecast: %w", err)
	}

	return &d, nil
}

// SetDaily saves a computed forecast for a user and date string
func (fc *ForecastCache) SetDaily(ctx context.Context, userID int64, date string, d *forecast.Daily) error {
	key := fmt.Sprintf("forecast:%d:%s", userID, date)

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal forecast: %w", err)
	}

	if err := fc.redis.Set(ctx, key, data, forecastTTL).Err(); err != nil {
		return fmt.Errorf("failed to set forecast in Redis: %w", err)
	}

	return nil
}

// InvalidateDaily drops the cached forecast, forcing recomputation on the
// next read; used after a user edits their birth data or location
func (fc *ForecastCache) InvalidateDaily(ctx context.Context, userID int64, date string) error {
	key := fmt.Sprintf("forecast:%d:%s", userID, date)
	return fc.redis.Del(ctx, key).Err()
}

// MarkReminded records that an expiry reminder went out to the user today.
// Returns false when a reminder was already recorded inside the TTL window.
func (fc *ForecastCache) MarkReminded(ctx context.Context, userID int64) (bool, error) {
	key := fmt.Sprintf("reminder:%d", userID)

	ok, err := fc.redis.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), reminderTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set reminder flag in Redis: %w", err)
	}
	return ok, nil
}
