package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-express-checkout/internal/gateway"
	"ms-express-checkout/internal/logger"
)

const settingsKey = "gateway_settings"

// RedisCache keeps the merged settings snapshot in Redis so every NVP
// call does not re-read the settings row. Any Redis failure degrades to
// a cache miss.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
	Log    *logger.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisCache {
	return &RedisCache{Client: client, TTL: ttl, Log: log}
}

func (c *RedisCache) GetSettings() (*gateway.Settings, bool) {
	val, err := c.Client.Get(context.Background(), settingsKey).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.Log.Warn("REDIS", fmt.Sprintf("Settings cache read failed: %v", err))
		return nil, false
	}

	var settings gateway.Settings
	if err := json.Unmarshal([]byte(val), &settings); err != nil {
		c.Log.Warn("REDIS", fmt.Sprintf("Settings cache entry corrupt, ignoring: %v", err))
		return nil, false
	}
	return &settings, true
}

func (c *RedisCache) PutSettings(settings *gateway.Settings) {
	data, err := json.Marshal(settings)
	if err != nil {
		c.Log.Warn("REDIS", fmt.Sprintf("Failed to marshal settings for cache: %v", err))
		return
	}
	if err := c.Client.Set(context.Background(), settingsKey, data, c.TTL).Err(); err != nil {
		c.Log.Warn("REDIS", fmt.Sprintf("Settings cache write failed: %v", err))
	}
}

// Invalidate drops the cached snapshot, used after the stored settings
// row is updated through the admin API.
func (c *RedisCache) Invalidate() {
	if err := c.Client.Del(context.Background(), settingsKey).Err(); err != nil {
		c.Log.Warn("REDIS", fmt.Sprintf("Settings cache invalidation failed: %v", err))
	}
}
