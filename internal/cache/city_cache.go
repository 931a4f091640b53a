package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

const knownCitiesKey = "geo:cities:known"

// CityCache keeps the distinct city list used for fuzzy matching so live
// tool calls do not scan the geo directory on every misspelling.
type CityCache struct {
	client redisv9.Cmdable
	ttl    time.Duration
}

func NewCityCache(client redisv9.Cmdable, ttl time.Duration) *CityCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CityCache{client: client, ttl: ttl}
}

func (c *CityCache) GetCities(ctx context.Context) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, knownCitiesKey).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get cities failed: %w", err)
	}

	var cities []string
	if err := json.Unmarshal([]byte(raw), &cities); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached cities failed: %w", err)
	}
	return cities, true, nil
}

func (c *CityCache) SetCities(ctx context.Context, cities []string) error {
	payload, err := json.Marshal(cities)
	if err != nil {
		return fmt.Errorf("marshal cities cache failed: %w", err)
	}
	if err := c.client.Set(ctx, knownCitiesKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cities failed: %w", err)
	}
	return nil
}

// Invalidate drops the list after the geo directory is reloaded.
func (c *CityCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, knownCitiesKey).Err(); err != nil {
		return fmt.Errorf("redis delete cities failed: %w", err)
	}
	return nil
}
