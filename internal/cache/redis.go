package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"

	"campus-wayfinding/internal/navigation"
)

// RedisRouteCache keeps directions provider responses so that visitors starting
// from the same spot do not spend the provider's rate limit twice.
type RedisRouteCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ navigation.RouteCache = (*RedisRouteCache)(nil)

func NewRedisRouteCache(client *redis.Client, ttl time.Duration) *RedisRouteCache {
	return &RedisRouteCache{client: client, ttl: ttl}
}

func (r RedisRouteCache) SetRoute(ctx context.Context, req navigation.RouteRequest, route *navigation.Route) error {
	data, err := json.Marshal(route)
	if err != nil {
		return fmt.Errorf("marshalling route: %w", err)
	}
	return r.client.Set(ctx, formatKey(req), data, r.ttl).Err()
}

// GetRoute returns (nil, nil) when nothing is cached for req.
func (r RedisRouteCache) GetRoute(ctx context.Context, req navigation.RouteRequest) (*navigation.Route, error) {
	val, err := r.client.Get(ctx, formatKey(req)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting route: %w", err)
	}
	var route navigation.Route
	if err := json.Unmarshal([]byte(val), &route); err != nil {
		return nil, fmt.Errorf("unmarshalling route: %w", err)
	}
	return &route, nil
}

func (r RedisRouteCache) DeleteRoute(ctx context.Context, req navigation.RouteRequest) error {
	if err := r.client.Del(ctx, formatKey(req)).Err(); err != nil {
		return fmt.Errorf("deleting route: %w", err)
	}
	return nil
}

// formatKey rounds coordinates to 5 decimals (~1 m), below GPS precision.
func formatKey(req navigation.RouteRequest) string {
	return fmt.Sprintf("wayfinding:route:%s:%s:%s", req.Profile, formatPoint(req.Origin), formatPoint(req.Destination))
}

func formatPoint(p orb.Point) string {
	return fmt.Sprintf("%.5f,%.5f", p.Lon(), p.Lat())
}
