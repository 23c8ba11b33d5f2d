package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"busticket/internal/domain/route"

	"github.com/redis/go-redis/v9"
)

const routeCacheTTL = 5 * time.Minute

// RouteCatalog serves the reference data a passenger picks a journey from.
type RouteCatalog struct {
	routes RouteRepository
	cache  *redis.Client
	logger *slog.Logger
}

func NewRouteCatalog(routes RouteRepository, cache *redis.Client, logger *slog.Logger) *RouteCatalog {
	return &RouteCatalog{routes: routes, cache: cache, logger: logger}
}

func (uc *RouteCatalog) ListRoutes(ctx context.Context) ([]*route.Route, error) {
	var out []*route.Route
	err := uc.cached(ctx, "routes", &out, func() (any, error) {
		return uc.routes.ListRoutes(ctx)
	})
	return out, err
}

// GetRouteStops lists the stops of a route in travel order, each with its
// cumulative fare from the origin.
func (uc *RouteCatalog) GetRouteStops(ctx context.Context, routeID string) ([]*route.RouteStop, error) {
	rt, err := uc.routes.GetRoute(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("%w: get route: %v", ErrPersistence, err)
	}
	if rt == nil {
		return nil, ErrRouteNotFound
	}

	var out []*route.RouteStop
	err = uc.cached(ctx, "route_stops:"+routeID, &out, func() (any, error) {
		return uc.routes.ListRouteStops(ctx, routeID)
	})
	return out, err
}

// cached fills dst from redis, or from load and then writes it back.
func (uc *RouteCatalog) cached(ctx context.Context, key string, dst any, load func() (any, error)) error {
	if uc.cache != nil {
		if val, err := uc.cache.Get(ctx, key).Result(); err == nil {
			if err := json.Unmarshal([]byte(val), dst); err == nil {
				return nil
			}
		}
	}

	v, err := load()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, key, data, routeCacheTTL).Err(); err != nil {
			uc.logger.Warn("route cache write failed", "key", key, "error", err)
		}
	}
	return nil
}
