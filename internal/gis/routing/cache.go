package routing

import (
	"context"
	"log/slog"

	"campus-wayfinding/internal/navigation"
)

// CachedProvider serves repeated origin/destination pairs from a route cache.
// Cache failures are logged and never fail a request.
type CachedProvider struct {
	next   navigation.DirectionsProvider
	cache  navigation.RouteCache
	logger *slog.Logger
}

func Cached(next navigation.DirectionsProvider, cache navigation.RouteCache, logger *slog.Logger) *CachedProvider {
	return &CachedProvider{next: next, cache: cache, logger: logger}
}

func (p *CachedProvider) Route(ctx context.Context, req navigation.RouteRequest) (*navigation.Route, error) {
	route, err := p.cache.GetRoute(ctx, req)
	switch {
	case err != nil:
		p.logger.Warn("failed to read route cache", "error", err)
	case route == nil:
	case route.Validate() == nil:
		p.logger.Debug("route cache hit", "origin", req.Origin, "destination", req.Destination)
		return route, nil
	default:
		p.logger.Warn("evicting invalid cached route", "origin", req.Origin, "destination", req.Destination)
		if err := p.cache.DeleteRoute(ctx, req); err != nil {
			p.logger.Warn("failed to evict cached route", "error", err)
		}
	}

	route, err = p.next.Route(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := p.cache.SetRoute(ctx, req, route); err != nil {
		p.logger.Warn("failed to write route cache", "error", err)
	}
	return route, nil
}
