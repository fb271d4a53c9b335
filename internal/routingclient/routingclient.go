// Package routingclient defines the single external capability the
// routing engine consumes for final enrichment: given two points,
// return real driving distance, time, and road geometry. Per §4.3 the
// core never retries and never surfaces a collaborator failure; the
// fallback behavior lives here, in the adapter, not in the caller.
package routingclient

import (
	"context"

	"schoolbus-router/internal/geo"
	"schoolbus-router/internal/models"
)

// RouteInfo is the result of a single origin-to-destination lookup.
type RouteInfo struct {
	DistanceKm  float64
	TimeSeconds float64
	Geometry    []models.Point
}

// Client is the collaborator capability the optimizer calls during
// enrichment (§4.6 ENRICH). It is called only there, never inside the
// CVRP solver's hot loop.
type Client interface {
	Route(ctx context.Context, from, to models.Point) (RouteInfo, error)
}

// ErrRoutingClientFailure is the internal error kind recorded when a
// Client implementation's transport step fails. Per §7 it is never
// surfaced past the fallback decorator: FallbackClient always absorbs
// it and returns a geodesic estimate instead.
type ErrRoutingClientFailure struct {
	Reason string
}

func (e *ErrRoutingClientFailure) Error() string {
	return "routing client failure: " + e.Reason
}

// FallbackClient wraps a Client so that any failure - network error,
// non-OK status, malformed body, or timeout - degrades silently to a
// geodesic estimate: haversine distance, the §4.1 travel-time
// estimate, and a two-point straight-line geometry. The core never
// sees ErrRoutingClientFailure; this decorator is the one place that
// implements §7's "never surfaced" policy.
type FallbackClient struct {
	inner         Client
	averageSpeed  float64
	earthRadiusKm float64
}

// NewFallbackClient wraps inner with the fallback behavior required by
// §4.3: on failure, return pure geodesic distance (no road factor -
// that scaling is specific to the optimization-time distance matrix,
// not to this collaborator's fallback).
func NewFallbackClient(inner Client, averageSpeedKmh, earthRadiusKm float64) *FallbackClient {
	return &FallbackClient{
		inner:         inner,
		averageSpeed:  averageSpeedKmh,
		earthRadiusKm: earthRadiusKm,
	}
}

// Route returns the inner client's result, or the geodesic fallback on
// any error.
func (c *FallbackClient) Route(ctx context.Context, from, to models.Point) RouteInfo {
	if c.inner != nil {
		info, err := c.inner.Route(ctx, from, to)
		if err == nil {
			return info
		}
	}

	km := geo.HaversineKm(from, to, c.earthRadiusKm)
	seconds := geo.EstimateTravelTimeSeconds(km, c.averageSpeed)
	return RouteInfo{
		DistanceKm:  km,
		TimeSeconds: seconds,
		Geometry:    geo.StraightLineGeometry(from, to),
	}
}
