package routingclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"schoolbus-router/internal/geo"
	"schoolbus-router/internal/models"
)

// osrmRouteResponse is the subset of an OSRM /route response the
// adapter needs: total distance, total duration, and an overview
// polyline geometry.
type osrmRouteResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry string  `json:"geometry"`
	} `json:"routes"`
}

// OSRMClient is a concrete Client implementation against a generic
// OSRM-style HTTP routing service's /route endpoint. It is a reference
// implementation of the §6 routing-client contract: the core only ever
// depends on the Client interface.
type OSRMClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOSRMClient creates an adapter bound to baseURL, with the §5
// per-call timeout applied to every request.
func NewOSRMClient(baseURL string, timeout time.Duration) *OSRMClient {
	return &OSRMClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Route fetches real driving distance, time, and geometry between two
// points. Errors returned here are always absorbed by FallbackClient;
// OSRMClient itself never decides the fallback.
func (c *OSRMClient) Route(ctx context.Context, from, to models.Point) (RouteInfo, error) {
	queryURL := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=simplified&geometries=polyline",
		c.baseURL, from.Lng, from.Lat, to.Lng, to.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return RouteInfo{}, &ErrRoutingClientFailure{Reason: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[ROUTINGCLIENT] request failed: from=%v to=%v err=%v", from, to, err)
		return RouteInfo{}, &ErrRoutingClientFailure{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("[ROUTINGCLIENT] non-OK status: status=%d body=%s", resp.StatusCode, string(body))
		return RouteInfo{}, &ErrRoutingClientFailure{Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	var parsed osrmRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		log.Printf("[ROUTINGCLIENT] malformed body: err=%v", err)
		return RouteInfo{}, &ErrRoutingClientFailure{Reason: err.Error()}
	}

	if parsed.Code != "Ok" || len(parsed.Routes) == 0 {
		return RouteInfo{}, &ErrRoutingClientFailure{Reason: "no route returned"}
	}

	route := parsed.Routes[0]
	geometry := geo.DecodePolyline(route.Geometry)
	if len(geometry) < 2 {
		geometry = geo.StraightLineGeometry(from, to)
	}

	return RouteInfo{
		DistanceKm:  route.Distance / 1000.0,
		TimeSeconds: route.Duration,
		Geometry:    geometry,
	}, nil
}
