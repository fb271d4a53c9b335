package routingclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolbus-router/internal/models"
)

type stubClient struct {
	info RouteInfo
	err  error
}

func (s *stubClient) Route(ctx context.Context, from, to models.Point) (RouteInfo, error) {
	return s.info, s.err
}

func TestFallbackClient_ReturnsInnerResultOnSuccess(t *testing.T) {
	want := RouteInfo{DistanceKm: 5.2, TimeSeconds: 620, Geometry: []models.Point{{Lat: 1, Lng: 1}}}
	fc := NewFallbackClient(&stubClient{info: want}, 30, 6371.0)

	got := fc.Route(context.Background(), models.Point{Lat: 1, Lng: 1}, models.Point{Lat: 2, Lng: 2})
	assert.Equal(t, want, got)
}

func TestFallbackClient_AbsorbsFailureWithGeodesicEstimate(t *testing.T) {
	fc := NewFallbackClient(&stubClient{err: &ErrRoutingClientFailure{Reason: "timeout"}}, 30, 6371.0)

	from := models.Point{Lat: 1.0, Lng: 103.0}
	to := models.Point{Lat: 2.0, Lng: 103.0}
	got := fc.Route(context.Background(), from, to)

	require.NotZero(t, got.DistanceKm)
	assert.InDelta(t, 111.19, got.DistanceKm, 1.0)
	assert.InDelta(t, got.DistanceKm/30*3600, got.TimeSeconds, 1e-6)
	require.Len(t, got.Geometry, 2)
	assert.Equal(t, from, got.Geometry[0])
	assert.Equal(t, to, got.Geometry[1])
}

func TestFallbackClient_NilInnerAlwaysFallsBack(t *testing.T) {
	fc := NewFallbackClient(nil, 30, 6371.0)
	from := models.Point{Lat: 0, Lng: 0}
	to := models.Point{Lat: 0, Lng: 1}

	got := fc.Route(context.Background(), from, to)
	require.Len(t, got.Geometry, 2)
	assert.Greater(t, got.DistanceKm, 0.0)
}

func TestErrRoutingClientFailure_ErrorMessage(t *testing.T) {
	err := &ErrRoutingClientFailure{Reason: "connection refused"}
	assert.Contains(t, err.Error(), "connection refused")
}
