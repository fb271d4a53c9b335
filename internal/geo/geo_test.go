package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolbus-router/internal/models"
)

const earthRadiusKm = 6371.0

func TestHaversineKm_SamePointIsZero(t *testing.T) {
	p := models.Point{Lat: 1.35, Lng: 103.82}
	assert.Equal(t, 0.0, HaversineKm(p, p, earthRadiusKm))
}

func TestHaversineKm_BoundedByAntipodalDistance(t *testing.T) {
	a := models.Point{Lat: 1.3, Lng: 103.8}
	b := models.Point{Lat: -1.3, Lng: -76.2}
	km := HaversineKm(a, b, earthRadiusKm)

	assert.GreaterOrEqual(t, km, 0.0)
	assert.LessOrEqual(t, km, earthRadiusKm*3.14159265+1e-6)
}

func TestHaversineKm_KnownDistance(t *testing.T) {
	// Two points ~1 degree of latitude apart, roughly 111km.
	a := models.Point{Lat: 1.0, Lng: 103.0}
	b := models.Point{Lat: 2.0, Lng: 103.0}
	km := HaversineKm(a, b, earthRadiusKm)

	assert.InDelta(t, 111.19, km, 1.0)
}

func TestEstimateTravelTimeSeconds(t *testing.T) {
	seconds := EstimateTravelTimeSeconds(30, 30)
	assert.Equal(t, 3600.0, seconds)
}

func TestDecodePolyline_RoundTrip(t *testing.T) {
	points := []models.Point{
		{Lat: 38.5, Lng: -120.2},
		{Lat: 40.7, Lng: -120.95},
		{Lat: 43.252, Lng: -126.453},
	}

	encoded := EncodePolyline(points)
	require.NotEmpty(t, encoded)

	decoded := DecodePolyline(encoded)
	require.Len(t, decoded, len(points))
	for i := range points {
		assert.InDelta(t, points[i].Lat, decoded[i].Lat, 1e-5)
		assert.InDelta(t, points[i].Lng, decoded[i].Lng, 1e-5)
	}
}

func TestDecodePolyline_MalformedReturnsEmpty(t *testing.T) {
	// 0xFF lies outside the encoding's printable byte range, so the
	// decoder rejects it as invalid input and the wrapper must swallow
	// the error rather than propagate it.
	decoded := DecodePolyline(string([]byte{0xFF}))
	assert.Empty(t, decoded)
}

func TestDecodePolyline_Empty(t *testing.T) {
	assert.Empty(t, DecodePolyline(""))
}

func TestStraightLineGeometry(t *testing.T) {
	a := models.Point{Lat: 1, Lng: 2}
	b := models.Point{Lat: 3, Lng: 4}
	geometry := StraightLineGeometry(a, b)
	require.Len(t, geometry, 2)
	assert.Equal(t, a, geometry[0])
	assert.Equal(t, b, geometry[1])
}
