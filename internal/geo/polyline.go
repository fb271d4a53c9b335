package geo

import (
	polyline "github.com/twpayne/go-polyline"

	"schoolbus-router/internal/models"
)

// DecodePolyline decodes the standard Google-encoded-polyline ASCII
// format into a sequence of points. Malformed input never fails
// loudly: per spec it returns an empty sequence so the caller can fall
// back to a straight-line two-point geometry.
func DecodePolyline(encoded string) []models.Point {
	if encoded == "" {
		return nil
	}

	coords, remaining, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil || len(remaining) != 0 {
		return nil
	}

	points := make([]models.Point, len(coords))
	for i, c := range coords {
		points[i] = models.Point{Lat: c[0], Lng: c[1]}
	}
	return points
}

// EncodePolyline encodes a sequence of points back into the
// Google-encoded-polyline ASCII format. Used only by tests to verify
// the round-trip property (P6); the core never re-encodes geometry it
// receives from the routing collaborator.
func EncodePolyline(points []models.Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lng}
	}
	return string(polyline.EncodeCoords(coords))
}

// StraightLineGeometry is the two-point fallback geometry used when a
// routing collaborator call fails or returns no usable polyline.
func StraightLineGeometry(from, to models.Point) []models.Point {
	return []models.Point{from, to}
}
