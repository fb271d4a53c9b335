// Package distancematrix builds the symmetric integer-meter distance
// matrix over {school} ∪ students that the CVRP solver optimizes
// against. It is pure CPU-bound work with no I/O (§4.2): the real
// routing collaborator is deliberately not consulted here, because a
// fleet sweep would otherwise need O(n²) external calls per attempt.
package distancematrix

import (
	"context"

	"golang.org/x/sync/errgroup"

	"schoolbus-router/internal/geo"
	"schoolbus-router/internal/models"
)

// pair is one unordered (i, j) index pair in the matrix above the
// diagonal.
type pair struct {
	i, j int
}

// Build constructs the n x n distance matrix over school followed by
// students, in meters. Every unordered pair's geodesic distance is
// scaled by roadFactor to approximate driving distance, then rounded
// to an integer.
//
// Pair computation is embarrassingly parallel (§5 point (a)); ctx
// cancellation aborts any pairs still in flight.
func Build(ctx context.Context, school models.Point, students []models.Student, roadFactor, earthRadiusKm float64) (*models.DistanceMatrix, error) {
	n := len(students) + 1
	points := make([]models.Point, n)
	points[0] = school
	for i, s := range students {
		points[i+1] = s.Point
	}

	meters := make([][]int, n)
	for i := range meters {
		meters[i] = make([]int, n)
	}

	var pairs []pair
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, pair{i, j})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make([]int, len(pairs))

	for idx, p := range pairs {
		idx, p := idx, p
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			km := geo.HaversineKm(points[p.i], points[p.j], earthRadiusKm)
			results[idx] = int(km*roadFactor*1000 + 0.5)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for idx, p := range pairs {
		meters[p.i][p.j] = results[idx]
		meters[p.j][p.i] = results[idx]
	}

	return &models.DistanceMatrix{Meters: meters}, nil
}
