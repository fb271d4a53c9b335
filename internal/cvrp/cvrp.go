// Package cvrp solves the capacitated vehicle routing problem that
// assigns students to buses and orders each bus's pickups. Construction
// is a cheapest-arc insertion heuristic; the hot loop never touches the
// routing-client collaborator, only the precomputed distance matrix.
package cvrp

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/katalvlaran/lvlath/matrix"
	"github.com/katalvlaran/lvlath/tsp"

	"schoolbus-router/internal/geo"
	"schoolbus-router/internal/models"
)

// ErrNoSolution is returned when the solver proves infeasible, exhausts
// its wall-clock budget with no feasible assignment, or the requested
// fleet size cannot carry every student at the given capacity.
var ErrNoSolution = errors.New("cvrp: no feasible solution within budget")

const depotIndex = 0

// Config carries the tunables that shape both construction and
// per-route accounting.
type Config struct {
	Capacity           int
	Budget             time.Duration
	PickupDwellSeconds float64
	AverageSpeedKmh    float64
}

type routeBuilder struct {
	stops []int // indices into students; matrix row/col is stops[i]+1
}

// Solve assigns students to up to fleet routes and orders each route's
// stops. dm must be the matrix built over (school, students) in that
// exact order - dm index 0 is the depot, index i+1 is students[i].
func Solve(ctx context.Context, school models.Point, students []models.Student, fleet int, dm *models.DistanceMatrix, cfg Config) ([]models.Route, error) {
	n := len(students)
	if fleet <= 0 || cfg.Capacity <= 0 {
		return nil, ErrNoSolution
	}
	if n == 0 {
		return nil, nil
	}
	if n > fleet*cfg.Capacity {
		log.Printf("[CVRP] infeasible: students=%d fleet=%d capacity=%d", n, fleet, cfg.Capacity)
		return nil, ErrNoSolution
	}

	deadline := time.Now().Add(cfg.Budget)

	routes := make([]*routeBuilder, fleet)
	for i := range routes {
		routes[i] = &routeBuilder{}
	}

	unassigned := make([]int, n)
	for i := range unassigned {
		unassigned[i] = i
	}

	if err := construct(ctx, routes, unassigned, dm, cfg, deadline); err != nil {
		return nil, err
	}

	for _, route := range routes {
		if len(route.stops) >= 3 {
			polish(route, dm, deadline)
		}
	}

	var result []models.Route
	for _, route := range routes {
		if len(route.stops) == 0 {
			continue // degenerate vehicle, dropped per §4.5
		}
		result = append(result, extractRoute(school, students, route.stops, dm, cfg))
	}

	if len(result) == 0 {
		return nil, ErrNoSolution
	}

	return result, nil
}

// construct runs cheapest-arc insertion: repeatedly pick the
// (student, route, position) triple with the least insertion cost
// until every student is placed or the budget is exhausted.
func construct(ctx context.Context, routes []*routeBuilder, unassigned []int, dm *models.DistanceMatrix, cfg Config, deadline time.Time) error {
	for len(unassigned) > 0 {
		select {
		case <-ctx.Done():
			return ErrNoSolution
		default:
		}
		if time.Now().After(deadline) {
			return ErrNoSolution
		}

		bestCost := math.Inf(1)
		bestRoute := -1
		bestPos := -1
		bestUnassignedPos := -1

		for ui, studentIdx := range unassigned {
			for ri, route := range routes {
				if len(route.stops) >= cfg.Capacity {
					continue
				}
				for pos := 0; pos <= len(route.stops); pos++ {
					cost := insertionCost(dm, route.stops, studentIdx, pos)
					if cost < bestCost {
						bestCost = cost
						bestRoute = ri
						bestPos = pos
						bestUnassignedPos = ui
					}
				}
			}
		}

		if bestRoute == -1 {
			return ErrNoSolution
		}

		studentIdx := unassigned[bestUnassignedPos]
		routes[bestRoute].stops = insertAt(routes[bestRoute].stops, studentIdx, bestPos)
		unassigned = removeAt(unassigned, bestUnassignedPos)
	}

	return nil
}

// insertionCost is the added tour distance (meters) from inserting
// studentIdx at position pos in stops, closing the tour at the depot
// on both ends.
func insertionCost(dm *models.DistanceMatrix, stops []int, studentIdx, pos int) float64 {
	prev := depotIndex
	if pos > 0 {
		prev = stops[pos-1] + 1
	}

	next := depotIndex
	if pos < len(stops) {
		next = stops[pos] + 1
	}

	studentNode := studentIdx + 1

	return float64(dm.Meters[prev][studentNode]+dm.Meters[studentNode][next]-dm.Meters[prev][next])
}

func insertAt(stops []int, studentIdx, pos int) []int {
	out := make([]int, 0, len(stops)+1)
	out = append(out, stops[:pos]...)
	out = append(out, studentIdx)
	out = append(out, stops[pos:]...)
	return out
}

func removeAt(xs []int, pos int) []int {
	out := make([]int, 0, len(xs)-1)
	out = append(out, xs[:pos]...)
	out = append(out, xs[pos+1:]...)
	return out
}

// polish reorders a route's stops with a 2-opt local search over the
// closed depot tour, substituting the whole route unchanged if the
// solver errors or the budget has already elapsed.
func polish(route *routeBuilder, dm *models.DistanceMatrix, deadline time.Time) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return
	}

	n := len(route.stops) + 1
	dense, err := matrix.NewDense(n, n)
	if err != nil {
		return
	}

	nodes := make([]int, n)
	nodes[0] = depotIndex
	for i, s := range route.stops {
		nodes[i+1] = s + 1
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if err := dense.Set(i, j, float64(dm.Meters[nodes[i]][nodes[j]])); err != nil {
				return
			}
		}
	}

	opts := tsp.DefaultOptions()
	opts.Algo = tsp.TwoOptOnly
	opts.Symmetric = true
	opts.TimeLimit = remaining

	res, err := tsp.SolveWithMatrix(dense, nil, opts)
	if err != nil {
		log.Printf("[CVRP] polish skipped: %v", err)
		return
	}
	if len(res.Tour) != n+1 {
		return
	}

	polished := make([]int, 0, len(route.stops))
	for _, idx := range res.Tour[1:n] {
		polished = append(polished, nodes[idx]-1)
	}
	route.stops = polished
}

// extractRoute walks the closed depot tour and builds per-segment
// accounting per §4.5: distance and time come from the matrix, with a
// fixed pickup dwell added per student.
func extractRoute(school models.Point, students []models.Student, stops []int, dm *models.DistanceMatrix, cfg Config) models.Route {
	ordered := make([]models.Student, len(stops))
	for i, idx := range stops {
		ordered[i] = students[idx]
	}

	points := make([]models.Point, len(stops)+2)
	names := make([]string, len(stops)+2)
	points[0] = school
	for i, s := range ordered {
		points[i+1] = s.Point
		names[i+1] = s.Name
	}
	points[len(points)-1] = school
	names[len(names)-1] = "Return to School"

	segments := make([]models.RouteSegment, 0, len(points)-1)
	var totalKm float64
	var totalSeconds float64

	for i := 0; i < len(points)-1; i++ {
		fromNode := depotIndex
		if i > 0 {
			fromNode = stops[i-1] + 1
		}
		toNode := depotIndex
		if i < len(stops) {
			toNode = stops[i] + 1
		}

		km := float64(dm.Meters[fromNode][toNode]) / 1000.0
		seconds := geo.EstimateTravelTimeSeconds(km, cfg.AverageSpeedKmh)

		segments = append(segments, models.RouteSegment{
			From:        points[i],
			To:          points[i+1],
			StudentName: names[i+1],
			DistanceKm:  km,
			TimeSeconds: seconds,
		})

		totalKm += km
		totalSeconds += seconds
	}

	totalSeconds += cfg.PickupDwellSeconds * float64(len(ordered))

	return models.Route{
		Students:     ordered,
		Segments:     segments,
		DistanceKm:   totalKm,
		TimeSeconds:  int(totalSeconds + 0.5),
		StudentCount: len(ordered),
	}
}
