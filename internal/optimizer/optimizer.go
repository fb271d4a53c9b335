// Package optimizer orchestrates a full optimization request: analyze
// the student distribution, choose a routing strategy, run the CVRP
// solver one or more times, and enrich the chosen plan with real road
// geometry.
package optimizer

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"schoolbus-router/internal/cluster"
	"schoolbus-router/internal/cvrp"
	"schoolbus-router/internal/distancematrix"
	"schoolbus-router/internal/geo"
	"schoolbus-router/internal/models"
	"schoolbus-router/internal/routingclient"
)

// ErrMissingSchool is returned when no school location was supplied.
type ErrMissingSchool struct{}

func (e *ErrMissingSchool) Error() string { return "optimizer: school location is required" }

// ErrNoStudents is returned when the student list is empty.
type ErrNoStudents struct{}

func (e *ErrNoStudents) Error() string { return "optimizer: at least one student is required" }

// ErrInfeasibleCapacity is returned when the student count exceeds what
// max_buses * capacity can carry.
type ErrInfeasibleCapacity struct {
	Students int
	MaxBuses int
	Capacity int
}

func (e *ErrInfeasibleCapacity) Error() string {
	return fmt.Sprintf("optimizer: %d students exceed capacity for %d bus(es) at %d seats each",
		e.Students, e.MaxBuses, e.Capacity)
}

// ErrInternal signals an invariant violation detected after solving;
// the Plan is discarded rather than returned with bad data.
type ErrInternal struct {
	Reason string
}

func (e *ErrInternal) Error() string { return "optimizer: internal invariant violated: " + e.Reason }

// Config bundles every tunable the orchestrator and its collaborators
// need; it is typically built from internal/config.Config.
type Config struct {
	Capacity                int
	PickupDwellSeconds      float64
	RoadFactor              float64
	AverageSpeedKmh         float64
	EarthRadiusKm           float64
	ClusterEpsilonDeg       float64
	ClusterMinPoints        int
	FarApartThresholdKm     float64
	SolverBudget            time.Duration
	SpeedModeThreshold      time.Duration
	FleetSlack              float64
	MinVisualizationRadiusM float64
}

// Optimizer runs full optimization requests against a routing-client
// collaborator.
type Optimizer struct {
	cfg    Config
	router *routingclient.FallbackClient
}

// New builds an Optimizer. inner may be nil; a nil inner client always
// falls back to geodesic estimates during enrichment.
func New(cfg Config, inner routingclient.Client) *Optimizer {
	return &Optimizer{
		cfg:    cfg,
		router: routingclient.NewFallbackClient(inner, cfg.AverageSpeedKmh, cfg.EarthRadiusKm),
	}
}

// Optimize runs the full ANALYZE -> strategy -> solve -> ENRICH
// pipeline for one request.
func (o *Optimizer) Optimize(ctx context.Context, school models.Point, students []models.Student, maxBuses int) (models.Plan, error) {
	if school == (models.Point{}) {
		return models.Plan{}, &ErrMissingSchool{}
	}
	if len(students) == 0 {
		return models.Plan{}, &ErrNoStudents{}
	}
	if maxBuses <= 0 {
		maxBuses = 3
	}
	if len(students) > maxBuses*o.cfg.Capacity {
		return models.Plan{}, &ErrInfeasibleCapacity{Students: len(students), MaxBuses: maxBuses, Capacity: o.cfg.Capacity}
	}

	analysis := cluster.Analyze(students, school, cluster.Config{
		EpsilonDeg:          o.cfg.ClusterEpsilonDeg,
		MinPoints:           o.cfg.ClusterMinPoints,
		Capacity:            o.cfg.Capacity,
		FarApartThresholdKm: o.cfg.FarApartThresholdKm,
		EarthRadiusKm:       o.cfg.EarthRadiusKm,
		MinVisualRadiusM:    o.cfg.MinVisualizationRadiusM,
	})
	log.Printf("[OPTIMIZE] clusters=%d isolated=%d strategy=%s recommended_fleet=%d",
		len(analysis.Clusters), len(analysis.Isolated), analysis.Strategy, analysis.RecommendedFleet)

	var (
		routes []models.Route
		note   string
		err    error
	)

	if analysis.Strategy == models.FarApart {
		routes, note, err = o.routePerCluster(ctx, school, students, analysis)
	} else {
		routes, note, err = o.sweepFleetSizes(ctx, school, students, maxBuses, analysis.RecommendedFleet)
	}
	if err != nil {
		log.Printf("[OPTIMIZE] no solution: %v", err)
		return models.Plan{
			Routes:               nil,
			TotalBuses:           0,
			OptimizationNote:     "NO_SOLUTION",
			ClusterVisualization: analysis.Visualization,
		}, nil
	}

	if err := validateCoverage(students, routes, o.cfg.Capacity); err != nil {
		return models.Plan{}, &ErrInternal{Reason: err.Error()}
	}

	o.enrich(ctx, routes)

	return assemblePlan(routes, note, analysis.Visualization), nil
}

// routePerCluster implements the FAR_APART branch: isolated students
// attach to their geodesically nearest cluster centroid, then each
// cluster is solved independently.
func (o *Optimizer) routePerCluster(ctx context.Context, school models.Point, students []models.Student, analysis models.ClusterAnalysis) ([]models.Route, string, error) {
	byID := make(map[string]models.Student, len(students))
	for _, s := range students {
		byID[s.ID] = s
	}

	groups := make([][]models.Student, len(analysis.Clusters))
	for i, c := range analysis.Clusters {
		members := make([]models.Student, 0, len(c.Members))
		for _, id := range c.Members {
			members = append(members, byID[id])
		}
		groups[i] = members
	}

	for _, isoID := range analysis.Isolated {
		iso, ok := byID[isoID]
		if !ok {
			continue
		}
		nearest := 0
		minDist := math.Inf(1)
		for i, c := range analysis.Clusters {
			d := geo.HaversineKm(iso.Point, c.Centroid, o.cfg.EarthRadiusKm)
			if d < minDist {
				minDist = d
				nearest = i
			}
		}
		if len(groups) > 0 {
			groups[nearest] = append(groups[nearest], iso)
		}
	}

	type clusterResult struct {
		routes []models.Route
		km     float64
		maxSec float64
	}

	results := make([]clusterResult, len(groups))
	g, gctx := errgroup.WithContext(ctx)

	for i, members := range groups {
		i, members := i, members
		g.Go(func() error {
			if len(members) == 0 {
				return nil
			}
			fleet := busesFor(len(members), o.cfg.Capacity)
			dm, err := distancematrix.Build(gctx, school, members, o.cfg.RoadFactor, o.cfg.EarthRadiusKm)
			if err != nil {
				return err
			}
			routes, err := cvrp.Solve(gctx, school, members, fleet, dm, o.solverConfig())
			if err != nil {
				log.Printf("[OPTIMIZE] cluster %d produced no routes: %v", i, err)
				return nil
			}
			var km, maxSec float64
			for _, r := range routes {
				km += r.DistanceKm
				if float64(r.TimeSeconds) > maxSec {
					maxSec = float64(r.TimeSeconds)
				}
			}
			results[i] = clusterResult{routes: routes, km: km, maxSec: maxSec}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	var allRoutes []models.Route
	var totalKm, maxTime float64
	for _, r := range results {
		allRoutes = append(allRoutes, r.routes...)
		totalKm += r.km
		if r.maxSec > maxTime {
			maxTime = r.maxSec
		}
	}

	if len(allRoutes) == 0 {
		return nil, "", cvrp.ErrNoSolution
	}

	note := fmt.Sprintf("Using %d bus(es) - cluster-based routing (%d clusters, %.1fkm apart)",
		len(allRoutes), len(analysis.Clusters), analysis.MeanInterClusterKm)
	return allRoutes, note, nil
}

// sweepFleetSizes implements SWEEP_FLEET_SIZES + SELECT.
func (o *Optimizer) sweepFleetSizes(ctx context.Context, school models.Point, students []models.Student, maxBuses, recommendedFleet int) ([]models.Route, string, error) {
	dm, err := distancematrix.Build(ctx, school, students, o.cfg.RoadFactor, o.cfg.EarthRadiusKm)
	if err != nil {
		return nil, "", err
	}

	candidateSizes := []int{1}
	upper := recommendedFleet
	if maxBuses < upper {
		upper = maxBuses
	}
	for k := 2; k <= upper; k++ {
		candidateSizes = append(candidateSizes, k)
	}

	type candidate struct {
		routes  []models.Route
		maxTime float64
		totalKm float64
	}

	var candidates []candidate
	for _, k := range candidateSizes {
		routes, err := cvrp.Solve(ctx, school, students, k, dm, o.solverConfig())
		if err != nil {
			log.Printf("[OPTIMIZE] fleet=%d produced no routes: %v", k, err)
			continue
		}
		var maxTime, totalKm float64
		for _, r := range routes {
			if float64(r.TimeSeconds) > maxTime {
				maxTime = float64(r.TimeSeconds)
			}
			totalKm += r.DistanceKm
		}
		candidates = append(candidates, candidate{routes: routes, maxTime: maxTime, totalKm: totalKm})
	}

	if len(candidates) == 0 {
		return nil, "", cvrp.ErrNoSolution
	}

	minMaxTime := math.Inf(1)
	for _, c := range candidates {
		if c.maxTime < minMaxTime {
			minMaxTime = c.maxTime
		}
	}

	if minMaxTime > o.cfg.SpeedModeThreshold.Seconds() {
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.maxTime < best.maxTime {
				best = c
			}
		}
		note := fmt.Sprintf("Using %d bus(es) - prioritizing speed", len(best.routes))
		return best.routes, note, nil
	}

	threshold := minMaxTime * (1 + o.cfg.FleetSlack)
	var eligible []candidate
	for _, c := range candidates {
		if c.maxTime <= threshold {
			eligible = append(eligible, c)
		}
	}

	// Rank and select by the realized route count (degenerate vehicles
	// dropped), not the requested fleet size - that's what Plan.TotalBuses
	// reports, and the two must agree.
	best := eligible[0]
	for _, c := range eligible[1:] {
		if len(c.routes) < len(best.routes) || (len(c.routes) == len(best.routes) && c.totalKm < best.totalKm) {
			best = c
		}
	}

	note := fmt.Sprintf("Using %d bus(es) - optimal balance", len(best.routes))
	return best.routes, note, nil
}

func (o *Optimizer) solverConfig() cvrp.Config {
	return cvrp.Config{
		Capacity:           o.cfg.Capacity,
		Budget:             o.cfg.SolverBudget,
		PickupDwellSeconds: o.cfg.PickupDwellSeconds,
		AverageSpeedKmh:    o.cfg.AverageSpeedKmh,
	}
}

// enrich calls the routing-client collaborator once per segment across
// every route, in parallel, and overwrites each segment's distance,
// time, and geometry with the real result. Failures never surface:
// FallbackClient already absorbed them into a geodesic estimate.
func (o *Optimizer) enrich(ctx context.Context, routes []models.Route) {
	type target struct {
		route, segment int
	}

	var targets []target
	for ri, r := range routes {
		for si := range r.Segments {
			targets = append(targets, target{ri, si})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			seg := &routes[t.route].Segments[t.segment]
			info := o.router.Route(gctx, seg.From, seg.To)
			seg.DistanceKm = info.DistanceKm
			seg.TimeSeconds = info.TimeSeconds
			seg.Geometry = info.Geometry
			return nil
		})
	}
	_ = g.Wait()

	for i := range routes {
		o.recomputeRouteTotals(&routes[i])
	}
}

func (o *Optimizer) recomputeRouteTotals(r *models.Route) {
	var km, seconds float64
	for _, seg := range r.Segments {
		km += seg.DistanceKm
		seconds += seg.TimeSeconds
	}
	seconds += o.cfg.PickupDwellSeconds * float64(r.StudentCount)
	r.DistanceKm = km
	r.TimeSeconds = int(seconds + 0.5)
}

func validateCoverage(students []models.Student, routes []models.Route, capacity int) error {
	seen := make(map[string]bool, len(students))
	for _, r := range routes {
		if r.StudentCount > capacity {
			return fmt.Errorf("route exceeds capacity: %d students", r.StudentCount)
		}
		for _, s := range r.Students {
			if seen[s.ID] {
				return fmt.Errorf("student %s appears in more than one route", s.ID)
			}
			seen[s.ID] = true
		}
	}
	if len(seen) != len(students) {
		return fmt.Errorf("coverage mismatch: expected %d students, routed %d", len(students), len(seen))
	}
	return nil
}

func assemblePlan(routes []models.Route, note string, viz models.ClusterVisualization) models.Plan {
	var totalDistance, maxMinutes float64
	for _, r := range routes {
		totalDistance += r.DistanceKm
		if m := r.TimeMinutes(); m > maxMinutes {
			maxMinutes = m
		}
	}

	return models.Plan{
		Routes:               routes,
		TotalBuses:           len(routes),
		MaxRouteTimeMinutes:  models.RoundTo(maxMinutes, 1),
		TotalDistanceKm:      models.RoundTo(totalDistance, 2),
		OptimizationNote:     note,
		ClusterVisualization: viz,
	}
}

func busesFor(students, capacity int) int {
	if students == 0 {
		return 0
	}
	n := (students + capacity - 1) / capacity
	if n < 1 {
		return 1
	}
	return n
}
