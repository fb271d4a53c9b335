// Package models defines the value types shared across the routing
// engine: geographic points, the school and its students, the
// distance matrix, cluster analysis, and the final route plan.
package models

import "encoding/json"

// Point is an immutable geographic coordinate in decimal degrees, WGS84.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Student is a pickup point the plan must visit exactly once.
type Student struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Postal  string `json:"postal"`
	Address string `json:"address"`
	Point   Point  `json:"point"`
}

// School is the depot: every route starts and ends here.
type School struct {
	Name    string `json:"name"`
	Postal  string `json:"postal"`
	Address string `json:"address"`
	Point   Point  `json:"point"`
}

// DistanceMatrix is an n x n symmetric matrix of integer meters over
// {school} ∪ students. Index 0 is the school; index i in [1,n-1] is
// students[i-1].
type DistanceMatrix struct {
	Meters [][]int
}

// N returns the matrix dimension.
func (m *DistanceMatrix) N() int {
	return len(m.Meters)
}

// NoiseClusterID is the sentinel cluster id that denotes an isolated
// student (the DBSCAN noise label).
const NoiseClusterID = -1

// Cluster is one dense group of students found by the analyzer.
// Noise is not a cluster; isolated students belong to no Cluster and
// are listed by ID on ClusterAnalysis.Isolated.
type Cluster struct {
	ID                 int
	Members            []string // student IDs
	Centroid           Point
	SpreadKm           float64 // max intra-cluster geodesic km
	DistanceFromSchool float64 // geodesic km, centroid to school
}

// Strategy names the route-optimizer branch chosen from the cluster
// analysis.
type Strategy int

const (
	// CloseOrSingle means clusters (if any) are close enough, or there
	// is at most one, to share a fleet swept across candidate sizes.
	CloseOrSingle Strategy = iota
	// FarApart means clusters are far enough apart that each should be
	// routed independently.
	FarApart
)

func (s Strategy) String() string {
	if s == FarApart {
		return "FAR_APART"
	}
	return "CLOSE_OR_SINGLE"
}

// ClusterAnalysis is the result of one density-based clustering pass
// over a student set, produced once per plan.
type ClusterAnalysis struct {
	Clusters           []Cluster
	Isolated           []string // student IDs not in any cluster
	MeanInterClusterKm float64
	RecommendedFleet   int
	Strategy           Strategy
	Visualization      ClusterVisualization
}

// ClusterVisualization is the map-rendering payload for a cluster
// analysis: per-cluster circles and per-isolated-student markers.
type ClusterVisualization struct {
	Clusters []ClusterVisual  `json:"clusters"`
	Isolated []IsolatedVisual `json:"isolated"`
}

// ClusterVisual describes one cluster's display circle.
type ClusterVisual struct {
	ID                 int     `json:"id"`
	Center             Point   `json:"center"`
	RadiusM            float64 `json:"radius"`
	Size               int     `json:"size"`
	DistanceFromSchool float64 `json:"distance_from_school"`
}

// IsolatedVisual describes one isolated student's marker.
type IsolatedVisual struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// RouteSegment is one leg of a route: either school-to-student,
// student-to-student, or the final student-to-school return leg.
// Geometry is populated only for the final chosen plan (§4.6 ENRICH).
type RouteSegment struct {
	From        Point   `json:"from"`
	To          Point   `json:"to"`
	StudentName string  `json:"student"` // student name, or "Return to School"
	DistanceKm  float64 `json:"distance"`
	TimeSeconds float64 `json:"time"`
	Geometry    []Point `json:"-"`
}

// routeSegmentJSON mirrors RouteSegment for the stable §6 payload,
// where geometry is an array of [lat,lng] pairs rather than {lat,lng}
// objects - the wire shape the decoded polyline collaborator data uses.
type routeSegmentJSON struct {
	From        Point        `json:"from"`
	To          Point        `json:"to"`
	StudentName string       `json:"student"`
	DistanceKm  float64      `json:"distance"`
	TimeSeconds float64      `json:"time"`
	Geometry    [][2]float64 `json:"geometry,omitempty"`
}

// MarshalJSON emits Geometry as [[lat,lng],...] per the stable payload
// field set, instead of the {lat,lng} object form From/To use.
func (s RouteSegment) MarshalJSON() ([]byte, error) {
	var geometry [][2]float64
	if len(s.Geometry) > 0 {
		geometry = make([][2]float64, len(s.Geometry))
		for i, p := range s.Geometry {
			geometry[i] = [2]float64{p.Lat, p.Lng}
		}
	}
	return json.Marshal(routeSegmentJSON{
		From:        s.From,
		To:          s.To,
		StudentName: s.StudentName,
		DistanceKm:  s.DistanceKm,
		TimeSeconds: s.TimeSeconds,
		Geometry:    geometry,
	})
}

// UnmarshalJSON accepts the same [[lat,lng],...] geometry shape
// MarshalJSON produces.
func (s *RouteSegment) UnmarshalJSON(data []byte) error {
	var parsed routeSegmentJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	s.From = parsed.From
	s.To = parsed.To
	s.StudentName = parsed.StudentName
	s.DistanceKm = parsed.DistanceKm
	s.TimeSeconds = parsed.TimeSeconds
	if len(parsed.Geometry) > 0 {
		s.Geometry = make([]Point, len(parsed.Geometry))
		for i, pair := range parsed.Geometry {
			s.Geometry[i] = Point{Lat: pair[0], Lng: pair[1]}
		}
	}
	return nil
}

// Route is one bus tour: it starts and ends at the school and visits
// an ordered subset of students in between.
type Route struct {
	Students     []Student      `json:"students"`
	Segments     []RouteSegment `json:"segments"`
	DistanceKm   float64        `json:"distance_km"`
	TimeSeconds  int            `json:"time_seconds"`
	StudentCount int            `json:"student_count"`
}

// TimeMinutes returns the route duration in minutes, rounded to one
// decimal place, for the stable JSON payload.
func (r *Route) TimeMinutes() float64 {
	return roundTo(float64(r.TimeSeconds)/60.0, 1)
}

// Plan is the full result returned to the caller.
type Plan struct {
	Routes               []Route              `json:"routes"`
	TotalBuses           int                  `json:"total_buses"`
	MaxRouteTimeMinutes  float64              `json:"max_route_time_minutes"`
	TotalDistanceKm      float64              `json:"total_distance_km"`
	OptimizationNote     string               `json:"optimization_note"`
	ClusterVisualization ClusterVisualization `json:"cluster_visualization"`
}

func roundTo(v float64, decimals int) float64 {
	scale := 1.0
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	return float64(int(v*scale+0.5)) / scale
}

// RoundTo exposes the rounding helper used throughout the engine to
// build the stable, decimal-limited JSON payload fields.
func RoundTo(v float64, decimals int) float64 {
	return roundTo(v, decimals)
}
