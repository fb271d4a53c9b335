// Package cluster groups students into density-based pickup clusters so
// the optimizer can decide between routing clusters independently and
// sweeping fleet sizes over the whole roster. The algorithm is DBSCAN
// over raw lat/lng: eps is a small angular radius rather than a metric
// distance, which is acceptable at neighborhood scale.
package cluster

import (
	"math"
	"sort"

	"schoolbus-router/internal/geo"
	"schoolbus-router/internal/models"
)

// Config holds the tunables that drive both the clustering pass and the
// downstream strategy/fleet recommendation.
type Config struct {
	EpsilonDeg          float64
	MinPoints           int
	Capacity            int
	FarApartThresholdKm float64
	EarthRadiusKm       float64
	MinVisualRadiusM    float64
}

// label values used internally before clusters are renumbered for
// output; unvisited is never exposed outside this package.
const (
	unvisited = 0
	noise     = -1
)

// Analyze runs DBSCAN over the students' coordinates and derives the
// cluster/strategy/fleet recommendation described for the analyzer
// stage. With fewer than two students it returns a trivial
// CloseOrSingle analysis: one cluster holding the lone student, or no
// cluster at all when there are no students.
func Analyze(students []models.Student, school models.Point, cfg Config) models.ClusterAnalysis {
	if len(students) < 2 {
		return trivialAnalysis(students, school, cfg)
	}

	labels := runDBSCAN(students, cfg.EpsilonDeg, cfg.MinPoints)

	clusterIDs := distinctPositiveLabels(labels)
	sort.Ints(clusterIDs)

	clusters := make([]models.Cluster, 0, len(clusterIDs))
	for outputID, rawLabel := range clusterIDs {
		members := membersOf(students, labels, rawLabel)
		clusters = append(clusters, buildCluster(outputID, members, school, cfg))
	}

	isolated := isolatedIDs(students, labels)

	meanInterClusterKm := meanPairwiseCentroidDistance(clusters, cfg.EarthRadiusKm)
	strategy, recommendedFleet := recommendStrategy(clusters, isolated, meanInterClusterKm, cfg)

	return models.ClusterAnalysis{
		Clusters:           clusters,
		Isolated:           isolated,
		MeanInterClusterKm: meanInterClusterKm,
		RecommendedFleet:   recommendedFleet,
		Strategy:           strategy,
		Visualization:      buildVisualization(clusters, students, isolated, cfg),
	}
}

func trivialAnalysis(students []models.Student, school models.Point, cfg Config) models.ClusterAnalysis {
	fleet := busesFor(len(students), cfg.Capacity)
	var clusters []models.Cluster
	if len(students) > 0 {
		clusters = []models.Cluster{buildCluster(0, students, school, cfg)}
	}
	return models.ClusterAnalysis{
		Clusters:         clusters,
		Isolated:         nil,
		RecommendedFleet: fleet,
		Strategy:         models.CloseOrSingle,
		Visualization:    buildVisualization(clusters, students, nil, cfg),
	}
}

// runDBSCAN returns a label per student: a positive integer cluster id,
// or noise (-1). Label identity (not value) distinguishes clusters; the
// raw integers are renumbered to dense 0..k-1 ids by the caller.
func runDBSCAN(students []models.Student, eps float64, minPoints int) []int {
	n := len(students)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	neighborCache := make([][]int, n)
	for i := range neighborCache {
		neighborCache[i] = regionQuery(students, i, eps)
	}

	nextClusterID := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}

		neighbors := neighborCache[i]
		if len(neighbors)+1 < minPoints { // +1 counts the point itself, matching DBSCAN(min_samples=minPoints)
			labels[i] = noise
			continue
		}

		nextClusterID++
		labels[i] = nextClusterID
		expandCluster(students, labels, neighborCache, neighbors, nextClusterID, minPoints)
	}

	return labels
}

func expandCluster(students []models.Student, labels []int, neighborCache [][]int, seeds []int, clusterID, minPoints int) {
	queue := append([]int(nil), seeds...)

	for idx := 0; idx < len(queue); idx++ {
		point := queue[idx]

		if labels[point] == noise {
			labels[point] = clusterID
		}
		if labels[point] != unvisited {
			continue
		}

		labels[point] = clusterID
		neighbors := neighborCache[point]
		if len(neighbors)+1 >= minPoints {
			queue = append(queue, neighbors...)
		}
	}
}

func regionQuery(students []models.Student, i int, eps float64) []int {
	var neighbors []int
	for j := range students {
		if i == j {
			continue
		}
		if angularDistance(students[i].Point, students[j].Point) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

// angularDistance is plain Euclidean distance in degrees, matching the
// eps=0.03 degree threshold: the clustering pass runs at a scale small
// enough that this is an adequate proxy for ground distance.
func angularDistance(a, b models.Point) float64 {
	dLat := a.Lat - b.Lat
	dLng := a.Lng - b.Lng
	return math.Sqrt(dLat*dLat + dLng*dLng)
}

func distinctPositiveLabels(labels []int) []int {
	seen := make(map[int]bool)
	var ids []int
	for _, l := range labels {
		if l > 0 && !seen[l] {
			seen[l] = true
			ids = append(ids, l)
		}
	}
	return ids
}

func membersOf(students []models.Student, labels []int, rawLabel int) []models.Student {
	var members []models.Student
	for i, s := range students {
		if labels[i] == rawLabel {
			members = append(members, s)
		}
	}
	return members
}

func isolatedIDs(students []models.Student, labels []int) []string {
	var ids []string
	for i, s := range students {
		if labels[i] == noise {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

func buildCluster(id int, members []models.Student, school models.Point, cfg Config) models.Cluster {
	ids := make([]string, len(members))
	var sumLat, sumLng float64
	for i, s := range members {
		ids[i] = s.ID
		sumLat += s.Point.Lat
		sumLng += s.Point.Lng
	}

	centroid := models.Point{}
	if len(members) > 0 {
		centroid = models.Point{Lat: sumLat / float64(len(members)), Lng: sumLng / float64(len(members))}
	}

	spread := maxPairwiseDistance(members, cfg.EarthRadiusKm)
	distFromSchool := geo.HaversineKm(school, centroid, cfg.EarthRadiusKm)

	return models.Cluster{
		ID:                 id,
		Members:            ids,
		Centroid:           centroid,
		SpreadKm:           spread,
		DistanceFromSchool: distFromSchool,
	}
}

func maxPairwiseDistance(members []models.Student, earthRadiusKm float64) float64 {
	max := 0.0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			d := geo.HaversineKm(members[i].Point, members[j].Point, earthRadiusKm)
			if d > max {
				max = d
			}
		}
	}
	return max
}

func meanPairwiseCentroidDistance(clusters []models.Cluster, earthRadiusKm float64) float64 {
	if len(clusters) < 2 {
		return 0
	}
	var sum float64
	var count int
	for i := 0; i < len(clusters); i++ {
		for j := i + 1; j < len(clusters); j++ {
			sum += geo.HaversineKm(clusters[i].Centroid, clusters[j].Centroid, earthRadiusKm)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// recommendStrategy mirrors the three-way recommendation: no dense
// clusters, one dense cluster, or several. Several clusters further
// split on whether their mean separation exceeds the far-apart
// threshold.
func recommendStrategy(clusters []models.Cluster, isolated []string, meanInterClusterKm float64, cfg Config) (models.Strategy, int) {
	totalStudents := len(isolated)
	for _, c := range clusters {
		totalStudents += len(c.Members)
	}

	switch {
	case len(clusters) == 0:
		return models.CloseOrSingle, busesFor(totalStudents, cfg.Capacity)
	case len(clusters) == 1:
		return models.CloseOrSingle, busesFor(totalStudents, cfg.Capacity)
	case meanInterClusterKm > cfg.FarApartThresholdKm:
		fleet := 0
		for _, c := range clusters {
			fleet += busesFor(len(c.Members), cfg.Capacity)
		}
		if len(isolated) > 0 {
			fleet += busesFor(len(isolated), cfg.Capacity)
		}
		return models.FarApart, fleet
	default:
		return models.CloseOrSingle, busesFor(totalStudents, cfg.Capacity)
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

func buildVisualization(clusters []models.Cluster, students []models.Student, isolated []string, cfg Config) models.ClusterVisualization {
	byID := make(map[string]models.Student, len(students))
	for _, s := range students {
		byID[s.ID] = s
	}

	visuals := make([]models.ClusterVisual, len(clusters))
	for i, c := range clusters {
		radius := (c.SpreadKm / 2) * 1000
		if radius < cfg.MinVisualRadiusM {
			radius = cfg.MinVisualRadiusM
		}
		visuals[i] = models.ClusterVisual{
			ID:                 c.ID,
			Center:             c.Centroid,
			RadiusM:            radius,
			Size:               len(c.Members),
			DistanceFromSchool: c.DistanceFromSchool,
		}
	}

	isolatedVisuals := make([]models.IsolatedVisual, 0, len(isolated))
	for _, id := range isolated {
		s, ok := byID[id]
		if !ok {
			continue
		}
		isolatedVisuals = append(isolatedVisuals, models.IsolatedVisual{
			Name:    s.Name,
			Lat:     s.Point.Lat,
			Lng:     s.Point.Lng,
			Address: s.Address,
		})
	}

	return models.ClusterVisualization{Clusters: visuals, Isolated: isolatedVisuals}
}
