package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolbus-router/internal/models"
)

func testConfig() Config {
	return Config{
		EpsilonDeg:          0.03,
		MinPoints:           3,
		Capacity:            40,
		FarApartThresholdKm: 7,
		EarthRadiusKm:       6371.0,
		MinVisualRadiusM:    500,
	}
}

func tightGroup(prefix string, base models.Point, n int) []models.Student {
	students := make([]models.Student, n)
	for i := 0; i < n; i++ {
		offset := float64(i) * 0.001
		students[i] = models.Student{
			ID:   prefix + string(rune('a'+i)),
			Name: prefix + string(rune('a'+i)),
			Point: models.Point{
				Lat: base.Lat + offset,
				Lng: base.Lng + offset,
			},
		}
	}
	return students
}

func TestAnalyze_FewerThanTwoStudentsIsTrivial(t *testing.T) {
	school := models.Point{Lat: 1.3, Lng: 103.8}
	students := []models.Student{{ID: "1", Point: models.Point{Lat: 1.31, Lng: 103.81}}}

	analysis := Analyze(students, school, testConfig())
	assert.Equal(t, models.CloseOrSingle, analysis.Strategy)
	assert.Equal(t, 1, analysis.RecommendedFleet)
	require.Len(t, analysis.Clusters, 1)
}

func TestAnalyze_SingleDenseCluster(t *testing.T) {
	school := models.Point{Lat: 1.30, Lng: 103.80}
	students := tightGroup("a", models.Point{Lat: 1.31, Lng: 103.81}, 5)

	analysis := Analyze(students, school, testConfig())
	require.Len(t, analysis.Clusters, 1)
	assert.Empty(t, analysis.Isolated)
	assert.Equal(t, models.CloseOrSingle, analysis.Strategy)
	assert.Equal(t, 1, analysis.RecommendedFleet)
}

func TestAnalyze_FarApartClustersRecommendOnePerCluster(t *testing.T) {
	school := models.Point{Lat: 1.30, Lng: 103.80}
	clusterA := tightGroup("a", models.Point{Lat: 1.31, Lng: 103.81}, 4)
	clusterB := tightGroup("b", models.Point{Lat: 1.60, Lng: 104.10}, 4)

	students := append(append([]models.Student{}, clusterA...), clusterB...)
	analysis := Analyze(students, school, testConfig())

	require.Len(t, analysis.Clusters, 2)
	assert.Equal(t, models.FarApart, analysis.Strategy)
	assert.Greater(t, analysis.MeanInterClusterKm, 7.0)
	assert.Equal(t, 2, analysis.RecommendedFleet)
}

func TestAnalyze_IsolatedStudentsMarkedAsNoise(t *testing.T) {
	school := models.Point{Lat: 1.30, Lng: 103.80}
	dense := tightGroup("a", models.Point{Lat: 1.31, Lng: 103.81}, 4)
	isolated := models.Student{ID: "iso", Name: "iso", Point: models.Point{Lat: 5.0, Lng: 110.0}}

	students := append(append([]models.Student{}, dense...), isolated)
	analysis := Analyze(students, school, testConfig())

	require.Len(t, analysis.Clusters, 1)
	require.Len(t, analysis.Isolated, 1)
	assert.Equal(t, "iso", analysis.Isolated[0])
}

func TestAnalyze_VisualizationRadiusHasMinimum(t *testing.T) {
	school := models.Point{Lat: 1.30, Lng: 103.80}
	students := tightGroup("a", models.Point{Lat: 1.31, Lng: 103.81}, 3)

	analysis := Analyze(students, school, testConfig())
	require.Len(t, analysis.Visualization.Clusters, 1)
	assert.GreaterOrEqual(t, analysis.Visualization.Clusters[0].RadiusM, 500.0)
}

func TestAnalyze_NoDenseClustersSpreadOutStudents(t *testing.T) {
	school := models.Point{Lat: 1.30, Lng: 103.80}
	students := []models.Student{
		{ID: "1", Point: models.Point{Lat: 1.31, Lng: 103.81}},
		{ID: "2", Point: models.Point{Lat: 1.50, Lng: 103.95}},
		{ID: "3", Point: models.Point{Lat: 1.70, Lng: 104.20}},
	}

	analysis := Analyze(students, school, testConfig())
	assert.Empty(t, analysis.Clusters)
	assert.Equal(t, models.CloseOrSingle, analysis.Strategy)
	assert.Equal(t, 1, analysis.RecommendedFleet)
}
