package cvrp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolbus-router/internal/models"
)

func testConfig() Config {
	return Config{
		Capacity:           40,
		Budget:             2 * time.Second,
		PickupDwellSeconds: 60,
		AverageSpeedKmh:    30,
	}
}

// gridMatrix builds a distance matrix for a depot at 0 and n students
// laid out 1km apart along a line, so costs are easy to reason about.
func gridMatrix(n int) *models.DistanceMatrix {
	size := n + 1
	meters := make([][]int, size)
	for i := range meters {
		meters[i] = make([]int, size)
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			meters[i][j] = abs(i-j) * 1000
		}
	}
	return &models.DistanceMatrix{Meters: meters}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func studentsOf(n int) []models.Student {
	students := make([]models.Student, n)
	for i := range students {
		students[i] = models.Student{ID: string(rune('a' + i)), Name: string(rune('A' + i))}
	}
	return students
}

func TestSolve_CoversEveryStudentWithinCapacity(t *testing.T) {
	students := studentsOf(10)
	dm := gridMatrix(10)
	school := models.Point{Lat: 0, Lng: 0}

	routes, err := Solve(context.Background(), school, students, 2, dm, testConfig())
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, r := range routes {
		assert.LessOrEqual(t, r.StudentCount, 40)
		for _, s := range r.Students {
			assert.False(t, seen[s.ID], "student %s assigned twice", s.ID)
			seen[s.ID] = true
		}
	}
	assert.Len(t, seen, 10)
}

func TestSolve_InfeasibleCapacityReturnsNoSolution(t *testing.T) {
	students := studentsOf(50)
	dm := gridMatrix(50)
	school := models.Point{Lat: 0, Lng: 0}

	cfg := testConfig()
	cfg.Capacity = 10
	_, err := Solve(context.Background(), school, students, 2, dm, cfg)
	assert.ErrorIs(t, err, ErrNoSolution)
}

func TestSolve_EmptyStudentsReturnsNoRoutes(t *testing.T) {
	dm := gridMatrix(0)
	school := models.Point{Lat: 0, Lng: 0}

	routes, err := Solve(context.Background(), school, nil, 2, dm, testConfig())
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestSolve_DegenerateVehiclesAreDropped(t *testing.T) {
	students := studentsOf(3)
	dm := gridMatrix(3)
	school := models.Point{Lat: 0, Lng: 0}

	routes, err := Solve(context.Background(), school, students, 5, dm, testConfig())
	require.NoError(t, err)
	assert.NotEmpty(t, routes)
	assert.Less(t, len(routes), 5)
}

func TestSolve_RouteClosesAtDepot(t *testing.T) {
	students := studentsOf(4)
	dm := gridMatrix(4)
	school := models.Point{Lat: 1, Lng: 2}

	routes, err := Solve(context.Background(), school, students, 1, dm, testConfig())
	require.NoError(t, err)
	require.Len(t, routes, 1)

	segments := routes[0].Segments
	require.NotEmpty(t, segments)
	assert.Equal(t, school, segments[0].From)
	assert.Equal(t, school, segments[len(segments)-1].To)
}

func TestSolve_AccountsPickupDwellPerStudent(t *testing.T) {
	students := studentsOf(2)
	dm := gridMatrix(2)
	school := models.Point{Lat: 0, Lng: 0}

	routes, err := Solve(context.Background(), school, students, 1, dm, testConfig())
	require.NoError(t, err)
	require.Len(t, routes, 1)

	var travelSeconds float64
	for _, seg := range routes[0].Segments {
		travelSeconds += seg.TimeSeconds
	}
	expected := int(travelSeconds+0.5) + 120
	assert.InDelta(t, expected, routes[0].TimeSeconds, 1)
}
