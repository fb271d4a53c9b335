// Package config loads the tunable constants that drive the routing
// engine from the environment, so that the road factor, capacity, and
// clustering thresholds can be adjusted without a rebuild.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable named in the routing engine's constant
// table. Zero value is not meaningful; use Load.
type Config struct {
	Capacity                int           `mapstructure:"BUS_CAPACITY"`
	PickupDwell             time.Duration `mapstructure:"PICKUP_DWELL"`
	RoadFactor              float64       `mapstructure:"ROAD_FACTOR"`
	AverageSpeedKmh         float64       `mapstructure:"AVERAGE_SPEED_KMH"`
	EarthRadiusKm           float64       `mapstructure:"EARTH_RADIUS_KM"`
	ClusterEpsilonDeg       float64       `mapstructure:"CLUSTER_EPSILON_DEG"`
	ClusterMinPoints        int           `mapstructure:"CLUSTER_MIN_POINTS"`
	FarApartThresholdKm     float64       `mapstructure:"FAR_APART_THRESHOLD_KM"`
	SolverBudget            time.Duration `mapstructure:"SOLVER_BUDGET"`
	SpeedModeThreshold      time.Duration `mapstructure:"SPEED_MODE_THRESHOLD"`
	FleetSlack              float64       `mapstructure:"FLEET_SLACK"`
	MinVisualizationRadiusM float64       `mapstructure:"MIN_VISUALIZATION_RADIUS_M"`
	DefaultMaxBuses         int           `mapstructure:"DEFAULT_MAX_BUSES"`
	RoutingClientTimeout    time.Duration `mapstructure:"ROUTING_CLIENT_TIMEOUT"`
}

// Load reads configuration from environment variables, falling back to
// the defaults fixed by the specification when a variable is unset.
func Load() (*Config, error) {
	viper.SetEnvPrefix("SCHOOLBUS")
	viper.AutomaticEnv()

	viper.SetDefault("BUS_CAPACITY", 40)
	viper.SetDefault("PICKUP_DWELL", 60*time.Second)
	viper.SetDefault("ROAD_FACTOR", 1.3)
	viper.SetDefault("AVERAGE_SPEED_KMH", 30.0)
	viper.SetDefault("EARTH_RADIUS_KM", 6371.0)
	viper.SetDefault("CLUSTER_EPSILON_DEG", 0.03)
	viper.SetDefault("CLUSTER_MIN_POINTS", 3)
	viper.SetDefault("FAR_APART_THRESHOLD_KM", 7.0)
	viper.SetDefault("SOLVER_BUDGET", 30*time.Second)
	viper.SetDefault("SPEED_MODE_THRESHOLD", 1800*time.Second)
	viper.SetDefault("FLEET_SLACK", 0.15)
	viper.SetDefault("MIN_VISUALIZATION_RADIUS_M", 500.0)
	viper.SetDefault("DEFAULT_MAX_BUSES", 3)
	viper.SetDefault("ROUTING_CLIENT_TIMEOUT", 10*time.Second)

	cfg := &Config{
		Capacity:                viper.GetInt("BUS_CAPACITY"),
		PickupDwell:             viper.GetDuration("PICKUP_DWELL"),
		RoadFactor:              viper.GetFloat64("ROAD_FACTOR"),
		AverageSpeedKmh:         viper.GetFloat64("AVERAGE_SPEED_KMH"),
		EarthRadiusKm:           viper.GetFloat64("EARTH_RADIUS_KM"),
		ClusterEpsilonDeg:       viper.GetFloat64("CLUSTER_EPSILON_DEG"),
		ClusterMinPoints:        viper.GetInt("CLUSTER_MIN_POINTS"),
		FarApartThresholdKm:     viper.GetFloat64("FAR_APART_THRESHOLD_KM"),
		SolverBudget:            viper.GetDuration("SOLVER_BUDGET"),
		SpeedModeThreshold:      viper.GetDuration("SPEED_MODE_THRESHOLD"),
		FleetSlack:              viper.GetFloat64("FLEET_SLACK"),
		MinVisualizationRadiusM: viper.GetFloat64("MIN_VISUALIZATION_RADIUS_M"),
		DefaultMaxBuses:         viper.GetInt("DEFAULT_MAX_BUSES"),
		RoutingClientTimeout:    viper.GetDuration("ROUTING_CLIENT_TIMEOUT"),
	}

	return cfg, nil
}

// Default returns the configuration with every value fixed by the
// specification, bypassing the environment. Core components that are
// handed a *Config directly (rather than calling Load) use this in
// tests.
func Default() *Config {
	return &Config{
		Capacity:                40,
		PickupDwell:             60 * time.Second,
		RoadFactor:              1.3,
		AverageSpeedKmh:         30.0,
		EarthRadiusKm:           6371.0,
		ClusterEpsilonDeg:       0.03,
		ClusterMinPoints:        3,
		FarApartThresholdKm:     7.0,
		SolverBudget:            30 * time.Second,
		SpeedModeThreshold:      1800 * time.Second,
		FleetSlack:              0.15,
		MinVisualizationRadiusM: 500.0,
		DefaultMaxBuses:         3,
		RoutingClientTimeout:    10 * time.Second,
	}
}
