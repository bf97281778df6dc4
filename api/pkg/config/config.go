package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// ServerConfig is the single immutable configuration record for the whole
// process, loaded once at startup and passed by reference.
type ServerConfig struct {
	App        App
	WebServer  WebServer
	Store      Store
	Synthetic  Synthetic
	Prediction Prediction
	Allocation Allocation
	Simulation Simulation
}

type App struct {
	Name     string `envconfig:"APP_NAME" default:"atrium"`
	Version  string `envconfig:"APP_VERSION" default:"0.1.0"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// Enables the bearer-token guard on the HTTP surface when non-empty.
	AdminToken string `envconfig:"ADMIN_TOKEN"`
}

type WebServer struct {
	Host string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `envconfig:"SERVER_PORT" default:"8080"`
}

type Store struct {
	DatabasePath string `envconfig:"DATABASE_PATH" default:"data/atrium.db"`
}

// Synthetic controls the deterministic seed dataset written on first boot.
type Synthetic struct {
	RandomSeed                 int64    `envconfig:"SYNTHETIC_RANDOM_SEED" default:"42"`
	SeedDays                   int      `envconfig:"SYNTHETIC_SEED_DAYS" default:"60"`
	WeekdayOccupiedProbability float64  `envconfig:"SYNTHETIC_WEEKDAY_OCCUPIED_PROBABILITY" default:"0.7"`
	WeekendOccupiedProbability float64  `envconfig:"SYNTHETIC_WEEKEND_OCCUPIED_PROBABILITY" default:"0.3"`
	TimeSlots                  []string `envconfig:"SYNTHETIC_TIME_SLOTS" default:"09-11,11-13,13-15,15-17"`
}

type Prediction struct {
	TimeSlotRegex               string  `envconfig:"PREDICTION_TIME_SLOT_REGEX" default:"^\\d{2}-\\d{2}$"`
	RollingWindowDays           int     `envconfig:"PREDICTION_ROLLING_WINDOW_DAYS" default:"7"`
	DefaultOccupancyProbability float64 `envconfig:"PREDICTION_DEFAULT_OCCUPANCY_PROBABILITY" default:"0.5"`
	MinTrainingRows             int     `envconfig:"PREDICTION_MIN_TRAINING_ROWS" default:"50"`
	ModelMaxIter                int     `envconfig:"PREDICTION_MODEL_MAX_ITER" default:"200"`
	RandomState                 int64   `envconfig:"PREDICTION_RANDOM_STATE" default:"42"`
	ModelVersion                string  `envconfig:"PREDICTION_MODEL_VERSION" default:"v1"`
}

type Allocation struct {
	IdleProbabilityThreshold float64 `envconfig:"ALLOCATION_IDLE_PROBABILITY_THRESHOLD" default:"0.5"`
	StakeholderUsageCap      float64 `envconfig:"ALLOCATION_STAKEHOLDER_USAGE_CAP" default:"0.6"`
	SolverMaxTimeSeconds     int     `envconfig:"ALLOCATION_SOLVER_MAX_TIME_SECONDS" default:"10"`
	SolverRandomSeed         int64   `envconfig:"ALLOCATION_SOLVER_RANDOM_SEED" default:"42"`
	ObjectiveScale           int     `envconfig:"ALLOCATION_OBJECTIVE_SCALE" default:"1000"`
	CPSATWorkers             int     `envconfig:"ALLOCATION_CP_SAT_WORKERS" default:"1"`
	ForecastHistoryDays      int     `envconfig:"ALLOCATION_FORECAST_HISTORY_DAYS" default:"30"`
	// Which solver engine to use. The deterministic greedy engine runs as
	// a fallback when the named engine is not registered, unless the
	// fallback is disabled.
	SolverEngine         string `envconfig:"ALLOCATION_SOLVER_ENGINE" default:"cpsat"`
	EnableGreedyFallback bool   `envconfig:"ALLOCATION_ENABLE_GREEDY_FALLBACK" default:"true"`
}

type Simulation struct {
	CPSATWorkers     int   `envconfig:"SIMULATION_CP_SAT_WORKERS" default:"1"`
	SolverRandomSeed int64 `envconfig:"SIMULATION_SOLVER_RANDOM_SEED" default:"42"`
}

func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	err := envconfig.Process("", &cfg)
	if err != nil {
		return ServerConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// Validate rejects out-of-range values early so every later consumer can
// assume a sane config.
func (c *ServerConfig) Validate() error {
	if c.Prediction.MinTrainingRows < 1 {
		return fmt.Errorf("PREDICTION_MIN_TRAINING_ROWS must be >= 1")
	}
	if c.Prediction.RollingWindowDays < 1 {
		return fmt.Errorf("PREDICTION_ROLLING_WINDOW_DAYS must be >= 1")
	}
	if c.Prediction.DefaultOccupancyProbability < 0 || c.Prediction.DefaultOccupancyProbability > 1 {
		return fmt.Errorf("PREDICTION_DEFAULT_OCCUPANCY_PROBABILITY must be within [0, 1]")
	}
	if c.Allocation.IdleProbabilityThreshold < 0 || c.Allocation.IdleProbabilityThreshold > 1 {
		return fmt.Errorf("ALLOCATION_IDLE_PROBABILITY_THRESHOLD must be within [0, 1]")
	}
	if c.Allocation.StakeholderUsageCap <= 0 || c.Allocation.StakeholderUsageCap > 1 {
		return fmt.Errorf("ALLOCATION_STAKEHOLDER_USAGE_CAP must be within (0, 1]")
	}
	if c.Allocation.SolverMaxTimeSeconds <= 0 {
		return fmt.Errorf("ALLOCATION_SOLVER_MAX_TIME_SECONDS must be > 0")
	}
	if c.Allocation.SolverRandomSeed < 0 {
		return fmt.Errorf("ALLOCATION_SOLVER_RANDOM_SEED must be >= 0")
	}
	if c.Allocation.ObjectiveScale <= 0 {
		return fmt.Errorf("ALLOCATION_OBJECTIVE_SCALE must be > 0")
	}
	if c.Allocation.CPSATWorkers <= 0 {
		return fmt.Errorf("ALLOCATION_CP_SAT_WORKERS must be > 0")
	}
	if c.Allocation.ForecastHistoryDays <= 0 {
		return fmt.Errorf("ALLOCATION_FORECAST_HISTORY_DAYS must be > 0")
	}
	if c.Simulation.CPSATWorkers <= 0 {
		return fmt.Errorf("SIMULATION_CP_SAT_WORKERS must be > 0")
	}
	if c.Simulation.SolverRandomSeed < 0 {
		return fmt.Errorf("SIMULATION_SOLVER_RANDOM_SEED must be >= 0")
	}
	return nil
}
