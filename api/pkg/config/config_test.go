package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() ServerConfig {
	return ServerConfig{
		Prediction: Prediction{
			TimeSlotRegex:               `^\d{2}-\d{2}$`,
			RollingWindowDays:           7,
			DefaultOccupancyProbability: 0.5,
			MinTrainingRows:             50,
			ModelMaxIter:                200,
			ModelVersion:                "v1",
		},
		Allocation: Allocation{
			IdleProbabilityThreshold: 0.5,
			StakeholderUsageCap:      0.6,
			SolverMaxTimeSeconds:     10,
			ObjectiveScale:           1000,
			CPSATWorkers:             1,
			ForecastHistoryDays:      30,
			SolverEngine:             "cpsat",
			EnableGreedyFallback:     true,
		},
		Simulation: Simulation{
			CPSATWorkers: 1,
		},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(cfg *ServerConfig)
	}{
		{"min training rows below one", func(cfg *ServerConfig) { cfg.Prediction.MinTrainingRows = 0 }},
		{"rolling window below one", func(cfg *ServerConfig) { cfg.Prediction.RollingWindowDays = 0 }},
		{"default occupancy above one", func(cfg *ServerConfig) { cfg.Prediction.DefaultOccupancyProbability = 1.1 }},
		{"idle threshold negative", func(cfg *ServerConfig) { cfg.Allocation.IdleProbabilityThreshold = -0.1 }},
		{"stakeholder cap zero", func(cfg *ServerConfig) { cfg.Allocation.StakeholderUsageCap = 0 }},
		{"stakeholder cap above one", func(cfg *ServerConfig) { cfg.Allocation.StakeholderUsageCap = 1.2 }},
		{"solver max time zero", func(cfg *ServerConfig) { cfg.Allocation.SolverMaxTimeSeconds = 0 }},
		{"solver seed negative", func(cfg *ServerConfig) { cfg.Allocation.SolverRandomSeed = -1 }},
		{"objective scale zero", func(cfg *ServerConfig) { cfg.Allocation.ObjectiveScale = 0 }},
		{"workers zero", func(cfg *ServerConfig) { cfg.Allocation.CPSATWorkers = 0 }},
		{"forecast history zero", func(cfg *ServerConfig) { cfg.Allocation.ForecastHistoryDays = 0 }},
		{"simulation workers zero", func(cfg *ServerConfig) { cfg.Simulation.CPSATWorkers = 0 }},
		{"simulation seed negative", func(cfg *ServerConfig) { cfg.Simulation.SolverRandomSeed = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
