package allocation

// Config is the per-solve allocation configuration. It is assembled from
// the process config with optional per-request overrides and validated
// before any model is built.
type Config struct {
	IdleProbabilityThreshold float64
	StakeholderUsageCap      float64
	SolverMaxTimeSeconds     int
	SolverRandomSeed         int64
	ObjectiveScale           int
	Workers                  int
	Engine                   string
	EnableGreedyFallback     bool
}

func (c Config) Validate() error {
	if c.IdleProbabilityThreshold < 0 || c.IdleProbabilityThreshold > 1 {
		return newValidationError("idle_probability_threshold must be between 0 and 1")
	}
	if c.StakeholderUsageCap <= 0 || c.StakeholderUsageCap > 1 {
		return newValidationError("stakeholder_usage_cap must be in (0, 1]")
	}
	if c.SolverMaxTimeSeconds <= 0 {
		return newValidationError("solver_max_time_seconds must be > 0")
	}
	if c.SolverRandomSeed < 0 {
		return newValidationError("solver_random_seed must be >= 0")
	}
	if c.ObjectiveScale <= 0 {
		return newValidationError("objective_scale must be > 0")
	}
	if c.Workers <= 0 {
		return newValidationError("cp_sat_workers must be > 0")
	}
	return nil
}
