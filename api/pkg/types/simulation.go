package types

// SlotKey identifies one pending (date, slot) window.
type SlotKey struct {
	Date     string `json:"date"`
	TimeSlot string `json:"time_slot"`
}

// TemporaryConstraints are the optional what-if overrides a simulation run
// applies on top of the baseline dataset. All fields are optional.
type TemporaryConstraints struct {
	IdleThreshold      *float64           `json:"idle_threshold,omitempty"`
	StakeholderCap     *float64           `json:"stakeholder_cap,omitempty"`
	CapacityOverride   map[uint]int       `json:"capacity_override,omitempty"`
	PriorityAdjustment map[string]float64 `json:"priority_adjustment,omitempty"`
}

// SimulatedAllocation is an allocation decision annotated with the window
// it was made in, so metrics can look up the matching prediction.
type SimulatedAllocation struct {
	RequestID         uint    `json:"request_id"`
	RoomID            uint    `json:"room_id"`
	StakeholderID     string  `json:"stakeholder_id"`
	Score             float64 `json:"score"`
	RequestedDate     string  `json:"requested_date"`
	RequestedTimeSlot string  `json:"requested_time_slot"`
}

// SimulationMetrics summarises one scenario run.
type SimulationMetrics struct {
	UtilizationRate                float64 `json:"utilization_rate"`
	RequestsSatisfied              int     `json:"requests_satisfied"`
	ObjectiveValue                 float64 `json:"objective_value"`
	TotalRoomsUtilized             int     `json:"total_rooms_utilized"`
	AverageIdleProbabilityUtilized float64 `json:"average_idle_probability_utilized"`
	FairnessMetric                 float64 `json:"fairness_metric"`
}

// SimulationDelta is the element-wise scenario minus baseline comparison.
type SimulationDelta struct {
	UtilizationChange        float64 `json:"utilization_change"`
	RequestChange            int     `json:"request_change"`
	ObjectiveChange          float64 `json:"objective_change"`
	TotalRoomsUtilizedChange int     `json:"total_rooms_utilized_change"`
	AvgIdleProbabilityChange float64 `json:"avg_idle_probability_change"`
	FairnessChange           float64 `json:"fairness_change"`
}

// SimulationComparison is the full payload of one simulation run.
type SimulationComparison struct {
	Baseline   SimulationMetrics `json:"baseline"`
	Simulation SimulationMetrics `json:"simulation"`
	Delta      SimulationDelta   `json:"delta"`
}

// WorkflowMetrics is the cached dashboard metrics payload derived from the
// most recent simulation run.
type WorkflowMetrics struct {
	BaselineIdleActivationRate  float64 `json:"baseline_idle_activation_rate"`
	SimulatedIdleActivationRate float64 `json:"simulated_idle_activation_rate"`
	AllocationEfficiencyScore   float64 `json:"allocation_efficiency_score"`
	UtilizationDeltaPercentage  float64 `json:"utilization_delta_percentage"`
}
