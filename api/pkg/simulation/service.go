package simulation

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/atriumhq/atrium/api/pkg/allocation"
	"github.com/atriumhq/atrium/api/pkg/config"
	"github.com/atriumhq/atrium/api/pkg/store"
	"github.com/atriumhq/atrium/api/pkg/types"
)

// runResult aggregates the per-slot solves of one scenario.
type runResult struct {
	Allocations          []types.SimulatedAllocation
	ObjectiveValue       float64
	FairnessMetric       float64
	UnassignedRequestIDs []uint
}

// Simulator runs deterministic baseline versus what-if comparisons across
// every pending (date, slot) window, entirely in memory. It never writes:
// production optimization persists logs and mutates request status, so the
// sandbox must leave every table untouched.
type Simulator struct {
	cfg       *config.ServerConfig
	store     store.Store
	predictor allocation.IdlePredictor
}

func NewSimulator(cfg *config.ServerConfig, s store.Store, predictor allocation.IdlePredictor) *Simulator {
	return &Simulator{cfg: cfg, store: s, predictor: predictor}
}

// buildConfig assembles the solve configuration for a scenario using the
// simulation-specific worker count and seed, so runs are reproducible
// regardless of production allocation settings.
func (s *Simulator) buildConfig(idleThreshold, stakeholderCap *float64) (allocation.Config, error) {
	cfg := allocation.Config{
		IdleProbabilityThreshold: s.cfg.Allocation.IdleProbabilityThreshold,
		StakeholderUsageCap:      s.cfg.Allocation.StakeholderUsageCap,
		SolverMaxTimeSeconds:     s.cfg.Allocation.SolverMaxTimeSeconds,
		SolverRandomSeed:         s.cfg.Simulation.SolverRandomSeed,
		ObjectiveScale:           s.cfg.Allocation.ObjectiveScale,
		Workers:                  s.cfg.Simulation.CPSATWorkers,
		Engine:                   s.cfg.Allocation.SolverEngine,
		EnableGreedyFallback:     s.cfg.Allocation.EnableGreedyFallback,
	}
	if idleThreshold != nil {
		cfg.IdleProbabilityThreshold = *idleThreshold
	}
	if stakeholderCap != nil {
		cfg.StakeholderUsageCap = *stakeholderCap
	}
	if err := cfg.Validate(); err != nil {
		return allocation.Config{}, err
	}
	return cfg, nil
}

func (s *Simulator) validateConstraints(constraints types.TemporaryConstraints, dataset *ScenarioDataset) error {
	if constraints.IdleThreshold != nil && (*constraints.IdleThreshold < 0 || *constraints.IdleThreshold > 1) {
		return newValidationError("idle_threshold must be between 0 and 1")
	}
	if constraints.StakeholderCap != nil && (*constraints.StakeholderCap <= 0 || *constraints.StakeholderCap > 1) {
		return newValidationError("stakeholder_cap must be in (0, 1]")
	}

	roomIDs := make(map[uint]bool, len(dataset.Rooms))
	for _, room := range dataset.Rooms {
		roomIDs[room.ID] = true
	}
	for roomID, newCapacity := range constraints.CapacityOverride {
		if !roomIDs[roomID] {
			return newValidationError("capacity_override references unknown room_id=%d", roomID)
		}
		if newCapacity <= 0 {
			return newValidationError("capacity_override for room_id=%d must be > 0", roomID)
		}
	}

	stakeholderIDs := map[string]bool{}
	for _, request := range dataset.AllRequests() {
		stakeholderIDs[request.StakeholderID] = true
	}
	for stakeholderID, weight := range constraints.PriorityAdjustment {
		if !stakeholderIDs[stakeholderID] {
			return newValidationError("priority_adjustment references unknown stakeholder=%q", stakeholderID)
		}
		if weight <= 0 {
			return newValidationError("priority_adjustment for stakeholder=%q must be > 0", stakeholderID)
		}
	}
	return nil
}

// loadDataset snapshots rooms, pending requests and predictions. Rooms
// missing a persisted prediction in a window get one from the predictor
// without persistence, falling back to the configured default when
// inference fails.
func (s *Simulator) loadDataset(ctx context.Context) (*ScenarioDataset, error) {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	pending, err := s.store.ListAllPendingRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}

	dataset := &ScenarioDataset{
		Rooms:             rooms,
		RequestsBySlot:    map[types.SlotKey][]types.AllocationRequest{},
		PredictionsBySlot: map[types.SlotKey][]types.IdlePrediction{},
	}
	for _, request := range pending {
		key := types.SlotKey{Date: request.RequestedDate, TimeSlot: request.RequestedTimeSlot}
		dataset.RequestsBySlot[key] = append(dataset.RequestsBySlot[key], request)
	}

	fallbackIdle := 1 - s.cfg.Prediction.DefaultOccupancyProbability
	for _, key := range dataset.SortedKeys() {
		persisted, err := s.store.ListIdlePredictions(ctx, key.Date, key.TimeSlot)
		if err != nil {
			return nil, fmt.Errorf("failed to list idle predictions: %w", err)
		}
		byRoom := make(map[uint]types.IdlePrediction, len(persisted))
		for _, prediction := range persisted {
			byRoom[prediction.RoomID] = prediction
		}

		var missing []uint
		for _, room := range rooms {
			if _, ok := byRoom[room.ID]; !ok {
				missing = append(missing, room.ID)
			}
		}
		if len(missing) > 0 {
			log.Info().
				Str("date", key.Date).
				Str("time_slot", key.TimeSlot).
				Ints("missing_rooms", uintsToInts(missing)).
				Msg("simulation prediction gap detected")
			for _, roomID := range missing {
				byRoom[roomID] = s.predictIdleProbability(ctx, roomID, key, fallbackIdle)
			}
		}

		roomIDs := make([]uint, 0, len(byRoom))
		for roomID := range byRoom {
			roomIDs = append(roomIDs, roomID)
		}
		sort.Slice(roomIDs, func(i, j int) bool { return roomIDs[i] < roomIDs[j] })
		slotPredictions := make([]types.IdlePrediction, 0, len(roomIDs))
		for _, roomID := range roomIDs {
			slotPredictions = append(slotPredictions, byRoom[roomID])
		}
		dataset.PredictionsBySlot[key] = slotPredictions
	}

	return dataset, nil
}

func (s *Simulator) predictIdleProbability(ctx context.Context, roomID uint, key types.SlotKey, fallbackIdle float64) types.IdlePrediction {
	prediction := types.IdlePrediction{
		RoomID:          roomID,
		Date:            key.Date,
		TimeSlot:        key.TimeSlot,
		IdleProbability: fallbackIdle,
	}
	if s.predictor == nil {
		return prediction
	}
	result, err := s.predictor.Predict(ctx, roomID, key.Date, key.TimeSlot, false)
	if err != nil {
		log.Warn().Err(err).
			Uint("room_id", roomID).
			Str("date", key.Date).
			Str("time_slot", key.TimeSlot).
			Msg("simulation fallback prediction applied")
		return prediction
	}
	prediction.IdleProbability = result.IdleProbability
	return prediction
}

// applyConstraints builds the scenario dataset from a deep copy of the
// baseline plus the validated overrides.
func (s *Simulator) applyConstraints(dataset *ScenarioDataset, constraints types.TemporaryConstraints) (*ScenarioDataset, allocation.Config, error) {
	if err := s.validateConstraints(constraints, dataset); err != nil {
		return nil, allocation.Config{}, err
	}
	mutated := dataset.DeepCopy()

	if len(constraints.CapacityOverride) > 0 {
		for i := range mutated.Rooms {
			if newCapacity, ok := constraints.CapacityOverride[mutated.Rooms[i].ID]; ok {
				mutated.Rooms[i].Capacity = newCapacity
			}
		}
	}

	if len(constraints.PriorityAdjustment) > 0 {
		for key, requests := range mutated.RequestsBySlot {
			for i := range requests {
				if multiplier, ok := constraints.PriorityAdjustment[requests[i].StakeholderID]; ok {
					requests[i].PriorityWeight *= multiplier
				}
			}
			mutated.RequestsBySlot[key] = requests
		}
	}

	cfg, err := s.buildConfig(constraints.IdleThreshold, constraints.StakeholderCap)
	if err != nil {
		return nil, allocation.Config{}, err
	}
	return mutated, cfg, nil
}

// optimizeDataset runs the allocator's solve step per pending window in
// sorted order and aggregates objective, decisions and misses.
func (s *Simulator) optimizeDataset(dataset *ScenarioDataset, cfg allocation.Config) (*runResult, error) {
	result := &runResult{
		Allocations:          []types.SimulatedAllocation{},
		UnassignedRequestIDs: []uint{},
	}
	allRequests := dataset.AllRequests()
	if len(dataset.Rooms) == 0 || len(allRequests) == 0 {
		for _, request := range allRequests {
			result.UnassignedRequestIDs = append(result.UnassignedRequestIDs, request.ID)
		}
		return result, nil
	}

	var combined []types.AllocationDecision
	for _, key := range dataset.SortedKeys() {
		slotRequests := dataset.RequestsBySlot[key]
		if len(slotRequests) == 0 {
			continue
		}
		slotPredictions := dataset.PredictionsBySlot[key]
		if len(slotPredictions) == 0 {
			for _, request := range slotRequests {
				result.UnassignedRequestIDs = append(result.UnassignedRequestIDs, request.ID)
			}
			continue
		}

		slotResult, err := allocation.Solve(dataset.Rooms, slotRequests, slotPredictions, cfg)
		if err != nil {
			return nil, err
		}
		result.ObjectiveValue += slotResult.ObjectiveValue
		result.UnassignedRequestIDs = append(result.UnassignedRequestIDs, slotResult.UnassignedRequestIDs...)

		for _, decision := range slotResult.Allocations {
			combined = append(combined, decision)
			result.Allocations = append(result.Allocations, types.SimulatedAllocation{
				RequestID:         decision.RequestID,
				RoomID:            decision.RoomID,
				StakeholderID:     decision.StakeholderID,
				Score:             decision.Score,
				RequestedDate:     key.Date,
				RequestedTimeSlot: key.TimeSlot,
			})
		}
	}

	sort.Slice(result.UnassignedRequestIDs, func(i, j int) bool {
		return result.UnassignedRequestIDs[i] < result.UnassignedRequestIDs[j]
	})
	result.FairnessMetric = allocation.ComputeFairnessMetric(allRequests, combined)
	return result, nil
}

// computeMetrics derives the per-scenario summary from the dataset the
// scenario actually ran against.
func (s *Simulator) computeMetrics(dataset *ScenarioDataset, result *runResult) types.SimulationMetrics {
	utilizedRooms := map[uint]bool{}
	for _, decision := range result.Allocations {
		utilizedRooms[decision.RoomID] = true
	}

	utilizationRate := 0.0
	if len(dataset.Rooms) > 0 {
		utilizationRate = float64(len(utilizedRooms)) / float64(len(dataset.Rooms))
	}

	idleByWindowRoom := map[types.SlotKey]map[uint]float64{}
	for key, predictions := range dataset.PredictionsBySlot {
		byRoom := make(map[uint]float64, len(predictions))
		for _, prediction := range predictions {
			byRoom[prediction.RoomID] = prediction.IdleProbability
		}
		idleByWindowRoom[key] = byRoom
	}

	averageIdle := 0.0
	if len(result.Allocations) > 0 {
		sum := 0.0
		for _, decision := range result.Allocations {
			key := types.SlotKey{Date: decision.RequestedDate, TimeSlot: decision.RequestedTimeSlot}
			sum += idleByWindowRoom[key][decision.RoomID]
		}
		averageIdle = sum / float64(len(result.Allocations))
	}

	return types.SimulationMetrics{
		UtilizationRate:                utilizationRate,
		RequestsSatisfied:              len(result.Allocations),
		ObjectiveValue:                 result.ObjectiveValue,
		TotalRoomsUtilized:             len(utilizedRooms),
		AverageIdleProbabilityUtilized: averageIdle,
		FairnessMetric:                 result.FairnessMetric,
	}
}

func compareMetrics(baseline, scenario types.SimulationMetrics) types.SimulationDelta {
	return types.SimulationDelta{
		UtilizationChange:        scenario.UtilizationRate - baseline.UtilizationRate,
		RequestChange:            scenario.RequestsSatisfied - baseline.RequestsSatisfied,
		ObjectiveChange:          scenario.ObjectiveValue - baseline.ObjectiveValue,
		TotalRoomsUtilizedChange: scenario.TotalRoomsUtilized - baseline.TotalRoomsUtilized,
		AvgIdleProbabilityChange: scenario.AverageIdleProbabilityUtilized - baseline.AverageIdleProbabilityUtilized,
		FairnessChange:           scenario.FairnessMetric - baseline.FairnessMetric,
	}
}

// RunSimulation executes the baseline and the constrained scenario over
// the same snapshot and returns both metric sets plus their delta. No
// persisted table is touched.
func (s *Simulator) RunSimulation(ctx context.Context, constraints types.TemporaryConstraints) (*types.SimulationComparison, error) {
	runID := uuid.NewString()
	log.Info().
		Str("run_id", runID).
		Interface("constraints", constraints).
		Msg("simulation run started")

	dataset, err := s.loadDataset(ctx)
	if err != nil {
		return nil, err
	}

	baselineConfig, err := s.buildConfig(nil, nil)
	if err != nil {
		return nil, err
	}
	baselineResult, err := s.optimizeDataset(dataset, baselineConfig)
	if err != nil {
		return nil, err
	}
	baselineMetrics := s.computeMetrics(dataset, baselineResult)

	scenarioDataset, scenarioConfig, err := s.applyConstraints(dataset, constraints)
	if err != nil {
		return nil, err
	}
	scenarioResult, err := s.optimizeDataset(scenarioDataset, scenarioConfig)
	if err != nil {
		return nil, err
	}
	scenarioMetrics := s.computeMetrics(scenarioDataset, scenarioResult)

	delta := compareMetrics(baselineMetrics, scenarioMetrics)
	log.Info().
		Str("run_id", runID).
		Float64("baseline_objective", baselineMetrics.ObjectiveValue).
		Float64("simulation_objective", scenarioMetrics.ObjectiveValue).
		Int("request_delta", delta.RequestChange).
		Float64("utilization_delta", delta.UtilizationChange).
		Msg("simulation run completed")

	return &types.SimulationComparison{
		Baseline:   baselineMetrics,
		Simulation: scenarioMetrics,
		Delta:      delta,
	}, nil
}

func uintsToInts(values []uint) []int {
	ints := make([]int, len(values))
	for i, value := range values {
		ints[i] = int(value)
	}
	return ints
}
