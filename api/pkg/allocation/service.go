package allocation

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/atriumhq/atrium/api/pkg/config"
	"github.com/atriumhq/atrium/api/pkg/store"
	"github.com/atriumhq/atrium/api/pkg/types"
)

// IdlePredictor is the prediction capability the allocator uses to fill
// missing idle predictions before a solve.
type IdlePredictor interface {
	Predict(ctx context.Context, roomID uint, date, timeSlot string, persist bool) (*types.PredictionResult, error)
}

// Allocator solves one-shot constrained room assignment for a single
// (date, slot) window. It is stateless aside from its configuration;
// callers that need draft/approve sequencing serialise through the
// workflow lock.
type Allocator struct {
	cfg       *config.ServerConfig
	store     store.Store
	predictor IdlePredictor
}

func NewAllocator(cfg *config.ServerConfig, s store.Store, predictor IdlePredictor) *Allocator {
	return &Allocator{cfg: cfg, store: s, predictor: predictor}
}

// OptimizeParams are the inputs of one optimization run. The threshold and
// cap overrides fall back to the process configuration when nil.
type OptimizeParams struct {
	RequestedDate            string
	RequestedTimeSlot        string
	IdleProbabilityThreshold *float64
	StakeholderUsageCap      *float64
	PersistOutputs           bool
}

// BuildConfig assembles the per-solve configuration from the process
// config plus optional overrides.
func (a *Allocator) BuildConfig(idleThreshold, stakeholderCap *float64) Config {
	cfg := Config{
		IdleProbabilityThreshold: a.cfg.Allocation.IdleProbabilityThreshold,
		StakeholderUsageCap:      a.cfg.Allocation.StakeholderUsageCap,
		SolverMaxTimeSeconds:     a.cfg.Allocation.SolverMaxTimeSeconds,
		SolverRandomSeed:         a.cfg.Allocation.SolverRandomSeed,
		ObjectiveScale:           a.cfg.Allocation.ObjectiveScale,
		Workers:                  a.cfg.Allocation.CPSATWorkers,
		Engine:                   a.cfg.Allocation.SolverEngine,
		EnableGreedyFallback:     a.cfg.Allocation.EnableGreedyFallback,
	}
	if idleThreshold != nil {
		cfg.IdleProbabilityThreshold = *idleThreshold
	}
	if stakeholderCap != nil {
		cfg.StakeholderUsageCap = *stakeholderCap
	}
	return cfg
}

func validateDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return newValidationError("date must follow YYYY-MM-DD format")
	}
	return nil
}

func validateSlot(timeSlot string) error {
	parts := strings.Split(timeSlot, "-")
	if len(parts) != 2 {
		return newValidationError("time_slot must follow HH-HH format")
	}
	startHour, err := strconv.Atoi(parts[0])
	if err != nil {
		return newValidationError("time_slot must follow HH-HH format")
	}
	endHour, err := strconv.Atoi(parts[1])
	if err != nil {
		return newValidationError("time_slot must follow HH-HH format")
	}
	if startHour < 0 || startHour > 23 || endHour < 0 || endHour > 23 || startHour >= endHour {
		return newValidationError("time_slot boundaries are invalid")
	}
	return nil
}

// Solve runs the pruned assignment model for one window over in-memory
// inputs. It never touches the store, which lets the simulator reuse it
// against scenario datasets.
func Solve(
	rooms []types.Room,
	requests []types.AllocationRequest,
	predictions []types.IdlePrediction,
	cfg Config,
) (*types.OptimizationResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if len(requests) == 0 {
		return &types.OptimizationResult{
			Allocations:          []types.AllocationDecision{},
			UnassignedRequestIDs: []uint{},
		}, nil
	}

	engine, err := selectEngine(cfg)
	if err != nil {
		return nil, err
	}

	problem := buildProblem(rooms, requests, predictions, cfg)
	result, err := engine.Solve(problem, cfg)
	if err != nil {
		log.Warn().Err(err).Str("engine", engine.Name()).Msg("allocation solve failed")
		return unassignedResult(requests), nil
	}

	decisions := make([]types.AllocationDecision, 0, len(result.Selected))
	allocatedIDs := make(map[uint]bool, len(result.Selected))
	for _, pair := range result.Selected {
		decisions = append(decisions, types.AllocationDecision{
			RequestID:     pair.RequestID,
			RoomID:        pair.RoomID,
			Score:         float64(pair.Coefficient) / float64(cfg.ObjectiveScale),
			StakeholderID: pair.StakeholderID,
		})
		allocatedIDs[pair.RequestID] = true
	}
	sort.Slice(decisions, func(i, j int) bool {
		if decisions[i].RequestID != decisions[j].RequestID {
			return decisions[i].RequestID < decisions[j].RequestID
		}
		return decisions[i].RoomID < decisions[j].RoomID
	})

	unassigned := make([]uint, 0, len(requests))
	for _, request := range requests {
		if !allocatedIDs[request.ID] {
			unassigned = append(unassigned, request.ID)
		}
	}

	objectiveValue := float64(result.ObjectiveScaled) / float64(cfg.ObjectiveScale)
	fairness := ComputeFairnessMetric(requests, decisions)

	log.Info().
		Str("engine", engine.Name()).
		Str("status", string(result.Status)).
		Float64("objective_value", objectiveValue).
		Float64("fairness_metric", fairness).
		Int("allocations", len(decisions)).
		Int("unassigned", len(unassigned)).
		Msg("allocation solve completed")

	return &types.OptimizationResult{
		Allocations:          decisions,
		ObjectiveValue:       objectiveValue,
		FairnessMetric:       fairness,
		UnassignedRequestIDs: unassigned,
	}, nil
}

func unassignedResult(requests []types.AllocationRequest) *types.OptimizationResult {
	unassigned := make([]uint, 0, len(requests))
	for _, request := range requests {
		unassigned = append(unassigned, request.ID)
	}
	return &types.OptimizationResult{
		Allocations:          []types.AllocationDecision{},
		UnassignedRequestIDs: unassigned,
	}
}

// Optimize validates inputs, loads the window's rooms, pending requests
// and latest predictions, computes the demand forecast, solves, and on
// PersistOutputs writes forecast rows, allocation logs and status
// transitions in a single transaction.
func (a *Allocator) Optimize(ctx context.Context, params OptimizeParams) (*types.OptimizationResult, error) {
	if err := validateDate(params.RequestedDate); err != nil {
		return nil, err
	}
	if err := validateSlot(params.RequestedTimeSlot); err != nil {
		return nil, err
	}
	cfg := a.BuildConfig(params.IdleProbabilityThreshold, params.StakeholderUsageCap)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := selectEngine(cfg); err != nil {
		return nil, err
	}

	rooms, err := a.store.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	requests, err := a.store.ListPendingRequests(ctx, params.RequestedDate, params.RequestedTimeSlot)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	predictions, err := a.store.ListIdlePredictions(ctx, params.RequestedDate, params.RequestedTimeSlot)
	if err != nil {
		return nil, fmt.Errorf("failed to list idle predictions: %w", err)
	}
	predictions = a.fillMissingPredictions(ctx, rooms, predictions, params.RequestedDate, params.RequestedTimeSlot)

	historicalCounts, err := a.store.GetHistoricalRequestCountsByTimeSlot(ctx, a.cfg.Allocation.ForecastHistoryDays, params.RequestedDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load historical request counts: %w", err)
	}
	forecasts := ForecastDemand(requests, historicalCounts)

	var result *types.OptimizationResult
	if len(rooms) == 0 || len(requests) == 0 {
		result = unassignedResult(requests)
		log.Info().
			Int("rooms", len(rooms)).
			Int("requests", len(requests)).
			Msg("allocation skipped due to empty inputs")
	} else {
		result, err = Solve(rooms, requests, predictions, cfg)
		if err != nil {
			return nil, err
		}
	}

	if params.PersistOutputs {
		if err := a.store.PersistAllocationOutcome(ctx, params.RequestedDate, forecasts, result); err != nil {
			return nil, fmt.Errorf("failed to persist allocation outcome: %w", err)
		}
	}

	return result, nil
}

// fillMissingPredictions generates and persists an idle prediction for
// every room lacking one in the target window. Rooms whose inference fails
// fall back to the configured default occupancy without persistence.
func (a *Allocator) fillMissingPredictions(
	ctx context.Context,
	rooms []types.Room,
	predictions []types.IdlePrediction,
	requestedDate, requestedTimeSlot string,
) []types.IdlePrediction {
	if a.predictor == nil {
		return predictions
	}
	present := make(map[uint]bool, len(predictions))
	for _, prediction := range predictions {
		present[prediction.RoomID] = true
	}
	fallbackIdle := 1 - a.cfg.Prediction.DefaultOccupancyProbability
	for _, room := range rooms {
		if present[room.ID] {
			continue
		}
		idleProbability := fallbackIdle
		result, err := a.predictor.Predict(ctx, room.ID, requestedDate, requestedTimeSlot, true)
		if err != nil {
			log.Warn().Err(err).
				Uint("room_id", room.ID).
				Str("date", requestedDate).
				Str("time_slot", requestedTimeSlot).
				Msg("prediction gap fill failed, using default idle probability")
		} else {
			idleProbability = result.IdleProbability
		}
		predictions = append(predictions, types.IdlePrediction{
			RoomID:          room.ID,
			Date:            requestedDate,
			TimeSlot:        requestedTimeSlot,
			IdleProbability: idleProbability,
		})
	}
	return predictions
}
